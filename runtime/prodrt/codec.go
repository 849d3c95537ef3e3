// Package prodrt is the degenerate scheduler spec.md §1 sketches: the same
// actor design (mailbox dispatch, PreStart/Receive/PostStop, event.Event
// messages) run on real OS threads by a genuine tochemey/goakt/v3
// ActorSystem instead of the controlled scheduler, with no exploration,
// no replay, and no bug search — production execution.
//
// goakt requires every message to implement proto.Message (mirrors
// pkg/actorutils/schedule.go's proto.Message parameter). Rather than
// generating a dedicated .proto per event.Event type, prodrt carries
// events inside wrapperspb.BytesValue, a proto.Message the protobuf
// runtime already ships compiled: the event is JSON-encoded under a type
// tag, so the receiving side can look the tag up in a Registry and decode
// into the right concrete type without a schema compiler in the loop.
package prodrt

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/microsoft/coyote-sub017/runtime/event"
)

type wireEvent struct {
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// Registry maps an event's TypeTag name to a zero-value factory, so the
// wire form can be decoded back into its concrete Go type. Each production
// actor kind registers the event types it expects to receive.
type Registry struct {
	factories map[string]func() event.Event
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() event.Event)}
}

// Register associates tag with a factory producing a pointer to the zero
// value of the concrete event type tag names, so Decode can json.Unmarshal
// directly into it. When that type embeds event.Base, the new value is
// stamped with tag first, so a decoded event carries the tag it was encoded
// under.
func (r *Registry) Register(tag event.TypeTag, factory func() event.Event) {
	r.factories[tag.String()] = func() event.Event {
		ev := factory()
		if v := reflect.ValueOf(ev); v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
			if base := v.Elem().FieldByName("Base"); base.CanSet() && base.Type() == reflect.TypeOf(event.Base{}) {
				base.Set(reflect.ValueOf(event.NewBase(tag)))
			}
		}
		return ev
	}
}

// Encode wraps ev as a wrapperspb.BytesValue suitable for goakt's Tell/Ask.
func Encode(ev event.Event) (*wrapperspb.BytesValue, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("prodrt: marshal event payload: %w", err)
	}
	wire, err := json.Marshal(wireEvent{Tag: ev.Tag().String(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("prodrt: marshal wire envelope: %w", err)
	}
	return wrapperspb.Bytes(wire), nil
}

// Decode reverses Encode using r to resolve the concrete type. It returns
// (nil, false, nil) for a message that is not a prodrt-encoded event (e.g.
// a goakt lifecycle message), so callers can fall through to their own
// switch on the raw message.
func (r *Registry) Decode(msg any) (event.Event, bool, error) {
	bv, ok := msg.(*wrapperspb.BytesValue)
	if !ok {
		return nil, false, nil
	}
	var wire wireEvent
	if err := json.Unmarshal(bv.GetValue(), &wire); err != nil {
		return nil, true, fmt.Errorf("prodrt: unmarshal wire envelope: %w", err)
	}
	factory, ok := r.factories[wire.Tag]
	if !ok {
		return nil, true, fmt.Errorf("prodrt: no registered event type for tag %q", wire.Tag)
	}
	ev := factory()
	if err := json.Unmarshal(wire.Payload, ev); err != nil {
		return nil, true, fmt.Errorf("prodrt: unmarshal event payload for tag %q: %w", wire.Tag, err)
	}
	return ev, true, nil
}
