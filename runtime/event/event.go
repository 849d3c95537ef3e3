// Package event defines the message type exchanged between actors.
package event

import (
	"fmt"
	"reflect"
)

// TypeTag identifies the dynamic type of an Event for dispatch purposes.
// It carries an optional set of supertags so a handler registered on a
// base tag also matches events declared as a more specific subtag,
// without requiring a real class hierarchy.
type TypeTag struct {
	name      string
	supertags []TypeTag
}

// NewTypeTag builds a tag with the given supertags.
func NewTypeTag(name string, supertags ...TypeTag) TypeTag {
	return TypeTag{name: name, supertags: supertags}
}

// String returns the tag's name.
func (t TypeTag) String() string { return t.name }

// Is reports whether t is exactly other.
func (t TypeTag) Is(other TypeTag) bool { return t.name == other.name }

// DynUpcastsTo reports whether t is other, or declares other as a supertag,
// transitively.
func (t TypeTag) DynUpcastsTo(other TypeTag) bool {
	if t.Is(other) {
		return true
	}
	for _, s := range t.supertags {
		if s.DynUpcastsTo(other) {
			return true
		}
	}
	return false
}

// Event is the sealed interface every message exchanged through a mailbox
// must satisfy. A concrete Event's dynamic type is the dispatch key;
// TypeTag lets dispatch tables match supertags without reflection over a
// real inheritance graph.
type Event interface {
	// eventMarker seals the interface to this package's helpers.
	eventMarker()

	// Tag returns the event's dispatch tag.
	Tag() TypeTag
}

// Base is embedded by concrete event types to satisfy the sealed marker.
// Generalizes the sealed-message pattern (BaseMessage/messageMarker) used
// across actor frameworks in the style of the example corpus.
type Base struct {
	tag TypeTag
}

// NewBase returns a Base carrying the given tag.
func NewBase(tag TypeTag) Base { return Base{tag: tag} }

func (Base) eventMarker() {}

// Tag returns the embedding event's tag.
func (b Base) Tag() TypeTag { return b.tag }

// TagOf derives a TypeTag from a Go value's reflected type when a caller
// has not embedded Base with an explicit tag. Used for ad-hoc test events.
func TagOf(v any) TypeTag {
	return NewTypeTag(reflect.TypeOf(v).String())
}

// reserved event type names.
const (
	HaltName         = "coyote.Halt"
	TimerElapsedName = "coyote.TimerElapsed"
)

// HaltTag is the tag of the reserved Halt event.
var HaltTag = NewTypeTag(HaltName)

// TimerElapsedTag is the tag of the reserved TimerElapsed event.
var TimerElapsedTag = NewTypeTag(TimerElapsedName)

// Halt terminates the receiving actor. Sending it is equivalent to calling
// Halt on the target's handle.
type Halt struct{ Base }

// NewHalt constructs the reserved Halt event.
func NewHalt() Halt { return Halt{Base: NewBase(HaltTag)} }

// TimerElapsed is produced by the timer service when a timer fires.
type TimerElapsed struct {
	Base
	TimerID uint64
	Custom  Event // optional user-supplied payload, nil for the default event
}

// NewTimerElapsed constructs a TimerElapsed event for the given timer.
func NewTimerElapsed(id uint64, custom Event) TimerElapsed {
	return TimerElapsed{Base: NewBase(TimerElapsedTag), TimerID: id, Custom: custom}
}

// Group is an optional correlation token attached to a send; it is
// inherited by any actor created, or event sent, while handling an event
// carrying the same group.
type Group struct {
	id string
}

// NewGroup returns a Group carrying the given correlation id; groups built
// from the same id are equal.
func NewGroup(id string) Group { return Group{id: id} }

// NoGroup is the zero Group, meaning "uncorrelated".
var NoGroup = Group{}

// IsZero reports whether g carries no correlation id.
func (g Group) IsZero() bool { return g.id == "" }

// String implements fmt.Stringer.
func (g Group) String() string {
	if g.IsZero() {
		return "<no-group>"
	}
	return g.id
}

// Envelope pairs an Event with its delivery metadata, as stored in a
// mailbox slot.
type Envelope struct {
	Event  Event
	Sender string // sender ActorId.String(), empty for externally-originated sends
	Group  Group
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s from=%q group=%s", e.Event.Tag(), e.Sender, e.Group)
}
