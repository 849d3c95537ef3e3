// Package mailbox implements the per-actor FIFO queue of pending events,
// plus the disjoint deferred set and the single outstanding receive-await
// slot described by spec.md §4.8. In test mode the runtime only ever has
// one live operation at a time, so the mailbox needs no real locking
// beyond what protects it from the mailbox owner's own scheduling-point
// re-entrancy; the same interface also serves the (future) production
// multi-producer path, so a mutex guards it regardless.
package mailbox

import (
	"sync"

	"github.com/microsoft/coyote-sub017/runtime/event"
)

// EnqueueStatus reports what happened to an enqueued event.
type EnqueueStatus int

const (
	// Accepted means the event was appended to the queue.
	Accepted EnqueueStatus = iota
	// AcceptedWakesReceive means the event matched an outstanding
	// receive-await and was delivered directly to it instead of being
	// queued.
	AcceptedWakesReceive
	// RejectedHalted means the mailbox belongs to a halted actor and the
	// send was silently dropped.
	RejectedHalted
)

// Await describes an outstanding ReceiveEventAsync call: the set of tags
// it will accept, an optional predicate narrowing matches further, and the
// continuation to invoke with the matched envelope.
type Await struct {
	Types     []event.TypeTag
	Predicate func(event.Envelope) (bool, error)
	Deliver   func(event.Envelope)
	// Failed is invoked instead of Deliver if Predicate returns an error;
	// spec.md §9 treats a panicking/erroring predicate as a user assertion
	// failure.
	Failed func(error)
}

func (a *Await) matches(env event.Envelope) (bool, error) {
	matched := len(a.Types) == 0
	for _, t := range a.Types {
		if env.Event.Tag().DynUpcastsTo(t) {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	if a.Predicate == nil {
		return true, nil
	}
	return a.Predicate(env)
}

// Mailbox is the ordered queue of (event, sender, group) envelopes for one
// actor.
type Mailbox struct {
	mu          sync.Mutex
	queue       []event.Envelope
	deferred    []event.Envelope
	await       *Await
	halted      bool
	deadLetters int
}

// New returns an empty Mailbox.
func New() *Mailbox {
	return &Mailbox{}
}

// Enqueue appends env to the queue, unless an outstanding receive-await
// claims it first, or the mailbox is halted.
func (m *Mailbox) Enqueue(env event.Envelope) EnqueueStatus {
	m.mu.Lock()
	if m.halted {
		m.deadLetters++
		m.mu.Unlock()
		return RejectedHalted
	}
	if m.await != nil {
		matched, err := m.await.matches(env)
		if err != nil {
			await := m.await
			m.await = nil
			m.mu.Unlock()
			await.Failed(err)
			return AcceptedWakesReceive
		}
		if matched {
			await := m.await
			m.await = nil
			m.mu.Unlock()
			await.Deliver(env)
			return AcceptedWakesReceive
		}
	}
	m.queue = append(m.queue, env)
	m.mu.Unlock()
	return Accepted
}

// DequeueStatus reports what Dequeue found.
type DequeueStatus int

const (
	// Empty means there was nothing to dequeue.
	Empty DequeueStatus = iota
	// Ok means an envelope was returned.
	Ok
)

// Dequeue removes and returns the head of the queue, if any. The deferred
// set is never touched by Dequeue: a deferred event only re-enters via
// ReclaimDeferred.
func (m *Mailbox) Dequeue() (event.Envelope, DequeueStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return event.Envelope{}, Empty
	}
	head := m.queue[0]
	m.queue = m.queue[1:]
	return head, Ok
}

// Peek reports whether the queue is non-empty without removing anything.
func (m *Mailbox) Peek() (event.Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return event.Envelope{}, false
	}
	return m.queue[0], true
}

// Len reports the number of queued (non-deferred) envelopes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Defer moves env into the deferred set. Invariant (ii) of spec.md §3:
// deferred events are restored to the mailbox front, in FIFO order, on any
// state transition that no longer defers them.
func (m *Mailbox) Defer(env event.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferred = append(m.deferred, env)
}

// ReclaimDeferred re-admits every deferred envelope matching pred to the
// front of the queue, preserving their relative (FIFO) order, and leaves
// non-matching ones deferred.
func (m *Mailbox) ReclaimDeferred(pred func(event.Envelope) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.deferred) == 0 {
		return
	}
	var reclaimed, stillDeferred []event.Envelope
	for _, env := range m.deferred {
		if pred(env) {
			reclaimed = append(reclaimed, env)
		} else {
			stillDeferred = append(stillDeferred, env)
		}
	}
	m.deferred = stillDeferred
	if len(reclaimed) > 0 {
		m.queue = append(reclaimed, m.queue...)
	}
}

// InstallReceive registers an outstanding receive-await. Invariant (i) of
// spec.md §3: a receive-await and a non-empty matching head cannot both
// exist, so InstallReceive first scans the queue for an immediate match
// and, if found, delivers synchronously instead of installing anything.
// It reports whether the match was immediate.
//
// The scan walks the whole queue, not just the head: Coyote's own
// ReceiveEventAsync matches the first eligible event anywhere in the
// mailbox, not only one sitting at the front.
func (m *Mailbox) InstallReceive(a *Await) (event.Envelope, bool) {
	m.mu.Lock()
	for i, env := range m.queue {
		matched, err := a.matches(env)
		if err != nil {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			a.Failed(err)
			return event.Envelope{}, false
		}
		if matched {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			return env, true
		}
	}
	m.await = a
	m.mu.Unlock()
	return event.Envelope{}, false
}

// CancelReceive clears a pending await without delivering it, used when an
// owning operation is canceled mid-wait.
func (m *Mailbox) CancelReceive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.await = nil
}

// HasAwait reports whether a receive-await is currently installed.
func (m *Mailbox) HasAwait() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.await != nil
}

// Close halts the mailbox: further sends are rejected as inert no-ops, per
// invariant (iii) of spec.md §3.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.halted = true
	m.await = nil
}

// DeadLetters reports how many sends have been rejected since the mailbox
// halted, for the configurable dead-letter counter spec.md §9 leaves open.
func (m *Mailbox) DeadLetters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadLetters
}
