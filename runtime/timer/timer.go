// Package timer implements controlled timers: StartTimer/StartPeriodicTimer
// register a synthetic TimerOperation that the scheduler can choose to fire
// at any point once its minimum delay has elapsed, racing it against every
// other enabled operation instead of tying it to wall-clock time.
package timer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/operation"
)

// ID identifies one armed timer.
type ID uint64

var nextID atomic.Uint64

// Info describes an armed timer, returned for diagnostics/cancellation.
type Info struct {
	ID       ID
	Owner    actor.ActorId
	Periodic bool
	Custom   event.Event
}

type pending struct {
	mu        sync.Mutex
	info      Info
	armedStep int
	minDelay  int
	stopped   bool
}

// Service owns every timer armed during one iteration.
type Service struct {
	sys *actor.System

	mu      sync.Mutex
	timers  map[ID]*pending
}

// NewService builds a timer Service bound to sys.
func NewService(sys *actor.System) *Service {
	return &Service{sys: sys, timers: make(map[ID]*pending)}
}

// StartTimer arms a one-shot timer: after minDelaySteps scheduling steps
// have elapsed, the timer becomes eligible to fire a TimerElapsed event to
// owner carrying custom (nil for the default event). current is the
// operation arming the timer, ceding its turn once registration completes.
func (s *Service) StartTimer(current *operation.Operation, owner actor.ActorId, minDelaySteps int, custom event.Event) ID {
	return s.arm(current, owner, minDelaySteps, false, custom)
}

// StartPeriodicTimer arms a timer that re-arms itself after every fire,
// continuing until Stop is called.
func (s *Service) StartPeriodicTimer(current *operation.Operation, owner actor.ActorId, minDelaySteps int, custom event.Event) ID {
	return s.arm(current, owner, minDelaySteps, true, custom)
}

func (s *Service) arm(current *operation.Operation, owner actor.ActorId, minDelaySteps int, periodic bool, custom event.Event) ID {
	id := ID(nextID.Add(1))
	sched := s.sys.Scheduler()

	p := &pending{
		info:      Info{ID: id, Owner: owner, Periodic: periodic, Custom: custom},
		armedStep: sched.Steps(),
		minDelay:  minDelaySteps,
	}
	s.mu.Lock()
	s.timers[id] = p
	s.mu.Unlock()

	var opRef *operation.Operation
	opRef = sched.RegisterOperation(operation.TimerOperation, owner.String(), fmt.Sprintf("timer-%d", id), func() {
		for {
			p.mu.Lock()
			stopped := p.stopped
			p.mu.Unlock()
			if stopped {
				return
			}

			dep := operation.Func{
				Desc: fmt.Sprintf("timer-%d delay", id),
				Fn: func() bool {
					p.mu.Lock()
					defer p.mu.Unlock()
					if p.stopped {
						return true
					}
					return sched.Steps()-p.armedStep >= p.minDelay
				},
			}
			for !dep.Satisfied() {
				sched.ScheduleNext(opRef)
			}

			p.mu.Lock()
			stopped = p.stopped
			p.mu.Unlock()
			if stopped {
				return
			}

			s.sys.Send(opRef, owner, actor.ActorId{}, event.NoGroup, event.NewTimerElapsed(uint64(id), custom))
			if !periodic {
				return
			}
			p.mu.Lock()
			p.armedStep = sched.Steps()
			p.mu.Unlock()
			sched.ScheduleNext(opRef)
		}
	})
	p.mu.Lock()
	p.info.ID = id
	p.mu.Unlock()

	sched.StartOperation(current)
	return id
}

// StopTimer disarms a previously armed timer. Already-enqueued
// TimerElapsed events are not retracted, matching ReceiveEventAsync's
// usual race with a concurrently-firing timer.
func (s *Service) StopTimer(id ID) {
	s.mu.Lock()
	p, ok := s.timers[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

// Info returns the armed timer's metadata, if it is still known to the
// service (stopped timers are retained until the iteration ends).
func (s *Service) Info(id ID) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.timers[id]
	if !ok {
		return Info{}, false
	}
	return p.info, true
}
