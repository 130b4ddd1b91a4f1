// Package eventstream provides a small async producer/consumer channel with
// a terminal result, mirroring the EventStream contract of spec.md §4.1
// (grounded on original_source/packages/ai/src/pi_ai/utils/event_stream.py,
// translated from an asyncio.Queue + Event pair into Go channels).
package eventstream

import "sync"

// EventStream is a single-producer/single-consumer stream of events T that
// completes with a terminal result R (or a failure). Push/End/Fail must be
// called from the producer only; Range/Result may be called from any
// consumer goroutine.
type EventStream[T any, R any] struct {
	events chan T
	done   chan struct{}

	mu       sync.Mutex
	finished bool
	result   R
	err      error
	once     sync.Once
}

// New constructs an EventStream with the given event buffer size.
func New[T any, R any](buffer int) *EventStream[T, R] {
	return &EventStream[T, R]{
		events: make(chan T, buffer),
		done:   make(chan struct{}),
	}
}

// Push emits an event into the stream. Events pushed after End/Fail has been
// called are silently dropped, matching the "subsequent events are dropped"
// contract.
func (s *EventStream[T, R]) Push(event T) {
	s.mu.Lock()
	finished := s.finished
	s.mu.Unlock()
	if finished {
		return
	}
	select {
	case s.events <- event:
	case <-s.done:
	}
}

// End signals successful completion with the final result. Idempotent:
// only the first call takes effect.
func (s *EventStream[T, R]) End(result R) {
	s.once.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.result = result
		s.mu.Unlock()
		close(s.done)
	})
}

// Fail signals failure. Idempotent: only the first call (whether End or
// Fail) takes effect.
func (s *EventStream[T, R]) Fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Result blocks until the stream completes, then returns the terminal
// result or the failure error.
func (s *EventStream[T, R]) Result() (R, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Range calls fn for every queued event in production order, draining the
// channel until the stream is marked done and the buffer is empty. It
// returns the terminal error, if any, once iteration completes. fn
// returning false stops iteration early without draining further.
func (s *EventStream[T, R]) Range(fn func(T) bool) error {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return s.finalErr()
			}
			if !fn(ev) {
				return s.finalErr()
			}
		case <-s.done:
			// Drain any events queued before completion was signalled.
			for {
				select {
				case ev := <-s.events:
					if !fn(ev) {
						return s.finalErr()
					}
				default:
					return s.finalErr()
				}
			}
		}
	}
}

func (s *EventStream[T, R]) finalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
