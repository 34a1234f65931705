package runner

import (
	"context"
	"sync"
	"sync/atomic"
)

// RunHandle controls and observes one run.
type RunHandle struct {
	id      string
	state   atomic.Int32
	aborted atomic.Bool
	cancel  context.CancelFunc // cancels dispatch, never in-flight calls

	events *eventQueue
	done   chan struct{}

	mu       sync.Mutex
	snapshot RunSnapshot
	sinkErr  error
}

func (h *RunHandle) ID() string {
	return h.id
}

func (h *RunHandle) State() State {
	return State(h.state.Load())
}

func (h *RunHandle) setState(s State) {
	h.state.Store(int32(s))
}

// Events streams progress, results and snapshots until the run ends, then
// closes. The stream must be drained unless the runner was built with
// WithoutEvents, in which case the channel is already closed.
func (h *RunHandle) Events() <-chan Event {
	return h.events.stream()
}

// Abort stops scheduling new units. Calls already on the wire finish and are
// recorded. Abort is idempotent and safe after completion.
func (h *RunHandle) Abort() {
	if h.aborted.CompareAndSwap(false, true) {
		h.cancel()
	}
}

// Aborted reports whether Abort was called or the parent context ended.
func (h *RunHandle) Aborted() bool {
	return h.aborted.Load()
}

// Done closes once the final snapshot is published and the sink has run.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Snapshot returns the latest snapshot.
func (h *RunHandle) Snapshot() RunSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

func (h *RunHandle) publish(snap RunSnapshot) {
	h.mu.Lock()
	h.snapshot = snap
	h.mu.Unlock()
}

// Wait blocks until the run ends or ctx is done. It returns the final
// snapshot and the sink error, if any.
func (h *RunHandle) Wait(ctx context.Context) (RunSnapshot, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.snapshot, h.sinkErr
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
}

// eventQueue decouples the aggregator from slow consumers with an unbounded
// buffer between in and out. A disabled queue discards everything.
type eventQueue struct {
	in       chan Event
	out      chan Event
	disabled bool
}

func newEventQueue(buffer int, disabled bool) *eventQueue {
	if disabled {
		out := make(chan Event)
		close(out)
		return &eventQueue{out: out, disabled: true}
	}
	q := &eventQueue{
		in:  make(chan Event, buffer),
		out: make(chan Event, buffer),
	}
	go q.forward()
	return q
}

func (q *eventQueue) stream() <-chan Event {
	return q.out
}

func (q *eventQueue) send(ev Event) {
	if q.disabled {
		return
	}
	q.in <- ev
}

func (q *eventQueue) close() {
	if q.disabled {
		return
	}
	close(q.in)
}

func (q *eventQueue) forward() {
	defer close(q.out)
	var pending []Event
	in := q.in
	for in != nil || len(pending) > 0 {
		var out chan Event
		var next Event
		if len(pending) > 0 {
			out = q.out
			next = pending[0]
		}
		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, ev)
		case out <- next:
			pending[0] = nil
			pending = pending[1:]
		}
	}
}
