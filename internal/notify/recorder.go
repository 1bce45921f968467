package notify

import (
	"context"
	"sync"
)

type Recorded struct {
	Event string
	Data  any
}

// Recorder keeps every event in memory, in delivery order.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Notify(_ context.Context, event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: event, Data: data})
	return nil
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Find returns the first event with the given name.
func (r *Recorder) Find(event string) (Recorded, bool) {
	for _, e := range r.Events() {
		if e.Event == event {
			return e, true
		}
	}
	return Recorded{}, false
}
