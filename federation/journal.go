package federation

import (
	"context"
	"sync"
)

// Journal stores events in the order they were committed.
// Append must be durable when it returns nil, the state transition is applied only afterwards.
type Journal interface {
	Append(ctx context.Context, ev *Event) error
	ReadAll(ctx context.Context) ([]Event, error)
}

// Publisher publishes committed events to observers.
// Publish is called while the federation is locked and it must not block.
type Publisher interface {
	Publish(ev Event)
}

// MemoryJournal is a Journal keeping encoded events in memory.
type MemoryJournal struct {
	mux    sync.RWMutex
	events [][]byte
}

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append encodes and stores the event.
func (j *MemoryJournal) Append(_ context.Context, ev *Event) error {
	raw, err := ev.Encode()
	if err != nil {
		return err
	}
	j.mux.Lock()
	defer j.mux.Unlock()
	j.events = append(j.events, raw)
	return nil
}

// ReadAll decodes all stored events.
func (j *MemoryJournal) ReadAll(_ context.Context) ([]Event, error) {
	j.mux.RLock()
	defer j.mux.RUnlock()
	events := make([]Event, 0, len(j.events))
	for _, raw := range j.events {
		ev, err := DecodeEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// Len returns the number of stored events.
func (j *MemoryJournal) Len() int {
	j.mux.RLock()
	defer j.mux.RUnlock()
	return len(j.events)
}

// ReadTransactionHistory decodes all stored events of the proposal.
func (j *MemoryJournal) ReadTransactionHistory(ctx context.Context, id TxID) ([]Event, error) {
	events, err := j.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]Event, 0)
	for _, ev := range events {
		if ev.Kind.IsProposal() && ev.TxID == id {
			history = append(history, ev)
		}
	}
	return history, nil
}
