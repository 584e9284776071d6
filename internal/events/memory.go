package events

import "sync"

// Memory is an in-process Broker. Slow subscribers miss events rather than
// block the publisher.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // runID -> set of channels
	buf  int
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}, buf: 64}
}

func (b *Memory) Subscribe(runID string) chan Event {
	ch := make(chan Event, b.buf)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Memory) Publish(runID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
