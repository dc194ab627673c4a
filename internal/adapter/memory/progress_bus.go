package memory

import (
	"context"
	"sync"

	"tokendrop/internal/core/port"
)

// ProgressBus fans progress events out to in-process subscribers. Slow
// subscribers are skipped rather than blocking the scheduler loop.
type ProgressBus struct {
	mu   sync.RWMutex
	subs []chan port.Progress
}

func NewProgressBus() *ProgressBus {
	return &ProgressBus{}
}

// Subscribe returns a buffered channel receiving every subsequent event.
func (b *ProgressBus) Subscribe() <-chan port.Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan port.Progress, 64)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *ProgressBus) Notify(_ context.Context, p port.Progress) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
		}
	}
}
