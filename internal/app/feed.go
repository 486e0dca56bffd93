package app

import (
	"sync"

	"elevate-assessment-service/internal/domain"
)

// SubmissionFeed fans finalized-assignment events out to subscribers (e.g.
// the WebSocket transport for admin dashboards).
type SubmissionFeed struct {
	mu   sync.Mutex
	subs map[chan domain.SubmissionEvent]struct{}
}

func NewSubmissionFeed() *SubmissionFeed {
	return &SubmissionFeed{subs: make(map[chan domain.SubmissionEvent]struct{})}
}

// Subscribe returns a channel of submission events. The caller must invoke
// the returned cancel function to avoid leaks.
func (f *SubmissionFeed) Subscribe() (<-chan domain.SubmissionEvent, func()) {
	ch := make(chan domain.SubmissionEvent, 8)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. Slow consumers lose their
// oldest pending event instead of blocking the publisher.
func (f *SubmissionFeed) Publish(ev domain.SubmissionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
