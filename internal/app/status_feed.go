package app

import (
	"sync"

	"quizclash-service/internal/domain"
)

// StatusFeed fans status changes out to per-code subscribers (long-polling HTTP clients).
// Slow subscribers only ever see the latest status.
type StatusFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.StatusInfo]struct{}
}

func NewStatusFeed() *StatusFeed {
	return &StatusFeed{subscribers: make(map[string]map[chan domain.StatusInfo]struct{})}
}

// Subscribe returns a channel of status changes for code.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *StatusFeed) Subscribe(code string) (<-chan domain.StatusInfo, func()) {
	ch := make(chan domain.StatusInfo, 1)

	f.mu.Lock()
	subs, ok := f.subscribers[code]
	if !ok {
		subs = make(map[chan domain.StatusInfo]struct{})
		f.subscribers[code] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[code]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, code)
		}
	}
	return ch, cancel
}

// StatusChanged implements StatusNotifier.
func (f *StatusFeed) StatusChanged(info domain.StatusInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[info.Code] {
		select {
		case ch <- info:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- info:
			default:
			}
		}
	}
}

// Close ends every subscription for code.
func (f *StatusFeed) Close(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[code] {
		close(ch)
	}
	delete(f.subscribers, code)
}
