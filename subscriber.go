package adv3

import (
	"context"
	"sync"
)

// Subscriber receives the printer status after every status update made
// through its Controller. Updates are dropped while the channel is full.
type Subscriber struct {
	h         *hub
	ch        chan DeviceStatus
	closeOnce sync.Once
}

func (s *Subscriber) Chan() <-chan DeviceStatus {
	return s.ch
}

func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.h.unregister(s)
	})
}

// Subscribe returns a Subscriber that is closed when ctx is done.
func (c *Controller) Subscribe(ctx context.Context) *Subscriber {
	sub := &Subscriber{h: &c.subs, ch: make(chan DeviceStatus, 10)}
	c.subs.register(sub)
	context.AfterFunc(ctx, sub.Close)
	return sub
}

// hub fans status updates out to subscribers
type hub struct {
	mu   sync.RWMutex
	subs []*Subscriber
}

func (h *hub) register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, sub)
}

func (h *hub) unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
	close(sub.ch)
}

// deliver sends while holding the read lock so unregister can't close a
// channel mid send.
func (h *hub) deliver(st DeviceStatus) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- st:
		default:
		}
	}
}
