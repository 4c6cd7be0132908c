package position

import (
	"log/slog"
	"sync"
)

const defaultSendQueueSize = 64

// Subscriber receives fixes for one device over a bounded queue.
//
// Design notes:
// - Fixes is intentionally NOT closed by the hub to keep Publish safe under concurrency.
// - Done signals the reader to stop; Close is idempotent.
// - A subscriber whose queue is full is dropped rather than allowed to stall Publish.
type Subscriber struct {
	Fixes chan Position

	done      chan struct{}
	closeOnce sync.Once
}

// Done returns a channel that is closed when the subscriber is shutting down.
func (s *Subscriber) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Close signals the subscriber to stop (idempotent).
func (s *Subscriber) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Hub fans newly stored fixes out to live subscribers, keyed by deviceId.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a subscriber for the given device.
func (h *Hub) Subscribe(deviceID string) *Subscriber {
	sub := &Subscriber{
		Fixes: make(chan Position, defaultSendQueueSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[deviceID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[deviceID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and signals it to stop.
func (h *Hub) Unsubscribe(deviceID string, sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.subs[deviceID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, deviceID)
		}
	}
	h.mu.Unlock()

	sub.Close()
}

// Publish delivers a fix to every live subscriber of its device. Subscribers that
// cannot keep up are dropped.
func (h *Hub) Publish(p Position) {
	h.mu.RLock()
	set := h.subs[p.DeviceID]
	targets := make([]*Subscriber, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.Fixes <- p:
		case <-sub.Done():
		default:
			if h.log != nil {
				h.log.Info("position.live.drop_slow_subscriber", "device_id", p.DeviceID)
			}
			h.Unsubscribe(p.DeviceID, sub)
		}
	}
}
