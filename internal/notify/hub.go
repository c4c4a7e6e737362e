package notify

import (
	"context"
	"log"
	"sync"
)

// Hub pushes events to live subscribers, such as open SSE streams. A
// subscriber receives events that name its user or any channel it joined.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[int]*Subscription), buffer: buffer}
}

// Subscription is one live listener.
type Subscription struct {
	id       int
	hub      *Hub
	userID   string
	channels map[string]struct{}
	events   chan Event
	once     sync.Once
}

// ID identifies the subscription within its hub.
func (s *Subscription) ID() int { return s.id }

// Events yields delivered events until the subscription is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

// Join adds a broadcast channel to the subscription.
func (s *Subscription) Join(channel string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.channels[channel] = struct{}{}
}

// Leave removes a broadcast channel from the subscription.
func (s *Subscription) Leave(channel string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.channels, channel)
}

// Close detaches the subscription and closes its event stream.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		close(s.events)
		s.hub.mu.Unlock()
	})
}

// Subscribe registers a listener for userID and the given channels.
func (h *Hub) Subscribe(userID string, channels ...string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:       h.nextID,
		hub:      h,
		userID:   userID,
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan Event, h.buffer),
	}
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}
	h.subs[sub.id] = sub
	return sub
}

// Lookup returns the live subscription id if it belongs to userID.
func (h *Hub) Lookup(id int, userID string) (*Subscription, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subs[id]
	if !ok || sub.userID != userID {
		return nil, false
	}
	return sub, true
}

// Deliver fans ev out to matching subscribers. Slow subscribers with a full
// buffer miss the event.
func (h *Hub) Deliver(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			log.Printf("hub: subscriber %d (user=%s) is full, %s dropped", sub.id, sub.userID, ev.Kind)
		}
	}
	return nil
}

func (s *Subscription) wants(ev Event) bool {
	for _, id := range ev.UserIDs {
		if id == s.userID {
			return true
		}
	}
	if ev.Channel == "" {
		return false
	}
	_, ok := s.channels[ev.Channel]
	return ok
}

// Subscribers reports how many listeners are attached.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
