// Package broadcast delivers room events to connected participants.
package broadcast

import (
	"context"
	"sync"

	"github.com/park285/chessroom/pkg/roomdto"
)

// Subscriber is one connected client. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(ev roomdto.Event)
}

// Publisher fans an event out to every participant of a room.
type Publisher interface {
	Publish(ctx context.Context, room string, ev roomdto.Event) error
	// PublishExcept skips the subscriber with id skip.
	PublishExcept(ctx context.Context, room, skip string, ev roomdto.Event) error
}

// Hub tracks subscribers per room in this process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Subscriber)}
}

func (h *Hub) Subscribe(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[string]Subscriber)
		h.rooms[room] = subs
	}
	subs[s.ID()] = s
}

func (h *Hub) Unsubscribe(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[room]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// UnsubscribeAll drops id from every room, returning the rooms it left.
func (h *Hub) UnsubscribeAll(id string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var left []string
	for room, subs := range h.rooms {
		if _, ok := subs[id]; ok {
			delete(subs, id)
			left = append(left, room)
			if len(subs) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	return left
}

// CloseRoom forgets every subscription to room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	delete(h.rooms, room)
	h.mu.Unlock()
}

func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Publish(ctx context.Context, room string, ev roomdto.Event) error {
	return h.PublishExcept(ctx, room, "", ev)
}

func (h *Hub) PublishExcept(_ context.Context, room, skip string, ev roomdto.Event) error {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.rooms[room]))
	for id, s := range h.rooms[room] {
		if id != skip {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.Deliver(ev)
	}
	return nil
}
