package http

import (
	"sync"

	"game-session-service/internal/app"
)

type roomKey struct {
	accessCode string
	audience   app.Audience
}

type subscriber struct {
	events chan app.Event
}

// Hub is the in-process fan-out: each connection subscribes to one audience
// room of one session and receives every event broadcast to it. Slow readers
// lose their oldest queued event rather than blocking the whole room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[roomKey]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[roomKey]map[*subscriber]struct{})}
}

// Subscribe registers a listener on a room. The returned cancel func must be
// called on disconnect; it closes the event channel.
func (h *Hub) Subscribe(accessCode string, audience app.Audience) (<-chan app.Event, func()) {
	key := roomKey{accessCode: accessCode, audience: audience}
	sub := &subscriber{events: make(chan app.Event, 32)}

	h.mu.Lock()
	room, ok := h.rooms[key]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.rooms[key] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if room, ok := h.rooms[key]; ok {
			if _, member := room[sub]; member {
				delete(room, sub)
				close(sub.events)
				if len(room) == 0 {
					delete(h.rooms, key)
				}
			}
		}
		h.mu.Unlock()
	}
	return sub.events, cancel
}

// Broadcast implements app.Broadcaster.
func (h *Hub) Broadcast(accessCode string, audience app.Audience, event app.Event) {
	key := roomKey{accessCode: accessCode, audience: audience}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[key] {
		select {
		case sub.events <- event:
		default:
			// Full buffer: drop the oldest event to make room for the newest.
			select {
			case <-sub.events:
			default:
			}
			select {
			case sub.events <- event:
			default:
			}
		}
	}
}
