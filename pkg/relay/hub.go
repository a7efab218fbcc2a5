// Package relay fans realtime project events out to connected participants.
// Each project is a room; a subscriber that cannot keep up loses events
// rather than slowing down the publisher.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sitecraft/sitecraft/pkg/monitor"
)

type EventType string

const (
	// EventMessage carries a message that was already stored.
	EventMessage EventType = "message"
	// EventTyping is ephemeral and never stored.
	EventTyping EventType = "typing"
	// EventRead tells the sender that the receiver read the conversation.
	EventRead EventType = "read"
)

const DefaultQueueSize = 32

type Event struct {
	Type      EventType       `json:"type"`
	ProjectID uint            `json:"projectId"`
	SenderID  uint            `json:"senderId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// echoes reports whether the sender receives its own event.
func (e Event) echoes() bool {
	return e.Type != EventTyping
}

// Client is one subscription to a project room.
type Client struct {
	hub       *Hub
	projectID uint
	userID    uint
	send      chan Event
	closeOnce sync.Once
}

func (c *Client) ProjectID() uint { return c.projectID }
func (c *Client) UserID() uint    { return c.userID }

// Events is closed when the client leaves the room.
func (c *Client) Events() <-chan Event { return c.send }

// Leave removes the client from its room. It is safe to call more than once.
func (c *Client) Leave() { c.hub.Leave(c) }

type Hub struct {
	mu        sync.RWMutex
	rooms     map[uint]map[*Client]struct{}
	queueSize int
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{rooms: map[uint]map[*Client]struct{}{}, queueSize: queueSize}
}

// Join subscribes a user to a project room.
func (h *Hub) Join(projectID, userID uint) *Client {
	c := &Client{
		hub:       h,
		projectID: projectID,
		userID:    userID,
		send:      make(chan Event, h.queueSize),
	}
	h.mu.Lock()
	room, ok := h.rooms[projectID]
	if !ok {
		room = map[*Client]struct{}{}
		h.rooms[projectID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	monitor.RelayConnections.Inc()
	return c
}

func (h *Hub) Leave(c *Client) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		if room, ok := h.rooms[c.projectID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.projectID)
			}
		}
		close(c.send)
		h.mu.Unlock()

		monitor.RelayConnections.Dec()
	})
}

// Publish delivers ev to every client in the project room and returns how
// many queues accepted it. Typing events skip the sender.
func (h *Hub) Publish(projectID uint, ev Event) int {
	ev.ProjectID = projectID
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.rooms[projectID] {
		if !ev.echoes() && c.userID == ev.SenderID {
			continue
		}
		select {
		case c.send <- ev:
			delivered++
		default:
			monitor.RelayDropped.WithLabelValues(string(ev.Type)).Inc()
		}
	}
	return delivered
}

// PublishJSON marshals payload into the event before publishing it.
func (h *Hub) PublishJSON(projectID, senderID uint, typ EventType, payload any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	return h.Publish(projectID, Event{Type: typ, SenderID: senderID, Payload: raw}), nil
}

// Online returns the distinct users currently in a room.
func (h *Hub) Online(projectID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[uint]struct{}{}
	var out []uint
	for c := range h.rooms[projectID] {
		if _, ok := seen[c.userID]; ok {
			continue
		}
		seen[c.userID] = struct{}{}
		out = append(out, c.userID)
	}
	return out
}
