package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitecraft/sitecraft/pkg/logutils"
)

const (
	// WriteTimeout bounds a single frame write.
	WriteTimeout = 10 * time.Second
	// PongWait is how long the peer may stay silent before it is dropped.
	PongWait = 60 * time.Second
	// PingPeriod must be shorter than PongWait.
	PingPeriod = PongWait * 9 / 10

	maxFrameSize = 4096
)

// inbound is what a browser may send over the socket. Chat messages go
// through the REST API so they are stored before they are relayed.
type inbound struct {
	Type EventType `json:"type"`
}

// Serve pumps events between the websocket and the client until either side
// goes away, then leaves the room and closes the connection.
func Serve(ctx context.Context, ws *websocket.Conn, c *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ws.Close()
	defer c.Leave()

	go func() {
		defer cancel()
		readPump(ws, c)
	}()
	writePump(ctx, ws, c)
}

func readPump(ws *websocket.Conn, c *Client) {
	l := logutils.Log.WithFields(logutils.Fields{"project": c.projectID, "user": c.userID})
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Debugf("websocket read: %v", err)
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			l.Debugf("ignore malformed frame: %v", err)
			continue
		}
		if msg.Type == EventTyping {
			c.hub.Publish(c.projectID, Event{Type: EventTyping, SenderID: c.userID})
		}
	}
}

func writePump(ctx context.Context, ws *websocket.Conn, c *Client) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(WriteTimeout))
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logutils.Log.Debugf("websocket write: %v", err)
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				return
			}
		}
	}
}
