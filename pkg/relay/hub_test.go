package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		return ev, ok
	case <-time.After(time.Second):
		return Event{}, false
	}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestPublishRooms(t *testing.T) {
	h := NewHub(4)
	alice := h.Join(1, 10)
	bob := h.Join(1, 20)
	eve := h.Join(2, 30)
	defer alice.Leave()
	defer bob.Leave()
	defer eve.Leave()

	n, err := h.PublishJSON(1, 10, EventMessage, map[string]string{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "messages reach the sender too")

	ev, ok := receive(t, bob)
	require.True(t, ok)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, uint(1), ev.ProjectID)
	assert.JSONEq(t, `{"content":"hi"}`, string(ev.Payload))
	assert.False(t, ev.At.IsZero())
	_, ok = receive(t, alice)
	require.True(t, ok)

	assertQuiet(t, eve)
}

func TestTypingIsNotEchoed(t *testing.T) {
	h := NewHub(4)
	alice := h.Join(1, 10)
	bob := h.Join(1, 20)
	defer alice.Leave()
	defer bob.Leave()

	assert.Equal(t, 1, h.Publish(1, Event{Type: EventTyping, SenderID: 10}))
	ev, ok := receive(t, bob)
	require.True(t, ok)
	assert.Equal(t, EventTyping, ev.Type)
	assert.Equal(t, uint(10), ev.SenderID)
	assertQuiet(t, alice)
}

func TestFullQueueDrops(t *testing.T) {
	h := NewHub(2)
	slow := h.Join(1, 10)
	defer slow.Leave()

	for i := 0; i < 5; i++ {
		h.Publish(1, Event{Type: EventMessage, SenderID: 20})
	}
	assert.Len(t, slow.Events(), 2)
}

func TestLeave(t *testing.T) {
	h := NewHub(2)
	c := h.Join(1, 10)
	other := h.Join(1, 10)
	assert.Equal(t, []uint{10}, h.Online(1))

	c.Leave()
	c.Leave()
	_, ok := <-c.Events()
	assert.False(t, ok)
	assert.Equal(t, 1, h.Publish(1, Event{Type: EventMessage}))

	other.Leave()
	assert.Empty(t, h.Online(1))
	assert.Zero(t, h.Publish(1, Event{Type: EventMessage}))
}

func TestServeWebsocket(t *testing.T) {
	h := NewHub(8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := strconv.Atoi(r.URL.Query().Get("user"))
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Serve(context.Background(), ws, h.Join(1, uint(uid)))
	}))
	defer srv.Close()

	dial := func(user string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
		ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return ws
	}
	alice := dial("10")
	defer alice.Close()
	bob := dial("20")
	defer bob.Close()

	require.Eventually(t, func() bool { return len(h.Online(1)) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]string{"type": "typing"}))
	var ev Event
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, bob.ReadJSON(&ev))
	assert.Equal(t, EventTyping, ev.Type)
	assert.Equal(t, uint(10), ev.SenderID)

	h.Publish(1, Event{Type: EventMessage, SenderID: 20})
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, alice.ReadJSON(&ev))
	assert.Equal(t, EventMessage, ev.Type, "alice never sees her own typing event")

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool { return len(h.Online(1)) == 1 }, time.Second, 10*time.Millisecond)
}
