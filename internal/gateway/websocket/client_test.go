package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	hub := NewHub()
	client := NewClient(hub, nil)

	assert.Same(t, hub, client.hub)
	assert.NotNil(t, client.sessions)
	assert.NotNil(t, client.send)
	assert.NotEmpty(t, client.id)
	assert.False(t, client.connectedAt.IsZero())
}

func TestHandleMessageSubscribeAndPing(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "c1")

	data, _ := json.Marshal(WSMessage{Type: TypeSubscribe, Session: "s1"})
	client.handleMessage(data)
	assert.True(t, client.sessions["s1"])

	data, _ = json.Marshal(WSMessage{Type: TypePing})
	client.handleMessage(data)

	select {
	case response := <-client.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(response, &msg))
		assert.Equal(t, TypePong, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("no pong received")
	}
}

func TestHandleMessageInvalidJSON(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	client.handleMessage([]byte("{not json"))

	select {
	case response := <-client.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(response, &msg))
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, "INVALID_MESSAGE", msg.Code)
	case <-time.After(time.Second):
		t.Fatal("no error message received")
	}
}

func TestHandleMessageApprovalResponse(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	var gotID string
	hub.SetApprovalHandler(func(requestID string, approved, remember bool, message string) error {
		gotID = requestID
		return nil
	})

	data, _ := json.Marshal(WSMessage{Type: TypeApprovalResponse, RequestID: "req-1", Approved: true})
	client.handleMessage(data)
	assert.Equal(t, "req-1", gotID)

	// Missing request_id is rejected.
	data, _ = json.Marshal(WSMessage{Type: TypeApprovalResponse, Approved: true})
	client.handleMessage(data)

	select {
	case response := <-client.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(response, &msg))
		assert.Equal(t, TypeError, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("no error message received")
	}
}

func TestHandleMessageChatStreamsEvents(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "c1")

	hub.SetChatHandler(func(sessionID, message string) (<-chan []byte, error) {
		out := make(chan []byte, 2)
		out <- []byte(`{"type":"stream","delta":"hi"}`)
		out <- []byte(`{"type":"done"}`)
		close(out)
		return out, nil
	})

	data, _ := json.Marshal(WSMessage{Type: TypeChat, Message: "hello", Session: "s1"})
	client.handleMessage(data)

	var received []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-client.send:
			received = append(received, string(ev))
		case <-time.After(time.Second):
			t.Fatal("chat events not streamed")
		}
	}
	assert.Contains(t, received[0], "stream")
	assert.Contains(t, received[1], "done")
}

func TestServeWsRoundTrip(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: TypePing}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypePong, msg.Type)
}
