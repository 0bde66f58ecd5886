package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.SendBuffer = 4
	return opts
}

// echoServer upgrades every request and echoes each decoded message back
// through Send. Decode failures are reported as an "error" event.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewWSConnection(ws, testOptions())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go conn.WritePump(ctx)

		for {
			msg, err := conn.ReadMessage()
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				reply, _ := NewMessage("error", decodeErr.Error())
				_ = conn.Send(reply)
				continue
			}
			if err != nil {
				return
			}
			_ = conn.Send(msg)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)
	msg, err := Decode(frame)
	require.NoError(t, err)
	return msg
}

func TestWSConnection_RoundTrip(t *testing.T) {
	ws := dial(t, echoServer(t))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"move","data":{"room":"r1","move":"e4"}}`)))
	msg := readMessage(t, ws)
	assert.Equal(t, EventMove, msg.Event)
	assert.JSONEq(t, `{"room":"r1","move":"e4"}`, string(msg.Data))
}

func TestWSConnection_DecodeErrorKeepsConnection(t *testing.T) {
	ws := dial(t, echoServer(t))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, "error", readMessage(t, ws).Event)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"username"}`)))
	assert.Equal(t, EventUsername, readMessage(t, ws).Event)
}

func TestWSConnection_SendAfterClose(t *testing.T) {
	upgraded := make(chan *WSConnection, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- NewWSConnection(ws, testOptions())
	}))
	t.Cleanup(srv.Close)
	dial(t, srv)

	conn := <-upgraded
	t.Cleanup(func() { _ = conn.Terminate() })

	msg, err := NewMessage(EventCloseRoom, map[string]string{"roomId": "r1"})
	require.NoError(t, err)

	// No write pump is running, so the buffer fills up.
	for i := 0; i < testOptions().SendBuffer; i++ {
		require.NoError(t, conn.Send(msg))
	}
	assert.ErrorIs(t, conn.Send(msg), ErrBackpressure)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send(msg), ErrConnectionClosed)
}
