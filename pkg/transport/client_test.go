package transport

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the server protocol for the client.
type fakeServer struct {
	t       *testing.T
	handle  func(conn *websocket.Conn, req request)
	srv     *httptest.Server
	accepts atomic.Int32
}

func newFakeServer(t *testing.T, handle func(conn *websocket.Conn, req request)) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t, handle: handle}
	upgrader := websocket.Upgrader{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.accepts.Add(1)
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			n := int(msg[0])
			if string(msg[1:1+n]) != MimeType {
				return
			}
			var req request
			if err := json.Unmarshal(msg[1+n:], &req); err != nil {
				return
			}
			fs.handle(conn, req)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func respond(conn *websocket.Conn, id string, code int, data any) {
	msg := map[string]any{
		"requestId": id,
		"status":    map[string]any{"code": code, "message": "", "attributes": map[string]any{}},
		"result":    map[string]any{"data": data, "meta": map[string]any{}},
	}
	body, _ := json.Marshal(msg)
	_ = conn.WriteMessage(websocket.TextMessage, body)
}

func TestClient_Execute(t *testing.T) {
	seen := make(chan request, 1)
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) {
		seen <- req
		respond(conn, req.RequestID, StatusSuccess, []any{
			map[string]any{"gizmo_var_1": map[string]any{"id": 7, "label": "person"}},
		})
	})
	c := New(Options{URL: fs.url()})
	defer c.Close()

	rows, err := c.Execute(context.Background(), "g.V(x)", map[string]any{"x": 7})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0].(map[string]any)["gizmo_var_1"].(map[string]any)
	assert.Equal(t, int64(7), row["id"])
	got := <-seen
	assert.Equal(t, "eval", got.Op)
	assert.Equal(t, "g.V(x)", got.Args["gremlin"])
	assert.Equal(t, "gremlin-groovy", got.Args["language"])
	assert.NotEmpty(t, got.RequestID)
}

func TestClient_PartialContent(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) {
		respond(conn, req.RequestID, StatusPartialContent, []any{1, 2})
		respond(conn, req.RequestID, StatusPartialContent, []any{3})
		respond(conn, req.RequestID, StatusSuccess, []any{4.5})
	})
	c := New(Options{URL: fs.url()})
	defer c.Close()

	rows, err := c.Execute(context.Background(), "g.V().count()", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), 4.5}, rows)
}

func TestClient_NoContent(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) {
		respond(conn, req.RequestID, StatusNoContent, nil)
	})
	c := New(Options{URL: fs.url()})
	defer c.Close()

	rows, err := c.Execute(context.Background(), "g.V(1).drop().iterate()", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_ServerErrorKeepsConnection(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) {
		if strings.Contains(req.Args["gremlin"].(string), "boom") {
			msg := map[string]any{
				"requestId": req.RequestID,
				"status":    map[string]any{"code": 597, "message": "gizmo_non_unique"},
				"result":    map[string]any{"data": nil},
			}
			body, _ := json.Marshal(msg)
			_ = conn.WriteMessage(websocket.TextMessage, body)
			return
		}
		respond(conn, req.RequestID, StatusSuccess, []any{"ok"})
	})
	c := New(Options{URL: fs.url()})
	defer c.Close()

	_, err := c.Execute(context.Background(), "boom", nil)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 597, se.Code)
	assert.Contains(t, err.Error(), "gizmo_non_unique")

	rows, err := c.Execute(context.Background(), "fine", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"ok"}, rows)
	assert.Equal(t, int32(1), fs.accepts.Load())
}

func TestClient_Authentication(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) {
		switch req.Op {
		case "eval":
			respond(conn, req.RequestID, StatusAuthenticate, nil)
		case "authentication":
			token, _ := base64.StdEncoding.DecodeString(req.Args["sasl"].(string))
			if string(token) != "\x00stephen\x00password" || req.Args["saslMechanism"] != "PLAIN" {
				respond(conn, req.RequestID, 401, nil)
				return
			}
			respond(conn, req.RequestID, StatusSuccess, []any{true})
		}
	})

	c := New(Options{URL: fs.url(), Username: "stephen", Password: "password"})
	defer c.Close()
	rows, err := c.Execute(context.Background(), "g.V()", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, rows)

	anon := New(Options{URL: fs.url()})
	defer anon.Close()
	_, err = anon.Execute(context.Background(), "g.V()", nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestClient_ContextCancelDropsConnection(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) {
		if req.Args["gremlin"] == "slow" {
			return
		}
		respond(conn, req.RequestID, StatusSuccess, []any{"fast"})
	})
	c := New(Options{URL: fs.url()})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Execute(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	rows, err := c.Execute(context.Background(), "quick", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"fast"}, rows)
	assert.Equal(t, int32(2), fs.accepts.Load())
}

func TestClient_DialRetriesExhausted(t *testing.T) {
	c := New(Options{
		URL:           "ws://127.0.0.1:1/gremlin",
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
		DialTimeout:   100 * time.Millisecond,
	})
	defer c.Close()

	_, err := c.Execute(context.Background(), "g.V()", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport: dial")
}

func TestClient_Closed(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/gremlin"})
	require.NoError(t, c.Close())
	_, err := c.Execute(context.Background(), "g.V()", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDryRun(t *testing.T) {
	d := &DryRun{Reply: []any{"x"}}
	params := map[string]any{"p": 1}
	rows, err := d.Execute(context.Background(), "g.V(p)", params)
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, rows)

	params["p"] = 2
	reqs := d.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 1, reqs[0].Params["p"])
}

func TestEncodeFrame(t *testing.T) {
	frame, err := encodeFrame(evalRequest("id-1", "g.V()", nil))
	require.NoError(t, err)
	assert.Equal(t, byte(len(MimeType)), frame[0])
	assert.Equal(t, MimeType, string(frame[1:1+len(MimeType)]))

	var req request
	require.NoError(t, json.Unmarshal(frame[1+len(MimeType):], &req))
	assert.Equal(t, map[string]any{}, req.Args["bindings"])
}
