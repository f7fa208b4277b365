package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func waitSubscribers(t *testing.T, hub *Hub, sessionID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Subscribers(sessionID) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHub_DeliversProgressToSession(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close(context.Background())

	conn := dial(t, srv, "?socketId=abc")

	hello := readFrame(t, conn)
	assert.Equal(t, EventSession, hello.Event)
	assert.JSONEq(t, `{"id":"abc"}`, string(hello.Data))

	other := dial(t, srv, "?socketId=other")
	readFrame(t, other)

	waitSubscribers(t, hub, "abc", 1)
	require.NoError(t, hub.Publish(context.Background(), "abc", entity.ProgressEvent{Filename: "a.txt", ProcessedAlready: 42}))

	got := readFrame(t, conn)
	assert.Equal(t, entity.EventFileUpload, got.Event)
	assert.JSONEq(t, `{"processedAlready":42,"filename":"a.txt"}`, string(got.Data))

	require.NoError(t, other.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "another session must not receive the event")
}

func TestHub_GeneratesSessionID(t *testing.T) {
	hub := NewHub(HubConfig{ID: fixedID("generated")})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close(context.Background())

	conn := dial(t, srv, "")
	hello := readFrame(t, conn)
	assert.JSONEq(t, `{"id":"generated"}`, string(hello.Data))
}

func TestHub_RequiresSessionWithoutGenerator(t *testing.T) {
	hub := NewHub(HubConfig{})
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(HubConfig{})
	assert.NoError(t, hub.Publish(context.Background(), "nobody", entity.ProgressEvent{ProcessedAlready: 1}))
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close(context.Background())

	conn := dial(t, srv, "?session_id=abc")
	readFrame(t, conn)
	waitSubscribers(t, hub, "abc", 1)

	require.NoError(t, conn.Close())
	waitSubscribers(t, hub, "abc", 0)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?socketId=abc")
	readFrame(t, conn)
	waitSubscribers(t, hub, "abc", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	assert.ErrorIs(t, hub.Publish(context.Background(), "abc", entity.ProgressEvent{}), ErrHubClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(HubConfig{AllowedOrigins: []string{"http://drive.local"}})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?socketId=abc"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "http://any"))
	assert.True(t, originAllowed([]string{"*"}, "http://any"))
	assert.True(t, originAllowed([]string{"http://drive.local/"}, "http://DRIVE.local"))
	assert.True(t, originAllowed([]string{"http://drive.local"}, ""))
	assert.False(t, originAllowed([]string{"http://drive.local"}, "http://other"))
}

func TestClient_EnqueueDropsWhenFull(t *testing.T) {
	c := newClient(nil, 1)
	assert.True(t, c.enqueue([]byte("1")))
	assert.False(t, c.enqueue([]byte("2")))

	c.close()
	<-c.send
	assert.False(t, c.enqueue([]byte("3")))
}
