package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PublishFiltersByTopic(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	all := dial(t, srv, "")
	onlyB := dial(t, srv, "?topic=b")
	require.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 10*time.Millisecond)

	h.Publish("a", []byte(`{"run":"a"}`))
	h.Publish("b", []byte(`{"run":"b"}`))

	_ = all.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := all.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"run":"a"}`, string(msg))
	_, msg, err = all.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"run":"b"}`, string(msg))

	_ = onlyB.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err = onlyB.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"run":"b"}`, string(msg))
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.Close())
	assert.Equal(t, 0, h.Len())

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
