package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/coordinator"
	"marketscanner/pkg/logger"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	h := NewHub(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	h, srv := startHub(t)

	all := dial(t, srv, "")
	filtered := dial(t, srv, "?workflow=macro_overview")
	require.Eventually(t, func() bool { return h.Subscribers() == 2 }, time.Second, 10*time.Millisecond)

	h.Broadcast(&coordinator.WorkflowResult{ID: "r1", Workflow: "market_pipeline", Confidence: 0.7})
	h.Broadcast(&coordinator.WorkflowResult{ID: "r2", Workflow: "macro_overview", Confidence: 0.4})

	first := readEvent(t, all)
	assert.Equal(t, EventWorkflowCompleted, first.Type)
	payload, ok := first.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "r1", payload["id"])
	assert.Equal(t, "r2", readEvent(t, all).Payload.(map[string]interface{})["id"])

	// the filtered client only sees its workflow
	only := readEvent(t, filtered)
	assert.Equal(t, "r2", only.Payload.(map[string]interface{})["id"])
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	h, srv := startHub(t)

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := NewHub(logger.Nop()) // Run is never started

	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize*2; i++ {
			h.Broadcast(&coordinator.WorkflowResult{Workflow: "market_pipeline"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
}
