package inspector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestServerPushesSnapshots(t *testing.T) {
	calls := 0
	snap := func() any {
		calls++
		return map[string]int{"calls": calls}
	}

	s := NewServer("", "/ws", 20*time.Millisecond, snap, nil)

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleConnect)
	httpSrv := httptest.NewServer(mux)
	defer httpSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.pushLoop(ctx)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("expected an initial snapshot push, got error: %v", err)
	}
}

func TestServerClientCountTracksConnections(t *testing.T) {
	snap := func() any { return map[string]int{"x": 1} }
	s := NewServer("", "/ws", time.Hour, snap, nil)

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleConnect)
	httpSrv := httptest.NewServer(mux)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := s.ClientCount(); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond)
	if got := s.ClientCount(); got != 0 {
		t.Fatalf("ClientCount after close = %d, want 0", got)
	}
}
