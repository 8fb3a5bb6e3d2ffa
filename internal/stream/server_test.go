package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestHub(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestBroadcastReachesObserver(t *testing.T) {
	s, wsURL := startTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for registration before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Broadcast(map[string]string{"category": "websocket", "url": "wss://feed.test/odds"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["url"] != "wss://feed.test/odds" {
		t.Errorf("got %v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
	if body["clients"] != float64(0) {
		t.Errorf("clients = %v, want 0", body["clients"])
	}
}

func TestBroadcastWithNoObserversDoesNotBlock(t *testing.T) {
	s, _ := startTestHub(t)
	for i := 0; i < 500; i++ {
		s.Broadcast(map[string]int{"i": i})
	}
	// Reaching here without deadlock is the assertion.
}
