package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tahcohcat/pizzeria-ops/internal/notify"
)

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients: want=%d got=%d", n, h.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDeliversEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	payload := map[string]any{"employee_id": 7, "new_level": 3}
	if err := hub.Notify(ctx, notify.EventLevelUps, []any{payload}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env notify.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event != notify.EventLevelUps {
		t.Fatalf("event: want=%s got=%s", notify.EventLevelUps, env.Event)
	}

	var data []map[string]int
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data) != 1 || data[0]["new_level"] != 3 {
		t.Fatalf("unexpected data %s", env.Data)
	}
}

func TestHubClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// Fill the buffer so the closed hub is the only ready case.
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- nil
	}
	if err := hub.Notify(context.Background(), notify.EventSaleRecorded, nil); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("want=%v got=%v", ErrHubClosed, err)
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub([]string{"https://pizzeria.example"})

	ok := httptest.NewRequest("GET", "/ws", nil)
	ok.Header.Set("Origin", "https://pizzeria.example")
	if !hub.upgrader.CheckOrigin(ok) {
		t.Fatal("expected allowed origin to pass")
	}

	bad := httptest.NewRequest("GET", "/ws", nil)
	bad.Header.Set("Origin", "https://evil.example")
	if hub.upgrader.CheckOrigin(bad) {
		t.Fatal("expected unknown origin to be rejected")
	}
}
