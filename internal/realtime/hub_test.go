package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, "admin"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != "connection" {
		t.Fatalf("first message type = %q, want connection", welcome.Type)
	}

	hub.Broadcast("order_placed", map[string]string{"order_number": "KS-1"})

	var got Message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Type != "order_placed" {
		t.Errorf("event type = %q, want order_placed", got.Type)
	}
	data, _ := got.Data.(map[string]interface{})
	if data["order_number"] != "KS-1" {
		t.Errorf("payload = %v", got.Data)
	}
}

func TestBroadcastWithoutRunnerDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast("tick", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with a full queue")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://admin.kidshop.ge"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Error("foreign origin allowed")
	}
	req.Header.Set("Origin", "https://admin.kidshop.ge")
	if !check(req) {
		t.Error("configured origin rejected")
	}
}

func TestSlowClientDroppedThenPingDoesNotPanic(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Buffer of one: the welcome frame fills it, so the next broadcast drops the client
	client := &Client{userID: "slow-tab", send: make(chan Message, 1), hub: hub}
	hub.register <- client
	hub.Broadcast("order_placed", map[string]string{"order_number": "KS-1"})

	isClosed := func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.closed
	}
	deadline := time.Now().Add(2 * time.Second)
	for !isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("slow client was never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.ConnectedClients(); n != 0 {
		t.Errorf("connected clients = %d, want 0", n)
	}

	if client.trySend(Message{Type: "pong"}) {
		t.Error("send to a dropped client reported success")
	}

	// The buffered welcome drains, then the channel reports closed
	<-client.send
	if _, ok := <-client.send; ok {
		t.Error("send channel still open after drop")
	}
}
