package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"commentgen/internal/middleware"
	"commentgen/internal/models"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readUpdate(t *testing.T, conn *websocket.Conn) models.StatusUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string              `json:"type"`
		Payload models.StatusUpdate `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != "status_update" {
		t.Errorf("Expected status_update, got %q", msg.Type)
	}
	return msg.Payload
}

func update(status string) models.WSMessage {
	return models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{GenerationID: "g1", Status: status},
	}
}

func TestHub_LocalDelivery(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "session=s1")
	waitFor(t, func() bool { return hub.connectionCount("s1") == 1 })

	hub.Publish(context.Background(), "s1", update(models.StatusGenerating))
	hub.Publish(context.Background(), "other", update(models.StatusFailed))
	hub.Publish(context.Background(), "s1", update(models.StatusCompleted))

	if got := readUpdate(t, conn).Status; got != models.StatusGenerating {
		t.Errorf("Expected generating first, got %q", got)
	}
	if got := readUpdate(t, conn).Status; got != models.StatusCompleted {
		t.Errorf("Expected completed second, got %q", got)
	}
}

func TestHub_RedisDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "session=s2")
	waitFor(t, func() bool {
		return mr.PubSubNumSub(channelPrefix + "s2")[channelPrefix+"s2"] == 1
	})

	// A second hub on the same Redis stands in for another replica.
	publisher := NewHub(rdb, nil)
	publisher.Publish(context.Background(), "s2", update(models.StatusCompleted))

	if got := readUpdate(t, conn).Status; got != models.StatusCompleted {
		t.Errorf("Expected completed, got %q", got)
	}
}

func TestHub_RedisDeliveryRightAfterConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	publisher := NewHub(rdb, nil)
	for i := 0; i < 20; i++ {
		session := fmt.Sprintf("fast-%d", i)
		conn := dial(t, srv, "session="+session)

		// No waiting for the subscription: the handshake implies it.
		publisher.Publish(context.Background(), session, update(models.StatusGenerating))

		if got := readUpdate(t, conn).Status; got != models.StatusGenerating {
			t.Fatalf("session %s: expected generating, got %q", session, got)
		}
		conn.Close()
	}
}

func TestHub_LocalDeliveryRightAfterConnect(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "session=s5")
	hub.Publish(context.Background(), "s5", update(models.StatusGenerating))

	if got := readUpdate(t, conn).Status; got != models.StatusGenerating {
		t.Errorf("Expected generating, got %q", got)
	}
}

func TestHub_RedisUnsubscribesWithLastConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	channel := channelPrefix + "s6"
	first := dial(t, srv, "session=s6")
	second := dial(t, srv, "session=s6")
	waitFor(t, func() bool { return hub.connectionCount("s6") == 2 })
	if n := mr.PubSubNumSub(channel)[channel]; n != 1 {
		t.Fatalf("Expected one shared subscription, got %d", n)
	}

	first.Close()
	waitFor(t, func() bool { return hub.connectionCount("s6") == 1 })
	if n := mr.PubSubNumSub(channel)[channel]; n != 1 {
		t.Fatalf("Expected the subscription to survive, got %d", n)
	}

	second.Close()
	waitFor(t, func() bool { return mr.PubSubNumSub(channel)[channel] == 0 })
}

func TestHub_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=s7"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %v", resp)
	}
	if n := hub.connectionCount("s7"); n != 0 {
		t.Errorf("Expected no registered connection, got %d", n)
	}
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "session=s3")
	waitFor(t, func() bool { return hub.connectionCount("s3") == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.connectionCount("s3") == 0 })
}

func TestHub_Rejects(t *testing.T) {
	auth := middleware.NewJWTAuth("secret")
	hub := NewHub(nil, auth)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	token, err := auth.GenerateAccessToken("browser", time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	otherPage, _ := auth.GenerateProgressToken("s9", time.Minute)
	ownPage, _ := auth.GenerateProgressToken("s8", time.Minute)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing session", "token=" + token, http.StatusBadRequest},
		{"missing token", "session=s4", http.StatusUnauthorized},
		{"bad token", "session=s4&token=nope", http.StatusUnauthorized},
		{"progress token for another session", "session=s4&token=" + otherPage, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + tc.query
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err == nil {
				t.Fatal("Expected dial to fail")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("Expected status %d, got %v", tc.status, resp)
			}
		})
	}

	conn := dial(t, srv, "session=s4&token="+token)
	waitFor(t, func() bool { return hub.connectionCount("s4") == 1 })
	conn.Close()

	page := dial(t, srv, "session=s8&token="+ownPage)
	waitFor(t, func() bool { return hub.connectionCount("s8") == 1 })
	page.Close()
}

func TestWSMessageEncoding(t *testing.T) {
	data, err := json.Marshal(update(models.StatusFailed))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"status":"failed"`) {
		t.Errorf("Unexpected encoding %s", data)
	}
}
