package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestHub_BroadcastsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	a := dialHub(t, h)
	b := dialHub(t, h)
	waitFor(t, func() bool { return h.clientCount() == 2 })

	Publish(ctx, h, EventNewTarget, map[string]int{"targetNumber": 42})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		if ev.Type != EventNewTarget {
			t.Errorf("expected %s, got %s", EventNewTarget, ev.Type)
		}
		var payload map[string]int
		json.Unmarshal(ev.Payload, &payload)
		if payload["targetNumber"] != 42 {
			t.Errorf("expected target 42, got %v", payload)
		}
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub()
	go h.Run(ctx)

	conn := dialHub(t, h)
	waitFor(t, func() bool { return h.clientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return h.clientCount() == 0 })
}

func TestPublish_NilPublisherIsNoop(t *testing.T) {
	Publish(context.Background(), nil, EventSlideResult, map[string]bool{"isWinner": true})
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	h := NewHub() // Run not started: nothing drains the buffer.
	for i := 0; i < cap(h.broadcast)+10; i++ {
		Publish(context.Background(), h, EventSlideResult, i)
	}
	if len(h.broadcast) != cap(h.broadcast) {
		t.Fatalf("expected full buffer, got %d/%d", len(h.broadcast), cap(h.broadcast))
	}
}

func TestRedisRelay_FansOutAcrossHubs(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := "rewards:test:" + time.Now().Format("150405.000000")
	h1, h2 := NewHub(), NewHub()
	go h1.Run(ctx)
	go h2.Run(ctx)
	r1 := NewRedisRelay(rdb, channel, h1)
	r2 := NewRedisRelay(rdb, channel, h2)
	go r1.Run(ctx)
	go r2.Run(ctx)

	conn := dialHub(t, h2)
	waitFor(t, func() bool { return h2.clientCount() == 1 })
	waitFor(t, func() bool {
		n, _ := rdb.PubSubNumSub(ctx, channel).Result()
		return n[channel] == 2
	})

	// Published on instance 1, observed on instance 2.
	Publish(ctx, r1, EventDrawCompleted, map[string]string{"lotteryId": "l1"})
	ev := readEvent(t, conn)
	if ev.Type != EventDrawCompleted {
		t.Errorf("expected %s, got %s", EventDrawCompleted, ev.Type)
	}
}
