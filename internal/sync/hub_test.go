package sync

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestHubBroadcastsToWebsocketClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/events", WSHandler(hub, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	if _, msg, err := ws.ReadMessage(); err != nil || !strings.Contains(string(msg), "welcome") {
		t.Fatalf("welcome: %s %v", msg, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().WSClients == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(Event{Type: EventWorksPromoted, Slugs: []string{"a"}})
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	if got.Type != EventWorksPromoted || len(got.Slugs) != 1 || got.At.IsZero() {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestNotifyIgnoresNilPublisher(t *testing.T) {
	Notify(nil, Event{Type: EventSiteChanged})
}
