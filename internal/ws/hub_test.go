package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, table string) *Client {
	return &Client{
		hub:   hub,
		table: table,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "3")
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms["3"] == nil {
		t.Fatal("table room not created")
	}
	if !hub.rooms["3"][client] {
		t.Fatal("client not registered in table room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "3")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms["3"] != nil {
		t.Fatal("table room not cleaned up after last client unregistered")
	}
}

func TestBroadcastReachesTableAndFirehose(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tableClient := mockClient(hub, "3")
	otherClient := mockClient(hub, "7")
	firehoseClient := mockClient(hub, "")

	hub.register <- tableClient
	hub.register <- otherClient
	hub.register <- firehoseClient
	time.Sleep(10 * time.Millisecond)

	hub.OrderChanged("3")

	assertReceives := func(c *Client, who string) {
		t.Helper()
		select {
		case msg := <-c.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("%s: failed to unmarshal message: %v", who, err)
			}
			if received.Type != EventOrderChanged {
				t.Errorf("%s: type = %q, want %q", who, received.Type, EventOrderChanged)
			}
			if received.Table != "3" {
				t.Errorf("%s: table = %q, want %q", who, received.Table, "3")
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive the event", who)
		}
	}

	assertReceives(tableClient, "table client")
	assertReceives(firehoseClient, "firehose client")

	select {
	case <-otherClient.send:
		t.Fatal("client of an unrelated table received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastQuickSaleReachesFirehoseOnly(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tableClient := mockClient(hub, "3")
	firehoseClient := mockClient(hub, "")

	hub.register <- tableClient
	hub.register <- firehoseClient
	time.Sleep(10 * time.Millisecond)

	hub.OrderChanged("")

	select {
	case <-firehoseClient.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("firehose client did not receive the quick-sale event")
	}
	select {
	case <-tableClient.send:
		t.Fatal("table client received a quick-sale event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, table: "3", send: make(chan []byte)} // no buffer
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.OrderChanged("3")
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms["3"] != nil {
		t.Fatal("client with a full send buffer was not dropped")
	}
}
