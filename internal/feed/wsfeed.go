package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// wsEvent is the wire shape broadcast by the server hub. The payload carries
// only the affected table; consumers always refetch.
type wsEvent struct {
	Type  string `json:"type"`
	Table string `json:"table"`
}

// WSFeed is a Feed backed by the server's order-events WebSocket endpoint.
// Incoming events are fanned out through an internal registry, so Watch and
// unsubscription behave exactly like the in-process Registry.
type WSFeed struct {
	reg  *Registry
	conn *websocket.Conn
	done chan struct{}
}

// DialWSFeed connects to the order-events endpoint (ws://host/ws/orders) and
// starts the read loop.
func DialWSFeed(ctx context.Context, url string) (*WSFeed, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	f := &WSFeed{
		reg:  NewRegistry(),
		conn: conn,
		done: make(chan struct{}),
	}
	go f.readLoop()
	return f, nil
}

// Watch registers onChange for the table ("" for all orders).
func (f *WSFeed) Watch(table string, onChange func()) func() {
	return f.reg.Watch(table, onChange)
}

// Close tears the connection down; the read loop exits and no further
// notifications fire. Safe to call when the client navigates away.
func (f *WSFeed) Close() error {
	err := f.conn.Close()
	<-f.done
	return err
}

func (f *WSFeed) readLoop() {
	defer close(f.done)
	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPingHandler(func(appData string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return f.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Warn("order feed closed")
			}
			return
		}
		var ev wsEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		f.reg.Notify(ev.Table)
	}
}
