// Package feed streams committed transaction events to websocket clients.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"weapon-shop/internal/txn"
	"weapon-shop/pkg"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// events queued per client before it counts as too slow
	sendBuffer = 64
	// clients only send control frames
	maxMessageSize = 512
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	// zero means every avatar
	avatarID uuid.UUID
}

func (s *subscriber) wants(ev txn.Event) bool {
	return s.avatarID == uuid.Nil || s.avatarID == ev.AvatarID
}

type Hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader
	log      pkg.Logger

	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewHub(log pkg.Logger) *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:        log,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Serve upgrades the request and streams events until the client goes away
// or stops answering pings.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, avatarID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer), avatarID: avatarID}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(sub)
	}()

	h.readLoop(sub)
	h.drop(sub)
	<-done
	return nil
}

// readLoop discards client frames and keeps the read deadline moving while
// pongs arrive.
func (h *Hub) readLoop(sub *subscriber) {
	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop owns every write to the connection and closes it on exit.
func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Warn("failed to send event, dropping subscriber", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// removeLocked unregisters sub and closes its queue, which stops its writer.
func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.send)
}

// Publish queues events for every interested subscriber and never blocks on
// a client. A subscriber whose queue is full is dropped.
func (h *Hub) Publish(events []txn.Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
			continue
		}
		for sub := range h.subs {
			if !sub.wants(ev) {
				continue
			}
			select {
			case sub.send <- data:
			default:
				h.log.Warn("subscriber too slow, dropping", zap.Stringer("avatarID", sub.avatarID))
				h.removeLocked(sub)
			}
		}
	}
}
