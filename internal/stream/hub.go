// Package stream pushes discussion events to WebSocket subscribers.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Hub fans events out to the subscribers of each discussion.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan discussion.Event
}

// NewHub creates an empty Hub.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:  log.WithField("component", "stream"),
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish delivers ev to every subscriber of its discussion. Subscribers
// that cannot keep up are dropped rather than blocking the publisher.
func (h *Hub) Publish(ev discussion.Event) {
	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.subs[ev.DiscussionID] {
		select {
		case sub.send <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.WithField("discussion", ev.DiscussionID).Warn("dropping slow subscriber")
		h.remove(ev.DiscussionID, sub)
	}
}

// Subscribers reports how many connections follow a discussion.
func (h *Hub) Subscribers(discussionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[discussionID])
}

// Serve upgrades the request and streams discussionID's events until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, discussionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan discussion.Event, sendBuffer)}
	h.add(discussionID, sub)
	log := h.log.WithFields(logrus.Fields{"discussion": discussionID, "remote": r.RemoteAddr})
	log.Debug("subscriber joined")

	go h.writePump(sub)
	h.readPump(discussionID, sub)
	log.Debug("subscriber left")
}

func (h *Hub) add(discussionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[discussionID] == nil {
		h.subs[discussionID] = make(map[*subscriber]struct{})
	}
	h.subs[discussionID][sub] = struct{}{}
}

func (h *Hub) remove(discussionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[discussionID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.subs, discussionID)
	}
}

// readPump discards client messages; it exists to notice disconnects and
// answer pings.
func (h *Hub) readPump(discussionID string, sub *subscriber) {
	defer func() {
		h.remove(discussionID, sub)
		sub.conn.Close()
	}()

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
