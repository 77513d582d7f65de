/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	eventNewWish = "new_wish"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
	publishBuffer  = 64
)

// Event is pushed to every display client.
type Event struct {
	Type string     `json:"type"`
	Wish PublicWish `json:"wish"`
}

// wsConn is the part of a websocket connection the hub writes to.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one connected display client.
type Subscriber struct {
	conn wsConn
	send chan []byte
}

// BroadcastHub fans events out to every connected display client. The set of
// subscribers is owned by run; everything else talks to it over channels.
//
// Delivery is best effort: a subscriber whose connection fails, or whose send
// queue is full, is dropped and never retried.
type BroadcastHub struct {
	cfg *Config

	subscribers map[*Subscriber]bool

	register  chan *Subscriber
	unreg     chan *Subscriber
	broadcast chan []byte
	done      chan struct{}

	count atomic.Int64
}

func newBroadcastHub(cfg *Config) *BroadcastHub {
	return &BroadcastHub{
		cfg:         cfg,
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unreg:       make(chan *Subscriber),
		broadcast:   make(chan []byte, publishBuffer),
		done:        make(chan struct{}),
	}
}

func (h *BroadcastHub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case s := <-h.register:
			h.subscribers[s] = true
			h.updateCount()
			logf(h.cfg, "HUB: Display connected, %d subscribed", len(h.subscribers))

		case s := <-h.unreg:
			if h.removeLocked(s) {
				logf(h.cfg, "HUB: Display disconnected, %d subscribed", len(h.subscribers))
			}

		case msg := <-h.broadcast:
			broadcastMessagesTotal.Inc()
			for s := range h.subscribers {
				select {
				case s.send <- msg:
				default:
					broadcastDroppedTotal.Inc()
					h.removeLocked(s)
				}
			}

		case <-ctx.Done():
			for s := range h.subscribers {
				h.removeLocked(s)
			}
			return
		}
	}
}

// removeLocked must only be called from run.
func (h *BroadcastHub) removeLocked(s *Subscriber) bool {
	if _, ok := h.subscribers[s]; !ok {
		return false
	}

	delete(h.subscribers, s)
	close(s.send)
	h.updateCount()

	return true
}

func (h *BroadcastHub) updateCount() {
	h.count.Store(int64(len(h.subscribers)))
	subscribersGauge.Set(float64(len(h.subscribers)))
}

// Subscribe registers conn and starts writing events to it. It returns nil
// if the hub has stopped, in which case conn is closed.
func (h *BroadcastHub) Subscribe(conn wsConn) *Subscriber {
	s := &Subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- s:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go s.writePump(h)

	return s
}

// Unsubscribe removes s. Calling it more than once is harmless.
func (h *BroadcastHub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}

	select {
	case h.unreg <- s:
	case <-h.done:
	}
}

// Publish serialises event once and queues it for every subscriber. Events
// reach each subscriber in the order Publish was called.
func (h *BroadcastHub) Publish(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	}

	return nil
}

// Count returns the number of connected subscribers.
func (h *BroadcastHub) Count() int {
	return int(h.count.Load())
}

func (s *Subscriber) writePump(h *BroadcastHub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				broadcastDroppedTotal.Inc()
				h.Unsubscribe(s)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Unsubscribe(s)
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveEvents upgrades a display client and keeps it subscribed until it
// goes away. Anything the client sends is ignored.
func serveEvents(cfg *Config, hub *BroadcastHub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade from %s: %v", realIP(r), err)
			return
		}

		s := hub.Subscribe(conn)
		if s == nil {
			return
		}
		defer hub.Unsubscribe(s)

		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
