// Package realtime рассылает события каталога подписчикам по WebSocket.
//
// Клиент списка академий получает новые академии своего штата и города,
// клиент страницы академии получает её новые оценки и комментарии.
// Объединение с уже загруженными данными и удаление дублей выполняет клиент.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/fitfinder/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Filter определяет, какие события получает подписчик.
type Filter struct {
	GymID string
	State string
	City  string
}

// Matches сообщает, что событие подходит подписчику.
func (f Filter) Matches(ev events.Event) bool {
	if f.GymID != "" {
		return ev.GymID == f.GymID &&
			(ev.Kind == events.KindRatingCreated || ev.Kind == events.KindCommentCreated)
	}
	if ev.Kind != events.KindGymCreated {
		return false
	}
	if f.State != "" && !strings.EqualFold(strings.TrimSpace(f.State), ev.State) {
		return false
	}
	if f.City != "" && !strings.EqualFold(strings.TrimSpace(f.City), ev.City) {
		return false
	}
	return true
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	filter Filter
	send   chan []byte
}

// Hub хранит подключения и рассылает им события.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan events.Event
	done       chan struct{}

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub создаёт хаб. Пустой allowedOrigins разрешает любой Origin.
func NewHub(log *zap.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan events.Event, 256),
		done:       make(chan struct{}),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run обслуживает подключения до отмены контекста.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) deliver(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.filter.Matches(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("drop slow websocket client", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// Publish ставит событие в очередь рассылки. При переполнении очереди событие теряется.
func (h *Hub) Publish(ev events.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("broadcast queue full, event dropped",
			zap.String("kind", string(ev.Kind)),
			zap.String("entity_id", ev.EntityID),
		)
	}
}

// ClientCount возвращает число активных подключений.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve переводит запрос на WebSocket и подписывает клиента с фильтром f.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, f Filter) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		hub:    h,
		conn:   conn,
		filter: f,
		send:   make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return conn.Close()
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump читает служебные кадры, чтобы получать pong и закрытие соединения.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
