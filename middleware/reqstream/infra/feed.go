package infra

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedMessage é o JSON enviado aos clientes do EventFeed.
type FeedMessage struct {
	Kind   string    `json:"kind"`
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Method string    `json:"method,omitempty"`
	Path   string    `json:"path,omitempty"`
	At     time.Time `json:"at"`
}

// EventFeed transmite os eventos da sequência para clientes websocket.
// Cliente lento perde mensagens; nunca segura o caminho de descarte.
type EventFeed struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

const (
	feedBuffer       = 64
	feedWriteTimeout = 5 * time.Second
)

func NewEventFeed(logger *zap.Logger) *EventFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventFeed{
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

func (f *EventFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade já respondeu com o erro.
		f.logger.Debug("event feed: upgrade failed", zap.Error(err))
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, feedBuffer)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.logger.Debug("event feed: client connected", zap.String("remote", r.RemoteAddr))

	go c.writeLoop()

	// só lemos para detectar o fechamento pelo cliente.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	f.drop(c)
}

func (f *EventFeed) Observe(ev domain.Event) {
	msg := FeedMessage{
		Kind:   string(ev.Kind),
		ID:     ev.Context.ID,
		Source: ev.Context.Source,
		At:     ev.Context.At,
	}
	if req := ev.Context.Request; req != nil {
		msg.Method = req.Method()
		msg.Path = req.Path()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("event feed: marshal failed", zap.Error(err))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Clients retorna quantos clientes estão conectados.
func (f *EventFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close desconecta todos os clientes.
func (f *EventFeed) Close() {
	f.mu.Lock()
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()

	for _, c := range clients {
		f.drop(c)
	}
}

func (f *EventFeed) drop(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.clients, c)
	close(c.send)
	f.mu.Unlock()

	_ = c.conn.Close()
}

func (c *feedClient) writeLoop() {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(feedWriteTimeout))
}
