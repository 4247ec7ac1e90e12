package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"upbitwatch/internal/upbit/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Broadcaster pushes every UpdateEvent to the connected websocket viewers.
// Viewers only receive; anything they send is discarded.
type Broadcaster struct {
	upgrader websocket.Upgrader
	replay   func() (model.UpdateEvent, bool)
	buffer   int
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	lastCycle uint64
}

// NewBroadcaster creates a Broadcaster. replay, when non-nil, supplies the event sent to
// a viewer right after it connects (typically eventbus.Bus.Last). buffer is the per-viewer
// queue length; a viewer whose queue is full is disconnected.
func NewBroadcaster(buffer int, replay func() (model.UpdateEvent, bool), logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		replay:  replay,
		buffer:  buffer,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	b.clients[c] = struct{}{}
	// replay under the lock so no event lands between the replayed one and registration
	if b.replay != nil {
		if ev, ok := b.replay(); ok {
			if payload, err := encode(ev); err != nil {
				b.logger.Error("failed to encode replay", zap.Error(err))
			} else {
				b.deliver(c, ev.Cycle, payload)
			}
		}
	}
	b.mu.Unlock()

	b.logger.Info("viewer connected", zap.String("remote", conn.RemoteAddr().String()))

	go b.writePump(c)
	go b.readPump(c)
}

// OnUpdate is an eventbus handler. The event is encoded once and the same
// payload is queued for every viewer.
func (b *Broadcaster) OnUpdate(ev model.UpdateEvent) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for c := range b.clients {
		if !b.deliver(c, ev.Cycle, payload) {
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("disconnected %d slow viewers at cycle %d", dropped, ev.Cycle)
	}
	return nil
}

func encode(ev model.UpdateEvent) ([]byte, error) {
	payload, err := json.Marshal(NewUpdateMessage(ev))
	if err != nil {
		return nil, fmt.Errorf("encode update for cycle %d: %w", ev.Cycle, err)
	}
	return payload, nil
}

// deliver queues payload for c unless c already has that cycle. Must hold b.mu.
func (b *Broadcaster) deliver(c *client, cycle uint64, payload []byte) bool {
	if cycle <= c.lastCycle {
		return true
	}
	select {
	case c.send <- payload:
		c.lastCycle = cycle
		return true
	default:
		b.removeLocked(c)
		return false
	}
}

// Len returns the number of connected viewers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every viewer and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for c := range b.clients {
		b.removeLocked(c)
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c)
}

// removeLocked closes the send queue; writePump then closes the connection.
func (b *Broadcaster) removeLocked(c *client) {
	if _, ok := b.clients[c]; !ok {
		return
	}
	delete(b.clients, c)
	close(c.send)
}

func (b *Broadcaster) readPump(c *client) {
	defer func() {
		b.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("viewer read error", zap.Error(err))
			}
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.logger.Debug("viewer write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
