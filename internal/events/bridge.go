package events

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// clientBuffer is the per-connection event backlog. Clients that fall this
// far behind are disconnected rather than blocking the pipeline.
const clientBuffer = 64

// Bridge streams every bus event to connected websocket clients as JSON.
// The surrounding application (UI shell, admin console) subscribes by opening
// a websocket to the bridge's handler.
//
// The bridge never blocks the publisher: events are fanned out through
// buffered per-client channels and slow clients are dropped.
type Bridge struct {
	mu      sync.Mutex
	clients map[*bridgeClient]struct{}
	unsub   func()
	closed  bool
}

type bridgeClient struct {
	conn *websocket.Conn
	ch   chan Event
}

// NewBridge attaches a bridge to bus. Call [Bridge.Close] when shutting down.
func NewBridge(bus *Bus) *Bridge {
	b := &Bridge{clients: make(map[*bridgeClient]struct{})}
	b.unsub = bus.SubscribeAll(b.broadcast)
	return b
}

// ServeHTTP upgrades the request to a websocket and streams events until the
// client disconnects or the bridge closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("event bridge: websocket accept failed", "error", err)
		return
	}

	client := &bridgeClient{conn: conn, ch: make(chan Event, clientBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	b.clients[client] = struct{}{}
	b.mu.Unlock()

	defer b.removeClient(client)

	// Reads are discarded; the socket is outbound-only. CloseRead gives us a
	// context that ends when the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

// Close detaches the bridge from the bus and disconnects all clients.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	clients := make([]*bridgeClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	b.unsub()
	for _, c := range clients {
		close(c.ch)
	}
}

// broadcast fans an event out to every connected client. Clients whose
// buffers are full are disconnected.
func (b *Bridge) broadcast(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		select {
		case c.ch <- ev:
		default:
			slog.Warn("event bridge: dropping slow client")
			delete(b.clients, c)
			c.conn.Close(websocket.StatusPolicyViolation, "too slow")
		}
	}
}

func (b *Bridge) removeClient(c *bridgeClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.conn.CloseNow()
	}
}
