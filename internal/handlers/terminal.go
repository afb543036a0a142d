package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/eapache/queue"
	"github.com/falkyre/scoreboard-hub/internal/bridge"
	"github.com/falkyre/scoreboard-hub/internal/middleware"
	"github.com/falkyre/scoreboard-hub/internal/sshterminal"
	"github.com/google/uuid"
)

const (
	// maxPendingFrames caps a connection's outbox. A client that falls this
	// far behind is disconnected; its sessions stay resumable.
	maxPendingFrames = 4096
	// wsWriteTimeout bounds one frame write.
	wsWriteTimeout = 10 * time.Second
)

// Bridge is set from main.go during init.
var Bridge *bridge.Handler

// TerminalWS handles the browser terminal websocket at /terminal/ws. Frames
// are JSON envelopes {"event": ..., "data": ...}.
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	b := Bridge
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "Terminal not initialized")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[terminal] failed to accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(sshterminal.MaxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newWSClient(middleware.PeerHost(r))
	log.Printf("[terminal] client %s connected from %s", c.id, c.remote)
	go c.writeLoop(ctx, conn, cancel)
	defer func() {
		b.Disconnect(c)
		c.close()
		log.Printf("[terminal] client %s disconnected", c.id)
	}()

	limiter := sshterminal.NewMessageLimiter(nil, sshterminal.MessageRateLimit, sshterminal.MessageRateBurst)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				log.Printf("[terminal] client %s read: %v", c.id, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if !limiter.Allow() {
			continue
		}
		b.Dispatch(ctx, c, data)
	}
}

// wsClient is one terminal websocket. Emit and Deliver enqueue frames
// without blocking; writeLoop drains them in order.
type wsClient struct {
	id     string
	remote string

	mu     sync.Mutex
	cond   *sync.Cond
	outbox *queue.Queue
	closed bool
}

func newWSClient(remote string) *wsClient {
	c := &wsClient{
		id:     uuid.NewString(),
		remote: remote,
		outbox: queue.New(),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) RemoteAddr() string { return c.remote }

func (c *wsClient) Deliver(token, data string) {
	c.Emit(bridge.EventResponse, bridge.Response{Data: data, Token: token})
}

func (c *wsClient) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[terminal] client %s: encode %s: %v", c.id, event, err)
		return
	}
	frame, err := json.Marshal(bridge.Envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("[terminal] client %s: encode %s: %v", c.id, event, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.outbox.Length() >= maxPendingFrames {
		log.Printf("[terminal] client %s too slow, disconnecting", c.id)
		c.closed = true
		c.cond.Broadcast()
		return
	}
	c.outbox.Add(frame)
	c.cond.Signal()
}

// next blocks until a frame is queued or the client is closed.
func (c *wsClient) next() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.outbox.Length() == 0 && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return nil, false
	}
	return c.outbox.Remove().([]byte), true
}

func (c *wsClient) close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// writeLoop sends queued frames until the client closes or a write fails,
// then cancels the connection context so the read loop ends too.
func (c *wsClient) writeLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		frame, ok := c.next()
		if !ok {
			return
		}
		wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := conn.Write(wctx, websocket.MessageText, frame)
		wcancel()
		if err != nil {
			c.close()
			return
		}
	}
}
