package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox"
	"github.com/DoyleJ11/kuhhandel-server/internal/types"
	pkgtypes "github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

const writeTimeout = 3 * time.Second

// Conn adapts one websocket to a participant channel. Outbound frames are
// written in order by a single writer goroutine; inbound frames are pushed
// onto the mailbox queue by a single reader goroutine.
type Conn struct {
	ws    *websocket.Conn
	queue *mailbox.Queue
	out   chan types.ServerMessage
	log   *zap.Logger

	mu     sync.Mutex
	closed bool

	readCancel context.CancelFunc
	writerDone chan struct{}
}

func NewConn(c *websocket.Conn, logger *zap.Logger) *Conn {
	readCtx, readCancel := context.WithCancel(context.Background())
	conn := &Conn{
		ws:         c,
		queue:      mailbox.NewQueue(),
		out:        make(chan types.ServerMessage, 64),
		log:        logger,
		readCancel: readCancel,
		writerDone: make(chan struct{}),
	}
	go conn.writeLoop()
	go conn.readLoop(readCtx)
	return conn
}

func (c *Conn) Queue() *mailbox.Queue { return c.queue }

// Send queues a frame for the writer. It fails once the remote side has gone
// or Close was called.
func (c *Conn) Send(msgType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.queue.Closed() {
		return mailbox.ErrChannelClosed
	}
	c.out <- types.ServerMessage{Type: msgType, Payload: payload}
	return nil
}

// Close flushes queued frames and closes the websocket.
func (c *Conn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
	c.mu.Unlock()

	<-c.writerDone
	c.readCancel()
	c.queue.Close()
	_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	failed := false
	for msg := range c.out {
		if failed {
			continue // drain so Send never blocks on a dead socket
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			c.log.Error("encode frame", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = c.ws.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			c.log.Debug("write failed", zap.Error(err))
			failed = true
			c.queue.Close()
		}
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer c.queue.Close()
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.log.Debug("client closed")
			default:
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil || cm.Type == "" {
			_ = c.Send(pkgtypes.TypeError, pkgtypes.Prompt{Message: "bad json"})
			continue
		}
		if err := c.queue.Push(cm); err != nil {
			return
		}
	}
}
