// Package mailboxtest provides an in-memory participant channel for tests.
package mailboxtest

import (
	"encoding/json"
	"sync"

	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox"
)

// Sent is one outbound message as it would appear on the wire.
type Sent struct {
	Type    string
	Payload json.RawMessage
}

// Text returns the prompt text of a string payload or a {"message": ...} payload.
func (s Sent) Text() string {
	var text string
	if err := json.Unmarshal(s.Payload, &text); err == nil {
		return text
	}
	var wrapped struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(s.Payload, &wrapped); err == nil {
		return wrapped.Message
	}
	return ""
}

// Responder sees every outbound message and may answer through c.Reply.
type Responder func(c *Channel, msg Sent)

// Channel records outbound messages and feeds a mailbox queue. Close
// simulates a disconnect.
type Channel struct {
	mu      sync.Mutex
	queue   *mailbox.Queue
	sent    []Sent
	respond Responder
	closed  bool
}

func New(respond Responder) *Channel {
	return &Channel{queue: mailbox.NewQueue(), respond: respond}
}

func (c *Channel) Send(msgType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Sent{Type: msgType, Payload: b}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return mailbox.ErrChannelClosed
	}
	c.sent = append(c.sent, msg)
	respond := c.respond
	c.mu.Unlock()

	if respond != nil {
		respond(c, msg)
	}
	return nil
}

func (c *Channel) Queue() *mailbox.Queue { return c.queue }

// Reply queues an inbound message as if the remote participant had sent it.
func (c *Channel) Reply(msgType string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	_ = c.queue.Push(mailbox.Message{Type: msgType, Payload: b})
}

func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.queue.Close()
}

func (c *Channel) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Channel) SentOfType(msgType string) []Sent {
	var out []Sent
	for _, s := range c.Sent() {
		if s.Type == msgType {
			out = append(out, s)
		}
	}
	return out
}
