package types

import "github.com/DoyleJ11/kuhhandel-server/internal/mailbox"

// ClientMessage is an inbound frame. The payload stays raw until the
// participant operation waiting for that type decodes it.
type ClientMessage = mailbox.Message

// ServerMessage is an outbound frame.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
