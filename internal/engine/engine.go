package engine

import (
	"errors"
	"fmt"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrMalformedPayment = errors.New("malformed payment")
var ErrDonkeyOverflow = errors.New("donkey played too many times")
var ErrInvalidChallenge = errors.New("invalid challenge")
var ErrCardNotHeld = errors.New("card not held")
var ErrUnknownAction = errors.New("unknown action")

type Action string

const (
	ActionAuction   Action = "auction"
	ActionChallenge Action = "challenge"
	ActionPass      Action = "pass"
)

// ParseAction maps a "response" payload onto an action a participant may pick.
// Pass is never chosen by a participant, it is only assigned.
func ParseAction(token string) (Action, error) {
	switch Action(token) {
	case ActionAuction:
		return ActionAuction, nil
	case ActionChallenge:
		return ActionChallenge, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownAction, token)
	}
}

// Options is the set of actions legal for the head of the rotation.
type Options struct {
	CanAuction   bool
	CanChallenge bool
}

// Forced returns the action to take without asking, if only one (or none) is legal.
func (o Options) Forced() (Action, bool) {
	switch {
	case !o.CanAuction && !o.CanChallenge:
		return ActionPass, true
	case !o.CanChallenge:
		return ActionAuction, true
	case !o.CanAuction:
		return ActionChallenge, true
	default:
		return "", false
	}
}

// PlayerState is the public view of one participant.
type PlayerState struct {
	Wallet        int    `json:"wallet"`
	Cards         []Card `json:"cards"`
	CompletedSets []Card `json:"completed_sets"`
}

// GlobalState is the snapshot published to every participant each turn.
type GlobalState struct {
	Players   []string
	DeckCount int
	Public    map[string]PlayerState
}
