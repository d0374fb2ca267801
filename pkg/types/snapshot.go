package types

import "github.com/DoyleJ11/kuhhandel-server/internal/engine"

// StatePayload is what each participant receives on every publish:
//
//	"my name":      string
//	"my wallet":    {zeros, tens, twenties, fifties, hundreds, twohundreds, fivehundreds}
//	"global_state": {"players": [names], "<name>": {wallet, cards, completed_sets}, "deck_count": n}
//
// The wallet breakdown is private to its owner; global_state only exposes
// each player's money card count.
type StatePayload struct {
	MyName      string             `json:"my name"`
	MyWallet    engine.Money       `json:"my wallet"`
	GlobalState engine.GlobalState `json:"global_state"`
}
