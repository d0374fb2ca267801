// Package bot holds the decision logic of the automatic player. It turns
// server frames into reply frames and never touches the network itself.
package bot

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

// Frame is one decoded server frame.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Reply is one frame the bot wants to send.
type Reply struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	bidStep   = 10
	nameTaken = "That name is already taken"
)

type Bot struct {
	Name  string
	base  string
	tries int

	rng    *rand.Rand
	wallet engine.Money
	state  engine.GlobalState

	lot        *types.CardPayload // card under auction
	auctioneer string
	high       int
	holder     string

	over  bool
	board json.RawMessage
}

func New(name string, rng *rand.Rand) *Bot {
	return &Bot{Name: name, base: name, tries: 1, rng: rng, wallet: engine.StartingMoney}
}

// Over reports whether the game has ended, normally or not.
func (b *Bot) Over() bool { return b.over }

// Scores is the raw game-over payload once the game has finished normally.
func (b *Bot) Scores() json.RawMessage { return b.board }

// Handle updates the bot's view from f and returns its replies, if any.
func (b *Bot) Handle(f Frame) []Reply {
	switch f.Type {
	case types.TypeState:
		var st types.StatePayload
		if json.Unmarshal(f.Payload, &st) == nil {
			b.wallet = st.MyWallet
			b.state = st.GlobalState
		}

	case types.TypeCard:
		var c types.CardPayload
		if json.Unmarshal(f.Payload, &c) == nil {
			b.lot, b.auctioneer, b.high, b.holder = &c, "", 0, ""
		}

	case types.TypeBid:
		var bid types.BidBroadcast
		if json.Unmarshal(f.Payload, &bid) != nil {
			break
		}
		if bid.Bid == 0 {
			b.auctioneer = bid.Player // the opening bid names the auctioneer
		}
		b.high, b.holder = bid.Bid, bid.Player
		if amount, ok := b.nextBid(); ok {
			return []Reply{{Type: types.TypeBid, Payload: types.BidPayload{Amount: amount}}}
		}

	case types.TypeAuctionComplete:
		b.lot = nil

	case types.TypeGameOver:
		b.over = true
		b.board = f.Payload

	case types.TypeError:
		switch msg := text(f.Payload); {
		case msg == nameTaken:
			// the server asks again; the next answer must differ
			b.tries++
			b.Name = b.base + strconv.Itoa(b.tries)
		case strings.HasPrefix(msg, "Sorry, the game has been ended"):
			b.over = true
		}

	case types.TypeQuery:
		return b.answer(text(f.Payload))
	}
	return nil
}

func (b *Bot) answer(q string) []Reply {
	switch {
	case strings.HasPrefix(q, "Please enter your username"):
		return []Reply{{Type: types.TypeUsername, Payload: types.UsernamePayload{Username: b.Name}}}

	case strings.HasPrefix(q, "Please choose auction or challenge"):
		action := engine.ActionAuction
		if _, _, ok := PickChallenge(b.Name, b.state); ok && b.rng.Intn(2) == 0 {
			action = engine.ActionChallenge
		}
		return []Reply{{Type: types.TypeResponse, Payload: string(action)}}

	case strings.HasPrefix(q, "Please select the player"):
		target, kind, _ := PickChallenge(b.Name, b.state)
		return []Reply{{Type: types.TypeChallenge, Payload: types.ChallengePayload{Player: target, Card: string(kind)}}}

	case strings.Contains(q, "Please select payment cards"):
		floor := trailingInt(q)
		if floor == 0 {
			floor = b.rng.Intn(b.wallet.Total()/2 + 1) // challenge ante
		}
		pay, ok := PayAtLeast(b.wallet, floor)
		if !ok {
			pay = b.wallet
		}
		return []Reply{{Type: types.TypePayment, Payload: pay}}

	case strings.HasPrefix(q, "The winning bid is"):
		price := firstInt(q)
		if price <= b.wallet.Total() && b.rng.Intn(3) == 0 {
			return []Reply{{Type: types.TypeAuctioneerBid, Payload: types.BidPayload{Amount: price}}}
		}
	}
	return nil
}

// nextBid raises by one step while the price stays under the card's value
// and within the wallet.
func (b *Bot) nextBid() (int, bool) {
	if b.lot == nil || b.holder == b.Name || b.auctioneer == b.Name {
		return 0, false
	}
	next := b.high + bidStep
	if next > b.lot.Value || next > b.wallet.Total() || b.rng.Intn(4) == 0 {
		return 0, false
	}
	return next, true
}

// PayAtLeast builds a bundle from wallet totalling at least floor. It reports
// false when the wallet cannot cover floor.
func PayAtLeast(wallet engine.Money, floor int) (engine.Money, bool) {
	if wallet.Total() < floor {
		return engine.Money{}, false
	}
	have := []*int{&wallet.FiveHundreds, &wallet.TwoHundreds, &wallet.Hundreds, &wallet.Fifties, &wallet.Twenties, &wallet.Tens}
	var pay engine.Money
	give := []*int{&pay.FiveHundreds, &pay.TwoHundreds, &pay.Hundreds, &pay.Fifties, &pay.Twenties, &pay.Tens}
	values := []int{500, 200, 100, 50, 20, 10}

	// smallest single note that covers the rest, else the largest note held
	for pay.Total() < floor {
		rest := floor - pay.Total()
		pick := -1
		for i := len(values) - 1; i >= 0; i-- {
			if *have[i] > 0 && values[i] >= rest {
				pick = i
				break
			}
		}
		if pick < 0 {
			for i := range values {
				if *have[i] > 0 {
					pick = i
					break
				}
			}
		}
		*have[pick]--
		*give[pick]++
	}
	return pay, true
}

// PickChallenge chooses the most valuable kind me shares with another player.
func PickChallenge(me string, state engine.GlobalState) (target string, kind engine.Kind, ok bool) {
	mine, found := state.Public[me]
	if !found {
		return "", "", false
	}
	best := -1
	for _, c := range mine.Cards {
		if c.Value <= best {
			continue
		}
		for _, name := range state.Players {
			if name == me {
				continue
			}
			if holds(state.Public[name].Cards, c.Kind) {
				target, kind, best = name, c.Kind, c.Value
				break
			}
		}
	}
	return target, kind, best >= 0
}

func holds(cards []engine.Card, kind engine.Kind) bool {
	for _, c := range cards {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

func text(payload json.RawMessage) string {
	var s string
	if json.Unmarshal(payload, &s) == nil {
		return s
	}
	var p types.Prompt
	_ = json.Unmarshal(payload, &p)
	return p.Message
}

func trailingInt(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimRight(fields[len(fields)-1], "."))
	return n
}

func firstInt(s string) int {
	for _, f := range strings.Fields(s) {
		if n, err := strconv.Atoi(strings.TrimRight(f, ".")); err == nil {
			return n
		}
	}
	return 0
}
