// Package player binds one remote participant to their ledger and hand and
// implements every negotiation step the session can ask them to perform.
//
// Operations that wait on input loop internally on recoverable mistakes
// (unaffordable bundles, malformed payloads) and only return errors that end
// the session: a closed channel or a cancelled context.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

const (
	promptUsername  = "Please enter your username"
	promptAction    = "Please choose auction or challenge"
	promptChallenge = "Please select the player and card you wish to challenge"
	promptPayment   = "Please select payment cards that total at least %d"
	retryPayment    = "You don't have those cards! Please select payment cards that total at least %d"
	shortPayment    = "That payment is too small! Please select payment cards that total at least %d"
	promptBuyOut    = "The winning bid is %d. Send an auctioneer-bid of at least %d to buy the card yourself"

	noticePass      = "You have no moves left: wait for everyone to finish their challenges!"
	noticeAuction   = "You have no challenges available, so you must auction!"
	noticeChallenge = "There are no cards left to auction, so you must challenge!"
)

// RejectChallenge answers a challenge pick that is malformed or names a kind
// the two sides do not share.
const RejectChallenge = "Your challenge was not valid"

// Channel is the transport collaborator: ordered fire-and-forget sends plus
// the inbound queue the transport fills.
type Channel interface {
	Send(msgType string, payload any) error
	Queue() *mailbox.Queue
}

type Participant struct {
	ID     string
	Name   string
	Ledger *engine.Ledger
	Hand   *engine.Hand

	ch  Channel
	log *zap.Logger
}

func New(ch Channel, logger *zap.Logger) *Participant {
	id := uuid.NewString()
	return &Participant{
		ID:     id,
		Ledger: engine.NewLedger(),
		Hand:   engine.NewHand(),
		ch:     ch,
		log:    logger.With(zap.String("participant", id)),
	}
}

// SetName assigns the display name once the session has accepted it.
func (p *Participant) SetName(name string) {
	p.Name = name
	p.log = p.log.With(zap.String("player", name))
}

func (p *Participant) Inbox() *mailbox.Queue { return p.ch.Queue() }

// Done is closed when the participant's channel disconnects.
func (p *Participant) Done() <-chan struct{} { return p.ch.Queue().Done() }

func (p *Participant) Send(msgType string, payload any) error {
	return p.ch.Send(msgType, payload)
}

func (p *Participant) Message(payload any) error {
	return p.ch.Send(types.TypeMessage, payload)
}

func (p *Participant) Error(payload any) error {
	return p.ch.Send(types.TypeError, payload)
}

func (p *Participant) query(payload any) error {
	return p.ch.Send(types.TypeQuery, payload)
}

// Game state

func (p *Participant) AddCard(c engine.Card) bool {
	completed := p.Hand.Add(c)
	if completed {
		p.log.Info("set completed", zap.String("kind", string(c.Kind)))
	}
	return completed
}

func (p *Participant) TakeCard(kind engine.Kind) (engine.Card, error) {
	return p.Hand.Take(kind)
}

func (p *Participant) AcceptPayment(pay engine.Payment) {
	p.Ledger.AcceptPayment(pay)
}

func (p *Participant) CanTrade() bool { return p.Hand.CanTrade() }
func (p *Participant) Score() int     { return p.Hand.Score() }

// CanCover reports whether the ledger's total reaches amount.
func (p *Participant) CanCover(amount int) bool {
	return amount <= p.Ledger.Total()
}

func (p *Participant) PublicState() engine.PlayerState {
	return engine.PlayerState{
		Wallet:        p.Ledger.Count(),
		Cards:         append([]engine.Card{}, p.Hand.Cards...),
		CompletedSets: append([]engine.Card{}, p.Hand.Completed...),
	}
}

// UpdateState sends the shared snapshot plus this participant's own wallet.
func (p *Participant) UpdateState(global engine.GlobalState) error {
	return p.ch.Send(types.TypeState, types.StatePayload{
		MyName:      p.Name,
		MyWallet:    p.Ledger.Money(),
		GlobalState: global,
	})
}

func (p *Participant) SendCard(c engine.Card) error {
	return p.ch.Send(types.TypeCard, types.CardPayload{Name: string(c.Kind), Value: c.Value})
}

// Negotiation

// RequestName asks for a display name and waits for a non-empty one.
func (p *Participant) RequestName(ctx context.Context) (string, error) {
	if err := p.query(promptUsername); err != nil {
		return "", err
	}
	for {
		m, err := p.Inbox().WaitOfType(ctx, types.TypeUsername)
		if err != nil {
			return "", err
		}
		var payload types.UsernamePayload
		if err := json.Unmarshal(m.Payload, &payload); err != nil || payload.Username == "" {
			p.log.Debug("rejected username", zap.ByteString("payload", m.Payload))
			if err := p.query(promptUsername); err != nil {
				return "", err
			}
			continue
		}
		return payload.Username, nil
	}
}

// ChooseAction takes the forced action without asking when only one is legal,
// otherwise queries for a response. An unrecognised response is returned as
// engine.ErrUnknownAction.
func (p *Participant) ChooseAction(ctx context.Context, opts engine.Options) (engine.Action, error) {
	if action, forced := opts.Forced(); forced {
		notice := map[engine.Action]string{
			engine.ActionPass:      noticePass,
			engine.ActionAuction:   noticeAuction,
			engine.ActionChallenge: noticeChallenge,
		}[action]
		if err := p.Message(types.Prompt{Message: notice}); err != nil {
			return "", err
		}
		return action, nil
	}

	if err := p.query(promptAction); err != nil {
		return "", err
	}
	m, err := p.Inbox().WaitOfType(ctx, types.TypeResponse)
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(m.Payload, &token); err != nil {
		return "", fmt.Errorf("%w: %s", engine.ErrUnknownAction, m.Payload)
	}
	return engine.ParseAction(token)
}

// PendingBids drains every queued bid and returns the amounts this
// participant can cover, oldest first. Malformed or unaffordable bids are
// dropped silently.
func (p *Participant) PendingBids() ([]int, error) {
	var amounts []int
	for {
		m, ok, err := p.Inbox().TryOfType(types.TypeBid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return amounts, nil
		}
		var bid types.BidPayload
		if err := json.Unmarshal(m.Payload, &bid); err != nil || bid.Amount <= 0 {
			continue
		}
		if !p.CanCover(bid.Amount) {
			p.log.Debug("ignored unaffordable bid", zap.Int("amount", bid.Amount))
			continue
		}
		amounts = append(amounts, bid.Amount)
	}
}

// BuyOption offers the auctioneer the card at price. An auctioneer-bid
// already queued counts; otherwise the auctioneer has window to send one.
// The auctioneer must be able to cover the price.
func (p *Participant) BuyOption(ctx context.Context, price int, window time.Duration) (bool, error) {
	if !p.CanCover(price) {
		for {
			_, ok, err := p.Inbox().TryOfType(types.TypeAuctioneerBid)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}

	accepts := func(m mailbox.Message) bool {
		var bid types.BidPayload
		return json.Unmarshal(m.Payload, &bid) == nil && bid.Amount >= price
	}
	for {
		m, ok, err := p.Inbox().TryOfType(types.TypeAuctioneerBid)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		if accepts(m) {
			return true, nil
		}
	}

	if err := p.query(types.Prompt{Message: fmt.Sprintf(promptBuyOut, price, price)}); err != nil {
		return false, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	for {
		m, err := p.Inbox().WaitOfType(waitCtx, types.TypeAuctioneerBid)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if accepts(m) {
			return true, nil
		}
	}
}

// CreatePayment asks for a bundle totalling at least atLeast and re-prompts
// until the ledger can pay it. The ledger is only debited by a valid bundle.
func (p *Participant) CreatePayment(ctx context.Context, atLeast int) (engine.Payment, error) {
	if err := p.query(types.Prompt{Message: fmt.Sprintf(promptPayment, atLeast)}); err != nil {
		return engine.Payment{}, err
	}
	for {
		m, err := p.Inbox().WaitOfType(ctx, types.TypePayment)
		if err != nil {
			return engine.Payment{}, err
		}

		var req engine.Money
		retry := retryPayment
		if err := json.Unmarshal(m.Payload, &req); err == nil {
			if req.Total() < atLeast && p.Ledger.CheckSufficiency(req) {
				retry = shortPayment
			} else if pay, err := p.Ledger.CreatePayment(req); err == nil {
				p.log.Debug("payment created", zap.Int("total", pay.Total()), zap.Int("count", pay.Count()))
				return pay, nil
			} else {
				p.log.Debug("payment rejected", zap.Error(err))
			}
		}
		if err := p.query(fmt.Sprintf(retry, atLeast)); err != nil {
			return engine.Payment{}, err
		}
	}
}

// ChallengePayment collects a sealed ante. Zero is allowed.
func (p *Participant) ChallengePayment(ctx context.Context) (engine.Payment, error) {
	return p.CreatePayment(ctx, 0)
}

// RequestChallenge asks for a target and kind. The session validates the pick.
func (p *Participant) RequestChallenge(ctx context.Context) (types.ChallengePayload, error) {
	if err := p.query(types.Prompt{Message: promptChallenge}); err != nil {
		return types.ChallengePayload{}, err
	}
	for {
		m, err := p.Inbox().WaitOfType(ctx, types.TypeChallenge)
		if err != nil {
			return types.ChallengePayload{}, err
		}
		var c types.ChallengePayload
		if err := json.Unmarshal(m.Payload, &c); err == nil {
			return c, nil
		}
		if err := p.Error(types.Prompt{Message: RejectChallenge}); err != nil {
			return types.ChallengePayload{}, err
		}
		if err := p.query(types.Prompt{Message: promptChallenge}); err != nil {
			return types.ChallengePayload{}, err
		}
	}
}
