package game

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/player"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

type auctionResult struct {
	Buyer *player.Participant
	Payee *player.Participant // nil when the auctioneer keeps the card for free
	Bid   int
}

// runAuction flips a card, runs open outcry among the other participants and
// settles the sale. The card changes hands only once payment has settled.
func (s *Session) runAuction(ctx context.Context, auctioneer *player.Participant) error {
	ctx, span := s.tracer.Start(ctx, "session.auction")
	defer span.End()

	card, err := s.flipCard()
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("card.kind", string(card.Kind)))
	if err := s.broadcast(func(p *player.Participant) error { return p.SendCard(card) }); err != nil {
		return err
	}

	res, err := s.auction(ctx, auctioneer)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("auction.buyer", res.Buyer.Name), attribute.Int("auction.bid", res.Bid))

	complete := types.AuctionComplete{BidWinner: res.Buyer.Name, Bid: res.Bid}
	if err := s.broadcast(func(p *player.Participant) error {
		return p.Send(types.TypeAuctionComplete, complete)
	}); err != nil {
		return err
	}

	if res.Payee != nil {
		pay, err := res.Buyer.CreatePayment(ctx, res.Bid)
		if err != nil {
			return err
		}
		res.Payee.AcceptPayment(pay)
	}
	res.Buyer.AddCard(card)
	s.log.Info("auction settled",
		zap.String("card", string(card.Kind)),
		zap.String("buyer", res.Buyer.Name),
		zap.Int("bid", res.Bid))
	return nil
}

// auction collects bids until AuctionWindow passes without a higher
// affordable bid, then offers the auctioneer the buy-out.
func (s *Session) auction(ctx context.Context, auctioneer *player.Participant) (auctionResult, error) {
	high, holder := 0, auctioneer
	if err := s.broadcastBid(high, holder); err != nil {
		return auctionResult{}, err
	}

	bidders := make([]*player.Participant, 0, len(s.roster)-1)
	for _, seat := range s.turn.Others() {
		bidders = append(bidders, s.roster[seat])
	}

	wake := make(chan struct{}, 1)
	for _, b := range bidders {
		b.Inbox().Watch(wake)
		defer b.Inbox().Unwatch(wake)
	}

	timer := time.NewTimer(s.cfg.AuctionWindow)
	defer timer.Stop()

	for open := true; open; {
		for _, b := range bidders {
			amounts, err := b.PendingBids()
			if err != nil {
				return auctionResult{}, err
			}
			for _, amount := range amounts {
				if amount <= high {
					continue
				}
				high, holder = amount, b
				if err := s.broadcastBid(high, holder); err != nil {
					return auctionResult{}, err
				}
				resetTimer(timer, s.cfg.AuctionWindow)
			}
		}

		select {
		case <-wake:
		case <-timer.C:
			open = false
		case <-ctx.Done():
			return auctionResult{}, ctx.Err()
		}
	}

	if high == 0 {
		return auctionResult{Buyer: auctioneer, Bid: 0}, nil
	}
	buy, err := auctioneer.BuyOption(ctx, high, s.cfg.BuyOutWindow)
	if err != nil {
		return auctionResult{}, err
	}
	if buy {
		return auctionResult{Buyer: auctioneer, Payee: holder, Bid: high}, nil
	}
	return auctionResult{Buyer: holder, Payee: auctioneer, Bid: high}, nil
}

func (s *Session) broadcastBid(amount int, holder *player.Participant) error {
	bid := types.BidBroadcast{Bid: amount, Player: holder.Name}
	return s.broadcast(func(p *player.Participant) error { return p.Send(types.TypeBid, bid) })
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
