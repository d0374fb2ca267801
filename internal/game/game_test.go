package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox"
	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox/mailboxtest"
	"github.com/DoyleJ11/kuhhandel-server/internal/player"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

type answer func(c *mailboxtest.Channel, m mailboxtest.Sent)

// answering replies to queries whose text starts with one of the keys.
func answering(rules map[string]answer) mailboxtest.Responder {
	return func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type != types.TypeQuery {
			return
		}
		for prefix, a := range rules {
			if strings.HasPrefix(m.Text(), prefix) {
				a(c, m)
				return
			}
		}
	}
}

func reply(msgType string, payload any) answer {
	return func(c *mailboxtest.Channel, _ mailboxtest.Sent) { c.Reply(msgType, payload) }
}

// replies answers successive queries with successive payloads, repeating the last.
func replies(msgType string, payloads ...any) answer {
	return func(c *mailboxtest.Channel, _ mailboxtest.Sent) {
		c.Reply(msgType, payloads[0])
		if len(payloads) > 1 {
			payloads = payloads[1:]
		}
	}
}

const (
	askAction    = "Please choose"
	askChallenge = "Please select the player"
	askPayment   = "Please select payment"
	askBuyOut    = "The winning bid"
)

type fakeRecorder struct {
	codes  []string
	boards []engine.Scoreboard
}

func (f *fakeRecorder) Record(_ context.Context, code string, board engine.Scoreboard) error {
	f.codes = append(f.codes, code)
	f.boards = append(f.boards, board)
	return nil
}

func stacked(kinds ...engine.Kind) *engine.Deck {
	cards := make([]engine.Card, len(kinds))
	for i, k := range kinds {
		cards[i], _ = engine.CardOf(k)
	}
	return engine.NewStackedDeck(cards...)
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	return newSessionWithWindows(t, 20*time.Millisecond, 20*time.Millisecond, opts...)
}

func newSessionWithWindows(t *testing.T, auction, buyOut time.Duration, opts ...Option) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := Config{Players: 2, AuctionWindow: auction, BuyOutWindow: buyOut}
	return New(ctx, "TEST01", cfg, zap.NewNop(), opts...)
}

func join(t *testing.T, s *Session, name string, respond mailboxtest.Responder) (*player.Participant, *mailboxtest.Channel) {
	t.Helper()
	ch := mailboxtest.New(respond)
	p := player.New(ch, zap.NewNop())
	require.NoError(t, s.Join(context.Background(), p, name))
	return p, ch
}

func run(t *testing.T, s *Session) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not finish")
		return nil
	}
}

func lastText(ch *mailboxtest.Channel, msgType string) string {
	sent := ch.SentOfType(msgType)
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1].Text()
}

func TestSession_UncontestedAuctionKeepsCardForFree(t *testing.T) {
	s := newSession(t, WithDeck(stacked(engine.KindRooster)))
	ann, annCh := join(t, s, "ann", nil)
	bo, _ := join(t, s, "bo", nil)

	require.NoError(t, run(t, s))

	assert.Equal(t, 1, ann.Hand.CountOf(engine.KindRooster))
	assert.Equal(t, engine.StartingMoney, ann.Ledger.Money())
	assert.Equal(t, engine.StartingMoney, bo.Ledger.Money())

	bids := annCh.SentOfType(types.TypeBid)
	require.Len(t, bids, 1)
	assert.JSONEq(t, `{"bid":0,"player":"ann"}`, string(bids[0].Payload))
	complete := annCh.SentOfType(types.TypeAuctionComplete)
	require.Len(t, complete, 1)
	assert.JSONEq(t, `{"bidwinner":"ann","bid":0}`, string(complete[0].Payload))
	assert.Empty(t, annCh.SentOfType(types.TypeQuery), "a zero bid asks nobody to pay")
}

func TestSession_HighestBidderBuysWhenAuctioneerDeclines(t *testing.T) {
	s := newSession(t, WithDeck(stacked(engine.KindRooster)))
	ann, annCh := join(t, s, "ann", nil)
	bo, _ := join(t, s, "bo", func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		switch {
		case m.Type == types.TypeCard:
			c.Reply(types.TypeBid, types.BidPayload{Amount: 30})
			c.Reply(types.TypeBid, types.BidPayload{Amount: 500}) // unaffordable
			c.Reply(types.TypeBid, types.BidPayload{Amount: 50})
		case m.Type == types.TypeQuery && strings.HasPrefix(m.Text(), askPayment):
			c.Reply(types.TypePayment, engine.Money{Fifties: 1})
		}
	})

	require.NoError(t, run(t, s))

	assert.Equal(t, 1, bo.Hand.CountOf(engine.KindRooster))
	assert.Equal(t, 50, bo.Ledger.Total())
	assert.Equal(t, 150, ann.Ledger.Total())

	var accepted []string
	for _, b := range annCh.SentOfType(types.TypeBid) {
		accepted = append(accepted, string(b.Payload))
	}
	assert.Equal(t, []string{
		`{"bid":0,"player":"ann"}`,
		`{"bid":30,"player":"bo"}`,
		`{"bid":50,"player":"bo"}`,
	}, accepted)
	assert.True(t, strings.HasPrefix(lastText(annCh, types.TypeQuery), askBuyOut))
	assert.JSONEq(t, `{"bidwinner":"bo","bid":50}`, string(annCh.SentOfType(types.TypeAuctionComplete)[0].Payload))
}

func acceptedBids(ch *mailboxtest.Channel) []string {
	var out []string
	for _, b := range ch.SentOfType(types.TypeBid) {
		out = append(out, string(b.Payload))
	}
	return out
}

// Bids 100ms apart outlast a 200ms window only if each one restarts it.
func TestSession_EachHigherBidRestartsTheWindow(t *testing.T) {
	s := newSessionWithWindows(t, 200*time.Millisecond, 20*time.Millisecond, WithDeck(stacked(engine.KindRooster)))
	ann, annCh := join(t, s, "ann", nil)
	bo, _ := join(t, s, "bo", func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		switch {
		case m.Type == types.TypeCard:
			go func() {
				for _, amount := range []int{10, 20, 30, 40} {
					time.Sleep(100 * time.Millisecond)
					c.Reply(types.TypeBid, types.BidPayload{Amount: amount})
				}
			}()
		case m.Type == types.TypeQuery && strings.HasPrefix(m.Text(), askPayment):
			c.Reply(types.TypePayment, engine.Money{Tens: 2, Twenties: 1})
		}
	})

	start := time.Now()
	require.NoError(t, run(t, s))
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond, "the last bid holds the window open")

	assert.Equal(t, []string{
		`{"bid":0,"player":"ann"}`,
		`{"bid":10,"player":"bo"}`,
		`{"bid":20,"player":"bo"}`,
		`{"bid":30,"player":"bo"}`,
		`{"bid":40,"player":"bo"}`,
	}, acceptedBids(annCh))
	assert.Equal(t, 1, bo.Hand.CountOf(engine.KindRooster))
	assert.Equal(t, 140, ann.Ledger.Total())
	assert.Equal(t, 60, bo.Ledger.Total())
}

func TestSession_BidAfterTheWindowIsIgnored(t *testing.T) {
	s := newSessionWithWindows(t, 60*time.Millisecond, 300*time.Millisecond, WithDeck(stacked(engine.KindRooster)))
	ann, annCh := join(t, s, "ann", nil)
	bo, _ := join(t, s, "bo", func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		switch {
		case m.Type == types.TypeCard:
			c.Reply(types.TypeBid, types.BidPayload{Amount: 10})
			go func() {
				// lands while ann is still deciding on the buy-out
				time.Sleep(150 * time.Millisecond)
				c.Reply(types.TypeBid, types.BidPayload{Amount: 20})
			}()
		case m.Type == types.TypeQuery && strings.HasPrefix(m.Text(), askPayment):
			c.Reply(types.TypePayment, engine.Money{Tens: 1})
		}
	})

	require.NoError(t, run(t, s))

	assert.Equal(t, []string{
		`{"bid":0,"player":"ann"}`,
		`{"bid":10,"player":"bo"}`,
	}, acceptedBids(annCh))
	assert.True(t, strings.HasPrefix(lastText(annCh, types.TypeQuery), "The winning bid is 10."))
	assert.JSONEq(t, `{"bidwinner":"bo","bid":10}`, string(annCh.SentOfType(types.TypeAuctionComplete)[0].Payload))
	assert.Equal(t, 1, bo.Hand.CountOf(engine.KindRooster))
	assert.Equal(t, 110, ann.Ledger.Total())
	assert.Equal(t, 90, bo.Ledger.Total())
}

func TestSession_AuctioneerBuyOut(t *testing.T) {
	s := newSession(t, WithDeck(stacked(engine.KindRooster)))
	ann, annCh := join(t, s, "ann", answering(map[string]answer{
		askBuyOut:  reply(types.TypeAuctioneerBid, types.BidPayload{Amount: 50}),
		askPayment: reply(types.TypePayment, engine.Money{Fifties: 1}),
	}))
	bo, _ := join(t, s, "bo", func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeCard {
			c.Reply(types.TypeBid, types.BidPayload{Amount: 50})
		}
	})

	require.NoError(t, run(t, s))

	assert.Equal(t, 1, ann.Hand.CountOf(engine.KindRooster))
	assert.Equal(t, 0, bo.Hand.CountOf(engine.KindRooster))
	assert.Equal(t, 50, ann.Ledger.Total())
	assert.Equal(t, 150, bo.Ledger.Total())
	assert.JSONEq(t, `{"bidwinner":"ann","bid":50}`, string(annCh.SentOfType(types.TypeAuctionComplete)[0].Payload))
}

func TestSession_DonkeyPaysEveryone(t *testing.T) {
	s := newSession(t, WithDeck(stacked(engine.KindDonkey)))
	ann, _ := join(t, s, "ann", nil)
	bo, boCh := join(t, s, "bo", nil)

	require.NoError(t, run(t, s))

	assert.Equal(t, 2, ann.Ledger.Money().Fifties)
	assert.Equal(t, 150, bo.Ledger.Total())
	assert.Equal(t, 1, ann.Hand.CountOf(engine.KindDonkey), "the donkey is still auctioned")

	// state after the bonus is published before the card is shown
	sent := boCh.Sent()
	var bonusState, card int
	for i, m := range sent {
		if m.Type == types.TypeState && strings.Contains(string(m.Payload), `"fifties":2`) && bonusState == 0 {
			bonusState = i
		}
		if m.Type == types.TypeCard {
			card = i
		}
	}
	assert.NotZero(t, bonusState)
	assert.Less(t, bonusState, card)
}

func TestSession_FifthDonkeyEndsTheGame(t *testing.T) {
	s := newSession(t, WithDeck(stacked(engine.KindDonkey)))
	ann, annCh := join(t, s, "ann", nil)
	_, boCh := join(t, s, "bo", nil)
	for range engine.DonkeyBonuses {
		require.NoError(t, ann.Ledger.DonkeyBonus())
	}

	err := run(t, s)
	require.ErrorIs(t, err, engine.ErrDonkeyOverflow)
	assert.ErrorContains(t, err, "bonus for ann")
	assert.Equal(t, failureNotice, lastText(annCh, types.TypeError))
	assert.Equal(t, failureNotice, lastText(boCh, types.TypeError))
	assert.Empty(t, boCh.SentOfType(types.TypeCard), "the donkey is never shown")
	assert.Empty(t, boCh.SentOfType(types.TypeGameOver))
	assert.Equal(t, StatusComplete, s.Status())
}

// Two players each take two cows, then ann challenges for all four.
func TestSession_FullGameWithChallenge(t *testing.T) {
	rec := &fakeRecorder{}
	s := newSession(t,
		WithDeck(stacked(engine.KindCow, engine.KindCow, engine.KindCow, engine.KindCow)),
		WithRecorder(rec))

	ann, annCh := join(t, s, "ann", answering(map[string]answer{
		askAction: reply(types.TypeResponse, "auction"),
		askChallenge: replies(types.TypeChallenge,
			types.ChallengePayload{Player: "ann", Card: "cow"},
			types.ChallengePayload{Player: "bo", Card: "horse"},
			types.ChallengePayload{Player: "bo", Card: "cow"}),
		askPayment: reply(types.TypePayment, engine.Money{}),
	}))
	bo, boCh := join(t, s, "bo", answering(map[string]answer{
		askAction:  reply(types.TypeResponse, "auction"),
		askPayment: reply(types.TypePayment, engine.Money{Zeros: 1}),
	}))

	require.NoError(t, run(t, s))

	assert.Equal(t, 800, ann.Score())
	assert.Equal(t, 0, bo.Score())
	assert.False(t, ann.CanTrade())
	assert.False(t, bo.CanTrade())
	// antes are swapped
	assert.Equal(t, 3, ann.Ledger.Money().Zeros)
	assert.Equal(t, 1, bo.Ledger.Money().Zeros)

	var errs []string
	for _, e := range annCh.SentOfType(types.TypeError) {
		errs = append(errs, e.Text())
	}
	assert.Equal(t, []string{rejectTarget, player.RejectChallenge}, errs)

	var narration []string
	for _, m := range boCh.SentOfType(types.TypeMessage) {
		narration = append(narration, m.Text())
	}
	assert.Contains(t, narration, "ann has challenged bo for all the cows with 0 money cards.")
	assert.Contains(t, narration, "bo has responded to the challenge with 1 money cards.")
	assert.Contains(t, narration, "ann has won the challenge!")

	over := boCh.SentOfType(types.TypeGameOver)
	require.Len(t, over, 1)
	assert.JSONEq(t, `{"ann":800,"bo":0}`, string(over[0].Payload))

	require.Len(t, rec.boards, 1)
	assert.Equal(t, "TEST01", rec.codes[0])
	assert.Equal(t, engine.Scoreboard{{Name: "ann", Score: 800}, {Name: "bo", Score: 0}}, rec.boards[0])

	v, err := s.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, v.Status)
	assert.Equal(t, []string{"ann", "bo"}, v.Players)
	assert.Equal(t, rec.boards[0], v.Scores)
}

// cow, cow, rooster: on ann's second turn both actions are legal.
func bothLegalDeck() *engine.Deck {
	return stacked(engine.KindCow, engine.KindCow, engine.KindRooster)
}

func TestSession_UnknownActionEndsTheGame(t *testing.T) {
	s := newSession(t, WithDeck(bothLegalDeck()))
	_, annCh := join(t, s, "ann", answering(map[string]answer{
		askAction: reply(types.TypeResponse, "steal"),
	}))
	_, boCh := join(t, s, "bo", nil)

	err := run(t, s)
	require.ErrorIs(t, err, engine.ErrUnknownAction)
	assert.Equal(t, failureNotice, lastText(annCh, types.TypeError))
	assert.Equal(t, failureNotice, lastText(boCh, types.TypeError))
	assert.Equal(t, StatusComplete, s.Status())
}

func TestSession_UnknownChallengeTargetEndsTheGame(t *testing.T) {
	s := newSession(t, WithDeck(bothLegalDeck()))
	join(t, s, "ann", answering(map[string]answer{
		askAction:    reply(types.TypeResponse, "challenge"),
		askChallenge: reply(types.TypeChallenge, types.ChallengePayload{Player: "zed", Card: "cow"}),
	}))
	join(t, s, "bo", nil)

	assert.ErrorIs(t, run(t, s), ErrTargetNotFound)
}

func TestSession_DisconnectEndsTheGame(t *testing.T) {
	s := newSession(t, WithDeck(stacked(engine.KindRooster)))
	_, annCh := join(t, s, "ann", nil)
	join(t, s, "bo", func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeCard {
			c.Close()
		}
	})

	err := run(t, s)
	require.ErrorIs(t, err, mailbox.ErrChannelClosed)
	assert.Equal(t, disconnectNotice, lastText(annCh, types.TypeError))
	assert.Empty(t, annCh.SentOfType(types.TypeGameOver))
}

func TestSession_ReserveAndView(t *testing.T) {
	s := newSession(t)

	assert.True(t, s.Reserve())
	assert.True(t, s.Reserve())
	assert.False(t, s.Reserve(), "both seats are claimed")
	s.Release()

	ann, _ := join(t, s, "ann", nil)
	v, err := s.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, v.Status)
	assert.Equal(t, []string{"ann"}, v.Players)
	assert.Equal(t, 44, v.DeckCount)
	assert.Equal(t, 2, v.Capacity)

	require.NoError(t, s.Leave(context.Background(), ann.ID))
	v, err = s.View(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v.Players)
}

func TestSession_CancelBeforeStart(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
	assert.Equal(t, StatusComplete, s.Status())
	assert.False(t, s.Reserve())
}
