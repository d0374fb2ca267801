package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox"
	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox/mailboxtest"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

func newParticipant(respond mailboxtest.Responder) (*Participant, *mailboxtest.Channel) {
	ch := mailboxtest.New(respond)
	p := New(ch, zap.NewNop())
	p.SetName("ann")
	return p, ch
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_StartsWithDefaultWallet(t *testing.T) {
	p, _ := newParticipant(nil)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, engine.StartingMoney, p.Ledger.Money())
	assert.False(t, p.CanTrade())
	assert.Equal(t, 0, p.Score())
}

func TestRequestName_RequeriesOnEmptyName(t *testing.T) {
	replies := []string{"", "ann"}
	p, ch := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery && m.Text() == promptUsername {
			c.Reply(types.TypeUsername, types.UsernamePayload{Username: replies[0]})
			replies = replies[1:]
		}
	})

	name, err := p.RequestName(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, "ann", name)
	assert.Len(t, ch.SentOfType(types.TypeQuery), 2)
}

func TestChooseAction_ForcedActionsSkipTheQuery(t *testing.T) {
	cases := []struct {
		opts engine.Options
		want engine.Action
	}{
		{engine.Options{}, engine.ActionPass},
		{engine.Options{CanAuction: true}, engine.ActionAuction},
		{engine.Options{CanChallenge: true}, engine.ActionChallenge},
	}
	for _, tc := range cases {
		p, ch := newParticipant(nil)
		got, err := p.ChooseAction(withTimeout(t), tc.opts)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Empty(t, ch.SentOfType(types.TypeQuery))
		assert.Len(t, ch.SentOfType(types.TypeMessage), 1)
	}
}

func TestChooseAction_QueriesWhenBothLegal(t *testing.T) {
	p, _ := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery {
			c.Reply(types.TypeResponse, "challenge")
		}
	})
	got, err := p.ChooseAction(withTimeout(t), engine.Options{CanAuction: true, CanChallenge: true})
	require.NoError(t, err)
	assert.Equal(t, engine.ActionChallenge, got)
}

func TestChooseAction_UnknownResponseIsFatal(t *testing.T) {
	p, _ := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery {
			c.Reply(types.TypeResponse, "steal")
		}
	})
	_, err := p.ChooseAction(withTimeout(t), engine.Options{CanAuction: true, CanChallenge: true})
	assert.ErrorIs(t, err, engine.ErrUnknownAction)
}

func TestPendingBids_DropsUnaffordableAndMalformed(t *testing.T) {
	p, ch := newParticipant(nil)
	ch.Reply(types.TypeBid, types.BidPayload{Amount: 40})
	ch.Reply(types.TypeBid, "lots")
	ch.Reply(types.TypeBid, types.BidPayload{Amount: 500})
	ch.Reply(types.TypeBid, types.BidPayload{Amount: 100})

	bids, err := p.PendingBids()
	require.NoError(t, err)
	assert.Equal(t, []int{40, 100}, bids)

	bids, err = p.PendingBids()
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestPendingBids_ReportsDisconnect(t *testing.T) {
	p, ch := newParticipant(nil)
	ch.Close()
	_, err := p.PendingBids()
	assert.ErrorIs(t, err, mailbox.ErrChannelClosed)
}

func TestBuyOption(t *testing.T) {
	t.Run("queued auctioneer-bid counts immediately", func(t *testing.T) {
		p, ch := newParticipant(nil)
		ch.Reply(types.TypeAuctioneerBid, types.BidPayload{Amount: 50})
		ok, err := p.BuyOption(withTimeout(t), 50, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, ch.SentOfType(types.TypeQuery))
	})

	t.Run("reply to the prompt within the window", func(t *testing.T) {
		p, _ := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
			if m.Type == types.TypeQuery {
				c.Reply(types.TypeAuctioneerBid, types.BidPayload{Amount: 60})
			}
		})
		ok, err := p.BuyOption(withTimeout(t), 60, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("silence declines", func(t *testing.T) {
		p, _ := newParticipant(nil)
		ok, err := p.BuyOption(withTimeout(t), 50, 20*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("too low declines", func(t *testing.T) {
		p, ch := newParticipant(nil)
		ch.Reply(types.TypeAuctioneerBid, types.BidPayload{Amount: 40})
		ok, err := p.BuyOption(withTimeout(t), 50, 20*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cannot cover the price", func(t *testing.T) {
		p, ch := newParticipant(nil)
		ch.Reply(types.TypeAuctioneerBid, types.BidPayload{Amount: 500})
		ok, err := p.BuyOption(withTimeout(t), 500, time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, ch.SentOfType(types.TypeQuery))
	})
}

func TestCreatePayment_RepromptsUntilValid(t *testing.T) {
	bundles := []any{
		engine.Money{FiveHundreds: 1},
		engine.Money{Tens: 1},
		"junk",
		engine.Money{Fifties: 1},
	}
	p, ch := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery && len(bundles) > 0 {
			c.Reply(types.TypePayment, bundles[0])
			bundles = bundles[1:]
		}
	})

	pay, err := p.CreatePayment(withTimeout(t), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, pay.Total())
	assert.Equal(t, 50, p.Ledger.Total())

	queries := ch.SentOfType(types.TypeQuery)
	require.Len(t, queries, 4)
	assert.Equal(t, "Please select payment cards that total at least 50", queries[0].Text())
	assert.Equal(t, "You don't have those cards! Please select payment cards that total at least 50", queries[1].Text())
	assert.Equal(t, "That payment is too small! Please select payment cards that total at least 50", queries[2].Text())
}

func TestChallengePayment_AllowsEmptyAnte(t *testing.T) {
	p, _ := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery {
			c.Reply(types.TypePayment, map[string]int{})
		}
	})
	pay, err := p.ChallengePayment(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, 0, pay.Total())
	assert.Equal(t, 0, pay.Count())
	assert.Equal(t, engine.StartingMoney, p.Ledger.Money())
}

func TestRequestChallenge_RequeriesOnMalformedPick(t *testing.T) {
	picks := []any{"cow", types.ChallengePayload{Player: "bo", Card: "cow"}}
	p, ch := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery && m.Text() == promptChallenge {
			c.Reply(types.TypeChallenge, picks[0])
			picks = picks[1:]
		}
	})

	pick, err := p.RequestChallenge(withTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, types.ChallengePayload{Player: "bo", Card: "cow"}, pick)

	errs := ch.SentOfType(types.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, RejectChallenge, errs[0].Text())
	assert.Len(t, ch.SentOfType(types.TypeQuery), 2)
}

func TestCreatePayment_DisconnectIsReturned(t *testing.T) {
	p, _ := newParticipant(func(c *mailboxtest.Channel, m mailboxtest.Sent) {
		if m.Type == types.TypeQuery {
			go c.Close()
		}
	})
	_, err := p.CreatePayment(withTimeout(t), 10)
	assert.ErrorIs(t, err, mailbox.ErrChannelClosed)
}

func TestUpdateState_IncludesPrivateWallet(t *testing.T) {
	p, ch := newParticipant(nil)
	global := engine.GlobalState{
		Players:   []string{"ann"},
		DeckCount: 44,
		Public:    map[string]engine.PlayerState{"ann": p.PublicState()},
	}
	require.NoError(t, p.UpdateState(global))

	states := ch.SentOfType(types.TypeState)
	require.Len(t, states, 1)
	assert.JSONEq(t, `{
		"my name": "ann",
		"my wallet": {"zeros":2,"tens":3,"twenties":1,"fifties":1,"hundreds":0,"twohundreds":0,"fivehundreds":0},
		"global_state": {"players":["ann"],"ann":{"wallet":7,"cards":[],"completed_sets":[]},"deck_count":44}
	}`, string(states[0].Payload))
}

func TestSendCard(t *testing.T) {
	p, ch := newParticipant(nil)
	cow, _ := engine.CardOf(engine.KindCow)
	require.NoError(t, p.SendCard(cow))
	assert.JSONEq(t, `{"name":"cow","value":800}`, string(ch.SentOfType(types.TypeCard)[0].Payload))
}
