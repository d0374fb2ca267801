// Package game runs one Kuhhandel session: it waits for the lobby to fill,
// then drives the turn loop, the auction and challenge protocols, and the
// final scoring.
//
// A single goroutine (Run) owns the deck, the rotation and every
// participant's ledger and hand once play starts. Transport goroutines only
// ever push into participant mailboxes.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
	"github.com/DoyleJ11/kuhhandel-server/internal/lobby"
	"github.com/DoyleJ11/kuhhandel-server/internal/mailbox"
	"github.com/DoyleJ11/kuhhandel-server/internal/player"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

var ErrTargetNotFound = errors.New("challenge target not found")
var ErrDeckEmpty = errors.New("deck empty")

const (
	disconnectNotice = "Sorry, the game has been ended because a player disconnected"
	failureNotice    = "Sorry, the game has been ended because of an error"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

type Config struct {
	Players       int
	AuctionWindow time.Duration
	BuyOutWindow  time.Duration
}

// Recorder stores the final standings of a finished session.
type Recorder interface {
	Record(ctx context.Context, code string, board engine.Scoreboard) error
}

type Option func(*Session)

// WithDeck replaces the shuffled 44-card deck.
func WithDeck(d *engine.Deck) Option {
	return func(s *Session) { s.deck = d }
}

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

type Session struct {
	code     string
	cfg      Config
	lobby    *lobby.Lobby
	deck     *engine.Deck
	recorder Recorder
	log      *zap.Logger
	tracer   trace.Tracer

	// owned by the Run goroutine
	roster []*player.Participant
	turn   engine.Rotation

	mu        sync.Mutex
	status    Status
	reserved  int
	published engine.GlobalState
	board     engine.Scoreboard
	err       error
	done      chan struct{}
}

// View is a read-only summary for HTTP callers.
type View struct {
	Code      string            `json:"code"`
	Status    Status            `json:"status"`
	Capacity  int               `json:"capacity"`
	Players   []string          `json:"players"`
	DeckCount int               `json:"deck_count"`
	Scores    engine.Scoreboard `json:"scores,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func New(ctx context.Context, code string, cfg Config, logger *zap.Logger, opts ...Option) *Session {
	log := logger.With(zap.String("session", code))
	s := &Session{
		code:   code,
		cfg:    cfg,
		lobby:  lobby.NewLobby(ctx, cfg.Players, log),
		deck:   engine.NewDeck(rand.New(rand.NewSource(time.Now().UnixNano()))),
		log:    log,
		tracer: otel.Tracer("github.com/DoyleJ11/kuhhandel-server/internal/game"),
		status: StatusWaiting,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.published.DeckCount = s.deck.Len()
	return s
}

func (s *Session) Code() string  { return s.code }
func (s *Session) Capacity() int { return s.cfg.Players }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Reserve claims a seat for a connecting participant. It fails once every
// seat is claimed or play has started.
func (s *Session) Reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusWaiting || s.reserved >= s.cfg.Players {
		return false
	}
	s.reserved++
	return true
}

// Release gives back a seat claimed with Reserve.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusWaiting && s.reserved > 0 {
		s.reserved--
	}
}

// Join registers p under name. The session starts once the configured
// number of participants has joined.
func (s *Session) Join(ctx context.Context, p *player.Participant, name string) error {
	return s.lobby.Join(ctx, p, name)
}

// Leave withdraws a joined participant before play starts and frees the seat.
func (s *Session) Leave(ctx context.Context, participantID string) error {
	defer s.Release()
	return s.lobby.Leave(ctx, participantID)
}

func (s *Session) View(ctx context.Context) (View, error) {
	s.mu.Lock()
	v := View{
		Code:      s.code,
		Status:    s.status,
		Capacity:  s.cfg.Players,
		Players:   s.published.Players,
		DeckCount: s.published.DeckCount,
		Scores:    s.board,
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	s.mu.Unlock()

	if v.Status != StatusWaiting {
		return v, nil
	}
	lv, err := s.lobby.State(ctx)
	if err != nil {
		return View{}, err
	}
	v.Players = lv.Players
	return v, nil
}

// Run waits for the lobby to fill and plays the session to completion. A
// returned error has already been broadcast to every participant.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	select {
	case roster := <-s.lobby.Ready():
		s.start(roster)
	case <-ctx.Done():
		s.finish(ctx.Err())
		return ctx.Err()
	}

	err := s.play(ctx)
	if err != nil {
		s.log.Error("session ended by fatal error", zap.Error(err))
		s.abort(err)
	}
	select {
	case s.lobby.Inbox() <- lobby.Shutdown{}:
	case <-s.lobby.Done():
	}
	s.finish(err)
	return err
}

func (s *Session) start(roster []*player.Participant) {
	s.roster = roster
	s.turn = engine.NewRotation(len(roster))

	s.mu.Lock()
	s.status = StatusInProgress
	s.mu.Unlock()
	s.log.Info("session started", zap.Strings("players", s.names()))
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusComplete
	s.err = err
}

// play runs turns until the deck and every hand are empty. A full round in
// which nobody can act also ends the game; only a stacked deck can get there.
func (s *Session) play(ctx context.Context) error {
	passes := 0
	for (s.deck.Len() > 0 || s.anyCanTrade()) && passes < len(s.roster) {
		if err := s.publish(); err != nil {
			return err
		}
		action, err := s.playTurn(ctx, s.roster[s.turn.Head()])
		if err != nil {
			return err
		}
		if action == engine.ActionPass {
			passes++
		} else {
			passes = 0
		}
		s.turn = s.turn.Advance()
	}
	return s.gameOver(ctx)
}

func (s *Session) playTurn(ctx context.Context, head *player.Participant) (action engine.Action, err error) {
	ctx, span := s.tracer.Start(ctx, "session.turn", trace.WithAttributes(
		attribute.String("session.code", s.code),
		attribute.String("player.name", head.Name),
		attribute.Int("deck.count", s.deck.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	targets := s.legalTargets(head)
	action, err = head.ChooseAction(ctx, engine.Options{
		CanAuction:   s.deck.Len() > 0,
		CanChallenge: len(targets) > 0,
	})
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("turn.action", string(action)))
	s.log.Info("turn", zap.String("player", head.Name), zap.String("action", string(action)))

	switch action {
	case engine.ActionAuction:
		return action, s.runAuction(ctx, head)
	case engine.ActionChallenge:
		return action, s.runChallenge(ctx, head, targets)
	case engine.ActionPass:
		return action, nil
	default:
		return "", fmt.Errorf("%w %q", engine.ErrUnknownAction, action)
	}
}

func (s *Session) anyCanTrade() bool {
	for _, p := range s.roster {
		if p.CanTrade() {
			return true
		}
	}
	return false
}

// legalTargets lists the other participants sharing a kind with p, in turn order.
func (s *Session) legalTargets(p *player.Participant) []*player.Participant {
	var targets []*player.Participant
	for _, seat := range s.turn.Order() {
		other := s.roster[seat]
		if other != p && engine.SharesKind(p.Hand, other.Hand) {
			targets = append(targets, other)
		}
	}
	return targets
}

func (s *Session) byName(name string) *player.Participant {
	for _, p := range s.roster {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Session) names() []string {
	names := make([]string, len(s.roster))
	for i, p := range s.roster {
		names[i] = p.Name
	}
	return names
}

func (s *Session) snapshot() engine.GlobalState {
	g := engine.GlobalState{
		Players:   s.names(),
		DeckCount: s.deck.Len(),
		Public:    make(map[string]engine.PlayerState, len(s.roster)),
	}
	for _, p := range s.roster {
		g.Public[p.Name] = p.PublicState()
	}
	return g
}

// publish stores the shared snapshot and sends it to every participant.
func (s *Session) publish() error {
	g := s.snapshot()
	s.mu.Lock()
	s.published = g
	s.mu.Unlock()
	return s.broadcast(func(p *player.Participant) error { return p.UpdateState(g) })
}

// broadcast calls send for every participant in rotation order and stops at
// the first failure.
func (s *Session) broadcast(send func(p *player.Participant) error) error {
	for _, seat := range s.turn.Order() {
		if err := send(s.roster[seat]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) broadcastMessage(text string) error {
	return s.broadcast(func(p *player.Participant) error {
		return p.Message(types.Prompt{Message: text})
	})
}

// flipCard draws the next card. A donkey pays every ledger the next bonus
// and republishes state before the card is shown.
func (s *Session) flipCard() (engine.Card, error) {
	card, ok := s.deck.Draw()
	if !ok {
		return engine.Card{}, ErrDeckEmpty
	}
	if card.Kind != engine.KindDonkey {
		return card, nil
	}
	for _, p := range s.roster {
		if err := p.Ledger.DonkeyBonus(); err != nil {
			return engine.Card{}, fmt.Errorf("bonus for %s: %w", p.Name, err)
		}
	}
	s.log.Info("donkey bonus paid", zap.Int("deck_count", s.deck.Len()))
	return card, s.publish()
}

func (s *Session) gameOver(ctx context.Context) error {
	scores := make([]engine.Score, len(s.roster))
	for i, p := range s.roster {
		scores[i] = engine.Score{Name: p.Name, Score: p.Score()}
	}
	board := engine.NewScoreboard(scores)

	s.mu.Lock()
	s.board = board
	s.published = s.snapshot()
	s.mu.Unlock()

	if err := s.broadcast(func(p *player.Participant) error {
		return p.Send(types.TypeGameOver, board)
	}); err != nil {
		return err
	}
	s.log.Info("game over", zap.Any("scores", board))

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, s.code, board); err != nil {
			s.log.Error("record results", zap.Error(err))
		}
	}
	return nil
}

// abort tells everyone still connected why the session ended.
func (s *Session) abort(cause error) {
	notice := failureNotice
	if errors.Is(cause, mailbox.ErrChannelClosed) {
		notice = disconnectNotice
	}
	for _, p := range s.roster {
		if err := p.Error(types.Prompt{Message: notice}); err != nil && !errors.Is(err, mailbox.ErrChannelClosed) {
			s.log.Warn("abort notice failed", zap.String("player", p.Name), zap.Error(err))
		}
	}
}
