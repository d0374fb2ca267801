package lobby

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/player"
)

var ErrLobbyFull = errors.New("lobby full")
var ErrNameTaken = errors.New("name taken")
var ErrLobbyClosed = errors.New("lobby closed")

// Names that would collide with keys of the published global state.
var reservedNames = []string{"players", "deck_count"}

type Msg interface{ isLobbyMsg() }

type Join struct {
	Participant *player.Participant
	Name        string
	Reply       chan error
}

func (Join) isLobbyMsg() {}

// Leave removes a participant who disconnected before the game started.
type Leave struct{ ParticipantID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Capacity int
	Players  []string
	Ready    bool
}

// Lobby admits participants until capacity is reached, then hands the roster
// over exactly once through Ready.
type Lobby struct {
	inbox    chan Msg
	capacity int
	roster   []*player.Participant
	isReady  bool
	ready    chan []*player.Participant
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewLobby(parent context.Context, capacity int, logger *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:    make(chan Msg, 64), // Small buffer
		capacity: capacity,
		ready:    make(chan []*player.Participant, 1),
		ctx:      ctx,
		cancel:   cancel,
		log:      logger,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- l.admit(msg.Participant, msg.Name)

			case Leave:
				if l.isReady {
					// the game owns disconnects from here on
					break
				}
				l.roster = slices.DeleteFunc(l.roster, func(p *player.Participant) bool {
					return p.ID == msg.ParticipantID
				})
				l.log.Info("player left lobby", zap.String("participant", msg.ParticipantID), zap.Int("players", len(l.roster)))

			case GetState:
				msg.Reply <- l.view()

			case Shutdown:
				l.cancel()
				return
			}
		}
	}
}

func (l *Lobby) admit(p *player.Participant, name string) error {
	if l.isReady || len(l.roster) >= l.capacity {
		return ErrLobbyFull
	}
	if slices.Contains(reservedNames, name) {
		return ErrNameTaken
	}
	for _, other := range l.roster {
		if other.Name == name {
			return ErrNameTaken
		}
	}

	p.SetName(name)
	l.roster = append(l.roster, p)
	l.log.Info("player joined lobby", zap.String("player", name), zap.Int("players", len(l.roster)), zap.Int("capacity", l.capacity))

	if len(l.roster) == l.capacity {
		l.isReady = true
		l.ready <- slices.Clone(l.roster)
		l.log.Info("lobby ready")
	}
	return nil
}

func (l *Lobby) view() View {
	names := make([]string, len(l.roster))
	for i, p := range l.roster {
		names[i] = p.Name
	}
	return View{Capacity: l.capacity, Players: names, Ready: l.isReady}
}

// Join asks the lobby to admit p under name.
func (l *Lobby) Join(ctx context.Context, p *player.Participant, name string) error {
	reply := make(chan error, 1)
	if err := l.send(ctx, Join{Participant: p, Name: name, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-l.ctx.Done():
		return ErrLobbyClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) Leave(ctx context.Context, participantID string) error {
	return l.send(ctx, Leave{ParticipantID: participantID})
}

func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, ErrLobbyClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return ErrLobbyClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready delivers the full roster, in join order, exactly once.
func (l *Lobby) Ready() <-chan []*player.Participant { return l.ready }

// Done is closed once the lobby stops serving requests.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Expose the inbox so tests can send messages directly.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }
