package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/game"
)

var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// CreateSession opens a private session reachable only by its code.
type CreateSession struct {
	Code  string
	Reply chan *game.Session // nil if the code is taken
}

type GetSession struct {
	Code  string
	Reply chan *game.Session
}

// EnsureSession reserves a seat in an open public session, creating one when
// none has room.
type EnsureSession struct {
	Reply chan *game.Session
}

// ReserveSession reserves a seat in the session with Code.
type ReserveSession struct {
	Code  string
	Reply chan *game.Session // nil if missing or full
}

type ListSessions struct {
	Reply chan []*game.Session
}

type RemoveSession struct {
	Code string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg()  {}
func (GetSession) isHubMsg()     {}
func (EnsureSession) isHubMsg()  {}
func (ReserveSession) isHubMsg() {}
func (ListSessions) isHubMsg()   {}
func (RemoveSession) isHubMsg()  {}
func (ShutdownHub) isHubMsg()    {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*game.Session
	order    []string
	public   map[string]bool
	cfg      game.Config
	opts     []game.Option
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, cfg game.Config, logger *zap.Logger, opts ...game.Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*game.Session),
		public:   make(map[string]bool),
		cfg:      cfg,
		opts:     opts,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if h.sessions[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.start(msg.Code, false)

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case EnsureSession:
				msg.Reply <- h.ensure()

			case ReserveSession:
				s := h.sessions[msg.Code]
				if s == nil || !s.Reserve() {
					msg.Reply <- nil
					break
				}
				msg.Reply <- s

			case ListSessions:
				out := make([]*game.Session, 0, len(h.order))
				for _, code := range h.order {
					out = append(out, h.sessions[code])
				}
				msg.Reply <- out

			case RemoveSession:
				delete(h.sessions, msg.Code)
				delete(h.public, msg.Code)
				h.order = slices.DeleteFunc(h.order, func(c string) bool { return c == msg.Code })

			case ShutdownHub:
				h.log.Info("hub shutting down", zap.Int("sessions", len(h.sessions)))
				clear(h.sessions)
				clear(h.public)
				h.order = nil
				h.cancel()
			}
		}
	}
}

func (h *Hub) ensure() *game.Session {
	for _, code := range h.order {
		if s := h.sessions[code]; h.public[code] && s.Reserve() {
			return s
		}
	}
	var code string
	for code == "" || h.sessions[code] != nil {
		c, err := GenerateCode()
		if err != nil {
			h.log.Error("generate session code", zap.Error(err))
			return nil
		}
		code = c
	}
	s := h.start(code, true)
	s.Reserve()
	return s
}

// start creates a session, runs it and removes it from the hub when it ends.
func (h *Hub) start(code string, public bool) *game.Session {
	s := game.New(h.ctx, code, h.cfg, h.log, h.opts...)
	h.sessions[code] = s
	h.public[code] = public
	h.order = append(h.order, code)
	h.log.Info("session created", zap.String("session", code), zap.Bool("public", public))

	go func() {
		if err := s.Run(h.ctx); err != nil {
			h.log.Warn("session ended", zap.String("session", code), zap.Error(err))
		}
		select {
		case h.inbox <- RemoveSession{Code: code}:
		case <-h.ctx.Done():
		}
	}()
	return s
}

// Request helpers

func (h *Hub) Ensure(ctx context.Context) (*game.Session, error) {
	reply := make(chan *game.Session, 1)
	return h.request(ctx, EnsureSession{Reply: reply}, reply)
}

func (h *Hub) Create(ctx context.Context, code string) (*game.Session, error) {
	reply := make(chan *game.Session, 1)
	return h.request(ctx, CreateSession{Code: code, Reply: reply}, reply)
}

func (h *Hub) Reserve(ctx context.Context, code string) (*game.Session, error) {
	reply := make(chan *game.Session, 1)
	return h.request(ctx, ReserveSession{Code: code, Reply: reply}, reply)
}

func (h *Hub) Get(ctx context.Context, code string) (*game.Session, error) {
	reply := make(chan *game.Session, 1)
	return h.request(ctx, GetSession{Code: code, Reply: reply}, reply)
}

func (h *Hub) List(ctx context.Context) ([]*game.Session, error) {
	reply := make(chan []*game.Session, 1)
	if err := h.send(ctx, ListSessions{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) request(ctx context.Context, m HubMsg, reply chan *game.Session) (*game.Session, error) {
	if err := h.send(ctx, m); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GenerateCode returns a six-character session code.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
