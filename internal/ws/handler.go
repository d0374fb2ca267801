package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/game"
	"github.com/DoyleJ11/kuhhandel-server/internal/hub"
	"github.com/DoyleJ11/kuhhandel-server/internal/lobby"
	"github.com/DoyleJ11/kuhhandel-server/internal/player"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

const (
	noticeFull   = "That game is full"
	noticeTaken  = "That name is already taken"
	noticeJoined = "You've been successfully added to the game! The game will start when enough players join"
)

// Handler upgrades the request and seats the participant. With ?code= it
// joins that session, otherwise it quick-joins an open public one.
func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code != "" {
			s, err := h.Get(r.Context(), code)
			if err != nil {
				http.Error(w, "server shutting down", http.StatusServiceUnavailable)
				return
			}
			if s == nil {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}

		c := NewConn(conn, logger)
		defer c.Close()
		p := player.New(c, logger)
		log := logger.With(zap.String("participant", p.ID))

		ctx := r.Context()
		var s *game.Session
		if code != "" {
			s, err = h.Reserve(ctx, code)
		} else {
			s, err = h.Ensure(ctx)
		}
		if err != nil || s == nil {
			_ = p.Error(types.Prompt{Message: noticeFull})
			return
		}
		log = log.With(zap.String("session", s.Code()))

		if err := seat(ctx, s, p); err != nil {
			log.Info("left before joining", zap.Error(err))
			s.Release()
			return
		}
		_ = p.Message(types.Prompt{Message: noticeJoined})

		select {
		case <-s.Done():
		case <-p.Done():
			if s.Status() == game.StatusWaiting {
				_ = s.Leave(context.WithoutCancel(ctx), p.ID)
				log.Info("left lobby")
			}
			// a running session sees the disconnect on its next send or wait
		}
	}
}

// seat asks for a name until the session accepts one.
func seat(ctx context.Context, s *game.Session, p *player.Participant) error {
	for {
		name, err := p.RequestName(ctx)
		if err != nil {
			return err
		}
		err = s.Join(ctx, p, name)
		if !errors.Is(err, lobby.ErrNameTaken) {
			return err
		}
		if err := p.Error(types.Prompt{Message: noticeTaken}); err != nil {
			return err
		}
	}
}
