package game

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
	"github.com/DoyleJ11/kuhhandel-server/internal/player"
	"github.com/DoyleJ11/kuhhandel-server/pkg/types"
)

const rejectTarget = "You can't challenge that person"

// runChallenge validates the challenger's pick, collects both sealed antes,
// swaps them and hands the contested cards to the higher ante.
func (s *Session) runChallenge(ctx context.Context, challenger *player.Participant, targets []*player.Participant) error {
	ctx, span := s.tracer.Start(ctx, "session.challenge")
	defer span.End()

	target, kind, pairs, err := s.pickChallenge(ctx, challenger, targets)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("challenge.target", target.Name),
		attribute.String("challenge.kind", string(kind)),
		attribute.Int("challenge.pairs", pairs),
	)

	stake := make([]engine.Card, 0, 2*pairs)
	for n := 0; n < pairs; n++ {
		for _, p := range []*player.Participant{challenger, target} {
			c, err := p.TakeCard(kind)
			if err != nil {
				return fmt.Errorf("stake from %s: %w", p.Name, err)
			}
			stake = append(stake, c)
		}
	}

	subject := fmt.Sprintf("a %s", kind)
	if pairs == 2 {
		subject = fmt.Sprintf("all the %ss", kind)
	}

	ante, err := challenger.ChallengePayment(ctx)
	if err != nil {
		return err
	}
	if err := s.broadcastMessage(fmt.Sprintf("%s has challenged %s for %s with %d money cards.",
		challenger.Name, target.Name, subject, ante.Count())); err != nil {
		return err
	}

	counter, err := target.ChallengePayment(ctx)
	if err != nil {
		return err
	}
	if err := s.broadcastMessage(fmt.Sprintf("%s has responded to the challenge with %d money cards.",
		target.Name, counter.Count())); err != nil {
		return err
	}

	winner := target
	if engine.ChallengeWinner(ante, counter) {
		winner = challenger
	}
	challenger.AcceptPayment(counter)
	target.AcceptPayment(ante)
	for _, c := range stake {
		winner.AddCard(c)
	}

	s.log.Info("challenge settled",
		zap.String("challenger", challenger.Name),
		zap.String("target", target.Name),
		zap.String("kind", string(kind)),
		zap.String("winner", winner.Name))
	return s.broadcastMessage(fmt.Sprintf("%s has won the challenge!", winner.Name))
}

// pickChallenge asks until the challenger names a legal target and a kind
// both hold. A name matching nobody in the session is fatal.
func (s *Session) pickChallenge(ctx context.Context, challenger *player.Participant, targets []*player.Participant) (*player.Participant, engine.Kind, int, error) {
	for {
		req, err := challenger.RequestChallenge(ctx)
		if err != nil {
			return nil, "", 0, err
		}
		target := s.byName(req.Player)
		if target == nil {
			return nil, "", 0, fmt.Errorf("%w: %q", ErrTargetNotFound, req.Player)
		}
		if !slices.Contains(targets, target) {
			if err := challenger.Error(types.Prompt{Message: rejectTarget}); err != nil {
				return nil, "", 0, err
			}
			continue
		}
		kind := engine.Kind(req.Card)
		pairs, err := engine.ContestedPairs(challenger.Hand, target.Hand, kind)
		if err != nil {
			if err := challenger.Error(types.Prompt{Message: player.RejectChallenge}); err != nil {
				return nil, "", 0, err
			}
			continue
		}
		return target, kind, pairs, nil
	}
}
