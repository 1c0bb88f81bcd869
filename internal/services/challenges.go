package services

import (
	"context"
	"errors"

	"simplemoney/internal/amqp"
	"simplemoney/internal/challenges"
	"simplemoney/internal/core"
	"simplemoney/internal/log"

	"github.com/shopspring/decimal"
)

// AcceptOptions tunes AcceptChallenge.
type AcceptOptions struct {
	// Current seeds the progress instead of the measured metric.
	Current *decimal.Decimal
}

// AcceptResult is the open instance after an accept.
type AcceptResult struct {
	Challenge core.Challenge
	// Created is false when an open instance already existed.
	Created bool
	Cascade CascadeResult
}

// Catalog lists the challenges a user can accept.
func (s *LedgerService) Catalog() []challenges.Definition {
	return challenges.Catalog()
}

// AcceptChallenge opens an instance of a catalog challenge. Accepting a
// challenge that is already active or completed returns that instance.
func (s *LedgerService) AcceptChallenge(ctx context.Context, userID, challengeID string, opts AcceptOptions) (AcceptResult, error) {
	if err := requireUser(userID); err != nil {
		return AcceptResult{}, err
	}
	def, ok := challenges.Lookup(challengeID)
	if !ok {
		return AcceptResult{}, core.ErrUnknownChallenge
	}
	if opts.Current != nil && opts.Current.IsNegative() {
		return AcceptResult{}, core.Validation("current", "current cannot be negative")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	if open, ok, err := s.openInstance(ctx, userID, challengeID); err != nil {
		return AcceptResult{}, err
	} else if ok {
		return AcceptResult{Challenge: open}, nil
	}

	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return AcceptResult{}, core.Backend("accept challenge", err)
	}
	c := challenges.NewInstance(def, userID, challenges.Seed(def, snap, opts.Current), s.now())

	res, err := s.applyLedgerMutation(ctx, userID, "accept challenge", func(ctx context.Context) error {
		return s.repo.InsertChallenge(ctx, c)
	})
	if errors.Is(err, core.ErrChallengeAccepted) {
		open, _, oerr := s.openInstance(ctx, userID, challengeID)
		return AcceptResult{Challenge: open}, oerr
	}
	if !committed(err) {
		return AcceptResult{}, err
	}
	for _, adv := range res.Advanced {
		if adv.ID == c.ID {
			c = adv
		}
	}
	for _, p := range res.Rewarded {
		if p.Challenge.ID == c.ID {
			at := p.Achievement.Date
			c.RewardedAt = &at
		}
	}

	s.logger.InfoContext(ctx, "Challenge accepted",
		log.NewFields().WithUser(userID).WithChallenge(c.ID, c.ChallengeID).ToSlice()...)
	s.publish(ctx, amqp.EventChallengeAccepted, userID, c.ID)
	return AcceptResult{Challenge: c, Created: true, Cascade: res}, err
}

// AbandonChallenge moves an active instance to abandoned without payout.
func (s *LedgerService) AbandonChallenge(ctx context.Context, userID, id string) (core.Challenge, error) {
	if err := requireUser(userID); err != nil {
		return core.Challenge{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	ctx, cancel := s.stageContext(ctx)
	defer cancel()

	c, err := s.repo.GetChallenge(ctx, userID, id)
	if err != nil {
		return core.Challenge{}, core.Backend("get challenge", err)
	}
	if c.Status != core.ChallengeActive {
		return core.Challenge{}, core.ErrChallengeNotActive
	}
	at := s.now()
	ok, err := s.repo.AbandonChallenge(ctx, userID, id, at)
	if err != nil {
		return core.Challenge{}, core.Backend("abandon challenge", err)
	}
	if !ok {
		return core.Challenge{}, core.ErrChallengeNotActive
	}
	c.Status = core.ChallengeAbandoned
	c.AbandonedAt = &at

	s.logger.InfoContext(ctx, "Challenge abandoned",
		log.NewFields().WithUser(userID).WithChallenge(c.ID, c.ChallengeID).ToSlice()...)
	s.publish(ctx, amqp.EventChallengeAbandoned, userID, c.ID)
	return c, nil
}

// ListChallenges returns the user's active and completed instances.
func (s *LedgerService) ListChallenges(ctx context.Context, userID string) ([]core.Challenge, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	all, err := s.repo.ListChallenges(ctx, userID)
	if err != nil {
		return nil, core.Backend("list challenges", err)
	}
	out := make([]core.Challenge, 0, len(all))
	for _, c := range all {
		if c.IsOpen() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *LedgerService) openInstance(ctx context.Context, userID, challengeID string) (core.Challenge, bool, error) {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	all, err := s.repo.ListChallenges(ctx, userID)
	if err != nil {
		return core.Challenge{}, false, core.Backend("list challenges", err)
	}
	for _, c := range all {
		if c.ChallengeID == challengeID && c.IsOpen() {
			return c, true, nil
		}
	}
	return core.Challenge{}, false, nil
}
