package swipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/rate"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type SwipeStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, decision enums.Decision, now time.Time) (model.Swipe, bool, error)
}

type MatchDetector interface {
	CheckAndCreate(ctx context.Context, tx pgx.Tx, actorID, targetID int64) (*model.Match, bool, error)
	NotifyCreated(ctx context.Context, m model.Match)
}

type ProfileLookup interface {
	Profile(ctx context.Context, userID int64) (model.Profile, error)
}

type CandidateInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

type RateGate interface {
	Gate(ctx context.Context, userID int64, bucket string) error
}

type Dependencies struct {
	Tx         TxRunner
	SwipeStore SwipeStore
	Matches    MatchDetector
	Profiles   ProfileLookup
	Candidates CandidateInvalidator
	RateGate   RateGate
	Logger     *zap.Logger
}

type SwipeResult struct {
	Swipe model.Swipe
	// IsMatch reports whether the pair is matched once the swipe is recorded.
	IsMatch bool
	// AlreadySwiped is set when the actor had decided on target before; the
	// stored decision is returned in Swipe and nothing changes.
	AlreadySwiped bool
	// Match is set only for the swipe that created the match.
	Match *model.Match
}

type Service struct {
	tx         TxRunner
	swipeStore SwipeStore
	matches    MatchDetector
	profiles   ProfileLookup
	candidates CandidateInvalidator
	rateGate   RateGate
	log        *zap.Logger
	now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		tx:         deps.Tx,
		swipeStore: deps.SwipeStore,
		matches:    deps.Matches,
		profiles:   deps.Profiles,
		candidates: deps.Candidates,
		rateGate:   deps.RateGate,
		log:        log,
		now:        time.Now,
	}
}

// RecordSwipe stores actorID's decision about targetID. The first decision on
// an ordered pair is final; repeating it returns AlreadySwiped.
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID int64, decision enums.Decision) (SwipeResult, error) {
	if actorID <= 0 || targetID <= 0 {
		return SwipeResult{}, fmt.Errorf("%w: actor and target are required", errs.ErrValidation)
	}
	if actorID == targetID {
		return SwipeResult{}, fmt.Errorf("%w: cannot swipe on yourself", errs.ErrValidation)
	}
	if decision != enums.DecisionLike && decision != enums.DecisionPass {
		return SwipeResult{}, fmt.Errorf("%w: unsupported decision %q", errs.ErrValidation, decision)
	}
	if s.tx == nil || s.swipeStore == nil || s.matches == nil {
		return SwipeResult{}, fmt.Errorf("swipe dependencies are not configured")
	}

	if s.rateGate != nil {
		if err := s.rateGate.Gate(ctx, actorID, rate.BucketSwipe); err != nil {
			return SwipeResult{}, err
		}
	}

	if s.profiles != nil {
		if _, err := s.profiles.Profile(ctx, targetID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return SwipeResult{}, fmt.Errorf("%w: target profile %d", errs.ErrNotFound, targetID)
			}
			return SwipeResult{}, err
		}
	}

	var result SwipeResult
	err := s.tx.WithinTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		if err := s.swipeStore.LockPair(txCtx, tx, actorID, targetID); err != nil {
			return err
		}

		swipe, inserted, err := s.swipeStore.InsertIfAbsent(txCtx, tx, actorID, targetID, decision, s.now().UTC())
		if err != nil {
			return err
		}
		result = SwipeResult{Swipe: swipe, AlreadySwiped: !inserted}

		if swipe.Decision != enums.DecisionLike {
			return nil
		}

		created, exists, err := s.matches.CheckAndCreate(txCtx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		result.IsMatch = exists
		result.Match = created
		return nil
	})
	if err != nil {
		return SwipeResult{}, err
	}

	if !result.AlreadySwiped && s.candidates != nil {
		s.candidates.Invalidate(ctx, actorID)
	}
	if result.Match != nil {
		s.log.Info("match created",
			zap.Int64("match_id", result.Match.ID),
			zap.Int64("user_a_id", result.Match.UserAID),
			zap.Int64("user_b_id", result.Match.UserBID),
		)
		s.matches.NotifyCreated(ctx, *result.Match)
	}

	return result, nil
}
