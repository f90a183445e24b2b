package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	pgrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/postgres"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/cache"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/chat"
)

const (
	defaultListLimit = 100
	defaultMatchTTL  = 30 * time.Minute
)

type MatchStore interface {
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, userID, targetID int64, now time.Time) (model.Match, bool, error)
	GetByID(ctx context.Context, matchID int64) (model.Match, error)
	ListActiveForUser(ctx context.Context, userID int64, limit int) ([]model.MatchSummary, error)
}

type LikeLookup interface {
	HasLiked(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64) (bool, error)
}

type Publisher interface {
	PublishUser(ctx context.Context, userID, matchID int64, payload chat.Payload)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

type PhotoSigner interface {
	SignPhoto(ctx context.Context, key string) (string, error)
}

type Config struct {
	MatchTTL  time.Duration
	ListLimit int
}

type Dependencies struct {
	MatchStore  MatchStore
	LikeLookup  LikeLookup
	Publisher   Publisher
	Cache       Cache
	PhotoSigner PhotoSigner
	Logger      *zap.Logger
}

type Service struct {
	matchStore MatchStore
	likes      LikeLookup
	publisher  Publisher
	cache      Cache
	photoSign  PhotoSigner
	log        *zap.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MatchTTL <= 0 {
		cfg.MatchTTL = defaultMatchTTL
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		matchStore: deps.MatchStore,
		likes:      deps.LikeLookup,
		publisher:  deps.Publisher,
		cache:      deps.Cache,
		photoSign:  deps.PhotoSigner,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// AttachPublisher sets the channel that carries match-created. The channel
// itself looks up participants through this service, so it is wired after
// construction.
func (s *Service) AttachPublisher(publisher Publisher) {
	s.publisher = publisher
}

// CheckAndCreate runs inside the swipe transaction after actorID's swipe on
// targetID is stored. It returns the match only when this call created it;
// exists reports whether the pair is matched once the call returns.
func (s *Service) CheckAndCreate(ctx context.Context, tx pgx.Tx, actorID, targetID int64) (*model.Match, bool, error) {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return nil, false, errs.ErrValidation
	}
	if s.matchStore == nil || s.likes == nil {
		return nil, false, fmt.Errorf("match detector dependencies are not configured")
	}

	liked, err := s.likes.HasLiked(ctx, tx, actorID, targetID)
	if err != nil || !liked {
		return nil, false, err
	}
	likedBack, err := s.likes.HasLiked(ctx, tx, targetID, actorID)
	if err != nil || !likedBack {
		return nil, false, err
	}

	m, created, err := s.matchStore.CreateIfAbsent(ctx, tx, actorID, targetID, s.now().UTC())
	if err != nil {
		return nil, false, err
	}
	if !created {
		return nil, true, nil
	}
	return &m, true, nil
}

// NotifyCreated tells both users about a new match on their control topics.
func (s *Service) NotifyCreated(ctx context.Context, m model.Match) {
	if s.publisher == nil {
		return
	}
	payload := chat.MatchCreatedPayloadFrom(m)
	s.publisher.PublishUser(ctx, m.UserAID, m.ID, payload)
	s.publisher.PublishUser(ctx, m.UserBID, m.ID, payload)
}

// Participants returns the match row used for authorization. Participants of
// a match never change, so the row is cached.
func (s *Service) Participants(ctx context.Context, matchID int64) (model.Match, error) {
	if matchID <= 0 {
		return model.Match{}, errs.ErrValidation
	}
	if s.matchStore == nil {
		return model.Match{}, fmt.Errorf("match store is nil")
	}

	var m model.Match
	if s.cache != nil && s.cache.Get(ctx, cache.MatchKey(matchID), &m) && m.ID == matchID {
		return m, nil
	}

	m, err := s.matchStore.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return model.Match{}, fmt.Errorf("%w: match %d", errs.ErrNotFound, matchID)
		}
		return model.Match{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cache.MatchKey(matchID), m, s.cfg.MatchTTL)
	}
	return m, nil
}

// List returns userID's active matches, newest first, with the counterpart's
// card and the number of messages userID has not read yet.
func (s *Service) List(ctx context.Context, userID int64) ([]model.MatchSummary, error) {
	if userID <= 0 {
		return nil, errs.ErrValidation
	}
	if s.matchStore == nil {
		return nil, fmt.Errorf("match store is nil")
	}

	items, err := s.matchStore.ListActiveForUser(ctx, userID, s.cfg.ListLimit)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].PhotoURL = s.signPhoto(ctx, items[i].PhotoKey)
	}
	return items, nil
}

func (s *Service) signPhoto(ctx context.Context, key string) string {
	if key == "" || s.photoSign == nil {
		return ""
	}
	signed, err := s.photoSign.SignPhoto(ctx, key)
	if err != nil {
		s.log.Warn("sign match photo failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return signed
}
