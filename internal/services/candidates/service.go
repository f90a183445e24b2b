package candidates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/rules"
	pgrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/postgres"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/cache"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/rate"
)

const (
	defaultPageSize      = 30
	poolMultiplier       = 4
	maxPoolSize          = 200
	defaultCandidatesTTL = 2 * time.Minute
	defaultProfileTTL    = 5 * time.Minute
)

// ErrProfileNotFound is returned when the viewer has no profile yet.
var ErrProfileNotFound = fmt.Errorf("%w: profile", errs.ErrNotFound)

type CandidateStore interface {
	ListCandidates(ctx context.Context, q pgrepo.CandidateQuery) ([]model.Profile, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (model.Profile, error)
}

// SwipeLookup reports which of targetIDs the actor already swiped on.
type SwipeLookup interface {
	SwipedAmong(ctx context.Context, actorUserID int64, targetIDs []int64) (map[int64]struct{}, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type RateGate interface {
	Gate(ctx context.Context, userID int64, bucket string) error
}

type PhotoSigner interface {
	SignPhoto(ctx context.Context, key string) (string, error)
}

type Config struct {
	PageSize      int
	CandidatesTTL time.Duration
	ProfileTTL    time.Duration
	GenderPolicy  enums.GenderPolicy
}

type Dependencies struct {
	Candidates  CandidateStore
	Profiles    ProfileStore
	Swipes      SwipeLookup
	Cache       Cache
	RateGate    RateGate
	PhotoSigner PhotoSigner
	Logger      *zap.Logger
}

type Service struct {
	candidates CandidateStore
	profiles   ProfileStore
	swipes     SwipeLookup
	cache      Cache
	rateGate   RateGate
	photoSign  PhotoSigner
	log        *zap.Logger
	cfg        Config
}

type scored struct {
	profile model.Profile
	score   float64
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.CandidatesTTL <= 0 {
		cfg.CandidatesTTL = defaultCandidatesTTL
	}
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = defaultProfileTTL
	}
	if cfg.GenderPolicy == "" {
		cfg.GenderPolicy = enums.GenderPolicyHard
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		candidates: deps.Candidates,
		profiles:   deps.Profiles,
		swipes:     deps.Swipes,
		cache:      deps.Cache,
		rateGate:   deps.RateGate,
		photoSign:  deps.PhotoSigner,
		log:        log,
		cfg:        cfg,
	}
}

// GetCandidates returns the ranked profiles userID can swipe on next. Results
// are cached briefly per user; swiping invalidates the entry.
func (s *Service) GetCandidates(ctx context.Context, userID int64) ([]model.Candidate, error) {
	if userID <= 0 {
		return nil, errs.ErrValidation
	}
	if s.candidates == nil || s.profiles == nil {
		return nil, fmt.Errorf("candidate dependencies are not configured")
	}

	if s.rateGate != nil {
		if err := s.rateGate.Gate(ctx, userID, rate.BucketCandidates); err != nil {
			return nil, err
		}
	}

	var cached []model.Candidate
	if s.cache != nil && s.cache.Get(ctx, cache.CandidatesKey(userID), &cached) {
		return s.dropSwiped(ctx, userID, cached), nil
	}

	viewer, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	poolSize := s.cfg.PageSize * poolMultiplier
	if poolSize > maxPoolSize {
		poolSize = maxPoolSize
	}
	filterGender := s.cfg.GenderPolicy == enums.GenderPolicyHard
	pool, err := s.candidates.ListCandidates(ctx, pgrepo.CandidateQuery{
		ViewerUserID:     userID,
		ViewerGender:     viewer.Gender,
		ViewerLookingFor: viewer.LookingFor,
		FilterGender:     filterGender,
		Limit:            poolSize,
	})
	if err != nil {
		return nil, err
	}

	ranked := s.rank(viewer, pool, filterGender)
	if len(ranked) > s.cfg.PageSize {
		ranked = ranked[:s.cfg.PageSize]
	}

	out := make([]model.Candidate, 0, len(ranked))
	for _, item := range ranked {
		out = append(out, model.Candidate{
			UserID:      item.profile.UserID,
			DisplayName: item.profile.DisplayName,
			Age:         item.profile.Age,
			Course:      item.profile.Course,
			Year:        item.profile.Year,
			Interests:   append([]string(nil), item.profile.Interests...),
			Gender:      item.profile.Gender,
			PhotoURLs:   s.signPhotos(ctx, item.profile.Photos),
			Score:       item.score,
		})
	}

	if s.cache != nil {
		s.cache.Set(ctx, cache.CandidatesKey(userID), out, s.cfg.CandidatesTTL)
	}
	return out, nil
}

// dropSwiped removes targets swiped after the list was cached. A list read
// before a swipe committed can be written back after the swipe invalidated
// the key; this keeps such a target from reappearing until the TTL.
func (s *Service) dropSwiped(ctx context.Context, userID int64, items []model.Candidate) []model.Candidate {
	if s.swipes == nil || len(items) == 0 {
		return items
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.UserID)
	}
	swiped, err := s.swipes.SwipedAmong(ctx, userID, ids)
	if err != nil {
		s.log.Warn("swiped lookup failed, serving cached candidates", zap.Int64("user_id", userID), zap.Error(err))
		return items
	}
	if len(swiped) == 0 {
		return items
	}

	out := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		if _, ok := swiped[item.UserID]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// Profile reads a profile through the cache.
func (s *Service) Profile(ctx context.Context, userID int64) (model.Profile, error) {
	if userID <= 0 {
		return model.Profile{}, errs.ErrValidation
	}
	if s.profiles == nil {
		return model.Profile{}, fmt.Errorf("profile store is nil")
	}

	var p model.Profile
	if s.cache != nil && s.cache.Get(ctx, cache.ProfileKey(userID), &p) && p.UserID == userID {
		return p, nil
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cache.ProfileKey(userID), p, s.cfg.ProfileTTL)
	}
	return p, nil
}

// Invalidate drops the cached candidate list of userID.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.cache != nil {
		s.cache.Delete(ctx, cache.CandidatesKey(userID))
	}
}

func (s *Service) rank(viewer model.Profile, pool []model.Profile, filterGender bool) []scored {
	viewerAffinity := affinityOf(viewer)

	items := make([]scored, 0, len(pool))
	for _, p := range pool {
		if p.UserID == viewer.UserID || !p.Visible || !p.Completed {
			continue
		}
		if filterGender && !rules.MutuallyCompatible(viewer.Gender, viewer.LookingFor, p.Gender, p.LookingFor) {
			continue
		}
		items = append(items, scored{
			profile: p,
			score:   rules.CompatibilityScore(viewerAffinity, affinityOf(p), s.cfg.GenderPolicy),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		if !items[i].profile.CreatedAt.Equal(items[j].profile.CreatedAt) {
			return items[i].profile.CreatedAt.After(items[j].profile.CreatedAt)
		}
		return items[i].profile.UserID > items[j].profile.UserID
	})
	return items
}

func (s *Service) signPhotos(ctx context.Context, keys []string) []string {
	urls := make([]string, 0, len(keys))
	if s.photoSign == nil {
		return urls
	}
	for _, key := range keys {
		signed, err := s.photoSign.SignPhoto(ctx, key)
		if err != nil {
			s.log.Warn("sign candidate photo failed", zap.String("key", key), zap.Error(err))
			continue
		}
		urls = append(urls, signed)
	}
	return urls
}

func affinityOf(p model.Profile) rules.Affinity {
	return rules.Affinity{
		Gender:     p.Gender,
		LookingFor: p.LookingFor,
		Course:     p.Course,
		Year:       p.Year,
		Interests:  p.Interests,
	}
}
