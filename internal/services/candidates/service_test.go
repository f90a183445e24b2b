package candidates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/errs"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
	pgrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/postgres"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/cache"
)

type storeStub struct {
	profiles  map[int64]model.Profile
	pool      []model.Profile
	listCalls int
	lastQuery pgrepo.CandidateQuery
}

func (s *storeStub) GetProfile(_ context.Context, userID int64) (model.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return model.Profile{}, pgrepo.ErrProfileNotFound
	}
	return p, nil
}

func (s *storeStub) ListCandidates(_ context.Context, q pgrepo.CandidateQuery) ([]model.Profile, error) {
	s.listCalls++
	s.lastQuery = q
	return s.pool, nil
}

type swipeLookupStub struct {
	swiped map[int64]struct{}
	err    error
	calls  int
}

func (s *swipeLookupStub) SwipedAmong(_ context.Context, _ int64, targetIDs []int64) (map[int64]struct{}, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := map[int64]struct{}{}
	for _, id := range targetIDs {
		if _, ok := s.swiped[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

type memoryCache struct {
	values map[string]any
}

func (c *memoryCache) Get(_ context.Context, key string, dst any) bool {
	v, ok := c.values[key]
	if !ok {
		return false
	}
	switch d := dst.(type) {
	case *[]model.Candidate:
		*d = v.([]model.Candidate)
	case *model.Profile:
		*d = v.(model.Profile)
	default:
		return false
	}
	return true
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) {
	c.values[key] = value
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	delete(c.values, key)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) Del(context.Context, ...string) error {
	return errors.New("connection refused")
}

type gateStub struct {
	err     error
	buckets []string
}

func (g *gateStub) Gate(_ context.Context, _ int64, bucket string) error {
	g.buckets = append(g.buckets, bucket)
	return g.err
}

type signer struct{}

func (signer) SignPhoto(_ context.Context, key string) (string, error) {
	return "https://signed/" + key, nil
}

func campus() *storeStub {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &storeStub{
		profiles: map[int64]model.Profile{
			1: {UserID: 1, Gender: "male", LookingFor: "female", Course: "cs", Year: 2, Interests: []string{"chess", "hiking"}, Visible: true, Completed: true},
		},
		pool: []model.Profile{
			{UserID: 2, Gender: "female", LookingFor: "male", Course: "law", Year: 4, Visible: true, Completed: true, CreatedAt: base.Add(3 * time.Hour), Photos: []string{"u/2.jpg"}},
			{UserID: 3, Gender: "female", LookingFor: "male", Course: "cs", Year: 2, Interests: []string{"chess"}, Visible: true, Completed: true, CreatedAt: base},
			{UserID: 4, Gender: "female", LookingFor: "female", Course: "cs", Year: 2, Visible: true, Completed: true, CreatedAt: base},
			{UserID: 5, Gender: "male", LookingFor: "female", Course: "cs", Year: 2, Visible: true, Completed: true, CreatedAt: base},
			{UserID: 6, Gender: "female", LookingFor: "", Course: "law", Year: 4, Visible: true, Completed: true, CreatedAt: base.Add(3 * time.Hour)},
		},
	}
}

func userIDs(items []model.Candidate) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.UserID)
	}
	return ids
}

func equalIDs(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestGetCandidatesRanksByAffinityUnderHardPolicy(t *testing.T) {
	store := campus()
	svc := NewService(Dependencies{Candidates: store, Profiles: store, PhotoSigner: signer{}}, Config{})

	items, err := svc.GetCandidates(context.Background(), 1)
	if err != nil {
		t.Fatalf("get candidates: %v", err)
	}

	// 3 shares course, year and an interest; 6 and 2 tie and fall back to newest then id
	if ids := userIDs(items); !equalIDs(ids, []int64{3, 6, 2}) {
		t.Fatalf("unexpected order: %v", ids)
	}
	if !store.lastQuery.FilterGender {
		t.Fatalf("hard policy should filter gender in the query")
	}
	if len(items[2].PhotoURLs) != 1 || items[2].PhotoURLs[0] != "https://signed/u/2.jpg" {
		t.Fatalf("unexpected photo urls: %v", items[2].PhotoURLs)
	}
}

func TestGetCandidatesSoftPolicyKeepsEveryoneButRanksPreference(t *testing.T) {
	store := campus()
	svc := NewService(Dependencies{Candidates: store, Profiles: store}, Config{GenderPolicy: enums.GenderPolicySoft})

	items, err := svc.GetCandidates(context.Background(), 1)
	if err != nil {
		t.Fatalf("get candidates: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(items))
	}
	if store.lastQuery.FilterGender {
		t.Fatalf("soft policy must not filter gender in the query")
	}
	if items[0].UserID != 3 {
		t.Fatalf("expected user 3 first, got %d", items[0].UserID)
	}

	scores := map[int64]float64{}
	for _, item := range items {
		scores[item.UserID] = item.Score
	}
	if scores[3] <= scores[5] {
		t.Fatalf("preference match should outrank same-course mismatch: %v", scores)
	}
}

func TestGetCandidatesCachesAndInvalidates(t *testing.T) {
	store := campus()
	c := &memoryCache{values: map[string]any{}}
	svc := NewService(Dependencies{Candidates: store, Profiles: store, Cache: c}, Config{})
	ctx := context.Background()

	first, err := svc.GetCandidates(ctx, 1)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.GetCandidates(ctx, 1)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !equalIDs(userIDs(first), userIDs(second)) {
		t.Fatalf("cached list differs: %v vs %v", userIDs(first), userIDs(second))
	}
	if store.listCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.listCalls)
	}

	svc.Invalidate(ctx, 1)
	if _, err := svc.GetCandidates(ctx, 1); err != nil {
		t.Fatalf("after invalidate: %v", err)
	}
	if store.listCalls != 2 {
		t.Fatalf("expected a fresh store read after invalidate, got %d", store.listCalls)
	}
}

func TestGetCandidatesDropsTargetsSwipedAfterCaching(t *testing.T) {
	store := campus()
	c := &memoryCache{values: map[string]any{}}
	swipes := &swipeLookupStub{swiped: map[int64]struct{}{}}
	svc := NewService(Dependencies{Candidates: store, Profiles: store, Swipes: swipes, Cache: c}, Config{})
	ctx := context.Background()

	if _, err := svc.GetCandidates(ctx, 1); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// a swipe on 6 committed and invalidated before the stale list landed in the cache
	swipes.swiped[6] = struct{}{}

	items, err := svc.GetCandidates(ctx, 1)
	if err != nil {
		t.Fatalf("cached call: %v", err)
	}
	if ids := userIDs(items); !equalIDs(ids, []int64{3, 2}) {
		t.Fatalf("swiped target should be filtered from the cached list: %v", ids)
	}
	if store.listCalls != 1 {
		t.Fatalf("expected the cached list to be served, got %d store reads", store.listCalls)
	}
}

func TestGetCandidatesServesCacheWhenSwipeLookupFails(t *testing.T) {
	store := campus()
	c := &memoryCache{values: map[string]any{}}
	swipes := &swipeLookupStub{err: errors.New("connection refused")}
	svc := NewService(Dependencies{Candidates: store, Profiles: store, Swipes: swipes, Cache: c}, Config{})
	ctx := context.Background()

	if _, err := svc.GetCandidates(ctx, 1); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	items, err := svc.GetCandidates(ctx, 1)
	if err != nil {
		t.Fatalf("cached call: %v", err)
	}
	if len(items) != 3 || swipes.calls != 1 {
		t.Fatalf("expected cached list on lookup failure, got %d items after %d lookups", len(items), swipes.calls)
	}
}

func TestGetCandidatesFallsBackWhenCacheAlwaysFails(t *testing.T) {
	store := campus()
	broken := cache.New(failingStore{}, nil, 10*time.Millisecond)
	svc := NewService(Dependencies{Candidates: store, Profiles: store, Cache: broken}, Config{})

	items, err := svc.GetCandidates(context.Background(), 1)
	if err != nil {
		t.Fatalf("get candidates: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(items))
	}
}

func TestGetCandidatesRequiresViewerProfile(t *testing.T) {
	store := campus()
	svc := NewService(Dependencies{Candidates: store, Profiles: store}, Config{})

	_, err := svc.GetCandidates(context.Background(), 42)
	if !errors.Is(err, ErrProfileNotFound) || !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
	if store.listCalls != 0 {
		t.Fatalf("store must not be queried without a viewer profile")
	}
}

func TestGetCandidatesIsRateLimited(t *testing.T) {
	store := campus()
	gate := &gateStub{err: errs.RateLimitedError{Bucket: "candidates", Limit: 30, RetryAfterSec: 12}}
	svc := NewService(Dependencies{Candidates: store, Profiles: store, RateGate: gate}, Config{})

	_, err := svc.GetCandidates(context.Background(), 1)
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if len(gate.buckets) != 1 || gate.buckets[0] != "candidates" {
		t.Fatalf("unexpected gated buckets: %v", gate.buckets)
	}
	if store.listCalls != 0 {
		t.Fatalf("store must not be queried when limited")
	}
}

func TestGetCandidatesTruncatesToPageSize(t *testing.T) {
	store := campus()
	svc := NewService(Dependencies{Candidates: store, Profiles: store}, Config{PageSize: 2})

	items, err := svc.GetCandidates(context.Background(), 1)
	if err != nil {
		t.Fatalf("get candidates: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(items))
	}
	if store.lastQuery.Limit != 8 {
		t.Fatalf("expected pool limit 8, got %d", store.lastQuery.Limit)
	}
}
