package service

import (
	"context"
	"testing"

	"dealswipe/internal/domain"
	"dealswipe/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Mock repositories for testing. They reproduce the storage guarantees the
// real postgres repositories get from their unique constraints: one deal row
// per canonical path, one swipe row per (user, deal) pair.

type mockDealRepository struct {
	byPath map[string]*domain.Deal
	swipes *mockSwipeRepository
}

func newMockDealRepository(swipes *mockSwipeRepository) *mockDealRepository {
	return &mockDealRepository{
		byPath: make(map[string]*domain.Deal),
		swipes: swipes,
	}
}

func (m *mockDealRepository) Upsert(ctx context.Context, deal *domain.Deal) error {
	if existing, ok := m.byPath[deal.CanonicalPath]; ok {
		deal.ID = existing.ID
		deal.CreatedAt = existing.CreatedAt
	}
	clone := *deal
	m.byPath[deal.CanonicalPath] = &clone
	return nil
}

func (m *mockDealRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	for _, deal := range m.byPath {
		if deal.ID == id {
			return deal, nil
		}
	}
	return nil, repository.ErrDealNotFound
}

func (m *mockDealRepository) FindByCanonicalPath(ctx context.Context, path string) (*domain.Deal, error) {
	deal, ok := m.byPath[path]
	if !ok {
		return nil, repository.ErrDealNotFound
	}
	return deal, nil
}

func (m *mockDealRepository) ListUnswiped(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Deal, error) {
	deals := []*domain.Deal{}
	for _, deal := range m.byPath {
		if _, swiped := m.swipes.rows[swipeKey{userID, deal.ID}]; swiped {
			continue
		}
		deals = append(deals, deal)
	}
	sortDealsForFeed(deals)
	if limit > 0 && len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

func (m *mockDealRepository) List(ctx context.Context, limit int) ([]*domain.Deal, error) {
	deals := []*domain.Deal{}
	for _, deal := range m.byPath {
		deals = append(deals, deal)
	}
	sortDealsForFeed(deals)
	if limit > 0 && len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

// sortDealsForFeed mirrors the repository ordering: discount descending,
// ties by id ascending.
func sortDealsForFeed(deals []*domain.Deal) {
	for i := 1; i < len(deals); i++ {
		for j := i; j > 0; j-- {
			a, b := deals[j-1], deals[j]
			if a.DiscountPercentage > b.DiscountPercentage {
				break
			}
			if a.DiscountPercentage == b.DiscountPercentage && a.ID.String() <= b.ID.String() {
				break
			}
			deals[j-1], deals[j] = b, a
		}
	}
}

type swipeKey struct {
	userID uuid.UUID
	dealID uuid.UUID
}

type mockSwipeRepository struct {
	rows  map[swipeKey]*domain.Swipe
	deals *mockDealRepository
}

func newMockSwipeRepository() *mockSwipeRepository {
	return &mockSwipeRepository{rows: make(map[swipeKey]*domain.Swipe)}
}

func (m *mockSwipeRepository) Upsert(ctx context.Context, swipe *domain.Swipe) error {
	key := swipeKey{swipe.UserID, swipe.DealID}
	if existing, ok := m.rows[key]; ok {
		swipe.ID = existing.ID
	}
	clone := *swipe
	m.rows[key] = &clone
	return nil
}

func (m *mockSwipeRepository) FindByUserAndDeal(ctx context.Context, userID, dealID uuid.UUID) (*domain.Swipe, error) {
	swipe, ok := m.rows[swipeKey{userID, dealID}]
	if !ok {
		return nil, repository.ErrSwipeNotFound
	}
	return swipe, nil
}

func (m *mockSwipeRepository) ListByUser(ctx context.Context, userID uuid.UUID, direction *domain.SwipeDirection) ([]*domain.SwipedDeal, error) {
	swiped := []*domain.SwipedDeal{}
	for key, swipe := range m.rows {
		if key.userID != userID {
			continue
		}
		if direction != nil && swipe.Direction != *direction {
			continue
		}
		deal, err := m.deals.FindByID(ctx, key.dealID)
		if err != nil {
			return nil, err
		}
		swiped = append(swiped, &domain.SwipedDeal{
			Deal:      *deal,
			Direction: swipe.Direction,
			DecidedAt: swipe.DecidedAt,
		})
	}
	return swiped, nil
}

func newTestFeedService() (FeedService, *mockDealRepository, *mockSwipeRepository) {
	swipeRepo := newMockSwipeRepository()
	dealRepo := newMockDealRepository(swipeRepo)
	swipeRepo.deals = dealRepo
	return NewFeedService(dealRepo, swipeRepo, zap.NewNop()), dealRepo, swipeRepo
}

func testDeal(path string, discount int) *domain.Deal {
	return &domain.Deal{
		ProductName:        "Cordless Drill " + path,
		Price:              49.99,
		DiscountPercentage: discount,
		CanonicalPath:      path,
		URL:                "https://www.lidl.nl" + path,
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	svc, dealRepo, _ := newTestFeedService()
	ctx := context.Background()

	first := []*domain.Deal{testDeal("/p/drill", 30), testDeal("/p/saw", 10)}
	if _, err := svc.Ingest(ctx, first); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	drill, err := dealRepo.FindByCanonicalPath(ctx, "/p/drill")
	if err != nil {
		t.Fatalf("deal not persisted: %v", err)
	}
	originalID := drill.ID
	originalCreatedAt := drill.CreatedAt

	// Re-ingest the same catalog with a refreshed price.
	second := []*domain.Deal{testDeal("/p/drill", 30), testDeal("/p/saw", 10)}
	second[0].Price = 39.99
	if _, err := svc.Ingest(ctx, second); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	refreshed, err := dealRepo.FindByCanonicalPath(ctx, "/p/drill")
	if err != nil {
		t.Fatalf("deal missing after re-ingest: %v", err)
	}

	if refreshed.ID != originalID {
		t.Errorf("re-ingest changed deal ID: %s -> %s", originalID, refreshed.ID)
	}
	if !refreshed.CreatedAt.Equal(originalCreatedAt) {
		t.Errorf("re-ingest changed CreatedAt: %v -> %v", originalCreatedAt, refreshed.CreatedAt)
	}
	if refreshed.Price != 39.99 {
		t.Errorf("re-ingest did not refresh price, got %v", refreshed.Price)
	}

	all, _ := dealRepo.List(ctx, 0)
	if len(all) != 2 {
		t.Errorf("expected 2 deals after re-ingest, got %d", len(all))
	}
}

func TestIngestPreservesSwipeHistory(t *testing.T) {
	svc, dealRepo, swipeRepo := newTestFeedService()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.Ingest(ctx, []*domain.Deal{testDeal("/p/drill", 30)}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	drill, _ := dealRepo.FindByCanonicalPath(ctx, "/p/drill")
	if _, err := svc.RecordSwipe(ctx, userID, drill.ID, domain.SwipeLiked); err != nil {
		t.Fatalf("swipe failed: %v", err)
	}

	// Price refresh run: the swipe must survive and the deal stays hidden.
	if _, err := svc.Ingest(ctx, []*domain.Deal{testDeal("/p/drill", 35)}); err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}

	if _, err := swipeRepo.FindByUserAndDeal(ctx, userID, drill.ID); err != nil {
		t.Errorf("swipe lost after re-ingest: %v", err)
	}

	available, err := svc.AvailableDeals(ctx, userID, 0)
	if err != nil {
		t.Fatalf("availableDeals failed: %v", err)
	}
	for _, deal := range available {
		if deal.CanonicalPath == "/p/drill" {
			t.Error("re-ingested deal reappeared in feed after swipe")
		}
	}
}

func TestRecordSwipeUnknownDeal(t *testing.T) {
	svc, _, _ := newTestFeedService()

	_, err := svc.RecordSwipe(context.Background(), uuid.New(), uuid.New(), domain.SwipeLiked)
	if err != ErrUnknownDeal {
		t.Errorf("expected ErrUnknownDeal, got %v", err)
	}
}

func TestRecordSwipeInvalidDirection(t *testing.T) {
	svc, _, _ := newTestFeedService()

	_, err := svc.RecordSwipe(context.Background(), uuid.New(), uuid.New(), domain.SwipeDirection("maybe"))
	if err != ErrInvalidDirection {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestReswipeKeepsSingleRecord(t *testing.T) {
	svc, dealRepo, swipeRepo := newTestFeedService()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.Ingest(ctx, []*domain.Deal{testDeal("/p/drill", 30)}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	drill, _ := dealRepo.FindByCanonicalPath(ctx, "/p/drill")

	if _, err := svc.RecordSwipe(ctx, userID, drill.ID, domain.SwipeLiked); err != nil {
		t.Fatalf("first swipe failed: %v", err)
	}
	if _, err := svc.RecordSwipe(ctx, userID, drill.ID, domain.SwipeDisliked); err != nil {
		t.Fatalf("re-swipe failed: %v", err)
	}

	if len(swipeRepo.rows) != 1 {
		t.Fatalf("expected exactly one swipe row, got %d", len(swipeRepo.rows))
	}

	swipe, err := swipeRepo.FindByUserAndDeal(ctx, userID, drill.ID)
	if err != nil {
		t.Fatalf("swipe not found: %v", err)
	}
	if swipe.Direction != domain.SwipeDisliked {
		t.Errorf("expected direction disliked after re-swipe, got %s", swipe.Direction)
	}

	viewed, err := svc.ViewedDeals(ctx, userID)
	if err != nil {
		t.Fatalf("viewedDeals failed: %v", err)
	}
	if len(viewed) != 1 {
		t.Errorf("expected one viewed deal, got %d", len(viewed))
	}
}

func TestProperty_SwipedDealsNeverReappear(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("after a like the deal leaves the feed and joins liked", prop.ForAll(
		func(paths []string, likeIndex int) bool {
			if len(paths) == 0 {
				return true
			}

			svc, dealRepo, _ := newTestFeedService()
			ctx := context.Background()
			userID := uuid.New()

			deals := make([]*domain.Deal, 0, len(paths))
			seen := map[string]bool{}
			for i, p := range paths {
				path := "/p/" + p
				if seen[path] {
					continue
				}
				seen[path] = true
				deals = append(deals, testDeal(path, i%101))
			}

			if _, err := svc.Ingest(ctx, deals); err != nil {
				t.Logf("FAIL: ingest: %v", err)
				return false
			}

			target := deals[likeIndex%len(deals)]
			persisted, err := dealRepo.FindByCanonicalPath(ctx, target.CanonicalPath)
			if err != nil {
				t.Logf("FAIL: lookup: %v", err)
				return false
			}

			if _, err := svc.RecordSwipe(ctx, userID, persisted.ID, domain.SwipeLiked); err != nil {
				t.Logf("FAIL: swipe: %v", err)
				return false
			}

			available, err := svc.AvailableDeals(ctx, userID, 0)
			if err != nil {
				t.Logf("FAIL: available: %v", err)
				return false
			}
			for _, deal := range available {
				if deal.ID == persisted.ID {
					t.Logf("FAIL: liked deal still in feed")
					return false
				}
			}
			if len(available) != len(deals)-1 {
				t.Logf("FAIL: expected %d available deals, got %d", len(deals)-1, len(available))
				return false
			}

			liked, err := svc.LikedDeals(ctx, userID)
			if err != nil {
				t.Logf("FAIL: liked: %v", err)
				return false
			}
			if len(liked) != 1 || liked[0].ID != persisted.ID {
				t.Logf("FAIL: liked projection missing the deal")
				return false
			}

			return true
		},
		gen.SliceOf(gen.RegexMatch(`[a-z]{3,12}`)),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAvailableDealsOrdering(t *testing.T) {
	svc, _, _ := newTestFeedService()
	ctx := context.Background()

	deals := []*domain.Deal{
		testDeal("/p/a", 10),
		testDeal("/p/b", 30),
		testDeal("/p/c", 30),
		testDeal("/p/d", 5),
	}
	if _, err := svc.Ingest(ctx, deals); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	available, err := svc.AvailableDeals(ctx, uuid.New(), 0)
	if err != nil {
		t.Fatalf("availableDeals failed: %v", err)
	}

	if len(available) != 4 {
		t.Fatalf("expected 4 deals, got %d", len(available))
	}
	for i := 1; i < len(available); i++ {
		prev, cur := available[i-1], available[i]
		if prev.DiscountPercentage < cur.DiscountPercentage {
			t.Errorf("feed not sorted by discount: %d before %d", prev.DiscountPercentage, cur.DiscountPercentage)
		}
		if prev.DiscountPercentage == cur.DiscountPercentage && prev.ID.String() > cur.ID.String() {
			t.Errorf("discount tie not broken by id ascending")
		}
	}
}
