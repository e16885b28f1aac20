package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealswipe/internal/domain"
	"dealswipe/internal/middleware"
	"dealswipe/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mock feed service for handler tests
type mockFeedService struct {
	deals  []*domain.Deal
	swiped []*domain.SwipedDeal

	recordedUser      uuid.UUID
	recordedDeal      uuid.UUID
	recordedDirection domain.SwipeDirection
	swipeErr          error
}

func (m *mockFeedService) Ingest(ctx context.Context, deals []*domain.Deal) (int, error) {
	return len(deals), nil
}

func (m *mockFeedService) AvailableDeals(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Deal, error) {
	if limit > 0 && len(m.deals) > limit {
		return m.deals[:limit], nil
	}
	return m.deals, nil
}

func (m *mockFeedService) RecordSwipe(ctx context.Context, userID, dealID uuid.UUID, direction domain.SwipeDirection) (*domain.Swipe, error) {
	if m.swipeErr != nil {
		return nil, m.swipeErr
	}
	m.recordedUser = userID
	m.recordedDeal = dealID
	m.recordedDirection = direction
	return &domain.Swipe{
		ID:        uuid.New(),
		UserID:    userID,
		DealID:    dealID,
		Direction: direction,
		DecidedAt: time.Now(),
	}, nil
}

func (m *mockFeedService) LikedDeals(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error) {
	liked := []*domain.SwipedDeal{}
	for _, deal := range m.swiped {
		if deal.Direction == domain.SwipeLiked {
			liked = append(liked, deal)
		}
	}
	return liked, nil
}

func (m *mockFeedService) ViewedDeals(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error) {
	return m.swiped, nil
}

type mockIngestService struct {
	report *service.IngestReport
	err    error
}

func (m *mockIngestService) Run(ctx context.Context) (*service.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Start(ctx context.Context, interval time.Duration) {}

// testAuth injects an authenticated user into the request context the same
// way the JWT middleware does.
func testAuth(userID uuid.UUID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID.String())
			ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newFeedTestServer(feed service.FeedService, ingest service.IngestService, userID uuid.UUID, role string) *chi.Mux {
	logger := zap.NewNop()
	handler := NewFeedHandler(feed, ingest, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router, testAuth(userID, role), middleware.RequireAdmin(logger))
	return router
}

func feedTestDeal(discount int) *domain.Deal {
	return &domain.Deal{
		ID:                 uuid.New(),
		ProductName:        "Accuboormachine",
		Price:              49.99,
		DiscountPercentage: discount,
		CanonicalPath:      "/p/boor",
		URL:                "https://www.lidl.nl/p/boor",
		CreatedAt:          time.Now(),
	}
}

func TestAvailableReturnsFeed(t *testing.T) {
	feed := &mockFeedService{deals: []*domain.Deal{feedTestDeal(50), feedTestDeal(10)}}
	router := newFeedTestServer(feed, &mockIngestService{}, uuid.New(), "user")

	req := httptest.NewRequest("GET", "/api/feed", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var deals []DealResponse
	if err := json.NewDecoder(w.Body).Decode(&deals); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(deals) != 2 {
		t.Errorf("expected 2 deals, got %d", len(deals))
	}
}

func TestAvailableHonorsLimit(t *testing.T) {
	feed := &mockFeedService{deals: []*domain.Deal{feedTestDeal(50), feedTestDeal(10)}}
	router := newFeedTestServer(feed, &mockIngestService{}, uuid.New(), "user")

	req := httptest.NewRequest("GET", "/api/feed?limit=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var deals []DealResponse
	if err := json.NewDecoder(w.Body).Decode(&deals); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(deals) != 1 {
		t.Errorf("expected 1 deal with limit=1, got %d", len(deals))
	}
}

func TestAvailableRejectsBadLimit(t *testing.T) {
	router := newFeedTestServer(&mockFeedService{}, &mockIngestService{}, uuid.New(), "user")

	req := httptest.NewRequest("GET", "/api/feed?limit=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric limit, got %d", w.Code)
	}
}

func TestSwipeRecordsDecision(t *testing.T) {
	userID := uuid.New()
	feed := &mockFeedService{}
	router := newFeedTestServer(feed, &mockIngestService{}, userID, "user")

	dealID := uuid.New()
	body, _ := json.Marshal(SwipeRequest{Direction: "liked"})
	req := httptest.NewRequest("POST", "/api/feed/"+dealID.String()+"/swipe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if feed.recordedUser != userID || feed.recordedDeal != dealID {
		t.Error("swipe not routed to the service with caller identity")
	}
	if feed.recordedDirection != domain.SwipeLiked {
		t.Errorf("expected liked, got %s", feed.recordedDirection)
	}
}

func TestSwipeUnknownDealIs404(t *testing.T) {
	feed := &mockFeedService{swipeErr: service.ErrUnknownDeal}
	router := newFeedTestServer(feed, &mockIngestService{}, uuid.New(), "user")

	body, _ := json.Marshal(SwipeRequest{Direction: "disliked"})
	req := httptest.NewRequest("POST", "/api/feed/"+uuid.New().String()+"/swipe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown deal, got %d", w.Code)
	}
}

func TestSwipeInvalidDirectionIs400(t *testing.T) {
	router := newFeedTestServer(&mockFeedService{}, &mockIngestService{}, uuid.New(), "user")

	req := httptest.NewRequest("POST", "/api/feed/"+uuid.New().String()+"/swipe",
		bytes.NewReader([]byte(`{"direction":"maybe"}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid direction, got %d", w.Code)
	}
}

func TestSwipeInvalidDealIDIs400(t *testing.T) {
	router := newFeedTestServer(&mockFeedService{}, &mockIngestService{}, uuid.New(), "user")

	body, _ := json.Marshal(SwipeRequest{Direction: "liked"})
	req := httptest.NewRequest("POST", "/api/feed/not-a-uuid/swipe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed deal ID, got %d", w.Code)
	}
}

func TestLikedFiltersByDirection(t *testing.T) {
	swiped := []*domain.SwipedDeal{
		{Deal: *feedTestDeal(50), Direction: domain.SwipeLiked, DecidedAt: time.Now()},
		{Deal: *feedTestDeal(20), Direction: domain.SwipeDisliked, DecidedAt: time.Now()},
	}
	feed := &mockFeedService{swiped: swiped}
	router := newFeedTestServer(feed, &mockIngestService{}, uuid.New(), "user")

	req := httptest.NewRequest("GET", "/api/feed/liked", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var liked []SwipedDealResponse
	if err := json.NewDecoder(w.Body).Decode(&liked); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(liked) != 1 || liked[0].Direction != "liked" {
		t.Errorf("expected only the liked deal, got %+v", liked)
	}

	req = httptest.NewRequest("GET", "/api/feed/viewed", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var viewed []SwipedDealResponse
	if err := json.NewDecoder(w.Body).Decode(&viewed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(viewed) != 2 {
		t.Errorf("expected both viewed deals, got %d", len(viewed))
	}
}

func TestTriggerIngestRequiresAdmin(t *testing.T) {
	router := newFeedTestServer(&mockFeedService{}, &mockIngestService{report: &service.IngestReport{}}, uuid.New(), "user")

	req := httptest.NewRequest("POST", "/api/admin/ingest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestTriggerIngestReturnsReport(t *testing.T) {
	ingest := &mockIngestService{report: &service.IngestReport{Extracted: 3, Upserted: 3}}
	router := newFeedTestServer(&mockFeedService{}, ingest, uuid.New(), "admin")

	req := httptest.NewRequest("POST", "/api/admin/ingest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var report service.IngestReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.Extracted != 3 || report.Upserted != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestTriggerIngestConflictWhenBusy(t *testing.T) {
	ingest := &mockIngestService{err: service.ErrIngestInProgress}
	router := newFeedTestServer(&mockFeedService{}, ingest, uuid.New(), "admin")

	req := httptest.NewRequest("POST", "/api/admin/ingest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while a run is in progress, got %d", w.Code)
	}
}
