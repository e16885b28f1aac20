package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealswipe/internal/domain"
	"dealswipe/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownDeal      = errors.New("deal does not exist")
	ErrInvalidDirection = errors.New("swipe direction must be liked or disliked")
)

// FeedService owns the persisted deal catalog and per-user swipe history.
// It answers what a user should see next and records their decisions.
type FeedService interface {
	Ingest(ctx context.Context, deals []*domain.Deal) (int, error)
	AvailableDeals(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Deal, error)
	RecordSwipe(ctx context.Context, userID, dealID uuid.UUID, direction domain.SwipeDirection) (*domain.Swipe, error)
	LikedDeals(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error)
	ViewedDeals(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error)
}

type feedService struct {
	dealRepo  repository.DealRepository
	swipeRepo repository.SwipeRepository
	logger    *zap.Logger

	// Serializes whole ingestion batches. Row-level atomicity comes from the
	// upsert's conflict target; this only keeps batch runs from interleaving.
	ingestMu sync.Mutex
}

// NewFeedService creates a new instance of FeedService.
func NewFeedService(
	dealRepo repository.DealRepository,
	swipeRepo repository.SwipeRepository,
	logger *zap.Logger,
) FeedService {
	return &feedService{
		dealRepo:  dealRepo,
		swipeRepo: swipeRepo,
		logger:    logger,
	}
}

// Ingest upserts deals by canonical path. A refreshed deal keeps its id,
// created_at and prior swipes: re-ingestion is a price and content refresh,
// not a new offer. A failed row is logged and skipped; partial ingestion is
// the expected steady state. Returns the number of rows upserted.
func (s *feedService) Ingest(ctx context.Context, deals []*domain.Deal) (int, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	upserted := 0
	for _, deal := range deals {
		if err := ctx.Err(); err != nil {
			return upserted, fmt.Errorf("ingestion aborted: %w", err)
		}

		now := time.Now()
		deal.ID = uuid.New()
		deal.CreatedAt = now
		deal.UpdatedAt = now

		if err := s.dealRepo.Upsert(ctx, deal); err != nil {
			s.logger.Warn("Failed to upsert deal",
				zap.String("canonical_path", deal.CanonicalPath),
				zap.Error(err),
			)
			continue
		}
		upserted++
	}

	return upserted, nil
}

// AvailableDeals returns every persisted deal the user has not swiped,
// best discount first. Swipes recorded before this call are always
// reflected: a swiped deal never reappears.
func (s *feedService) AvailableDeals(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Deal, error) {
	deals, err := s.dealRepo.ListUnswiped(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load available deals: %w", err)
	}
	return deals, nil
}

// RecordSwipe creates or overwrites the single swipe for (user, deal).
// Users may change their mind; there is no way back to unseen.
func (s *feedService) RecordSwipe(ctx context.Context, userID, dealID uuid.UUID, direction domain.SwipeDirection) (*domain.Swipe, error) {
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}

	if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, ErrUnknownDeal
		}
		return nil, fmt.Errorf("failed to look up deal: %w", err)
	}

	swipe := &domain.Swipe{
		ID:        uuid.New(),
		UserID:    userID,
		DealID:    dealID,
		Direction: direction,
		DecidedAt: time.Now(),
	}

	if err := s.swipeRepo.Upsert(ctx, swipe); err != nil {
		return nil, fmt.Errorf("failed to record swipe: %w", err)
	}

	s.logger.Debug("Swipe recorded",
		zap.String("user_id", userID.String()),
		zap.String("deal_id", dealID.String()),
		zap.String("direction", string(direction)),
	)

	return swipe, nil
}

// LikedDeals returns the deals the user swiped right on, swipe fields merged in.
func (s *feedService) LikedDeals(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error) {
	liked := domain.SwipeLiked
	deals, err := s.swipeRepo.ListByUser(ctx, userID, &liked)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked deals: %w", err)
	}
	return deals, nil
}

// ViewedDeals returns every deal the user has decided on, either direction.
func (s *feedService) ViewedDeals(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error) {
	deals, err := s.swipeRepo.ListByUser(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load viewed deals: %w", err)
	}
	return deals, nil
}
