package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dealswipe/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSwipeNotFound = errors.New("swipe not found")
)

// SwipeRepository defines the interface for swipe data access. The unique
// constraint on (user_id, deal_id) makes Upsert atomic under concurrent
// re-swipes: a later decision overwrites the earlier one in place.
type SwipeRepository interface {
	Upsert(ctx context.Context, swipe *domain.Swipe) error
	FindByUserAndDeal(ctx context.Context, userID, dealID uuid.UUID) (*domain.Swipe, error)
	ListByUser(ctx context.Context, userID uuid.UUID, direction *domain.SwipeDirection) ([]*domain.SwipedDeal, error)
}

type swipeRepository struct {
	db *sql.DB
}

// NewSwipeRepository creates a new instance of SwipeRepository.
func NewSwipeRepository(db *sql.DB) SwipeRepository {
	return &swipeRepository{db: db}
}

// Upsert records a swipe, overwriting direction and timestamp when the user
// already decided on this deal. The swipe argument is updated with the
// persisted row identity.
func (r *swipeRepository) Upsert(ctx context.Context, swipe *domain.Swipe) error {
	query := `
		INSERT INTO swipes (id, user_id, deal_id, direction, decided_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, deal_id) DO UPDATE SET
			direction = EXCLUDED.direction,
			decided_at = EXCLUDED.decided_at
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		swipe.ID,
		swipe.UserID,
		swipe.DealID,
		swipe.Direction,
		swipe.DecidedAt,
	).Scan(&swipe.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert swipe: %w", err)
	}

	return nil
}

// FindByUserAndDeal retrieves the single swipe for a (user, deal) pair.
func (r *swipeRepository) FindByUserAndDeal(ctx context.Context, userID, dealID uuid.UUID) (*domain.Swipe, error) {
	query := `
		SELECT id, user_id, deal_id, direction, decided_at
		FROM swipes
		WHERE user_id = $1 AND deal_id = $2
	`

	swipe := &domain.Swipe{}
	err := r.db.QueryRowContext(ctx, query, userID, dealID).Scan(
		&swipe.ID,
		&swipe.UserID,
		&swipe.DealID,
		&swipe.Direction,
		&swipe.DecidedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSwipeNotFound
		}
		return nil, fmt.Errorf("failed to find swipe: %w", err)
	}

	return swipe, nil
}

// ListByUser retrieves the user's swiped deals joined with the deal rows,
// most recent decision first. A nil direction returns everything the user
// has viewed; otherwise only swipes in that direction.
func (r *swipeRepository) ListByUser(ctx context.Context, userID uuid.UUID, direction *domain.SwipeDirection) ([]*domain.SwipedDeal, error) {
	query := `
		SELECT d.id, d.product_name, d.price, d.old_price, d.discount_percentage,
		       d.description, d.image_urls, d.canonical_path, d.url, d.created_at, d.updated_at,
		       s.direction, s.decided_at
		FROM swipes s
		JOIN deals d ON d.id = s.deal_id
		WHERE s.user_id = $1
	`
	args := []interface{}{userID}

	if direction != nil {
		query += ` AND s.direction = $2`
		args = append(args, *direction)
	}

	query += ` ORDER BY s.decided_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list swiped deals: %w", err)
	}
	defer rows.Close()

	swiped := []*domain.SwipedDeal{}
	for rows.Next() {
		item := &domain.SwipedDeal{}
		var imageURLs []byte

		err := rows.Scan(
			&item.ID,
			&item.ProductName,
			&item.Price,
			&item.OldPrice,
			&item.DiscountPercentage,
			&item.Description,
			&imageURLs,
			&item.CanonicalPath,
			&item.URL,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.Direction,
			&item.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swiped deal: %w", err)
		}

		if len(imageURLs) > 0 {
			if err := json.Unmarshal(imageURLs, &item.ImageURLs); err != nil {
				return nil, fmt.Errorf("failed to decode image urls: %w", err)
			}
		}

		swiped = append(swiped, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swiped deals: %w", err)
	}

	return swiped, nil
}
