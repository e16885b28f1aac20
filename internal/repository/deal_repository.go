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
	ErrDealNotFound = errors.New("deal not found")
)

// DealRepository defines the interface for deal data access. The canonical
// path is the natural key: Upsert must never create a second row for a path
// that already exists.
type DealRepository interface {
	Upsert(ctx context.Context, deal *domain.Deal) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error)
	FindByCanonicalPath(ctx context.Context, path string) (*domain.Deal, error)
	ListUnswiped(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Deal, error)
	List(ctx context.Context, limit int) ([]*domain.Deal, error)
}

type dealRepository struct {
	db *sql.DB
}

// NewDealRepository creates a new instance of DealRepository.
func NewDealRepository(db *sql.DB) DealRepository {
	return &dealRepository{db: db}
}

const dealColumns = `id, product_name, price, old_price, discount_percentage, description, image_urls, canonical_path, url, created_at, updated_at`

// Upsert inserts a deal or refreshes the existing row with the same canonical
// path. The conflict target makes the operation atomic per row: concurrent
// ingestions racing on the same path cannot produce duplicates. On conflict
// the mutable fields are refreshed while id and created_at are preserved; the
// deal argument is updated with the persisted identity.
func (r *dealRepository) Upsert(ctx context.Context, deal *domain.Deal) error {
	imageURLs, err := json.Marshal(deal.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to encode image urls: %w", err)
	}

	query := `
		INSERT INTO deals (` + dealColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (canonical_path) DO UPDATE SET
			product_name = EXCLUDED.product_name,
			price = EXCLUDED.price,
			old_price = EXCLUDED.old_price,
			discount_percentage = EXCLUDED.discount_percentage,
			description = EXCLUDED.description,
			image_urls = EXCLUDED.image_urls,
			url = EXCLUDED.url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = r.db.QueryRowContext(
		ctx,
		query,
		deal.ID,
		deal.ProductName,
		deal.Price,
		deal.OldPrice,
		deal.DiscountPercentage,
		deal.Description,
		imageURLs,
		deal.CanonicalPath,
		deal.URL,
		deal.CreatedAt,
		deal.UpdatedAt,
	).Scan(&deal.ID, &deal.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert deal: %w", err)
	}

	return nil
}

// FindByID retrieves a deal by ID using parameterized queries.
func (r *dealRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	deal, err := scanDeal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("failed to find deal by ID: %w", err)
	}

	return deal, nil
}

// FindByCanonicalPath retrieves a deal by its natural key.
func (r *dealRepository) FindByCanonicalPath(ctx context.Context, path string) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE canonical_path = $1`

	deal, err := scanDeal(r.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("failed to find deal by canonical path: %w", err)
	}

	return deal, nil
}

// ListUnswiped retrieves all deals the user has not swiped yet, best discount
// first, ties broken by id for a deterministic feed.
func (r *dealRepository) ListUnswiped(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals d
		WHERE NOT EXISTS (
			SELECT 1 FROM swipes s
			WHERE s.deal_id = d.id AND s.user_id = $1
		)
		ORDER BY discount_percentage DESC, id ASC
	`
	args := []interface{}{userID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unswiped deals: %w", err)
	}
	defer rows.Close()

	return collectDeals(rows)
}

// List retrieves the persisted catalog, best discount first.
func (r *dealRepository) List(ctx context.Context, limit int) ([]*domain.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		ORDER BY discount_percentage DESC, id ASC
	`
	args := []interface{}{}

	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	return collectDeals(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row rowScanner) (*domain.Deal, error) {
	deal := &domain.Deal{}
	var imageURLs []byte

	err := row.Scan(
		&deal.ID,
		&deal.ProductName,
		&deal.Price,
		&deal.OldPrice,
		&deal.DiscountPercentage,
		&deal.Description,
		&imageURLs,
		&deal.CanonicalPath,
		&deal.URL,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(imageURLs) > 0 {
		if err := json.Unmarshal(imageURLs, &deal.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to decode image urls: %w", err)
		}
	}

	return deal, nil
}

func collectDeals(rows *sql.Rows) ([]*domain.Deal, error) {
	deals := []*domain.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}

	return deals, nil
}
