package domain

import (
	"time"

	"github.com/google/uuid"
)

// Deal represents one discounted product offer from a retailer listing.
// Deals are keyed by CanonicalPath across ingestion runs: re-ingesting the
// same path refreshes price and content but keeps ID and CreatedAt.
type Deal struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	ProductName        string    `json:"product_name" db:"product_name"`
	Price              float64   `json:"price" db:"price"`
	OldPrice           *float64  `json:"old_price,omitempty" db:"old_price"`
	DiscountPercentage int       `json:"discount_percentage" db:"discount_percentage"`
	Description        string    `json:"description" db:"description"`
	ImageURLs          []string  `json:"image_urls" db:"image_urls"`
	CanonicalPath      string    `json:"canonical_path" db:"canonical_path"`
	URL                string    `json:"url" db:"url"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// SwipeDirection is a user's binary decision on a deal.
type SwipeDirection string

const (
	SwipeLiked    SwipeDirection = "liked"
	SwipeDisliked SwipeDirection = "disliked"
)

// Valid reports whether the direction is one of the two known values.
func (d SwipeDirection) Valid() bool {
	return d == SwipeLiked || d == SwipeDisliked
}

// Swipe records a user's decision on a deal. There is exactly one Swipe per
// (user, deal) pair; a re-swipe overwrites direction and timestamp in place.
type Swipe struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	DealID    uuid.UUID      `json:"deal_id" db:"deal_id"`
	Direction SwipeDirection `json:"direction" db:"direction"`
	DecidedAt time.Time      `json:"decided_at" db:"decided_at"`
}

// SwipedDeal is a deal merged with the swipe the user recorded on it.
type SwipedDeal struct {
	Deal
	Direction SwipeDirection `json:"direction"`
	DecidedAt time.Time      `json:"decided_at"`
}
