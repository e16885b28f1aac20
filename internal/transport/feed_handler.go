package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dealswipe/internal/domain"
	"dealswipe/internal/middleware"
	"dealswipe/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SwipeRequest represents a swipe decision payload
type SwipeRequest struct {
	Direction string `json:"direction" validate:"required,oneof=liked disliked"`
}

// DealResponse represents a deal in API responses
type DealResponse struct {
	ID                 string    `json:"id"`
	ProductName        string    `json:"product_name"`
	Price              float64   `json:"price"`
	OldPrice           *float64  `json:"old_price,omitempty"`
	DiscountPercentage int       `json:"discount_percentage"`
	Description        string    `json:"description"`
	ImageURLs          []string  `json:"image_urls"`
	CanonicalPath      string    `json:"canonical_path"`
	URL                string    `json:"url"`
	CreatedAt          time.Time `json:"created_at"`
}

// SwipedDealResponse is a deal merged with the caller's swipe on it
type SwipedDealResponse struct {
	DealResponse
	Direction string    `json:"direction"`
	DecidedAt time.Time `json:"decided_at"`
}

// SwipeResponse confirms a recorded swipe
type SwipeResponse struct {
	DealID    string    `json:"deal_id"`
	Direction string    `json:"direction"`
	DecidedAt time.Time `json:"decided_at"`
}

// FeedHandler handles HTTP requests for the swipe feed
type FeedHandler struct {
	feedService   service.FeedService
	ingestService service.IngestService
	logger        *zap.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feedService service.FeedService, ingestService service.IngestService, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feedService:   feedService,
		ingestService: ingestService,
		logger:        logger,
	}
}

// RegisterRoutes registers all feed routes
func (h *FeedHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/feed", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.Available)
		r.Get("/liked", h.Liked)
		r.Get("/viewed", h.Viewed)
		r.Post("/{dealID}/swipe", h.Swipe)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)
		r.Post("/ingest", h.TriggerIngest)
	})
}

// Available returns the deals the caller has not swiped yet, best discount
// first. An optional limit query bounds the page size.
func (h *FeedHandler) Available(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	deals, err := h.feedService.AvailableDeals(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to load feed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toDealResponses(deals))
}

// Swipe records the caller's decision on a deal
func (h *FeedHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	dealID, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid deal ID")
		return
	}

	var req SwipeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Swipe validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	swipe, err := h.feedService.RecordSwipe(r.Context(), userID, dealID, domain.SwipeDirection(req.Direction))
	if err != nil {
		if errors.Is(err, service.ErrUnknownDeal) {
			middleware.RespondWithError(w, http.StatusNotFound, "deal not found")
			return
		}
		if errors.Is(err, service.ErrInvalidDirection) {
			middleware.RespondWithError(w, http.StatusBadRequest, "direction must be liked or disliked")
			return
		}

		h.logger.Error("Failed to record swipe", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to record swipe")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, SwipeResponse{
		DealID:    swipe.DealID.String(),
		Direction: string(swipe.Direction),
		DecidedAt: swipe.DecidedAt,
	})
}

// Liked returns the deals the caller liked
func (h *FeedHandler) Liked(w http.ResponseWriter, r *http.Request) {
	h.swipedDeals(w, r, h.feedService.LikedDeals)
}

// Viewed returns every deal the caller has decided on
func (h *FeedHandler) Viewed(w http.ResponseWriter, r *http.Request) {
	h.swipedDeals(w, r, h.feedService.ViewedDeals)
}

// TriggerIngest runs an ingestion synchronously and returns its report
func (h *FeedHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingestService.Run(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrIngestInProgress) {
			middleware.RespondWithError(w, http.StatusConflict, "an ingestion run is already in progress")
			return
		}

		h.logger.Error("On-demand ingestion failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "ingestion failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}

func (h *FeedHandler) swipedDeals(
	w http.ResponseWriter,
	r *http.Request,
	load func(ctx context.Context, userID uuid.UUID) ([]*domain.SwipedDeal, error),
) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	deals, err := load(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load swiped deals", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load deals")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toSwipedDealResponses(deals))
}

func (h *FeedHandler) currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID format", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return uuid.Nil, false
	}

	return userID, true
}

func toDealResponse(deal *domain.Deal) DealResponse {
	images := deal.ImageURLs
	if images == nil {
		images = []string{}
	}
	return DealResponse{
		ID:                 deal.ID.String(),
		ProductName:        deal.ProductName,
		Price:              deal.Price,
		OldPrice:           deal.OldPrice,
		DiscountPercentage: deal.DiscountPercentage,
		Description:        deal.Description,
		ImageURLs:          images,
		CanonicalPath:      deal.CanonicalPath,
		URL:                deal.URL,
		CreatedAt:          deal.CreatedAt,
	}
}

func toDealResponses(deals []*domain.Deal) []DealResponse {
	responses := make([]DealResponse, 0, len(deals))
	for _, deal := range deals {
		responses = append(responses, toDealResponse(deal))
	}
	return responses
}

func toSwipedDealResponses(deals []*domain.SwipedDeal) []SwipedDealResponse {
	responses := make([]SwipedDealResponse, 0, len(deals))
	for _, deal := range deals {
		responses = append(responses, SwipedDealResponse{
			DealResponse: toDealResponse(&deal.Deal),
			Direction:    string(deal.Direction),
			DecidedAt:    deal.DecidedAt,
		})
	}
	return responses
}
