package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealswipe/internal/domain"
	"dealswipe/internal/scraper"

	"go.uber.org/zap"
)

// ErrIngestInProgress is returned when a run is requested while another run
// is still going. Ingestion is a batch job and never overlaps with itself.
var ErrIngestInProgress = errors.New("an ingestion run is already in progress")

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Extracted int           `json:"extracted"`
	Dropped   int           `json:"dropped"`
	Corrected int           `json:"corrected"`
	Ranked    int           `json:"ranked"`
	Upserted  int           `json:"upserted"`
	Duration  time.Duration `json:"duration"`
}

// IngestService runs the fetch -> extract -> normalize -> rank -> persist
// pipeline, either on a schedule or on demand.
type IngestService interface {
	Run(ctx context.Context) (*IngestReport, error)
	Start(ctx context.Context, interval time.Duration)
}

type ingestService struct {
	fetcher    scraper.Fetcher
	extractor  scraper.Extractor
	normalizer *scraper.Normalizer
	feed       FeedService
	topN       int
	logger     *zap.Logger

	runMu sync.Mutex
}

// NewIngestService creates a new instance of IngestService. topN bounds how
// many ranked deals are persisted per run; non-positive means unlimited.
func NewIngestService(
	fetcher scraper.Fetcher,
	extractor scraper.Extractor,
	normalizer *scraper.Normalizer,
	feed FeedService,
	topN int,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		feed:       feed,
		topN:       topN,
		logger:     logger,
	}
}

// Run executes one ingestion run. A fetch failure short-circuits the run;
// a page without parseable entries yields an empty report, not an error.
// Records dropped during normalization degrade output quality only.
func (s *ingestService) Run(ctx context.Context) (*IngestReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrIngestInProgress
	}
	defer s.runMu.Unlock()

	start := time.Now()

	payload, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("page fetch failed: %w", err)
	}

	items, err := s.extractor.Extract(payload)
	if err != nil {
		if errors.Is(err, scraper.ErrExtractionEmpty) {
			s.logger.Warn("Listing page contained no parseable entries")
			return &IngestReport{Duration: time.Since(start)}, nil
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	before := s.normalizer.Stats()

	normalized := make([]*domain.Deal, 0, len(items))
	for _, item := range items {
		deal, err := s.normalizer.Normalize(item)
		if err != nil {
			continue
		}
		normalized = append(normalized, deal)
	}

	after := s.normalizer.Stats()

	ranked := scraper.TopN(scraper.Rank(normalized), s.topN)

	upserted, err := s.feed.Ingest(ctx, ranked)
	if err != nil {
		return nil, fmt.Errorf("failed to persist deals: %w", err)
	}

	report := &IngestReport{
		Extracted: len(items),
		Dropped:   int(after.Dropped - before.Dropped),
		Corrected: int(after.Corrected - before.Corrected),
		Ranked:    len(ranked),
		Upserted:  upserted,
		Duration:  time.Since(start),
	}

	s.logger.Info("Ingestion run completed",
		zap.Int("extracted", report.Extracted),
		zap.Int("dropped", report.Dropped),
		zap.Int("corrected", report.Corrected),
		zap.Int("ranked", report.Ranked),
		zap.Int("upserted", report.Upserted),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}

// Start runs the pipeline on a fixed interval until the context is canceled.
// An immediate run happens on startup so the catalog is never empty-cold.
func (s *ingestService) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("Scheduled ingestion failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Ingestion scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil && !errors.Is(err, ErrIngestInProgress) {
				s.logger.Error("Scheduled ingestion failed", zap.Error(err))
			}
		}
	}
}
