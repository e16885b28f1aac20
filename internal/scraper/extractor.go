package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrExtractionEmpty is returned when a page contains no parseable listing
// entries at all. A mix of good and malformed entries is not an error.
var ErrExtractionEmpty = errors.New("no parseable listing entries in payload")

// Extractor turns a raw page payload into the listing entries embedded in it.
// Implementations must be pure: same payload, same items, no side effects.
type Extractor interface {
	Extract(payload string) ([]RawItem, error)
}

// Grid markup used by the retailer's category listing pages. Each product
// sits in a grid item whose fragment element carries the full product data
// as a JSON blob in a data attribute.
const (
	gridItemSelector = "li.s-grid__item div.s-grid__fragment-item"
	gridDataAttr     = "data-grid-data"
)

// GridExtractor extracts products from grid-style listing pages. Other
// retailers plug in behind the Extractor interface without touching the
// rest of the pipeline.
type GridExtractor struct{}

// NewGridExtractor creates a new GridExtractor.
func NewGridExtractor() *GridExtractor {
	return &GridExtractor{}
}

// Extract parses the payload and decodes every embedded product blob.
// Entries whose blob is absent or not valid JSON are skipped; extraction
// continues with the next entry.
func (e *GridExtractor) Extract(payload string) ([]RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	var items []RawItem
	doc.Find(gridItemSelector).Each(func(_ int, s *goquery.Selection) {
		blob, ok := s.Attr(gridDataAttr)
		if !ok || blob == "" {
			return
		}

		var item RawItem
		if err := json.Unmarshal([]byte(blob), &item); err != nil {
			return
		}
		items = append(items, item)
	})

	if len(items) == 0 {
		return nil, ErrExtractionEmpty
	}

	return items, nil
}
