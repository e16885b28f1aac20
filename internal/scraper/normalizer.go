package scraper

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"

	"dealswipe/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrMissingPrice is returned when a raw item carries no usable price.
// Price is the only mandatory field; records without it are dropped.
var ErrMissingPrice = errors.New("raw item has no usable price")

const missingValue = "N/A"

// NormalizerStats is a snapshot of the normalizer's counters.
type NormalizerStats struct {
	Dropped   int64 // records rejected for a missing price
	Corrected int64 // soft-fixed fields, e.g. oldPrice below price
}

// Normalizer maps raw listing entries into canonical deals. It is pure and
// synchronous apart from counter updates; counters make soft corrections
// observable without turning them into errors.
type Normalizer struct {
	baseURL string
	logger  *zap.Logger

	dropped   atomic.Int64
	corrected atomic.Int64
}

// NewNormalizer creates a Normalizer. Product URLs are always composed as
// baseURL + canonicalPath, never trusted from the source verbatim.
func NewNormalizer(baseURL string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Stats returns the current counter values.
func (n *Normalizer) Stats() NormalizerStats {
	return NormalizerStats{
		Dropped:   n.dropped.Load(),
		Corrected: n.corrected.Load(),
	}
}

// Normalize maps a raw item into a Deal. ID and CreatedAt are assigned at
// persistence time, not here.
func (n *Normalizer) Normalize(item RawItem) (*domain.Deal, error) {
	priceInfo := item.Child("price")

	price, ok := priceInfo.Float("price")
	if !ok {
		n.dropped.Add(1)
		n.logger.Debug("Dropping raw item without price",
			zap.Any("canonical_path", item["canonicalPath"]),
		)
		return nil, ErrMissingPrice
	}

	name, ok := item.String("fullTitle")
	if !ok || name == "" {
		name = missingValue
	}

	var oldPrice *float64
	if v, ok := priceInfo.Float("oldPrice"); ok {
		if v < price {
			// Retailer feeds have been seen with oldPrice below the current
			// price; treat the field as corrupt rather than reject the deal.
			n.corrected.Add(1)
			n.logger.Debug("Discarding corrupt oldPrice",
				zap.Float64("old_price", v),
				zap.Float64("price", price),
			)
		} else {
			oldPrice = &v
		}
	}

	discount := n.discountPercentage(priceInfo, price, oldPrice)

	path, ok := item.String("canonicalPath")
	if !ok || path == "" {
		path = missingValue
	}

	return &domain.Deal{
		ProductName:        name,
		Price:              price,
		OldPrice:           oldPrice,
		DiscountPercentage: discount,
		Description:        n.description(item),
		ImageURLs:          item.StringList("imageList"),
		CanonicalPath:      path,
		URL:                n.baseURL + path,
	}, nil
}

// discountPercentage resolves the discount for a deal. The source-provided
// percentage is authoritative when present; otherwise it is derived from the
// two prices, and zero when neither is available.
func (n *Normalizer) discountPercentage(priceInfo RawItem, price float64, oldPrice *float64) int {
	if v, ok := priceInfo.Child("discount").Float("percentageDiscount"); ok {
		return clampPercentage(int(math.Round(v)))
	}
	if oldPrice != nil && *oldPrice > 0 {
		derived := math.Round(100 * (*oldPrice - price) / *oldPrice)
		return clampPercentage(int(derived))
	}
	return 0
}

// description picks the longer accordion detail block when present, falling
// back to the short supplemental description, and strips markup from either.
func (n *Normalizer) description(item RawItem) string {
	keyfacts := item.Child("keyfacts")
	text, ok := keyfacts.String("description")
	if !ok || text == "" {
		text, _ = keyfacts.String("supplementalDescription")
	}
	return stripHTML(text)
}

func clampPercentage(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// blockTags are elements that introduce a line break when markup is flattened
// to plain text.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "section": true, "article": true,
}

// stripHTML flattens markup to plain text, preserving line breaks between
// block elements and trimming surrounding whitespace.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		if node.Type == html.ElementNode && node.Data == "br" {
			b.WriteString("\n")
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && blockTags[node.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}
