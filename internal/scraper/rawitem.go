package scraper

import "strconv"

// RawItem is the decoded per-listing data blob exactly as found in the page.
// It is a nested tree of string keys to strings, numbers, lists and sub-trees,
// and only lives between extraction and normalization.
type RawItem map[string]any

// Child returns the nested tree under key, or an empty tree when the key is
// absent or not a tree. Chaining Child calls never panics.
func (it RawItem) Child(key string) RawItem {
	if it == nil {
		return nil
	}
	if child, ok := it[key].(map[string]any); ok {
		return RawItem(child)
	}
	return nil
}

// String returns the string value under key.
func (it RawItem) String(key string) (string, bool) {
	if it == nil {
		return "", false
	}
	s, ok := it[key].(string)
	return s, ok
}

// Float returns the numeric value under key. Retailer feeds are inconsistent
// about encoding prices as JSON numbers versus strings, so numeric strings
// are accepted too.
func (it RawItem) Float(key string) (float64, bool) {
	if it == nil {
		return 0, false
	}
	switch v := it[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// StringList returns the list of strings under key, skipping non-string
// elements. Absent or malformed lists yield nil.
func (it RawItem) StringList(key string) []string {
	if it == nil {
		return nil
	}
	raw, ok := it[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
