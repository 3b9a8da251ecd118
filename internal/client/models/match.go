package models

// MatchType classifies a match result.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
	MatchNone  MatchType = "none"
)

// MatchQuery is an externally sourced item looked up in the price list.
type MatchQuery struct {
	Name string `json:"name"`
	SKU  string `json:"sku,omitempty"`
}

// Alternative is a runner-up candidate.
type Alternative struct {
	Item       PricebookEntry `json:"item"`
	Confidence int            `json:"confidence"`
}

// MatchResult is produced fresh on each matching call and never persisted.
type MatchResult struct {
	QueryItem      MatchQuery      `json:"query_item"`
	MatchType      MatchType       `json:"match_type"`
	Confidence     int             `json:"confidence"`
	HighConfidence bool            `json:"high_confidence"`
	MatchedItem    *PricebookEntry `json:"matched_item,omitempty"`
	Alternatives   []Alternative   `json:"suggested_alternatives"`
}
