package domain

import (
	"encoding/json"
	"strings"
)

// StepRecord is one execution record pulled from the record source.
// Pointer fields distinguish an absent attribute from a present empty or
// zero value; that distinction is load-bearing for classification.
type StepRecord struct {
	StepID             string
	Command            string
	AppPackage         string
	ThreadCode         string
	CreatedAt          string
	StepClassification string
	TestStepStatus     string
	CacheReadStatus    *int
	CacheReadLatency   *float64
	CacheQueryResults  *string
	OCROutput          *string
	LLMOutput          *string
	IsBlocker          *bool
	EnsembleUsed       *bool
}

// DateKey returns the calendar-date portion of CreatedAt, or "unknown"
// when the record carries no timestamp.
func (r StepRecord) DateKey() string {
	if r.CreatedAt == "" {
		return "unknown"
	}
	if len(r.CreatedAt) > 10 {
		return r.CreatedAt[:10]
	}
	return r.CreatedAt
}

// IsCacheMiss reports whether the record counts as a cache miss. Every
// record that is not a hit is a miss, including statuses outside the
// documented set; hit and miss must partition the stream.
func (r StepRecord) IsCacheMiss() bool {
	return !r.IsCacheHit()
}

// IsCacheHit reports whether the cached component was reused (status 1).
func (r StepRecord) IsCacheHit() bool {
	return r.CacheReadStatus != nil && *r.CacheReadStatus == 1
}

// IsHitWithoutComponent reports a partial hit (status 0): the cache
// responded but no component was selected. Such records also count as
// misses.
func (r StepRecord) IsHitWithoutComponent() bool {
	return r.CacheReadStatus != nil && *r.CacheReadStatus == 0
}

type CandidateDocument struct {
	SimilarityScore          float64                   `json:"similarity_score"`
	IsUsed                   bool                      `json:"is_used"`
	ComponentSelectionReport *ComponentSelectionReport `json:"component_selection_report,omitempty"`
}

type ComponentSelectionReport struct {
	CandNosAfterMustMatchFilter *int `json:"cand_nos_after_must_match_filter,omitempty"`
}

// ParseCandidates decodes the JSON candidate list carried in
// cache_query_results. An empty or "NA" payload yields no candidates and
// no error; anything that does not decode to a list yields an error the
// caller treats as "no candidates".
func ParseCandidates(raw string) ([]CandidateDocument, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "NA" {
		return nil, nil
	}
	var candidates []CandidateDocument
	if err := json.Unmarshal([]byte(trimmed), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}
