package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// Classifier assigns one cache-outcome category to a record by walking
// an ordered predicate cascade; the first matching predicate wins and
// later predicates are not evaluated. Classification is pure and never
// fails: malformed fields degrade the affected predicate to
// non-matching.
type Classifier struct {
	threshold float64
	logger    *slog.Logger
}

func NewClassifier(threshold float64, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		threshold: threshold,
		logger:    logger,
	}
}

// Classify returns the record's category. The diagnostic is non-nil
// only for unclassified records, listing how every cascade predicate
// evaluated.
func (c *Classifier) Classify(rec domain.StepRecord) (domain.Category, *domain.Diagnostic) {
	candidates, parseErr := c.candidates(rec)

	checks := make([]domain.PredicateCheck, 0, 11)
	for _, p := range c.cascade() {
		passed, reason := p.match(rec, candidates)
		if passed {
			return p.category, nil
		}
		checks = append(checks, domain.PredicateCheck{
			Category: p.category,
			Passed:   false,
			Reason:   reason,
		})
	}

	if parseErr != nil {
		checks = append(checks, domain.PredicateCheck{
			Category: domain.CategoryUnclassified,
			Passed:   true,
			Reason:   fmt.Sprintf("cache_query_results did not parse: %v", parseErr),
		})
	}

	return domain.CategoryUnclassified, &domain.Diagnostic{
		StepID:               rec.StepID,
		Command:              rec.Command,
		StepClassification:   rec.StepClassification,
		CacheReadStatus:      rec.CacheReadStatus,
		TestStepStatus:       rec.TestStepStatus,
		HasCacheQueryResults: rec.CacheQueryResults != nil,
		HasOCROutput:         rec.OCROutput != nil,
		IsBlocker:            rec.IsBlocker,
		Checks:               checks,
	}
}

func (c *Classifier) candidates(rec domain.StepRecord) ([]domain.CandidateDocument, error) {
	if rec.CacheQueryResults == nil {
		return nil, nil
	}
	candidates, err := domain.ParseCandidates(*rec.CacheQueryResults)
	if err != nil {
		c.logger.Warn("malformed cache_query_results, treating as absent",
			"step_id", rec.StepID,
			"error", err.Error(),
		)
		return nil, err
	}
	return candidates, nil
}

type predicate struct {
	category domain.Category
	match    func(rec domain.StepRecord, candidates []domain.CandidateDocument) (bool, string)
}

func (c *Classifier) cascade() []predicate {
	return []predicate{
		{domain.CategoryUndoable, matchUndoable},
		{domain.CategoryUnblockerCall, matchUnblockerCall},
		{domain.CategoryOCRSteps, matchOCRSteps},
		{domain.CategoryDynamicStep, matchDynamicStep},
		{domain.CategoryFailedStep, matchFailedStep},
		{domain.CategoryNullLLMOutput, matchNullLLMOutput},
		{domain.CategoryCacheReadStatusNone, matchCacheReadStatusNone},
		{domain.CategoryNoCacheDocumentsFound, matchNoCacheDocumentsFound},
		{domain.CategoryLessSimilarityThreshold, c.matchLessSimilarityThreshold},
		{domain.CategoryFailedAtMustMatchFilter, c.matchFailedAtMustMatchFilter},
		{domain.CategoryFailedAfterSimilarDocument, c.matchFailedAfterSimilarDocument},
	}
}

func matchUndoable(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.LLMOutput == nil {
		return false, "llm_output absent"
	}
	if strings.Contains(strings.ToLower(*rec.LLMOutput), "undoable") {
		return true, ""
	}
	return false, "llm_output does not contain 'undoable'"
}

func matchUnblockerCall(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.LLMOutput == nil {
		return false, "llm_output absent"
	}
	if strings.Contains(strings.ToLower(*rec.LLMOutput), "unblock: ") {
		return true, ""
	}
	return false, "llm_output does not contain 'unblock: '"
}

func matchOCRSteps(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.OCROutput == nil {
		return false, "ocr_output absent"
	}
	if *rec.OCROutput == "" || *rec.OCROutput == "NA" {
		return false, fmt.Sprintf("ocr_output is sentinel %q", *rec.OCROutput)
	}
	return true, ""
}

func matchDynamicStep(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.EnsembleUsed != nil && *rec.EnsembleUsed {
		return true, ""
	}
	return false, "ensemble_used is not true"
}

func matchFailedStep(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.TestStepStatus == "FAILED" {
		return true, ""
	}
	return false, fmt.Sprintf("test_step_status is %q, not FAILED", rec.TestStepStatus)
}

func matchNullLLMOutput(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.LLMOutput == nil {
		return false, "llm_output absent"
	}
	if *rec.LLMOutput == "" {
		return true, ""
	}
	return false, "llm_output is non-empty"
}

func matchCacheReadStatusNone(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.CacheReadStatus == nil {
		return true, ""
	}
	return false, fmt.Sprintf("cache_read_status present with value %d", *rec.CacheReadStatus)
}

func matchNoCacheDocumentsFound(rec domain.StepRecord, _ []domain.CandidateDocument) (bool, string) {
	if rec.CacheReadStatus != nil && *rec.CacheReadStatus == -1 {
		return true, ""
	}
	return false, "cache_read_status is not -1"
}

func (c *Classifier) matchLessSimilarityThreshold(_ domain.StepRecord, candidates []domain.CandidateDocument) (bool, string) {
	if len(candidates) == 0 {
		return false, "no parsed candidate documents"
	}
	for _, cand := range candidates {
		if cand.SimilarityScore >= c.threshold {
			return false, fmt.Sprintf("candidate similarity %.4f reaches threshold %.2f", cand.SimilarityScore, c.threshold)
		}
	}
	return true, ""
}

func (c *Classifier) matchFailedAtMustMatchFilter(_ domain.StepRecord, candidates []domain.CandidateDocument) (bool, string) {
	for _, cand := range candidates {
		if cand.SimilarityScore <= c.threshold {
			continue
		}
		report := cand.ComponentSelectionReport
		if report != nil && report.CandNosAfterMustMatchFilter != nil && *report.CandNosAfterMustMatchFilter == 0 {
			return true, ""
		}
	}
	return false, "no above-threshold candidate was filtered to zero by must_match"
}

func (c *Classifier) matchFailedAfterSimilarDocument(_ domain.StepRecord, candidates []domain.CandidateDocument) (bool, string) {
	for _, cand := range candidates {
		if cand.SimilarityScore <= c.threshold || cand.IsUsed {
			continue
		}
		report := cand.ComponentSelectionReport
		if report != nil && report.CandNosAfterMustMatchFilter != nil && *report.CandNosAfterMustMatchFilter != 0 {
			return true, ""
		}
	}
	return false, "no unused above-threshold candidate survived must_match"
}
