package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

func intPtr(v int) *int          { return &v }
func strPtr(s string) *string    { return &s }
func boolPtr(b bool) *bool       { return &b }
func floatPtr(v float64) *float64 { return &v }

// baseMissRecord is a miss that matches none of the cascade predicates:
// every earlier predicate must be explicitly defused so tests can target
// a single one.
func baseMissRecord() domain.StepRecord {
	return domain.StepRecord{
		StepID:             "step-1",
		Command:            "Tap Submit",
		AppPackage:         "com.example.app",
		StepClassification: "TAP",
		TestStepStatus:     "PASSED",
		CacheReadStatus:    intPtr(0),
		LLMOutput:          strPtr("Click(submit_button)"),
		OCROutput:          strPtr("NA"),
		EnsembleUsed:       boolPtr(false),
	}
}

func candidatesJSON(t *testing.T, docs string) *string {
	t.Helper()
	return strPtr(docs)
}

func TestClassifyCascadeCategories(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	cases := []struct {
		name   string
		mutate func(*domain.StepRecord)
		want   domain.Category
	}{
		{
			name:   "undoable",
			mutate: func(r *domain.StepRecord) { r.LLMOutput = strPtr("Step is UNDOABLE on this screen") },
			want:   domain.CategoryUndoable,
		},
		{
			name:   "unblocker call",
			mutate: func(r *domain.StepRecord) { r.LLMOutput = strPtr("Unblock: dismiss popup") },
			want:   domain.CategoryUnblockerCall,
		},
		{
			name:   "ocr steps",
			mutate: func(r *domain.StepRecord) { r.OCROutput = strPtr("detected text: submit") },
			want:   domain.CategoryOCRSteps,
		},
		{
			name:   "dynamic step",
			mutate: func(r *domain.StepRecord) { r.EnsembleUsed = boolPtr(true) },
			want:   domain.CategoryDynamicStep,
		},
		{
			name:   "failed step",
			mutate: func(r *domain.StepRecord) { r.TestStepStatus = "FAILED" },
			want:   domain.CategoryFailedStep,
		},
		{
			name:   "null llm output",
			mutate: func(r *domain.StepRecord) { r.LLMOutput = strPtr("") },
			want:   domain.CategoryNullLLMOutput,
		},
		{
			name:   "cache read status none",
			mutate: func(r *domain.StepRecord) { r.CacheReadStatus = nil },
			want:   domain.CategoryCacheReadStatusNone,
		},
		{
			name:   "no cache documents found",
			mutate: func(r *domain.StepRecord) { r.CacheReadStatus = intPtr(-1) },
			want:   domain.CategoryNoCacheDocumentsFound,
		},
		{
			name: "less similarity threshold",
			mutate: func(r *domain.StepRecord) {
				r.CacheQueryResults = strPtr(`[{"similarity_score":0.50},{"similarity_score":0.74}]`)
			},
			want: domain.CategoryLessSimilarityThreshold,
		},
		{
			name: "failed at must match filter",
			mutate: func(r *domain.StepRecord) {
				r.CacheQueryResults = strPtr(`[{"similarity_score":0.90,"component_selection_report":{"cand_nos_after_must_match_filter":0}}]`)
			},
			want: domain.CategoryFailedAtMustMatchFilter,
		},
		{
			name: "failed after similar document",
			mutate: func(r *domain.StepRecord) {
				r.CacheQueryResults = strPtr(`[{"similarity_score":0.90,"is_used":false,"component_selection_report":{"cand_nos_after_must_match_filter":3}}]`)
			},
			want: domain.CategoryFailedAfterSimilarDocument,
		},
		{
			name: "unclassified",
			mutate: func(r *domain.StepRecord) {
				r.CacheQueryResults = strPtr(`[{"similarity_score":0.90,"is_used":true,"component_selection_report":{"cand_nos_after_must_match_filter":3}}]`)
			},
			want: domain.CategoryUnclassified,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := baseMissRecord()
			tc.mutate(&rec)
			got, diag := classifier.Classify(rec)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if tc.want == domain.CategoryUnclassified && diag == nil {
				t.Fatalf("expected diagnostic for unclassified record")
			}
			if tc.want != domain.CategoryUnclassified && diag != nil {
				t.Fatalf("expected no diagnostic for %s, got one", tc.want)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	// Matches both undoable (priority 0) and failed_step (priority 4).
	rec := baseMissRecord()
	rec.LLMOutput = strPtr("undoable")
	rec.TestStepStatus = "FAILED"
	if got, _ := classifier.Classify(rec); got != domain.CategoryUndoable {
		t.Fatalf("expected undoable to win over failed_step, got %s", got)
	}

	// An absent status pre-empts candidate-based predicates even when the
	// payload carries below-threshold candidates.
	rec = baseMissRecord()
	rec.CacheReadStatus = nil
	rec.CacheQueryResults = strPtr(`[{"similarity_score":0.10}]`)
	if got, _ := classifier.Classify(rec); got != domain.CategoryCacheReadStatusNone {
		t.Fatalf("expected cache_read_status_none to win, got %s", got)
	}

	// Status -1 pre-empts the similarity predicates the same way.
	rec = baseMissRecord()
	rec.CacheReadStatus = intPtr(-1)
	rec.CacheQueryResults = strPtr(`[{"similarity_score":0.10}]`)
	if got, _ := classifier.Classify(rec); got != domain.CategoryNoCacheDocumentsFound {
		t.Fatalf("expected no_cache_documents_found to win, got %s", got)
	}
}

func TestClassifyThresholdIsStrict(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	// A candidate exactly at the threshold is neither "less than
	// threshold" nor "above threshold" for the later predicates.
	rec := baseMissRecord()
	rec.CacheQueryResults = strPtr(`[{"similarity_score":0.75,"is_used":false,"component_selection_report":{"cand_nos_after_must_match_filter":3}}]`)
	if got, _ := classifier.Classify(rec); got != domain.CategoryUnclassified {
		t.Fatalf("expected exact-threshold candidate to be unclassified, got %s", got)
	}

	rec = baseMissRecord()
	rec.CacheQueryResults = strPtr(`[{"similarity_score":0.7501,"is_used":false,"component_selection_report":{"cand_nos_after_must_match_filter":3}}]`)
	if got, _ := classifier.Classify(rec); got != domain.CategoryFailedAfterSimilarDocument {
		t.Fatalf("expected just-above-threshold candidate to classify, got %s", got)
	}

	rec = baseMissRecord()
	rec.CacheQueryResults = strPtr(`[{"similarity_score":0.7499}]`)
	if got, _ := classifier.Classify(rec); got != domain.CategoryLessSimilarityThreshold {
		t.Fatalf("expected just-below-threshold candidate to classify, got %s", got)
	}
}

func TestClassifyAbsentVersusEmptyLLMOutput(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	rec := baseMissRecord()
	rec.LLMOutput = strPtr("")
	if got, _ := classifier.Classify(rec); got != domain.CategoryNullLLMOutput {
		t.Fatalf("expected empty llm_output to classify as null_llm_output, got %s", got)
	}

	// Absent llm_output must not match null_llm_output; the record falls
	// through to the next predicate that applies.
	rec = baseMissRecord()
	rec.LLMOutput = nil
	rec.CacheReadStatus = nil
	if got, _ := classifier.Classify(rec); got != domain.CategoryCacheReadStatusNone {
		t.Fatalf("expected absent llm_output to fall through, got %s", got)
	}
}

func TestClassifyMalformedCandidatesDegradeGracefully(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	rec := baseMissRecord()
	rec.CacheQueryResults = strPtr(`{not valid json`)
	got, diag := classifier.Classify(rec)
	if got != domain.CategoryUnclassified {
		t.Fatalf("expected malformed candidates to fall to unclassified, got %s", got)
	}
	if diag == nil {
		t.Fatalf("expected diagnostic")
	}
	last := diag.Checks[len(diag.Checks)-1]
	if last.Category != domain.CategoryUnclassified || !strings.Contains(last.Reason, "did not parse") {
		t.Fatalf("expected parse-failure check recorded, got %+v", last)
	}

	// Sentinel payloads are not parse failures, just empty candidate
	// lists.
	for _, payload := range []string{"", "NA", "  "} {
		rec := baseMissRecord()
		rec.CacheQueryResults = strPtr(payload)
		got, diag := classifier.Classify(rec)
		if got != domain.CategoryUnclassified {
			t.Fatalf("payload %q: expected unclassified, got %s", payload, got)
		}
		for _, check := range diag.Checks {
			if strings.Contains(check.Reason, "did not parse") {
				t.Fatalf("payload %q: sentinel must not be reported as a parse failure", payload)
			}
		}
	}
}

func TestClassifyDiagnosticContents(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	rec := baseMissRecord()
	rec.StepID = "step-42"
	rec.IsBlocker = boolPtr(false)
	_, diag := classifier.Classify(rec)
	if diag == nil {
		t.Fatalf("expected diagnostic")
	}
	if diag.StepID != "step-42" || diag.Command != "Tap Submit" {
		t.Fatalf("diagnostic identity mismatch: %+v", diag)
	}
	if diag.HasCacheQueryResults {
		t.Fatalf("expected has_cache_query_results false for record without payload")
	}
	if diag.IsBlocker == nil || *diag.IsBlocker {
		t.Fatalf("expected is_blocker false in diagnostic")
	}

	wantOrder := domain.Categories()[:11]
	if len(diag.Checks) != len(wantOrder) {
		t.Fatalf("expected %d predicate checks, got %d", len(wantOrder), len(diag.Checks))
	}
	for i, check := range diag.Checks {
		if check.Category != wantOrder[i] {
			t.Fatalf("check %d: expected %s, got %s", i, wantOrder[i], check.Category)
		}
		if check.Passed {
			t.Fatalf("check %d (%s): unclassified record must fail every predicate", i, check.Category)
		}
		if check.Reason == "" {
			t.Fatalf("check %d (%s): expected a reason", i, check.Category)
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	classifier := NewClassifier(0.75, nil)

	rec := baseMissRecord()
	rec.CacheQueryResults = strPtr(`[{"similarity_score":0.60},{"similarity_score":0.90,"component_selection_report":{"cand_nos_after_must_match_filter":0}}]`)
	first, _ := classifier.Classify(rec)
	for i := 0; i < 5; i++ {
		got, _ := classifier.Classify(rec)
		if got != first {
			t.Fatalf("classification changed between runs: %s then %s", first, got)
		}
	}
	if first != domain.CategoryFailedAtMustMatchFilter {
		t.Fatalf("expected failed_at_must_match_filter, got %s", first)
	}
}

func TestClassifyCustomThreshold(t *testing.T) {
	classifier := NewClassifier(0.9, nil)

	rec := baseMissRecord()
	rec.CacheQueryResults = candidatesJSON(t, fmt.Sprintf(`[{"similarity_score":%v}]`, 0.85))
	if got, _ := classifier.Classify(rec); got != domain.CategoryLessSimilarityThreshold {
		t.Fatalf("expected 0.85 below a 0.9 threshold, got %s", got)
	}
}
