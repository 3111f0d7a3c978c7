package domain

// Category is one outcome of the cache-miss classification cascade.
// Exactly one category is assigned per record.
type Category string

const (
	CategoryUndoable                   Category = "undoable"
	CategoryUnblockerCall              Category = "unblocker_call"
	CategoryOCRSteps                   Category = "ocr_steps"
	CategoryDynamicStep                Category = "dynamic_step"
	CategoryFailedStep                 Category = "failed_step"
	CategoryNullLLMOutput              Category = "null_llm_output"
	CategoryCacheReadStatusNone        Category = "cache_read_status_none"
	CategoryNoCacheDocumentsFound      Category = "no_cache_documents_found"
	CategoryLessSimilarityThreshold    Category = "less_similarity_threshold"
	CategoryFailedAtMustMatchFilter    Category = "failed_at_must_match_filter"
	CategoryFailedAfterSimilarDocument Category = "failed_after_similar_document"
	CategoryUnclassified               Category = "unclassified"
)

// categoryOrder lists every category in cascade priority order. Report
// breakdowns serialize in this order.
var categoryOrder = []Category{
	CategoryUndoable,
	CategoryUnblockerCall,
	CategoryOCRSteps,
	CategoryDynamicStep,
	CategoryFailedStep,
	CategoryNullLLMOutput,
	CategoryCacheReadStatusNone,
	CategoryNoCacheDocumentsFound,
	CategoryLessSimilarityThreshold,
	CategoryFailedAtMustMatchFilter,
	CategoryFailedAfterSimilarDocument,
	CategoryUnclassified,
}

var categoryReasons = map[Category]string{
	CategoryUndoable:                   "Step was undoable, no cache needed",
	CategoryUnblockerCall:              "Unblocker call made, no cache needed",
	CategoryOCRSteps:                   "OCR was used for step execution, no cache needed",
	CategoryDynamicStep:                "Dynamic component resolution used, no cache needed",
	CategoryFailedStep:                 "Step execution failed, no cache needed",
	CategoryNullLLMOutput:              "No LLM output generated, no cache needed",
	CategoryCacheReadStatusNone:        "Cache was never attempted (dynamic resolution)",
	CategoryNoCacheDocumentsFound:      "Vector DB found no similar screenshots (cache_read_status=-1)",
	CategoryLessSimilarityThreshold:    "Found similar documents but similarity < 0.75",
	CategoryFailedAtMustMatchFilter:    "Component selection failed at must_match_filter stage",
	CategoryFailedAfterSimilarDocument: "Failed after finding similar document with good similarity",
	CategoryUnclassified:               "Unclassified cache miss reason",
}

// Categories returns the full taxonomy in priority order. The returned
// slice is a copy.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Reason returns the human-readable explanation attached to the category
// in report breakdowns.
func (c Category) Reason() string {
	return categoryReasons[c]
}

// Valid reports whether c is one of the twelve taxonomy categories.
func (c Category) Valid() bool {
	_, ok := categoryReasons[c]
	return ok
}

// PredicateCheck records how a single cascade predicate evaluated for
// one record.
type PredicateCheck struct {
	Category Category `json:"category"`
	Passed   bool     `json:"passed"`
	Reason   string   `json:"reason"`
}

// Diagnostic explains why a record fell through every cascade predicate
// into the unclassified catch-all. Checks are ordered by cascade
// priority.
type Diagnostic struct {
	StepID               string           `json:"step_id"`
	Command              string           `json:"command"`
	StepClassification   string           `json:"step_classification"`
	CacheReadStatus      *int             `json:"cache_read_status"`
	TestStepStatus       string           `json:"test_step_status"`
	HasCacheQueryResults bool             `json:"has_cache_query_results"`
	HasOCROutput         bool             `json:"has_ocr_output"`
	IsBlocker            *bool            `json:"is_blocker"`
	Checks               []PredicateCheck `json:"checks"`
}
