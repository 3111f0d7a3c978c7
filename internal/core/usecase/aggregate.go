package usecase

import (
	"log/slog"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
)

type pairKey struct {
	command    string
	appPackage string
}

// Aggregator folds a record stream into running statistics keyed by
// command and by command+package. State is owned by one run: memory
// stays proportional to the number of distinct keys, not records.
// Records must be observed sequentially; each Observe call leaves every
// touched bucket internally consistent, so a stream that fails mid-way
// can still be finalized.
type Aggregator struct {
	classifier  *Classifier
	diagnostics ports.DiagnosticSink
	logger      *slog.Logger

	commands     map[string]*domain.Bucket
	commandOrder []string
	pairs        map[pairKey]*domain.Bucket
	pairOrder    []pairKey
	total        int
	onMiss       func(domain.Category)
}

// OnMissClassified registers an observer invoked once per classified
// miss record, after the category is settled.
func (a *Aggregator) OnMissClassified(fn func(domain.Category)) {
	a.onMiss = fn
}

func NewAggregator(classifier *Classifier, diagnostics ports.DiagnosticSink, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		classifier:  classifier,
		diagnostics: diagnostics,
		logger:      logger,
		commands:    make(map[string]*domain.Bucket),
		pairs:       make(map[pairKey]*domain.Bucket),
	}
}

// Observe folds one record into both key-spaces. Misses are classified
// exactly once and the resulting category is applied to both buckets;
// an unclassified result additionally emits a diagnostic.
func (a *Aggregator) Observe(rec domain.StepRecord) {
	a.total++

	var category domain.Category
	if rec.IsCacheMiss() {
		var diag *domain.Diagnostic
		category, diag = a.classifier.Classify(rec)
		if !category.Valid() {
			a.logger.Warn("classifier returned unknown category",
				"step_id", rec.StepID,
				"category", string(category),
			)
			category = domain.CategoryUnclassified
		}
		if diag != nil && a.diagnostics != nil {
			a.diagnostics.Record(*diag)
		}
		if a.onMiss != nil {
			a.onMiss(category)
		}
	}

	command := fallback(rec.Command, "UNKNOWN_COMMAND")
	appPackage := fallback(rec.AppPackage, "UNKNOWN_PACKAGE")

	a.updateBucket(a.commandBucket(command), rec, category, appPackage)
	a.updateBucket(a.pairBucket(command, appPackage), rec, category, "")
}

// TotalRecords returns how many records have been observed.
func (a *Aggregator) TotalRecords() int {
	return a.total
}

// Commands returns every observed command in first-seen order.
func (a *Aggregator) Commands() []string {
	out := make([]string, len(a.commandOrder))
	copy(out, a.commandOrder)
	return out
}

// Pairs returns every observed command+package pair in first-seen
// order.
func (a *Aggregator) Pairs() [][2]string {
	out := make([][2]string, 0, len(a.pairOrder))
	for _, key := range a.pairOrder {
		out = append(out, [2]string{key.command, key.appPackage})
	}
	return out
}

// CommandBucket returns the running bucket for a command, or nil when
// the command has not been observed.
func (a *Aggregator) CommandBucket(command string) *domain.Bucket {
	return a.commands[command]
}

// PairBucket returns the running bucket for a command+package pair, or
// nil when the pair has not been observed.
func (a *Aggregator) PairBucket(command, appPackage string) *domain.Bucket {
	return a.pairs[pairKey{command: command, appPackage: appPackage}]
}

func (a *Aggregator) commandBucket(command string) *domain.Bucket {
	bucket, ok := a.commands[command]
	if !ok {
		bucket = domain.NewBucket()
		a.commands[command] = bucket
		a.commandOrder = append(a.commandOrder, command)
	}
	return bucket
}

func (a *Aggregator) pairBucket(command, appPackage string) *domain.Bucket {
	key := pairKey{command: command, appPackage: appPackage}
	bucket, ok := a.pairs[key]
	if !ok {
		bucket = domain.NewBucket()
		a.pairs[key] = bucket
		a.pairOrder = append(a.pairOrder, key)
	}
	return bucket
}

// updateBucket applies one record to one bucket. trackedPackage is the
// normalized package name for command-level buckets and empty for pair
// buckets, which do not carry a package distribution.
func (a *Aggregator) updateBucket(bucket *domain.Bucket, rec domain.StepRecord, category domain.Category, trackedPackage string) {
	bucket.Count++

	switch {
	case rec.IsCacheHit():
		bucket.CacheHits++
	default:
		if rec.IsHitWithoutComponent() {
			bucket.CacheHitWithoutComponent++
		}
		bucket.CacheMisses++
		bucket.CacheMissBreakdown[category]++
	}

	if trackedPackage != "" {
		bucket.ObservePackage(trackedPackage)
	}
	bucket.DateDistribution[rec.DateKey()]++
	bucket.StepClassifications[fallback(rec.StepClassification, "UNKNOWN")]++
	bucket.TestStepStatus[fallback(rec.TestStepStatus, "UNKNOWN")]++
	if rec.CacheReadLatency != nil && *rec.CacheReadLatency != 0 {
		bucket.CacheLatencies = append(bucket.CacheLatencies, *rec.CacheReadLatency)
	}
}

func fallback(value, alt string) string {
	if value == "" {
		return alt
	}
	return value
}
