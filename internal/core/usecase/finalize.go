package usecase

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// Finalizer converts a closed bucket into an immutable report. It only
// reads bucket state; percentages, latency averages, and date ranges
// are computed here, once, after the record stream is exhausted.
type Finalizer struct {
	logger *slog.Logger
}

func NewFinalizer(logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{logger: logger}
}

// CommandReport finalizes a command-level bucket. The report's
// app_package is the most common package across the command's records.
func (f *Finalizer) CommandReport(command string, bucket *domain.Bucket) domain.Report {
	report := f.baseReport(command, bucket.MostCommonPackage(), bucket)
	report.AppPackageDistribution = bucket.AppPackages
	return report
}

// PairReport finalizes a command+package bucket.
func (f *Finalizer) PairReport(command, appPackage string, bucket *domain.Bucket) domain.Report {
	return f.baseReport(command, appPackage, bucket)
}

func (f *Finalizer) baseReport(command, appPackage string, bucket *domain.Bucket) domain.Report {
	return domain.Report{
		Command:       command,
		AppPackage:    appPackage,
		TotalStepRuns: bucket.Count,
		DateRange:     dateRange(bucket.DateDistribution),
		CacheHit: domain.HitStats{
			Count:          bucket.CacheHits,
			Percentage:     formatPercentage(bucket.CacheHits, bucket.Count),
			AverageLatency: averageLatency(bucket.CacheLatencies),
			StepsList:      []string{},
		},
		CacheMiss: domain.MissStats{
			Count:      bucket.CacheMisses,
			Percentage: formatPercentage(bucket.CacheMisses, bucket.Count),
			Breakdown:  f.breakdown(bucket),
		},
		CacheHitWithoutComponent: domain.PartialHitStats{
			Count:      bucket.CacheHitWithoutComponent,
			Percentage: formatPercentage(bucket.CacheHitWithoutComponent, bucket.Count),
		},
		StepClassifications: bucket.StepClassifications,
		TestStepStatus:      bucket.TestStepStatus,
		DateDistribution:    bucket.DateDistribution,
	}
}

// breakdown formats the per-category miss distribution. A count under a
// key outside the taxonomy indicates a taxonomy mismatch bug; it is
// folded into unclassified rather than dropped.
func (f *Finalizer) breakdown(bucket *domain.Bucket) domain.Breakdown {
	counts := make(map[domain.Category]int, len(bucket.CacheMissBreakdown))
	for _, category := range domain.Categories() {
		counts[category] = bucket.CacheMissBreakdown[category]
	}
	for category, count := range bucket.CacheMissBreakdown {
		if category.Valid() {
			continue
		}
		f.logger.Warn("unknown category in miss breakdown, folding into unclassified",
			"category", string(category),
			"count", count,
		)
		counts[domain.CategoryUnclassified] += count
	}

	out := make(domain.Breakdown, len(counts))
	for category, count := range counts {
		out[category] = domain.CategoryStats{
			Count:      count,
			Percentage: formatPercentage(count, bucket.CacheMisses),
			Reason:     category.Reason(),
			StepsList:  []string{},
		}
	}
	return out
}

func dateRange(distribution map[string]int) domain.DateRange {
	if len(distribution) == 0 {
		return domain.DateRange{}
	}
	var minKey, maxKey string
	first := true
	for key := range distribution {
		if first {
			minKey, maxKey = key, key
			first = false
			continue
		}
		if key < minKey {
			minKey = key
		}
		if key > maxKey {
			maxKey = key
		}
	}
	return domain.DateRange{Start: &minKey, End: &maxKey}
}

// averageLatency returns the mean recorded latency rounded to six
// decimals; the rounding is part of the report format.
func averageLatency(latencies []float64) float64 {
	if len(latencies) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range latencies {
		sum += v
	}
	return math.Round(sum/float64(len(latencies))*1e6) / 1e6
}

func formatPercentage(part, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(total)*100)
}
