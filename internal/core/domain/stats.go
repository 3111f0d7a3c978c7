package domain

// Bucket accumulates running statistics for one aggregation key, either
// a command or a command+package pair. Buckets are mutated in place by
// the aggregation engine for the duration of one run and are never
// shared between runs.
type Bucket struct {
	Count                    int
	CacheHits                int
	CacheMisses              int
	CacheHitWithoutComponent int

	// AppPackages is only populated on command-level buckets.
	// AppPackageOrder preserves first-seen order for tie-breaking.
	AppPackages     map[string]int
	AppPackageOrder []string

	DateDistribution    map[string]int
	StepClassifications map[string]int
	TestStepStatus      map[string]int
	CacheLatencies      []float64
	CacheMissBreakdown  map[Category]int
}

// NewBucket returns an empty bucket with every breakdown category
// pre-seeded at zero so reports always carry the full taxonomy.
func NewBucket() *Bucket {
	breakdown := make(map[Category]int, len(categoryOrder))
	for _, c := range categoryOrder {
		breakdown[c] = 0
	}
	return &Bucket{
		AppPackages:         make(map[string]int),
		DateDistribution:    make(map[string]int),
		StepClassifications: make(map[string]int),
		TestStepStatus:      make(map[string]int),
		CacheMissBreakdown:  breakdown,
	}
}

// ObservePackage increments the package counter, recording first-seen
// order for deterministic most-common-package tie-breaking.
func (b *Bucket) ObservePackage(pkg string) {
	if _, seen := b.AppPackages[pkg]; !seen {
		b.AppPackageOrder = append(b.AppPackageOrder, pkg)
	}
	b.AppPackages[pkg]++
}

// MostCommonPackage returns the package with the highest count; ties
// resolve to the package seen first. Returns UNKNOWN_PACKAGE when the
// bucket tracked no packages.
func (b *Bucket) MostCommonPackage() string {
	if len(b.AppPackageOrder) == 0 {
		return "UNKNOWN_PACKAGE"
	}
	best := b.AppPackageOrder[0]
	bestCount := b.AppPackages[best]
	for _, pkg := range b.AppPackageOrder[1:] {
		if n := b.AppPackages[pkg]; n > bestCount {
			best = pkg
			bestCount = n
		}
	}
	return best
}
