package ports

import (
	"context"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// AnalyzeCommandRequest describes one synchronous command+package
// analysis.
type AnalyzeCommandRequest struct {
	Command    string
	AppPackage string
	StartDate  string
	EndDate    string
}

// BulkAnalysisParams describes one requested bulk run.
type BulkAnalysisParams struct {
	StartDate              string
	EndDate                string
	GenerateIndividual     bool
	GenerateCommandPackage bool
}

// CommandAnalyzer is the inbound contract for synchronous single-pair
// analysis.
type CommandAnalyzer interface {
	AnalyzeCommand(ctx context.Context, req AnalyzeCommandRequest) (*domain.Report, error)
}

// BulkScheduler is the inbound contract for starting asynchronous bulk
// runs.
type BulkScheduler interface {
	Schedule(ctx context.Context, params BulkAnalysisParams) (domain.BulkAnalysisJob, error)
}

// BulkRunner executes a scheduled bulk run to completion.
type BulkRunner interface {
	Run(ctx context.Context, job domain.BulkAnalysisJob) (*domain.RunSummary, error)
}

// ReportBrowser is the inbound read model over stored analysis runs.
type ReportBrowser interface {
	ListRuns(ctx context.Context) ([]domain.RunListing, error)
	GetReport(ctx context.Context, relPath string) (*domain.ReportFile, error)
}
