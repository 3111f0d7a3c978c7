package ports

import (
	"context"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// ScanQuery narrows a record source scan. Empty fields are unbounded;
// dates are YYYY-MM-DD in the reporting timezone.
type ScanQuery struct {
	Command    string
	AppPackage string
	StartDate  string
	EndDate    string
}

// RecordSource streams execution records from the remote table. Scan
// invokes fn once per record, in source order, and returns once the
// stream is exhausted, fn returns an error, or a page fetch fails. On a
// page failure every record already fetched has been delivered, so the
// caller may still finalize partial results.
type RecordSource interface {
	Scan(ctx context.Context, query ScanQuery, fn func(domain.StepRecord) error) error
}

// ReportStore persists analysis output as flat JSON documents under the
// configured output directory and lists them back for the API.
type ReportStore interface {
	WriteSingleReport(report domain.Report) (string, error)
	CreateRun(id string) (string, error)
	RunDir(id string) string
	WriteMetadata(runID string, md domain.RunMetadata) error
	WriteCommandReport(runID string, report domain.Report) (string, error)
	WritePairReport(runID string, report domain.Report) (string, error)
	WriteSummary(runID string, summary domain.RunSummary) error
	WriteSummaryWorkbook(runID string, reports []domain.Report) error
	OpenDiagnosticLog(runID string) (DiagnosticLog, error)
	ListRuns() ([]domain.RunListing, error)
	ReadReportFile(relPath string) (*domain.ReportFile, error)
}

// DiagnosticSink receives unclassified-record diagnostics. Recording is
// best effort and never interrupts aggregation.
type DiagnosticSink interface {
	Record(d domain.Diagnostic)
}

// DiagnosticLog is a closable per-run diagnostic sink.
type DiagnosticLog interface {
	DiagnosticSink
	Close() error
}

// AnalysisQueue carries bulk-analysis jobs from the API to the worker.
type AnalysisQueue interface {
	PublishBulkAnalysis(ctx context.Context, job domain.BulkAnalysisJob) error
	SubscribeBulkAnalysis(ctx context.Context, handler func(context.Context, domain.BulkAnalysisJob)) error
}
