package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
)

type queueFake struct {
	published []domain.BulkAnalysisJob
	err       error
}

func (f *queueFake) PublishBulkAnalysis(_ context.Context, job domain.BulkAnalysisJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *queueFake) SubscribeBulkAnalysis(context.Context, func(context.Context, domain.BulkAnalysisJob)) error {
	return nil
}

type observerFake struct {
	misses  map[domain.Category]int
	written map[string]int
}

func newObserverFake() *observerFake {
	return &observerFake{
		misses:  make(map[domain.Category]int),
		written: make(map[string]int),
	}
}

func (o *observerFake) MissClassified(c domain.Category) { o.misses[c]++ }
func (o *observerFake) ReportWritten(kind string)        { o.written[kind]++ }

func newBulkService(source ports.RecordSource, store ports.ReportStore, queue ports.AnalysisQueue) *BulkAnalysisService {
	svc := NewBulkAnalysisService(source, store, queue, 0.75, nil)
	svc.newRunID = func() string { return "20251008_120000" }
	svc.now = func() time.Time {
		return time.Date(2025, 10, 8, 12, 0, 0, 0, domain.ReportingZone)
	}
	return svc
}

func TestBulkPrepareCreatesRun(t *testing.T) {
	store := newStoreFake()
	svc := newBulkService(&sourceFake{}, store, nil)

	job, err := svc.Prepare(context.Background(), ports.BulkAnalysisParams{
		StartDate:              "2025-10-01",
		GenerateIndividual:     true,
		GenerateCommandPackage: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.AnalysisID != "20251008_120000" {
		t.Fatalf("unexpected analysis id %q", job.AnalysisID)
	}
	if job.StartDate == nil || *job.StartDate != "2025-10-01" {
		t.Fatalf("start date not carried: %v", job.StartDate)
	}
	if job.EndDate != nil {
		t.Fatalf("empty end date must stay nil")
	}
	if len(store.createdRuns) != 1 || store.createdRuns[0] != "20251008_120000" {
		t.Fatalf("run directory not created: %v", store.createdRuns)
	}

	md, ok := store.metadata["20251008_120000"]
	if !ok {
		t.Fatalf("initial metadata not written")
	}
	if md.Status != domain.RunStatusRunning {
		t.Fatalf("expected running status, got %s", md.Status)
	}
	if !md.GenerateIndividual || !md.GenerateCommandPackage {
		t.Fatalf("generation flags not recorded: %+v", md)
	}
}

func TestBulkPrepareRejectsBadDates(t *testing.T) {
	store := newStoreFake()
	svc := newBulkService(&sourceFake{}, store, nil)

	_, err := svc.Prepare(context.Background(), ports.BulkAnalysisParams{
		StartDate: "2025-10-08",
		EndDate:   "2025-10-01",
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
	if len(store.createdRuns) != 0 {
		t.Fatalf("no run may be created for an invalid request")
	}
}

func TestBulkScheduleRequiresQueue(t *testing.T) {
	svc := newBulkService(&sourceFake{}, newStoreFake(), nil)

	if _, err := svc.Schedule(context.Background(), ports.BulkAnalysisParams{}); err == nil {
		t.Fatalf("expected error without a queue")
	}
}

func TestBulkSchedulePublishesJob(t *testing.T) {
	queue := &queueFake{}
	svc := newBulkService(&sourceFake{}, newStoreFake(), queue)

	job, err := svc.Schedule(context.Background(), ports.BulkAnalysisParams{
		GenerateIndividual:     true,
		GenerateCommandPackage: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queue.published) != 1 || queue.published[0].AnalysisID != job.AnalysisID {
		t.Fatalf("job not published: %+v", queue.published)
	}
}

func TestBulkScheduleMarksRunFailedOnPublishError(t *testing.T) {
	queue := &queueFake{err: errors.New("nats down")}
	store := newStoreFake()
	svc := newBulkService(&sourceFake{}, store, queue)

	_, err := svc.Schedule(context.Background(), ports.BulkAnalysisParams{})
	if err == nil {
		t.Fatalf("expected publish failure surfaced")
	}
	md := store.metadata["20251008_120000"]
	if md.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed metadata, got %s", md.Status)
	}
	if md.Error == "" {
		t.Fatalf("expected failure reason recorded")
	}
}

func TestBulkRunCompletesAndPersistsEverything(t *testing.T) {
	source := &sourceFake{records: []domain.StepRecord{
		hitRecord("Tap Submit", "com.example.app", "2025-10-01", 0.2),
		missRecord("Tap Submit", "com.example.app", "2025-10-02"),
		hitRecord("Enter Text", "com.other.app", "2025-10-03", 0.1),
	}}
	store := newStoreFake()
	svc := newBulkService(source, store, nil)

	job := domain.BulkAnalysisJob{
		AnalysisID:             "20251008_120000",
		GenerateIndividual:     true,
		GenerateCommandPackage: true,
	}
	summary, err := svc.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := summary.BulkAnalysisSummary
	if s.TotalStepsProcessed != 3 || s.UniqueCommandsFound != 2 || s.CommandPackageCombinations != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.IndividualCommandFilesGenerated != 2 || s.CommandPackageFilesGenerated != 2 {
		t.Fatalf("unexpected file counts: %+v", s)
	}
	if len(summary.CommandList) != 2 || summary.CommandList[0] != "Tap Submit" {
		t.Fatalf("command list must preserve first-seen order: %v", summary.CommandList)
	}
	if summary.CommandPackageCombinations[0] != "Tap Submit|com.example.app" {
		t.Fatalf("unexpected pair key: %v", summary.CommandPackageCombinations)
	}

	if len(store.commandReports["20251008_120000"]) != 2 {
		t.Fatalf("expected 2 command reports written")
	}
	if len(store.pairReports["20251008_120000"]) != 2 {
		t.Fatalf("expected 2 pair reports written")
	}
	if _, ok := store.summaries["20251008_120000"]; !ok {
		t.Fatalf("summary document not written")
	}
	if len(store.workbooks["20251008_120000"]) != 2 {
		t.Fatalf("workbook must receive every command report")
	}
	if !store.diagClosed {
		t.Fatalf("diagnostics log must be closed")
	}

	md := store.metadata["20251008_120000"]
	if md.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed metadata, got %s", md.Status)
	}
	if md.Summary == nil || md.Summary.BulkAnalysisSummary.TotalStepsProcessed != 3 {
		t.Fatalf("completion metadata must embed the summary")
	}
}

func TestBulkRunHonorsGenerationFlags(t *testing.T) {
	source := &sourceFake{records: []domain.StepRecord{
		hitRecord("Tap Submit", "com.example.app", "2025-10-01", 0.2),
	}}
	store := newStoreFake()
	svc := newBulkService(source, store, nil)

	summary, err := svc.Run(context.Background(), domain.BulkAnalysisJob{
		AnalysisID:             "20251008_120000",
		GenerateIndividual:     false,
		GenerateCommandPackage: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.BulkAnalysisSummary.IndividualCommandFilesGenerated != 0 {
		t.Fatalf("individual reports must be suppressed")
	}
	if len(store.commandReports["20251008_120000"]) != 0 {
		t.Fatalf("no command report may be written")
	}
	// The workbook still summarizes per command even when individual
	// files are suppressed.
	if len(store.workbooks["20251008_120000"]) != 1 {
		t.Fatalf("workbook must still be produced")
	}
	if len(store.pairReports["20251008_120000"]) != 1 {
		t.Fatalf("pair reports must still be written")
	}
}

func TestBulkRunPartialFailureStillFinalizes(t *testing.T) {
	source := &sourceFake{
		records: []domain.StepRecord{
			hitRecord("Tap Submit", "com.example.app", "2025-10-01", 0.2),
			missRecord("Tap Submit", "com.example.app", "2025-10-02"),
		},
		err: domain.WrapError(domain.ErrSourceUnavailable, "scan page", errors.New("throttled")),
	}
	store := newStoreFake()
	svc := newBulkService(source, store, nil)

	summary, err := svc.Run(context.Background(), domain.BulkAnalysisJob{
		AnalysisID:             "20251008_120000",
		GenerateIndividual:     true,
		GenerateCommandPackage: true,
	})
	if err == nil {
		t.Fatalf("expected scan error surfaced")
	}
	if summary == nil || summary.BulkAnalysisSummary.TotalStepsProcessed != 2 {
		t.Fatalf("expected partial summary over delivered records, got %+v", summary)
	}
	if len(store.commandReports["20251008_120000"]) != 1 {
		t.Fatalf("partial results must still be written")
	}
	if _, ok := store.summaries["20251008_120000"]; !ok {
		t.Fatalf("partial summary document must still be written")
	}

	md := store.metadata["20251008_120000"]
	if md.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed metadata, got %s", md.Status)
	}
	if md.Error == "" || md.Summary == nil {
		t.Fatalf("failure metadata must carry reason and partial summary")
	}
}

func TestBulkRunSurvivesDiagnosticLogFailure(t *testing.T) {
	source := &sourceFake{records: []domain.StepRecord{
		hitRecord("Tap Submit", "com.example.app", "2025-10-01", 0.2),
	}}
	store := newStoreFake()
	store.diagOpenErr = errors.New("permission denied")
	svc := newBulkService(source, store, nil)

	if _, err := svc.Run(context.Background(), domain.BulkAnalysisJob{
		AnalysisID:         "20251008_120000",
		GenerateIndividual: true,
	}); err != nil {
		t.Fatalf("run must tolerate a missing diagnostics log: %v", err)
	}
}

func TestBulkRunNotifiesObserver(t *testing.T) {
	source := &sourceFake{records: []domain.StepRecord{
		hitRecord("Tap Submit", "com.example.app", "2025-10-01", 0.2),
		missRecord("Tap Submit", "com.example.app", "2025-10-02"),
		missRecord("Enter Text", "com.example.app", "2025-10-03"),
	}}
	observer := newObserverFake()
	svc := newBulkService(source, newStoreFake(), nil)
	svc.SetObserver(observer)

	if _, err := svc.Run(context.Background(), domain.BulkAnalysisJob{
		AnalysisID:             "20251008_120000",
		GenerateIndividual:     true,
		GenerateCommandPackage: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if observer.misses[domain.CategoryNoCacheDocumentsFound] != 2 {
		t.Fatalf("expected 2 miss notifications, got %v", observer.misses)
	}
	if observer.written["command"] != 2 || observer.written["command_package"] != 2 {
		t.Fatalf("unexpected report notifications: %v", observer.written)
	}
}
