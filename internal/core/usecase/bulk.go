package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
)

// RunObserver receives live progress signals from a bulk run. All
// methods are optional side channels; a nil observer disables them.
type RunObserver interface {
	MissClassified(category domain.Category)
	ReportWritten(kind string)
}

// BulkAnalysisService prepares, schedules, and executes bulk analysis
// runs: a full table scan folded into both key-spaces, finalized into
// one report per command and per command+package pair.
type BulkAnalysisService struct {
	source   ports.RecordSource
	store    ports.ReportStore
	queue    ports.AnalysisQueue
	logger   *slog.Logger
	observer RunObserver

	threshold float64
	now       func() time.Time
	newRunID  func() string
}

// NewBulkAnalysisService wires the bulk pipeline. queue may be nil for
// in-process runs (the CLI); Schedule then refuses to enqueue.
func NewBulkAnalysisService(
	source ports.RecordSource,
	store ports.ReportStore,
	queue ports.AnalysisQueue,
	threshold float64,
	logger *slog.Logger,
) *BulkAnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkAnalysisService{
		source:    source,
		store:     store,
		queue:     queue,
		logger:    logger,
		threshold: threshold,
		now:       time.Now,
		newRunID: func() string {
			return time.Now().In(domain.ReportingZone).Format("20060102_150405")
		},
	}
}

// SetObserver attaches run progress instrumentation.
func (s *BulkAnalysisService) SetObserver(observer RunObserver) {
	s.observer = observer
}

// Prepare creates the run directory and its initial metadata, and
// returns the job describing the run. No records are scanned yet.
func (s *BulkAnalysisService) Prepare(_ context.Context, params ports.BulkAnalysisParams) (domain.BulkAnalysisJob, error) {
	if err := domain.ValidateDateRange(params.StartDate, params.EndDate); err != nil {
		return domain.BulkAnalysisJob{}, err
	}

	id := s.newRunID()
	dir, err := s.store.CreateRun(id)
	if err != nil {
		return domain.BulkAnalysisJob{}, fmt.Errorf("create run: %w", err)
	}

	job := domain.BulkAnalysisJob{
		AnalysisID:             id,
		StartDate:              optionalString(params.StartDate),
		EndDate:                optionalString(params.EndDate),
		GenerateIndividual:     params.GenerateIndividual,
		GenerateCommandPackage: params.GenerateCommandPackage,
	}
	metadata := domain.RunMetadata{
		StartTime:              s.timestamp(),
		StartDate:              job.StartDate,
		EndDate:                job.EndDate,
		GenerateIndividual:     job.GenerateIndividual,
		GenerateCommandPackage: job.GenerateCommandPackage,
		OutputDirectory:        dir,
		Status:                 domain.RunStatusRunning,
	}
	if err := s.store.WriteMetadata(id, metadata); err != nil {
		return domain.BulkAnalysisJob{}, fmt.Errorf("write run metadata: %w", err)
	}
	return job, nil
}

// Schedule prepares a run and hands it to the worker pool.
func (s *BulkAnalysisService) Schedule(ctx context.Context, params ports.BulkAnalysisParams) (domain.BulkAnalysisJob, error) {
	if s.queue == nil {
		return domain.BulkAnalysisJob{}, fmt.Errorf("no analysis queue configured")
	}
	job, err := s.Prepare(ctx, params)
	if err != nil {
		return domain.BulkAnalysisJob{}, err
	}
	if err := s.queue.PublishBulkAnalysis(ctx, job); err != nil {
		s.failRun(job, nil, s.timestamp(), fmt.Sprintf("enqueue failed: %v", err))
		return domain.BulkAnalysisJob{}, fmt.Errorf("enqueue bulk analysis: %w", err)
	}
	return job, nil
}

// Run executes one prepared job to completion. A mid-stream source
// failure still finalizes and persists everything aggregated so far;
// the error is returned alongside the partial summary.
func (s *BulkAnalysisService) Run(ctx context.Context, job domain.BulkAnalysisJob) (*domain.RunSummary, error) {
	start := s.now()
	scanTimestamp := s.timestamp()

	var diagnostics ports.DiagnosticLog
	if log, err := s.store.OpenDiagnosticLog(job.AnalysisID); err != nil {
		s.logger.Warn("diagnostics log unavailable, diagnostics will be dropped",
			"analysis_id", job.AnalysisID,
			"error", err.Error(),
		)
	} else {
		diagnostics = log
		defer func() {
			if err := diagnostics.Close(); err != nil {
				s.logger.Warn("close diagnostics log", "error", err.Error())
			}
		}()
	}

	classifier := NewClassifier(s.threshold, s.logger)
	aggregator := NewAggregator(classifier, diagnostics, s.logger)
	if s.observer != nil {
		aggregator.OnMissClassified(s.observer.MissClassified)
	}

	query := ports.ScanQuery{
		StartDate: valueOr(job.StartDate),
		EndDate:   valueOr(job.EndDate),
	}
	scanErr := s.source.Scan(ctx, query, func(rec domain.StepRecord) error {
		aggregator.Observe(rec)
		return nil
	})
	if scanErr != nil {
		s.logger.Error("scan failed, finalizing partial results",
			"analysis_id", job.AnalysisID,
			"records_processed", aggregator.TotalRecords(),
			"error", scanErr.Error(),
		)
	}

	finalizer := NewFinalizer(s.logger)

	commands := aggregator.Commands()
	commandReports := make([]domain.Report, 0, len(commands))
	commandFiles := 0
	for _, command := range commands {
		report := finalizer.CommandReport(command, aggregator.CommandBucket(command))
		commandReports = append(commandReports, report)
		if !job.GenerateIndividual {
			continue
		}
		if _, err := s.store.WriteCommandReport(job.AnalysisID, report); err != nil {
			s.logger.Error("write command report", "command", command, "error", err.Error())
			continue
		}
		commandFiles++
		if s.observer != nil {
			s.observer.ReportWritten("command")
		}
	}

	pairs := aggregator.Pairs()
	pairFiles := 0
	pairKeys := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		command, appPackage := pair[0], pair[1]
		pairKeys = append(pairKeys, command+"|"+appPackage)
		if !job.GenerateCommandPackage {
			continue
		}
		report := finalizer.PairReport(command, appPackage, aggregator.PairBucket(command, appPackage))
		if _, err := s.store.WritePairReport(job.AnalysisID, report); err != nil {
			s.logger.Error("write pair report",
				"command", command,
				"app_package", appPackage,
				"error", err.Error(),
			)
			continue
		}
		pairFiles++
		if s.observer != nil {
			s.observer.ReportWritten("command_package")
		}
	}

	summary := &domain.RunSummary{
		BulkAnalysisSummary: domain.BulkAnalysisSummary{
			ScanTimestamp:                   scanTimestamp,
			CompletionTimestamp:             s.timestamp(),
			DurationSeconds:                 s.now().Sub(start).Seconds(),
			TotalStepsProcessed:             aggregator.TotalRecords(),
			UniqueCommandsFound:             len(commands),
			CommandPackageCombinations:      len(pairs),
			IndividualCommandFilesGenerated: commandFiles,
			CommandPackageFilesGenerated:    pairFiles,
		},
		CommandList:                commands,
		CommandPackageCombinations: pairKeys,
	}

	if err := s.store.WriteSummary(job.AnalysisID, *summary); err != nil {
		s.logger.Error("write run summary", "analysis_id", job.AnalysisID, "error", err.Error())
	}
	if err := s.store.WriteSummaryWorkbook(job.AnalysisID, commandReports); err != nil {
		s.logger.Error("write summary workbook", "analysis_id", job.AnalysisID, "error", err.Error())
	}

	if scanErr != nil {
		s.failRun(job, summary, scanTimestamp, scanErr.Error())
		return summary, fmt.Errorf("bulk analysis %s: %w", job.AnalysisID, scanErr)
	}

	metadata := s.runMetadata(job, domain.RunStatusCompleted, scanTimestamp)
	metadata.Summary = summary
	if err := s.store.WriteMetadata(job.AnalysisID, metadata); err != nil {
		return summary, fmt.Errorf("write completion metadata: %w", err)
	}
	s.logger.Info("bulk analysis completed",
		"analysis_id", job.AnalysisID,
		"records", summary.BulkAnalysisSummary.TotalStepsProcessed,
		"commands", summary.BulkAnalysisSummary.UniqueCommandsFound,
		"duration_seconds", summary.BulkAnalysisSummary.DurationSeconds,
	)
	return summary, nil
}

func (s *BulkAnalysisService) failRun(job domain.BulkAnalysisJob, summary *domain.RunSummary, startTime, reason string) {
	metadata := s.runMetadata(job, domain.RunStatusFailed, startTime)
	metadata.Summary = summary
	metadata.Error = reason
	if err := s.store.WriteMetadata(job.AnalysisID, metadata); err != nil {
		s.logger.Error("write failure metadata", "analysis_id", job.AnalysisID, "error", err.Error())
	}
}

func (s *BulkAnalysisService) runMetadata(job domain.BulkAnalysisJob, status domain.RunStatus, startTime string) domain.RunMetadata {
	return domain.RunMetadata{
		StartTime:              startTime,
		StartDate:              job.StartDate,
		EndDate:                job.EndDate,
		GenerateIndividual:     job.GenerateIndividual,
		GenerateCommandPackage: job.GenerateCommandPackage,
		OutputDirectory:        s.store.RunDir(job.AnalysisID),
		Status:                 status,
		EndTime:                s.timestamp(),
	}
}

func (s *BulkAnalysisService) timestamp() string {
	return s.now().In(domain.ReportingZone).Format(time.RFC3339)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func valueOr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
