package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
)

const (
	maxCommandLength    = 500
	maxAppPackageLength = 200
)

// CommandAnalysisService runs one synchronous scan→aggregate→finalize
// pass for a single command+package pair.
type CommandAnalysisService struct {
	source    ports.RecordSource
	store     ports.ReportStore
	threshold float64
	logger    *slog.Logger
	noSave    bool
}

func NewCommandAnalysisService(
	source ports.RecordSource,
	store ports.ReportStore,
	threshold float64,
	logger *slog.Logger,
) *CommandAnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandAnalysisService{
		source:    source,
		store:     store,
		threshold: threshold,
		logger:    logger,
	}
}

// DisableSaving keeps the finalized report off disk; the caller only
// gets the in-memory result.
func (s *CommandAnalysisService) DisableSaving() {
	s.noSave = true
}

func (s *CommandAnalysisService) AnalyzeCommand(ctx context.Context, req ports.AnalyzeCommandRequest) (*domain.Report, error) {
	if err := validateAnalyzeRequest(req); err != nil {
		return nil, err
	}

	classifier := NewClassifier(s.threshold, s.logger)
	aggregator := NewAggregator(classifier, nil, s.logger)

	query := ports.ScanQuery{
		Command:    req.Command,
		AppPackage: req.AppPackage,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}
	err := s.source.Scan(ctx, query, func(rec domain.StepRecord) error {
		aggregator.Observe(rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	bucket := aggregator.PairBucket(req.Command, req.AppPackage)
	if bucket == nil {
		return nil, domain.WrapError(domain.ErrNoData, "analyze command",
			fmt.Errorf("no step records for command %q in package %q", req.Command, req.AppPackage))
	}

	report := NewFinalizer(s.logger).PairReport(req.Command, req.AppPackage, bucket)
	if !s.noSave {
		path, err := s.store.WriteSingleReport(report)
		if err != nil {
			return nil, fmt.Errorf("persist report: %w", err)
		}
		s.logger.Info("command report written",
			"command", req.Command,
			"app_package", req.AppPackage,
			"path", path,
		)
	}
	return &report, nil
}

func validateAnalyzeRequest(req ports.AnalyzeCommandRequest) error {
	if strings.TrimSpace(req.Command) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate request",
			fmt.Errorf("command is required"))
	}
	if len(req.Command) > maxCommandLength {
		return domain.WrapError(domain.ErrInvalidInput, "validate request",
			fmt.Errorf("command exceeds %d characters", maxCommandLength))
	}
	if strings.TrimSpace(req.AppPackage) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate request",
			fmt.Errorf("app package is required"))
	}
	if len(req.AppPackage) > maxAppPackageLength {
		return domain.WrapError(domain.ErrInvalidInput, "validate request",
			fmt.Errorf("app package exceeds %d characters", maxAppPackageLength))
	}
	return domain.ValidateDateRange(req.StartDate, req.EndDate)
}
