package usecase

import (
	"context"
	"fmt"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
)

// ReportBrowserService is the read model over stored analysis runs.
type ReportBrowserService struct {
	store ports.ReportStore
}

func NewReportBrowserService(store ports.ReportStore) *ReportBrowserService {
	return &ReportBrowserService{store: store}
}

func (s *ReportBrowserService) ListRuns(_ context.Context) ([]domain.RunListing, error) {
	listings, err := s.store.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return listings, nil
}

func (s *ReportBrowserService) GetReport(_ context.Context, relPath string) (*domain.ReportFile, error) {
	report, err := s.store.ReadReportFile(relPath)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}
