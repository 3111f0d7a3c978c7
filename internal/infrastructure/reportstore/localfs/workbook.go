package localfs

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

const summarySheet = "Summary"

var workbookHeader = []any{
	"Command",
	"Total Step Runs",
	"Cache Hits",
	"Hit %",
	"Cache Misses",
	"Miss %",
	"Top Package",
	"Top Miss Category",
}

// WriteSummaryWorkbook renders the bulk run's per-command reports as
// an XLSX workbook next to the JSON summary, one row per command.
func (s *Store) WriteSummaryWorkbook(runID string, reports []domain.Report) error {
	workbook := excelize.NewFile()
	defer workbook.Close()

	if err := workbook.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := workbook.SetSheetRow(summarySheet, "A1", &workbookHeader); err != nil {
		return fmt.Errorf("write workbook header: %w", err)
	}

	for i, report := range reports {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("workbook cell for row %d: %w", i+2, err)
		}
		row := []any{
			report.Command,
			report.TotalStepRuns,
			report.CacheHit.Count,
			report.CacheHit.Percentage,
			report.CacheMiss.Count,
			report.CacheMiss.Percentage,
			report.AppPackage,
			string(topMissCategory(report.CacheMiss.Breakdown)),
		}
		if err := workbook.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write workbook row %d: %w", i+2, err)
		}
	}

	path := filepath.Join(s.RunDir(runID), "bulk_analysis_summary.xlsx")
	if err := workbook.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// topMissCategory picks the largest breakdown entry; ties resolve to
// the earlier cascade priority.
func topMissCategory(breakdown domain.Breakdown) domain.Category {
	best := domain.CategoryUnclassified
	bestCount := -1
	for _, category := range domain.Categories() {
		if stats, ok := breakdown[category]; ok && stats.Count > bestCount {
			best = category
			bestCount = stats.Count
		}
	}
	return best
}
