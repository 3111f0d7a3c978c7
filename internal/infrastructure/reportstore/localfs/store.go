package localfs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
)

// Store persists analysis output as flat JSON documents under one root
// directory. Bulk runs each get their own analysis_<timestamp>
// directory holding metadata, per-key reports, the run summary, and
// the diagnostics log.
type Store struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		root = "./cache_reports"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create report root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the configured output directory.
func (s *Store) Root() string {
	return s.root
}

// NewRunID derives a run identifier from the current reporting-zone
// time; the identifier doubles as the file timestamp suffix.
func NewRunID() string {
	return time.Now().In(domain.ReportingZone).Format("20060102_150405")
}

func (s *Store) CreateRun(id string) (string, error) {
	dir := s.RunDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

func (s *Store) RunDir(id string) string {
	return filepath.Join(s.root, "analysis_"+id)
}

func (s *Store) WriteMetadata(runID string, md domain.RunMetadata) error {
	return writeJSONFile(filepath.Join(s.RunDir(runID), "metadata.json"), md)
}

func (s *Store) WriteCommandReport(runID string, report domain.Report) (string, error) {
	filename := fmt.Sprintf("command_stats_%s_%s.json", sanitizeFilename(report.Command), runID)
	path := filepath.Join(s.RunDir(runID), filename)
	if err := writeJSONFile(path, report); err != nil {
		return "", err
	}
	return filename, nil
}

func (s *Store) WritePairReport(runID string, report domain.Report) (string, error) {
	filename := fmt.Sprintf("command_package_stats_%s_%s_%s.json",
		sanitizeFilename(report.AppPackage), sanitizeFilename(report.Command), runID)
	path := filepath.Join(s.RunDir(runID), filename)
	if err := writeJSONFile(path, report); err != nil {
		return "", err
	}
	return filename, nil
}

// WriteSingleReport stores one ad-hoc command+package report at the
// output root, outside any bulk run directory.
func (s *Store) WriteSingleReport(report domain.Report) (string, error) {
	filename := fmt.Sprintf("command_package_stats_%s_%s_%s.json",
		sanitizeFilename(report.AppPackage), sanitizeFilename(report.Command), NewRunID())
	path := filepath.Join(s.root, filename)
	if err := writeJSONFile(path, report); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) WriteSummary(runID string, summary domain.RunSummary) error {
	return writeJSONFile(filepath.Join(s.RunDir(runID), "bulk_analysis_summary.json"), summary)
}

// ListRuns enumerates analysis directories newest first, each with its
// metadata and contained report files.
func (s *Store) ListRuns() ([]domain.RunListing, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read report root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "analysis_") {
			names = append(names, entry.Name())
		}
	}
	// Directory names embed the start timestamp, so reverse
	// lexicographic order is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	listings := make([]domain.RunListing, 0, len(names))
	for _, name := range names {
		listing := domain.RunListing{
			ID:        strings.TrimPrefix(name, "analysis_"),
			Directory: name,
			Reports:   []domain.ReportFileInfo{},
		}

		var md domain.RunMetadata
		if raw, err := os.ReadFile(filepath.Join(s.root, name, "metadata.json")); err == nil {
			if err := json.Unmarshal(raw, &md); err == nil {
				listing.Status = md.Status
				listing.StartTime = md.StartTime
				listing.StartDate = md.StartDate
				listing.EndDate = md.EndDate
				listing.EndTime = md.EndTime
			}
		}

		reports, err := s.listReports(name)
		if err != nil {
			s.logger.Warn("skipping unreadable run directory", "directory", name, "error", err.Error())
			continue
		}
		listing.Reports = reports
		listings = append(listings, listing)
	}
	return listings, nil
}

func (s *Store) listReports(runDirName string) ([]domain.ReportFileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, runDirName))
	if err != nil {
		return nil, fmt.Errorf("read run dir: %w", err)
	}

	reports := make([]domain.ReportFileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if name == "metadata.json" || name == "bulk_analysis_summary.json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		report := domain.ReportFileInfo{
			Filename: name,
			Path:     runDirName + "/" + name,
			Size:     info.Size(),
			Modified: info.ModTime().Unix(),
		}
		var keys struct {
			Command    string `json:"command"`
			AppPackage string `json:"app_package"`
		}
		if raw, err := os.ReadFile(filepath.Join(s.root, runDirName, name)); err == nil {
			if err := json.Unmarshal(raw, &keys); err == nil {
				report.Command = keys.Command
				report.AppPackage = keys.AppPackage
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// ReadReportFile loads one stored report by its run-relative path. The
// path must stay inside the output root and name a JSON document.
func (s *Store) ReadReportFile(relPath string) (*domain.ReportFile, error) {
	cleaned := filepath.ToSlash(filepath.Clean(relPath))
	if cleaned == "" || strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "..") || strings.Contains(cleaned, "../") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read report",
			fmt.Errorf("path %q escapes the report root", relPath))
	}
	if !strings.HasSuffix(cleaned, ".json") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read report",
			fmt.Errorf("path %q is not a json document", relPath))
	}

	fullPath := filepath.Join(s.root, filepath.FromSlash(cleaned))
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNoData, "read report", err)
	}
	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNoData, "read report", err)
	}

	analysisID := ""
	if dir, _, found := strings.Cut(cleaned, "/"); found {
		analysisID = strings.TrimPrefix(dir, "analysis_")
	}
	return &domain.ReportFile{
		AnalysisID: analysisID,
		Filename:   filepath.Base(fullPath),
		Path:       cleaned,
		Size:       info.Size(),
		Modified:   info.ModTime().Unix(),
		Data:       json.RawMessage(raw),
	}, nil
}

func writeJSONFile(path string, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
