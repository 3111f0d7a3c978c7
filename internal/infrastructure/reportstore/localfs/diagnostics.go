package localfs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
)

// diagnosticLog appends unclassified-record diagnostics to a per-run
// JSONL file. Recording is best effort: a write failure is logged and
// the run continues.
type diagnosticLog struct {
	file    *os.File
	encoder *json.Encoder
	logger  *slog.Logger
}

func (s *Store) OpenDiagnosticLog(runID string) (ports.DiagnosticLog, error) {
	path := filepath.Join(s.RunDir(runID), "unclassified_diagnostics.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics log: %w", err)
	}
	return &diagnosticLog{
		file:    file,
		encoder: json.NewEncoder(file),
		logger:  s.logger,
	}, nil
}

func (l *diagnosticLog) Record(d domain.Diagnostic) {
	if err := l.encoder.Encode(d); err != nil {
		l.logger.Warn("failed to record diagnostic", "step_id", d.StepID, "error", err.Error())
	}
}

func (l *diagnosticLog) Close() error {
	return l.file.Close()
}
