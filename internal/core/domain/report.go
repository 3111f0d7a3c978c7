package domain

import (
	"bytes"
	"encoding/json"
)

// Report is the immutable per-key output of a finalized bucket. The
// JSON field names and percentage formatting are a compatibility
// contract with downstream consumers; do not change them.
//
// AppPackageDistribution is only present on command-level reports; for
// command+package reports AppPackage holds the actual package instead
// of the most common one.
type Report struct {
	Command                  string          `json:"command"`
	AppPackage               string          `json:"app_package"`
	TotalStepRuns            int             `json:"total_step_runs"`
	AppPackageDistribution   map[string]int  `json:"app_package_distribution,omitempty"`
	DateRange                DateRange       `json:"date_range"`
	CacheHit                 HitStats        `json:"cache_hit"`
	CacheMiss                MissStats       `json:"cache_miss"`
	CacheHitWithoutComponent PartialHitStats `json:"cache_hit_without_component"`
	StepClassifications      map[string]int  `json:"step_classifications"`
	TestStepStatus           map[string]int  `json:"test_step_status"`
	DateDistribution         map[string]int  `json:"date_distribution"`
}

type DateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

type HitStats struct {
	Count          int      `json:"count"`
	Percentage     string   `json:"percentage"`
	AverageLatency float64  `json:"average_latency"`
	StepsList      []string `json:"steps_list"`
}

type MissStats struct {
	Count      int       `json:"count"`
	Percentage string    `json:"percentage"`
	Breakdown  Breakdown `json:"breakdown"`
}

type PartialHitStats struct {
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type CategoryStats struct {
	Count      int      `json:"count"`
	Percentage string   `json:"percentage"`
	Reason     string   `json:"reason"`
	StepsList  []string `json:"steps_list"`
}

// Breakdown maps every taxonomy category to its formatted stats. It
// serializes in cascade priority order so repeated runs over the same
// stream produce byte-identical reports.
type Breakdown map[Category]CategoryStats

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, category := range categoryOrder {
		stats, ok := b[category]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(string(category))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(stats)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	raw := make(map[Category]CategoryStats)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = raw
	return nil
}

// RunSummary is the bulk_analysis_summary.json document describing one
// completed bulk run.
type RunSummary struct {
	BulkAnalysisSummary        BulkAnalysisSummary `json:"bulk_analysis_summary"`
	CommandList                []string            `json:"command_list"`
	CommandPackageCombinations []string            `json:"command_package_combinations"`
}

type BulkAnalysisSummary struct {
	ScanTimestamp                   string  `json:"scan_timestamp"`
	CompletionTimestamp             string  `json:"completion_timestamp"`
	DurationSeconds                 float64 `json:"duration_seconds"`
	TotalStepsProcessed             int     `json:"total_steps_processed"`
	UniqueCommandsFound             int     `json:"unique_commands_found"`
	CommandPackageCombinations      int     `json:"command_package_combinations"`
	IndividualCommandFilesGenerated int     `json:"individual_command_files_generated"`
	CommandPackageFilesGenerated    int     `json:"command_package_files_generated"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunMetadata is the metadata.json document tracking one bulk run's
// lifecycle inside its analysis directory.
type RunMetadata struct {
	StartTime              string      `json:"start_time"`
	StartDate              *string     `json:"start_date"`
	EndDate                *string     `json:"end_date"`
	GenerateIndividual     bool        `json:"generate_individual"`
	GenerateCommandPackage bool        `json:"generate_command_package"`
	OutputDirectory        string      `json:"output_directory"`
	Status                 RunStatus   `json:"status,omitempty"`
	EndTime                string      `json:"end_time,omitempty"`
	Summary                *RunSummary `json:"summary,omitempty"`
	Error                  string      `json:"error,omitempty"`
}

// BulkAnalysisJob is the queue payload requesting one bulk run.
type BulkAnalysisJob struct {
	AnalysisID             string  `json:"analysis_id"`
	StartDate              *string `json:"start_date"`
	EndDate                *string `json:"end_date"`
	GenerateIndividual     bool    `json:"generate_individual"`
	GenerateCommandPackage bool    `json:"generate_command_package"`
}

// RunListing describes one analysis directory for the reports API.
type RunListing struct {
	ID        string           `json:"id"`
	Directory string           `json:"directory"`
	Status    RunStatus        `json:"status"`
	StartTime string           `json:"start_time"`
	StartDate *string          `json:"start_date,omitempty"`
	EndDate   *string          `json:"end_date,omitempty"`
	EndTime   string           `json:"end_time,omitempty"`
	Reports   []ReportFileInfo `json:"reports"`
}

type ReportFileInfo struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Modified   int64  `json:"modified"`
	Command    string `json:"command"`
	AppPackage string `json:"app_package"`
}

// ReportFile is a single stored report returned by the reports API.
type ReportFile struct {
	AnalysisID string          `json:"analysis_id"`
	Filename   string          `json:"filename"`
	Path       string          `json:"path"`
	Size       int64           `json:"size"`
	Modified   int64           `json:"modified"`
	Data       json.RawMessage `json:"data"`
}
