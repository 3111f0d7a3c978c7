package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stepstats/cache-analyzer/internal/bootstrap"
	"github.com/stepstats/cache-analyzer/internal/config"
	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
	"github.com/stepstats/cache-analyzer/internal/observability/logging"
)

func main() {
	startDate := flag.String("start-date", "", "inclusive start date, YYYY-MM-DD")
	endDate := flag.String("end-date", "", "inclusive end date, YYYY-MM-DD")
	outputDir := flag.String("output-dir", "", "report output directory (overrides OUTPUT_DIR)")
	individualOnly := flag.Bool("individual-only", false, "only write per-command reports")
	pairOnly := flag.Bool("command-package-only", false, "only write per command+package reports")
	pageSize := flag.Int("page-size", 0, "scan page size (overrides SCAN_PAGE_SIZE)")
	flag.Parse()

	if *individualOnly && *pairOnly {
		fmt.Fprintln(os.Stderr, "-individual-only and -command-package-only are mutually exclusive")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *pageSize > 0 {
		cfg.ScanPageSize = *pageSize
	}
	logger := logging.NewJSONLogger("bulk", cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	params := ports.BulkAnalysisParams{
		StartDate:              *startDate,
		EndDate:                *endDate,
		GenerateIndividual:     !*pairOnly,
		GenerateCommandPackage: !*individualOnly,
	}
	job, err := app.Bulk.Prepare(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare bulk analysis: %v\n", err)
		os.Exit(1)
	}

	summary, err := app.Bulk.Run(ctx, job)
	if summary != nil {
		printSummary(job, summary)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bulk analysis failed: %v\n", err)
		os.Exit(1)
	}
}

func printSummary(job domain.BulkAnalysisJob, summary *domain.RunSummary) {
	s := summary.BulkAnalysisSummary
	fmt.Printf("Analysis:              %s\n", job.AnalysisID)
	fmt.Printf("Records processed:     %d\n", s.TotalStepsProcessed)
	fmt.Printf("Unique commands:       %d\n", s.UniqueCommandsFound)
	fmt.Printf("Command+package pairs: %d\n", s.CommandPackageCombinations)
	fmt.Printf("Command reports:       %d\n", s.IndividualCommandFilesGenerated)
	fmt.Printf("Pair reports:          %d\n", s.CommandPackageFilesGenerated)
	fmt.Printf("Duration:              %.2fs\n", s.DurationSeconds)
}
