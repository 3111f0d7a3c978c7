package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/stepstats/cache-analyzer/internal/bootstrap"
	"github.com/stepstats/cache-analyzer/internal/config"
	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
	"github.com/stepstats/cache-analyzer/internal/observability/logging"
)

func main() {
	command := flag.String("command", "", "command to analyze (required)")
	appPackage := flag.String("package", "", "app package to analyze (required)")
	startDate := flag.String("start-date", "", "inclusive start date, YYYY-MM-DD")
	endDate := flag.String("end-date", "", "inclusive end date, YYYY-MM-DD")
	output := flag.String("output", "", "report output directory (overrides OUTPUT_DIR)")
	noSave := flag.Bool("no-save", false, "print the report without writing it to disk")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *command == "" || *appPackage == "" {
		fmt.Fprintln(os.Stderr, "both -command and -package are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.OutputDir = *output
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	logger := logging.NewJSONLogger("analyze", cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := domain.ValidateDateRange(*startDate, *endDate); err != nil {
		fmt.Fprintf(os.Stderr, "invalid date range: %v\n", err)
		os.Exit(2)
	}
	if span := domain.DateRangeSpan(*startDate, *endDate); span > 365 {
		fmt.Fprintf(os.Stderr, "warning: date range spans %d days, the scan may be slow\n", span)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	if *noSave {
		app.Analyzer.DisableSaving()
	}

	report, err := app.Analyzer.AnalyzeCommand(ctx, ports.AnalyzeCommandRequest{
		Command:    *command,
		AppPackage: *appPackage,
		StartDate:  *startDate,
		EndDate:    *endDate,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrNoData) {
			fmt.Fprintf(os.Stderr, "no step records found for command %q in package %q\n", *command, *appPackage)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	printReport(report)
}

func printReport(report *domain.Report) {
	fmt.Printf("Command:        %s\n", report.Command)
	fmt.Printf("App package:    %s\n", report.AppPackage)
	fmt.Printf("Total runs:     %d\n", report.TotalStepRuns)
	fmt.Printf("Cache hits:     %d (%s), average latency %.6fs\n",
		report.CacheHit.Count, report.CacheHit.Percentage, report.CacheHit.AverageLatency)
	fmt.Printf("Cache misses:   %d (%s)\n", report.CacheMiss.Count, report.CacheMiss.Percentage)
	fmt.Printf("Hits w/o component: %d (%s)\n",
		report.CacheHitWithoutComponent.Count, report.CacheHitWithoutComponent.Percentage)
	if report.DateRange.Start != nil && report.DateRange.End != nil {
		fmt.Printf("Date range:     %s .. %s\n", *report.DateRange.Start, *report.DateRange.End)
	}

	type row struct {
		category domain.Category
		stats    domain.CategoryStats
	}
	rows := make([]row, 0, len(report.CacheMiss.Breakdown))
	for _, category := range domain.Categories() {
		if stats, ok := report.CacheMiss.Breakdown[category]; ok && stats.Count > 0 {
			rows = append(rows, row{category: category, stats: stats})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].stats.Count > rows[j].stats.Count
	})

	if len(rows) > 0 {
		fmt.Println("Miss breakdown:")
		for _, r := range rows {
			fmt.Printf("  %-30s %6d  %8s  %s\n", r.category, r.stats.Count, r.stats.Percentage, r.stats.Reason)
		}
	}
}
