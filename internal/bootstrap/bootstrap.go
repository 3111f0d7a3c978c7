package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stepstats/cache-analyzer/internal/config"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
	"github.com/stepstats/cache-analyzer/internal/core/usecase"
	natsqueue "github.com/stepstats/cache-analyzer/internal/infrastructure/queue/nats"
	"github.com/stepstats/cache-analyzer/internal/infrastructure/reportstore/localfs"
	"github.com/stepstats/cache-analyzer/internal/infrastructure/resilience"
	dynamosource "github.com/stepstats/cache-analyzer/internal/infrastructure/source/dynamodb"
)

// Options selects the optional collaborators a process needs: the API
// and worker connect to NATS, the CLIs run entirely in-process.
type Options struct {
	EnableQueue  bool
	ScanObserver dynamosource.ScanObserver
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Source ports.RecordSource
	Store  ports.ReportStore
	Queue  *natsqueue.Queue

	Analyzer *usecase.CommandAnalysisService
	Bulk     *usecase.BulkAnalysisService
	Browser  *usecase.ReportBrowserService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := dynamosource.NewClient(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.DynamoDBEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init dynamodb client: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	source := dynamosource.New(client, dynamosource.Options{
		Table:               cfg.DynamoDBTable,
		StepClassifications: cfg.StepClassifications,
		PageSize:            cfg.ScanPageSize,
		PagesPerSecond:      cfg.ScanPagesPerSecond,
		Executor:            executor,
		Observer:            opts.ScanObserver,
		Logger:              logger,
	})

	store, err := localfs.New(cfg.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("init report store: %w", err)
	}

	var queue *natsqueue.Queue
	var analysisQueue ports.AnalysisQueue
	if opts.EnableQueue {
		queue, err = natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init analysis queue: %w", err)
		}
		analysisQueue = queue
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Source: source,
		Store:  store,
		Queue:  queue,

		Analyzer: usecase.NewCommandAnalysisService(source, store, cfg.SimilarityThreshold, logger),
		Bulk:     usecase.NewBulkAnalysisService(source, store, analysisQueue, cfg.SimilarityThreshold, logger),
		Browser:  usecase.NewReportBrowserService(store),

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
