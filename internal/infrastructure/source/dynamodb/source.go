package dynamodb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/time/rate"

	"github.com/stepstats/cache-analyzer/internal/core/domain"
	"github.com/stepstats/cache-analyzer/internal/core/ports"
	"github.com/stepstats/cache-analyzer/internal/infrastructure/resilience"
)

const (
	maxCommandLength    = 500
	maxAppPackageLength = 200

	progressLogEveryPages = 5
)

// ScanAPI is the slice of the DynamoDB client the source needs.
type ScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ScanObserver is notified after each fetched page.
type ScanObserver interface {
	PageScanned(records int)
}

// Source streams step records out of the DynamoDB table as a
// pull-based scan: records are delivered one at a time, in page order,
// and every record from an already fetched page is delivered before a
// later page failure is reported.
type Source struct {
	client          ScanAPI
	table           string
	classifications []string
	pageSize        int32
	limiter         *rate.Limiter
	executor        *resilience.Executor
	observer        ScanObserver
	logger          *slog.Logger
}

type Options struct {
	Table               string
	StepClassifications []string
	PageSize            int
	PagesPerSecond      float64
	Executor            *resilience.Executor
	Observer            ScanObserver
	Logger              *slog.Logger
}

func New(client ScanAPI, opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	pagesPerSecond := opts.PagesPerSecond
	if pagesPerSecond <= 0 {
		pagesPerSecond = 4
	}
	return &Source{
		client:          client,
		table:           opts.Table,
		classifications: opts.StepClassifications,
		pageSize:        int32(pageSize),
		limiter:         rate.NewLimiter(rate.Limit(pagesPerSecond), 1),
		executor:        opts.Executor,
		observer:        opts.Observer,
		logger:          logger,
	}
}

// NewClient builds the DynamoDB client. Static credentials are used
// when provided; otherwise the default AWS credential chain applies. A
// non-empty endpoint points the client at a local DynamoDB.
func NewClient(ctx context.Context, region, accessKeyID, secretAccessKey, endpoint string) (*dynamodb.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKeyID != "" && secretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}

// Scan implements ports.RecordSource over a paginated table scan.
func (s *Source) Scan(ctx context.Context, query ports.ScanQuery, fn func(domain.StepRecord) error) error {
	if err := validateQuery(query); err != nil {
		return err
	}
	expression, names, values, err := s.buildFilter(query)
	if err != nil {
		return err
	}

	var startKey map[string]types.AttributeValue
	pages := 0
	records := 0
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return domain.WrapError(domain.ErrSourceUnavailable, "scan table", err)
		}

		input := &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			FilterExpression:          aws.String(expression),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			Limit:                     aws.Int32(s.pageSize),
		}
		if len(startKey) > 0 {
			input.ExclusiveStartKey = startKey
		}

		var out *dynamodb.ScanOutput
		call := func(callCtx context.Context) error {
			var callErr error
			out, callErr = s.client.Scan(callCtx, input)
			return callErr
		}
		if s.executor != nil {
			err = s.executor.Execute(ctx, "dynamodb.scan", call, classifyScanError)
		} else {
			err = call(ctx)
		}
		if err != nil {
			return domain.WrapError(domain.ErrSourceUnavailable, "scan table", err)
		}

		pages++
		records += len(out.Items)
		if s.observer != nil {
			s.observer.PageScanned(len(out.Items))
		}
		for _, item := range out.Items {
			if err := fn(decodeRecord(item)); err != nil {
				return err
			}
		}

		if pages%progressLogEveryPages == 0 {
			s.logger.Info("scan_progress", "table", s.table, "pages", pages, "records", records)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	s.logger.Info("scan_complete", "table", s.table, "pages", pages, "records", records)
	return nil
}

func validateQuery(query ports.ScanQuery) error {
	if len(query.Command) > maxCommandLength {
		return domain.WrapError(domain.ErrInvalidInput, "validate scan query",
			fmt.Errorf("command exceeds %d characters", maxCommandLength))
	}
	if len(query.AppPackage) > maxAppPackageLength {
		return domain.WrapError(domain.ErrInvalidInput, "validate scan query",
			fmt.Errorf("app package exceeds %d characters", maxAppPackageLength))
	}
	return domain.ValidateDateRange(query.StartDate, query.EndDate)
}

// buildFilter assembles the scan filter expression. Attribute names go
// through placeholders so reserved words in the table schema never
// break the expression.
func (s *Source) buildFilter(query ports.ScanQuery) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{
		"#sc": "step_classification",
	}
	values := make(map[string]types.AttributeValue)

	placeholders := make([]string, 0, len(s.classifications))
	for i, classification := range s.classifications {
		key := fmt.Sprintf(":c%d", i)
		placeholders = append(placeholders, key)
		values[key] = &types.AttributeValueMemberS{Value: classification}
	}
	clauses := []string{fmt.Sprintf("#sc IN (%s)", strings.Join(placeholders, ", "))}

	if query.Command != "" {
		names["#cmd"] = "command"
		values[":command"] = &types.AttributeValueMemberS{Value: query.Command}
		clauses = append(clauses, "#cmd = :command")
	}
	if query.AppPackage != "" {
		names["#pkg"] = "app_package"
		values[":app_package"] = &types.AttributeValueMemberS{Value: query.AppPackage}
		clauses = append(clauses, "#pkg = :app_package")
	}
	if query.StartDate != "" || query.EndDate != "" {
		start, end, err := utcBounds(query.StartDate, query.EndDate)
		if err != nil {
			return "", nil, nil, err
		}
		names["#created"] = "created_at"
		values[":start_date"] = &types.AttributeValueMemberS{Value: start}
		values[":end_date"] = &types.AttributeValueMemberS{Value: end}
		clauses = append(clauses, "#created BETWEEN :start_date AND :end_date")
	}

	return strings.Join(clauses, " AND "), names, values, nil
}

// utcBounds widens the reporting-timezone date range to full days and
// converts both ends to the table's native UTC timestamp encoding. An
// open end defaults to the far past or the current moment.
func utcBounds(startDate, endDate string) (string, string, error) {
	const timestampLayout = "2006-01-02T15:04:05.000000"

	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	if startDate != "" {
		day, err := domain.ParseReportDate(startDate)
		if err != nil {
			return "", "", domain.WrapError(domain.ErrInvalidInput, "build scan filter", err)
		}
		start = day
	}

	end := time.Now().In(domain.ReportingZone)
	if endDate != "" {
		day, err := domain.ParseReportDate(endDate)
		if err != nil {
			return "", "", domain.WrapError(domain.ErrInvalidInput, "build scan filter", err)
		}
		end = day.Add(24*time.Hour - time.Microsecond)
	}

	return start.UTC().Format(timestampLayout), end.UTC().Format(timestampLayout), nil
}
