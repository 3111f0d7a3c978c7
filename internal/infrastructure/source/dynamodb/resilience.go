package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stepstats/cache-analyzer/internal/infrastructure/resilience"
)

// classifyScanError marks throttling and server-side faults as
// retryable; everything else fails the scan immediately.
func classifyScanError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var throttled *types.ProvisionedThroughputExceededException
	var requestLimit *types.RequestLimitExceeded
	var serverFault *types.InternalServerError
	if errors.As(err, &throttled) || errors.As(err, &requestLimit) || errors.As(err, &serverFault) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
