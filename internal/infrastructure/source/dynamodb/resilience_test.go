package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker/v2"
)

func TestClassifyScanError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"nil", nil, false, false},
		{"context canceled", context.Canceled, false, false},
		{"deadline exceeded", context.DeadlineExceeded, false, false},
		{"circuit open", gobreaker.ErrOpenState, true, true},
		{"throttled", &types.ProvisionedThroughputExceededException{}, true, true},
		{"request limit", &types.RequestLimitExceeded{}, true, true},
		{"server fault", &types.InternalServerError{}, true, true},
		{"validation error", errors.New("ValidationException"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyScanError(tc.err)
			if class.Retryable != tc.retryable {
				t.Fatalf("retryable = %v, want %v", class.Retryable, tc.retryable)
			}
			if class.RecordFailure != tc.recordFailure {
				t.Fatalf("recordFailure = %v, want %v", class.RecordFailure, tc.recordFailure)
			}
		})
	}
}

func TestClassifyScanErrorWrapped(t *testing.T) {
	err := errors.Join(errors.New("scan page 3"), &types.ProvisionedThroughputExceededException{})
	class := classifyScanError(err)
	if !class.Retryable {
		t.Fatalf("wrapped throttling error must stay retryable")
	}
}
