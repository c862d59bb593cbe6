package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewEnrichmentFailedError(stderrors.New("crawl timed out"))
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, "ENRICHMENT_FAILED", bpmn.Code)
	assert.True(t, bpmn.Retryable)
	assert.Equal(t, 3, bpmn.Retries)
	assert.Equal(t, "crawl timed out", bpmn.Details)
	assert.Equal(t, "ENRICHMENT_FAILED", bpmn.ErrorVariables["originalErrorCode"])

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "ENRICHMENT_FAILED", vars["errorCode"])
	assert.Equal(t, true, vars["retryable"])
}

func TestConvertToBPMNError_NonRetryableHasNoRetries(t *testing.T) {
	bpmn := ConvertToBPMNError(NewInvalidInputError("propertyName: is required"))
	assert.Equal(t, "INVALID_INPUT", bpmn.Code)
	assert.False(t, bpmn.Retryable)
	assert.Zero(t, bpmn.Retries)
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeDatabaseUpdateFailed, 3},
		{ErrCodeOutreachSendFailed, 3},
		{ErrCodeExternalService, 3},
		{ErrCodeCircuitOpen, 2},
		{ErrCodeVerificationFailed, 2},
		{ErrCodeTimeout, 1},
		{ErrCodeInvalidInput, 0},
		{ErrCodeProspectNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("score prospect: %w", NewProspectNotFoundError("p-9"))
	got := Normalize(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeProspectNotFound, got.Code)
	assert.Equal(t, "prospectId: p-9", got.Details)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexFailed))
	assert.Equal(t, "RESOURCE_PROTECTION", GetErrorCategory(ErrCodeCircuitOpen))
	assert.Equal(t, "OUTREACH", GetErrorCategory(ErrCodeOutreachTimeout))
	assert.Equal(t, "ENRICHMENT", GetErrorCategory(ErrCodeProspectNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeTimeout))
}
