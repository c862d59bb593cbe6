// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeProspectNotFound ErrorCode = "PROSPECT_NOT_FOUND"

	ErrCodeEnrichmentFailed ErrorCode = "ENRICHMENT_FAILED"
	ErrCodeCircuitOpen      ErrorCode = "CIRCUIT_OPEN"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseUpdateFailed     ErrorCode = "DATABASE_UPDATE_FAILED"

	ErrCodeIndexFailed ErrorCode = "INDEX_FAILED"

	ErrCodeVerificationFailed ErrorCode = "EMAIL_VERIFICATION_FAILED"

	ErrCodeOutreachGenerationFailed ErrorCode = "OUTREACH_GENERATION_FAILED"
	ErrCodeOutreachTimeout          ErrorCode = "OUTREACH_TIMEOUT"
	ErrCodeOutreachSendFailed       ErrorCode = "OUTREACH_SEND_FAILED"

	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Job variables failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewProspectNotFoundError(prospectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProspectNotFound,
		Message:   "Prospect not found",
		Details:   fmt.Sprintf("prospectId: %s", prospectID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEnrichmentFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnrichmentFailed,
		Message:   "Prospect enrichment failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCircuitOpenError(service string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   "Circuit open for external service",
		Details:   fmt.Sprintf("service: %s", service),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseUpdateFailed,
		Message:   "Database update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIndexFailedError(indexName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexFailed,
		Message:   "Search index write failed",
		Details:   fmt.Sprintf("index: %s, error: %s", indexName, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewVerificationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerificationFailed,
		Message:   "Email verification failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewOutreachGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachGenerationFailed,
		Message:   "Outreach email generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewOutreachTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachTimeout,
		Message:   "Outreach generation timeout",
		Details:   "LLM call exceeded timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewOutreachSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutreachSendFailed,
		Message:   "Outreach email delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRateLimitedError(service string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "External service rate limit reached",
		Details:   fmt.Sprintf("service: %s", service),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Call to '%s' timed out", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeProspectNotFound:         "PROSPECT_NOT_FOUND",
	ErrCodeEnrichmentFailed:         "ENRICHMENT_FAILED",
	ErrCodeCircuitOpen:              "CIRCUIT_OPEN",
	ErrCodeRateLimited:              "RATE_LIMITED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeDatabaseUpdateFailed:     "DATABASE_UPDATE_FAILED",
	ErrCodeIndexFailed:              "INDEX_FAILED",
	ErrCodeVerificationFailed:       "EMAIL_VERIFICATION_FAILED",
	ErrCodeOutreachGenerationFailed: "OUTREACH_GENERATION_FAILED",
	ErrCodeOutreachTimeout:          "OUTREACH_TIMEOUT",
	ErrCodeOutreachSendFailed:       "OUTREACH_SEND_FAILED",
	ErrCodeTimeout:                  "TIMEOUT",
	ErrCodeExternalService:          "EXTERNAL_SERVICE_ERROR",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseUpdateFailed,
		ErrCodeEnrichmentFailed,
		ErrCodeOutreachGenerationFailed,
		ErrCodeOutreachSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeCircuitOpen,
		ErrCodeRateLimited,
		ErrCodeIndexFailed,
		ErrCodeVerificationFailed:
		return 2

	case ErrCodeOutreachTimeout,
		ErrCodeTimeout:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "CIRCUIT") || strings.Contains(codeStr, "RATE"):
		return "RESOURCE_PROTECTION"
	case strings.Contains(codeStr, "OUTREACH"):
		return "OUTREACH"
	case strings.Contains(codeStr, "ENRICHMENT") || strings.Contains(codeStr, "VERIFICATION") || strings.Contains(codeStr, "PROSPECT"):
		return "ENRICHMENT"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
