// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
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
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodePlanningFailed     ErrorCode = "PLANNING_FAILED"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeCleanupFailed      ErrorCode = "SESSION_CLEANUP_FAILED"

	ErrCodeBrokerUnavailable ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerRejected    ErrorCode = "BROKER_REJECTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports job variables that cannot be planned.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewPlanningFailedError wraps an unexpected failure inside the planner.
func NewPlanningFailedError(err error) *StandardError {
	return newError(ErrCodePlanningFailed, "Failed to build execution plan", err.Error(), true)
}

// NewSessionStoreFailedError reports a session store that could not be read or written.
func NewSessionStoreFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewCleanupFailedError(details string) *StandardError {
	return newError(ErrCodeCleanupFailed, "Session cleanup failed", details, true)
}

// NewBrokerUnavailableError reports a Zeebe gateway that could not be reached in time.
func NewBrokerUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeBrokerUnavailable, "Zeebe gateway unavailable",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewBrokerRejectedError(operation string, err error) *StandardError {
	return newError(ErrCodeBrokerRejected, "Zeebe rejected the command",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), false)
}

// ==========================
// 4. BPMN Mapping
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled in the process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:       "INVALID_INPUT",
	ErrCodePlanningFailed:     "PLANNING_FAILED",
	ErrCodeSessionStoreFailed: "SESSION_STORE_FAILED",
	ErrCodeCleanupFailed:      "SESSION_CLEANUP_FAILED",
	ErrCodeBrokerUnavailable:  "BROKER_UNAVAILABLE",
	ErrCodeBrokerRejected:     "BROKER_REJECTED",
}

// GetRetryCount returns how many times a job failing with code should be retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed,
		ErrCodeCleanupFailed,
		ErrCodePlanningFailed,
		ErrCodeBrokerUnavailable:
		return 3

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError into the shape thrown to Zeebe.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// GetErrorCategory groups codes for dashboards and logs.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PLANNING"):
		return "PLANNING"
	case strings.Contains(codeStr, "BROKER"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}

// AsStandardError extracts a StandardError from err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}
