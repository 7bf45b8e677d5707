package llm

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCategory defines standardized error categories for audit trails
type ErrorCategory string

const (
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryNetwork    ErrorCategory = "network"
	ErrorCategoryModel      ErrorCategory = "model"
	ErrorCategorySystem     ErrorCategory = "system"
)

// GenerateError wraps generation errors with standardized metadata
type GenerateError struct {
	Category    ErrorCategory
	OriginalErr error
	RequestID   string
	Timestamp   time.Time
}

func (e GenerateError) Error() string {
	return fmt.Sprintf("[%s] %s (request: %s)", e.Category, e.OriginalErr.Error(), e.RequestID)
}

func (e GenerateError) Unwrap() error {
	return e.OriginalErr
}

// newGenerateError creates a new GenerateError with standard fields
func newGenerateError(category ErrorCategory, err error, requestID string) GenerateError {
	return GenerateError{
		Category:    category,
		OriginalErr: err,
		RequestID:   requestID,
		Timestamp:   time.Now(),
	}
}

// categorizeError categorizes error based on error message
func categorizeError(err error) ErrorCategory {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return ErrorCategoryTimeout
	} else if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") {
		return ErrorCategoryNetwork
	} else if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation") {
		return ErrorCategoryValidation
	}

	return ErrorCategorySystem
}
