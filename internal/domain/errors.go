package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTooLarge         = "PAYLOAD_TOO_LARGE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrUnsupportedMediaType = NewDomainError(ErrCodeValidation, "unsupported media type")
	ErrInvalidAnswerType    = NewDomainError(ErrCodeValidation, "invalid answer type")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidForceService  = NewDomainError(ErrCodeValidation, "force_service must be retrieval or table")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrQuestionNotFound      = NewDomainError(ErrCodeNotFound, "question not found")
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
	ErrConversationNotFound  = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrMessageNotFound       = NewDomainError(ErrCodeNotFound, "message not found")
	ErrJobNotFound           = NewDomainError(ErrCodeNotFound, "job not found")
)

// Operation errors
var (
	ErrDocumentNotFailed  = NewDomainError(ErrCodeInvalidOperation, "only failed documents can be re-submitted")
	ErrDocumentTooLarge   = NewDomainError(ErrCodeTooLarge, "document exceeds the maximum allowed size")
	ErrUnsafeTableQuery   = NewDomainError(ErrCodeInvalidOperation, "generated table query is not in the read-only subset")
	ErrNoTablesAvailable  = NewDomainError(ErrCodeInvalidOperation, "no ingested tables available for this knowledge base")
	ErrGenerationFailed   = NewDomainError(ErrCodeInternalError, "answer generation failed")
	ErrIngestionConflict  = NewDomainError(ErrCodeInvalidOperation, "document is already being processed")
)
