// Package errors provides structured error handling for fileindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Filesystem errors
//   - 3XX: Network errors (embedding service)
//   - 4XX: Validation errors
//   - 5XX: Pipeline errors (extraction, embedding, storage)
package errors

// Category classifies an error by the subsystem that produced it.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryPipeline   Category = "PIPELINE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the process (store unavailable at startup).
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one job; the pipeline continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeAlreadyRunning = "ERR_103_ALREADY_RUNNING"

	// Filesystem errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeNotRegular     = "ERR_203_NOT_REGULAR_FILE"
	ErrCodeWatchFailed    = "ERR_204_WATCH_FAILED"
	ErrCodeStoreOpen      = "ERR_205_STORE_OPEN"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeModelNotFound      = "ERR_303_MODEL_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidPath       = "ERR_403_INVALID_PATH"

	// Pipeline errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeExtractionFailed = "ERR_502_EXTRACTION_FAILED"
	ErrCodeEmbeddingFailed  = "ERR_503_EMBEDDING_FAILED"
	ErrCodeStoreWrite       = "ERR_504_STORE_WRITE"
	ErrCodeQueueClosed      = "ERR_505_QUEUE_CLOSED"
)

// categoryFromCode reads the hundreds digit of the numeric code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryPipeline
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryPipeline
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreOpen, ErrCodeAlreadyRunning:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable:
		return true
	default:
		return false
	}
}
