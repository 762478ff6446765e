// Package errors provides structured error handling for vecbench.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (input files, artifacts)
//   - 3XX: Network errors (embedding and LLM providers)
//   - 4XX: Validation errors
//   - 5XX: Internal errors (index build, search, harness)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and artifact I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates provider connectivity errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates build and search pipeline errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeMissingAPIKey  = "ERR_103_MISSING_API_KEY"

	// IO errors (200-299)
	ErrCodeFileNotFound       = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileUnreadable     = "ERR_202_FILE_UNREADABLE"
	ErrCodeNoInputFiles       = "ERR_203_NO_INPUT_FILES"
	ErrCodeNoChunks           = "ERR_204_NO_CHUNKS"
	ErrCodeArtifactMissing    = "ERR_205_ARTIFACT_MISSING"
	ErrCodeArtifactCorrupt    = "ERR_206_ARTIFACT_CORRUPT"
	ErrCodeArtifactWrite      = "ERR_207_ARTIFACT_WRITE"
	ErrCodeExtractUnavailable = "ERR_208_EXTRACT_UNAVAILABLE"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeProviderResponse   = "ERR_303_PROVIDER_RESPONSE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidChunking   = "ERR_403_INVALID_CHUNKING"
	ErrCodeUnknownProvider   = "ERR_404_UNKNOWN_PROVIDER"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed     = "ERR_504_INDEX_FAILED"
	ErrCodeBuildFailed     = "ERR_505_BUILD_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
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
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Anything that leaves the baseline index untrustworthy is fatal.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeArtifactMissing, ErrCodeArtifactCorrupt, ErrCodeBuildFailed,
		ErrCodeEmbeddingFailed, ErrCodeIndexFailed, ErrCodeNoInputFiles, ErrCodeNoChunks,
		ErrCodeInvalidChunking:
		return SeverityFatal
	case ErrCodeExtractUnavailable:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable:
		return true
	default:
		return false
	}
}
