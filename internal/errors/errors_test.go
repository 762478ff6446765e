package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVBError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk gone")

	// When: wrapping with VBError
	ve := New(ErrCodeArtifactWrite, "write index.index", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, ve)
	assert.Equal(t, originalErr, errors.Unwrap(ve))
	assert.True(t, errors.Is(ve, originalErr))
}

func TestVBError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigInvalid, "bad overlap", "[ERR_102_CONFIG_INVALID] bad overlap"},
		{"artifact", ErrCodeArtifactMissing, "x.meta missing", "[ERR_205_ARTIFACT_MISSING] x.meta missing"},
		{"network", ErrCodeNetworkTimeout, "timed out", "[ERR_301_NETWORK_TIMEOUT] timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeArtifactCorrupt, CategoryIO, SeverityFatal, false},
		{ErrCodeExtractUnavailable, CategoryIO, SeverityWarning, false},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidChunking, CategoryValidation, SeverityFatal, false},
		{ErrCodeBuildFailed, CategoryInternal, SeverityFatal, false},
		{ErrCodeSearchFailed, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ve := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, ve.Category)
			assert.Equal(t, tt.severity, ve.Severity)
			assert.Equal(t, tt.retryable, ve.Retryable)
		})
	}
}

func TestVBError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodeNoChunks, "first", nil)
	b := New(ErrCodeNoChunks, "second", nil)
	c := New(ErrCodeNoInputFiles, "other", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestHelpers_FindVBErrorThroughWrapping(t *testing.T) {
	// Given: a VBError wrapped with fmt.Errorf
	inner := New(ErrCodeBuildFailed, "embed failed", nil)
	wrapped := fmt.Errorf("baseline: %w", inner)

	// Then: helpers see through the wrapping
	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, ErrCodeBuildFailed, GetCode(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.Empty(t, GetCode(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeMissingAPIKey, "GOOGLE_API_KEY is not set", nil).
		WithSuggestion("export GOOGLE_API_KEY or add it to .env")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: GOOGLE_API_KEY is not set")
	assert.Contains(t, out, "Hint: export GOOGLE_API_KEY")
	assert.Contains(t, out, "Code: ERR_103_MISSING_API_KEY")
	assert.Contains(t, FormatForCLI(errors.New("boom")), "ERR_501_INTERNAL")
}

func TestLogAttrs_IncludesDetails(t *testing.T) {
	err := New(ErrCodeFileUnreadable, "cannot read", nil).WithDetail("file", "a.pdf")

	attrs := LogAttrs(err)

	assert.Contains(t, attrs, "detail_file")
	assert.Contains(t, attrs, "a.pdf")
	assert.Equal(t, []any{"error", "x"}, LogAttrs(errors.New("x")))
}

// =============================================================================
// Retry
// =============================================================================

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetryWithResult_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, NetworkError("flaky", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult_StopsOnNonRetryableVBError(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		calls++
		return 0, New(ErrCodeMissingAPIKey, "no key", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAndWrapsLastError(t *testing.T) {
	calls := 0
	last := errors.New("still down")
	err := Retry(context.Background(), fastRetry(), func() error {
		calls++
		return last
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 4, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry(), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}
