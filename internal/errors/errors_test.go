package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmanError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with AmanError
	amanErr := New(ErrCodeFileNotFound, "file not found: a.jpg", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, amanErr)
	assert.Equal(t, originalErr, errors.Unwrap(amanErr))
	assert.True(t, errors.Is(amanErr, originalErr))
}

func TestAmanError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *AmanError
		expected string
	}{
		{
			name:     "config error",
			err:      New(ErrCodeConfigNotFound, "config file not found", nil),
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "wrapped error does not repeat its message",
			err:      Wrap(ErrCodeInternal, errors.New("boom")),
			expected: "[ERR_501_INTERNAL] boom",
		},
		{
			name:     "cause is appended",
			err:      New(ErrCodeDecodeFailed, "cannot decode image", errors.New("unexpected EOF")),
			expected: "[ERR_208_DECODE_FAILED] cannot decode image: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAmanError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := DecodeError("/a.jpg", nil)
	err2 := DecodeError("/b.jpg", nil)

	// Then: they match by code, and the sentinel matches both
	assert.True(t, errors.Is(err1, err2))
	assert.True(t, errors.Is(err1, ErrDecode))
	assert.False(t, errors.Is(err1, ErrExtraction))
}

func TestAmanError_Is_MatchesThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("acquire: %w", DecodeError("/a.jpg", nil))

	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, ErrCodeDecodeFailed, GetCode(err))
	assert.Equal(t, CategoryIO, GetCategory(err))
}

func TestAmanError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil)

	err = err.WithDetail("path", "/corpus/a.jpg").WithDetail("size", "1024")

	assert.Equal(t, "/corpus/a.jpg", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestAmanError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeTraversalFailed, CategoryIO},
		{ErrCodeDecodeFailed, CategoryIO},
		{ErrCodeIndexLocked, CategoryIO},
		{ErrCodeUnknownBuilder, CategoryValidation},
		{ErrCodeDuplicateField, CategoryValidation},
		{ErrCodeExtractionFailed, CategoryInternal},
		{ErrCodeIndexFailed, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestAmanError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeTraversalFailed, SeverityFatal},
		{ErrCodeIndexFailed, SeverityFatal},
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeDecodeFailed, SeverityError},
		{ErrCodeExtractionFailed, SeverityError},
		{ErrCodeBuildFailed, SeverityError},
		{ErrCodeIndexLocked, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestConstructors_AttachContext(t *testing.T) {
	cause := errors.New("cause")

	assert.Equal(t, "/root", TraversalError("/root", cause).Details["root"])
	assert.Equal(t, "/a.jpg", DecodeError("/a.jpg", cause).Details["path"])
	assert.Equal(t, "descriptor.cedd", ExtractionError("descriptor.cedd", cause).Details["descriptor"])
	assert.Equal(t, "/a.jpg", BuildError("/a.jpg", cause).Details["identifier"])
	assert.Equal(t, "finalize", IndexError("finalize", cause).Details["op"])
	assert.Equal(t, CategoryConfig, ConfigError("bad yaml", nil).Category)
	assert.Equal(t, CategoryValidation, ValidationError("bad input", nil).Category)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"locked index", New(ErrCodeIndexLocked, "locked", nil), true},
		{"wrapped locked index", fmt.Errorf("open: %w", New(ErrCodeIndexLocked, "locked", nil)), true},
		{"decode failure", DecodeError("/a.jpg", nil), false},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"traversal", TraversalError("/missing", nil), true},
		{"index finalize", IndexError("finalize", nil), true},
		{"decode", DecodeError("/a.jpg", nil), false},
		{"extraction", ExtractionError("descriptor.gabor", nil), false},
		{"standard error", errors.New("standard error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}
