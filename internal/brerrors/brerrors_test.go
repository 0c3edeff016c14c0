package brerrors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormulaNotFound(t *testing.T) {
	err := FormulaNotFound("wget")
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Contains(t, err.Error(), "wget")
	assert.NotEmpty(t, err.Suggestion())
}

func TestCaskNotFound(t *testing.T) {
	err := CaskNotFound("firefox")
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Contains(t, err.Error(), "firefox")
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: KindNetwork, Message: "request failed", Err: inner}

	assert.ErrorIs(t, err, inner)
	require.True(t, errors.Is(err.Unwrap(), inner))
}

func TestChecksumMismatch(t *testing.T) {
	err := ChecksumMismatch("wget", "abc123", "def456")
	assert.Equal(t, KindChecksumMismatch, err.Kind)
	assert.Contains(t, err.Error(), "abc123")
	assert.Contains(t, err.Error(), "def456")
}

func TestCircularDependency(t *testing.T) {
	err := CircularDependency([]string{"a", "b", "c", "a"})
	assert.Equal(t, KindCircularDependency, err.Kind)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestDependentsPresent(t *testing.T) {
	err := DependentsPresent("openssl", []string{"wget", "curl"})
	assert.Equal(t, KindDependentsPresent, err.Kind)
	assert.Contains(t, err.Error(), "wget, curl")
}

func TestPinned(t *testing.T) {
	err := Pinned("node")
	assert.Equal(t, KindPinned, err.Kind)
	assert.Contains(t, err.Suggestion(), "unpin")
}

func TestClassify_Timeout(t *testing.T) {
	wrapped := WrapNetworkError(context.DeadlineExceeded, "wget", "request failed")
	assert.Equal(t, KindTimeout, wrapped.Kind)
}

func TestClassify_Canceled(t *testing.T) {
	wrapped := WrapNetworkError(context.Canceled, "wget", "request failed")
	assert.Equal(t, KindNetwork, wrapped.Kind)
}

func TestClassify_Generic(t *testing.T) {
	wrapped := WrapNetworkError(errors.New("something else"), "wget", "request failed")
	assert.Equal(t, KindNetwork, wrapped.Kind)
}

func TestSuggestionCoversEveryKind(t *testing.T) {
	kinds := []Kind{
		KindNetwork, KindNotFound, KindJSONParse, KindChecksumMismatch,
		KindCircularDependency, KindNoBottleForPlatform, KindRelocationFailed,
		KindFilesystemConflict, KindDependentsPresent, KindPinned,
		KindRateLimit, KindTimeout, KindDNS, KindConnection, KindTLS,
	}
	for _, k := range kinds {
		e := &Error{Kind: k, Message: "x"}
		_ = e.Suggestion() // must not panic for any kind
	}
}

func TestIsRateLimitStatus(t *testing.T) {
	assert.True(t, IsRateLimitStatus(429))
	assert.False(t, IsRateLimitStatus(200))
	assert.False(t, IsRateLimitStatus(404))
}
