package errmsg

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/bru-dev/bru/internal/brerrors"
)

func TestFormat_NilError(t *testing.T) {
	result := Format(nil, nil)
	if result != "" {
		t.Errorf("expected empty string for nil error, got %q", result)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := errors.New("something went wrong")
	result := Format(err, nil)
	if result != "something went wrong" {
		t.Errorf("expected original error message, got %q", result)
	}
}

func TestFormat_NotFound(t *testing.T) {
	err := brerrors.FormulaNotFound("wgt")
	ctx := &ErrorContext{Subject: "wgt"}
	result := Format(err, ctx)

	checks := []string{
		"no formula named wgt",
		"Possible causes:",
		"Suggestions:",
		"bru search wgt",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_ChecksumMismatch(t *testing.T) {
	err := brerrors.ChecksumMismatch("wget", "aaa", "bbb")
	result := Format(err, nil)

	checks := []string{"checksum mismatch", "bru update"}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_Pinned(t *testing.T) {
	err := brerrors.Pinned("node")
	result := Format(err, nil)

	if !strings.Contains(result, "bru unpin node") {
		t.Errorf("expected pinned formatting to reference 'bru unpin node', got:\n%s", result)
	}
}

func TestFormat_DependentsPresent(t *testing.T) {
	err := brerrors.DependentsPresent("openssl", []string{"wget"})
	result := Format(err, nil)

	if !strings.Contains(result, "--force") {
		t.Errorf("expected dependents-present formatting to mention --force, got:\n%s", result)
	}
}

func TestFormat_NetError(t *testing.T) {
	err := &timeoutError{}
	result := Format(err, nil)

	if !strings.Contains(result, "Request timed out") {
		t.Errorf("expected timeout message, got:\n%s", result)
	}
}

func TestFormat_RateLimitString(t *testing.T) {
	err := errors.New("429: too many requests")
	result := Format(err, &ErrorContext{Subject: "wget"})

	if !strings.Contains(result, "bru install wget") {
		t.Errorf("expected rate limit formatting to suggest retry, got:\n%s", result)
	}
}

func TestFormat_PermissionString(t *testing.T) {
	err := errors.New("mkdir /opt/homebrew/Cellar/wget: permission denied")
	result := Format(err, nil)

	if !strings.Contains(result, "ownership and permissions") {
		t.Errorf("expected permission formatting, got:\n%s", result)
	}
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

var _ net.Error = (*timeoutError)(nil)
