// Package brerrors provides the structured error kinds used across bru's
// Cellar, API, tap, dependency, download, extraction, and linking layers.
package brerrors

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind classifies a bru error for formatting and exit-code selection.
type Kind int

const (
	// KindNetwork is a generic network-related failure (fallback when a
	// more specific kind can't be determined).
	KindNetwork Kind = iota
	// KindNotFound indicates a formula or cask name is unknown to the index.
	KindNotFound
	// KindJSONParse indicates malformed JSON from the API or a cache file.
	KindJSONParse
	// KindChecksumMismatch indicates a downloaded bottle's SHA-256 didn't
	// match its manifest digest.
	KindChecksumMismatch
	// KindCircularDependency indicates the dependency graph contains a cycle.
	KindCircularDependency
	// KindNoBottleForPlatform indicates a formula has no prebuilt bottle for
	// the current platform tag.
	KindNoBottleForPlatform
	// KindRelocationFailed indicates text or binary relocation of an
	// extracted bottle failed.
	KindRelocationFailed
	// KindFilesystemConflict indicates a symlink target already exists and
	// doesn't belong to the formula being linked.
	KindFilesystemConflict
	// KindDependentsPresent indicates uninstall was refused because other
	// installed formulae still depend on this one.
	KindDependentsPresent
	// KindPinned indicates upgrade was refused because the formula is pinned.
	KindPinned
	// KindRateLimit indicates the Homebrew API or GHCR responded 429.
	KindRateLimit
	// KindTimeout indicates a request exceeded its deadline.
	KindTimeout
	// KindDNS indicates DNS resolution failed.
	KindDNS
	// KindConnection indicates a connection was refused or reset.
	KindConnection
	// KindTLS indicates a TLS/certificate verification failure.
	KindTLS
)

// Error is the structured error type returned by bru's internal packages.
type Error struct {
	Kind    Kind
	Subject string // formula/cask/tap name the error concerns, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Subject, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Subject, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Suggestion returns an actionable hint for the user, or "" if none applies.
func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindRateLimit:
		return "Wait a few minutes before trying again"
	case KindTimeout:
		return "Check your internet connection and try again"
	case KindDNS:
		return "Check your DNS settings and internet connection"
	case KindConnection:
		return "formulae.brew.sh or ghcr.io may be unreachable from this network"
	case KindTLS:
		return "There may be a certificate issue. Check your system clock is correct"
	case KindNotFound:
		return "Run 'bru search <name>' to look for a similarly named formula or cask"
	case KindNetwork:
		return "Check your internet connection and try again"
	case KindChecksumMismatch:
		return "The bottle download is corrupt; bru will redownload on next retry"
	case KindCircularDependency:
		return "One of the formula's dependencies ultimately depends on itself; this is a tap/formula bug"
	case KindNoBottleForPlatform:
		return "No prebuilt bottle exists for this OS/architecture combination"
	case KindRelocationFailed:
		return "Check that patchelf (Linux) or Xcode command line tools (macOS) are installed"
	case KindFilesystemConflict:
		return "Move or remove the conflicting file after confirming it is safe to replace, then retry"
	case KindDependentsPresent:
		return "Uninstall the dependents first, or pass --force"
	case KindPinned:
		return "Run 'bru unpin <name>' first if you want to allow the upgrade"
	default:
		return ""
	}
}

// FormulaNotFound builds a KindNotFound error for a missing formula.
func FormulaNotFound(name string) *Error {
	return &Error{Kind: KindNotFound, Subject: name, Message: "no formula named " + name}
}

// CaskNotFound builds a KindNotFound error for a missing cask.
func CaskNotFound(token string) *Error {
	return &Error{Kind: KindNotFound, Subject: token, Message: "no cask named " + token}
}

// NoBottleForPlatform builds a KindNoBottleForPlatform error.
func NoBottleForPlatform(formula, tag string) *Error {
	return &Error{Kind: KindNoBottleForPlatform, Subject: formula, Message: fmt.Sprintf("no bottle available for platform %s", tag)}
}

// ChecksumMismatch builds a KindChecksumMismatch error.
func ChecksumMismatch(formula, want, got string) *Error {
	return &Error{Kind: KindChecksumMismatch, Subject: formula, Message: fmt.Sprintf("checksum mismatch: expected %s, got %s", want, got)}
}

// CircularDependency builds a KindCircularDependency error naming the cycle.
func CircularDependency(cycle []string) *Error {
	return &Error{Kind: KindCircularDependency, Message: "circular dependency: " + strings.Join(cycle, " -> ")}
}

// RelocationFailed builds a KindRelocationFailed error for a specific file.
func RelocationFailed(formula, path string, err error) *Error {
	return &Error{Kind: KindRelocationFailed, Subject: formula, Message: "failed to relocate " + path, Err: err}
}

// FilesystemConflict builds a KindFilesystemConflict error for a link target.
func FilesystemConflict(formula, path string) *Error {
	return &Error{Kind: KindFilesystemConflict, Subject: formula, Message: "file already exists and is not owned by this formula: " + path}
}

// DependentsPresent builds a KindDependentsPresent error listing dependents.
func DependentsPresent(formula string, dependents []string) *Error {
	return &Error{Kind: KindDependentsPresent, Subject: formula, Message: "required by: " + strings.Join(dependents, ", ")}
}

// Pinned builds a KindPinned error for an upgrade refused due to a pin.
func Pinned(formula string) *Error {
	return &Error{Kind: KindPinned, Subject: formula, Message: "formula is pinned"}
}

// JSONParseError builds a KindJSONParse error wrapping the decode failure.
func JSONParseError(subject string, err error) *Error {
	return &Error{Kind: KindJSONParse, Subject: subject, Message: "failed to parse JSON", Err: err}
}

// WrapNetworkError classifies err and wraps it as a network-kind Error.
func WrapNetworkError(err error, subject, message string) *Error {
	return &Error{Kind: classify(err), Subject: subject, Message: message, Err: err}
}

// classify examines err and returns the most specific Kind it can detect by
// walking the error chain, mirroring net/http's own error taxonomy.
func classify(err error) Kind {
	if err == nil {
		return KindNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return KindTLS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return KindTimeout
		}
		var innerDNS *net.DNSError
		if errors.As(opErr.Err, &innerDNS) {
			return KindDNS
		}
		return KindConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return KindTimeout
		}
		msg := urlErr.Err.Error()
		if strings.Contains(msg, "certificate") || strings.Contains(msg, "tls") || strings.Contains(msg, "x509") {
			return KindTLS
		}
		return classify(urlErr.Err)
	}

	return KindNetwork
}

// IsRateLimitStatus reports whether an HTTP status code indicates rate
// limiting, for callers that only have a status code and not a Go error.
func IsRateLimitStatus(statusCode int) bool {
	return statusCode == 429
}
