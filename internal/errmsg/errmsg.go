// Package errmsg provides enhanced error message formatting with actionable
// suggestions for bru's CLI output.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/bru-dev/bru/internal/brerrors"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	Subject string // the formula or cask name being operated on, if any
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx is optional; pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	var bruErr *brerrors.Error
	if errors.As(err, &bruErr) {
		return formatBruError(bruErr, ctx)
	}

	if isRateLimitError(errMsg) {
		return formatRateLimitError(errMsg, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg)
	}

	if isNotFoundError(errMsg) {
		return formatNotFoundError(errMsg, ctx)
	}

	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg)
	}

	return errMsg
}

func formatBruError(err *brerrors.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	switch err.Kind {
	case brerrors.KindNetwork, brerrors.KindTimeout, brerrors.KindDNS, brerrors.KindConnection, brerrors.KindTLS:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - formulae.brew.sh or ghcr.io temporarily unavailable\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection\n")
		sb.WriteString("  - Try again in a few minutes\n")

	case brerrors.KindNotFound:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The formula or cask name doesn't exist\n")
		sb.WriteString("  - A typo in the name\n")
		sb.WriteString("\nSuggestions:\n")
		if ctx != nil && ctx.Subject != "" {
			sb.WriteString(fmt.Sprintf("  - Run 'bru search %s' to look for similarly named formulae\n", ctx.Subject))
		} else {
			sb.WriteString("  - Run 'bru search <name>' to look for similarly named formulae\n")
		}

	case brerrors.KindNoBottleForPlatform:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - No prebuilt bottle exists for this OS/architecture\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check formulae.brew.sh for supported platforms\n")

	case brerrors.KindChecksumMismatch:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The download was interrupted or corrupted\n")
		sb.WriteString("  - The upstream bottle changed since the index was cached\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Run 'bru update' to refresh the index, then retry\n")

	case brerrors.KindCircularDependency:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - A formula's dependency graph contains a cycle\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Report this to the tap's maintainers\n")

	case brerrors.KindRelocationFailed:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - patchelf is not installed (Linux)\n")
		sb.WriteString("  - Xcode command line tools are not installed (macOS)\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Install the platform's relocation tooling and retry\n")

	case brerrors.KindFilesystemConflict:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - A file at the link target already exists and isn't owned by this formula\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Inspect the conflicting path, then move or remove it and retry if it's safe to replace\n")

	case brerrors.KindDependentsPresent:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Other installed formulae still depend on this one\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Uninstall the dependents first, or pass --force\n")

	case brerrors.KindPinned:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The formula is pinned to its current version\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString(fmt.Sprintf("  - Run 'bru unpin %s' to allow upgrades\n", err.Subject))

	case brerrors.KindRateLimit:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Too many requests to the Homebrew API or GHCR\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Wait a few minutes before retrying\n")

	default:
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Try again in a few minutes\n")
	}

	return sb.String()
}

func formatRateLimitError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Too many requests to the API\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Wait a few minutes before retrying\n")
	if ctx != nil && ctx.Subject != "" {
		sb.WriteString(fmt.Sprintf("  - Retry 'bru install %s' once the limit resets\n", ctx.Subject))
	}

	return sb.String()
}

func formatNetworkError(err net.Error) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall or proxy blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatGenericNetworkError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Service temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatNotFoundError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The formula or cask doesn't exist in the index\n")
	sb.WriteString("  - Typo in the name\n")

	sb.WriteString("\nSuggestions:\n")
	if ctx != nil && ctx.Subject != "" {
		sb.WriteString(fmt.Sprintf("  - Run 'bru search %s'\n", ctx.Subject))
	} else {
		sb.WriteString("  - Run 'bru search <name>'\n")
	}

	return sb.String()
}

func formatPermissionError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on the Homebrew prefix\n")
	sb.WriteString("  - A Cellar file or directory is owned by a different user\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check ownership and permissions of the prefix directory\n")

	return sb.String()
}

func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests")
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

func isNotFoundError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "404") ||
		strings.Contains(lower, "does not exist")
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
