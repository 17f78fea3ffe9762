package proxmox

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the stable classification tag attached to every error the
// client surfaces. Kinds are part of the tool response envelope, so their
// string values must not change.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth_error"
	KindNotFound    ErrorKind = "not_found"
	KindUnreachable ErrorKind = "upstream_unreachable"
	KindUpstream    ErrorKind = "upstream_error"
	KindGuestAgent  ErrorKind = "guest_agent_unavailable"
)

// APIError classifies a failed call against the Proxmox API.
type APIError struct {
	Kind    ErrorKind
	Status  int // HTTP status when one was received, 0 otherwise
	Message string
	cause   error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// KindOf returns the error kind for err, or KindUpstream when err carries no
// classification of its own.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUpstream
}

func newHTTPError(status int, body, path string) *APIError {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = fmt.Sprintf("Proxmox API returned status %d", status)
	}

	switch {
	case status == 401 || status == 403:
		return &APIError{Kind: KindAuth, Status: status, Message: "credentials rejected by Proxmox API"}
	case status == 404:
		// Name the target so the caller can tell which node or guest
		// was missing without consulting server logs.
		return &APIError{Kind: KindNotFound, Status: status, Message: fmt.Sprintf("%s: %s", path, msg)}
	case isGuestAgentError(msg):
		return &APIError{Kind: KindGuestAgent, Status: status, Message: "QEMU guest agent is not available on the target VM"}
	default:
		return &APIError{Kind: KindUpstream, Status: status, Message: msg}
	}
}

func newTransportError(err error) *APIError {
	return &APIError{
		Kind:    KindUnreachable,
		Message: "Proxmox API unreachable: " + sanitizeTransportError(err),
		cause:   err,
	}
}

func newDecodeError(err error) *APIError {
	return &APIError{
		Kind:    KindUpstream,
		Message: "malformed response from Proxmox API",
		cause:   err,
	}
}

// isGuestAgentError reports whether an API error message is the guest-agent
// channel refusing the request rather than a node- or API-level failure.
func isGuestAgentError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "guest agent") ||
		strings.Contains(lower, "qemu guest agent") ||
		strings.Contains(lower, "qmp command")
}

// sanitizeTransportError maps raw Go network errors to short operator-facing
// messages. The original error stays attached as the cause for logs.
func sanitizeTransportError(err error) string {
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "connection refused"):
		return "connection refused"
	case strings.Contains(lower, "no such host"):
		return "DNS lookup failed"
	case strings.Contains(lower, "no route to host"), strings.Contains(lower, "network is unreachable"):
		return "network unreachable"
	case strings.Contains(lower, "fingerprint mismatch"):
		return "TLS certificate fingerprint mismatch"
	case strings.Contains(lower, "tls"), strings.Contains(lower, "certificate"), strings.Contains(lower, "x509"):
		return "TLS handshake failed"
	case strings.Contains(lower, "context deadline exceeded"), strings.Contains(lower, "timeout"):
		return "request timed out"
	default:
		return "connection failed"
	}
}

// retryable reports whether a read-only request may be retried. Auth and
// not-found responses are definitive; transport failures and server-side
// errors can be transient.
func retryable(err error) bool {
	switch KindOf(err) {
	case KindUnreachable, KindUpstream:
		return true
	default:
		return false
	}
}
