package listmonk

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// UpstreamKind classifies backend failures.
type UpstreamKind string

// Upstream failure kinds.
const (
	Timeout          UpstreamKind = "timeout"
	Unreachable      UpstreamKind = "unreachable"
	UnexpectedStatus UpstreamKind = "unexpected_status"
)

// UpstreamError carries enough detail for logs and notifications. It is never
// shown to the form caller.
type UpstreamError struct {
	Kind       UpstreamKind
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Kind == UnexpectedStatus && e.Body != "":
		return fmt.Sprintf("listmonk returned %d: %s", e.StatusCode, e.Body)
	case e.Kind == UnexpectedStatus:
		return fmt.Sprintf("listmonk returned %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("listmonk %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("listmonk %s", e.Kind)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func classifyTransportError(err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{Kind: Timeout, Err: err}
	}
	return &UpstreamError{Kind: Unreachable, Err: err}
}
