package gateway

import (
	"errors"
	"fmt"
)

// ErrMissingCredential indicates no API key is configured. Every gateway
// operation fails with this immediately, before any network I/O.
var ErrMissingCredential = errors.New("gateway: missing api credential")

// GatewayError wraps any remote-call failure: transport errors, empty
// bodies, and schema violations alike. Never retried automatically.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ValidationError reports a response that parsed but violates the
// AnalysisResult contract. It is always wrapped in a GatewayError so the
// two are handled identically by callers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsGatewayError reports whether err is (or wraps) a remote-call failure.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

func gatewayErr(op string, err error) error {
	return &GatewayError{Op: op, Err: err}
}

func gatewayErrf(op, format string, args ...any) error {
	return &GatewayError{Op: op, Err: fmt.Errorf(format, args...)}
}
