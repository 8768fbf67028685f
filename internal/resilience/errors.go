package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// UnavailableError marks a registry or store call that failed for
// infrastructure reasons. The matching engine treats it as a fallback
// trigger, never as a caller-facing failure.
type UnavailableError struct {
	Service string // "registry" or "store"
	Err     error
}

func (e *UnavailableError) Error() string {
	return e.Service + " unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// RegistryUnavailable wraps a failed professional-registry call.
func RegistryUnavailable(err error) *UnavailableError {
	return &UnavailableError{Service: "registry", Err: err}
}

// StoreUnavailable wraps a failed lead-store call.
func StoreUnavailable(err error) *UnavailableError {
	return &UnavailableError{Service: "store", Err: err}
}

// IsUnavailable reports whether the chain contains an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsTransient reports whether the error is an infrastructure failure that
// is safe to retry or fall back from: an explicit UnavailableError, a
// deadline, or a network-level fault. Validation errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsUnavailable(err) {
		return true
	}

	// A pipeline timeout degrades the same way as an unreachable backend.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for wrapped driver errors.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"i/o timeout",
		"database is locked",
		"connection refused",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
