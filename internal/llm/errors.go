package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCallFailed is matched by every error a Client returns for a failed call.
var ErrCallFailed = errors.New("chat call failed")

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindAuth      ErrorKind = "auth"
	KindQuota     ErrorKind = "quota"
	KindServer    ErrorKind = "server"
	KindMalformed ErrorKind = "malformed"
	KindStream    ErrorKind = "stream"
)

// CallError describes a failed completion or stream call.
type CallError struct {
	Provider string
	Kind     ErrorKind
	Status   int // HTTP status, 0 when no response was received
	Err      error
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func (e *CallError) Is(target error) bool {
	return target == ErrCallFailed
}

// KindOf reports the kind of a failed call, or "" if err is not a CallError.
func KindOf(err error) ErrorKind {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}
	return ""
}

func callError(provider string, kind ErrorKind, err error) *CallError {
	return &CallError{Provider: provider, Kind: kind, Err: err}
}

func statusError(provider string, status int, err error) *CallError {
	return &CallError{Provider: provider, Kind: kindForStatus(status), Status: status, Err: err}
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindQuota
	default:
		return KindServer
	}
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
