package client

import (
	"errors"
	"fmt"
	"net/http"

	"PChat/tools/errs"
)

var (
	// ErrAuthRejected means the server refused the credential; the
	// connection never opened.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrTransportDropped means an established connection was lost.
	ErrTransportDropped = errors.New("connection lost")
	// ErrOptimisticConflict means a placeholder was never confirmed and
	// has been discarded.
	ErrOptimisticConflict = errors.New("message not confirmed by server")
	// ErrConnectAborted means Close ran while Connect was still dialing.
	ErrConnectAborted = errors.New("connect aborted by close")
	ErrNotConnected   = errors.New("not connected")
	ErrNoPeer         = errors.New("no conversation selected")
	ErrNotLoggedIn    = errors.New("not logged in")
)

// APIError is a failed request/response call. It unwraps to the server's
// CodeError, so errs.ErrArgs.Is(err) and friends work on it.
type APIError struct {
	Status int
	Err    *errs.CodeError
}

func newAPIError(status int, body *errs.CodeError) *APIError {
	if body == nil || body.Code == 0 {
		body = &errs.CodeError{Code: status, Msg: http.StatusText(status)}
	}
	return &APIError{Status: status, Err: body}
}

// Message is the short text meant for a person.
func (e *APIError) Message() string {
	if e.Err.Msg == "" {
		return http.StatusText(e.Status)
	}
	return e.Err.Msg
}

func (e *APIError) Error() string {
	if e.Err.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message(), e.Status, e.Err.Detail)
	}
	return fmt.Sprintf("%s (%d)", e.Message(), e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAuthRejected) hold for any 401.
func (e *APIError) Is(target error) bool {
	return target == ErrAuthRejected && e.Status == http.StatusUnauthorized
}

// HumanMessage renders any client error as one short line.
func HumanMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message()
	case errors.Is(err, ErrAuthRejected):
		return "please log in again"
	case errors.Is(err, ErrOptimisticConflict):
		return "message could not be sent"
	case errors.Is(err, ErrTransportDropped), errors.Is(err, ErrNotConnected):
		return "disconnected from server"
	case errors.Is(err, ErrNoPeer):
		return "select a conversation first"
	default:
		return "something went wrong"
	}
}
