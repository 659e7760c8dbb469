// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"errors"
	"fmt"

	"github.com/UNO-SOFT/gsfeed/auth"
)

// Error kinds. Every error returned by this module matches (errors.Is)
// at most one of them, except ErrDocumentPrivate, which is also an
// ErrAccessDenied.
var (
	ErrMissingIdentifier  = errors.New("missing document key")
	ErrUnauthenticated    = auth.ErrUnauthenticated
	ErrInvalidCredentials = auth.ErrInvalidCredentials
	ErrAccessDenied       = errors.New("access denied")
	ErrProtocol           = errors.New("protocol error")
	ErrValidation         = errors.New("validation error")
	ErrTransport          = errors.New("transport error")

	ErrDocumentPrivate = fmt.Errorf("%w: document is private, authenticate to read it", ErrAccessDenied)
)

// Error is a failed feed request.
type Error struct {
	// Kind is one of the Err* kinds.
	Kind error
	// Err is the underlying cause, if any.
	Err error

	Op, URL string
	// Code is the HTTP status code, zero for transport errors.
	Code   int
	Status string
	// Body is the (unescaped) response body of 4xx/5xx responses.
	Body string
}

var _ = error((*Error)(nil))

func (e *Error) Error() string {
	var s string
	switch {
	case e.Code != 0 && e.Body != "":
		s = fmt.Sprintf("HTTP error %d (%s) - %s", e.Code, e.Status, e.Body)
	case e.Err != nil:
		s = e.Kind.Error() + ": " + e.Err.Error()
	case e.Code != 0:
		s = fmt.Sprintf("HTTP error %d (%s)", e.Code, e.Status)
	default:
		s = e.Kind.Error()
	}
	if e.Op != "" {
		s = e.Op + " " + e.URL + ": " + s
	}
	return s
}

// Unwrap returns both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
