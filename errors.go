// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import "github.com/UNO-SOFT/gsfeed/feed"

// Error kinds, see the feed package. Check them with errors.Is.
var (
	ErrMissingIdentifier  = feed.ErrMissingIdentifier
	ErrUnauthenticated    = feed.ErrUnauthenticated
	ErrInvalidCredentials = feed.ErrInvalidCredentials
	ErrAccessDenied       = feed.ErrAccessDenied
	ErrDocumentPrivate    = feed.ErrDocumentPrivate
	ErrProtocol           = feed.ErrProtocol
	ErrValidation         = feed.ErrValidation
	ErrTransport          = feed.ErrTransport
)

// Error is the error of a failed feed request.
type Error = feed.Error
