// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package auth holds the credential state the feed requests are signed with.
//
// A State is an immutable snapshot. Authenticators hand out snapshots and
// replace them wholesale when they refresh; nothing mutates a State in place.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnauthenticated is returned when an operation needs credentials
	// but none are configured.
	ErrUnauthenticated = errors.New("you must authenticate to modify sheet data")
	// ErrInvalidCredentials is returned for rejected or malformed credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind of the credential.
type Kind uint8

const (
	KindAnonymous Kind = iota
	KindBearer
	// KindLegacy is an opaque ClientLogin style token.
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindBearer:
		return "bearer"
	case KindLegacy:
		return "legacy"
	default:
		return "anonymous"
	}
}

// State is a credential snapshot.
// The zero State is anonymous.
type State struct {
	kind   Kind
	token  string
	expiry time.Time
}

// Bearer returns an OAuth2 bearer token state. A zero expiry never expires.
func Bearer(token string, expiry time.Time) State {
	return State{kind: KindBearer, token: token, expiry: expiry}
}

// Legacy returns a state for an opaque "GoogleLogin" token.
func Legacy(token string) State { return State{kind: KindLegacy, token: token} }

func (s State) Kind() Kind        { return s.kind }
func (s State) Expiry() time.Time { return s.expiry }

// Authenticated reports whether the state carries a token.
func (s State) Authenticated() bool { return s.kind != KindAnonymous && s.token != "" }

// String does not reveal the token.
func (s State) String() string { return s.kind.String() }

// Expired reports whether a bearer token is past its expiry at now.
func (s State) Expired(now time.Time) bool {
	return s.kind == KindBearer && !s.expiry.IsZero() && !now.Before(s.expiry)
}

// Header returns the value of the Authorization header, empty when anonymous.
func (s State) Header() string {
	if !s.Authenticated() {
		return ""
	}
	if s.kind == KindBearer {
		return "Bearer " + s.token
	}
	return "GoogleLogin auth=" + s.token
}

// Authenticator provides the credential for each request.
type Authenticator interface {
	// State returns a usable snapshot, refreshing it first if it expired.
	// Concurrent callers share a single refresh.
	State(ctx context.Context) (State, error)
	// Current returns the last known snapshot without refreshing.
	Current() State
}

// Configured reports whether a can supply credentials, without fetching any.
func Configured(a Authenticator) bool {
	switch a := a.(type) {
	case nil:
		return false
	case staticAuth:
		return a.st.Authenticated()
	default:
		return true
	}
}

// Anonymous returns an Authenticator without credentials.
func Anonymous() Authenticator { return staticAuth{} }

// Static returns an Authenticator that always returns st, never refreshing it.
func Static(st State) Authenticator { return staticAuth{st: st} }

type staticAuth struct{ st State }

func (a staticAuth) State(context.Context) (State, error) { return a.st, nil }
func (a staticAuth) Current() State                       { return a.st }
