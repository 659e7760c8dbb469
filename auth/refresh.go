// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

// Scope is the OAuth2 scope of the spreadsheet feeds.
const Scope = "https://spreadsheets.google.com/feeds"

var _ = Authenticator((*Refreshing)(nil))

// Refreshing is an Authenticator backed by an oauth2.TokenSource.
//
// When the current token is missing or expired, State fetches a new one.
// Concurrent callers that find the token expired wait for the same fetch
// instead of starting their own.
type Refreshing struct {
	src    oauth2.TokenSource
	logger *slog.Logger
	now    func() time.Time
	state  atomic.Pointer[State]
	group  singleflight.Group
}

// NewRefreshing returns a Refreshing Authenticator. No token is fetched
// until the first call to State.
func NewRefreshing(src oauth2.TokenSource, logger *slog.Logger) *Refreshing {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Refreshing{src: src, logger: logger, now: time.Now}
}

// Current returns the last fetched state, anonymous before the first fetch.
func (r *Refreshing) Current() State {
	if st := r.state.Load(); st != nil {
		return *st
	}
	return State{}
}

func (r *Refreshing) valid() (State, bool) {
	st := r.state.Load()
	if st == nil || !st.Authenticated() || st.Expired(r.now()) {
		return State{}, false
	}
	return *st, true
}

// State returns the current token, refreshing it when needed.
func (r *Refreshing) State(ctx context.Context) (State, error) {
	if st, ok := r.valid(); ok {
		return st, nil
	}
	ch := r.group.DoChan("refresh", func() (any, error) {
		// a refresh may have finished between valid() and DoChan
		if st, ok := r.valid(); ok {
			return st, nil
		}
		return r.refresh()
	})
	select {
	case <-ctx.Done():
		return State{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return State{}, res.Err
		}
		return res.Val.(State), nil
	}
}

func (r *Refreshing) refresh() (State, error) {
	start := r.now()
	tok, err := r.src.Token()
	if err != nil {
		r.logger.Warn("token refresh", "error", err)
		return State{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if tok.AccessToken == "" {
		return State{}, fmt.Errorf("%w: empty access token", ErrInvalidCredentials)
	}
	st := Bearer(tok.AccessToken, tok.Expiry)
	r.state.Store(&st)
	r.logger.Debug("token refreshed", "expiry", tok.Expiry, "dur", r.now().Sub(start).String())
	return st, nil
}

// ServiceAccount returns a Refreshing Authenticator for a service account
// JSON key, and fetches the first token right away, so bad keys fail here.
//
// The token source outlives ctx: ctx only bounds this first fetch.
func ServiceAccount(ctx context.Context, jsonKey []byte, logger *slog.Logger) (*Refreshing, error) {
	if len(bytes.TrimSpace(jsonKey)) == 0 {
		return nil, fmt.Errorf("%w: empty service account key", ErrInvalidCredentials)
	}
	cfg, err := google.JWTConfigFromJSON(jsonKey, Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse service account key: %w", ErrInvalidCredentials, err)
	}
	if cfg.Email == "" || len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("%w: service account key needs client_email and private_key", ErrInvalidCredentials)
	}
	r := NewRefreshing(cfg.TokenSource(context.WithoutCancel(ctx)), logger)
	if _, err := r.State(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// ServiceAccountFile is ServiceAccount with the key read from a file.
func ServiceAccountFile(ctx context.Context, path string, logger *slog.Logger) (*Refreshing, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account key %q: %w", path, err)
	}
	return ServiceAccount(ctx, b, logger)
}
