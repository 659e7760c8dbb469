// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package gsfeed is a client of the Google Spreadsheets feeds.
//
// A Spreadsheet is a document, identified by its key. Its worksheets can be
// read and edited as rows (the list feed, where the first row holds the
// column names) or as cells (the cells feed).
//
//	doc, err := gsfeed.New(key, gsfeed.Options{})
//	if err := doc.UseServiceAccountFile(ctx, "creds.json"); err != nil {
//		return err
//	}
//	info, err := doc.GetInfo(ctx)
//	rows, err := info.Worksheets[0].GetRows(ctx, feed.RowQuery{Query: "age > 25"})
//
// Entities (Worksheet, Row, Cell) keep the links they were read with, and
// must not be edited concurrently.
package gsfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/UNO-SOFT/gsfeed/atom"
	"github.com/UNO-SOFT/gsfeed/auth"
	"github.com/UNO-SOFT/gsfeed/feed"
)

// Options of a Spreadsheet. The zero value is usable: anonymous access
// with http.DefaultClient.
type Options struct {
	// Auth defaults to anonymous.
	Auth auth.Authenticator
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient feed.Doer
	// BaseURL defaults to feed.DefaultBaseURL.
	BaseURL string
	// Visibility ("public" or "private") and Projection ("values" or
	// "full") default to private/full when authenticated,
	// public/values otherwise.
	Visibility, Projection string
	Logger                 *slog.Logger
}

// Spreadsheet is a document.
type Spreadsheet struct {
	key    string
	client *feed.Client
	logger *slog.Logger
	authn  atomic.Pointer[authBox]

	mu   sync.Mutex
	info *Info
}

type authBox struct{ auth.Authenticator }

// New returns the document with the given key.
func New(key string, opts Options) (*Spreadsheet, error) {
	if key == "" {
		return nil, ErrMissingIdentifier
	}
	client := feed.New(feed.Config{
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
		Visibility: opts.Visibility,
		Projection: opts.Projection,
		Logger:     opts.Logger,
	})
	s := Spreadsheet{key: key, client: client, logger: client.Logger().With("key", key)}
	s.SetAuthenticator(opts.Auth)
	return &s, nil
}

// Key of the document.
func (s *Spreadsheet) Key() string { return s.key }

// SetAuthenticator replaces the credentials. nil means anonymous.
func (s *Spreadsheet) SetAuthenticator(a auth.Authenticator) {
	if a == nil {
		a = auth.Anonymous()
	}
	s.authn.Store(&authBox{a})
}

// SetAuthToken uses the token as is, without ever refreshing it.
func (s *Spreadsheet) SetAuthToken(st auth.State) { s.SetAuthenticator(auth.Static(st)) }

// UseServiceAccountAuth authenticates with the service account JSON key.
// The token is refreshed automatically when it expires.
func (s *Spreadsheet) UseServiceAccountAuth(ctx context.Context, jsonKey []byte) error {
	a, err := auth.ServiceAccount(ctx, jsonKey, s.logger)
	if err != nil {
		return err
	}
	s.SetAuthenticator(a)
	return nil
}

// UseServiceAccountFile is UseServiceAccountAuth with the key read from a file.
func (s *Spreadsheet) UseServiceAccountFile(ctx context.Context, path string) error {
	a, err := auth.ServiceAccountFile(ctx, path, s.logger)
	if err != nil {
		return err
	}
	s.SetAuthenticator(a)
	return nil
}

var errClientLogin = errors.New("ClientLogin (username/password) authentication is deprecated, use a service account")

// SetAuth always fails: username/password login is not supported anymore.
func (s *Spreadsheet) SetAuth(username, password string) error {
	return fmt.Errorf("%w: %w", ErrInvalidCredentials, errClientLogin)
}

// IsAuthActive reports whether requests are sent with credentials.
// A refreshing authenticator counts even before its first token fetch.
func (s *Spreadsheet) IsAuthActive() bool { return auth.Configured(s.authenticator()) }

func (s *Spreadsheet) authenticator() auth.Authenticator { return s.authn.Load().Authenticator }

// requireAuth fetches the credentials when they are not there yet.
func (s *Spreadsheet) requireAuth(ctx context.Context) error {
	if !s.IsAuthActive() {
		return ErrUnauthenticated
	}
	st, err := s.authenticator().State(ctx)
	if err != nil {
		return err
	}
	if !st.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func (s *Spreadsheet) do(ctx context.Context, method string, ep feed.Endpoint, params map[string]string, body string) (*feed.Result, error) {
	return s.client.Do(ctx, feed.Request{
		Method: method, Endpoint: ep, Params: params, Body: body,
		Auth: s.authenticator(),
	})
}

// edit sends a mutating request to a link of an entity.
func (s *Spreadsheet) edit(ctx context.Context, method string, links atom.Links, body string) (*feed.Result, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	href := links[atom.RelEdit]
	if href == "" {
		return nil, fmt.Errorf("%w: no edit link, the entry is read-only", ErrAccessDenied)
	}
	return s.do(ctx, method, feed.URL(href), nil, body)
}

// GetRows returns the rows of the worksheet. The first row of the sheet
// holds the column names and is not returned.
func (s *Spreadsheet) GetRows(ctx context.Context, worksheetID int, q feed.RowQuery) ([]*Row, error) {
	res, err := s.do(ctx, http.MethodGet, feed.Path("list", s.key, strconv.Itoa(worksheetID)), q.Params(), "")
	if err != nil {
		return nil, err
	}
	if res.NoContent() {
		return nil, fmt.Errorf("%w: no response to get rows", ErrProtocol)
	}
	entries := res.Feed.All("entry")
	raws := atom.Entries(res.Raw)
	if len(raws) != len(entries) {
		return nil, fmt.Errorf("%w: %d raw entries for %d parsed", ErrProtocol, len(raws), len(entries))
	}
	decls := res.Feed.NamespaceDecls()
	rows := make([]*Row, len(entries))
	for i, e := range entries {
		rows[i] = s.newRow(e, atom.InjectNamespaces(raws[i], decls))
	}
	return rows, nil
}

// AddRow appends a row to the worksheet. The keys of values are column
// names, sanitized the same way as the header row.
func (s *Spreadsheet) AddRow(ctx context.Context, worksheetID int, values map[string]string) (*Row, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	res, err := s.do(ctx, http.MethodPost, feed.Path("list", s.key, strconv.Itoa(worksheetID)), nil, rowEntry(values))
	if err != nil {
		return nil, err
	}
	if res.NoContent() {
		return nil, fmt.Errorf("%w: no response to add row", ErrProtocol)
	}
	raws := atom.Entries(res.Raw)
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: add row returned no entry", ErrProtocol)
	}
	return s.newRow(res.Feed, raws[0]), nil
}

// GetCells returns the cells of the worksheet.
func (s *Spreadsheet) GetCells(ctx context.Context, worksheetID int, q feed.CellQuery) ([]*Cell, error) {
	res, err := s.do(ctx, http.MethodGet, feed.Path("cells", s.key, strconv.Itoa(worksheetID)), q.Params(), "")
	if err != nil {
		return nil, err
	}
	if res.NoContent() {
		return nil, fmt.Errorf("%w: no response to get cells", ErrProtocol)
	}
	entries := res.Feed.All("entry")
	cells := make([]*Cell, 0, len(entries))
	for _, e := range entries {
		c, err := s.newCell(worksheetID, e)
		if err != nil {
			return cells, err
		}
		cells = append(cells, c)
	}
	return cells, nil
}
