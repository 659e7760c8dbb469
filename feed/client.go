// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package feed dispatches the requests of the spreadsheet feeds: it builds
// the URL and the headers, signs the request with the current credential
// snapshot, and classifies and parses the response.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UNO-SOFT/gsfeed/atom"
	"github.com/UNO-SOFT/gsfeed/auth"
)

const (
	// DefaultBaseURL is the root of the feeds.
	DefaultBaseURL = "https://spreadsheets.google.com/feeds/"
	// APIVersion is sent in the GData-Version header.
	APIVersion = "3.0"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	ProjectionValues  = "values"
	ProjectionFull    = "full"

	contentTypeAtom = "application/atom+xml"
)

// Doer sends an HTTP request. *http.Client is a Doer.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config of the Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient Doer
	// Visibility and Projection override the values derived from the
	// credential: private/full when authenticated, public/values otherwise.
	Visibility, Projection string
	Logger                 *slog.Logger
}

// Client is the feed request dispatcher. It is safe for concurrent use.
type Client struct {
	base       string
	hc         Doer
	visibility string
	projection string
	logger     *slog.Logger
}

// New returns a new Client.
func New(cfg Config) *Client {
	c := Client{
		base: cfg.BaseURL, hc: cfg.HTTPClient,
		visibility: cfg.Visibility, projection: cfg.Projection,
		logger: cfg.Logger,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if !strings.HasSuffix(c.base, "/") {
		c.base += "/"
	}
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return &c
}

// BaseURL returns the root of the feeds, with a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Logger returns the logger of the client.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Scope returns the visibility and projection used with the credential.
func (c *Client) Scope(st auth.State) (visibility, projection string) {
	visibility, projection = VisibilityPublic, ProjectionValues
	if st.Authenticated() {
		visibility, projection = VisibilityPrivate, ProjectionFull
	}
	if c.visibility != "" {
		visibility = c.visibility
	}
	if c.projection != "" {
		projection = c.projection
	}
	return visibility, projection
}

// Endpoint is the target of a request: a literal URL or feed path segments.
type Endpoint struct {
	url  string
	segs []string
}

// URL is a literal URL endpoint, usually an edit link.
func URL(u string) Endpoint { return Endpoint{url: u} }

// Path is an endpoint relative to the base URL. The visibility and
// projection segments are appended at dispatch time.
func Path(segs ...string) Endpoint { return Endpoint{segs: segs} }

func (e Endpoint) String() string {
	if e.segs == nil {
		return e.url
	}
	return strings.Join(e.segs, "/")
}

func (c *Client) resolve(e Endpoint, st auth.State) string {
	if e.segs == nil {
		return e.url
	}
	vis, proj := c.Scope(st)
	parts := make([]string, 0, len(e.segs)+2)
	for _, s := range e.segs {
		parts = append(parts, url.PathEscape(s))
	}
	return c.base + strings.Join(append(parts, vis, proj), "/")
}

// Request is a feed request.
type Request struct {
	// Method defaults to GET.
	Method   string
	Endpoint Endpoint
	// Params are encoded into the query string of GET requests.
	Params map[string]string
	// Body is sent verbatim with POST and PUT.
	Body string
	// Auth defaults to anonymous.
	Auth auth.Authenticator
}

// Result of a successful request.
type Result struct {
	// Feed is the parsed document, nil for an empty response.
	Feed *atom.Node
	// Raw is the response body.
	Raw string
}

// NoContent reports whether the server returned an empty body.
func (r *Result) NoContent() bool { return r == nil || r.Feed == nil }

// Do dispatches the request.
//
// The credential is resolved first: an expired token is refreshed
// (once, for all concurrent callers) before the request is sent.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	authn := req.Auth
	if authn == nil {
		authn = auth.Anonymous()
	}
	st, err := authn.State(ctx)
	if err != nil {
		return nil, err
	}
	u := c.resolve(req.Endpoint, st)
	var body io.Reader
	switch req.Method {
	case http.MethodGet:
		if q := EncodeQuery(req.Params); q != "" {
			if strings.IndexByte(u, '?') >= 0 {
				u += "&" + q
			} else {
				u += "?" + q
			}
		}
	case http.MethodPost, http.MethodPut:
		body = strings.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, &Error{Op: req.Method, URL: u, Kind: ErrTransport, Err: err}
	}
	c.setHeaders(hr, st)

	logger := c.logger.With("method", req.Method, "url", u)
	start := time.Now()
	resp, err := c.hc.Do(hr)
	if err != nil {
		logger.Debug("request", "dur", time.Since(start).String(), "error", err)
		return nil, &Error{Op: req.Method, URL: u, Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	logger.Debug("request", "status", resp.StatusCode, "dur", time.Since(start).String(), "length", len(b))
	if err != nil {
		return nil, &Error{Op: req.Method, URL: u, Kind: ErrTransport, Code: resp.StatusCode, Status: statusText(resp), Err: err}
	}
	return classify(req.Method, u, resp, b)
}

func (c *Client) setHeaders(hr *http.Request, st auth.State) {
	hr.Header.Set("GData-Version", APIVersion)
	if h := st.Header(); h != "" {
		hr.Header.Set("Authorization", h)
	}
	switch hr.Method {
	case http.MethodPut:
		hr.Header.Set("Content-Type", contentTypeAtom)
		hr.Header.Set("If-Match", "*")
	case http.MethodPost:
		hr.Header.Set("Content-Type", contentTypeAtom)
		if strings.Contains(hr.URL.Path, "/batch") {
			hr.Header.Set("If-Match", "*")
		}
	}
}

func classify(method, u string, resp *http.Response, b []byte) (*Result, error) {
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		return nil, &Error{Op: method, URL: u, Kind: ErrInvalidCredentials,
			Code: code, Status: statusText(resp), Body: atom.UnescapeValue(string(b))}
	case code == http.StatusForbidden:
		return nil, &Error{Op: method, URL: u, Kind: ErrAccessDenied,
			Code: code, Status: statusText(resp), Body: atom.UnescapeValue(string(b))}
	case code >= 400:
		return nil, &Error{Op: method, URL: u, Kind: ErrProtocol,
			Code: code, Status: statusText(resp), Body: atom.UnescapeValue(string(b))}
	case code == http.StatusOK && isHTML(resp.Header.Get("Content-Type")):
		return nil, &Error{Op: method, URL: u, Kind: ErrDocumentPrivate}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return &Result{}, nil
	}
	root, err := atom.Parse(b)
	if err != nil {
		return nil, &Error{Op: method, URL: u, Kind: ErrProtocol, Code: resp.StatusCode, Status: statusText(resp), Err: err}
	}
	return &Result{Feed: root, Raw: string(b)}, nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "text/html")
	}
	return mt == "text/html"
}

func statusText(resp *http.Response) string {
	if s := http.StatusText(resp.StatusCode); s != "" {
		return s
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
}
