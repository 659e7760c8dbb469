// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/UNO-SOFT/gsfeed/atom"
	"github.com/UNO-SOFT/gsfeed/feed"
)

// Info of a document.
type Info struct {
	ID, Title  string
	Updated    time.Time
	Author     Author
	Worksheets []*Worksheet
}

type Author struct {
	Name, Email string
}

// Info returns the result of the last GetInfo, nil before the first call.
// AddWorksheet and Worksheet.Delete keep its worksheet list current.
func (s *Spreadsheet) Info() *Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return nil
	}
	info := *s.info
	info.Worksheets = append([]*Worksheet(nil), s.info.Worksheets...)
	return &info
}

// GetInfo fetches the document metadata and its worksheets.
func (s *Spreadsheet) GetInfo(ctx context.Context) (*Info, error) {
	res, err := s.do(ctx, http.MethodGet, feed.Path("worksheets", s.key), nil, "")
	if err != nil {
		return nil, err
	}
	if res.NoContent() {
		return nil, fmt.Errorf("%w: no response to get info", ErrProtocol)
	}
	f := res.Feed
	info := Info{
		ID:    f.ChildText("id"),
		Title: f.ChildText("title"),
	}
	if a := f.First("author"); a != nil {
		info.Author = Author{Name: a.ChildText("name"), Email: a.ChildText("email")}
	}
	if info.Updated, err = parseTime(f.ChildText("updated")); err != nil {
		return nil, err
	}
	for _, e := range f.All("entry") {
		ws, err := s.newWorksheet(e)
		if err != nil {
			return nil, err
		}
		info.Worksheets = append(info.Worksheets, ws)
	}
	s.mu.Lock()
	s.info = &info
	s.mu.Unlock()
	return s.Info(), nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return t, fmt.Errorf("%w: updated %q: %w", ErrProtocol, s, err)
	}
	return t, nil
}

// WorksheetOptions are the parameters of a new worksheet.
type WorksheetOptions struct {
	// Title defaults to "Worksheet <unique id>".
	Title string
	// RowCount defaults to 50, ColCount to 20.
	RowCount, ColCount int
	// Headers are written into the first row. ColCount is raised to
	// fit them.
	Headers []string
}

// AddWorksheet creates a new worksheet, and writes its header row.
func (s *Spreadsheet) AddWorksheet(ctx context.Context, opts WorksheetOptions) (*Worksheet, error) {
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	if opts.Title == "" {
		opts.Title = "Worksheet " + uuid.NewString()
	}
	if opts.RowCount <= 0 {
		opts.RowCount = 50
	}
	if opts.ColCount <= 0 {
		opts.ColCount = 20
	}
	opts.ColCount = max(opts.ColCount, len(opts.Headers))

	res, err := s.do(ctx, http.MethodPost, feed.Path("worksheets", s.key), nil,
		worksheetEntry(opts.Title, opts.RowCount, opts.ColCount))
	if err != nil {
		return nil, err
	}
	if res.NoContent() {
		return nil, fmt.Errorf("%w: no response to add worksheet", ErrProtocol)
	}
	ws, err := s.newWorksheet(res.Feed)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.info != nil {
		s.info.Worksheets = append(s.info.Worksheets, ws)
	}
	s.mu.Unlock()
	s.logger.Info("worksheet added", "id", ws.ID, "title", ws.Title)
	if err := ws.SetHeaderRow(ctx, opts.Headers); err != nil {
		return ws, fmt.Errorf("set header row of %q: %w", ws.Title, err)
	}
	return ws, nil
}

// RemoveWorksheet deletes the worksheet with the given id.
func (s *Spreadsheet) RemoveWorksheet(ctx context.Context, worksheetID int) error {
	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	u := s.client.BaseURL() + "worksheets/" + url.PathEscape(s.key) + "/private/full/" + strconv.Itoa(worksheetID)
	if _, err := s.do(ctx, http.MethodDelete, feed.URL(u), nil, ""); err != nil {
		return err
	}
	s.forget(worksheetID)
	return nil
}

func (s *Spreadsheet) forget(worksheetID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return
	}
	wss := s.info.Worksheets[:0]
	for _, ws := range s.info.Worksheets {
		if ws.ID != worksheetID {
			wss = append(wss, ws)
		}
	}
	s.info.Worksheets = wss
}

func worksheetEntry(title string, rowCount, colCount int) string {
	var buf strings.Builder
	buf.WriteString(`<entry xmlns="` + atom.NSAtom + `" xmlns:gs="` + atom.NSSheets + `"><title>`)
	buf.WriteString(atom.EscapeValue(title))
	buf.WriteString("</title><gs:rowCount>")
	buf.WriteString(strconv.Itoa(rowCount))
	buf.WriteString("</gs:rowCount><gs:colCount>")
	buf.WriteString(strconv.Itoa(colCount))
	buf.WriteString("</gs:colCount></entry>")
	return buf.String()
}
