// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/UNO-SOFT/gsfeed/atom"
	"github.com/UNO-SOFT/gsfeed/feed"
)

// Derived links of a worksheet.
const (
	LinkCells     = "cells"
	LinkBulkCells = "bulkcells"
)

// Worksheet is a sheet of a document.
type Worksheet struct {
	doc *Spreadsheet
	// ID is the last segment of URL. Worksheet ids start at 1.
	ID int
	// URL is the id of the worksheet entry.
	URL      string
	Title    string
	RowCount int
	ColCount int
	// Links are the links of the entry, plus the derived LinkCells and
	// LinkBulkCells.
	Links atom.Links
}

func (s *Spreadsheet) newWorksheet(e *atom.Node) (*Worksheet, error) {
	ws := Worksheet{doc: s, URL: e.ChildText("id")}
	tail := ws.URL[strings.LastIndexByte(ws.URL, '/')+1:]
	var err error
	if ws.ID, err = strconv.Atoi(tail); err != nil {
		return nil, fmt.Errorf("%w: worksheet id %q: %w", ErrProtocol, ws.URL, err)
	}
	if err = ws.update(e); err != nil {
		return nil, err
	}
	return &ws, nil
}

// update sets the title, size and links from the entry.
func (ws *Worksheet) update(e *atom.Node) error {
	rowCount, err := strconv.Atoi(strings.TrimSpace(e.ChildText("gs:rowCount")))
	if err != nil {
		return fmt.Errorf("%w: rowCount of worksheet %d: %w", ErrProtocol, ws.ID, err)
	}
	colCount, err := strconv.Atoi(strings.TrimSpace(e.ChildText("gs:colCount")))
	if err != nil {
		return fmt.Errorf("%w: colCount of worksheet %d: %w", ErrProtocol, ws.ID, err)
	}
	ws.Title, ws.RowCount, ws.ColCount = e.ChildText("title"), rowCount, colCount
	if links := e.Links(); len(links) != 0 {
		if cells := links[atom.RelCellsFeed]; cells != "" {
			links[LinkCells] = cells
			links[LinkBulkCells] = cells + "/batch"
		}
		ws.Links = links
	}
	return nil
}

// Resize the worksheet. A zero count keeps the current one.
func (ws *Worksheet) Resize(ctx context.Context, rowCount, colCount int) error {
	return ws.setInfo(ctx, "", rowCount, colCount)
}

// SetTitle renames the worksheet.
func (ws *Worksheet) SetTitle(ctx context.Context, title string) error {
	return ws.setInfo(ctx, title, 0, 0)
}

func (ws *Worksheet) setInfo(ctx context.Context, title string, rowCount, colCount int) error {
	if title == "" {
		title = ws.Title
	}
	if rowCount <= 0 {
		rowCount = ws.RowCount
	}
	if colCount <= 0 {
		colCount = ws.ColCount
	}
	res, err := ws.doc.edit(ctx, http.MethodPut, ws.Links, worksheetEntry(title, rowCount, colCount))
	if err != nil {
		return err
	}
	if res.NoContent() {
		return fmt.Errorf("%w: no response to worksheet update", ErrProtocol)
	}
	return ws.update(res.Feed)
}

// Clear empties the worksheet: it shrinks the sheet to a single cell,
// clears that, then restores the original size.
//
// It is not atomic: on error the sheet may be left at the wrong size.
func (ws *Worksheet) Clear(ctx context.Context) error {
	rowCount, colCount := ws.RowCount, ws.ColCount
	if err := ws.Resize(ctx, 1, 1); err != nil {
		return fmt.Errorf("shrink %q: %w", ws.Title, err)
	}
	cells, err := ws.GetCells(ctx, feed.CellQuery{ReturnEmpty: true})
	if err != nil {
		return fmt.Errorf("clear %q: %w", ws.Title, err)
	}
	if len(cells) != 0 {
		if err := cells[0].SetValueAndSave(ctx, ""); err != nil {
			return fmt.Errorf("clear %q: %w", ws.Title, err)
		}
	}
	if err := ws.Resize(ctx, rowCount, colCount); err != nil {
		return fmt.Errorf("restore size of %q to %dx%d: %w", ws.Title, rowCount, colCount, err)
	}
	return nil
}

// GetRows returns the rows below the header row.
func (ws *Worksheet) GetRows(ctx context.Context, q feed.RowQuery) ([]*Row, error) {
	return ws.doc.GetRows(ctx, ws.ID, q)
}

// GetCells returns the cells of the worksheet.
func (ws *Worksheet) GetCells(ctx context.Context, q feed.CellQuery) ([]*Cell, error) {
	return ws.doc.GetCells(ctx, ws.ID, q)
}

// AddRow appends a row.
func (ws *Worksheet) AddRow(ctx context.Context, values map[string]string) (*Row, error) {
	return ws.doc.AddRow(ctx, ws.ID, values)
}

// Delete the worksheet.
func (ws *Worksheet) Delete(ctx context.Context) error {
	if _, err := ws.doc.edit(ctx, http.MethodDelete, ws.Links, ""); err != nil {
		return err
	}
	ws.doc.forget(ws.ID)
	return nil
}

// SetHeaderRow writes the headers into the first row, clearing the rest
// of it. The sheet must have at least len(headers) columns.
func (ws *Worksheet) SetHeaderRow(ctx context.Context, headers []string) error {
	if headers == nil {
		return nil
	}
	if len(headers) > ws.ColCount {
		return fmt.Errorf("%w: sheet is not large enough to fit %d columns, resize it first", ErrValidation, len(headers))
	}
	cells, err := ws.GetCells(ctx, feed.CellQuery{
		MinRow: 1, MaxRow: 1, MinCol: 1, MaxCol: ws.ColCount,
		ReturnEmpty: true,
	})
	if err != nil {
		return err
	}
	for _, c := range cells {
		var v string
		if i := c.Col - 1; i < len(headers) {
			v = headers[i]
		}
		c.SetValue(v)
	}
	return ws.BulkUpdateCells(ctx, cells)
}

// BulkUpdateCells saves all the cells in one batch request, and updates
// them from the response.
func (ws *Worksheet) BulkUpdateCells(ctx context.Context, cells []*Cell) error {
	if len(cells) == 0 {
		return nil
	}
	cellsURL := ws.Links[LinkCells]
	if cellsURL == "" {
		return fmt.Errorf("%w: worksheet %d has no cells link", ErrAccessDenied, ws.ID)
	}
	byID := make(map[string]*Cell, len(cells))
	var buf strings.Builder
	buf.WriteString(`<feed xmlns="` + atom.NSAtom + `" xmlns:batch="` + atom.NSBatch + `" xmlns:gs="` + atom.NSSheets + `">`)
	buf.WriteString("<id>" + atom.EscapeValue(cellsURL) + "</id>\n")
	for _, c := range cells {
		if _, ok := byID[c.BatchID]; ok {
			return fmt.Errorf("%w: cell %s is in the batch twice", ErrValidation, c.BatchID)
		}
		byID[c.BatchID] = c
		fmt.Fprintf(&buf, `<entry><batch:id>%s</batch:id><batch:operation type="update"/><id>%s</id>`+
			`<link rel="edit" type="application/atom+xml" href="%s"/>`+
			`<gs:cell row="%d" col="%d" inputValue="%s"/></entry>`+"\n",
			c.BatchID, atom.EscapeValue(cellsURL+"/"+c.BatchID),
			atom.EscapeValue(c.Links[atom.RelEdit]),
			c.Row, c.Col, atom.EscapeValue(c.inputValue()))
	}
	buf.WriteString("</feed>")

	if err := ws.doc.requireAuth(ctx); err != nil {
		return err
	}
	res, err := ws.doc.do(ctx, http.MethodPost, feed.URL(ws.Links[LinkBulkCells]), nil, buf.String())
	if err != nil {
		return err
	}
	if res.NoContent() {
		return nil
	}
	// check everything before touching any cell
	entries := res.Feed.All("entry")
	if len(entries) != len(cells) {
		return fmt.Errorf("%w: batch response has %d entries for %d cells", ErrProtocol, len(entries), len(cells))
	}
	matched := make([]*Cell, len(entries))
	for i, e := range entries {
		id := strings.TrimSpace(e.ChildText("batch:id"))
		c := byID[id]
		if c == nil {
			return fmt.Errorf("%w: batch response for unknown or repeated cell %q", ErrProtocol, id)
		}
		// each cell once
		delete(byID, id)
		if st := e.First("batch:status"); st != nil {
			code, _ := st.Attr("code")
			if n, err := strconv.Atoi(code); err == nil && n >= 400 {
				reason, _ := st.Attr("reason")
				return fmt.Errorf("%w: batch update of %s: %s %s", ErrProtocol, id, code, reason)
			}
		}
		if e.First("gs:cell") == nil {
			return fmt.Errorf("%w: batch response for %s has no cell", ErrProtocol, id)
		}
		matched[i] = c
	}
	for i, e := range entries {
		matched[i].update(e)
	}
	return nil
}
