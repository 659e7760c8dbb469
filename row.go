// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/UNO-SOFT/gsfeed/atom"
)

// Row of the list feed.
//
// The columns are named by the sanitized header row (see
// atom.SanitizeColumnName), and are kept apart from the entry's own
// fields, so a column may be called "id" or "title".
type Row struct {
	doc     *Spreadsheet
	ID      string
	Title   string
	Content string
	Updated time.Time
	Links   atom.Links

	columns []string
	// nil is an empty (null) column
	values map[string]*string
	dirty  map[string]struct{}
	// raw is the <entry> as received, with the namespaces declared.
	raw string
}

func (s *Spreadsheet) newRow(e *atom.Node, raw string) *Row {
	r := Row{doc: s}
	r.update(e, raw)
	return &r
}

func (r *Row) update(e *atom.Node, raw string) {
	r.ID, r.Title, r.Content = e.ChildText("id"), e.ChildText("title"), e.ChildText("content")
	r.Updated, _ = time.Parse(time.RFC3339Nano, e.ChildText("updated"))
	r.Links = e.Links()
	r.columns, r.values, r.dirty, r.raw = nil, make(map[string]*string), nil, raw
	for _, c := range e.Children {
		name, ok := strings.CutPrefix(c.Name, "gsx:")
		if !ok {
			continue
		}
		if _, seen := r.values[name]; seen {
			continue
		}
		r.columns = append(r.columns, name)
		if c.Empty() {
			r.values[name] = nil
		} else {
			v := c.Text
			r.values[name] = &v
		}
	}
}

// Columns returns the column names in document order.
func (r *Row) Columns() []string { return append([]string(nil), r.columns...) }

// Get returns the value of the column, and whether it has a value.
func (r *Row) Get(column string) (string, bool) {
	if v := r.values[atom.SanitizeColumnName(column)]; v != nil {
		return *v, true
	}
	return "", false
}

// Set the value of the column. Only the columns the row was read with
// are saved.
func (r *Row) Set(column, value string) {
	name := atom.SanitizeColumnName(column)
	if _, ok := r.values[name]; !ok {
		r.columns = append(r.columns, name)
	}
	r.values[name] = &value
	if r.dirty == nil {
		r.dirty = make(map[string]struct{})
	}
	r.dirty[name] = struct{}{}
}

// Values returns the columns with a value.
func (r *Row) Values() map[string]string {
	m := make(map[string]string, len(r.values))
	for k, v := range r.values {
		if v != nil {
			m[k] = *v
		}
	}
	return m
}

// Save writes the changed columns back.
//
// The edit endpoint is strict about the XML it receives, so the entry is
// sent back as it was read, with only the changed column values replaced.
func (r *Row) Save(ctx context.Context) error {
	body := atom.InjectNamespaces(r.raw, map[string]string{
		"xmlns":     atom.NSAtom,
		"xmlns:gsx": atom.NSExtended,
	})
	names := make([]string, 0, len(r.dirty))
	for name := range r.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var ok bool
		if body, ok = atom.PatchColumn(body, name, *r.values[name]); !ok {
			r.doc.logger.Warn("column not in row, not saved", "row", r.ID, "column", name)
		}
	}
	res, err := r.doc.edit(ctx, http.MethodPut, r.Links, body)
	if err != nil {
		return err
	}
	if res.NoContent() {
		r.dirty = nil
		return nil
	}
	raws := atom.Entries(res.Raw)
	if len(raws) == 0 {
		return fmt.Errorf("%w: no entry in the response of saving row %s", ErrProtocol, r.ID)
	}
	r.update(res.Feed, raws[0])
	return nil
}

// Delete the row.
func (r *Row) Delete(ctx context.Context) error {
	_, err := r.doc.edit(ctx, http.MethodDelete, r.Links, "")
	return err
}

func rowEntry(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf strings.Builder
	buf.WriteString(`<entry xmlns="` + atom.NSAtom + `" xmlns:gsx="` + atom.NSExtended + `">` + "\n")
	for _, k := range keys {
		name := "gsx:" + atom.SanitizeColumnName(k)
		buf.WriteString("<" + name + ">" + atom.EscapeValue(values[k]) + "</" + name + ">\n")
	}
	buf.WriteString("</entry>")
	return buf.String()
}
