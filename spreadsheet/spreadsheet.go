// Copyright 2020, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package spreadsheet is the sink of worksheet exports: a Writer creates
// sheets, and rows are appended to the sheets.
package spreadsheet

import (
	"errors"
	"io"
)

// Writer writes the spreadsheet consisting of the sheets created
// with NewSheet. The write finishes when Close is called.
//
// The writer SHOULD allow writing to separate sheets concurrently,
// and document if it does not provide this functionality.
type Writer interface {
	io.Closer
	NewSheet(name string, cols []Column) (Sheet, error)
}

// Sheet should be Closed when finished.
//
// AppendRow accepts string, Number, Formula, float64, int, time.Time
// and fmt.Stringer values; nil is an empty cell.
type Sheet interface {
	io.Closer
	AppendRow(values ...any) error
}

// Style is a style for a column/row/cell.
type Style struct {
	// Format is the number format
	Format string
	// FontBold is true if the font is bold
	FontBold bool
}

// Column contains the Name of the column and header's style and column's style.
type Column struct {
	Name           string
	Header, Column Style
}

var (
	ErrTooManyRows   = errors.New("too many rows")
	ErrTooManySheets = errors.New("too many sheets")
)

// Number is a string that contains a number.
type Number string

// Formula is a cell formula, with the value the server computed for it.
type Formula struct {
	// Expr starts with "=".
	Expr string
	// Cached is the last computed value, may be empty.
	Cached string
}

func (f Formula) String() string {
	if f.Cached != "" {
		return f.Cached
	}
	return f.Expr
}
