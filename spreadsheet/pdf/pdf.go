// Copyright 2021, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package pdf writes sheets as PDF tables.
package pdf

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/UNO-SOFT/gsfeed/spreadsheet"
)

var _ = (spreadsheet.Writer)((*PDFWriter)(nil))

// gridBudget is the grid size a sheet's columns share.
const gridBudget = 96

// Options of the PDF writer.
type Options struct {
	Landscape bool
	// FontSize of the content, 8 by default. Headers are 1.375 times bigger.
	FontSize float64
	// AlternateColor is the background of every second row, none if nil.
	AlternateColor *props.Color
}

// PDFWriter renders every sheet as a table, one after the other.
//
// This writer collects everything in memory and renders on Close.
type PDFWriter struct {
	w      io.Writer
	opts   Options
	sheets []*PDFSheet
	mu     sync.Mutex
}

type PDFSheet struct {
	Name    string
	headers []string
	rows    [][]string
	mu      sync.Mutex
}

// NewWriter returns a new spreadsheet.Writer.
func NewWriter(w io.Writer, opts Options) *PDFWriter {
	if opts.FontSize <= 0 {
		opts.FontSize = 8
	}
	return &PDFWriter{w: w, opts: opts}
}

func (pw *PDFWriter) NewSheet(name string, columns []spreadsheet.Column) (spreadsheet.Sheet, error) {
	sh := PDFSheet{Name: name}
	for _, c := range columns {
		sh.headers = append(sh.headers, c.Name)
	}
	pw.mu.Lock()
	pw.sheets = append(pw.sheets, &sh)
	pw.mu.Unlock()
	return &sh, nil
}

func (sh *PDFSheet) Close() error { return nil }
func (sh *PDFSheet) AppendRow(values ...any) error {
	rec := make([]string, len(values))
	for i, v := range values {
		rec[i] = spreadsheet.FormatValue(v)
	}
	sh.mu.Lock()
	sh.rows = append(sh.rows, rec)
	sh.mu.Unlock()
	return nil
}

func (pw *PDFWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.w == nil {
		return nil
	}
	w := pw.w
	pw.w = nil

	grids := make([][]int, len(pw.sheets))
	maxGrid := gridBudget
	for i, sh := range pw.sheets {
		grids[i] = sh.gridSizes()
		var sum int
		for _, n := range grids[i] {
			sum += n
		}
		maxGrid = max(maxGrid, sum)
	}
	orient := orientation.Vertical
	if pw.opts.Landscape {
		orient = orientation.Horizontal
	}
	m := maroto.New(config.NewBuilder().
		WithOrientation(orient).
		WithMaxGridSize(maxGrid).
		Build())

	size := pw.opts.FontSize
	header := props.Text{Family: fontfamily.Arial, Style: fontstyle.Bold, Size: size * 1.375, Align: align.Center}
	content := props.Text{Family: fontfamily.Courier, Style: fontstyle.Normal, Size: size, Align: align.Left}
	title := props.Text{Family: fontfamily.Arial, Style: fontstyle.Bold, Size: size * 2}
	for i, sh := range pw.sheets {
		if len(pw.sheets) > 1 {
			m.AddRows(row.New(size*1.2).Add(text.NewCol(maxGrid, sh.Name, title)))
		}
		if len(sh.headers) != 0 {
			m.AddRows(newRow(size*0.75, grids[i], sh.headers, header))
		}
		for j, rec := range sh.rows {
			r := newRow(size*0.6, grids[i], rec, content)
			if j%2 == 1 && pw.opts.AlternateColor != nil {
				r = r.WithStyle(&props.Cell{BackgroundColor: pw.opts.AlternateColor})
			}
			m.AddRows(r)
		}
	}
	doc, err := m.Generate()
	if err != nil {
		return fmt.Errorf("generate pdf: %w", err)
	}
	_, err = w.Write(doc.GetBytes())
	return err
}

func newRow(height float64, grid []int, values []string, style props.Text) core.Row {
	cols := make([]core.Col, len(grid))
	for i, size := range grid {
		var s string
		if i < len(values) {
			s = values[i]
		}
		cols[i] = text.NewCol(size, s, style)
	}
	return row.New(height).Add(cols...)
}

// gridSizes shares gridBudget among the columns, proportional to their
// average width, at least 1 each.
func (sh *PDFSheet) gridSizes() []int {
	n := len(sh.headers)
	for _, rec := range sh.rows {
		n = max(n, len(rec))
	}
	widths := make([]float64, n)
	var total float64
	add := func(rec []string) {
		for i, s := range rec {
			w := float64(utf8.RuneCountInString(s))
			widths[i] += w
			total += w
		}
	}
	add(sh.headers)
	for _, rec := range sh.rows {
		add(rec)
	}
	sizes := make([]int, n)
	for i, w := range widths {
		if total > 0 {
			sizes[i] = int(math.Floor(w / total * gridBudget))
		}
		if sizes[i] == 0 {
			sizes[i] = 1
		}
	}
	return sizes
}

// ParseColor parses a "rrggbb" hex color.
func ParseColor(s string) (props.Color, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return props.Color{}, fmt.Errorf("%q: %w", s, err)
	}
	if len(b) != 3 {
		return props.Color{}, fmt.Errorf("%q: color must be 3 bytes", s)
	}
	return props.Color{Red: int(b[0]), Green: int(b[1]), Blue: int(b[2])}, nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c props.Color) string {
	return fmt.Sprintf("%02x%02x%02x", c.Red, c.Green, c.Blue)
}
