// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/UNO-SOFT/gsfeed/feed"
	"github.com/UNO-SOFT/gsfeed/spreadsheet"
)

// Export writes the non-empty cells of the worksheet as a new sheet of w,
// the first row being the header. Numbers are written as numbers, and
// formulas with their computed values.
//
// w is not closed.
func (ws *Worksheet) Export(ctx context.Context, w spreadsheet.Writer) error {
	cells, err := ws.GetCells(ctx, feed.CellQuery{})
	if err != nil {
		return err
	}
	var rows, cols int
	for _, c := range cells {
		rows, cols = max(rows, c.Row), max(cols, c.Col)
	}
	grid := make([][]any, rows)
	for i := range grid {
		grid[i] = make([]any, cols)
	}
	for _, c := range cells {
		grid[c.Row-1][c.Col-1] = exportValue(c)
	}

	var columns []spreadsheet.Column
	if rows != 0 {
		columns = make([]spreadsheet.Column, cols)
		for i, v := range grid[0] {
			columns[i] = spreadsheet.Column{
				Name:   spreadsheet.FormatValue(v),
				Header: spreadsheet.Style{FontBold: true},
			}
		}
		grid = grid[1:]
	}
	sheet, err := w.NewSheet(ws.Title, columns)
	if err != nil {
		return fmt.Errorf("new sheet %q: %w", ws.Title, err)
	}
	for i, row := range grid {
		if err = sheet.AppendRow(row...); err != nil {
			err = fmt.Errorf("%q row %d: %w", ws.Title, i+2, err)
			break
		}
	}
	return errors.Join(err, sheet.Close())
}

func exportValue(c *Cell) any {
	switch c.Kind() {
	case Numeric:
		f, _ := c.NumericValue()
		return f
	case Formula:
		return spreadsheet.Formula{Expr: c.Formula(), Cached: c.Value()}
	case Literal:
		return c.Value()
	default:
		return nil
	}
}
