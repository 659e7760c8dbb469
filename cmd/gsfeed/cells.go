// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/xuri/excelize/v2"

	"github.com/UNO-SOFT/gsfeed"
	"github.com/UNO-SOFT/gsfeed/feed"
	"github.com/UNO-SOFT/gsfeed/spreadsheet"
)

func (a *app) rowsCmd() *ffcli.Command {
	fs := flag.NewFlagSet("rows", flag.ContinueOnError)
	var q feed.RowQuery
	fs.StringVar(&q.Query, "q", "", `structured query, such as "age > 25 and name = Joe"`)
	fs.IntVar(&q.Offset, "offset", 0, "1-based index of the first row")
	fs.IntVar(&q.Limit, "limit", 0, "maximal number of rows")
	fs.StringVar(&q.OrderBy, "orderby", "", "order by this column")
	fs.BoolVar(&q.Reverse, "reverse", false, "reverse the order")
	flagEnc := fs.String("charset", spreadsheet.EncName, "output charset")
	flagOut := fs.String("o", "-", "output CSV file (.gz is compressed)")
	return &ffcli.Command{Name: "rows", FlagSet: fs,
		ShortUsage: "rows [flags] <worksheet>",
		ShortHelp:  "print the rows of a worksheet as CSV",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			if q.OrderBy != "" && !strings.HasPrefix(q.OrderBy, "column:") {
				q.OrderBy = "column:" + q.OrderBy
			}
			ws, err := a.worksheet(ctx, args[0])
			if err != nil {
				return err
			}
			rows, err := ws.GetRows(ctx, q)
			if err != nil {
				return err
			}
			logger.Debug("rows", "worksheet", ws.Title, "count", len(rows))
			fh, err := spreadsheet.Create(*flagOut)
			if err != nil {
				return err
			}
			defer fh.Close()
			w, err := spreadsheet.NewCSVWriter(fh, *flagEnc)
			if err != nil {
				return err
			}
			if err = writeRows(w, ws.Title, rows); err != nil {
				return err
			}
			if err = w.Close(); err != nil {
				return err
			}
			return fh.Close()
		},
	}
}

// rowColumns returns the union of the columns of the rows, in order of appearance.
func rowColumns(rows []*gsfeed.Row) []string {
	var columns []string
	seen := make(map[string]struct{})
	for _, r := range rows {
		for _, c := range r.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				columns = append(columns, c)
			}
		}
	}
	return columns
}

func writeRows(w spreadsheet.Writer, name string, rows []*gsfeed.Row) error {
	names := rowColumns(rows)
	columns := make([]spreadsheet.Column, len(names))
	for i, nm := range names {
		columns[i] = spreadsheet.Column{Name: nm, Header: spreadsheet.Style{FontBold: true}}
	}
	sheet, err := w.NewSheet(name, columns)
	if err != nil {
		return err
	}
	values := make([]any, len(names))
	for _, r := range rows {
		for i, nm := range names {
			if v, ok := r.Get(nm); ok {
				values[i] = v
			} else {
				values[i] = nil
			}
		}
		if err := sheet.AppendRow(values...); err != nil {
			return err
		}
	}
	return sheet.Close()
}

func (a *app) cellsCmd() *ffcli.Command {
	fs := flag.NewFlagSet("cells", flag.ContinueOnError)
	var q feed.CellQuery
	fs.IntVar(&q.MinRow, "min-row", 0, "first row")
	fs.IntVar(&q.MaxRow, "max-row", 0, "last row")
	fs.IntVar(&q.MinCol, "min-col", 0, "first column")
	fs.IntVar(&q.MaxCol, "max-col", 0, "last column")
	fs.BoolVar(&q.ReturnEmpty, "empty", false, "list the empty cells, too")
	return &ffcli.Command{Name: "cells", FlagSet: fs,
		ShortUsage: "cells [flags] <worksheet>",
		ShortHelp:  "list the cells of a worksheet",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			ws, err := a.worksheet(ctx, args[0])
			if err != nil {
				return err
			}
			cells, err := ws.GetCells(ctx, q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
			fmt.Fprintln(tw, "CELL\tKIND\tVALUE\tFORMULA")
			for _, c := range cells {
				name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
				if err != nil {
					name = c.BatchID
				}
				fmt.Fprintf(tw, "%s\t%s\t%q\t%s\n", name, c.Kind(), c.Value(), c.Formula())
			}
			return tw.Flush()
		},
	}
}

type assignment struct {
	Row, Col int
	Value    string
}

// parseAssignments parses "A1=value" arguments. The value may be a formula:
// "C1==A1+B1".
func parseAssignments(args []string) ([]assignment, feed.CellQuery, error) {
	var q feed.CellQuery
	as := make([]assignment, 0, len(args))
	for _, arg := range args {
		ref, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, q, fmt.Errorf("%q: want CELL=VALUE", arg)
		}
		col, row, err := excelize.CellNameToCoordinates(ref)
		if err != nil {
			return nil, q, fmt.Errorf("%q: %w", arg, err)
		}
		as = append(as, assignment{Row: row, Col: col, Value: value})
		if len(as) == 1 {
			q = feed.CellQuery{MinRow: row, MaxRow: row, MinCol: col, MaxCol: col}
			continue
		}
		q.MinRow, q.MaxRow = min(q.MinRow, row), max(q.MaxRow, row)
		q.MinCol, q.MaxCol = min(q.MinCol, col), max(q.MaxCol, col)
	}
	q.ReturnEmpty = true
	return as, q, nil
}

func (a *app) setCmd() *ffcli.Command {
	return &ffcli.Command{Name: "set",
		ShortUsage: "set <worksheet> CELL=VALUE...",
		ShortHelp:  "set cell values in one batch",
		LongHelp:   `A VALUE starting with "=" is a formula, so "C1==A1+B1" sets C1 to "=A1+B1".`,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return flag.ErrHelp
			}
			as, q, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			ws, err := a.worksheet(ctx, args[0])
			if err != nil {
				return err
			}
			cells, err := ws.GetCells(ctx, q)
			if err != nil {
				return err
			}
			byPos := make(map[[2]int]*gsfeed.Cell, len(cells))
			for _, c := range cells {
				byPos[[2]int{c.Row, c.Col}] = c
			}
			changed := make([]*gsfeed.Cell, 0, len(as))
			for _, s := range as {
				c := byPos[[2]int{s.Row, s.Col}]
				if c == nil {
					return fmt.Errorf("no cell at row %d col %d of %q", s.Row, s.Col, ws.Title)
				}
				c.SetValue(s.Value)
				changed = append(changed, c)
			}
			if err := ws.BulkUpdateCells(ctx, changed); err != nil {
				return err
			}
			for _, c := range changed {
				fmt.Printf("%s\t%s\n", c.BatchID, c.Value())
			}
			return nil
		},
	}
}
