// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/UNO-SOFT/gsfeed/spreadsheet"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	sh, err := w.NewSheet("Data", []spreadsheet.Column{
		{Name: "name", Header: spreadsheet.Style{FontBold: true}},
		{Name: "n"},
		{Name: "sum"},
		{Name: "day"},
	})
	require.NoError(t, err)
	require.NoError(t, sh.AppendRow("alpha", 1.5, spreadsheet.Formula{Expr: "=B2*2", Cached: "3"}, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, sh.AppendRow(nil, spreadsheet.Number("42"), spreadsheet.Formula{Expr: "=ROW()"}, time.Time{}))
	require.NoError(t, sh.Close())

	other, err := w.NewSheet("Other", nil)
	require.NoError(t, err)
	require.NoError(t, other.AppendRow("x", spreadsheet.Formula{Expr: `=IF(TRUE,"a","b")`, Cached: "a"}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second Close is a no-op")

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Data", "Other"}, f.GetSheetList())

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "n", "sum", "day"}, rows[0])
	assert.Equal(t, []string{"alpha", "1.5", "3", "2026-10-18"}, rows[1])
	assert.Equal(t, "42", rows[2][1])

	formula, err := f.GetCellFormula("Data", "C2")
	require.NoError(t, err)
	assert.Equal(t, "B2*2", formula)
	formula, err = f.GetCellFormula("Data", "C3")
	require.NoError(t, err)
	assert.Equal(t, "ROW()", formula)

	v, err := f.GetCellValue("Other", "A1")
	require.NoError(t, err)
	assert.Equal(t, "x", v, "no header, first row is data")
	formula, err = f.GetCellFormula("Other", "B1")
	require.NoError(t, err)
	assert.Equal(t, `IF(TRUE,"a","b")`, formula)
}
