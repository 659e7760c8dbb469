// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/UNO-SOFT/gsfeed/atom"
)

// PendingValue is the value of a cell whose formula has not been saved yet.
const PendingValue = "*SAVE TO GET NEW VALUE*"

// ValueKind is the kind of the cell content.
type ValueKind uint8

const (
	Empty ValueKind = iota
	Literal
	Numeric
	Formula
)

func (k ValueKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Numeric:
		return "numeric"
	case Formula:
		return "formula"
	default:
		return "empty"
	}
}

// cellValue is one of
//   - Empty
//   - Literal(text)
//   - Numeric(text, number)
//   - Formula(formula, pending) with the computed text and number when not pending.
type cellValue struct {
	kind      ValueKind
	text      string
	formula   string
	number    float64
	hasNumber bool
	pending   bool
}

// Cell of a worksheet.
type Cell struct {
	doc         *Spreadsheet
	WorksheetID int
	ID          string
	// Row and Col are 1-based.
	Row, Col int
	// BatchID is "R{row}C{col}".
	BatchID string
	Links   atom.Links
	value   cellValue
}

func (s *Spreadsheet) newCell(worksheetID int, e *atom.Node) (*Cell, error) {
	gc := e.First("gs:cell")
	if gc == nil {
		return nil, fmt.Errorf("%w: cell entry without gs:cell", ErrProtocol)
	}
	c := Cell{doc: s, WorksheetID: worksheetID, ID: e.ChildText("id"), Links: e.Links()}
	var err error
	if c.Row, err = intAttr(gc, "row"); err != nil {
		return nil, err
	}
	if c.Col, err = intAttr(gc, "col"); err != nil {
		return nil, err
	}
	if c.Row < 1 || c.Col < 1 {
		return nil, fmt.Errorf("%w: cell %q at row %d col %d", ErrProtocol, c.ID, c.Row, c.Col)
	}
	c.BatchID = "R" + strconv.Itoa(c.Row) + "C" + strconv.Itoa(c.Col)
	c.update(e)
	return &c, nil
}

func intAttr(n *atom.Node, name string) (int, error) {
	s, _ := n.Attr(name)
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s attribute of %s: %w", ErrProtocol, name, n.Name, err)
	}
	return i, nil
}

// update sets the value from the gs:cell of the entry, as computed by the server.
func (c *Cell) update(e *atom.Node) {
	gc := e.First("gs:cell")
	v := cellValue{text: gc.Text}
	if n, ok := gc.Attr("numericValue"); ok {
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			v.number, v.hasNumber = f, true
		}
	}
	input, _ := gc.Attr("inputValue")
	switch {
	case strings.HasPrefix(input, "="):
		v.kind, v.formula = Formula, input
	case v.hasNumber:
		v.kind = Numeric
	case v.text != "":
		v.kind = Literal
	}
	if v.kind == Empty {
		v = cellValue{}
	}
	if links := e.Links(); len(links) != 0 {
		c.Links = links
	}
	c.value = v
}

// Kind of the content.
func (c *Cell) Kind() ValueKind { return c.value.kind }

// Value is the text of the cell: the computed value of a formula, or
// PendingValue for a formula not saved yet.
func (c *Cell) Value() string {
	if c.value.pending {
		return PendingValue
	}
	return c.value.text
}

// NumericValue returns the number of numeric cells and of formulas with
// a numeric result. It is never available for a pending formula.
func (c *Cell) NumericValue() (float64, bool) {
	if c.value.pending || !c.value.hasNumber {
		return 0, false
	}
	return c.value.number, true
}

// Formula returns the formula, empty if the cell holds no formula.
func (c *Cell) Formula() string { return c.value.formula }

// SetValue sets the content: "" clears the cell, a value starting with
// "=" is a formula, a number is numeric, anything else is literal.
func (c *Cell) SetValue(s string) {
	switch {
	case s == "":
		c.Clear()
	case strings.HasPrefix(s, "="):
		c.value = cellValue{kind: Formula, formula: s, pending: true}
	default:
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			c.value = cellValue{kind: Numeric, text: s, number: f, hasNumber: true}
		} else {
			c.value = cellValue{kind: Literal, text: s}
		}
	}
}

// SetFormula sets a formula. Its value is PendingValue until saved.
// An empty formula clears the cell.
func (c *Cell) SetFormula(formula string) error {
	if formula == "" {
		c.Clear()
		return nil
	}
	if !strings.HasPrefix(formula, "=") {
		return fmt.Errorf("%w: formulas must start with \"=\": %q", ErrValidation, formula)
	}
	c.value = cellValue{kind: Formula, formula: formula, pending: true}
	return nil
}

// SetNumericValue sets a number.
func (c *Cell) SetNumericValue(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: invalid numeric value %v", ErrValidation, f)
	}
	c.value = cellValue{kind: Numeric, text: strconv.FormatFloat(f, 'f', -1, 64), number: f, hasNumber: true}
	return nil
}

// Clear the cell locally.
func (c *Cell) Clear() { c.value = cellValue{} }

func (c *Cell) inputValue() string {
	if c.value.kind == Formula {
		return c.value.formula
	}
	return c.value.text
}

// Save writes the cell, and reloads its value from the response.
func (c *Cell) Save(ctx context.Context) error {
	href := c.Links[atom.RelEdit]
	body := `<entry xmlns="` + atom.NSAtom + `" xmlns:gs="` + atom.NSSheets + `">` +
		"<id>" + atom.EscapeValue(c.ID) + "</id>" +
		`<link rel="edit" type="application/atom+xml" href="` + atom.EscapeValue(href) + `"/>` +
		`<gs:cell row="` + strconv.Itoa(c.Row) + `" col="` + strconv.Itoa(c.Col) +
		`" inputValue="` + atom.EscapeValue(c.inputValue()) + `"/></entry>`
	res, err := c.doc.edit(ctx, http.MethodPut, c.Links, body)
	if err != nil {
		return err
	}
	if res.NoContent() || res.Feed.First("gs:cell") == nil {
		return fmt.Errorf("%w: no cell in the response of saving %s", ErrProtocol, c.BatchID)
	}
	c.update(res.Feed)
	return nil
}

// SetValueAndSave is SetValue followed by Save.
func (c *Cell) SetValueAndSave(ctx context.Context, s string) error {
	c.SetValue(s)
	return c.Save(ctx)
}

// Delete clears the cell on the server.
func (c *Cell) Delete(ctx context.Context) error { return c.SetValueAndSave(ctx, "") }
