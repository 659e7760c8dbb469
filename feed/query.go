// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"net/url"
	"strconv"
	"strings"
)

// RowQuery holds the list feed options.
type RowQuery struct {
	// Offset is the 1-based index of the first row returned.
	// Start is an alias, used when Offset is zero.
	Offset, Start int
	// Limit is the maximal number of rows returned.
	// Num is an alias, used when Limit is zero.
	Limit, Num int
	// OrderBy is "column:<name>" or a column name.
	OrderBy string
	Reverse bool
	// Query is a structured query, like "age > 25 and name = John".
	Query string
	// Extra parameters are sent as is.
	Extra map[string]string
}

// Params returns the request parameters.
func (q RowQuery) Params() map[string]string {
	params := copyExtra(q.Extra)
	if n := firstNonZero(q.Offset, q.Start); n != 0 {
		params["start-index"] = strconv.Itoa(n)
	}
	if n := firstNonZero(q.Limit, q.Num); n != 0 {
		params["max-results"] = strconv.Itoa(n)
	}
	if q.OrderBy != "" {
		params["orderby"] = q.OrderBy
	}
	if q.Reverse {
		params["reverse"] = "true"
	}
	if q.Query != "" {
		params["sq"] = q.Query
	}
	return params
}

// CellQuery holds the cells feed options. Zero bounds are not sent.
type CellQuery struct {
	MinRow, MaxRow int
	MinCol, MaxCol int
	// ReturnEmpty asks for the empty cells of the range, too.
	ReturnEmpty bool
	Extra       map[string]string
}

// Params returns the request parameters.
func (q CellQuery) Params() map[string]string {
	params := copyExtra(q.Extra)
	for _, p := range []struct {
		k string
		v int
	}{{"min-row", q.MinRow}, {"max-row", q.MaxRow}, {"min-col", q.MinCol}, {"max-col", q.MaxCol}} {
		if p.v != 0 {
			params[p.k] = strconv.Itoa(p.v)
		}
	}
	if q.ReturnEmpty {
		params["return-empty"] = "true"
	}
	return params
}

var queryUnescaper = strings.NewReplacer("%3E", ">", "%3D", "=", "%3C", "<")

// EncodeQuery encodes params as a query string (without the leading '?'),
// sorted by key.
//
// The structured query grammar needs '>', '=' and '<' literally,
// so those are not percent-encoded.
func EncodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	vals := make(url.Values, len(params))
	for k, v := range params {
		vals.Set(k, v)
	}
	return queryUnescaper.Replace(vals.Encode())
}

func copyExtra(m map[string]string) map[string]string {
	params := make(map[string]string, len(m)+4)
	for k, v := range m {
		params[k] = v
	}
	return params
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
