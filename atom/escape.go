// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package atom

import (
	"strings"
	"unicode"
)

var (
	valueEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"\n", "&#10;",
		"\r", "&#13;",
	)
	valueUnescaper = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&apos;", "'",
		"&#39;", "'",
		"&#10;", "\n",
		"&#13;", "\r",
	)
)

// EscapeValue escapes s for use as element text or a double-quoted
// attribute value. Line breaks become character references, so they
// survive attribute value normalization.
func EscapeValue(s string) string { return valueEscaper.Replace(s) }

// UnescapeValue reverses EscapeValue. It also understands the apostrophe
// references servers put into error pages.
func UnescapeValue(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return valueUnescaper.Replace(s)
}

// SanitizeColumnName returns the element name the list feed uses for a
// column header: whitespace and underscores removed, lower cased.
func SanitizeColumnName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
}
