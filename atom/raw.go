// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package atom

import (
	"regexp"
	"sort"
	"strings"
)

var rxEntry = regexp.MustCompile(`(?s)<entry(?:\s[^>]*)?>.*?</entry>`)

// Entries returns the raw text of each <entry> element of the document,
// in document order.
func Entries(raw string) []string {
	return rxEntry.FindAllString(raw, -1)
}

// NamespaceDecls returns the namespace declarations of the element.
func (n *Node) NamespaceDecls() map[string]string {
	decls := make(map[string]string)
	if n == nil {
		return decls
	}
	for k, v := range n.Attrs {
		if k == "xmlns" || strings.HasPrefix(k, "xmlns:") {
			decls[k] = v
		}
	}
	return decls
}

// InjectNamespaces adds the given attributes (usually namespace
// declarations) to the opening tag of the raw entry, skipping the ones
// already declared there.
func InjectNamespaces(entry string, attrs map[string]string) string {
	if !strings.HasPrefix(entry, "<entry") || len(attrs) == 0 {
		return entry
	}
	end := strings.IndexByte(entry, '>')
	if end < 0 {
		return entry
	}
	open := entry[len("<entry"):end]
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if !hasAttr(open, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return entry
	}
	sort.Strings(keys)
	var buf strings.Builder
	buf.Grow(len(entry) + 64*len(keys))
	buf.WriteString("<entry")
	for _, k := range keys {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteString(`="`)
		buf.WriteString(EscapeValue(attrs[k]))
		buf.WriteByte('"')
	}
	buf.WriteString(entry[len("<entry"):])
	return buf.String()
}

func hasAttr(openTag, name string) bool {
	return regexp.MustCompile(`\s` + regexp.QuoteMeta(name) + `\s*=`).MatchString(openTag)
}

// PatchColumn replaces the value of the first <gsx:column> element of the
// raw entry with the escaped value, leaving every other byte untouched.
// It reports whether the column was found.
func PatchColumn(entry, column, value string) (string, bool) {
	name := "gsx:" + SanitizeColumnName(column)
	q := regexp.QuoteMeta(name)
	rx := regexp.MustCompile(`(?s)<` + q + `>.*?</` + q + `>|<` + q + `\s*/>`)
	loc := rx.FindStringIndex(entry)
	if loc == nil {
		return entry, false
	}
	return entry[:loc[0]] + "<" + name + ">" + EscapeValue(value) + "</" + name + ">" + entry[loc[1]:], true
}
