// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package atom decodes and patches the Atom flavoured XML of the spreadsheet
// feeds.
//
// Parse turns a document into a Node tree where every element keeps its
// qualified name ("gs:cell", "gsx:name", "batch:id"), attributes, text
// content and children. Repeated elements are never collapsed: All always
// returns a slice, even for a single (or missing) occurrence.
//
// Row edits do not go through the tree: the feed's edit endpoint is strict
// about the exact XML it receives back, so rows keep their raw <entry> text
// and are patched in place with PatchColumn.
package atom

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespaces used by the spreadsheet feeds.
const (
	NSAtom       = "http://www.w3.org/2005/Atom"
	NSSheets     = "http://schemas.google.com/spreadsheets/2006"
	NSExtended   = "http://schemas.google.com/spreadsheets/2006/extended"
	NSBatch      = "http://schemas.google.com/gdata/batch"
	NSData       = "http://schemas.google.com/g/2005"
	NSApp        = "http://www.w3.org/2007/app"
	NSOpenSearch = "http://a9.com/-/spec/opensearchrss/1.0/"
)

// wellKnown maps namespace URIs to the prefix the feeds use for them,
// for documents that use a namespace without declaring it in scope.
var wellKnown = map[string]string{
	NSAtom:       "",
	NSSheets:     "gs",
	NSExtended:   "gsx",
	NSBatch:      "batch",
	NSData:       "gd",
	NSApp:        "app",
	NSOpenSearch: "openSearch",
}

// ErrMalformed is returned by Parse for documents that are not well-formed.
var ErrMalformed = errors.New("malformed feed XML")

// Node is an element of a parsed feed.
type Node struct {
	// Name is the qualified name, with the prefix the document used.
	Name string
	// Attrs holds the attributes by qualified name, namespace
	// declarations ("xmlns", "xmlns:gs") included.
	Attrs map[string]string
	// Text is the character data of the element. Whitespace-only text of
	// elements with children is dropped.
	Text     string
	Children []*Node
}

// All returns the children named name, in document order.
// It is safe to call on a nil Node.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var nodes []*Node
	for _, c := range n.Children {
		if c.Name == name {
			nodes = append(nodes, c)
		}
	}
	return nodes
}

// First returns the first child named name, or nil.
func (n *Node) First(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the text of the first child named name.
func (n *Node) ChildText(name string) string {
	if c := n.First(name); c != nil {
		return c.Text
	}
	return ""
}

// Attr returns the named attribute and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// Empty reports whether the element has neither text, attributes nor children.
func (n *Node) Empty() bool {
	return n == nil || (n.Text == "" && len(n.Attrs) == 0 && len(n.Children) == 0)
}

// Links returns the link table of the element: rel -> href of every <link>.
func (n *Node) Links() Links {
	links := make(Links)
	for _, l := range n.All("link") {
		rel, _ := l.Attr("rel")
		href, _ := l.Attr("href")
		if rel != "" {
			links[rel] = href
		}
	}
	return links
}

// Links maps a link relation to its URL.
type Links map[string]string

// Link relations.
const (
	RelEdit      = "edit"
	RelSelf      = "self"
	RelCellsFeed = NSSheets + "#cellsfeed"
	RelListFeed  = NSSheets + "#listfeed"
)

// Parse parses an Atom feed or entry and returns its root element.
func Parse(b []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var stack []*Node
	scopes := []map[string]string{{}}
	var root *Node
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			scope, copied := scopes[len(scopes)-1], false
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					if !copied {
						scope, copied = cloneMap(scope), true
					}
					if a.Name.Space == "xmlns" {
						scope[a.Value] = a.Name.Local
					} else {
						scope[a.Value] = ""
					}
				}
			}
			scopes = append(scopes, scope)
			n := &Node{Name: qualify(scope, t.Name)}
			if len(t.Attr) != 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[qualifyAttr(scope, a.Name)] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			n := stack[len(stack)-1]
			if len(n.Children) != 0 && strings.TrimSpace(n.Text) == "" {
				n.Text = ""
			}
			stack = stack[:len(stack)-1]
			scopes = scopes[:len(scopes)-1]
		case xml.CharData:
			if len(stack) != 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unclosed <%s>", ErrMalformed, stack[len(stack)-1].Name)
	}
	return root, nil
}

func qualify(scope map[string]string, name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	prefix, ok := scope[name.Space]
	if !ok {
		if prefix, ok = wellKnown[name.Space]; !ok {
			// undeclared prefix: encoding/xml leaves it in Space
			prefix = name.Space
		}
	}
	if prefix == "" {
		return name.Local
	}
	return prefix + ":" + name.Local
}

func qualifyAttr(scope map[string]string, name xml.Name) string {
	switch {
	case name.Space == "xmlns":
		return "xmlns:" + name.Local
	case name.Space == "":
		return name.Local
	}
	if prefix, ok := scope[name.Space]; ok && prefix != "" {
		return prefix + ":" + name.Local
	}
	if prefix, ok := wellKnown[name.Space]; ok && prefix != "" {
		return prefix + ":" + name.Local
	}
	return name.Space + ":" + name.Local
}

func cloneMap(m map[string]string) map[string]string {
	c := make(map[string]string, len(m)+2)
	for k, v := range m {
		c[k] = v
	}
	return c
}
