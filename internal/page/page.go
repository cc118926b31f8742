// Package page wraps a host document as an in-memory queryable, mutable tree.
// The scan pipeline only sees this surface, so tests can drive it with
// literal HTML.
package page

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is one parsed host page.
type Document struct {
	doc *goquery.Document
}

// Parse builds a document from an HTML stream.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// ParseString builds a document from raw HTML text.
func ParseString(raw string) (*Document, error) {
	return Parse(strings.NewReader(raw))
}

// QueryAll returns every element matching the CSS selector, in document
// order.
func (d *Document) QueryAll(selector string) []*Element {
	return elements(d.doc.Find(selector))
}

// Render serializes the document, badges included, back to HTML.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	for _, node := range d.doc.Nodes {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Element is one node of the tree. The underlying node pointer is stable for
// the document's lifetime and serves as the element's identity.
type Element struct {
	sel *goquery.Selection
}

// Find returns matching descendants in document order.
func (e *Element) Find(selector string) []*Element {
	return elements(e.sel.Find(selector))
}

// First returns the first matching descendant, or nil.
func (e *Element) First(selector string) *Element {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	return &Element{sel: found}
}

// Has reports whether any descendant matches the selector.
func (e *Element) Has(selector string) bool {
	return e.sel.Find(selector).Length() > 0
}

// Text returns the concatenated text content of the subtree.
func (e *Element) Text() string {
	return e.sel.Text()
}

// Parent returns the parent element, or nil at the tree root.
func (e *Element) Parent() *Element {
	parent := e.sel.Parent()
	if parent.Length() == 0 {
		return nil
	}
	return &Element{sel: parent}
}

// InsertAfterHTML parses the fragment and inserts it as this element's next
// sibling.
func (e *Element) InsertAfterHTML(fragment string) {
	e.sel.AfterHtml(fragment)
}

// Node exposes the underlying tree node for identity comparisons.
func (e *Element) Node() *html.Node {
	if len(e.sel.Nodes) == 0 {
		return nil
	}
	return e.sel.Nodes[0]
}

func elements(sel *goquery.Selection) []*Element {
	out := make([]*Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out
}
