// Package dompage provides an in-memory implementation of the selector
// page surfaces over a parsed HTML document. The browser session uses Doc
// to resolve clicked elements against an outerHTML snapshot; tests use the
// scriptable Page to drive the engine without a browser.
package dompage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/jobclip/selector"
)

// ErrNotFound is returned when a ref or locator matches no element.
var ErrNotFound = errors.New("dompage: element not found")

// Doc is a parsed HTML document addressable by element refs.
type Doc struct {
	doc  *html.Node // document node
	root *html.Node // root element (usually <html>)
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Doc, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dompage: parse: %w", err)
	}
	var root *html.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			root = c
			break
		}
	}
	if root == nil {
		return nil, errors.New("dompage: document has no root element")
	}
	return &Doc{doc: doc, root: root}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Doc, error) {
	return Parse(strings.NewReader(s))
}

// ElementAt resolves a ref (slash-separated element-child indices from
// the root element) against this document.
func (d *Doc) ElementAt(ref selector.ElementRef) (selector.Element, error) {
	n := d.root
	if ref != "" {
		for _, part := range strings.Split(string(ref), "/") {
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("dompage: bad ref %q", ref)
			}
			n = elementChild(n, idx)
			if n == nil {
				return nil, fmt.Errorf("%w: ref %q", ErrNotFound, ref)
			}
		}
	}
	return &element{n: n}, nil
}

// RefByID returns the ref of the element carrying the given id.
func (d *Doc) RefByID(id string) (selector.ElementRef, bool) {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	if found == nil {
		return "", false
	}
	return refOf(found), true
}

// RefOf returns the ref of an element previously produced by this package.
func RefOf(el selector.Element) (selector.ElementRef, bool) {
	e, ok := el.(*element)
	if !ok {
		return "", false
	}
	return refOf(e.n), true
}

// refOf computes a node's ref by walking to the root element.
func refOf(n *html.Node) selector.ElementRef {
	var idxs []string
	for cur := n; cur.Parent != nil && cur.Parent.Type == html.ElementNode; cur = cur.Parent {
		i := 0
		for sib := cur.Parent.FirstChild; sib != cur; sib = sib.NextSibling {
			if sib.Type == html.ElementNode {
				i++
			}
		}
		idxs = append(idxs, strconv.Itoa(i))
	}
	for i, j := 0, len(idxs)-1; i < j; i, j = i+1, j-1 {
		idxs[i], idxs[j] = idxs[j], idxs[i]
	}
	return selector.ElementRef(strings.Join(idxs, "/"))
}

// elementChild returns the idx-th element child of n, or nil.
func elementChild(n *html.Node, idx int) *html.Node {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if i == idx {
			return c
		}
		i++
	}
	return nil
}

// element implements selector.Element over an *html.Node.
type element struct {
	n *html.Node
}

func (e *element) Tag() string { return e.n.Data }

func (e *element) ID() string { return attr(e.n, "id") }

func (e *element) Classes() []string {
	return strings.Fields(attr(e.n, "class"))
}

func (e *element) Parent() selector.Element {
	p := e.n.Parent
	for p != nil && p.Type != html.ElementNode {
		p = p.Parent
	}
	if p == nil {
		return nil
	}
	return &element{n: p}
}

func (e *element) TagIndex() (pos, total int) {
	if e.n.Parent == nil {
		return 1, 1
	}
	pos = 0
	for sib := e.n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || sib.Data != e.n.Data {
			continue
		}
		total++
		if sib == e.n {
			pos = total
		}
	}
	if total == 0 {
		return 1, 1
	}
	return pos, total
}

func (e *element) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.n)
	return b.String()
}

func (e *element) HTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.n); err != nil {
		return ""
	}
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
