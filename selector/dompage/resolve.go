package dompage

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/jobclip/selector"
)

// Resolve re-resolves a locator produced by selector.Locator against this
// document. The grammar is the locator's own output: descriptors of the
// form tag(#id)?(.class)*(:nth-of-type(k))? joined by " > ". The first
// descriptor matches anywhere in the document (a locator may begin at an
// id element partway down the tree); each following descriptor matches
// direct element children only.
//
// The first match in document order wins. ErrNotFound when nothing matches.
func (d *Doc) Resolve(locator string) (selector.Element, error) {
	steps, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}

	candidates := matchAnywhere(d.doc, steps[0])
	for _, step := range steps[1:] {
		var next []*html.Node
		for _, parent := range candidates {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && matches(c, step) {
					next = append(next, c)
				}
			}
		}
		candidates = next
		if len(candidates) == 0 {
			break
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: locator %q", ErrNotFound, locator)
	}
	return &element{n: candidates[0]}, nil
}

// descriptor is one parsed locator step.
type descriptor struct {
	tag     string
	id      string
	classes []string
	nth     int // 0 = no qualifier
}

func parseLocator(locator string) ([]descriptor, error) {
	raw := strings.Split(locator, " > ")
	if locator == "" {
		return nil, fmt.Errorf("dompage: empty locator")
	}
	steps := make([]descriptor, 0, len(raw))
	for _, s := range raw {
		step, err := parseDescriptor(s)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseDescriptor parses "tag", "tag#id", "tag.c1.c2", and the
// ":nth-of-type(k)" suffix.
func parseDescriptor(s string) (descriptor, error) {
	var d descriptor

	if idx := strings.Index(s, ":nth-of-type("); idx >= 0 {
		num := strings.TrimSuffix(s[idx+len(":nth-of-type("):], ")")
		k, err := strconv.Atoi(num)
		if err != nil || k < 1 {
			return d, fmt.Errorf("dompage: bad nth-of-type in %q", s)
		}
		d.nth = k
		s = s[:idx]
	}

	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		d.id = s[idx+1:]
		s = s[:idx]
	}

	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		d.classes = strings.Split(s[idx+1:], ".")
		s = s[:idx]
	}

	if s == "" {
		return d, fmt.Errorf("dompage: descriptor without tag")
	}
	d.tag = s
	return d, nil
}

// matchAnywhere collects all elements in the tree matching the descriptor.
func matchAnywhere(root *html.Node, d descriptor) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && matches(n, d) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

func matches(n *html.Node, d descriptor) bool {
	if n.Data != d.tag {
		return false
	}
	if d.id != "" && attr(n, "id") != d.id {
		return false
	}
	if len(d.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range d.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if d.nth > 0 {
		if pos, _ := (&element{n: n}).TagIndex(); pos != d.nth {
			return false
		}
	}
	return true
}
