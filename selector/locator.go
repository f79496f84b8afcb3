package selector

import (
	"fmt"
	"strings"
)

// Locator builds a structural locator for an element: ancestor descriptors
// joined root-to-leaf with the child combinator.
//
// For each node, the descriptor starts with the tag name. An id attribute
// makes the descriptor "tag#id" and terminates the walk; an id is treated
// as unique within the page, a known limitation on malformed documents.
// Otherwise class names are appended as "tag.c1.c2", and when the node
// shares its tag with siblings under the same parent, a 1-based
// ":nth-of-type(k)" qualifier disambiguates it.
//
// The locator reflects the page's structure at capture time only; it is
// consumed immediately and never persisted.
func Locator(el Element) string {
	if el == nil {
		return ""
	}

	var parts []string
	for node := el; node != nil; node = node.Parent() {
		d := node.Tag()

		if id := node.ID(); id != "" {
			parts = append(parts, d+"#"+id)
			break
		}

		if classes := node.Classes(); len(classes) > 0 {
			d += "." + strings.Join(classes, ".")
		}

		if pos, total := node.TagIndex(); total > 1 {
			d += fmt.Sprintf(":nth-of-type(%d)", pos)
		}

		parts = append(parts, d)
	}

	// parts were collected leaf-to-root.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
