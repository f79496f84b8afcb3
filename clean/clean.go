// Package clean normalizes text and HTML captured from web pages before it
// is stored in a job record.
//
// Captured fragments arrive with whatever markup and whitespace the page
// author produced. Cleaner strips unsafe markup, converts rich fragments to
// markdown, and collapses whitespace so that records read the same
// regardless of the page they came from.
package clean

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Cleaner sanitizes and converts captured page fragments.
type Cleaner struct {
	policy      *bluemonday.Policy
	mdConverter *converter.Converter
}

// New creates a Cleaner with a UGC sanitization policy and a commonmark
// converter with table support.
func New() *Cleaner {
	return &Cleaner{
		policy: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Text normalizes a short captured text value: whitespace runs collapse to
// a single space and the result is trimmed. Suitable for titles and names.
func (c *Cleaner) Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Markdown sanitizes an HTML fragment and converts it to markdown. If the
// fragment is empty, or conversion yields nothing, the normalized fallback
// text is returned so a capture never produces an empty description when
// the element had visible text.
func (c *Cleaner) Markdown(fragment string, sourceURL string, fallback string) string {
	fallback = normalizeBlock(fallback)
	if strings.TrimSpace(fragment) == "" {
		return fallback
	}
	safe := c.policy.Sanitize(fragment)
	result, err := c.mdConverter.ConvertString(safe, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(result) == "" {
		return fallback
	}
	return strings.TrimSpace(result)
}

// normalizeBlock collapses horizontal whitespace per line and squeezes runs
// of blank lines down to one, preserving paragraph breaks.
func normalizeBlock(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
