// Package export serializes captured feedback items into hand-off artifacts:
// a markdown document for humans, a JSON document for tooling, or both
// combined. Serialization is pure: inputs are never mutated, no I/O happens
// here, and output is deterministic for identical input order (given a fixed
// clock).
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/pinmark/pinmark/feedback"
)

// Format selects the artifact shape.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCombined Format = "combined"
)

// Version identifies the JSON artifact schema.
const Version = "1.0"

// Delimiters for the combined artifact, chosen so downstream parsers can
// split unambiguously.
const (
	markdownMarker = "<!-- pinmark:markdown -->"
	jsonMarker     = "<!-- pinmark:json -->"
)

// Exporter renders feedback items. Safe for reuse; not safe for concurrent
// use because of the shared markdown converter.
type Exporter struct {
	now  func() time.Time
	conv *converter.Converter
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock fixes the timestamp source. Tests use this for deterministic
// output.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		now: time.Now,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export renders items in the requested format.
func (e *Exporter) Export(format Format, items []feedback.Item, sessionID string, groupByComponent bool) (string, error) {
	switch format {
	case FormatMarkdown:
		return e.ToMarkdown(items, sessionID, groupByComponent), nil
	case FormatJSON:
		return e.ToJSON(items, sessionID)
	case FormatCombined:
		return e.Combined(items, sessionID, groupByComponent)
	default:
		return "", fmt.Errorf("export: unknown format %q", format)
	}
}

// jsonArtifact is the machine-readable document shape.
type jsonArtifact struct {
	Version    string          `json:"version"`
	Session    string          `json:"session"`
	Timestamp  string          `json:"timestamp"`
	Pages      []string        `json:"pages"`
	TotalItems int             `json:"total_items"`
	Feedback   []feedback.Item `json:"feedback"`
}

// ToJSON produces the machine-readable artifact.
func (e *Exporter) ToJSON(items []feedback.Item, sessionID string) (string, error) {
	art := jsonArtifact{
		Version:    Version,
		Session:    sessionID,
		Timestamp:  e.now().UTC().Format(time.RFC3339),
		Pages:      distinctPages(items),
		TotalItems: len(items),
		Feedback:   items,
	}
	if art.Feedback == nil {
		art.Feedback = []feedback.Item{}
	}

	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal: %w", err)
	}
	return string(data), nil
}

// ToMarkdown produces the human-readable artifact: a header with session id,
// export timestamp and item count, followed by one section per item,
// optionally grouped by component name.
func (e *Exporter) ToMarkdown(items []feedback.Item, sessionID string, groupByComponent bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Feedback Report\n\n")
	fmt.Fprintf(&sb, "- Session: `%s`\n", sessionID)
	fmt.Fprintf(&sb, "- Exported: %s\n", e.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- Items: %d\n", len(items))

	if groupByComponent {
		for _, group := range groupItems(items) {
			fmt.Fprintf(&sb, "\n## %s\n", group.name)
			for _, it := range group.items {
				e.writeItem(&sb, it, "###")
			}
		}
		return sb.String()
	}

	for i, it := range items {
		fmt.Fprintf(&sb, "\n## %d. %s — %s\n", i+1, it.Feedback.Type, it.Feedback.Priority)
		e.writeItemBody(&sb, it)
	}
	return sb.String()
}

// Combined concatenates both representations with marker comments.
func (e *Exporter) Combined(items []feedback.Item, sessionID string, groupByComponent bool) (string, error) {
	js, err := e.ToJSON(items, sessionID)
	if err != nil {
		return "", err
	}
	md := e.ToMarkdown(items, sessionID, groupByComponent)

	var sb strings.Builder
	sb.WriteString(markdownMarker)
	sb.WriteString("\n")
	sb.WriteString(md)
	sb.WriteString("\n")
	sb.WriteString(jsonMarker)
	sb.WriteString("\n")
	sb.WriteString(js)
	sb.WriteString("\n")
	return sb.String(), nil
}

func (e *Exporter) writeItem(sb *strings.Builder, it feedback.Item, heading string) {
	fmt.Fprintf(sb, "\n%s %s — %s\n", heading, it.Feedback.Type, it.Feedback.Priority)
	e.writeItemBody(sb, it)
}

func (e *Exporter) writeItemBody(sb *strings.Builder, it feedback.Item) {
	fmt.Fprintf(sb, "\n- Page: `%s`\n", it.Page)
	fmt.Fprintf(sb, "- Selector: `%s`\n", it.Element.Selector)
	if it.Element.XPath != "" {
		fmt.Fprintf(sb, "- XPath: `%s`\n", it.Element.XPath)
	}
	if it.Element.ComponentName != "" {
		if it.Element.ComponentPath != "" {
			fmt.Fprintf(sb, "- Component: %s (`%s`)\n", it.Element.ComponentName, it.Element.ComponentPath)
		} else {
			fmt.Fprintf(sb, "- Component: %s\n", it.Element.ComponentName)
		}
	}

	fmt.Fprintf(sb, "\n%s\n", it.Feedback.Description)

	if it.Feedback.SuggestedChange != "" {
		fmt.Fprintf(sb, "\n> Suggested: %s\n", it.Feedback.SuggestedChange)
	}

	if excerpt := e.htmlToMarkdown(it.Element.InnerHTML); excerpt != "" {
		fmt.Fprintf(sb, "\nCaptured element:\n\n```\n%s\n```\n", excerpt)
	}
}

// htmlToMarkdown converts the captured element markup to readable markdown.
// If conversion fails or produces empty output, returns the raw markup.
func (e *Exporter) htmlToMarkdown(html string) string {
	if html == "" {
		return ""
	}
	result, err := e.conv.ConvertString(html)
	if err != nil || strings.TrimSpace(result) == "" {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(result)
}

// distinctPages returns the de-duplicated page values in first-seen order.
func distinctPages(items []feedback.Item) []string {
	pages := []string{}
	seen := make(map[string]bool)
	for _, it := range items {
		if seen[it.Page] {
			continue
		}
		seen[it.Page] = true
		pages = append(pages, it.Page)
	}
	return pages
}

type itemGroup struct {
	name  string
	items []feedback.Item
}

// groupItems buckets items by component name in first-seen order. Items
// without component metadata land in a trailing "Uncategorized" group.
func groupItems(items []feedback.Item) []itemGroup {
	var groups []itemGroup
	index := make(map[string]int)
	var loose []feedback.Item

	for _, it := range items {
		name := it.Element.ComponentName
		if name == "" {
			loose = append(loose, it)
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, itemGroup{name: name})
		}
		groups[i].items = append(groups[i].items, it)
	}

	if len(loose) > 0 {
		groups = append(groups, itemGroup{name: "Uncategorized", items: loose})
	}
	return groups
}
