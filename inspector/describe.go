package inspector

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// innerHTMLLimit is the truncation point for captured markup, in runes.
const innerHTMLLimit = 500

// StyleAllowlist is the fixed set of computed-style properties worth
// capturing: color, spacing, box model, border, effects. Everything else is
// noise for a feedback hand-off.
var StyleAllowlist = []string{
	"color", "background-color", "font-size", "font-weight", "font-family",
	"line-height", "text-align", "display", "position", "width", "height",
	"margin", "padding", "border", "border-radius", "border-color",
	"border-width", "box-shadow", "opacity", "z-index", "flex-direction",
	"justify-content", "align-items", "gap",
}

// sanitizePolicy strips scripts and inline event handlers while keeping the
// structural attributes a reader needs to recognise the captured fragment.
var sanitizePolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	p.AllowDataAttributes()
	return p
}()

// SanitizedInnerHTML renders the element's inner markup with script tags and
// inline event-handler attributes removed, truncated beyond 500 characters
// with an ellipsis marker.
func SanitizedInnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return ""
		}
	}

	clean := strings.TrimSpace(sanitizePolicy.Sanitize(sb.String()))

	runes := []rune(clean)
	if len(runes) > innerHTMLLimit {
		return string(runes[:innerHTMLLimit]) + "..."
	}
	return clean
}

// DataAttributes collects the element's data-* attributes.
func DataAttributes(n *html.Node) map[string]string {
	var out map[string]string
	for _, attr := range n.Attr {
		if !strings.HasPrefix(attr.Key, "data-") {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[attr.Key] = attr.Val
	}
	return out
}

// tailwindPrefixes match utility-class families by prefix; entries without a
// trailing dash must match exactly.
var tailwindPrefixes = []string{
	"p-", "px-", "py-", "pt-", "pb-", "pl-", "pr-",
	"m-", "mx-", "my-", "mt-", "mb-", "ml-", "mr-",
	"w-", "h-", "min-w-", "min-h-", "max-w-", "max-h-",
	"text-", "font-", "bg-", "border-", "rounded-", "gap-", "space-",
	"items-", "justify-", "top-", "bottom-", "left-", "right-",
	"z-", "shadow-", "opacity-", "overflow-", "flex-", "grid-",
	"border", "rounded", "shadow", "flex", "grid", "hidden", "block",
	"inline", "inline-block", "absolute", "relative", "fixed", "sticky",
	"truncate", "underline", "italic",
}

// tailwindModifiers are responsive/state prefixes that may qualify a token.
var tailwindModifiers = map[string]bool{
	"sm": true, "md": true, "lg": true, "xl": true, "2xl": true,
	"hover": true, "focus": true, "active": true, "disabled": true,
	"visited": true, "first": true, "last": true, "odd": true, "even": true,
	"dark": true, "group-hover": true, "focus-within": true,
}

// TailwindClasses heuristically filters the element's class tokens to those
// matching known utility-class naming. Best-effort; not a correctness-
// critical path.
func TailwindClasses(n *html.Node) []string {
	var out []string
	for _, cls := range strings.Fields(getAttr(n, "class")) {
		if isTailwindToken(cls) {
			out = append(out, cls)
		}
	}
	return out
}

func isTailwindToken(cls string) bool {
	base := cls
	for {
		idx := strings.Index(base, ":")
		if idx < 0 {
			break
		}
		if !tailwindModifiers[base[:idx]] {
			return false
		}
		base = base[idx+1:]
	}
	base = strings.TrimPrefix(base, "-") // negative margins etc.

	for _, p := range tailwindPrefixes {
		if strings.HasSuffix(p, "-") {
			if strings.HasPrefix(base, p) {
				return true
			}
		} else if base == p {
			return true
		}
	}
	return false
}

// interactiveTags are the element names treated as inherently interactive.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"textarea": true, "label": true, "summary": true,
}

// FindInteractiveParent ascends from the element (inclusive) until it finds
// an interactive tag, an element carrying a click handler or accessibility
// role, or a pointer-style cursor. Returns nil at the document boundary.
func FindInteractiveParent(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = parentElement(cur) {
		if cur.Type != html.ElementNode {
			continue
		}
		if isDocumentBoundary(cur) {
			return nil
		}
		if interactiveTags[strings.ToLower(cur.Data)] {
			return cur
		}
		if hasAttr(cur, "onclick") || hasAttr(cur, "role") {
			return cur
		}
		style := strings.ReplaceAll(getAttr(cur, "style"), " ", "")
		if strings.Contains(style, "cursor:pointer") {
			return cur
		}
	}
	return nil
}

// filterStyles restricts a raw computed-style map to the allow-list and drops
// non-informative values.
func filterStyles(raw map[string]string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, prop := range StyleAllowlist {
		v, ok := raw[prop]
		if !ok {
			continue
		}
		switch v {
		case "", "none", "0px", "auto":
			continue
		}
		out[prop] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
