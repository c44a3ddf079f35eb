package inspector

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// maxStableClasses caps how many class tokens a selector segment carries.
const maxStableClasses = 2

// GenerateSelector computes a best-effort unique structural path for an
// element. It walks the ancestor chain from the target upward, stopping at
// the document body. An id attribute anywhere on the chain is trusted to be
// document-unique: the path starts there and the walk stops immediately.
//
// The result resolves back to the original element at generation time (see
// ResolveSelector). It is not guaranteed stable across later structural tree
// mutations; that is a documented limitation of fingerprinting a mutable
// tree, not a defect.
func GenerateSelector(n *html.Node) string {
	var segments []string

	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = parentElement(cur) {
		if isDocumentBoundary(cur) {
			break
		}
		if id := getAttr(cur, "id"); id != "" {
			segments = append([]string{"#" + id}, segments...)
			break
		}
		segments = append([]string{selectorSegment(cur)}, segments...)
	}

	return strings.Join(segments, " > ")
}

// GenerateXPath computes an absolute fallback path. Each segment is the tag
// name, with a 1-based index appended when same-tag siblings exist.
func GenerateXPath(n *html.Node) string {
	var parts []string

	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = parentElement(cur) {
		tag := strings.ToLower(cur.Data)
		pos, total := sameTagPosition(cur)
		if total > 1 {
			parts = append([]string{fmt.Sprintf("%s[%d]", tag, pos)}, parts...)
		} else {
			parts = append([]string{tag}, parts...)
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "/" + strings.Join(parts, "/")
}

// selectorSegment builds one path segment: tag name, up to two stable class
// tokens, and a position qualifier only when same-tag siblings exist.
func selectorSegment(n *html.Node) string {
	seg := strings.ToLower(n.Data)

	for _, cls := range stableClasses(n, maxStableClasses) {
		seg += "." + cls
	}

	if pos, total := sameTagPosition(n); total > 1 {
		seg += fmt.Sprintf(":nth-of-type(%d)", pos)
	}

	return seg
}

// stableClasses returns up to max class tokens usable in a selector. Tokens
// that encode interaction-state or responsive variants (anything with a
// modifier separator) and arbitrary-value utilities are skipped: they change
// with runtime state and would break the path.
func stableClasses(n *html.Node, max int) []string {
	var out []string
	for _, cls := range strings.Fields(getAttr(n, "class")) {
		if strings.ContainsAny(cls, ":[/") {
			continue
		}
		out = append(out, cls)
		if len(out) == max {
			break
		}
	}
	return out
}

// sameTagPosition returns the 1-based position of n among its same-tag
// element siblings and the total count of those siblings.
func sameTagPosition(n *html.Node) (pos, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			pos = total
		}
	}
	if pos == 0 {
		pos, total = 1, 1
	}
	return pos, total
}

// parentElement returns the nearest element-node ancestor.
func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// isDocumentBoundary reports whether n is the fixed root boundary of the
// selector walk.
func isDocumentBoundary(n *html.Node) bool {
	tag := strings.ToLower(n.Data)
	return tag == "body" || tag == "html"
}

// --- resolution ---

// pathSegment is one parsed piece of a generated selector.
type pathSegment struct {
	id      string
	tag     string
	classes []string
	nth     int // 0 = no position qualifier
}

// ResolveSelector evaluates a selector produced by GenerateSelector against a
// document and returns the matched element, or nil. It understands exactly
// the grammar this package emits: "#id", "tag.cls1.cls2:nth-of-type(k)" and
// the " > " child combinator.
func ResolveSelector(doc *html.Node, selector string) *html.Node {
	raw := strings.Split(selector, " > ")
	if len(raw) == 0 || selector == "" {
		return nil
	}

	segments := make([]pathSegment, len(raw))
	for i, s := range raw {
		segments[i] = parsePathSegment(s)
	}

	// The first segment anchors anywhere in the document; the rest are
	// direct children.
	candidates := findMatches(doc, segments[0])

	for _, seg := range segments[1:] {
		var next []*html.Node
		for _, parent := range candidates {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if matchSegment(c, seg) {
					next = append(next, c)
				}
			}
		}
		candidates = next
	}

	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

func parsePathSegment(s string) pathSegment {
	var seg pathSegment

	if strings.HasPrefix(s, "#") {
		seg.id = s[1:]
		return seg
	}

	if idx := strings.Index(s, ":nth-of-type("); idx >= 0 {
		numStr := strings.TrimSuffix(s[idx+len(":nth-of-type("):], ")")
		if k, err := strconv.Atoi(numStr); err == nil {
			seg.nth = k
		}
		s = s[:idx]
	}

	parts := strings.Split(s, ".")
	seg.tag = parts[0]
	seg.classes = parts[1:]
	return seg
}

func matchSegment(n *html.Node, seg pathSegment) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if seg.id != "" {
		return getAttr(n, "id") == seg.id
	}
	if seg.tag != "" && strings.ToLower(n.Data) != seg.tag {
		return false
	}

	if len(seg.classes) > 0 {
		have := strings.Fields(getAttr(n, "class"))
		for _, want := range seg.classes {
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

	if seg.nth > 0 {
		pos, _ := sameTagPosition(n)
		if pos != seg.nth {
			return false
		}
	}
	return true
}

// findMatches walks the whole subtree collecting nodes matching seg.
func findMatches(root *html.Node, seg pathSegment) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchSegment(n, seg) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

// ResolveXPath follows an absolute path produced by GenerateXPath, such as
// "/html/body/div[2]/ul/li[3]", and returns the matched element, or nil. A
// step without an index matches the only same-tag child.
func ResolveXPath(doc *html.Node, xpath string) *html.Node {
	xpath = strings.TrimSpace(xpath)
	if !strings.HasPrefix(xpath, "/") {
		return nil
	}

	current := []*html.Node{doc}
	for _, step := range strings.Split(xpath[1:], "/") {
		if step == "" {
			continue
		}
		tag, nth := parseXPathStep(step)
		var next []*html.Node
		for _, parent := range current {
			idx := 0
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode || strings.ToLower(c.Data) != tag {
					continue
				}
				idx++
				if nth == 0 || idx == nth {
					next = append(next, c)
					if nth != 0 {
						break
					}
				}
			}
		}
		current = next
	}

	if len(current) == 0 {
		return nil
	}
	return current[0]
}

// parseXPathStep splits "li[3]" into ("li", 3); a bare "li" yields nth 0.
func parseXPathStep(step string) (tag string, nth int) {
	if i := strings.IndexByte(step, '['); i >= 0 {
		if k, err := strconv.Atoi(strings.TrimRight(step[i+1:], "]")); err == nil {
			nth = k
		}
		step = step[:i]
	}
	return strings.ToLower(step), nth
}

// getAttr returns the value of an attribute on a node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// hasAttr checks if a node has a specific attribute.
func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}
