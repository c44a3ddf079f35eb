package inspector

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// parseBody parses a document with the given body content and returns the
// document node.
func parseBody(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

// findElement returns the first element with the given tag and, when attr is
// non-empty, the given attribute value.
func findElement(t *testing.T, root *html.Node, tag, attrKey, attrVal string) *html.Node {
	t.Helper()
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			if attrKey == "" || getAttr(n, attrKey) == attrVal {
				found = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if found == nil {
		t.Fatalf("element <%s %s=%q> not found", tag, attrKey, attrVal)
	}
	return found
}

func TestGenerateSelector_UniqueID(t *testing.T) {
	doc := parseBody(t, `<div><button id="submit-btn" class="btn">Send</button></div>`)
	btn := findElement(t, doc, "button", "id", "submit-btn")

	sel := GenerateSelector(btn)
	if sel != "#submit-btn" {
		t.Fatalf("expected #submit-btn, got %q", sel)
	}
	if got := ResolveSelector(doc, sel); got != btn {
		t.Fatalf("selector %q did not resolve back to the element", sel)
	}
}

func TestGenerateSelector_AncestorID(t *testing.T) {
	doc := parseBody(t, `<div id="root"><div class="card shadow"><span>x</span></div></div>`)
	span := findElement(t, doc, "span", "", "")

	sel := GenerateSelector(span)
	if sel != "#root > div.card.shadow > span" {
		t.Fatalf("unexpected selector %q", sel)
	}
	if got := ResolveSelector(doc, sel); got != span {
		t.Fatalf("selector %q did not resolve back to the element", sel)
	}
}

func TestGenerateSelector_SiblingPosition(t *testing.T) {
	doc := parseBody(t, `<ul><li>a</li><li>b</li><li>c</li><li>d</li></ul>`)

	ul := findElement(t, doc, "ul", "", "")
	var items []*html.Node
	for c := ul.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			items = append(items, c)
		}
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}

	third := items[2]
	sel := GenerateSelector(third)
	if !strings.HasSuffix(sel, "li:nth-of-type(3)") {
		t.Fatalf("expected final segment li:nth-of-type(3), got %q", sel)
	}
	if got := ResolveSelector(doc, sel); got != third {
		t.Fatalf("selector %q resolved to the wrong element", sel)
	}
}

func TestGenerateSelector_NoPositionWhenAlone(t *testing.T) {
	doc := parseBody(t, `<div><p class="intro">text</p><span>y</span></div>`)
	p := findElement(t, doc, "p", "", "")

	sel := GenerateSelector(p)
	if strings.Contains(sel, "nth-of-type") {
		t.Fatalf("unexpected position qualifier in %q", sel)
	}
	if got := ResolveSelector(doc, sel); got != p {
		t.Fatalf("selector %q did not resolve back", sel)
	}
}

func TestGenerateSelector_SkipsVariantClasses(t *testing.T) {
	doc := parseBody(t, `<div><a class="hover:underline btn focus:ring primary extra">go</a></div>`)
	a := findElement(t, doc, "a", "", "")

	sel := GenerateSelector(a)
	if strings.Contains(sel, "hover") || strings.Contains(sel, "focus") {
		t.Fatalf("variant classes leaked into selector %q", sel)
	}
	// Only the first two stable tokens are kept.
	if !strings.Contains(sel, "a.btn.primary") {
		t.Fatalf("expected a.btn.primary segment, got %q", sel)
	}
}

func TestGenerateSelector_RoundTripAll(t *testing.T) {
	doc := parseBody(t, `
		<div class="wrap">
			<section><h2>title</h2><p>one</p><p>two</p></section>
			<section><ul><li>a</li><li>b</li></ul></section>
		</div>`)

	var elements []*html.Node
	var walk func(*html.Node)
	body := findElement(t, doc, "body", "", "")
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n != body {
			elements = append(elements, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)

	for _, el := range elements {
		sel := GenerateSelector(el)
		if sel == "" {
			t.Fatalf("empty selector for <%s>", el.Data)
		}
		if got := ResolveSelector(doc, sel); got != el {
			t.Fatalf("selector %q for <%s> resolved to the wrong node", sel, el.Data)
		}
	}
}

func TestGenerateXPath(t *testing.T) {
	doc := parseBody(t, `<div><ul><li>a</li><li>b</li><li>c</li></ul></div>`)
	ul := findElement(t, doc, "ul", "", "")

	var third *html.Node
	count := 0
	for c := ul.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			count++
			if count == 3 {
				third = c
			}
		}
	}

	got := GenerateXPath(third)
	if got != "/html/body/div/ul/li[3]" {
		t.Fatalf("unexpected xpath %q", got)
	}

	if got := GenerateXPath(ul); got != "/html/body/div/ul" {
		t.Fatalf("unexpected xpath %q", got)
	}
}

func TestResolveXPath_RoundTrip(t *testing.T) {
	doc := parseBody(t, `
		<div class="wrap">
			<section><h2>title</h2><p>one</p><p>two</p></section>
			<section><ul><li>a</li><li>b</li><li>c</li></ul></section>
		</div>`)

	var elements []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			elements = append(elements, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, el := range elements {
		xp := GenerateXPath(el)
		if xp == "" {
			t.Fatalf("empty xpath for <%s>", el.Data)
		}
		if got := ResolveXPath(doc, xp); got != el {
			t.Fatalf("xpath %q for <%s> resolved to the wrong node", xp, el.Data)
		}
	}
}

func TestResolveXPath_Miss(t *testing.T) {
	doc := parseBody(t, `<div><span>x</span></div>`)
	if got := ResolveXPath(doc, "/html/body/article"); got != nil {
		t.Fatalf("expected nil for unmatched path, got <%s>", got.Data)
	}
	if got := ResolveXPath(doc, "relative/path"); got != nil {
		t.Fatalf("expected nil for relative path, got <%s>", got.Data)
	}
	if got := ResolveXPath(doc, "/html/body/div/span[4]"); got != nil {
		t.Fatalf("expected nil for out-of-range index, got <%s>", got.Data)
	}
}

func TestResolveSelector_Miss(t *testing.T) {
	doc := parseBody(t, `<div><span>x</span></div>`)
	if got := ResolveSelector(doc, "#nope"); got != nil {
		t.Fatalf("expected nil for unknown id, got <%s>", got.Data)
	}
	if got := ResolveSelector(doc, "div.missing > span"); got != nil {
		t.Fatalf("expected nil for unmatched class, got <%s>", got.Data)
	}
}
