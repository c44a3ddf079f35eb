package inspector

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// fakeElement is a test handle over a parsed node with optional capabilities.
type fakeElement struct {
	node     *html.Node
	styles   map[string]string
	box      *BoundingBox
	vpW, vpH int
	compName string
	compPath string
}

func (f *fakeElement) Node() *html.Node { return f.node }

func (f *fakeElement) ComputedStyles(ctx context.Context) (map[string]string, error) {
	return f.styles, nil
}

func (f *fakeElement) BoundingBox(ctx context.Context) (BoundingBox, error) {
	if f.box == nil {
		return BoundingBox{}, nil
	}
	return *f.box, nil
}

func (f *fakeElement) Viewport(ctx context.Context) (int, int, error) {
	return f.vpW, f.vpH, nil
}

func (f *fakeElement) ComponentName(ctx context.Context) (string, error) {
	return f.compName, nil
}

func (f *fakeElement) ComponentPath(ctx context.Context) (string, error) {
	return f.compPath, nil
}

// bareElement has no capabilities beyond the node.
type bareElement struct{ node *html.Node }

func (b *bareElement) Node() *html.Node { return b.node }

func TestInspect_FullProviders(t *testing.T) {
	doc := parseBody(t, `<div id="hero" class="p-4 bg-white" data-testid="hero"><span>hi</span></div>`)
	div := findElement(t, doc, "div", "id", "hero")

	el := &fakeElement{
		node: div,
		styles: map[string]string{
			"color":            "rgb(0, 0, 0)",
			"background-color": "rgb(255, 255, 255)",
			"margin":           "0px",  // non-informative, dropped
			"box-shadow":       "none", // dropped
			"cursor":           "pointer", // not on the allow-list
		},
		box:      &BoundingBox{X: 10, Y: 20, Width: 100, Height: 50},
		vpW:      1280,
		vpH:      720,
		compName: "HeroCard",
		compPath: "components/HeroCard.tsx:12",
	}

	data := New(nil).Inspect(context.Background(), el)

	if data.Selector != "#hero" {
		t.Fatalf("selector: got %q", data.Selector)
	}
	if data.XPath != "/html/body/div" {
		t.Fatalf("xpath: got %q", data.XPath)
	}
	if data.ComputedStyles["color"] != "rgb(0, 0, 0)" {
		t.Fatalf("styles: %v", data.ComputedStyles)
	}
	if _, ok := data.ComputedStyles["margin"]; ok {
		t.Fatal("non-informative margin should be dropped")
	}
	if _, ok := data.ComputedStyles["box-shadow"]; ok {
		t.Fatal("box-shadow none should be dropped")
	}
	if _, ok := data.ComputedStyles["cursor"]; ok {
		t.Fatal("cursor is not on the allow-list")
	}
	if !data.InViewport {
		t.Fatal("element should be in viewport")
	}
	if data.ComponentName != "HeroCard" || data.ComponentPath != "components/HeroCard.tsx:12" {
		t.Fatalf("component: %q %q", data.ComponentName, data.ComponentPath)
	}
	if data.DataAttributes["data-testid"] != "hero" {
		t.Fatalf("data attrs: %v", data.DataAttributes)
	}
	if len(data.TailwindClasses) != 2 {
		t.Fatalf("tailwind: %v", data.TailwindClasses)
	}
	if !strings.Contains(data.InnerHTML, "hi") {
		t.Fatalf("inner html: %q", data.InnerHTML)
	}
}

func TestInspect_BareElement(t *testing.T) {
	doc := parseBody(t, `<div><p>solo</p></div>`)
	p := findElement(t, doc, "p", "", "")

	data := New(nil).Inspect(context.Background(), &bareElement{node: p})

	if data.Selector == "" || data.XPath == "" {
		t.Fatalf("structural fields must still be computed: %+v", data)
	}
	if data.ComputedStyles != nil || data.ComponentName != "" || data.InViewport {
		t.Fatalf("capability fields must stay zero: %+v", data)
	}
}

func TestInspect_NilNode(t *testing.T) {
	data := New(nil).Inspect(context.Background(), &bareElement{node: nil})
	if data.Selector != "" || data.XPath != "" {
		t.Fatalf("expected zero data, got %+v", data)
	}
}

func TestSanitizedInnerHTML_StripsScriptsAndHandlers(t *testing.T) {
	doc := parseBody(t, `<div id="x"><span onclick="alert(1)">hello</span><script>alert(2)</script></div>`)
	div := findElement(t, doc, "div", "id", "x")

	got := SanitizedInnerHTML(div)
	if !strings.Contains(got, "hello") {
		t.Fatalf("content lost: %q", got)
	}
	if strings.Contains(got, "script") || strings.Contains(got, "alert(2)") {
		t.Fatalf("script survived sanitization: %q", got)
	}
	if strings.Contains(got, "onclick") {
		t.Fatalf("event handler survived sanitization: %q", got)
	}
}

func TestSanitizedInnerHTML_Truncates(t *testing.T) {
	long := strings.Repeat("a", 600)
	doc := parseBody(t, `<div id="x"><p>`+long+`</p></div>`)
	div := findElement(t, doc, "div", "id", "x")

	got := SanitizedInnerHTML(div)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis marker, got tail %q", got[len(got)-10:])
	}
	if n := utf8.RuneCountInString(got); n != innerHTMLLimit+3 {
		t.Fatalf("expected %d runes, got %d", innerHTMLLimit+3, n)
	}
}

func TestTailwindClasses(t *testing.T) {
	tests := []struct {
		class string
		want  []string
	}{
		{"p-4 custom-widget bg-blue-500", []string{"p-4", "bg-blue-500"}},
		{"md:flex hover:bg-gray-100 navbar", []string{"md:flex", "hover:bg-gray-100"}},
		{"rounded shadow foo", []string{"rounded", "shadow"}},
		{"-mt-2 container", []string{"-mt-2"}},
		{"", nil},
	}
	for _, tt := range tests {
		doc := parseBody(t, `<div id="x" class="`+tt.class+`"></div>`)
		div := findElement(t, doc, "div", "id", "x")
		got := TailwindClasses(div)
		if len(got) != len(tt.want) {
			t.Errorf("TailwindClasses(%q) = %v, want %v", tt.class, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("TailwindClasses(%q) = %v, want %v", tt.class, got, tt.want)
				break
			}
		}
	}
}

func TestFindInteractiveParent(t *testing.T) {
	doc := parseBody(t, `
		<div>
			<button><span id="in-button">x</span></button>
			<div role="tab"><em id="in-role">y</em></div>
			<div style="cursor: pointer"><i id="in-cursor">z</i></div>
			<p><b id="plain">w</b></p>
		</div>`)

	if got := FindInteractiveParent(findElement(t, doc, "span", "id", "in-button")); got == nil || got.Data != "button" {
		t.Fatalf("expected button ancestor, got %v", got)
	}
	if got := FindInteractiveParent(findElement(t, doc, "em", "id", "in-role")); got == nil || getAttr(got, "role") != "tab" {
		t.Fatalf("expected role ancestor, got %v", got)
	}
	if got := FindInteractiveParent(findElement(t, doc, "i", "id", "in-cursor")); got == nil {
		t.Fatal("expected pointer-cursor ancestor")
	}
	if got := FindInteractiveParent(findElement(t, doc, "b", "id", "plain")); got != nil {
		t.Fatalf("expected nil, got <%s>", got.Data)
	}
}

func TestDataAttributes(t *testing.T) {
	doc := parseBody(t, `<div id="x" data-id="7" data-kind="card" class="y"></div>`)
	div := findElement(t, doc, "div", "id", "x")

	got := DataAttributes(div)
	if len(got) != 2 || got["data-id"] != "7" || got["data-kind"] != "card" {
		t.Fatalf("unexpected data attributes: %v", got)
	}
}
