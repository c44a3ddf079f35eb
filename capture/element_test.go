package capture

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/pinmark/pinmark/inspector"
)

const testPage = `<!DOCTYPE html><html><head></head><body>
<div id="root">
	<ul class="list">
		<li>one</li>
		<li><button class="btn primary hover:shadow">Buy</button></li>
	</ul>
</div>
</body></html>`

func parsePage(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestSnapshotDecode(t *testing.T) {
	// The exact shape the probe script returns.
	raw := `{
		"xpath": "/html/body/div/ul/li[2]/button",
		"styles": {"color": "rgb(255, 255, 255)", "display": "inline-block"},
		"box": {"x": 120.5, "y": 88, "width": 64, "height": 32},
		"component": {"name": "BuyButton", "path": "src/components/BuyButton.tsx:12"},
		"viewport": {"width": 1280, "height": 800},
		"user_agent": "Mozilla/5.0 test"
	}`

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.XPath != "/html/body/div/ul/li[2]/button" {
		t.Errorf("xpath = %q", snap.XPath)
	}
	if snap.Box.X != 120.5 || snap.Box.Height != 32 {
		t.Errorf("box = %+v", snap.Box)
	}
	if snap.Component.Name != "BuyButton" {
		t.Errorf("component = %+v", snap.Component)
	}
	if snap.Viewport.Width != 1280 {
		t.Errorf("viewport = %+v", snap.Viewport)
	}
}

func TestResolveElement(t *testing.T) {
	doc := parsePage(t)

	var snap snapshot
	snap.XPath = "/html/body/div/ul/li[2]/button"

	el, err := resolveElement(doc, snap)
	if err != nil {
		t.Fatalf("resolveElement: %v", err)
	}
	if got := el.Node().Data; got != "button" {
		t.Errorf("resolved <%s>, want <button>", got)
	}
}

func TestResolveElement_Miss(t *testing.T) {
	doc := parsePage(t)

	var snap snapshot
	snap.XPath = "/html/body/article"

	if _, err := resolveElement(doc, snap); err == nil {
		t.Error("expected error for stale xpath")
	}
}

func TestLiveElement_InspectIntegration(t *testing.T) {
	doc := parsePage(t)

	var snap snapshot
	snap.XPath = "/html/body/div/ul/li[2]/button"
	snap.Styles = map[string]string{
		"color":   "rgb(255, 255, 255)",
		"display": "inline-block",
		"margin":  "0px", // non-informative, must be filtered out
	}
	snap.Box = inspector.BoundingBox{X: 120, Y: 88, Width: 64, Height: 32}
	snap.Component.Name = "BuyButton"
	snap.Component.Path = "src/components/BuyButton.tsx:12"
	snap.Viewport.Width = 1280
	snap.Viewport.Height = 800

	el, err := resolveElement(doc, snap)
	if err != nil {
		t.Fatalf("resolveElement: %v", err)
	}

	data := inspector.New(nil).Inspect(context.Background(), el)

	if data.XPath != snap.XPath {
		t.Errorf("xpath = %q", data.XPath)
	}
	if !strings.HasPrefix(data.Selector, "#root") {
		t.Errorf("selector should anchor at the id, got %q", data.Selector)
	}
	if data.ComponentName != "BuyButton" || data.ComponentPath != "src/components/BuyButton.tsx:12" {
		t.Errorf("component = %q %q", data.ComponentName, data.ComponentPath)
	}
	if data.ComputedStyles["color"] != "rgb(255, 255, 255)" {
		t.Errorf("styles = %+v", data.ComputedStyles)
	}
	if _, ok := data.ComputedStyles["margin"]; ok {
		t.Error("non-informative style value leaked through")
	}
	if !data.InViewport {
		t.Error("element inside the viewport reported as outside")
	}
	if data.BoundingBox != snap.Box {
		t.Errorf("box = %+v", data.BoundingBox)
	}
}
