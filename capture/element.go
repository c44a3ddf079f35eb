package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"golang.org/x/net/html"

	"github.com/pinmark/pinmark/feedback"
	"github.com/pinmark/pinmark/inspector"
)

// probeScript runs inside the page. It locates an element either under a
// viewport point or by CSS selector and reports everything only the live page
// knows: an absolute XPath to re-find the node in a DOM snapshot, the
// computed styles for the requested properties, geometry, viewport size, and
// React dev-build component metadata when the fiber reference is present.
const probeScript = `(kind, a, b, props) => {
	const el = kind === 'point'
		? document.elementFromPoint(a, b)
		: document.querySelector(a);
	if (!el) return null;

	const xpath = (node) => {
		const parts = [];
		for (let cur = node; cur && cur.nodeType === 1; cur = cur.parentElement) {
			const tag = cur.tagName.toLowerCase();
			let pos = 0, total = 0;
			const parent = cur.parentNode;
			for (let s = parent ? parent.firstElementChild : null; s; s = s.nextElementSibling) {
				if (s.tagName === cur.tagName) {
					total++;
					if (s === cur) pos = total;
				}
			}
			parts.unshift(total > 1 ? tag + '[' + pos + ']' : tag);
		}
		return '/' + parts.join('/');
	};

	const computed = getComputedStyle(el);
	const styles = {};
	for (const p of props) styles[p] = computed.getPropertyValue(p);

	const rect = el.getBoundingClientRect();

	let name = '', path = '';
	const key = Object.keys(el).find((k) => k.startsWith('__reactFiber$'));
	if (key) {
		for (let fiber = el[key]; fiber; fiber = fiber.return) {
			const t = fiber.type;
			if (typeof t === 'function' || (t && typeof t === 'object' && t.displayName)) {
				name = t.displayName || t.name || '';
				const src = fiber._debugSource;
				if (src && src.fileName) {
					const f = src.fileName;
					const i = f.indexOf('src/');
					path = (i >= 0 ? f.slice(i) : f) + ':' + src.lineNumber;
				}
				if (name) break;
			}
		}
	}

	return {
		xpath: xpath(el),
		styles: styles,
		box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
		component: {name: name, path: path},
		viewport: {width: window.innerWidth, height: window.innerHeight},
		user_agent: navigator.userAgent,
	};
}`

// snapshot is the probe's report for one element.
type snapshot struct {
	XPath     string                `json:"xpath"`
	Styles    map[string]string     `json:"styles"`
	Box       inspector.BoundingBox `json:"box"`
	Component struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"component"`
	Viewport  feedback.Viewport `json:"viewport"`
	UserAgent string            `json:"user_agent"`
}

// liveElement pairs the node located in the DOM snapshot with the live-only
// data the probe collected. It satisfies all of the inspector's capability
// interfaces.
type liveElement struct {
	node *html.Node
	snap snapshot
}

func (e *liveElement) Node() *html.Node { return e.node }

func (e *liveElement) ComputedStyles(ctx context.Context) (map[string]string, error) {
	return e.snap.Styles, nil
}

func (e *liveElement) BoundingBox(ctx context.Context) (inspector.BoundingBox, error) {
	return e.snap.Box, nil
}

func (e *liveElement) ComponentName(ctx context.Context) (string, error) {
	return e.snap.Component.Name, nil
}

func (e *liveElement) ComponentPath(ctx context.Context) (string, error) {
	return e.snap.Component.Path, nil
}

func (e *liveElement) Viewport(ctx context.Context) (int, int, error) {
	return e.snap.Viewport.Width, e.snap.Viewport.Height, nil
}

// resolveElement re-finds the probed element inside a parsed DOM snapshot.
func resolveElement(doc *html.Node, snap snapshot) (inspector.Element, error) {
	node := inspector.ResolveXPath(doc, snap.XPath)
	if node == nil {
		return nil, fmt.Errorf("capture: element %s not found in DOM snapshot", snap.XPath)
	}
	return &liveElement{node: node, snap: snap}, nil
}

// Capturer turns a click on a live page into a feedback item skeleton.
type Capturer struct {
	page   *rod.Page
	ins    *inspector.Inspector
	logger *slog.Logger
	now    func() time.Time
}

// NewCapturer creates a Capturer bound to one page.
func NewCapturer(page *rod.Page, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		page:   page,
		ins:    inspector.New(logger),
		logger: logger,
		now:    time.Now,
	}
}

// CaptureAt resolves the element under viewport point (x, y) into a feedback
// item skeleton: the element fingerprint plus the capture metadata. The
// user-authored part is filled in by the annotation flow afterwards.
func (c *Capturer) CaptureAt(ctx context.Context, x, y float64) (feedback.Item, error) {
	return c.capture(ctx, "point", x, y, fmt.Sprintf("(%.0f, %.0f)", x, y))
}

// CaptureBySelector resolves the first element matching a CSS selector, for
// re-capturing a previously fingerprinted element.
func (c *Capturer) CaptureBySelector(ctx context.Context, sel string) (feedback.Item, error) {
	return c.capture(ctx, "selector", sel, 0, fmt.Sprintf("%q", sel))
}

func (c *Capturer) capture(ctx context.Context, kind string, a, b any, target string) (feedback.Item, error) {
	var item feedback.Item

	res, err := c.page.Context(ctx).Eval(probeScript, kind, a, b, inspector.StyleAllowlist)
	if err != nil {
		return item, fmt.Errorf("capture: probe: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return item, fmt.Errorf("capture: probe result: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return item, fmt.Errorf("capture: decode probe result: %w", err)
	}
	if snap.XPath == "" {
		return item, fmt.Errorf("capture: no element at %s", target)
	}

	// One DOM serialization per capture. The snapshot and the probe see the
	// same document unless a mutation races the two calls; the XPath miss
	// below catches that.
	domHTML, err := c.fullDOM(ctx)
	if err != nil {
		return item, err
	}
	doc, err := html.Parse(strings.NewReader(domHTML))
	if err != nil {
		return item, fmt.Errorf("capture: parse DOM: %w", err)
	}

	el, err := resolveElement(doc, snap)
	if err != nil {
		return item, err
	}

	item.Element = c.ins.Inspect(ctx, el)
	item.Metadata = feedback.Metadata{
		Viewport:   snap.Viewport,
		UserAgent:  snap.UserAgent,
		CapturedAt: c.now().UnixMilli(),
	}
	return item, nil
}

// fullDOM serialises the complete page DOM as outer HTML.
func (c *Capturer) fullDOM(ctx context.Context) (string, error) {
	res, err := c.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("capture: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}
