// Package inspector converts a live, mutable UI element reference into
// stable, serializable descriptive data: a best-effort structural selector,
// an absolute XPath fallback, filtered computed styles, sanitized markup and
// optional framework component metadata.
//
// Every operation is a pure read of current element state. Internal failures
// are caught and logged at debug level; they degrade to null/empty fields and
// never abort a capture.
package inspector

import (
	"context"
	"log/slog"

	"golang.org/x/net/html"
)

// BoundingBox is an element's page-coordinate rectangle at capture time.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementData is the structural fingerprint and descriptive metadata of one
// element. Produced once at capture time and never recomputed: the live
// element may no longer exist afterwards.
type ElementData struct {
	Selector        string            `json:"selector"`
	XPath           string            `json:"xpath"`
	ComponentName   string            `json:"component_name,omitempty"`
	ComponentPath   string            `json:"component_path,omitempty"`
	ComputedStyles  map[string]string `json:"computed_styles,omitempty"`
	BoundingBox     BoundingBox       `json:"bounding_box"`
	InnerHTML       string            `json:"inner_html,omitempty"`
	TailwindClasses []string          `json:"tailwind_classes,omitempty"`
	DataAttributes  map[string]string `json:"data_attributes,omitempty"`
	InViewport      bool              `json:"in_viewport"`
}

// Element is a handle on a UI element. The minimal contract is a parsed node
// attached to its document tree; richer handles (live browser elements)
// additionally implement the capability interfaces below, which the Inspector
// discovers by type assertion.
type Element interface {
	Node() *html.Node
}

// StyleProvider resolves the element's effective presentation properties.
// Implementations may return more properties than the allow-list; the
// Inspector filters.
type StyleProvider interface {
	ComputedStyles(ctx context.Context) (map[string]string, error)
}

// BoxProvider resolves the element's bounding rectangle.
type BoxProvider interface {
	BoundingBox(ctx context.Context) (BoundingBox, error)
}

// ComponentProvider reads optional framework bookkeeping attached to the
// element handle (component name, dev-only source location). Production
// builds commonly strip this metadata; absence is not an error.
type ComponentProvider interface {
	ComponentName(ctx context.Context) (string, error)
	ComponentPath(ctx context.Context) (string, error)
}

// ViewportProvider reports the viewport size of the document the element
// belongs to.
type ViewportProvider interface {
	Viewport(ctx context.Context) (width, height int, err error)
}

// Inspector computes ElementData from Element handles.
type Inspector struct {
	logger *slog.Logger
}

// New creates an Inspector. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{logger: logger}
}

// Inspect produces the full ElementData for an element. Capabilities the
// handle does not implement resolve to zero fields.
func (ins *Inspector) Inspect(ctx context.Context, el Element) ElementData {
	var data ElementData

	n := el.Node()
	if n == nil {
		ins.logger.Debug("inspector: element has no node")
		return data
	}

	ins.safe("selector", func() { data.Selector = GenerateSelector(n) })
	ins.safe("xpath", func() { data.XPath = GenerateXPath(n) })
	ins.safe("inner_html", func() { data.InnerHTML = SanitizedInnerHTML(n) })
	ins.safe("tailwind", func() { data.TailwindClasses = TailwindClasses(n) })
	ins.safe("data_attrs", func() { data.DataAttributes = DataAttributes(n) })

	if sp, ok := el.(StyleProvider); ok {
		ins.safe("styles", func() {
			raw, err := sp.ComputedStyles(ctx)
			if err != nil {
				ins.logger.Debug("inspector: computed styles", "error", err)
				return
			}
			data.ComputedStyles = filterStyles(raw)
		})
	}

	var haveBox bool
	if bp, ok := el.(BoxProvider); ok {
		ins.safe("box", func() {
			box, err := bp.BoundingBox(ctx)
			if err != nil {
				ins.logger.Debug("inspector: bounding box", "error", err)
				return
			}
			data.BoundingBox = box
			haveBox = true
		})
	}

	if vp, ok := el.(ViewportProvider); ok && haveBox {
		ins.safe("viewport", func() {
			w, h, err := vp.Viewport(ctx)
			if err != nil {
				ins.logger.Debug("inspector: viewport", "error", err)
				return
			}
			data.InViewport = inViewport(data.BoundingBox, w, h)
		})
	}

	if cp, ok := el.(ComponentProvider); ok {
		ins.safe("component", func() {
			if name, err := cp.ComponentName(ctx); err == nil {
				data.ComponentName = name
			} else {
				ins.logger.Debug("inspector: component name", "error", err)
			}
			if path, err := cp.ComponentPath(ctx); err == nil {
				data.ComponentPath = path
			} else {
				ins.logger.Debug("inspector: component path", "error", err)
			}
		})
	}

	return data
}

// safe runs fn and converts any panic into a debug log entry. Introspection
// must never propagate a failure to the capture flow.
func (ins *Inspector) safe(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			ins.logger.Debug("inspector: recovered", "op", op, "panic", r)
		}
	}()
	fn()
}

// inViewport reports whether the box intersects the [0,0,w,h] viewport.
func inViewport(b BoundingBox, w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	return b.X < float64(w) && b.Y < float64(h) && b.X+b.Width > 0 && b.Y+b.Height > 0
}
