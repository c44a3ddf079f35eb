// Package widget exposes the session core over HTTP for the in-page overlay:
// state reads, mode and item mutations, configuration, and export. All
// endpoints speak JSON and are driven by the overlay script injected into the
// reviewed page.
package widget

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pinmark/pinmark/export"
	"github.com/pinmark/pinmark/feedback"
	"github.com/pinmark/pinmark/session"
)

// maxBodyBytes bounds request bodies. Items may carry screenshot data URLs.
const maxBodyBytes = 256 << 10

// Capturer resolves an element on the live page into a feedback item
// skeleton: element fingerprint plus capture metadata.
type Capturer interface {
	CaptureAt(ctx context.Context, x, y float64) (feedback.Item, error)
	CaptureBySelector(ctx context.Context, sel string) (feedback.Item, error)
}

// Widget is the HTTP surface over one session core.
type Widget struct {
	core   *session.Core
	cap    Capturer
	logger *slog.Logger
}

// Option configures a Widget.
type Option func(*Widget)

// WithCapturer attaches a live-page capturer. Without one, the capture
// endpoint answers 503 and the overlay falls back to client-side capture.
func WithCapturer(c Capturer) Option { return func(w *Widget) { w.cap = c } }

// New creates a Widget. A nil logger falls back to slog.Default.
func New(core *session.Core, logger *slog.Logger, opts ...Option) *Widget {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Widget{core: core, logger: logger}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Router builds a standalone router with the usual middleware.
func (w *Widget) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	w.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the widget endpoints on an existing router.
func (w *Widget) RegisterHTTP(r chi.Router) {
	r.Get("/api/v1/session", w.handleState)
	r.Post("/api/v1/session/toggle", w.handleToggle)
	r.Post("/api/v1/session/minimize", w.handleMinimize)
	r.Post("/api/v1/session/mode", w.handleSetMode)
	r.Post("/api/v1/session/navigate", w.handleNavigate)
	r.Post("/api/v1/session/key", w.handleKey)

	r.Get("/api/v1/items", w.handleListItems)
	r.Post("/api/v1/items", w.handleAddItem)
	r.Patch("/api/v1/items/{id}", w.handleUpdateItem)
	r.Delete("/api/v1/items/{id}", w.handleDeleteItem)
	r.Post("/api/v1/items/clear", w.handleClear)

	r.Post("/api/v1/capture", w.handleCapture)
	r.Post("/api/v1/export", w.handleExport)

	r.Get("/api/v1/config", w.handleGetConfig)
	r.Put("/api/v1/config", w.handlePutConfig)
}

func (w *Widget) handleState(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]any{
		"active": w.core.Active(),
		"state":  w.core.State(),
	})
}

func (w *Widget) handleToggle(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]bool{"enabled": w.core.ToggleEnabled()})
}

func (w *Widget) handleMinimize(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]bool{"is_minimized": w.core.ToggleMinimized()})
}

func (w *Widget) handleSetMode(wr http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode session.Mode `json:"mode"`
	}
	if !decodeBody(wr, r, &req) {
		return
	}
	if err := w.core.SetMode(req.Mode); err != nil {
		jsonErr(wr, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]session.Mode{"mode": w.core.State().Mode})
}

func (w *Widget) handleNavigate(wr http.ResponseWriter, r *http.Request) {
	var req struct {
		Page string `json:"page"`
	}
	if !decodeBody(wr, r, &req) {
		return
	}
	if req.Page == "" {
		jsonErr(wr, "page is required", http.StatusBadRequest)
		return
	}
	w.core.HandleNavigation(req.Page)
	writeJSON(wr, http.StatusOK, map[string]string{"current_page": req.Page})
}

func (w *Widget) handleKey(wr http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Ctrl  bool   `json:"ctrl"`
		Alt   bool   `json:"alt"`
		Shift bool   `json:"shift"`
		Meta  bool   `json:"meta"`
	}
	if !decodeBody(wr, r, &req) {
		return
	}
	if req.Key == "" {
		jsonErr(wr, "key is required", http.StatusBadRequest)
		return
	}
	chord := session.NormalizeChord(req.Key, req.Ctrl, req.Alt, req.Shift, req.Meta)
	action, handled := w.core.HandleKey(chord)
	writeJSON(wr, http.StatusOK, map[string]any{"action": action, "handled": handled})
}

func (w *Widget) handleListItems(wr http.ResponseWriter, r *http.Request) {
	st := w.core.State()
	writeJSON(wr, http.StatusOK, map[string]any{
		"session_id": st.SessionID,
		"items":      st.FeedbackItems,
	})
}

func (w *Widget) handleAddItem(wr http.ResponseWriter, r *http.Request) {
	var item feedback.Item
	if !decodeBody(wr, r, &item) {
		return
	}
	added, err := w.core.AddFeedback(item)
	if err != nil {
		jsonErr(wr, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(wr, http.StatusCreated, added)
}

func (w *Widget) handleUpdateItem(wr http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch session.Patch
	if !decodeBody(wr, r, &patch) {
		return
	}
	ok, err := w.core.UpdateFeedback(id, patch)
	if err != nil {
		jsonErr(wr, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		jsonErr(wr, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]string{"id": id, "status": "updated"})
}

func (w *Widget) handleDeleteItem(wr http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !w.core.DeleteFeedback(id) {
		jsonErr(wr, "item not found", http.StatusNotFound)
		return
	}
	wr.WriteHeader(http.StatusNoContent)
}

func (w *Widget) handleClear(wr http.ResponseWriter, r *http.Request) {
	w.core.ClearFeedback()
	writeJSON(wr, http.StatusOK, map[string]string{
		"session_id": w.core.State().SessionID,
		"status":     "cleared",
	})
}

func (w *Widget) handleCapture(wr http.ResponseWriter, r *http.Request) {
	if w.cap == nil {
		jsonErr(wr, "live capture not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Selector string  `json:"selector"`
	}
	if !decodeBody(wr, r, &req) {
		return
	}

	var item feedback.Item
	var err error
	if req.Selector != "" {
		item, err = w.cap.CaptureBySelector(r.Context(), req.Selector)
	} else {
		item, err = w.cap.CaptureAt(r.Context(), req.X, req.Y)
	}
	if err != nil {
		w.logger.Warn("widget: capture failed", "selector", req.Selector, "x", req.X, "y", req.Y, "error", err)
		jsonErr(wr, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(wr, http.StatusOK, item)
}

func (w *Widget) handleExport(wr http.ResponseWriter, r *http.Request) {
	var req struct {
		Format export.Format `json:"format"`
	}
	if !decodeBody(wr, r, &req) {
		return
	}
	text, err := w.core.ExportFeedback(req.Format)
	if err != nil {
		jsonErr(wr, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]any{
		"artifact": text,
		"items":    len(w.core.State().FeedbackItems),
	})
}

func (w *Widget) handleGetConfig(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.core.Config())
}

func (w *Widget) handlePutConfig(wr http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(wr, r.Body, maxBodyBytes)
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		jsonErr(wr, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg, err := w.core.UpdateConfig(r.Context(), patch)
	if err != nil {
		jsonErr(wr, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(wr, http.StatusOK, cfg)
}

// decodeBody decodes a JSON body into dst, writing the error response itself.
// An empty body decodes to the zero value.
func decodeBody(wr http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(wr, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return true
		}
		jsonErr(wr, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(wr http.ResponseWriter, code int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(code)
	json.NewEncoder(wr).Encode(v)
}

func jsonErr(wr http.ResponseWriter, msg string, code int) {
	writeJSON(wr, code, map[string]string{"error": msg})
}
