// Package session owns the feedback capture state machine: the interaction
// mode, the in-memory item list, user configuration, debounced persistence
// and keyboard dispatch. It exposes actions and read-only state to the
// presentation surfaces (HTTP widget, MCP tools) and orchestrates the
// inspector, the kvstore adapter and the exporter.
//
// There is exactly one logical writer: event handlers invoked by user
// interaction. All transitions are synchronous and atomic under one mutex;
// the only deferred work is the persistence debounce timer, which always
// writes the latest state at fire time.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/pinmark/pinmark/export"
	"github.com/pinmark/pinmark/feedback"
	"github.com/pinmark/pinmark/idgen"
	"github.com/pinmark/pinmark/kvstore"
)

// Persisted schema keys.
const (
	StateKey  = "pinmark:state"
	ConfigKey = "pinmark:config"
)

// EnvFlag activates the core. When unset, every operation is a no-op and the
// exposed state is a fixed, inert default.
const EnvFlag = "PINMARK_ENABLED"

const (
	maxSessionAge   = 7 * 24 * time.Hour
	defaultDebounce = 500 * time.Millisecond
)

// Mode is one of the three mutually exclusive interaction states.
type Mode string

const (
	ModeNavigate Mode = "navigate" // overlay highlights hovered elements, click arms a capture
	ModeAnnotate Mode = "annotate" // annotation modal collects feedback for the last capture
	ModeReview   Mode = "review"   // listing existing items for edit/delete
)

func (m Mode) valid() bool {
	switch m {
	case ModeNavigate, ModeAnnotate, ModeReview:
		return true
	}
	return false
}

// FeedbackState is the full, persisted interaction state.
type FeedbackState struct {
	Enabled       bool            `json:"enabled"`
	Mode          Mode            `json:"mode"`
	FeedbackItems []feedback.Item `json:"feedback_items"`
	CurrentPage   string          `json:"current_page"`
	SessionID     string          `json:"session_id"`
	IsMinimized   bool            `json:"is_minimized"`
}

func (s FeedbackState) clone() FeedbackState {
	out := s
	out.FeedbackItems = append([]feedback.Item(nil), s.FeedbackItems...)
	if out.FeedbackItems == nil {
		out.FeedbackItems = []feedback.Item{}
	}
	return out
}

// persistedState is the envelope written under StateKey.
type persistedState struct {
	State     FeedbackState `json:"state"`
	Timestamp int64         `json:"timestamp"` // unix millis of the write
}

// Patch is a partial update for an item's user-authored feedback.
type Patch struct {
	Type            *feedback.Type     `json:"type,omitempty"`
	Description     *string            `json:"description,omitempty"`
	Priority        *feedback.Priority `json:"priority,omitempty"`
	SuggestedChange *string            `json:"suggested_change,omitempty"`
	Screenshots     []string           `json:"screenshots,omitempty"`
}

// Core is the feedback session state machine.
type Core struct {
	mu     sync.Mutex
	state  FeedbackState
	config Config
	closed bool

	kv        kvstore.KV
	logger    *slog.Logger
	exporter  *export.Exporter
	deb       *debouncer
	debWindow time.Duration

	newItemID    idgen.Generator
	newSessionID idgen.Generator
	clip         func(string) error
	now          func() time.Time
	active       bool
}

// Option configures a Core.
type Option func(*Core)

func WithLogger(l *slog.Logger) Option      { return func(c *Core) { c.logger = l } }
func WithExporter(e *export.Exporter) Option { return func(c *Core) { c.exporter = e } }

// WithClipboard replaces the system clipboard writer (tests, headless hosts).
func WithClipboard(fn func(string) error) Option { return func(c *Core) { c.clip = fn } }

// WithClock fixes the time source.
func WithClock(now func() time.Time) Option { return func(c *Core) { c.now = now } }

// WithItemIDs sets the feedback item ID strategy.
func WithItemIDs(gen idgen.Generator) Option { return func(c *Core) { c.newItemID = gen } }

// WithSessionIDs sets the session ID strategy.
func WithSessionIDs(gen idgen.Generator) Option { return func(c *Core) { c.newSessionID = gen } }

// WithDebounceWindow overrides the 500ms persistence debounce.
func WithDebounceWindow(d time.Duration) Option { return func(c *Core) { c.debWindow = d } }

// WithActivation overrides the EnvFlag gate.
func WithActivation(active bool) Option { return func(c *Core) { c.active = active } }

// New creates a Core, loading any prior session and configuration from kv.
// A stored session older than 7 days is discarded wholesale, never partially
// restored. currentPage is the page the session is loading on; it always
// overrides the persisted value.
func New(ctx context.Context, kv kvstore.KV, currentPage string, opts ...Option) (*Core, error) {
	if kv == nil {
		return nil, fmt.Errorf("session: kv store is required")
	}

	c := &Core{
		kv:           kv,
		logger:       slog.Default(),
		exporter:     export.New(),
		debWindow:    defaultDebounce,
		newItemID:    idgen.Prefixed("fb_", idgen.Default),
		newSessionID: idgen.Prefixed("sess_", idgen.NanoID(12)),
		clip:         clipboard.WriteAll,
		now:          time.Now,
		active:       envActive(),
	}
	for _, o := range opts {
		o(c)
	}

	c.deb = newDebouncer(c.debWindow, c.persistNow)

	if !c.active {
		c.state = FeedbackState{Mode: ModeNavigate, FeedbackItems: []feedback.Item{}}
		c.config = DefaultConfig()
		c.logger.Debug("session: inactive, all operations are no-ops")
		return c, nil
	}

	c.config = c.loadConfigFrom(ctx)
	c.state = c.loadStateFrom(ctx, currentPage)
	return c, nil
}

func envActive() bool {
	switch os.Getenv(EnvFlag) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Active reports whether the core is gated on.
func (c *Core) Active() bool { return c.active }

func (c *Core) loadConfigFrom(ctx context.Context) Config {
	data, ok, err := c.kv.Get(ctx, ConfigKey)
	if err != nil {
		c.logger.Warn("session: config read failed, using defaults", "error", err)
		return DefaultConfig()
	}
	if !ok {
		return DefaultConfig()
	}
	return loadConfig(data)
}

func (c *Core) loadStateFrom(ctx context.Context, currentPage string) FeedbackState {
	fresh := func() FeedbackState {
		return FeedbackState{
			Mode:          ModeNavigate,
			FeedbackItems: []feedback.Item{},
			CurrentPage:   currentPage,
			SessionID:     c.newSessionID(),
		}
	}

	data, ok, err := c.kv.Get(ctx, StateKey)
	if err != nil {
		c.logger.Warn("session: state read failed, starting fresh", "error", err)
		return fresh()
	}
	if !ok {
		return fresh()
	}

	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		c.logger.Warn("session: corrupt stored state, starting fresh", "error", err)
		return fresh()
	}

	age := c.now().Sub(time.UnixMilli(ps.Timestamp))
	if age > maxSessionAge {
		c.logger.Info("session: stored session expired, starting fresh",
			"age", age, "session_id", ps.State.SessionID)
		return fresh()
	}

	st := ps.State
	st.CurrentPage = currentPage
	if st.FeedbackItems == nil {
		st.FeedbackItems = []feedback.Item{}
	}
	if !st.Mode.valid() {
		st.Mode = ModeNavigate
	}
	if st.SessionID == "" {
		st.SessionID = c.newSessionID()
	}
	c.logger.Info("session: restored",
		"session_id", st.SessionID, "items", len(st.FeedbackItems))
	return st
}

// persistNow writes the latest state plus a write timestamp to StateKey.
// Fire-and-forget: a failed write is logged, never surfaced.
func (c *Core) persistNow() {
	c.mu.Lock()
	data, err := json.Marshal(persistedState{
		State:     c.state.clone(),
		Timestamp: c.now().UnixMilli(),
	})
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("session: marshal state failed", "error", err)
		return
	}
	if err := c.kv.Set(context.Background(), StateKey, data); err != nil {
		c.logger.Warn("session: persist failed", "error", err)
	}
}

// schedulePersist is called after every state change, with c.mu NOT held.
func (c *Core) schedulePersist() {
	if !c.active {
		return
	}
	c.deb.trigger()
}

// State returns a copy of the current state.
func (c *Core) State() FeedbackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Config returns a copy of the current configuration.
func (c *Core) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.clone()
}

// ToggleEnabled flips the master switch. Disabling also resets the mode to
// navigate. Returns the new value.
func (c *Core) ToggleEnabled() bool {
	if !c.active {
		return false
	}
	c.mu.Lock()
	c.state.Enabled = !c.state.Enabled
	if !c.state.Enabled {
		c.state.Mode = ModeNavigate
	}
	enabled := c.state.Enabled
	c.mu.Unlock()

	c.schedulePersist()
	return enabled
}

// SetMode transitions between the three modes. Transitions are unconditional
// while the core is enabled; when disabled the call is a no-op.
func (c *Core) SetMode(m Mode) error {
	if !m.valid() {
		return fmt.Errorf("session: unknown mode %q", m)
	}
	if !c.active {
		return nil
	}

	c.mu.Lock()
	if !c.state.Enabled {
		c.mu.Unlock()
		return nil
	}
	c.state.Mode = m
	c.mu.Unlock()

	c.schedulePersist()
	return nil
}

// AddFeedback assigns a fresh id and timestamp and appends the item,
// preserving capture order. It does not change the mode: the annotate flow
// transitions afterwards.
func (c *Core) AddFeedback(item feedback.Item) (feedback.Item, error) {
	if err := item.Feedback.Validate(); err != nil {
		return feedback.Item{}, err
	}
	if !c.active {
		return item, nil
	}

	c.mu.Lock()
	item.ID = c.newItemID()
	item.Timestamp = c.now().UnixMilli()
	if item.Page == "" {
		item.Page = c.state.CurrentPage
	}
	if item.Metadata.CapturedAt == 0 {
		item.Metadata.CapturedAt = item.Timestamp
	}
	c.state.FeedbackItems = append(c.state.FeedbackItems, item)
	c.mu.Unlock()

	c.schedulePersist()
	return item, nil
}

// UpdateFeedback applies a partial update to the item with the given id.
// A missing id is a no-op, reported via the bool.
func (c *Core) UpdateFeedback(id string, patch Patch) (bool, error) {
	if !c.active {
		return false, nil
	}

	c.mu.Lock()
	idx := -1
	for i := range c.state.FeedbackItems {
		if c.state.FeedbackItems[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false, nil
	}

	data := c.state.FeedbackItems[idx].Feedback
	if patch.Type != nil {
		data.Type = *patch.Type
	}
	if patch.Description != nil {
		data.Description = *patch.Description
	}
	if patch.Priority != nil {
		data.Priority = *patch.Priority
	}
	if patch.SuggestedChange != nil {
		data.SuggestedChange = *patch.SuggestedChange
	}
	if patch.Screenshots != nil {
		data.Screenshots = patch.Screenshots
	}
	if err := data.Validate(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.state.FeedbackItems[idx].Feedback = data
	c.mu.Unlock()

	c.schedulePersist()
	return true, nil
}

// DeleteFeedback removes the item with the given id. Missing id is a no-op.
func (c *Core) DeleteFeedback(id string) bool {
	if !c.active {
		return false
	}

	c.mu.Lock()
	removed := false
	items := c.state.FeedbackItems
	for i := range items {
		if items[i].ID == id {
			c.state.FeedbackItems = append(items[:i], items[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed {
		c.schedulePersist()
	}
	return removed
}

// ClearFeedback empties the item list and starts a new session. The new
// session id is guaranteed different from the old one.
func (c *Core) ClearFeedback() {
	if !c.active {
		return
	}

	c.mu.Lock()
	old := c.state.SessionID
	c.state.FeedbackItems = []feedback.Item{}
	for {
		id := c.newSessionID()
		if id != old {
			c.state.SessionID = id
			break
		}
	}
	c.mu.Unlock()

	c.schedulePersist()
}

// ToggleMinimized flips the minimized flag, independent of mode.
func (c *Core) ToggleMinimized() bool {
	if !c.active {
		return false
	}

	c.mu.Lock()
	c.state.IsMinimized = !c.state.IsMinimized
	min := c.state.IsMinimized
	c.mu.Unlock()

	c.schedulePersist()
	return min
}

// HandleNavigation records a page change. Only history back/forward
// navigation is reported by the embedding layer; in-page link navigation
// that never notifies the core does not update the page.
func (c *Core) HandleNavigation(page string) {
	if !c.active {
		return
	}

	c.mu.Lock()
	c.state.CurrentPage = page
	c.mu.Unlock()

	c.schedulePersist()
}

// UpdateConfig merges a JSON patch over the current configuration and
// persists it immediately (not debounced) under its own key.
func (c *Core) UpdateConfig(ctx context.Context, patch []byte) (Config, error) {
	if !c.active {
		return c.Config(), nil
	}

	c.mu.Lock()
	cfg := c.config.clone()
	if err := json.Unmarshal(patch, &cfg); err != nil {
		c.mu.Unlock()
		return Config{}, fmt.Errorf("session: config patch: %w", err)
	}
	if cfg.Shortcuts == nil {
		cfg.Shortcuts = DefaultConfig().Shortcuts
	}
	c.config = cfg
	out := cfg.clone()
	c.mu.Unlock()

	data, err := json.Marshal(out)
	if err != nil {
		return Config{}, fmt.Errorf("session: marshal config: %w", err)
	}
	if err := c.kv.Set(ctx, ConfigKey, data); err != nil {
		c.logger.Warn("session: config persist failed", "error", err)
	}
	return out, nil
}

// ExportFeedback serializes the current items in the requested format (the
// configured default when format is empty), places the text on the system
// clipboard and returns it. An empty item list is not an error: it logs a
// warning and returns "".
func (c *Core) ExportFeedback(format export.Format) (string, error) {
	if !c.active {
		return "", nil
	}

	c.mu.Lock()
	items := c.state.clone().FeedbackItems
	sessionID := c.state.SessionID
	group := c.config.GroupByComponent
	if format == "" {
		format = c.config.ExportFormat
	}
	c.mu.Unlock()

	if len(items) == 0 {
		c.logger.Warn("session: export requested with no feedback items")
		return "", nil
	}

	text, err := c.exporter.Export(format, items, sessionID, group)
	if err != nil {
		return "", err
	}

	if err := c.clip(text); err != nil {
		c.logger.Warn("session: clipboard write failed", "error", err)
	}
	return text, nil
}

// Close flushes any pending persist and tears the core down. The keyboard
// dispatch stops accepting chords after Close.
func (c *Core) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.active {
		c.deb.flush()
	}
}
