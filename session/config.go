package session

import (
	"encoding/json"

	"github.com/pinmark/pinmark/export"
)

// Shortcut action names bindable in Config.Shortcuts.
const (
	ActionToggle   = "toggle"
	ActionAnnotate = "annotate"
	ActionReview   = "review"
	ActionExport   = "export"
	ActionMinimize = "minimize"
)

// Config holds the user-tunable preferences of the capture widget. It is
// persisted separately from session state, immediately on every change.
type Config struct {
	Theme            string            `json:"theme"`
	Position         string            `json:"position"`
	Shortcuts        map[string]string `json:"shortcuts"`
	ExportFormat     export.Format     `json:"export_format"`
	GroupByComponent bool              `json:"group_by_component"`
	ShowHints        bool              `json:"show_hints"`
}

// DefaultConfig returns a complete configuration. Loads always merge stored
// data over this, so fields introduced after a config was persisted are
// still populated.
func DefaultConfig() Config {
	return Config{
		Theme:        "dark",
		Position:     "bottom-right",
		ExportFormat: export.FormatMarkdown,
		Shortcuts: map[string]string{
			ActionToggle:   "ctrl+shift+f",
			ActionAnnotate: "ctrl+shift+a",
			ActionReview:   "ctrl+shift+r",
			ActionExport:   "ctrl+shift+e",
			ActionMinimize: "ctrl+shift+m",
		},
		GroupByComponent: true,
		ShowHints:        true,
	}
}

// loadConfig merges persisted JSON over the defaults. Unmarshalling into a
// pre-populated struct keeps default values for absent fields, and merges
// into the existing shortcuts map rather than replacing it. Corrupt data
// yields the defaults.
func loadConfig(data []byte) Config {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig()
	}
	if cfg.Shortcuts == nil {
		cfg.Shortcuts = DefaultConfig().Shortcuts
	}
	return cfg
}

// clone returns a deep copy so callers cannot mutate the core's config.
func (c Config) clone() Config {
	out := c
	out.Shortcuts = make(map[string]string, len(c.Shortcuts))
	for k, v := range c.Shortcuts {
		out.Shortcuts[k] = v
	}
	return out
}
