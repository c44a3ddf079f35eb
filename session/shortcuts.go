package session

import (
	"sort"
	"strings"
)

// Chord is a normalized key combination: sorted modifier names joined with
// "+", the plain key last, all lower case ("ctrl+shift+f").

// modifier names in canonical form.
var modifierOrder = map[string]int{"alt": 0, "ctrl": 1, "meta": 2, "shift": 3}

// NormalizeChord builds the canonical chord string from raw modifier flags
// and the pressed key, the way a key-event listener sees them.
func NormalizeChord(key string, ctrl, alt, shift, meta bool) string {
	var parts []string
	if alt {
		parts = append(parts, "alt")
	}
	if ctrl {
		parts = append(parts, "ctrl")
	}
	if meta {
		parts = append(parts, "meta")
	}
	if shift {
		parts = append(parts, "shift")
	}
	parts = append(parts, strings.ToLower(key))
	return strings.Join(parts, "+")
}

// normalizeChordString canonicalizes a configured binding such as
// "Shift+Ctrl+F" so comparison is order- and case-insensitive.
func normalizeChordString(s string) string {
	raw := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	var mods []string
	key := ""
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := modifierOrder[p]; ok {
			mods = append(mods, p)
		} else {
			key = p
		}
	}
	sort.Slice(mods, func(i, j int) bool {
		return modifierOrder[mods[i]] < modifierOrder[mods[j]]
	})
	if key != "" {
		mods = append(mods, key)
	}
	return strings.Join(mods, "+")
}

// HandleKey dispatches a normalized chord against the configured bindings.
// The toggle binding is always live; every other binding only fires while
// the core is enabled and not minimized. Returns the action performed, if
// any.
func (c *Core) HandleKey(chord string) (string, bool) {
	if !c.active {
		return "", false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", false
	}
	chord = normalizeChordString(chord)
	action := ""
	for act, binding := range c.config.Shortcuts {
		if normalizeChordString(binding) == chord {
			action = act
			break
		}
	}
	enabled := c.state.Enabled
	minimized := c.state.IsMinimized
	c.mu.Unlock()

	if action == "" {
		return "", false
	}
	if action != ActionToggle && (!enabled || minimized) {
		return "", false
	}

	switch action {
	case ActionToggle:
		c.ToggleEnabled()
	case ActionAnnotate:
		if err := c.SetMode(ModeAnnotate); err != nil {
			return "", false
		}
	case ActionReview:
		if err := c.SetMode(ModeReview); err != nil {
			return "", false
		}
	case ActionExport:
		if _, err := c.ExportFeedback(""); err != nil {
			c.logger.Warn("session: export via shortcut failed", "error", err)
			return "", false
		}
	case ActionMinimize:
		c.ToggleMinimized()
	default:
		return "", false
	}
	return action, true
}
