// Package feedback defines the data model shared by the session core, the
// exporter and the presentation surfaces: feedback items, their user-authored
// content, and the capture metadata attached to each item.
package feedback

import (
	"fmt"

	"github.com/pinmark/pinmark/inspector"
)

// Type classifies what kind of change the feedback asks for.
type Type string

const (
	TypeStyle    Type = "style"
	TypeContent  Type = "content"
	TypeBehavior Type = "behavior"
	TypeLayout   Type = "layout"
	TypeFeature  Type = "feature"
)

// Priority ranks how urgent the requested change is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Data is the user-authored part of a feedback item. Free-form.
type Data struct {
	Type            Type     `json:"type"`
	Description     string   `json:"description"`
	Priority        Priority `json:"priority"`
	SuggestedChange string   `json:"suggested_change,omitempty"`
	Screenshots     []string `json:"screenshots,omitempty"`
}

// Validate checks the enum fields and the required description. An empty
// priority defaults to medium.
func (d *Data) Validate() error {
	switch d.Type {
	case TypeStyle, TypeContent, TypeBehavior, TypeLayout, TypeFeature:
	default:
		return fmt.Errorf("feedback: unknown type %q", d.Type)
	}
	if d.Description == "" {
		return fmt.Errorf("feedback: description is required")
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	switch d.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("feedback: unknown priority %q", d.Priority)
	}
	return nil
}

// Viewport is the browser viewport size at capture time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Metadata is the environment snapshot attached to each item at capture time.
type Metadata struct {
	Viewport   Viewport `json:"viewport"`
	UserAgent  string   `json:"user_agent"`
	CapturedAt int64    `json:"captured_at"` // unix millis
}

// Item is one captured piece of feedback. Element data is produced once at
// capture time and never recomputed: the live element may no longer exist.
type Item struct {
	ID        string                `json:"id"`
	Timestamp int64                 `json:"timestamp"` // unix millis
	Page      string                `json:"page"`
	Element   inspector.ElementData `json:"element"`
	Feedback  Data                  `json:"feedback"`
	Metadata  Metadata              `json:"metadata"`
}
