package admin

import (
	"github.com/mesh-intelligence/shelf/internal/listing"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notification is the user-visible outcome of the last transition.
type Notification struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	// Kind is the error taxonomy label for error notifications.
	Kind string `json:"kind,omitempty"`
}

// FormState is the render view of the form session.
type FormState struct {
	Mode     string       `json:"mode"`
	Draft    types.Record `json:"draft,omitempty"`
	TargetID string       `json:"target_id,omitempty"`
}

// GateState is the render view of the deletion gate.
type GateState struct {
	Open      bool   `json:"open"`
	PendingID string `json:"pending_id,omitempty"`
}

// State is everything a renderer needs after a transition.
type State struct {
	Resource string         `json:"resource"`
	Loaded   bool           `json:"loaded"`
	Records  []types.Record `json:"-"`
	Listing  listing.Page   `json:"listing"`
	Form     FormState      `json:"form"`
	Gate     GateState      `json:"gate"`
	Busy     bool           `json:"busy"`
	Notice   *Notification  `json:"notice,omitempty"`
}

// Renderer receives the page state after every transition. Render is called
// without the page lock held and may call back into the page.
type Renderer interface {
	Render(State)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(State)

// Render calls f(s).
func (f RendererFunc) Render(s State) { f(s) }

type nopRenderer struct{}

func (nopRenderer) Render(State) {}
