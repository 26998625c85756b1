// Package app provides the core application service for Wails bindings.
package app

import "go.aimuz.me/whisperia/internal/pipeline"

// Event names for frontend communication.
const (
	EventStatusUpdate          = pipeline.EventStatusUpdate
	EventTranscriptionUpdate   = pipeline.EventTranscriptionUpdate
	EventTranscriptionComplete = pipeline.EventTranscriptionComplete
	EventOverlayHide           = pipeline.EventOverlayHide
	EventConfigChanged         = "config-changed"
)

// StatusView is the frontend shape of a status snapshot.
type StatusView struct {
	Phase      string  `json:"phase"`
	Message    string  `json:"message,omitempty"`
	LastResult *string `json:"lastResult,omitempty"`
	RunID      string  `json:"runId,omitempty"`
	UpdatedAt  int64   `json:"updatedAt"`
}
