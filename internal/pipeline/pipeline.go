// Package pipeline sequences capture, transcription and text injection for
// one trigger at a time and publishes every lifecycle change to observers.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.aimuz.me/whisperia/audiocapture"
	"go.aimuz.me/whisperia/stt"
)

var (
	// ErrBusy is returned by Trigger while a run is Recording or Transcribing.
	ErrBusy = errors.New("pipeline busy")

	// ErrNotCancellable is returned by CancelCurrent when no until-cancelled
	// capture is in progress.
	ErrNotCancellable = errors.New("no cancellable recording in progress")

	// ErrClosed is returned by Trigger after Close.
	ErrClosed = errors.New("pipeline closed")
)

// Notification event names.
const (
	EventStatusUpdate          = "status-update"
	EventTranscriptionUpdate   = "transcription-update"
	EventTranscriptionComplete = "transcription-complete"
	EventOverlayHide           = "overlay-hide"
)

// Status messages carried by EventStatusUpdate.
const (
	StatusRecording    = "Recording..."
	StatusTranscribing = "Transcribing..."
	StatusReady        = "Ready"
)

// Settings is the subset of user configuration read at the start of each
// transcription.
type Settings struct {
	Language      string
	ModelSelector string
	Shortcut      string
}

// Config supplies settings and model locations.
type Config interface {
	Settings() (Settings, error)
	// ModelPath resolves a selector to a model file. It returns
	// stt.ErrModelNotFound when the file does not exist.
	ModelPath(selector string) (string, error)
}

// Capturer records audio from one opened device.
// *audiocapture.Session satisfies it.
type Capturer interface {
	RecordFor(ctx context.Context, d time.Duration) ([]float32, error)
	RecordUntilCancelled(ctx context.Context, cancel <-chan struct{}) ([]float32, error)
}

// CaptureOpener opens the input device for a single run.
type CaptureOpener func() (Capturer, error)

// OpenDevice returns a CaptureOpener backed by an audio backend.
func OpenDevice(backend audiocapture.Backend) CaptureOpener {
	return func() (Capturer, error) {
		s, err := audiocapture.Open(backend)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Transcriber turns 16kHz audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req stt.Request) (*stt.TranscribeResult, error)
}

// Injector types text into the focused application.
type Injector interface {
	TypeText(text string) error
}

// LanguageDetector guesses the ISO-639-1 code of a text.
type LanguageDetector interface {
	Detect(text string) (string, bool)
}

// Recorder persists finished runs. Failures are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Outcome describes a finished run.
type Outcome struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Text     string
	Language string
	Model    string

	// Audio is the 16kHz clip. Recorders must not retain it past Record.
	Audio []float32

	// Err is the stored failure message, empty on success.
	Err string
	// InjectErr is set when the text could not be typed.
	InjectErr string
}

// Result is the payload of EventTranscriptionComplete.
type Result struct {
	RunID    string `json:"runId"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Typed    bool   `json:"typed"`
}
