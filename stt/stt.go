// Package stt provides speech-to-text provider interface and implementations.
package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrModelNotFound is returned when the configured model file does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrTranscription is returned when the engine fails to produce text.
	ErrTranscription = errors.New("transcription failed")

	// ErrNotReady is returned by providers that lack a binary or credentials.
	ErrNotReady = errors.New("provider not ready")
)

// SampleRate is the only input rate providers accept.
const SampleRate = 16000

// TranscribeResult represents the result of a transcription.
type TranscribeResult struct {
	Text       string    `json:"text"`       // Transcribed text
	Language   string    `json:"language"`   // Detected language code
	Confidence float64   `json:"confidence"` // Recognition confidence 0-1
	Segments   []Segment `json:"segments"`   // Time-stamped segments
}

// Segment represents a time-stamped audio segment.
type Segment struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Request is one transcription job.
type Request struct {
	// Audio is mono PCM at SampleRate.
	Audio []float32
	// Language is an ISO-639-1 code; empty or "auto" lets the engine decide.
	Language string
	// ModelPath is the local model file. Remote providers ignore it.
	ModelPath string
}

// Provider defines the interface for speech-to-text providers.
// Both local (whisper.cpp) and remote (OpenAI API) implementations
// must satisfy this interface.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// IsLocal returns true if the provider runs locally without API calls.
	IsLocal() bool

	// IsReady returns true if the provider is ready to use.
	IsReady() bool

	// Transcribe converts audio samples to text.
	Transcribe(ctx context.Context, req Request) (*TranscribeResult, error)

	// Close releases resources held by the provider.
	Close() error
}

// ModelFileName returns the ggml file name for a model selector ("base",
// "small", ...).
func ModelFileName(selector string) string {
	return fmt.Sprintf("ggml-%s.bin", selector)
}

// ResolveModelPath returns dir/ggml-<selector>.bin if it exists.
// A selector that is already a path to an existing file is returned as is.
func ResolveModelPath(dir, selector string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("%w: empty model selector", ErrModelNotFound)
	}

	candidates := []string{filepath.Join(dir, ModelFileName(selector))}
	if strings.ContainsRune(selector, filepath.Separator) || strings.HasSuffix(selector, ".bin") {
		candidates = append([]string{selector}, candidates...)
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotFound, candidates[len(candidates)-1])
}

// ListModels returns the selectors of ggml models present in dir.
func ListModels(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	var models []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "ggml-") || !strings.HasSuffix(name, ".bin") {
			continue
		}
		models = append(models, strings.TrimSuffix(strings.TrimPrefix(name, "ggml-"), ".bin"))
	}
	return models, nil
}

// NormalizeLanguage maps "auto" and blank values to "" (engine decides) and
// lower-cases everything else.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "auto" {
		return ""
	}
	return lang
}
