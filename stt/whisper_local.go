package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// WhisperLocal implements the Provider interface using local whisper.cpp.
// It shells out to the whisper.cpp CLI and reads its JSON output.
type WhisperLocal struct {
	cmd []string // binary followed by extra arguments

	// whisper.cpp is CPU bound; overlapping runs only slow each other down.
	mu sync.Mutex
}

// WhisperLocalConfig holds configuration for WhisperLocal.
type WhisperLocalConfig struct {
	// Command overrides binary discovery, e.g. "whisper-cli -t 4".
	Command string
}

// NewWhisperLocal creates a new WhisperLocal provider. When Command is empty
// the binary is looked up on PATH and in common install locations.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if strings.TrimSpace(cfg.Command) != "" {
		args, err := shellwords.NewParser().Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse whisper command: %w", err)
		}
		if len(args) == 0 {
			return nil, errors.New("whisper command is empty")
		}
		return &WhisperLocal{cmd: args}, nil
	}

	w := &WhisperLocal{}
	if bin := findWhisperBinary(); bin != "" {
		w.cmd = []string{bin}
	}
	return w, nil
}

func (w *WhisperLocal) Name() string { return "whisper-local" }
func (w *WhisperLocal) DisplayName() string {
	if !w.IsReady() {
		return "Whisper Local [whisper.cpp not installed]"
	}
	return "Whisper Local"
}
func (w *WhisperLocal) IsLocal() bool { return true }

// IsReady returns true if a whisper.cpp binary is configured.
func (w *WhisperLocal) IsReady() bool {
	return len(w.cmd) > 0
}

// Binary returns the resolved binary path, or "" if none was found.
func (w *WhisperLocal) Binary() string {
	if len(w.cmd) == 0 {
		return ""
	}
	return w.cmd[0]
}

// Transcribe converts audio samples to text using local whisper.cpp.
func (w *WhisperLocal) Transcribe(ctx context.Context, req Request) (*TranscribeResult, error) {
	if !w.IsReady() {
		return nil, fmt.Errorf("%w: whisper.cpp binary not found", ErrNotReady)
	}
	if _, err := os.Stat(req.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, req.ModelPath)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	audioPath, err := WriteTempWAV(req.Audio, SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer os.Remove(audioPath)

	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)

	language := NormalizeLanguage(req.Language)
	if language == "" {
		language = "auto"
	}

	args := append([]string{}, w.cmd[1:]...)
	args = append(args,
		"-m", req.ModelPath,
		"-f", audioPath,
		"-l", language,
		"-oj", // JSON output file
		"-of", outBase,
		"-np", // no prints
	)

	cmd := exec.CommandContext(ctx, w.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: whisper.cpp: %v: %s", ErrTranscription, err, strings.TrimSpace(stderr.String()))
	}
	slog.Debug("whisper.cpp finished", "elapsed", time.Since(start), "samples", len(req.Audio))

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		// Older builds ignore -of; fall back to the text on stdout.
		return &TranscribeResult{
			Text:       CleanText(stdout.String()),
			Language:   NormalizeLanguage(req.Language),
			Confidence: 0.8,
		}, nil
	}
	return parseWhisperCppOutput(data)
}

func (w *WhisperLocal) Close() error {
	return nil
}

func parseWhisperCppOutput(data []byte) (*TranscribeResult, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode whisper.cpp output: %v", ErrTranscription, err)
	}

	result := &TranscribeResult{
		Language:   out.Result.Language,
		Confidence: 0.9,
		Segments:   make([]Segment, 0, len(out.Transcription)),
	}

	var text strings.Builder
	for _, seg := range out.Transcription {
		text.WriteString(seg.Text)
		result.Segments = append(result.Segments, Segment{
			Text:  CleanText(seg.Text),
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   time.Duration(seg.Offsets.To) * time.Millisecond,
		})
	}
	result.Text = CleanText(text.String())
	return result, nil
}

func findWhisperBinary() string {
	// Common binary names - whisper-cli is the Homebrew name
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp", "build", "bin"),
	}

	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	// On macOS, check for bundled binary
	if runtime.GOOS == "darwin" {
		execPath, _ := os.Executable()
		bundlePath := filepath.Join(filepath.Dir(execPath), "..", "Resources", "whisper-cli")
		if _, err := os.Stat(bundlePath); err == nil {
			return bundlePath
		}
	}

	return ""
}

// whisperCppOutput represents the JSON output from whisper.cpp.
// Offsets are in milliseconds.
type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}
