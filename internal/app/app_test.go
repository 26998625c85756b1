package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/whisperia/config"
	"go.aimuz.me/whisperia/internal/pipeline"
	"go.aimuz.me/whisperia/internal/status"
	"go.aimuz.me/whisperia/stt"
)

type fixedPlatform struct {
	x, y int
	ok   bool
}

func (p fixedPlatform) CursorPosition() (int, int, bool) { return p.x, p.y, p.ok }

func TestOverlayPosition(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		position string
		wantX    int
		wantY    int
		wantOK   bool
	}{
		{"cursor", fixedPlatform{500, 300, true}, "cursor", 516, 324, true},
		{"fallback", fallbackPlatform{}, "cursor", 116, 124, true},
		{"clamped", fixedPlatform{-100, -100, true}, "cursor", 0, 0, true},
		{"center", fixedPlatform{500, 300, true}, "center", 0, 0, false},
		{"unknown_cursor", fixedPlatform{ok: false}, "cursor", 0, 0, false},
		{"nil_platform", nil, "cursor", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := overlayPosition(tt.platform, tt.position)
			if x != tt.wantX || y != tt.wantY || ok != tt.wantOK {
				t.Errorf("overlayPosition() = (%d, %d, %v), want (%d, %d, %v)",
					x, y, ok, tt.wantX, tt.wantY, tt.wantOK)
			}
		})
	}
}

func TestNeedsRebuild(t *testing.T) {
	base := *config.Default()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   bool
	}{
		{"unchanged", func(*config.Config) {}, false},
		{"language", func(c *config.Config) { c.Language = "en" }, false},
		{"local_model", func(c *config.Config) { c.Model.LocalModel = "small" }, false},
		{"theme", func(c *config.Config) { c.UI.Theme = "dark" }, false},
		{"shortcut", func(c *config.Config) { c.Shortcut = "Ctrl+Space" }, false},
		{"model_type", func(c *config.Config) { c.Model.ModelType = config.ModelAPI }, true},
		{"api_key", func(c *config.Config) { c.API.APIKey = "sk-test" }, true},
		{"auto_paste", func(c *config.Config) { c.AutoPaste = false }, true},
		{"seconds", func(c *config.Config) { c.Recording.Seconds = 10 }, true},
		{"auto_hide", func(c *config.Config) { c.UI.AutoHideDelay = 500 }, true},
		{"whisper_command", func(c *config.Config) { c.Whisper.Command = "whisper-cli -t 4" }, true},
		{"history", func(c *config.Config) { c.History.KeepAudio = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base
			tt.mutate(&next)
			if got := needsRebuild(base, next); got != tt.want {
				t.Errorf("needsRebuild() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewOf(t *testing.T) {
	text := "ola"
	at := time.UnixMilli(1_700_000_000_000)
	v := viewOf(status.Snapshot{
		Phase:      status.Failed("no input device"),
		LastResult: &text,
		RunID:      "run-1",
		UpdatedAt:  at,
	})

	if v.Phase != status.Error.String() || v.Message != "no input device" {
		t.Errorf("phase = %q %q", v.Phase, v.Message)
	}
	if v.LastResult == nil || *v.LastResult != "ola" {
		t.Errorf("LastResult = %v", v.LastResult)
	}
	if v.RunID != "run-1" || v.UpdatedAt != at.UnixMilli() {
		t.Errorf("view = %+v", v)
	}
}

func TestServiceWithoutEngine(t *testing.T) {
	s := New("test")

	if err := s.Trigger(); err == nil {
		t.Error("Trigger without engine should fail")
	}
	if err := s.CancelCurrent(); err == nil {
		t.Error("CancelCurrent without engine should fail")
	}
	if v := s.GetStatus(); v.Phase != status.Error.String() {
		t.Errorf("GetStatus phase = %q, want %q", v.Phase, status.Error.String())
	}

	// No app or windows yet: these must be no-ops.
	s.Notify(EventStatusUpdate, "Recording...")
	s.Notify(EventOverlayHide, nil)
	s.OpenSettings()
	s.DismissError()
}

func TestNewTranscriber(t *testing.T) {
	tests := []struct {
		name      string
		modelType string
		wantName  string
		wantErr   bool
	}{
		{"local", config.ModelLocal, "whisper-local", false},
		{"api", config.ModelAPI, "whisper-api", false},
		{"unknown", "cloud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Model.ModelType = tt.modelType
			p, err := NewTranscriber(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTranscriber: %v", err)
			}
			defer p.Close()
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine rebuilds
// ─────────────────────────────────────────────────────────────────────────────

type gatedCapturer struct{ release chan struct{} }

func (c *gatedCapturer) RecordFor(ctx context.Context, _ time.Duration) ([]float32, error) {
	select {
	case <-c.release:
		return make([]float32, 1600), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *gatedCapturer) RecordUntilCancelled(ctx context.Context, cancel <-chan struct{}) ([]float32, error) {
	select {
	case <-cancel:
		return make([]float32, 1600), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fixedTranscriber struct{ text string }

func (f fixedTranscriber) Transcribe(context.Context, stt.Request) (*stt.TranscribeResult, error) {
	return &stt.TranscribeResult{Text: f.text, Language: "en"}, nil
}

type remoteSettings struct{}

func (remoteSettings) Settings() (pipeline.Settings, error) {
	return pipeline.Settings{Language: "en", ModelSelector: "whisper-1"}, nil
}

func (remoteSettings) ModelPath(string) (string, error) { return "", nil }

// engineFactory builds engines around fake devices and counts the builds.
type engineFactory struct {
	capture *gatedCapturer

	mu    sync.Mutex
	built []config.Config
}

func (f *engineFactory) newEngine(cfg *config.Config, opts EngineOptions) (*Engine, error) {
	f.mu.Lock()
	f.built = append(f.built, *cfg)
	f.mu.Unlock()

	e := &Engine{Config: opts.Source, Store: opts.Store, built: *cfg}
	e.Orchestrator = pipeline.New(opts.Store, pipeline.Deps{
		Capture:     func() (pipeline.Capturer, error) { return f.capture, nil },
		Config:      remoteSettings{},
		Transcriber: fixedTranscriber{text: "hello"},
	}, pipeline.Options{})
	return e, nil
}

func (f *engineFactory) builds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func newTestService(t *testing.T, f *engineFactory) *Service {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("AppData", dir)

	s := New("test")
	s.newEngine = f.newEngine
	s.config = config.NewSource(config.Default())
	if err := s.rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConfigChangeKeepsLastResult(t *testing.T) {
	f := &engineFactory{capture: &gatedCapturer{release: make(chan struct{})}}
	s := newTestService(t, f)
	first, err := s.current()
	if err != nil {
		t.Fatal(err)
	}
	s.store.Complete("hello")

	next, err := s.GetConfig()
	if err != nil {
		t.Fatal(err)
	}
	next.AutoPaste = !next.AutoPaste
	if err := s.UpdateConfig(next); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	eng, err := s.current()
	if err != nil {
		t.Fatal(err)
	}
	if eng == first {
		t.Fatal("engine not rebuilt")
	}
	if eng.Store != first.Store || eng.Config != first.Config {
		t.Error("rebuilt engine does not share the status store and config")
	}
	if v := s.GetStatus(); v.LastResult == nil || *v.LastResult != "hello" {
		t.Errorf("LastResult = %v, want hello", v.LastResult)
	}
}

func TestConfigChangesDuringRun(t *testing.T) {
	release := make(chan struct{})
	f := &engineFactory{capture: &gatedCapturer{release: release}}
	s := newTestService(t, f)
	first, _ := s.current()

	if err := s.Trigger(); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	cfg, _ := s.GetConfig()
	cfg.AutoPaste = !cfg.AutoPaste
	if err := s.UpdateConfig(cfg); err != nil {
		t.Fatalf("first UpdateConfig: %v", err)
	}
	cfg.Recording.Seconds = 9
	if err := s.UpdateConfig(cfg); err != nil {
		t.Fatalf("second UpdateConfig: %v", err)
	}

	if eng, _ := s.current(); eng != first {
		t.Fatal("engine replaced while a run was in progress")
	}
	if n := f.builds(); n != 1 {
		t.Fatalf("builds during run = %d, want 1", n)
	}

	close(release)
	waitUntil(t, func() bool {
		eng, err := s.current()
		return err == nil && eng != first
	})
	// Any rebuild still queued must find nothing left to apply.
	if err := s.rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	eng, _ := s.current()
	if eng.built.Recording.Seconds != 9 || eng.built.AutoPaste != cfg.AutoPaste {
		t.Errorf("engine built from %+v, want the latest config", eng.built.Recording)
	}
	if n := f.builds(); n != 2 {
		t.Errorf("builds = %d, want 2", n)
	}

	snap := s.store.Read()
	if snap.Phase.Kind != status.Idle {
		t.Errorf("phase = %v, want idle: the admitted run must finish", snap.Phase)
	}
	if snap.LastResult == nil || *snap.LastResult != "hello" {
		t.Errorf("LastResult = %v, want hello", snap.LastResult)
	}
}
