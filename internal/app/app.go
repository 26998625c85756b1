// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/whisperia/clipboard"
	"go.aimuz.me/whisperia/config"
	"go.aimuz.me/whisperia/hotkey"
	"go.aimuz.me/whisperia/inject"
	"go.aimuz.me/whisperia/internal/history"
	"go.aimuz.me/whisperia/internal/pipeline"
	"go.aimuz.me/whisperia/internal/status"
	"go.aimuz.me/whisperia/internal/telemetry"
)

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the pipeline lives in Engine.
type Service struct {
	mu     sync.Mutex
	engine *Engine
	hotkey *hotkey.HotkeyManager
	tel    *telemetry.Telemetry
	closed bool

	// store and config outlive engine rebuilds.
	store  *status.Store
	config *config.Source

	rebuildMu sync.Mutex
	newEngine func(*config.Config, EngineOptions) (*Engine, error)

	// UI references - set via Init
	app      *application.App
	overlay  application.Window
	settings application.Window
	platform Platform

	desktop *inject.DesktopNotifier

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string) *Service {
	return &Service{
		version:   version,
		platform:  fallbackPlatform{},
		desktop:   inject.NewDesktopNotifier(),
		store:     status.New(),
		newEngine: NewEngine,
	}
}

// SetPlatform replaces the host services used for overlay placement.
func (s *Service) SetPlatform(p Platform) {
	if p != nil {
		s.platform = p
	}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, overlay, settings application.Window) {
	s.app = app
	s.overlay = overlay
	s.settings = settings

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("config has invalid fields", "error", err)
	}

	s.config = config.NewSource(cfg)
	s.setupTelemetry(cfg)

	if err := s.rebuild(); err != nil {
		slog.Error("setup engine", "error", err)
	}
	s.setupHotkey(cfg.Shortcut)
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	s.mu.Lock()
	hk, eng, tel := s.hotkey, s.engine, s.tel
	s.hotkey, s.engine, s.tel = nil, nil, nil
	s.closed = true
	s.mu.Unlock()

	if hk != nil {
		hk.Stop()
	}
	if eng != nil {
		if err := eng.Close(); err != nil {
			slog.Error("close engine", "error", err)
		}
	}
	if tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			slog.Error("shutdown telemetry", "error", err)
		}
	}
}

func (s *Service) setupTelemetry(cfg *config.Config) {
	tel, err := telemetry.Setup(context.Background(), telemetry.Config{
		Service:      "whisperia",
		Version:      s.version,
		MetricsAddr:  cfg.Telemetry.MetricsAddr,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		StdoutTraces: cfg.Telemetry.StdoutTraces,
	})
	if err != nil {
		slog.Error("setup telemetry", "error", err)
		return
	}
	s.tel = tel
}

func (s *Service) engineOptions() EngineOptions {
	opts := EngineOptions{
		Notifier: pipeline.Notifiers{s, s.desktop},
		Store:    s.store,
		Source:   s.config,
	}
	if s.app != nil {
		opts.Clipboard = clipboard.New(s.app)
	}
	return opts
}

// rebuild replaces the engine when the configuration has moved past the one
// it was assembled from. Rebuilds are serialized and always use the latest
// configuration. The old engine finishes its admitted run first; triggers
// arriving meanwhile get pipeline.ErrClosed.
func (s *Service) rebuild() error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	if s.config == nil {
		return errNotInitialized
	}
	latest := s.config.Get()

	s.mu.Lock()
	old, closed := s.engine, s.closed
	s.mu.Unlock()
	if closed || (old != nil && !needsRebuild(old.built, latest)) {
		return nil
	}

	if old != nil {
		old.Orchestrator.Drain()
		if err := old.Close(); err != nil {
			slog.Warn("close previous engine", "error", err)
		}
		// Saves made while the run drained are applied too.
		latest = s.config.Get()
	}

	eng, err := s.newEngine(&latest, s.engineOptions())
	if err != nil && old != nil {
		slog.Error("build engine, keeping previous settings", "error", err)
		var ferr error
		if eng, ferr = s.newEngine(&old.built, s.engineOptions()); ferr != nil {
			slog.Error("rebuild previous engine", "error", ferr)
			eng = nil
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if eng != nil {
			eng.Close()
		}
		return nil
	}
	s.engine = eng
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	return nil
}

func (s *Service) setupHotkey(shortcut string) {
	hk, err := hotkey.NewHotkeyManager(shortcut, func() {
		err := s.Toggle()
		if err != nil && !errors.Is(err, pipeline.ErrBusy) && !errors.Is(err, pipeline.ErrClosed) {
			slog.Error("hotkey trigger", "error", err)
		}
	})
	if err != nil {
		slog.Error("parse shortcut", "shortcut", shortcut, "error", err)
		return
	}

	s.mu.Lock()
	old := s.hotkey
	s.hotkey = hk
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if err := hk.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

var (
	errNotInitialized = errors.New("service not initialized")
	errNoEngine       = errors.New("transcription engine not available")
)

func (s *Service) current() (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, errNoEngine
	}
	return s.engine, nil
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// Notify forwards pipeline events to the frontend and drives the overlay.
func (s *Service) Notify(event string, payload any) {
	s.emit(event, payload)

	switch event {
	case EventStatusUpdate:
		if msg, _ := payload.(string); msg == pipeline.StatusRecording {
			s.ShowOverlay()
		}
	case EventOverlayHide:
		s.HideOverlay()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline
// ─────────────────────────────────────────────────────────────────────────────

// Trigger starts a transcription run.
func (s *Service) Trigger() error {
	eng, err := s.current()
	if err != nil {
		return err
	}
	return eng.Orchestrator.Trigger(context.Background())
}

// Toggle starts a run or stops an open-ended recording.
func (s *Service) Toggle() error {
	eng, err := s.current()
	if err != nil {
		return err
	}
	return eng.Orchestrator.Toggle(context.Background())
}

// CancelCurrent stops an open-ended recording; the audio is still
// transcribed.
func (s *Service) CancelCurrent() error {
	eng, err := s.current()
	if err != nil {
		return err
	}
	return eng.Orchestrator.CancelCurrent()
}

// GetStatus returns the current pipeline status.
func (s *Service) GetStatus() StatusView {
	if _, err := s.current(); err != nil {
		return StatusView{Phase: status.Error.String(), Message: err.Error()}
	}
	return viewOf(s.store.Read())
}

// DismissError clears an error status.
func (s *Service) DismissError() {
	s.store.Reset()
}

func viewOf(snap status.Snapshot) StatusView {
	return StatusView{
		Phase:      snap.Phase.Kind.String(),
		Message:    snap.Phase.Message,
		LastResult: snap.LastResult,
		RunID:      snap.RunID,
		UpdatedAt:  snap.UpdatedAt.UnixMilli(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetConfig returns the active configuration.
func (s *Service) GetConfig() (config.Config, error) {
	if s.config == nil {
		return config.Config{}, errNotInitialized
	}
	return s.config.Get(), nil
}

// UpdateConfig validates, saves and applies next. Changes that affect the
// engine take effect once the current run finishes.
func (s *Service) UpdateConfig(next config.Config) error {
	if s.config == nil {
		return errNotInitialized
	}
	prev := s.config.Get()
	if err := s.config.Update(next); err != nil {
		return err
	}
	s.emit(EventConfigChanged, next)

	s.mu.Lock()
	eng := s.engine
	s.mu.Unlock()
	if eng == nil || needsRebuild(eng.built, next) {
		if s.store.Read().Phase.Busy() {
			go func() {
				if err := s.rebuild(); err != nil {
					slog.Error("apply config", "error", err)
				}
			}()
		} else if err := s.rebuild(); err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
	}
	if strings.TrimSpace(prev.Shortcut) != strings.TrimSpace(next.Shortcut) {
		s.setupHotkey(next.Shortcut)
	}
	return nil
}

// needsRebuild reports whether a change reaches beyond the per-run settings
// the pipeline already rereads.
func needsRebuild(prev, next config.Config) bool {
	return prev.AutoPaste != next.AutoPaste ||
		prev.Model.ModelType != next.Model.ModelType ||
		prev.API != next.API ||
		prev.UI.AutoHideDelay != next.UI.AutoHideDelay ||
		prev.Recording != next.Recording ||
		prev.Whisper != next.Whisper ||
		prev.History != next.History
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns up to limit recent runs, newest first.
func (s *Service) GetHistory(limit int) ([]history.Entry, error) {
	eng, err := s.current()
	if err != nil {
		return nil, err
	}
	if eng.History == nil {
		return nil, nil
	}
	return eng.History.List(limit)
}

// DeleteHistoryEntry removes one run from the history.
func (s *Service) DeleteHistoryEntry(id string) error {
	eng, err := s.current()
	if err != nil {
		return err
	}
	if eng.History == nil {
		return nil
	}
	return eng.History.Delete(id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Windows
// ─────────────────────────────────────────────────────────────────────────────

// OpenSettings shows the settings window.
func (s *Service) OpenSettings() {
	if s.settings != nil {
		s.settings.Show()
		s.settings.Focus()
	}
}

// ShowOverlay places the overlay near the cursor, or centers it, and shows
// it without taking focus.
func (s *Service) ShowOverlay() {
	if s.overlay == nil {
		return
	}
	position := "cursor"
	if s.config != nil {
		position = s.config.Get().UI.Position
	}
	if x, y, ok := overlayPosition(s.platform, position); ok {
		s.overlay.SetPosition(x, y)
	} else {
		s.overlay.Center()
	}
	s.overlay.Show()
}

// HideOverlay hides the overlay.
func (s *Service) HideOverlay() {
	if s.overlay != nil {
		s.overlay.Hide()
	}
}
