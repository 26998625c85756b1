package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/whisperia/audiocapture"
	"go.aimuz.me/whisperia/config"
	"go.aimuz.me/whisperia/inject"
	"go.aimuz.me/whisperia/internal/history"
	"go.aimuz.me/whisperia/internal/pipeline"
	"go.aimuz.me/whisperia/internal/status"
	"go.aimuz.me/whisperia/langdetect"
	"go.aimuz.me/whisperia/stt"
)

// EngineOptions adjust how NewEngine assembles the pipeline.
type EngineOptions struct {
	// Notifier receives pipeline events in addition to the log.
	Notifier pipeline.Notifier

	// RecordDuration overrides recording.seconds when positive.
	RecordDuration time.Duration
	// UntilCancelled overrides recording.until_cancelled when non-nil.
	UntilCancelled *bool
	// ModelPath pins the model file.
	ModelPath string
	// ResultHold overrides ui.auto_hide_delay when non-nil.
	ResultHold *time.Duration

	// Clipboard replaces the system clipboard used for pasting.
	Clipboard inject.Clipboard
	// NoInject leaves the text untyped even when auto_paste is on.
	NoInject bool
	// NoHistory skips opening the history database.
	NoHistory bool

	// Store receives the pipeline status. Nil creates a fresh one.
	Store *status.Store
	// Source is the live configuration the pipeline rereads on each run.
	// Nil wraps cfg.
	Source *config.Source
}

// Engine is the assembled pipeline together with the resources it owns.
type Engine struct {
	Config       *config.Source
	Store        *status.Store
	Orchestrator *pipeline.Orchestrator
	History      *history.Store // nil when disabled

	audio       *audiocapture.PortAudio
	transcriber stt.Provider
	built       config.Config // configuration the engine was assembled from

	closeOnce sync.Once
	closeErr  error
}

// NewEngine wires capture, transcription, injection and history from cfg.
func NewEngine(cfg *config.Config, opts EngineOptions) (*Engine, error) {
	e := &Engine{
		Config: opts.Source,
		Store:  opts.Store,
		audio:  audiocapture.NewPortAudio(audiocapture.ParseFormat(cfg.Recording.SampleFormat)),
		built:  *cfg,
	}
	if e.Config == nil {
		e.Config = config.NewSource(cfg)
	}
	if e.Store == nil {
		e.Store = status.New()
	}
	if opts.ModelPath != "" {
		e.Config.OverrideModelPath(opts.ModelPath)
	}

	t, err := NewTranscriber(cfg)
	if err != nil {
		return nil, err
	}
	e.transcriber = t
	if !t.IsReady() {
		slog.Warn("transcriber not ready", "provider", t.DisplayName())
	}

	notifiers := pipeline.Notifiers{pipeline.LogNotifier{}}
	if opts.Notifier != nil {
		notifiers = append(notifiers, opts.Notifier)
	}

	deps := pipeline.Deps{
		Capture:     pipeline.OpenDevice(e.audio),
		Config:      e.Config,
		Transcriber: t,
		Notifier:    notifiers,
		Detector:    langdetect.Detector{},
	}
	if cfg.AutoPaste && !opts.NoInject {
		var pasteOpts []inject.Option
		if opts.Clipboard != nil {
			pasteOpts = append(pasteOpts, inject.WithClipboard(opts.Clipboard))
		}
		deps.Injector = inject.NewPaster(pasteOpts...)
	}

	if cfg.History.Enabled && !opts.NoHistory {
		h, err := OpenHistory(cfg)
		if err != nil {
			slog.Error("open history", "error", err)
		} else {
			e.History = h
			deps.Recorder = h
		}
	}

	po := pipeline.Options{
		RecordDuration: cfg.RecordDuration(),
		UntilCancelled: cfg.Recording.UntilCancelled,
		ResultHold:     cfg.AutoHideDelay(),
	}
	if cfg.Recording.TrimSilence {
		po.SilenceThreshold = audiocapture.DefaultSilenceThreshold
	}
	if opts.RecordDuration > 0 {
		po.RecordDuration = opts.RecordDuration
	}
	if opts.UntilCancelled != nil {
		po.UntilCancelled = *opts.UntilCancelled
	}
	if opts.ResultHold != nil {
		po.ResultHold = *opts.ResultHold
	}

	e.Orchestrator = pipeline.New(e.Store, deps, po)
	return e, nil
}

// Close stops the pipeline and releases the device, transcriber and
// history database. Later calls return the first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		if e.Orchestrator != nil {
			errs = append(errs, e.Orchestrator.Close())
		}
		if e.transcriber != nil {
			errs = append(errs, e.transcriber.Close())
		}
		if e.History != nil {
			errs = append(errs, e.History.Close())
		}
		if e.audio != nil {
			errs = append(errs, e.audio.Close())
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

// Devices lists the input devices of the engine's audio backend.
func (e *Engine) Devices() ([]audiocapture.DeviceInfo, error) {
	return audiocapture.Devices(e.audio)
}

// NewTranscriber returns the provider selected by model.model_type.
func NewTranscriber(cfg *config.Config) (stt.Provider, error) {
	switch cfg.Model.ModelType {
	case config.ModelAPI:
		return stt.NewWhisperAPI(stt.WhisperAPIConfig{
			APIKey:  cfg.API.APIKey,
			BaseURL: cfg.APIBaseURL(),
			Model:   cfg.API.Model,
		}), nil
	case config.ModelLocal, "":
		w, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{Command: cfg.Whisper.Command})
		if err != nil {
			return nil, fmt.Errorf("create local transcriber: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown model type: %q", cfg.Model.ModelType)
	}
}

// OpenHistory opens the on-disk history database configured by cfg.
func OpenHistory(cfg *config.Config) (*history.Store, error) {
	dir, err := config.HistoryDir()
	if err != nil {
		return nil, err
	}
	return history.Open(history.Options{
		Dir:       dir,
		Retention: cfg.HistoryRetention(),
		KeepAudio: cfg.History.KeepAudio,
	})
}
