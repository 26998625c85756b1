package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"go.aimuz.me/whisperia/audiocapture"
	"go.aimuz.me/whisperia/internal/status"
	"go.aimuz.me/whisperia/stt"
)

// Options tune a single Orchestrator.
type Options struct {
	// RecordDuration is the fixed capture length. Defaults to 5s.
	RecordDuration time.Duration

	// UntilCancelled records until CancelCurrent instead of for
	// RecordDuration.
	UntilCancelled bool

	// ResultHold is how long the result stays visible before
	// EventOverlayHide. Zero hides immediately.
	ResultHold time.Duration

	// SilenceThreshold trims leading and trailing silence at this RMS
	// level before transcription. Zero disables trimming.
	SilenceThreshold float32
}

// Deps are the collaborators of an Orchestrator. Capture, Config and
// Transcriber are required; the rest may be nil.
type Deps struct {
	Capture     CaptureOpener
	Config      Config
	Transcriber Transcriber
	Injector    Injector
	Notifier    Notifier
	Recorder    Recorder
	Detector    LanguageDetector

	// Meter provides the pipeline instruments. Nil uses the global
	// MeterProvider.
	Meter metric.MeterProvider
}

// Orchestrator runs at most one capture-to-injection pipeline at a time.
// Trigger never blocks on the pipeline itself; each admitted run executes
// on its own goroutine.
type Orchestrator struct {
	store *status.Store
	deps  Deps
	opts  Options
	inst  instruments

	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	cancel chan struct{} // open while an until-cancelled capture runs
	closed bool
	wg     sync.WaitGroup

	release sync.Once // drops the metric callback

	newRunID func() string
}

// New creates an Orchestrator that publishes into store.
func New(store *status.Store, deps Deps, opts Options) *Orchestrator {
	if opts.RecordDuration <= 0 {
		opts.RecordDuration = 5 * time.Second
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		deps:     deps,
		opts:     opts,
		inst:     newInstruments(deps.Meter, store),
		ctx:      ctx,
		stop:     stop,
		newRunID: newRunID,
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Trigger admits a new run or returns ErrBusy without touching the status
// store. It returns as soon as the run is admitted.
func (o *Orchestrator) Trigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}

	runID := o.newRunID()
	if !o.store.Admit(runID) {
		o.mu.Unlock()
		o.inst.busy()
		slog.Debug("trigger rejected", "reason", "busy")
		return ErrBusy
	}

	var cancel chan struct{}
	if o.opts.UntilCancelled {
		cancel = make(chan struct{})
		o.cancel = cancel
	}
	o.wg.Add(1)
	o.mu.Unlock()

	slog.Info("run admitted", "run_id", runID, "until_cancelled", cancel != nil)
	o.deps.Notifier.Notify(EventStatusUpdate, StatusRecording)

	go o.run(runID, cancel)
	return nil
}

// Status returns the current snapshot.
func (o *Orchestrator) Status() status.Snapshot {
	return o.store.Read()
}

// CancelCurrent ends an until-cancelled capture. The captured audio is
// still transcribed.
func (o *Orchestrator) CancelCurrent() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel == nil {
		return ErrNotCancellable
	}
	close(o.cancel)
	o.cancel = nil
	return nil
}

// Toggle starts a run, or ends the current until-cancelled capture. It is
// the natural binding for a single push-to-talk key.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	err := o.Trigger(ctx)
	// A draining orchestrator still lets the open capture be stopped.
	if (errors.Is(err, ErrBusy) || errors.Is(err, ErrClosed)) && o.opts.UntilCancelled {
		if cerr := o.CancelCurrent(); cerr == nil {
			return nil
		}
	}
	return err
}

// Wait blocks until every admitted run has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Drain rejects further triggers and waits for the run in progress to
// finish on its own. The store keeps whatever that run published.
func (o *Orchestrator) Drain() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
}

// Close rejects further triggers, aborts the run in progress and waits for
// it to return.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	if o.cancel != nil {
		close(o.cancel)
		o.cancel = nil
	}
	o.mu.Unlock()

	o.stop()
	o.wg.Wait()
	o.release.Do(o.inst.unregister)
	return nil
}

func (o *Orchestrator) run(runID string, cancel chan struct{}) {
	defer o.wg.Done()

	out := Outcome{RunID: runID, StartedAt: time.Now()}

	ctx, span := startSpan(o.ctx, "pipeline.run", attribute.String("run_id", runID))
	defer func() { endSpan(span, out.Err) }()

	// Every exit funnels through here: the phase never stays busy.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic", "run_id", runID, "panic", r)
			o.fail(&out, fmt.Sprintf("internal error: %v", r))
		} else if snap := o.store.Read(); snap.Phase.Busy() && snap.RunID == runID {
			o.fail(&out, "run interrupted")
		}
		o.releaseCancel(cancel)
	}()

	samples, ok := o.capture(ctx, &out, cancel)
	if !ok {
		return
	}
	out.Audio = samples

	o.store.SetPhase(status.Phase{Kind: status.Transcribing})
	o.deps.Notifier.Notify(EventStatusUpdate, StatusTranscribing)

	res, ok := o.transcribe(ctx, &out, samples)
	if !ok {
		return
	}
	out.Text = res.Text
	out.Language = res.Language

	typed := o.inject(ctx, &out)

	o.store.Complete(out.Text)
	out.Duration = time.Since(out.StartedAt)
	o.inst.run("success")
	slog.Info("run complete", "run_id", runID, "chars", len(out.Text), "elapsed", out.Duration)

	o.deps.Notifier.Notify(EventTranscriptionUpdate, out.Text)
	o.deps.Notifier.Notify(EventTranscriptionComplete, Result{
		RunID:    runID,
		Text:     out.Text,
		Language: out.Language,
		Typed:    typed,
	})
	if typed {
		o.deps.Notifier.Notify(EventStatusUpdate, StatusReady)
	}

	o.record(out)
	o.hold(runID)
}

func (o *Orchestrator) capture(ctx context.Context, out *Outcome, cancel chan struct{}) ([]float32, bool) {
	start := time.Now()
	defer o.inst.observeStage("capture", start)
	ctx, span := startSpan(ctx, "pipeline.capture")
	defer span.End()

	c, err := o.deps.Capture()
	if err != nil {
		o.fail(out, err.Error())
		return nil, false
	}

	var samples []float32
	if cancel != nil {
		samples, err = c.RecordUntilCancelled(ctx, cancel)
	} else {
		samples, err = c.RecordFor(ctx, o.opts.RecordDuration)
	}
	o.releaseCancel(cancel)
	if err != nil {
		o.fail(out, err.Error())
		return nil, false
	}

	if o.opts.SilenceThreshold > 0 {
		samples = audiocapture.TrimSilence(samples, audiocapture.TargetRate, o.opts.SilenceThreshold)
	}
	o.inst.observeSamples(len(samples))
	span.SetAttributes(attribute.Int("samples", len(samples)))
	return samples, true
}

func (o *Orchestrator) transcribe(ctx context.Context, out *Outcome, samples []float32) (*stt.TranscribeResult, bool) {
	start := time.Now()
	defer o.inst.observeStage("transcribe", start)
	ctx, span := startSpan(ctx, "pipeline.transcribe")
	defer span.End()

	settings, err := o.deps.Config.Settings()
	if err != nil {
		o.fail(out, fmt.Sprintf("load settings: %v", err))
		return nil, false
	}
	out.Model = settings.ModelSelector
	span.SetAttributes(attribute.String("model", settings.ModelSelector))

	modelPath, err := o.deps.Config.ModelPath(settings.ModelSelector)
	if err != nil {
		o.fail(out, err.Error())
		return nil, false
	}

	res, err := o.deps.Transcriber.Transcribe(ctx, stt.Request{
		Audio:     samples,
		Language:  settings.Language,
		ModelPath: modelPath,
	})
	if err != nil {
		o.fail(out, err.Error())
		return nil, false
	}
	if res == nil {
		res = &stt.TranscribeResult{}
	}

	if res.Language == "" {
		res.Language = stt.NormalizeLanguage(settings.Language)
	}
	if res.Language == "" && o.deps.Detector != nil && res.Text != "" {
		if lang, ok := o.deps.Detector.Detect(res.Text); ok {
			res.Language = lang
		}
	}
	return res, true
}

// inject types the text. Failure is reported but does not fail the run.
func (o *Orchestrator) inject(ctx context.Context, out *Outcome) bool {
	if o.deps.Injector == nil || out.Text == "" {
		return false
	}

	start := time.Now()
	defer o.inst.observeStage("inject", start)
	_, span := startSpan(ctx, "pipeline.inject")
	defer span.End()

	if err := o.deps.Injector.TypeText(out.Text); err != nil {
		slog.Error("type text", "run_id", out.RunID, "error", err)
		out.InjectErr = err.Error()
		span.RecordError(err)
		o.deps.Notifier.Notify(EventStatusUpdate, "Error typing: "+err.Error())
		return false
	}
	return true
}

func (o *Orchestrator) fail(out *Outcome, msg string) {
	slog.Error("pipeline failed", "run_id", out.RunID, "error", msg)
	o.store.Fail(msg)
	o.inst.run("error")
	o.deps.Notifier.Notify(EventStatusUpdate, "Error: "+msg)

	out.Err = msg
	out.Duration = time.Since(out.StartedAt)
	o.record(*out)
}

func (o *Orchestrator) record(out Outcome) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.Record(o.ctx, out); err != nil {
		slog.Warn("record history", "run_id", out.RunID, "error", err)
	}
}

// hold keeps the result visible, then asks observers to hide unless a newer
// run has started meanwhile.
func (o *Orchestrator) hold(runID string) {
	if o.opts.ResultHold > 0 {
		timer := time.NewTimer(o.opts.ResultHold)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-o.ctx.Done():
			return
		}
	}
	if snap := o.store.Read(); snap.RunID == runID {
		o.deps.Notifier.Notify(EventOverlayHide, nil)
	}
}

func (o *Orchestrator) releaseCancel(cancel chan struct{}) {
	if cancel == nil {
		return
	}
	o.mu.Lock()
	if o.cancel == cancel {
		o.cancel = nil
	}
	o.mu.Unlock()
}
