package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"go.aimuz.me/whisperia/config"
	"go.aimuz.me/whisperia/internal/app"
	"go.aimuz.me/whisperia/internal/pipeline"
	"go.aimuz.me/whisperia/internal/status"
)

type transcribeOptions struct {
	seconds   int
	modelPath string
	noPaste   bool
}

func (o *transcribeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.modelPath, "model-path", "", "use this ggml model file")
	cmd.Flags().BoolVar(&o.noPaste, "no-paste", false, "print the text without typing it")
}

func newTranscribeCommand() *cobra.Command {
	o := &transcribeOptions{}
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Record a fixed-length clip and transcribe it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			until := false
			return runOnce(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o, &until)
		},
	}
	cmd.Flags().IntVarP(&o.seconds, "seconds", "s", 0, "recording length (default from config)")
	o.bind(cmd)
	return cmd
}

func newInteractiveCommand() *cobra.Command {
	o := &transcribeOptions{}
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Record until Ctrl+C, then transcribe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			until := true
			return runOnce(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o, &until)
		},
	}
	o.bind(cmd)
	return cmd
}

// validate rejects negative lengths; zero keeps recording.seconds.
func (o *transcribeOptions) validate() error {
	if o.seconds < 0 {
		return fmt.Errorf("seconds must not be negative: %d", o.seconds)
	}
	return nil
}

// runOnce performs a single run and prints its result.
func runOnce(ctx context.Context, stdout, stderr io.Writer, o *transcribeOptions, untilCancelled *bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	noHold := time.Duration(0)
	eng, err := app.NewEngine(cfg, app.EngineOptions{
		Notifier:       progressNotifier(stderr),
		RecordDuration: time.Duration(o.seconds) * time.Second,
		UntilCancelled: untilCancelled,
		ModelPath:      o.modelPath,
		ResultHold:     &noHold,
		NoInject:       o.noPaste,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Orchestrator.Trigger(ctx); err != nil {
		return err
	}

	if *untilCancelled {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		fmt.Fprintln(stderr, dimStyle.Render("Recording... press Ctrl+C to stop."))
		go func() {
			<-sigCtx.Done()
			stop()
			// The run may already have failed; nothing to stop then.
			_ = eng.Orchestrator.CancelCurrent()
		}()
		defer stop()
	}

	eng.Orchestrator.Wait()
	return report(stdout, eng.Orchestrator.Status())
}

func report(stdout io.Writer, snap status.Snapshot) error {
	if snap.Phase.Kind == status.Error {
		return errors.New(snap.Phase.Message)
	}
	text := ""
	if snap.LastResult != nil {
		text = *snap.LastResult
	}
	renderResult(stdout, text)
	return nil
}

func progressNotifier(w io.Writer) pipeline.Notifier {
	return pipeline.NotifierFunc(func(event string, payload any) {
		if event != pipeline.EventStatusUpdate {
			return
		}
		if msg, ok := payload.(string); ok && msg != pipeline.StatusReady {
			fmt.Fprintln(w, dimStyle.Render(msg))
		}
	})
}
