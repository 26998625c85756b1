// Package cli implements the whisperia command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"go.aimuz.me/whisperia/config"
	"go.aimuz.me/whisperia/stt"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("whisperia %s (%s, %s)", b.Version, b.Commit, b.Date)
}

// DaemonFunc runs the desktop app until it quits.
type DaemonFunc func() error

type rootOptions struct {
	debug bool
	build BuildInfo
}

// Execute runs the command line and returns the process exit code.
func Execute(build BuildInfo, daemon DaemonFunc) int {
	root := NewRootCommand(build, daemon)
	if err := root.Execute(); err != nil {
		renderError(root.ErrOrStderr(), err.Error())
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree. daemon starts the tray app.
func NewRootCommand(build BuildInfo, daemon DaemonFunc) *cobra.Command {
	ro := &rootOptions{build: build}

	root := &cobra.Command{
		Use:   "whisperia",
		Short: "Push-to-talk voice transcription",
		Long: `whisperia records a short clip, transcribes it with Whisper and types the
text into the focused application.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/whisperia/config.json
  Linux:   ~/.config/whisperia/config.json
  Windows: %AppData%/whisperia/config.json

Models are read from the models/ directory next to it (ggml-<name>.bin).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), ro.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.OutOrStdout(), ro.build)
		},
	}
	root.PersistentFlags().BoolVar(&ro.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newDaemonCommand(daemon),
		newTranscribeCommand(),
		newInteractiveCommand(),
		newDevicesCommand(),
		newHistoryCommand(),
		newConfigCommand(),
		newVersionCommand(ro),
	)
	return root
}

func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func newDaemonCommand(daemon DaemonFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the tray app with the global shortcut",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon == nil {
				return fmt.Errorf("desktop app not available in this build")
			}
			return daemon()
		},
	}
}

func newVersionCommand(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ro.build.String())
			if ro.debug {
				fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
				fmt.Fprintf(out, "  os:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}

// runInfo prints the configuration summary shown when no command is given.
func runInfo(w io.Writer, build BuildInfo) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	modelsDir, err := config.ModelsDir()
	if err != nil {
		return err
	}

	models, err := stt.ListModels(modelsDir)
	if err != nil {
		slog.Warn("list models", "dir", modelsDir, "error", err)
	}

	engine := cfg.Model.ModelType
	switch cfg.Model.ModelType {
	case config.ModelLocal:
		engine = "local whisper.cpp, model " + cfg.ModelSelector()
	case config.ModelAPI:
		engine = fmt.Sprintf("%s API, model %s", cfg.API.Provider, cfg.API.Model)
	}

	mode := fmt.Sprintf("%ds clip", cfg.Recording.Seconds)
	if cfg.Recording.UntilCancelled {
		mode = "until stopped"
	}

	renderFields(w, build.String(), []field{
		{"config", dir},
		{"shortcut", cfg.Shortcut},
		{"language", cfg.Language},
		{"engine", engine},
		{"recording", mode},
		{"auto paste", fmt.Sprint(cfg.AutoPaste)},
		{"models", strings.Join(models, ", ")},
	})
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render("Run 'whisperia transcribe' to record once, or 'whisperia daemon' for the tray app."))
	return nil
}
