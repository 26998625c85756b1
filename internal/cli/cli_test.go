package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/whisperia/audiocapture"
	"go.aimuz.me/whisperia/internal/history"
	"go.aimuz.me/whisperia/internal/pipeline"
	"go.aimuz.me/whisperia/internal/status"
)

func TestCommandTree(t *testing.T) {
	root := NewRootCommand(BuildInfo{Version: "dev"}, nil)

	want := []string{"daemon", "transcribe", "interactive", "devices", "history", "config", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("command %q not registered", name)
		}
	}

	if f := root.PersistentFlags().Lookup("debug"); f == nil {
		t.Error("missing --debug flag")
	}
	if cmd, _, _ := root.Find([]string{"transcribe"}); cmd.Flags().Lookup("seconds") == nil || cmd.Flags().Lookup("model-path") == nil {
		t.Error("transcribe is missing --seconds or --model-path")
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"}, nil)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "whisperia 1.2.3 (abc, today)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDaemonUnavailable(t *testing.T) {
	root := NewRootCommand(BuildInfo{}, nil)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"daemon"})
	if err := root.Execute(); err == nil {
		t.Error("daemon without a desktop app should fail")
	}
}

func TestDaemonRuns(t *testing.T) {
	called := false
	root := NewRootCommand(BuildInfo{}, func() error { called = true; return nil })
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"daemon"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Error("daemon func not called")
	}
}

func TestReport(t *testing.T) {
	text := "ola mundo"
	tests := []struct {
		name    string
		snap    status.Snapshot
		wantOut string
		wantErr string
	}{
		{"result", status.Snapshot{LastResult: &text}, "ola mundo", ""},
		{"empty", status.Snapshot{}, "no speech recognized", ""},
		{"error", status.Snapshot{Phase: status.Failed("no input device"), LastResult: &text}, "", "no input device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := report(&out, tt.snap)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				if out.Len() != 0 {
					t.Errorf("unexpected output %q", out.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("report: %v", err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestProgressNotifier(t *testing.T) {
	var out bytes.Buffer
	n := progressNotifier(&out)

	n.Notify(pipeline.EventStatusUpdate, pipeline.StatusRecording)
	n.Notify(pipeline.EventStatusUpdate, pipeline.StatusTranscribing)
	n.Notify(pipeline.EventStatusUpdate, pipeline.StatusReady)
	n.Notify(pipeline.EventTranscriptionUpdate, "ola")

	got := out.String()
	if !strings.Contains(got, "Recording...") || !strings.Contains(got, "Transcribing...") {
		t.Errorf("progress = %q", got)
	}
	if strings.Contains(got, "Ready") || strings.Contains(got, "ola") {
		t.Errorf("progress printed more than status changes: %q", got)
	}
}

func TestRenderDevices(t *testing.T) {
	var out bytes.Buffer
	renderDevices(&out, []audiocapture.DeviceInfo{
		{Name: "USB Mic", SampleRate: 48000, MaxChannels: 2, Format: audiocapture.FormatFloat32, IsDefault: true},
		{Name: "Built-in", SampleRate: 44100, MaxChannels: 1, Format: audiocapture.FormatInt16},
	})
	got := out.String()
	if !strings.Contains(got, "* USB Mic") || !strings.Contains(got, "48000 Hz") {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(got, "  Built-in") {
		t.Errorf("non-default device marked: %q", got)
	}

	out.Reset()
	renderDevices(&out, nil)
	if !strings.Contains(out.String(), "no input devices") {
		t.Errorf("empty output = %q", out.String())
	}
}

func TestRenderHistory(t *testing.T) {
	var out bytes.Buffer
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	renderHistory(&out, []history.Entry{
		{ID: "a", StartedAt: at, DurationMs: 2500, Text: "ola", Language: "pt"},
		{ID: "b", StartedAt: at, Error: "model not found: ggml-base.bin"},
		{ID: "c", StartedAt: at},
	})
	got := out.String()
	for _, want := range []string{"ola", "2.5s", "model not found", "no speech recognized"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestTranscribeOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		wantErr string
	}{
		{"from_config", 0, ""},
		{"explicit", 10, ""},
		{"negative", -1, "seconds must not be negative: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&transcribeOptions{seconds: tt.seconds}).validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
