package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go.aimuz.me/whisperia/audiocapture"
	"go.aimuz.me/whisperia/internal/history"
)

var (
	primary = lipgloss.Color("#7aa2f7")
	dim     = lipgloss.Color("#6e7681")
	danger  = lipgloss.Color("#f7768e")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(12)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(danger)
	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)
)

type field struct {
	label string
	value string
}

func renderFields(w io.Writer, title string, fields []field) {
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, f := range fields {
		v := f.value
		if v == "" {
			v = dimStyle.Render("(none)")
		}
		fmt.Fprintln(w, labelStyle.Render(f.label)+" "+v)
	}
}

func renderResult(w io.Writer, text string) {
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(w, dimStyle.Render("(no speech recognized)"))
		return
	}
	fmt.Fprintln(w, resultStyle.Render(text))
}

func renderError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("Error:")+" "+msg)
}

func renderDevices(w io.Writer, devices []audiocapture.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no input devices"))
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Input devices"))
	for _, d := range devices {
		marker := "  "
		if d.IsDefault {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%s %s\n", marker, d.Name,
			dimStyle.Render(fmt.Sprintf("%d Hz, %d ch, %s", d.SampleRate, d.MaxChannels, d.Format)))
	}
}

func renderHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("history is empty"))
		return
	}
	for _, e := range entries {
		head := dimStyle.Render(fmt.Sprintf("%s  %5.1fs  %s",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			float64(e.DurationMs)/1000, e.Language))
		fmt.Fprintln(w, head)
		switch {
		case e.Error != "":
			fmt.Fprintln(w, "  "+errorStyle.Render(e.Error))
		case e.Text == "":
			fmt.Fprintln(w, "  "+dimStyle.Render("(no speech recognized)"))
		default:
			fmt.Fprintln(w, "  "+e.Text)
		}
	}
}
