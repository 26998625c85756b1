package inject

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"

	"go.aimuz.me/whisperia/internal/pipeline"
)

// DesktopNotifier raises OS notifications for failures and finished
// transcriptions. Progress updates are ignored.
type DesktopNotifier struct {
	Title string

	send func(title, message string) error
}

// NewDesktopNotifier returns a notifier titled "Whisperia".
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		Title: "Whisperia",
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *DesktopNotifier) Notify(event string, payload any) {
	msg, ok := d.message(event, payload)
	if !ok {
		return
	}
	go func() {
		if err := d.send(d.Title, msg); err != nil {
			slog.Debug("desktop notification", "error", err)
		}
	}()
}

func (d *DesktopNotifier) message(event string, payload any) (string, bool) {
	switch event {
	case pipeline.EventStatusUpdate:
		s, _ := payload.(string)
		if strings.HasPrefix(s, "Error") {
			return s, true
		}
	case pipeline.EventTranscriptionComplete:
		if r, ok := payload.(pipeline.Result); ok && !r.Typed && r.Text != "" {
			// Not pasted anywhere; surface the text itself.
			return r.Text, true
		}
	}
	return "", false
}
