// Package clipboard reads and writes the system clipboard through the Wails
// runtime. It satisfies inject.Clipboard for the desktop app.
package clipboard

import (
	"errors"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// ErrNoText is returned when the clipboard holds no text.
var ErrNoText = errors.New("clipboard has no text")

// Clipboard is bound to a running Wails application.
type Clipboard struct {
	app *application.App
}

// New returns a Clipboard for app.
func New(app *application.App) *Clipboard {
	return &Clipboard{app: app}
}

// ReadAll returns the clipboard text.
func (c *Clipboard) ReadAll() (string, error) {
	return getClipboardContent(c.app)
}

// WriteAll replaces the clipboard contents with text.
func (c *Clipboard) WriteAll(text string) error {
	if !c.app.Clipboard.SetText(text) {
		return errors.New("set clipboard text")
	}
	return nil
}
