//go:build !darwin

package clipboard

import "github.com/wailsapp/wails/v3/pkg/application"

func getClipboardContent(app *application.App) (string, error) {
	text, ok := app.Clipboard.Text()
	if !ok {
		return "", ErrNoText
	}
	return text, nil
}
