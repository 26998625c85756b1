package main

import (
	"embed"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/whisperia/internal/app"
	"go.aimuz.me/whisperia/internal/cli"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{Version: version, Commit: commit, Date: date}, runDaemon))
}

// ─────────────────────────────────────────────────────────────────────────────
// Desktop app
// ─────────────────────────────────────────────────────────────────────────────

func runDaemon() error {
	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	appService := app.New(version)

	wapp := application.New(application.Options{
		Name:        "Whisperia",
		Description: "Push-to-talk voice transcription",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	// Overlay: small, frameless, never focused.
	overlay := wapp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:           "overlay",
		Title:          "Whisperia",
		Width:          360,
		Height:         96,
		URL:            "/overlay.html",
		Frameless:      true,
		AlwaysOnTop:    true,
		Hidden:         true,
		DisableResize:  true,
		BackgroundType: application.BackgroundTypeTranslucent,
	})

	settings := wapp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:   "settings",
		Title:  "Whisperia Settings",
		Width:  560,
		Height: 640,
		URL:    "/",
		Hidden: true,
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	for _, w := range []application.Window{overlay, settings} {
		w.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
			e.Cancel()
			w.Hide()
		})
	}

	appService.Init(wapp, overlay, settings)

	systemTray := wapp.SystemTray.New()
	if icon, err := assets.ReadFile("frontend/dist/tray.png"); err == nil {
		systemTray.SetIcon(icon)
	} else {
		slog.Warn("load tray icon", "error", err)
	}
	systemTray.OnClick(func() {
		if err := appService.Toggle(); err != nil {
			slog.Debug("tray trigger", "error", err)
		}
	})

	trayMenu := wapp.NewMenu()
	trayMenu.Add("Transcribe").OnClick(func(ctx *application.Context) {
		if err := appService.Trigger(); err != nil {
			slog.Warn("tray trigger", "error", err)
		}
	})
	trayMenu.Add("Settings").OnClick(func(ctx *application.Context) {
		appService.OpenSettings()
	})
	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			appService.Shutdown()
			wapp.Quit()
		})
	systemTray.SetMenu(trayMenu)

	return wapp.Run()
}
