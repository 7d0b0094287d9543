// cmd/inkdeck/main.go
//
// This is the entry point for the inkdeck dashboard.
//
// Flow:
// 1. Load .env overrides (store URL, API key, session token)
// 2. Bootstrap the ~/.inkdeck directory structure
// 3. Start the loopback preview server when it is enabled
// 4. Launch the TUI

package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/inkdeck/inkdeck/internal/config"
	"github.com/inkdeck/inkdeck/internal/preview"
	"github.com/inkdeck/inkdeck/internal/session"
	"github.com/inkdeck/inkdeck/internal/store"
	"github.com/inkdeck/inkdeck/internal/tui"
)

func main() {
	// A missing .env is fine; it only carries local overrides.
	_ = godotenv.Load()

	baseDir, err := config.BaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving home directory: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitHomeDir(baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .inkdeck directory: %v\n", err)
		os.Exit(1)
	}

	app, err := tui.NewApp(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting inkdeck: %v\n", err)
		os.Exit(1)
	}

	if server := startPreview(app.Config()); server != nil {
		app.SetPreview(server)
		defer func() { _ = server.Shutdown(context.Background()) }()
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// startPreview brings up the loopback server backing "visit live site".
// Failures are not fatal; the dashboard runs without the affordance.
func startPreview(cfg *config.Config) *preview.Server {
	settings := preview.SettingsFromConfig(cfg)
	if !settings.Enabled {
		return nil
	}
	accessor := session.NewAccessor(cfg.SessionPath())
	source := store.NewClient(cfg.File.Store, accessor)
	server := preview.NewServer(settings, source)
	if err := server.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: preview server unavailable: %v\n", err)
		return nil
	}
	return server
}
