package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"infomentor-notifier/internal/app"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "infomentor",
	Short: "infomentor polls the infomentor portal and forwards news, homework and calendar entries.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The config file to read.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatalerr(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// openApp reads the config and builds the app, the returned function releases everything.
func openApp(ctx context.Context) (*app.App, func()) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		fatalerr("failed to read config", err)
	}
	if verbose {
		config.DumpHttp = true
	}

	t, err := app.SetupTelemetry(ctx, config.Telemetry, verbose)
	if err != nil {
		fatalerr("failed to setup telemetry", err)
	}

	a, err := app.New(ctx, app.Options{Config: config, Tel: t.API})
	if err != nil {
		fatalerr("failed to initialize", err)
	}

	return a, func() {
		a.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := t.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err.Error())
		}
	}
}
