// Package app wires the configured components together and runs poll cycles and
// administrative actions on top of them.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/blob"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/secret"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// App is everything a poll cycle or an administrative action needs.
type App struct {
	Config  Config
	DB      *sql.DB
	Qry     *db.Queries
	Box     secret.Box
	Time    chrono.TimeAPI
	Tel     telemetry.API
	Cookies blob.Store
	// Output is nil unless http dumps are enabled.
	Output telemetry.MessageOutput
	// Pushover delivers push messages, it is built from the configured token when nil.
	Pushover notify.PushoverApp

	telegram *tgbotapi.BotAPI
}

type Options struct {
	Config Config
	Tel    telemetry.API
	// Time defaults to the wall clock in the configured zone.
	Time chrono.TimeAPI
	// DB defaults to opening the configured database.
	DB *sql.DB
}

func New(ctx context.Context, opts Options) (*App, error) {
	assert.NotNil(opts.Tel)
	config := opts.Config.withDefaults()

	box, err := secret.NewBox(config.SecretKey)
	if err != nil {
		return nil, err
	}

	clock := opts.Time
	if clock == nil {
		clock, err = chrono.NewStandardTime(config.Zone)
		if err != nil {
			return nil, err
		}
	}

	database := opts.DB
	if database == nil {
		database, err = db.Open(ctx, config.Database)
		if err != nil {
			return nil, err
		}
	}

	cookies, err := blob.NewFilesystemStore(config.CookiesDir)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  config,
		DB:      database,
		Qry:     db.New(database),
		Box:     box,
		Time:    clock,
		Tel:     opts.Tel,
		Cookies: cookies,
	}
	if config.DumpHttp {
		output, err := telemetry.NewFilesystemOutput(filepath.Join(".dev", "resty"), opts.Tel)
		if err != nil {
			return nil, fmt.Errorf("create http dump dir: %w", err)
		}
		app.Output = output
	}
	return app, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Telemetry is the reporting stack built from config, Shutdown flushes it.
type Telemetry struct {
	API   telemetry.API
	otel  telemetry.Otel
	flush func()
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	defer t.flush()
	return t.otel.Shutdown(ctx)
}

// SetupTelemetry installs slog, sentry and otel according to the config.
func SetupTelemetry(ctx context.Context, config telemetry.Config, verbose bool) (Telemetry, error) {
	telemetry.InitSlog(verbose)

	api, flush, err := telemetry.NewSentryAPI(config.SentryDsn, config.Environment, telemetry.SlogAPI{})
	if err != nil {
		return Telemetry{}, err
	}
	otel, err := telemetry.SetupOtel(ctx, "infomentor-notifier", config.Otlp)
	if err != nil {
		flush()
		return Telemetry{}, err
	}

	return Telemetry{API: api, otel: otel, flush: flush}, nil
}
