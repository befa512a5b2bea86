// Package cli provides the initialization shared by the ledger commands:
// environment, config, logging, session storage and notice sinks.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/app"
	"ledger/internal/backend"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/sheets"
	"ledger/internal/sheets/google"
	"ledger/internal/sheets/memory"
)

// SetupLogger builds the logger described by cfg. Logs go to stderr so
// stdout stays clean for command output.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = applog.ComponentCLI
	if out != nil {
		lc.Output = out
	}
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	return applog.New(lc)
}

// LoadEnvFile loads a .env file from the working directory if present.
// Errors are ignored since the file is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSessionStorage opens the session storage selected by cfg.
func InitSessionStorage(logger *applog.Logger, cfg *config.Config) (*backend.Result, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).Create(bc)
	if err != nil {
		return nil, fmt.Errorf("initialize %s session storage: %w", bc.Type, err)
	}
	return res, nil
}

// InitNotifier builds the notice sinks: the log, the terminal and, when
// NOTIFY_AMQP_URL is set, the message broker. A broker that cannot be reached
// is logged and skipped.
func InitNotifier(ctx context.Context, cfg *config.Config, logger *applog.Logger, terminal io.Writer) (notify.Notifier, func() error) {
	sinks := notify.Multi{notify.NewLogNotifier(logger)}
	if terminal != nil {
		sinks = append(sinks, notify.NewWriterNotifier(terminal))
	}

	closeFn := func() error { return nil }
	if cfg != nil && cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.WarnContext(ctx, "Notice publishing disabled",
				applog.FieldOperation, applog.OpPublish,
				applog.FieldError, err.Error())
		} else {
			sinks = append(sinks, publisher)
			closeFn = publisher.Close
		}
	}
	return sinks, closeFn
}

// InitSheetsWriter returns the Google Sheets writer, or an in-memory one
// when dryRun is set.
func InitSheetsWriter(ctx context.Context, cfg *config.Config, logger *applog.Logger, dryRun bool) (sheets.RecordWriter, error) {
	if dryRun {
		return memory.New(), nil
	}
	if cfg == nil || cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	return google.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM so an
// interrupted command aborts its in-flight request.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Runtime is a fully wired application plus what must be released on exit.
type Runtime struct {
	Config *config.Config
	Logger *applog.Logger
	App    *app.App

	closers []func() error
}

// Bootstrap wires the application from cfg. Notices are printed to terminal.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *applog.Logger, terminal io.Writer) (*Runtime, error) {
	store, err := InitSessionStorage(logger, cfg)
	if err != nil {
		return nil, err
	}
	notifier, closeNotifier := InitNotifier(ctx, cfg, logger, terminal)

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		closers: []func() error{closeNotifier, store.Close},
	}

	a, err := app.New(ctx, app.Config{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout,
		Storage:  store.Storage,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.App = a
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
