// Package cli implements crmctl, the command-line client for maintenance
// imports and expiration reports.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/store"
)

// App holds the dependencies shared by every command.
type App struct {
	Out io.Writer
	Err io.Writer

	// LoadConfig and OpenStore are replaced in tests.
	LoadConfig func() (*config.Config, error)
	OpenStore  func(ctx context.Context, cfg *config.Config) (store.Backend, error)
	Now        func() time.Time

	logLevel  string
	logFormat string
	envFile   string
}

// NewApp returns an App wired to the real config and store.
func NewApp(out, errOut io.Writer) *App {
	return &App{
		Out:        out,
		Err:        errOut,
		LoadConfig: config.Load,
		OpenStore:  store.Open,
		Now:        time.Now,
	}
}

// Execute runs crmctl with os.Args and returns the process exit code.
func Execute() int {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+core.FormatUserError(err))
		slog.Debug("command failed", "error", err)
		return 1
	}
	return 0
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "crmctl",
		Short: "Import maintenance records and report upcoming expirations",
		Long: `crmctl imports maintenance contracts from spreadsheet exports (CSV or TSV)
and reports which contracts expire soon.

Configuration is read from the environment and an optional .env file, the same
variables the server uses (STORE_DRIVER, DATABASE_URL, MONGO_URI, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(a.envFile); err != nil && cmd.Flags().Changed("env-file") {
				fmt.Fprintln(a.Err, warningStyle.Render("warning: ")+err.Error())
			}
			slog.SetDefault(logging.New(a.Err, a.logLevel, a.logFormat))
		},
	}
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load")

	root.AddCommand(
		a.previewCommand(),
		a.importCommand(),
		a.accountsCommand(),
		a.reportCommand(),
		a.exportCommand(),
		a.historyCommand(),
		a.remindersCommand(),
	)
	return root
}

// withService loads config, opens the store and runs fn with a Service.
func (a *App) withService(ctx context.Context, fn func(*core.Service, store.Backend, *config.Config) error) error {
	cfg, err := a.LoadConfig()
	if err != nil {
		return err
	}
	backend, err := a.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc := core.NewService(backend, ServiceOptions(cfg, a.Now))
	return fn(svc, backend, cfg)
}

// ServiceOptions maps configuration onto core.Options.
func ServiceOptions(cfg *config.Config, now func() time.Time) core.Options {
	return core.Options{
		ChunkSize:     cfg.Import.ChunkSize,
		ReminderDays:  cfg.Import.ReminderDays,
		ImportTimeout: cfg.Import.Timeout,
		HistoryLimit:  cfg.Import.HistoryLimit,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Now:           now,
	}
}

func parseUser(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, core.ErrMissingUser
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid --user %q", core.ErrMissingUser, raw)
	}
	return id, nil
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

// readInput reads an import file, or stdin for "-".
func readInput(path string, maxSize int64) (string, error) {
	if path == "-" {
		return core.ReadImportText(os.Stdin, maxSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return core.ReadImportText(f, maxSize)
}
