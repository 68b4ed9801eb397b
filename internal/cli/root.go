package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msomdec/color-hunt/internal/config"
)

// ConfigLoader returns the client configuration before flag overrides.
type ConfigLoader func() (*config.Client, error)

type rootOptions struct {
	load ConfigLoader

	dbPath  string
	backend string
	lang    string
	target  int
	mode    string
}

// NewRootCommand builds the colorhunt command tree.
func NewRootCommand(load ConfigLoader) *cobra.Command {
	opts := &rootOptions{load: load}

	root := &cobra.Command{
		Use:   "colorhunt",
		Short: "Hunt for today's color and turn the photos into a collage",
		Long: `colorhunt assigns a daily color, collects a fixed number of photos
matching it into grid positions, and composes them into a collage image.
Progress lives in a local SQLite file; a backend is optional.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "local database file (overrides COLORHUNT_DB)")
	flags.StringVar(&opts.backend, "backend", "", "backend base URL (overrides COLORHUNT_BACKEND_URL)")
	flags.StringVar(&opts.lang, "lang", "", "message language, en or ko")
	flags.IntVar(&opts.target, "target", 0, "photos per hunt for new sessions")
	flags.StringVar(&opts.mode, "mode", "", "capture mode for new sessions, ordered or free")

	root.AddCommand(
		newColorCommand(opts),
		newStartCommand(opts),
		newCaptureCommand(opts),
		newDeleteCommand(opts),
		newStatusCommand(opts),
		newCompleteCommand(opts),
		newDownloadCommand(opts),
		newAbandonCommand(opts),
		newFlushCommand(opts),
		newHistoryCommand(opts),
		newStatsCommand(opts),
	)
	return root
}

// Execute runs the command tree with the environment configuration.
func Execute() {
	if err := NewRootCommand(config.LoadClient).Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) config(cmd *cobra.Command) (*config.Client, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DatabasePath = o.dbPath
	}
	if flags.Changed("backend") {
		cfg.BackendURL = o.backend
	}
	if flags.Changed("lang") {
		cfg.Language = o.lang
	}
	if flags.Changed("target") {
		cfg.TargetCount = o.target
	}
	if flags.Changed("mode") {
		cfg.CaptureMode = o.mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp opens the client for one command. Termination signals flush
// unsaved state and cancel the command; the app is closed on return.
func (o *rootOptions) withApp(run func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := o.config(cmd)
		if err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), cfg.LogLevel)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		app, err := Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, done := context.WithTimeout(context.WithoutCancel(ctx), cfg.RemoteTimeout)
			defer done()
			if err := app.Close(closeCtx); err != nil {
				slog.Warn("close client", "error", err)
			}
		}()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(signals)
		go app.flush.Watch(ctx, signals, cancel)

		cmd.SetContext(ctx)
		return run(cmd, app, args)
	}
}

func setupLogging(w io.Writer, level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: config.ParseLevel(level),
	})))
}
