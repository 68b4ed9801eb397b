package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/msomdec/color-hunt/internal/capture"
	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/service"
)

func newColorCommand(opts *rootOptions) *cobra.Command {
	var exclude string
	cmd := &cobra.Command{
		Use:   "color",
		Short: "Ask for today's color without starting a hunt",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			assignment, err := app.colors.RequestColor(cmd.Context(), app.userID(cmd.Context()), exclude)
			if err != nil {
				return err
			}
			c := assignment.Color
			fmt.Fprintln(cmd.OutOrStdout(), app.tr.T("color.assigned", app.tr.ColorName(c), c.Hex))
			return nil
		}),
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "color that must not be picked")
	return cmd
}

func newStartCommand(opts *rootOptions) *cobra.Command {
	var colorName string
	var fresh bool
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"new"},
		Short:   "Start a hunt with today's color",
		Long: `start begins a new hunt and makes it the active one. An unfinished
active hunt is kept and can be resumed later; pass --new to discard its
photos instead.`,
		Args: cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			color, date := domain.Color{}, app.today()
			if colorName != "" {
				c, ok := domain.ColorByName(colorName)
				if !ok {
					return fmt.Errorf("%w: unknown color %q", domain.ErrInvalidInput, colorName)
				}
				color = c
			} else {
				assignment, err := app.colors.RequestColor(ctx, app.userID(ctx), "")
				if err != nil {
					return err
				}
				color, date = assignment.Color, assignment.Date
			}

			start := app.hunts.Start
			if fresh {
				start = app.hunts.StartNew
			}
			session, err := start(ctx, color, date)
			if err != nil {
				return err
			}
			return printProgress(cmd, app, session, nil)
		}),
	}
	cmd.Flags().StringVar(&colorName, "color", "", "hunt this palette color instead of asking for one")
	cmd.Flags().BoolVar(&fresh, "new", false, "release the active hunt before starting")
	return cmd
}

func newCaptureCommand(opts *rootOptions) *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "capture <image>",
		Short: "Add a photo to the active hunt",
		Long: `capture crops a JPEG or PNG to a centered square, stores it with a
thumbnail, and fills the next empty position. --position retakes or fills a
specific position (1-based).`,
		Args: cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			session, photos, err := app.active(ctx)
			if err != nil {
				return noSession(app, err)
			}

			target := position - 1
			if position == 0 {
				target = service.NextPosition(session.TargetCount, photos)
				if target < 0 {
					return fmt.Errorf("%w: all %d positions are filled", domain.ErrInvalidPosition, session.TargetCount)
				}
			}

			frame, err := capture.LoadFile(args[0])
			if err != nil {
				return err
			}
			out, err := app.pipeline.Capture(ctx, frame)
			if err != nil {
				return err
			}
			if _, err := app.hunts.Capture(ctx, session.ID, target, out); err != nil {
				if errors.Is(err, domain.ErrCaptureCancelled) {
					fmt.Fprintln(cmd.ErrOrStderr(), app.tr.T("session.cancelled"))
				}
				return err
			}
			return printActive(cmd, app)
		}),
	}
	cmd.Flags().IntVarP(&position, "position", "p", 0, "position to fill, 1-based; default is the next empty one")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <position>",
		Short: "Remove the photo at a position (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			session, err := app.hunts.Active(cmd.Context())
			if err != nil {
				return noSession(app, err)
			}
			if err := app.hunts.DeletePhoto(cmd.Context(), session.ID, position); err != nil {
				return err
			}
			return printActive(cmd, app)
		}),
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active hunt's progress",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			return printActive(cmd, app)
		}),
	}
}

func newCompleteCommand(opts *rootOptions) *cobra.Command {
	var download bool
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Compose the collage once every position is filled",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			session, err := app.hunts.Active(ctx)
			if err != nil {
				return noSession(app, err)
			}
			completed, _, err := app.collages.Finalize(ctx, session.ID)
			if err != nil {
				return err
			}
			if download {
				return writeCollage(cmd, app, completed.ID)
			}
			return printActive(cmd, app)
		}),
	}
	cmd.Flags().BoolVar(&download, "download", false, "also write the collage to the output directory")
	return cmd
}

func newDownloadCommand(opts *rootOptions) *cobra.Command {
	var sessionID, dir string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Write the completed collage to disk and release its photos",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			id := sessionID
			if id == "" {
				session, err := app.hunts.Active(cmd.Context())
				if err != nil {
					return noSession(app, err)
				}
				id = session.ID
			}
			if dir != "" {
				app.cfg.OutputDir = dir
			}
			return writeCollage(cmd, app, id)
		}),
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "completed session to download; default is the active one")
	cmd.Flags().StringVarP(&dir, "out", "o", "", "output directory (overrides COLORHUNT_OUTPUT_DIR)")
	return cmd
}

func newAbandonCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon",
		Short: "Delete the active hunt and its photos",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			session, err := app.hunts.Active(cmd.Context())
			if err != nil {
				return noSession(app, err)
			}
			return app.hunts.Abandon(cmd.Context(), session.ID)
		}),
	}
}

func newFlushCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Write any unsaved hunt state to the local database",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			if session, photos, err := app.active(ctx); err == nil {
				app.flush.Register(session, photos)
			}
			report := app.flush.Flush(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "session saved: %t, photos written: %d, failures: %d\n",
				report.SessionSaved, report.PhotosWritten, report.Failures)
			if report.Failures > 0 {
				return fmt.Errorf("%w: %d writes failed", domain.ErrStorageUnavailable, report.Failures)
			}
			return nil
		}),
	}
}

func writeCollage(cmd *cobra.Command, app *App, sessionID string) error {
	path, err := app.collages.Download(cmd.Context(), sessionID, app.cfg.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.tr.T("collage.saved", path))
	return nil
}

func printActive(cmd *cobra.Command, app *App) error {
	session, photos, err := app.active(cmd.Context())
	if err != nil {
		return noSession(app, err)
	}
	return printProgress(cmd, app, session, photos)
}

func printProgress(cmd *cobra.Command, app *App, session *domain.Session, photos []domain.Photo) error {
	fmt.Fprintln(cmd.OutOrStdout(), service.RenderProgressText(app.tr, session, photos, app.cfg.GridColumns))
	return nil
}

// noSession turns a missing active session into a hint.
func noSession(app *App, err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return errors.New(app.tr.T("session.none"))
	}
	return err
}

// parsePosition converts a 1-based position argument to a 0-based index.
func parsePosition(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: position must be a positive number, got %q", domain.ErrInvalidInput, arg)
	}
	return n - 1, nil
}
