package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/service"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var filter domain.HistoryFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed collages, newest first",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			collages, hasMore, err := app.history.ListCompletedCollages(ctx, app.userID(ctx), filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.RenderHistoryText(app.tr, collages, hasMore))
			return nil
		}),
	}
	cmd.Flags().StringVar(&filter.Color, "color", "", "only collages of this color")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "collages to skip")
	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completed collages per color from the backend",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, app *App, _ []string) error {
			if app.remote == nil {
				return errors.New("stats need a backend, set COLORHUNT_BACKEND_URL or --backend")
			}
			stats, err := app.remote.Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range stats {
				name := s.Color
				if c, ok := domain.ColorByName(s.Color); ok {
					name = app.tr.ColorName(c)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", name, s.Count, s.LastDate)
			}
			return w.Flush()
		}),
	}
}
