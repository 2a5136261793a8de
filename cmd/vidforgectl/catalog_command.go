package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidforge/vidforge/internal/catalog"
	"github.com/vidforge/vidforge/internal/database"
	"github.com/vidforge/vidforge/internal/media"
	"github.com/vidforge/vidforge/internal/validate"
)

type catalogOptions struct {
	dbURL  string
	asJSON bool
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	opts := &catalogOptions{}
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the video catalog",
	}
	catalogCmd.PersistentFlags().StringVar(&opts.dbURL, "db", "", "Postgres URL (defaults to the configured database, else the built-in catalog)")
	catalogCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Write JSON instead of a table")

	catalogCmd.AddCommand(newCatalogListCommand(ctx, opts))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx, opts))
	return catalogCmd
}

// openCatalog loads a view from postgres when a URL is known. The returned
// func releases the connection.
func openCatalog(ctx context.Context, cc *commandContext, opts *catalogOptions) (*catalog.View, func(), error) {
	url := strings.TrimSpace(opts.dbURL)
	if url == "" {
		cfg, err := cc.ensureConfig()
		if err != nil {
			return nil, nil, err
		}
		url = cfg.Database.URL
	}

	if url == "" {
		view, err := catalog.NewView(ctx, catalog.SeedSource{})
		return view, func() {}, err
	}

	db, err := database.Connect(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect catalog database: %w", err)
	}
	view, err := catalog.NewView(ctx, catalog.NewPostgresSource(db.Pool))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return view, db.Close, nil
}

func newCatalogListCommand(cc *commandContext, opts *catalogOptions) *cobra.Command {
	var query, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos matching a title search and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if msg := validate.SearchQuery(query); msg != "" {
				return fmt.Errorf("%s", msg)
			}
			st, err := catalog.ParseStatusFilter(status)
			if err != nil {
				return err
			}

			view, closeFn, err := openCatalog(cmd.Context(), cc, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			view.SetQuery(query)
			view.SetStatus(st)
			results := view.Results()

			if opts.asJSON {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No videos match.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Status", "Duration", "Resolution", "Size", "Created"},
				catalogRows(results),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				isTerminal(out),
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive title substring")
	cmd.Flags().StringVarP(&status, "status", "s", "all", "Status filter: all, processed, processing or failed")
	return cmd
}

func catalogRows(records []catalog.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.ID, r.Title, r.Status.Label(), r.Duration, r.Resolution, r.Size, r.Created})
	}
	return rows
}

func newCatalogShowCommand(cc *commandContext, opts *catalogOptions) *cobra.Command {
	var userAgent string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a video's detail page model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, closeFn, err := openCatalog(cmd.Context(), cc, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := view.Select(args[0])
			if err != nil {
				return fmt.Errorf("video %q: %w", args[0], err)
			}
			player := media.NewPlayer(media.NewSimulatedElement(media.SimulatedConfig{
				Duration: func(string) (float64, bool) { return media.ParseTime(rec.Duration) },
			}))
			detail := catalog.OpenDetail(rec, player, userAgent)

			if opts.asJSON {
				return writeJSON(cmd, detail)
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Title", detail.Title},
				{"Status", detail.StatusLabel},
				{"Duration", detail.Player.TimeLabel},
				{"Resolution", detail.Resolution},
				{"Size", detail.Size},
				{"Created", detail.Created},
				{"Download", detail.DownloadURL},
				{"Share", detail.ShareURL},
				{"Fullscreen", fmt.Sprintf("%t", detail.FullscreenSupported)},
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil, isTerminal(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "Browser user agent used to decide fullscreen support")
	return cmd
}
