package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/handguide/internal/archive"
	"github.com/dgnsrekt/handguide/internal/config"
	"github.com/dgnsrekt/handguide/internal/share"
)

var (
	deleteAll bool
	copyLink  bool

	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Browse, delete and share past narrations",
		Args:  cobra.NoArgs,
	}

	archiveListCmd = &cobra.Command{
		Use:     "list [QUERY]",
		Aliases: []string{"ls"},
		Short:   "List narrations, newest first, optionally fuzzy matched",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd.Context(), func(_ archive.Store, records []*archive.Record) error {
				records = archive.Search(records, strings.Join(args, " "))
				_, err := fmt.Fprint(cmd.OutOrStdout(), formatList(records, int(width), time.Now())) //nolint:gosec
				return err //nolint:wrapcheck
			})
		},
	}

	archiveShowCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Show one narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd.Context(), func(_ archive.Store, records []*archive.Record) error {
				r, err := archive.Resolve(records, args[0])
				if err != nil {
					return err //nolint:wrapcheck
				}
				out, err := renderMarkdown(share.Markdown(r))
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err //nolint:wrapcheck
			})
		},
	}

	archiveDeleteCmd = &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete narrations",
		Args: func(cmd *cobra.Command, args []string) error {
			if deleteAll {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd.Context(), func(store archive.Store, records []*archive.Record) error {
				sel, err := selectRecords(records, args, deleteAll)
				if err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), sel.IDs()...); err != nil {
					return err //nolint:wrapcheck
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", plural(sel.Len(), "narration"))
				return err //nolint:wrapcheck
			})
		},
	}

	archiveShareCmd = &cobra.Command{
		Use:   "share ID...",
		Short: "Publish narrations as a single web page",
		Long: paragraph(fmt.Sprintf("\n%s one or more narrations as a self-contained page, written to the share directory or uploaded to the configured bucket.",
			keyword("Share"))),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd.Context(), func(_ archive.Store, records []*archive.Record) error {
				sel, err := selectRecords(records, args, false)
				if err != nil {
					return err
				}
				link, err := publish(cmd.Context(), cfg, sel.Records(records))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)

				if copyLink {
					if err := clipboard.WriteAll(link); err != nil {
						log.Warn("Could not copy link", "error", err)
						return fmt.Errorf("unable to copy link: %w", err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), faint("Copied to clipboard."))
				}
				return nil
			})
		},
	}
)

func init() {
	archiveDeleteCmd.Flags().BoolVarP(&deleteAll, "all", "a", false, "delete every narration")
	archiveShareCmd.Flags().BoolVarP(&copyLink, "copy", "c", false, "copy the link to the clipboard")
	archiveCmd.AddCommand(archiveListCmd, archiveShowCmd, archiveDeleteCmd, archiveShareCmd)
}

// withArchive opens the configured store, lists it and calls fn.
func withArchive(ctx context.Context, fn func(archive.Store, []*archive.Record) error) error {
	store, err := archive.Open(archiveConfig(cfg))
	if err != nil {
		return fmt.Errorf("unable to open archive: %w", err)
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to read archive: %w", err)
	}
	return fn(store, records)
}

func selectRecords(records []*archive.Record, refs []string, all bool) (*archive.Selection, error) {
	sel := archive.NewSelection()
	if all {
		sel.All(records)
		return sel, nil
	}
	if err := sel.SelectRefs(records, refs...); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return sel, nil
}

func publish(ctx context.Context, cfg *config.Config, records []*archive.Record) (string, error) {
	page, err := share.Snapshot(records, cfg.AI.Language)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	p, err := publisher(cfg)
	if err != nil {
		return "", err
	}
	link, err := p.Publish(ctx, share.PageName(records), page)
	if err != nil {
		return "", fmt.Errorf("unable to publish: %w", err)
	}
	log.Debug("Published narrations", "count", len(records), "link", link)
	return link, nil
}

func publisher(cfg *config.Config) (share.Publisher, error) {
	if cfg.Share.Backend != "bucket" {
		return share.FilePublisher{Dir: cfg.Share.Directory}, nil
	}
	p, err := share.NewBucketPublisher(share.BucketConfig{
		Endpoint:  cfg.Share.Endpoint,
		AccessKey: cfg.Share.AccessKey,
		SecretKey: cfg.Share.SecretKey,
		Bucket:    cfg.Share.Bucket,
		UseSSL:    cfg.Share.UseSSL,
		Expiry:    time.Duration(cfg.Share.ExpiryHours) * time.Hour,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return p, nil
}

const (
	idWidth   = 8
	whenWidth = 14
	kindWidth = 8
)

// formatList lays records out as a table that fits width.
func formatList(records []*archive.Record, width int, now time.Time) string {
	if len(records) == 0 {
		return faint("No narrations yet.") + "\n"
	}

	titleWidth := max(16, width-idWidth-whenWidth-kindWidth-6)

	var b strings.Builder
	writeRow(&b, header(pad("ID", idWidth)), header(pad("WHEN", whenWidth)), header(pad("KIND", kindWidth)), header("TITLE"))
	for _, r := range records {
		writeRow(&b,
			r.ShortID(),
			faint(pad(humanize.RelTime(r.CreatedAt, now, "ago", "from now"), whenWidth)),
			pad(string(r.Kind), kindWidth),
			runewidth.Truncate(oneLine(r.Title), titleWidth, "…"),
		)
	}
	return b.String()
}

func writeRow(w io.Writer, cols ...string) {
	_, _ = fmt.Fprintln(w, strings.Join(cols, "  "))
}

// pad fits s into exactly w terminal cells.
func pad(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func renderMarkdown(md string) (string, error) {
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle(styles.NoTTYStyle)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		style,
		glamour.WithWordWrap(int(width)), //nolint:gosec
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
