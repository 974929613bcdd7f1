package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/rpc"
)

const previewWidth = 60

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent history entries",
		Long: `Prints the newest entries first. Use --before with the created_at of the
last row to page further back.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *rpc.Client) error {
				var (
					got []entry.Entry
					err error
				)
				if before := v.GetInt64("before"); before > 0 {
					got, err = c.FetchBefore(ctx, before, v.GetInt("limit"))
				} else {
					got, err = c.FetchRecent(ctx, v.GetInt("limit"))
				}
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				return printEntries(filterType(got, v.GetString("type")), v.GetBool("json"))
			})
		},
	}

	f := cmd.Flags()
	f.Int("limit", rpc.DefaultLimit, "maximum number of entries")
	f.Int64("before", 0, "only entries created before this Unix millisecond timestamp")
	f.String("type", "", "only this content type: PlainText|RichText|FilePath|Image")
	f.Bool("json", false, "output the JSON envelope")
	addClientFlags(cmd)

	return cmd
}

func newSearchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "search QUERY",
		Short:   "Search text entries (case-insensitive substring)",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *rpc.Client) error {
				got, err := c.Search(ctx, strings.Join(args, " "), v.GetInt("limit"))
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				return printEntries(got, v.GetBool("json"))
			})
		},
	}

	f := cmd.Flags()
	f.Int("limit", rpc.DefaultLimit, "maximum number of entries")
	f.Bool("json", false, "output the JSON envelope")
	addClientFlags(cmd)

	return cmd
}

func filterType(in []entry.Entry, tag string) []entry.Entry {
	if tag == "" {
		return in
	}
	ct := entry.ParseContentType(tag)
	out := in[:0]
	for _, e := range in {
		if e.ContentType == ct {
			out = append(out, e)
		}
	}
	return out
}

func printEntries(list []entry.Entry, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry.OKResponse(list))
	}
	if len(list) == 0 {
		fmt.Println("No entries.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tTYPE\tCOPIED\tSOURCE\tCOUNT\tPREVIEW\n")
	for _, e := range list {
		source := e.SourceApp
		if source == "" {
			source = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.ContentType.DisplayName(), e.RelativeTime(now), source, e.CopyCount,
			oneLine(e.Preview(), previewWidth),
		)
	}
	return tw.Flush()
}

// oneLine collapses whitespace and cuts s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
