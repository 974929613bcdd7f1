package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/rpc"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream history changes",
		Long: `Prints one line per capture, re-copy, or delete until interrupted. The
latest capture is replayed first. With --json every event is one JSON object.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.StringSlice("accept", nil, "content types to receive (empty = all); e.g. PlainText,Image")
	f.Bool("json", false, "one JSON object per event")
	addClientFlags(cmd)

	return cmd
}

func runWatch(ctx context.Context, v *viper.Viper) error {
	var accept []entry.ContentType
	for _, a := range v.GetStringSlice("accept") {
		accept = append(accept, entry.ParseContentType(a))
	}
	jsonOut := v.GetBool("json")
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	enc := json.NewEncoder(os.Stdout)

	return withClient(ctx, v, func(ctx context.Context, c *rpc.Client) error {
		return c.Watch(ctx, accept, func(ev rpc.WatchEvent) {
			if jsonOut {
				_ = enc.Encode(ev)
				return
			}
			at := time.UnixMilli(ev.At).Format("15:04:05")
			fmt.Printf("%s  %-8s  %6d  %s  %s\n", at, ev.Kind, ev.ID, ev.ContentType, ev.Source)
		})
	})
}
