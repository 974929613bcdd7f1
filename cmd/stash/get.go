package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/rpc"
	"go.klb.dev/stash/internal/store"
)

func newGetCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Print an entry's content (like pbpaste)",
		Long: `Writes the entry's text to stdout. For image entries the raw image bytes
are written, to --out when given.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withClient(cmd.Context(), v, func(ctx context.Context, c *rpc.Client) error {
				return runGet(ctx, c, id, v.GetString("out"))
			})
		},
	}

	cmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")
	addClientFlags(cmd)

	return cmd
}

func runGet(ctx context.Context, c *rpc.Client, id int64, out string) error {
	var data []byte
	text, err := c.FetchText(ctx, id)
	switch {
	case err == nil:
		data = []byte(text)
	case errors.Is(err, store.ErrNotFound):
		// no text payload; try the image
		data, err = c.FetchImage(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("entry %d not found", id)
			}
			return fmt.Errorf("get: %w", err)
		}
	default:
		return fmt.Errorf("get: %w", err)
	}

	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o600)
}
