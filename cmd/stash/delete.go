package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/rpc"
	"go.klb.dev/stash/internal/store"
)

func newDeleteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete history entries",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", a)
				}
				ids = append(ids, id)
			}
			return withClient(cmd.Context(), v, func(ctx context.Context, c *rpc.Client) error {
				var errs []error
				for _, id := range ids {
					if err := c.Delete(ctx, id); err != nil {
						if errors.Is(err, store.ErrNotFound) {
							err = fmt.Errorf("entry %d not found", id)
						}
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			})
		},
	}

	addClientFlags(cmd)

	return cmd
}
