package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/rpc"
)

func newToggleCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Press the panel shortcut from a script",
		Long: `Does what the global shortcut does: opens the daemon's panel, or cycles
its type filter when it is already open. Useful where the shortcut cannot be
registered, e.g. bound in a window manager instead.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *rpc.Client) error {
				visible, err := c.Toggle(ctx)
				if err != nil {
					return fmt.Errorf("toggle: %w", err)
				}
				if visible {
					fmt.Println("panel open")
				} else {
					fmt.Println("panel closed")
				}
				return nil
			})
		},
	}

	addClientFlags(cmd)

	return cmd
}
