package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/rpc"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy [TEXT...]",
		Short: "Put text on the clipboard (like pbcopy)",
		Long: `Writes the arguments, or stdin when there are none, to the clipboard of the
host the daemon runs on. The daemon records it like any other copy.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			if text == "" {
				return nil
			}
			return withClient(cmd.Context(), v, func(ctx context.Context, c *rpc.Client) error {
				return c.Copy(ctx, text)
			})
		},
	}

	addClientFlags(cmd)

	return cmd
}
