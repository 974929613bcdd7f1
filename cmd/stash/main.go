// stash: encrypted clipboard history with a hotkey panel.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/stash/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "stash",
		Short: "Clipboard history with a hotkey panel",
		Long: `stash records everything you copy into an encrypted local database and
brings it back with a global shortcut.

Run "stash run" to start the daemon: it watches the clipboard, serves the
history on a local socket, and shows the panel when the shortcut is pressed.
Use "stash pick/list/search/get/copy/delete/status/watch/toggle" as clients.

Config file search order (first found wins):
  /etc/stash/stash.toml
  $HOME/.config/stash/stash.toml
  path supplied via --config

All flags can be set via STASH_<FLAG> env vars or config-file keys.
See "stash run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newPickCmd(),
		newListCmd(),
		newSearchCmd(),
		newGetCmd(),
		newCopyCmd(),
		newDeleteCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newToggleCmd(),
		newVersionCmd(),
	)

	code := 0
	runMain(func() {
		if err := root.Execute(); err != nil {
			code = 1
		}
	})
	os.Exit(code)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("stash %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(w io.Writer, interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(w, format, level)
}
