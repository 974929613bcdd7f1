package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/stash/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and STASH_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → STASH_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("stash")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/stash/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "stash"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("STASH")
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
	cmd.Flags().String("log-file", "", "log file used while the panel owns the terminal (default: <data-dir>/stash.log)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addClientFlags adds the flags shared by every command that talks to a
// running daemon.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("host", "", "daemon TCP address (host:port); default is the local socket")
	f.String("token", "", "shared secret for --host")
	f.String("source", defaultSource(), "name for this client in watcher lists")
	addConfigFlag(cmd)
}

// setupLogging reads logging flags from viper and configures slog on
// stderr.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(nil, interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// setupPanelLogging sends logs to a file because the panel owns the
// terminal. The returned closer flushes it.
func setupPanelLogging(v *viper.Viper, dataDir string) (io.Closer, error) {
	var (
		f   *os.File
		err error
	)
	if path := v.GetString("log-file"); path != "" {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	} else {
		f, err = logging.OpenFile(dataDir)
	}
	if err != nil {
		return nil, err
	}
	resolveLogging(f, false, v.GetString("log-format"), v.GetString("log-level"))
	return f, nil
}
