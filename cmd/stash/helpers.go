package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/stash/internal/crypto"
	"go.klb.dev/stash/internal/ipc"
	"go.klb.dev/stash/internal/rpc"
	"go.klb.dev/stash/internal/tlsconf"
)

const (
	keyFileName          = "stash.key"
	defaultRetentionDays = 7
)

func isContainerID(s string) bool {
	if len(s) < 12 || len(s) > 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// defaultSource returns a human-readable identifier for this host.
func defaultSource() string {
	for _, env := range []string{"STASH_SOURCE", "CONTAINER_NAME", "HOSTNAME_FRIENDLY"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	if isContainerID(h) {
		return "container-" + h[:8]
	}
	return h
}

// defaultDataDir is where the database, key file, and panel log live.
func defaultDataDir() string {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "stash")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", "stash")
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "stash")
	}
	return filepath.Join(os.TempDir(), "stash")
}

// loadKey derives the store key from the passphrase, or keeps a random one
// in the data directory when no passphrase is configured.
func loadKey(v *viper.Viper, dataDir string) (*crypto.Key, error) {
	if pass := v.GetString("passphrase"); pass != "" {
		key, err := crypto.DeriveKey(pass)
		if err != nil {
			return nil, fmt.Errorf("key derivation: %w", err)
		}
		return key, nil
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return crypto.LoadOrCreateKeyFile(filepath.Join(dataDir, keyFileName))
}

func retentionDays(v *viper.Viper) int {
	if d := v.GetInt("retention-days"); d > 0 {
		return d
	}
	return defaultRetentionDays
}

// dial connects to the daemon: the local socket unless --host names a TCP
// listener, which is reached over TLS pinned to the token.
func dial(v *viper.Viper) (*rpc.Client, func() error, string, error) {
	host := v.GetString("host")
	if host == "" {
		if !ipc.IsRunning() {
			return nil, nil, "", errors.New("stash daemon is not running (start it with \"stash run\")")
		}
		conn, err := rpc.DialIPC()
		if err != nil {
			return nil, nil, "", fmt.Errorf("dial ipc: %w", err)
		}
		return rpc.NewClient(conn), conn.Close, fmt.Sprintf("ipc (%s)", ipc.SocketPath()), nil
	}

	token := v.GetString("token")
	passphrase := token
	if passphrase == "" {
		passphrase = tlsconf.DefaultToken
	}
	creds, err := tlsconf.New(passphrase)
	if err != nil {
		return nil, nil, "", fmt.Errorf("tls credentials: %w", err)
	}
	conn, err := grpc.NewClient(host, rpc.DialOptions(creds.Client(), token, v.GetString("source"))...)
	if err != nil {
		return nil, nil, "", fmt.Errorf("dial %s: %w", host, err)
	}
	return rpc.NewClient(conn), conn.Close, fmt.Sprintf("tcp+tls (%s)", host), nil
}

// withClient runs fn against a connected daemon.
func withClient(ctx context.Context, v *viper.Viper, fn func(context.Context, *rpc.Client) error) error {
	c, closeFn, _, err := dial(v)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, c)
}
