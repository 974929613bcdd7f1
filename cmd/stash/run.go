package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"go.klb.dev/stash/internal/clip"
	"go.klb.dev/stash/internal/desktop"
	"go.klb.dev/stash/internal/history"
	"go.klb.dev/stash/internal/hotkey"
	"go.klb.dev/stash/internal/hub"
	"go.klb.dev/stash/internal/imagecache"
	"go.klb.dev/stash/internal/ipc"
	"go.klb.dev/stash/internal/logging"
	"go.klb.dev/stash/internal/loop"
	"go.klb.dev/stash/internal/monitor"
	"go.klb.dev/stash/internal/panel"
	"go.klb.dev/stash/internal/paste"
	"go.klb.dev/stash/internal/rpc"
	"go.klb.dev/stash/internal/store"
	"go.klb.dev/stash/internal/tlsconf"
	"go.klb.dev/stash/internal/tui"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard daemon (+ hotkey panel)",
		Long: `Starts the stash daemon. It polls the clipboard, records every new
text or image into the encrypted history, and serves the history to the
CLI tools over the local socket.

When stdout is a terminal the panel is drawn there and the global shortcut
toggles it; while it is open the shortcut cycles the type filter.

Config file search order:
  /etc/stash/stash.toml
  $HOME/.config/stash/stash.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → STASH_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.String("data-dir", defaultDataDir(), "directory holding the database, key file, and panel log")
	f.String("passphrase", "", "derive the storage key from this passphrase instead of a key file")
	f.Int("retention-days", defaultRetentionDays, "delete entries older than this at startup")
	f.Duration("poll-interval", monitor.DefaultInterval, "clipboard poll interval")
	f.Int("hotkey-key", 0, "shortcut key code (0 = V)")
	f.Int("hotkey-modifiers", 0, "shortcut modifier mask (0 = Cmd+Option on macOS, Ctrl+Alt elsewhere)")
	f.String("listen", "", "also serve gRPC and HTTP JSON over TLS on this TCP address")
	f.String("token", "", "bearer token for --listen (also keys its TLS certificate)")
	f.String("source", defaultSource(), "name for this host in watcher events")
	f.Bool("tui", logging.IsTTY(os.Stdin) && logging.IsTTY(os.Stdout), "draw the panel in this terminal")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

// daemon is everything "stash run" owns.
type daemon struct {
	v       *viper.Viper
	store   *store.Store
	loop    *loop.Loop
	backend clip.Backend
	desk    desktop.Desktop
	hub     *hub.Hub
	monitor *monitor.Monitor
	session *history.Session
	ctrl    *panel.Controller
	disp    *hotkey.Dispatcher
	fp      string
}

func runDaemon(v *viper.Viper) error {
	dataDir := v.GetString("data-dir")
	useTUI := v.GetBool("tui")

	if useTUI {
		logFile, err := setupPanelLogging(v, dataDir)
		if err != nil {
			return err
		}
		defer logFile.Close()
	} else {
		setupLogging(v)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	key, err := loadKey(v, dataDir)
	if err != nil {
		return err
	}
	st, err := store.Bootstrap(ctx, dataDir, key, retentionDays(v))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer st.Close()

	d := &daemon{
		v:       v,
		store:   st,
		loop:    loop.New(),
		backend: clip.New(),
		desk:    desktop.New(),
		hub:     hub.New(),
	}
	defer d.backend.Close()

	slog.Info("stash starting",
		"version", Version,
		"data_dir", dataDir,
		"clipboard", d.backend.Name(),
		"panel", useTUI,
	)
	if !d.desk.CanSynthesizeInput() {
		slog.Warn(desktop.PermissionHint)
	}

	src := &publishingStore{Store: st, hub: d.hub, source: v.GetString("source")}
	d.monitor = monitor.New(d.backend, st, d.desk, monitor.WithInterval(v.GetDuration("poll-interval")))

	images, err := imagecache.New(ctx, src, d.loop, imagecache.DefaultMaxEntries,
		imagecache.WithOnLoad(func(int64) { d.ctrl.Refresh() }))
	if err != nil {
		return err
	}
	d.session = history.New(src, d.loop)
	paster := paste.New(d.backend, d.monitor, src, d.desk, paste.WithImages(images))
	d.ctrl = panel.New(d.session, paster, d.desk, images)
	defer func() {
		d.ctrl.Close()
		d.session.Close()
	}()

	unsubscribe := d.monitor.Subscribe(func(c monitor.Capture) {
		d.loop.Post(func() { d.ctrl.OnCapture(c) })
		ev := captureEvent(c)
		hub.LogEvent("clipboard captured", ev)
		d.hub.Publish(ev, "")
	})
	defer unsubscribe()

	opts := []rpc.Option{
		rpc.WithToken(v.GetString("token")),
		rpc.WithSuppressor(d.monitor),
		rpc.WithPaster(paster),
		rpc.WithWriter(d.backend),
		rpc.WithStatus(d.fillStatus),
	}
	if useTUI {
		opts = append(opts, rpc.WithToggle(d.toggle))
	}
	svc := rpc.New(st, d.hub, opts...)
	srv := grpc.NewServer()
	rpc.Register(srv, svc)

	listen := v.GetString("listen")
	var creds *tlsconf.Credentials
	if listen != "" {
		if creds, err = listenerCredentials(v.GetString("token")); err != nil {
			return err
		}
		d.fp = creds.Fingerprint()
	}

	if useTUI {
		d.startHotkey()
		defer d.disp.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop.Run(gctx) })
	g.Go(func() error { return d.monitor.Run(gctx) })

	ipcLn, err := ipc.Listen()
	if err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		g.Go(func() error { return srv.Serve(ipcLn) })
	}
	if listen != "" {
		if err := serveTCP(gctx, g, listen, creds, srv, svc); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		return nil
	})

	if useTUI {
		d.runPanel(gctx, g, cancel)
	}

	err = g.Wait()
	d.monitor.Wait()
	slog.Info("stash stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startHotkey registers the global shortcut and re-registers it whenever the
// config file changes.
func (d *daemon) startHotkey() {
	cfg := func() hotkey.Config {
		var c hotkey.Config
		if err := d.v.Unmarshal(&c); err != nil {
			slog.Warn("invalid hotkey config, using the default", "err", err)
		}
		return c
	}
	d.disp = hotkey.NewDispatcher(hotkey.OS{}, hotkey.NewRegistry(), cfg, func() {
		d.loop.Post(d.ctrl.Toggle)
	})
	_ = d.disp.Start()

	if d.v.ConfigFileUsed() == "" {
		return
	}
	d.v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config changed", "file", e.Name, "op", e.Op.String())
		_ = d.disp.Reregister()
	})
	d.v.WatchConfig()
}

// runPanel draws the controller in this terminal. Quitting the panel stops
// the daemon.
func (d *daemon) runPanel(ctx context.Context, g *errgroup.Group, stop context.CancelFunc) {
	feed := tui.NewFeed(d.ctrl)
	label := ""
	if combo, ok := d.disp.Active(); ok {
		label = combo.String()
	}
	model := tui.New(tui.Bind(d.loop, d.ctrl), tui.Options{HotkeyLabel: label})
	prog := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	g.Go(func() error {
		feed.Run(ctx, prog)
		return nil
	})
	g.Go(func() error {
		defer stop()
		if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("panel: %w", err)
		}
		return nil
	})
}

func (d *daemon) toggle(ctx context.Context) (bool, error) {
	var visible bool
	err := d.loop.Do(ctx, func() {
		d.ctrl.Toggle()
		visible = d.ctrl.Visible()
	})
	return visible, err
}

func (d *daemon) fillStatus(ctx context.Context, resp *rpc.StatusResponse) {
	resp.Version = Version
	resp.InputPermitted = d.desk.CanSynthesizeInput()
	resp.Fingerprint = d.fp
	if t := d.monitor.LatestEntry(); !t.IsZero() {
		resp.LatestEntry = t.UnixMilli()
	}
	if d.disp != nil {
		if combo, ok := d.disp.Active(); ok {
			resp.Hotkey = combo.String()
		}
	}
	_ = d.loop.Do(ctx, func() { resp.PanelVisible = d.ctrl.Visible() })
}
