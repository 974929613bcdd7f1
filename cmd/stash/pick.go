package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/stash/internal/clip"
	"go.klb.dev/stash/internal/desktop"
	"go.klb.dev/stash/internal/history"
	"go.klb.dev/stash/internal/imagecache"
	"go.klb.dev/stash/internal/loop"
	"go.klb.dev/stash/internal/monitor"
	"go.klb.dev/stash/internal/panel"
	"go.klb.dev/stash/internal/paste"
	"go.klb.dev/stash/internal/rpc"
	"go.klb.dev/stash/internal/tui"
)

func newPickCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Open the history panel in this terminal and paste the choice",
		Long: `Opens the panel against the running daemon. Enter puts the selected entry
back on the clipboard and pastes it into the window that had focus when the
panel opened; Esc closes the panel without pasting.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPick(cmd.Context(), v) },
	}

	cmd.Flags().String("data-dir", defaultDataDir(), "directory for the panel log")
	addLoggingFlags(cmd)
	addClientFlags(cmd)

	return cmd
}

func runPick(ctx context.Context, v *viper.Viper) error {
	logFile, err := setupPanelLogging(v, v.GetString("data-dir"))
	if err != nil {
		return err
	}
	defer logFile.Close()

	c, closeConn, transport, err := dial(v)
	if err != nil {
		return err
	}
	defer closeConn()
	slog.Info("pick connected", "transport", transport)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backend := clip.New()
	defer backend.Close()
	desk := desktop.New()

	lp := loop.New()
	var ctrl *panel.Controller
	images, err := imagecache.New(ctx, c, lp, imagecache.DefaultMaxEntries,
		imagecache.WithOnLoad(func(int64) { ctrl.Refresh() }))
	if err != nil {
		return err
	}
	session := history.New(c, lp)
	defer session.Close()
	// The daemon's monitor would record the paste-back; c suppresses it.
	paster := paste.New(backend, c, c, desk, paste.WithImages(images))
	ctrl = panel.New(session, paster, desk, images)

	feed := tui.NewFeed(ctrl)
	model := tui.New(tui.Bind(lp, ctrl), tui.Options{Standalone: true})
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lp.Run(gctx) })
	g.Go(func() error {
		feed.Run(gctx, prog)
		return nil
	})
	g.Go(func() error {
		err := c.Watch(gctx, nil, func(ev rpc.WatchEvent) {
			lp.Post(func() { ctrl.OnCapture(monitor.Capture{ID: ev.ID, ContentType: ev.ContentType}) })
		})
		if err != nil {
			slog.Warn("history updates unavailable", "err", err)
		}
		return nil
	})

	lp.Post(ctrl.Show)
	_, runErr := prog.Run()
	// Let a paste-back that was started by the last key press finish.
	ctrl.Wait()
	cancel()
	_ = g.Wait()
	ctrl.Close()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("panel: %w", runErr)
	}
	return nil
}
