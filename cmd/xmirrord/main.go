// xmirrord watches one X window: it subscribes to damage, shape,
// cursor and bell notifications, routes them through the event core
// and refreshes a shared-memory capture of the window on every damage
// cycle. It exists to exercise and debug the core; the forwarding
// server proper embeds the same packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/xmirror/internal/atoms"
	"github.com/1broseidon/xmirror/internal/config"
	"github.com/1broseidon/xmirror/internal/events"
	"github.com/1broseidon/xmirror/internal/probe"
	"github.com/1broseidon/xmirror/internal/shmframe"
	"github.com/1broseidon/xmirror/internal/xconn"
)

func main() {
	root := &cobra.Command{
		Use:           "xmirrord",
		Short:         "X event and capture core daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().String("display", "", "X display to connect to (default $DISPLAY)")
	root.Flags().String("config", "", "config file path")
	root.Flags().Uint32("window", 0, "window id to watch (default: active window)")
	root.Flags().Duration("wait", 30*time.Second, "how long to wait for the display to appear")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "xmirrord: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Options
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	log := newLogger(cfg)

	display, _ := cmd.Flags().GetString("display")
	if display == "" {
		display = cfg.Display
	}
	wait, _ := cmd.Flags().GetDuration("wait")

	d, err := waitForDisplay(display, cfg.Synchronous, wait, log)
	if err != nil {
		return err
	}
	defer d.Close()

	if r, by := probe.Detect(d, probe.XWaylandProbes(), log); r == probe.Yes {
		log.Info("display is XWayland", "decided_by", by)
	}

	reg := events.NewRegistry()
	events.SetupCore(reg)
	setup := []struct {
		name string
		fn   func() error
	}{
		{"damage", func() error { return events.SetupDamage(d, reg) }},
		{"shape", func() error { return events.SetupShape(d, reg) }},
		{"cursor", func() error { return events.SetupCursor(d, reg) }},
		{"bell", func() error { return events.SetupBell(d, reg) }},
		{"generic", func() error { return events.SetupGeneric(d, reg) }},
	}
	for _, s := range setup {
		if err := s.fn(); err != nil {
			log.Warn("extension setup skipped", "extension", s.name, "error", err)
		}
	}

	win, err := targetWindow(cmd, d)
	if err != nil {
		return err
	}
	log.Info("watching window", "window", fmt.Sprintf("%#x", win))

	// Blocking shm calls get their own connection so they never stall
	// the event connection.
	capd, err := xconn.Open(display, cfg.Synchronous)
	if err != nil {
		return fmt.Errorf("open capture connection: %w", err)
	}
	defer capd.Close()
	mgr := shmframe.NewManager(capd, log, cfg.DisableSHM)

	router := &captureRouter{log: log, mgr: mgr, win: win, names: atoms.New(capd)}
	loop := events.NewLoop(d, reg, router, log)

	// The selection requests are unchecked in buffered mode; a trap
	// span catches whatever the server rejects.
	trap := d.Trap(loop, true)
	if did, err := events.WatchDamage(d, win); err != nil {
		log.Warn("damage tracking unavailable", "error", err)
	} else {
		defer events.UnwatchDamage(d, did)
	}
	if err := events.SelectShapeEvents(d, win); err != nil {
		log.Warn("shape events unavailable", "error", err)
	}
	if err := events.SelectCursorEvents(d, d.Root()); err != nil {
		log.Warn("cursor events unavailable", "error", err)
	}
	if xerr := trap.End(); xerr != nil {
		log.Warn("event selection rejected", "error", xerr.String())
	}

	if mgr.Negotiate() {
		geom, err := xproto.GetGeometry(capd.Conn(), xproto.Drawable(win)).Reply()
		if err != nil {
			return fmt.Errorf("window geometry: %w", err)
		}
		seg, oerr := mgr.OpenSegment(win,
			int(geom.Width), int(geom.Height), int(geom.Depth))
		if oerr != nil {
			log.Warn("shm segment unavailable", "error", oerr, "retryable", oerr.Retryable)
		} else {
			router.seg = seg
			defer mgr.Close(seg)
		}
	}

	// Redirect the window so its backing pixmap stays populated while
	// obscured; captures then read the pixmap instead of the window.
	if err := mgr.RedirectWindow(win); err != nil {
		log.Warn("composite redirection unavailable", "error", err)
	} else {
		defer mgr.UnredirectWindow(win)
		if pid, err := mgr.WindowPixmap(win); err != nil {
			log.Warn("window pixmap unavailable", "error", err)
		} else {
			router.pixmap = pid
			defer mgr.FreePixmap(pid)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	// A dead connection reads as an empty event queue, so Drain alone
	// never notices it; the periodic round trip is what poisons the
	// display on fatal I/O.
	liveness := time.NewTicker(2 * time.Second)
	defer liveness.Stop()
	for {
		select {
		case <-ticker.C:
			loop.Drain()
			if d.Poisoned() {
				return fmt.Errorf("display connection lost")
			}
		case <-liveness.C:
			if err := d.Sync(false); err != nil {
				return fmt.Errorf("display connection lost: %w", err)
			}
		case sig := <-sigCh:
			log.Info("shutting down", "signal", sig.String())
			return nil
		}
	}
}

func newLogger(cfg *config.Options) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// waitForDisplay retries the connection with capped exponential
// backoff until the display appears or the deadline passes.
func waitForDisplay(display string, synchronous bool, wait time.Duration, log *slog.Logger) (*xconn.Display, error) {
	deadline := time.Now().Add(wait)
	backoff := 50 * time.Millisecond
	for {
		d, err := xconn.Open(display, synchronous)
		if err == nil {
			return d, nil
		}
		if time.Now().Add(backoff).After(deadline) {
			return nil, fmt.Errorf("display did not appear within %s: %w", wait, err)
		}
		log.Debug("display not ready, retrying", "backoff", backoff.String(), "error", err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}
}

func targetWindow(cmd *cobra.Command, d *xconn.Display) (xproto.Window, error) {
	flagWin, _ := cmd.Flags().GetUint32("window")
	if flagWin != 0 {
		return xproto.Window(flagWin), nil
	}
	active, err := ewmh.ActiveWindowGet(d.XUtil())
	if err != nil || active == 0 {
		// No EWMH window manager; fall back to the root.
		return d.Root(), nil
	}
	return active, nil
}

// captureRouter logs every routed event and refreshes the shm capture
// once per damage cycle: capture, consume, release, discard.
type captureRouter struct {
	log    *slog.Logger
	mgr    *shmframe.Manager
	seg    *shmframe.Segment
	win    xproto.Window
	pixmap xproto.Pixmap
	names  *atoms.Cache
}

func (r *captureRouter) Route(code int, rec events.Record, signal, parentSignal string) {
	attrs := []any{
		"signal", signal,
		"code", code,
		"window", fmt.Sprintf("%#x", rec.Window),
		"delivered_to", fmt.Sprintf("%#x", rec.DeliveredTo),
	}
	// Cursor and bell events name themselves with an atom.
	if a, ok := rec.Fields["name_atom"].(uint32); ok && a != 0 {
		if name, ok := r.names.NameOf(xproto.Atom(a)); ok {
			attrs = append(attrs, "name", name)
		}
	}
	r.log.Info("event", attrs...)

	if signal != "damage-event" || rec.Window != r.win || r.seg == nil {
		return
	}
	x, _ := rec.Fields["x"].(int)
	y, _ := rec.Fields["y"].(int)
	w, _ := rec.Fields["width"].(int)
	h, _ := rec.Fields["height"].(int)
	drawable := xproto.Drawable(r.win)
	if r.pixmap != 0 {
		drawable = xproto.Drawable(r.pixmap)
	}
	img, err := r.mgr.Capture(r.seg, drawable, x, y, w, h)
	if err != nil {
		r.log.Warn("capture failed", "error", err)
		return
	}
	if img == nil {
		return
	}
	r.log.Debug("captured",
		"x", img.X, "y", img.Y, "width", img.Width, "height", img.Height,
		"bytes", len(img.Pixels()))
	img.Release()
	r.mgr.Discard(r.seg)
}
