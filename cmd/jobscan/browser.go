package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/browser"
	"github.com/GriffinCanCode/jobscan/internal/navigation"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

type browserFlags struct {
	remote  string
	stealth bool
	headful bool
	track   bool
}

func (f *browserFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.remote, "remote", "", "DevTools URL of a running Chrome to attach to")
	cmd.Flags().BoolVar(&f.stealth, "stealth", true, "Hide common automation fingerprints")
	cmd.Flags().BoolVar(&f.headful, "show", false, "Show the browser window")
	cmd.Flags().BoolVar(&f.track, "track", false, "Track qualifying pages as application sessions")
}

func (a *app) browserConfig(f *browserFlags) browser.Config {
	return browser.Config{
		RemoteURL:   f.remote,
		Bin:         a.cfg.Browser.Bin,
		Headless:    a.cfg.Browser.Headless && !f.headful,
		Stealth:     f.stealth,
		LoadTimeout: a.cfg.Browser.LoadTimeout,
	}
}

// scanPage scans every frame of page and tracks the result when t is set.
func scanPage(ctx context.Context, s *scanner.Scanner, page *browser.Page, t *tracker) (pageReport, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return pageReport{}, err
	}
	report := pageReport{Source: url}

	frames, err := page.Frames(ctx)
	if err != nil && len(frames) == 0 {
		return report, err
	}
	scan := s.ScanFrames(ctx, frames)
	if scan == nil {
		report.Error = scanner.ErrNoData.Error()
		return report, nil
	}
	report.Scan = scan
	if t != nil {
		report.Session, report.Outcome = t.sessions.Track(ctx, scan)
	}
	return report, nil
}

// flowDispatcher hands the session of the page on screen to whatever page
// one of its flow triggers opens.
type flowDispatcher struct {
	sessions *session.Manager

	mu        sync.Mutex
	sessionID string
}

// observe records the session of a fresh report and returns the selectors
// of its flow triggers. Pages that were not tracked clear the session.
func (d *flowDispatcher) observe(report pageReport) []string {
	d.mu.Lock()
	d.sessionID = ""
	if report.Session != nil && report.Outcome.Tracked() {
		d.sessionID = report.Session.ID
	}
	d.mu.Unlock()
	return flowTriggerSelectors(report.Scan)
}

// dispatch saves a hand-off from the current session to target's host.
func (d *flowDispatcher) dispatch(ctx context.Context, target string) (types.SpaDispatch, bool) {
	d.mu.Lock()
	id := d.sessionID
	d.mu.Unlock()
	host := session.HostOf(target)
	if id == "" || host == "" {
		return types.SpaDispatch{}, false
	}
	return d.sessions.SaveDispatch(ctx, host, id), true
}

func flowTriggerSelectors(scan *types.PageScan) []string {
	if scan == nil {
		return nil
	}
	seen := make(map[string]bool, len(scan.FlowTriggers))
	var out []string
	for _, a := range scan.FlowTriggers {
		if a.Selector == "" || seen[a.Selector] {
			continue
		}
		seen[a.Selector] = true
		out = append(out, a.Selector)
	}
	return out
}

func newFetchCmd(a *app) *cobra.Command {
	var flags browserFlags

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Render a page in Chrome and scan all of its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.newScanner(nil)
			if err != nil {
				return err
			}
			var t *tracker
			if flags.track {
				if t, err = a.newTracker(); err != nil {
					return err
				}
				defer t.close()
			}

			b, err := browser.Launch(ctx, a.browserConfig(&flags), a.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			page, err := b.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer page.Close()

			report, err := scanPage(ctx, s, page, t)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Scan == nil {
				return scanner.ErrNoData
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var flags browserFlags

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Keep a page open and re-scan it on every navigation",
		Long: `Open a page and re-scan it whenever its URL settles on a new value.

Back/forward, pushState/replaceState and a URL poll all feed one debounced
handler, so a burst of navigations produces one scan. With --track, a click
on a flow trigger saves a dispatch so the page it opens joins the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.newScanner(nil)
			if err != nil {
				return err
			}
			var t *tracker
			if flags.track {
				if t, err = a.newTracker(); err != nil {
					return err
				}
				defer t.close()
			}

			b, err := browser.Launch(ctx, a.browserConfig(&flags), a.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			page, err := b.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer page.Close()

			var disp *flowDispatcher
			if t != nil {
				disp = &flowDispatcher{sessions: t.sessions}
				err := page.WatchFlowTriggers(ctx, func(target string) {
					if d, ok := disp.dispatch(ctx, target); ok {
						a.logger.Info("dispatch saved",
							zap.String("domain", d.Domain),
							zap.String("session_id", d.SessionID))
					}
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			scanAndPrint := func(ctx context.Context) {
				report, err := scanPage(ctx, s, page, t)
				if err != nil {
					a.logger.Warn("scan failed", zap.Error(err))
					return
				}
				if disp != nil {
					if err := page.SetFlowTriggers(ctx, disp.observe(report)); err != nil {
						a.logger.Warn("set flow triggers", zap.Error(err))
					}
				}
				if err := writeJSON(out, report); err != nil {
					a.logger.Warn("write report", zap.Error(err))
				}
			}

			scanAndPrint(ctx)
			start, err := page.URL(ctx)
			if err != nil {
				return err
			}

			obs := navigation.NewObserver(navigation.Config{Debounce: a.cfg.Browser.Debounce},
				func(ctx context.Context, ev navigation.Event) {
					a.logger.Info("navigation",
						zap.String("url", ev.URL),
						zap.String("signal", string(ev.Signal)),
						zap.Int("signals", ev.Signals))
					scanAndPrint(ctx)
				}, a.logger)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			errCh := make(chan error, 1)
			go func() {
				err := page.WatchNavigation(ctx, obs, a.cfg.Browser.PollInterval)
				cancel()
				errCh <- err
			}()

			runErr := obs.Run(ctx, start)
			if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch navigation: %w", err)
			}
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
