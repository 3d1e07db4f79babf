package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/logging"
	"github.com/GriffinCanCode/jobscan/internal/navigation"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("browser: closed")

// Config configures Chrome.
type Config struct {
	// RemoteURL connects to a running Chrome instead of launching one.
	RemoteURL string
	// Bin overrides the Chrome binary; empty lets rod find or fetch one.
	Bin      string
	Headless bool
	// Stealth hides common automation fingerprints.
	Stealth bool
	// LoadTimeout bounds navigation and load. Default: 30s.
	LoadTimeout time.Duration
}

func (c *Config) defaults() {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 30 * time.Second
	}
}

// Browser owns one Chrome process or connection.
type Browser struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// Launch starts Chrome, or connects to cfg.RemoteURL.
func Launch(ctx context.Context, cfg Config, logger *logging.Logger) (*Browser, error) {
	cfg.defaults()
	logger = logging.OrNop(logger).Named("browser")

	b := &Browser{cfg: cfg, logger: logger}

	controlURL := cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		controlURL = u
		b.launcher = l
		logger.Info("launched chrome", zap.String("control_url", controlURL), zap.Bool("headless", cfg.Headless))
	} else {
		logger.Info("connecting to chrome", zap.String("control_url", controlURL))
	}

	rb := rod.New().ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = rb
	return b, nil
}

// Open creates a tab and navigates it to rawURL.
func (b *Browser) Open(ctx context.Context, rawURL string) (*Page, error) {
	b.mu.Lock()
	rb, closed := b.browser, b.closed
	b.mu.Unlock()
	if closed || rb == nil {
		return nil, ErrClosed
	}

	var (
		page *rod.Page
		err  error
	)
	if b.cfg.Stealth {
		page, err = stealth.Page(rb)
	} else {
		page, err = rb.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, b.cfg.LoadTimeout)
	defer cancel()

	if err := page.Context(loadCtx).Navigate(rawURL); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", rawURL, err)
	}
	if err := page.Context(loadCtx).WaitLoad(); err != nil {
		b.logger.Warn("wait load timed out", zap.String("url", rawURL), zap.Error(err))
	}

	return &Page{page: page, logger: b.logger.With(zap.String("url", rawURL))}, nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.cleanup()
}

func (b *Browser) cleanup() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return err
}

// Page is one open tab.
type Page struct {
	page   *rod.Page
	logger *logging.Logger
}

// URL returns the tab's current URL.
func (p *Page) URL(ctx context.Context) (string, error) {
	return evalString(ctx, p.page, locationJS)
}

// Source returns a scanner source reading the top document.
func (p *Page) Source() scanner.Source {
	return frameSource{page: p.page}
}

// Frames lists the top document and every iframe as scanner frames. Frames
// that cannot be reached are left out; the scanner skips frames that fail
// later.
func (p *Page) Frames(ctx context.Context) ([]scanner.Frame, error) {
	frames := []scanner.Frame{{ID: "top", Top: true, Source: frameSource{page: p.page}}}

	iframes, err := p.page.Context(ctx).Elements("iframe")
	if err != nil {
		return frames, fmt.Errorf("browser: list iframes: %w", err)
	}
	for i, el := range iframes {
		fp, err := el.Frame()
		if err != nil {
			p.logger.Debug("iframe unreachable", zap.Int("index", i), zap.Error(err))
			continue
		}
		frames = append(frames, scanner.Frame{
			ID:     fmt.Sprintf("frame_%d", i),
			Source: frameSource{page: fp},
		})
	}
	return frames, nil
}

// WatchNavigation feeds obs from the injected history hooks and a URL poll
// every interval, until ctx is done. It blocks.
func (p *Page) WatchNavigation(ctx context.Context, obs *navigation.Observer, interval time.Duration) error {
	if err := (proto.RuntimeAddBinding{Name: navigationBinding}).Call(p.page); err != nil {
		return fmt.Errorf("browser: add binding: %w", err)
	}
	if _, err := p.page.EvalOnNewDocument("(" + historyHookJS + ")()"); err != nil {
		return fmt.Errorf("browser: install history hooks: %w", err)
	}
	if _, err := p.page.Context(ctx).Eval(historyHookJS); err != nil {
		return fmt.Errorf("browser: install history hooks: %w", err)
	}

	wait := p.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != navigationBinding {
			return
		}
		kind, url, ok := parseBindingPayload(e.Payload)
		if !ok {
			p.logger.Debug("malformed navigation payload", zap.String("payload", e.Payload))
			return
		}
		obs.Notify(kind, url)
	})
	go wait()

	return obs.Poll(ctx, interval, p.URL)
}

// WatchFlowTriggers calls onClick with the destination of every click on an
// element matching the selectors last passed to SetFlowTriggers. It returns
// once the hook is installed; delivery stops when ctx is done.
func (p *Page) WatchFlowTriggers(ctx context.Context, onClick func(target string)) error {
	if err := (proto.RuntimeAddBinding{Name: dispatchBinding}).Call(p.page); err != nil {
		return fmt.Errorf("browser: add binding: %w", err)
	}
	if _, err := p.page.EvalOnNewDocument("(" + flowTriggerHookJS + ")()"); err != nil {
		return fmt.Errorf("browser: install click hook: %w", err)
	}
	if _, err := p.page.Context(ctx).Eval(flowTriggerHookJS); err != nil {
		return fmt.Errorf("browser: install click hook: %w", err)
	}

	wait := p.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != dispatchBinding {
			return
		}
		target, ok := parseDispatchPayload(e.Payload)
		if !ok {
			p.logger.Debug("malformed dispatch payload", zap.String("payload", e.Payload))
			return
		}
		onClick(target)
	})
	go wait()
	return nil
}

// SetFlowTriggers replaces the selectors WatchFlowTriggers reports clicks on.
func (p *Page) SetFlowTriggers(ctx context.Context, selectors []string) error {
	if selectors == nil {
		selectors = []string{}
	}
	if _, err := p.page.Context(ctx).Eval(setFlowTriggersJS, selectors); err != nil {
		return fmt.Errorf("browser: set flow triggers: %w", err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

func parseBindingPayload(payload string) (navigation.Signal, string, bool) {
	kind, url, ok := strings.Cut(payload, "|")
	if !ok || url == "" {
		return "", "", false
	}
	switch navigation.Signal(kind) {
	case navigation.SignalProgrammatic, navigation.SignalHistory:
		return navigation.Signal(kind), url, true
	}
	return "", "", false
}

func parseDispatchPayload(payload string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(payload))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.String(), true
}

type frameSource struct {
	page *rod.Page
}

func (s frameSource) Document(ctx context.Context) (*dom.Document, error) {
	markup, err := evalString(ctx, s.page, serializeJS)
	if err != nil {
		return nil, err
	}
	url, err := evalString(ctx, s.page, locationJS)
	if err != nil {
		return nil, err
	}
	return dom.LoadString(markup, url)
}

func evalString(ctx context.Context, page *rod.Page, js string) (string, error) {
	res, err := page.Context(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Str(), nil
}
