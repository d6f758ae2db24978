// Package browser is the DOM automation surface: a rod-driven Chrome page
// hosting the target web client. The core engine only talks to the Surface
// interface; Session is the production implementation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"wadrive/internal/config"
)

// Surface is what the session engine consumes. WaitFor reports a lapsed
// deadline as an error wrapping context.DeadlineExceeded; Close is
// best-effort and must be safe to call more than once.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
	Expose(name string, fn func(gson.JSON)) error
	WaitFor(ctx context.Context, predicateJS string, timeout time.Duration) error
	Close(ctx context.Context) error
}

// Session is a connected browser page.
type Session struct {
	cfg     *config.Config
	log     *zap.Logger
	browser *rod.Browser
	page    *rod.Page
	closed  bool
}

var _ Surface = (*Session)(nil)

// Open connects to Chrome (attaching to cfg.Browser.DebuggerURL when set,
// launching otherwise), opens a blank page and applies viewport and user
// agent overrides. The caller owns the returned session and must Close it.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("browser")

	controlURL := cfg.Browser.DebuggerURL
	if controlURL == "" {
		url, err := launchChrome(cfg)
		if err != nil {
			return nil, err
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth(),
		Height:            cfg.ViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Warn("failed to set viewport", zap.Error(err))
	}

	if ua := cfg.Browser.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			log.Warn("failed to set user agent", zap.Error(err))
		}
	}

	return &Session{cfg: cfg, log: log, browser: b, page: page}, nil
}

// launchChrome starts a Chrome instance from the configured binary and
// flags. Unparseable extra flags fall back to a plain launch.
func launchChrome(cfg *config.Config) (string, error) {
	build := func() *launcher.Launcher {
		l := launcher.New().Headless(cfg.Browser.Headless)
		if cfg.Browser.Bin != "" {
			l = l.Bin(cfg.Browser.Bin)
		}
		if cfg.Browser.UserDataDir != "" {
			l = l.UserDataDir(cfg.Browser.UserDataDir)
		}
		return l
	}

	launch := build()
	for _, rawFlag := range cfg.Browser.Launch {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			launch = launch.Set(flags.Flag(name), val)
		} else {
			launch = launch.Set(flags.Flag(name))
		}
	}

	url, err := launch.Launch()
	if err != nil {
		if alt, altErr := build().Launch(); altErr == nil {
			return alt, nil
		}
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	return url, nil
}

// Navigate loads url and waits for the load event, bounded by the
// configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Eval runs a JS function in the page and returns its value.
func (s *Session) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return gson.New(nil), fmt.Errorf("evaluate script: %w", err)
	}
	if res == nil {
		return gson.New(nil), nil
	}
	return res.Value, nil
}

// Expose makes fn callable from page script under the given name.
func (s *Session) Expose(name string, fn func(gson.JSON)) error {
	_, err := s.page.Expose(name, func(j gson.JSON) (interface{}, error) {
		fn(j)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("expose %s: %w", name, err)
	}
	return nil
}

// WaitFor polls predicateJS until it is truthy or timeout elapses. The
// deadline is reported wrapping context.DeadlineExceeded.
func (s *Session) WaitFor(ctx context.Context, predicateJS string, timeout time.Duration) error {
	err := s.page.Context(ctx).Timeout(timeout).Wait(&rod.EvalOptions{JS: predicateJS})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("condition not met within %s: %w", timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("wait for condition: %w", err)
	}
	return nil
}

// Close shuts the page and browser down, best-effort. Failures are logged,
// never propagated; a second call is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.log.Warn("page close failed", zap.Error(err))
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.log.Warn("browser close failed", zap.Error(err))
		}
		s.browser = nil
	}
	return nil
}
