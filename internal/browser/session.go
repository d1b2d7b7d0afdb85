// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/internal/config"
)

// Session owns one Chrome instance and its root tab. All agent interaction
// with the page goes through Run so per-operation timeouts are applied
// uniformly.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewSession launches Chrome, applies the configured viewport, and navigates
// to the start URL when one is set.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	err := s.Run(ctx, s.cfg.NavigationTimeout,
		emulation.SetDeviceMetricsOverride(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight), 1.0, false),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser startup: %w", err)
	}

	if cfg.StartURL != "" {
		if err := s.Navigate(ctx, cfg.StartURL); err != nil {
			s.Close()
			return nil, err
		}
	}

	logger.Info("Browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return s, nil
}

// Run executes chromedp actions against the session tab under a timeout. A
// zero timeout inherits the caller's deadline.
func (s *Session) Run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := s.tabCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the document to become interactive.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.Run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Screenshot captures the visible viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.Run(ctx, s.cfg.NavigationTimeout,
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// CurrentURL returns the active tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.Run(ctx, s.cfg.NavigationTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Reload refreshes the current page.
func (s *Session) Reload(ctx context.Context) error {
	return s.Run(ctx, s.cfg.NavigationTimeout, page.Reload())
}

// Viewport returns the configured viewport dimensions in CSS pixels.
func (s *Session) Viewport() (width, height int) {
	return s.cfg.ViewportWidth, s.cfg.ViewportHeight
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
