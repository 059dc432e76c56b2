package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Click when no element matched before the deadline
var ErrNotFound = errors.New("browser: element not found")

// Options configures the browser session
type Options struct {
	Bin        string // Chromium binary, empty = launcher lookup
	RemoteURL  string // DevTools URL of a running browser, skips launching
	Headless   bool
	Stealth    bool
	ProfileDir string // Chrome/Chromium profile directory
	Width      int
	Height     int

	// OnConsole receives every console message the page emits
	OnConsole func(line string)

	Logger *zap.Logger
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Session wraps the rod browser and the single page a run drives
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	ws      *cdp.WebSocket
	cancel  context.CancelFunc // ends the browser context and its event goroutines
	lnch    *launcher.Launcher
	tempDir bool // the launcher created the user data dir and may remove it
	remote  bool
	log     *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Launch starts (or attaches to) Chromium and opens one blank page. The
// caller owns the returned session and must Close it.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts.defaults()
	log := opts.Logger
	s := &Session{log: log, remote: opts.RemoteURL != ""}

	controlURL := opts.RemoteURL
	if controlURL == "" {
		bin := opts.Bin
		if bin == "" {
			bin, _ = launcher.LookPath()
		}
		l := launcher.New().Headless(opts.Headless)
		if bin != "" {
			l = l.Bin(bin)
		}
		if opts.ProfileDir != "" {
			l = l.UserDataDir(opts.ProfileDir)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		controlURL = u
		s.lnch = l
		s.tempDir = opts.ProfileDir == ""
		log.Debug("browser: launched local chromium", zap.String("url", u), zap.Bool("headless", opts.Headless))
	} else {
		log.Debug("browser: connecting to remote", zap.String("url", controlURL))
	}

	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, controlURL, nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.ws = ws

	// The browser is not bound to ctx so Close still works after cancellation
	bctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	b := rod.New().Context(bctx).Client(cdp.New().Start(ws))
	if err := b.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	var err error
	if opts.Stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: open page: %w", err)
	}

	err = s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if opts.OnConsole != nil {
		// Subscribes immediately; the returned wait func pumps events until the page closes
		wait := s.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
			opts.OnConsole(consoleText(e))
		})
		go wait()
	}

	return s, nil
}

// Page returns the underlying rod page
func (s *Session) Page() *rod.Page {
	return s.page
}

// Close releases the page, the browser and any launched process. Safe to
// call more than once. A profile directory passed in Options is never
// removed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				s.log.Debug("browser: close page", zap.Error(err))
			}
		}

		closed := false
		// A remote browser belongs to someone else; only our page is closed
		if s.browser != nil && !s.remote {
			if err := s.browser.Close(); err != nil {
				s.closeErr = fmt.Errorf("browser: close: %w", err)
			} else {
				closed = true
			}
		}

		if s.cancel != nil {
			s.cancel()
		}
		if s.ws != nil {
			_ = s.ws.Close()
		}

		if s.lnch != nil {
			if !closed {
				s.lnch.Kill()
			}
			if s.tempDir {
				// Waits for the process to exit, then removes the temp user data dir
				s.lnch.Cleanup()
			}
		}
		s.log.Debug("browser: closed")
	})
	return s.closeErr
}

// InstallPrintOverride replaces window.print on every document the page
// loads from now on, so the checkout never blocks on the OS print dialog
func (s *Session) InstallPrintOverride(ctx context.Context) error {
	if _, err := s.page.Context(ctx).EvalOnNewDocument(printOverrideJS); err != nil {
		return fmt.Errorf("browser: install print override: %w", err)
	}
	return nil
}

// PrintCalls returns how many times the overridden window.print ran on the
// current document
func (s *Session) PrintCalls(ctx context.Context) (int, error) {
	res, err := s.page.Context(ctx).Eval(printCallsJS)
	if err != nil {
		return 0, fmt.Errorf("browser: read print calls: %w", err)
	}
	return res.Value.Int(), nil
}

// Navigate loads url and waits for the load event. Network failures such as
// a refused connection are returned as errors.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

// Click clicks the first element matching selector whose text contains
// text, waiting up to timeout for it to appear and become enabled
func (s *Session) Click(ctx context.Context, selector, text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(ctx).ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s containing %q after %s", ErrNotFound, selector, text, timeout)
		}
		return fmt.Errorf("browser: find %s containing %q: %w", selector, text, err)
	}
	if err := el.WaitEnabled(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s containing %q still disabled after %s", ErrNotFound, selector, text, timeout)
		}
		return fmt.Errorf("browser: wait enabled %s containing %q: %w", selector, text, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s containing %q: %w", selector, text, err)
	}
	return nil
}

// WaitSettled waits until the print override has fired and the element
// with the given id exists, for at most timeout
func (s *Session) WaitSettled(ctx context.Context, id string, timeout time.Duration) (bool, error) {
	return s.WaitUntil(ctx, timeout, settledJS, id)
}

// WaitUntil polls js (a function returning a boolean) until it holds or
// timeout passes. It reports whether the condition held; running out of
// time is not an error.
func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, js string, args ...interface{}) (bool, error) {
	deadline := time.Now().Add(timeout)
	checkInterval := 50 * time.Millisecond

	for {
		res, err := s.page.Context(ctx).Eval(js, args...)
		if err != nil {
			return false, fmt.Errorf("browser: wait condition: %w", err)
		}
		if res.Value.Bool() {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(checkInterval):
		}
	}
}

// Reveal forces the element with the given id visible, centered and on top
// of everything else. It reports whether the element existed; a missing
// element is left alone.
func (s *Session) Reveal(ctx context.Context, id string) (bool, error) {
	res, err := s.page.Context(ctx).Eval(revealJS, id)
	if err != nil {
		return false, fmt.Errorf("browser: reveal #%s: %w", id, err)
	}
	return res.Value.Bool(), nil
}

// HTML returns the serialized document
func (s *Session) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: read html: %w", err)
	}
	return html, nil
}

// ElementHTML returns the outer HTML of the element with the given id, or
// an empty string when there is none
func (s *Session) ElementHTML(ctx context.Context, id string) (string, error) {
	res, err := s.page.Context(ctx).Eval(outerHTMLJS, id)
	if err != nil {
		return "", fmt.Errorf("browser: read #%s: %w", id, err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// ScreenshotFullPage captures the whole scrollable page as PNG
func (s *Session) ScreenshotFullPage(ctx context.Context) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

func consoleText(e *proto.RuntimeConsoleAPICalled) string {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if arg.Value.Nil() {
			parts = append(parts, arg.Description)
			continue
		}
		parts = append(parts, arg.Value.Str())
	}
	return strings.Join(parts, " ")
}
