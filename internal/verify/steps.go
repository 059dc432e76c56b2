package verify

import (
	"context"
	"errors"
	"time"

	"github.com/v0xg/billshot/internal/browser"
)

// Step names a stage of the checkout verification
type Step string

const (
	StepLaunch        Step = "launch"
	StepPrintOverride Step = "print-override"
	StepNavigate      Step = "navigate"
	StepAddToOrder    Step = "add-to-order"
	StepCheckout      Step = "checkout"
	StepSettle        Step = "settle"
	StepReveal        Step = "reveal"
	StepContent       Step = "content"
	StepScreenshot    Step = "screenshot"
	StepThumbnail     Step = "thumbnail"
	StepTranscript    Step = "transcript"
)

// ErrReceiptMissing is returned by strict runs whose page lacked the marker.
// The screenshot has still been written when it is returned.
var ErrReceiptMissing = errors.New("verify: receipt marker not found")

// StepError attributes a failure to the step that produced it
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return string(e.Step) + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Session is the part of a browser session the runner drives
type Session interface {
	InstallPrintOverride(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector, text string, timeout time.Duration) error
	WaitSettled(ctx context.Context, id string, timeout time.Duration) (bool, error)
	Reveal(ctx context.Context, id string) (bool, error)
	PrintCalls(ctx context.Context) (int, error)
	HTML(ctx context.Context) (string, error)
	ElementHTML(ctx context.Context, id string) (string, error)
	ScreenshotFullPage(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener starts a session. onConsole receives the page's console output.
type Opener func(ctx context.Context, onConsole func(line string)) (Session, error)

// BrowserOpener opens real Chromium sessions with opts
func BrowserOpener(opts browser.Options) Opener {
	return func(ctx context.Context, onConsole func(string)) (Session, error) {
		opts.OnConsole = onConsole
		s, err := browser.Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
