package verify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/billshot/internal/config"
	"github.com/v0xg/billshot/internal/receipt"
	"github.com/v0xg/billshot/internal/shot"
)

// Report holds the outcome of a run
type Report struct {
	URL          string
	Settled      bool // print override fired and bill present before the settle bound
	PrintCalls   int
	BillRevealed bool
	ReceiptFound bool
	Console      []string
	Screenshot   *shot.Result
	Transcript   string // path, empty when none was written
	Elapsed      time.Duration
}

// Runner executes the checkout verification, one step after the other
type Runner struct {
	cfg  config.Config
	open Opener
	log  *zap.Logger

	mu  sync.Mutex // guards out and console, written from the event goroutine too
	out io.Writer

	console []string
}

// NewRunner returns a runner for cfg. cfg should already be validated.
func NewRunner(cfg config.Config, open Opener, out io.Writer, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, open: open, out: out, log: log}
}

// Run performs the verification. The session is closed on every path,
// including failures and cancellation of ctx.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := r.cfg
	report := &Report{URL: cfg.URL}

	r.mu.Lock()
	r.console = nil
	r.mu.Unlock()

	r.log.Debug("verify: starting", zap.String("url", cfg.URL), zap.String("output", cfg.Output))

	sess, err := r.open(ctx, r.onConsole)
	if err != nil {
		return report, &StepError{Step: StepLaunch, Err: err}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			r.log.Warn("verify: close browser", zap.Error(err))
		}
		report.Console = r.consoleLines()
		report.Elapsed = time.Since(start)
	}()

	if err := sess.InstallPrintOverride(ctx); err != nil {
		return report, &StepError{Step: StepPrintOverride, Err: err}
	}

	if err := sess.Navigate(ctx, cfg.URL); err != nil {
		return report, &StepError{Step: StepNavigate, Err: err}
	}

	r.say("Adding item to cart...")
	if err := sess.Click(ctx, cfg.AddSelector, cfg.AddText, cfg.ElementTimeout); err != nil {
		return report, &StepError{Step: StepAddToOrder, Err: err}
	}

	r.say("Clicking Checkout...")
	if err := sess.Click(ctx, cfg.CheckoutSelector, cfg.CheckoutText, cfg.ElementTimeout); err != nil {
		return report, &StepError{Step: StepCheckout, Err: err}
	}

	if err := r.settle(ctx, sess, report); err != nil {
		return report, &StepError{Step: StepSettle, Err: err}
	}

	r.say("Making bill visible for screenshot...")
	revealed, err := sess.Reveal(ctx, cfg.BillID)
	if err != nil {
		return report, &StepError{Step: StepReveal, Err: err}
	}
	report.BillRevealed = revealed
	if !revealed {
		r.log.Debug("verify: bill element absent, style override skipped", zap.String("id", cfg.BillID))
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return report, &StepError{Step: StepContent, Err: err}
	}
	report.ReceiptFound = receipt.Contains(html, cfg.Marker)
	if report.ReceiptFound {
		r.say("Receipt found in DOM")
	} else {
		r.say("Receipt NOT found in DOM")
	}

	data, err := sess.ScreenshotFullPage(ctx)
	if err != nil {
		return report, &StepError{Step: StepScreenshot, Err: err}
	}
	res, err := shot.Write(cfg.Output, data)
	if err != nil {
		return report, &StepError{Step: StepScreenshot, Err: err}
	}
	report.Screenshot = res
	r.say("Screenshot saved to %s", cfg.Output)
	r.log.Debug("verify: screenshot written",
		zap.String("path", res.Path),
		zap.Int64("bytes", res.Size),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height))

	if cfg.Thumbnail != "" {
		if err := res.WriteThumbnail(cfg.Thumbnail, uint(cfg.ThumbnailWidth)); err != nil {
			return report, &StepError{Step: StepThumbnail, Err: err}
		}
		r.say("Thumbnail saved to %s", cfg.Thumbnail)
	}

	if cfg.Transcript != "" {
		if err := r.writeTranscript(ctx, sess, report); err != nil {
			return report, &StepError{Step: StepTranscript, Err: err}
		}
	}

	if cfg.Strict && !report.ReceiptFound {
		return report, ErrReceiptMissing
	}
	return report, nil
}

// settle waits for the checkout's client-side effects, bounded by the
// configured timeout, then applies the optional fixed delay
func (r *Runner) settle(ctx context.Context, sess Session, report *Report) error {
	cfg := r.cfg

	if cfg.SettleTimeout > 0 {
		settled, err := sess.WaitSettled(ctx, cfg.BillID, cfg.SettleTimeout)
		if err != nil {
			return err
		}
		report.Settled = settled
		if !settled {
			r.log.Debug("verify: settle bound reached", zap.Duration("timeout", cfg.SettleTimeout))
		}
	}

	if cfg.SettleDelay > 0 {
		t := time.NewTimer(cfg.SettleDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	calls, err := sess.PrintCalls(ctx)
	if err != nil {
		return err
	}
	report.PrintCalls = calls
	if calls == 0 {
		r.log.Warn("verify: checkout did not call window.print")
	}
	return nil
}

func (r *Runner) writeTranscript(ctx context.Context, sess Session, report *Report) error {
	bill, err := sess.ElementHTML(ctx, r.cfg.BillID)
	if err != nil {
		return err
	}
	if bill == "" {
		r.log.Debug("verify: no bill element, transcript skipped")
		return nil
	}

	md, err := receipt.NewTranscriber().Transcript(bill)
	if err != nil {
		return err
	}
	if _, err := shot.WriteFile(r.cfg.Transcript, []byte(md)); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	report.Transcript = r.cfg.Transcript
	r.say("Transcript saved to %s", r.cfg.Transcript)
	return nil
}

func (r *Runner) onConsole(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.console = append(r.console, line)
	fmt.Fprintf(r.out, "console: %s\n", line)
}

func (r *Runner) say(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Runner) consoleLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.console...)
}
