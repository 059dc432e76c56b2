package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/v0xg/billshot/internal/browser"
	"github.com/v0xg/billshot/internal/config"
	"github.com/v0xg/billshot/internal/fixture"
	"github.com/v0xg/billshot/internal/verify"
)

var (
	configPath     string
	output         string
	strict         bool
	thumbnail      string
	transcript     string
	settleTimeout  time.Duration
	settleDelay    time.Duration
	elementTimeout time.Duration
	browserBin     string
	remoteURL      string
	stealthMode    bool
	headful        bool
	profile        string
	width          int
	height         int
	verbose        bool
	fixtureAddr    string

	logger *zap.Logger
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "billshot [url]",
		Short: "Verify a POS checkout and screenshot the printed bill",
		Long: `billshot opens the point-of-sale app in headless Chromium, adds an item,
clicks "Checkout & Print" with window.print stubbed out, forces the
printable bill on screen and saves a full-page screenshot.

Example:
  billshot http://localhost:3000 -o /tmp/pos_bill_final.png --strict`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: initLogger,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: run,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.StringVarP(&output, "output", "o", "", "Screenshot path (directory must exist)")
	f.BoolVar(&strict, "strict", false, "Exit non-zero when the receipt marker is missing")
	f.StringVar(&thumbnail, "thumbnail", "", "Also write a downscaled PNG here")
	f.StringVar(&transcript, "transcript", "", "Also write the bill as Markdown here")
	f.DurationVar(&settleTimeout, "settle-timeout", 0, "Upper bound on waiting for checkout effects")
	f.DurationVar(&settleDelay, "settle-delay", 0, "Fixed pause after settling")
	f.DurationVar(&elementTimeout, "element-timeout", 0, "How long to wait for each button")
	f.StringVar(&browserBin, "browser", "", "Chromium binary")
	f.StringVar(&remoteURL, "remote", "", "DevTools URL of a running browser")
	f.BoolVar(&stealthMode, "stealth", false, "Open the page with stealth evasions")
	f.BoolVar(&headful, "headful", false, "Show the browser window")
	f.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory")
	f.IntVar(&width, "width", 0, "Viewport width")
	f.IntVar(&height, "height", 0, "Viewport height")

	fixtureCmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve a stand-in POS page with the checkout contract billshot expects",
		Args:  cobra.NoArgs,
		RunE:  serveFixture,
	}
	fixtureCmd.Flags().StringVar(&fixtureAddr, "addr", "127.0.0.1:3000", "Listen address")
	rootCmd.AddCommand(fixtureCmd)

	return rootCmd
}

func initLogger(cmd *cobra.Command, args []string) error {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opener := verify.BrowserOpener(browser.Options{
		Bin:        cfg.Browser.Bin,
		RemoteURL:  cfg.Browser.RemoteURL,
		Headless:   cfg.Browser.Headless,
		Stealth:    cfg.Browser.Stealth,
		ProfileDir: cfg.Browser.ProfileDir,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Logger:     logger,
	})

	runner := verify.NewRunner(cfg, opener, cmd.OutOrStdout(), logger)
	report, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, verify.ErrReceiptMissing) {
			return fmt.Errorf("strict check failed: %w", err)
		}
		return fmt.Errorf("verification failed: %w", err)
	}

	logger.Info("verification finished",
		zap.Bool("receipt_found", report.ReceiptFound),
		zap.Bool("bill_revealed", report.BillRevealed),
		zap.Int("print_calls", report.PrintCalls),
		zap.Duration("elapsed", report.Elapsed))
	return nil
}

// loadConfig layers flags that were set explicitly over file and env values
func loadConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	if len(args) == 1 {
		cfg.URL = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = output
	}
	if flags.Changed("strict") {
		cfg.Strict = strict
	}
	if flags.Changed("thumbnail") {
		cfg.Thumbnail = thumbnail
	}
	if flags.Changed("transcript") {
		cfg.Transcript = transcript
	}
	if flags.Changed("settle-timeout") {
		cfg.SettleTimeout = settleTimeout
	}
	if flags.Changed("settle-delay") {
		cfg.SettleDelay = settleDelay
	}
	if flags.Changed("element-timeout") {
		cfg.ElementTimeout = elementTimeout
	}
	if flags.Changed("browser") {
		cfg.Browser.Bin = browserBin
	}
	if flags.Changed("remote") {
		cfg.Browser.RemoteURL = remoteURL
	}
	if flags.Changed("stealth") {
		cfg.Browser.Stealth = stealthMode
	}
	if flags.Changed("headful") {
		cfg.Browser.Headless = !headful
	}
	if flags.Changed("profile") {
		cfg.Browser.ProfileDir = profile
	}
	if flags.Changed("width") {
		cfg.Browser.Width = width
	}
	if flags.Changed("height") {
		cfg.Browser.Height = height
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func serveFixture(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fixtureAddr,
		Handler:           fixture.Handler(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "→ Serving POS fixture on http://%s (/, %s, %s)\n",
		fixtureAddr, fixture.PathNoReceipt, fixture.PathNoBill)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("fixture server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
