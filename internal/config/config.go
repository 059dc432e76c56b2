package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// Browser configures how the Chromium instance is obtained
type Browser struct {
	Bin        string `yaml:"bin"`         // Chromium binary, empty = launcher lookup
	RemoteURL  string `yaml:"remote_url"`  // Existing DevTools endpoint, skips launching
	Headless   bool   `yaml:"headless"`
	Stealth    bool   `yaml:"stealth"`
	ProfileDir string `yaml:"profile_dir"` // Chrome user data dir
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

// Config holds every value the verification run depends on
type Config struct {
	URL string `yaml:"url"`

	AddSelector      string `yaml:"add_selector"`
	AddText          string `yaml:"add_text"`
	CheckoutSelector string `yaml:"checkout_selector"`
	CheckoutText     string `yaml:"checkout_text"`
	BillID           string `yaml:"bill_id"`
	Marker           string `yaml:"marker"`

	SettleTimeout  time.Duration `yaml:"settle_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	ElementTimeout time.Duration `yaml:"element_timeout"`

	Output         string `yaml:"output"`
	Thumbnail      string `yaml:"thumbnail"`
	ThumbnailWidth int    `yaml:"thumbnail_width"`
	Transcript     string `yaml:"transcript"`

	// Strict makes a missing receipt marker fail the run
	Strict bool `yaml:"strict"`

	Browser Browser `yaml:"browser"`
}

// Default returns the values the checkout verification was written against
func Default() Config {
	return Config{
		URL:              "http://localhost:3000",
		AddSelector:      "button",
		AddText:          "Add to Order",
		CheckoutSelector: "button",
		CheckoutText:     "Checkout & Print",
		BillID:           "printable-bill",
		Marker:           "RECEIPT",
		SettleTimeout:    time.Second,
		ElementTimeout:   30 * time.Second,
		Output:           "/home/jules/verification/pos_bill_final.png",
		ThumbnailWidth:   400,
		Browser: Browser{
			Headless: true,
			Width:    1280,
			Height:   720,
		},
	}
}

// Environment variables consulted by Load
const (
	EnvURL        = "BILLSHOT_URL"
	EnvOutput     = "BILLSHOT_OUTPUT"
	EnvBrowserBin = "BILLSHOT_BROWSER_BIN"
	EnvRemoteURL  = "BILLSHOT_REMOTE_URL"
)

// Load builds a Config from defaults, the optional YAML file at path and
// the environment, in that order of precedence. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, os.Getenv)
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	// An empty file is a valid, empty override
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvURL); v != "" {
		cfg.URL = v
	}
	if v := getenv(EnvOutput); v != "" {
		cfg.Output = v
	}
	if v := getenv(EnvBrowserBin); v != "" {
		cfg.Browser.Bin = v
	}
	if v := getenv(EnvRemoteURL); v != "" {
		cfg.Browser.RemoteURL = v
	}
}

// Validate reports the first problem that would make a run meaningless
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if c.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalid, c.URL)
	}

	required := []struct {
		name, value string
	}{
		{"add_selector", c.AddSelector},
		{"add_text", c.AddText},
		{"checkout_selector", c.CheckoutSelector},
		{"checkout_text", c.CheckoutText},
		{"bill_id", c.BillID},
		{"marker", c.Marker},
		{"output", c.Output},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalid, r.name)
		}
	}

	if c.ElementTimeout <= 0 {
		return fmt.Errorf("%w: element_timeout must be positive", ErrInvalid)
	}
	if c.SettleTimeout < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("%w: settle_timeout and settle_delay must not be negative", ErrInvalid)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d must be positive", ErrInvalid, c.Browser.Width, c.Browser.Height)
	}
	if c.Thumbnail != "" && c.ThumbnailWidth <= 0 {
		return fmt.Errorf("%w: thumbnail_width must be positive", ErrInvalid)
	}
	return nil
}
