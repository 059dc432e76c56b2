package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/billshot/internal/config"
)

// parse runs flag parsing only and returns the layered config
func parse(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return loadConfig(cmd, cmd.Flags().Args())
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{config.EnvURL, config.EnvOutput, config.EnvBrowserBin, config.EnvRemoteURL} {
		t.Setenv(key, "")
	}

	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "billshot.yaml")
	require.NoError(t, os.WriteFile(file, []byte("url: http://file:3000\nstrict: true\noutput: /file.png\n"), 0o644))
	t.Setenv(config.EnvURL, "http://env:3000")
	t.Setenv(config.EnvOutput, "")

	cfg, err := parse(t,
		"--config", file,
		"-o", "/flag.png",
		"--strict=false",
		"--settle-timeout", "300ms",
		"--headful",
		"--width", "1024",
		"http://arg:3000",
	)
	require.NoError(t, err)

	assert.Equal(t, "http://arg:3000", cfg.URL)
	assert.Equal(t, "/flag.png", cfg.Output)
	assert.False(t, cfg.Strict)
	assert.Equal(t, 300*time.Millisecond, cfg.SettleTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1024, cfg.Browser.Width)
	assert.Equal(t, 720, cfg.Browser.Height)
}

func TestLoadConfigEnvWithoutFlags(t *testing.T) {
	t.Setenv(config.EnvURL, "http://env:3000")
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "http://env:3000", cfg.URL)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := parse(t, "--element-timeout", "0s")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRootCommandRejectsBadURL(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"not a url"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRootCommandTooManyArgs(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"http://a", "http://b"})
	assert.Error(t, cmd.Execute())
}
