package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Neo Dashboard Configuration

[trading]
# Default product type: MIS, CNC, NRML
default_product = "MIS"
# Default exchange segment: nse_cm, bse_cm, nse_fo, bse_fo, cde_fo, mcx_fo
default_segment = "nse_cm"

[watchlist]
# How long a search query must sit unchanged before it runs (milliseconds)
search_debounce_ms = 500
# Maximum search results shown
search_limit = 50
# Persist the watchlist across sessions
auto_save = true

[stream]
# Override the streaming endpoint (leave empty for the default)
url = ""
# Reconnection attempts before giving up
reconnect_attempts = 5

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
# Time format
time_format = "15:04:05"
`

const credentialsTemplate = `# Neo Dashboard Credentials
# Keep this file private (chmod 600).

[neo]
consumer_key = ""
consumer_secret = ""
mobile_number = ""
ucc = ""
mpin = ""
# Base32 TOTP secret from the authenticator setup, enables auto-login
totp_secret = ""
`

// EnsureTemplates writes the config and credentials templates into
// configDir, leaving existing files untouched.
func EnsureTemplates(configDir string) error {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := createTemplateConfig(configDir); err != nil {
		return err
	}
	return createTemplateCredentials(configDir)
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
