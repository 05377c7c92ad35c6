/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	Model          string `yaml:"model"` // part of the library cache key
	// Token is not stored on disk; it lives in the OS keychain.
}

type FollowConfig struct {
	BandRatio          float64 `yaml:"band_ratio"`
	CooldownMs         int     `yaml:"cooldown_ms"`
	ScrollThresholdPx  float64 `yaml:"scroll_threshold_px"`
	OverlayTolerancePx float64 `yaml:"overlay_tolerance_px"`
}

type LibraryConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" | "postgres"
	Path     string `yaml:"path"`   // sqlite file; empty means DataDir()/library.sqlite
	DSN      string `yaml:"dsn"`    // postgres connection string
	KeepLast int    `yaml:"keep_last"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Backend       BackendConfig `yaml:"backend"`
	Follow        FollowConfig  `yaml:"follow"`
	Library       LibraryConfig `yaml:"library"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Backend:       BackendConfig{BaseURL: "http://localhost:8000/v1/tts", TimeoutMs: 15000, PollIntervalMs: 1000, Model: "default"},
		Follow:        FollowConfig{BandRatio: 0.35, CooldownMs: 600, ScrollThresholdPx: 4, OverlayTolerancePx: 0.5},
		Library:       LibraryConfig{Driver: "sqlite", KeepLast: 50},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "READALONG_CONFIG"
	EnvBackendURL       = "READALONG_BACKEND_URL"
	EnvBackendTimeoutMs = "READALONG_BACKEND_TIMEOUT_MS"
	EnvPollIntervalMs   = "READALONG_POLL_INTERVAL_MS"
	EnvModel            = "READALONG_MODEL"
	EnvBandRatio        = "READALONG_FOLLOW_BAND_RATIO"
	EnvLibraryDriver    = "READALONG_LIBRARY_DRIVER"
	EnvLibraryPath      = "READALONG_LIBRARY_PATH"
	EnvLibraryDSN       = "READALONG_LIBRARY_DSN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "READALONG_LOG_LEVEL"
	EnvLogFormat = "READALONG_LOG_FORMAT"
	EnvLogSource = "READALONG_LOG_SOURCE"
	EnvLogFile   = "READALONG_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "readalong"
	keyringToken   = "backend_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// appDir returns the per-user directory of the given kind ("config" or "data").
func appDir(kind string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "readalong")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "readalong")
	default: // linux and others
		if kind == "data" {
			if x := os.Getenv("XDG_DATA_HOME"); x != "" {
				return filepath.Join(x, "readalong"), nil
			}
			base = filepath.Join(os.Getenv("HOME"), ".local", "share", "readalong")
		} else {
			if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
				return filepath.Join(x, "readalong"), nil
			}
			base = filepath.Join(os.Getenv("HOME"), ".config", "readalong")
		}
	}
	if base == "" || base == "readalong" {
		return "", errors.New("cannot resolve " + kind + " directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path, or READALONG_CONFIG when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := appDir("config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns the per-user directory for the library and crash reports.
func DataDir() (string, error) { return appDir("data") }

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
// A malformed file is reported but the defaults plus overrides are still returned.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var fileErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			fileErr = err
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	// token from keyring; headless systems have none
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, fileErr
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// SetToken stores the backend token in the OS keyring.
func SetToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	return tokenStore.Set(keyringService, keyringToken, strings.TrimSpace(token))
}

// ClearToken removes the backend token from the keyring.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.PollIntervalMs != 0 {
		dst.Backend.PollIntervalMs = src.Backend.PollIntervalMs
	}
	if strings.TrimSpace(src.Backend.Model) != "" {
		dst.Backend.Model = strings.TrimSpace(src.Backend.Model)
	}
	// follow: zero means "keep default"
	if src.Follow.BandRatio > 0 && src.Follow.BandRatio < 1 {
		dst.Follow.BandRatio = src.Follow.BandRatio
	}
	if src.Follow.CooldownMs > 0 {
		dst.Follow.CooldownMs = src.Follow.CooldownMs
	}
	if src.Follow.ScrollThresholdPx > 0 {
		dst.Follow.ScrollThresholdPx = src.Follow.ScrollThresholdPx
	}
	if src.Follow.OverlayTolerancePx > 0 {
		dst.Follow.OverlayTolerancePx = src.Follow.OverlayTolerancePx
	}
	// library
	if strings.TrimSpace(src.Library.Driver) != "" {
		dst.Library.Driver = strings.ToLower(strings.TrimSpace(src.Library.Driver))
	}
	if strings.TrimSpace(src.Library.Path) != "" {
		dst.Library.Path = strings.TrimSpace(src.Library.Path)
	}
	if strings.TrimSpace(src.Library.DSN) != "" {
		dst.Library.DSN = strings.TrimSpace(src.Library.DSN)
	}
	if src.Library.KeepLast != 0 {
		dst.Library.KeepLast = src.Library.KeepLast
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	envInt(EnvBackendTimeoutMs, &cfg.Backend.TimeoutMs)
	envInt(EnvPollIntervalMs, &cfg.Backend.PollIntervalMs)
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Backend.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBandRatio)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f < 1 {
			cfg.Follow.BandRatio = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDriver)); v != "" {
		cfg.Library.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryPath)); v != "" {
		cfg.Library.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDSN)); v != "" {
		cfg.Library.DSN = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.poll_interval_ms": EnvPollIntervalMs,
	"backend.model":            EnvModel,
	"follow.band_ratio":        EnvBandRatio,
	"library.driver":           EnvLibraryDriver,
	"library.path":             EnvLibraryPath,
	"library.dsn":              EnvLibraryDSN,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the per-request backend timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// PollInterval returns the job status polling interval.
func (b BackendConfig) PollInterval() time.Duration {
	if b.PollIntervalMs <= 0 {
		return time.Duration(Defaults().Backend.PollIntervalMs) * time.Millisecond
	}
	return time.Duration(b.PollIntervalMs) * time.Millisecond
}

func (f FollowConfig) Cooldown() time.Duration {
	return time.Duration(f.CooldownMs) * time.Millisecond
}

// LibraryTarget returns the sqlite path or postgres DSN for the configured driver.
func (c AppConfig) LibraryTarget() (driver, target string, err error) {
	driver = c.Library.Driver
	if driver == "postgres" || driver == "pgx" {
		if c.Library.DSN == "" {
			return driver, "", errors.New("library.dsn is required for the postgres driver")
		}
		return driver, c.Library.DSN, nil
	}
	if c.Library.Path != "" {
		return driver, c.Library.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return driver, "", err
	}
	return driver, filepath.Join(dir, "library.sqlite"), nil
}
