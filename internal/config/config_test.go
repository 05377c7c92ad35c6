/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memTokens) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memTokens) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config path into a temp dir and stubs the keyring.
func isolate(t *testing.T) (string, memTokens) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	mem := memTokens{}
	old := tokenStore
	tokenStore = mem
	t.Cleanup(func() { tokenStore = old })
	return path, mem
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected no token, got %q", tok)
	}
	if cfg.Follow.BandRatio != 0.35 || cfg.Follow.Cooldown() != 600*time.Millisecond || cfg.Library.Driver != "sqlite" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443/v1/tts")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443/v1/tts"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("backend.base_url"); !ok || name != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("backend.model"); ok {
		t.Fatalf("model is not overridden")
	}
}

func TestEnvOverridesRejectBadBandRatio(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBandRatio, "1.5")
	t.Setenv(EnvPollIntervalMs, "250")
	cfg, _, _ := Load()
	if cfg.Follow.BandRatio != 0.35 {
		t.Fatalf("band ratio out of range should be ignored, got %v", cfg.Follow.BandRatio)
	}
	if cfg.Backend.PollInterval() != 250*time.Millisecond {
		t.Fatalf("PollInterval = %v", cfg.Backend.PollInterval())
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/readalong.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/readalong.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsDefaultsForZeroFields(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	src.Library.Driver = " Postgres "
	src.Library.DSN = "postgres://x"
	mergeInto(&dst, &src)
	if dst.Follow != Defaults().Follow || dst.Backend.TimeoutMs != 15000 {
		t.Fatalf("zero fields overwrote defaults: %#v", dst)
	}
	if dst.Library.Driver != "postgres" || dst.Library.DSN != "postgres://x" {
		t.Fatalf("library not merged: %#v", dst.Library)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/readalong.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/readalong.log" {
		t.Fatalf("env overrides not applied: %#v", cfg.Logging)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path, mem := isolate(t)
	cfg := Defaults()
	cfg.Backend.Model = "voices-2"
	cfg.Follow.CooldownMs = 900
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.Model != "voices-2" || got.Follow.CooldownMs != 900 || tok != "s3cret" {
		t.Fatalf("round trip mismatch: %#v token=%q", got, tok)
	}
	if err := ClearToken(); err != nil || len(mem) != 0 {
		t.Fatalf("ClearToken: %v, remaining %v", err, mem)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken should be a no-op: %v", err)
	}
}

func TestLoadReportsMalformedFile(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("backend: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvModel, "env-model")
	cfg, _, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Backend.Model != "env-model" {
		t.Fatalf("env overrides should still apply, got %q", cfg.Backend.Model)
	}
}

func TestLibraryTarget(t *testing.T) {
	cfg := Defaults()
	cfg.Library.Path = "/data/lib.sqlite"
	if d, target, err := cfg.LibraryTarget(); err != nil || d != "sqlite" || target != "/data/lib.sqlite" {
		t.Fatalf("sqlite target = %q %q %v", d, target, err)
	}
	cfg.Library.Driver = "postgres"
	if _, _, err := cfg.LibraryTarget(); err == nil {
		t.Fatalf("expected error without dsn")
	}
	cfg.Library.DSN = "postgres://u@h/db"
	if _, target, err := cfg.LibraryTarget(); err != nil || target != "postgres://u@h/db" {
		t.Fatalf("postgres target = %q %v", target, err)
	}
}
