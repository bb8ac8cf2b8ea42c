/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
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

	"gopkg.in/yaml.v3"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/geom"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal, so older builds tolerate newer files.

// ReaderConfig holds reading behavior settings.
type ReaderConfig struct {
	Direction string `yaml:"direction"` // "auto" | "ltr" | "rtl"
	// OffsetX is the horizontal placement nudge in px; nil keeps the
	// built-in default.
	OffsetX       *int  `yaml:"offset_x,omitempty"`
	CacheMaxBytes int64 `yaml:"cache_max_bytes"`
}

// RenderConfig holds the post-processing defaults applied to every panel.
type RenderConfig struct {
	Contrast  float64 `yaml:"contrast"` // 1 = unchanged
	Invert    bool    `yaml:"invert"`
	Gamma     float64 `yaml:"gamma"` // 0 = none
	Grayscale bool    `yaml:"grayscale"`
	// Dither defaults to on; nil means unset so a file without the key
	// keeps the default.
	Dither *bool `yaml:"dither,omitempty"`
}

// SyncConfig points at the progress sync service.
type SyncConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	Device      string `yaml:"device"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Reader        ReaderConfig  `yaml:"reader"`
	Render        RenderConfig  `yaml:"render"`
	Sync          SyncConfig    `yaml:"sync"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Reader:        ReaderConfig{Direction: "auto", OffsetX: nil, CacheMaxBytes: 0},
		Render:        RenderConfig{Contrast: 1, Invert: false, Gamma: 0, Grayscale: false, Dither: nil},
		Sync:          SyncConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false, Device: ""},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir       = "GPR_CONFIG_DIR"
	EnvSyncURL         = "GPR_SYNC_URL"
	EnvSyncTimeoutMs   = "GPR_SYNC_TIMEOUT_MS"
	EnvSyncTLSInsec    = "GPR_TLS_INSECURE"
	EnvSyncDevice      = "GPR_SYNC_DEVICE"
	EnvTelemetryOptIn  = "GPR_TELEMETRY"
	EnvReaderDirection = "GPR_DIRECTION"
	EnvReaderOffsetX   = "GPR_OFFSET_X"
	EnvCacheMaxBytes   = "GPR_RENDER_CACHE_MAX_BYTES"
	EnvRenderContrast  = "GPR_CONTRAST"
	EnvRenderGamma     = "GPR_GAMMA"
	EnvRenderInvert    = "GPR_INVERT"
	EnvRenderDither    = "GPR_DITHER"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GPR_LOG_LEVEL"
	EnvLogFormat = "GPR_LOG_FORMAT"
	EnvLogSource = "GPR_LOG_SOURCE"
	EnvLogFile   = "GPR_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "GoPanelReader"
	keyringToken   = "sync_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) {
	return keyringGet(service, key)
}
func (k *osKeyring) Set(service, key, value string) error {
	return keyringSet(service, key, value)
}
func (k *osKeyring) Delete(service, key string) error {
	return keyringDelete(service, key)
}

// The following vars are defined in keyring_stub.go or keyring_real.go depending on build tags.
var (
	keyringGet    func(service, key string) (string, error)
	keyringSet    func(service, key, value string) error
	keyringDelete func(service, key string) error
)

// ConfigPath returns the per-user config file path. GPR_CONFIG_DIR overrides
// the directory for tests and portable installs.
func ConfigPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoPanelReader")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoPanelReader")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "gopanelreader")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The sync token comes from the keyring and is returned separately, never kept in the struct.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
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

// ClearToken removes the sync token from the keyring.
func ClearToken() error {
	return tokenStore.Delete(keyringService, keyringToken)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.Reader.Direction) != "" {
		dst.Reader.Direction = strings.ToLower(strings.TrimSpace(src.Reader.Direction))
	}
	if src.Reader.OffsetX != nil {
		dst.Reader.OffsetX = src.Reader.OffsetX
	}
	if src.Reader.CacheMaxBytes != 0 {
		dst.Reader.CacheMaxBytes = src.Reader.CacheMaxBytes
	}
	if src.Render.Contrast != 0 {
		dst.Render.Contrast = src.Render.Contrast
	}
	dst.Render.Invert = src.Render.Invert
	dst.Render.Gamma = src.Render.Gamma
	dst.Render.Grayscale = src.Render.Grayscale
	if src.Render.Dither != nil {
		dst.Render.Dither = src.Render.Dither
	}
	if src.Sync.BaseURL != "" {
		dst.Sync.BaseURL = src.Sync.BaseURL
	}
	if src.Sync.TimeoutMs != 0 {
		dst.Sync.TimeoutMs = src.Sync.TimeoutMs
	}
	dst.Sync.TLSInsecure = src.Sync.TLSInsecure
	if strings.TrimSpace(src.Sync.Device) != "" {
		dst.Sync.Device = strings.TrimSpace(src.Sync.Device)
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

func boolish(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvSyncURL)); v != "" {
		cfg.Sync.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSyncTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSyncTLSInsec)); v != "" {
		cfg.Sync.TLSInsecure = boolish(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSyncDevice)); v != "" {
		cfg.Sync.Device = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = boolish(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvReaderDirection)); v != "" {
		cfg.Reader.Direction = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvReaderOffsetX)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reader.OffsetX = &n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheMaxBytes)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Reader.CacheMaxBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderContrast)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Render.Contrast = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderGamma)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Render.Gamma = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderInvert)); v != "" {
		cfg.Render.Invert = boolish(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderDither)); v != "" {
		d := boolish(v)
		cfg.Render.Dither = &d
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = boolish(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	switch key {
	case "sync.base_url":
		if os.Getenv(EnvSyncURL) != "" {
			return EnvSyncURL, true
		}
	case "sync.timeout_ms":
		if os.Getenv(EnvSyncTimeoutMs) != "" {
			return EnvSyncTimeoutMs, true
		}
	case "sync.tls_insecure":
		if os.Getenv(EnvSyncTLSInsec) != "" {
			return EnvSyncTLSInsec, true
		}
	case "sync.device":
		if os.Getenv(EnvSyncDevice) != "" {
			return EnvSyncDevice, true
		}
	case "general.telemetry_opt_in":
		if os.Getenv(EnvTelemetryOptIn) != "" {
			return EnvTelemetryOptIn, true
		}
	case "reader.direction":
		if os.Getenv(EnvReaderDirection) != "" {
			return EnvReaderDirection, true
		}
	case "reader.offset_x":
		if os.Getenv(EnvReaderOffsetX) != "" {
			return EnvReaderOffsetX, true
		}
	case "reader.cache_max_bytes":
		if os.Getenv(EnvCacheMaxBytes) != "" {
			return EnvCacheMaxBytes, true
		}
	case "render.contrast":
		if os.Getenv(EnvRenderContrast) != "" {
			return EnvRenderContrast, true
		}
	case "render.gamma":
		if os.Getenv(EnvRenderGamma) != "" {
			return EnvRenderGamma, true
		}
	case "logging.level":
		if os.Getenv(EnvLogLevel) != "" {
			return EnvLogLevel, true
		}
	case "logging.format":
		if os.Getenv(EnvLogFormat) != "" {
			return EnvLogFormat, true
		}
	case "logging.source":
		if os.Getenv(EnvLogSource) != "" {
			return EnvLogSource, true
		}
	case "logging.file":
		if os.Getenv(EnvLogFile) != "" {
			return EnvLogFile, true
		}
	}
	return "", false
}

// EffectiveOffsetX returns the configured nudge or the built-in default.
func (r ReaderConfig) EffectiveOffsetX() int {
	if r.OffsetX == nil {
		return geom.OffsetDefault
	}
	return *r.OffsetX
}

// EffectiveDither reports whether ordered dithering is enabled; on by
// default.
func (c RenderConfig) EffectiveDither() bool {
	if c.Dither == nil {
		return true
	}
	return *c.Dither
}

// EffectiveDirection resolves the direction override against the document's
// own reading direction.
func (r ReaderConfig) EffectiveDirection(doc domain.ReadingDirection) domain.ReadingDirection {
	switch strings.ToLower(r.Direction) {
	case "ltr":
		return domain.DirectionLTR
	case "rtl":
		return domain.DirectionRTL
	default:
		return doc
	}
}

// Timeout returns the sync request timeout, falling back to the default for
// unset or nonsense values.
func (s SyncConfig) Timeout() time.Duration {
	ms := s.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Sync.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// EffectiveDevice names this device for progress records.
func (s SyncConfig) EffectiveDevice() string {
	if d := strings.TrimSpace(s.Device); d != "" {
		return d
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "reader"
}
