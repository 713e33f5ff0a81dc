// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete parley configuration.
type Config struct {
	Completion CompletionConfig `toml:"completion" json:"completion"`
	OpenRouter OpenRouterConfig `toml:"openrouter" json:"openrouter"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Dictation  DictationConfig  `toml:"dictation" json:"dictation"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Logging    LoggingConfig    `toml:"logging" json:"logging"`
	Telemetry  TelemetryConfig  `toml:"telemetry" json:"telemetry"`
	History    HistoryConfig    `toml:"history" json:"history"`
}

// CompletionConfig selects where replies come from.
type CompletionConfig struct {
	// Mode is one of auto, direct, proxy, generate, stub.
	Mode string `toml:"mode" json:"mode"`

	// Endpoint is the parley server base URL used by proxy and generate.
	Endpoint string `toml:"endpoint" json:"endpoint"`

	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// StubDelayMs is the in-process stub's simulated latency.
	StubDelayMs int `toml:"stub_delay_ms" json:"stub_delay_ms"`
}

// OpenRouterConfig configures the upstream chat provider.
type OpenRouterConfig struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	Model   string `toml:"model" json:"model"`
	BaseURL string `toml:"base_url" json:"base_url"`
	Referer string `toml:"referer" json:"referer"`
}

// ServerConfig configures `parley serve`.
type ServerConfig struct {
	Addr         string  `toml:"addr" json:"addr"`
	Production   bool    `toml:"production" json:"production"`
	StubDelayMs  int     `toml:"stub_delay_ms" json:"stub_delay_ms"`
	RateLimit    float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst    int     `toml:"rate_burst" json:"rate_burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes" json:"max_body_bytes"`
}

// DictationConfig configures microphone capture and speech recognition.
type DictationConfig struct {
	Enabled             bool   `toml:"enabled" json:"enabled"`
	APIKey              string `toml:"api_key" json:"api_key"`
	Endpoint            string `toml:"endpoint" json:"endpoint"`
	Model               string `toml:"model" json:"model"`
	Continuous          bool   `toml:"continuous" json:"continuous"`
	SampleRate          int    `toml:"sample_rate" json:"sample_rate"`
	NoSpeechTimeoutSecs int    `toml:"no_speech_timeout_secs" json:"no_speech_timeout_secs"`
}

// UIConfig configures the terminal interface.
type UIConfig struct {
	// Language is a supported language code. Empty means detect from $LANG.
	Language string `toml:"language" json:"language"`
	Theme    string `toml:"theme" json:"theme"`
	PauseMs  int    `toml:"pause_ms" json:"pause_ms"`
	Markdown bool   `toml:"markdown" json:"markdown"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Dir     string `toml:"dir" json:"dir"`
}

// HistoryConfig configures the local session archive.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Completion: CompletionConfig{
			Mode:        "auto",
			Endpoint:    "http://127.0.0.1:8787",
			TimeoutSecs: 90,
			StubDelayMs: 1400,
		},
		OpenRouter: OpenRouterConfig{
			Model:   "openai/gpt-3.5-turbo",
			BaseURL: "https://openrouter.ai/api/v1",
			Referer: "http://localhost:3000",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8787",
			StubDelayMs:  1400,
			RateLimit:    5,
			RateBurst:    20,
			MaxBodyBytes: 1 << 20,
		},
		Dictation: DictationConfig{
			Enabled:             true,
			Endpoint:            "wss://api.deepgram.com/v1/listen",
			Model:               "nova-2",
			Continuous:          true,
			SampleRate:          16000,
			NoSpeechTimeoutSecs: 8,
		},
		UI: UIConfig{
			Theme:    "dark",
			PauseMs:  600,
			Markdown: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// fillDefaults fills zero numeric and string fields that have no sensible
// zero value. Booleans are left as decoded.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Completion.Mode == "" {
		cfg.Completion.Mode = d.Completion.Mode
	}
	if cfg.Completion.Endpoint == "" {
		cfg.Completion.Endpoint = d.Completion.Endpoint
	}
	if cfg.Completion.TimeoutSecs == 0 {
		cfg.Completion.TimeoutSecs = d.Completion.TimeoutSecs
	}

	if cfg.OpenRouter.Model == "" {
		cfg.OpenRouter.Model = d.OpenRouter.Model
	}
	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = d.OpenRouter.BaseURL
	}
	if cfg.OpenRouter.Referer == "" {
		cfg.OpenRouter.Referer = d.OpenRouter.Referer
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = d.Server.RateBurst
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}

	if cfg.Dictation.Endpoint == "" {
		cfg.Dictation.Endpoint = d.Dictation.Endpoint
	}
	if cfg.Dictation.Model == "" {
		cfg.Dictation.Model = d.Dictation.Model
	}
	if cfg.Dictation.SampleRate == 0 {
		cfg.Dictation.SampleRate = d.Dictation.SampleRate
	}
	if cfg.Dictation.NoSpeechTimeoutSecs == 0 {
		cfg.Dictation.NoSpeechTimeoutSecs = d.Dictation.NoSpeechTimeoutSecs
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}
	if cfg.UI.PauseMs == 0 {
		cfg.UI.PauseMs = d.UI.PauseMs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
}

// =============================================================================
// DURATION ACCESSORS
// =============================================================================

// Timeout returns the completion request timeout.
func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// StubDelay returns the in-process stub delay.
func (c CompletionConfig) StubDelay() time.Duration {
	return time.Duration(c.StubDelayMs) * time.Millisecond
}

// StubDelay returns the /api/generate delay.
func (c ServerConfig) StubDelay() time.Duration {
	return time.Duration(c.StubDelayMs) * time.Millisecond
}

// NoSpeechTimeout returns how long a dictation session may go without a
// result before it ends with no-speech.
func (c DictationConfig) NoSpeechTimeout() time.Duration {
	return time.Duration(c.NoSpeechTimeoutSecs) * time.Second
}

// Pause returns the typing pause interval.
func (c UIConfig) Pause() time.Duration {
	return time.Duration(c.PauseMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the parley state directory, ~/.parley.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// inDir joins name onto the state directory, or returns "" if the home
// directory is unknown.
func inDir(elem ...string) string {
	dir, err := Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}

// LogFile returns the resolved log file path.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return inDir("logs", "parley.log")
}

// TelemetryDir returns the resolved telemetry output directory.
func (c *Config) TelemetryDir() string {
	if c.Telemetry.Dir != "" {
		return c.Telemetry.Dir
	}
	return inDir("telemetry")
}

// HistoryPath returns the resolved history database path.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return inDir("history.db")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if it exists, otherwise starts from
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads and validates the TOML file at path.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults without applying
// environment overrides.
func Parse(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	fillDefaults(cfg)
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# parley configuration file\n")
	buf.WriteString("# Secrets may also come from OPENROUTER_API_KEY and DEEPGRAM_API_KEY.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validModes     = []string{"auto", "direct", "proxy", "generate", "stub"}
	validLevels    = []string{"debug", "info", "warn", "error"}
	validThemes    = []string{"dark", "light", "auto"}
	validLanguages = []string{"en", "es", "fr", "de", "ar", "zh", "hi", "ru", "pt", "ja"}
)

// Validate returns ValidateErrors listing every invalid field, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !contains(validModes, c.Completion.Mode) {
		add("completion.mode", "must be one of %s", strings.Join(validModes, ", "))
	}
	if err := validateURL(c.Completion.Endpoint, "http", "https"); err != nil {
		add("completion.endpoint", "%v", err)
	}
	if c.Completion.TimeoutSecs < 1 || c.Completion.TimeoutSecs > 600 {
		add("completion.timeout_secs", "must be between 1 and 600")
	}
	if c.Completion.StubDelayMs < 0 {
		add("completion.stub_delay_ms", "must not be negative")
	}

	if err := validateURL(c.OpenRouter.BaseURL, "http", "https"); err != nil {
		add("openrouter.base_url", "%v", err)
	}
	if c.OpenRouter.Model == "" {
		add("openrouter.model", "must not be empty")
	}

	if _, _, err := splitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "%v", err)
	}
	if c.Server.StubDelayMs < 0 {
		add("server.stub_delay_ms", "must not be negative")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1")
	}
	if c.Server.MaxBodyBytes < 1 {
		add("server.max_body_bytes", "must be positive")
	}

	if err := validateURL(c.Dictation.Endpoint, "ws", "wss"); err != nil {
		add("dictation.endpoint", "%v", err)
	}
	if c.Dictation.SampleRate < 8000 || c.Dictation.SampleRate > 48000 {
		add("dictation.sample_rate", "must be between 8000 and 48000")
	}
	if c.Dictation.NoSpeechTimeoutSecs < 1 {
		add("dictation.no_speech_timeout_secs", "must be at least 1")
	}

	if c.UI.Language != "" && !contains(validLanguages, c.UI.Language) {
		add("ui.language", "unsupported language %q", c.UI.Language)
	}
	if !contains(validThemes, c.UI.Theme) {
		add("ui.theme", "must be one of %s", strings.Join(validThemes, ", "))
	}
	if c.UI.PauseMs < 50 || c.UI.PauseMs > 10000 {
		add("ui.pause_ms", "must be between 50 and 10000")
	}

	if !contains(validLevels, strings.ToLower(c.Logging.Level)) {
		add("logging.level", "must be one of %s", strings.Join(validLevels, ", "))
	}
	if c.Logging.MaxSizeMB < 1 {
		add("logging.max_size_mb", "must be at least 1")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !contains(schemes, u.Scheme) {
		return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("address %q has no port", addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("address %q has an invalid port", addr)
	}
	return addr[:i], port, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - OPENROUTER_API_KEY: openrouter.api_key
//   - DEEPGRAM_API_KEY: dictation.api_key
//   - PARLEY_ENV: "production" sets server.production
//   - PARLEY_ADDR: server.addr
//   - PARLEY_LANG: ui.language
//   - PARLEY_MODE: completion.mode
//   - PARLEY_ENDPOINT: completion.endpoint
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.OpenRouter.APIKey = key
	}
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		c.Dictation.APIKey = key
	}
	if env := os.Getenv("PARLEY_ENV"); env != "" {
		c.Server.Production = strings.EqualFold(env, "production")
	}
	if addr := os.Getenv("PARLEY_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if lang := os.Getenv("PARLEY_LANG"); lang != "" {
		c.UI.Language = lang
	}
	if mode := os.Getenv("PARLEY_MODE"); mode != "" {
		c.Completion.Mode = mode
	}
	if endpoint := os.Getenv("PARLEY_ENDPOINT"); endpoint != "" {
		c.Completion.Endpoint = endpoint
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dotted TOML key, e.g. "ui.language".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted TOML key. String values are converted to
// the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks struct fields by their toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()

	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets field from value with string conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.OpenRouter.APIKey != "" {
		safe.OpenRouter.APIKey = "[REDACTED]"
	}
	if safe.Dictation.APIKey != "" {
		safe.Dictation.APIKey = "[REDACTED]"
	}
	return safe
}

// String returns the redacted config as JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
