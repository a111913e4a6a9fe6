// Package config provides bugscope configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .bugscope/config.toml (relative to the project root)
//   - Global: XDG config dir, e.g. ~/.config/bugscope/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - BUGSCOPE_BASELINE_MODEL, BUGSCOPE_IMPROVED_MODEL (YAML model files).
//   - BUGSCOPE_EMBEDDING_PROVIDER (none, ollama, genai), BUGSCOPE_EMBEDDING_MODEL,
//     BUGSCOPE_EMBEDDING_POLICY (none, append, replace), BUGSCOPE_EMBEDDING_DIMENSIONS,
//     BUGSCOPE_EMBEDDING_TIMEOUT (Go duration string or integer seconds).
//   - BUGSCOPE_OLLAMA_BASE_URL, BUGSCOPE_GENAI_API_KEY (GEMINI_API_KEY is used when unset).
//   - BUGSCOPE_WORKERS (batch fan-out limit).
//   - BUGSCOPE_SERVER_ADDR, BUGSCOPE_READ_TIMEOUT, BUGSCOPE_WRITE_TIMEOUT, BUGSCOPE_SHUTDOWN_TIMEOUT.
//   - BUGSCOPE_CORS_ORIGINS (comma-separated), BUGSCOPE_CORS_ALLOW_CREDENTIALS.
//   - BUGSCOPE_LOG_LEVEL, BUGSCOPE_LOG_FORMAT, BUGSCOPE_LOG_FILE.
//   - BUGSCOPE_HISTORY_ENABLED, BUGSCOPE_HISTORY_DIR, BUGSCOPE_HISTORY_MAX_RECORDS.
//   - BUGSCOPE_ENVIRONMENT (development, testing, production).
//
// Booleans accept 1/true/yes/on and 0/false/no/off.
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"bugscope/cli/internal/erruser"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

// Config holds all bugscope configuration. Empty HistoryDir means
// "use <project>/.bugscope/history".
type Config struct {
	BaselineModel string `toml:"baseline_model"`
	ImprovedModel string `toml:"improved_model"`

	EmbeddingProvider   string        `toml:"embedding_provider"`
	EmbeddingModel      string        `toml:"embedding_model"`
	OllamaBaseURL       string        `toml:"ollama_base_url"`
	GenAIAPIKey         string        `toml:"genai_api_key"`
	EmbeddingPolicy     string        `toml:"embedding_policy"`
	EmbeddingDimensions int           `toml:"embedding_dimensions"` // 0 = provider default
	EmbeddingTimeout    time.Duration `toml:"embedding_timeout"`

	// Workers bounds concurrent detections in batch and scan mode.
	Workers int `toml:"workers"`

	ServerAddr           string        `toml:"server_addr"`
	ReadTimeout          time.Duration `toml:"read_timeout"`
	WriteTimeout         time.Duration `toml:"write_timeout"`
	ShutdownTimeout      time.Duration `toml:"shutdown_timeout"`
	CORSOrigins          []string      `toml:"cors_origins"`
	CORSAllowCredentials bool          `toml:"cors_allow_credentials"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	HistoryEnabled    bool   `toml:"history_enabled"`
	HistoryDir        string `toml:"history_dir"`
	HistoryMaxRecords int    `toml:"history_max_records"`

	// Environment is development, testing or production. Production never logs below info.
	Environment string `toml:"environment"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	BaselineModel     *string
	ImprovedModel     *string
	EmbeddingProvider *string
	EmbeddingModel    *string
	OllamaBaseURL     *string
	EmbeddingPolicy   *string
	Workers           *int
	ServerAddr        *string
	LogLevel          *string
	LogFormat         *string
	HistoryEnabled    *bool
	HistoryDir        *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the project root; if set, repo config is RepoRoot/.bugscope/config.toml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultBaselineModel     = "models/baseline_model.yaml"
	_defaultImprovedModel     = "models/improved_model.yaml"
	_defaultEmbeddingProvider = "none"
	_defaultEmbeddingPolicy   = "none"
	_defaultOllamaBaseURL     = "http://localhost:11434"
	_defaultEmbeddingTimeout  = 30 * time.Second
	_defaultWorkers           = 4
	_defaultServerAddr        = "0.0.0.0:8000"
	_defaultReadTimeout       = 15 * time.Second
	_defaultWriteTimeout      = 60 * time.Second
	_defaultShutdownTimeout   = 10 * time.Second
	_defaultLogLevel          = "info"
	_defaultLogFormat         = "console"
	_defaultHistoryMaxRecords = 1000

	_stateDirName = ".bugscope"
)

var (
	validProviders    = []string{"none", "ollama", "genai"}
	validPolicies     = []string{"none", "append", "replace"}
	validEnvironments = []string{EnvDevelopment, EnvTesting, EnvProduction}
	validLogFormats   = []string{"console", "json"}
	validLogLevels    = []string{"debug", "info", "warn", "warning", "error"}
)

// validateChoice normalizes s (trim, lowercase) and returns it if it is one of allowed.
func validateChoice(key, s string, allowed []string) (string, error) {
	norm := strings.TrimSpace(strings.ToLower(s))
	for _, a := range allowed {
		if norm == a {
			return norm, nil
		}
	}
	return "", erruser.New(fmt.Sprintf("Invalid %s %q; use %s.", key, s, strings.Join(allowed, ", ")), nil)
}

// errIntOverflow is returned when an int64 value does not fit in int (e.g. on 32-bit or huge TOML/env values).
var errIntOverflow = errors.New("value out of range for int")

// int64ToInt converts n to int. It returns an error if n is outside the range of int (e.g. overflow on 32-bit).
func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		BaselineModel:        _defaultBaselineModel,
		ImprovedModel:        _defaultImprovedModel,
		EmbeddingProvider:    _defaultEmbeddingProvider,
		OllamaBaseURL:        _defaultOllamaBaseURL,
		EmbeddingPolicy:      _defaultEmbeddingPolicy,
		EmbeddingTimeout:     _defaultEmbeddingTimeout,
		Workers:              _defaultWorkers,
		ServerAddr:           _defaultServerAddr,
		ReadTimeout:          _defaultReadTimeout,
		WriteTimeout:         _defaultWriteTimeout,
		ShutdownTimeout:      _defaultShutdownTimeout,
		CORSOrigins:          []string{"*"},
		CORSAllowCredentials: true,
		LogLevel:             _defaultLogLevel,
		LogFormat:            _defaultLogFormat,
		HistoryEnabled:       true,
		HistoryMaxRecords:    _defaultHistoryMaxRecords,
		Environment:          EnvDevelopment,
	}
}

// EffectiveHistoryDir returns the directory holding the detection history.
// If HistoryDir is set, it is returned as-is; otherwise repoRoot/.bugscope/history is returned.
func (c Config) EffectiveHistoryDir(repoRoot string) string {
	if c.HistoryDir != "" {
		return c.HistoryDir
	}
	return filepath.Join(repoRoot, _stateDirName, "history")
}

// Development reports whether logging should use zap's development config.
func (c Config) Development() bool {
	return c.Environment == EnvDevelopment
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML or invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "bugscope", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		repoPath := filepath.Join(opts.RepoRoot, _stateDirName, "config.toml")
		if err := mergeFile(&cfg, repoPath); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates enumerated values after all layers are merged and
// applies the production log floor.
func normalize(cfg *Config) error {
	var err error
	if cfg.EmbeddingProvider, err = validateChoice("embedding_provider", cfg.EmbeddingProvider, validProviders); err != nil {
		return err
	}
	if cfg.EmbeddingPolicy, err = validateChoice("embedding_policy", cfg.EmbeddingPolicy, validPolicies); err != nil {
		return err
	}
	if cfg.Environment, err = validateChoice("environment", cfg.Environment, validEnvironments); err != nil {
		return err
	}
	if cfg.LogFormat, err = validateChoice("log_format", cfg.LogFormat, validLogFormats); err != nil {
		return err
	}
	if cfg.LogLevel, err = validateChoice("log_level", cfg.LogLevel, validLogLevels); err != nil {
		return err
	}
	if cfg.Environment == EnvProduction && cfg.LogLevel == "debug" {
		cfg.LogLevel = "info"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return nil
}

// mergeFile reads path and merges into cfg. Only overwrites fields that are
// present and non-zero in the file (so explicit empty/zero in TOML keeps previous value).
// Missing file or unreadable path is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file struct {
		BaselineModel        *string  `toml:"baseline_model"`
		ImprovedModel        *string  `toml:"improved_model"`
		EmbeddingProvider    *string  `toml:"embedding_provider"`
		EmbeddingModel       *string  `toml:"embedding_model"`
		OllamaBaseURL        *string  `toml:"ollama_base_url"`
		GenAIAPIKey          *string  `toml:"genai_api_key"`
		EmbeddingPolicy      *string  `toml:"embedding_policy"`
		EmbeddingDimensions  *int64   `toml:"embedding_dimensions"`
		EmbeddingTimeout     *string  `toml:"embedding_timeout"`
		Workers              *int64   `toml:"workers"`
		ServerAddr           *string  `toml:"server_addr"`
		ReadTimeout          *string  `toml:"read_timeout"`
		WriteTimeout         *string  `toml:"write_timeout"`
		ShutdownTimeout      *string  `toml:"shutdown_timeout"`
		CORSOrigins          []string `toml:"cors_origins"`
		CORSAllowCredentials *bool    `toml:"cors_allow_credentials"`
		LogLevel             *string  `toml:"log_level"`
		LogFormat            *string  `toml:"log_format"`
		LogFile              *string  `toml:"log_file"`
		HistoryEnabled       *bool    `toml:"history_enabled"`
		HistoryDir           *string  `toml:"history_dir"`
		HistoryMaxRecords    *int64   `toml:"history_max_records"`
		Environment          *string  `toml:"environment"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New(fmt.Sprintf("Invalid configuration in %s.", path), err)
	}
	setString(&cfg.BaselineModel, file.BaselineModel)
	setString(&cfg.ImprovedModel, file.ImprovedModel)
	setString(&cfg.EmbeddingProvider, file.EmbeddingProvider)
	setString(&cfg.EmbeddingModel, file.EmbeddingModel)
	setString(&cfg.OllamaBaseURL, file.OllamaBaseURL)
	setString(&cfg.GenAIAPIKey, file.GenAIAPIKey)
	setString(&cfg.EmbeddingPolicy, file.EmbeddingPolicy)
	setString(&cfg.ServerAddr, file.ServerAddr)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.LogFormat, file.LogFormat)
	setString(&cfg.Environment, file.Environment)
	if file.EmbeddingDimensions != nil && *file.EmbeddingDimensions >= 0 {
		v, err := int64ToInt(*file.EmbeddingDimensions)
		if err != nil {
			return erruser.New("Configuration embedding_dimensions value out of range.", err)
		}
		cfg.EmbeddingDimensions = v
	}
	if file.Workers != nil && *file.Workers > 0 {
		v, err := int64ToInt(*file.Workers)
		if err != nil {
			return erruser.New("Configuration workers value out of range.", err)
		}
		cfg.Workers = v
	}
	if file.HistoryMaxRecords != nil && *file.HistoryMaxRecords > 0 {
		v, err := int64ToInt(*file.HistoryMaxRecords)
		if err != nil {
			return erruser.New("Configuration history_max_records value out of range.", err)
		}
		cfg.HistoryMaxRecords = v
	}
	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"embedding_timeout", file.EmbeddingTimeout, &cfg.EmbeddingTimeout},
		{"read_timeout", file.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", file.WriteTimeout, &cfg.WriteTimeout},
		{"shutdown_timeout", file.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.src == nil || *d.src == "" {
			continue
		}
		v, err := parseDuration(*d.src)
		if err != nil {
			return erruser.New(fmt.Sprintf("Configuration %s is invalid.", d.key), err)
		}
		*d.dst = v
	}
	if file.CORSOrigins != nil {
		cfg.CORSOrigins = file.CORSOrigins
	}
	if file.CORSAllowCredentials != nil {
		cfg.CORSAllowCredentials = *file.CORSAllowCredentials
	}
	if file.LogFile != nil {
		cfg.LogFile = *file.LogFile
	}
	if file.HistoryEnabled != nil {
		cfg.HistoryEnabled = *file.HistoryEnabled
	}
	if file.HistoryDir != nil {
		cfg.HistoryDir = *file.HistoryDir
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "30s")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envBaselineModel        = "BUGSCOPE_BASELINE_MODEL"
	envImprovedModel        = "BUGSCOPE_IMPROVED_MODEL"
	envEmbeddingProvider    = "BUGSCOPE_EMBEDDING_PROVIDER"
	envEmbeddingModel       = "BUGSCOPE_EMBEDDING_MODEL"
	envEmbeddingPolicy      = "BUGSCOPE_EMBEDDING_POLICY"
	envEmbeddingDimensions  = "BUGSCOPE_EMBEDDING_DIMENSIONS"
	envEmbeddingTimeout     = "BUGSCOPE_EMBEDDING_TIMEOUT"
	envOllamaBaseURL        = "BUGSCOPE_OLLAMA_BASE_URL"
	envGenAIAPIKey          = "BUGSCOPE_GENAI_API_KEY"
	envGeminiAPIKey         = "GEMINI_API_KEY"
	envWorkers              = "BUGSCOPE_WORKERS"
	envServerAddr           = "BUGSCOPE_SERVER_ADDR"
	envReadTimeout          = "BUGSCOPE_READ_TIMEOUT"
	envWriteTimeout         = "BUGSCOPE_WRITE_TIMEOUT"
	envShutdownTimeout      = "BUGSCOPE_SHUTDOWN_TIMEOUT"
	envCORSOrigins          = "BUGSCOPE_CORS_ORIGINS"
	envCORSAllowCredentials = "BUGSCOPE_CORS_ALLOW_CREDENTIALS"
	envLogLevel             = "BUGSCOPE_LOG_LEVEL"
	envLogFormat            = "BUGSCOPE_LOG_FORMAT"
	envLogFile              = "BUGSCOPE_LOG_FILE"
	envHistoryEnabled       = "BUGSCOPE_HISTORY_ENABLED"
	envHistoryDir           = "BUGSCOPE_HISTORY_DIR"
	envHistoryMaxRecords    = "BUGSCOPE_HISTORY_MAX_RECORDS"
	envEnvironment          = "BUGSCOPE_ENVIRONMENT"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	strs := []struct {
		key string
		dst *string
	}{
		{envBaselineModel, &cfg.BaselineModel},
		{envImprovedModel, &cfg.ImprovedModel},
		{envEmbeddingProvider, &cfg.EmbeddingProvider},
		{envEmbeddingModel, &cfg.EmbeddingModel},
		{envEmbeddingPolicy, &cfg.EmbeddingPolicy},
		{envOllamaBaseURL, &cfg.OllamaBaseURL},
		{envGeminiAPIKey, &cfg.GenAIAPIKey},
		{envGenAIAPIKey, &cfg.GenAIAPIKey},
		{envServerAddr, &cfg.ServerAddr},
		{envLogLevel, &cfg.LogLevel},
		{envLogFormat, &cfg.LogFormat},
		{envLogFile, &cfg.LogFile},
		{envHistoryDir, &cfg.HistoryDir},
		{envEnvironment, &cfg.Environment},
	}
	for _, s := range strs {
		if v, ok := vals[s.key]; ok && v != "" {
			*s.dst = v
		}
	}
	ints := []struct {
		key string
		dst *int
		min int64
	}{
		{envEmbeddingDimensions, &cfg.EmbeddingDimensions, 0},
		{envWorkers, &cfg.Workers, 1},
		{envHistoryMaxRecords, &cfg.HistoryMaxRecords, 1},
	}
	for _, i := range ints {
		v, ok := vals[i.key]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New(i.key+" must be a valid number.", err)
		}
		if n < i.min {
			return erruser.New(fmt.Sprintf("%s must be at least %d.", i.key, i.min), nil)
		}
		*i.dst, err = int64ToInt(n)
		if err != nil {
			return erruser.New(i.key+" value out of range.", err)
		}
	}
	durs := []struct {
		key string
		dst *time.Duration
	}{
		{envEmbeddingTimeout, &cfg.EmbeddingTimeout},
		{envReadTimeout, &cfg.ReadTimeout},
		{envWriteTimeout, &cfg.WriteTimeout},
		{envShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durs {
		v, ok := vals[d.key]
		if !ok || v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return erruser.New(d.key+" must be a valid duration.", err)
		}
		*d.dst = parsed
	}
	bools := []struct {
		key string
		dst *bool
	}{
		{envCORSAllowCredentials, &cfg.CORSAllowCredentials},
		{envHistoryEnabled, &cfg.HistoryEnabled},
	}
	for _, b := range bools {
		v, ok := vals[b.key]
		if !ok || v == "" {
			continue
		}
		parsed, err := parseBool(v)
		if err != nil {
			return erruser.New(b.key+" must be 1/true/yes/on or 0/false/no/off.", err)
		}
		*b.dst = parsed
	}
	if v, ok := vals[envCORSOrigins]; ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	strs := []struct {
		src *string
		dst *string
	}{
		{o.BaselineModel, &cfg.BaselineModel},
		{o.ImprovedModel, &cfg.ImprovedModel},
		{o.EmbeddingProvider, &cfg.EmbeddingProvider},
		{o.EmbeddingModel, &cfg.EmbeddingModel},
		{o.OllamaBaseURL, &cfg.OllamaBaseURL},
		{o.EmbeddingPolicy, &cfg.EmbeddingPolicy},
		{o.ServerAddr, &cfg.ServerAddr},
		{o.LogLevel, &cfg.LogLevel},
		{o.LogFormat, &cfg.LogFormat},
		{o.HistoryDir, &cfg.HistoryDir},
	}
	for _, s := range strs {
		if s.src != nil {
			*s.dst = *s.src
		}
	}
	if o.Workers != nil && *o.Workers > 0 {
		cfg.Workers = *o.Workers
	}
	if o.HistoryEnabled != nil {
		cfg.HistoryEnabled = *o.HistoryEnabled
	}
}
