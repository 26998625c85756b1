// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.aimuz.me/whisperia/audiocapture"
	"go.aimuz.me/whisperia/internal/pipeline"
	"go.aimuz.me/whisperia/stt"
)

const (
	appName        = "whisperia"
	configFileName = "config.json"
	modelsDirName  = "models"
)

// Model types.
const (
	ModelLocal = "local"
	ModelAPI   = "api"
)

// userConfigDir is swapped in tests.
var userConfigDir = os.UserConfigDir

// Config represents the application configuration.
type Config struct {
	Shortcut  string          `json:"shortcut"`
	Language  string          `json:"language"`
	AutoPaste bool            `json:"auto_paste"`
	Model     ModelConfig     `json:"model"`
	API       APIConfig       `json:"api"`
	UI        UIConfig        `json:"ui"`
	Recording RecordingConfig `json:"recording"`
	Whisper   WhisperConfig   `json:"whisper"`
	History   HistoryConfig   `json:"history"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// ModelConfig selects the transcription engine.
type ModelConfig struct {
	ModelType    string `json:"model_type"`  // "local" or "api"
	LocalModel   string `json:"local_model"` // tiny, base, small, medium, large or a file path
	UseQuantized bool   `json:"use_quantized"`
}

// APIConfig configures the remote transcription provider.
type APIConfig struct {
	Provider string `json:"provider"` // openai, groq
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model"`
}

// UIConfig configures the overlay.
type UIConfig struct {
	Theme         string  `json:"theme"` // glass, minimal, dark
	Opacity       float64 `json:"opacity"`
	Position      string  `json:"position"`        // cursor, center
	AutoHideDelay int     `json:"auto_hide_delay"` // ms
}

// RecordingConfig configures audio capture.
type RecordingConfig struct {
	Seconds        int    `json:"seconds"`
	SampleFormat   string `json:"sample_format"` // f32, i16
	UntilCancelled bool   `json:"until_cancelled"`
	TrimSilence    bool   `json:"trim_silence"`
}

// WhisperConfig configures the local whisper.cpp binary.
type WhisperConfig struct {
	Command string `json:"command,omitempty"`
}

// HistoryConfig configures the transcription history.
type HistoryConfig struct {
	Enabled       bool `json:"enabled"`
	KeepAudio     bool `json:"keep_audio"`
	RetentionDays int  `json:"retention_days"`
}

// TelemetryConfig configures metrics and tracing. The zero value disables
// both.
type TelemetryConfig struct {
	MetricsAddr  string `json:"metrics_addr,omitempty"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `json:"otlp_insecure,omitempty"`
	StdoutTraces bool   `json:"stdout_traces,omitempty"`
}

var (
	validModelTypes = []string{ModelLocal, ModelAPI}
	validThemes     = []string{"glass", "minimal", "dark"}
	validPositions  = []string{"cursor", "center"}
)

// providerBaseURLs are OpenAI-compatible transcription endpoints.
var providerBaseURLs = map[string]string{
	"openai": "",
	"groq":   "https://api.groq.com/openai/v1",
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Shortcut:  "Super+Shift+T",
		Language:  "pt",
		AutoPaste: true,
		Model: ModelConfig{
			ModelType:    ModelLocal,
			LocalModel:   "base",
			UseQuantized: true,
		},
		API: APIConfig{
			Provider: "openai",
			Model:    "whisper-1",
		},
		UI: UIConfig{
			Theme:         "glass",
			Opacity:       0.9,
			Position:      "cursor",
			AutoHideDelay: 3000,
		},
		Recording: RecordingConfig{
			Seconds:      5,
			SampleFormat: "f32",
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Unmarshal over defaults so older files pick up new sections.
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks enumerated fields and ranges.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Shortcut) == "" {
		errs = append(errs, errors.New("shortcut required"))
	}
	if !slices.Contains(validModelTypes, c.Model.ModelType) {
		errs = append(errs, fmt.Errorf("invalid model type: %q", c.Model.ModelType))
	}
	if c.Model.ModelType == ModelLocal && c.Model.LocalModel == "" {
		errs = append(errs, errors.New("local model required"))
	}
	if c.Model.ModelType == ModelAPI && c.API.APIKey == "" {
		errs = append(errs, errors.New("api key required"))
	}
	if _, ok := providerBaseURLs[c.API.Provider]; !ok && c.API.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base url required for provider %q", c.API.Provider))
	}
	if !slices.Contains(validThemes, c.UI.Theme) {
		errs = append(errs, fmt.Errorf("invalid theme: %q", c.UI.Theme))
	}
	if !slices.Contains(validPositions, c.UI.Position) {
		errs = append(errs, fmt.Errorf("invalid position: %q", c.UI.Position))
	}
	if c.UI.Opacity < 0 || c.UI.Opacity > 1 {
		errs = append(errs, fmt.Errorf("opacity out of range: %v", c.UI.Opacity))
	}
	if c.UI.AutoHideDelay < 0 {
		errs = append(errs, errors.New("auto hide delay must not be negative"))
	}
	if c.Recording.Seconds < 1 || c.Recording.Seconds > 300 {
		errs = append(errs, fmt.Errorf("recording seconds out of range: %d", c.Recording.Seconds))
	}
	if f := audiocapture.ParseFormat(c.Recording.SampleFormat); f != audiocapture.FormatFloat32 && f != audiocapture.FormatInt16 {
		errs = append(errs, fmt.Errorf("%w: %s", audiocapture.ErrUnsupportedFormat, c.Recording.SampleFormat))
	}
	return errors.Join(errs...)
}

// RecordDuration returns the fixed capture length.
func (c *Config) RecordDuration() time.Duration {
	return time.Duration(c.Recording.Seconds) * time.Second
}

// HistoryRetention returns how long history entries are kept. Zero keeps
// them forever.
func (c *Config) HistoryRetention() time.Duration {
	if c.History.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// HistoryDir returns the badger directory for run history.
func HistoryDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// AutoHideDelay returns how long the overlay keeps a result visible.
func (c *Config) AutoHideDelay() time.Duration {
	return time.Duration(c.UI.AutoHideDelay) * time.Millisecond
}

// APIBaseURL returns the configured base URL or the provider default.
func (c *Config) APIBaseURL() string {
	if c.API.BaseURL != "" {
		return c.API.BaseURL
	}
	return providerBaseURLs[c.API.Provider]
}

// ModelSelector returns the model name used to build the file name.
// Quantized models use whisper.cpp's q5_1 suffix.
func (c *Config) ModelSelector() string {
	m := c.Model.LocalModel
	if c.Model.UseQuantized && !strings.ContainsAny(m, `/\`) && !strings.HasSuffix(m, ".bin") && !strings.Contains(m, "-q") {
		return m + "-q5_1"
	}
	return m
}

// Dir returns the application config directory.
func Dir() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// ModelsDir returns the directory holding ggml model files.
func ModelsDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, modelsDirName), nil
}

// Path returns the config file location.
func Path() (string, error) {
	return configPath()
}

func configPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared access
// ─────────────────────────────────────────────────────────────────────────────

// Source guards a Config shared between the pipeline worker and the
// settings UI. It implements pipeline.Config.
type Source struct {
	mu  sync.RWMutex
	cfg Config

	// modelPath overrides model resolution (CLI --model-path).
	modelPath string
}

// NewSource wraps cfg. The caller must not modify cfg afterwards.
func NewSource(cfg *Config) *Source {
	return &Source{cfg: *cfg}
}

// Get returns a copy of the current configuration.
func (s *Source) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update validates, persists and publishes next.
func (s *Source) Update(next Config) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := next.Save(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()
	return nil
}

// OverrideModelPath pins the model file regardless of settings.
func (s *Source) OverrideModelPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelPath = path
}

// Settings implements pipeline.Config.
func (s *Source) Settings() (pipeline.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return pipeline.Settings{
		Language:      s.cfg.Language,
		ModelSelector: s.cfg.ModelSelector(),
		Shortcut:      s.cfg.Shortcut,
	}, nil
}

// ModelPath implements pipeline.Config. Remote models need no file and
// resolve to "".
func (s *Source) ModelPath(selector string) (string, error) {
	s.mu.RLock()
	override, modelType := s.modelPath, s.cfg.Model.ModelType
	s.mu.RUnlock()

	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%w: %s", stt.ErrModelNotFound, override)
		}
		return override, nil
	}
	if modelType == ModelAPI {
		return "", nil
	}

	dir, err := ModelsDir()
	if err != nil {
		return "", err
	}
	path, err := stt.ResolveModelPath(dir, selector)
	if err != nil && strings.HasSuffix(selector, "-q5_1") {
		// Fall back to the full-precision file.
		return stt.ResolveModelPath(dir, strings.TrimSuffix(selector, "-q5_1"))
	}
	return path, err
}
