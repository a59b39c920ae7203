package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Provider names as shown in the UI and accepted by providers.default.
const (
	ProviderAssemblyAI = "AssemblyAI"
	ProviderDeepgram   = "Deepgram"
)

// Config holds all application configuration.
type Config struct {
	// Directory is both the recording output folder and the watch folder.
	Directory string          `yaml:"directory"`
	Owner     string          `yaml:"owner"`
	Audio     AudioConfig     `yaml:"audio"`
	Watch     WatchConfig     `yaml:"watch"`
	Providers ProvidersConfig `yaml:"providers"`
	Hotkey    HotkeyConfig    `yaml:"hotkey"`
	History   HistoryConfig   `yaml:"history"`
	Inject    InjectConfig    `yaml:"inject"`
	LogLevel  string          `yaml:"log_level"`
	LogDir    string          `yaml:"log_dir"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	Backend string `yaml:"backend"` // "malgo" or "pulse"
	// Device picks the input device by index or by part of its name.
	// Empty prefers a USB device, then the first one.
	Device      string `yaml:"device"`
	SampleRate  uint32 `yaml:"sample_rate"`
	Channels    uint32 `yaml:"channels"`
	ChunkFrames int    `yaml:"chunk_frames"`
	MaxBytes    int64  `yaml:"max_bytes"`
}

// WatchConfig holds directory watcher settings.
type WatchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// ProvidersConfig holds the transcription provider settings.
type ProvidersConfig struct {
	Default    string           `yaml:"default"`
	AssemblyAI AssemblyAIConfig `yaml:"assemblyai"`
	Deepgram   DeepgramConfig   `yaml:"deepgram"`
}

// AssemblyAIConfig holds AssemblyAI settings.
type AssemblyAIConfig struct {
	APIKey       string        `yaml:"api_key"`
	Language     string        `yaml:"language"`
	BaseURL      string        `yaml:"base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DeepgramConfig holds Deepgram settings.
type DeepgramConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// HotkeyConfig holds the global record-toggle hotkey.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
}

// HistoryConfig holds transcript history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// InjectConfig controls what happens to finished transcripts outside the UI.
type InjectConfig struct {
	// PasteResults pastes each successful transcript into the focused
	// window, for recording with the global hotkey from another app.
	PasteResults bool `yaml:"paste_results"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-scribe")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory for logs and the history database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "gostt-scribe")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := DefaultDataDir()

	return &Config{
		Directory: filepath.Join(home, "Recordings"),
		Owner:     "user",
		Audio: AudioConfig{
			Backend:     "malgo",
			SampleRate:  44100,
			Channels:    1,
			ChunkFrames: 1024,
			MaxBytes:    80 * 1024 * 1024,
		},
		Watch: WatchConfig{
			Enabled:     true,
			SettleDelay: 2 * time.Second,
		},
		Providers: ProvidersConfig{
			Default: ProviderAssemblyAI,
			AssemblyAI: AssemblyAIConfig{
				Language:     "pt",
				BaseURL:      "https://api.assemblyai.com",
				PollInterval: 3 * time.Second,
			},
			Deepgram: DeepgramConfig{
				Language: "pt-BR",
				Model:    "nova-3",
				BaseURL:  "https://api.deepgram.com",
			},
		},
		Hotkey: HotkeyConfig{
			Enabled: false,
			Keys:    []string{"ctrl", "shift", "r"},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "history.db"),
		},
		LogLevel: "info",
		LogDir:   filepath.Join(dataDir, "logs"),
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.expandPaths()
	cfg.canonicalize()

	return cfg, nil
}

// LoadEnvFiles loads KEY=value files into the process environment,
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Overload(p); err != nil {
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with environment variables.
// Credentials are only ever expected from here.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Directory, "WATCH_DIRECTORY")
	set(&c.Owner, "RECORDING_OWNER")
	set(&c.Providers.Default, "TRANSCRIBE_PROVIDER")
	set(&c.Providers.AssemblyAI.APIKey, "ASSEMBLYAI_API_KEY")
	set(&c.Providers.AssemblyAI.Language, "TRANSCRIBE_LANGUAGE_ASSEMBLYAI")
	set(&c.Providers.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	set(&c.Providers.Deepgram.Language, "TRANSCRIBE_LANGUAGE_DEEPGRAM")
	set(&c.Audio.Backend, "GOSTT_SCRIBE_AUDIO_BACKEND")
	set(&c.Audio.Device, "GOSTT_SCRIBE_AUDIO_DEVICE")
	set(&c.LogLevel, "GOSTT_SCRIBE_LOG_LEVEL")

	c.expandPaths()
	c.canonicalize()
}

// CanonicalProvider returns the display spelling of a provider name,
// matched case-insensitively.
func CanonicalProvider(name string) (string, bool) {
	for _, p := range []string{ProviderAssemblyAI, ProviderDeepgram} {
		if strings.EqualFold(strings.TrimSpace(name), p) {
			return p, true
		}
	}
	return name, false
}

func (c *Config) canonicalize() {
	if p, ok := CanonicalProvider(c.Providers.Default); ok {
		c.Providers.Default = p
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory must not be empty")
	}

	if c.Owner == "" || strings.ContainsAny(c.Owner, `/\`) {
		return fmt.Errorf("owner must be a non-empty file name fragment, got %q", c.Owner)
	}

	switch c.Audio.Backend {
	case "malgo", "pulse":
	default:
		return fmt.Errorf("audio.backend must be \"malgo\" or \"pulse\", got %q", c.Audio.Backend)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Audio.ChunkFrames <= 0 {
		return fmt.Errorf("audio.chunk_frames must be > 0")
	}

	if c.Watch.SettleDelay < 0 {
		return fmt.Errorf("watch.settle_delay must not be negative")
	}

	switch c.Providers.Default {
	case ProviderAssemblyAI, ProviderDeepgram:
	default:
		return fmt.Errorf("providers.default must be %q or %q, got %q",
			ProviderAssemblyAI, ProviderDeepgram, c.Providers.Default)
	}

	if c.Providers.AssemblyAI.PollInterval <= 0 {
		return fmt.Errorf("providers.assemblyai.poll_interval must be > 0")
	}

	if c.Hotkey.Enabled && len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty when hotkey is enabled")
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level to a zerolog level.
// Unknown values fall back to info.
func ParseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (c *Config) expandPaths() {
	c.Directory = expandTilde(c.Directory)
	c.History.Path = expandTilde(c.History.Path)
	c.LogDir = expandTilde(c.LogDir)
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
