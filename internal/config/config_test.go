package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Directory == "" {
		t.Error("Directory should not be empty")
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Audio.SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want 1", cfg.Audio.Channels)
	}
	if cfg.Audio.ChunkFrames != 1024 {
		t.Errorf("Audio.ChunkFrames = %d, want 1024", cfg.Audio.ChunkFrames)
	}
	if cfg.Audio.MaxBytes != 80*1024*1024 {
		t.Errorf("Audio.MaxBytes = %d, want 80 MiB", cfg.Audio.MaxBytes)
	}
	if cfg.Watch.SettleDelay != 2*time.Second {
		t.Errorf("Watch.SettleDelay = %v, want 2s", cfg.Watch.SettleDelay)
	}
	if cfg.Providers.AssemblyAI.Language != "pt" {
		t.Errorf("AssemblyAI.Language = %q, want %q", cfg.Providers.AssemblyAI.Language, "pt")
	}
	if cfg.Providers.Deepgram.Language != "pt-BR" {
		t.Errorf("Deepgram.Language = %q, want %q", cfg.Providers.Deepgram.Language, "pt-BR")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
directory: /tmp/recordings
owner: maria
audio:
  backend: pulse
  sample_rate: 48000
watch:
  settle_delay: 500ms
providers:
  default: Deepgram
  deepgram:
    language: en-US
    model: nova-2
  assemblyai:
    poll_interval: 1s
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Directory != "/tmp/recordings" {
		t.Errorf("Directory = %q, want %q", cfg.Directory, "/tmp/recordings")
	}
	if cfg.Owner != "maria" {
		t.Errorf("Owner = %q, want %q", cfg.Owner, "maria")
	}
	if cfg.Audio.Backend != "pulse" {
		t.Errorf("Audio.Backend = %q, want %q", cfg.Audio.Backend, "pulse")
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("Audio.SampleRate = %d, want 48000", cfg.Audio.SampleRate)
	}
	// untouched fields keep defaults
	if cfg.Audio.ChunkFrames != 1024 {
		t.Errorf("Audio.ChunkFrames = %d, want 1024", cfg.Audio.ChunkFrames)
	}
	if cfg.Watch.SettleDelay != 500*time.Millisecond {
		t.Errorf("Watch.SettleDelay = %v, want 500ms", cfg.Watch.SettleDelay)
	}
	if cfg.Providers.Default != ProviderDeepgram {
		t.Errorf("Providers.Default = %q, want %q", cfg.Providers.Default, ProviderDeepgram)
	}
	if cfg.Providers.Deepgram.Language != "en-US" {
		t.Errorf("Deepgram.Language = %q, want %q", cfg.Providers.Deepgram.Language, "en-US")
	}
	if cfg.Providers.AssemblyAI.PollInterval != time.Second {
		t.Errorf("AssemblyAI.PollInterval = %v, want 1s", cfg.Providers.AssemblyAI.PollInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
directory: ~/audio
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := filepath.Join(home, "audio")
	if cfg.Directory != expected {
		t.Errorf("Directory = %q, want %q", cfg.Directory, expected)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WATCH_DIRECTORY", "/srv/audio")
	t.Setenv("ASSEMBLYAI_API_KEY", "aai-key")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("TRANSCRIBE_LANGUAGE_DEEPGRAM", "es")
	t.Setenv("RECORDING_OWNER", "fernando")
	t.Setenv("GOSTT_SCRIBE_LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Directory != "/srv/audio" {
		t.Errorf("Directory = %q, want %q", cfg.Directory, "/srv/audio")
	}
	if cfg.Providers.AssemblyAI.APIKey != "aai-key" {
		t.Errorf("AssemblyAI.APIKey = %q, want %q", cfg.Providers.AssemblyAI.APIKey, "aai-key")
	}
	if cfg.Providers.Deepgram.APIKey != "dg-key" {
		t.Errorf("Deepgram.APIKey = %q, want %q", cfg.Providers.Deepgram.APIKey, "dg-key")
	}
	if cfg.Providers.Deepgram.Language != "es" {
		t.Errorf("Deepgram.Language = %q, want %q", cfg.Providers.Deepgram.Language, "es")
	}
	if cfg.Providers.AssemblyAI.Language != "pt" {
		t.Errorf("AssemblyAI.Language = %q, want default %q", cfg.Providers.AssemblyAI.Language, "pt")
	}
	if cfg.Owner != "fernando" {
		t.Errorf("Owner = %q, want %q", cfg.Owner, "fernando")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}

func TestApplyEnvProviderIsCaseInsensitive(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"deepgram", ProviderDeepgram},
		{"DEEPGRAM", ProviderDeepgram},
		{" assemblyai ", ProviderAssemblyAI},
		{"AssemblyAI", ProviderAssemblyAI},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("TRANSCRIBE_PROVIDER", tt.env)
			cfg := Default()
			cfg.ApplyEnv()
			if cfg.Providers.Default != tt.want {
				t.Errorf("Providers.Default = %q, want %q", cfg.Providers.Default, tt.want)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestApplyEnvUnknownProviderStillRejected(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "whisper")
	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an unknown provider")
	}
}

func TestApplyEnvAudioDevice(t *testing.T) {
	t.Setenv("GOSTT_SCRIBE_AUDIO_DEVICE", "Yeti")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Audio.Device != "Yeti" {
		t.Errorf("Audio.Device = %q, want %q", cfg.Audio.Device, "Yeti")
	}
}

func TestLoadCanonicalizesProviderAndInject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "providers:\n  default: deepgram\ninject:\n  paste_results: true\naudio:\n  device: \"2\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers.Default != ProviderDeepgram {
		t.Errorf("Providers.Default = %q, want %q", cfg.Providers.Default, ProviderDeepgram)
	}
	if !cfg.Inject.PasteResults {
		t.Error("Inject.PasteResults = false, want true")
	}
	if cfg.Audio.Device != "2" {
		t.Errorf("Audio.Device = %q, want %q", cfg.Audio.Device, "2")
	}
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	t.Setenv("WATCH_DIRECTORY", "   ")

	cfg := Default()
	want := cfg.Directory
	cfg.ApplyEnv()

	if cfg.Directory != want {
		t.Errorf("Directory = %q, want unchanged %q", cfg.Directory, want)
	}
}

func TestLoadEnvFilesOverrides(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "from-shell")

	envPath := filepath.Join(t.TempDir(), ".env")
	content := "DEEPGRAM_API_KEY=from-file\nASSEMBLYAI_API_KEY=\"quoted key\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("ASSEMBLYAI_API_KEY") })

	if err := LoadEnvFiles("", filepath.Join(t.TempDir(), "missing.env"), envPath); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}

	if got := os.Getenv("DEEPGRAM_API_KEY"); got != "from-file" {
		t.Errorf("DEEPGRAM_API_KEY = %q, want %q", got, "from-file")
	}
	if got := os.Getenv("ASSEMBLYAI_API_KEY"); got != "quoted key" {
		t.Errorf("ASSEMBLYAI_API_KEY = %q, want %q", got, "quoted key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty directory",
			modify:  func(c *Config) { c.Directory = "" },
			wantErr: true,
		},
		{
			name:    "owner with separator",
			modify:  func(c *Config) { c.Owner = "a/b" },
			wantErr: true,
		},
		{
			name:    "invalid audio backend",
			modify:  func(c *Config) { c.Audio.Backend = "alsa" },
			wantErr: true,
		},
		{
			name:    "zero sample rate",
			modify:  func(c *Config) { c.Audio.SampleRate = 0 },
			wantErr: true,
		},
		{
			name:    "zero channels",
			modify:  func(c *Config) { c.Audio.Channels = 0 },
			wantErr: true,
		},
		{
			name:    "zero chunk frames",
			modify:  func(c *Config) { c.Audio.ChunkFrames = 0 },
			wantErr: true,
		},
		{
			name:    "negative settle delay",
			modify:  func(c *Config) { c.Watch.SettleDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown default provider",
			modify:  func(c *Config) { c.Providers.Default = "Whisper" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			modify:  func(c *Config) { c.Providers.AssemblyAI.PollInterval = 0 },
			wantErr: true,
		},
		{
			name: "hotkey enabled without keys",
			modify: func(c *Config) {
				c.Hotkey.Enabled = true
				c.Hotkey.Keys = nil
			},
			wantErr: true,
		},
		{
			name:    "history enabled without path",
			modify:  func(c *Config) { c.History.Path = "" },
			wantErr: true,
		},
		{
			name: "history disabled without path",
			modify: func(c *Config) {
				c.History.Enabled = false
				c.History.Path = ""
			},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel}, // defaults to info
		{"", zerolog.InfoLevel},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
