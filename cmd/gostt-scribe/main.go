package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/audio"
	"github.com/chaz8081/gostt-scribe/internal/config"
	"github.com/chaz8081/gostt-scribe/internal/history"
	"github.com/chaz8081/gostt-scribe/internal/hotkey"
	"github.com/chaz8081/gostt-scribe/internal/inject"
	"github.com/chaz8081/gostt-scribe/internal/logging"
	"github.com/chaz8081/gostt-scribe/internal/session"
	"github.com/chaz8081/gostt-scribe/internal/transcribe"
	"github.com/chaz8081/gostt-scribe/internal/tui"
	"github.com/chaz8081/gostt-scribe/internal/watch"
)

func main() {
	// Before the log files are open, report to stderr.
	boot := logging.New(os.Stderr, zerolog.InfoLevel)

	if err := config.LoadEnvFiles(".env", os.Getenv("GOSTT_SCRIBE_ENV")); err != nil {
		boot.Fatal().Err(err).Msg("env")
	}

	cfg, err := loadConfig(os.Getenv("GOSTT_SCRIBE_CONFIG"), boot)
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("config validation")
	}

	logs, err := logging.Open(cfg.LogDir, config.ParseLogLevel(cfg.LogLevel))
	if err != nil {
		boot.Fatal().Err(err).Msg("opening logs")
	}
	defer logs.Close()
	log := logs.Logger

	if err := run(cfg, logs); err != nil {
		log.Error().Err(err).Msg("exiting with error")
		fmt.Fprintln(os.Stderr, "gostt-scribe:", err)
		logs.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logs *logging.Logs) error {
	log := logs.Logger
	log.Info().
		Str("directory", cfg.Directory).
		Str("provider", cfg.Providers.Default).
		Str("audio_backend", cfg.Audio.Backend).
		Msg("starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Audio capture
	actx, err := audio.NewContext(cfg.Audio.Backend)
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	devices, device, hasDevice := pickDevice(actx, cfg.Audio.Device, log)
	recorder := audio.NewRecorder(actx, audio.Options{
		Dir:         cfg.Directory,
		Owner:       cfg.Owner,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		ChunkFrames: cfg.Audio.ChunkFrames,
		MaxBytes:    cfg.Audio.MaxBytes,
	}, log)
	defer recorder.Close()

	// Providers
	registry := transcribe.NewRegistry(&cfg.Providers, log)
	for _, name := range registry.Names() {
		if !registry.Configured(name) {
			log.Warn().Str("provider", name).Msg("no API key configured")
		}
	}

	opts := []session.Option{
		session.WithContext(ctx),
		session.WithProvider(cfg.Providers.Default),
	}
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path, log)
		if err != nil {
			log.Warn().Err(err).Msg("transcript history disabled")
		} else {
			defer store.Close()
			opts = append(opts, session.WithHistory(store))
		}
	}
	orch := session.New(registry, log, opts...)

	// Directory watcher
	var watchErr error
	var watcher *watch.Watcher
	if cfg.Watch.Enabled {
		w := watch.New(cfg.Directory, cfg.Watch.SettleDelay, log)
		err := w.Start(ctx, func(ev watch.Event) {
			if _, err := orch.Submit(ev.Path, session.SourceWatch); err != nil {
				log.Warn().Err(err).Str("file", ev.Path).Msg("watched file rejected")
			}
		})
		var setupErr *watch.SetupError
		switch {
		case errors.As(err, &setupErr):
			watchErr = setupErr
			log.Error().Err(err).Msg("directory watcher not started")
		case err != nil:
			return err
		default:
			watcher = w
		}
	}

	// Global hotkey
	var hotkeyEvents <-chan hotkey.Event
	var listener *hotkey.Listener
	if cfg.Hotkey.Enabled {
		listener = hotkey.NewListener(cfg.Hotkey.Keys)
		go listener.Start()
		hotkeyEvents = listener.Events()
		log.Info().Str("keys", strings.Join(cfg.Hotkey.Keys, "+")).Msg("hotkey listener ready")
	}

	program := tui.NewProgram(tui.Deps{
		Recorder:         recorder,
		Orchestrator:     orch,
		Clipboard:        inject.NewInjector(),
		Transcript:       &session.TranscriptLog{},
		Devices:          devices,
		Device:           device,
		HasDevice:        hasDevice,
		WatchDir:         cfg.Directory,
		WatchErr:         watchErr,
		SubmitRecordings: watcher == nil,
		PasteResults:     cfg.Inject.PasteResults,
		Hotkey:           hotkeyEvents,
		OnResult: func(r session.Result) {
			logs.Transcript(filepath.Base(r.File), r.Provider, r.Text())
		},
		Log: log,
	})

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err = program.Run()
	cancel()
	log.Info().Msg("shutting down")
	if watcher != nil {
		watcher.Wait()
	}

	if listener != nil {
		listener.Stop()
		// Exit directly to avoid gohook's C cleanup crash.
		// The OS reclaims the event hook on process exit.
		recorder.Close()
		logs.Close()
		os.Exit(0)
	}
	return err
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string, log zerolog.Logger) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Debug().Str("path", defaultPath).Msg("config loaded")
		return cfg, nil
	}

	return config.Default(), nil
}

// pickDevice lists the capture devices and selects the configured one,
// falling back to the preferred default. Recording is disabled when none
// is available; transcription of existing files still works.
func pickDevice(actx audio.Context, want string, log zerolog.Logger) ([]audio.DeviceInfo, audio.DeviceInfo, bool) {
	devices, err := actx.Devices()
	if err != nil {
		log.Error().Err(err).Msg("listing input devices")
		return nil, audio.DeviceInfo{}, false
	}
	for _, d := range devices {
		log.Debug().Int("index", d.Index).Str("name", d.Name).Msg("input device")
	}

	device, err := audio.FindDevice(devices, want)
	if err != nil && want != "" {
		log.Warn().Err(err).Msg("configured input device not found, using default")
		device, err = audio.FindDevice(devices, "")
	}
	if err != nil {
		log.Warn().Msg("no input devices found")
		return devices, audio.DeviceInfo{}, false
	}
	log.Info().Int("index", device.Index).Str("name", device.Name).Msg("input device selected")
	return devices, device, true
}
