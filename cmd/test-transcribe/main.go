// Command test-transcribe sends one audio file to a provider and prints the
// transcript, without the terminal UI. API keys come from the environment
// or a .env file, as for gostt-scribe.
//
// Usage:
//
//	go run ./cmd/test-transcribe [--provider AssemblyAI|Deepgram] file.wav
//	go run ./cmd/test-transcribe --history 10
//	go run ./cmd/test-transcribe --clear-history
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/config"
	"github.com/chaz8081/gostt-scribe/internal/history"
	"github.com/chaz8081/gostt-scribe/internal/logging"
	"github.com/chaz8081/gostt-scribe/internal/session"
	"github.com/chaz8081/gostt-scribe/internal/transcribe"
)

func main() {
	provider := flag.String("provider", "", "provider name (default: providers.default)")
	verbose := flag.Bool("v", false, "log requests to stderr")
	recent := flag.Int("history", 0, "print the last N stored transcripts and exit")
	clearAll := flag.Bool("clear-history", false, "delete all stored transcripts and exit")
	flag.Parse()

	if err := config.LoadEnvFiles(".env", os.Getenv("GOSTT_SCRIBE_ENV")); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	cfg := config.Default()
	if path := os.Getenv("GOSTT_SCRIBE_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	level := zerolog.Disabled
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logging.New(os.Stderr, level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *clearAll {
		if err := clearHistory(ctx, cfg.History.Path, log); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Println("History cleared.")
		return
	}

	if *recent > 0 {
		if err := printHistory(ctx, cfg.History.Path, *recent, log); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: test-transcribe [--provider NAME] FILE")
		os.Exit(2)
	}

	name := cfg.Providers.Default
	if *provider != "" {
		name, _ = config.CanonicalProvider(*provider)
	}

	orch := session.New(transcribe.NewRegistry(&cfg.Providers, log), log,
		session.WithContext(ctx), session.WithProvider(name))
	if _, err := orch.Submit(flag.Arg(0), session.SourceManual); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	start := time.Now()
	for u := range orch.Updates() {
		if u.Status != nil {
			fmt.Fprintln(os.Stderr, u.Status.Text)
			continue
		}
		fmt.Print(session.FormatEntry(*u.Result))
		fmt.Fprintf(os.Stderr, "(%s in %s)\n", filepath.Base(u.Result.File), time.Since(start).Round(time.Millisecond))
		if u.Result.Failed() {
			os.Exit(1)
		}
		return
	}
}

func printHistory(ctx context.Context, path string, n int, log zerolog.Logger) error {
	store, err := history.Open(ctx, path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %s (%s, %s)\n%s\n\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), filepath.Base(e.File), e.Provider, e.Source, e.Text)
	}
	return nil
}

func clearHistory(ctx context.Context, path string, log zerolog.Logger) error {
	store, err := history.Open(ctx, path, log)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Clear(ctx)
}
