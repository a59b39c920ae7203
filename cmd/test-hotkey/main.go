// Command test-hotkey is a manual test for the global record hotkey.
// Run it, then press the combination to see toggle events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--keys ctrl+shift+r]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gostt-scribe/internal/hotkey"
)

func main() {
	combo := flag.String("keys", "ctrl+shift+r", "key combination, joined with +")
	flag.Parse()

	keys, err := hotkey.ParseKeys(*combo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Listening for %s...\n", *combo)
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(keys)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		recording := false
		for ev := range listener.Events() {
			recording = !recording
			if recording {
				fmt.Printf(">>> %s: START (recording)\n", ev.Keys)
			} else {
				fmt.Printf("<<< %s: STOP  (saved)\n", ev.Keys)
			}
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
