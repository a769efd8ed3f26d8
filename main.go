package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bosley/dictate/capture"
	"github.com/bosley/dictate/config"
	"github.com/bosley/dictate/history"
	"github.com/bosley/dictate/keyring"
	"github.com/bosley/dictate/kvstore"
	"github.com/bosley/dictate/recorder"
	"github.com/bosley/dictate/session"
)

func main() {
	configPath := flag.String("config", "dictate.yaml", "Path to configuration file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	listDevices := flag.Bool("list-devices", false, "List available audio input devices")
	playFile := flag.String("play", "", "Play a saved recording artifact")
	addKey := flag.String("add-key", "", "Add a credential to the keyring and exit")
	removeKey := flag.Int("remove-key", -1, "Remove the credential at this index and exit")
	listKeys := flag.Bool("keys", false, "List keyring entries and exit")
	listHistory := flag.Bool("history", false, "List saved recording sessions and exit")
	flag.Parse()

	if *listDevices {
		devices, err := capture.ListDevices()
		if err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}
		fmt.Println("Available audio input devices:")
		for i, device := range devices {
			fmt.Printf("[%d] %s\n", i, device.Name)
			fmt.Printf("    Max Input Channels: %d\n", device.MaxInputChannels)
			fmt.Printf("    Default Sample Rate: %f\n", device.DefaultSampleRate)
			fmt.Println()
		}
		return
	}

	if *playFile != "" {
		if err := capture.PlayArtifact(*playFile); err != nil {
			slog.Error("Failed to play audio file", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	kv, err := kvstore.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("Failed to open storage", "error", err, "path", cfg.Storage.Path)
		os.Exit(1)
	}

	ring, err := keyring.Open(kv, cfg.Keyring.Seeds)
	if err != nil {
		slog.Error("Failed to open keyring", "error", err)
		os.Exit(1)
	}

	if *addKey != "" {
		ring.Add(*addKey)
		fmt.Printf("Keyring now holds %d credential(s)\n", ring.Len())
		return
	}
	if *removeKey >= 0 {
		ring.Remove(*removeKey)
		fmt.Printf("Keyring now holds %d credential(s)\n", ring.Len())
		return
	}
	if *listKeys {
		for i, key := range ring.Keys() {
			fmt.Printf("[%d] %s\n", i, key)
		}
		return
	}

	hist := history.NewStore(kv)
	if *listHistory {
		for _, rec := range hist.List() {
			audio := "-"
			if rec.AudioPath != nil {
				audio = *rec.AudioPath
			}
			fmt.Printf("%s  %s  %6dms  audio=%s\n  %s\n", rec.ID, rec.DateTime, rec.DurationMs, audio, rec.Transcript)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	go func() {
		if err := ring.Watch(ctx); err != nil {
			slog.Error("Keyring watcher failed", "error", err)
		}
	}()

	var backend capture.Backend
	switch cfg.Capture.Backend {
	case "bridge":
		backend = capture.NewBridge(capture.BridgeConfig{
			ListenAddr:  cfg.Capture.BridgeAddr,
			ArtifactDir: cfg.Capture.ArtifactDir,
		})
	default:
		backend = capture.NewNative()
	}
	defer backend.Dispose()

	var rec *recorder.Recorder
	sess := session.New(session.Config{
		RelayURL:         cfg.Relay.URL,
		StreamURL:        cfg.Streaming.URL,
		SampleRate:       cfg.Streaming.SampleRate,
		RelayTimeout:     cfg.RelayTimeout(),
		HandshakeTimeout: cfg.HandshakeTimeout(),
	}, session.Callbacks{
		OnConnected: func(connected bool) {
			slog.Info("Session connection state changed", "connected", connected)
		},
		OnTranscript: func(r session.Result) {
			rec.HandleResult(r)
			if r.IsFinal {
				fmt.Println(r.Text)
			}
		},
		OnError: func(msg string) {
			slog.Warn("Session error", "message", msg)
		},
	})
	defer sess.Dispose()

	backend.SubscribeErrors(func(msg string) {
		slog.Warn("Capture error", "message", msg)
	})

	rec = recorder.New(recorder.Options{
		Backend: backend,
		Session: sess,
		Keys:    ring,
		History: hist,
	})

	if err := rec.Start(ctx); err != nil {
		slog.Error("Failed to start recording session", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	rec.Stop()

	if transcript := rec.Transcript().Text(); transcript != "" {
		fmt.Println()
		fmt.Println(transcript)
	}

	slog.Debug("Program exiting")
}
