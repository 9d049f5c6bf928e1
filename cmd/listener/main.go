// Command listener joins a live sermon broadcast and plays the translated
// audio through the local speakers, printing the running transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sermoncast/sermoncast/internal/audio"
	"github.com/sermoncast/sermoncast/internal/listener"
	"github.com/sermoncast/sermoncast/internal/shared"
	"github.com/sermoncast/sermoncast/internal/synthesis"
)

func main() {
	var (
		baseURL     = flag.String("server", "http://localhost:8080", "relay server base URL")
		broadcastID = flag.String("broadcast", "", "broadcast id to join (required)")
		churchID    = flag.String("church", "", "church id")
		userID      = flag.String("user", "", "user id")
		language    = flag.String("language", "en", "target language code")
		sourceLang  = flag.String("source-language", "", "broadcast source language")
		gender      = flag.String("gender", "", "broadcaster gender (male|female)")
		logLevel    = flag.String("log-level", "warn", "log level (debug|info|warn|error)")
	)
	flag.Parse()

	if *broadcastID == "" {
		fmt.Fprintln(os.Stderr, "usage: listener -broadcast <id> [-language <code>]")
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))

	player := audio.NewPlayer()
	synth := synthesis.New(synthesis.Config{BaseURL: *baseURL})

	session := listener.NewSession(listener.SessionConfig{
		BaseURL:    *baseURL,
		Info:       listener.NewSessionInfo(*broadcastID, *churchID, *userID),
		TargetLang: *language,
		SourceLang: *sourceLang,
		Gender:     shared.Gender(*gender),
		Player:     player,
		Synth:      synth,
		Log:        log,
		OnTranscript: func(transcript string) {
			fmt.Printf("\r\033[K%s", transcript)
		},
		OnStatus: func(status listener.StreamStatus) {
			fmt.Fprintf(os.Stderr, "\n[%s]\n", status)
		},
		OnError: func(msg string) {
			if msg != "" {
				fmt.Fprintf(os.Stderr, "\n[error: %s]\n", msg)
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		log.Error("failed to join broadcast", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(os.Stderr, "\nleaving broadcast")
	if err := session.Stop(context.Background()); err != nil {
		log.Warn("stop_stream failed", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
