package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chat-relay/auth"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/ws"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	if config.JWTSecret != "" {
		auth.SetSigningKey(config.JWTSecret)
	}

	// 2. Storage (BadgerDB + Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = blugeWriter.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()
	userRepository := repositories.NewUserRepository(db)
	searchIndex := repositories.NewSearchIndex(blugeWriter, log)

	// 3. Moderation (optional)
	moderator, err := buildModerator(config)
	if err != nil {
		return fmt.Errorf("moderation setup: %w", err)
	}

	// 4. Core wiring: registry -> projector -> fanout -> services -> router
	registry := runtime.NewRegistry()
	projector := projection.NewProjector(messageRepository)
	fanout := runtime.NewFanout(log, registry, projector)
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)
	messageService := services.NewMessageService(
		messageRepository, userRepository, searchIndex, projector, fanout, moderator, log)
	router := ws.NewRouter(log, authService, messageService, registry)
	wsServer := ws.NewServer(log, router, registry, config.ConnectionBufferSize)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers under supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewBadgerGC(db, log, config.GCInterval),
		observability.NewMonitor(log, registry, config.StatsInterval),
	)
	go sup.Run(ctx)

	// 7. HTTP server exposing the websocket endpoint
	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// buildModerator loads the banned word list when configured; without a
// list, bodies are stored as sent.
func buildModerator(config Config) (*moderation.Moderator, error) {
	if config.BannedWordsFile == "" {
		return nil, nil
	}
	replacement := []rune(config.CharReplacement)
	if len(replacement) != 1 {
		return nil, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", config.CharReplacement)
	}

	file, err := os.Open(config.BannedWordsFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return moderation.NewModerator(words, replacement[0])
}
