// ABOUTME: Local fake assistant backend for development and end-to-end testing
// ABOUTME: Usage: fake-assistant [-addr 127.0.0.1:8000] [-user demo -password demo]

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/skillchat/internal/config"
	"github.com/2389/skillchat/internal/devserver"
	"github.com/2389/skillchat/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Config file (default $SKILLCHAT_CONFIG or ~/.config/skillchat/config.yaml)")
	addr := flag.String("addr", "", "Listen address, overrides devserver.addr")
	user := flag.String("user", "", "Seed a user with this name")
	password := flag.String("password", "", "Password for the seeded user")
	delay := flag.Duration("delay", -1, "Pause between streamed frames, overrides devserver.chunk_delay")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*configPath, *addr, *user, *password, *delay); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, user, password string, delay time.Duration) error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.DevServer.Addr = addr
	}
	if delay >= 0 {
		cfg.DevServer.ChunkDelay = delay
	}

	logger := logging.New(cfg.Logging, os.Stderr)

	secret := []byte(cfg.DevServer.JWTSecret)
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("devserver.jwt_secret not set, using a random secret; tokens will not survive a restart")
	}

	srv, err := devserver.New(devserver.Options{
		Secret:     secret,
		ChunkDelay: cfg.DevServer.ChunkDelay,
		TokenTTL:   cfg.DevServer.TokenTTL,
	}, logger)
	if err != nil {
		return err
	}

	if user != "" {
		if password == "" {
			return errors.New("-password is required with -user")
		}
		if _, err := srv.AddUser(user, "", password); err != nil {
			return fmt.Errorf("seeding user: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	fmt.Printf("%s listening on %s\n", cyan.Sprint("fake-assistant"), cfg.DevServer.Addr)
	if user != "" {
		fmt.Println(gray.Sprintf("  seeded user %q", user))
	}
	fmt.Println(gray.Sprintf("  frame delay %s", cfg.DevServer.ChunkDelay))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	return []byte(base64.RawURLEncoding.EncodeToString(b)), nil
}
