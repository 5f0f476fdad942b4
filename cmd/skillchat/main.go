// ABOUTME: Terminal client for the skill-based assistant backend
// ABOUTME: Streams replies live, manages conversations, and keeps login and theme locally

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/2389/skillchat/internal/config"
	"github.com/2389/skillchat/internal/logging"
)

// Version is set at build time.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file (default $SKILLCHAT_CONFIG or ~/.config/skillchat/config.yaml)")
	server := flag.String("server", "", "Backend base URL, overrides the config file")
	envFile := flag.String("env", ".env", "dotenv file loaded when present")
	flag.Usage = usage
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: loading %s: %v\n", *envFile, err)
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadOptional(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Server.BaseURL = *server
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	logger := logging.New(cfg.Logging, os.Stderr)

	// SIGINT is handled by the app itself: it cancels a running stream or quits.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	a, err := newApp(ctx, cfg, logger, interrupts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	command := "chat"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "chat":
		err = a.Run(ctx)
	case "login":
		err = a.login(ctx, flag.Arg(1))
	case "logout":
		err = a.logout(ctx, "")
	case "register":
		err = a.register(ctx, flag.Arg(1))
	case "me":
		err = a.me(ctx, "")
	case "version":
		fmt.Println("skillchat", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		a.Close()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: skillchat [flags] [command]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  chat                 Interactive chat (default)")
	fmt.Fprintln(os.Stderr, "  login [username]     Log in and store the access token")
	fmt.Fprintln(os.Stderr, "  logout               Forget the stored access token")
	fmt.Fprintln(os.Stderr, "  register [username]  Create an account")
	fmt.Fprintln(os.Stderr, "  me                   Show the logged in user")
	fmt.Fprintln(os.Stderr, "  version              Print the version")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
