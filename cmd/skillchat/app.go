// ABOUTME: Wiring of the terminal client: stores, credentials, REST client, chat session
// ABOUTME: Also owns line input, which yields to Ctrl+C and to password prompts

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/2389/skillchat/internal/auth"
	"github.com/2389/skillchat/internal/chat"
	"github.com/2389/skillchat/internal/client"
	"github.com/2389/skillchat/internal/config"
	"github.com/2389/skillchat/internal/conversation"
	"github.com/2389/skillchat/internal/dedupe"
	"github.com/2389/skillchat/internal/render"
	"github.com/2389/skillchat/internal/store"
	"github.com/2389/skillchat/internal/theme"
)

const duplicateWindowSize = 128

var errInterrupted = errors.New("interrupted")

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	prefs   store.Store
	creds   *auth.Credentials
	client  *client.Client
	themes  *theme.Manager
	updates *conversation.Broadcaster
	convs   *conversation.Service
	session *chat.Session

	palette  *theme.Palette
	renderer *render.Renderer

	// per-send toggles and pending attachments
	expert   bool
	thinking bool
	images   []string

	input      *lineReader
	interrupts <-chan os.Signal
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, interrupts <-chan os.Signal) (*app, error) {
	prefs, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening preference store: %w", err)
	}

	creds := auth.NewCredentials(prefs, logger)
	if err := creds.Load(ctx); err != nil {
		logger.Warn("could not load stored token", "error", err)
	}
	if token := os.Getenv("SKILLCHAT_TOKEN"); token != "" {
		creds.UseToken(token)
	}

	cl, err := client.New(cfg.Server.BaseURL, creds, client.Options{
		Timeout:           cfg.Server.Timeout,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	}, logger)
	if err != nil {
		prefs.Close()
		return nil, err
	}

	themes := theme.NewManager(prefs, theme.Mode(cfg.Theme.Mode), logger)
	if err := themes.Load(ctx); err != nil {
		logger.Warn("could not load theme", "error", err)
	}

	updates := conversation.NewBroadcaster(logger)
	session := chat.NewSession(chat.NewStore(updates), cl, chat.SessionConfig{
		Timeout: cfg.Stream.Timeout,
		Defaults: chat.SendOptions{
			ModelType:      cfg.Stream.ModelType,
			Expert:         cfg.Stream.Expert,
			EnableThinking: cfg.Stream.EnableThinking,
		},
		ReadBufferSize: cfg.Stream.ReadBufferSize,
	}, logger)
	session.SetDuplicateGuard(dedupe.New(cfg.Stream.DuplicateWindow, duplicateWindowSize))

	a := &app{
		cfg:        cfg,
		logger:     logger,
		out:        os.Stdout,
		prefs:      prefs,
		creds:      creds,
		client:     cl,
		themes:     themes,
		updates:    updates,
		convs:      conversation.NewService(cl, prefs, logger),
		session:    session,
		input:      newLineReader(os.Stdin),
		interrupts: interrupts,
	}
	a.applyTheme()
	return a, nil
}

// Close stops streams and releases the preference store. Safe to call twice.
func (a *app) Close() {
	if a.session == nil {
		return
	}
	a.session.Close()
	a.updates.Close()
	if err := a.prefs.Close(); err != nil {
		a.logger.Debug("closing preference store", "error", err)
	}
	a.session = nil
}

func (a *app) applyTheme() {
	a.palette = a.themes.Palette()
	a.renderer = render.New(a.palette)
}

// Run is the interactive loop.
func (a *app) Run(ctx context.Context) error {
	fmt.Fprintf(a.out, "skillchat %s connected to %s\n", version, a.cfg.Server.BaseURL)
	a.greet(ctx)
	fmt.Fprintln(a.out, a.palette.Muted.Sprint("Type a message and press Enter. /help for commands. Ctrl+C cancels a reply or quits."))
	fmt.Fprintln(a.out)

	for {
		fmt.Fprint(a.out, a.prompt())

		input, err := a.readLine(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, errInterrupted), ctx.Err() != nil:
			fmt.Fprintln(a.out, "\nGoodbye!")
			return nil
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := a.dispatch(ctx, input)
			if err != nil {
				a.printError(err)
			}
			if quit {
				fmt.Fprintln(a.out, "Goodbye!")
				return nil
			}
			fmt.Fprintln(a.out)
			continue
		}

		if err := a.sendMessage(ctx, input); err != nil {
			a.printError(err)
		}
		fmt.Fprintln(a.out)
	}
}

// greet reports the login state and restores the previous conversation.
func (a *app) greet(ctx context.Context) {
	token := a.creds.Token()
	if token == "" {
		fmt.Fprintln(a.out, a.palette.Warning.Sprint("Not logged in. Use /login or /register."))
		return
	}

	if claims, err := auth.Inspect(token); err == nil {
		if claims.Expired(time.Now()) {
			fmt.Fprintln(a.out, a.palette.Warning.Sprint("Stored login has expired. Use /login."))
			return
		}
		fmt.Fprintf(a.out, "Logged in as %s\n", a.palette.User.Sprint(claims.Subject))
	}

	if err := a.convs.Fetch(ctx); err != nil {
		a.printError(err)
		return
	}
	if id, ok := a.convs.Restore(ctx); ok {
		if conv, found := a.convs.Current(); found {
			fmt.Fprintf(a.out, "Resuming conversation %d: %s\n", id, conv.Title)
		}
	}
}

func (a *app) prompt() string {
	conv, ok := a.convs.Current()
	if !ok {
		return "> "
	}
	return a.palette.Muted.Sprintf("[%d %s]", conv.ID, truncate(conv.Title, 24)) + "> "
}

// readLine reads one line, giving up on ctx or Ctrl+C.
func (a *app) readLine(ctx context.Context) (string, error) {
	return a.input.Read(ctx, a.interrupts)
}

// ask prints a question and reads the answer, falling back to def when empty.
func (a *app) ask(ctx context.Context, question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(a.out, "%s: ", question)
	}
	answer, err := a.readLine(ctx)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (a *app) printError(err error) {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintln(a.out, a.palette.Warning.Sprint("Not logged in. Use /login."))
	case errors.Is(err, auth.ErrUnauthorized):
		fmt.Fprintln(a.out, a.palette.Error.Sprint("[unauthorized] ")+"login expired or rejected. Use /login.")
	case errors.Is(err, chat.ErrDuplicateSend):
		fmt.Fprintln(a.out, a.palette.Muted.Sprint("(duplicate message ignored)"))
	default:
		fmt.Fprintln(a.out, a.palette.Error.Sprint("[error] ")+err.Error())
	}
}

// truncate shortens s to maxLen runes, adding an ellipsis.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
