// ABOUTME: Slash commands of the terminal client
// ABOUTME: Account, conversation, streaming control, skill and theme commands

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/2389/skillchat/internal/chat"
	"github.com/2389/skillchat/internal/client"
	"github.com/2389/skillchat/internal/theme"
)

var errNoConversation = errors.New("no conversation selected; use /new or /use <id>")

type command struct {
	usage string
	help  string
	run   func(a *app, ctx context.Context, args string) error
}

// commands is filled in init to let /help list it.
var commands map[string]command

func init() {
	commands = map[string]command{
		"/help":      {"/help", "Show this help", (*app).help},
		"/login":     {"/login [username]", "Log in", (*app).login},
		"/logout":    {"/logout", "Forget the stored login", (*app).logout},
		"/register":  {"/register [username]", "Create an account", (*app).register},
		"/me":        {"/me", "Show the logged in user", (*app).me},
		"/list":      {"/list", "List conversations", (*app).list},
		"/new":       {"/new [title]", "Start a conversation", (*app).newConversation},
		"/use":       {"/use <id>", "Switch conversation and load its history", (*app).use},
		"/rename":    {"/rename <title>", "Rename the current conversation", (*app).rename},
		"/pin":       {"/pin [id]", "Pin a conversation", (*app).pin},
		"/unpin":     {"/unpin [id]", "Unpin a conversation", (*app).unpin},
		"/delete":    {"/delete [id]", "Delete a conversation", (*app).deleteConversation},
		"/history":   {"/history", "Reload and show the current conversation", (*app).history},
		"/cancel":    {"/cancel", "Cancel the reply being streamed", (*app).cancel},
		"/regen":     {"/regen", "Regenerate the last reply", (*app).regenerate},
		"/expert":    {"/expert on|off", "Use the expert model", (*app).setExpert},
		"/thinking":  {"/thinking on|off", "Ask for visible reasoning", (*app).setThinking},
		"/attach":    {"/attach <image-url>", "Attach an image to the next message", (*app).attach},
		"/translate": {"/translate <lang> <text>", "Translate text", (*app).translate},
		"/code":      {"/code <prompt>", "Ask the coding skill", (*app).code},
		"/image":     {"/image <prompt>", "Generate an image", (*app).image},
		"/edit":      {"/edit <image-path> <prompt>", "Edit an image", (*app).editImage},
		"/skills":    {"/skills [name]", "List skills or show one", (*app).skills},
		"/models":    {"/models", "List chat and skill models", (*app).models},
		"/theme":     {"/theme [light|dark|system]", "Show or change the theme", (*app).setTheme},
	}
}

// dispatch runs a slash command. quit is true for /quit.
func (a *app) dispatch(ctx context.Context, input string) (quit bool, err error) {
	name, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	}

	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, cmd.run(a, ctx, args)
}

func (a *app) help(_ context.Context, _ string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(a.out, "  %-30s %s\n", cmd.usage, a.palette.Muted.Sprint(cmd.help))
	}
	fmt.Fprintf(a.out, "  %-30s %s\n", "/quit", a.palette.Muted.Sprint("Exit"))
	return nil
}

// Account

func (a *app) login(ctx context.Context, username string) error {
	var err error
	if username == "" {
		if username, err = a.ask(ctx, "Username", ""); err != nil {
			return err
		}
	}
	password, err := a.readPassword(ctx, "Password")
	if err != nil {
		return err
	}

	if _, err := a.client.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", a.palette.User.Sprint(username))

	if err := a.convs.Fetch(ctx); err != nil {
		return err
	}
	a.convs.Restore(ctx)
	return nil
}

func (a *app) logout(ctx context.Context, _ string) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) register(ctx context.Context, username string) error {
	var err error
	if username == "" {
		if username, err = a.ask(ctx, "Username", ""); err != nil {
			return err
		}
	}
	email, err := a.ask(ctx, "Email (optional)", "")
	if err != nil {
		return err
	}
	password, err := a.readPassword(ctx, "Password")
	if err != nil {
		return err
	}
	confirm, err := a.readPassword(ctx, "Confirm password")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := a.client.Register(ctx, client.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	fmt.Fprintf(a.out, "Registered %s (id %d). Logging in...\n", user.Username, user.ID)

	if _, err := a.client.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

func (a *app) me(ctx context.Context, _ string) error {
	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (id %d)", a.palette.User.Sprint(user.Username), user.ID)
	if user.Email != "" {
		fmt.Fprintf(a.out, " <%s>", user.Email)
	}
	fmt.Fprintln(a.out)
	if !user.CreatedAt.IsZero() {
		fmt.Fprintln(a.out, a.palette.Muted.Sprint("member since "+user.CreatedAt.Local().Format("2006-01-02")))
	}
	return nil
}

// readPassword reads without echo on a terminal, or a plain line otherwise.
func (a *app) readPassword(ctx context.Context, question string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.ask(ctx, question, "")
	}
	fmt.Fprintf(a.out, "%s: ", question)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// Conversations

func (a *app) list(ctx context.Context, _ string) error {
	if err := a.convs.Fetch(ctx); err != nil {
		return err
	}
	convs := a.convs.Sorted()
	if len(convs) == 0 {
		fmt.Fprintln(a.out, "No conversations yet. Type a message or use /new.")
		return nil
	}

	current := a.convs.CurrentID()
	for _, c := range convs {
		marker := "  "
		if c.ID == current {
			marker = a.palette.Success.Sprint("* ")
		}
		pin := ""
		if c.IsPinned {
			pin = a.palette.Warning.Sprint(" [pinned]")
		}
		updated := a.palette.Muted.Sprint(c.UpdatedAt.Local().Format("Jan 2 15:04"))
		fmt.Fprintf(a.out, "%s%4d  %s%s  %s\n", marker, c.ID, c.Title, pin, updated)
	}
	return nil
}

func (a *app) newConversation(ctx context.Context, title string) error {
	conv, err := a.convs.Create(ctx, title, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Started conversation %d: %s\n", conv.ID, conv.Title)
	return nil
}

func (a *app) use(ctx context.Context, args string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.convs.Select(ctx, id); err != nil {
		// the list may be stale
		if ferr := a.convs.Fetch(ctx); ferr != nil {
			return ferr
		}
		if err := a.convs.Select(ctx, id); err != nil {
			return err
		}
	}
	return a.history(ctx, "")
}

func (a *app) rename(ctx context.Context, title string) error {
	id := a.convs.CurrentID()
	if id == 0 {
		return errNoConversation
	}
	if title == "" {
		return errors.New("usage: /rename <title>")
	}
	conv, err := a.convs.Rename(ctx, id, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Renamed to %s\n", conv.Title)
	return nil
}

func (a *app) pin(ctx context.Context, args string) error {
	id, err := a.targetID(args)
	if err != nil {
		return err
	}
	if _, err := a.convs.Pin(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pinned %d\n", id)
	return nil
}

func (a *app) unpin(ctx context.Context, args string) error {
	id, err := a.targetID(args)
	if err != nil {
		return err
	}
	if _, err := a.convs.Unpin(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Unpinned %d\n", id)
	return nil
}

func (a *app) deleteConversation(ctx context.Context, args string) error {
	id, err := a.targetID(args)
	if err != nil {
		return err
	}
	answer, err := a.ask(ctx, fmt.Sprintf("Delete conversation %d? (y/N)", id), "n")
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		return nil
	}

	a.session.Clear(id)
	if err := a.convs.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d\n", id)
	return nil
}

func (a *app) history(ctx context.Context, _ string) error {
	id := a.convs.CurrentID()
	if id == 0 {
		return errNoConversation
	}
	if err := a.session.FetchHistory(ctx, id); err != nil {
		return err
	}
	a.printHistory(a.session.Store().Messages(id))
	return nil
}

func (a *app) targetID(args string) (int64, error) {
	if args != "" {
		return parseID(args)
	}
	if id := a.convs.CurrentID(); id != 0 {
		return id, nil
	}
	return 0, errNoConversation
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", s)
	}
	return id, nil
}

// Streaming

// sendMessage sends to the current conversation, creating one when none is selected.
func (a *app) sendMessage(ctx context.Context, content string) error {
	id := a.convs.CurrentID()
	if id == 0 {
		conv, err := a.convs.Create(ctx, "", "")
		if err != nil {
			return err
		}
		id = conv.ID
	}

	opts := &chat.SendOptions{Expert: a.expert, EnableThinking: a.thinking, Images: a.images}
	return a.stream(ctx, id, func(ctx context.Context) (*chat.Task, error) {
		task, err := a.session.Send(ctx, id, content, opts)
		if err == nil {
			a.images = nil
		}
		return task, err
	})
}

func (a *app) cancel(_ context.Context, _ string) error {
	id := a.convs.CurrentID()
	if id == 0 || !a.session.Cancel(id) {
		fmt.Fprintln(a.out, "Nothing is streaming.")
	}
	return nil
}

func (a *app) regenerate(ctx context.Context, _ string) error {
	id := a.convs.CurrentID()
	if id == 0 {
		return errNoConversation
	}
	opts := &chat.SendOptions{Expert: a.expert, EnableThinking: a.thinking}
	return a.stream(ctx, id, func(ctx context.Context) (*chat.Task, error) {
		return a.session.RegenerateLast(ctx, id, opts)
	})
}

func (a *app) setExpert(_ context.Context, args string) error {
	on, err := parseSwitch(args, a.expert)
	if err != nil {
		return err
	}
	a.expert = on
	fmt.Fprintf(a.out, "Expert model %s\n", onOff(on))
	return nil
}

func (a *app) setThinking(_ context.Context, args string) error {
	on, err := parseSwitch(args, a.thinking)
	if err != nil {
		return err
	}
	a.thinking = on
	fmt.Fprintf(a.out, "Visible reasoning %s\n", onOff(on))
	return nil
}

func (a *app) attach(_ context.Context, url string) error {
	if url == "" {
		return errors.New("usage: /attach <image-url>")
	}
	a.images = append(a.images, url)
	fmt.Fprintf(a.out, "%d image(s) will be sent with the next message\n", len(a.images))
	return nil
}

func parseSwitch(args string, current bool) (bool, error) {
	switch strings.ToLower(args) {
	case "":
		return !current, nil
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	default:
		return current, fmt.Errorf("expected on or off, got %q", args)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Skills

func (a *app) translate(ctx context.Context, args string) error {
	lang, text, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(text) == "" {
		return errors.New("usage: /translate <lang> <text>")
	}
	resp, err := a.client.Translate(ctx, client.TranslationRequest{Text: strings.TrimSpace(text), TargetLang: lang})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.Text)
	fmt.Fprintln(a.out, a.palette.Muted.Sprintf("(%s, %s)", resp.TargetLang, resp.ModelName))
	return nil
}

func (a *app) code(ctx context.Context, prompt string) error {
	if prompt == "" {
		return errors.New("usage: /code <prompt>")
	}
	resp, err := a.client.Code(ctx, client.CodingRequest{Prompt: prompt})
	if err != nil {
		return err
	}
	reasoning := resp.ThinkingContent
	if reasoning == "" {
		reasoning = resp.ReasoningContent
	}
	if reasoning != "" {
		fmt.Fprintln(a.out, a.palette.Thinking.Sprint(reasoning))
		fmt.Fprintln(a.out)
	}
	fmt.Fprintln(a.out, a.renderer.Render(resp.Content))
	fmt.Fprintln(a.out, a.palette.Muted.Sprintf("(%s)", resp.ModelName))
	return nil
}

func (a *app) image(ctx context.Context, prompt string) error {
	if prompt == "" {
		return errors.New("usage: /image <prompt>")
	}
	resp, err := a.client.GenerateImage(ctx, client.ImageGenerationRequest{Prompt: prompt})
	if err != nil {
		return err
	}
	a.printImages(resp.Images)
	return nil
}

func (a *app) editImage(ctx context.Context, args string) error {
	path, prompt, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(prompt) == "" {
		return errors.New("usage: /edit <image-path> <prompt>")
	}
	resp, err := a.client.EditImage(ctx, client.ImageEditingRequest{ImagePath: path, Prompt: strings.TrimSpace(prompt)})
	if err != nil {
		return err
	}
	a.printImages(resp.Images)
	return nil
}

func (a *app) printImages(urls []string) {
	if len(urls) == 0 {
		fmt.Fprintln(a.out, "No images returned.")
		return
	}
	for _, u := range urls {
		fmt.Fprintln(a.out, a.palette.Link.Sprint(u))
	}
}

func (a *app) skills(ctx context.Context, name string) error {
	if name != "" {
		skill, err := a.client.GetSkill(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.renderer.Render(skill.Content))
		return nil
	}

	skills, err := a.client.ListSkills(ctx)
	if err != nil {
		return err
	}
	for _, s := range skills {
		fmt.Fprintf(a.out, "  %-18s %s\n", s.Name, a.palette.Muted.Sprint(s.Description))
	}
	return nil
}

func (a *app) models(ctx context.Context, _ string) error {
	chatModels, err := a.client.ChatModels(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Chat models:")
	for _, m := range chatModels {
		kind := "fast"
		if m.IsExpert {
			kind = "expert"
		}
		fmt.Fprintf(a.out, "  %-24s %s\n", m.Name, a.palette.Muted.Sprint(kind))
	}

	skillModels, err := a.client.SkillModels(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Skill models:")
	for _, m := range skillModels {
		fmt.Fprintf(a.out, "  %-18s fast=%s expert=%s\n", m.DisplayName, m.FastModel, m.ExpertModel)
	}
	return nil
}

// Theme

func (a *app) setTheme(ctx context.Context, args string) error {
	if args == "" {
		fmt.Fprintf(a.out, "Theme: %s (showing %s)\n", a.themes.Mode(), a.themes.Resolved())
		return nil
	}
	mode, err := theme.ParseMode(args)
	if err != nil {
		return err
	}
	if err := a.themes.Set(ctx, mode); err != nil {
		return err
	}
	a.applyTheme()
	fmt.Fprintf(a.out, "Theme set to %s\n", mode)
	return nil
}
