// ABOUTME: Live rendering of a streaming reply and printing of conversation history
// ABOUTME: Ctrl+C during a stream cancels it; the partial reply is kept and marked

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/2389/skillchat/internal/chat"
	"github.com/2389/skillchat/internal/theme"
)

// stream starts a send through start and prints the reply as it arrives.
func (a *app) stream(ctx context.Context, conversationID int64, start func(context.Context) (*chat.Task, error)) error {
	subCtx, unsubscribe := context.WithCancel(ctx)
	defer unsubscribe()
	updates, _ := a.updates.Subscribe(subCtx, conversationID)

	task, err := start(ctx)
	if err != nil {
		return err
	}

	view := &streamView{out: a.out, palette: a.palette}
	canceling := false

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if u.Kind == chat.UpdateChanged && u.Message.ID == task.MessageID {
				view.update(u.Message)
			}

		case <-a.interrupts:
			if !canceling {
				canceling = a.session.Cancel(conversationID)
			}

		case <-ctx.Done():
			a.session.Cancel(conversationID)
			<-task.Done()
			return ctx.Err()

		case <-task.Done():
			outcome, err := task.Result()
			if final, ok := a.session.Store().Message(conversationID, task.MessageID); ok && outcome != chat.OutcomeFailed {
				view.update(final)
			}
			view.finish(outcome, err)
			return nil
		}
	}
}

// streamView prints the growing suffix of a streaming message.
type streamView struct {
	out     io.Writer
	palette *theme.Palette

	thinking int
	content  int
}

func (v *streamView) update(m chat.Message) {
	if len(m.ThinkingContent) > v.thinking {
		if v.thinking == 0 {
			fmt.Fprint(v.out, v.palette.Muted.Sprint("thinking: "))
		}
		fmt.Fprint(v.out, v.palette.Thinking.Sprint(m.ThinkingContent[v.thinking:]))
		v.thinking = len(m.ThinkingContent)
	}
	if len(m.Content) > v.content {
		if v.content == 0 && v.thinking > 0 {
			fmt.Fprint(v.out, "\n\n")
		}
		fmt.Fprint(v.out, v.palette.Assistant.Sprint(m.Content[v.content:]))
		v.content = len(m.Content)
	}
}

func (v *streamView) finish(outcome chat.Outcome, err error) {
	if v.thinking > 0 || v.content > 0 {
		fmt.Fprintln(v.out)
	}
	switch outcome {
	case chat.OutcomeCanceled:
		fmt.Fprintln(v.out, v.palette.Warning.Sprint("[canceled]"))
	case chat.OutcomeTimedOut:
		fmt.Fprintln(v.out, v.palette.Warning.Sprint("[timed out]"))
	case chat.OutcomeUnauthorized:
		fmt.Fprintln(v.out, v.palette.Error.Sprint("[unauthorized] ")+"login expired or rejected. Use /login.")
	case chat.OutcomeFailed:
		msg := "stream failed"
		if err != nil {
			msg = err.Error()
		}
		fmt.Fprintln(v.out, v.palette.Error.Sprint("[error] ")+msg)
	}
}

func (a *app) printHistory(msgs []chat.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, a.palette.Muted.Sprint("(no messages yet)"))
		return
	}
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		switch m.Role {
		case chat.RoleUser:
			fmt.Fprintln(a.out, a.palette.User.Sprint("you: ")+m.Content)
		default:
			if m.ThinkingContent != "" {
				fmt.Fprintln(a.out, a.palette.Muted.Sprint("thinking: ")+a.palette.Thinking.Sprint(truncate(m.ThinkingContent, 200)))
			}
			fmt.Fprintln(a.out, a.palette.Assistant.Sprint("assistant:"))
			fmt.Fprintln(a.out, a.renderer.Render(m.Content))
			if m.Incomplete {
				fmt.Fprintln(a.out, a.palette.Warning.Sprint("[incomplete]"))
			}
		}
	}
}
