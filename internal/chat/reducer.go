// ABOUTME: Streaming reducer folding decoded frames into per-tick message deltas
// ABOUTME: Tracks the thinking phase across ticks and stops consuming after [DONE]

package chat

import (
	"log/slog"
	"strings"
)

// maxLoggedFrame bounds how much of a bad frame is written to the log.
const maxLoggedFrame = 120

// Delta is the accumulated effect of one tick.
type Delta struct {
	Content       string
	Thinking      string
	ThinkingPhase bool
	Done          bool
	// Frames counts the data frames decoded in this tick.
	Frames int
}

// ApplyTo appends the delta to a message and sets the thinking panel state.
func (d Delta) ApplyTo(m *Message) {
	m.Content += d.Content
	m.ThinkingContent += d.Thinking
	m.IsThinkingExpanded = d.ThinkingPhase
}

// Reducer turns a growing response buffer into deltas. It is not safe for
// concurrent use; each stream owns one.
type Reducer struct {
	cursor   LineCursor
	thinking bool
	done     bool
	logger   *slog.Logger
}

// NewReducer creates a reducer. Pass nil logger for default.
func NewReducer(logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer{logger: logger}
}

// Tick processes the lines completed since the previous tick.
func (r *Reducer) Tick(raw []byte) Delta {
	var content, thinking strings.Builder
	frames := 0

	for _, line := range r.cursor.Next(raw) {
		if r.done {
			break
		}

		ev, ok, err := ParseLine(line)
		if !ok {
			continue
		}
		if err != nil {
			r.logger.Warn("skipping malformed frame",
				"error", err,
				"frame", truncateFrame(line),
			)
			continue
		}
		frames++

		switch ev.Kind {
		case EventRaw, EventContent:
			content.WriteString(ev.Text)
		case EventThinking:
			thinking.WriteString(ev.Text)
			r.thinking = true
		case EventThinkingEnd:
			r.thinking = false
		case EventDone:
			r.done = true
		}
	}

	return Delta{
		Content:       content.String(),
		Thinking:      thinking.String(),
		ThinkingPhase: r.thinking,
		Done:          r.done,
		Frames:        frames,
	}
}

// Done reports whether the [DONE] marker has been seen.
func (r *Reducer) Done() bool {
	return r.done
}

// Thinking reports whether the stream is inside the thinking phase.
func (r *Reducer) Thinking() bool {
	return r.thinking
}

func truncateFrame(s string) string {
	if len(s) <= maxLoggedFrame {
		return s
	}
	return s[:maxLoggedFrame] + "..."
}
