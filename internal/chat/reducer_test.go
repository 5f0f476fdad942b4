// ABOUTME: Tests for the streaming reducer
// ABOUTME: Checks thinking-phase tracking, [DONE] handling and chunk-boundary independence

package chat

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// feed ticks the reducer once per chunk, applying each delta like the session does.
func feed(r *Reducer, chunks ...string) Message {
	var raw []byte
	m := NewAssistantPlaceholder(1)
	for _, c := range chunks {
		raw = append(raw, c...)
		d := r.Tick(raw)
		if d.Frames > 0 {
			d.ApplyTo(&m)
		}
	}
	return m
}

func TestReducer_ThinkingThenContent(t *testing.T) {
	r := NewReducer(quietLogger())
	m := feed(r,
		"data: {\"type\":\"thinking\",\"content\":\"A\"}\n",
		"data: {\"type\":\"thinking_end\"}\n",
		"data: \"B\"\n",
		"data: [DONE]\n",
	)

	assert.Equal(t, "A", m.ThinkingContent)
	assert.Equal(t, "B", m.Content)
	assert.False(t, m.IsThinkingExpanded)
	assert.True(t, r.Done())
}

func TestReducer_ThinkingPanelOpenWhileThinking(t *testing.T) {
	r := NewReducer(quietLogger())
	var raw []byte

	raw = append(raw, "data: {\"type\":\"thinking\",\"data\":{\"content\":\"hmm\"}}\n"...)
	d := r.Tick(raw)
	assert.True(t, d.ThinkingPhase)
	assert.Equal(t, "hmm", d.Thinking)
	assert.Empty(t, d.Content)
	assert.True(t, r.Thinking())

	raw = append(raw, "data: {\"type\":\"thinking_end\"}\ndata: {\"type\":\"content\",\"data\":{\"content\":\"ok\"}}\n"...)
	d = r.Tick(raw)
	assert.False(t, d.ThinkingPhase)
	assert.Equal(t, "ok", d.Content)
	assert.Equal(t, 2, d.Frames)
}

func TestReducer_IgnoresLinesAfterDone(t *testing.T) {
	r := NewReducer(quietLogger())
	m := feed(r, "data: \"a\"\ndata: [DONE]\ndata: \"b\"\n", "data: \"c\"\n")

	assert.Equal(t, "a", m.Content)
	assert.True(t, r.Done())
}

func TestReducer_SkipsMalformedAndNonDataLines(t *testing.T) {
	var logs bytes.Buffer
	r := NewReducer(slog.New(slog.NewTextHandler(&logs, nil)))

	m := feed(r,
		": comment\n",
		"event: message\n",
		"data: {broken\n",
		"data: \"x\"\n",
		"\n",
		"data: {\"type\":\"mystery\"}\n",
		"data: \"y\"\n",
	)

	assert.Equal(t, "xy", m.Content)
	assert.Contains(t, logs.String(), "skipping malformed frame")
}

func TestReducer_PartialLineNotParsedUntilTerminated(t *testing.T) {
	r := NewReducer(quietLogger())
	var raw []byte

	raw = append(raw, "data: \"hel"...)
	d := r.Tick(raw)
	assert.Equal(t, 0, d.Frames)
	assert.Empty(t, d.Content)

	raw = append(raw, "lo\""...)
	d = r.Tick(raw)
	assert.Equal(t, 0, d.Frames)

	raw = append(raw, '\n')
	d = r.Tick(raw)
	assert.Equal(t, 1, d.Frames)
	assert.Equal(t, "hello", d.Content)
}

func TestReducer_ChunkBoundariesDoNotMatter(t *testing.T) {
	stream := "data: {\"type\":\"thinking\",\"content\":\"plan \"}\n" +
		"data: {\"type\":\"thinking\",\"content\":\"more\"}\n" +
		"data: {\"type\":\"thinking_end\"}\n" +
		"data: \"Hello\"\n" +
		"data: {\"type\":\"content\",\"data\":{\"content\":\", \"}}\n" +
		"data: \"wörld\"\n" +
		"data: [DONE]\n"

	whole := feed(NewReducer(quietLogger()), stream)
	require.Equal(t, "Hello, wörld", whole.Content)
	require.Equal(t, "plan more", whole.ThinkingContent)

	for split := 1; split < len(stream); split++ {
		m := feed(NewReducer(quietLogger()), stream[:split], stream[split:])
		assert.Equal(t, whole.Content, m.Content, "split at %d", split)
		assert.Equal(t, whole.ThinkingContent, m.ThinkingContent, "split at %d", split)
		assert.False(t, m.IsThinkingExpanded, "split at %d", split)
	}

	// one byte per tick
	chunks := make([]string, 0, len(stream))
	for i := 0; i < len(stream); i++ {
		chunks = append(chunks, stream[i:i+1])
	}
	m := feed(NewReducer(quietLogger()), chunks...)
	assert.Equal(t, whole.Content, m.Content)
}

func TestTruncateFrame(t *testing.T) {
	short := "data: x"
	assert.Equal(t, short, truncateFrame(short))

	long := string(bytes.Repeat([]byte("a"), maxLoggedFrame+10))
	assert.Len(t, truncateFrame(long), maxLoggedFrame+3)
}
