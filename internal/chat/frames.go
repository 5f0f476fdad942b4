// ABOUTME: Line framing and payload decoding for the chat streaming endpoint
// ABOUTME: Frames are "data: <json-or-string>" lines; "data: [DONE]" ends the stream

package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// ErrMalformedFrame is returned for data lines whose payload cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// EventKind discriminates the decoded frame payloads.
type EventKind int

const (
	// EventRaw is a bare JSON string; it is answer content.
	EventRaw EventKind = iota + 1
	// EventContent is {"type":"content"}.
	EventContent
	// EventThinking is {"type":"thinking"}; it starts the thinking phase.
	EventThinking
	// EventThinkingEnd is {"type":"thinking_end"}; it ends the thinking phase.
	EventThinkingEnd
	// EventDone is the [DONE] marker.
	EventDone
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventRaw:
		return "raw"
	case EventContent:
		return "content"
	case EventThinking:
		return "thinking"
	case EventThinkingEnd:
		return "thinking_end"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one decoded frame.
type Event struct {
	Kind EventKind
	Text string
}

// IsContent reports whether the event contributes to the answer text.
func (e Event) IsContent() bool {
	return e.Kind == EventRaw || e.Kind == EventContent
}

// LineCursor extracts complete lines from a buffer that only ever grows.
// The zero value starts at offset 0.
type LineCursor struct {
	offset int
}

// Next returns the lines completed since the previous call. Bytes after the
// last newline stay unconsumed: the offset is rolled back to the start of the
// partial line so a later call sees it again once it is terminated.
func (c *LineCursor) Next(raw []byte) []string {
	if c.offset >= len(raw) {
		return nil
	}

	fresh := raw[c.offset:]
	c.offset = len(raw)

	parts := bytes.Split(fresh, []byte{'\n'})
	partial := parts[len(parts)-1]
	c.offset -= len(partial)

	complete := parts[:len(parts)-1]
	if len(complete) == 0 {
		return nil
	}

	lines := make([]string, len(complete))
	for i, p := range complete {
		lines[i] = string(bytes.TrimSuffix(p, []byte{'\r'}))
	}
	return lines
}

// Offset returns how many bytes have been consumed as complete lines.
func (c *LineCursor) Offset() int {
	return c.offset
}

// framePayload is the object form of a frame. The backend nests text under
// data.content; a flat content field is accepted too.
type framePayload struct {
	Type    string  `json:"type"`
	Content *string `json:"content"`
	Data    *struct {
		Content string `json:"content"`
	} `json:"data"`
}

func (p *framePayload) text() string {
	if p.Content != nil {
		return *p.Content
	}
	if p.Data != nil {
		return p.Data.Content
	}
	return ""
}

// ParseLine decodes a single line. ok is false for lines that are not data
// frames (blank separators, event: or id: fields, comments); those never
// contribute to a message. A data frame that cannot be decoded returns an
// error wrapping ErrMalformedFrame.
func ParseLine(line string) (ev Event, ok bool, err error) {
	payload, found := strings.CutPrefix(line, dataPrefix)
	if !found {
		return Event{}, false, nil
	}

	if payload == doneMarker {
		return Event{Kind: EventDone}, true, nil
	}

	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return Event{}, true, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return Event{}, true, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return Event{Kind: EventRaw, Text: s}, true, nil

	case '{':
		var p framePayload
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return Event{}, true, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		switch p.Type {
		case "thinking":
			return Event{Kind: EventThinking, Text: p.text()}, true, nil
		case "thinking_end":
			return Event{Kind: EventThinkingEnd}, true, nil
		case "content":
			return Event{Kind: EventContent, Text: p.text()}, true, nil
		default:
			return Event{}, true, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, p.Type)
		}

	default:
		return Event{}, true, fmt.Errorf("%w: unexpected payload %.20q", ErrMalformedFrame, trimmed)
	}
}
