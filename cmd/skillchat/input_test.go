// ABOUTME: Tests for the single-goroutine line reader
// ABOUTME: Covers interrupted reads, handing the pending line to the next read, and EOF

package main

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader_InterruptedReadKeepsNextLine(t *testing.T) {
	pr, pw := io.Pipe()
	lr := newLineReader(pr)
	interrupts := make(chan os.Signal, 1)
	ctx := context.Background()

	interrupts <- os.Interrupt
	_, err := lr.Read(ctx, interrupts)
	require.ErrorIs(t, err, errInterrupted)

	// typed after the abandoned read; must reach the next one
	go func() {
		_, _ = pw.Write([]byte("y\nsecond\n"))
	}()

	line, err := lr.Read(ctx, interrupts)
	require.NoError(t, err)
	assert.Equal(t, "y", line)

	line, err = lr.Read(ctx, interrupts)
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	require.NoError(t, pw.Close())
	_, err = lr.Read(ctx, interrupts)
	assert.ErrorIs(t, err, io.EOF)
	_, err = lr.Read(ctx, interrupts)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_ScansOnlyOnDemand(t *testing.T) {
	pr, pw := io.Pipe()
	lr := newLineReader(pr)

	// nothing has asked for a line, so nobody reads the pipe
	written := make(chan struct{})
	go func() {
		_, _ = pw.Write([]byte("hello\n"))
		close(written)
	}()
	select {
	case <-written:
		t.Fatal("input was consumed before any read was requested")
	case <-time.After(50 * time.Millisecond):
	}

	line, err := lr.Read(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
	<-written
}

func TestLineReader_ContextCanceled(t *testing.T) {
	pr, _ := io.Pipe()
	lr := newLineReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := lr.Read(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
