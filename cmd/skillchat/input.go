// ABOUTME: Line input owned by a single scanning goroutine
// ABOUTME: Reads can be abandoned on Ctrl+C; the line still in flight goes to the next read

package main

import (
	"bufio"
	"context"
	"io"
	"os"
)

// lineReader scans only when a line has been asked for, so stdin is left
// alone while term.ReadPassword reads the terminal. Read is not safe for
// concurrent use.
type lineReader struct {
	requests chan struct{}
	lines    chan string
	err      error // set before lines is closed

	pending bool
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{
		requests: make(chan struct{}, 1),
		lines:    make(chan string),
	}
	go lr.scan(bufio.NewScanner(r))
	return lr
}

func (lr *lineReader) scan(sc *bufio.Scanner) {
	for range lr.requests {
		if !sc.Scan() {
			lr.err = sc.Err()
			close(lr.lines)
			return
		}
		lr.lines <- sc.Text()
	}
}

// Read returns the next line, or io.EOF once input is exhausted. It gives up
// on ctx or an interrupt; the outstanding request is then reused by the next Read.
func (lr *lineReader) Read(ctx context.Context, interrupts <-chan os.Signal) (string, error) {
	if !lr.pending {
		lr.pending = true
		lr.requests <- struct{}{}
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-interrupts:
		return "", errInterrupted
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return "", lr.err
			}
			return "", io.EOF
		}
		lr.pending = false
		return line, nil
	}
}
