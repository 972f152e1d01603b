// Package console implements the speech port on a text terminal: the
// caller types instead of speaking and replies are printed.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/careline/internal/port/speech"
)

const (
	userPrompt  = "you> "
	agentPrefix = "agent> "
)

type line struct {
	text string
	err  error
}

// Console reads caller lines in the background so Listen can time out.
type Console struct {
	out     io.Writer
	lines   chan line
	timeout time.Duration
	closeFn func() error
	once    sync.Once
}

var _ speech.IO = (*Console)(nil)

// New creates a Console over plain streams. A timeout of zero waits forever.
func New(in io.Reader, out io.Writer, timeout time.Duration) *Console {
	sc := bufio.NewScanner(in)
	read := func() (string, error) {
		if sc.Scan() {
			return sc.Text(), nil
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return start(read, out, timeout, func() error { return nil })
}

// NewStdio creates a Console on stdin and stdout. When stdin is a terminal
// it is switched to raw mode for line editing; Close restores it.
func NewStdio(timeout time.Duration) (*Console, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return New(os.Stdin, os.Stdout, timeout), nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("terminal raw mode: %w", err)
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, userPrompt)
	return start(t.ReadLine, t, timeout, func() error { return term.Restore(fd, state) }), nil
}

func start(read func() (string, error), out io.Writer, timeout time.Duration, closeFn func() error) *Console {
	c := &Console{out: out, lines: make(chan line), timeout: timeout, closeFn: closeFn}
	go func() {
		for {
			text, err := read()
			c.lines <- line{text: text, err: err}
			if err != nil {
				return
			}
		}
	}()
	return c
}

// Listen returns the next typed line. A blank line is reported as unclear
// speech and no input before the timeout as a speech timeout. End of input
// is returned as io.EOF.
func (c *Console) Listen(ctx context.Context) (string, error) {
	var timer <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer:
		return "", speech.ErrTimeout
	case l := <-c.lines:
		if l.err != nil {
			return "", l.err
		}
		text := strings.TrimSpace(l.text)
		if text == "" {
			return "", speech.ErrUnclear
		}
		return text, nil
	}
}

// Speak prints an agent reply.
func (c *Console) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "%s%s\n", agentPrefix, text)
	return err
}

// Close restores the terminal, if it was changed.
func (c *Console) Close() error {
	var err error
	c.once.Do(func() { err = c.closeFn() })
	return err
}
