package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/port/speech"
)

func TestListen(t *testing.T) {
	c := New(strings.NewReader("hello there\n   \nbye\n"), io.Discard, time.Second)
	ctx := context.Background()

	got, err := c.Listen(ctx)
	if err != nil || got != "hello there" {
		t.Fatalf("first = %q, %v", got, err)
	}
	if _, err := c.Listen(ctx); !errors.Is(err, speech.ErrUnclear) {
		t.Errorf("blank line err = %v, want ErrUnclear", err)
	}
	if got, _ := c.Listen(ctx); got != "bye" {
		t.Errorf("third = %q", got)
	}
	_, err = c.Listen(ctx)
	if !errors.Is(err, io.EOF) {
		t.Errorf("end of input err = %v, want io.EOF", err)
	}
	if errors.Is(err, domain.ErrSpeechIO) {
		t.Error("end of input must not look like a capture failure")
	}
}

func TestListenTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	c := New(pr, io.Discard, 20*time.Millisecond)

	_, err := c.Listen(context.Background())
	if !errors.Is(err, speech.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if speech.FailureKind(err) != "timeout" {
		t.Errorf("kind = %s", speech.FailureKind(err))
	}
}

func TestListenCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	c := New(pr, io.Discard, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Listen(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSpeak(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out, 0)
	if err := c.Speak(context.Background(), "What is your name?"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "agent> What is your name?\n" {
		t.Errorf("output = %q", out.String())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
