package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Strob0t/careline/internal/adapter/console"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/service"
)

// runConsole holds one intake conversation on the terminal.
func runConsole(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 60*time.Second, "how long to wait for each answer")
	misses := fs.Int("misses", 3, "failed captures tolerated before the conversation starts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	term, err := console.NewStdio(*timeout)
	if err != nil {
		return err
	}
	defer func() { _ = term.Close() }()

	final, err := service.NewVoiceShell(a.protocol, term, *misses).Run(ctx)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if final != nil {
		slog.Info("conversation ended", "task_id", final.ID, "state", final.Status.State)
	}
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
