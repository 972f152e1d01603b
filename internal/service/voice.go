package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/port/speech"
)

// Greeting opens every voice session.
const Greeting = "Hello! I'm your healthcare appointment assistant. To get started, could you please tell me your full name?"

const msgVoiceRetry = "I didn't catch that. Could you please repeat?"

// VoiceShell drives one conversation from a speech port until the task
// reaches a terminal state.
type VoiceShell struct {
	svc       *ProtocolService
	io        speech.IO
	maxMisses int
}

// NewVoiceShell creates a VoiceShell. maxMisses bounds the capture failures
// tolerated before the first message creates a task.
func NewVoiceShell(svc *ProtocolService, io speech.IO, maxMisses int) *VoiceShell {
	if maxMisses < 1 {
		maxMisses = 3
	}
	return &VoiceShell{svc: svc, io: io, maxMisses: maxMisses}
}

// Run converses until the task terminates, the context ends or the speech
// port fails for a reason other than a capture failure. It returns the final
// task, or nil when no task was ever created.
func (v *VoiceShell) Run(ctx context.Context) (*task.Task, error) {
	if err := v.io.Speak(ctx, Greeting); err != nil {
		return nil, fmt.Errorf("speak greeting: %w", err)
	}

	var (
		current *task.Task
		misses  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return current, err
		}

		utterance, err := v.io.Listen(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrSpeechIO) {
				return current, fmt.Errorf("listen: %w", err)
			}
			kind := speech.FailureKind(err)
			slog.DebugContext(ctx, "speech capture failed", "kind", kind, "error", err)

			if current == nil {
				misses++
				if misses >= v.maxMisses {
					return nil, fmt.Errorf("%w: no usable speech captured", domain.ErrSessionAborted)
				}
				if err := v.io.Speak(ctx, msgVoiceRetry); err != nil {
					return nil, fmt.Errorf("speak: %w", err)
				}
				continue
			}

			t, err := v.svc.ReportInputFailure(ctx, current.ID, kind)
			if err != nil {
				return current, err
			}
			current = t
			if done, err := v.reply(ctx, t); done || err != nil {
				return current, err
			}
			continue
		}

		utterance = strings.TrimSpace(utterance)
		if utterance == "" {
			continue
		}

		req := SendRequest{Message: task.Message{
			Role:  task.RoleUser,
			Parts: task.Parts{task.TextPart{Text: utterance}},
		}}
		if current != nil {
			req.TaskID = current.ID
		}
		t, err := v.svc.CreateOrContinue(ctx, req)
		if err != nil {
			return current, err
		}
		current = t
		if done, err := v.reply(ctx, t); done || err != nil {
			return current, err
		}
	}
}

// reply speaks the latest agent message and reports whether the task is over.
func (v *VoiceShell) reply(ctx context.Context, t *task.Task) (bool, error) {
	if text := t.LatestAgentMessage().Text(); text != "" {
		if err := v.io.Speak(ctx, text); err != nil {
			return true, fmt.Errorf("speak: %w", err)
		}
	}
	return t.IsTerminal(), nil
}
