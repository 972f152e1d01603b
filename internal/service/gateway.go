package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/port/capability"
	"github.com/Strob0t/careline/internal/resilience"
)

// Capability names used in call logs, breakers and metrics.
const (
	CapExtraction = "extraction"
	CapTriage     = "triage"
	CapInsurance  = "insurance"
)

// ExtractionFallbackReply is returned when extraction cannot be used.
const ExtractionFallbackReply = "I understand. Could you please repeat that?"

// ExtractOutcome is an extraction result that never carries an error.
// SoftFailed reports that Extraction is the canned fallback.
type ExtractOutcome struct {
	capability.Extraction
	SoftFailed bool
}

// Gateway wraps the external capabilities with per-capability timeouts and
// circuit breakers, a shared concurrency limit and a call log on the session.
// It performs no retries.
type Gateway struct {
	extractor capability.Extractor
	triage    capability.Triage
	insurance capability.Insurance

	breakers map[string]*resilience.Breaker
	pool     *resilience.Pool
	timeouts map[string]time.Duration
	metrics  *cfotel.Metrics
	now      func() time.Time
}

// NewGateway creates a Gateway. metrics may be nil.
func NewGateway(ex capability.Extractor, tr capability.Triage, in capability.Insurance, gw config.Gateway, br config.Breaker, metrics *cfotel.Metrics) *Gateway {
	g := &Gateway{
		extractor: ex,
		triage:    tr,
		insurance: in,
		breakers: map[string]*resilience.Breaker{
			CapExtraction: resilience.NewBreaker(CapExtraction, br.MaxFailures, br.Timeout),
			CapTriage:     resilience.NewBreaker(CapTriage, br.MaxFailures, br.Timeout),
			CapInsurance:  resilience.NewBreaker(CapInsurance, br.MaxFailures, br.Timeout),
		},
		pool: resilience.NewPool(gw.MaxConcurrent),
		timeouts: map[string]time.Duration{
			CapExtraction: gw.ExtractionTimeout,
			CapTriage:     gw.TriageTimeout,
			CapInsurance:  gw.InsuranceTimeout,
		},
		metrics: metrics,
		now:     time.Now,
	}
	for _, b := range g.breakers {
		b.OnStateChange(logBreakerChange)
	}
	return g
}

func logBreakerChange(name, from, to string) {
	level := slog.LevelInfo
	if to == "open" {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "capability circuit changed", "capability", name, "from", from, "to", to)
}

// BreakerStates reports the circuit state of every capability.
func (g *Gateway) BreakerStates() map[string]string {
	out := make(map[string]string, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.State()
	}
	return out
}

// Extract never fails: transport and parse errors yield the fallback reply
// with an empty extraction.
func (g *Gateway) Extract(ctx context.Context, sess *session.Session, req capability.ExtractionRequest) ExtractOutcome {
	res, err := invoke(ctx, g, sess, CapExtraction, "extract",
		map[string]any{"utterance": req.Utterance, "snapshot": req.Snapshot},
		func(ctx context.Context) (capability.Extraction, error) {
			return g.extractor.Extract(ctx, req)
		})
	if err != nil {
		slog.WarnContext(ctx, "extraction soft-failed", "error", err, "parse_error", errors.Is(err, domain.ErrExtractionParse))
		return ExtractOutcome{Extraction: capability.Extraction{Reply: ExtractionFallbackReply}, SoftFailed: true}
	}
	if res.Reply == "" {
		res.Reply = ExtractionFallbackReply
	}
	return ExtractOutcome{Extraction: res}
}

// StartTriage opens a triage sub-dialog.
func (g *Gateway) StartTriage(ctx context.Context, sess *session.Session, req capability.TriageStart) (capability.TriageTurn, error) {
	return invoke(ctx, g, sess, CapTriage, "start",
		map[string]any{"age": req.Age, "sex": req.Sex, "complaint": req.Complaint},
		func(ctx context.Context) (capability.TriageTurn, error) {
			return g.triage.Start(ctx, req)
		})
}

// ContinueTriage forwards a caller answer to the active triage sub-dialog.
func (g *Gateway) ContinueTriage(ctx context.Context, sess *session.Session, ref capability.TriageRef, answer string) (capability.TriageTurn, error) {
	return invoke(ctx, g, sess, CapTriage, "continue",
		map[string]any{"task_id": ref.TaskID, "context_id": ref.ContextID, "answer": answer},
		func(ctx context.Context) (capability.TriageTurn, error) {
			return g.triage.Continue(ctx, ref, answer)
		})
}

// Discover runs insurance discovery.
func (g *Gateway) Discover(ctx context.Context, sess *session.Session, req capability.DiscoveryRequest) (capability.DiscoveryResult, error) {
	return invoke(ctx, g, sess, CapInsurance, "discovery", toMap(req),
		func(ctx context.Context) (capability.DiscoveryResult, error) {
			return g.insurance.Discovery(ctx, req)
		})
}

// CheckEligibility runs the benefits eligibility check.
func (g *Gateway) CheckEligibility(ctx context.Context, sess *session.Session, req capability.EligibilityRequest) (capability.EligibilityResult, error) {
	return invoke(ctx, g, sess, CapInsurance, "eligibility", toMap(req),
		func(ctx context.Context) (capability.EligibilityResult, error) {
			return g.insurance.Eligibility(ctx, req)
		})
}

// invoke runs one capability call through the pool, breaker and timeout and
// appends its CallRecord to the session once the outcome is known. Every
// returned error wraps domain.ErrCapabilityUnavailable or
// domain.ErrExtractionParse.
func invoke[T any](ctx context.Context, g *Gateway, sess *session.Session, name, op string, request map[string]any, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := cfotel.StartCapabilitySpan(ctx, name, op)

	var (
		res     T
		callErr error
	)
	start := g.now()
	poolErr := g.pool.Run(ctx, func() error {
		return g.breakers[name].Execute(func() error {
			cctx, cancel := context.WithTimeout(ctx, g.timeouts[name])
			defer cancel()
			res, callErr = fn(cctx)
			// A reply that fails to parse still proves the back end is up.
			if errors.Is(callErr, domain.ErrExtractionParse) {
				return nil
			}
			return callErr
		})
	})
	latency := g.now().Sub(start)

	err := callErr
	if err == nil && poolErr != nil {
		err = poolErr
	}
	err = translateCapabilityError(name, op, err)

	rec := session.CallRecord{
		Capability: name,
		Operation:  op,
		Request:    request,
		Success:    err == nil,
		LatencyMs:  latency.Milliseconds(),
		Timestamp:  start.UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Response = toMap(res)
	}
	sess.AddCall(rec)

	g.metrics.RecordCapabilityCall(ctx, name, op, err == nil, latency)
	cfotel.EndSpan(span, err)

	if err != nil {
		var zero T
		return zero, err
	}
	return res, nil
}

func translateCapabilityError(name, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrExtractionParse), errors.Is(err, domain.ErrCapabilityUnavailable):
		return fmt.Errorf("%s %s: %w", name, op, err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Errorf("%w: %s %s: circuit open", domain.ErrCapabilityUnavailable, name, op)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s %s: timed out", domain.ErrCapabilityUnavailable, name, op)
	default:
		return fmt.Errorf("%w: %s %s: %v", domain.ErrCapabilityUnavailable, name, op, err)
	}
}

// toMap renders a request or response as a generic map for the call log.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"value": string(data)}
	}
	return m
}
