package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/gate"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/logger"
	"github.com/Strob0t/careline/internal/port/capability"
)

// Task metadata keys holding the remote triage correlation ids.
const (
	MetaTriageTaskID    = "triage_task_id"
	MetaTriageContextID = "triage_context_id"
)

// Artifact names.
const (
	ArtifactTriage      = "Medical Triage Assessment"
	ArtifactAppointment = "Appointment Confirmation"
)

const (
	msgInternalApology    = "I apologize, I had a technical issue. Could you please repeat that?"
	msgTriageUnavailable  = "I wasn't able to start the medical assessment right now, but we can continue with scheduling."
	msgTriageFallback     = "I'm sorry, I couldn't complete the medical assessment right now. Let me help you continue with scheduling your appointment."
	msgTriageContinue     = "Let me help you continue with scheduling your appointment."
	msgDiscoveryFound     = "Great! I found your insurance: %s, Policy ID: %s."
	msgDiscoveryMissed    = "I had some trouble finding your insurance, but we can proceed."
	msgEligibilityCopay   = "Your copay for this visit is $%s."
	msgEligibilityMissed  = "Your insurance %s with Policy ID %s is on file, but I couldn't confirm your copay right now."
	msgConfirmed          = "Perfect, %s! Your appointment is confirmed for %s. Your confirmation number is %s. Please keep this number for your records. Thank you for calling!"
	msgCallBackPartial    = "Thank you for the information you provided. Please call back when you're ready to complete your appointment scheduling."
	msgCallBackIncomplete = "Thank you for calling. Please call back when you have all the information needed to schedule your appointment."
	msgAbortPrefix        = "I'm sorry, I'm having trouble understanding right now."
)

var (
	farewellClause = clauseRe(`good ?bye|bye(?: bye)?|hang up|end (?:the |this )?call|that's all|that is all|we're done|quit|never ?mind`)
	// Answers like "that's all" belong to a running sub-dialog.
	hangUpClause = clauseRe(`good ?bye|bye(?: bye)?|hang up|end (?:the |this )?call`)
	courtesyRe   = regexp.MustCompile(`^(?:ok(?:ay)?|alright|thanks|thank you)$`)

	clauseSplitRe = regexp.MustCompile(`[,.;:!?]+`)
	nonWordRe     = regexp.MustCompile(`[^a-z' ]+`)
)

// clauseRe matches a normalized clause made of one farewell phrase with
// optional courtesy words around it.
func clauseRe(phrases string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:(?:ok(?:ay)?|well|so|alright|thanks|thank you|please|i want to|i'd like to|let's|you can)\s+)*` +
		`(?:` + phrases + `)` +
		`(?:\s+(?:then|now|for now|for today|here|thanks|thank you|bye))*$`)
}

// clauses lowercases the utterance and splits it on punctuation.
func clauses(utterance string) []string {
	u := strings.ToLower(strings.ReplaceAll(utterance, "’", "'"))
	var out []string
	for _, c := range clauseSplitRe.Split(u, -1) {
		if c = strings.Join(strings.Fields(nonWordRe.ReplaceAllString(c, " ")), " "); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// IsFarewell reports whether the caller asked to end the conversation. The
// utterance must close with a farewell clause.
func IsFarewell(utterance string) bool {
	cs := clauses(utterance)
	return len(cs) > 0 && farewellClause.MatchString(cs[len(cs)-1])
}

// IsHangUp reports whether the whole utterance is an explicit request to end
// the call. It is the only farewell honored during a sub-dialog.
func IsHangUp(utterance string) bool {
	hangUp := false
	for _, c := range clauses(utterance) {
		switch {
		case hangUpClause.MatchString(c):
			hangUp = true
		case courtesyRe.MatchString(c):
		default:
			return false
		}
	}
	return hangUp
}

// OrchestratorConfig holds the per-turn rules.
type OrchestratorConfig struct {
	MaxConsecutiveErrors int
	MaxTriageAttempts    int
	TriageRetryPolicy    string
	HistoryWindow        int
	DefaultAge           int
	DefaultSex           string
}

// NewOrchestratorConfig collects the orchestrator settings from the loaded config.
func NewOrchestratorConfig(o config.Orchestrator, tr config.Triage) OrchestratorConfig {
	return OrchestratorConfig{
		MaxConsecutiveErrors: o.MaxConsecutiveErrors,
		MaxTriageAttempts:    o.MaxTriageAttempts,
		TriageRetryPolicy:    o.TriageRetryPolicy,
		HistoryWindow:        o.HistoryWindow,
		DefaultAge:           tr.DefaultAge,
		DefaultSex:           tr.DefaultSex,
	}
}

// turnOutcome is what a pipeline run decided before the task is transitioned.
type turnOutcome struct {
	reply         string
	primaryFailed bool
	closeReason   session.EndReason
}

// Orchestrator drives one conversation turn: extraction, the triage
// sub-dialog, gated insurance calls, completion and the closing sequence.
type Orchestrator struct {
	gw       *Gateway
	machine  *TaskMachine
	recorder *Recorder
	cfg      OrchestratorConfig
	metrics  *cfotel.Metrics
	now      func() time.Time
	newCode  func() string
}

// NewOrchestrator creates an Orchestrator. metrics may be nil.
func NewOrchestrator(gw *Gateway, machine *TaskMachine, rec *Recorder, cfg OrchestratorConfig, metrics *cfotel.Metrics) *Orchestrator {
	if cfg.MaxConsecutiveErrors < 1 {
		cfg.MaxConsecutiveErrors = 3
	}
	return &Orchestrator{
		gw:       gw,
		machine:  machine,
		recorder: rec,
		cfg:      cfg,
		metrics:  metrics,
		now:      time.Now,
		newCode:  session.NewConfirmationCode,
	}
}

// Turn processes the user message that was just appended to t. It works on
// the uncommitted copies handed out by the TaskStore and always leaves t in
// input-required or a terminal state. Capability failures and internal
// errors degrade into the reply; only lifecycle violations are returned.
func (o *Orchestrator) Turn(ctx context.Context, t *task.Task, sess *session.Session, utterance string) (err error) {
	ctx = logger.WithTaskID(ctx, t.ID)
	ctx, span := cfotel.StartTurnSpan(ctx, t.ID, t.ContextID)
	defer func() { cfotel.EndSpan(span, err) }()

	sess.Turns++

	snapTask, err := t.Clone()
	if err != nil {
		return fmt.Errorf("snapshot task: %w", err)
	}
	snapSess, err := sess.Clone()
	if err != nil {
		return fmt.Errorf("snapshot session: %w", err)
	}

	out, runErr := o.run(ctx, t, sess, utterance)
	if runErr != nil {
		// Roll back whatever the failed pipeline touched.
		*t, *sess = *snapTask, *snapSess
		slog.ErrorContext(ctx, "turn failed", "error", runErr)
		if t.Status.State == task.StateSubmitted {
			return o.close(ctx, t, sess, session.EndAborted, "")
		}
		out = turnOutcome{reply: msgInternalApology, primaryFailed: true}
	}
	return o.finish(ctx, t, sess, out)
}

// InputFailureKind classifies a speech capture failure.
type InputFailureKind string

const (
	InputTimeout InputFailureKind = "timeout"
	InputUnclear InputFailureKind = "unclear"
	InputNetwork InputFailureKind = "network"
	InputError   InputFailureKind = "error"
)

var reprompts = map[InputFailureKind][]string{
	InputTimeout: {
		"I didn't hear anything. Please try speaking again.",
		"I'm still here. Could you please speak up?",
	},
	InputUnclear: {
		"I couldn't understand that clearly. Could you please speak more slowly?",
		"I'm having trouble understanding. Could you repeat that?",
	},
	InputNetwork: {
		"I'm having a connection issue. Please try again in a moment.",
		"There's a network issue. Could you repeat that?",
	},
	InputError: {
		"I had a technical issue. Could you please try again?",
		"Sorry, I had a problem. Please repeat that.",
	},
}

// ParseInputFailureKind validates a reported failure kind.
func ParseInputFailureKind(s string) (InputFailureKind, error) {
	k := InputFailureKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := reprompts[k]; !ok {
		return "", fmt.Errorf("%w: unknown input failure kind %q", domain.ErrValidation, s)
	}
	return k, nil
}

// InputFailure handles a turn in which no usable utterance was captured. It
// counts as a soft-fail and re-prompts the caller.
func (o *Orchestrator) InputFailure(ctx context.Context, t *task.Task, sess *session.Session, kind InputFailureKind) error {
	ctx = logger.WithTaskID(ctx, t.ID)
	options := reprompts[kind]
	if len(options) == 0 {
		options = reprompts[InputError]
	}
	n := sess.ConsecutiveErrors
	reply := options[n%len(options)]
	if n+1 >= 2 {
		reply += " If you continue to have issues, you may want to call back later."
	}
	slog.InfoContext(ctx, "speech input failed", "kind", kind, "consecutive_errors", n+1)
	return o.finish(ctx, t, sess, turnOutcome{reply: reply, primaryFailed: true})
}

// run executes the pipeline and converts panics into errors.
func (o *Orchestrator) run(ctx context.Context, t *task.Task, sess *session.Session, utterance string) (out turnOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during turn: %v", r)
		}
	}()

	if frame, ok := t.ActiveSubProtocol(); ok {
		if IsHangUp(utterance) {
			return turnOutcome{closeReason: session.EndFarewell}, nil
		}
		if frame.Protocol != task.SubProtocolTriage {
			return turnOutcome{}, fmt.Errorf("unknown sub-protocol %q", frame.Protocol)
		}
		return o.triageTurn(ctx, t, sess, frame, utterance), nil
	}
	if IsFarewell(utterance) {
		return turnOutcome{closeReason: session.EndFarewell}, nil
	}
	return o.mainTurn(ctx, t, sess, utterance), nil
}

// finish applies the error counter and moves the task to its next state.
func (o *Orchestrator) finish(ctx context.Context, t *task.Task, sess *session.Session, out turnOutcome) error {
	if out.closeReason != "" {
		return o.close(ctx, t, sess, out.closeReason, out.reply)
	}

	if out.primaryFailed {
		sess.ConsecutiveErrors++
	} else {
		sess.ConsecutiveErrors = 0
	}
	o.metrics.RecordTurn(ctx, string(task.StateInputRequired), out.primaryFailed)

	if sess.ConsecutiveErrors >= o.cfg.MaxConsecutiveErrors {
		abort := fmt.Errorf("%w: %d consecutive errors", domain.ErrSessionAborted, sess.ConsecutiveErrors)
		slog.WarnContext(ctx, "closing session", "error", abort)
		return o.close(ctx, t, sess, session.EndAborted, "")
	}
	return o.machine.Transition(t, task.StateInputRequired, o.machine.AgentMessage(out.reply))
}

func (o *Orchestrator) mainTurn(ctx context.Context, t *task.Task, sess *session.Session, utterance string) turnOutcome {
	ext := o.gw.Extract(ctx, sess, capability.ExtractionRequest{
		Utterance: utterance,
		Snapshot:  sess.Data.Snapshot(),
		History:   o.recentHistory(t),
	})
	if ext.SoftFailed {
		return turnOutcome{reply: ext.Reply, primaryFailed: true}
	}
	o.mergeExtraction(ctx, sess, ext.Fields)

	var notes []string
	if o.triageReady(sess, ext.NeedTriage) {
		reply, started := o.startTriage(ctx, t, sess)
		if started {
			return turnOutcome{reply: reply}
		}
		notes = append(notes, reply)
	}
	notes = append(notes, o.verifyInsurance(ctx, sess)...)

	if ext.Done && gate.Evaluate(gate.Confirmation, sess.Data).Ready && !sess.Data.Has(session.FieldConfirmationCode) {
		code := o.newCode()
		sess.Data.Merge(map[session.Field]string{session.FieldConfirmationCode: code})
		slog.InfoContext(ctx, "confirmation code generated", "code", code)
	}
	if sess.Data.Has(session.FieldConfirmationCode) {
		return turnOutcome{reply: strings.Join(notes, " "), closeReason: session.EndCompleted}
	}
	return turnOutcome{reply: strings.Join(append(notes, ext.Reply), " ")}
}

func (o *Orchestrator) mergeExtraction(ctx context.Context, sess *session.Session, raw map[string]any) {
	fields, rejected := session.FromExtraction(raw)
	if len(rejected) > 0 {
		slog.WarnContext(ctx, "extraction fields outside the session schema dropped", "fields", rejected)
	}
	o.logChanges(ctx, "extraction", sess.Data.Merge(fields))
}

func (o *Orchestrator) logChanges(ctx context.Context, source string, changes []session.Change) {
	for _, c := range changes {
		slog.InfoContext(ctx, "session field updated", "source", source, "field", c.Field, "old", c.Old, "new", c.New)
	}
}

func (o *Orchestrator) recentHistory(t *task.Task) []capability.HistoryLine {
	// The last entry is the utterance being processed.
	past := t.History
	if len(past) > 0 {
		past = past[:len(past)-1]
	}
	if n := o.cfg.HistoryWindow; n > 0 && len(past) > n {
		past = past[len(past)-n:]
	}
	lines := make([]capability.HistoryLine, 0, len(past))
	for i := range past {
		role := "user"
		if past[i].Role == task.RoleAgent {
			role = "assistant"
		}
		lines = append(lines, capability.HistoryLine{Role: role, Text: past[i].Text()})
	}
	return lines
}

func (o *Orchestrator) triageReady(sess *session.Session, needTriage bool) bool {
	return needTriage &&
		gate.Evaluate(gate.Triage, sess.Data).Ready &&
		!sess.TriageComplete &&
		!sess.TriageExhausted &&
		sess.TriageAttempts < o.cfg.MaxTriageAttempts
}

// startTriage opens the sub-dialog. started reports whether it now owns the
// following turns; otherwise reply is a note for the main-flow response.
func (o *Orchestrator) startTriage(ctx context.Context, t *task.Task, sess *session.Session) (reply string, started bool) {
	age := o.cfg.DefaultAge
	if a, ok := session.AgeAt(sess.Data.Get(session.FieldDateOfBirth), o.now()); ok {
		age = a
	}
	sex := sess.Data.Get(session.FieldSex)
	if sex == "" {
		sex = o.cfg.DefaultSex
	}

	sess.TriageAttempts++
	turn, err := o.gw.StartTriage(ctx, sess, capability.TriageStart{
		Age:       age,
		Sex:       sex,
		Complaint: sess.Data.Get(session.FieldReason),
	})
	if err != nil {
		slog.WarnContext(ctx, "triage start failed", "attempt", sess.TriageAttempts, "error", err)
		o.triageFailed(sess)
		return msgTriageUnavailable, false
	}

	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.Metadata[MetaTriageTaskID] = turn.Ref.TaskID
	t.Metadata[MetaTriageContextID] = turn.Ref.ContextID

	switch turn.State {
	case capability.TriageInProgress:
		t.PushSubProtocol(task.Frame{
			Protocol:  task.SubProtocolTriage,
			TaskID:    turn.Ref.TaskID,
			ContextID: turn.Ref.ContextID,
		})
		slog.InfoContext(ctx, "triage started", "triage_task_id", turn.Ref.TaskID)
		return turn.Question, true
	case capability.TriagePresentResult, capability.TriagePostResult:
		return o.applyTriageResult(ctx, sess, turn), false
	default:
		o.triageFailed(sess)
		return msgTriageUnavailable, false
	}
}

// triageTurn routes the utterance exclusively to the active triage dialog.
func (o *Orchestrator) triageTurn(ctx context.Context, t *task.Task, sess *session.Session, frame task.Frame, utterance string) turnOutcome {
	ref := capability.TriageRef{TaskID: frame.TaskID, ContextID: frame.ContextID}
	turn, err := o.gw.ContinueTriage(ctx, sess, ref, utterance)
	if err != nil {
		t.PopSubProtocol()
		o.triageFailed(sess)
		slog.WarnContext(ctx, "triage continue failed, returning to main flow", "error", err)
		return turnOutcome{reply: msgTriageFallback, primaryFailed: true}
	}

	switch turn.State {
	case capability.TriageInProgress:
		return turnOutcome{reply: turn.Question}
	case capability.TriagePresentResult, capability.TriagePostResult:
		t.PopSubProtocol()
		return turnOutcome{reply: o.applyTriageResult(ctx, sess, turn) + " " + msgTriageContinue}
	default:
		t.PopSubProtocol()
		o.triageFailed(sess)
		slog.WarnContext(ctx, "triage ended without result", "state", turn.State)
		return turnOutcome{reply: msgTriageFallback}
	}
}

// triageFailed applies the retry policy to a failed attempt.
func (o *Orchestrator) triageFailed(sess *session.Session) {
	if o.cfg.TriageRetryPolicy == config.RetryAllowRetry && sess.TriageAttempts < o.cfg.MaxTriageAttempts {
		return
	}
	sess.TriageExhausted = true
}

func (o *Orchestrator) applyTriageResult(ctx context.Context, sess *session.Session, turn capability.TriageTurn) string {
	sess.TriageComplete = true
	sess.TriageCompletedAt = o.now().UTC()
	if a := turn.Assessment; a != nil {
		sess.TriageNotes = a.Notes
		o.logChanges(ctx, "triage", sess.Data.Merge(map[session.Field]string{
			session.FieldUrgencyLevel: a.UrgencyLevel,
			session.FieldDoctorType:   a.DoctorType,
		}))
	}
	slog.InfoContext(ctx, "triage completed",
		"urgency_level", sess.Data.Get(session.FieldUrgencyLevel),
		"doctor_type", sess.Data.Get(session.FieldDoctorType))

	if turn.Summary != "" {
		return turn.Summary
	}
	doctor := sess.Data.Get(session.FieldDoctorType)
	if doctor == "" {
		doctor = "primary care physician"
	}
	urgency := sess.Data.Get(session.FieldUrgencyLevel)
	if urgency == "" {
		urgency = "routine"
	}
	return fmt.Sprintf("Based on your responses, I recommend seeing a %s. Priority level: %s.", doctor, urgency)
}

// verifyInsurance fires discovery and eligibility at most once per session
// each, as soon as their gates open. It returns announcements for the reply.
func (o *Orchestrator) verifyInsurance(ctx context.Context, sess *session.Session) []string {
	var notes []string
	d := sess.Data

	if !sess.DiscoveryFired && gate.Evaluate(gate.Discovery, d).Ready {
		res, err := o.gw.Discover(ctx, sess, capability.DiscoveryRequest{
			Name:        d.Get(session.FieldName),
			DateOfBirth: d.Get(session.FieldDateOfBirth),
			State:       d.Get(session.FieldState),
		})
		sess.DiscoveryFired = true
		switch {
		case err != nil:
			slog.WarnContext(ctx, "insurance discovery failed", "error", err)
			notes = append(notes, msgDiscoveryMissed)
		case res.Payer == "" || res.MemberID == "":
			slog.InfoContext(ctx, "insurance discovery found no policy")
			notes = append(notes, msgDiscoveryMissed)
		default:
			o.logChanges(ctx, "discovery", d.Merge(map[session.Field]string{
				session.FieldPayer:    res.Payer,
				session.FieldMemberID: res.MemberID,
			}))
			notes = append(notes, fmt.Sprintf(msgDiscoveryFound, res.Payer, res.MemberID))
		}
	}

	if sess.DiscoveryFired && !sess.EligibilityFired && gate.Evaluate(gate.Eligibility, d).Ready {
		res, err := o.gw.CheckEligibility(ctx, sess, capability.EligibilityRequest{
			Name:        d.Get(session.FieldName),
			DateOfBirth: d.Get(session.FieldDateOfBirth),
			MemberID:    d.Get(session.FieldMemberID),
			Payer:       d.Get(session.FieldPayer),
			Provider:    d.Get(session.FieldProviderName),
		})
		sess.EligibilityFired = true
		if err == nil && res.Copay != "" {
			copay := strings.TrimPrefix(res.Copay, "$")
			o.logChanges(ctx, "eligibility", d.Merge(map[session.Field]string{session.FieldCopay: copay}))
			notes = append(notes, fmt.Sprintf(msgEligibilityCopay, copay))
		} else {
			if err != nil {
				slog.WarnContext(ctx, "eligibility check failed", "error", err)
			}
			notes = append(notes, fmt.Sprintf(msgEligibilityMissed, d.Get(session.FieldPayer), d.Get(session.FieldMemberID)))
		}
	}
	return notes
}

// close runs the closing sequence: closing message and terminal transition.
// The session record is claimed and written by the caller of Turn.
func (o *Orchestrator) close(ctx context.Context, t *task.Task, sess *session.Session, reason session.EndReason, prefix string) error {
	sess.Close(reason, o.now().UTC())

	msg := o.closingMessage(sess, reason)
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		msg = prefix + " " + msg
	}

	target := task.StateFailed
	var artifacts []task.Artifact
	if reason != session.EndAborted {
		target = task.StateCompleted
		artifacts = o.artifacts(sess)
		// A conversation may end on its very first message.
		if t.Status.State == task.StateSubmitted {
			if err := o.machine.Transition(t, task.StateInputRequired, nil); err != nil {
				return err
			}
		}
	}
	if err := o.machine.Transition(t, target, o.machine.AgentMessage(msg), artifacts...); err != nil {
		return err
	}
	o.metrics.RecordTurn(ctx, string(target), reason == session.EndAborted)
	slog.InfoContext(ctx, "session closed", "reason", reason, "state", target, "turns", sess.Turns)
	return nil
}

// claimRecord runs at the end of a turn's update. It reports whether the turn
// closed the session and the caller must write the record once committed.
func (o *Orchestrator) claimRecord(sess *session.Session) bool {
	return o.recorder.Claim(sess)
}

// writeRecord persists the record claimed by a committed turn.
func (o *Orchestrator) writeRecord(ctx context.Context, t *task.Task, sess *session.Session) {
	// The recorder logs a failed write.
	_ = o.recorder.Record(logger.WithTaskID(ctx, t.ID), t, sess)
}

func (o *Orchestrator) closingMessage(sess *session.Session, reason session.EndReason) string {
	d := sess.Data
	if code := d.Get(session.FieldConfirmationCode); code != "" {
		name := d.Get(session.FieldName)
		if name == "" {
			name = "Patient"
		}
		when := d.Get(session.FieldPreferredDate)
		if tm := d.Get(session.FieldPreferredTime); tm != "" {
			when += " at " + tm
		}
		return fmt.Sprintf(msgConfirmed, name, when, code)
	}

	msg := msgCallBackIncomplete
	if gate.CompletionPercentage(d) > 50 {
		msg = msgCallBackPartial
	}
	if reason == session.EndAborted {
		msg = msgAbortPrefix + " " + msg
	}
	return msg
}

func (o *Orchestrator) artifacts(sess *session.Session) []task.Artifact {
	d := sess.Data
	var out []task.Artifact
	if sess.TriageComplete {
		out = append(out, task.Artifact{
			Name:        ArtifactTriage,
			Description: "Urgency and recommended specialist from the medical triage dialog",
			Parts: task.Parts{task.DataPart{Data: map[string]any{
				"urgency_level": d.Get(session.FieldUrgencyLevel),
				"doctor_type":   d.Get(session.FieldDoctorType),
				"notes":         sess.TriageNotes,
				"completed_at":  sess.TriageCompletedAt.Format(time.RFC3339),
			}}},
		})
	}
	if code := d.Get(session.FieldConfirmationCode); code != "" {
		out = append(out, task.Artifact{
			Name:        ArtifactAppointment,
			Description: "Booked appointment details",
			Parts: task.Parts{task.DataPart{Data: map[string]any{
				"confirmation_code": code,
				"name":              d.Get(session.FieldName),
				"preferred_date":    d.Get(session.FieldPreferredDate),
				"preferred_time":    d.Get(session.FieldPreferredTime),
				"provider_name":     d.Get(session.FieldProviderName),
				"payer":             d.Get(session.FieldPayer),
				"member_id":         d.Get(session.FieldMemberID),
				"copay":             d.Get(session.FieldCopay),
			}}},
		})
	}
	return out
}
