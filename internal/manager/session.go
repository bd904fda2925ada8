package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"codegend/internal/cancel"
	"codegend/internal/llm"
	"codegend/internal/store"
	"codegend/pkg/types"
)

// Result summarizes a finished session.
type Result struct {
	ID      string
	Phase   Phase
	Outcome OutcomeKind
	Tokens  int
	Err     error
}

// session is the state of one Run call. It is owned by that call only.
type session struct {
	id     string
	prompt string
	model  string
	phase  Phase
	output strings.Builder
	tokens int
	sig    *cancel.Signal
	log    zerolog.Logger
}

func codePrompt(prompt string) string {
	return "You are a code generator. Output ONLY executable code. with markdown, no headers, no explanations, " +
		"no comments outside code, no text before or after code. Just pure code starting immediately.\n\n" +
		"Request: " + prompt + "\n\nCode:"
}

// Run drives one generation session over t until it reaches a terminal
// phase. Transport failures never surface as errors here; they only end the
// loop. t is always closed on return.
func (m *Manager) Run(ctx context.Context, id string, t Transport) Result {
	defer t.Close()
	log := m.log.With().Str("generation_id", id).Logger()

	rec, err := m.store.Find(ctx, id)
	if err != nil {
		msg := "Failed to load generation"
		if IsRecordNotFound(err) {
			err = ErrRecordNotFound(id)
			msg = err.Error()
		}
		m.notify(ctx, t, types.NewError(msg))
		return Result{ID: id, Phase: PhaseCreated, Outcome: OutcomeRejected, Err: err}
	}
	if rec.Status.Terminal() {
		m.notify(ctx, t, types.NewError(fmt.Sprintf("Generation already %s", rec.Status)))
		return Result{ID: id, Phase: PhaseCreated, Outcome: OutcomeRejected}
	}

	release, err := m.beginSession(ctx)
	if err != nil {
		m.notify(ctx, t, types.NewError(err.Error()))
		return Result{ID: id, Phase: PhaseCreated, Outcome: OutcomeRejected, Err: err}
	}
	defer release()

	sig, err := m.cancels.Register(id)
	if err != nil {
		err = alreadyStreamingError{id: id}
		m.notify(ctx, t, types.NewError(err.Error()))
		return Result{ID: id, Phase: PhaseCreated, Outcome: OutcomeRejected, Err: err}
	}
	defer m.cancels.Release(id, sig)
	if !m.Ready() {
		// Shutdown began after admission but before registration.
		sig.Set(cancel.ReasonShutdown)
	}
	// Stop, fail and delete write the record before triggering, so one that
	// ran while this session waited for admission shows up here.
	if cur, err := m.store.Find(ctx, id); err != nil || cur.Status.Terminal() {
		if err != nil && !IsRecordNotFound(err) {
			m.notify(ctx, t, types.NewError("Failed to load generation"))
			return Result{ID: id, Phase: PhaseCreated, Outcome: OutcomeRejected, Err: err}
		}
		log.Info().Msg("finalized before streaming began")
		m.notify(ctx, t, types.NewStatus(string(types.StatusStopped)))
		sessionsFinished.WithLabelValues(PhaseStopped.String(), OutcomeCancelled.String()).Inc()
		return Result{ID: id, Phase: PhaseStopped, Outcome: OutcomeCancelled}
	}

	m.gauge.Enter()
	sessionsActive.Inc()
	defer func() {
		m.gauge.Exit()
		sessionsActive.Dec()
	}()

	model := rec.Model
	if model == "" {
		model = m.models.Current()
	}
	s := &session{id: id, prompt: rec.Prompt, model: model, phase: PhaseCreated, sig: sig, log: log}
	start := time.Now()
	m.pub.Publish(Event{Name: EventSessionStart, GenerationID: id, Fields: map[string]any{"model": model}})
	log.Info().Str("model", model).Msg("session start")

	var out outcome
	if err := m.send(ctx, t, types.NewStatus(string(types.StatusProcessing))); err != nil {
		out = transportGone(err)
	} else {
		s.phase = PhaseStreaming
		out = m.stream(ctx, s, t)
	}
	res := m.finalize(ctx, s, t, out)

	sessionsFinished.WithLabelValues(res.Phase.String(), res.Outcome.String()).Inc()
	m.pub.Publish(Event{Name: EventSessionEnd, GenerationID: id, Fields: map[string]any{
		"phase":   res.Phase.String(),
		"outcome": res.Outcome.String(),
		"tokens":  res.Tokens,
	}})
	ev := log.Info()
	if res.Err != nil {
		ev = ev.Err(res.Err)
	}
	ev.Str("phase", res.Phase.String()).Str("outcome", res.Outcome.String()).
		Int("tokens", res.Tokens).Dur("dur", time.Since(start)).Msg("session end")
	return res
}

// stream relays tokens until the backend finishes, the signal is set, the
// backend fails or the client goes away.
func (m *Manager) stream(ctx context.Context, s *session, t Transport) outcome {
	ts, err := m.backend.Stream(ctx, llm.Request{Model: s.model, Prompt: codePrompt(s.prompt)}, s.sig)
	if err != nil {
		return m.streamErr(ctx, s, err)
	}
	defer ts.Close()
	for {
		tok, err := ts.Next()
		if err == io.EOF {
			if s.sig.IsSet() {
				return cancelled()
			}
			return tokensExhausted()
		}
		if err != nil {
			return m.streamErr(ctx, s, err)
		}
		if err := m.send(ctx, t, types.NewToken(tok)); err != nil {
			return transportGone(err)
		}
		s.output.WriteString(tok)
		s.tokens++
		tokensRelayed.Inc()
		if s.tokens%m.progressEvery == 0 {
			if err := m.send(ctx, t, types.NewProgress(s.tokens)); err != nil {
				return transportGone(err)
			}
		}
	}
}

func (m *Manager) streamErr(ctx context.Context, s *session, err error) outcome {
	switch {
	case errors.Is(err, llm.ErrCanceled) || s.sig.IsSet():
		return cancelled()
	case ctx.Err() != nil:
		// The session context only ends when the client connection does.
		return transportGone(ctx.Err())
	default:
		return backendFailure(err)
	}
}

// finalize performs the single terminal transition for out.
func (m *Manager) finalize(ctx context.Context, s *session, t Transport, out outcome) Result {
	res := Result{ID: s.id, Outcome: out.kind, Tokens: s.tokens}
	switch out.kind {
	case OutcomeCancelled:
		res.Phase = m.finishCancelled(ctx, s, t)
	case OutcomeTransportGone:
		// The client can no longer be told anything; its stop beacon or the
		// fail endpoint owns the record.
		res.Phase = PhaseFailed
		res.Err = out.err
	case OutcomeBackendError:
		res.Phase = m.finishFailed(ctx, s, t, out)
		res.Err = out.err
	default:
		res.Phase = m.finishCompleted(ctx, s, t)
	}
	s.phase = res.Phase
	return res
}

func (m *Manager) finishCancelled(ctx context.Context, s *session, t Transport) Phase {
	m.notify(ctx, t, types.NewStatus(string(types.StatusStopped)))
	// Stop, fail and delete requests write the record themselves. Nobody else
	// is left to do it on shutdown.
	if s.sig.Reason() == cancel.ReasonShutdown {
		if err := m.persistStopped(ctx, s.id, s.output.String()); err != nil {
			s.log.Warn().Err(err).Msg("persist stopped on shutdown")
		}
	}
	return PhaseStopped
}

func (m *Manager) finishFailed(ctx context.Context, s *session, t Transport, out outcome) Phase {
	backendErrors.WithLabelValues(out.backend.String()).Inc()
	msg := out.err.Error()
	pctx, cancelWrite := m.persistCtx(ctx)
	defer cancelWrite()
	err := m.store.Finish(pctx, s.id, store.Update{Status: types.StatusFailed, Error: msg})
	switch {
	case err == nil:
		m.notify(ctx, t, types.NewError(msg))
	case errors.Is(err, store.ErrAlreadyTerminal), errors.Is(err, store.ErrNotFound):
		// Someone else finalized first; their state stands.
		s.log.Debug().Err(out.err).Msg("backend failure after external finalize")
	default:
		s.log.Error().Err(err).Msg("persist failed generation")
		m.notify(ctx, t, types.NewError(msg))
	}
	return PhaseFailed
}

func (m *Manager) finishCompleted(ctx context.Context, s *session, t Transport) Phase {
	output := s.output.String()
	lang := m.classify(output)
	filename := m.namer.Synthesize(ctx, s.prompt, lang.Name) + lang.Ext
	if s.sig.IsSet() {
		return m.finishCancelled(ctx, s, t)
	}
	pctx, cancelWrite := m.persistCtx(ctx)
	defer cancelWrite()
	err := m.store.Finish(pctx, s.id, store.Update{
		Status:   types.StatusCompleted,
		Output:   &output,
		Language: lang.Name,
		Filename: filename,
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyTerminal), errors.Is(err, store.ErrNotFound):
		m.notify(ctx, t, types.NewStatus(string(types.StatusStopped)))
		return PhaseStopped
	default:
		s.log.Error().Err(err).Msg("persist completed generation")
		m.notify(ctx, t, types.NewError("Failed to save generation"))
		return PhaseFailed
	}
	m.notify(ctx, t, types.NewDone(lang.Name, filename, s.tokens))
	return PhaseCompleted
}
