package manager

import (
	"context"
	"errors"

	"codegend/internal/cancel"
	"codegend/internal/store"
	"codegend/pkg/types"
)

// Stop cancels the session for id, if any, and records it as stopped with
// the partial output the client observed. Repeated or late stops are no-ops:
// whichever terminal write landed first stands.
//
// The record is written before the signal is triggered. A session still
// waiting for admission either sees the stopped record once it registers or
// is registered in time to receive the signal.
func (m *Manager) Stop(ctx context.Context, id, output string) error {
	err := m.persistStopped(ctx, id, output)
	triggered := m.cancels.Trigger(id, cancel.ReasonStop)
	m.pub.Publish(Event{Name: EventStopRequested, GenerationID: id, Fields: map[string]any{"active": triggered}})
	m.log.Info().Str("generation_id", id).Bool("active", triggered).Int("output_len", len(output)).Msg("stop requested")
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// MarkFailed cancels the session for id, if any, and records errMsg with
// the client's partial output. Only a processing record is changed.
func (m *Manager) MarkFailed(ctx context.Context, id, errMsg, output string) error {
	if _, err := m.store.Find(ctx, id); err != nil {
		if IsRecordNotFound(err) {
			return ErrRecordNotFound(id)
		}
		return err
	}
	u := m.partialUpdate(types.StatusFailed, "failed_generation", output)
	u.Error = errMsg
	pctx, cancelWrite := m.persistCtx(ctx)
	defer cancelWrite()
	err := m.store.Finish(pctx, id, u)
	// Triggered after the write, as in Stop.
	m.cancels.Trigger(id, cancel.ReasonFail)
	m.pub.Publish(Event{Name: EventMarkedFailed, GenerationID: id})
	switch {
	case err == nil, errors.Is(err, store.ErrAlreadyTerminal):
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrRecordNotFound(id)
	}
	return err
}

// persistStopped is the stopped terminal write shared by Stop and shutdown.
// AlreadyTerminal is suppressed.
func (m *Manager) persistStopped(ctx context.Context, id, output string) error {
	u := m.partialUpdate(types.StatusStopped, "stopped_generation", output)
	pctx, cancelWrite := m.persistCtx(ctx)
	defer cancelWrite()
	err := m.store.Finish(pctx, id, u)
	if errors.Is(err, store.ErrAlreadyTerminal) {
		return nil
	}
	return err
}

// partialUpdate records client-observed output. Non-empty output is always
// classified; unrecognized text becomes "text" with a .txt filename. Empty
// output keeps the record's defaults.
func (m *Manager) partialUpdate(status types.GenerationStatus, stem, output string) store.Update {
	u := store.Update{Status: status}
	if output == "" {
		return u
	}
	u.Output = &output
	lang := m.classify(output)
	u.Language = lang.Name
	u.Filename = stem + lang.Ext
	return u
}
