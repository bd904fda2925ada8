package manager

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegend/internal/llm/llmtest"
	"codegend/pkg/types"
)

func TestShutdownPersistsPartialOutput(t *testing.T) {
	h := newTestManager(t, nil)
	h.backend.Always(llmtest.Script{Tokens: []string{"a", "b", "c"}, HoldAfter: 2})
	id := h.create(t, "drain")
	tr := &fakeTransport{}
	ch := h.runAsync(context.Background(), id, tr)
	require.Eventually(t, func() bool { return tr.tokens() == "ab" }, 3*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, h.m.Shutdown(ctx))

	res := waitResult(t, ch)
	assert.Equal(t, PhaseStopped, res.Phase)
	rec := h.record(t, id)
	assert.Equal(t, types.StatusStopped, rec.Status)
	assert.Equal(t, "ab", rec.Output)
	assert.False(t, h.m.Ready())
	assert.EqualValues(t, 0, h.m.ActiveSessions())
}

func TestShutdownRefusesNewSessions(t *testing.T) {
	h := newTestManager(t, nil)
	id := h.create(t, "late")
	require.NoError(t, h.m.Shutdown(context.Background()))

	tr := &fakeTransport{}
	res := h.m.Run(context.Background(), id, tr)
	assert.True(t, IsTooBusy(res.Err))
	msg, ok := tr.last().(types.ErrorMessage)
	require.True(t, ok)
	assert.True(t, strings.Contains(msg.Message, "shutting down"))
	assert.Equal(t, types.StatusProcessing, h.record(t, id).Status)
}

func TestShutdownHonorsDeadline(t *testing.T) {
	h := newTestManager(t, nil)
	release, err := h.m.beginSession(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.m.Shutdown(ctx), context.DeadlineExceeded)
}

func TestMaxSessionsTooBusy(t *testing.T) {
	h := newTestManager(t, func(c *ManagerConfig) {
		c.MaxSessions = 1
		c.MaxWait = 30 * time.Millisecond
	})
	h.backend.Always(llmtest.Script{Tokens: []string{"a", "b"}, HoldAfter: 1})
	first := h.create(t, "one")
	second := h.create(t, "two")
	tr := &fakeTransport{}
	ch := h.runAsync(context.Background(), first, tr)
	require.Eventually(t, func() bool { return tr.tokens() == "a" }, 3*time.Second, 5*time.Millisecond)

	res := h.m.Run(context.Background(), second, &fakeTransport{})
	assert.True(t, IsTooBusy(res.Err))
	assert.Equal(t, OutcomeRejected, res.Outcome)

	require.NoError(t, h.m.Stop(context.Background(), first, "a"))
	waitResult(t, ch)

	h.backend.Always(llmtest.Script{Tokens: []string{"z"}})
	assert.Equal(t, PhaseCompleted, h.m.Run(context.Background(), second, &fakeTransport{}).Phase)
}
