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

func TestStopIsIdempotent(t *testing.T) {
	h := newTestManager(t, nil)
	id := h.create(t, "idle")
	ctx := context.Background()

	require.NoError(t, h.m.Stop(ctx, id, "print('hi')"))
	rec := h.record(t, id)
	assert.Equal(t, types.StatusStopped, rec.Status)
	assert.Equal(t, "stopped_generation.py", rec.Filename)

	require.NoError(t, h.m.Stop(ctx, id, "something else"))
	assert.Equal(t, "print('hi')", h.record(t, id).Output)
}

func TestStopEmptyOutputKeepsDefaults(t *testing.T) {
	h := newTestManager(t, nil)
	id := h.create(t, "idle")

	require.NoError(t, h.m.Stop(context.Background(), id, ""))
	rec := h.record(t, id)
	assert.Equal(t, types.StatusStopped, rec.Status)
	assert.Equal(t, "", rec.Output)
	assert.Equal(t, "unknown", rec.Language)
	assert.Equal(t, "generated_code.txt", rec.Filename)
}

func TestStopPlainTextIsClassified(t *testing.T) {
	h := newTestManager(t, nil)
	id := h.create(t, "idle")

	require.NoError(t, h.m.Stop(context.Background(), id, "just some words"))
	rec := h.record(t, id)
	assert.Equal(t, "text", rec.Language)
	assert.Equal(t, "stopped_generation.txt", rec.Filename)
}

func TestStopAfterCompletionIsNoop(t *testing.T) {
	h := newTestManager(t, nil)
	h.backend.Always(llmtest.Script{Tokens: fibTokens})
	id := h.create(t, "fib")
	require.Equal(t, PhaseCompleted, h.m.Run(context.Background(), id, &fakeTransport{}).Phase)

	require.NoError(t, h.m.Stop(context.Background(), id, "def"))
	rec := h.record(t, id)
	assert.Equal(t, types.StatusCompleted, rec.Status)
	assert.Equal(t, "fibonacci.py", rec.Filename)
}

func TestStopUnknownIDSucceeds(t *testing.T) {
	h := newTestManager(t, nil)
	assert.NoError(t, h.m.Stop(context.Background(), "nope", ""))
}

func TestMarkFailed(t *testing.T) {
	h := newTestManager(t, nil)
	ctx := context.Background()
	id := h.create(t, "client error")

	require.NoError(t, h.m.MarkFailed(ctx, id, "socket error", "def f():\n    pass\n"))
	rec := h.record(t, id)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Equal(t, "socket error", rec.Error)
	assert.Equal(t, "failed_generation.py", rec.Filename)
	assert.Len(t, h.pub.Named(EventMarkedFailed), 1)

	// A later stop does not overwrite the failure.
	require.NoError(t, h.m.Stop(ctx, id, "x"))
	assert.Equal(t, types.StatusFailed, h.record(t, id).Status)

	err := h.m.MarkFailed(ctx, "missing", "e", "")
	assert.True(t, IsRecordNotFound(err))
}

func TestMarkFailedCancelsSession(t *testing.T) {
	h := newTestManager(t, nil)
	h.backend.Always(llmtest.Script{Tokens: []string{"a", "b"}, HoldAfter: 1})
	id := h.create(t, "fail me")
	tr := &fakeTransport{}
	ch := h.runAsync(context.Background(), id, tr)
	require.Eventually(t, func() bool { return tr.tokens() == "a" }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, h.m.MarkFailed(context.Background(), id, "client gave up", "a"))
	res := waitResult(t, ch)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	rec := h.record(t, id)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Equal(t, "client gave up", rec.Error)
	assert.EqualValues(t, 0, h.m.ActiveSessions())
}

func TestStopWhileWaitingForSlot(t *testing.T) {
	h := newTestManager(t, func(c *ManagerConfig) {
		c.MaxSessions = 1
		c.MaxWait = 5 * time.Second
	})
	hold := make(chan struct{})
	h.backend.OnGenerate(func(req llmtest.GenerateRequest) llmtest.Script {
		if strings.Contains(req.Prompt, "first job") {
			return llmtest.Script{Tokens: []string{"a", "b"}, HoldAfter: 1, Hold: hold}
		}
		return llmtest.Script{Tokens: []string{"x", "y", "z"}}
	})
	first := h.create(t, "first job")
	second := h.create(t, "second job")

	tr1 := &fakeTransport{}
	ch1 := h.runAsync(context.Background(), first, tr1)
	require.Eventually(t, func() bool { return tr1.tokens() == "a" }, 3*time.Second, 5*time.Millisecond)

	tr2 := &fakeTransport{}
	ch2 := h.runAsync(context.Background(), second, tr2)
	// Let the second session pass its initial lookup and queue for the slot.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, h.m.Stop(context.Background(), second, ""))
	close(hold)

	res := waitResult(t, ch2)
	assert.Equal(t, PhaseStopped, res.Phase)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 0, res.Tokens)
	assert.Equal(t, "", tr2.tokens())
	assert.Equal(t, []string{types.MsgStatus}, tr2.kinds())
	assert.Equal(t, types.NewStatus("stopped"), tr2.last())
	for _, req := range h.backend.Requests() {
		assert.NotContains(t, req.Prompt, "second job")
	}
	assert.Equal(t, types.StatusStopped, h.record(t, second).Status)

	assert.Equal(t, PhaseCompleted, waitResult(t, ch1).Phase)
	assert.EqualValues(t, 0, h.m.ActiveSessions())
}
