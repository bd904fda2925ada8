package manager

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegend/pkg/types"
)

func TestNewWithConfigDefaults(t *testing.T) {
	h := newTestManager(t, nil)
	m := h.m
	assert.Equal(t, defaultSendTimeout, m.sendTimeout)
	assert.Equal(t, defaultProgressEvery, m.progressEvery)
	assert.Equal(t, defaultWriteTimeout, m.writeTimeout)
	assert.Equal(t, defaultMaxWait, m.maxWait)
	assert.Equal(t, defaultHistoryLimit, m.historyLimit)
	assert.Nil(t, m.slots)
	assert.True(t, m.Ready())
}

func TestCreateRejectsBlankPrompt(t *testing.T) {
	h := newTestManager(t, nil)
	_, err := h.m.Create(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
}

func TestCreateGetList(t *testing.T) {
	h := newTestManager(t, nil)
	ctx := context.Background()
	g, err := h.m.Create(ctx, "hello world in go")
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, g.Status)
	assert.Equal(t, "qwen2.5:14b", g.Model)
	assert.NotEmpty(t, g.ID)

	got, err := h.m.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Prompt, got.Prompt)

	time.Sleep(2 * time.Millisecond)
	g2, err := h.m.Create(ctx, "second")
	require.NoError(t, err)
	list, err := h.m.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, g2.ID, list[0].ID)

	list, err = h.m.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetAndDeleteMissing(t *testing.T) {
	h := newTestManager(t, nil)
	_, err := h.m.Get(context.Background(), "nope")
	assert.True(t, IsRecordNotFound(err))
	err = h.m.Delete(context.Background(), "nope")
	assert.True(t, IsRecordNotFound(err))
}

func TestSetModel(t *testing.T) {
	h := newTestManager(t, nil)
	h.backend.SetModels(types.Model{Name: "qwen2.5:14b"}, types.Model{Name: "llama3:8b"})
	ctx := context.Background()

	err := h.m.SetModel(ctx, "does-not-exist")
	assert.True(t, IsBadRequest(err))
	assert.Equal(t, "qwen2.5:14b", h.m.CurrentModel())

	require.NoError(t, h.m.SetModel(ctx, "llama3:8b"))
	assert.Equal(t, "llama3:8b", h.m.CurrentModel())
	assert.Len(t, h.pub.Named(EventModelChanged), 1)

	g, err := h.m.Create(ctx, "uses new model")
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", g.Model)

	models, err := h.m.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestListModelsBackendDown(t *testing.T) {
	h := newTestManager(t, nil)
	h.backend.FailTags(http.StatusBadGateway)
	_, err := h.m.ListModels(context.Background())
	assert.Error(t, err)
}

func TestHealthIdle(t *testing.T) {
	h := newTestManager(t, nil)
	hr := h.m.Health(context.Background())
	assert.Equal(t, "ok", hr.Status)
	assert.True(t, hr.Ollama)
	assert.True(t, hr.Store)
}

func TestErrorStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrRecordNotFound("x"), http.StatusNotFound},
		{tooBusyError{reason: "r"}, http.StatusTooManyRequests},
		{alreadyStreamingError{id: "x"}, http.StatusConflict},
		{badRequestError{msg: "m"}, http.StatusBadRequest},
	}
	for _, c := range cases {
		sc, ok := c.err.(interface{ StatusCode() int })
		require.True(t, ok)
		assert.Equal(t, c.code, sc.StatusCode(), c.err.Error())
	}
}
