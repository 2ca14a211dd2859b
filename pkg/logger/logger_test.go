package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndLevels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(&buf, "text"))
	t.Cleanup(func() { _ = SetLevelString("info") })

	ctx := context.Background()
	log := Named("queue")

	require.NoError(t, SetLevelString("warn"))
	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown", String("job_id", "j-1"), Error(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=queue")
	assert.Contains(t, out, "job_id=j-1")
	assert.Contains(t, out, "error=boom")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(&buf, "json"))

	Get().With(Int("attempt", 2)).Error(context.Background(), "remove failed")

	assert.Contains(t, buf.String(), `"attempt":2`)
	assert.Contains(t, buf.String(), `"msg":"remove failed"`)
}

func TestInvalidSettings(t *testing.T) {
	assert.Error(t, Init(&bytes.Buffer{}, "xml"))
	assert.Error(t, SetLevelString("loud"))
	for _, lvl := range []string{"debug", "INFO", "warning", "error", ""} {
		assert.NoError(t, SetLevelString(lvl), lvl)
	}
	_ = SetLevelString("info")
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop().Named("x").With(Bool("ok", true))
	l.Debug(context.Background(), "noop")
	l.Info(context.Background(), "noop")
}
