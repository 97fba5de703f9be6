package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelInfo, Format: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelDebug, Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestZapLogger_FieldsAreEncoded(t *testing.T) {
	l, logs := newObservedLogger()

	l.Error("unknown scoring function",
		String("name", "qed"),
		Strings("valid", []string{"no_sulphur", "tanimoto"}),
		Int("batch", 3),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	ctx := entry.ContextMap()
	assert.Equal(t, "qed", ctx["name"])
	assert.Equal(t, []interface{}{"no_sulphur", "tanimoto"}, ctx["valid"])
	assert.EqualValues(t, 3, ctx["batch"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, logs := newObservedLogger()

	l.Named("scoring").With(String("scorer", "tanimoto")).Info("scored")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "scoring", entry.LoggerName)
	assert.Equal(t, "tanimoto", entry.ContextMap()["scorer"])
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	assert.NotNil(t, l.With(String("k", "v")))
	assert.NotNil(t, l.Named("x"))
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	l, _ := newObservedLogger()
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}

func TestFromContext_AddsRequestID(t *testing.T) {
	l, logs := newObservedLogger()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	FromContext(ctx, l).Info("scored")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}
