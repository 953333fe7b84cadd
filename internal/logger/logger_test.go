package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext ensures the context helpers round-trip a scoped logger
// and fall back to the global logger otherwise.
func TestFromContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.Same(t, Logger(), FromContext(ctx))

	named := Logger().Named("test")
	ctx = ToContext(ctx, named)
	require.Same(t, named, FromContext(ctx))

	// WithKV derives a new scoped logger instead of mutating the attached one.
	kvCtx := WithKV(ctx, "root", "/srv/mta")
	require.NotSame(t, named, FromContext(kvCtx))
	require.Same(t, named, FromContext(ctx))
}
