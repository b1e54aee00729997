package obs

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromPrefersContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	scoped := zap.New(core).With(RequestID("req-1"))

	ctx := WithLogger(context.Background(), scoped)
	From(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "req-1" {
		t.Fatalf("missing request id: %v", entries[0].ContextMap())
	}
	if From(context.Background()) == nil {
		t.Fatal("From must fall back to the process logger")
	}
	if _, ok := Scoped(context.Background()); ok {
		t.Fatal("Scoped reported a logger for a bare context")
	}
	if l, ok := Scoped(ctx); !ok || l != scoped {
		t.Fatal("Scoped must return the stored logger")
	}
}

func TestInitLoggerProd(t *testing.T) {
	prev := L()
	defer SetLogger(prev)

	l := InitLogger(LogConfig{Env: "prod", Level: "warn", Service: "condo-api", Version: "test"})
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info must be disabled at warn level")
	}
	if L() != l {
		t.Fatal("InitLogger must install the logger")
	}
}
