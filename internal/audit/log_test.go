package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"condominio.app/internal/auth"
	"condominio.app/internal/obs"
)

func captureLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	prev := obs.L()
	obs.SetLogger(zap.New(core))
	t.Cleanup(func() { obs.SetLogger(prev) })
	return logs
}

func TestLogEvent(t *testing.T) {
	logs := captureLogs(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{ID: 42, Role: auth.RoleAdministrator})

	if err := LogEvent(ctx, EventFineCreated, zap.Int64("fine_id", 9)); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != EventFineCreated {
		t.Fatalf("message = %q", entries[0].Message)
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "audit" || fields["request_id"] != "req-123" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["user_id"] != int64(42) || fields["fine_id"] != int64(9) {
		t.Fatalf("unexpected ids: %v", fields)
	}
	id, _ := fields["event_id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("event_id %q is not a uuid: %v", id, err)
	}
}

func TestLogEventWithoutContext(t *testing.T) {
	logs := captureLogs(t)

	if err := LogEvent(context.Background(), EventLoginFailed); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	fields := logs.All()[0].ContextMap()
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("unexpected request_id: %v", fields)
	}
	if _, ok := fields["user_id"]; ok {
		t.Fatalf("unexpected user_id: %v", fields)
	}
}

func TestLogEventUsesRequestLogger(t *testing.T) {
	global := captureLogs(t)
	core, scoped := observer.New(zapcore.InfoLevel)
	ctx := obs.WithLogger(context.Background(), zap.New(core).With(obs.RequestID("req-9")))

	if err := LogEvent(ctx, EventReservationCreated); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if global.Len() != 0 {
		t.Fatalf("process logger received %d entries", global.Len())
	}
	if scoped.Len() != 1 {
		t.Fatalf("request logger received %d entries, want 1", scoped.Len())
	}
	entry := scoped.All()[0]
	if entry.LoggerName != "audit" || entry.ContextMap()["request_id"] != "req-9" {
		t.Fatalf("unexpected entry: %s %v", entry.LoggerName, entry.ContextMap())
	}

	if err := LogEvent(obs.WithLogger(context.Background(), zap.NewNop()), EventLoginFailed); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if global.Len() != 0 {
		t.Fatalf("a nop request logger must silence the audit line")
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank event name")
	}
	if ctx := WithRequestID(context.Background(), " "); ctx != context.Background() {
		t.Fatal("blank request id must leave the context unchanged")
	}
}
