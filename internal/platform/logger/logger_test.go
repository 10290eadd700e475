package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(redact bool) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), redact: redact, salt: "s"}, logs
}

func TestRedactsCredentialKeys(t *testing.T) {
	l, logs := observed(true)
	l.Info("login", "access_token", "abc", "email", "a@b.c", "handle", "bot_1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["access_token"] != "[REDACTED]" {
		t.Fatalf("access_token: want redacted got=%v", fields["access_token"])
	}
	if fields["email"] != "[REDACTED]" {
		t.Fatalf("email: want redacted got=%v", fields["email"])
	}
	if fields["handle"] != "bot_1" {
		t.Fatalf("handle: want=bot_1 got=%v", fields["handle"])
	}
}

func TestHashesJTI(t *testing.T) {
	l, logs := observed(true)
	l.With("jti", "1234").Warn("revoked")

	got, _ := logs.All()[0].ContextMap()["jti"].(string)
	if got == "1234" || len(got) != len("hash:")+12 {
		t.Fatalf("jti: want hashed got=%q", got)
	}
}

func TestRedactionOff(t *testing.T) {
	l, logs := observed(false)
	l.Info("x", "token", "raw")
	if logs.All()[0].ContextMap()["token"] != "raw" {
		t.Fatalf("token: want raw value when redaction disabled")
	}
}
