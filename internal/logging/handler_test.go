package logging

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestHandler_Format(t *testing.T) {
	var buf strings.Builder
	level := new(slog.LevelVar)
	h := newTextHandler(&buf, level, false)

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "stream opened", slog.String("path", "/v1beta/x"))); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	got := buf.String()
	want := "[2026-08-23 10:30:00] [info] stream opened | path=/v1beta/x\n"
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestHandler_NoAttrsOmitsSeparator(t *testing.T) {
	var buf strings.Builder
	h := newTextHandler(&buf, new(slog.LevelVar), false)

	if err := h.Handle(context.Background(), record(slog.LevelWarn, "shutting down")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if strings.Contains(buf.String(), "|") {
		t.Errorf("line with no attributes should omit the separator: %q", buf.String())
	}
}

func TestHandler_WithAttrsBound(t *testing.T) {
	var buf strings.Builder
	base := newTextHandler(&buf, new(slog.LevelVar), false)
	h := base.WithAttrs([]slog.Attr{slog.String("session", "abc")})

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "chunk sent", slog.Int("offset", 10))); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "session=abc") {
		t.Errorf("bound attribute missing: %q", line)
	}
	if !strings.Contains(line, "offset=10") {
		t.Errorf("record attribute missing: %q", line)
	}
	if strings.Index(line, "session=abc") > strings.Index(line, "offset=10") {
		t.Errorf("bound attributes should precede record attributes: %q", line)
	}

	// The base handler is unaffected.
	buf.Reset()
	if err := base.Handle(context.Background(), record(slog.LevelInfo, "plain")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if strings.Contains(buf.String(), "session") {
		t.Errorf("base handler picked up derived attrs: %q", buf.String())
	}
}

func TestHandler_WithGroupPrefixesKeys(t *testing.T) {
	var buf strings.Builder
	h := newTextHandler(&buf, new(slog.LevelVar), false).WithGroup("upload")

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "started", slog.String("id", "s1"))); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "upload.id=s1") {
		t.Errorf("group prefix missing: %q", buf.String())
	}
}

func TestHandler_InlineGroupAttr(t *testing.T) {
	var buf strings.Builder
	h := newTextHandler(&buf, new(slog.LevelVar), false)

	g := slog.Group("req", slog.String("method", "POST"), slog.Int("status", 200))
	if err := h.Handle(context.Background(), record(slog.LevelInfo, "done", g)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "req.method=POST") || !strings.Contains(line, "req.status=200") {
		t.Errorf("group attribute keys not flattened: %q", line)
	}
}

func TestHandler_QuotesAmbiguousValues(t *testing.T) {
	var buf strings.Builder
	h := newTextHandler(&buf, new(slog.LevelVar), false)

	if err := h.Handle(context.Background(), record(slog.LevelError, "call failed",
		slog.String("error", "connection refused"))); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), `error="connection refused"`) {
		t.Errorf("value with spaces should be quoted: %q", buf.String())
	}
}

func TestHandler_LevelGate(t *testing.T) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	h := newTextHandler(&strings.Builder{}, level, false)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be gated at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}
