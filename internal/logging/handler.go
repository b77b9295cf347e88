package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// textHandler renders records as "[time] [level] [file:line] msg | k=v".
// Attributes bound with WithAttrs are pre-rendered once and prepended to
// each record's own attributes; WithGroup prefixes subsequent keys with
// "group.".
type textHandler struct {
	w      io.Writer
	level  *slog.LevelVar
	source bool
	mu     *sync.Mutex

	bound  string // pre-rendered WithAttrs attributes
	prefix string // accumulated group path, "a.b." form
}

func newTextHandler(w io.Writer, level *slog.LevelVar, addSource bool) *textHandler {
	return &textHandler{
		w:      w,
		level:  level,
		source: addSource,
		mu:     &sync.Mutex{},
	}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.Grow(128)

	sb.WriteByte('[')
	sb.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	sb.WriteString("] [")
	sb.WriteString(strings.ToLower(r.Level.String()))
	sb.WriteByte(']')

	if h.source && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		sb.WriteString(" [")
		sb.WriteString(filepath.Base(f.File))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(f.Line))
		sb.WriteByte(']')
	}

	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	attrs := h.bound
	r.Attrs(func(a slog.Attr) bool {
		attrs = appendAttr(attrs, h.prefix, a)
		return true
	})
	if attrs != "" {
		sb.WriteString(" | ")
		sb.WriteString(attrs)
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		h2.bound = appendAttr(h2.bound, h2.prefix, a)
	}
	return h2
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.prefix = h.prefix + name + "."
	return h2
}

// clone shares the writer and its mutex so derived handlers never interleave
// lines.
func (h *textHandler) clone() *textHandler {
	h2 := *h
	return &h2
}

func appendAttr(attrs, prefix string, a slog.Attr) string {
	if a.Equal(slog.Attr{}) {
		return attrs
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			attrs = appendAttr(attrs, groupPrefix, ga)
		}
		return attrs
	}
	if attrs != "" {
		attrs += " "
	}
	return attrs + prefix + a.Key + "=" + formatValue(a.Value)
}

// formatValue quotes values whose text form would be ambiguous in the
// space-separated attribute list.
func formatValue(v slog.Value) string {
	s := fmt.Sprintf("%v", v.Any())
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
