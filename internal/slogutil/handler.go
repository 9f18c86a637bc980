// Package slogutil provides custom slog handlers and utilities for pyfix logging.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Handler writes each record as a single fix-log line:
//
//	TIMESTAMP [level] message | key=value key=value
//
// Values that contain spaces or separator characters (patch strings, skip
// reasons, traceback fragments) are quoted so a line stays splittable by
// grep and cut.
type Handler struct {
	w     io.Writer
	level slog.Leveler
	// prefix is the accumulated group path ("engine.tool."), applied to
	// every attribute key this handler writes.
	prefix string
	attrs  []slog.Attr
	mu     *sync.Mutex
}

// NewHandler creates a new pyfix log handler.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) *Handler {
	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}
	return &Handler{
		w:     w,
		level: level,
		mu:    &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Time.UTC().Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(levelString(r.Level))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	// Attributes go into their own buffer so the " |" separator is only
	// written when at least one key survives resolution.
	var attrBuf bytes.Buffer
	for _, a := range h.attrs {
		appendAttr(&attrBuf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&attrBuf, h.prefix, a)
		return true
	})
	if attrBuf.Len() > 0 {
		buf.WriteString(" |")
		buf.Write(attrBuf.Bytes())
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &Handler{
		w:      h.w,
		level:  h.level,
		prefix: h.prefix,
		attrs:  newAttrs,
		mu:     h.mu,
	}
}

// WithGroup returns a new handler whose attribute keys carry the group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{
		w:      h.w,
		level:  h.level,
		prefix: h.prefix + name + ".",
		attrs:  h.attrs,
		mu:     h.mu,
	}
}

// appendAttr writes one attribute as " key=value". Group-valued attributes
// are flattened with a dotted prefix; LogValuer values are resolved first.
func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, member := range v.Group() {
			appendAttr(buf, p, member)
		}
		return
	}
	if a.Key == "" {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(v))
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// formatValue renders a resolved slog.Value, quoting anything that would
// break the key=value grammar of the line.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		s = v.Duration().String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if strings.ContainsAny(s, " \t\"=|") {
		return strconv.Quote(s)
	}
	return s
}
