// Package log provides slog plumbing shared by the wsman command: a handler
// that scrubs credentials from log records and a size-rotated log file.
package log

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// Redacted replaces the value of every scrubbed attribute.
const Redacted = "[REDACTED]"

// sensitiveKeys are substrings of attribute keys whose values are always
// redacted. Matching is case-insensitive.
var sensitiveKeys = []string{
	"password",
	"pass",
	"secret",
	"token",
	"key",
	"hash",
	"auth",
	"ticket",
	"cred",
}

// safeKeys are exact keys that contain a sensitive substring but only ever
// carry non-secret values.
var safeKeys = map[string]struct{}{
	"auth_scheme": {},
	"author":      {},
	"keytab_path": {},
}

// credentialSchemes prefix HTTP Authorization values.
var credentialSchemes = []string{"basic ", "digest ", "negotiate ", "ntlm ", "kerberos ", "bearer "}

// RedactingHandler is a slog.Handler that scrubs credentials before passing
// records on. It redacts values of sensitive keys, Authorization header
// values under any key, and passwords embedded in URLs.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler creates a new RedactingHandler.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		group := make([]any, len(attrs))
		for i, attr := range attrs {
			group[i] = redactAttr(attr)
		}
		return slog.Group(a.Key, group...)
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, redactString(a.Value.String()))
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := safeKeys[lower]; ok {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// redactString scrubs credentials from a free-form string value.
func redactString(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, scheme := range credentialSchemes {
		if strings.HasPrefix(lower, scheme) {
			return strings.TrimSpace(s)[:len(scheme)] + Redacted
		}
	}
	if strings.Contains(s, "://") && strings.Contains(s, "@") {
		if u, err := url.Parse(s); err == nil && u.User != nil {
			return u.Redacted()
		}
	}
	return s
}
