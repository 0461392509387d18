package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redpanda-data/benthos/v4/public/service"
)

// serviceHandler forwards slog records from the decoding libraries to the
// processor's benthos logger.
type serviceHandler struct {
	log    *service.Logger
	attrs  []slog.Attr
	prefix string
}

func newServiceLogger(log *service.Logger) *slog.Logger {
	return slog.New(&serviceHandler{log: log})
}

func (h *serviceHandler) Enabled(context.Context, slog.Level) bool {
	return h.log != nil
}

func (h *serviceHandler) Handle(_ context.Context, r slog.Record) error {
	line := h.format(r)
	switch {
	case r.Level >= slog.LevelError:
		h.log.Errorf("%s", line)
	case r.Level >= slog.LevelWarn:
		h.log.Warnf("%s", line)
	case r.Level >= slog.LevelInfo:
		h.log.Infof("%s", line)
	default:
		h.log.Debugf("%s", line)
	}
	return nil
}

func (h *serviceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *serviceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// format renders a record as "message key=value ...".
func (h *serviceHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%v", h.prefix, a.Key, a.Value)
		return true
	})
	return b.String()
}
