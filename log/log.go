package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const (
	ComponentKey = "component"
	ErrorKey     = "error"
	GroupKey     = "group"
)

// Error returns a slog.Attr for the provided error. The key will be ErrorKey.
func Error(e error) slog.Attr {
	return slog.Any(ErrorKey, e)
}

// Group returns a slog.Attr identifying a power group by its id. The key will be GroupKey.
func Group(id string) slog.Attr {
	return slog.String(GroupKey, id)
}

// indirectHandler forwards records to whichever slog.Handler was most recently passed to To. Loggers created before To
// is called still end up at the configured handler.
type indirectHandler struct {
	h     *atomic.Pointer[slog.Handler]
	attrs []slog.Attr
	group string
}

func (i *indirectHandler) resolve() slog.Handler {
	h := i.h.Load()
	if h == nil {
		return nil
	}

	resolved := *h
	if i.group != "" {
		resolved = resolved.WithGroup(i.group)
	}
	if len(i.attrs) > 0 {
		resolved = resolved.WithAttrs(i.attrs)
	}

	return resolved
}

func (i *indirectHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h := i.resolve()
	if h == nil {
		return false
	}

	return h.Enabled(ctx, level)
}

func (i *indirectHandler) Handle(ctx context.Context, record slog.Record) error {
	h := i.resolve()
	if h == nil {
		return nil
	}

	return h.Handle(ctx, record)
}

func (i *indirectHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &indirectHandler{
		h:     i.h,
		attrs: append(append([]slog.Attr(nil), i.attrs...), attrs...),
		group: i.group,
	}
}

func (i *indirectHandler) WithGroup(name string) slog.Handler {
	// Attributes added before the group stay outside of it, which slog only guarantees when the underlying handler
	// sees them in order. Resolve eagerly in that case.
	if len(i.attrs) > 0 {
		if h := i.resolve(); h != nil {
			return h.WithGroup(name)
		}
	}

	return &indirectHandler{h: i.h, attrs: i.attrs, group: name}
}

var _ slog.Handler = &indirectHandler{}

var (
	sink = &indirectHandler{h: &atomic.Pointer[slog.Handler]{}}
)

// To updates all slog.Logger objects used internally by powergroup to write logs to the provided slog.Handler. By
// default, log values are discarded until To is called at least once with a non-discarding slog.Handler.
func To(h slog.Handler) {
	sink.h.Store(&h)
}

// ForComponent constructs a slog.Logger for the specified component (which is stored in an attribute with the key
// ComponentKey).
func ForComponent(component string) *slog.Logger {
	return slog.New(sink).With(slog.String(ComponentKey, component))
}

type contextKey struct{}

// Ctx returns the logger stored in ctx by With. If there is none, it returns a logger for the "default" component.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}

	return ForComponent("default")
}

// With returns a copy of ctx that carries the provided logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}
