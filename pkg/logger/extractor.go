package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a context. The boolean reports
// whether the attribute should be added to the record.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// extractorHandler decorates a slog.Handler, appending extracted context
// attributes to every record that passes through it.
type extractorHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func newExtractorHandler(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return next
	}
	return &extractorHandler{next: next, extractors: extractors}
}

func (h *extractorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *extractorHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			record.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *extractorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &extractorHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *extractorHandler) WithGroup(name string) slog.Handler {
	return &extractorHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
