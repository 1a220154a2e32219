package logging

import (
	"context"
	"errors"
	"log/slog"
)

// Filter decides whether a routed sink receives a record. bound holds the
// attributes added through With, which are not part of the record itself.
type Filter func(record slog.Record, bound []slog.Attr) bool

type sink struct {
	handler slog.Handler
	filter  Filter
}

// MultiHandler fans out log records to several sinks. A sink that fails does
// not stop delivery to the others; their errors are joined.
type MultiHandler struct {
	sinks []sink
	bound []slog.Attr
}

// NewMultiHandler fans out to every handler for each level it is enabled for.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	m := &MultiHandler{}
	for _, h := range handlers {
		if h != nil {
			m.sinks = append(m.sinks, sink{handler: h})
		}
	}
	return m
}

// Route adds a sink that only receives records accepted by filter.
func (m *MultiHandler) Route(h slog.Handler, filter Filter) *MultiHandler {
	if h != nil {
		m.sinks = append(m.sinks, sink{handler: h, filter: filter})
	}
	return m
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range m.sinks {
		if s.handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if !s.handler.Enabled(ctx, record.Level) {
			continue
		}
		if s.filter != nil && !s.filter(record, m.bound) {
			continue
		}
		if err := s.handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &MultiHandler{
		sinks: make([]sink, len(m.sinks)),
		bound: append(append([]slog.Attr{}, m.bound...), attrs...),
	}
	for i, s := range m.sinks {
		next.sinks[i] = sink{handler: s.handler.WithAttrs(attrs), filter: s.filter}
	}
	return next
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	next := &MultiHandler{
		sinks: make([]sink, len(m.sinks)),
		bound: m.bound,
	}
	for i, s := range m.sinks {
		next.sinks[i] = sink{handler: s.handler.WithGroup(name), filter: s.filter}
	}
	return next
}

// PersistFilter selects what goes to system_logs: every ERROR+ record, and
// WARN records about a background job (retries, stuck job recovery).
func PersistFilter(record slog.Record, bound []slog.Attr) bool {
	if record.Level >= slog.LevelError {
		return true
	}
	if record.Level < slog.LevelWarn {
		return false
	}
	for _, a := range bound {
		if a.Key == "job_id" {
			return true
		}
	}
	found := false
	record.Attrs(func(a slog.Attr) bool {
		found = a.Key == "job_id"
		return !found
	})
	return found
}
