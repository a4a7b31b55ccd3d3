package log

import (
	"context"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strconv"
	"sync"
)

// handler adapts slog to the BaseLogger pipeline: attributes become Fields,
// the formatter renders the Entry, and every output receives the bytes.
// Group names are kept as dotted key prefixes.
type handler struct {
	logger  *BaseLogger
	attrs   []slog.Attr
	prefix  string
	redact  map[string]bool
	sampler *sampler
}

func newBridgeHandler(logger *BaseLogger) *handler {
	h := &handler{logger: logger, sampler: logger.sampler}
	if len(logger.redactKeys) > 0 {
		h.redact = make(map[string]bool, len(logger.redactKeys))
		for _, k := range logger.redactKeys {
			h.redact[k] = true
		}
	}
	return h
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlogLevel(level) >= *h.logger.level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	if h.sampler != nil && !h.sampler.allow(r.Level, r.Message) {
		return nil
	}

	fields := make(Fields, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		h.flatten(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.flatten(fields, h.prefix, a)
		return true
	})

	entry := &Entry{
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
		Caller:    callerOf(r.PC),
	}
	if err, ok := fields["error"].(error); ok {
		entry.Error = err
	}

	formatted, err := h.logger.formatter.Format(entry)
	if err != nil {
		return err
	}
	for _, out := range h.logger.outputs {
		_ = out.Write(entry, formatted)
	}
	return nil
}

// flatten writes a into fields under prefix, expanding groups into dotted
// keys and masking redacted keys.
func (h *handler) flatten(fields Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key
	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = key + "."
		}
		for _, ga := range a.Value.Group() {
			h.flatten(fields, sub, ga)
		}
		return
	}
	if h.redact[a.Key] {
		fields[key] = "[REDACTED]"
		return
	}
	fields[key] = a.Value.Any()
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func callerOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.Itoa(frame.Line)
}

type sampleKey struct {
	level slog.Level
	msg   string
}

// sampler passes the first initial records of each level and message, then
// every thereafter-th one. Derived loggers share one sampler.
type sampler struct {
	initial, thereafter uint64

	mu   sync.Mutex
	seen map[sampleKey]uint64
}

func newSampler(initial, thereafter int) *sampler {
	s := &sampler{thereafter: 1, seen: make(map[sampleKey]uint64)}
	if initial > 0 {
		s.initial = uint64(initial)
	}
	if thereafter > 0 {
		s.thereafter = uint64(thereafter)
	}
	return s
}

func (s *sampler) allow(level slog.Level, msg string) bool {
	k := sampleKey{level, msg}
	s.mu.Lock()
	n := s.seen[k]
	s.seen[k] = n + 1
	s.mu.Unlock()
	return n < s.initial || (n-s.initial)%s.thereafter == 0
}

var slogLevels = map[Level]slog.Level{
	DebugLevel: slog.LevelDebug,
	InfoLevel:  slog.LevelInfo,
	WarnLevel:  slog.LevelWarn,
	ErrorLevel: slog.LevelError,
	FatalLevel: slog.LevelError,
}

func toSlogLevel(level Level) slog.Level {
	if l, ok := slogLevels[level]; ok {
		return l
	}
	return slog.LevelInfo
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return ErrorLevel
	case level >= slog.LevelWarn:
		return WarnLevel
	case level >= slog.LevelInfo:
		return InfoLevel
	default:
		return DebugLevel
	}
}

// attrsFromMap converts Fields to attrs in key order so output is stable.
func attrsFromMap(m Fields) []slog.Attr {
	if len(m) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		attrs = append(attrs, slog.Any(k, m[k]))
	}
	return attrs
}

func attrsFromFieldSlice(fields []Field) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}
