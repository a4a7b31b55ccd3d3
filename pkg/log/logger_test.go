package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBufLogger(buf *bytes.Buffer, opts ...LoggerOption) Logger {
	base := []LoggerOption{WithFormatter(&TextFormatter{DisableTimestamp: true}), WithOutput(NewWriterOutput(buf))}
	return NewLogger(append(base, opts...)...)
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, WithLevel(WarnLevel))
	l.Info("hidden")
	l.Warn("shown", Int("n", 3))
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "WARN  shown n=3")

	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	require.Contains(t, buf.String(), "now visible")
}

func TestWithFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf).With(Component("persistence")).WithField("group", "g1")
	l.Info("lease issued", Int("records", 2))
	line := buf.String()
	require.Contains(t, line, "component=persistence")
	require.Contains(t, line, "group=g1")
	require.Contains(t, line, "records=2")
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := newBufLogger(&buf)
	child := root.WithComponent("child")
	root.SetLevel(ErrorLevel)
	child.Info("dropped")
	require.Empty(t, buf.String())
	require.Equal(t, ErrorLevel, child.GetLevel())
}

func TestJSONFormatterError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Error("store fault", Str("op", "insert"), Err(errors.New("disk full")))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "ERROR", got["level"])
	require.Equal(t, "store fault", got["msg"])
	require.Equal(t, "insert", got["op"])
	require.Equal(t, "disk full", got["error"])
}

func TestApplyConfigRedactsAndSamples(t *testing.T) {
	l, err := ApplyConfig(&Config{Level: "debug", Format: "text", Outputs: []string{"null"}, Redact: []string{"secret"}, SampleInitial: 1, SampleThereafter: 100})
	require.NoError(t, err)
	bl := l.(*BaseLogger)

	var buf bytes.Buffer
	bl.outputs = []Output{NewWriterOutput(&buf)}
	bl.formatter = &TextFormatter{DisableTimestamp: true}
	for i := 0; i < 5; i++ {
		l.Info("repeated", Str("secret", "hunter2"))
	}
	out := buf.String()
	require.Equal(t, 2, strings.Count(out, "repeated"), "one initial message plus the first sampled one")
	require.Contains(t, out, "secret=[REDACTED]")

	_, err = ApplyConfig(&Config{Format: "xml"})
	require.Error(t, err)
	_, err = ApplyConfig(&Config{Level: "loud"})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, "error": ErrorLevel, "": InfoLevel} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestRedirectStdLog(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf)
	std := ToStdLogger(l)
	std.Printf("pebble says %d", 42)
	require.Contains(t, buf.String(), "pebble says 42")
	require.Contains(t, buf.String(), "source=stdlib")
}

func TestSlogGroupsAndRedactedBaseFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufLogger(&buf, func(bl *BaseLogger) { bl.redactKeys = []string{"token"} })

	l.WithField("token", "abc").Info("derived", Str("group", "g1"))
	require.Contains(t, buf.String(), "token=[REDACTED]")
	require.Contains(t, buf.String(), "group=g1")
	require.NotContains(t, buf.String(), "abc")

	buf.Reset()
	sl := l.(*BaseLogger).Slog()
	sl.WithGroup("http").Info("request", "status", 200, slog.Group("peer", "addr", "10.0.0.1"))
	out := buf.String()
	require.Contains(t, out, "http.status=200")
	require.Contains(t, out, "http.peer.addr=10.0.0.1")
}
