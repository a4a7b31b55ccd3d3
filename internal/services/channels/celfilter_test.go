package channelsvc

import (
	"testing"
	"time"

	"github.com/rzbill/spool/internal/codec"
)

func TestCELFilterDisabled(t *testing.T) {
	f, err := newCELFilter("  ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !f.Eval("g", codec.Record{}) {
		t.Fatalf("disabled filter must admit everything")
	}
}

func TestCELFilterVariables(t *testing.T) {
	rec := codec.Record{
		Type:       "crash",
		Attributes: map[string]string{"env": "prod"},
		Payload:    []byte("1234"),
		Timestamp:  time.UnixMilli(5000),
	}
	cases := []struct {
		expr string
		want bool
	}{
		{`record_type == "crash"`, true},
		{`group == "web" && record_type != "noise"`, true},
		{`attributes["env"] == "prod"`, true},
		{`"env" in attributes && size == 4`, true},
		{`group.startsWith("mobile")`, false},
		{`ts_ms > 1000`, true},
		{`attributes["missing"] == "x"`, false},
		{`size`, false},
	}
	for _, c := range cases {
		f, err := newCELFilter(c.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", c.expr, err)
		}
		if got := f.Eval("web", rec); got != c.want {
			t.Fatalf("%q: got %v want %v", c.expr, got, c.want)
		}
	}
}
