package channelsvc

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/rzbill/spool/internal/codec"
)

// celFilter wraps a compiled CEL admission program. When disabled, Eval
// always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("group", cel.StringType),
		cel.Variable("record_type", cel.StringType),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.StringType)),
		// Payload length in bytes
		cel.Variable("size", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval reports whether rec may be stored in group. Evaluation errors and
// non-boolean results reject the record.
func (f celFilter) Eval(group string, rec codec.Record) bool {
	if !f.enabled {
		return true
	}
	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"group":       group,
		"record_type": rec.Type,
		"attributes":  attrs,
		"size":        int64(len(rec.Payload)),
		"ts_ms":       rec.Timestamp.UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
