package log

import (
	"fmt"
	"strings"
)

// Config declares a logger: level, format and outputs.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
	// Outputs lists "console", "null" or "file:<path>". Empty means console.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	// Redact replaces the values of these keys with [REDACTED].
	Redact []string `json:"redact,omitempty" yaml:"redact,omitempty"`
	// SampleInitial/SampleThereafter throttle repeated messages. Zero disables.
	SampleInitial    int `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty"`
	SampleThereafter int `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := []LoggerOption{WithLevel(level)}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opts = append(opts, WithFormatter(&TextFormatter{}))
	case "json":
		opts = append(opts, WithFormatter(&JSONFormatter{}))
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	for _, o := range cfg.Outputs {
		switch {
		case o == "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case o == "null":
			opts = append(opts, WithOutput(NullOutput{}))
		case strings.HasPrefix(o, "file:"):
			fo, err := NewFileOutput(strings.TrimPrefix(o, "file:"))
			if err != nil {
				return nil, fmt.Errorf("open log file: %w", err)
			}
			opts = append(opts, WithOutput(fo))
		default:
			return nil, fmt.Errorf("unknown log output %q", o)
		}
	}

	if len(cfg.Redact) > 0 {
		keys := append([]string(nil), cfg.Redact...)
		opts = append(opts, func(l *BaseLogger) { l.redactKeys = keys })
	}
	if cfg.SampleThereafter > 0 {
		s := newSampler(cfg.SampleInitial, cfg.SampleThereafter)
		opts = append(opts, func(l *BaseLogger) { l.sampler = s })
	}
	return NewLogger(opts...), nil
}
