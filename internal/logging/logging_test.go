package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		l := New(Config{Env: env, Level: "error", ServiceName: "authcore"})
		if l == nil {
			t.Fatalf("%s: nil logger", env)
		}
		if l.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("%s: info should be disabled at error level", env)
		}
		if !l.Core().Enabled(zapcore.ErrorLevel) {
			t.Fatalf("%s: error should be enabled", env)
		}
	}
}
