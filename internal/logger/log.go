package logger

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide structured logger. It is a no-op until Init runs.
var Log = zap.NewNop()

// Init builds the logger for the given level and environment.
func Init(level, environment string) error {
	cfg := zap.NewProductionConfig()
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = built
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}

var sensitive = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

// SafeHeaders returns a compact header summary with credentials redacted.
func SafeHeaders(r *http.Request) string {
	parts := make([]string, 0, len(r.Header))
	for k, v := range r.Header {
		if len(v) == 0 {
			continue
		}
		value := v[0]
		if _, ok := sensitive[strings.ToLower(k)]; ok {
			value = "<redacted>"
		}
		parts = append(parts, k+"="+value)
	}
	return strings.Join(parts, "; ")
}
