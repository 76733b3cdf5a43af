package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger for the given mode. "production" emits JSON, "test" discards
// everything, anything else uses the console development encoder.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "test", "nop":
		return &Logger{SugaredLogger: zap.NewNop().Sugar()}, nil
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop is a logger that drops every entry.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, scrub(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, scrub(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, scrub(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, scrub(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, scrub(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(scrub(keysAndValues)...)}
}

var (
	scrubOnce    sync.Once
	scrubEnabled bool
	scrubSalt    string
)

// scrub walks key/value pairs and masks credentials. Contact details are
// replaced with a salted short hash so entries stay correlatable.
func scrub(kv []interface{}) []interface{} {
	if len(kv) == 0 || !scrubOn() {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprint(kv[i])
		out = append(out, key, scrubValue(strings.ToLower(strings.TrimSpace(key)), kv[i+1]))
	}
	return out
}

func scrubValue(key string, val interface{}) interface{} {
	switch {
	case key == "":
		return val
	case isSecretKey(key):
		return "[REDACTED]"
	case isContactKey(key):
		return shortHash(fmt.Sprint(val))
	}
	if m, ok := val.(map[string]interface{}); ok {
		clean := make(map[string]interface{}, len(m))
		for k, v := range m {
			clean[k] = scrubValue(strings.ToLower(k), v)
		}
		return clean
	}
	if s, ok := val.(string); ok && looksLikeJWT(s) {
		return "[REDACTED]"
	}
	return val
}

func isSecretKey(key string) bool {
	for _, needle := range []string{"token", "authorization", "password", "secret", "cookie", "api_key", "apikey", "credential"} {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

func isContactKey(key string) bool {
	return strings.Contains(key, "email") || strings.Contains(key, "phone") || key == "ip" || strings.HasSuffix(key, "_ip")
}

func shortHash(raw string) string {
	if raw == "" {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(scrubSalt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func scrubOn() bool {
	scrubOnce.Do(func() {
		switch strings.TrimSpace(strings.ToLower(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			scrubEnabled = false
		default:
			scrubEnabled = true
		}
		scrubSalt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	})
	return scrubEnabled
}
