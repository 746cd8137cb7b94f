package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testLogger struct {
	entries []string
	fields  map[string]any
}

func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Panic(_ map[string]any, msg string) {}
func (l *testLogger) Fatal(_ map[string]any, msg string) {}
func (l *testLogger) With(fields map[string]any) Logger {
	l.fields = fields
	return l
}

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"tenant": "acme",
		"links":  42,
		"ok":     true,
	}, "test debug")
	Info(nil, "test info")
	Warn(map[string]any{"error": errors.New("boom")}, "test warn")
	Error(nil, "test error")

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	GetLogger().Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	assert.Equal(t, []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}, tlog.entries)
}

func TestConfigure_ValidLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	require.NoError(t, Configure("dev", "debug"))
	require.NoError(t, Configure("prod", "info"))
	require.NoError(t, Configure("prod", "WARN"))
}

func TestConfigure_InvalidLevel(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	err := Configure("dev", "notalevel")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestZapLogger_WithCarriesFields(t *testing.T) {
	l := &zapLogger{base: zap.NewNop()}
	child := l.With(map[string]any{"component": "ruleset"})
	require.NotNil(t, child)
	child.Info(map[string]any{"tenant": "acme"}, "child info")
}

func TestZapFields_ErrorValues(t *testing.T) {
	fields := zapFields(map[string]any{"error": errors.New("store down")})
	require.Len(t, fields, 1)
	assert.Equal(t, "error", fields[0].Key)
}

func TestNoopLogger_AllLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	SetLogger(NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Fatal(nil, "fatal message")
	GetLogger().Panic(nil, "panic message")
	assert.Equal(t, GetLogger(), GetLogger().With(map[string]any{"k": "v"}))
}
