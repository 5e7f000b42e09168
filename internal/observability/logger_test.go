// internal/observability/logger_test.go
package observability

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/feedpilot/internal/config"
)

// syncBuffer is a goroutine-safe zapcore.WriteSyncer backed by memory.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestInitialize_ConsoleColors(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "feedpilot-test",
		Colors:      config.ColorConfig{Info: "green"},
	}, out)

	GetLogger().Info("Ledger loaded.")

	output := out.String()
	assert.Contains(t, output, ansiColors["green"]+"INFO"+ansiReset)
	assert.Contains(t, output, "feedpilot-test.")
	assert.Contains(t, output, "Ledger loaded.")
}

func TestInitialize_NoColor(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	t.Setenv("NO_COLOR", "1")

	out := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Info: "green"}}, out)
	GetLogger().Info("plain")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "INFO")
}

func TestBenignSyncError(t *testing.T) {
	assert.True(t, benignSyncError(fmt.Errorf("flush: %w", errors.New("sync /dev/stdout: invalid argument"))))
	assert.False(t, benignSyncError(errors.New("disk full")))
	assert.False(t, benignSyncError(nil))
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, second)

	GetLogger().Info("hello")
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String(), "second initialization is ignored")
}

func TestInitialize_LevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, out)

	GetLogger().Info("hidden")
	GetLogger().Warn("shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}

func TestNewLogger_FileSinkIsJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "feedpilot.log")
	logger, err := NewLogger(config.LoggerConfig{
		Level:   "info",
		Format:  "console",
		LogFile: logPath,
		MaxSize: 1,
	}, zapcore.AddSync(&bytes.Buffer{}))
	require.NoError(t, err)

	logger.Info("campaign finished")
	require.NoError(t, logger.Sync())

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "expected one log line")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "campaign finished", entry["msg"])
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, strings.HasSuffix(logger.Name(), "fallback"))
}
