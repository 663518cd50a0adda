package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		" WARN ":  WarnLevel,
		"error":   ErrorLevel,
		"info":    InfoLevel,
		"verbose": InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

// 须在 InitLogger 之前运行
func TestHelpersAreNoOpsBeforeInit(t *testing.T) {
	require.Nil(t, globalLogger)
	assert.NotPanics(t, func() {
		Debug("debug", String("k", "v"))
		Info("info", Int("n", 1))
		Warn("warn", Int64("id", 2))
		Error("error", ErrorField(errors.New("boom")), Float64("f", 1.5))
		Sync()
	})
}

func TestInitLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "voxnote.log")
	InitLogger(Config{Level: DebugLevel, OutputPath: path, MaxSize: 1})
	require.NotNil(t, globalLogger)

	Info("[Logger] 写入测试", String("runId", "run-1"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runId":"run-1"`)
	assert.Contains(t, string(data), `"level":"info"`)
}
