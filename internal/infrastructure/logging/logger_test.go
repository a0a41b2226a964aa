package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoggerBackends(t *testing.T) {
	for _, backend := range []string{"zap", "zerolog"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			logger := NewLogger(&LoggerConfig{
				FilePath: dir,
				Encoding: "json",
				Level:    "info",
				Logger:   backend,
			})

			logger.Info(Room, Create, "room created", map[ExtraKey]any{RoomCode: "ABCDE"})
			logger.Debug(Room, Create, "filtered by level", nil)
			_ = logger.Sync()

			if _, err := os.Stat(filepath.Join(dir, logFileName)); err != nil {
				t.Errorf("expected log file to be created: %v", err)
			}
		})
	}
}

func TestNewLoggerUnknownBackendPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewLogger with unknown backend should panic")
		}
	}()

	NewLogger(&LoggerConfig{Logger: "logrus"})
}

func TestLogParamsToZapParams(t *testing.T) {
	params := logParamsToZapParams(map[ExtraKey]any{RoomCode: "ABCDE"})
	if len(params) != 2 || params[0] != "RoomCode" || params[1] != "ABCDE" {
		t.Errorf("logParamsToZapParams = %v", params)
	}
}
