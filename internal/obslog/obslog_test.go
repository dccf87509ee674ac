package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInitFromEnvWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.log")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Cleanup(func() { globalLogger = zap.NewNop() })

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	L().Debug("session_state")
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"session_state"`) {
		t.Fatalf("entry not written as json: %s", raw)
	}
}

func TestInitWithoutSinksIsSilent(t *testing.T) {
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "false")
	t.Cleanup(func() { globalLogger = zap.NewNop() })
	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	if L().Core().Enabled(parseLevel("error")) {
		t.Fatalf("expected a no-op logger")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING").String() != "warn" || parseLevel("bogus").String() != "info" {
		t.Fatalf("unexpected level parsing")
	}
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_CALLER", "")
	t.Setenv("LOG_TO_CONSOLE", "")
	t.Setenv("LOG_TO_FILE", "")
	t.Setenv("LOG_FILE", "")
	s := settingsFromEnv()
	if s.console || s.json || s.caller || s.file != filepath.Join("logs", "client.log") || s.level.String() != "info" {
		t.Fatalf("unexpected defaults: %+v", s)
	}

	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_TO_CONSOLE", "1")
	t.Setenv("LOG_FORMAT", "JSON")
	if s := settingsFromEnv(); s.file != "" || !s.console || !s.json {
		t.Fatalf("overrides not applied: %+v", s)
	}
}

func TestTextFormatIsPipeSeparated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "info")
	t.Cleanup(func() { globalLogger = zap.NewNop() })

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	L().Info("auth_success", zap.String("session_id", "abc"))
	L().Debug("below_level")
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, " | INFO | auth_success") || strings.Contains(out, "below_level") {
		t.Fatalf("unexpected text log: %s", out)
	}
}
