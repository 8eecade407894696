package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmake/internal/config"
)

func TestShellSubsystemUsesStricterThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DefaultConfig(), &buf)
	shell := ForSubsystem(logger, SubsystemShell)

	logger.Info("compiling docs")
	shell.Info("make html")
	shell.Debug("echo")
	shell.Error("make exploded")

	out := buf.String()
	require.Contains(t, out, "compiling docs")
	require.NotContains(t, out, "make html")
	require.NotContains(t, out, "echo")
	require.Contains(t, out, "make exploded")
	require.Contains(t, out, "subsystem=shell")
}

func TestGeneralThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DefaultConfig(), &buf)

	logger.Debug("hidden")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestVerboseKeepsShellThreshold(t *testing.T) {
	cfg := FromConfig(config.LoggingConfig{Level: config.LogLevelInfo, ShellLevel: config.LogLevelError}, true)
	require.Equal(t, slog.LevelDebug, cfg.General)
	require.Equal(t, slog.LevelError, cfg.Shell)

	var buf bytes.Buffer
	logger := New(cfg, &buf)
	logger.Debug("general debug")
	ForSubsystem(logger, SubsystemShell).Warn("shell warn")

	require.Contains(t, buf.String(), "general debug")
	require.NotContains(t, buf.String(), "shell warn")
}

func TestLooserShellThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{General: slog.LevelError, Shell: slog.LevelDebug}, &buf)

	ForSubsystem(logger, SubsystemShell).Debug("command echo")
	logger.Info("general info")

	require.Contains(t, buf.String(), "command echo")
	require.NotContains(t, buf.String(), "general info")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = config.LogFormatJSON
	New(cfg, &buf).WithGroup("run").Info("hello", "stage", "build")

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, map[string]any{"stage": "build"}, rec["run"])
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(DefaultConfig(), &buf)
	require.Same(t, logger, slog.Default())

	slog.Info("through default")
	require.Contains(t, buf.String(), "through default")
}
