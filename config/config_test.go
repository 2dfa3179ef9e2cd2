package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func loadForTest(t *testing.T, args []string) Config {
	t.Helper()

	cmd := &cobra.Command{Use: "mailpipe"}
	RegisterFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	return cfg
}

func TestLoadConfig_PipeCommandKeepsArgsVerbatim(t *testing.T) {
	cfg := loadForTest(t, []string{
		"--pipe", "reformail",
		"--pipe-arg", "-I",
		"--pipe-arg", "X-Filtered: by mailpipe",
	})

	want := []string{"reformail", "-I", "X-Filtered: by mailpipe"}
	if len(cfg.PipeCommand) != len(want) {
		t.Fatalf("PipeCommand = %v, want %v", cfg.PipeCommand, want)
	}
	for i := range want {
		if cfg.PipeCommand[i] != want[i] {
			t.Fatalf("PipeCommand = %v, want %v; arguments with spaces must survive intact", cfg.PipeCommand, want)
		}
	}
}

func TestLoadConfig_NoPipeProgram(t *testing.T) {
	cfg := loadForTest(t, []string{"--pipe-arg", "-x"})
	if cfg.PipeCommand != nil {
		t.Errorf("PipeCommand = %v, want nil when --pipe is absent", cfg.PipeCommand)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadForTest(t, nil)

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if len(cfg.DeliverTo) != 0 {
		t.Errorf("DeliverTo = %v, want empty (system default mailbox)", cfg.DeliverTo)
	}
	if cfg.RejectReason == "" {
		t.Error("RejectReason is empty, want a default bounce reason")
	}
}

func TestLoadConfig_NormalizesWarningLevel(t *testing.T) {
	cfg := loadForTest(t, []string{"--log-level", "Warning"})
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}
