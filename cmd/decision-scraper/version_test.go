package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/promisingcoder/decision-scraper/internal/config"
)

// TestBuildStamps tests that every version field has a fallback.
func TestBuildStamps(t *testing.T) {
	t.Parallel()

	for name, fn := range map[string]func() string{
		"version": getVersion,
		"commit":  getCommit,
		"date":    getDate,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if fn() == "" {
				t.Errorf("%s is empty", name)
			}
		})
	}

	t.Run("missing vcs setting", func(t *testing.T) {
		t.Parallel()
		if got := vcsSetting("no.such.key"); got != "unknown" {
			t.Errorf("expected 'unknown', got %q", got)
		}
	})
}

// TestNewVersionCmd tests the version command.
func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints build information", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"decision-scraper version " + getVersion(),
			"commit:",
			"built:",
			"go:",
			"model:  " + config.DefaultModel,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got %q", want, output)
			}
		}
	})

	t.Run("rejects arguments", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetErr(&buf)
		cmd.SetArgs([]string{"extra"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for extra argument")
		}
	})
}
