package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stuartshay/geo-session-engine/internal/replay"
)

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.csv")
	content := "timestamp,latitude,longitude,accuracy\n2026-01-24T09:00:00Z,40.7484,-73.9857,8\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	fixes, err := readFile(path, replay.ReadFixes)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(fixes) != 1 {
		t.Fatalf("Expected 1 fix, got %d", len(fixes))
	}
	if fixes[0].Latitude != 40.7484 {
		t.Errorf("Expected latitude 40.7484, got %f", fixes[0].Latitude)
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := readFile(filepath.Join(t.TempDir(), "missing.csv"), replay.ReadFixes)
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	levels := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
	}
	for name, want := range levels {
		setLogLevel(name)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("setLogLevel(%q): expected %s, got %s", name, want, got)
		}
	}
}
