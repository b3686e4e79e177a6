package logger

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		log, err := New(Config{Level: "info", Format: "json"})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		log.WithComponent("test").WithRequestID("req-1").WithSession("user-1").Info("hello")
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		log, err := New(Config{Level: "debug", Format: "console", File: &FileConfig{Enabled: true, Path: path}})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		log.LogRequest("GET", "/health", 200, time.Millisecond, map[string][]string{"Authorization": {"Bearer x"}})
		_ = log.Sync()
	})

	t.Run("bad level", func(t *testing.T) {
		if _, err := New(Config{Level: "loud"}); err == nil {
			t.Error("Expected error for unknown level")
		}
	})
}

func TestIsSensitiveHeader(t *testing.T) {
	for header, want := range map[string]bool{
		"Authorization": true,
		"Cookie":        true,
		"X-User-ID":     true,
		"Content-Type":  false,
	} {
		if got := isSensitiveHeader(header); got != want {
			t.Errorf("isSensitiveHeader(%q) = %v, want %v", header, got, want)
		}
	}
}
