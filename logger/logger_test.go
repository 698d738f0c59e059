package logger

import (
	"os"
	"path/filepath"
	"testing"

	"pricecollector/config"
)

// go test -v --run TestNewInvalidLevel
func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

// go test -v --run TestNewWritesFile
func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "collector.log")

	log, err := New(config.LogConfig{Level: "debug", Format: "json", OutputFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if info.Size() == 0 {
		t.Error("log file is empty")
	}
}

// go test -v --run TestEncodingFor
func TestEncodingFor(t *testing.T) {
	tests := []struct {
		opts config.LogConfig
		want string
	}{
		{config.LogConfig{Environment: "dev"}, "console"},
		{config.LogConfig{Environment: "prod"}, "json"},
		{config.LogConfig{Environment: "prod", Format: "console"}, "console"},
		{config.LogConfig{Environment: "dev", Format: "json"}, "json"},
	}
	for _, tt := range tests {
		if got := encodingFor(tt.opts); got != tt.want {
			t.Errorf("encodingFor(%+v)=%s want %s", tt.opts, got, tt.want)
		}
	}
}
