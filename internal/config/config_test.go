package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		viper.Reset()
		t.Setenv("HOME", t.TempDir())
		t.Chdir(t.TempDir())

		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}

		config := Get()
		if config.Run.Timeout != 30*time.Second {
			t.Errorf("Expected default timeout 30s, got %s", config.Run.Timeout)
		}
		if config.Shim.Path != "" {
			t.Errorf("Expected no default shim, got %q", config.Shim.Path)
		}
	})

	t.Run("reads explicit config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "waycheck.toml")
		content := `[shim]
path = "/opt/shims/weston.so"
args = ["--backend=headless"]

[run]
timeout = "5s"
cases = ["truncated_shm_file"]

[display]
name = "wayland-9"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		viper.Reset()
		SetConfigPath(path)
		defer SetConfigPath("")

		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}

		config := Get()
		if config.Shim.Path != "/opt/shims/weston.so" {
			t.Errorf("shim.path = %q", config.Shim.Path)
		}
		if len(config.Shim.Args) != 1 || config.Shim.Args[0] != "--backend=headless" {
			t.Errorf("shim.args = %v", config.Shim.Args)
		}
		if config.Run.Timeout != 5*time.Second {
			t.Errorf("run.timeout = %s", config.Run.Timeout)
		}
		if len(config.Run.Cases) != 1 || config.Run.Cases[0] != "truncated_shm_file" {
			t.Errorf("run.cases = %v", config.Run.Cases)
		}
		if config.Display.Name != "wayland-9" {
			t.Errorf("display.name = %q", config.Display.Name)
		}
		if GetConfigPath() != path {
			t.Errorf("GetConfigPath() = %q, want %q", GetConfigPath(), path)
		}
	})

	t.Run("handles invalid TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "waycheck.toml")
		if err := os.WriteFile(path, []byte("[shim\npath = 1"), 0644); err != nil {
			t.Fatal(err)
		}

		viper.Reset()
		SetConfigPath(path)
		defer SetConfigPath("")

		err := Init()
		if err == nil {
			t.Fatal("Init() should fail on invalid TOML")
		}
		if !strings.Contains(err.Error(), "error reading config file") {
			t.Errorf("Expected read error, got: %v", err)
		}
	})
}

func TestGetWithoutInit(t *testing.T) {
	Set(nil)
	if Get() != &DefaultConfig {
		t.Error("Get() should return defaults before Init()")
	}
}
