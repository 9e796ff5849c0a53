package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./jobsync.db" {
			t.Errorf("expected database path ./jobsync.db, got %s", config.Database.Path)
		}

		if config.Poll.Interval != 3*time.Second {
			t.Errorf("expected poll interval 3s, got %v", config.Poll.Interval)
		}

		if config.Store.Debounce != 250*time.Millisecond {
			t.Errorf("expected debounce 250ms, got %v", config.Store.Debounce)
		}

		if config.Store.EchoWindow != 100*time.Millisecond {
			t.Errorf("expected echo window 100ms, got %v", config.Store.EchoWindow)
		}

		if config.Dismiss.FadeAfter != 4500*time.Millisecond || config.Dismiss.After != 5*time.Second {
			t.Errorf("unexpected dismiss timings: fade=%v after=%v", config.Dismiss.FadeAfter, config.Dismiss.After)
		}

		if !config.Poll.ReviewPartialResults {
			t.Error("expected partial results to open review by default")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[api]
base_url = "http://localhost:9090"
token = "secret"

[user]
id = "user-42"

[poll]
interval = "1s"
review_partial_results = false
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "http://localhost:9090" {
			t.Errorf("expected base URL http://localhost:9090, got %s", config.API.BaseURL)
		}
		if config.User.ID != "user-42" {
			t.Errorf("expected user id user-42, got %s", config.User.ID)
		}
		if config.Poll.Interval != time.Second {
			t.Errorf("expected poll interval 1s, got %v", config.Poll.Interval)
		}
		if config.Poll.ReviewPartialResults {
			t.Error("expected review_partial_results to be overridden")
		}
		if config.Dismiss.After != 5*time.Second {
			t.Errorf("expected unset sections to keep defaults, got dismiss.after=%v", config.Dismiss.After)
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[dismiss]
fade_after = "6s"
after = "5s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		tmpDir := t.TempDir()
		envPath := filepath.Join(tmpDir, ".env")
		if err := os.WriteFile(envPath, []byte("JOBSYNC_USER_ID=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		t.Setenv(EnvAPIToken, "from-env")
		t.Setenv(EnvUserID, "")
		os.Unsetenv(EnvUserID)
		t.Cleanup(func() { os.Unsetenv(EnvUserID) })

		config := DefaultConfig()
		config.ApplyEnv(envPath)

		if config.API.Token != "from-env" {
			t.Errorf("expected token from environment, got %q", config.API.Token)
		}
		if config.User.ID != "from-dotenv" {
			t.Errorf("expected user id from .env, got %q", config.User.ID)
		}
	})
}
