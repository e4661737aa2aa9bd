package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. Precedence is env over file
// over defaults; command-line flags override all of it at the call site.
type Config struct {
	AppID           int    `yaml:"app_id"`
	AppHash         string `yaml:"app_hash"`
	SessionFile     string `yaml:"session_file"`
	OutputDir       string `yaml:"output_dir"`
	DownloadThreads int    `yaml:"download_threads"`
	PartSizeKB      int    `yaml:"part_size_kb"`
}

// Load builds the configuration from an optional YAML file and TG_* env
// vars. A .env file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OutputDir:       "chats",
		DownloadThreads: 1,
		PartSizeKB:      512,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.AppID == 0 || cfg.AppHash == "" {
		return nil, fmt.Errorf("api credentials missing: set app_id/app_hash in the config file or TG_APP_ID/TG_APP_HASH")
	}

	if cfg.SessionFile == "" {
		sessionFile, err := defaultSessionPath()
		if err != nil {
			return nil, err
		}
		cfg.SessionFile = sessionFile
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TG_APP_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TG_APP_ID: %w", err)
		}
		cfg.AppID = id
	}
	if v := os.Getenv("TG_APP_HASH"); v != "" {
		cfg.AppHash = v
	}
	if v := os.Getenv("TG_SESSION_FILE"); v != "" {
		cfg.SessionFile = v
	}
	if v := os.Getenv("TG_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("TG_DOWNLOAD_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TG_DOWNLOAD_THREADS: %w", err)
		}
		cfg.DownloadThreads = n
	}
	if v := os.Getenv("TG_PART_SIZE_KB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TG_PART_SIZE_KB: %w", err)
		}
		cfg.PartSizeKB = n
	}
	return nil
}

func defaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tg_chatdump", "session.json"), nil
}
