package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Media       MediaConfig               `json:"media"`
	Storage     StorageConfig             `json:"storage"`
	Pipeline    PipelineConfig            `json:"pipeline"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	FileBaseDir       string `json:"file_base_dir"`
	ChatProvider      string `json:"chat_provider"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ProviderConfig describes one chat-model provider (openai, gemini, claude).
type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// MediaConfig configures the image-generation and speech-synthesis endpoints.
type MediaConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	ImageModel string `json:"image_model"`
	TTSModel   string `json:"tts_model"`
	TTSVoice   string `json:"tts_voice"`
}

// StorageConfig points at the object-storage project holding covers and audio.
type StorageConfig struct {
	URL        string `json:"url"`
	ServiceKey string `json:"service_key"`
	Bucket     string `json:"bucket"`
}

// PipelineConfig carries generation tuning knobs. Zero values fall back to
// defaults in the pipeline package.
type PipelineConfig struct {
	ScriptMaxChars    int `json:"script_max_chars"`
	UploadAttempts    int `json:"upload_attempts"`
	UploadBaseDelayMs int `json:"upload_base_delay_ms"`
	RunLockTTLMinutes int `json:"run_lock_ttl_minutes"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}

	// Resolve sqlite paths relative to the config file location.
	for name, db := range cfg.Databases {
		if db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	return &cfg, nil
}
