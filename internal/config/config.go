package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full client configuration. Values come from an optional YAML
// file, with environment variables overriding individual fields.
type Config struct {
	API struct {
		BaseURL   string `yaml:"base_url"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"api"`

	Push struct {
		// Transport selects the push source: "ws" or "nats".
		Transport string `yaml:"transport"`
		WSURL     string `yaml:"ws_url"`
		NATSURL   string `yaml:"nats_url"`
		// NATSMaxReconnects caps NATS reconnect attempts; -1 retries
		// forever.
		NATSMaxReconnects int `yaml:"nats_max_reconnects"`
	} `yaml:"push"`

	Room struct {
		ID string `yaml:"id"`
	} `yaml:"room"`

	Sync struct {
		NumbersPollInterval   time.Duration `yaml:"numbers_poll_interval"`
		FreshnessWindow       time.Duration `yaml:"freshness_window"`
		LifecyclePollInterval time.Duration `yaml:"lifecycle_poll_interval"`
		SettleDelay           time.Duration `yaml:"settle_delay"`
	} `yaml:"sync"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads path (skipped when empty or missing) and applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.API.BaseURL = getEnv("BINGO_API_URL", cfg.API.BaseURL)
	cfg.API.AuthToken = getEnv("BINGO_AUTH_TOKEN", cfg.API.AuthToken)
	cfg.Push.Transport = getEnv("BINGO_PUSH_TRANSPORT", cfg.Push.Transport)
	cfg.Push.WSURL = getEnv("BINGO_WS_URL", cfg.Push.WSURL)
	cfg.Push.NATSURL = getEnv("BINGO_NATS_URL", cfg.Push.NATSURL)
	cfg.Push.NATSMaxReconnects = getEnvAsInt("BINGO_NATS_MAX_RECONNECTS", cfg.Push.NATSMaxReconnects)
	cfg.Room.ID = getEnv("BINGO_ROOM_ID", cfg.Room.ID)
	cfg.Log.Level = getEnv("BINGO_LOG_LEVEL", cfg.Log.Level)

	cfg.Sync.NumbersPollInterval = getEnvAsDuration("BINGO_NUMBERS_POLL_INTERVAL", cfg.Sync.NumbersPollInterval)
	cfg.Sync.FreshnessWindow = getEnvAsDuration("BINGO_FRESHNESS_WINDOW", cfg.Sync.FreshnessWindow)
	cfg.Sync.LifecyclePollInterval = getEnvAsDuration("BINGO_LIFECYCLE_POLL_INTERVAL", cfg.Sync.LifecyclePollInterval)
	cfg.Sync.SettleDelay = getEnvAsDuration("BINGO_SETTLE_DELAY", cfg.Sync.SettleDelay)

	applyDefaults(&cfg)

	if cfg.Room.ID == "" {
		return nil, fmt.Errorf("room id is required (BINGO_ROOM_ID or room.id)")
	}
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("API base URL is required (BINGO_API_URL or api.base_url)")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Push.Transport == "" {
		cfg.Push.Transport = "ws"
	}
	if cfg.Push.NATSMaxReconnects == 0 {
		cfg.Push.NATSMaxReconnects = -1
	}
	if cfg.Sync.NumbersPollInterval == 0 {
		cfg.Sync.NumbersPollInterval = 5 * time.Second
	}
	if cfg.Sync.FreshnessWindow == 0 {
		cfg.Sync.FreshnessWindow = 4 * time.Second
	}
	if cfg.Sync.LifecyclePollInterval == 0 {
		cfg.Sync.LifecyclePollInterval = 15 * time.Second
	}
	if cfg.Sync.SettleDelay == 0 {
		cfg.Sync.SettleDelay = 2 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
