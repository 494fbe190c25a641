package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Store    StoreConfig    `yaml:"store"`
	NATS     NATSConfig     `yaml:"nats"`
	Telegram TelegramConfig `yaml:"telegram"`
	Log      LogConfig      `yaml:"log"`
}

type GeminiConfig struct {
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CorsOrigins []string `yaml:"cors_origins"`
}

// ScheduleConfig controls the periodic board refresh. An empty Cron disables it.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Platform string `yaml:"platform"`
	Window   string `yaml:"window"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:      "gemini-2.5-flash",
			Timeout:    90 * time.Second,
			MaxRetries: 2,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			CorsOrigins: []string{"*"},
		},
		Schedule: ScheduleConfig{
			Cron:     "*/30 * * * *",
			Platform: "all",
			Window:   "today",
		},
		Store: StoreConfig{Path: "data/trendscope.db"},
		NATS:  NATSConfig{Subject: "trendscope.refresh"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the yaml file at path (a missing file is not an error), then
// applies environment overrides. Variables from a .env file in the working
// directory are loaded first but never replace ones already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config fields with environment variables when set.
func applyEnv(cfg *Config) {
	if v := firstEnv("GEMINI_API_KEY", "API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("GEMINI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gemini.Timeout = d
		}
	}
	if v := os.Getenv("GEMINI_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gemini.MaxRetries = n
		}
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CorsOrigins = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("REFRESH_CRON"); ok {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.NATS.Subject = v
	}
	if v := os.Getenv("TG_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TG_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
