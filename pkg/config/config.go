package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	OperatorID    int64  `mapstructure:"operator_id"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type StorageConfig struct {
	// Backend is one of "file", "memory", "postgres".
	Backend  string         `mapstructure:"backend"`
	FilePath string         `mapstructure:"file_path"`
	Database DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type DeliveryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	BroadcastDelay time.Duration `mapstructure:"broadcast_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file_path", "state.json")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.user", "postgres")
	v.SetDefault("storage.database.sslmode", "disable")
	v.SetDefault("delivery.max_attempts", 3)
	v.SetDefault("delivery.retry_backoff", "500ms")
	v.SetDefault("delivery.broadcast_delay", "100ms")
	v.SetDefault("delivery.attempt_timeout", "30s")

	v.AutomaticEnv()

	// The config file is optional; environment variables alone are enough
	// to run.
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if operatorID := v.GetInt64("OPERATOR_ID"); operatorID != 0 {
		config.Telegram.OperatorID = operatorID
	}
	if secret := v.GetString("WEBHOOK_SECRET"); secret != "" {
		config.Telegram.WebhookSecret = secret
	}
	if statePath := v.GetString("STATE_FILE"); statePath != "" {
		config.Storage.FilePath = statePath
	}
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Storage.Backend = "postgres"
		config.Storage.Database = dbConfig
	}

	if config.Telegram.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if config.Telegram.OperatorID == 0 {
		return nil, errors.New("operator id is required")
	}

	return &config, nil
}
