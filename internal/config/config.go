package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port          int    `env:"PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RedisURL      string `env:"REDIS_URL,required"`
	ChatDriver    string `env:"CHAT_DRIVER" envDefault:"sim"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Session lifecycle tuning.
	InitTimeoutSeconds    int `env:"INIT_TIMEOUT_SECONDS" envDefault:"50"`
	PersistTimeoutSeconds int `env:"PERSIST_TIMEOUT_SECONDS" envDefault:"10"`

	// Archive pacing: how many records per bulk write, and how often/long to
	// pause between chats so the upstream account is not hammered.
	ArchiveBatchSize       int `env:"ARCHIVE_BATCH_SIZE" envDefault:"100"`
	ArchivePauseEveryChats int `env:"ARCHIVE_PAUSE_EVERY_CHATS" envDefault:"5"`
	ArchivePauseMillis     int `env:"ARCHIVE_PAUSE_MS" envDefault:"750"`
}

func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutSeconds) * time.Second
}

func (c *Config) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSeconds) * time.Second
}

func (c *Config) ArchivePause() time.Duration {
	return time.Duration(c.ArchivePauseMillis) * time.Millisecond
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if c.InitTimeoutSeconds <= 0 {
		return fmt.Errorf("INIT_TIMEOUT_SECONDS must be positive")
	}
	if c.PersistTimeoutSeconds <= 0 {
		return fmt.Errorf("PERSIST_TIMEOUT_SECONDS must be positive")
	}
	if c.ArchiveBatchSize < 1 {
		return fmt.Errorf("ARCHIVE_BATCH_SIZE must be at least 1")
	}
	if c.ArchivePauseEveryChats < 1 {
		return fmt.Errorf("ARCHIVE_PAUSE_EVERY_CHATS must be at least 1")
	}

	if isProduction {
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: session credentials will not be encrypted at rest")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
