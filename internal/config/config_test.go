package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("InitTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{InitTimeoutSeconds: 50}
		assert.Equal(t, 50*time.Second, cfg.InitTimeout())
	})

	t.Run("PersistTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{PersistTimeoutSeconds: 10}
		assert.Equal(t, 10*time.Second, cfg.PersistTimeout())
	})

	t.Run("ArchivePause converts millis to duration", func(t *testing.T) {
		cfg := &Config{ArchivePauseMillis: 750}
		assert.Equal(t, 750*time.Millisecond, cfg.ArchivePause())
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:            "postgres://localhost/test",
			RedisURL:               "redis://localhost:6379",
			InitTimeoutSeconds:     50,
			PersistTimeoutSeconds:  10,
			ArchiveBatchSize:       100,
			ArchivePauseEveryChats: 5,
		}
	}

	t.Run("accepts valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate(false))
	})

	t.Run("accepts 64 hex char encryption key", func(t *testing.T) {
		cfg := valid()
		cfg.EncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("rejects malformed encryption key", func(t *testing.T) {
		cfg := valid()
		cfg.EncryptionKey = "not-hex"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects short encryption key", func(t *testing.T) {
		cfg := valid()
		cfg.EncryptionKey = "abcd1234"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive timeouts", func(t *testing.T) {
		cfg := valid()
		cfg.InitTimeoutSeconds = 0
		assert.Error(t, cfg.Validate(false))

		cfg = valid()
		cfg.PersistTimeoutSeconds = -1
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects zero batch size and pause interval", func(t *testing.T) {
		cfg := valid()
		cfg.ArchiveBatchSize = 0
		assert.Error(t, cfg.Validate(false))

		cfg = valid()
		cfg.ArchivePauseEveryChats = 0
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                 os.Getenv("PORT"),
		"DATABASE_URL":         os.Getenv("DATABASE_URL"),
		"REDIS_URL":            os.Getenv("REDIS_URL"),
		"CHAT_DRIVER":          os.Getenv("CHAT_DRIVER"),
		"INIT_TIMEOUT_SECONDS": os.Getenv("INIT_TIMEOUT_SECONDS"),
		"ARCHIVE_BATCH_SIZE":   os.Getenv("ARCHIVE_BATCH_SIZE"),
		"LOG_LEVEL":            os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("CHAT_DRIVER")
		os.Unsetenv("INIT_TIMEOUT_SECONDS")
		os.Unsetenv("ARCHIVE_BATCH_SIZE")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, "sim", cfg.ChatDriver)
		assert.Equal(t, 50, cfg.InitTimeoutSeconds)
		assert.Equal(t, 10, cfg.PersistTimeoutSeconds)
		assert.Equal(t, 100, cfg.ArchiveBatchSize)
		assert.Equal(t, 5, cfg.ArchivePauseEveryChats)
		assert.Equal(t, 750, cfg.ArchivePauseMillis)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("INIT_TIMEOUT_SECONDS", "5")
		os.Setenv("ARCHIVE_BATCH_SIZE", "25")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 5, cfg.InitTimeoutSeconds)
		assert.Equal(t, 25, cfg.ArchiveBatchSize)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required REDIS_URL", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Unsetenv("REDIS_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}
