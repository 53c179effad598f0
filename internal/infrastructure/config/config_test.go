package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"FULFILLMENT_APP_NAME":          os.Getenv("FULFILLMENT_APP_NAME"),
		"FULFILLMENT_APP_ENV":           os.Getenv("FULFILLMENT_APP_ENV"),
		"FULFILLMENT_APP_PORT":          os.Getenv("FULFILLMENT_APP_PORT"),
		"FULFILLMENT_DATABASE_HOST":     os.Getenv("FULFILLMENT_DATABASE_HOST"),
		"FULFILLMENT_DATABASE_PORT":     os.Getenv("FULFILLMENT_DATABASE_PORT"),
		"FULFILLMENT_DATABASE_USER":     os.Getenv("FULFILLMENT_DATABASE_USER"),
		"FULFILLMENT_DATABASE_PASSWORD": os.Getenv("FULFILLMENT_DATABASE_PASSWORD"),
		"FULFILLMENT_DATABASE_DBNAME":   os.Getenv("FULFILLMENT_DATABASE_DBNAME"),
		"FULFILLMENT_DATABASE_SSLMODE":  os.Getenv("FULFILLMENT_DATABASE_SSLMODE"),
		"FULFILLMENT_JOBQUEUE_MAX_ATTEMPTS": os.Getenv("FULFILLMENT_JOBQUEUE_MAX_ATTEMPTS"),
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

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "fulfillment", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "fulfillment", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 256, cfg.JobQueue.LaneBuffer)
		assert.Equal(t, 5, cfg.JobQueue.MaxAttempts)
	})

	t.Run("loads values from environment variables", func(t *testing.T) {
		clearEnv()
		os.Setenv("FULFILLMENT_APP_NAME", "fulfillment-test")
		os.Setenv("FULFILLMENT_DATABASE_HOST", "testdb.local")
		os.Setenv("FULFILLMENT_DATABASE_PORT", "5433")
		os.Setenv("FULFILLMENT_JOBQUEUE_MAX_ATTEMPTS", "3")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "fulfillment-test", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 3, cfg.JobQueue.MaxAttempts)
	})

	t.Run("production requires password and ssl", func(t *testing.T) {
		clearEnv()
		os.Setenv("FULFILLMENT_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")

		os.Setenv("FULFILLMENT_DATABASE_PASSWORD", "secret")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")

		os.Setenv("FULFILLMENT_DATABASE_SSLMODE", "require")
		_, err = Load()
		assert.NoError(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("builds DSN with escaped credentials", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "db.internal",
			Port:     5432,
			User:     "svc",
			Password: "p@ss/word",
			DBName:   "fulfillment",
			SSLMode:  "require",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "postgres://")
		assert.Contains(t, dsn, "db.internal:5432")
		assert.Contains(t, dsn, "sslmode=require")
		assert.NotContains(t, dsn, "p@ss/word")
	})
}
