package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test",
			Password: "test",
			Database: "test_db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Sync: SyncConfig{
			DebounceDelay: 60 * time.Second,
			PollInterval:  30 * time.Second,
			RetryBackoff:  30 * time.Second,
			PurgeAge:      24 * time.Hour,
			BatchSize:     50,
			LocalDBPath:   "test.db",
		},
		Replicator: ReplicatorConfig{
			ConsumerGroup: "doc-replicators",
			BatchSize:     10,
			BlockDuration: time.Second,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_InvalidReadTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ReadTimeout = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read_timeout")
}

func TestConfig_Validate_MissingDatabaseHost(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}

func TestConfig_Validate_InvalidRedisPort(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Port = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis.port")
}

func TestConfig_Validate_NegativeDebounce(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.DebounceDelay = -time.Second

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync.debounce_delay")
}

func TestConfig_Validate_ZeroDebounceAllowed(t *testing.T) {
	// Zero debounce means "push immediately on the next cycle"; it is
	// a legitimate setting for tests and interactive tooling.
	cfg := validConfig()
	cfg.Sync.DebounceDelay = 0

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_InvalidSyncBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.BatchSize = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync.batch_size")
}

func TestConfig_Validate_MissingLocalDBPath(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.LocalDBPath = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync.local_db_path")
}

func TestConfig_Validate_MissingConsumerGroup(t *testing.T) {
	cfg := validConfig()
	cfg.Replicator.ConsumerGroup = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "replicator.consumer_group")
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Database.Host = ""
	cfg.Sync.BatchSize = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "database.host")
	assert.Contains(t, err.Error(), "sync.batch_size")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		Database: "taskgo", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=taskgo sslmode=disable", cfg.DatabaseDSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
}
