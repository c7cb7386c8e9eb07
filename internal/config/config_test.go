package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "paleon_db", cfg.Database.Database)
				assert.Equal(t, "classify_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "classify_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "classify_retry_queue", cfg.RabbitMQ.RetryQueue.Name)
				assert.Equal(t, 60*time.Second, cfg.RabbitMQ.RetryQueue.Delay)
				assert.Equal(t, 11, cfg.RateLimit.Tiers["free"])
				assert.Equal(t, "paleon-api-service", cfg.App.Name)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	// Values already in the file stay untouched, absent ones get defaults
	assert.Equal(t, "free", cfg.RateLimit.DefaultTier)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Worker.HardTimeLimit)
	assert.Equal(t, 25*time.Minute, cfg.Worker.SoftTimeLimit)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "paleon_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "classify_exchange",
			},
			Queue: QueueConfig{
				Name: "classify_queue",
			},
			RetryQueue: RetryQueueConfig{
				Name: "classify_retry_queue",
			},
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{SecretKey: "secret"},
		Worker: WorkerConfig{
			Concurrency:   2,
			HardTimeLimit: 30 * time.Minute,
			SoftTimeLimit: 25 * time.Minute,
		},
		Classifier: ClassifierConfig{
			Provider: "mock",
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty retry queue name",
			mutate:    func(c *Config) { c.RabbitMQ.RetryQueue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq retry queue name is required",
		},
		{
			name:      "missing secret key",
			mutate:    func(c *Config) { c.Auth.SecretKey = "" },
			wantErr:   true,
			errString: "secret_key is required",
		},
		{
			name:      "missing redis host",
			mutate:    func(c *Config) { c.Redis.Host = "" },
			wantErr:   true,
			errString: "redis host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency must be greater than 0",
		},
		{
			name: "soft limit above hard limit",
			mutate: func(c *Config) {
				c.Worker.SoftTimeLimit = time.Hour
			},
			wantErr:   true,
			errString: "soft_time_limit must be below hard_time_limit",
		},
		{
			name: "openai provider without key",
			mutate: func(c *Config) {
				c.Classifier.Provider = "openai"
			},
			wantErr:   true,
			errString: "openai api_key is required",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Classifier.Provider = "gemini"
			},
			wantErr:   true,
			errString: "unknown classifier provider",
		},
		{
			name: "file prompt source without path",
			mutate: func(c *Config) {
				c.Classifier.PromptSource = "file"
			},
			wantErr:   true,
			errString: "prompt_file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
