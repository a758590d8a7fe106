package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBDriver      string `env:"DB_DRIVER" envDefault:"mysql"`
	DBHost        string `env:"DB_HOST" envDefault:"localhost"`
	DBPort        string `env:"DB_PORT" envDefault:"3306"`
	DBUser        string `env:"DB_USER" envDefault:"ctfuser"`
	DBPassword    string `env:"DB_PASSWORD" envDefault:"ctfpassword"`
	DBName        string `env:"DB_NAME" envDefault:"ctf_arena"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	SessionSecret string `env:"SESSION_SECRET" envDefault:"default-secret-key-change-me"`
	GinMode       string `env:"GIN_MODE" envDefault:"debug"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// RedisAddr returns the host:port address of the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
