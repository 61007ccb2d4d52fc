package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the environment-sourced configuration for the service. It is
// parsed once at startup and injected into the components that need it.
type Config struct {
	Environment    string        `env:"ENVIRONMENT"     envDefault:"development"`
	Port           string        `env:"PORT"            envDefault:"8080"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	MongoURI       string        `env:"MONGO_URI"       envDefault:"mongodb://localhost:27017"`
	MongoDatabase  string        `env:"MONGO_DATABASE"  envDefault:"authapi"`
	JWTSecret      string        `env:"JWT_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL"     envDefault:"168h"`
}

// Load parses the configuration from environment variables. Outside
// production a .env file in the working directory is loaded first.
func Load(logger *zerolog.Logger) *Config {
	cfg, err := load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	return cfg
}

func load() (*Config, error) {
	if os.Getenv("ENVIRONMENT") != "production" {
		// Missing .env is fine; explicit environment variables still apply.
		_ = godotenv.Load()
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs in production mode. Cookie
// flags depend on it.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("missing JWT_SECRET environment variable")
	}

	return nil
}
