package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// JWTConfig holds the token signing settings. SecretKey is the process-wide
// AuthSecret and must never be logged.
type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	Issuer         string        `mapstructure:"issuer"`
	CacheCleanup   time.Duration `mapstructure:"cacheCleanup"`
}

// HasherConfig selects and tunes the password hashing algorithm.
type HasherConfig struct {
	Algorithm     string `mapstructure:"algorithm"`
	BcryptCost    int    `mapstructure:"bcryptCost"`
	Argon2Time    uint32 `mapstructure:"argon2Time"`
	Argon2Memory  uint32 `mapstructure:"argon2Memory"`
	Argon2Threads uint8  `mapstructure:"argon2Threads"`
	MaxConcurrent int64  `mapstructure:"maxConcurrent"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port    string `mapstructure:"port"`
			Enabled bool   `mapstructure:"enabled"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Enabled           bool   `mapstructure:"enabled"`
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Hasher HasherConfig `mapstructure:"hasher"`
}

// InitConfig loads config.yml from the usual locations, falling back to the
// embedded copy. The dotenv file it names is loaded next, and environment
// variables override file values.
func InitConfig() (Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	return load(v)
}

// Load parses configuration from r. Used by tests and tools that ship their own file.
func Load(r io.Reader) (Config, error) {
	v := viper.New()
	v.SetConfigType("yml")
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	var config Config

	// Variables from the dotenv file never override the real environment.
	if path := v.GetString("dotenv"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load dotenv file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("mode", "APP_ENV")
	_ = v.BindEnv("server.HTTPPort", "HTTP_PORT")
	_ = v.BindEnv("jwt.secretKey", "JWT_SECRET")
	_ = v.BindEnv("jwt.accessTokenTTL", "JWT_TTL")
	_ = v.BindEnv("repositories.postgres.enabled", "POSTGRES_ENABLED")
	_ = v.BindEnv("repositories.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("repositories.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("repositories.postgres.username", "POSTGRES_USER")
	_ = v.BindEnv("repositories.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("repositories.postgres.db", "POSTGRES_DB")
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "3000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 60 * time.Second
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = time.Hour
	}
	if c.JWT.CacheCleanup == 0 {
		c.JWT.CacheCleanup = 10 * time.Minute
	}
	if c.Hasher.Algorithm == "" {
		c.Hasher.Algorithm = "bcrypt"
	}
	if c.Hasher.BcryptCost == 0 {
		c.Hasher.BcryptCost = 10
	}
	if c.Hasher.Argon2Time == 0 {
		c.Hasher.Argon2Time = 1
	}
	if c.Hasher.Argon2Memory == 0 {
		c.Hasher.Argon2Memory = 64 * 1024
	}
	if c.Hasher.Argon2Threads == 0 {
		c.Hasher.Argon2Threads = 4
	}
	if c.Hasher.MaxConcurrent == 0 {
		c.Hasher.MaxConcurrent = 8
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return errors.New("jwt.secretKey must be set (env JWT_SECRET)")
	}
	if c.JWT.AccessTokenTTL < 0 {
		return fmt.Errorf("jwt.accessTokenTTL must be positive (got: %s)", c.JWT.AccessTokenTTL)
	}
	switch c.Hasher.Algorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unsupported hasher algorithm: %s (use bcrypt or argon2id)", c.Hasher.Algorithm)
	}
	if c.Hasher.BcryptCost < 4 || c.Hasher.BcryptCost > 31 {
		return fmt.Errorf("hasher.bcryptCost must be between 4 and 31 (got: %d)", c.Hasher.BcryptCost)
	}
	if c.Hasher.MaxConcurrent < 1 {
		return fmt.Errorf("hasher.maxConcurrent must be >= 1 (got: %d)", c.Hasher.MaxConcurrent)
	}
	return nil
}

// IsDevelopment reports whether the tint console logger should be used.
func (c *Config) IsDevelopment() bool {
	return c.Mode == "" || c.Mode == "development"
}
