package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener and token settings.
type Server struct {
	Port            string `toml:"port"`
	BaseURL         string `toml:"base_url"`
	JWTSecret       string `toml:"jwt_secret"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes"`
	DocsEnabled     bool   `toml:"docs_enabled"`
}

type Database struct {
	URL string `toml:"url"`
}

// Storage contains the S3-compatible bucket used for uploads and results.
type Storage struct {
	Endpoint       string `toml:"endpoint"`
	PublicEndpoint string `toml:"public_endpoint"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Region         string `toml:"region"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Intake controls the simulated processor.
type Intake struct {
	TickMillis   int    `toml:"tick_ms"`
	Step         int    `toml:"step"`
	FailAt       int    `toml:"fail_at"`
	ResultURL    string `toml:"result_url"`
	ResultPoster string `toml:"result_poster"`

	// WebhookURL receives a signed event when a session completes or fails.
	WebhookURL    string `toml:"webhook_url"`
	WebhookSecret string `toml:"webhook_secret"`
}

// User is an account allowed to sign in.
type User struct {
	ID           string `toml:"id"`
	Email        string `toml:"email"`
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Storage  Storage  `toml:"storage"`
	Logging  Logging  `toml:"logging"`
	Intake   Intake   `toml:"intake"`
	Users    []User   `toml:"users"`
}

// SampleConfig returns an annotated example configuration file.
func SampleConfig() string {
	return sampleConfig
}

// Load builds a Config from defaults, the TOML file at path (if non-empty) and
// environment overrides read through getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// FromEnv loads the file named by VIDFORGE_CONFIG, if any, plus environment overrides.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("VIDFORGE_CONFIG"), os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", key, v)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Server.Port)
	str("BASE_URL", &c.Server.BaseURL)
	str("JWT_SECRET", &c.Server.JWTSecret)
	str("DATABASE_URL", &c.Database.URL)
	str("S3_ENDPOINT", &c.Storage.Endpoint)
	str("S3_PUBLIC_ENDPOINT", &c.Storage.PublicEndpoint)
	str("S3_BUCKET", &c.Storage.Bucket)
	str("S3_ACCESS_KEY", &c.Storage.AccessKey)
	str("S3_SECRET_KEY", &c.Storage.SecretKey)
	str("S3_REGION", &c.Storage.Region)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_LEVEL", &c.Logging.Level)
	str("INTAKE_RESULT_URL", &c.Intake.ResultURL)
	str("INTAKE_WEBHOOK_URL", &c.Intake.WebhookURL)
	str("INTAKE_WEBHOOK_SECRET", &c.Intake.WebhookSecret)
	if v := getenv("API_DOCS_ENABLED"); v != "" {
		c.Server.DocsEnabled = v == "true"
	}

	return errors.Join(
		num("TOKEN_TTL_MINUTES", &c.Server.TokenTTLMinutes),
		num("INTAKE_TICK_MS", &c.Intake.TickMillis),
		num("INTAKE_STEP", &c.Intake.Step),
		num("INTAKE_FAIL_AT", &c.Intake.FailAt),
	)
}

func (c *Config) normalize() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	for i := range c.Users {
		u := &c.Users[i]
		u.Email = strings.TrimSpace(u.Email)
		if u.ID == "" && u.Email != "" {
			// stable across restarts so issued tokens stay valid
			u.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(u.Email))).String()
		}
		if u.Name == "" {
			u.Name, _, _ = strings.Cut(u.Email, "@")
		}
	}
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Server.TokenTTLMinutes) * time.Minute
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Intake.TickMillis) * time.Millisecond
}

// StorageEnabled reports whether a bucket with credentials is configured.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != "" && c.Storage.AccessKey != ""
}
