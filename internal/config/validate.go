package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateIntake(); err != nil {
		return err
	}
	return c.validateUsers()
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.JWTSecret) == "" {
		return errors.New("server.jwt_secret is required. Set JWT_SECRET or edit the config file")
	}
	if c.Server.TokenTTLMinutes <= 0 {
		return errors.New("server.token_ttl_minutes must be positive")
	}
	if _, err := url.ParseRequestURI(c.Server.BaseURL); err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateIntake() error {
	if c.Intake.TickMillis <= 0 {
		return errors.New("intake.tick_ms must be positive")
	}
	if c.Intake.Step <= 0 || c.Intake.Step > 100 {
		return errors.New("intake.step must be between 1 and 100")
	}
	if c.Intake.FailAt < 0 || c.Intake.FailAt > 100 {
		return errors.New("intake.fail_at must be between 0 and 100")
	}
	if c.Intake.WebhookURL != "" {
		u, err := url.Parse(c.Intake.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("intake.webhook_url must be an http(s) URL, got %q", c.Intake.WebhookURL)
		}
		if strings.TrimSpace(c.Intake.WebhookSecret) == "" {
			return errors.New("intake.webhook_secret is required when intake.webhook_url is set")
		}
	}
	return nil
}

func (c *Config) validateUsers() error {
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Email == "" {
			return fmt.Errorf("users[%d].email must be set", i)
		}
		if !strings.HasPrefix(u.PasswordHash, "$2") {
			return fmt.Errorf("users[%d].password_hash must be a bcrypt hash", i)
		}
		key := strings.ToLower(u.Email)
		if seen[key] {
			return fmt.Errorf("users[%d].email %q is duplicated", i, u.Email)
		}
		seen[key] = true
	}
	return nil
}
