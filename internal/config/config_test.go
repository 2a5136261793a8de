package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.TickInterval() != 500*time.Millisecond {
		t.Errorf("expected 500ms tick, got %v", cfg.TickInterval())
	}
	if cfg.StorageEnabled() {
		t.Error("expected storage disabled by default")
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("expected missing secret error, got %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = "9000"
jwt_secret = "from-file"

[logging]
format = "JSON"

[intake]
step = 25

[[users]]
email = "alice@example.com"
password_hash = "$2a$10$abcdefghijklmnopqrstuv"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, envMap(map[string]string{
		"PORT":                  "7000",
		"S3_BUCKET":             "media",
		"S3_ACCESS_KEY":         "key",
		"API_DOCS_ENABLED":      "true",
		"INTAKE_WEBHOOK_URL":    "https://hooks.example.com/in",
		"INTAKE_WEBHOOK_SECRET": "hook-secret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "7000" {
		t.Errorf("expected env to override port, got %q", cfg.Server.Port)
	}
	if cfg.Server.JWTSecret != "from-file" {
		t.Errorf("expected secret from file, got %q", cfg.Server.JWTSecret)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected normalized format json, got %q", cfg.Logging.Format)
	}
	if cfg.Intake.Step != 25 || cfg.Intake.TickMillis != 500 {
		t.Errorf("expected step from file and default tick, got %+v", cfg.Intake)
	}
	if !cfg.StorageEnabled() {
		t.Error("expected storage enabled")
	}
	if !cfg.Server.DocsEnabled {
		t.Error("expected docs enabled from env")
	}
	if cfg.Intake.WebhookURL != "https://hooks.example.com/in" {
		t.Errorf("expected webhook url from env, got %q", cfg.Intake.WebhookURL)
	}
	if len(cfg.Users) != 1 || cfg.Users[0].ID == "" || cfg.Users[0].Name != "alice" {
		t.Errorf("expected normalized user, got %+v", cfg.Users)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_UserIDIsStable(t *testing.T) {
	load := func() string {
		cfg := Default()
		cfg.Users = []User{{Email: "Bob@Example.com"}}
		cfg.normalize()
		return cfg.Users[0].ID
	}
	if a, b := load(), load(); a != b {
		t.Errorf("expected stable id, got %q and %q", a, b)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml"), envMap(nil)); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	_ = os.WriteFile(bad, []byte("[server\nport="), 0o600)
	if _, err := Load(bad, envMap(nil)); err == nil {
		t.Error("expected parse error")
	}

	if _, err := Load("", envMap(map[string]string{"INTAKE_STEP": "ten"})); err == nil {
		t.Error("expected error for non-numeric env override")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Server.JWTSecret = "s"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"zero tick", func(c *Config) { c.Intake.TickMillis = 0 }, "tick_ms"},
		{"step too big", func(c *Config) { c.Intake.Step = 101 }, "intake.step"},
		{"fail_at negative", func(c *Config) { c.Intake.FailAt = -1 }, "fail_at"},
		{"plain password", func(c *Config) { c.Users = []User{{Email: "a@b.c", PasswordHash: "hunter2"}} }, "bcrypt"},
		{"duplicate user", func(c *Config) {
			c.Users = []User{{Email: "a@b.c", PasswordHash: "$2a$x"}, {Email: "A@b.c", PasswordHash: "$2a$y"}}
		}, "duplicated"},
		{"bad base url", func(c *Config) { c.Server.BaseURL = "not a url" }, "base_url"},
		{"webhook without secret", func(c *Config) { c.Intake.WebhookURL = "https://hooks.example.com/in" }, "webhook_secret"},
		{"webhook bad scheme", func(c *Config) {
			c.Intake.WebhookURL = "ftp://hooks.example.com"
			c.Intake.WebhookSecret = "s"
		}, "webhook_url"},
		{"webhook ok", func(c *Config) {
			c.Intake.WebhookURL = "https://hooks.example.com/in"
			c.Intake.WebhookSecret = "s"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, err := Load(path, envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Intake.Step != 10 || len(cfg.Users) != 1 {
		t.Errorf("unexpected sample values %+v", cfg.Intake)
	}
}
