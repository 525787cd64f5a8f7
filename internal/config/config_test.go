package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Scanner.RetentionDays != 90 {
		t.Errorf("Scanner.RetentionDays = %d, want 90", cfg.Scanner.RetentionDays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_NAME", "drift")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("RETENTION_DAYS", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Name != "drift" {
		t.Errorf("Database = %+v, want postgres/drift", cfg.Database)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Scanner.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Scanner.RetentionDays)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
			Logging:  LoggingConfig{Level: "info", Format: "json"},
			Scanner: ScannerConfig{
				Schedule:          "0 0 * * * *",
				RetentionDays:     30,
				RetentionSchedule: "@daily",
				DriftWindowDays:   7,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"unsupported driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, true},
		{"bad cron schedule", func(c *Config) { c.Scanner.Schedule = "every hour" }, true},
		{"zero retention", func(c *Config) { c.Scanner.RetentionDays = 0 }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
