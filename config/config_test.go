package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	base := "jwt:\n  secret: ${JWT_SECRET}\nstorage:\n  driver: postgres\n"
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("JWT_SECRET", "topsecret")
	t.Setenv("STORAGE_DRIVER", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWT.Secret != "topsecret" {
		t.Errorf("secret = %q", cfg.JWT.Secret)
	}
	if cfg.JWT.TTL != 7*24*time.Hour {
		t.Errorf("default jwt ttl = %v", cfg.JWT.TTL)
	}
	if cfg.Storage.Driver != StorageRedis {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Invitation.PurgeAfter != 30*24*time.Hour {
		t.Errorf("invitation purge_after = %v", cfg.Invitation.PurgeAfter)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
		{name: "bad driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: true},
		{name: "zero jwt ttl", mutate: func(c *Config) { c.JWT.TTL = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.JWT.Secret = "x"
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
