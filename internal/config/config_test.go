package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s3cret\nserver:\n  port: 8080\n")
	c, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if c.Server.Port != 8080 || c.Database.Driver != "sqlite" || c.App.MaxPageSize != 100 {
		t.Errorf("config = %+v", c)
	}
	if c.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.JWT.AccessTTL() != 15*time.Minute || c.JWT.RenewalTTL() != 7*24*time.Hour {
		t.Errorf("ttls = %v, %v", c.JWT.AccessTTL(), c.JWT.RenewalTTL())
	}
	if c.Upload.MaxBytes != 2<<20 {
		t.Errorf("upload.max_bytes = %d", c.Upload.MaxBytes)
	}
}

func TestReadEnvOverride(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s3cret\n")
	t.Setenv("SRM_SERVER_PORT", "9100")
	t.Setenv("SRM_AUTH_RENEWAL_STORE", "redis")
	c, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if c.Server.Port != 9100 || c.Auth.RenewalStore != "redis" {
		t.Errorf("env overrides not applied: port=%d store=%q", c.Server.Port, c.Auth.RenewalStore)
	}
}

func TestReadRequiresSecret(t *testing.T) {
	if _, err := Read(writeConfig(t, "server:\n  port: 1\n")); err == nil {
		t.Error("Read() without jwt.secret error = nil")
	}
	if _, err := Read(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Read(missing explicit file) error = nil")
	}
}
