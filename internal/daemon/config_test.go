package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/learnreward/rewardplane/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Ledger.Identity != "control-plane" {
		t.Errorf("Ledger.Identity = %q, want %q", cfg.Ledger.Identity, "control-plane")
	}
	if cfg.Security.SigningKey != "" {
		t.Error("Security.SigningKey should be empty until init")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}

	// Policy round-trips to the reference program config.
	pc, err := cfg.ProgramConfig()
	if err != nil {
		t.Fatalf("ProgramConfig: %v", err)
	}
	if pc != domain.DefaultProgramConfig() {
		t.Errorf("ProgramConfig = %+v, want %+v", pc, domain.DefaultProgramConfig())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"no key", func(c *Config) { c.Security.SigningKey = "" }, true},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, true},
		{"bad ttl", func(c *Config) { c.Security.TokenTTL = "soon" }, true},
		{"zero ttl", func(c *Config) { c.Security.TokenTTL = "0s" }, true},
		{"no asset", func(c *Config) { c.Ledger.Asset = "" }, true},
		{"bad cooldown", func(c *Config) { c.Policy.MintCooldown = "2 hours" }, true},
		{"zero expiration", func(c *Config) { c.Policy.ProposalExpiration = "0s" }, true},
		{"zero mint cap", func(c *Config) { c.Policy.MaxMintAmount = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Security.SigningKey = "k"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProgramConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MintCooldown = "90m"
	cfg.Policy.ProposalExpiration = "72h"

	pc, err := cfg.ProgramConfig()
	if err != nil {
		t.Fatalf("ProgramConfig: %v", err)
	}
	if pc.MintCooldown != 5400 {
		t.Errorf("MintCooldown = %d, want 5400", pc.MintCooldown)
	}
	if pc.ProposalExpiration != 259200 {
		t.Errorf("ProposalExpiration = %d, want 259200", pc.ProposalExpiration)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), ConfigFile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestSaveLoad(t *testing.T) {
	path := ConfigPath(t.TempDir())

	cfg := DefaultConfig()
	generated, err := cfg.EnsureSigningKey()
	if err != nil || !generated {
		t.Fatalf("EnsureSigningKey = %v, %v", generated, err)
	}
	if len(cfg.Security.SigningKey) != 64 {
		t.Errorf("signing key length = %d, want 64", len(cfg.Security.SigningKey))
	}
	cfg.API.Port = 9000
	cfg.Policy.MaxIssuers = 7
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.API.Port != 9000 || got.Policy.MaxIssuers != 7 {
		t.Errorf("loaded %+v / %+v", got.API, got.Policy)
	}
	if got.Security.SigningKey != cfg.Security.SigningKey {
		t.Error("signing key not persisted")
	}

	// A second call keeps the existing key.
	generated, err = got.EnsureSigningKey()
	if err != nil || generated {
		t.Errorf("EnsureSigningKey on configured key = %v, %v", generated, err)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := ConfigPath(t.TempDir())
	data := "[api]\nport = 9100\n\n[log]\nformat = \"json\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default", cfg.API.Host)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := ConfigPath(t.TempDir())
	if err := os.WriteFile(path, []byte("[api\nport ="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed TOML")
	}
}

func TestHome(t *testing.T) {
	t.Setenv("REWARDPLANE_HOME", "/tmp/rp-home")
	if got := Home(); got != "/tmp/rp-home" {
		t.Errorf("Home() = %q, want %q", got, "/tmp/rp-home")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		dir, def, want string
	}{
		{"", "data", filepath.Join("/home", "data")},
		{"state", "data", filepath.Join("/home", "state")},
		{"/var/lib/rp", "data", "/var/lib/rp"},
	}
	for _, tt := range tests {
		if got := resolve("/home", tt.dir, tt.def); got != tt.want {
			t.Errorf("resolve(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestTokenTTL(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.TokenTTL()
	if err != nil {
		t.Fatal(err)
	}
	if d != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", d)
	}
}
