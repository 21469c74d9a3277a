package daemon

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// ConfigFile is the config file name inside the home directory.
const ConfigFile = "config.toml"

// Config is the daemon configuration, stored as TOML in the home directory.
type Config struct {
	API      APIConfig               `toml:"api"`
	Storage  StorageConfig           `toml:"storage"`
	Ledger   LedgerConfig            `toml:"ledger"`
	Security SecurityConfig          `toml:"security"`
	Policy   PolicyConfig            `toml:"policy"`
	Log      observability.LogConfig `toml:"log"`
	Metrics  MetricsConfig           `toml:"metrics"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig locates the state database. Relative paths resolve
// against the home directory.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// LedgerConfig configures the local asset ledger.
type LedgerConfig struct {
	Dir      string `toml:"dir"`
	Identity string `toml:"identity"` // principal that signs mint proofs
	Asset    string `toml:"asset"`    // reward mint identifier
}

// SecurityConfig configures bearer tokens and authority proofs.
type SecurityConfig struct {
	SigningKey string `toml:"signing_key"`
	Issuer     string `toml:"issuer"`
	TokenTTL   string `toml:"token_ttl"`
}

// PolicyConfig holds the program config applied at bootstrap.
type PolicyConfig struct {
	MaxIssuers          uint32 `toml:"max_issuers"`
	MaxCoursesPerIssuer uint32 `toml:"max_courses_per_issuer"`
	MaxMintAmount       uint64 `toml:"max_mint_amount"`
	MintCooldown        string `toml:"mint_cooldown"`
	ProposalExpiration  string `toml:"proposal_expiration"`
}

// MetricsConfig toggles the Prometheus endpoint and sizes the span buffer.
type MetricsConfig struct {
	Enabled    bool `toml:"enabled"`
	TraceSpans int  `toml:"trace_spans"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	policy := domain.DefaultProgramConfig()
	return &Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8420,
		},
		Storage: StorageConfig{Dir: "data"},
		Ledger: LedgerConfig{
			Dir:      "ledger",
			Identity: "control-plane",
			Asset:    "LRN",
		},
		Security: SecurityConfig{
			Issuer:   "rewardplane",
			TokenTTL: "24h",
		},
		Policy: PolicyConfig{
			MaxIssuers:          policy.MaxIssuers,
			MaxCoursesPerIssuer: policy.MaxCoursesPerIssuer,
			MaxMintAmount:       policy.MaxMintAmount,
			MintCooldown:        (time.Duration(policy.MintCooldown) * time.Second).String(),
			ProposalExpiration:  (time.Duration(policy.ProposalExpiration) * time.Second).String(),
		},
		Log: observability.DefaultLogConfig(),
		Metrics: MetricsConfig{
			Enabled:    true,
			TraceSpans: observability.DefaultTracerConfig().MaxSpans,
		},
	}
}

// Home returns the daemon home directory: $REWARDPLANE_HOME, or
// ~/.rewardplane when unset.
func Home() string {
	if h := os.Getenv("REWARDPLANE_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rewardplane"
	}
	return filepath.Join(home, ".rewardplane")
}

// ConfigPath returns the config file path inside home.
func ConfigPath(home string) string {
	return filepath.Join(home, ConfigFile)
}

// Load reads the config at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EnsureSigningKey generates a random signing key when none is set.
// It reports whether a key was generated.
func (c *Config) EnsureSigningKey() (bool, error) {
	if c.Security.SigningKey != "" {
		return false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generate signing key: %w", err)
	}
	c.Security.SigningKey = hex.EncodeToString(buf)
	return true, nil
}

// Validate checks the settings the daemon cannot start without.
func (c *Config) Validate() error {
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Security.SigningKey == "" {
		return errors.New("security.signing_key is empty; run `rewardplane init`")
	}
	if c.Ledger.Identity == "" || c.Ledger.Asset == "" {
		return errors.New("ledger.identity and ledger.asset are required")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	_, err := c.ProgramConfig()
	return err
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// TokenTTL parses security.token_ttl.
func (c *Config) TokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Security.TokenTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("security.token_ttl %q: invalid duration", c.Security.TokenTTL)
	}
	return d, nil
}

// ProgramConfig converts the [policy] section into the program config.
func (c *Config) ProgramConfig() (domain.ProgramConfig, error) {
	cooldown, err := parseSeconds("policy.mint_cooldown", c.Policy.MintCooldown)
	if err != nil {
		return domain.ProgramConfig{}, err
	}
	expiration, err := parseSeconds("policy.proposal_expiration", c.Policy.ProposalExpiration)
	if err != nil {
		return domain.ProgramConfig{}, err
	}
	pc := domain.ProgramConfig{
		MaxIssuers:          c.Policy.MaxIssuers,
		MaxCoursesPerIssuer: c.Policy.MaxCoursesPerIssuer,
		MaxMintAmount:       c.Policy.MaxMintAmount,
		MintCooldown:        cooldown,
		ProposalExpiration:  expiration,
	}
	if err := pc.Validate(); err != nil {
		return domain.ProgramConfig{}, fmt.Errorf("policy: %w", err)
	}
	return pc, nil
}

// parseSeconds parses a Go duration string into whole seconds.
func parseSeconds(field, s string) (int64, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return int64(d / time.Second), nil
}

// resolve makes dir absolute relative to home, falling back to def.
func resolve(home, dir, def string) string {
	if dir == "" {
		dir = def
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(home, dir)
}
