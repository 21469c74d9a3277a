package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnreward/rewardplane/internal/daemon"
	"github.com/learnreward/rewardplane/internal/security"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitThenToken(t *testing.T) {
	home := t.TempDir()
	t.Setenv("REWARDPLANE_HOME", home)

	out, err := run(t, "init", "--authority", "root", "--asset", "EDU")
	require.NoError(t, err)
	assert.Contains(t, out, "authority: root")
	assert.Contains(t, out, "asset:     EDU")

	cfg, err := daemon.Load(daemon.ConfigPath(home))
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Security.SigningKey)
	assert.Equal(t, "EDU", cfg.Ledger.Asset)

	_, err = run(t, "init", "--authority", "root")
	assert.Error(t, err, "second init must fail")

	out, err = run(t, "token", "alice", "--ttl", "1h")
	require.NoError(t, err)

	sec, err := security.NewService(cfg.Security.SigningKey, cfg.Security.Issuer)
	require.NoError(t, err)
	principal, err := sec.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", principal)
}

func TestSetAddr(t *testing.T) {
	cfg := daemon.DefaultConfig()
	require.NoError(t, setAddr(cfg, "0.0.0.0:9999"))
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
	assert.Equal(t, 9999, cfg.API.Port)

	assert.Error(t, setAddr(cfg, "nope"))
	assert.Error(t, setAddr(cfg, "host:http"))
}
