package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSettings map[string]string

func (m mapSettings) Get(name string) string { return m[name] }

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "MYSQL_DSN", "CHAIN_RPC_URL", "AGENT_SEED_PHRASE", "VOTING_ENABLED",
		"VOTE_CONVICTION", "OPENAI_API_KEY", "CLAUDE_API_KEY", "AI_PROVIDER", "ORACLE_TIMEOUT", "CORS_ORIGINS", "ADMIN_ADDRESSES",
		"JWT_SECRET", "SS58_PREFIX", "CHAT_RATE_LIMIT", "GOVAGENT_DOTENV_PROBE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	a, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", a.ListenAddr)
	assert.True(t, a.VotingEnabled)
	assert.Equal(t, polkadot.Locked1x, a.Conviction)
	assert.Equal(t, 60*time.Second, a.OracleTimeout)
	assert.Equal(t, 30*time.Second, a.ChainTimeout)
	assert.Equal(t, 3*time.Minute, a.InclusionTimeout)
	assert.Equal(t, []string{"*"}, a.CORSOrigins)
	assert.Equal(t, uint8(10), a.TokenDecimals)
	assert.False(t, a.OracleConfigured())
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("MYSQL_DSN", "legacy")
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("VOTE_CONVICTION", "locked3x")
	t.Setenv("ADMIN_ADDRESSES", " a , ,b ")

	a, err := Load(mapSettings{"openai_api_key": "from-db"})
	require.NoError(t, err)
	assert.Equal(t, "legacy", a.DatabaseURL)
	assert.Equal(t, "from-db", a.OpenAIKey)
	assert.Equal(t, polkadot.Locked3x, a.Conviction)
	assert.Equal(t, []string{"a", "b"}, a.AdminAddresses)

	t.Setenv("DATABASE_URL", "primary")
	a, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", a.DatabaseURL)
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOTING_ENABLED", "maybe")
	t.Setenv("ORACLE_TIMEOUT", "soon")
	t.Setenv("SS58_PREFIX", "70000")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOTING_ENABLED")
	assert.Contains(t, err.Error(), "ORACLE_TIMEOUT")
	assert.Contains(t, err.Error(), "SS58_PREFIX")
}

func TestValidate(t *testing.T) {
	a := Agent{DatabaseURL: "sqlite::memory:", VotingEnabled: true}
	err := a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENT_SEED_PHRASE")
	assert.Contains(t, err.Error(), "CHAIN_RPC_URL")

	a.VotingEnabled = false
	assert.NoError(t, a.Validate())

	a.AdminAddresses = []string{"x"}
	assert.Error(t, a.Validate())

	a = Agent{DatabaseURL: "d", VotingEnabled: true, AgentSeed: "//Alice", ChainRPCURL: "ws://localhost:9944"}
	assert.NoError(t, a.Validate())
}

func TestLoadDotenv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("GOVAGENT_DOTENV_PROBE"))
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GOVAGENT_DOTENV_PROBE=loaded\n"), 0o600))

	require.NoError(t, LoadDotenv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("GOVAGENT_DOTENV_PROBE"))
}

func TestOracleKeyFollowsProvider(t *testing.T) {
	a := Agent{AIProvider: "openai", OpenAIKey: "sk", ClaudeKey: "ck"}
	assert.Equal(t, "sk", a.OracleKey())
	a.AIProvider = "Claude"
	assert.Equal(t, "ck", a.OracleKey())
	a.ClaudeKey = ""
	assert.False(t, a.OracleConfigured())
}
