package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/govagent/src/oracle"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MYSQL_DSN", "REDIS_URL", "CHAIN_RPC_URL", "AGENT_SEED_PHRASE", "OPENAI_API_KEY", "CLAUDE_API_KEY", "AI_PROVIDER",
		"DISCORD_TOKEN", "ADMIN_ADDRESSES", "JWT_SECRET", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "govagent dev")
	assert.Contains(t, out, "commit: none")
}

func TestRootCmdListsCommands(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"serve", "migrate", "ingest", "smoke", "chain", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestMigrateCmd(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")
}

func TestMigrateRequiresDatabase(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestIngestCmd(t *testing.T) {
	isolateEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("postId"))
		_, _ = w.Write([]byte(`{"post_id":42,"title":"Treasury ask","content":"<p>Fund it</p>","proposer":"alice"}`))
	}))
	defer srv.Close()
	t.Setenv("POLKASSEMBLY_API", srv.URL)
	t.Setenv("NETWORK", "polkadot")

	out, err := run(t, "ingest", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "referendum #42 stored as proposal 1 (pending, score 50): Treasury ask")
}

func TestIngestCmdRejectsBadIndex(t *testing.T) {
	_, err := run(t, "ingest", "forty-two")
	assert.ErrorContains(t, err, "bad referendum index")

	_, err = run(t, "ingest")
	assert.Error(t, err)
}

func TestChainCmdRequiresEndpoint(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "chain")
	assert.ErrorContains(t, err, "CHAIN_RPC_URL")

	_, err = run(t, "chain", "x")
	assert.ErrorContains(t, err, "bad referendum index")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("VOTING_ENABLED", "true")
	_, err := run(t, "serve")
	assert.ErrorContains(t, err, "AGENT_SEED_PHRASE")
}

func TestRunSmokeWithoutModel(t *testing.T) {
	var buf bytes.Buffer
	o := oracle.New(nil, oracle.Config{}, nil)
	require.NoError(t, runSmoke(context.Background(), &buf, o, smokeAnalyze|smokeDeliberate, smokeQuestion, 0))
	out := buf.String()
	assert.Contains(t, out, `"score":50`)
	assert.Contains(t, out, oracle.CannedResponse)
	assert.NotContains(t, out, "vote intent")
}

func TestParseSmokeMode(t *testing.T) {
	m, err := parseSmokeMode("Analyze")
	require.NoError(t, err)
	assert.Equal(t, smokeAnalyze, m)

	m, err = parseSmokeMode("")
	require.NoError(t, err)
	assert.Equal(t, smokeAnalyze|smokeDeliberate, m)

	_, err = parseSmokeMode("qa")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate(" abc ", 0))
	assert.True(t, strings.HasSuffix(truncate("abcdef", 3), "...(truncated)"))
}
