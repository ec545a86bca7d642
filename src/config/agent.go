package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/govagent/src/data"
	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
)

// Agent is the full runtime configuration of the service.
type Agent struct {
	ListenAddr string
	LogLevel   string
	LogConsole bool

	DatabaseURL string
	RedisURL    string

	ChainRPCURL      string
	Network          string
	SS58Prefix       uint16
	TokenDecimals    uint8
	TokenSymbol      string
	ChainTimeout     time.Duration
	InclusionTimeout time.Duration

	AgentSeed     string
	VotingEnabled bool
	Conviction    polkadot.Conviction

	AIProvider    string
	AIModel       string
	AIBaseURL     string
	OpenAIKey     string
	ClaudeKey     string
	OracleTimeout time.Duration

	PolkassemblyURL string

	JWTSecret      string
	AdminAddresses []string
	CORSOrigins    []string
	ChatRateLimit  int
	ChatRateWindow time.Duration

	DiscordToken     string
	DiscordChannelID string
}

// Load resolves every option from settings, then env, then defaults.
func Load(settings Lookup) (Agent, error) {
	var (
		a    Agent
		errs []error
	)
	collect := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	a.ListenAddr = GetSetting(settings, "listen_addr", "LISTEN_ADDR", ":8080")
	a.LogLevel = GetSetting(settings, "log_level", "LOG_LEVEL", "info")
	a.LogConsole = strings.EqualFold(GetSetting(settings, "log_format", "LOG_FORMAT", "json"), "console")

	a.DatabaseURL, _ = data.GetDSN()
	a.RedisURL = GetSetting(settings, "redis_url", "REDIS_URL", "")

	a.ChainRPCURL = GetSetting(settings, "chain_rpc_url", "CHAIN_RPC_URL", "")
	a.Network = strings.ToLower(GetSetting(settings, "network", "NETWORK", "polkadot"))
	prefix, err := getInt(settings, "ss58_prefix", "SS58_PREFIX", 0)
	collect("SS58_PREFIX", err)
	if prefix < 0 || prefix > 16383 {
		collect("SS58_PREFIX", fmt.Errorf("out of range"))
	}
	a.SS58Prefix = uint16(prefix)
	decimals, err := getInt(settings, "token_decimals", "TOKEN_DECIMALS", 10)
	collect("TOKEN_DECIMALS", err)
	if decimals < 0 || decimals > 36 {
		collect("TOKEN_DECIMALS", fmt.Errorf("out of range"))
	}
	a.TokenDecimals = uint8(decimals)
	a.TokenSymbol = GetSetting(settings, "token_symbol", "TOKEN_SYMBOL", "DOT")
	a.ChainTimeout, err = getDuration(settings, "chain_timeout", "CHAIN_TIMEOUT", 30*time.Second)
	collect("CHAIN_TIMEOUT", err)
	a.InclusionTimeout, err = getDuration(settings, "inclusion_timeout", "INCLUSION_TIMEOUT", 3*time.Minute)
	collect("INCLUSION_TIMEOUT", err)

	a.AgentSeed = GetSetting(nil, "", "AGENT_SEED_PHRASE", "")
	a.VotingEnabled, err = getBool(settings, "voting_enabled", "VOTING_ENABLED", true)
	collect("VOTING_ENABLED", err)
	a.Conviction, err = polkadot.ParseConviction(GetSetting(settings, "vote_conviction", "VOTE_CONVICTION", "locked1x"))
	collect("VOTE_CONVICTION", err)

	a.AIProvider = GetSetting(settings, "ai_provider", "AI_PROVIDER", "openai")
	a.AIModel = GetSetting(settings, "ai_model", "AI_MODEL", "")
	a.AIBaseURL = GetSetting(settings, "ai_base_url", "AI_BASE_URL", "")
	a.OpenAIKey = GetSetting(settings, "openai_api_key", "OPENAI_API_KEY", "")
	a.ClaudeKey = GetSetting(settings, "claude_api_key", "CLAUDE_API_KEY", "")
	a.OracleTimeout, err = getDuration(settings, "oracle_timeout", "ORACLE_TIMEOUT", 60*time.Second)
	collect("ORACLE_TIMEOUT", err)

	a.PolkassemblyURL = GetSetting(settings, "polkassembly_api", "POLKASSEMBLY_API", "")

	a.JWTSecret = GetSetting(settings, "jwt_secret", "JWT_SECRET", "")
	a.AdminAddresses = splitList(GetSetting(settings, "admin_addresses", "ADMIN_ADDRESSES", ""))
	a.CORSOrigins = splitList(GetSetting(settings, "cors_origins", "CORS_ORIGINS", "*"))
	a.ChatRateLimit, err = getInt(settings, "chat_rate_limit", "CHAT_RATE_LIMIT", 10)
	collect("CHAT_RATE_LIMIT", err)
	a.ChatRateWindow, err = getDuration(settings, "chat_rate_window", "CHAT_RATE_WINDOW", time.Minute)
	collect("CHAT_RATE_WINDOW", err)

	a.DiscordToken = GetSetting(settings, "discord_token", "DISCORD_TOKEN", "")
	a.DiscordChannelID = GetSetting(settings, "discord_channel_id", "DISCORD_CHANNEL_ID", "")

	if len(errs) > 0 {
		return a, errors.Join(errs...)
	}
	return a, nil
}

// Validate checks what serve needs. A deployment that votes must have both
// a signing seed and a chain endpoint.
func (a Agent) Validate() error {
	var errs []error
	if a.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if a.VotingEnabled {
		if a.AgentSeed == "" {
			errs = append(errs, errors.New("AGENT_SEED_PHRASE is required while VOTING_ENABLED=true"))
		}
		if a.ChainRPCURL == "" {
			errs = append(errs, errors.New("CHAIN_RPC_URL is required while VOTING_ENABLED=true"))
		}
	}
	if len(a.AdminAddresses) > 0 && a.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when ADMIN_ADDRESSES is set"))
	}
	if a.ChatRateLimit < 0 {
		errs = append(errs, errors.New("CHAT_RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

// OracleKey returns the credential for the selected provider.
func (a Agent) OracleKey() string {
	switch strings.ToLower(a.AIProvider) {
	case "anthropic", "claude":
		return a.ClaudeKey
	default:
		return a.OpenAIKey
	}
}

// OracleConfigured reports whether a model credential is present.
func (a Agent) OracleConfigured() bool { return a.OracleKey() != "" }
