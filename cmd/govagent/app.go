package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/govagent/src/ai/core"
	"github.com/stake-plus/govagent/src/config"
	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/ingest"
	"github.com/stake-plus/govagent/src/logging"
	"github.com/stake-plus/govagent/src/oracle"
	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
	"github.com/stake-plus/govagent/src/polkassembly"
)

// app holds the resources every subcommand shares.
type app struct {
	cfg   config.Agent
	log   *zap.Logger
	db    *gorm.DB
	store *data.Store
	rdb   *redis.Client
	chain *polkadot.Gateway
}

// bootstrap loads configuration in two passes: env first so the logger and
// database can come up, then again with the settings table layered on top.
func bootstrap(ctx context.Context, flags *globalFlags) (*app, error) {
	if err := config.LoadDotenv(flags.envFiles...); err != nil {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}
	envCfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := envCfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	log, err := logging.New(logging.Options{Level: level, Console: envCfg.LogConsole})
	if err != nil {
		return nil, err
	}
	if envCfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := data.Open(envCfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	a := &app{log: log, db: db, store: data.NewStore(db)}
	if err := data.Migrate(db); err != nil {
		a.close()
		return nil, err
	}

	settings := data.NewSettings()
	if err := settings.Load(ctx, db); err != nil {
		a.close()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	a.cfg, err = config.Load(settings)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load config: %w", err)
	}
	return a, nil
}

// connectRedis is a no-op when REDIS_URL is unset.
func (a *app) connectRedis(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		return nil
	}
	rdb, err := data.NewRedis(a.cfg.RedisURL)
	if err != nil {
		return err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping: %w", err)
	}
	a.rdb = rdb
	return nil
}

// connectChain builds the gateway when an RPC endpoint is configured. The
// websocket itself is dialed on first use.
func (a *app) connectChain() error {
	if a.cfg.ChainRPCURL == "" {
		return nil
	}
	gw, err := polkadot.NewGateway(polkadot.Config{
		URL:              a.cfg.ChainRPCURL,
		Seed:             a.cfg.AgentSeed,
		SS58Prefix:       a.cfg.SS58Prefix,
		CallTimeout:      a.cfg.ChainTimeout,
		InclusionTimeout: a.cfg.InclusionTimeout,
	}, a.log)
	if err != nil {
		return err
	}
	a.chain = gw
	return nil
}

// newOracle degrades to the canned fallbacks when no model key is set.
func (a *app) newOracle() *oracle.Oracle {
	var client core.Client
	if a.cfg.OracleConfigured() {
		c, err := core.NewClient(core.FactoryConfig{
			Provider: a.cfg.AIProvider,
			Model:    a.cfg.AIModel,
			APIKey:   a.cfg.OracleKey(),
			BaseURL:  a.cfg.AIBaseURL,
			Logger:   a.log,
		})
		if err != nil {
			a.log.Warn("oracle disabled", zap.Error(err))
		} else {
			client = c
		}
	}
	return oracle.New(client, oracle.Config{Timeout: a.cfg.OracleTimeout, Model: a.cfg.AIModel}, a.log)
}

func (a *app) newIngester(o *oracle.Oracle) *ingest.Service {
	source := polkassembly.NewClient(a.cfg.PolkassemblyURL, a.cfg.Network)
	var chain ingest.Chain
	if a.chain != nil {
		chain = a.chain
	}
	return ingest.New(a.store, source, chain, o, a.log)
}

func (a *app) close() {
	if a.chain != nil {
		a.chain.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		if err := data.Close(a.db); err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
