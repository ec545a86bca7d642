package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/govagent/src/chat"
	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/deliberation"
	"github.com/stake-plus/govagent/src/discord"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/vote"
	"github.com/stake-plus/govagent/src/webserver"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat hub, query API and deliberation engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	a, err := bootstrap(ctx, flags)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg
	log := a.log

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := a.connectRedis(ctx); err != nil {
		return err
	}
	if err := a.connectChain(); err != nil {
		return err
	}

	log.Info("starting govagent",
		zap.String("version", Version),
		zap.String("network", cfg.Network),
		zap.Bool("oracle_key", cfg.OracleConfigured()),
		zap.Bool("signing_seed", cfg.AgentSeed != ""),
		zap.Bool("chain_rpc", cfg.ChainRPCURL != ""),
		zap.Bool("voting", cfg.VotingEnabled),
		zap.Bool("redis", a.rdb != nil),
	)

	hub := chat.NewHub(a.store, log)
	var (
		locker gov.Locker      = gov.NewKeyedMutex()
		nonces data.NonceStore = data.NewMemoryNonces()
	)
	if a.rdb != nil {
		hub.SetMirror(data.NewChatStream(a.rdb))
		locker = data.NewRedisLocker(a.rdb, 10*time.Minute)
		nonces = data.NewRedisNonces(a.rdb)
	}

	orc := a.newOracle()
	var exec deliberation.Executor
	if cfg.VotingEnabled {
		exec = vote.NewExecutor(a.chain, a.store, vote.Config{
			Conviction: cfg.Conviction,
			Decimals:   cfg.TokenDecimals,
			Symbol:     cfg.TokenSymbol,
		}, log)
		log.Info("voting account", zap.String("address", a.chain.Address()))
	}

	engine := deliberation.New(a.store, hub, orc, exec, locker, deliberation.Config{}, log)
	hub.OnUserMessage(engine.HandleUserMessage)

	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		n, err := discord.Open(cfg.DiscordToken, cfg.DiscordChannelID, cfg.Network, log)
		if err != nil {
			log.Warn("discord notifier disabled", zap.Error(err))
		} else {
			defer n.Close()
			engine.AddNotifier(n)
		}
	}

	deps := webserver.Deps{
		Store:    a.store,
		Hub:      hub,
		Realtime: chat.NewHandler(hub, cfg.CORSOrigins),
		Ingester: a.newIngester(orc),
		Nonces:   nonces,
	}
	if a.chain != nil {
		deps.Chain = a.chain
	}
	web := webserver.New(deps, webserver.Options{
		JWTSecret:      []byte(cfg.JWTSecret),
		Admins:         cfg.AdminAddresses,
		CORSOrigins:    cfg.CORSOrigins,
		ChatRateLimit:  cfg.ChatRateLimit,
		ChatRateWindow: cfg.ChatRateWindow,
		VotingEnabled:  cfg.VotingEnabled,
	}, log)
	defer web.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		hub.Close()
		if cerr := engine.Close(shutdownCtx); cerr != nil {
			log.Warn("deliberation turns still running at shutdown", zap.Error(cerr))
		}
		return err
	})
	return g.Wait()
}
