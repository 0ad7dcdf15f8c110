package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"duelgate/internal/auth"
	"duelgate/internal/config"
	"duelgate/internal/db"
	"duelgate/internal/gateway"
	"duelgate/internal/handle/message"
	"duelgate/internal/observability"
	"duelgate/internal/session"
	"duelgate/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "duelgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		hooks []session.Hook
		games message.GameStore
	)
	if cfg.MySQL.Enabled() {
		sqlDB, err := db.OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			return err
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("closing mysql", zap.Error(err))
			}
		}()

		store := db.NewGameStore(sqlDB)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		games = store
		recorder := db.NewRecorder(store, logger)
		defer recorder.Close()
		hooks = append(hooks, recorder)
		logger.Info("game records enabled", zap.String("host", cfg.MySQL.Host))
	} else {
		logger.Warn("MYSQL_HOST not set, game records disabled")
	}

	var tokens auth.TokenStore
	if cfg.Mongo.Enabled() {
		client, database, err := db.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("closing mongo", zap.Error(err))
			}
		}()
		if cfg.Auth.CheckTokenStore {
			tokens = db.NewTokenStore(database)
			logger.Info("token store lookup enabled", zap.String("db", cfg.Mongo.DB))
		}
	}

	opts := gateway.Options{Hooks: hooks, Logger: logger}
	blocks, err := session.ParseBlockList(cfg.Match.BlockedPairs)
	if err != nil {
		return err
	}
	if blocks.Len() > 0 {
		opts.Eligibility = session.All(session.AnyOpponent, blocks.Eligible)
		logger.Info("match block list loaded", zap.Int("pairs", blocks.Len()))
	}

	hub := websocket.NewHub(logger)
	gw := gateway.New(auth.NewJWTVerifier(cfg.JWT.Secret, tokens), hub, opts)
	srv := websocket.NewServer(cfg.WS, gw, hub, message.NewHandler(gw, games, logger), logger)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
