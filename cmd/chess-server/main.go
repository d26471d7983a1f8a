package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/broadcast"
	appcfg "github.com/park285/chessroom/internal/config"
	"github.com/park285/chessroom/internal/msgcat"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/opponent"
	"github.com/park285/chessroom/internal/persist"
	"github.com/park285/chessroom/internal/redisutil"
	"github.com/park285/chessroom/internal/registry"
	"github.com/park285/chessroom/internal/rooms"
	"github.com/park285/chessroom/internal/rules"
	"github.com/park285/chessroom/internal/sweeper"
	"github.com/park285/chessroom/internal/transport/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_error", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisutil.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_init_error", zap.Error(err))
		}
		defer rdb.Close()
	}

	recorders, history, closeStore := buildRecorders(ctx, cfg, rdb)
	defer closeStore()
	async := persist.NewAsync(recorders, cfg.PersistWorkers, cfg.PersistQueue, cfg.PersistTimeout)

	var wg sync.WaitGroup
	hub := broadcast.NewHub()
	var pub rooms.Publisher = hub
	if rdb != nil {
		relay := broadcast.NewRedisRelay(rdb, hub, cfg.NodeID)
		pub = relay
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay_stopped", zap.Error(err))
			}
		}()
		select {
		case <-relay.Ready():
		case <-time.After(5 * time.Second):
			logger.Warn("relay_not_ready")
		}
	}

	reg := registry.New()
	svc := rooms.New(reg, rules.Standard{}, pub,
		rooms.WithRecorder(async),
		rooms.WithTimeControl(cfg.ClampTimeControl),
		rooms.WithBaseContext(ctx),
	)
	bot := opponent.New(svc, opponent.WithDelay(cfg.BotDelay))
	svc.AttachOpponent(bot)

	sw := sweeper.New(reg, svc, cfg.SweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sw.Run(ctx)
	}()

	opts := []ws.Option{ws.WithCatalog(cat), ws.WithOriginPatterns(cfg.AllowedOrigins...)}
	if history != nil {
		opts = append(opts, ws.WithHistory(history))
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           ws.New(svc, hub, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("server_start", zap.String("addr", cfg.ListenAddr), zap.String("node", cfg.NodeID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	bot.Close()
	async.Close()
}

// buildRecorders assembles every configured recorder. Without a database the
// in-memory store serves the history endpoints.
func buildRecorders(ctx context.Context, cfg *appcfg.AppConfig, rdb *redis.Client) (persist.Fanout, persist.History, func()) {
	logger := obslog.L()
	var (
		recs    persist.Fanout
		history persist.History
		closers []func()
	)

	if cfg.DatabaseURL != "" {
		pg, err := persist.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database_init_error", zap.Error(err))
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("database_schema_error", zap.Error(err))
		}
		recs = append(recs, pg)
		history = pg
		closers = append(closers, func() { _ = pg.Close() })
	} else {
		mem := persist.NewMemory()
		recs = append(recs, mem)
		history = mem
		logger.Warn("database_disabled", zap.String("history", "memory"))
	}

	if rdb != nil {
		recs = append(recs, persist.NewJournal(rdb))
	}
	if cfg.ResultWebhookURL != "" {
		recs = append(recs, persist.NewWebhook(cfg.ResultWebhookURL))
	}

	return recs, history, func() {
		for _, c := range closers {
			c()
		}
	}
}
