// Command server runs one gridmatch cluster node: a session gateway, a
// lease-guarded matchmaking loop, and a lease-guarded partition executor
// per partition, all sharing one Redis-backed kv.Store and pubsub.Fabric.
// Any number of these processes can run against the same Redis cluster;
// internal/lease ensures each partition and the matchmaking loop have
// exactly one active owner at a time.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/backoff"
	"github.com/sonpython/gridmatch/internal/bot"
	"github.com/sonpython/gridmatch/internal/config"
	"github.com/sonpython/gridmatch/internal/executor"
	"github.com/sonpython/gridmatch/internal/gateway"
	"github.com/sonpython/gridmatch/internal/gateway/kvmmr"
	"github.com/sonpython/gridmatch/internal/gateway/memauth"
	"github.com/sonpython/gridmatch/internal/kv/rediskv"
	"github.com/sonpython/gridmatch/internal/lease"
	"github.com/sonpython/gridmatch/internal/logging"
	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/matchmaking/redisnotifier"
	"github.com/sonpython/gridmatch/internal/matchmaking/redisqueue"
	"github.com/sonpython/gridmatch/internal/metrics"
	"github.com/sonpython/gridmatch/internal/model"
	"github.com/sonpython/gridmatch/internal/pubsub/redispubsub"
)

// Exit codes per spec.md section 6's reference server process contract.
const (
	ExitOK                 = 0
	ExitConfig             = 2
	ExitBackendUnavailable = 3
	ExitUnrecoverable      = 4
)

// ShutdownTimeout bounds how long main waits for in-flight work to drain
// once a shutdown signal arrives.
const ShutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfig
	}

	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfig
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()

	if err := backoff.Retry(ctx, func() error {
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			return &model.TransientBackendError{Op: "startup.redis_ping", Err: pingErr}
		}
		return nil
	}); err != nil {
		log.Error("redis unavailable at startup", zap.Error(err))
		return ExitBackendUnavailable
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	store := rediskv.New(client)
	fabric := redispubsub.New(client)
	queue := redisqueue.New(client)
	notifier := redisnotifier.New(client)

	auth := memauth.New()
	mmrProvider := kvmmr.New(store, gateway.DefaultMMR)

	hub := gateway.NewHub(fabric, queue, notifier, auth, mmrProvider, cfg.PartitionCount, log)

	holderID := uuid.New().String()

	var wg sync.WaitGroup
	onServiceErr := func(err error) { log.Error("managed service exited with error", zap.Error(err)) }

	matchLoop := matchmaking.NewLoop(queue, notifier, fabric, cfg.PartitionCount, defaultPools(), defaultProperties, cfg.BotEnabled, met, log)
	matchLease := lease.New(store, "singleton_lease:matchmaker", holderID, cfg.LeaseDuration())
	matchLease.SetMetrics(met)
	wg.Add(1)
	go func() {
		defer wg.Done()
		matchLease.Run(ctx, matchLoop.Run, onServiceErr)
	}()

	for p := 0; p < cfg.PartitionCount; p++ {
		ex := executor.New(p, cfg.PartitionCount, fabric, store, met, log)
		exLease := lease.New(store, fmt.Sprintf("singleton_lease:partition:%d", p), holderID, cfg.LeaseDuration())
		exLease.SetMetrics(met)
		wg.Add(1)
		go func(l *lease.Lease, e *executor.Executor) {
			defer wg.Done()
			l.Run(ctx, e.Run, onServiceErr)
		}(exLease, ex)

		if cfg.BotEnabled {
			sup := bot.NewSupervisor(p, cfg.PartitionCount, fabric, time.Now().UnixNano(), log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := sup.Run(ctx); err != nil {
					log.Warn("bot supervisor exited", zap.Int("partition", p), zap.Error(err))
				}
			}()
		}
	}

	gatewaySrv := &http.Server{Addr: cfg.HTTPAddr, Handler: hub.Router(nil)}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("session gateway listening", zap.String("addr", cfg.HTTPAddr))
		if err := gatewaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("session gateway server failed", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := gatewaySrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("session gateway shutdown did not complete cleanly", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown did not complete cleanly", zap.Error(err))
		}
	}

	wg.Wait()
	log.Info("shutdown complete")
	return ExitOK
}

// defaultPools lists the (game_type, queue_mode) pairs this node's
// matchmaking loop tracks: solo, 1v1 duels and eight-player free-for-all,
// each in both queue modes, per spec.md section 2's GameType/QueueMode glossary
// entries.
func defaultPools() []matchmaking.Pool {
	var pools []matchmaking.Pool
	gameTypes := []model.GameType{
		{Kind: model.Solo},
		{Kind: model.TeamMatch, PerTeam: 1},
		{Kind: model.FreeForAll, MaxPlayers: 8},
	}
	queueModes := []model.QueueMode{model.Quickmatch, model.Competitive}
	for _, gt := range gameTypes {
		for _, qm := range queueModes {
			pools = append(pools, matchmaking.Pool{GameType: gt, QueueMode: qm})
		}
	}
	return pools
}

// defaultProperties sizes a freshly formed match's arena to its player
// count: more seats get a larger board, keeping per-player space roughly
// constant.
func defaultProperties(gt model.GameType) model.GameProperties {
	seats := gt.PlayerCount()
	if seats < 1 {
		seats = 1
	}
	side := int32(30 + 10*seats)
	return model.GameProperties{
		Width:           side,
		Height:          side,
		TickDurationMs:  100,
		TargetFoodCount: 5 * seats,
	}
}
