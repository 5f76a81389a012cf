package infrastructure

import (
	"context"

	"github.com/bsm/redislock"
	"go.uber.org/zap"

	"creditbook/internal/config"
	"creditbook/internal/repository"
	"creditbook/internal/service"
	transportHTTP "creditbook/internal/transport/http"
	transportNATS "creditbook/internal/transport/nats"
	"creditbook/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	log, err := NewLogger(cfg.Env)
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(ctx, cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, nil, err
	}

	cleanupFns := []func(){
		func() {
			nc.Close()
			_ = rdb.Close()
			db.Close()
			_ = log.Sync()
		},
	}

	store := repository.NewStore(db)
	cache := repository.NewBalanceCache(rdb)
	bus := transportNATS.NewBus(nc)
	svc := service.New(store, cache, bus, log)

	var servers []Server

	// Change feed consumer: keeps cached balances fresh.
	servers = append(servers, worker.NewBalanceWorker(svc, nc, log))

	// Command handler for async ingestion.
	servers = append(servers, transportNATS.NewHandler(svc, nc, log))

	// Membership reconciliation sweep.
	if cfg.ReconcileEnabled {
		locker := redislock.New(rdb)
		servers = append(servers, worker.NewReconciler(svc, locker, cfg.ReconcileInterval, log))
	}

	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc, []byte(cfg.JWTSecret), log))
	} else {
		log.Info("HTTP API disabled", zap.String("reason", apiErr.Error()))
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup
// functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
