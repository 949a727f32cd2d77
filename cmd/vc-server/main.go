package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/vc-campus-server/internal/aichat"
	appcfg "github.com/kapu/vc-campus-server/internal/config"
	"github.com/kapu/vc-campus-server/internal/dispatch"
	"github.com/kapu/vc-campus-server/internal/graphrelay"
	"github.com/kapu/vc-campus-server/internal/master"
	"github.com/kapu/vc-campus-server/internal/obslog"
	"github.com/kapu/vc-campus-server/internal/sakura"
	"github.com/kapu/vc-campus-server/internal/server"
	"github.com/kapu/vc-campus-server/internal/session"
	"github.com/kapu/vc-campus-server/internal/usercache"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	logger := obslog.L()

	repo, err := sakura.NewRepository(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db init error", zap.Error(err))
	}
	defer repo.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis url error", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	cache := usercache.New(rdb)

	catalog, err := master.New(cfg.MasterOverrideDir)
	if err != nil {
		logger.Fatal("master data error", zap.Error(err))
	}

	aiOpts := []aichat.Option{
		aichat.WithTimeout(time.Duration(cfg.AITimeoutSec) * time.Second),
		aichat.WithRetry(cfg.AIMaxRetries),
	}
	if cfg.AIModel != "" {
		aiOpts = append(aiOpts, aichat.WithModel(cfg.AIModel))
	}
	ai := aichat.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, aiOpts...)

	reg := session.NewRegistry()
	bus := dispatch.New(reg, logger)

	engine := sakura.NewEngine(sakura.Config{
		Master: catalog,
		Chat:   ai,
		Store:  repo,
		Bus:    bus,
		Logger: logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	personas, err := repo.LoadPersonas(ctx)
	cancel()
	if err != nil {
		logger.Fatal("persona hydration error", zap.Error(err))
	}
	engine.SetPersonas(personas)
	logger.Info("personas_loaded", zap.Int("count", len(personas)))

	relay := graphrelay.New(bus, logger)

	ws := server.NewWSServer(reg, bus, engine, cache, logger,
		server.WithSessionBuffer(cfg.OutboundBuffer))
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.Handler())
	wsSrv := &http.Server{Addr: cfg.WSAddr, Handler: mux}
	go func() {
		logger.Info("ws_listen", zap.String("addr", cfg.WSAddr))
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ws server error", zap.Error(err))
		}
	}()

	api := server.NewAPI(reg, bus, engine, relay, catalog, repo, logger)
	apiSrv := &fasthttp.Server{Handler: api.Handler(), Name: "vc-campus-server"}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.APIAddr))
		if err := apiSrv.ListenAndServe(cfg.APIAddr); err != nil {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = wsSrv.Shutdown(shutdownCtx)
	_ = apiSrv.ShutdownWithContext(shutdownCtx)
	engine.Wait()
}
