package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harbor-im/harbor/config"
	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/middleware"
	"github.com/harbor-im/harbor/module/history"
	"github.com/harbor-im/harbor/service/chat"
	"github.com/harbor-im/harbor/service/natsx"
	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/ids"
	"github.com/harbor-im/harbor/tools/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Errorf("open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Errorf("migrate: %v", err)
		os.Exit(1)
	}

	var mirror *storage.PresenceMirror
	if cfg.RedisAddr != "" {
		mirror, err = storage.NewPresenceMirror(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.PresenceTTL)
		if err != nil {
			logger.Errorf("connect redis: %v", err)
			os.Exit(1)
		}
		defer mirror.Close()
	}

	var firehose *natsx.Firehose
	if cfg.NatsURL != "" {
		firehose, err = natsx.NewFirehose(cfg.NatsURL, nodeName(cfg.NodeID))
		if err != nil {
			logger.Errorf("connect nats: %v", err)
			os.Exit(1)
		}
		defer firehose.Close()
	}

	jwtOpts := security.DefaultOptions([]byte(cfg.JWTSecret))
	jwtOpts.TTL = cfg.TokenTTL
	verifier := chat.NewJWTVerifier(jwtOpts, store)

	reg := chat.NewRegistry()
	limiter := chat.NewRateLimiter()
	presence := chat.NewPresence(reg, mirror, nodeName(cfg.NodeID))
	router := chat.NewRouter(store, reg, limiter, firehose)

	gateway := chat.NewServer(chat.Options{
		AllowedOrigin:    cfg.AllowedOrigin,
		HandshakeTimeout: cfg.HandshakeTimeout,
		SendQueueSize:    cfg.SendQueueSize,
		PingInterval:     cfg.PingInterval,
		PongTimeout:      cfg.PongTimeout,
		NodeID:           nodeName(cfg.NodeID),
	}, verifier, reg, router, presence, limiter)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", gateway.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	history.NewHandler(store, cfg.HistoryPageSize).
		Register(r, middleware.BearerAuth(verifier))

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		logger.Infof("gateway listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	for _, c := range reg.All() {
		c.Close()
	}
}

func nodeName(id int64) string {
	return fmt.Sprintf("gw-%d", id)
}
