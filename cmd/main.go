package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kerylaw/PIYAKAST-sub000/internal/cache"
	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/handler"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
	"github.com/kerylaw/PIYAKAST-sub000/internal/kafka"
	"github.com/kerylaw/PIYAKAST-sub000/internal/liveness"
	"github.com/kerylaw/PIYAKAST-sub000/internal/pubsub"
	"github.com/kerylaw/PIYAKAST-sub000/internal/repository"
	"github.com/kerylaw/PIYAKAST-sub000/internal/service"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/database"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()
	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting live service")

	// Relational store for stream rows
	db, err := database.New(&cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to database")
	}
	streamRepo := repository.NewGormStreamRepository(db)
	if err := streamRepo.Migrate(); err != nil {
		l.Fatal().Err(err).Msg("failed to migrate streams table")
	}

	// Cassandra store for chat messages
	messageRepo, err := repository.NewCassandraMessageRepository(cfg.Cassandra)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to cassandra")
	}
	defer messageRepo.Close()
	l.Info().Strs("hosts", cfg.Cassandra.Hosts).Msg("connected to cassandra")

	// Redis: history cache + viewer-update pub/sub
	msgCache, err := cache.NewRedisMessageCache(cfg.Redis)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer msgCache.Close()
	l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	// Kafka lifecycle events (optional)
	var producer kafka.EventProducer
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		defer p.Close()
		producer = p
		l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}

	// Hub
	wsHub := hub.NewHub()
	go wsHub.Run()

	// Liveness monitor
	monitor := liveness.NewMonitor(streamRepo, producer, liveness.Config{
		SweepInterval:    cfg.Liveness.SweepInterval,
		HeartbeatTimeout: cfg.Liveness.HeartbeatTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	defer monitor.Stop()

	// Viewer-count fan-out across instances
	publisher := pubsub.NewRedisPublisher(msgCache.Client(), cfg.Redis.PubSubChannel, cfg.Redis.InstanceID)
	subscriber := pubsub.NewSubscriber(msgCache.Client(), cfg.Redis.PubSubChannel, wsHub)
	go subscriber.Run(ctx)

	// Services
	chatSvc := service.NewChatService(wsHub, messageRepo, msgCache, cfg.Chat)
	streamSvc := service.NewStreamService(monitor, streamRepo, producer, publisher)

	// HTTP + WebSocket surface
	wsHandler := handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(streamSvc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), log.GinMiddleware(*l))
	httpHandler.RegisterRoutes(router, wsHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("live service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down live service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}

	cancel()
	<-subscriber.Done()

	l.Info().Msg("live service stopped")
}
