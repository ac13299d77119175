package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/pulsefeed/gateway/internal/api"
	"github.com/pulsefeed/gateway/internal/auth"
	"github.com/pulsefeed/gateway/internal/config"
	"github.com/pulsefeed/gateway/internal/db"
	"github.com/pulsefeed/gateway/internal/gateway"
	"github.com/pulsefeed/gateway/internal/middleware"
	"github.com/pulsefeed/gateway/internal/observ"
	"github.com/pulsefeed/gateway/internal/presence"
	"github.com/pulsefeed/gateway/internal/relay"
	"github.com/pulsefeed/gateway/internal/repository/postgres"
	"github.com/pulsefeed/gateway/internal/ws"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres and Redis
	//
	// Startup uses context.Background(): there's no parent request or
	// deadline yet, and "take as long as you need to connect" is the
	// right behavior here. Once running, per-call contexts take over.
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	redisClient, err := db.NewRedis(context.Background(), cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	// ---------------------------------------------------------------
	// 4. Wire the realtime core
	//
	// Leaves first: repositories over the pool, then the hub (the one
	// shared registry), then presence/relay/fan-out on top, and the
	// gateway binding it all to incoming sockets.
	// ---------------------------------------------------------------
	pool := database.Pool()
	messageRepo := postgres.NewMessageStore(pool)
	notificationRepo := postgres.NewNotificationStore(pool)
	followerRepo := postgres.NewFollowerStore(pool)
	userRepo := postgres.NewUserStore(pool)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	hub := ws.NewHub(logger)
	tracker := presence.NewTracker(presence.NewRedisSetStore(redisClient), hub, logger)
	dispatcher := relay.NewDispatcher(notificationRepo, logger)
	messageRelay := relay.NewRelay(messageRepo, dispatcher, hub, logger)
	postFanout := relay.NewFanout(followerRepo, userRepo, hub, logger)

	gw := gateway.New(hub, verifier, tracker, messageRelay, postFanout, gateway.Options{
		SendBuffer:     cfg.WSSendBuffer,
		MaxMessageSize: cfg.WSMaxMessageSize,
	}, logger)

	// ---------------------------------------------------------------
	// 5. Set up HTTP server
	// ---------------------------------------------------------------
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	logger.Info("starting gateway",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	// Health check is PUBLIC — load balancers hit this to check the
	// server is alive, so it can't require auth.
	srv.GET("/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// The WebSocket endpoint authenticates inside the handshake (error
	// event on the socket, not a 401), so it is mounted outside the
	// middleware group.
	srv.GET("/ws", gw.Handle)

	// Presence snapshots require a valid JWT.
	presenceHandler := api.NewPresenceHandler(tracker, logger)
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(verifier))
	v1.GET("/presence/online", presenceHandler.ListOnline)
	v1.GET("/presence/:id", presenceHandler.GetStatus)

	return srv.Run(":" + cfg.Port)
}
