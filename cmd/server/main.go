package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"stakemarket/internal/auth"
	rediscache "stakemarket/internal/cache/redis"
	"stakemarket/internal/config"
	cronrunner "stakemarket/internal/cron"
	"stakemarket/internal/db"
	"stakemarket/internal/handler"
	"stakemarket/internal/logger"
	gormrepository "stakemarket/internal/repository/gorm"
	"stakemarket/internal/service"
	"stakemarket/internal/ws"

	_ "stakemarket/docs"
)

func main() {
	cfgPath := os.Getenv("SM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)

	var locker service.Locker
	var snapshotCache service.SnapshotCache
	var detailCache handler.DetailCache
	if cfg.Redis.Enabled {
		redisClient, err := rediscache.New(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer redisClient.Close()
		locker = rediscache.NewLockManager(redisClient)
		marketCache := rediscache.NewMarketCache(redisClient, cfg.Redis.CacheTTL)
		snapshotCache = marketCache
		detailCache = marketCache
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var events service.EventPublisher
	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.NewHub(logger)
		events = hub
		go func() {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("ws hub stopped", zap.Error(err))
			}
		}()
	}

	marketSvc := &service.MarketService{
		Repo:   store,
		Logger: logger,
		Fees:   cfg.Fees,
		Market: cfg.Market,
		Events: events,
		Cache:  snapshotCache,
	}
	commitmentSvc := &service.CommitmentService{
		Repo:           store,
		Logger:         logger,
		Events:         events,
		Cache:          snapshotCache,
		InitialBalance: cfg.Market.InitialBalance,
	}
	resolutionSvc := &service.ResolutionService{
		Repo:            store,
		Logger:          logger,
		Fees:            cfg.Fees,
		Locker:          locker,
		LockTTL:         cfg.Settle.LockTTL,
		Events:          events,
		Cache:           snapshotCache,
		MinCancelReason: cfg.Market.MinCancelReason,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if hub != nil {
		engine.GET("/ws", func(c *gin.Context) {
			hub.HandleWS(c.Writer, c.Request)
		})
	}

	jwtSvc := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
	if cfg.Auth.Disabled {
		logger.Warn("auth disabled; all requests run as dev admin")
	}

	api := engine.Group("/api")
	api.Use(auth.RequireAuth(jwtSvc, cfg.Auth.Disabled))

	marketHandler := &handler.MarketHandler{Markets: marketSvc, Repo: store, Cache: detailCache}
	marketHandler.Register(api)
	commitmentHandler := &handler.CommitmentHandler{Commitments: commitmentSvc, Repo: store}
	commitmentHandler.Register(api)
	balanceHandler := &handler.BalanceHandler{Repo: store}
	balanceHandler.Register(api)

	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin())
	settlementHandler := &handler.SettlementHandler{Resolutions: resolutionSvc}
	settlementHandler.Register(admin)

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err := cronRunner.Add(cfg.Cron.LifecycleSweep, func(ctx context.Context) {
			moved, err := marketSvc.SweepEnded(ctx)
			if err != nil {
				logger.Warn("lifecycle sweep failed", zap.Error(err))
				return
			}
			if moved > 0 {
				logger.Info("lifecycle sweep moved markets", zap.Int("count", moved))
			}
		})
		if err != nil {
			logger.Warn("cron register lifecycle sweep failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
