package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"collegebot/internal/bot"
	"collegebot/internal/fetch"
	"collegebot/internal/metrics"
	"collegebot/internal/models"
	"collegebot/internal/notify"
	"collegebot/internal/parser"
	"collegebot/internal/repository"
	"collegebot/internal/service"
	"collegebot/pkg/cache"
	"collegebot/pkg/config"
	"collegebot/pkg/database"
	"collegebot/pkg/logger"
	reqidmiddleware "collegebot/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connect failed", "error", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		logr.Sugar().Fatalw("migration failed", "error", err)
	}

	scheduleRepo := repository.NewScheduleRepository(db)
	bellRepo := repository.NewBellRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		rdb, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer rdb.Close()
			cacheRepo = repository.NewCacheRepository(rdb, logr)
		}
	}

	fetcher := fetch.New(cfg.Source, logr)
	timetableParser := parser.New(logr)
	pipelineMetrics := metrics.New()

	var scheduleSvc *service.ScheduleService
	if cacheRepo != nil {
		scheduleSvc = service.NewScheduleService(scheduleRepo, bellRepo, cacheRepo, cfg.Cache.TTL, logr)
	} else {
		scheduleSvc = service.NewScheduleService(scheduleRepo, bellRepo, nil, cfg.Cache.TTL, logr)
	}
	subSvc := service.NewSubscriptionService(subRepo, logr)
	canteenSvc := service.NewCanteenService(fetcher, logr)

	router := notify.NewRouter(cfg.Updater.NotifyDelay, logr)

	if cfg.Telegram.Enabled {
		tg, err := bot.NewTelegram(cfg.Telegram.Token, scheduleSvc, subSvc, canteenSvc, logr)
		if err != nil {
			logr.Sugar().Fatalw("telegram init failed", "error", err)
		}
		router.Register(models.PlatformTelegram, tg)
		go tg.Run(ctx)
	}

	updater := service.NewUpdaterService(
		fetcher, timetableParser, scheduleRepo, bellRepo, subSvc, scheduleSvc,
		router, pipelineMetrics, cfg.Updater.Interval, logr,
	)
	go updater.Run(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, pipelineMetrics.Stats())
	})

	r.GET("/metrics", gin.WrapH(pipelineMetrics.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("admin server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("admin server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("admin server shutdown failed", "error", err)
	}
}
