package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/config"
	"github.com/dima260208d-dot/kinetik-energy-project/handlers"
	"github.com/dima260208d-dot/kinetik-energy-project/logger"
	"github.com/dima260208d-dot/kinetik-energy-project/models"
	"github.com/dima260208d-dot/kinetik-energy-project/services"
	"github.com/dima260208d-dot/kinetik-energy-project/utils"
	"github.com/dima260208d-dot/kinetik-energy-project/workers"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}

	loc := cfg.Location()

	var cache services.LeaderboardCache
	if cfg.Redis.Addr != "" {
		rc, err := services.NewRedisLeaderboardCache(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.TTL, zl)
		if err != nil {
			zl.Warn("leaderboard cache disabled", zap.Error(err))
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	var media services.MediaSigner
	if cfg.R2.Enabled() {
		store, err := utils.NewMediaStore(ctx, cfg.R2)
		if err != nil {
			zl.Warn("diary media uploads disabled", zap.Error(err))
		} else {
			media = store
		}
	}

	achievementService := services.NewAchievementService(db, zl)
	if err := achievementService.SeedDefaults(ctx); err != nil {
		zl.Fatal("failed to seed achievements", zap.Error(err))
	}
	tournamentService := services.NewTournamentService(db, zl, cache, cfg.Economy.TournamentEntryFee, loc)
	characterService := services.NewCharacterService(db, zl, cfg.Economy, achievementService, tournamentService)
	trickService := services.NewTrickService(db, zl, achievementService, tournamentService)
	shopService := services.NewShopService(db, zl)
	notificationService := services.NewNotificationService(db)
	diaryService := services.NewDiaryService(db, zl, media, loc)

	app := handlers.NewApp(handlers.AppDeps{
		Log:          zl,
		Origins:      cfg.Origins(),
		GatewayToken: cfg.GatewayToken,
		Kinetic: &handlers.KineticHandler{
			Characters:    characterService,
			Tricks:        trickService,
			Shop:          shopService,
			Notifications: notificationService,
			Achievements:  achievementService,
			Tournaments:   tournamentService,
			Location:      loc,
			Now:           time.Now,
		},
		Diary:         diaryService,
		Characters:    characterService,
		Notifications: notificationService,
	})

	if cfg.SchedulerEnabled {
		sched, err := tournamentService.StartWeeklyScheduler()
		if err != nil {
			zl.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer func() { _ = sched.Shutdown() }()
	}

	workers.NewLedgerReconcileWorker(db, cfg.ReconcileInterval, zl).Start(ctx)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			zl.Error("server error", zap.Error(err))
			stop()
		}
	}()

	zl.Info("server running",
		zap.Int("port", cfg.Port),
		zap.String("timezone", loc.String()),
		zap.Bool("leaderboard_cache", cache != nil),
		zap.Bool("media_uploads", media != nil),
		zap.Bool("gateway_auth", cfg.GatewayToken != ""))

	<-ctx.Done()
	zl.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Error("shutdown error", zap.Error(err))
	}
}
