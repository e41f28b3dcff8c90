package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quizroom/config"
	"quizroom/handlers"
	"quizroom/logging"
	"quizroom/middleware"
	"quizroom/models"
	"quizroom/routes"
	"quizroom/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.FromContext(ctx)
	if err := realMain(ctx); err != nil {
		logger.Fatalf("main.realMain: %v", err)
	}
}

func realMain(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Question{},
		&models.Option{},
		&models.GameRecord{},
		&models.GameScore{},
	)
	if err != nil {
		return err
	}

	redisClient := config.InitRedis(cfg)

	authService, err := services.NewAuthService(db, cfg.JWTSecret, cfg.TokenCacheSize)
	if err != nil {
		return err
	}

	registry := services.NewRegistry(services.RegistryConfig{
		Bank:           services.NewQuestionBank(db),
		Snapshots:      services.NewSnapshotStore(redisClient),
		Records:        services.NewGameRecorder(db),
		Logger:         logger,
		QuestionWindow: cfg.QuestionWindow,
		ResultsHold:    cfg.ResultsHold,
		GameOverLinger: cfg.GameOverLinger,
		LobbyIdleTTL:   cfg.LobbyIdleTTL,
		MaxPlayers:     cfg.MaxPlayersPerRoom,
	})

	hub := services.NewHub(registry, authService, logger)

	authHandler := handlers.NewAuthHandler(authService)
	roomHandler := handlers.NewRoomHandler(registry, services.NewSnapshotStore(redisClient))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, authHandler, roomHandler, hub, authService)

	srv := &http.Server{
		Addr:    cfg.BindAddress + ":" + cfg.Port,
		Handler: router,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		registry.Janitor(ctx, time.Minute)
		return nil
	})

	group.Go(func() error {
		logger.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
