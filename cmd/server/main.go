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

	"github.com/rs/cors"

	"github.com/tahcohcat/pizzeria-ops/config"
	"github.com/tahcohcat/pizzeria-ops/internal/api"
	"github.com/tahcohcat/pizzeria-ops/internal/auth"
	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/jobs"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
	"github.com/tahcohcat/pizzeria-ops/internal/storage"
	"github.com/tahcohcat/pizzeria-ops/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logger.New().WithError(err).Error("server stopped")
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Mode, logger.LogLevel(cfg.Log.Level)); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.New().With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	employees := services.NewEmployeeService(db)
	rewards := services.NewRewardService(db)

	if err := bootstrap(ctx, cfg, employees, rewards); err != nil {
		return err
	}

	// Real-time events
	hub := websocket.NewHub(cfg.Server.AllowedOrigins)
	go hub.Run(ctx)

	var notifier notify.Notifier = hub
	if cfg.Notify.RedisAddr != "" {
		bus, err := notify.NewRedisBus(cfg.Notify.RedisAddr, cfg.Notify.RedisChannel)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer bus.Close()

		err = bus.StartForwarder(ctx, func(env notify.Envelope) {
			if err := hub.Deliver(ctx, env); err != nil {
				log.WithError(err).Warn("failed to deliver event", "event", env.Event)
			}
		})
		if err != nil {
			return err
		}
		notifier = bus
		log.Info("events relayed through redis", "addr", cfg.Notify.RedisAddr, "channel", cfg.Notify.RedisChannel)
	}

	alerts := services.NewAlertService(db, notifier)
	inventory := services.NewInventoryService(db, alerts, cfg.Inventory.SuggestionBagSizes, cfg.Inventory.MaxSuggestions)
	recipes := services.NewRecipeService(db)
	sales := services.NewSaleService(db, inventory, notifier)
	shifts := services.NewShiftService(db)
	weekly := jobs.NewWeeklyRewards(db, rewards, notifier)

	scheduler, err := newScheduler(ctx, cfg, db, shifts, weekly, alerts, inventory)
	if err != nil {
		return err
	}
	if cfg.Jobs.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	authManager := auth.NewManager(cfg.Auth.SessionSecret, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTL)*time.Minute, employees)

	handler := api.NewHandler(api.Deps{
		Auth:      authManager,
		Employees: employees,
		Inventory: inventory,
		Recipes:   recipes,
		Sales:     sales,
		Shifts:    shifts,
		Rewards:   rewards,
		Alerts:    alerts,
		Weekly:    weekly,
		Jobs:      scheduler,
		Events:    hub,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      c.Handler(api.NewRouter(handler)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	log.Info("pizzeria-ops starting",
		"port", cfg.Server.Port,
		"driver", db.Driver,
		"jobs", cfg.Jobs.Enabled)

	return serve(ctx, srv)
}

// bootstrap prepares a fresh or upgraded database before traffic is accepted.
func bootstrap(ctx context.Context, cfg *config.Config, employees *services.EmployeeService, rewards *services.RewardService) error {
	log := logger.New().With("component", "bootstrap")

	badges, err := services.LoadBadgeCatalogue(cfg.Rewards.BadgesFile)
	if err != nil {
		return err
	}
	if err := rewards.SeedBadges(ctx, badges); err != nil {
		return err
	}

	migrated, err := employees.MigrateLegacyPasswords(ctx)
	if err != nil {
		return err
	}
	if migrated > 0 {
		log.Info("legacy passwords rehashed", "count", migrated)
	}

	created, err := employees.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	if created {
		log.Info("admin account created", "username", cfg.Auth.AdminUsername)
	}
	return nil
}

func newScheduler(ctx context.Context, cfg *config.Config, db *database.DB, shifts *services.ShiftService,
	weekly *jobs.WeeklyRewards, alerts *services.AlertService, inventory *services.InventoryService) (*jobs.Scheduler, error) {
	var uploader jobs.Uploader
	if cfg.Backup.S3Bucket != "" {
		s3, err := storage.NewS3Uploader(ctx, storage.S3Options{
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			Prefix:    cfg.Backup.S3Prefix,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		uploader = s3
	}

	s := jobs.NewScheduler()
	cleanup := jobs.NewCleanup(alerts, inventory, cfg.Jobs.AlertRetentionDays, cfg.Jobs.InventoryRetentionDays)
	backup := jobs.NewBackup(db, cfg.Backup.Dir, cfg.Backup.Keep, uploader)

	if err := s.Register(jobs.JobWeeklyRewards, cfg.Jobs.WeeklyRewardsSchedule, jobs.WeeklyRewardsJob(shifts, weekly, time.Now)); err != nil {
		return nil, err
	}
	if err := s.Register(jobs.JobCleanup, cfg.Jobs.CleanupSchedule, jobs.CleanupJob(cleanup)); err != nil {
		return nil, err
	}
	if err := s.Register(jobs.JobBackup, cfg.Jobs.BackupSchedule, jobs.BackupJob(backup)); err != nil {
		return nil, err
	}
	return s, nil
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	log := logger.New().With("component", "http")

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
