package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chsnow/ride-watch/common/database"
	"github.com/chsnow/ride-watch/common/logger"
	commonredis "github.com/chsnow/ride-watch/common/redis"
	"github.com/chsnow/ride-watch/common/taskqueue"
	"github.com/chsnow/ride-watch/internal/api/config"
	"github.com/chsnow/ride-watch/internal/api/httpapi"
	"github.com/chsnow/ride-watch/internal/api/service"
	"github.com/chsnow/ride-watch/internal/devices"
	"github.com/chsnow/ride-watch/internal/repository"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ridewatch-api")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 设备仓库：DB 可用时走 Postgres，否则退化为内存仓库（联测场景）
	var db *sql.DB
	var devicesRepo repository.DevicesRepo
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			devicesRepo = repository.NewPostgresDevicesRepo(db, log)
			log.Info("DB enabled for ridewatch-api")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repo", zap.Error(err))
		}
	}
	if devicesRepo == nil {
		devicesRepo = repository.NewMemoryDevicesRepo()
	}

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(context.Background(), redisClient); err != nil {
		log.Fatal("Failed to ping redis", zap.Error(err))
	}
	queue := taskqueue.NewQueue(redisClient, cfg.Tasks.QueueKey, log)

	directory := devices.NewDirectory(devicesRepo, time.Duration(cfg.Devices.CacheTTLSeconds)*time.Second, log)

	router := httpapi.NewRouter(log)
	router.RegisterDeviceRoutes(httpapi.NewDevicesHandler(directory, log))
	router.RegisterCheckRoutes(httpapi.NewChecksHandler(queue, cfg.Tasks.CheckURL, log))
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(db, redisClient, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
