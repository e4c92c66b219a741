package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chsnow/ride-watch/common/logger"
	"github.com/chsnow/ride-watch/internal/monitor/config"
	"github.com/chsnow/ride-watch/internal/monitor/httpapi"
	"github.com/chsnow/ride-watch/internal/monitor/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ridewatch-monitor")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建巡检服务（建立 DB/Redis/MQTT 连接并装配巡检流水线）
	svc, err := service.NewMonitorService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create monitor service", zap.Error(err))
	}
	defer svc.Stop()

	// 4. HTTP 路由：手动触发 + 状态查询 + 健康检查
	router := httpapi.NewRouter(log)
	router.RegisterMonitorRoutes(httpapi.NewMonitorHandler(svc, log))
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(svc.DB(), svc.RedisClient(), log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	// 5. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. 启动巡检循环与 HTTP 服务
	svcErrCh := make(chan error, 1)
	go func() {
		svcErrCh <- svc.Start(ctx)
	}()

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- srv.Start()
	}()

	// 7. 等待信号（优雅关闭）
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-svcErrCh:
		if err != nil {
			log.Error("Monitor service error", zap.Error(err))
		}
		cancel()
	case err := <-httpErrCh:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	log.Info("Monitor service stopped")
}
