package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"chatlink/apps/gateway-service/handler"
	"chatlink/apps/gateway-service/service"
	"chatlink/pkg/lifecycle"
	"chatlink/pkg/middleware"
	"chatlink/pkg/presence"
	"chatlink/pkg/pubsub"
	"chatlink/pkg/server"
)

func main() {
	app, err := server.NewApplication("gateway-service")
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	cfg := app.GetConfig()
	appLogger := app.GetLogger()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	bus, err := pubsub.NewBus(startCtx, cfg, app.GetRedisClient(), appLogger)
	cancel()
	if err != nil {
		log.Fatalf("Failed to create event bus: %v", err)
	}

	tracker := presence.NewTracker(app.GetRedisClient(), appLogger, cfg.Presence.StalenessWindow)
	svc := service.NewService(tracker, bus, appLogger, cfg.Presence.HeartbeatInterval)
	notifier := service.NewNotifier(svc, appLogger)

	authMW := middleware.NewAuthMiddleware(app.GetKratosLogger(), cfg.App.JWTSecret)

	app.EnableHTTP()
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler := handler.NewHTTPHandler(svc, appLogger)
		httpHandler.RegisterRoutes(engine, authMW.GinAuth())

		wsHandler := handler.NewWSHandler(svc, cfg.App.JWTSecret, appLogger)
		wsServer := server.NewWebSocketServerWrapper(engine, app.GetKratosLogger())
		wsServer.RegisterHandler("/api/v1/gateway/ws", wsHandler)
	})

	// 总线订阅在服务器启动之后挂上，停止时先摘订阅再下线本地用户
	app.AddLifecycleHook(lifecycle.Hook{
		Name:     "notifier",
		Priority: 200,
		OnStart: func(ctx context.Context) error {
			notifier.Subscribe(bus)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			notifier.Unsubscribe(bus)
			svc.Shutdown(ctx)
			return bus.Close()
		},
	})

	// 心跳循环随应用生命周期运行
	app.AddLifecycleHook(lifecycle.Hook{
		Name:     "presence-heartbeat",
		Priority: 300,
		OnStart: func(ctx context.Context) error {
			go svc.RunHeartbeat(app.Context())
			return nil
		},
	})

	if err := app.Run(); err != nil {
		log.Fatalf("Application run failed: %v", err)
	}
}
