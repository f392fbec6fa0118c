package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"chatlink/apps/chat-api-service/handler"
	"chatlink/apps/chat-api-service/service"
	"chatlink/pkg/lifecycle"
	"chatlink/pkg/presence"
	"chatlink/pkg/pubsub"
	"chatlink/pkg/server"
)

func main() {
	app, err := server.NewApplication("chat-api-service")
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
	svc := service.NewService(bus, tracker, appLogger)

	app.EnableHTTP()
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler := handler.NewHTTPHandler(svc, appLogger)
		httpHandler.RegisterRoutes(engine)
	})

	app.AddLifecycleHook(lifecycle.Hook{
		Name:     "event-bus",
		Priority: 200,
		OnStop: func(ctx context.Context) error {
			return bus.Close()
		},
	})

	if err := app.Run(); err != nil {
		log.Fatalf("Application run failed: %v", err)
	}
}
