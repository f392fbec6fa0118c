package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"chatlink/pkg/config"
	"chatlink/pkg/lifecycle"
	"chatlink/pkg/logger"
	"chatlink/pkg/middleware"
	"chatlink/pkg/redis"
	"chatlink/pkg/telemetry"
)

// Application 应用程序框架
type Application struct {
	serviceName   string
	config        *config.Config
	logger        kratoslog.Logger
	appLogger     logger.Logger
	serverManager *ServerManager
	lifecycle     *lifecycle.LifecycleManager

	// 基础设施组件
	redisClient *redis.RedisClient

	// 中间件
	loggingMiddleware *middleware.LoggingMiddleware

	// 注册函数
	httpRouteRegister func(*gin.Engine)
}

// NewApplication 创建应用程序
func NewApplication(serviceName string) (*Application, error) {
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init("info"); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	appLogger := logger.GetLogger()
	kratosLogger := logger.NewKratosLogger(appLogger)

	if err := telemetry.InitGlobal(telemetry.DefaultConfig(cfg.App.Name)); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	app := &Application{
		serviceName:       serviceName,
		config:            cfg,
		logger:            kratosLogger,
		appLogger:         appLogger,
		serverManager:     NewServerManager(cfg, kratosLogger),
		lifecycle:         lifecycle.NewLifecycleManager(kratosLogger),
		loggingMiddleware: middleware.NewLoggingMiddleware(kratosLogger),
	}

	// Redis既承载presence状态，也承载默认的事件总线
	app.redisClient = redis.NewRedisClient(redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return app, nil
}

// EnableHTTP 启用HTTP服务器并挂载通用中间件
func (app *Application) EnableHTTP() HTTPServer {
	httpServer := app.serverManager.EnableHTTP()
	httpServer.RegisterRoutes(func(engine *gin.Engine) {
		engine.Use(app.loggingMiddleware.GinLogging())
	})
	return httpServer
}

// RegisterHTTPRoutes 注册HTTP路由
func (app *Application) RegisterHTTPRoutes(registerFunc func(*gin.Engine)) {
	app.httpRouteRegister = registerFunc
}

// AddLifecycleHook 注册额外的生命周期钩子
func (app *Application) AddLifecycleHook(hook lifecycle.Hook) {
	app.lifecycle.AddHook(hook)
}

// GetRedisClient 获取Redis客户端
func (app *Application) GetRedisClient() *redis.RedisClient {
	return app.redisClient
}

// GetLogger 获取应用日志器
func (app *Application) GetLogger() logger.Logger {
	return app.appLogger
}

// GetKratosLogger 获取Kratos日志器
func (app *Application) GetKratosLogger() kratoslog.Logger {
	return app.logger
}

// GetConfig 获取配置
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Context 获取生命周期上下文
func (app *Application) Context() context.Context {
	return app.lifecycle.Context()
}

// Run 运行应用程序，阻塞直到收到退出信号
func (app *Application) Run() error {
	app.registerLifecycleHooks()

	if err := app.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle: %w", err)
	}

	app.lifecycle.Wait()
	return nil
}

// registerLifecycleHooks 注册内置生命周期钩子
func (app *Application) registerLifecycleHooks() {
	if app.httpRouteRegister != nil {
		app.serverManager.RegisterHTTPRoutes(app.httpRouteRegister)
	}

	// 基础设施连通性检查
	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "redis",
		Priority: 10,
		OnStart: func(ctx context.Context) error {
			return app.redisClient.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return app.redisClient.Close()
		},
	})

	// 服务器启动钩子
	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "servers",
		Priority: 100,
		OnStart: func(ctx context.Context) error {
			return app.serverManager.StartAll(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return app.serverManager.StopAll(ctx)
		},
	})

	// 遥测关闭钩子
	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "telemetry",
		Priority: 400,
		OnStop: func(ctx context.Context) error {
			return telemetry.ShutdownGlobal(ctx)
		},
	})
}
