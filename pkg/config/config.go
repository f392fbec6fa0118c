package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Bus      BusConfig      `mapstructure:"bus"`
	Presence PresenceConfig `mapstructure:"presence"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Network string `mapstructure:"network"`
	Addr    string `mapstructure:"addr"`
	Timeout string `mapstructure:"timeout"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// BusConfig 事件总线配置
type BusConfig struct {
	// Backend 总线后端："redis"（默认）或"kafka"
	Backend string `mapstructure:"backend"`
}

// PresenceConfig 在线状态配置
type PresenceConfig struct {
	// StalenessWindow 过期窗口，超过该时长未刷新的在线记录视为离线
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	// HeartbeatInterval 心跳间隔，必须小于过期窗口的一半
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// LoadConfig 加载指定服务的配置
// 优先级：环境变量 > 配置文件(CONFIG_FILE指定的yaml) > 服务默认值
func LoadConfig(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v, serviceName)

	v.SetEnvPrefix("CHATLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 按服务名写入默认值
func setDefaults(v *viper.Viper, serviceName string) {
	var defaultHTTPPort string
	switch serviceName {
	case "gateway-service":
		defaultHTTPPort = "21001"
	case "chat-api-service":
		defaultHTTPPort = "21002"
	default:
		defaultHTTPPort = "21000"
	}

	v.SetDefault("app.name", serviceName)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.jwt_secret", "chatlink-dev-secret")

	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":"+defaultHTTPPort)
	v.SetDefault("server.http.timeout", "30s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "chatlink-events")

	v.SetDefault("bus.backend", "redis")

	v.SetDefault("presence.staleness_window", "120s")
	v.SetDefault("presence.heartbeat_interval", "60s")
}

// validate 校验关键约束
func validate(cfg *Config) error {
	switch cfg.Bus.Backend {
	case "redis", "kafka":
	default:
		return fmt.Errorf("unknown bus backend: %q", cfg.Bus.Backend)
	}

	// 心跳必须落在过期窗口之内，否则长连接会被误判为离线
	if cfg.Presence.HeartbeatInterval*2 > cfg.Presence.StalenessWindow {
		return fmt.Errorf("heartbeat interval %s must be at most half the staleness window %s",
			cfg.Presence.HeartbeatInterval, cfg.Presence.StalenessWindow)
	}
	return nil
}
