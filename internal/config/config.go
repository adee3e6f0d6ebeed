package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration. Every key can be overridden by an
// environment variable with the PROJECTHUB_ prefix, e.g. PROJECTHUB_DATABASE_DSN.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// KafkaConfig controls the consumer of notification requests sent by other services.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type StreamConfig struct {
	Heartbeat          time.Duration `mapstructure:"heartbeat"`
	ReconnectPerMinute int           `mapstructure:"reconnect_per_minute"`
	ReconnectBurst     int           `mapstructure:"reconnect_burst"`
}

type WorkerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	ReminderWindow time.Duration `mapstructure:"reminder_window"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// setDefaults registers a default for every key so that AutomaticEnv can
// resolve nested keys even when no config file is present.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origin", "http://localhost:5173")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "root:root@tcp(127.0.0.1:3306)/projecthub?parseTime=true&loc=UTC")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 72*time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "projecthub:notifications:sse")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "projecthub.notifications")
	v.SetDefault("kafka.group_id", "projecthub-notifications")

	v.SetDefault("stream.heartbeat", 25*time.Second)
	v.SetDefault("stream.reconnect_per_minute", 30)
	v.SetDefault("stream.reconnect_burst", 5)

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.interval", time.Minute)
	v.SetDefault("worker.reminder_window", 24*time.Hour)

	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")
}

// Load reads the optional YAML file at path (empty means defaults + env only).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PROJECTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	normalize(&cfg)
	return &cfg, nil
}

// normalize fills values a config file may have set to zero.
func normalize(c *Config) {
	if c.Stream.Heartbeat <= 0 {
		c.Stream.Heartbeat = 25 * time.Second
	}
	if c.Stream.ReconnectPerMinute <= 0 {
		c.Stream.ReconnectPerMinute = 30
	}
	if c.Stream.ReconnectBurst <= 0 {
		c.Stream.ReconnectBurst = 5
	}
	if c.Worker.Interval <= 0 {
		c.Worker.Interval = time.Minute
	}
	if c.Worker.ReminderWindow <= 0 {
		c.Worker.ReminderWindow = 24 * time.Hour
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
}
