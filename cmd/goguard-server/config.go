package main

import (
	"fmt"
	"os"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Seed     SeedConfig     `yaml:"seed"`
	Engine   goGuard.Config `yaml:"engine"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StaticDir       string        `yaml:"static_dir"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	// LoginPerSecond and LoginBurst shape POST /login per client IP.
	LoginPerSecond float64 `yaml:"login_per_second"`
	LoginBurst     int     `yaml:"login_burst"`
	// SweepSchedule is the cron spec for dropping expired login windows.
	SweepSchedule string `yaml:"sweep_schedule"`
}

type LogConfig struct {
	Environment string `yaml:"environment"` // dev or prod
	Level       string `yaml:"level"`
}

// PostgresConfig selects the SQL backends. An empty DSN keeps everything in
// memory.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// RedisConfig enables the shared login limiter when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AMQPConfig enables queued mail delivery when URL is set.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// SeedConfig creates the first platform operator at startup.
type SeedConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			StaticDir:       "./static",
			SecureCookies:   true,
			LoginPerSecond:  1,
			LoginBurst:      5,
			SweepSchedule:   "@every 5m",
		},
		Log: LogConfig{
			Environment: "prod",
			Level:       "info",
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			ConnLifetime: 30 * time.Minute,
		},
		AMQP: AMQPConfig{
			Exchange:   "goguard",
			RoutingKey: "mail",
		},
		Engine: goGuard.DefaultConfig(),
	}
}

// loadConfig reads path over the defaults, then applies the environment
// options. An empty path uses defaults and environment only.
func loadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := goGuard.ApplyEnv(&cfg.Engine, lookup); err != nil {
		return cfg, err
	}
	if cfg.Server.Addr == "" {
		return cfg, fmt.Errorf("server.addr must be set")
	}
	return cfg, nil
}
