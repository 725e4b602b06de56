package config

import (
	"LifeLine/pkg/logger"
	"LifeLine/pkg/util"
	"log"
	"os"
)

// Config is the process-level configuration, loaded from the environment.
type Config struct {
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	DSN       string `env:"DSN"`
	JWTSecret string `env:"JWT_SECRET"`
	RaiseRate string `env:"ALERT_RAISE_RATE"` // ulule format, e.g. "30-M"
	CacheType string `env:"CACHE_TYPE"`       // "local" or "redis"
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int64  `env:"REDIS_DB"`
	Log       logger.LogConfig
}

var GlobalConfig *Config

func Load() error {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	GlobalConfig = &Config{
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnvDefault("MODE", "debug"),
		DSN:       util.GetEnvDefault("DSN", "lifeline.db"),
		JWTSecret: util.GetEnv("JWT_SECRET"),
		RaiseRate: util.GetEnvDefault("ALERT_RAISE_RATE", "30-M"),
		CacheType: util.GetEnvDefault("CACHE_TYPE", "local"),
		RedisAddr: util.GetEnv("REDIS_ADDR"),
		RedisDB:   util.GetIntEnv("REDIS_DB"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
	}

	if GlobalConfig.JWTSecret == "" {
		log.Printf("WARNING: JWT_SECRET is not set. Socket authentication will be insecure.")
	}

	return nil
}
