// Package config loads mapper configuration from the environment. All keys
// are prefixed UODM_ so a host application's own settings stay untouched.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the mapper configuration. Callers may also fill the struct
// directly instead of going through Load.
type Config struct {
	MongoDB MongoDBConfig
	Log     LogConfig
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and an optional .env
// file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("UODM_MONGODB_DATABASE", "uodm")
	viper.SetDefault("UODM_MONGODB_TIMEOUT", 10)
	viper.SetDefault("UODM_LOG_LEVEL", "info")

	cfg := &Config{
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("UODM_MONGODB_URI"),
			Database: viper.GetString("UODM_MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("UODM_MONGODB_TIMEOUT")) * time.Second,
		},
		Log: LogConfig{
			Level: viper.GetString("UODM_LOG_LEVEL"),
		},
	}
	return cfg, nil
}
