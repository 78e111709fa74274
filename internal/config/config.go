package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv        string `mapstructure:"APP_ENV"`
	Port          string `mapstructure:"PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	GeoAPIURL     string `mapstructure:"GEOIP_API_URL"`
	SessionSecret string `mapstructure:"SESSION_SECRET"`
}

func LoadConfig() (config Config, err error) {
	viper.SetDefault("APP_ENV", "local")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("GEOIP_API_URL", "http://ip-api.com/json")
	viper.SetDefault("SESSION_SECRET", "flyer-tracker-dev-secret")

	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	if err != nil {
		log.Printf("unable to decode into struct, %v", err)
		return
	}

	// Railway exposes the connection string under several names.
	if config.DatabaseURL == "" {
		config.DatabaseURL = viper.GetString("DATABASE_PRIVATE_URL")
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = viper.GetString("DATABASE_PUBLIC_URL")
	}
	config.DatabaseURL = NormalizeDatabaseURL(config.DatabaseURL)

	return
}

// NormalizeDatabaseURL rewrites the postgresql:// scheme to postgres://,
// the prefix the database driver and migration tooling register.
func NormalizeDatabaseURL(url string) string {
	if strings.HasPrefix(url, "postgresql://") {
		return "postgres://" + strings.TrimPrefix(url, "postgresql://")
	}
	return url
}
