package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Scraper  ScraperConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type ScraperConfig struct {
	ListingURL string        // category listing page to ingest
	BaseURL    string        // prefix for canonical paths when composing product URLs
	UserAgent  string        // optional override for the fetch user agent
	Interval   time.Duration // time between scheduled ingestion runs
	TopN       int           // bound on persisted deals per run, 0 = unlimited
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("SCRAPER_LISTING_URL", "https://www.lidl.nl/q/query/parkside-producten?sort=percentageDiscount-desc&brand=parkside&brand=parkside+performance")
	viper.SetDefault("SCRAPER_BASE_URL", "https://www.lidl.nl")
	viper.SetDefault("SCRAPER_INTERVAL_MINUTES", 60)
	viper.SetDefault("SCRAPER_TOP_N", 0)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Scraper: ScraperConfig{
			ListingURL: viper.GetString("SCRAPER_LISTING_URL"),
			BaseURL:    viper.GetString("SCRAPER_BASE_URL"),
			UserAgent:  viper.GetString("SCRAPER_USER_AGENT"),
			Interval:   time.Duration(viper.GetInt("SCRAPER_INTERVAL_MINUTES")) * time.Minute,
			TopN:       viper.GetInt("SCRAPER_TOP_N"),
		},
	}
}
