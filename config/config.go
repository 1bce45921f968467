package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Inventory InventoryConfig `mapstructure:"inventory"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // seconds
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite3" or "pgx"
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTL      int    `mapstructure:"token_ttl"` // minutes
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"` // "dev" or "prod"
	Level string `mapstructure:"level"`
}

// Redis is optional; without it notifications only reach clients of this instance.
type NotifyConfig struct {
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`
}

type RewardsConfig struct {
	BadgesFile string `mapstructure:"badges_file"`
}

type JobsConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	WeeklyRewardsSchedule  string `mapstructure:"weekly_rewards_schedule"`
	CleanupSchedule        string `mapstructure:"cleanup_schedule"`
	BackupSchedule         string `mapstructure:"backup_schedule"`
	AlertRetentionDays     int    `mapstructure:"alert_retention_days"`
	InventoryRetentionDays int    `mapstructure:"inventory_retention_days"`
}

// Static S3 keys are optional; the default AWS credential chain is used otherwise.
type BackupConfig struct {
	Dir         string `mapstructure:"dir"`
	Keep        int    `mapstructure:"keep"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Prefix    string `mapstructure:"s3_prefix"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
}

type InventoryConfig struct {
	SuggestionBagSizes []int `mapstructure:"suggestion_bag_sizes"`
	MaxSuggestions     int   `mapstructure:"max_suggestions"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./pizzeria.db")

	v.SetDefault("auth.session_secret", "your-secret-key-change-this-in-production")
	v.SetDefault("auth.jwt_secret", "your-jwt-secret-change-this-in-production")
	v.SetDefault("auth.token_ttl", 720)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")

	v.SetDefault("notify.redis_addr", "")
	v.SetDefault("notify.redis_channel", "pizzeria.events")

	v.SetDefault("rewards.badges_file", "")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.weekly_rewards_schedule", "0 0 23 * * 0")
	v.SetDefault("jobs.cleanup_schedule", "@daily")
	v.SetDefault("jobs.backup_schedule", "0 30 3 * * *")
	v.SetDefault("jobs.alert_retention_days", 30)
	v.SetDefault("jobs.inventory_retention_days", 180)

	v.SetDefault("backup.dir", "./backups")
	v.SetDefault("backup.keep", 7)
	v.SetDefault("backup.s3_bucket", "")
	v.SetDefault("backup.s3_region", "eu-west-1")
	v.SetDefault("backup.s3_prefix", "pizzeria/")
	v.SetDefault("backup.s3_access_key", "")
	v.SetDefault("backup.s3_secret_key", "")

	v.SetDefault("inventory.suggestion_bag_sizes", []int{2, 3})
	v.SetDefault("inventory.max_suggestions", 3)
}

// Load reads .env (without overriding the real environment), config.yaml and
// config.local.yaml, then PIZZERIA_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("PIZZERIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults
	}

	// Local overrides (ignored by git)
	v.SetConfigName("config.local")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
