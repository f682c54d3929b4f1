// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Daily     DailyConfig     `mapstructure:"daily"`
	Blackjack BlackjackConfig `mapstructure:"blackjack"`
	Redis     RedisConfig     `mapstructure:"redis"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// DailyConfig holds daily reward configuration.
type DailyConfig struct {
	Reward        int64 `mapstructure:"reward"`
	CooldownHours int   `mapstructure:"cooldown_hours"`
}

// Cooldown returns the time between daily claims.
func (d DailyConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownHours) * time.Hour
}

// BlackjackConfig holds table settings for the blackjack game.
type BlackjackConfig struct {
	SignupSeconds        int     `mapstructure:"signup_seconds"`
	ExtendSeconds        int     `mapstructure:"extend_seconds"`
	MinPlayers           int     `mapstructure:"min_players"`
	MaxPlayers           int     `mapstructure:"max_players"`
	Chips                []int64 `mapstructure:"chips"`
	MinJoinBalance       int64   `mapstructure:"min_join_balance"`
	BetTimeoutSeconds    int     `mapstructure:"bet_timeout_seconds"`
	TurnTimeoutSeconds   int     `mapstructure:"turn_timeout_seconds"`
	StartCooldownSeconds int     `mapstructure:"start_cooldown_seconds"`
	Animate              bool    `mapstructure:"animate"`
	AnimationPaceMillis  int     `mapstructure:"animation_pace_ms"`
}

// SignupDuration returns the signup window.
func (b BlackjackConfig) SignupDuration() time.Duration {
	return time.Duration(b.SignupSeconds) * time.Second
}

// ExtendDuration returns how much /bj_extend adds to the signup window.
func (b BlackjackConfig) ExtendDuration() time.Duration {
	return time.Duration(b.ExtendSeconds) * time.Second
}

func (b BlackjackConfig) BetTimeout() time.Duration {
	return time.Duration(b.BetTimeoutSeconds) * time.Second
}

func (b BlackjackConfig) TurnTimeout() time.Duration {
	return time.Duration(b.TurnTimeoutSeconds) * time.Second
}

func (b BlackjackConfig) StartCooldown() time.Duration {
	return time.Duration(b.StartCooldownSeconds) * time.Second
}

// AnimationPace is the delay between animation frames. Zero when animation is off.
func (b BlackjackConfig) AnimationPace() time.Duration {
	if !b.Animate {
		return 0
	}
	return time.Duration(b.AnimationPaceMillis) * time.Millisecond
}

// RedisConfig holds the optional Redis connection used for cooldowns.
// An empty URL keeps cooldowns in memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// HTTPConfig holds the health server settings. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, DATABASE_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "blackjack")
	v.SetDefault("database.name", "blackjack")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Daily reward defaults
	v.SetDefault("daily.reward", 500)
	v.SetDefault("daily.cooldown_hours", 24)

	// Blackjack defaults
	v.SetDefault("blackjack.signup_seconds", 60)
	v.SetDefault("blackjack.extend_seconds", 30)
	v.SetDefault("blackjack.min_players", 2)
	v.SetDefault("blackjack.max_players", 5)
	v.SetDefault("blackjack.chips", []int64{10, 50, 100, 500})
	v.SetDefault("blackjack.min_join_balance", 10)
	v.SetDefault("blackjack.bet_timeout_seconds", 60)
	v.SetDefault("blackjack.turn_timeout_seconds", 60)
	v.SetDefault("blackjack.start_cooldown_seconds", 30)
	v.SetDefault("blackjack.animate", true)
	v.SetDefault("blackjack.animation_pace_ms", 2000)

	v.SetDefault("http.addr", "")
	v.SetDefault("redis.url", "")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	return slices.Contains(c.Whitelist.Chats, chatID)
}
