package config

import (
	"errors"
	"fmt"
	"time"

	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"crashgame/internal/cache"
	"crashgame/internal/database"
	"crashgame/internal/game"
)

// Keys read with the CRASH_ prefix.
var (
	HouseEdgePercent   = "HOUSE_EDGE_PERCENT"
	MinBetCents        = "MIN_BET_CENTS"
	MaxBetCents        = "MAX_BET_CENTS"
	BettingWindowMs    = "BETTING_WINDOW_MS"
	TickIntervalMs     = "TICK_INTERVAL_MS"
	GrowthRate         = "GROWTH_RATE"
	EventHighWaterMark = "EVENT_PROMISE_HIGH_WATER_MARK"
	InterRoundDelayMs  = "INTER_ROUND_DELAY_MS"
	WalletTimeoutMs    = "WALLET_TIMEOUT_MS"
	SeedChainLength    = "SEED_CHAIN_LENGTH"
	TerminalSeed       = "TERMINAL_SEED"
	ClientSeed         = "CLIENT_SEED"
	LogLevel           = "LOG_LEVEL"
)

// Keys shared with the rest of the deployment, read without a prefix.
var unprefixed = []string{
	"PORT",
	"REDIS_URL", "REDIS_PASSWORD", "REDIS_DB",
	"DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD", "DB_SCHEMA",
	"MIGRATIONS_PATH",
}

const defaultSeedChainLength = 10000

type Config struct {
	Game game.Config

	SeedChainLength int
	// TerminalSeed is the last seed of the chain. Empty generates one.
	TerminalSeed    string
	// ClientSeed is published ahead of time. Empty draws a fresh one per round.
	ClientSeed      string

	Port           int
	LogLevel       log.Level
	Redis          cache.Options
	Database       database.Config
	MigrationsPath string
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRASH")
	v.AutomaticEnv()

	for _, key := range unprefixed {
		if err := v.BindEnv(key, key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	defaults := game.DefaultConfig()
	v.SetDefault(HouseEdgePercent, defaults.HouseEdgePercent)
	v.SetDefault(MinBetCents, defaults.MinBetCents)
	v.SetDefault(MaxBetCents, defaults.MaxBetCents)
	v.SetDefault(BettingWindowMs, defaults.BettingWindow.Milliseconds())
	v.SetDefault(TickIntervalMs, defaults.TickInterval.Milliseconds())
	v.SetDefault(GrowthRate, defaults.GrowthRate)
	v.SetDefault(EventHighWaterMark, defaults.EventHighWaterMark)
	v.SetDefault(InterRoundDelayMs, defaults.InterRoundDelay.Milliseconds())
	v.SetDefault(WalletTimeoutMs, defaults.WalletTimeout.Milliseconds())
	v.SetDefault(SeedChainLength, defaultSeedChainLength)
	v.SetDefault(LogLevel, "info")
	v.SetDefault("PORT", 8080)
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_DATABASE", "crashdb")
	v.SetDefault("DB_USERNAME", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_PATH", "migrations")

	level, err := log.ParseLevel(v.GetString(LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := &Config{
		Game: game.Config{
			HouseEdgePercent:   v.GetFloat64(HouseEdgePercent),
			MinBetCents:        v.GetInt64(MinBetCents),
			MaxBetCents:        v.GetInt64(MaxBetCents),
			BettingWindow:      time.Duration(v.GetInt64(BettingWindowMs)) * time.Millisecond,
			TickInterval:       time.Duration(v.GetInt64(TickIntervalMs)) * time.Millisecond,
			GrowthRate:         v.GetFloat64(GrowthRate),
			EventHighWaterMark: v.GetInt(EventHighWaterMark),
			InterRoundDelay:    time.Duration(v.GetInt64(InterRoundDelayMs)) * time.Millisecond,
			WalletTimeout:      time.Duration(v.GetInt64(WalletTimeoutMs)) * time.Millisecond,
		},
		SeedChainLength: v.GetInt(SeedChainLength),
		TerminalSeed:    v.GetString(TerminalSeed),
		ClientSeed:      v.GetString(ClientSeed),
		Port:            v.GetInt("PORT"),
		LogLevel:        level,
		Redis: cache.Options{
			Addr:     v.GetString("REDIS_URL"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Database: database.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Database: v.GetString("DB_DATABASE"),
			Username: v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return err
	}
	if c.Game.InterRoundDelay < 0 {
		return fmt.Errorf("%w: inter-round delay must not be negative", game.ErrInvalidConfig)
	}
	if c.Game.WalletTimeout < 0 {
		return fmt.Errorf("%w: wallet timeout must not be negative", game.ErrInvalidConfig)
	}
	if c.SeedChainLength <= 0 {
		return errors.New("seed chain length must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
