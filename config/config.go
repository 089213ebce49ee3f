package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tradegate/ooda"
	"github.com/web3guy0/tradegate/risk"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG - env-driven runtime settings
// ═══════════════════════════════════════════════════════════════════════════════

// Config is everything the host wires at startup.
type Config struct {
	// Preset selects the protocol limits: conservative, standard, aggressive.
	Preset string
	Limits risk.ProtocolLimits
	Timing ooda.TimingConfig

	// OrderTag prefixes client order ids for this deployment.
	OrderTag string

	// DatabasePath is the sqlite file; empty disables persistence.
	DatabasePath string

	// TelegramToken/ChatID enable the notifier when both are set.
	TelegramToken  string
	TelegramChatID int64

	Debug bool
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env")
	}

	preset := getEnv("RISK_PRESET", "standard")
	limits := risk.PresetByName(preset)
	limits.DailyResetHour = getEnvInt("DAILY_RESET_HOUR", 0)
	limits.DailyResetMinute = getEnvInt("DAILY_RESET_MINUTE", 0)
	limits.TimezoneOffsetHrs = getEnvInt("DAILY_RESET_TZ_OFFSET_HOURS", 0)

	timing := ooda.DefaultTimingConfig()
	timing.MaxObserve = getEnvDuration("MAX_OBSERVE_DURATION", timing.MaxObserve)
	timing.MaxOrient = getEnvDuration("MAX_ORIENT_DURATION", timing.MaxOrient)
	timing.MaxDecide = getEnvDuration("MAX_DECIDE_DURATION", timing.MaxDecide)
	timing.MaxAct = getEnvDuration("MAX_ACT_DURATION", timing.MaxAct)
	timing.MaxTotal = getEnvDuration("MAX_CYCLE_DURATION", timing.MaxTotal)
	timing.MaxDataAge = getEnvDuration("MAX_DATA_AGE", timing.MaxDataAge)

	cfg := &Config{
		Preset:         preset,
		Limits:         limits,
		Timing:         timing,
		OrderTag:       getEnv("ORDER_TAG", "tradegate"),
		DatabasePath:   getEnv("DATABASE_PATH", "data/tradegate.db"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		Debug:          getEnvBool("DEBUG", false),
	}

	log.Info().
		Str("preset", preset).
		Dur("max_cycle", timing.MaxTotal).
		Msg("Configuration loaded")
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
