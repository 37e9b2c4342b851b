package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// TargetChannel is one distribution channel the bot can publish into,
// configured as "title:id" pairs. Order is preserved for keyboards.
type TargetChannel struct {
	Title string
	ID    int64
}

// Config centralizes runtime settings for the bot process.
type Config struct {
	BotToken    string
	BotUsername string
	BotDebug    bool

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminIDs         []int64
	RequiredChannels []string
	TargetChannels   []TargetChannel

	ScheduleTimezone string

	PublishTickSeconds     int
	ViewsResyncSeconds     int
	ViewsResyncWindowHours int

	SessionTTLMinutes int

	RateLimitRPS   float64
	RateLimitBurst int

	WelcomeImage       string
	ConfirmImage       string
	DeleteDelaySeconds int

	SchedulerEnabled bool
}

func Load() Config {
	return Config{
		BotToken:    getEnv("BOT_TOKEN", ""),
		BotUsername: getEnv("BOT_USERNAME", "BoxUp_bot"),
		BotDebug:    getEnvBool("BOT_DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminIDs:         parseInt64List(getEnv("ADMIN_IDS", "")),
		RequiredChannels: parseStringList(getEnv("REQUIRED_CHANNELS", "")),
		TargetChannels:   parseTargetChannels(getEnv("TARGET_CHANNELS", "")),

		ScheduleTimezone: getEnv("SCHEDULE_TZ", "Europe/Berlin"),

		PublishTickSeconds:     getEnvInt("PUBLISH_TICK_SECONDS", 60),
		ViewsResyncSeconds:     getEnvInt("VIEWS_RESYNC_SECONDS", 180),
		ViewsResyncWindowHours: getEnvInt("VIEWS_RESYNC_WINDOW_HOURS", 48),

		SessionTTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 120),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 25),

		WelcomeImage:       getEnv("WELCOME_IMAGE", ""),
		ConfirmImage:       getEnv("CONFIRM_IMAGE", ""),
		DeleteDelaySeconds: getEnvInt("DELETE_DELAY", 30),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
	}
}

func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c Config) TargetChannelTitle(channelID int64) string {
	for _, ch := range c.TargetChannels {
		if ch.ID == channelID {
			return ch.Title
		}
	}
	return strconv.FormatInt(channelID, 10)
}

func (c Config) PublishTick() time.Duration {
	return time.Duration(c.PublishTickSeconds) * time.Second
}

func (c Config) ViewsResyncInterval() time.Duration {
	return time.Duration(c.ViewsResyncSeconds) * time.Second
}

func (c Config) ViewsResyncWindow() time.Duration {
	return time.Duration(c.ViewsResyncWindowHours) * time.Hour
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) DeleteDelay() time.Duration {
	return time.Duration(c.DeleteDelaySeconds) * time.Second
}

func parseStringList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseInt64List(raw string) []int64 {
	out := make([]int64, 0)
	for _, p := range parseStringList(raw) {
		value, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, value)
	}
	return out
}

func parseTargetChannels(raw string) []TargetChannel {
	out := make([]TargetChannel, 0)
	for _, p := range parseStringList(raw) {
		title, idPart, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, TargetChannel{Title: strings.TrimSpace(title), ID: id})
	}
	return out
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
