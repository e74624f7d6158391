package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/stake-plus/council-gov/src/data"
	"gorm.io/gorm"
)

type Config struct {
	Token             string
	GuildID           string
	CouncilRoleID     string
	TreasuryURL       string
	TreasuryToken     string
	JWTSecret         string
	ServiceToken      string
	Port              string
	VotingWindow      time.Duration
	ReminderLead      time.Duration
	SchedulerInterval time.Duration
	VoteRateLimit     time.Duration
	MySQLDSN          string
	RedisURL          string
}

func Load(db *gorm.DB) Config {
	// Load settings from database
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	return Config{
		Token:             setting("discord_token", "DISCORD_TOKEN"),
		GuildID:           setting("guild_id", "GUILD_ID"),
		CouncilRoleID:     setting("council_role_id", "COUNCIL_ROLE_ID"),
		TreasuryURL:       setting("treasury_url", "TREASURY_URL"),
		TreasuryToken:     setting("treasury_token", "TREASURY_TOKEN"),
		JWTSecret:         setting("jwt_secret", "JWT_SECRET"),
		ServiceToken:      setting("service_token", "SERVICE_TOKEN"),
		Port:              getenv("PORT", "8080"),
		VotingWindow:      hours("voting_window_hours", "VOTING_WINDOW_HOURS", 72),
		ReminderLead:      hours("reminder_lead_hours", "REMINDER_LEAD_HOURS", 24),
		SchedulerInterval: seconds("scheduler_interval_seconds", "SCHEDULER_INTERVAL_SECONDS", 60),
		VoteRateLimit:     seconds("vote_rate_limit_seconds", "VOTE_RATE_LIMIT_SECONDS", 5),
		MySQLDSN:          getenv("MYSQL_DSN", "council:council@tcp(127.0.0.1:3306)/council"),
		RedisURL:          getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
	}
}

// setting reads a database setting with an environment fallback.
func setting(name, envKey string) string {
	if v := data.GetSetting(name); v != "" {
		return v
	}
	return os.Getenv(envKey)
}

func hours(name, envKey string, def int) time.Duration {
	return time.Duration(intSetting(name, envKey, def)) * time.Hour
}

func seconds(name, envKey string, def int) time.Duration {
	return time.Duration(intSetting(name, envKey, def)) * time.Second
}

// intSetting reads a numeric database setting with an environment fallback.
func intSetting(name, envKey string, def int) int {
	v := setting(name, envKey)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Invalid setting %s=%q, using default %d", name, v, def)
		return def
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
