package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all process configuration, loaded from environment
// variables with an optional config.yaml. Constructed once in main and
// passed down; nothing in this package is global.
type Config struct {
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	ArtifactDir       string        `mapstructure:"ARTIFACT_DIR"`
	DispatchInterval  time.Duration `mapstructure:"DISPATCH_INTERVAL"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	// Candidate grid for generation runs.
	LectureDays  []string `mapstructure:"LECTURE_DAYS"`
	DayStartHHMM string   `mapstructure:"DAY_START"`
	DayEndHHMM   string   `mapstructure:"DAY_END"`
	SlotStepMins int      `mapstructure:"SLOT_STEP_MINUTES"`

	// Notification delivery. Empty SENDGRID_API_KEY selects the console
	// notifier.
	SendgridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	NotifyFromName string `mapstructure:"NOTIFY_FROM_NAME"`
	NotifyFrom     string `mapstructure:"NOTIFY_FROM"`
	NotifyTo       string `mapstructure:"NOTIFY_TO"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ARTIFACT_DIR", "./artifacts")
	v.SetDefault("DISPATCH_INTERVAL", time.Minute)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("LECTURE_DAYS", []string{"monday", "tuesday", "wednesday", "thursday", "friday"})
	v.SetDefault("DAY_START", "08:00")
	v.SetDefault("DAY_END", "18:00")
	v.SetDefault("SLOT_STEP_MINUTES", 60)
	v.SetDefault("NOTIFY_FROM_NAME", "Scheduling")

	// keys without meaningful defaults still need registering so
	// AutomaticEnv can populate them through Unmarshal
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("NOTIFY_FROM", "")
	v.SetDefault("NOTIFY_TO", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing required configuration: DATABASE_URL")
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Weekdays parses LECTURE_DAYS into time.Weekday values, preserving the
// configured order.
func (c Config) Weekdays() ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	days := make([]time.Weekday, 0, len(c.LectureDays))
	for _, name := range c.LectureDays {
		wd, ok := names[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("invalid lecture day: %q", name)
		}
		days = append(days, wd)
	}
	return days, nil
}

// MinuteOf parses "15:04" into minutes from midnight.
func MinuteOf(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
