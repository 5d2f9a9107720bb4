package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the publishing pipeline
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Painter    PainterConfig    `yaml:"painter"`
	Server     ServerConfig     `yaml:"server"`
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis settings used for distributed locking
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ScheduleConfig holds the publication-window and cadence settings.
// MinHour and MaxHour are UTC hours after Load; if the operator supplies
// local hours, TZOffsetHours is subtracted at load time.
type ScheduleConfig struct {
	PerHour                int `yaml:"per_hour"`      // characters per hour of channel throughput
	MinHour                int `yaml:"min_hour"`      // inclusive window start, UTC
	MaxHour                int `yaml:"max_hour"`      // inclusive window end, UTC
	TZOffsetHours          int `yaml:"tz_offset"`     // offset of the supplied window hours from UTC
	LTPosts                int `yaml:"lt_posts"`      // history depth for long-term distributions
	MTPosts                int `yaml:"mt_posts"`      // history depth for medium-term distributions
	PlannerTickSeconds     int `yaml:"planner_tick_seconds"`
	AggregatorWaitSeconds  int `yaml:"aggregator_wait_seconds"`
	PublishIntervalSeconds int `yaml:"publish_interval_seconds"`
}

// PlannerTick returns the planner poll cadence as a duration.
func (c ScheduleConfig) PlannerTick() time.Duration {
	return time.Duration(c.PlannerTickSeconds) * time.Second
}

// AggregatorWait returns how long a planning round waits for final scores.
func (c ScheduleConfig) AggregatorWait() time.Duration {
	return time.Duration(c.AggregatorWaitSeconds) * time.Second
}

// PublishInterval returns the pause between consecutive deliveries in a batch.
func (c ScheduleConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalSeconds) * time.Second
}

// LTUpdateInterval derives the long-term refresh cadence from the channel
// throughput: temp = PER_HOUR * (MAX - MIN) / 700, interval = LT_POSTS / temp * 24h.
func (c ScheduleConfig) LTUpdateInterval() time.Duration {
	temp := float64(c.PerHour) * float64(c.MaxHour-c.MinHour) / 700
	if temp <= 0 {
		return 24 * time.Hour
	}
	hours := int(float64(c.LTPosts)/temp*24 + 0.5)
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// ScoringConfig holds the aggregation weights for the seven dimensions.
// The weights are expected to sum to 1.0; Load warns when they do not.
type ScoringConfig struct {
	LTTopic    float64 `yaml:"lt_topic"`
	LTMood     float64 `yaml:"lt_mood"`
	MTTopic    float64 `yaml:"mt_topic"`
	MTMood     float64 `yaml:"mt_mood"`
	MTAuthor   float64 `yaml:"mt_author"`
	TimeBest   float64 `yaml:"time_best"`
	TimeExpire float64 `yaml:"time_expire"`
}

// Sum returns the total of all seven weights.
func (s ScoringConfig) Sum() float64 {
	return s.LTTopic + s.LTMood + s.MTTopic + s.MTMood + s.MTAuthor + s.TimeBest + s.TimeExpire
}

// ClassifierConfig holds the Bedrock model settings for text classification
type ClassifierConfig struct {
	ModelID        string  `yaml:"model_id"`
	Region         string  `yaml:"region"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the configured classifier timeout as a duration
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TelegramConfig holds the delivery-surface credentials and targets
type TelegramConfig struct {
	BotToken       string `yaml:"bot_token"`
	Group          string `yaml:"group"`
	PreviewGroup   string `yaml:"preview_group"`
	ChannelURL     string `yaml:"channel_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured Telegram timeout as a duration
func (c TelegramConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PainterConfig holds the image-generation webhook settings
type PainterConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured webhook timeout as a duration
func (c PainterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServerConfig holds the ops HTTP server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{MaxOpenConns: 8, MaxIdleConns: 2},
		Schedule: ScheduleConfig{
			PerHour:                300,
			MinHour:                9,
			MaxHour:                21,
			LTPosts:                50,
			MTPosts:                20,
			PlannerTickSeconds:     60,
			AggregatorWaitSeconds:  30,
			PublishIntervalSeconds: 1800,
		},
		Scoring: ScoringConfig{
			LTTopic:    0.15,
			LTMood:     0.15,
			MTTopic:    0.15,
			MTMood:     0.15,
			MTAuthor:   0.15,
			TimeBest:   0.20,
			TimeExpire: 0.05,
		},
		Classifier: ClassifierConfig{
			ModelID:        "anthropic.claude-3-sonnet-20240229-v1:0",
			Region:         "us-east-1",
			Temperature:    0.3,
			MaxTokens:      500,
			TimeoutSeconds: 30,
		},
		Telegram: TelegramConfig{TimeoutSeconds: 30},
		Painter:  PainterConfig{TimeoutSeconds: 60},
		Server:   ServerConfig{Port: 8080, Host: "localhost"},
	}
}

// Load reads a YAML configuration file and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the optional YAML file, overlays .env and process
// environment variables, normalizes the publication window to UTC and
// validates the result. A missing YAML file is not an error; the original
// deployment was configured through the environment alone.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if loaded, err := Load(path); err == nil {
			cfg = loaded
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	overrideInt(&cfg.Schedule.PerHour, "PER_HOUR")
	overrideInt(&cfg.Schedule.MinHour, "MIN")
	overrideInt(&cfg.Schedule.MaxHour, "MAX")
	overrideInt(&cfg.Schedule.TZOffsetHours, "WINDOW_TZ_OFFSET")
	overrideInt(&cfg.Schedule.LTPosts, "LT_POSTS")
	overrideInt(&cfg.Schedule.MTPosts, "MT_POSTS")
	overrideInt(&cfg.Schedule.PlannerTickSeconds, "PLANNER_CHECK_INTERVAL")
	overrideInt(&cfg.Schedule.PublishIntervalSeconds, "PUBLISH_INTERVAL")
	overrideFloat(&cfg.Scoring.LTTopic, "LT_TOPIC_WEIGHT")
	overrideFloat(&cfg.Scoring.LTMood, "LT_MOOD_WEIGHT")
	overrideFloat(&cfg.Scoring.MTTopic, "MT_TOPIC_WEIGHT")
	overrideFloat(&cfg.Scoring.MTMood, "MT_MOOD_WEIGHT")
	overrideFloat(&cfg.Scoring.MTAuthor, "MT_AUTHOR_WEIGHT")
	overrideFloat(&cfg.Scoring.TimeBest, "TIME_BEST_WEIGHT")
	overrideFloat(&cfg.Scoring.TimeExpire, "TIME_EXPIRE_WEIGHT")
	if v := os.Getenv("PUBLISH_API"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TG_GROUP"); v != "" {
		cfg.Telegram.Group = v
	}
	if v := os.Getenv("PREVIEW_GROUP"); v != "" {
		cfg.Telegram.PreviewGroup = v
	}
	if v := os.Getenv("CHANNEL_URL"); v != "" {
		cfg.Telegram.ChannelURL = v
	}
	if v := os.Getenv("PAINTER_WEBHOOK_URL"); v != "" {
		cfg.Painter.WebhookURL = v
	}
	if v := os.Getenv("CLASSIFIER_MODEL_ID"); v != "" {
		cfg.Classifier.ModelID = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Classifier.Region = v
	}
	overrideInt(&cfg.Server.Port, "SERVER_PORT")

	cfg.normalizeWindow()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalizeWindow converts operator-local window hours to UTC.
// The scheduler works in UTC end to end; a non-zero TZOffsetHours means
// MIN/MAX were supplied in local time.
func (c *Config) normalizeWindow() {
	if c.Schedule.TZOffsetHours == 0 {
		return
	}
	c.Schedule.MinHour = ((c.Schedule.MinHour-c.Schedule.TZOffsetHours)%24 + 24) % 24
	c.Schedule.MaxHour = ((c.Schedule.MaxHour-c.Schedule.TZOffsetHours)%24 + 24) % 24
	c.Schedule.TZOffsetHours = 0
}

// Validate checks the invariants the pipeline depends on.
func (c *Config) Validate() error {
	s := c.Schedule
	if s.MinHour < 0 || s.MinHour > 23 || s.MaxHour < 0 || s.MaxHour > 23 {
		return fmt.Errorf("config: window hours out of range: MIN=%d MAX=%d", s.MinHour, s.MaxHour)
	}
	if s.MinHour > s.MaxHour {
		return fmt.Errorf("config: publication window is empty: MIN=%d > MAX=%d (after UTC conversion)", s.MinHour, s.MaxHour)
	}
	if s.PerHour <= 0 {
		return fmt.Errorf("config: PER_HOUR must be positive, got %d", s.PerHour)
	}
	if sum := c.Scoring.Sum(); sum < 0.999 || sum > 1.001 {
		log.Printf("[Config] Warning: scoring weights sum to %.2f, expected 1.0", sum)
	}
	return nil
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
