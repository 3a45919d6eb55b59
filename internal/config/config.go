package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Sync       SyncConfig       `yaml:"sync"`
	Beatmap    BeatmapConfig    `yaml:"beatmap"`
	Difficulty DifficultyConfig `yaml:"difficulty"`
	Replay     ReplayConfig     `yaml:"replay"`
	Ranking    RankingConfig    `yaml:"ranking"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ScoreTopic   string        `yaml:"score_topic"`
	RecalcTopic  string        `yaml:"recalc_topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// SyncConfig holds the rankings reconciliation worker configuration
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// BeatmapConfig holds beatmap lookup service configuration
type BeatmapConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	NegativeCacheTTL time.Duration `yaml:"negative_cache_ttl"`
}

// DifficultyConfig holds difficulty engine service configuration
type DifficultyConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ReplayConfig holds replay storage and integrity-check configuration
type ReplayConfig struct {
	Dir               string        `yaml:"dir"`
	UploadTimeout     time.Duration `yaml:"upload_timeout"`
	MinVersion        int           `yaml:"min_version"`
	AccuracyTolerance float64       `yaml:"accuracy_tolerance"`
	SpeedTolerance    float64       `yaml:"speed_tolerance"`
	HitTolerance      int           `yaml:"hit_tolerance"`
	ScoreTolerance    float64       `yaml:"score_tolerance"`
	CustomModFactor   float64       `yaml:"custom_multiplier_factor"`
}

// RankingConfig holds scoring and leaderboard configuration
type RankingConfig struct {
	Metric           string        `yaml:"metric"` // pp, ranked_score or total_score
	ResponseBudget   time.Duration `yaml:"response_budget"`
	KeepFailedScores bool          `yaml:"keep_failed_scores"`
	LeaderboardSize  int           `yaml:"leaderboard_size"`
	MaxLimit         int           `yaml:"max_limit"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.ScoreTopic == "" {
		c.Kafka.ScoreTopic = "droid-score-events"
	}
	if c.Kafka.RecalcTopic == "" {
		c.Kafka.RecalcTopic = "droid-recalc-jobs"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "droid-recalc-consumer"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Minute
	}

	// Beatmap lookup defaults
	if c.Beatmap.BaseURL == "" {
		c.Beatmap.BaseURL = "http://localhost:8180"
	}
	if c.Beatmap.Timeout == 0 {
		c.Beatmap.Timeout = 10 * time.Second
	}
	if c.Beatmap.CacheTTL == 0 {
		c.Beatmap.CacheTTL = 60 * time.Second
	}
	if c.Beatmap.NegativeCacheTTL == 0 {
		c.Beatmap.NegativeCacheTTL = 15 * time.Second
	}

	// Difficulty engine defaults
	if c.Difficulty.BaseURL == "" {
		c.Difficulty.BaseURL = "http://localhost:8181"
	}
	if c.Difficulty.Timeout == 0 {
		c.Difficulty.Timeout = 30 * time.Second
	}
	if c.Difficulty.CacheTTL == 0 {
		c.Difficulty.CacheTTL = 30 * time.Second
	}

	// Replay defaults
	if c.Replay.Dir == "" {
		c.Replay.Dir = "replays"
	}
	if c.Replay.UploadTimeout == 0 {
		c.Replay.UploadTimeout = 10 * time.Second
	}
	if c.Replay.MinVersion == 0 {
		c.Replay.MinVersion = 3
	}
	if c.Replay.AccuracyTolerance == 0 {
		c.Replay.AccuracyTolerance = 0.01
	}
	if c.Replay.SpeedTolerance == 0 {
		c.Replay.SpeedTolerance = 0.01
	}
	if c.Replay.HitTolerance == 0 {
		c.Replay.HitTolerance = 3
	}
	if c.Replay.ScoreTolerance == 0 {
		c.Replay.ScoreTolerance = 0.1
	}
	if c.Replay.CustomModFactor == 0 {
		c.Replay.CustomModFactor = 2.0
	}

	// Ranking defaults
	if c.Ranking.Metric == "" {
		c.Ranking.Metric = "pp"
	}
	if c.Ranking.ResponseBudget == 0 {
		c.Ranking.ResponseBudget = 10 * time.Second
	}
	if c.Ranking.LeaderboardSize == 0 {
		c.Ranking.LeaderboardSize = 50
	}
	if c.Ranking.MaxLimit == 0 {
		c.Ranking.MaxLimit = 100
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sync.Enabled = true
	return cfg
}

// RankingMetric converts the configured metric name into its domain value,
// falling back to pp for unknown names.
func (c *RankingConfig) RankingMetric() string {
	switch c.Metric {
	case "ranked_score", "total_score", "pp":
		return c.Metric
	default:
		return "pp"
	}
}
