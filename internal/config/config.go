package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"tradeanalytics/internal/risk"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	DB            DBConfig            `mapstructure:"db"`
	AnalysisStore AnalysisStoreConfig `mapstructure:"analysis_store"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cron          CronConfig          `mapstructure:"cron"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Risk          RiskConfig          `mapstructure:"risk"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StreamInterval  time.Duration `mapstructure:"stream_interval" validate:"gt=0"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding" validate:"oneof=console json"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`

	// File enables a rotated copy of the log next to stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type AnalysisStoreConfig struct {
	Driver string      `mapstructure:"driver" validate:"oneof=sql mongo"`
	Mongo  MongoConfig `mapstructure:"mongo"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri" validate:"required_if=Enabled true"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Enabled        bool          `mapstructure:"-"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Analysis string `mapstructure:"analysis" validate:"required_if=Enabled true"`
}

type AnalysisConfig struct {
	Timezone          string   `mapstructure:"timezone" validate:"required"`
	LeaderboardLimit  int      `mapstructure:"leaderboard_limit" validate:"gt=0,lte=500"`
	WashThresholdDays int      `mapstructure:"wash_threshold_days" validate:"gt=0"`
	WashSides         []string `mapstructure:"wash_sides" validate:"dive,oneof=buy sell"`
	Concurrency       int      `mapstructure:"concurrency" validate:"gt=0,lte=64"`
	ExecutionStatuses []string `mapstructure:"execution_statuses" validate:"min=1"`
	LedgerStatuses    []string `mapstructure:"ledger_statuses" validate:"min=1"`
}

type RiskConfig struct {
	// Preset picks a weight set; explicit Weights win when they are non zero.
	Preset                    string      `mapstructure:"preset" validate:"omitempty,oneof=three_factor four_factor"`
	Weights                   RiskWeights `mapstructure:"weights"`
	TradesCap                 int         `mapstructure:"trades_cap" validate:"gt=0"`
	VolumeCap                 float64     `mapstructure:"volume_cap" validate:"gt=0"`
	HighBalanceTradesCap      int         `mapstructure:"high_balance_trades_cap" validate:"gt=0"`
	HighBalanceVolumeCap      float64     `mapstructure:"high_balance_volume_cap" validate:"gt=0"`
	HighBalanceThreshold      float64     `mapstructure:"high_balance_threshold" validate:"gte=0"`
	WinRateThreshold          float64     `mapstructure:"win_rate_threshold" validate:"gt=0,lte=100"`
	NegativeBalanceFloor      *float64    `mapstructure:"negative_balance_floor"`
	NegativeBalanceFullFactor float64     `mapstructure:"negative_balance_full_factor" validate:"gt=0"`
}

type RiskWeights struct {
	Win        float64 `mapstructure:"win" validate:"gte=0"`
	Trades     float64 `mapstructure:"trades" validate:"gte=0"`
	Volume     float64 `mapstructure:"volume" validate:"gte=0"`
	NegBalance float64 `mapstructure:"neg_balance" validate:"gte=0"`
}

func (w RiskWeights) IsZero() bool {
	return w.Win == 0 && w.Trades == 0 && w.Volume == 0 && w.NegBalance == 0
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.AnalysisStore.Mongo.Enabled = cfg.AnalysisStore.Driver == "mongo"

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.stream_interval", "2s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", true)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("analysis_store.driver", "sql")
	v.SetDefault("analysis_store.mongo.uri", "")
	v.SetDefault("analysis_store.mongo.database", "trade_analytics")
	v.SetDefault("analysis_store.mongo.connect_timeout", "10s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("redis.prefix", "ta")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.analysis", "@every 6h")
	v.SetDefault("analysis.timezone", "Asia/Kolkata")
	v.SetDefault("analysis.leaderboard_limit", 10)
	v.SetDefault("analysis.wash_threshold_days", 3)
	v.SetDefault("analysis.wash_sides", []string{"buy", "sell"})
	v.SetDefault("analysis.concurrency", 1)
	v.SetDefault("analysis.execution_statuses", []string{"executed"})
	v.SetDefault("analysis.ledger_statuses", []string{"completed"})
	v.SetDefault("risk.preset", "three_factor")
	v.SetDefault("risk.weights.win", 0)
	v.SetDefault("risk.weights.trades", 0)
	v.SetDefault("risk.weights.volume", 0)
	v.SetDefault("risk.weights.neg_balance", 0)
	v.SetDefault("risk.trades_cap", 50)
	v.SetDefault("risk.volume_cap", 10_000_000)
	v.SetDefault("risk.high_balance_trades_cap", 150)
	v.SetDefault("risk.high_balance_volume_cap", 100_000_000)
	v.SetDefault("risk.high_balance_threshold", 1_000_000)
	v.SetDefault("risk.win_rate_threshold", 70)
	v.SetDefault("risk.negative_balance_full_factor", 10)
}

// Location loads the analysis timezone that defines trading days and windows.
func (a AnalysisConfig) Location() (*time.Location, error) {
	return time.LoadLocation(strings.TrimSpace(a.Timezone))
}

// ScoreWeights resolves explicit weights first, then the preset.
func (r RiskConfig) ScoreWeights() (risk.Weights, error) {
	if !r.Weights.IsZero() {
		w := risk.Weights{
			Win:        r.Weights.Win,
			Trades:     r.Weights.Trades,
			Volume:     r.Weights.Volume,
			NegBalance: r.Weights.NegBalance,
		}
		if err := w.Validate(); err != nil {
			return risk.Weights{}, err
		}
		return w, nil
	}
	return risk.WeightsForPreset(r.Preset)
}

func (r RiskConfig) Limits() risk.Limits {
	l := risk.DefaultLimits()
	l.TradesCap = r.TradesCap
	l.VolumeCap = decimal.NewFromFloat(r.VolumeCap)
	l.HighBalanceTradesCap = r.HighBalanceTradesCap
	l.HighBalanceVolumeCap = decimal.NewFromFloat(r.HighBalanceVolumeCap)
	l.HighBalanceThreshold = decimal.NewFromFloat(r.HighBalanceThreshold)
	l.WinRateThreshold = r.WinRateThreshold
	l.NegativeBalanceFullFactor = r.NegativeBalanceFullFactor
	if r.NegativeBalanceFloor != nil {
		floor := decimal.NewFromFloat(*r.NegativeBalanceFloor)
		l.NegativeBalanceFloor = &floor
	}
	return l
}
