package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Cron      CronConfig      `mapstructure:"cron"`
	Market    MarketConfig    `mapstructure:"market"`
	Settle    SettleConfig    `mapstructure:"settle"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PoolSize   int           `mapstructure:"pool_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Disabled  bool          `mapstructure:"disabled"`
}

// FeesConfig carries the platform fee schedule. The house fraction is one
// global value; the creator fraction is per-market, bounded here.
type FeesConfig struct {
	HouseFraction      float64 `mapstructure:"house_fraction"`
	CreatorMinFraction float64 `mapstructure:"creator_min_fraction"`
	CreatorMaxFraction float64 `mapstructure:"creator_max_fraction"`
	CreatorDefault     float64 `mapstructure:"creator_default"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	LifecycleSweep string `mapstructure:"lifecycle_sweep"`
}

type MarketConfig struct {
	MinOptions      int   `mapstructure:"min_options"`
	MaxOptions      int   `mapstructure:"max_options"`
	MinCancelReason int   `mapstructure:"min_cancel_reason"`
	InitialBalance  int64 `mapstructure:"initial_balance"`
}

type SettleConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.cache_ttl", "30s")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("fees.house_fraction", 0.02)
	v.SetDefault("fees.creator_min_fraction", 0.01)
	v.SetDefault("fees.creator_max_fraction", 0.05)
	v.SetDefault("fees.creator_default", 0.02)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.lifecycle_sweep", "@every 1m")
	v.SetDefault("market.min_options", 2)
	v.SetDefault("market.max_options", 20)
	v.SetDefault("market.min_cancel_reason", 10)
	v.SetDefault("market.initial_balance", 1000)
	v.SetDefault("settle.lock_ttl", "30s")
	v.SetDefault("websocket.enabled", true)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
