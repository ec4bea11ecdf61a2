package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	State     StateConfig     `mapstructure:"state"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Invite    InviteConfig    `mapstructure:"invite"`
	Health    HealthConfig    `mapstructure:"health"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

type JWTConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type InviteConfig struct {
	DefaultQuota int           `mapstructure:"default_quota"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	MaxBatchSize int           `mapstructure:"max_batch_size"`
}

type HealthConfig struct {
	LowThreshold  float64 `mapstructure:"low_threshold"`
	TrunkMinAge   int     `mapstructure:"trunk_min_age_days"`
	TrunkMinScore float64 `mapstructure:"trunk_min_score"`
	TrunkMinDepth int     `mapstructure:"trunk_min_depth"`
	TrunkMinSize  int     `mapstructure:"trunk_min_size"`
	BatchWorkers  int     `mapstructure:"batch_workers"`
}

type SchedulerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SweepSpec  string `mapstructure:"sweep_spec"`
	HealthSpec string `mapstructure:"health_spec"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Calls   int           `mapstructure:"calls"`
	Period  time.Duration `mapstructure:"period"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml, overlays environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Environment variable override: DATABASE_POSTGRES_HOST -> database.postgres.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("invite.default_quota", 5)
	v.SetDefault("invite.token_ttl", 24*time.Hour)
	v.SetDefault("invite.max_batch_size", 10)
	v.SetDefault("health.low_threshold", 50.0)
	v.SetDefault("health.trunk_min_age_days", 90)
	v.SetDefault("health.trunk_min_score", 75.0)
	v.SetDefault("health.trunk_min_depth", 3)
	v.SetDefault("health.trunk_min_size", 10)
	v.SetDefault("health.batch_workers", 4)
	v.SetDefault("scheduler.sweep_spec", "@every 15m")
	v.SetDefault("scheduler.health_spec", "@every 24h")
	v.SetDefault("rate_limit.calls", 30)
	v.SetDefault("rate_limit.period", time.Minute)
}
