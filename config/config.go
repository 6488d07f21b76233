package config

import (
	"fmt"
	"time"

	pkgconfig "projecthub/pkg/config"
)

const (
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type StorageConfig struct {
	// Driver postgres（服务端模式）或 redis（键值模式）
	Driver string `yaml:"driver"`
}

type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst float64 `yaml:"burst"`
}

type AuthConfig struct {
	AdminEmails []string        `yaml:"admin_emails"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// InvitationConfig 有效期固定为 7 天，不可配置
type InvitationConfig struct {
	BaseURL    string        `yaml:"base_url"`
	PurgeAfter time.Duration `yaml:"purge_after"`
}

type AIConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	PurgeAfter time.Duration `yaml:"purge_after"`
}

type SchedulerConfig struct {
	InvitationPurgeCron string `yaml:"invitation_purge_cron"`
	OutboxPurgeCron     string `yaml:"outbox_purge_cron"`
}

type WorkerConfig struct {
	MaxRetries int64         `yaml:"max_retries"`
	DedupTTL   time.Duration `yaml:"dedup_ttl"`
	// EmailRate 每秒发送上限，<=0 不限
	EmailRate  float64       `yaml:"email_rate"`
	EmailBurst float64       `yaml:"email_burst"`
}

type Config struct {
	Server     pkgconfig.ServerConfig `yaml:"server"`
	Storage    StorageConfig          `yaml:"storage"`
	DB         pkgconfig.DBConfig     `yaml:"db"`
	Redis      pkgconfig.RedisConfig  `yaml:"redis"`
	MQ         pkgconfig.MQConfig     `yaml:"mq"`
	JWT        pkgconfig.JWTConfig    `yaml:"jwt"`
	Auth       AuthConfig             `yaml:"auth"`
	Invitation InvitationConfig       `yaml:"invitation"`
	AI         AIConfig               `yaml:"ai"`
	SMTP       pkgconfig.SMTPConfig   `yaml:"smtp"`
	Otel       pkgconfig.OtelConfig   `yaml:"otel"`
	Log        pkgconfig.LogConfig    `yaml:"log"`
	Outbox     OutboxConfig           `yaml:"outbox"`
	Scheduler  SchedulerConfig        `yaml:"scheduler"`
	Worker     WorkerConfig           `yaml:"worker"`
}

// Load 读取 config/ 下的分层配置，再用环境变量覆盖
func Load() (*Config, error) {
	cfg := Default()
	if err := pkgconfig.SourceFromEnv().Decode(cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 各项默认值，yaml 中未出现的字段保持这些值
func Default() *Config {
	return &Config{
		Server: pkgconfig.ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{Driver: StoragePostgres},
		DB: pkgconfig.DBConfig{
			Host:        "localhost",
			Port:        5432,
			SSLMode:     "disable",
			MaxConns:    10,
			MinConns:    2,
			SlowQueryMS: 100,
		},
		Redis: pkgconfig.RedisConfig{
			Addr:        "localhost:6379",
			KeyPrefix:   "ph",
			PoolSize:    10,
			DialTimeout: 2 * time.Second,
		},
		MQ:    pkgconfig.MQConfig{ConnectionName: "projecthub", Prefetch: 10},
		JWT:   pkgconfig.JWTConfig{TTL: 7 * 24 * time.Hour},
		Auth: AuthConfig{
			RateLimit: RateLimitConfig{Rate: 1, Burst: 10},
		},
		Invitation: InvitationConfig{
			BaseURL:    "http://localhost:5173/invitations",
			PurgeAfter: 30 * 24 * time.Hour,
		},
		AI:   AIConfig{Timeout: 30 * time.Second},
		SMTP: pkgconfig.SMTPConfig{Port: 587},
		Otel: pkgconfig.OtelConfig{ServiceName: "projecthub"},
		Log:  pkgconfig.LogConfig{Level: "info"},
		Outbox: OutboxConfig{
			Interval:   time.Second,
			BatchSize:  100,
			MaxRetries: 5,
			PurgeAfter: 7 * 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			InvitationPurgeCron: "0 3 * * *",
			OutboxPurgeCron:     "30 3 * * *",
		},
		Worker: WorkerConfig{MaxRetries: 3, DedupTTL: 24 * time.Hour, EmailRate: 5, EmailBurst: 10},
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl must be positive")
	}
	switch c.Storage.Driver {
	case StoragePostgres, StorageRedis:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

// overrideFromEnv 环境变量优先于 yaml
func overrideFromEnv(cfg *Config) []string {
	var bindings []pkgconfig.EnvBinding
	bindings = append(bindings, cfg.DB.EnvBindings()...)
	bindings = append(bindings, cfg.MQ.EnvBindings()...)
	bindings = append(bindings, cfg.Redis.EnvBindings()...)
	bindings = append(bindings, cfg.JWT.EnvBindings()...)
	bindings = append(bindings, cfg.Server.EnvBindings()...)
	bindings = append(bindings, cfg.SMTP.EnvBindings()...)
	bindings = append(bindings, cfg.Log.EnvBindings()...)
	bindings = append(bindings,
		pkgconfig.EnvString("STORAGE_DRIVER", &cfg.Storage.Driver),
		pkgconfig.EnvString("AI_BASE_URL", &cfg.AI.BaseURL),
	)
	return pkgconfig.ApplyEnv(bindings...)
}
