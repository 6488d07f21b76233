package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// 共享的基础设施配置块，应用配置按需嵌入

type DBConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SSLMode     string `yaml:"sslmode"`
	MaxConns    int32  `yaml:"max_conns"`
	MinConns    int32  `yaml:"min_conns"`
	SlowQueryMS int    `yaml:"slow_query_ms"`
}

// DSN 生成 postgres:// 连接串，用户名和密码会做 URL 转义
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	mode := c.SSLMode
	if mode == "" {
		mode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
	return u.String()
}

type MQConfig struct {
	URL            string `yaml:"url"`
	ConnectionName string `yaml:"connection_name"`
	Prefetch       int    `yaml:"prefetch"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"key_prefix"`
	PoolSize    int           `yaml:"pool_size"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LogConfig File 为空时只输出到 stdout
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type OtelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// EnvBinding 把一个环境变量绑定到配置字段上，变量为空时不生效
type EnvBinding struct {
	Key   string
	apply func(string)
}

func EnvString(key string, dst *string) EnvBinding {
	return EnvBinding{Key: key, apply: func(v string) { *dst = v }}
}

// EnvInt 无法解析的值被忽略
func EnvInt(key string, dst *int) EnvBinding {
	return EnvBinding{Key: key, apply: func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}}
}

func EnvDuration(key string, dst *time.Duration) EnvBinding {
	return EnvBinding{Key: key, apply: func(v string) {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}}
}

// ApplyEnv 按顺序应用绑定，返回实际生效的变量名
func ApplyEnv(bindings ...EnvBinding) []string {
	var applied []string
	for _, b := range bindings {
		v := os.Getenv(b.Key)
		if v == "" {
			continue
		}
		b.apply(v)
		applied = append(applied, b.Key)
	}
	return applied
}

func (c *DBConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{
		EnvString("DB_HOST", &c.Host),
		EnvInt("DB_PORT", &c.Port),
		EnvString("DB_USER", &c.User),
		EnvString("DB_PASSWORD", &c.Password),
		EnvString("DB_NAME", &c.Name),
		EnvString("DB_SSLMODE", &c.SSLMode),
	}
}

func (c *MQConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{EnvString("MQ_URL", &c.URL)}
}

func (c *RedisConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{
		EnvString("REDIS_ADDR", &c.Addr),
		EnvString("REDIS_PASSWORD", &c.Password),
		EnvInt("REDIS_DB", &c.DB),
	}
}

func (c *JWTConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{
		EnvString("JWT_SECRET", &c.Secret),
		EnvDuration("JWT_TTL", &c.TTL),
	}
}

func (c *ServerConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{EnvString("SERVER_PORT", &c.Port)}
}

func (c *SMTPConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{
		EnvString("SMTP_HOST", &c.Host),
		EnvInt("SMTP_PORT", &c.Port),
		EnvString("SMTP_USER", &c.User),
		EnvString("SMTP_PASSWORD", &c.Password),
	}
}

func (c *LogConfig) EnvBindings() []EnvBinding {
	return []EnvBinding{EnvString("LOG_LEVEL", &c.Level)}
}
