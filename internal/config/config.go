package config

import (
	"fmt"
	"strings"

	"github.com/rentflow/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	UserJWT      JWTConfig          `mapstructure:"user_jwt"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	BankTransfer BankTransferConfig `mapstructure:"bank_transfer"`
	Card         CardConfig         `mapstructure:"card"`
	Seed         SeedConfig         `mapstructure:"seed"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Service    string `mapstructure:"service"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Service:    c.Service,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey             string `mapstructure:"secret"`
	ExpireHours           int    `mapstructure:"expire_hours"`
	RememberMeExpireHours int    `mapstructure:"remember_me_expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig 接口限流配置
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	WindowSeconds int  `mapstructure:"window_seconds"`
	MaxRequests   int  `mapstructure:"max_requests"`
}

// PaymentConfig 租金支付编排配置
type PaymentConfig struct {
	Environment             string `mapstructure:"environment"` // sandbox / production
	Currency                string `mapstructure:"currency"`
	TransferFee             string `mapstructure:"transfer_fee"` // 每笔固定网络手续费
	ReconcileSchedule       string `mapstructure:"reconcile_schedule"`
	PendingGraceSeconds     int    `mapstructure:"pending_grace_seconds"`
	PendingMaxAgeSeconds    int    `mapstructure:"pending_max_age_seconds"`
	ReconcileBatchSize      int    `mapstructure:"reconcile_batch_size"`
	WebhookDedupeTTLSeconds int    `mapstructure:"webhook_dedupe_ttl_seconds"`
}

// IsSandbox 是否为沙箱环境
func (c PaymentConfig) IsSandbox() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "sandbox")
}

// BankTransferConfig 银行转账处理方配置
type BankTransferConfig struct {
	APIBaseURL     string `mapstructure:"api_base_url"`
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CardConfig 卡支付处理方配置
type CardConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	APIBaseURL    string `mapstructure:"api_base_url"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

// SeedConfig 开发环境初始数据
type SeedConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Password string `mapstructure:"password"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	// 设置默认值（可选）
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "rentflow.log")
	viper.SetDefault("log.service", "rentflow")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/rentflow.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("user_jwt.secret", "user-change-me-in-production")
	viper.SetDefault("user_jwt.expire_hours", 24)
	viper.SetDefault("user_jwt.remember_me_expire_hours", 168)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "rf")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.window_seconds", 60)
	viper.SetDefault("rate_limit.max_requests", 20)
	viper.SetDefault("payment.environment", "sandbox")
	viper.SetDefault("payment.currency", "USD")
	viper.SetDefault("payment.transfer_fee", "0.25")
	viper.SetDefault("payment.reconcile_schedule", "@every 5m")
	viper.SetDefault("payment.pending_grace_seconds", 120)
	viper.SetDefault("payment.pending_max_age_seconds", 86400)
	viper.SetDefault("payment.reconcile_batch_size", 50)
	viper.SetDefault("payment.webhook_dedupe_ttl_seconds", 86400)
	viper.SetDefault("bank_transfer.api_base_url", "https://api-sandbox.dwolla.com")
	viper.SetDefault("bank_transfer.api_key", "")
	viper.SetDefault("bank_transfer.api_secret", "")
	viper.SetDefault("bank_transfer.webhook_secret", "")
	viper.SetDefault("bank_transfer.timeout_seconds", 12)
	viper.SetDefault("card.enabled", false)
	viper.SetDefault("card.api_base_url", "https://api.stripe.com")
	viper.SetDefault("card.secret_key", "")
	viper.SetDefault("card.webhook_secret", "")
	viper.SetDefault("card.success_url", "")
	viper.SetDefault("card.cancel_url", "")
	viper.SetDefault("seed.enabled", false)
	viper.SetDefault("seed.password", "")

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
