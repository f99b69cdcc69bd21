// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP         HTTPConfig         `mapstructure:"http"`
	GRPC         GRPCConfig         `mapstructure:"grpc"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Scoring      ScoringConfig      `mapstructure:"scoring"`
	Notification NotificationConfig `mapstructure:"notification"`
	Geo          GeoConfig          `mapstructure:"geo"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读写超时（秒）
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 最大并发流数
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql, postgres, memory
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool   `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	// 告警事件主题
	AlertTopic string `mapstructure:"alert_topic"`
	MaxRetries int    `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff   int `mapstructure:"retry_backoff"`
	SessionTimeout int `mapstructure:"session_timeout"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
}

// ClassifierConfig 外部风险分类服务配置
type ClassifierConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// 连续失败多少次后熔断
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// ScoringConfig 评分流水线配置
type ScoringConfig struct {
	// 用于时段规则的本地时区
	Timezone string `mapstructure:"timezone"`
	// 是否按供应商串行化评分（依赖 Redis）
	SerializePerVendor bool          `mapstructure:"serialize_per_vendor"`
	VendorLockTTL      time.Duration `mapstructure:"vendor_lock_ttl"`
	SchemeCacheTTL     time.Duration `mapstructure:"scheme_cache_ttl"`
	// 后台任务（事件、通知）超时
	BackgroundTimeout time.Duration `mapstructure:"background_timeout"`
	// 雪花算法节点号
	NodeID int64 `mapstructure:"node_id"`
}

// NotificationConfig 高危告警通知配置
type NotificationConfig struct {
	// 渠道：log, kafka, webhook, smtp
	Channel    string     `mapstructure:"channel"`
	Topic      string     `mapstructure:"topic"`
	WebhookURL string     `mapstructure:"webhook_url"`
	Recipients []string   `mapstructure:"recipients"`
	SMTP       SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig 邮件服务器配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// GeoConfig 地理位置查找表
type GeoConfig struct {
	Districts []DistrictConfig `mapstructure:"districts"`
	// 无法定位时随机选取的兜底区县
	FallbackDistricts []string `mapstructure:"fallback_districts"`
}

// DistrictConfig 区县坐标
type DistrictConfig struct {
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// Load 从 TOML 文件加载配置，文件不存在时报错
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadWithDefaults 加载配置，文件缺失时仅使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, strict bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if strict || !(errors.As(err, &notFound) || os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Geo.Districts) == 0 {
		cfg.Geo.Districts = DefaultDistricts()
	}
	if len(cfg.Geo.FallbackDistricts) == 0 {
		cfg.Geo.FallbackDistricts = defaultFallbackDistricts()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Scoring.SerializePerVendor && !c.Redis.Enabled {
		return fmt.Errorf("scoring.serialize_per_vendor requires redis.enabled")
	}
	if _, err := time.LoadLocation(c.Scoring.Timezone); err != nil {
		return fmt.Errorf("invalid scoring.timezone %q: %w", c.Scoring.Timezone, err)
	}
	known := make(map[string]bool, len(c.Geo.Districts))
	for _, d := range c.Geo.Districts {
		known[strings.ToLower(d.Name)] = true
	}
	for _, name := range c.Geo.FallbackDistricts {
		if !known[strings.ToLower(name)] {
			return fmt.Errorf("fallback district %q has no coordinates in geo.districts", name)
		}
	}
	return nil
}

// DefaultDistricts 默认区县坐标表
func DefaultDistricts() []DistrictConfig {
	return []DistrictConfig{
		{Name: "North Delhi", Latitude: 28.7041, Longitude: 77.1025},
		{Name: "South Delhi", Latitude: 28.5245, Longitude: 77.2066},
		{Name: "East Delhi", Latitude: 28.6280, Longitude: 77.2950},
		{Name: "West Delhi", Latitude: 28.6663, Longitude: 77.0670},
		{Name: "Central Delhi", Latitude: 28.6519, Longitude: 77.2315},
		{Name: "New Delhi", Latitude: 28.6139, Longitude: 77.2090},
		{Name: "Lucknow", Latitude: 26.8467, Longitude: 80.9462},
		{Name: "Patna", Latitude: 25.5941, Longitude: 85.1376},
		{Name: "Mumbai", Latitude: 19.0760, Longitude: 72.8777},
		{Name: "Sitapur", Latitude: 27.5680, Longitude: 80.6790},
	}
}

func defaultFallbackDistricts() []string {
	return []string{"North Delhi", "South Delhi", "East Delhi", "West Delhi", "Central Delhi"}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "riskscoring")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.group_id", "riskscoring")
	v.SetDefault("kafka.alert_topic", "suspicious_transactions")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("kafka.session_timeout", 10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/riskscoring.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.qps", 50)
	v.SetDefault("ratelimit.burst", 100)

	v.SetDefault("classifier.base_url", "http://localhost:8000")
	v.SetDefault("classifier.timeout", 5*time.Second)
	v.SetDefault("classifier.breaker_max_failures", 5)
	v.SetDefault("classifier.breaker_open_timeout", 30*time.Second)

	v.SetDefault("scoring.timezone", "Asia/Kolkata")
	v.SetDefault("scoring.serialize_per_vendor", false)
	v.SetDefault("scoring.vendor_lock_ttl", 10*time.Second)
	v.SetDefault("scoring.scheme_cache_ttl", time.Minute)
	v.SetDefault("scoring.background_timeout", 10*time.Second)
	v.SetDefault("scoring.node_id", 1)

	v.SetDefault("notification.channel", "log")
	v.SetDefault("notification.topic", "critical_alerts")
	v.SetDefault("notification.smtp.port", 587)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
