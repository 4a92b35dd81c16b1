/*
 * @module service/config/app_config
 * @description 应用配置加载，环境变量为主，源数据库凭据从 YAML 文件读取
 * @architecture 配置层 - 启动时一次性加载
 * @documentReference DESIGN.md
 * @stateFlow 读取环境变量 -> 填充默认值 -> 按需读取凭据文件
 * @rules 缺失的可选配置使用默认值；凭据文件缺少必填项时返回错误
 * @dependencies gopkg.in/yaml.v3, github.com/spf13/cast
 * @refs service/init.go, service/extraction/rds_reader.go
 */

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用配置
type AppConfig struct {
	ListenPort  int
	BaseContext string
	LogLevel    string
	APIKeyHash  string

	Database DatabaseConfig

	SourceCredsPath string

	StoreAPI StoreAPIConfig

	CardsURI     string
	ProductsURI  string
	DatesURI     string
	AWSRegion    string
	AWSAnonymous bool

	ETLCron          string
	ETLLockTTL       time.Duration
	ValidatePhone    bool
	RunRetentionDays int

	TriggerLimit TriggerLimitConfig

	Redis RedisConfig
	Kafka KafkaConfig
	MQTT  MQTTConfig
}

// DatabaseConfig 目标数据库配置
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Schema   string
}

// DSN 构建目标数据库连接字符串，优先使用 DATABASE_URL
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Schema)
}

// StoreAPIConfig 门店接口配置
type StoreAPIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RedisConfig Redis 配置，Host 为空时不启用分布式锁；ReportChannel 非空时同时发布运行报告
type RedisConfig struct {
	Host          string
	Port          string
	Password      string
	DB            int
	ReportChannel string
}

// Enabled 是否配置了 Redis
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr Redis 地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// TriggerLimitConfig 手动触发 ETL 的限流配置，依赖 Redis
type TriggerLimitConfig struct {
	WindowSeconds int
	PerClient     int
	Global        int
}

// Enabled 是否启用限流
func (c TriggerLimitConfig) Enabled() bool {
	return c.WindowSeconds > 0 && (c.PerClient > 0 || c.Global > 0)
}

// KafkaConfig Kafka 配置，Brokers 为空时不发布运行报告
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled 是否配置了 Kafka
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// MQTTConfig MQTT 配置，Broker 为空时不发布运行报告
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// Enabled 是否配置了 MQTT
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Load 从环境变量加载应用配置
func Load() *AppConfig {
	apiKey := os.Getenv("STORE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("MRDC_API_KEY")
	}

	return &AppConfig{
		ListenPort:  cast.ToInt(getEnvWithDefault("LISTEN_PORT", "80")),
		BaseContext: os.Getenv("BASE_CONTEXT"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "debug"),
		APIKeyHash:  os.Getenv("API_KEY_HASH"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: getEnvWithDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvWithDefault("DB_NAME", "sales_data"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
			Schema:   getEnvWithDefault("DB_SCHEMA", "public"),
		},
		SourceCredsPath: getEnvWithDefault("SOURCE_DB_CREDS", "db_creds.yaml"),
		StoreAPI: StoreAPIConfig{
			BaseURL: strings.TrimRight(getEnvWithDefault("STORE_API_BASE_URL", "https://aqj7u5id95.execute-api.eu-west-1.amazonaws.com/prod"), "/"),
			APIKey:  apiKey,
			Timeout: cast.ToDuration(getEnvWithDefault("STORE_API_TIMEOUT", "30s")),
		},
		CardsURI:         getEnvWithDefault("CARDS_URI", "s3://data-handling-public/card_details.csv"),
		ProductsURI:      getEnvWithDefault("PRODUCTS_URI", "s3://data-handling-public/products.csv"),
		DatesURI:         getEnvWithDefault("DATES_URI", "https://data-handling-public.s3.eu-west-1.amazonaws.com/date_details.json"),
		AWSRegion:        getEnvWithDefault("AWS_REGION", "eu-west-1"),
		AWSAnonymous:     cast.ToBool(getEnvWithDefault("AWS_ANONYMOUS", "true")),
		ETLCron:          os.Getenv("ETL_CRON"),
		ETLLockTTL:       cast.ToDuration(getEnvWithDefault("ETL_LOCK_TTL", "30m")),
		ValidatePhone:    cast.ToBool(getEnvWithDefault("ETL_VALIDATE_PHONE", "false")),
		RunRetentionDays: cast.ToInt(getEnvWithDefault("ETL_RUN_RETENTION_DAYS", "90")),
		TriggerLimit: TriggerLimitConfig{
			WindowSeconds: cast.ToInt(getEnvWithDefault("ETL_TRIGGER_WINDOW_SECONDS", "60")),
			PerClient:     cast.ToInt(getEnvWithDefault("ETL_TRIGGER_LIMIT_PER_CLIENT", "3")),
			Global:        cast.ToInt(getEnvWithDefault("ETL_TRIGGER_LIMIT_GLOBAL", "10")),
		},
		Redis: RedisConfig{
			Host:          os.Getenv("REDIS_HOST"),
			Port:          getEnvWithDefault("REDIS_PORT", "6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            cast.ToInt(getEnvWithDefault("REDIS_DB", "0")),
			ReportChannel: os.Getenv("REDIS_REPORT_CHANNEL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvWithDefault("KAFKA_TOPIC", "retail-etl-runs"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    getEnvWithDefault("MQTT_TOPIC", "retail/etl/runs"),
			ClientID: getEnvWithDefault("MQTT_CLIENT_ID", "retail-datahub"),
			QoS:      byte(cast.ToUint8(getEnvWithDefault("MQTT_QOS", "1"))),
		},
	}
}

// SourceCredentials 源数据库凭据，字段名与凭据文件中的键一致
type SourceCredentials struct {
	Host     string `yaml:"RDS_HOST"`
	User     string `yaml:"RDS_USER"`
	Password string `yaml:"RDS_PASSWORD"`
	Port     int    `yaml:"RDS_PORT"`
	Database string `yaml:"RDS_DATABASE"`
	SSLMode  string `yaml:"RDS_SSLMODE"`
}

// DSN 构建源数据库连接字符串
func (c SourceCredentials) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return dsn.String()
}

// LoadSourceCredentials 读取源数据库凭据文件
func LoadSourceCredentials(path string) (*SourceCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取凭据文件失败: %w", err)
	}
	return ParseSourceCredentials(data)
}

// ParseSourceCredentials 解析凭据 YAML
func ParseSourceCredentials(data []byte) (*SourceCredentials, error) {
	creds := &SourceCredentials{}
	if err := yaml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("解析凭据文件失败: %w", err)
	}

	var missing []string
	if creds.Host == "" {
		missing = append(missing, "RDS_HOST")
	}
	if creds.User == "" {
		missing = append(missing, "RDS_USER")
	}
	if creds.Database == "" {
		missing = append(missing, "RDS_DATABASE")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("凭据文件缺少必填项: %s", strings.Join(missing, ", "))
	}
	if creds.Port == 0 {
		creds.Port = 5432
	}
	if creds.SSLMode == "" {
		creds.SSLMode = "require"
	}
	return creds, nil
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
