package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	S3       S3Config       `mapstructure:"s3"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Toss     TossConfig     `mapstructure:"toss"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WorksheetGenerated string `mapstructure:"worksheet_generated"`
	PaymentCompleted   string `mapstructure:"payment_completed"`
}

// S3Config 文档存储配置（MinIO 兼容）
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// GeminiConfig 生成模型配置
// APIKey 为空时服务仍可启动，生成请求会降级为错误说明文档
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// TossConfig 토스페이먼츠 支付网关配置
type TossConfig struct {
	ClientKey string `mapstructure:"client_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type BusinessConfig struct {
	SignupBonus         int64 `mapstructure:"signup_bonus"`          // 注册赠送的이용권数量
	DailyFreeCount      int   `mapstructure:"daily_free_count"`      // 每日免费学习지的题目数
	OrderTimeoutMinutes int   `mapstructure:"order_timeout_minutes"` // 充值订单超时时间
	MaxRetryCount       int   `mapstructure:"max_retry_count"`       // outbox 消息最大重试次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
