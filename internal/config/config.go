package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type IBConfig struct {
	Env          string `yaml:"env" env:"IB_ENV" env-default:"local"`
	GRPCServer   `yaml:"grpc_server"`
	HTTPServer   `yaml:"http_server"`
	IBDB         `yaml:"ib_db"`
	LogConfig    `yaml:"log_config"`
	KafkaService `yaml:"kafka-service"`
	Redis        `yaml:"redis"`
	Hierarchy    `yaml:"hierarchy"`
	Referral     `yaml:"referral"`
}

type GRPCServer struct {
	Host           string        `yaml:"host" env:"IB_GRPC_HOST" env-default:"0.0.0.0"`
	Port           string        `yaml:"port" env:"IB_GRPC_PORT" env-default:"50061"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"IB_GRPC_REQUEST_TIMEOUT" env-default:"5s"`
}

type HTTPServer struct {
	Host string `yaml:"host" env:"IB_HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"IB_HTTP_PORT" env-default:"8091"`
}

type IBDB struct {
	Dsn            string `yaml:"dsn" env:"IB_DB_DSN" env-required:"true"`
	MigrationsPath string `yaml:"migrations_path" env:"IB_DB_MIGRATIONS_PATH" env-default:"migrations"`
	MaxOpenConns   int    `yaml:"max_open_conns" env:"IB_DB_MAX_OPEN_CONNS" env-default:"20"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"IB_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"IB_LOG_FORMAT" env-default:"json"`
}

type KafkaService struct {
	Host            string `yaml:"host" env:"IB_KAFKA_HOST" env-default:"localhost"`
	Port            string `yaml:"port" env:"IB_KAFKA_PORT" env-default:"9092"`
	WithdrawalTopic string `yaml:"withdrawal_topic" env:"IB_KAFKA_WITHDRAWAL_TOPIC" env-default:"ib-withdrawal-events"`
	CommissionTopic string `yaml:"commission_topic" env:"IB_KAFKA_COMMISSION_TOPIC" env-default:"ib-commission-events"`
	GroupID         string `yaml:"group_id" env:"IB_KAFKA_GROUP_ID" env-default:"ib-service"`
}

func (k KafkaService) Addr() string {
	return fmt.Sprintf("%s:%s", k.Host, k.Port)
}

type Redis struct {
	URL     string        `yaml:"url" env:"IB_REDIS_URL"`
	TreeTTL time.Duration `yaml:"tree_ttl" env:"IB_REDIS_TREE_TTL" env-default:"5m"`
}

type Hierarchy struct {
	MaxDepth         int `yaml:"max_depth" env:"IB_HIERARCHY_MAX_DEPTH" env-default:"10"`
	AggregateWorkers int `yaml:"aggregate_workers" env:"IB_HIERARCHY_AGGREGATE_WORKERS" env-default:"8"`
}

type Referral struct {
	CodeAttempts int `yaml:"code_attempts" env:"IB_REFERRAL_CODE_ATTEMPTS" env-default:"10"`
}

func MustLoad() *IBConfig {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Load reads .env when present, then the YAML file named by IB_CONFIG_PATH.
// Environment variables override file values.
func Load() (*IBConfig, error) {
	_ = godotenv.Load()

	configPath := os.Getenv("IB_CONFIG_PATH")
	if configPath == "" {
		return nil, fmt.Errorf("IB_CONFIG_PATH was not found")
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	var cfg IBConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return &cfg, nil
}
