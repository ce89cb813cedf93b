package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for fraud-relay.
type Config struct {
	MetricsAddr          string        `mapstructure:"METRICS_ADDR" validate:"required"`
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	KafkaInputTopic      string        `mapstructure:"KAFKA_INPUT_TOPIC" validate:"required"`
	KafkaOutputTopic     string        `mapstructure:"KAFKA_OUTPUT_TOPIC" validate:"required,nefield=KafkaInputTopic"`
	KafkaConsumerGroup   string        `mapstructure:"KAFKA_CONSUMER_GROUP" validate:"required"`
	KafkaAutoOffsetReset string        `mapstructure:"KAFKA_AUTO_OFFSET_RESET" validate:"oneof=earliest latest"`
	KafkaInitTopics      bool          `mapstructure:"KAFKA_INIT_TOPICS"`
	KafkaPartition       int           `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaAlertRetention  time.Duration `mapstructure:"KAFKA_ALERT_RETENTION" validate:"required"`
	KafkaDLQTopic        string        `mapstructure:"KAFKA_DLQ_TOPIC" validate:"omitempty,nefield=KafkaInputTopic,nefield=KafkaOutputTopic"` // empty disables dead-lettering
	KafkaDLQRetention    time.Duration `mapstructure:"KAFKA_DLQ_RETENTION" validate:"required"`
	ScoringEndpointURL   string        `mapstructure:"SCORING_ENDPOINT_URL" validate:"required,http_url"`
	ScoringTimeout       time.Duration `mapstructure:"SCORING_TIMEOUT" validate:"required"`
	ScoringMaxRetries    int           `mapstructure:"SCORING_MAX_RETRIES" validate:"min=0,max=10"`
	RetryBaseBackoff     time.Duration `mapstructure:"RETRY_BASE_BACKOFF" validate:"required"`
	MaxRetryBackoff      time.Duration `mapstructure:"MAX_RETRY_BACKOFF" validate:"required,gtefield=RetryBaseBackoff"`
	FraudThreshold       float64       `mapstructure:"FRAUD_THRESHOLD" validate:"gte=0,lte=1"`
	PublishAll           bool          `mapstructure:"PUBLISH_ALL"`
	BatchSize            int           `mapstructure:"BATCH_SIZE" validate:"min=1,max=1000"`
	MaxConcurrentScoring int           `mapstructure:"MAX_CONCURRENT_SCORING" validate:"min=1,max=256"`
	PollTimeout          time.Duration `mapstructure:"POLL_TIMEOUT" validate:"required"`
	CommitInterval       time.Duration `mapstructure:"COMMIT_INTERVAL"`
	PublishTimeout       time.Duration `mapstructure:"PUBLISH_TIMEOUT" validate:"required"`
	PublishMaxElapsed    time.Duration `mapstructure:"PUBLISH_MAX_ELAPSED" validate:"required"`
	DrainTimeout         time.Duration `mapstructure:"DRAIN_TIMEOUT" validate:"required"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	MlRateLimitPerSec    int           `mapstructure:"ML_RATE_LIMIT_PER_SEC" validate:"min=0"` // 0 disables throttling
	MlRequestBurst       int           `mapstructure:"ML_REQUEST_BURST" validate:"min=1"`
	// Throttle wait guard: if the wait time is longer than this to get a token, the batch is sentinel-scored
	MlRequestMaxThrottleWait time.Duration `mapstructure:"ML_REQUEST_MAX_THROTTLE_WAIT" validate:"required"`
}

// Load reads configuration from APP_* env vars and an optional config.<mode>.yaml.
// Any validation failure is returned as a config error naming the offending variables.
func Load(logger *zap.Logger) (*Config, error) {
	return LoadFrom(logger, "./services/fraud-relay/configs")
}

func LoadFrom(logger *zap.Logger, configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(utils.EnvPrefix)
	v.AutomaticEnv()

	// Default values
	v.SetDefault("METRICS_ADDR", ":9091")
	v.SetDefault("KAFKA_INPUT_TOPIC", pkg.DefaultInputTopic)
	v.SetDefault("KAFKA_OUTPUT_TOPIC", pkg.DefaultOutputTopic)
	v.SetDefault("KAFKA_CONSUMER_GROUP", pkg.DefaultConsumerGroup)
	v.SetDefault("KAFKA_AUTO_OFFSET_RESET", "latest")
	v.SetDefault("KAFKA_INIT_TOPICS", "false")
	v.SetDefault("KAFKA_PARTITION", "4")
	v.SetDefault("KAFKA_ALERT_RETENTION", "168h")
	v.SetDefault("KAFKA_DLQ_TOPIC", "")
	v.SetDefault("KAFKA_DLQ_RETENTION", "168h")
	v.SetDefault("SCORING_TIMEOUT", "10s")
	v.SetDefault("SCORING_MAX_RETRIES", "2")
	v.SetDefault("RETRY_BASE_BACKOFF", "200ms")
	v.SetDefault("MAX_RETRY_BACKOFF", "5s")
	v.SetDefault("FRAUD_THRESHOLD", "0.8")
	v.SetDefault("PUBLISH_ALL", "false")
	v.SetDefault("BATCH_SIZE", "1")
	v.SetDefault("MAX_CONCURRENT_SCORING", "4")
	v.SetDefault("POLL_TIMEOUT", "1s")
	v.SetDefault("COMMIT_INTERVAL", "1s")
	v.SetDefault("PUBLISH_TIMEOUT", "10s")
	v.SetDefault("PUBLISH_MAX_ELAPSED", "1m")
	v.SetDefault("DRAIN_TIMEOUT", "15s")
	v.SetDefault("ML_RATE_LIMIT_PER_SEC", "0")
	v.SetDefault("ML_REQUEST_BURST", "1")
	v.SetDefault("ML_REQUEST_MAX_THROTTLE_WAIT", "500ms")

	// Optional: Read from config.<mode>.yaml if exists
	switch gin.Mode() {
	case gin.ReleaseMode:
		v.SetConfigName("config.prod")
	case gin.TestMode:
		logger.Warn("running_in_test_mode")
		v.SetConfigName("config.test")
	default:
		logger.Warn("running_in_development_mode")
		v.SetConfigName("config.dev")
	}
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	_ = v.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(v, &cfg); err != nil {
		return nil, pkg.NewConfigError("failed to parse configuration", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, &cfg)
	}
	return &cfg, nil
}
