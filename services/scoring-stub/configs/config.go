package configs

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for scoring-stub.
type Config struct {
	Port          string        `mapstructure:"PORT" validate:"required"`
	FailureRate   float64       `mapstructure:"FAILURE_RATE" validate:"gte=0,lte=1"` // fraction of /predict calls answered with 500
	ResponseDelay time.Duration `mapstructure:"RESPONSE_DELAY" validate:"gte=0"`
}

// Load reads APP_PORT, APP_FAILURE_RATE and APP_RESPONSE_DELAY.
func Load(logger *zap.Logger) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(utils.EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("FAILURE_RATE", "0")
	v.SetDefault("RESPONSE_DELAY", "0s")

	var cfg Config
	if err := utils.ParseStructEnv(v, &cfg); err != nil {
		return nil, pkg.NewConfigError("failed to parse configuration", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, &cfg)
	}
	return &cfg, nil
}
