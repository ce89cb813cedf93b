package utils

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sampleConfig struct {
	Brokers   string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	Threshold float64       `mapstructure:"FRAUD_THRESHOLD" validate:"gte=0,lte=1"`
	Timeout   time.Duration `mapstructure:"SCORING_TIMEOUT"`
	Enabled   bool          `mapstructure:"PUBLISH_ALL"`
}

func TestParseStructEnv_BindsPrefixedEnv(t *testing.T) {
	t.Setenv("APP_KAFKA_BROKERS", "localhost:9092")
	t.Setenv("APP_FRAUD_THRESHOLD", "0.65")
	t.Setenv("APP_SCORING_TIMEOUT", "3s")
	t.Setenv("APP_PUBLISH_ALL", "true")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	var cfg sampleConfig
	require.NoError(t, ParseStructEnv(v, &cfg))

	assert.Equal(t, "localhost:9092", cfg.Brokers)
	assert.Equal(t, 0.65, cfg.Threshold)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.Enabled)
}

func TestFormatConfigErrors_NamesEnvVars(t *testing.T) {
	cfg := sampleConfig{Threshold: 1.5}
	err := validator.New().Struct(&cfg)
	require.Error(t, err)

	out := FormatConfigErrors(zaptest.NewLogger(t), err, &cfg)
	require.Error(t, out)
	assert.True(t, pkg.IsConfigError(out))
	assert.Contains(t, out.Error(), "APP_KAFKA_BROKERS (required)")
	assert.Contains(t, out.Error(), "APP_FRAUD_THRESHOLD (must be <= 1)")
}

func TestCalculateExponentialBackoffWithJitter(t *testing.T) {
	assert.Zero(t, CalculateExponentialBackoffWithJitter(0, time.Second, time.Minute))

	first := CalculateExponentialBackoffWithJitter(1, 800*time.Millisecond, time.Minute)
	assert.InDelta(t, float64(800*time.Millisecond), float64(first), float64(100*time.Millisecond))

	third := CalculateExponentialBackoffWithJitter(3, 800*time.Millisecond, time.Minute)
	assert.InDelta(t, float64(3200*time.Millisecond), float64(third), float64(400*time.Millisecond))

	assert.LessOrEqual(t, CalculateExponentialBackoffWithJitter(60, time.Second, 5*time.Second), 5*time.Second)
}

func TestNewHTTPClient_SizesPool(t *testing.T) {
	c := NewHTTPClient(WithClientTimeout(3*time.Second), WithPoolSize(4), WithDialTimeout(time.Minute))
	assert.Equal(t, 3*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, tr.MaxConnsPerHost)
	assert.Equal(t, 4, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 3*time.Second, tr.ResponseHeaderTimeout)
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	c := NewHTTPClient()
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Equal(t, 8, c.Transport.(*http.Transport).MaxConnsPerHost)
}
