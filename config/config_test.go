package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Observ.JaegerEndpoint)
	assert.Equal(t, 1.0, cfg.Observ.TraceSampleRatio)
	assert.Equal(t, 168*time.Hour, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Business.ShippingFee.IsZero())
	assert.Equal(t, 5*time.Minute, cfg.Business.OTPTTL)
	assert.Equal(t, 5, cfg.Business.OTPIssueLimit)
	assert.Equal(t, 15*time.Minute, cfg.Business.OTPIssueWindow)
	assert.Equal(t, 7, cfg.Business.RevenueDays)
	assert.True(t, cfg.Server.OTPExposeCode)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SHIPPING_FEE", "7.499")
	t.Setenv("OTP_TTL_MINUTES", "2")
	t.Setenv("OTP_EXPOSE_CODE", "false")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "7.50", cfg.Business.ShippingFee.StringFixed(2))
	assert.Equal(t, 2*time.Minute, cfg.Business.OTPTTL)
	assert.False(t, cfg.Server.OTPExposeCode)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 0.25, cfg.Observ.TraceSampleRatio)
}

func TestNegativeShippingFeeFallsBack(t *testing.T) {
	t.Setenv("SHIPPING_FEE", "-3")
	assert.True(t, Load().Business.ShippingFee.IsZero())
}
