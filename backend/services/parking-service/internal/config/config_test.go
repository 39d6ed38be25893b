package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpark/backend/services/parking-service/internal/service"
)

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("PARKING_POSTGRES_DSN", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PARKING_POSTGRES_DSN", "postgres://parking@localhost/parking")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTPAddress())
	assert.Equal(t, service.PolicyReject, cfg.Policy())
	assert.InDelta(t, 20.0, cfg.Pricing.DefaultRatePerHour, 0.0001)
	assert.Equal(t, "sensor_data", cfg.Kafka.SensorTopic)
	assert.Equal(t, "gate_commands", cfg.Kafka.GateTopic)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.MQTTEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PARKING_POSTGRES_DSN", "postgres://parking@localhost/parking")
	t.Setenv("PARKING_HTTP_PORT", ":8080")
	t.Setenv("PARKING_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PARKING_UNAUTHORIZED_POLICY", "RECORD")
	t.Setenv("PARKING_REDIS_ADDR", "localhost:6379")
	t.Setenv("PARKING_REDIS_TTL", "2h")
	t.Setenv("PARKING_MQTT_QOS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, service.PolicyRecord, cfg.Policy())
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 2, cfg.MQTT.QoS)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parking.yaml")
	body := `
database:
  dsn: postgres://file@localhost/parking
pricing:
  defaultRatePerHour: 30
  currency: usd
mqtt:
  brokerUrl: tcp://localhost:1883
seed:
  rows: 3
  cols: 4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://file@localhost/parking", cfg.Database.DSN)
	assert.InDelta(t, 30.0, cfg.Pricing.DefaultRatePerHour, 0.0001)
	assert.Equal(t, "usd", cfg.Pricing.Currency)
	assert.True(t, cfg.MQTTEnabled())
	assert.Equal(t, "parking/slot/+/status", cfg.MQTT.Topic)
	assert.Equal(t, 3, cfg.Seed.Rows)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"policy":  func(c *Config) { c.Ingestion.Policy = "ignore" },
		"qos":     func(c *Config) { c.MQTT.QoS = 3 },
		"rate":    func(c *Config) { c.Pricing.DefaultRatePerHour = 0 },
		"seed":    func(c *Config) { c.Seed.Rows = 27 },
		"kafkaGr": func(c *Config) { c.Kafka.Brokers = []string{"k1:9092"}; c.Kafka.GroupID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Database.DSN = "postgres://x"
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
