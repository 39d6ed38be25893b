package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "smartpark/backend/libs/config"
	"smartpark/backend/services/parking-service/internal/service"
)

// HTTPConfig configures the REST and websocket listener.
type HTTPConfig struct {
	Port           string        `yaml:"port" env:"PARKING_HTTP_PORT"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"PARKING_HTTP_REQUEST_TIMEOUT"`
	WSPingInterval time.Duration `yaml:"wsPingInterval" env:"PARKING_WS_PING_INTERVAL"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn" env:"PARKING_POSTGRES_DSN"`
	MaxOpenConns int           `yaml:"maxOpenConns" env:"PARKING_POSTGRES_MAX_OPEN_CONNS"`
	PingTimeout  time.Duration `yaml:"pingTimeout" env:"PARKING_POSTGRES_PING_TIMEOUT"`
}

// RedisConfig configures the open session cache and the slot update channel.
// An empty Addr disables both.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"PARKING_REDIS_ADDR"`
	Password string        `yaml:"password" env:"PARKING_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"PARKING_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"PARKING_REDIS_TTL"`
	Channel  string        `yaml:"channel" env:"PARKING_REDIS_CHANNEL"`
}

// MQTTConfig configures the sensor topic subscription. An empty BrokerURL disables it.
type MQTTConfig struct {
	BrokerURL string `yaml:"brokerUrl" env:"PARKING_MQTT_BROKER_URL"`
	ClientID  string `yaml:"clientId" env:"PARKING_MQTT_CLIENT_ID"`
	Username  string `yaml:"username" env:"PARKING_MQTT_USERNAME"`
	Password  string `yaml:"password" env:"PARKING_MQTT_PASSWORD"`
	Topic     string `yaml:"topic" env:"PARKING_MQTT_TOPIC"`
	QoS       int    `yaml:"qos" env:"PARKING_MQTT_QOS"`
}

// KafkaConfig configures the sensor queue and the gate command topic. No brokers disables both.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" env:"PARKING_KAFKA_BROKERS"`
	SensorTopic string   `yaml:"sensorTopic" env:"PARKING_KAFKA_SENSOR_TOPIC"`
	GroupID     string   `yaml:"groupId" env:"PARKING_KAFKA_GROUP_ID"`
	GateTopic   string   `yaml:"gateTopic" env:"PARKING_KAFKA_GATE_TOPIC"`
}

// PricingConfig holds the fallback rate and the currency printed on receipts.
type PricingConfig struct {
	DefaultRatePerHour float64 `yaml:"defaultRatePerHour" env:"PARKING_DEFAULT_RATE_PER_HOUR"`
	Currency           string  `yaml:"currency" env:"PARKING_CURRENCY"`
}

// IngestionConfig decides unauthorized occupancy handling and the retry budget.
type IngestionConfig struct {
	Policy   string `yaml:"policy" env:"PARKING_UNAUTHORIZED_POLICY"`
	Attempts int    `yaml:"attempts" env:"PARKING_INGEST_ATTEMPTS"`
}

// TelemetryConfig points at an OTLP/HTTP collector. An empty Endpoint disables export.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// SeedConfig creates a rows x cols grid of slots at startup. Zero rows skips seeding.
type SeedConfig struct {
	Rows int `yaml:"rows" env:"PARKING_SEED_ROWS"`
	Cols int `yaml:"cols" env:"PARKING_SEED_COLS"`
}

// Config defines parking service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Seed      SeedConfig      `yaml:"seed"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           "3000",
			RequestTimeout: 10 * time.Second,
			WSPingInterval: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			PingTimeout:  5 * time.Second,
		},
		Redis: RedisConfig{
			TTL:     24 * time.Hour,
			Channel: "parking:slot-updates",
		},
		MQTT: MQTTConfig{
			ClientID: "parking-service",
			Topic:    "parking/slot/+/status",
			QoS:      1,
		},
		Kafka: KafkaConfig{
			SensorTopic: "sensor_data",
			GroupID:     "parking-service",
			GateTopic:   "gate_commands",
		},
		Pricing: PricingConfig{
			DefaultRatePerHour: service.DefaultRatePerHour,
			Currency:           "INR",
		},
		Ingestion: IngestionConfig{
			Policy:   string(service.PolicyReject),
			Attempts: 5,
		},
		Seed: SeedConfig{Rows: 2, Cols: 5},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if c.Pricing.DefaultRatePerHour <= 0 {
		return errors.New("config: default rate per hour must be positive")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if _, err := service.ParsePolicy(c.Ingestion.Policy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Seed.Rows < 0 || c.Seed.Rows > 26 || c.Seed.Cols < 0 {
		return errors.New("config: seed rows must be within 0..26 and cols non-negative")
	}
	if len(c.Kafka.Brokers) > 0 {
		if strings.TrimSpace(c.Kafka.SensorTopic) == "" || strings.TrimSpace(c.Kafka.GroupID) == "" {
			return errors.New("config: kafka sensor topic and group id required when brokers are set")
		}
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "3000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Policy returns the parsed unauthorized occupancy policy.
func (c *Config) Policy() service.Policy {
	policy, err := service.ParsePolicy(c.Ingestion.Policy)
	if err != nil {
		return service.PolicyReject
	}
	return policy
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return strings.TrimSpace(c.Redis.Addr) != "" }

// MQTTEnabled reports whether an MQTT broker is configured.
func (c *Config) MQTTEnabled() bool { return strings.TrimSpace(c.MQTT.BrokerURL) != "" }

// KafkaEnabled reports whether Kafka brokers are configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
