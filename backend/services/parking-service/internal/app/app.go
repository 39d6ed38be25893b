package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libkafka "smartpark/backend/libs/kafka"
	libredis "smartpark/backend/libs/redis"
	"smartpark/backend/libs/telemetry"
	"smartpark/backend/services/parking-service/internal/config"
	"smartpark/backend/services/parking-service/internal/db"
	"smartpark/backend/services/parking-service/internal/gate"
	httpserver "smartpark/backend/services/parking-service/internal/http"
	"smartpark/backend/services/parking-service/internal/http/handlers"
	"smartpark/backend/services/parking-service/internal/ingest"
	"smartpark/backend/services/parking-service/internal/metrics"
	redisstore "smartpark/backend/services/parking-service/internal/redis"
	"smartpark/backend/services/parking-service/internal/repository"
	"smartpark/backend/services/parking-service/internal/service"
	"smartpark/backend/services/parking-service/internal/ws"
)

const serviceName = "parking-service"

// App wires parking-service dependencies.
type App struct {
	server        *httpserver.Server
	hub           *ws.Hub
	mqtt          *ingest.MQTTListener
	kafka         *ingest.KafkaConsumer
	gates         *gate.Commander
	db            *sql.DB
	redisClient   *redis.Client
	shutdownTrace func(context.Context) error
	logger        *zap.Logger
}

// New constructs the application graph, applies migrations and seeds slots.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.shutdownTrace, err = telemetry.Init(ctx, telemetry.Config{ServiceName: serviceName, Endpoint: cfg.Telemetry.Endpoint})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	a.db, err = db.NewPostgres(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.PingTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.RunMigrations(ctx, a.db, logger); err != nil {
		return nil, err
	}
	store := repository.NewPostgresStore(a.db)
	m := metrics.New()

	a.hub = ws.NewHub(cfg.HTTP.WSPingInterval, logger)
	notifiers := []service.Notifier{a.hub}

	var cache service.ActiveSessionCache
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = redisstore.NewStore(a.redisClient, cfg.Redis.TTL)
		notifiers = append(notifiers, redisstore.NewPublisher(a.redisClient, cfg.Redis.Channel))
	}

	slots := service.NewSlotRegistry(store, notifiers, m, logger)
	pricing := service.NewPricingEngine(store, cfg.Pricing.DefaultRatePerHour, logger)
	reservations := service.NewReservationManager(store, slots, m, logger)
	sessions := service.NewSessionManager(store, slots, pricing, cache, m, cfg.Pricing.Currency, logger)
	ingestor := service.NewEventIngestor(store, slots, reservations, sessions, cfg.Policy(), m, logger)

	if cfg.Seed.Rows > 0 && cfg.Seed.Cols > 0 {
		if err := slots.Seed(ctx, cfg.Seed.Rows, cfg.Seed.Cols); err != nil {
			return nil, err
		}
	}

	proc := ingest.NewProcessor(ingestor, cfg.Ingestion.Attempts, m, logger)
	if cfg.MQTTEnabled() {
		a.mqtt = ingest.NewMQTTListener(ingest.MQTTConfig{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			Topic:     cfg.MQTT.Topic,
			QoS:       byte(cfg.MQTT.QoS),
		}, proc, logger)
	}
	if cfg.KafkaEnabled() {
		reader, err := libkafka.NewReader(libkafka.ReaderOptions{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.SensorTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		if err != nil {
			return nil, err
		}
		a.kafka = ingest.NewKafkaConsumer(reader, proc, logger)

		writer, err := libkafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.GateTopic)
		if err != nil {
			return nil, err
		}
		a.gates = gate.NewCommander(writer, logger)
	}

	slotsHandler := handlers.NewSlotsHandler(slots, logger)
	reservationsHandler := handlers.NewReservationsHandler(reservations, logger)
	sessionsHandler := handlers.NewSessionsHandler(sessions, logger)
	pricingHandler := handlers.NewPricingHandler(pricing, cfg.Pricing.Currency, logger)
	wsServer := ws.NewServer(a.hub, 0, logger)

	routes := httpserver.Routes{
		Health:            handlers.NewHealthHandler(a.db.PingContext),
		SlotWS:            wsServer.HandleWS,
		ListSlots:         slotsHandler.List,
		GetSlot:           slotsHandler.Get,
		SlotLogs:          slotsHandler.Logs,
		CreateReservation: reservationsHandler.Create,
		GetReservation:    reservationsHandler.Get,
		CancelReservation: reservationsHandler.Cancel,
		ParkingDetails:    sessionsHandler.Details,
		Checkout:          sessionsHandler.Checkout,
		CurrentPricing:    pricingHandler.Current,
		CreatePricingRule: pricingHandler.Create,
	}
	if a.gates != nil {
		routes.GateCommand = handlers.NewGateHandler(a.gates, logger).Command
	}

	router := httpserver.NewRouter(routes, httpserver.Options{
		ServiceName:    serviceName,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Metrics:        m,
		Logger:         logger,
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, cfg.HTTP.RequestTimeout, logger)

	logger.Info("parking service configured",
		zap.String("policy", string(cfg.Policy())),
		zap.Bool("redis", cfg.RedisEnabled()),
		zap.Bool("mqtt", cfg.MQTTEnabled()),
		zap.Bool("kafka", cfg.KafkaEnabled()),
	)
	return a, nil
}

// Run starts every component and blocks until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		once sync.Once
		fail error
	)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("component stopped", zap.String("component", name), zap.Error(err))
				once.Do(func() { fail = fmt.Errorf("%s: %w", name, err) })
			}
			cancel()
		}()
	}

	start("ws-hub", func(ctx context.Context) error {
		a.hub.Start(ctx)
		return nil
	})
	start("http", a.server.Run)
	if a.mqtt != nil {
		start("mqtt", a.mqtt.Run)
	}
	if a.kafka != nil {
		start("kafka", a.kafka.Run)
	}

	wg.Wait()
	return fail
}

// Close releases resources.
func (a *App) Close() {
	if a.gates != nil {
		if err := a.gates.Close(); err != nil {
			a.logger.Warn("failed to close gate writer", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.shutdownTrace != nil {
		if err := a.shutdownTrace(context.Background()); err != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
}
