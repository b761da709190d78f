package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/api"
	"github.com/GauravPawar101/Validate-me/internal/hub"
	"github.com/GauravPawar101/Validate-me/internal/metrics"
	mqtt_middleware "github.com/GauravPawar101/Validate-me/internal/middlewares/mqtt"
	"github.com/GauravPawar101/Validate-me/internal/probe"
	"github.com/GauravPawar101/Validate-me/internal/service_registry"
	"github.com/GauravPawar101/Validate-me/internal/storage"
	"github.com/GauravPawar101/Validate-me/internal/utils"
	"github.com/GauravPawar101/Validate-me/pkg/fetch"
	"github.com/GauravPawar101/Validate-me/pkg/file"
	"github.com/GauravPawar101/Validate-me/pkg/mqtt"
)

func main() {
	configFile := flag.String("config", "", "path to the hub YAML configuration")
	flag.Parse()

	// Set up structured logging with JSON output
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "hub").Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadHubConfig(*configFile, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.ApplyEnv(os.LookupEnv)
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	level, _ := zerolog.ParseLevel(config.LogLevel)
	log = log.Level(level)

	var store storage.Store
	switch config.Storage.Driver {
	case "postgres":
		store, err = storage.NewPostgresStore(config.Storage.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
	default:
		store = storage.NewMemoryStore()
	}
	defer store.Close()
	log.Info().Str("driver", config.Storage.Driver).Msg("Storage ready")

	var publisher hub.TickPublisher
	if config.MQTT.Enabled {
		mqttClient := mqtt.NewMqttService(fileClient)
		err := mqttClient.Initialize(mqtt.Options{
			Broker:        config.MQTT.Broker,
			ClientID:      config.MQTT.ClientID,
			CACertificate: config.MQTT.CACertificate,
			Username:      config.MQTT.Username,
			Password:      config.MQTT.Password,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		defer mqttClient.Disconnect(250)

		chain := mqtt_middleware.NewChainedMQTTClient(mqttClient, []mqtt_middleware.MQTTMiddleware{
			mqtt_middleware.NewEnvelopeMiddleware(config.MQTT.Source),
			mqtt_middleware.NewRetryMiddleware(config.MQTT.Retries, 500*time.Millisecond, log),
		})
		publisher = hub.NewMQTTTickPublisher(chain, config.MQTT.Topic, config.MQTT.QOS)
		log.Info().Str("broker", config.MQTT.Broker).Str("topic", config.MQTT.Topic).Msg("Publishing ticks over MQTT")
	}

	exporter := metrics.NewExporter(metrics.DefaultPrefix)
	prober := probe.NewProber(fetch.NewHTTPFetcher(""), config.Validation.FetchTimeout, config.Validation.Policy)

	h, err := hub.NewHub(hub.Config{
		TaskTimeout:         config.Validation.TaskTimeout,
		MaxAttempts:         config.Validation.MaxAttempts,
		ProtocolConstraint:  config.Validation.ProtocolConstraint,
		RewardPerValidation: config.Validation.RewardPerValidation,
		PingInterval:        config.Validation.PingInterval,
		SchedulerEnabled:    config.Scheduler.Enabled,
		DispatchInterval:    config.Scheduler.DispatchInterval,
		FallbackDirect:      config.Scheduler.FallbackDirect,
		Workers:             config.Scheduler.Workers,
	}, store, prober, exporter, publisher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create hub")
	}

	server := api.NewServer(h, api.NewHeaderIdentity(config.HTTP.AccountHeader), exporter.Handler(), log)

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(log)
	err = serviceRegistry.RegisterServices([]service_registry.Definition{
		{Name: "hub", Enabled: true, Constructor: func() (service_registry.Service, error) { return h, nil }},
		{Name: "http", Enabled: true, Constructor: func() (service_registry.Service, error) {
			return api.NewHTTPService(config.HTTP.Address, server.Router(), config.HTTP.ReadTimeout,
				config.HTTP.WriteTimeout, config.HTTP.ShutdownTimeout, log), nil
		}},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Errors while stopping services")
	}
}
