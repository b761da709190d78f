package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/metrics_collectors"
	"github.com/GauravPawar101/Validate-me/internal/probe"
	"github.com/GauravPawar101/Validate-me/internal/service_registry"
	"github.com/GauravPawar101/Validate-me/internal/services"
	"github.com/GauravPawar101/Validate-me/internal/utils"
	"github.com/GauravPawar101/Validate-me/pkg/fetch"
	"github.com/GauravPawar101/Validate-me/pkg/file"
	"github.com/GauravPawar101/Validate-me/pkg/identity"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
)

func main() {
	configFile := flag.String("config", "", "path to the validator YAML configuration")
	flag.Parse()

	// Set up structured logging with JSON output
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "validator").Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadValidatorConfig(*configFile, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.ApplyEnv(os.LookupEnv)
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	level, _ := zerolog.ParseLevel(config.LogLevel)
	log = log.Level(level)

	privateKey, err := loadPrivateKey(config, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load private key")
	}

	validatorIdentity, err := identity.NewValidatorIdentity(privateKey, config.Identity.IdentityFile, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create validator identity")
	}
	if err := validatorIdentity.LoadIdentity(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load validator identity")
	}
	log.Info().Str("public_key", validatorIdentity.PublicKey().String()).
		Str("validator_id", validatorIdentity.GetValidatorID()).
		Msg("Validator identity loaded")

	var collector services.LoadCollector
	if config.Heartbeat.CollectLoad {
		collector = metrics_collectors.NewHostLoadCollector(log)
	}

	cooldown := services.NewCooldown(config.Probe.CooldownWindow, log.With().Str("component", "cooldown").Logger())
	prober := probe.NewProber(fetch.NewHTTPFetcher(config.Probe.UserAgent), config.Probe.Timeout, config.Probe.Policy)

	agent := services.NewValidatorAgent(services.AgentConfig{
		HubURL:            config.Hub.URL,
		AddressHint:       config.Identity.AddressHint,
		HeartbeatInterval: config.Heartbeat.Interval,
	}, validatorIdentity, prober, cooldown, collector, services.WebsocketDialer(config.Hub.HandshakeTimeout), log)

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(log)
	err = serviceRegistry.RegisterServices([]service_registry.Definition{
		{Name: "cooldown", Enabled: true, Constructor: func() (service_registry.Service, error) { return cooldown, nil }},
		{Name: "validator", Enabled: true, Constructor: func() (service_registry.Service, error) { return agent, nil }},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Str("hub", config.Hub.URL).Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Errors while stopping services")
	}
}

func loadPrivateKey(config *utils.ValidatorConfig, fileClient file.FileOperations) (signer.PrivateKey, error) {
	if config.Identity.PrivateKey != "" {
		return signer.ParsePrivateKey(config.Identity.PrivateKey)
	}
	raw, err := fileClient.ReadFileRaw(config.Identity.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	return signer.ParseOpenSSHPrivateKey(raw)
}
