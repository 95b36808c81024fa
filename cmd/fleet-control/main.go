package main

import (
	"context"
	_ "embed"
	"os"
	"strconv"
	"strings"

	"fleetwatch/pkg/agentclient"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/events"
	"fleetwatch/pkg/inventory"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/machine"
	"fleetwatch/pkg/server/control"
	"fleetwatch/pkg/telemetry"

	flag "github.com/spf13/pflag"
)

//go:embed VERSION
var Version string

func main() {
	configPath := flag.String("config", "", "Configuration file path (defaults to $CONFIG_PATH, then config.yaml)")
	port := flag.Int("port", 0, "Override server.port")
	dbPath := flag.String("db", "", "Override database.url")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	cfg, loadErr := config.LoadControl(path)

	if err := log.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Warn().Err(err).Msg("Invalid log settings, using defaults")
	}
	if *debug {
		log.SetDebugMode()
	}
	if loadErr != nil {
		log.Warn().Err(loadErr).Str("path", path).Msg("Using default configuration")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.URL = *dbPath
	}

	version := strings.TrimSpace(Version)

	tp, shutdownTracer, err := telemetry.InitTracer(control.ServiceName, cfg.Tracing.Enabled)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	store, err := inventory.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.Database.URL).Msg("Failed to open inventory")
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		log.Warn().Err(err).Msg("Event publishing disabled")
		publisher = events.Noop{}
	}

	registry := agentclient.NewRegistry(cfg.Agent)
	service := machine.NewService(store, registry, publisher)

	log.Info().
		Str("version", version).
		Str("database", cfg.Database.URL).
		Bool("events", cfg.Events.NATSURL != "").
		Msg("Control plane initialized")

	srv := control.NewServer(cfg.Server, service, tp, version)
	srv.CloseOnShutdown("inventory", store)
	srv.OnShutdown(func(ctx context.Context) {
		publisher.Close()
		if err := shutdownTracer(ctx); err != nil {
			log.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	})

	if err := srv.Start(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}
