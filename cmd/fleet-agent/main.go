package main

import (
	"context"
	_ "embed"
	"os"
	"strconv"
	"strings"

	"fleetwatch/pkg/collector"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/containers"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/server/agent"
	"fleetwatch/pkg/snapshot"
	"fleetwatch/pkg/telemetry"

	flag "github.com/spf13/pflag"
)

//go:embed VERSION
var Version string

func main() {
	configPath := flag.String("config", "", "Configuration file path (defaults to $CONFIG_PATH, then config.yaml)")
	port := flag.Int("port", 0, "Override server.port")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	cfg, loadErr := config.LoadAgent(path)

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

	version := strings.TrimSpace(Version)

	tp, shutdownTracer, err := telemetry.InitTracer(agent.ServiceName, cfg.Tracing.Enabled)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	ctx, cancel := context.WithCancel(context.Background())

	var (
		runtime containers.Runtime
		docker  *containers.Docker
	)
	if cfg.Containers.Enabled {
		docker = containers.NewDocker(cfg.Containers.Socket)
		runtime = docker
	}
	snap := snapshot.New(ctx, collector.NewHost(), runtime)
	go snap.RunContext(ctx, cfg.Agent.Interval())

	log.Info().
		Str("version", version).
		Dur("interval", cfg.Agent.Interval()).
		Bool("containers", snap.ContainersEnabled()).
		Msg("Agent initialized")

	srv := agent.NewServer(cfg.Server, snap, tp, version)
	srv.OnShutdown(func(ctx context.Context) {
		cancel()
		if docker != nil {
			if err := docker.Close(); err != nil {
				log.Warn().Err(err).Msg("Docker client close failed")
			}
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	})

	if err := srv.Start(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}
