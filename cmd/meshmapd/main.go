// meshmapd runs the mesh topology daemon: it ingests decoded radio events,
// maintains the shared topology graph, and serves it over HTTP, websocket
// and an optional NNG pub socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rfmesh/meshmap/pkg/config"
	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/health"
	"github.com/rfmesh/meshmap/pkg/ingest"
	"github.com/rfmesh/meshmap/pkg/logging"
	"github.com/rfmesh/meshmap/pkg/metrics"
	"github.com/rfmesh/meshmap/pkg/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		simulate   = flag.Bool("simulate", false, "Attach a simulated radio instead of waiting for a real one")
		simPort    = flag.String("sim-port", "/dev/sim0", "Port name for the simulated radio")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshmapd: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Log.Level))
	log.Info("meshmapd starting",
		logging.String("listen", cfg.Server.ListenAddr),
		logging.Duration("config_timeout", cfg.Serial.ConfigTimeout.Std()))

	bus := events.NewBus()
	defer bus.Shutdown()

	reg := metrics.NewRegistry()
	pipeline := ingest.New(bus, reg, log, cfg.Serial.ConfigTimeout.Std())
	defer pipeline.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Events.NNGAddr != "" {
		bridge, err := events.NewNNGBridge(cfg.Events.NNGAddr, bus, log)
		if err != nil {
			log.Error("failed to open nng socket", logging.Error(err))
			os.Exit(1)
		}
		bridge.Start(ctx)
		defer bridge.Close()
		log.Info("nng bridge listening", logging.String("addr", cfg.Events.NNGAddr))
	}

	checker := health.NewChecker()
	checker.RegisterLivenessCheck("process", func() health.Check {
		return health.SimpleCheck("process")
	})
	checker.RegisterReadinessCheck("event_bus", health.EventBusCheck(bus.IsShutdown, bus.TotalSubscribers))
	checker.RegisterCheck("pipeline", health.PipelineCheck(pipeline.SessionCounts))
	checker.RegisterCheck("topology", health.TopologyCheck(func() (int, int) {
		snapshot := pipeline.GraphSnapshot()
		return len(snapshot.Nodes), len(snapshot.Edges)
	}))
	checker.RegisterCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))

	if *simulate {
		conn := newSimulatedConn(log)
		if err := pipeline.Connect(ctx, *simPort, conn); err != nil {
			log.Error("failed to attach simulated radio", logging.Error(err))
			os.Exit(1)
		}
		log.Info("simulated radio attached", logging.Port(*simPort))
	}

	srv := server.New(cfg, pipeline, bus, checker, reg, log)
	srv.SetReload(func() error {
		reloaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		log.SetLevel(logging.ParseLevel(reloaded.Log.Level))
		log.Info("log level reloaded", logging.String("level", reloaded.Log.Level))
		return nil
	})

	if err := srv.Start(); err != nil {
		log.Error("server failed", logging.Error(err))
		os.Exit(1)
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout.Std()
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	srv.Shutdown(shutdownTimeout)
}
