// Gray Logic Things - Web Thing sensor gateway
//
// This is the main entry point for the Gray Logic Things application.
// It exposes BME680 environmental readings as Web Things over HTTP and
// WebSocket, with optional MQTT, InfluxDB and SQLite history integration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-things/migrations"

	"github.com/nerrad567/gray-logic-things/internal/action"
	"github.com/nerrad567/gray-logic-things/internal/api"
	"github.com/nerrad567/gray-logic-things/internal/bridge"
	"github.com/nerrad567/gray-logic-things/internal/history"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-things/internal/notify"
	"github.com/nerrad567/gray-logic-things/internal/sensor"
	"github.com/nerrad567/gray-logic-things/internal/updater"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// historyPruneInterval is how often expired history rows are deleted.
const historyPruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rollback := flag.Bool("migrate-down", false, "Roll back the latest database migration and exit")
	flag.Parse()

	entry := run
	if *rollback {
		entry = migrateDown
	}
	if err := entry(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Things",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, source, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "source", source)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	m := metrics.New()

	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, m)
	dispatcher.SetLogger(log.With("component", "notify"))

	registry, err := buildRegistry(cfg, dispatcher)
	if err != nil {
		return fmt.Errorf("building things: %w", err)
	}
	log.Info("things registered",
		"mode", registry.Mode().String(),
		"things", registry.Len(),
	)

	checks := make(map[string]api.HealthChecker)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")
	checks["database"] = db

	historyRepo := history.NewRepository(db.DB)
	dispatcher.AddSink(history.NewSink(historyRepo))

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		dispatcher.AddSink(influxdb.NewSink(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Sensor producer
	producer, err := startProducer(cfg, mqttClient, log)
	if err != nil {
		return fmt.Errorf("starting sensor: %w", err)
	}

	loops, err := buildLoops(cfg, registry, producer, m)
	if err != nil {
		return fmt.Errorf("building update loops: %w", err)
	}
	for _, l := range loops {
		l.SetLogger(log.With("component", "updater"))
	}

	// Actions
	actions := action.NewRegistry()
	if cfg.Actions.Refresh {
		if regErr := actions.Register(updater.RefreshActionName, updater.RefreshFactory(loops)); regErr != nil {
			return fmt.Errorf("registering actions: %w", regErr)
		}
	}
	executor := action.NewExecutor(actions, cfg.Actions.MaxRecords, cfg.Actions.Timeout)
	executor.SetLogger(log.With("component", "actions"))

	// HTTP and WebSocket transport
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Actions:  executor,
		History:  historyRepo,
		Metrics:  m,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	dispatcher.AddSink(server.Hub())

	// MQTT bridge (optional)
	var mqttBridge *bridge.Bridge
	if mqttClient != nil {
		mqttBridge = bridge.New(mqttClient, registry, byte(cfg.MQTT.QoS))
		mqttBridge.SetLogger(log.With("component", "bridge"))
		dispatcher.AddSink(mqttBridge)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })

	// Retained state is published before HTTP writes are accepted.
	if mqttBridge != nil {
		if startErr := mqttBridge.Start(gctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			if stopErr := mqttBridge.Stop(); stopErr != nil {
				log.Warn("error stopping MQTT bridge", "error", stopErr)
			}
		}()
	}

	if startErr := server.Start(gctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.Database.HistoryRetention > 0 {
		pruner := history.NewPruner(historyRepo, cfg.Database.HistoryRetention, historyPruneInterval,
			log.With("component", "history"))
		g.Go(func() error { return pruner.Run(gctx) })
	}

	g.Go(func() error { return updater.RunAll(gctx, loops...) })

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr(),
		"sensor", cfg.Sensor.Source,
		"interval", cfg.Sensor.Interval.String(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		executor.Wait()
		return fmt.Errorf("fatal: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	executor.Wait()
	log.Info("Gray Logic Things stopped")
	return nil
}

// loadConfig loads the file named by GRAYLOGIC_CONFIG, or the default path.
// A missing default file falls back to the built-in configuration; a missing
// file named explicitly is an error.
func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, err := config.Load(defaultConfigPath)
		return cfg, defaultConfigPath, err
	}
	cfg, err := config.Default()
	return cfg, "built-in defaults", err
}

// startProducer creates the reading producer selected by sensor.source.
func startProducer(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (sensor.Producer, error) {
	switch cfg.Sensor.Source {
	case config.SensorSourceMQTT:
		if mqttClient == nil {
			return nil, errors.New("mqtt sensor source requires an MQTT connection")
		}
		src := sensor.NewMQTTSource(mqttClient, cfg.Sensor.ID, cfg.Sensor.MaxAge)
		if err := src.Start(); err != nil {
			return nil, err
		}
		log.Info("sensor readings from MQTT", "topic", src.Topic())
		return src, nil
	default:
		log.Info("simulated sensor",
			"seed", cfg.Sensor.Seed,
			"fault_rate", cfg.Sensor.FaultRate,
			"legacy_humidity", cfg.Sensor.LegacyHumidity,
		)
		return sensor.NewSimulated(sensor.SimulatedConfig{
			Seed:           cfg.Sensor.Seed,
			FaultRate:      cfg.Sensor.FaultRate,
			LegacyHumidity: cfg.Sensor.LegacyHumidity,
		}), nil
	}
}
