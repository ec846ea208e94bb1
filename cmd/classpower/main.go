// ClassPower Core - Classroom Power Management
//
// This is the main entry point for the ClassPower Core service: the schedule
// execution and hardware dispatch engine behind the classroom power
// dashboard. It evaluates cron-registered schedules, commands relay boards
// over MQTT, and exposes the authoring API and WebSocket feed the dashboard
// consumes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/classpower/classpower-core/migrations"

	"github.com/classpower/classpower-core/internal/activity"
	"github.com/classpower/classpower-core/internal/alert"
	"github.com/classpower/classpower-core/internal/api"
	"github.com/classpower/classpower-core/internal/device"
	"github.com/classpower/classpower-core/internal/dispatch"
	"github.com/classpower/classpower-core/internal/engine"
	"github.com/classpower/classpower-core/internal/holiday"
	"github.com/classpower/classpower-core/internal/infrastructure/config"
	"github.com/classpower/classpower-core/internal/infrastructure/database"
	"github.com/classpower/classpower-core/internal/infrastructure/influxdb"
	"github.com/classpower/classpower-core/internal/infrastructure/logging"
	"github.com/classpower/classpower-core/internal/infrastructure/mqtt"
	"github.com/classpower/classpower-core/internal/schedule"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit,cyclop // linear wiring of every subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ClassPower Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := cfg.Site.Location()
	if err != nil {
		return fmt.Errorf("resolving site timezone: %w", err)
	}
	log.Info("site timezone resolved", "timezone", cfg.Site.Timezone)

	// Open database
	db, err := database.Open(database.Config{
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

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	scheduleRepo := schedule.NewSQLiteRepository(db.DB)
	activityRepo := activity.NewSQLiteRepository(db.DB)
	alertRepo := alert.NewSQLiteRepository(db.DB)

	// Device registry
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Schedule registry (cron entries fire in the site timezone)
	scheduleRegistry := schedule.NewRegistry(scheduleRepo, loc)
	scheduleRegistry.SetLogger(log)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Command dispatch pipeline
	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- validated 0-2 by config
	commandPublisher := mqtt.NewCommandPublisher(mqttClient, qos)
	dispatcher := dispatch.NewDispatcher(commandPublisher, dispatch.NewSequencer())
	dispatcher.SetLogger(log)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var metrics engine.MetricsWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		metrics = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Holiday calendar
	holidays := holiday.Empty()
	if cfg.Engine.HolidayFile != "" {
		holidays, err = holiday.Load(cfg.Engine.HolidayFile)
		if err != nil {
			log.Warn("holiday calendar unavailable, holiday checks disabled",
				"path", cfg.Engine.HolidayFile, "error", err)
			holidays = holiday.Empty()
		} else {
			log.Info("holiday calendar loaded", "path", cfg.Engine.HolidayFile)
		}
	}

	// WebSocket hub: shared by the engine (broadcasts) and the API server
	// (client connections).
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Alerts
	notifier := alert.NewNotifier(alertRepo, hub)
	notifier.SetLogger(log)

	// Execution engine
	resolver := engine.NewResolver(activityRepo, notifier, cfg.Engine.MotionWindow())
	autoOff := engine.NewAutoOffManager(deviceRegistry, dispatcher, activityRepo, notifier, hub)
	autoOff.SetLogger(log)

	eng := engine.New(engine.Config{
		Devices:    deviceRegistry,
		Schedules:  scheduleRegistry,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		AutoOff:    autoOff,
		Activities: activityRepo,
		Holidays:   holidays,
		Hub:        hub,
		Metrics:    metrics,
		Location:   loc,
	})
	eng.SetLogger(log)

	// Register schedules and start the cron runner
	scheduleRegistry.SetRunner(eng)
	if loadErr := scheduleRegistry.LoadAll(ctx); loadErr != nil {
		return fmt.Errorf("loading schedules: %w", loadErr)
	}
	scheduleRegistry.Start()
	defer func() {
		log.Info("stopping schedule runner")
		scheduleRegistry.Stop()
	}()
	log.Info("schedule runner started", "registered", scheduleRegistry.RegisteredCount())

	// Board status listener: intent replay on reconnect, motion events
	statusListener := mqtt.NewStatusListener(mqttClient, eng, deviceRegistry, qos)
	if listenErr := statusListener.Start(); listenErr != nil {
		return fmt.Errorf("subscribing to board status: %w", listenErr)
	}
	log.Info("board status listener started")

	// API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Devices:     deviceRegistry,
		Schedules:   scheduleRegistry,
		Engine:      eng,
		Alerts:      alertRepo,
		Activities:  activityRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Schedule runner
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("ClassPower Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CLASSPOWER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLASSPOWER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
