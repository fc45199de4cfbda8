// Gray Logic Cameras - network camera bridge
//
// This is the main entry point for the camera bridge. It keeps a registry
// of network cameras in step with discovery results and the cameras
// themselves, polls them on a fast and a slow cadence, accepts motion push
// notifications and reports every attribute change over MQTT, InfluxDB and
// a WebSocket stream.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-cameras/migrations"

	"github.com/nerrad567/gray-logic-cameras/internal/api"
	"github.com/nerrad567/gray-logic-cameras/internal/audit"
	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera/vendor"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-cameras/internal/notify"
	"github.com/nerrad567/gray-logic-cameras/internal/store"
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
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence with deferred teardown
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Cameras",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// The hub must run before the sink reports its first value.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	repo := store.NewSQLiteRepository(db.DB)
	sinkOpts := store.SinkOptions{
		Values:      repo,
		Publisher:   mqttClient,
		Broadcaster: hub,
		Logger:      log.Component("store"),
	}
	if influxClient != nil {
		sinkOpts.Metrics = influxClient
	}
	sink, err := store.NewSink(ctx, sinkOpts)
	if err != nil {
		return fmt.Errorf("loading attribute values: %w", err)
	}

	auditRec := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), log.Component("audit"))

	bridge, err := startCameraBridge(ctx, cfg, mqttClient, repo, sink, auditRec, log)
	if err != nil {
		return fmt.Errorf("starting camera bridge: %w", err)
	}
	defer func() {
		log.Info("stopping camera bridge")
		bridge.Stop()
	}()

	// Failing to bind the notification port is fatal.
	listener, err := notify.New(notify.Config{
		Host: cfg.Cameras.Notifications.Host,
		Port: cfg.Cameras.Notifications.Port,
	}, bridge.HandleNotification, log.Component("notify"))
	if err != nil {
		return fmt.Errorf("creating notification listener: %w", err)
	}
	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("starting notification listener: %w", err)
	}
	defer func() {
		log.Info("stopping notification listener")
		if closeErr := listener.Close(); closeErr != nil {
			log.Error("error closing notification listener", "error", closeErr)
		}
	}()
	log.Info("notification listener started", "port", listener.Port())

	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		JWT:         cfg.Security.JWT,
		Logger:      log,
		Cameras:     bridge,
		Audit:       auditRec,
		MQTT:        mqttClient,
		DB:          db.DB,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API, notification
	// listener, bridge, hub, InfluxDB, MQTT, database.

	log.Info("Gray Logic Cameras stopped")
	return nil
}

// runToken prints a bearer token for the mutating API routes.
// The subject defaults to "operator".
func runToken(args []string, out io.Writer) error {
	subject := "operator"
	if len(args) > 0 && args[0] != "" {
		subject = args[0]
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := api.IssueToken(cfg.Security.JWT.Secret, subject, cfg.Security.JWT.TokenTTL())
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
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

// startCameraBridge builds the vendor adapter factory and starts the
// camera bridge.
func startCameraBridge(
	ctx context.Context,
	cfg *config.Config,
	mqttClient *mqtt.Client,
	nodes camera.NodeStore,
	sink camera.AttributeSink,
	recorder camera.CommandRecorder,
	log *logging.Logger,
) (*camera.Bridge, error) {
	factory := &vendor.Factory{
		Credentials: vendor.Credentials{
			Username: cfg.Cameras.User,
			Password: cfg.Cameras.Password,
		},
		Timeout: cfg.Cameras.Timeout(),
		Logger:  log.Component("vendor"),
	}

	bridge, err := camera.NewBridge(camera.BridgeOptions{
		BridgeID:       cfg.Site.ID,
		Version:        version,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Factory:        factory.New,
		Sink:           sink,
		Nodes:          nodes,
		Recorder:       recorder,
		Static:         staticEntries(cfg.Cameras.Static),
		FastInterval:   cfg.Cameras.FastPoll(),
		SlowInterval:   cfg.Cameras.SlowPoll(),
		RequestTimeout: cfg.Cameras.Timeout(),
		HealthInterval: cfg.Cameras.Health(),
		MaxConcurrent:  cfg.Cameras.MaxConcurrentPolls,
		Logger:         log.Component("camera"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating camera bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return nil, err
	}
	log.Info("camera bridge started",
		"static_cameras", len(cfg.Cameras.Static),
		"fast_poll", cfg.Cameras.FastPoll(),
		"slow_poll", cfg.Cameras.SlowPoll(),
	)
	return bridge, nil
}

func staticEntries(in []config.StaticCameraConfig) []camera.StaticEntry {
	out := make([]camera.StaticEntry, 0, len(in))
	for _, s := range in {
		out = append(out, camera.StaticEntry{
			Type: s.Type,
			Host: s.Host,
			Port: s.Port,
			Auth: s.Auth,
		})
	}
	return out
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the camera
// bridge's MQTTClient interface. The difference is the Subscribe handler
// signature:
//   - Infrastructure mqtt: func(topic, payload []byte) error
//   - Camera bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements camera.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements camera.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements camera.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
