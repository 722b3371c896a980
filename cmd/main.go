package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "greendrop/docs"
	"greendrop/internal/backend"
	"greendrop/internal/ble"
	"greendrop/internal/client"
	"greendrop/internal/config"
	"greendrop/internal/events"
	"greendrop/internal/handlers"
	"greendrop/internal/logger"
	"greendrop/internal/repository"
	"greendrop/internal/repository/db"
	"greendrop/internal/server"
	"greendrop/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	apiAddr    = "http://localhost:8080"
	apiToken   string
)

var (
	gDevice     = "Device:"
	gIrrigation = "Irrigation:"
	gSession    = "Session:"
)

// @title        greendrop gateway API
// @version      1.0
// @description  Local control surface for a BLE irrigation valve.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in           header
// @name         Authorization
func main() {
	if err := NewCommand().Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: greendrop daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'greendrop serve' or pass --addr")
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "\nError: not logged in")
		fmt.Fprintln(os.Stderr, "Run 'greendrop login --token <jwt>' first")
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "greendrop",
		Short:        "greendrop drives a BLE irrigation valve and mirrors its telemetry",
		SilenceUsage: true,
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&apiAddr, "addr", apiAddr, "local API base URL")
	globalFlags.StringVar(&apiToken, "token", "", "backend bearer token sent with the request")

	cmd.AddGroup(
		&cobra.Group{ID: gDevice, Title: gDevice},
		&cobra.Group{ID: gIrrigation, Title: gIrrigation},
		&cobra.Group{ID: gSession, Title: gSession},
	)

	cmd.AddCommand(
		NewServeCommand(),
		NewScanCommand(),
		NewConnectCommand(),
		NewDisconnectCommand(),
		NewStatusCommand(),
		NewHistoryCommand(),
		NewIrrigateCommand(),
		NewStopCommand(),
		NewLoginCommand(),
		NewLogoutCommand(),
	)
	return cmd
}

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default configs/config.yml)")
	return cmd
}

func serve() error {
	cfg, err := config.Load(viper.New(), configPath)
	if err != nil {
		return err
	}

	// init logger
	log := logger.Get(cfg.Log.Level, cfg.Log.Encoding)

	// open DB
	sqlDB, err := openDB(cfg, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(log.Named("events"))
	adapter := newAdapter(ctx, cfg, log)
	creds := backend.NewCredentials()
	api := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, creds, log)

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, service.Deps{
		Adapter: adapter,
		Backend: api,
		Tokens:  creds,
		Hub:     hub,
		Config:  cfg,
		Log:     log,
	})
	if err := services.Irrigation.Restore(ctx); err != nil {
		log.Warnw("timer_restore_failed", "err", err)
	}

	if cfg.MQTT.Enabled {
		startMirror(ctx, cfg, hub, log)
	}

	apiHandler := handlers.NewHandler(services, hub, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
	return nil
}

// newAdapter picks the radio driver. The simulated valve runs until ctx ends.
func newAdapter(ctx context.Context, cfg *config.Config, log *logger.Logger) ble.Adapter {
	if cfg.BLE.Driver == config.DriverSim {
		valve := ble.NewValve(log)
		go valve.Run(ctx, cfg.Sim.Interval)
		log.Infow("using simulated valve", "name", valve.Name)
		return ble.NewSimAdapter(valve)
	}
	return ble.NewBluezAdapter(log.Named("bluez"))
}

// startMirror republishes hub events to MQTT. A broker that cannot be
// reached only disables the mirror.
func startMirror(ctx context.Context, cfg *config.Config, hub *events.Hub, log *logger.Logger) {
	mc, err := events.DialMQTT(events.MQTTOptions{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, log)
	if err != nil {
		log.Warnw("mqtt_mirror_disabled", "err", err)
		return
	}
	go func() {
		events.NewMirror(mc, cfg.MQTT.TopicPrefix, log).Run(ctx, hub)
		mc.Disconnect(250)
	}()
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	dbPath := cfg.DB.Path
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "greendrop.db")
		dbPath = "greendrop.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// stop ticking but keep the persisted run, then release the valve
	services.Irrigation.Close()
	services.Device.Disconnect(ctx)

	// stop background goroutines
	cancel()
}
