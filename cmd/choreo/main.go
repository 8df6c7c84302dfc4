package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/swarmstage/choreo/internal/api"
	"github.com/swarmstage/choreo/internal/config"
	"github.com/swarmstage/choreo/internal/dispatcher"
	"github.com/swarmstage/choreo/internal/influx"
	"github.com/swarmstage/choreo/internal/logging"
	intOtel "github.com/swarmstage/choreo/internal/otel"
	"github.com/swarmstage/choreo/internal/storage"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "choreo"
)

// app holds the shared collaborators of every command.
type app struct {
	logManager   *logging.SlogManager
	logger       *slog.Logger
	zlog         zerolog.Logger
	otelProvider *intOtel.Provider
	client       *api.Client
	backend      storage.Backend
	sessionStart time.Time
	logFile      *os.File
	showName     string
}

func newApp(configDir string) (*app, error) {
	a := &app{
		sessionStart: time.Now(),
		logManager:   logging.NewSlogManager(),
	}
	a.logger = a.logManager.Logger()

	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, AppName, a.sessionStart)
	if _, err := os.Stat(logFilePath); err == nil {
		os.Rename(logFilePath, logFilePath+".old")
	}
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
	} else {
		a.logFile = logFile
	}

	// OTel provider if enabled (after log file is created)
	if viper.GetBool("otel.enabled") && a.logFile != nil {
		a.otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  AppName,
			BatchTimeout: 5 * time.Second,
			LogWriter:    a.logFile,
			Endpoint:     viper.GetString("otel.endpoint"),
			Insecure:     true,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otelProvider != nil {
		otelLogProvider = a.otelProvider.LoggerProvider()
	}
	a.logManager.Setup(a.logFile, viper.GetString("logLevel"), otelLogProvider)
	a.logManager.SetContextProvider(func() []slog.Attr {
		if a.showName == "" {
			return nil
		}
		return []slog.Attr{slog.String("show", a.showName)}
	})
	a.logger = a.logManager.Logger()
	a.logger.Info("Session started", "version", CurrentVersion, "buildDate", BuildDate)

	a.zlog = zerolog.New(os.Stderr).With().Timestamp().Logger().
		Level(zerologLevel(viper.GetString("logLevel")))

	a.client = api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := a.client.Healthcheck(context.Background()); err != nil {
		a.logger.Info("Planning service is offline", "error", err)
	} else {
		a.logger.Info("Planning service is online")
	}

	a.backend, err = storage.NewBackend(config.Storage(), a.zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := a.backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.logger.Info("Storage backend initialized", "type", viper.GetString("storage.type"))

	return a, nil
}

// newReporter creates the InfluxDB reporter for the loaded show, nil when
// reporting is disabled.
func (a *app) newReporter() *influx.Reporter {
	if !viper.GetBool("influx.enabled") {
		return nil
	}

	backupPath := filepath.Join(
		viper.GetString("logsDir"),
		fmt.Sprintf("%s_metrics_%s.lp.gz", AppName, a.sessionStart.Format("20060102_150405")),
	)
	reporter := influx.NewReporter(a.zlog, a.showName, backupPath)
	if err := reporter.Connect(); err != nil {
		a.logger.Warn("InfluxDB reporting disabled", "error", err)
		return nil
	}
	return reporter
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.backend.Close(); err != nil {
		a.logger.Error("Failed to close storage backend", "error", err)
	}
	if err := a.logManager.Flush(ctx); err != nil {
		a.logger.Error("Failed to flush logs", "error", err)
	}
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

func zerologLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [-config dir] <command> [flags]

Commands:
  validate     check a show file against the timeline rules
  recalculate  recompute mappings and influence curves for a scope
  takeoff      plan a layered takeoff into the first formation
  land         plan a staggered landing after the last formation
  suggest      suggest a transition duration for a storyboard entry
  rth          plan a collision-free return to home from a frame
  safety       run a proximity check at a frame
  limits       query the planning service capabilities
  export       recalculate everything and export the show plan

Run '%s <command> -h' for command flags.
`, AppName, AppName)
}

func main() {
	configDir := flag.String("config", ".", "directory containing "+configFileName)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	a, err := newApp(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.shutdown()

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	registerCommands(d, a)

	if !d.HasHandler(args[0]) {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		os.Exit(2)
	}

	result, err := d.Dispatch(context.Background(), dispatcher.Command{
		Name:      args[0],
		Args:      args[1:],
		Timestamp: time.Now(),
	})
	if err != nil {
		a.logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if s, ok := result.(string); ok && s != "" {
		fmt.Println(s)
	}
}
