package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/tc420/cmd"
	"github.com/smazurov/tc420/internal/api"
	"github.com/smazurov/tc420/internal/config"
	"github.com/smazurov/tc420/internal/devices"
	"github.com/smazurov/tc420/internal/events"
	"github.com/smazurov/tc420/internal/led"
	"github.com/smazurov/tc420/internal/logging"
	"github.com/smazurov/tc420/internal/metrics/collectors"
	"github.com/smazurov/tc420/internal/metrics/exporters"
	"github.com/smazurov/tc420/internal/program"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port               string `help:"Port to listen on" short:"p" default:":8420" toml:"server.port" env:"SERVER_PORT"`
	DeviceOpsPerMinute int    `help:"Sync and upload requests allowed per minute (0 = unlimited)" default:"30" toml:"server.device_ops_per_minute" env:"SERVER_DEVICE_OPS_PER_MINUTE"`
	CORSOrigins        string `help:"Comma-separated origins allowed by CORS (empty = any)" default:"" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Device settings
	DeviceVendorID     string `help:"USB vendor id (hex)" default:"0888" toml:"device.vendor_id" env:"DEVICE_VENDOR_ID"`
	DeviceProductID    string `help:"USB product id (hex)" default:"4000" toml:"device.product_id" env:"DEVICE_PRODUCT_ID"`
	DeviceTiming       string `help:"Settle-delay revision (a, b)" default:"a" toml:"device.timing" env:"DEVICE_TIMING"`
	DeviceStartDelayMs int    `help:"Override delay after the program-start report" default:"0" toml:"device.start_delay_ms" env:"DEVICE_START_DELAY_MS"`
	DeviceStepDelayMs  int    `help:"Override delay after each step report" default:"0" toml:"device.step_delay_ms" env:"DEVICE_STEP_DELAY_MS"`
	DevicePollMs       int    `help:"Presence poll interval when hotplug events are unavailable" default:"2000" toml:"device.poll_interval_ms" env:"DEVICE_POLL_INTERVAL_MS"`

	// Program settings
	ProgramFile  string `help:"Stored program file" default:"program.toml" toml:"program.file" env:"PROGRAM_FILE"`
	ProgramWatch bool   `help:"Upload the program file whenever it changes" default:"false" toml:"program.watch" env:"PROGRAM_WATCH"`
	ProgramSort  bool   `help:"Order watched program steps by time of day" default:"false" toml:"program.sort" env:"PROGRAM_SORT"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool `help:"Mirror controller status on a board LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesHotplug    bool `help:"Use kernel uevents for attach and detach" default:"true" toml:"features.hotplug_enabled" env:"FEATURES_HOTPLUG"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingHistory   int    `help:"Log records kept for /api/logs" default:"500" toml:"logging.history" env:"LOGGING_HISTORY"`
	LoggingFile      string `help:"Also write logs to this rotated file" default:"" toml:"logging.file.path" env:"LOGGING_FILE"`
	LoggingFileMaxMB int    `help:"Rotate the log file at this size" default:"10" toml:"logging.file.max_size_mb" env:"LOGGING_FILE_MAX_MB"`
	LoggingFileKeep  int    `help:"Rotated log files to keep" default:"3" toml:"logging.file.max_backups" env:"LOGGING_FILE_KEEP"`
	LoggingDevice    string `help:"HID transport logging level" default:"info" toml:"logging.device" env:"LOGGING_DEVICE"`
	LoggingSequencer string `help:"Sequencer logging level" default:"info" toml:"logging.sequencer" env:"LOGGING_SEQUENCER"`
	LoggingDevices   string `help:"Presence watcher logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingWatch     string `help:"Program watch logging level" default:"info" toml:"logging.watch" env:"LOGGING_WATCH"`
}

func (o *Options) deviceSettings() cmd.DeviceSettings {
	return cmd.DeviceSettings{
		VendorID:     o.DeviceVendorID,
		ProductID:    o.DeviceProductID,
		Timing:       o.DeviceTiming,
		StartDelayMs: o.DeviceStartDelayMs,
		StepDelayMs:  o.DeviceStepDelayMs,
	}
}

// splitList parses a comma-separated option into trimmed, non-empty items.
func splitList(s string) []string {
	var items []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func main() {
	var cli humacli.CLI
	var parsed *Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		parsed = opts

		// [logging.modules] covers modules without a dedicated option
		modules := config.LoadLoggingConfig(opts.Config).Modules
		modules["device"] = opts.LoggingDevice
		modules["sequencer"] = opts.LoggingSequencer
		modules["devices"] = opts.LoggingDevices
		modules["api"] = opts.LoggingAPI
		modules["watch"] = opts.LoggingWatch

		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			History: opts.LoggingHistory,
			File: logging.FileConfig{
				Path:       opts.LoggingFile,
				MaxSizeMB:  opts.LoggingFileMaxMB,
				MaxBackups: opts.LoggingFileKeep,
			},
			Modules: modules,
		})

		var svc *service
		hooks.OnStart(func() {
			logger := logging.GetLogger("main")

			var err error
			svc, err = newService(opts)
			if err != nil {
				logger.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			svc.start()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := svc.server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if svc != nil {
				svc.stop()
			}
		})
	})

	newDevice := func() (*cmd.Device, error) {
		return cmd.OpenDevice(parsed.deviceSettings(), nil)
	}
	cli.Root().AddCommand(
		cmd.CreateSyncCmd(newDevice),
		cmd.CreateUploadCmd(newDevice),
		cmd.CreateStatusCmd(newDevice),
		cmd.CreateWatchCmd(newDevice),
		cmd.CreateVersionCmd(),
	)

	cli.Run()
}

// service is the long-running HTTP daemon and everything it drives.
type service struct {
	logger     *slog.Logger
	opts       *Options
	ctx        context.Context
	cancel     context.CancelFunc
	eventBus   *events.Bus
	device     *cmd.Device
	store      *program.Store
	presence   *devices.Watcher
	collector  *collectors.EventCollector
	ledManager *led.Manager
	server     *api.Server
	watch      *config.Watcher[program.Program]
}

func newService(opts *Options) (*service, error) {
	logger := logging.GetLogger("main")
	eventBus := events.New()

	device, err := cmd.OpenDevice(opts.deviceSettings(), eventBus)
	if err != nil {
		return nil, err
	}

	store := program.NewStore(opts.ProgramFile)
	if loadErr := store.Load(); loadErr != nil {
		logger.Warn("Failed to load program file, using default program", "path", opts.ProgramFile, "error", loadErr)
	}

	presence := devices.NewWatcher(device.Transport,
		device.Transport.VendorID(), device.Transport.ProductID(), eventBus,
		devices.WithHotplug(opts.FeaturesHotplug),
		devices.WithPollInterval(time.Duration(opts.DevicePollMs)*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &service{
		logger:   logger,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		eventBus: eventBus,
		device:   device,
		store:    store,
		presence: presence,
	}

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		Device:       device.Sequencer,
		Store:        store,
		VendorID:     device.Transport.VendorID(),
		ProductID:    device.Transport.ProductID(),
		TimingName:   device.Sequencer.Timing().Name,

		DeviceOpsPerMinute: opts.DeviceOpsPerMinute,
		CORSOrigins:        splitList(opts.CORSOrigins),
	}

	if opts.MetricsEnabled {
		s.collector = collectors.NewEventCollector(eventBus)
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}

	if opts.FeaturesLEDControl {
		logger.Info("LED control enabled, initializing")
		ledController := led.New(logging.GetLogger("led"))
		s.ledManager = led.NewManager(ledController, eventBus, device.Sequencer.IsDeviceConnected(), logging.GetLogger("led"))
		apiOpts.LEDController = ledController
		apiOpts.LEDManager = s.ledManager
	}

	s.server = api.NewServer(apiOpts)
	return s, nil
}

func (s *service) start() {
	// Subscribers first so the initial presence event is seen
	if s.collector != nil {
		if err := s.collector.Start(s.ctx); err != nil {
			s.logger.Warn("Failed to start metrics collector", "error", err)
		}
	}
	if s.ledManager != nil {
		s.ledManager.Start()
	}

	if err := s.presence.Start(s.ctx); err != nil {
		s.logger.Warn("Failed to start device watcher", "error", err)
	}

	if s.opts.ProgramWatch {
		w, err := cmd.WatchProgram(s.ctx, s.store.Path(), s.device.Sequencer, s.opts.ProgramSort, config.DefaultDebounce)
		if err != nil {
			s.logger.Warn("Failed to watch program file, automatic upload disabled", "error", err)
		} else {
			// Keep GET /api/program in step with external edits
			w.OnReload(func(program.Program) {
				if loadErr := s.store.Load(); loadErr != nil {
					s.logger.Warn("Failed to reload program store", "error", loadErr)
				}
			})
			s.watch = w
		}
	}
}

func (s *service) stop() {
	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Stop(shutdownCtx); err != nil {
		s.logger.Error("Error stopping HTTP server", "error", err)
	}

	s.cancel()
	if s.watch != nil {
		if err := s.watch.Stop(); err != nil {
			s.logger.Warn("Error stopping program watcher", "error", err)
		}
	}
	s.presence.Stop()
	if s.ledManager != nil {
		s.ledManager.Stop()
	}
	if s.collector != nil {
		if err := s.collector.Stop(); err != nil {
			s.logger.Warn("Error stopping metrics collector", "error", err)
		}
	}
}
