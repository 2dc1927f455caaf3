package app

import (
	"context"
	"fmt"
	"os"

	tcell "github.com/gdamore/tcell/v2"

	"minuteman/internal/clone"
	"minuteman/internal/config"
	"minuteman/internal/disk"
	"minuteman/internal/logging"
	"minuteman/internal/reporting"
	"minuteman/internal/security"
	"minuteman/internal/ui"
	"minuteman/internal/wipe"
	"minuteman/internal/wizard"
)

// Options are the command-line inputs that shape the App.
type Options struct {
	ConfigPath string
	Profile    string
	Verbose    bool
	Armed      bool
}

// App wires configuration, logging, inventory and the sanitization engine.
type App struct {
	config      *config.Config
	logger      *logging.Logger
	mode        security.WriteMode
	inventory   *disk.Builder
	engine      *wipe.Engine
	methods     []wipe.Method
	checkpoints *reporting.CheckpointStore
}

// New loads the configuration and builds the App on the platform disk
// source.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Profile != "" {
		if err := config.ApplyProfile(cfg, opts.Profile); err != nil {
			return nil, err
		}
	}

	logger, err := logging.NewLogger(cfg, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := NewWithDependencies(cfg, logger, disk.NewPlatformSource(), opts.Armed)
	if err != nil {
		logger.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDependencies builds the App from explicit parts.
func NewWithDependencies(cfg *config.Config, logger *logging.Logger, source disk.Source, armed bool) (*App, error) {
	mode, err := security.SecurityChecks(cfg, armed)
	if err != nil {
		return nil, err
	}

	methods := wipe.Catalog()
	custom, err := wipe.CustomMethods(cfg.Wipe.CustomMethods)
	if err != nil {
		return nil, err
	}
	methods = append(methods, custom...)

	var opener wipe.Opener = wipe.SimulatedOpener{Size: cfg.SimulatedSize(), MaxSpeedMBps: cfg.Wipe.MaxSpeedMBps}
	if mode == security.Armed {
		opener = wipe.DeviceOpener{MaxSpeedMBps: cfg.Wipe.MaxSpeedMBps}
	}

	engine := wipe.NewEngine(opener, wipe.Options{
		ChunkSize:       int(cfg.Wipe.ChunkSize),
		CheckpointEvery: cfg.Wipe.CheckpointEvery,
	}, logger)

	a := &App{
		config:  cfg,
		logger:  logger,
		mode:    mode,
		engine:  engine,
		methods: methods,
	}

	if cfg.Reporting.Enabled {
		engine.OnFinish(reporting.NewReporter(cfg, logger).Record)
	}
	if cfg.Reporting.CheckpointFile != "" {
		a.checkpoints = reporting.NewCheckpointStore(cfg.Reporting.CheckpointFile)
		a.warnInterruptedRun()
		engine.SetCheckpointer(a.checkpoints)
	}

	a.inventory = disk.NewBuilder(source, logger)
	a.inventory.Exclude(cfg.Security.ExcludedDevices...)
	a.inventory.SkipBusy(engine.Busy)

	logger.Log("INFO", "Minuteman started", "mode", mode, "methods", len(methods),
		"chunk_size", cfg.Wipe.ChunkSize, "max_speed_mbps", cfg.Wipe.MaxSpeedMBps)
	if mode == security.Armed {
		logger.Log("WARN", "Device writes are ARMED; sanitization overwrites real devices")
	}
	return a, nil
}

func (a *App) warnInterruptedRun() {
	records, err := a.checkpoints.Load()
	if err != nil {
		a.logger.Log("WARN", "Unreadable checkpoint record", "path", a.checkpoints.Path(), "error", err)
		return
	}
	for _, cp := range records {
		a.logger.Log("WARN", "Previous run interrupted; device left partially overwritten",
			"device", cp.DevicePath, "serial", cp.Serial, "method", cp.Method,
			"round", cp.PassIndex+1, "offset", cp.Offset, "updated_at", cp.UpdatedAt)
	}
}

// Close releases the log file.
func (a *App) Close() error {
	a.logger.Log("INFO", "Minuteman stopped")
	return a.logger.Close()
}

func (a *App) Config() *config.Config { return a.config }

func (a *App) Logger() *logging.Logger { return a.logger }

func (a *App) Mode() security.WriteMode { return a.mode }

func (a *App) Methods() []wipe.Method { return a.methods }

// Build returns the current inventory without excluded disks. It satisfies
// wizard.Inventory.
func (a *App) Build() []disk.Disk {
	all := a.inventory.Build()
	disks := all[:0]
	for _, d := range all {
		if security.ShouldSkipDisk(a.config, d) {
			continue
		}
		disks = append(disks, d)
	}
	a.logger.Log("DEBUG", "Inventory built", "disks", len(disks))
	return disks
}

// FindDisk looks a device path up in a fresh inventory.
func (a *App) FindDisk(devicePath string) (disk.Disk, error) {
	for _, d := range a.Build() {
		if d.DevicePath == devicePath {
			return d, nil
		}
	}
	if a.engine.Busy(devicePath) {
		return disk.Disk{}, fmt.Errorf("%s: %w", devicePath, wipe.ErrDeviceBusy)
	}
	return disk.Disk{}, fmt.Errorf("%s is not an eligible removable drive", devicePath)
}

// StartWipe starts a background sanitization of devicePath.
func (a *App) StartWipe(ctx context.Context, devicePath, method string) (*wipe.Job, error) {
	d, err := a.FindDisk(devicePath)
	if err != nil {
		return nil, err
	}
	m, err := wipe.FindMethod(a.methods, method)
	if err != nil {
		return nil, err
	}
	return a.Start(ctx, d, m)
}

// Start refuses targets that must never be sanitized and otherwise starts
// a background job. With Simulated it satisfies wizard.Runner, so the CLI
// and the wizard share the same guard.
func (a *App) Start(ctx context.Context, d disk.Disk, m wipe.Method) (*wipe.Job, error) {
	if err := security.CheckTarget(a.config, d); err != nil {
		a.logger.Log("WARN", "Sanitization refused", "device", d.DevicePath, "error", err)
		return nil, fmt.Errorf("%w: %w", wipe.ErrTargetRefused, err)
	}
	return a.engine.Start(ctx, d, m)
}

// Simulated reports whether jobs write to a stand-in device.
func (a *App) Simulated() bool { return a.engine.Simulated() }

// NewWizard returns a wizard over this App's inventory. Jobs are started
// through Start.
func (a *App) NewWizard(ctx context.Context) *wizard.Wizard {
	return wizard.New(ctx, a, a, a.methods, a.logger)
}

// RunWizard takes over the terminal until the operator quits.
func (a *App) RunWizard(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	a.logger.SetQuiet(true)
	defer a.logger.SetQuiet(false)
	defer screen.Fini()

	return ui.RunWizard(ctx, screen, a.NewWizard(ctx), a.config.TickInterval(), a.logger)
}

// Clone copies a device into an image file. An empty compression uses the
// configured default.
func (a *App) Clone(ctx context.Context, devicePath string, limit int64, imagePath, compression string, progress func(copied, total int64)) (clone.Result, error) {
	if compression == "" {
		compression = a.config.Clone.Compression
	}
	if a.engine.Busy(devicePath) {
		return clone.Result{}, fmt.Errorf("%s: %w", devicePath, wipe.ErrDeviceBusy)
	}
	if _, err := os.Stat(devicePath); err != nil {
		return clone.Result{}, fmt.Errorf("device not accessible: %w", err)
	}
	return clone.CloneDeviceToImage(ctx, devicePath, limit, imagePath, clone.Options{
		Compression: compression,
		ChunkSize:   int(a.config.Wipe.ChunkSize),
		Progress:    progress,
		Logger:      a.logger,
	})
}
