// Package internal provides the App struct that wires all components of
// the agentboard system together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/agentboard/internal/cli"
	"github.com/valter-silva-au/agentboard/internal/core"
	"github.com/valter-silva-au/agentboard/internal/lock"
	"github.com/valter-silva-au/agentboard/internal/observability"
	"github.com/valter-silva-au/agentboard/internal/schema"
	"github.com/valter-silva-au/agentboard/internal/store"
)

// App holds all service dependencies for the agentboard system.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *core.Config

	// Storage layer
	Locks *lock.Manager
	Store *store.Store

	// Core services
	Coord core.Coordinator

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components of the agentboard system.
// basePath is the root directory where the data lives (typically the
// directory containing .boardconfig).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	app.Config = cfg

	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(basePath, dataDir)
	}

	// --- Storage layer ---
	holderID := fmt.Sprintf("agentboard-%d", os.Getpid())
	app.Locks = lock.NewManager(dataDir, holderID,
		lock.WithTTL(cfg.LockTTL),
		lock.WithRetryDelay(cfg.LockRetryDelay),
	)
	app.Store = store.New(dataDir, app.Locks, cfg.LockTimeout)

	// --- Observability ---
	notifiers := []observability.TransitionSink{
		observability.NewConsoleNotifier(log.Default()),
	}
	if cfg.EventLogPath != "" {
		logPath := cfg.EventLogPath
		if !filepath.IsAbs(logPath) {
			logPath = filepath.Join(dataDir, logPath)
		}
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
			app.EventLog, err = observability.NewJSONLEventLog(logPath)
			if err != nil {
				// Non-fatal: mutations must not depend on the event log.
				app.EventLog = nil
			}
		}
	}
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		notifiers = append(notifiers, observability.NewLogNotifier(app.EventLog, log.Default()))
	}

	// --- Core services ---
	app.Coord = core.NewCoordinator(app.Store, schema.NewValidator(),
		core.WithNotifier(observability.NewMultiNotifier(notifiers...)))

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Coord = app.Coord
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// Close releases resources held by the App, such as the event log file
// handle. It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the agentboard data
// directory. It checks the AGENTBOARD_HOME env var, then walks up from
// the current directory looking for a .boardconfig file.
func ResolveBasePath() string {
	if home := os.Getenv("AGENTBOARD_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".boardconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
