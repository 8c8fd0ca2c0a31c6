package main

import (
	"fmt"
	"strings"
	"sync"

	"mediagrab/config"
	"mediagrab/downloader"
	"mediagrab/history"
	"mediagrab/logging"
	"mediagrab/ytdlp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// portFactory builds the media engine for a configuration
type portFactory func(cfg *config.Config, logger *zap.Logger) downloader.MediaResolutionPort

func newEnginePort(cfg *config.Config, logger *zap.Logger) downloader.MediaResolutionPort {
	return ytdlp.NewEngine(ytdlp.Options{
		Binary:       cfg.YtdlpPath,
		FlatPlaylist: cfg.FlatPlaylist,
		ExtraArgs:    cfg.YtdlpArgs,
	}, logger)
}

type commandContext struct {
	configFlag *string
	newPort    portFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, newPort portFactory) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		newPort:    newPort,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path != "" {
			config.LoadDotEnv()
			c.config, c.configErr = config.Load(path)
			return
		}
		c.config, c.configErr = config.LoadConfig()
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(cfg.LogLevel, cfg.LogFormat)
	})
	return c.logger, c.loggerErr
}

// app wires the jobs, the event hub and its consumers for one command run
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	hub          *downloader.Hub
	resolver     *downloader.MetadataResolver
	orchestrator *downloader.DownloadOrchestrator

	mirror   *logging.Mirror
	store    *history.Store
	recorder *history.Recorder
}

// openApp builds the application. With quiet set, job logging below warning
// is suppressed unless debug logging is configured, leaving the terminal to
// the progress bar.
func (c *commandContext) openApp(quiet bool) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	jobsLogger := logger
	if quiet && !logger.Core().Enabled(zapcore.DebugLevel) {
		jobsLogger = logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}

	port := c.newPort(cfg, logger)
	hub := downloader.NewHub()
	a := &app{
		cfg:          cfg,
		logger:       logger,
		hub:          hub,
		resolver:     downloader.NewMetadataResolver(port, hub, jobsLogger),
		orchestrator: downloader.NewDownloadOrchestrator(port, hub, jobsLogger),
		mirror:       logging.NewMirror(hub, jobsLogger),
	}

	if cfg.HistoryEnabled() {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			// history is best effort; downloads still run without it
			logger.Warn("job history disabled", zap.String("path", cfg.HistoryDB), zap.Error(err))
		} else {
			a.store = store
			a.recorder = history.NewRecorder(store, hub, logger)
		}
	}
	return a, nil
}

// Close stops the hub and waits for its consumers to drain
func (a *app) Close() error {
	a.hub.Close()
	a.mirror.Wait()
	if a.recorder != nil {
		a.recorder.Wait()
	}
	var err error
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			err = fmt.Errorf("close history: %w", cerr)
		}
	}
	_ = a.logger.Sync()
	return err
}
