package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	"interview-engine/internal/config"
	"interview-engine/internal/interview"
	"interview-engine/internal/interviewer"
	"interview-engine/internal/metrics"
	"interview-engine/internal/operations"
	"interview-engine/internal/storage"
	"interview-engine/internal/telegram"
	"interview-engine/internal/timer"
	"interview-engine/internal/tools"
)

// app собранные зависимости процесса
type app struct {
	settings *config.Settings
	cfg      *config.AppConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    storage.Store
	engine   *interview.Engine
	archive  *storage.Archive
	bot      *telegram.Bot
}

func (a *app) Close() error {
	return a.store.Close()
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка загрузки %s: %w", path, err)
	}
	return nil
}

func buildApp(ctx context.Context, opts *globalOptions, logOutput io.Writer, noColor bool) (*app, error) {
	if err := loadEnv(opts.envPath); err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(opts.settingsPath)
	if err != nil {
		return nil, err
	}
	rules, err := config.LoadRules(opts.rulesPath)
	if err != nil {
		return nil, err
	}
	cfg := config.LoadAppConfig()

	logger := newLogger(logOutput, settings.LogLevel, noColor)
	m := metrics.NewMetrics()

	generator, provider, err := interviewer.NewGenerator(settings, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	registry, err := tools.New(tools.NewSearchTool(settings.InternetSearch, cfg.Search).Tool())
	if err != nil {
		return nil, err
	}
	registry.SetObserver(m)

	var bot *telegram.Bot
	var sender operations.MessageSender
	if cfg.Telegram.Token != "" {
		bot = telegram.New(cfg.Telegram.Token, telegram.WithLogger(logger))
		sender = bot
	}
	archive := storage.NewArchive(settings.ResultsDir)
	dispatcher := operations.NewDefaultDispatcher(logger, cfg.SMTP, archive, settings.ReportsDir, sender)
	dispatcher.SetObserver(m)

	store, err := storage.Open(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия хранилища %s: %w", settings.StorageMode, err)
	}

	engine, err := interview.New(interview.Dependencies{
		Rules:      rules,
		Store:      store,
		Generator:  generator,
		Timers:     timer.New(nil, settings.Grace()),
		Tools:      registry,
		Operations: dispatcher,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug("движок собран",
		"formats", rules.Len(),
		"storage", settings.StorageMode,
		"provider", provider,
		"tools", len(registry.Specs()),
		"operations", dispatcher.Types())

	return &app{
		settings: settings,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		store:    store,
		engine:   engine,
		archive:  archive,
		bot:      bot,
	}, nil
}
