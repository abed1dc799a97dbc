package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/SentientScenes/internal/api"
	"github.com/AaronLay10/SentientScenes/internal/backend/memory"
	"github.com/AaronLay10/SentientScenes/internal/config"
	"github.com/AaronLay10/SentientScenes/internal/events"
	"github.com/AaronLay10/SentientScenes/internal/logging"
	"github.com/AaronLay10/SentientScenes/internal/mqtt"
	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/script"
	"github.com/AaronLay10/SentientScenes/internal/storage/postgres"
	"github.com/AaronLay10/SentientScenes/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Settings
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	// 2. Logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// 3. Project
	project, err := config.LoadProject(cfg.Engine.Project)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	catalog, err := project.BuildCatalog()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	log.Info("project loaded",
		zap.String("path", cfg.Engine.Project),
		zap.Int("scenes", len(catalog.Scenes())),
		zap.Int("collections", len(catalog.Collections())))

	creds, err := config.LoadCredentials()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Journal and optional store
	journal := events.NewJournal(events.DefaultBufferSize)
	var store *postgres.Client
	if cfg.Database.Enabled {
		password, err := cfg.DatabasePassword()
		if err != nil {
			return fmt.Errorf("resolve database password: %w", err)
		}
		store, err = postgres.Open(ctx, postgres.DSN(cfg.Database.DSN, password), cfg.Engine.ID)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		journal.SetStore(store)
		log.Info("event store connected")
	}

	// 5. Engine
	priority, _ := orchestrator.ParseLoadPriority(cfg.Engine.LoadPriority)
	backend := memory.New(memory.Options{
		Steps:     cfg.Backend.Steps,
		StepDelay: cfg.Backend.StepDelay,
		Logger:    log.Named("backend"),
	})
	engine, err := orchestrator.New(orchestrator.Options{
		Backend:               backend,
		Metadata:              catalog,
		Scripts:               script.NewCompiler(log.Named("script")),
		Logger:                log.Named("engine"),
		Journal:               journal,
		DefaultScene:          cfg.Engine.DefaultScene,
		DisableDuplicateCheck: !cfg.Engine.CheckDuplicates,
		DefaultPriority:       priority,
		UnloadUnused:          cfg.Engine.UnloadUnused,
		Context:               ctx,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	hostname, _ := os.Hostname()
	_, _ = journal.Emit("info", "system.startup", "scened starting", map[string]interface{}{
		"engine_id": cfg.Engine.ID,
		"hostname":  hostname,
		"pid":       os.Getpid(),
		"version":   version.String(),
	})

	if err := restore(engine, store, cfg.Engine.RestoreLimit, log); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	// 6. HTTP API
	server := api.New(api.Options{
		Engine:      engine,
		Catalog:     catalog,
		Journal:     journal,
		Credentials: creds,
		TLS:         api.TLSConfig{CertFile: cfg.API.TLSCert, KeyFile: cfg.API.TLSKey},
		EngineID:    cfg.Engine.ID,
		Logger:      log.Named("api"),
	})
	if store != nil {
		server.Readiness().Set("postgres", false, func() bool {
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pctx) == nil
		})
	}

	// 7. MQTT
	if cfg.MQTT.Enabled {
		client := mqtt.NewClient(cfg.MQTT, log.Named("mqtt"))
		server.Readiness().Set("mqtt", true, client.IsConnected)
		bridge := mqtt.NewBridge(client, engine, journal, cfg.MQTT.TopicPrefix, log.Named("mqtt"))
		status := mqtt.NewStatusPublisher(client, engine, bridge.Topic(mqtt.TopicStatus), log.Named("mqtt"))

		if err := client.Connect(); err != nil {
			log.Warn("mqtt connect failed, retrying in background", zap.String("broker", cfg.MQTT.URL), zap.Error(err))
		}
		if err := bridge.Start(); err != nil {
			log.Warn("mqtt bridge start failed", zap.Error(err))
		}
		status.Start(time.Second)

		g.Go(func() error { return bridge.Run(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			status.Stop()
			client.Disconnect()
			return nil
		})
	}

	if cfg.API.Enabled {
		g.Go(func() error { return server.ListenAndServe(gctx, cfg.API.Port) })
		alerter := server.NewAlerter(cfg.Alerts.WebhookURL, cfg.Alerts.Delay)
		g.Go(func() error { return alerter.Run(gctx, cfg.Alerts.CheckInterval) })
	}

	log.Info("scened running", zap.String("engine_id", cfg.Engine.ID), zap.String("version", version.String()))

	err = g.Wait()

	// 8. Shutdown
	engine.Reset()
	_, _ = journal.Emit("info", "system.shutdown", "scened stopping", map[string]interface{}{
		"engine_id": cfg.Engine.ID,
	})
	journal.CloseAllSubscribers()
	log.Info("scened stopped")
	return err
}

// loadSettings reads the settings file. A missing file at the default path
// means defaults; a missing explicit path is an error.
func loadSettings() (*config.Settings, error) {
	path := config.SettingsPath()
	cfg, err := config.LoadSettings(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && os.Getenv("SCENED_CONFIG") == "" {
		cfg = config.Defaults()
		return cfg, cfg.Validate()
	}
	return nil, fmt.Errorf("load settings: %w", err)
}

// restore reopens the collection and standalone scenes recorded by the
// previous run.
func restore(engine *orchestrator.Engine, store *postgres.Client, limit int, log *zap.Logger) error {
	if store == nil {
		return nil
	}
	state, n, err := orchestrator.RestoreFromEvents(store, limit)
	if err != nil {
		log.Warn("restore skipped", zap.Error(err))
		return nil
	}
	if state.IsEmpty() {
		log.Info("nothing to restore", zap.Int("events", n))
		return nil
	}
	ops, err := engine.ApplyRestoredState(state)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	log.Info("restoring previous state",
		zap.Int("events", n),
		zap.String("collection_id", state.CollectionID),
		zap.Strings("standalone", state.Standalone),
		zap.Int("operations", len(ops)))
	return nil
}
