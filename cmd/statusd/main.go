package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/statusfx/internal/config"
	"github.com/udisondev/statusfx/internal/data"
	"github.com/udisondev/statusfx/internal/db"
	"github.com/udisondev/statusfx/internal/game/status"
	"github.com/udisondev/statusfx/internal/replication"
	"github.com/udisondev/statusfx/internal/script"
	"github.com/udisondev/statusfx/internal/world"
)

const ConfigPath = "config/statusd.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfgPath := ConfigPath
	if p := os.Getenv("STATUSFX_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("config loaded", "path", cfgPath, "source", cfg.Content.Source)

	attrs := status.NewAttributeRegistry()
	catalog, err := loadContent(ctx, cfg, attrs)
	if err != nil {
		return err
	}
	slog.Info("effect content ready", "attributes", attrs.Len(), "definitions", catalog.Len())

	rt := status.NewRuntime()
	if cfg.Content.ScriptsDir != "" {
		engine := script.NewEngine(cfg.Content.ScriptsDir, nil)
		if _, err := engine.Preload(); err != nil {
			return fmt.Errorf("compiling lua scripts: %w", err)
		}
		engine.Register(rt)
	}
	slog.Info("module runtime ready", "kinds", rt.Kinds())

	w := world.New(world.Config{
		Attributes: attrs,
		Modules:    rt,
		Catalog:    catalog,
		Strict:     cfg.Simulation.Strict,
	})

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis %s: %w", cfg.Redis.Addr, err)
		}

		publisher := replication.NewPublisher(client, cfg.Redis.Channel, cfg.Redis.QueueSize)
		w.OnSpawn(func(e *world.Entity) { publisher.Attach(e.Manager) })
		g.Go(func() error {
			if err := publisher.Run(gctx); err != nil {
				return fmt.Errorf("replication publisher: %w", err)
			}
			return nil
		})
	}

	entities, err := world.SpawnAll(w, catalog, cfg.Spawn)
	if err != nil {
		w.Close()
		return fmt.Errorf("spawning entities: %w", err)
	}
	slog.Info("entities spawned", "count", len(entities))

	loop := world.NewTickLoop(w, cfg.Simulation.TickInterval, cfg.Simulation.Workers)
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			return fmt.Errorf("tick loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		// Closing managers cancels every instance; module goroutines then
		// observe their cancelled contexts and return.
		w.Close()
		rt.Wait()
		slog.Info("world closed", "ticks", loop.Ticks())
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// loadContent builds the definition catalog from YAML files or PostgreSQL.
func loadContent(ctx context.Context, cfg config.Server, attrs *status.AttributeRegistry) (*status.Catalog, error) {
	if cfg.Content.Source == config.SourceYAML {
		catalog, err := data.Load(cfg.Content.DefinitionsDir, attrs)
		if err != nil {
			return nil, fmt.Errorf("loading definitions: %w", err)
		}
		return catalog, nil
	}

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	file, err := database.Definitions().LoadFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading definitions from database: %w", err)
	}
	catalog, warnings, err := data.CompileFile(attrs, file)
	if err != nil {
		return nil, fmt.Errorf("compiling definitions: %w", err)
	}
	data.LogWarnings(warnings)
	return catalog, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
