// Command importdefs validates YAML effect content and writes it to PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/udisondev/statusfx/internal/config"
	"github.com/udisondev/statusfx/internal/data"
	"github.com/udisondev/statusfx/internal/db"
	"github.com/udisondev/statusfx/internal/game/status"
)

func main() {
	cfgPath := flag.String("config", "config/statusd.yaml", "path to statusd config")
	dir := flag.String("dir", "", "definitions dir (default: content.definitions_dir)")
	dryRun := flag.Bool("dry-run", false, "validate only, do not write")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(context.Background(), *cfgPath, *dir, *dryRun); err != nil {
		slog.Error("import failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, dir string, dryRun bool) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dir == "" {
		dir = cfg.Content.DefinitionsDir
	}

	file, err := data.LoadDir(dir)
	if err != nil {
		return err
	}
	// Compile first: nothing is written unless the whole set is valid.
	_, warnings, err := data.CompileFile(status.NewAttributeRegistry(), file)
	if err != nil {
		return fmt.Errorf("validating %s: %w", dir, err)
	}
	data.LogWarnings(warnings)

	if dryRun {
		slog.Info("dry run: content is valid",
			"attributes", len(file.Attributes),
			"definitions", len(file.Definitions),
			"warnings", len(warnings))
		return nil
	}

	dsn := cfg.Database.DSN()
	if err := db.RunMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	database, err := db.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer database.Close()

	repo := database.Definitions()
	if err := repo.UpsertAttributes(ctx, file.Attributes); err != nil {
		return err
	}
	changed, err := repo.UpsertDefinitions(ctx, file.Definitions)
	if err != nil {
		return err
	}

	slog.Info("definitions imported",
		"dir", dir,
		"attributes", len(file.Attributes),
		"definitions", len(file.Definitions),
		"changed", changed)
	return nil
}
