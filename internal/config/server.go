package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Content sources.
const (
	SourceYAML     = "yaml"
	SourcePostgres = "postgres"
)

// Content locates effect content.
type Content struct {
	Source         string `yaml:"source"`          // "yaml" or "postgres"
	DefinitionsDir string `yaml:"definitions_dir"` // *.yaml definition files
	ScriptsDir     string `yaml:"scripts_dir"`     // Lua modules, empty disables
}

// Simulation configures the tick loop.
type Simulation struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Workers      int           `yaml:"workers"` // managers advanced concurrently
	Strict       bool          `yaml:"strict"`  // panic on invariant violations
}

// SpawnEffect is an effect applied to a demo entity at startup.
type SpawnEffect struct {
	Definition string  `yaml:"definition"`
	Timing     string  `yaml:"timing"` // Infinite, Duration or Event
	Duration   float64 `yaml:"duration"`
	Signal     string  `yaml:"signal"`
	Stacks     int     `yaml:"stacks"`
}

// SpawnEntity is a demo entity created at startup.
type SpawnEntity struct {
	Name    string             `yaml:"name"`
	Base    map[string]float64 `yaml:"base"` // attribute name → base value
	Effects []SpawnEffect      `yaml:"effects"`
}

// Server holds all configuration for statusd.
type Server struct {
	LogLevel string `yaml:"log_level"`

	Content    Content        `yaml:"content"`
	Simulation Simulation     `yaml:"simulation"`
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"`

	Spawn []SpawnEntity `yaml:"spawn"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		LogLevel: "info",
		Content: Content{
			Source:         SourceYAML,
			DefinitionsDir: "data/effects",
		},
		Simulation: Simulation{
			TickInterval: 100 * time.Millisecond,
			Workers:      4,
		},
		Database: DefaultDatabase(),
		Redis:    DefaultRedis(),
	}
}

// LoadServer loads statusd config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot run with.
func (s Server) Validate() error {
	switch s.Content.Source {
	case SourceYAML, SourcePostgres:
	default:
		return fmt.Errorf("content.source: unknown source %q", s.Content.Source)
	}
	if s.Content.Source == SourcePostgres && !s.Database.Enabled {
		return fmt.Errorf("content.source is %s but database is disabled", SourcePostgres)
	}
	if s.Simulation.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive, got %s", s.Simulation.TickInterval)
	}
	if s.Simulation.Workers <= 0 {
		return fmt.Errorf("simulation.workers must be positive, got %d", s.Simulation.Workers)
	}
	return nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (s *Server) applyEnv() error {
	if v := os.Getenv("STATUSFX_DB_PASSWORD"); v != "" {
		s.Database.Password = v
	}
	if v := os.Getenv("STATUSFX_DB_HOST"); v != "" {
		s.Database.Host = v
	}
	if v := os.Getenv("STATUSFX_DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing STATUSFX_DB_PORT: %w", err)
		}
		s.Database.Port = port
	}
	if v := os.Getenv("STATUSFX_REDIS_ADDR"); v != "" {
		s.Redis.Addr = v
	}
	if v := os.Getenv("STATUSFX_REDIS_PASSWORD"); v != "" {
		s.Redis.Password = v
	}
	return nil
}
