// Package script implements the "lua" module kind: effect behavior written
// in Lua and run through gopher-lua.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/udisondev/statusfx/internal/game/status"
)

// Kind is the module kind served by Engine.
const Kind = "lua"

var (
	// ErrNoScript is returned when a lua module names neither a script nor a source.
	ErrNoScript = errors.New("lua: one of script or source param is required")
	// ErrScriptPath is returned for script names that escape the scripts directory.
	ErrScriptPath = errors.New("lua: script path must be local to the scripts dir")
)

// Engine compiles scripts once and hands the compiled chunks to modules.
// Each module gets its own LState, states are never shared.
type Engine struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*lua.FunctionProto
}

// NewEngine creates an engine reading scripts from dir. A nil logger uses slog.Default().
func NewEngine(dir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*lua.FunctionProto),
	}
}

// Register installs the lua kind into rt.
func (e *Engine) Register(rt *status.Runtime) {
	rt.Register(Kind, e.NewModule)
}

// NewModule is the status.ModuleFactory for the lua kind.
// Params: "script" (file under the scripts dir) or "source" (inline chunk).
func (e *Engine) NewModule(params map[string]string) (status.Module, error) {
	var (
		name  string
		proto *lua.FunctionProto
		err   error
	)
	switch {
	case params["script"] != "":
		name = params["script"]
		proto, err = e.compileFile(name)
	case params["source"] != "":
		name = "inline"
		proto, err = e.compileSource(params["source"])
	default:
		return nil, ErrNoScript
	}
	if err != nil {
		return nil, err
	}
	return &Module{name: name, proto: proto, logger: e.logger}, nil
}

func (e *Engine) compileFile(name string) (*lua.FunctionProto, error) {
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %s", ErrScriptPath, name)
	}
	key := "file:" + name

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.cache[key]; ok {
		return p, nil
	}

	path := filepath.Join(e.dir, name)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	p, err := compile(string(src), name)
	if err != nil {
		return nil, err
	}
	e.cache[key] = p
	return p, nil
}

func (e *Engine) compileSource(src string) (*lua.FunctionProto, error) {
	key := "inline:" + src

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.cache[key]; ok {
		return p, nil
	}
	p, err := compile(src, "inline")
	if err != nil {
		return nil, err
	}
	e.cache[key] = p
	return p, nil
}

// Preload compiles every *.lua file in the scripts dir so syntax errors
// surface at startup.
func (e *Engine) Preload() (int, error) {
	matches, err := filepath.Glob(filepath.Join(e.dir, "*.lua"))
	if err != nil {
		return 0, fmt.Errorf("listing scripts: %w", err)
	}
	for _, path := range matches {
		if _, err := e.compileFile(filepath.Base(path)); err != nil {
			return 0, err
		}
	}
	e.logger.Info("lua scripts compiled", "dir", e.dir, "count", len(matches))
	return len(matches), nil
}

func compile(src, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	return proto, nil
}
