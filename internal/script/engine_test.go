package script

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/statusfx/internal/game/status"
)

// syncBuffer is a bytes.Buffer safe for the run goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	engine  *Engine
	rt      *status.Runtime
	catalog *status.Catalog
	manager *status.Manager
	logs    *syncBuffer
}

func newFixture(t *testing.T, dir string) *fixture {
	t.Helper()
	logs := &syncBuffer{}
	f := &fixture{
		engine:  NewEngine(dir, slog.New(slog.NewTextHandler(logs, nil))),
		rt:      status.NewRuntime(),
		catalog: status.NewCatalog(),
		logs:    logs,
	}
	f.engine.Register(f.rt)
	f.manager = status.NewManager(status.Options{Entity: "hero", Modules: f.rt, Catalog: f.catalog})
	t.Cleanup(func() {
		f.manager.Close()
		f.rt.Wait()
	})
	return f
}

func (f *fixture) define(t *testing.T, def *status.Definition) *status.Definition {
	t.Helper()
	require.NoError(t, f.catalog.Add(def))
	return def
}

func scripted(id, source string) *status.Definition {
	return &status.Definition{
		ID:      status.DefinitionID(id),
		Group:   "Scripted",
		Modules: []status.ModuleDefinition{{Kind: Kind, Params: map[string]string{"source": source}}},
	}
}

func TestEngine_RegistersKind(t *testing.T) {
	rt := status.NewRuntime()
	NewEngine(t.TempDir(), nil).Register(rt)
	assert.Contains(t, rt.Kinds(), Kind)
}

func TestEngine_NewModuleErrors(t *testing.T) {
	e := NewEngine(t.TempDir(), nil)

	_, err := e.NewModule(nil)
	require.ErrorIs(t, err, ErrNoScript)

	_, err = e.NewModule(map[string]string{"script": "../escape.lua"})
	require.ErrorIs(t, err, ErrScriptPath)

	_, err = e.NewModule(map[string]string{"script": "missing.lua"})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = e.NewModule(map[string]string{"source": "function on_enable(e"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing inline")
}

func TestEngine_CompilesFileOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.lua"), []byte(`function on_enable(e) log("hi") end`), 0o644))
	e := NewEngine(dir, nil)

	a, err := e.NewModule(map[string]string{"script": "hello.lua"})
	require.NoError(t, err)
	b, err := e.NewModule(map[string]string{"script": "hello.lua"})
	require.NoError(t, err)

	assert.Same(t, a.(*Module).proto, b.(*Module).proto)
	assert.NotSame(t, a, b)
}

func TestEngine_Preload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`function run(e) end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`x = 1`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))

	n, err := NewEngine(dir, nil).Preload()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.lua"), []byte(`if then`), 0o644))
	_, err = NewEngine(dir, nil).Preload()
	require.Error(t, err)
}

func TestModule_HooksRunAroundLifetime(t *testing.T) {
	f := newFixture(t, t.TempDir())
	def := f.define(t, scripted("aura", `
		function on_enable(e)  log("enable " .. e.definition .. " x" .. e.stacks .. " " .. e.entity) end
		function on_disable(e) log("disable " .. e.definition) end
	`))

	inst := f.manager.AddEffect(def, status.WithStacks(2))
	require.NotNil(t, inst)
	assert.Contains(t, f.logs.String(), "enable aura x2 hero")
	assert.NotContains(t, f.logs.String(), "disable aura")

	f.manager.RemoveInstance(inst)
	assert.Contains(t, f.logs.String(), "disable aura")
}

func TestModule_HooksCannotMutate(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.define(t, &status.Definition{ID: "spark"})
	def := f.define(t, scripted("greedy", `function on_enable(e) add_effect("spark") end`))

	require.NotNil(t, f.manager.AddEffect(def))

	assert.Equal(t, 1, f.manager.Count())
	assert.Contains(t, f.logs.String(), "add_effect is only available inside run()")
}

func TestModule_SandboxRemovesUnsafeGlobals(t *testing.T) {
	f := newFixture(t, t.TempDir())
	def := f.define(t, scripted("probe", `
		function on_enable(e)
			log("dofile=" .. tostring(dofile) .. " os=" .. tostring(os) .. " io=" .. tostring(io))
		end
	`))

	require.NotNil(t, f.manager.AddEffect(def))
	assert.Contains(t, f.logs.String(), "dofile=nil os=nil io=nil")
}

func TestModule_RunLoopStopsWithEffect(t *testing.T) {
	f := newFixture(t, t.TempDir())
	spark := f.define(t, &status.Definition{ID: "spark", AllowStacking: true})
	def := f.define(t, scripted("emitter", `
		function run(e)
			while sleep(0.005) do
				add_effect("spark")
			end
			log("run finished")
		end
	`))

	inst := f.manager.AddEffect(def)
	require.NotNil(t, inst)

	countSparks := func() int {
		n := 0
		for range f.manager.GetEffects(status.Filter{Definition: spark}) {
			n++
		}
		return n
	}
	require.Eventually(t, func() bool { return countSparks() >= 3 }, 2*time.Second, 5*time.Millisecond)

	f.manager.RemoveInstance(inst)
	f.rt.Wait()

	assert.Contains(t, f.logs.String(), "run finished")
	settled := countSparks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, countSparks())
}

func TestModule_BusyRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, t.TempDir())
	def := f.define(t, scripted("spin", `
		function run(e)
			log("spinning")
			local i = 0
			while true do i = i + 1 end
		end
	`))

	inst := f.manager.AddEffect(def)
	require.NotNil(t, inst)
	require.Eventually(t, func() bool {
		return strings.Contains(f.logs.String(), "spinning")
	}, 2*time.Second, 5*time.Millisecond)

	f.manager.RemoveInstance(inst)

	done := make(chan struct{})
	go func() {
		f.rt.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run goroutine did not stop after its effect was removed")
	}
	assert.NotContains(t, f.logs.String(), "lua script failed")
}

func TestModule_RunRemovesOwnEffect(t *testing.T) {
	f := newFixture(t, t.TempDir())
	def := f.define(t, scripted("fuse", `
		function run(e)
			if sleep(0.001) then
				remove_effect(e.definition)
			end
		end
		function on_disable(e) log("fuse out") end
	`))

	require.NotNil(t, f.manager.AddEffect(def))
	require.Eventually(t, func() bool { return f.manager.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	f.rt.Wait()
	assert.Contains(t, f.logs.String(), "fuse out")
}

func TestModule_RunUnknownDefinitionLogs(t *testing.T) {
	f := newFixture(t, t.TempDir())
	def := f.define(t, scripted("lost", `function run(e) add_effect("nowhere") end`))

	require.NotNil(t, f.manager.AddEffect(def))
	require.Eventually(t, func() bool {
		return strings.Contains(f.logs.String(), `unknown definition \"nowhere\"`)
	}, 2*time.Second, 5*time.Millisecond)
}
