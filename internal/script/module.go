package script

import (
	"context"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/udisondev/statusfx/internal/game/status"
)

// Module runs one compiled script for one effect instance.
//
// The chunk is loaded twice. The hooks state serves on_enable and
// on_disable, which run while the manager is mid-mutation and therefore
// cannot add or remove effects. The run state lives on the module's own
// goroutine and calls run(effect) if the script defines it.
// Top-level code should only define functions.
type Module struct {
	name   string
	proto  *lua.FunctionProto
	logger *slog.Logger

	hooks *lua.LState
}

func (m *Module) Kind() string { return Kind }

func (m *Module) Enable(mc *status.ModuleContext) {
	L := newState()
	bindHelpers(L, m, mc, nil)
	if err := load(L, m.proto); err != nil {
		m.warn(mc, "loading script", err)
		L.Close()
		return
	}
	m.hooks = L
	m.callHook(L, mc, "on_enable")
}

func (m *Module) Disable(mc *status.ModuleContext) {
	if m.hooks == nil {
		return
	}
	m.callHook(m.hooks, mc, "on_disable")
	m.hooks.Close()
	m.hooks = nil
}

// Run calls run(effect) on a dedicated state. A script without run returns at once.
func (m *Module) Run(ctx context.Context, mc *status.ModuleContext) {
	L := newState()
	defer L.Close()
	// The VM checks ctx between instructions, so scripts that never sleep
	// still stop when the effect goes away.
	L.SetContext(ctx)
	bindHelpers(L, m, mc, ctx)
	if err := load(L, m.proto); err != nil {
		if ctx.Err() == nil {
			m.warn(mc, "loading script", err)
		}
		return
	}

	fn := L.GetGlobal("run")
	if fn.Type() != lua.LTFunction {
		return
	}
	err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, effectTable(L, mc))
	if err != nil && ctx.Err() == nil {
		m.warn(mc, "run", err)
	}
}

func (m *Module) callHook(L *lua.LState, mc *status.ModuleContext, hook string) {
	fn := L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, effectTable(L, mc)); err != nil {
		m.warn(mc, hook, err)
	}
}

func (m *Module) warn(mc *status.ModuleContext, stage string, err error) {
	m.logger.Warn("lua script failed",
		"script", m.name,
		"stage", stage,
		"entity", mc.Entity(),
		"instance", mc.Instance.String(),
		"error", err)
}

func load(L *lua.LState, proto *lua.FunctionProto) error {
	L.Push(L.NewFunctionFromProto(proto))
	return L.PCall(0, lua.MultRet, nil)
}
