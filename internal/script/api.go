package script

import (
	"context"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/udisondev/statusfx/internal/game/status"
)

// newState creates a sandboxed state with the safe library subset.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "print",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// bindHelpers installs the script API. A nil ctx binds the hook variant:
// add_effect, remove_effect and sleep raise an error there.
func bindHelpers(L *lua.LState, m *Module, mc *status.ModuleContext, ctx context.Context) {
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info("lua",
			"script", m.name,
			"entity", mc.Entity(),
			"definition", mc.Instance.Definition().ID,
			"message", L.CheckString(1))
		return 0
	}))

	L.SetGlobal("alive", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(mc.Alive()))
		return 1
	}))

	L.SetGlobal("effect", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectTable(L, mc))
		return 1
	}))

	if ctx == nil {
		for _, name := range []string{"add_effect", "remove_effect", "sleep"} {
			L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
				L.RaiseError("%s is only available inside run()", name)
				return 0
			}))
		}
		return
	}

	// add_effect(id [, duration [, stacks]]) -> bool
	L.SetGlobal("add_effect", L.NewFunction(func(L *lua.LState) int {
		def := lookup(L, mc, L.CheckString(1))
		duration := float64(L.OptNumber(2, 0))
		stacks := L.OptInt(3, 1)
		if def == nil || !mc.Alive() {
			L.Push(lua.LFalse)
			return 1
		}

		var inst *status.Instance
		if duration > 0 {
			inst = mc.Manager.AddTimedEffect(def, duration, status.WithStacks(stacks))
		} else {
			inst = mc.Manager.AddEffect(def, status.WithStacks(stacks))
		}
		L.Push(lua.LBool(inst != nil))
		return 1
	}))

	// remove_effect(id [, stacks])
	L.SetGlobal("remove_effect", L.NewFunction(func(L *lua.LState) int {
		def := lookup(L, mc, L.CheckString(1))
		if def == nil || !mc.Alive() {
			return 0
		}
		var stacks *int
		if L.GetTop() >= 2 {
			stacks = status.Stacks(L.CheckInt(2))
		}
		mc.Manager.RemoveDefinition(def, stacks)
		return 0
	}))

	// sleep(seconds) -> bool: false once the effect is gone
	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		secs := float64(L.CheckNumber(1))
		t := time.NewTimer(time.Duration(secs * float64(time.Second)))
		defer t.Stop()
		select {
		case <-ctx.Done():
			L.Push(lua.LFalse)
			return 1
		case <-t.C:
		}
		L.Push(lua.LBool(mc.Alive()))
		return 1
	}))
}

func lookup(L *lua.LState, mc *status.ModuleContext, id string) *status.Definition {
	cat := mc.Catalog()
	if cat == nil {
		L.RaiseError("no definition catalog for entity %s", mc.Entity())
		return nil
	}
	def, ok := cat.Get(status.DefinitionID(id))
	if !ok {
		L.RaiseError("unknown definition %q", id)
		return nil
	}
	return def
}

// effectTable snapshots the instance for a script.
func effectTable(L *lua.LState, mc *status.ModuleContext) *lua.LTable {
	inst := mc.Instance
	def := inst.Definition()

	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LNumber(inst.ID()))
	tbl.RawSetString("definition", lua.LString(def.ID))
	tbl.RawSetString("group", lua.LString(def.Group))
	tbl.RawSetString("entity", lua.LString(mc.Entity()))
	tbl.RawSetString("stacks", lua.LNumber(inst.Stacks()))
	tbl.RawSetString("value", lua.LNumber(inst.Value()))
	tbl.RawSetString("timing", lua.LString(inst.Timing().String()))
	if r := inst.Remaining(); !math.IsInf(r, 0) {
		tbl.RawSetString("remaining", lua.LNumber(r))
	}
	return tbl
}
