package script

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/Asmageddon/modrun/internal/event"
	"github.com/Asmageddon/modrun/internal/loop"
)

// ModuleName is the global table scripts use to reach the runtime.
const ModuleName = "modrun"

// Runtime is the set of host objects the bridge binds against. Loop may be
// nil before the frame loop exists; delta queries then report zero.
type Runtime struct {
	Registry   *event.Registry
	Dispatcher *event.Dispatcher
	Limiter    *loop.Limiter
	Loop       *loop.Loop
}

// Bridge installs the modrun module into a Lua state and wraps Lua
// functions as registry callbacks.
//
// Lua functions are identity-keyed by their *lua.LFunction value, so a
// script can remove or toggle exactly the callback it registered.
type Bridge struct {
	state *State
	rt    Runtime
}

// Install binds the runtime into the state under the global modrun table.
func Install(s *State, rt Runtime) *Bridge {
	b := &Bridge{state: s, rt: rt}

	L := s.L
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"registerEvent":      b.registerEvent,
		"addCallback":        b.addCallback,
		"removeCallback":     b.removeCallback,
		"setCallbackEnabled": b.setCallbackEnabled,
		"dispatch":           b.dispatch,
		"setFramerate":       b.setFramerate,
		"getFramerate":       b.getFramerate,
		"getDelta":           b.getDelta,
	})
	L.SetGlobal(ModuleName, mod)

	return b
}

// registerEvent(name [, failIfExists])
func (b *Bridge) registerEvent(L *lua.LState) int {
	name := L.CheckString(1)

	var opts []event.TypeOption
	if L.OptBool(2, false) {
		opts = append(opts, event.WithFailIfExists())
	}

	if err := b.rt.Registry.RegisterType(name, opts...); err != nil {
		L.RaiseError("registerEvent: %v", err)
	}
	return 0
}

// addCallback(event, fn [, {priority=n, owner=v, on_error=fn}])
func (b *Bridge) addCallback(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	opts := []event.CallbackOption{event.WithKey(fn)}
	if tbl := L.OptTable(3, nil); tbl != nil {
		if v, ok := tbl.RawGetString("priority").(lua.LNumber); ok {
			opts = append(opts, event.WithPriority(int(v)))
		}
		if v := tbl.RawGetString("owner"); v != lua.LNil {
			opts = append(opts, event.WithOwner(v))
		}
		if v, ok := tbl.RawGetString("on_error").(*lua.LFunction); ok {
			opts = append(opts, event.WithErrorHandler(b.wrapErrorHandler(v)))
		}
		if v, ok := tbl.RawGetString("enabled").(lua.LBool); ok && !bool(v) {
			opts = append(opts, event.WithDisabled())
		}
	}

	if err := b.rt.Registry.Add(name, b.wrapCallback(fn), opts...); err != nil {
		L.RaiseError("addCallback: %v", err)
	}
	return 0
}

// removeCallback(event, fn)
func (b *Bridge) removeCallback(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	if err := b.rt.Registry.RemoveKey(name, fn); err != nil {
		L.RaiseError("removeCallback: %v", err)
	}
	return 0
}

// setCallbackEnabled(event, fn, enabled)
func (b *Bridge) setCallbackEnabled(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	enabled := L.CheckBool(3)

	if err := b.rt.Registry.SetEnabledKey(name, fn, enabled); err != nil {
		L.RaiseError("setCallbackEnabled: %v", err)
	}
	return 0
}

// dispatch(event, ...) -> handled
func (b *Bridge) dispatch(L *lua.LState) int {
	name := L.CheckString(1)

	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, luaToGo(L.Get(i)))
	}

	handled, err := b.rt.Dispatcher.Dispatch(context.Background(), name, args...)
	if err != nil {
		L.RaiseError("dispatch: %v", err)
	}
	L.Push(lua.LBool(handled))
	return 1
}

// setFramerate(fps)
func (b *Bridge) setFramerate(L *lua.LState) int {
	b.rt.Limiter.SetTarget(float64(L.CheckNumber(1)))
	return 0
}

// getFramerate() -> fps
func (b *Bridge) getFramerate(L *lua.LState) int {
	L.Push(lua.LNumber(b.rt.Limiter.Target()))
	return 1
}

// getDelta() -> seconds
func (b *Bridge) getDelta(L *lua.LState) int {
	if b.rt.Loop == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(b.rt.Loop.DeltaTime()))
	return 1
}

// wrapCallback adapts a Lua function to an event.Callback. The owner, when
// present, is prepended to the Lua argument list. A Lua runtime error comes
// back as a Go error, feeding the registry's normal error policy.
func (b *Bridge) wrapCallback(fn *lua.LFunction) event.Callback {
	return func(_ context.Context, owner any, args ...any) (bool, error) {
		L := b.state.L

		largs := make([]lua.LValue, 0, len(args)+1)
		if owner != nil {
			largs = append(largs, goToLua(L, owner))
		}
		for _, a := range args {
			largs = append(largs, goToLua(L, a))
		}

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
			return false, err
		}
		ret := L.Get(-1)
		L.Pop(1)
		return lua.LVAsBool(ret), nil
	}
}

// wrapErrorHandler adapts a Lua function to an event.ErrorHandler. It
// receives (owner?, {name=..., args={...}}, message) and its return value
// is the entry's handled signal. A failing error handler counts as not
// handled.
func (b *Bridge) wrapErrorHandler(fn *lua.LFunction) event.ErrorHandler {
	return func(_ context.Context, owner any, occ event.Occurrence, cbErr error) bool {
		L := b.state.L

		occTable := L.NewTable()
		occTable.RawSetString("name", lua.LString(occ.Name))
		argsTable := L.NewTable()
		for _, a := range occ.Args {
			argsTable.Append(goToLua(L, a))
		}
		occTable.RawSetString("args", argsTable)

		largs := make([]lua.LValue, 0, 3)
		if owner != nil {
			largs = append(largs, goToLua(L, owner))
		}
		largs = append(largs, occTable, lua.LString(cbErr.Error()))

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
			return false
		}
		ret := L.Get(-1)
		L.Pop(1)
		return lua.LVAsBool(ret)
	}
}
