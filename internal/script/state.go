package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// State errors.
var (
	// ErrStateClosed indicates the Lua state was already closed.
	ErrStateClosed = errors.New("lua state closed")
)

// State wraps a gopher-lua state opened with a restricted library set.
// Scripts get base, table, string and math; io, os, debug and package stay
// closed.
type State struct {
	L      *lua.LState
	closed bool
}

// NewState creates a sandboxed Lua state.
func NewState() *State {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}

	return &State{L: L}
}

// DoFile executes a Lua file, recovering gopher-lua panics into errors.
func (s *State) DoFile(path string) error {
	if s.closed {
		return ErrStateClosed
	}
	return s.protect(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes Lua source, recovering gopher-lua panics into errors.
func (s *State) DoString(code string) error {
	if s.closed {
		return ErrStateClosed
	}
	return s.protect(func() error {
		return s.L.DoString(code)
	})
}

// Close releases the Lua state. Further calls return ErrStateClosed.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// protect converts a panic out of the Lua VM into an error.
func (s *State) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
