package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/l1jgo/behavior/internal/behavior"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Hook names looked up on a behavior table. Every other function in the
// table is bound as a method.
const (
	hookAdd             = "onBehaviorAdd"
	hookRemove          = "onBehaviorRemove"
	hookAddToScene      = "onAddToScene"
	hookRemoveFromScene = "onRemoveFromScene"
	hookCollision       = "onCollision"
	hookUpdate          = "onUpdate"
)

var hookNames = map[string]bool{
	hookAdd: true, hookRemove: true, hookAddToScene: true,
	hookRemoveFromScene: true, hookCollision: true, hookUpdate: true,
}

// Engine wraps a single gopher-lua VM running behavior scripts.
// Single-goroutine access only (game loop).
type Engine struct {
	vm    *lua.LState
	log   *zap.Logger
	bound int
}

// New creates an engine with no scripts loaded.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.registerInstanceType()
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	return e
}

// NewEngine creates an engine and loads the shared libraries, then the
// behavior scripts, from scriptsDir.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := New(log)
	for _, sub := range []string{"lib", "behaviors"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			e.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source. name only appears in errors.
func (e *Engine) LoadString(name, src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

// Bound returns how many templates have been bound to scripts.
func (e *Engine) Bound() int { return e.bound }

// BindTemplate binds the global Lua table named script to tpl.
func (e *Engine) BindTemplate(tpl *behavior.Template, script string) error {
	tbl, ok := e.vm.GetGlobal(script).(*lua.LTable)
	if !ok {
		return fmt.Errorf("lua table %q not found", script)
	}
	return e.Bind(tpl, tbl)
}

// Bind installs the hooks and methods found in tbl on tpl. Functions are
// called with the instance as first argument.
func (e *Engine) Bind(tpl *behavior.Template, tbl *lua.LTable) error {
	var hooks behavior.Hooks
	var bindErr error
	tbl.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		fn, isFn := v.(*lua.LFunction)
		if !ok || !isFn || bindErr != nil {
			return
		}
		if hookNames[string(name)] {
			e.hook(&hooks, string(name), fn)
			return
		}
		bindErr = tpl.Bind(string(name), e.method(string(name), fn))
	})
	if bindErr != nil {
		return bindErr
	}
	if err := tpl.SetHooks(hooks); err != nil {
		return err
	}
	e.bound++
	e.log.Debug("lua behavior bound", zap.String("template", tpl.Name()))
	return nil
}

func (e *Engine) hook(h *behavior.Hooks, name string, fn *lua.LFunction) {
	switch name {
	case hookAdd:
		h.OnAdd = func(inst *behavior.Instance) error {
			return e.call(fn, inst, name)
		}
	case hookRemove:
		h.OnRemove = func(inst *behavior.Instance) error {
			return e.call(fn, inst, name)
		}
	case hookAddToScene:
		h.OnAddToScene = func(inst *behavior.Instance, s behavior.Scene) error {
			return e.call(fn, inst, name, lua.LString(s.Name()))
		}
	case hookRemoveFromScene:
		h.OnRemoveFromScene = func(inst *behavior.Instance, s behavior.Scene) error {
			return e.call(fn, inst, name, lua.LString(s.Name()))
		}
	case hookCollision:
		h.OnCollision = func(inst *behavior.Instance, c behavior.Collision) error {
			other := lua.LValue(lua.LNil)
			if c.Other != nil {
				other = lua.LString(c.Other.Name())
			}
			return e.call(fn, inst, name, other, lua.LNumber(c.Normal[0]), lua.LNumber(c.Normal[1]))
		}
	case hookUpdate:
		h.OnUpdate = func(inst *behavior.Instance, dt time.Duration) error {
			return e.call(fn, inst, name, lua.LNumber(dt.Seconds()))
		}
	}
}

// method adapts a Lua function to a template method. Functions bound to a
// declared input run as fn(this, source, output, args...), source and output
// being nil when the input is called directly. Other methods run as
// fn(this, args...).
func (e *Engine) method(name string, fn *lua.LFunction) behavior.MethodFunc {
	return func(inst *behavior.Instance, c behavior.Call) error {
		args := make([]lua.LValue, 0, len(c.Args)+2)
		if _, ok := inst.Template().Input(name); ok {
			source, output := lua.LValue(lua.LNil), lua.LValue(lua.LNil)
			if c.Source != nil {
				source = e.this(c.Source)
				output = lua.LString(c.Output)
			}
			args = append(args, source, output)
		}
		for _, a := range c.Args {
			args = append(args, e.toLua(a))
		}
		return e.call(fn, inst, name, args...)
	}
}

// call runs fn(this, args...). Lua errors, including those raised by the
// instance API, come back as Go errors.
func (e *Engine) call(fn *lua.LFunction, inst *behavior.Instance, handler string, args ...lua.LValue) error {
	params := make([]lua.LValue, 0, len(args)+1)
	params = append(params, e.this(inst))
	params = append(params, args...)
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, params...); err != nil {
		return fmt.Errorf("lua %s.%s: %w", inst.TemplateName(), handler, err)
	}
	return nil
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
