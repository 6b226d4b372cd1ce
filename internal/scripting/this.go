package scripting

import (
	"fmt"
	"time"

	"github.com/l1jgo/behavior/internal/behavior"
	lua "github.com/yuin/gopher-lua"
)

const instanceTypeName = "behavior.instance"

// registerInstanceType installs the metatable behind the `this` value
// handed to every hook and method.
func (e *Engine) registerInstanceType() {
	mt := e.vm.NewTypeMetatable(instanceTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"get":      e.thisGet,
		"set":      e.thisSet,
		"raise":    e.thisRaise,
		"call":     e.thisCall,
		"schedule": e.thisSchedule,
		"cancel":   e.thisCancel,
		"connect":  e.thisConnect,
		"sibling":  e.thisSibling,
		"prop":     e.thisProp,
		"setprop":  e.thisSetProp,
		"template": e.thisTemplate,
		"id":       e.thisID,
		"owner":    e.thisOwner,
		"state":    e.thisState,
	}))
	e.vm.SetField(mt, "__tostring", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkInstance(L, 1).String()))
		return 1
	}))
}

func (e *Engine) this(inst *behavior.Instance) *lua.LUserData {
	ud := e.vm.NewUserData()
	ud.Value = inst
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(instanceTypeName))
	return ud
}

func checkInstance(L *lua.LState, n int) *behavior.Instance {
	ud := L.CheckUserData(n)
	if inst, ok := ud.Value.(*behavior.Instance); ok {
		return inst
	}
	L.ArgError(n, "behavior instance expected")
	return nil
}

// raise turns a Go error into a Lua error at the call site.
func raise(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
}

// this:get(field) returns the field as a number, boolean or string
// according to its kind.
func (e *Engine) thisGet(L *lua.LState) int {
	inst := checkInstance(L, 1)
	name := L.CheckString(2)
	f, ok := inst.Template().Field(name)
	if !ok {
		L.ArgError(2, fmt.Sprintf("unknown field %q", name))
		return 0
	}
	v, err := inst.Field(name)
	raise(L, err)
	switch f.Kind {
	case behavior.KindInt, behavior.KindFloat:
		L.Push(lua.LNumber(inst.Float(name)))
	case behavior.KindBool:
		L.Push(lua.LBool(inst.Bool(name)))
	default:
		L.Push(lua.LString(v))
	}
	return 1
}

func (e *Engine) thisSet(L *lua.LState) int {
	inst := checkInstance(L, 1)
	name := L.CheckString(2)
	var err error
	switch v := L.Get(3).(type) {
	case lua.LBool:
		err = inst.SetBool(name, bool(v))
	case lua.LNumber:
		err = inst.SetField(name, v.String())
	default:
		err = inst.SetField(name, lua.LVAsString(v))
	}
	raise(L, err)
	return 0
}

func (e *Engine) thisRaise(L *lua.LState) int {
	inst := checkInstance(L, 1)
	output := L.CheckString(2)
	raise(L, inst.Raise(output, e.restArgs(L, 3)...))
	return 0
}

func (e *Engine) thisCall(L *lua.LState) int {
	inst := checkInstance(L, 1)
	method := L.CheckString(2)
	raise(L, inst.Call(method, e.restArgs(L, 3)...))
	return 0
}

// this:schedule(seconds, method, ...) returns the callback id.
func (e *Engine) thisSchedule(L *lua.LState) int {
	inst := checkInstance(L, 1)
	secs := float64(L.CheckNumber(2))
	method := L.CheckString(3)
	id, err := inst.Schedule(time.Duration(secs*float64(time.Second)), method, e.restArgs(L, 4)...)
	raise(L, err)
	L.Push(lua.LNumber(id))
	return 1
}

func (e *Engine) thisCancel(L *lua.LState) int {
	inst := checkInstance(L, 1)
	id := behavior.CallbackID(L.CheckNumber(2))
	L.Push(lua.LBool(inst.Cancel(id)))
	return 1
}

// this:connect(output, other, input) returns the connection id.
func (e *Engine) thisConnect(L *lua.LState) int {
	inst := checkInstance(L, 1)
	output := L.CheckString(2)
	dst := checkInstance(L, 3)
	input := L.CheckString(4)
	c, err := inst.Connect(output, dst, input)
	raise(L, err)
	L.Push(lua.LNumber(c.ID))
	return 1
}

// this:sibling(template) returns the sibling or nil.
func (e *Engine) thisSibling(L *lua.LState) int {
	inst := checkInstance(L, 1)
	sib, err := inst.Sibling(L.CheckString(2))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(e.this(sib))
	return 1
}

func (e *Engine) thisProp(L *lua.LState) int {
	inst := checkInstance(L, 1)
	name := L.CheckString(2)
	if inst.Owner() == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, _ := inst.Owner().Properties().Get(name)
	L.Push(e.toLua(v))
	return 1
}

func (e *Engine) thisSetProp(L *lua.LState) int {
	inst := checkInstance(L, 1)
	name := L.CheckString(2)
	if inst.Owner() == nil {
		raise(L, fmt.Errorf("%w: %s has no owner", behavior.ErrNotOwned, inst))
	}
	if v := L.Get(3); v == lua.LNil {
		inst.Owner().Properties().Delete(name)
	} else {
		inst.Owner().Properties().Set(name, e.fromLua(v))
	}
	return 0
}

func (e *Engine) thisTemplate(L *lua.LState) int {
	L.Push(lua.LString(checkInstance(L, 1).TemplateName()))
	return 1
}

func (e *Engine) thisID(L *lua.LState) int {
	L.Push(lua.LNumber(checkInstance(L, 1).BehaviorID()))
	return 1
}

func (e *Engine) thisOwner(L *lua.LState) int {
	inst := checkInstance(L, 1)
	if inst.Owner() == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(inst.Owner().Name()))
	return 1
}

func (e *Engine) thisState(L *lua.LState) int {
	L.Push(lua.LString(checkInstance(L, 1).State().String()))
	return 1
}

func (e *Engine) restArgs(L *lua.LState, from int) []any {
	top := L.GetTop()
	if top < from {
		return nil
	}
	args := make([]any, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, e.fromLua(L.Get(i)))
	}
	return args
}
