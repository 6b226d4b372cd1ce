package scripting

import (
	"fmt"

	"github.com/l1jgo/behavior/internal/behavior"
	lua "github.com/yuin/gopher-lua"
)

// toLua converts signal and callback arguments. Owners travel by name.
func (e *Engine) toLua(v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint32:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case *behavior.Instance:
		return e.this(v)
	case *behavior.Owner:
		return lua.LString(v.Name())
	case []any:
		t := e.vm.NewTable()
		for i, x := range v {
			t.RawSetInt(i+1, e.toLua(x))
		}
		return t
	case map[string]any:
		t := e.vm.NewTable()
		for k, x := range v {
			t.RawSetString(k, e.toLua(x))
		}
		return t
	case fmt.Stringer:
		return lua.LString(v.String())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// fromLua converts values leaving Lua. Numbers become float64; arrays
// become []any and other tables map[string]any.
func (e *Engine) fromLua(v lua.LValue) any {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, e.fromLua(v.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(k, x lua.LValue) {
			out[lua.LVAsString(k)] = e.fromLua(x)
		})
		return out
	default:
		return v
	}
}
