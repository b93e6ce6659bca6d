package scripting

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// maxValueDepth bounds table nesting on conversion so cyclic Lua tables fail
// instead of recursing forever.
const maxValueDepth = 32

// toLua converts JSON-shaped Go values into Lua values. nil becomes an empty
// table when it is the top-level params value.
func toLua(L *lua.LState, v any) (lua.LValue, error) {
	if v == nil {
		return L.NewTable(), nil
	}
	return toLuaValue(L, v, 0)
}

func toLuaValue(L *lua.LState, v any, depth int) (lua.LValue, error) {
	if depth > maxValueDepth {
		return nil, fmt.Errorf("value nested deeper than %d", maxValueDepth)
	}
	switch x := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(x), nil
	case string:
		return lua.LString(x), nil
	case int:
		return lua.LNumber(x), nil
	case int64:
		return lua.LNumber(x), nil
	case float64:
		return lua.LNumber(x), nil
	case []any:
		t := L.CreateTable(len(x), 0)
		for _, e := range x {
			lv, err := toLuaValue(L, e, depth+1)
			if err != nil {
				return nil, err
			}
			t.Append(lv)
		}
		return t, nil
	case []string:
		t := L.CreateTable(len(x), 0)
		for _, e := range x {
			t.Append(lua.LString(e))
		}
		return t, nil
	case map[string]any:
		t := L.CreateTable(0, len(x))
		for k, e := range x {
			lv, err := toLuaValue(L, e, depth+1)
			if err != nil {
				return nil, err
			}
			t.RawSetString(k, lv)
		}
		return t, nil
	case map[string]string:
		t := L.CreateTable(0, len(x))
		for k, e := range x {
			t.RawSetString(k, lua.LString(e))
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}

// fromLua converts a script result into Go values. A table whose keys are
// exactly 1..n becomes []any; any other table becomes map[string]any with
// non-string keys formatted as strings. Functions and userdata are rejected.
func fromLua(lv lua.LValue) (any, error) {
	return fromLuaValue(lv, 0)
}

func fromLuaValue(lv lua.LValue, depth int) (any, error) {
	if depth > maxValueDepth {
		return nil, fmt.Errorf("table nested deeper than %d", maxValueDepth)
	}
	switch x := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LString:
		return string(x), nil
	case lua.LNumber:
		f := float64(x)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case *lua.LTable:
		return fromTable(x, depth)
	default:
		return nil, fmt.Errorf("cannot convert Lua %s", lv.Type())
	}
}

func fromTable(t *lua.LTable, depth int) (any, error) {
	n := t.Len()
	keys := 0
	t.ForEach(func(lua.LValue, lua.LValue) { keys++ })

	if n > 0 && keys == n {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			v, err := fromLuaValue(t.RawGetInt(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i-1] = v
		}
		return out, nil
	}

	out := make(map[string]any, keys)
	var firstErr error
	t.ForEach(func(k, v lua.LValue) {
		if firstErr != nil {
			return
		}
		gv, err := fromLuaValue(v, depth+1)
		if err != nil {
			firstErr = err
			return
		}
		out[k.String()] = gv
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
