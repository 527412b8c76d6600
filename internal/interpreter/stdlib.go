package interpreter

import (
	"fmt"
	"strconv"
	"strings"
)

// stdlib returns the native functions available to every script without an
// explicit `define action`. These round out the §4.5 expression set with
// the handful of text/list helpers a scripting language needs but the
// grammar has no dedicated syntax for.
func stdlib() map[string]*NativeFunction {
	fns := []*NativeFunction{
		{Name: "length", Fn: nativeLength},
		{Name: "uppercase", Fn: nativeUppercase},
		{Name: "lowercase", Fn: nativeLowercase},
		{Name: "trim", Fn: nativeTrim},
		{Name: "to number", Fn: nativeToNumber},
		{Name: "to text", Fn: nativeToText},
	}
	out := make(map[string]*NativeFunction, len(fns))
	for _, fn := range fns {
		out[fn.Name] = fn
	}
	return out
}

func nativeLength(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("length expects one argument")
	}
	switch v := args[0].(type) {
	case Text:
		return Number(len([]rune(string(v)))), nil
	case *List:
		return Number(len(v.Items)), nil
	default:
		return nil, fmt.Errorf("length requires text or a list")
	}
}

func nativeUppercase(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("uppercase expects one argument")
	}
	return Text(strings.ToUpper(args[0].String())), nil
}

func nativeLowercase(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("lowercase expects one argument")
	}
	return Text(strings.ToLower(args[0].String())), nil
}

func nativeTrim(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("trim expects one argument")
	}
	return Text(strings.TrimSpace(args[0].String())), nil
}

// nativeToNumber is the `to number` builtin: a Number passes through, and a
// non-numeric string converts to 0 rather than failing.
func nativeToNumber(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("to number expects one argument")
	}
	switch v := args[0].(type) {
	case Number:
		return v, nil
	case Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return Number(0), nil
		}
		return Number(f), nil
	case Bool:
		if v {
			return Number(1), nil
		}
		return Number(0), nil
	default:
		return Number(0), nil
	}
}

func nativeToText(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("to text expects one argument")
	}
	return Text(args[0].String()), nil
}
