package expr

import (
	"fmt"

	"github.com/dop251/goja"
)

// dangerousGlobals are host-environment entry points that must never be
// reachable from a breakpoint condition or watch expression.
var dangerousGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"__dirname",
	"__filename",
	"Buffer",
	"setImmediate",
	"clearImmediate",
	"setTimeout",
	"setInterval",
	"fetch",
	"XMLHttpRequest",
}

// frozenBuiltins are the built-in objects frozen against tampering so a
// malformed expression cannot poison later evaluations on the same runtime.
var frozenBuiltins = []string{
	"Object",
	"Array",
	"Function",
	"String",
	"Number",
	"Boolean",
	"Date",
	"RegExp",
	"Error",
	"Math",
	"JSON",
}

// sandbox strips host entry points from a fresh runtime, disables eval and
// freezes the builtins.
func sandbox(vm *goja.Runtime) error {
	for _, name := range dangerousGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	blockedEval := func(call goja.FunctionCall) goja.Value {
		panic(vm.NewTypeError("eval is not available in watch expressions"))
	}
	if err := vm.Set("eval", blockedEval); err != nil {
		return fmt.Errorf("failed to disable eval: %w", err)
	}

	return freezeBuiltins(vm)
}

func freezeBuiltins(vm *goja.Runtime) error {
	freezeScript := `
		(function() {
			function freezeObject(obj) {
				if (obj && typeof obj === 'object' || typeof obj === 'function') {
					Object.freeze(obj);
					if (obj.prototype) {
						Object.freeze(obj.prototype);
					}
				}
			}
			return freezeObject;
		})()
	`
	val, err := vm.RunString(freezeScript)
	if err != nil {
		return fmt.Errorf("failed to create freeze function: %w", err)
	}
	freezeFn, ok := goja.AssertFunction(val)
	if !ok {
		return fmt.Errorf("freeze helper is not a function")
	}

	for _, name := range frozenBuiltins {
		obj := vm.Get(name)
		if obj == nil || goja.IsUndefined(obj) {
			continue
		}
		if _, err := freezeFn(goja.Undefined(), obj); err != nil {
			continue
		}
	}
	return nil
}
