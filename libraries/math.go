// Package libraries provides host-function bundles registerable onto a
// runtime.Program: math, time, and anything else a host embedding the
// VM wants scripted code to call into.
package libraries

import (
	"math"

	"github.com/MuresanVladMihail/fh/runtime"
)

// RegisterMath installs the extended math library onto prog: powers,
// roots, logarithms, trigonometry, and the rounding/min/max/factorial
// utilities, plus the constants pi/e/phi/sqrt2/ln2/ln10 as global
// variables. Function set and naming follow the teacher's own fmaths
// bundle; only the ABI (args []Value, (Value, *VMError) return) changes.
func RegisterMath(prog *runtime.Program) {
	unary := func(name string, f func(float64) float64) {
		prog.RegisterHostFunc(name, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
			x, err := runtime.RequireNumber(name, args, 0)
			if err != nil {
				return runtime.Null, err
			}
			return runtime.Float(f(x)), nil
		})
	}
	unaryDomain := func(name string, lo, hi float64, msg string, f func(float64) float64) {
		prog.RegisterHostFunc(name, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
			x, err := runtime.RequireNumber(name, args, 0)
			if err != nil {
				return runtime.Null, err
			}
			if x < lo || x > hi {
				return runtime.Null, runtime.NewRangeError("%s: %s", name, msg)
			}
			return runtime.Float(f(x)), nil
		})
	}

	prog.RegisterHostFunc("pow", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		x, err := runtime.RequireNumber("pow", args, 0)
		if err != nil {
			return runtime.Null, err
		}
		y, err := runtime.RequireNumber("pow", args, 1)
		if err != nil {
			return runtime.Null, err
		}
		return runtime.Float(math.Pow(x, y)), nil
	})

	unaryDomain("sqrt", 0, math.Inf(1), "sqrt of negative number", math.Sqrt)
	unary("cbrt", math.Cbrt)
	unaryDomain("log", 0, math.Inf(1), "log of non-positive number", math.Log)
	unaryDomain("log10", 0, math.Inf(1), "log10 of non-positive number", math.Log10)
	unaryDomain("log2", 0, math.Inf(1), "log2 of non-positive number", math.Log2)
	unary("exp", math.Exp)
	unary("exp2", math.Exp2)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unaryDomain("asin", -1, 1, "asin domain error: argument must be in [-1, 1]", math.Asin)
	unaryDomain("acos", -1, 1, "acos domain error: argument must be in [-1, 1]", math.Acos)
	unary("atan", math.Atan)

	prog.RegisterHostFunc("atan2", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		y, err := runtime.RequireNumber("atan2", args, 0)
		if err != nil {
			return runtime.Null, err
		}
		x, err := runtime.RequireNumber("atan2", args, 1)
		if err != nil {
			return runtime.Null, err
		}
		return runtime.Float(math.Atan2(y, x)), nil
	})

	unary("sinh", math.Sinh)
	unary("cosh", math.Cosh)
	unary("tanh", math.Tanh)
	unary("abs", math.Abs)
	unary("ceil", math.Ceil)
	unary("floor", math.Floor)
	unary("round", math.Round)
	unary("gamma", math.Gamma)

	prog.RegisterHostFunc("min", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		if len(args) < 2 {
			return runtime.Null, runtime.NewRangeError("min requires at least 2 arguments")
		}
		m := math.Inf(1)
		for i, a := range args {
			if !a.IsNumber() {
				return runtime.Null, runtime.NewTypeError("min requires numeric arguments, got %s at position %d", a.Kind, i)
			}
			if v := a.AsNumber(); v < m {
				m = v
			}
		}
		return runtime.Float(m), nil
	})

	prog.RegisterHostFunc("max", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		if len(args) < 2 {
			return runtime.Null, runtime.NewRangeError("max requires at least 2 arguments")
		}
		m := math.Inf(-1)
		for i, a := range args {
			if !a.IsNumber() {
				return runtime.Null, runtime.NewTypeError("max requires numeric arguments, got %s at position %d", a.Kind, i)
			}
			if v := a.AsNumber(); v > m {
				m = v
			}
		}
		return runtime.Float(m), nil
	})

	prog.RegisterHostFunc("factorial", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		x, err := runtime.RequireNumber("factorial", args, 0)
		if err != nil {
			return runtime.Null, err
		}
		n := int(x)
		if n < 0 || float64(n) != x {
			return runtime.Null, runtime.NewRangeError("factorial requires a non-negative integer")
		}
		result := 1.0
		for i := 2; i <= n; i++ {
			result *= float64(i)
		}
		return runtime.Float(result), nil
	})

	prog.SetGlobalVar("pi", runtime.Float(math.Pi))
	prog.SetGlobalVar("e", runtime.Float(math.E))
	prog.SetGlobalVar("phi", runtime.Float(1.618033988749894))
	prog.SetGlobalVar("sqrt2", runtime.Float(math.Sqrt2))
	prog.SetGlobalVar("ln2", runtime.Float(math.Ln2))
	prog.SetGlobalVar("ln10", runtime.Float(math.Ln10))
}
