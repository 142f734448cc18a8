package libraries

import (
	"time"

	"github.com/MuresanVladMihail/fh/runtime"
)

// RegisterTime installs now/millis/sleep onto prog, matching the
// teacher's own time bundle (fixed here to the module-relative import
// path — the teacher's "DYMS/runtime" path and its stray closing brace
// were a bug, not a design choice worth preserving).
func RegisterTime(prog *runtime.Program) {
	prog.RegisterHostFunc("now", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		return runtime.Float(float64(time.Now().UnixNano()) / 1e9), nil
	})
	prog.RegisterHostFunc("millis", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		return runtime.Float(float64(time.Now().UnixNano()) / 1e6), nil
	})
	prog.RegisterHostFunc("sleep", func(vm *runtime.VM, args []runtime.Value) (runtime.Value, *runtime.VMError) {
		sec := runtime.OptNumber(args, 0, 0)
		time.Sleep(time.Duration(sec * float64(time.Second)))
		return runtime.Null, nil
	})
}
