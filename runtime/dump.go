package runtime

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// DumpValue renders a Value recursively, mirroring the original's
// dump_val (§3.2): scalars print inline, heap objects print their
// shape via spew so nested arrays/maps/closures are fully expanded for
// debugging without hand-rolling a recursive printer.
func DumpValue(v Value) string {
	switch v.Kind {
	case KNull, KBool, KInteger, KFloat:
		return v.Format()
	case KString:
		return fmt.Sprintf("%q", v.AsString().GoString())
	case KCFunc:
		return fmt.Sprintf("<native %s>", v.AsCFunc().Name)
	default:
		return spew.Sdump(v.obj)
	}
}

// DumpRegisters renders a frame's live register window, matching
// dump_regs's "one register per line, with its value" layout.
func (vm *VM) DumpRegisters(frame *Frame) string {
	var b strings.Builder
	n := frame.StackTop - frame.Base
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "R[%d] = %s\n", i, DumpValue(vm.stack[frame.Base+i]))
	}
	return b.String()
}

// DumpState renders the full dispatch state at a fault: every live
// frame's function name, PC and registers, oldest frame first —
// the Go analogue of dump_state.
func (vm *VM) DumpState() string {
	var b strings.Builder
	for i, f := range vm.frames {
		if f.isNative() {
			fmt.Fprintf(&b, "#%d <native function %s>\n", i, f.nativeFn)
			continue
		}
		fmt.Fprintf(&b, "#%d %s (pc=%d, line=%d)\n", i, f.Closure.FuncDef.Name, f.PC, f.Closure.FuncDef.LineForPC(f.PC))
		b.WriteString(vm.DumpRegisters(&f))
	}
	return b.String()
}
