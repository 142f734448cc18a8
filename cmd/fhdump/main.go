// Command fhdump prints the disassembly of the same hand-assembled
// demo function fhvm runs, for inspecting the bytecode encoding
// without executing it.
package main

import (
	"fmt"

	"github.com/MuresanVladMihail/fh/runtime"
)

func main() {
	fn := demoFuncDef()
	fmt.Print(runtime.Disassemble(fn))
}

// demoFuncDef mirrors cmd/fhvm's sum_loop program; kept as a separate,
// tiny copy so fhdump has no dependency on fhvm's main package.
func demoFuncDef() *runtime.FuncDef {
	code := []runtime.Instr{
		runtime.MakeInstrU(runtime.OpLDC, 1, 0),
		runtime.MakeInstrU(runtime.OpLDC, 2, 0),
		runtime.MakeInstr(runtime.OpCmpLt, 0, 2, 0),
		runtime.MakeInstrS(runtime.OpJmp, 0, 3),
		runtime.MakeInstr(runtime.OpAdd, 1, 1, 2),
		runtime.MakeInstr(runtime.OpInc, 2, 0, 0),
		runtime.MakeInstrS(runtime.OpJmp, 0, -5),
		runtime.MakeInstr(runtime.OpRet, 1, 1, 0),
	}
	consts := []runtime.Value{runtime.Int(0)}
	return runtime.NewFuncDef("sum_loop", 1, 4, code, consts, nil, []runtime.SrcLoc{{StartPC: 0, Line: 1}})
}
