// Command fhvm runs hand-assembled bytecode on the register VM. There
// is no lexer, parser or compiler in this module (out of scope per the
// specification); fhvm exists to demonstrate and exercise the engine
// directly, the way the teacher's own main.go ran a parsed program.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/MuresanVladMihail/fh/internal/vmlog"
	"github.com/MuresanVladMihail/fh/libraries"
	"github.com/MuresanVladMihail/fh/runtime"
)

func main() {
	disasm := flag.Bool("disasm", false, "print disassembly before running")
	verbose := flag.Bool("v", false, "enable info-level logging")
	flag.Parse()

	n := int64(10)
	if flag.NArg() > 0 {
		v, err := strconv.ParseInt(flag.Arg(0), 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fhvm: invalid argument %q: %v\n", flag.Arg(0), err)
			os.Exit(1)
		}
		n = v
	}

	level := vmlog.LevelWarn
	if *verbose {
		level = vmlog.LevelInfo
	}
	logger := vmlog.New(level)

	prog := runtime.NewProgram(runtime.DefaultConfig(), logger)
	libraries.RegisterMath(prog)
	libraries.RegisterTime(prog)

	fn := sumLoopProgram()
	if *disasm {
		fmt.Print(runtime.Disassemble(fn))
	}

	entry := prog.BuildClosure(fn)
	result, rerr := prog.Run(entry, []runtime.Value{runtime.Int(n)})
	if rerr != nil {
		fmt.Fprintln(os.Stderr, rerr.Error())
		os.Exit(1)
	}
	fmt.Println(result.Format())
}

// sumLoopProgram hand-assembles: fn(n) { sum = 0; i = 0; while i < n {
// sum += i; i++ } return sum } — register layout R0=n, R1=sum, R2=i,
// R3 unused. It exercises LDC/CMP_LT/JMP/ADD/INC/RET, the
// minimal opcode set needed to demonstrate a real hot loop.
func sumLoopProgram() *runtime.FuncDef {
	// Register layout: R0 = n (argument), R1 = sum, R2 = i.
	// idx0 LDC   R1, K[0]          sum = 0
	// idx1 LDC   R2, K[0]          i = 0
	// idx2 CMP_LT A=0, i, n        jump to exit (idx7) when i < n is false
	// idx3 JMP   exit
	// idx4 ADD   R1, R1, R2        sum = sum + i
	// idx5 INC   R2                i++
	// idx6 JMP   loop (idx2)
	// idx7 RET   R1
	// LDC's U operand is a direct constant-pool index (no
	// register/constant ambiguity to disambiguate, unlike the 9-bit
	// RB/RC fields), so both loads just reference K[0].
	code := []runtime.Instr{
		runtime.MakeInstrU(runtime.OpLDC, 1, 0),
		runtime.MakeInstrU(runtime.OpLDC, 2, 0),
		runtime.MakeInstr(runtime.OpCmpLt, 0, 2, 0),
		runtime.MakeInstrS(runtime.OpJmp, 0, 3), // idx3 -> idx7 (7 - 4)
		runtime.MakeInstr(runtime.OpAdd, 1, 1, 2),
		runtime.MakeInstr(runtime.OpInc, 2, 0, 0),
		runtime.MakeInstrS(runtime.OpJmp, 0, -5), // idx6 -> idx2 (2 - 7)
		runtime.MakeInstr(runtime.OpRet, 1, 1, 0),
	}
	consts := []runtime.Value{runtime.Int(0)}

	return runtime.NewFuncDef("sum_loop", 1, 4, code, consts, nil, []runtime.SrcLoc{{StartPC: 0, Line: 1}})
}
