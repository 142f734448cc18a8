package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rk packs a register-or-constant 9-bit operand field (§6): plain
// register indices are < regConstBase, constant-pool references are
// regConstBase+i. LDC and CLOSURE's wide U operand is different — it
// indexes the constant pool directly, with no such offset.
func rk(constIdx int) int { return regConstBase + constIdx }

func TestRunSumLoopMatchesGaussSum(t *testing.T) {
	// sum_loop(n): sum=0; i=0; while i<n { sum+=i; i++ }; return sum
	code := []Instr{
		MakeInstrU(OpLDC, 1, 0),
		MakeInstrU(OpLDC, 2, 0),
		MakeInstr(OpCmpLt, 0, 2, 0),
		MakeInstrS(OpJmp, 0, 3),
		MakeInstr(OpAdd, 1, 1, 2),
		MakeInstr(OpInc, 2, 0, 0),
		MakeInstrS(OpJmp, 0, -5),
		MakeInstr(OpRet, 1, 1, 0),
	}
	fn := NewFuncDef("sum_loop", 1, 4, code, []Value{Int(0)}, nil, nil)

	vm := NewProgram(nil, nil)
	entry := vm.BuildClosure(fn)
	result, rerr := vm.Run(entry, []Value{Int(1001)})
	require.Nil(t, rerr)
	assert.Equal(t, Int(500500), result)
}

func TestRunDivisionByZeroProducesTraceback(t *testing.T) {
	code := []Instr{
		MakeInstrU(OpLDC, 0, 0), // R0 = 1
		MakeInstrU(OpLDC, 1, 1), // R1 = 0 (K[1])
		MakeInstr(OpDivI, 2, 0, 1),
		MakeInstr(OpRet, 1, 2, 0),
	}
	fn := NewFuncDef("divzero", 0, 3, code, []Value{Int(1), Int(0)}, nil, []SrcLoc{{StartPC: 0, Line: 7}})

	vm := NewProgram(nil, nil)
	entry := vm.BuildClosure(fn)
	_, rerr := vm.Run(entry, nil)
	require.NotNil(t, rerr)
	assert.Equal(t, ErrArithmetic, rerr.Kind)
	assert.Equal(t, vm.LastError(), rerr)
}

func TestRunStringConcatStringThenInteger(t *testing.T) {
	code := []Instr{
		MakeInstrU(OpLDC, 0, 0),          // R0 = "n="
		MakeInstr(OpAdd, 1, 0, rk(1)), // R1 = R0 + K[1] (42)
		MakeInstr(OpRet, 1, 1, 0),
	}
	fn := NewFuncDef("concat", 0, 2, code, nil, nil, nil)

	vm := NewProgram(nil, nil)
	strConst := vm.NewString("n=")
	fn.Consts = []Value{strConst, Int(42)}

	entry := vm.BuildClosure(fn)
	result, rerr := vm.Run(entry, nil)
	require.Nil(t, rerr)
	assert.Equal(t, "n=42", result.AsString().GoString())
}

func TestRunArraySetElAutoGrows(t *testing.T) {
	code := []Instr{
		MakeInstrU(OpNewArray, 0, 0),
		MakeInstrU(OpLDC, 1, 0), // R1 = 5 (index)
		MakeInstrU(OpLDC, 2, 1), // R2 = 77 (value)
		MakeInstr(OpSetEl, 0, 1, 2),
		MakeInstr(OpLen, 3, 0, 0),
		MakeInstr(OpRet, 1, 3, 0),
	}
	fn := NewFuncDef("setel", 0, 4, code, []Value{Int(5), Int(77)}, nil, nil)

	vm := NewProgram(nil, nil)
	entry := vm.BuildClosure(fn)
	result, rerr := vm.Run(entry, nil)
	require.Nil(t, rerr)
	assert.Equal(t, Int(6), result, "SETEL at index 5 must grow the array to length 6")
}

func TestRunHostCallRoundTrip(t *testing.T) {
	// f(x) = double(x) via a registered host function
	code := []Instr{
		MakeInstrU(OpLDC, 1, 0), // R1 = double (the global C_FUNC value, as a constant)
		MakeInstr(OpMov, 2, 0, 0),
		MakeInstr(OpCall, 1, 1, 0),
		MakeInstr(OpRet, 1, 1, 0),
	}
	vm := NewProgram(nil, nil)
	vm.RegisterHostFunc("double", func(vm *VM, args []Value) (Value, *VMError) {
		return Int(args[0].AsInt() * 2), nil
	})
	doubleFn, _ := vm.GlobalFunc("double")
	fn := NewFuncDef("caller", 1, 3, code, []Value{doubleFn}, nil, nil)

	entry := vm.BuildClosure(fn)
	result, rerr := vm.Run(entry, []Value{Int(21)})
	require.Nil(t, rerr)
	assert.Equal(t, Int(42), result)
}

func TestRunClosureUpvalueIndependence(t *testing.T) {
	// make_counter() returns a closure over R0 (counter), incremented and
	// returned each CALL. Two independently built closures must not share state.
	innerCode := []Instr{
		MakeInstr(OpGetUpval, 0, 0, 0),
		MakeInstr(OpInc, 0, 0, 0),
		MakeInstr(OpSetUpval, 0, 0, 0),
		MakeInstr(OpRet, 1, 0, 0),
	}
	inner := NewFuncDef("counter", 0, 1, innerCode, nil, []UpvalDef{{Type: UpvalTypeReg, Num: 0}}, nil)

	outerCode := []Instr{
		MakeInstrU(OpLDC, 0, 0), // R0 = 0 (captured counter)
		MakeInstrU(OpClosure, 1, 1),
		MakeInstr(OpRet, 1, 1, 0),
	}
	outer := NewFuncDef("make_counter", 0, 2, outerCode, []Value{Int(0), fromObject(KFuncDef, inner)}, nil, nil)

	vm := NewProgram(nil, nil)
	outerEntry := vm.BuildClosure(outer)

	c1, rerr := vm.Run(outerEntry, nil)
	require.Nil(t, rerr)
	c2, rerr := vm.Run(outerEntry, nil)
	require.Nil(t, rerr)

	r1, rerr := vm.Run(c1, nil)
	require.Nil(t, rerr)
	assert.Equal(t, Int(1), r1)

	r1b, rerr := vm.Run(c1, nil)
	require.Nil(t, rerr)
	assert.Equal(t, Int(2), r1b, "second call on the same closure must see the first call's mutation")

	r2, rerr := vm.Run(c2, nil)
	require.Nil(t, rerr)
	assert.Equal(t, Int(1), r2, "a second, independently built closure must not share the first's upvalue")
}

func TestRunTestOpcodeBranchesOnTruthiness(t *testing.T) {
	// cond(b): TEST b, A=0 (branch taken when b is falsy); returns
	// 111 on the fallthrough (truthy) arm, 222 on the branch (falsy) arm.
	code := []Instr{
		MakeInstr(OpTest, 0, 0, 0),
		MakeInstrS(OpJmp, 0, 2), // island: consumed as an operand, never executed as JMP
		MakeInstrU(OpLDC, 1, 0), // R1 = 111 (truthy fallthrough)
		MakeInstrS(OpJmp, 0, 1),
		MakeInstrU(OpLDC, 1, 1), // R1 = 222 (falsy branch target)
		MakeInstr(OpRet, 1, 1, 0),
	}
	fn := NewFuncDef("cond", 1, 2, code, []Value{Int(111), Int(222)}, nil, nil)

	vm := NewProgram(nil, nil)
	entry := vm.BuildClosure(fn)

	truthy, rerr := vm.Run(entry, []Value{Bool(true)})
	require.Nil(t, rerr)
	assert.Equal(t, Int(111), truthy, "truthy operand must fall through TEST, not branch")

	falsy, rerr := vm.Run(entry, []Value{Bool(false)})
	require.Nil(t, rerr)
	assert.Equal(t, Int(222), falsy, "falsy operand must take TEST's branch")
}

func TestRunTracebackReportsCallSiteLineNotLineAfterCall(t *testing.T) {
	innerCode := []Instr{
		MakeInstrU(OpLDC, 0, 0), // R0 = 1
		MakeInstrU(OpLDC, 1, 1), // R1 = 0
		MakeInstr(OpDivI, 2, 0, 1),
		MakeInstr(OpRet, 1, 2, 0),
	}
	inner := NewFuncDef("inner", 0, 3, innerCode, []Value{Int(1), Int(0)}, nil,
		[]SrcLoc{{StartPC: 0, Line: 50}, {StartPC: 2, Line: 51}})

	vm := NewProgram(nil, nil)
	innerClosure := vm.BuildClosure(inner)

	outerCode := []Instr{
		MakeInstrU(OpLDC, 1, 0), // R1 = inner closure
		MakeInstr(OpCall, 1, 0, 0),
		MakeInstr(OpRet, 1, 1, 0),
	}
	outer := NewFuncDef("outer", 0, 2, outerCode, []Value{innerClosure}, nil,
		[]SrcLoc{{StartPC: 1, Line: 10}, {StartPC: 2, Line: 11}})

	outerEntry := vm.BuildClosure(outer)
	_, rerr := vm.Run(outerEntry, nil)
	require.NotNil(t, rerr)
	require.Len(t, rerr.trace, 2, "expect one entry for outer and one for the faulting inner frame")
	assert.Equal(t, "outer", rerr.trace[0].funcName)
	assert.Equal(t, 10, rerr.trace[0].line, "outer's traceback line must be its CALL site (line 10), not the line after it (11)")
}
