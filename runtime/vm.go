package runtime

// Run calls entry (which must be a closure) with args and runs the
// dispatch loop to completion. It implements the single-threaded,
// non-suspending execution model of §5: the loop only "pauses" to call
// into a host function, synchronously, and resumes in the same
// goroutine.
func (vm *VM) Run(entry Value, args []Value) (Value, *VMError) {
	vm.lastError = nil
	if entry.Kind != KClosure {
		return Null, newStructuralError("cannot call a non-callable value")
	}
	cl := entry.AsClosure()
	frame := vm.prepareCall(cl, -1, len(args))
	copy(vm.stack[frame.Base:frame.Base+len(args)], args)

	result, err := vm.dispatch()
	if err != nil {
		vm.lastError = vm.assembleTraceback(err)
		vm.frames = vm.frames[:0]
		return Null, vm.lastError
	}
	return result, nil
}

// assembleTraceback walks the call-frame stack oldest-to-newest,
// rendering each scripted frame's function name and source line and
// each C-frame as "<native function>", per §7.
func (vm *VM) assembleTraceback(err *VMError) *VMError {
	for i := 0; i < len(vm.frames); i++ {
		f := &vm.frames[i]
		if f.isNative() {
			err.appendNativeTrace()
			continue
		}
		name := f.Closure.FuncDef.Name
		if name == "" {
			name = "<anonymous>"
		}
		pc := f.PC
		if i < len(vm.frames)-1 && pc > 0 {
			// A caller's own PC has already advanced past its CALL by
			// the time a callee faults; the call site is one instruction
			// back (§7 — the original's ret_addr-1 convention).
			pc--
		}
		err.appendTrace(name, f.Closure.FuncDef.LineForPC(pc))
	}
	return err
}

// dispatch is the decode/execute loop of §4.7. It is a switch, not
// computed goto (Go has no computed-goto); per §9 this is explicitly
// permitted, semantics must simply match.
func (vm *VM) dispatch() (Value, *VMError) {
	for {
		idx := len(vm.frames) - 1
		frame := &vm.frames[idx]

		fn := frame.Closure.FuncDef
		if frame.PC >= len(fn.Code) {
			return Null, newStructuralError("instruction pointer ran off the end of %q", fn.Name)
		}
		instr := fn.Code[frame.PC]
		frame.PC++
		op := instr.Op()

		switch op {
		case OpLDC:
			vm.stack[frame.Base+instr.A()] = fn.Consts[instr.U()]

		case OpLDNull:
			vm.stack[frame.Base+instr.A()] = Null

		case OpMov:
			vm.stack[frame.Base+instr.A()] = vm.stack[frame.Base+instr.B()]

		case OpRet:
			result := Null
			if instr.A() != 0 {
				result = vm.stack[frame.Base+instr.B()]
			}
			retReg := frame.RetReg
			retAddr := frame.RetAddr
			vm.popFrame()
			if retAddr < 0 {
				return result, nil
			}
			vm.stack[retReg] = result

		case OpJmp:
			vm.execJmp(frame, instr)

		case OpTest:
			v := vm.stack[frame.Base+instr.B()]
			if boolToInt(v.Truthy())^instr.A() == 0 {
				next := fn.Code[frame.PC]
				frame.PC++ // consume the branch island before applying its offset
				frame.PC += next.S()
			} else {
				frame.PC++ // skip the branch island, fall through
			}

		case OpCmpEq, OpCmpEqI, OpCmpEqF,
			OpCmpLt, OpCmpLtI, OpCmpLtF,
			OpCmpLe, OpCmpLeI, OpCmpLeF,
			OpCmpGt, OpCmpGtI, OpCmpGtF,
			OpCmpGe, OpCmpGeI, OpCmpGeF:
			if err := vm.execCompare(frame, instr, op); err != nil {
				return Null, vm.raiseAt(err, frame)
			}

		case OpAdd, OpAddI, OpAddF,
			OpSub, OpSubI, OpSubF,
			OpMul, OpMulI, OpMulF,
			OpDiv, OpDivI, OpDivF, OpMod:
			if err := vm.execArith(frame, instr, op); err != nil {
				return Null, vm.raiseAt(err, frame)
			}

		case OpNeg:
			if err := vm.execNeg(frame, instr); err != nil {
				return Null, vm.raiseAt(err, frame)
			}
		case OpNot:
			v := vm.stack[frame.Base+instr.B()]
			vm.stack[frame.Base+instr.A()] = Bool(!v.Truthy())
		case OpInc, OpDec:
			if err := vm.execIncDec(frame, instr, op); err != nil {
				return Null, vm.raiseAt(err, frame)
			}

		case OpBAnd, OpBOr, OpBXor, OpLShift, OpRShift, OpBNot:
			if err := vm.execBitwise(frame, instr, op); err != nil {
				return Null, vm.raiseAt(err, frame)
			}

		case OpGetEl, OpGetElArray, OpGetElMap:
			if err := vm.execGetEl(frame, instr, op); err != nil {
				return Null, vm.raiseAt(err, frame)
			}
		case OpSetEl:
			if err := vm.execSetEl(frame, instr); err != nil {
				return Null, vm.raiseAt(err, frame)
			}
		case OpNewArray:
			vm.execNewArray(frame, instr)
		case OpNewMap:
			if err := vm.execNewMap(frame, instr); err != nil {
				return Null, vm.raiseAt(err, frame)
			}
		case OpAppend:
			if err := vm.execAppend(frame, instr); err != nil {
				return Null, vm.raiseAt(err, frame)
			}
		case OpLen:
			if err := vm.execLen(frame, instr); err != nil {
				return Null, vm.raiseAt(err, frame)
			}

		case OpClosure:
			target := fn.Consts[instr.U()]
			if target.Kind != KFuncDef {
				return Null, vm.raiseAt(newStructuralError("CLOSURE operand is not a function definition"), frame)
			}
			cl := vm.buildClosure(target.AsFuncDef(), frame.Closure)
			frame = &vm.frames[idx]
			vm.stack[frame.Base+instr.A()] = fromObject(KClosure, cl)
		case OpGetUpval:
			uv := frame.Closure.Upvals[instr.B()]
			vm.stack[frame.Base+instr.A()] = *uv.Val
		case OpSetUpval:
			uv := frame.Closure.Upvals[instr.A()]
			*uv.Val = vm.stack[frame.Base+instr.B()]

		case OpCall:
			if err := vm.execCall(idx, instr); err != nil {
				return Null, vm.raiseAt(err, &vm.frames[idx])
			}

		default:
			return Null, vm.raiseAt(newStructuralError("unknown opcode %d", op), frame)
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) raiseAt(err *VMError, frame *Frame) *VMError {
	if frame != nil && frame.Closure != nil {
		err.withLocation(frame.Closure.FuncDef.LineForPC(frame.PC), 0)
	}
	return err
}

// execJmp implements JMP's upvalue-closing-then-branch semantics (§4.7)
// and feeds the hot-loop tracker (§4.10) on backward jumps.
func (vm *VM) execJmp(frame *Frame, instr Instr) {
	n := instr.A()
	if n > 0 {
		closed := 0
		for vm.openUpvals != nil && closed < n && vm.openUpvals.stackIdx >= frame.Base {
			u := vm.openUpvals
			u.close()
			vm.openUpvals = u.nextOpen
			u.nextOpen = nil
			closed++
		}
	}
	disp := instr.S()
	frame.PC += disp
	if disp < 0 {
		vm.hot.onBackwardJump(frame.PC)
	} else {
		vm.hot.onOtherJump()
	}
}

func (vm *VM) loadRK(frame *Frame, fn *FuncDef, field int) Value {
	if isConstOperand(field) {
		return fn.Consts[constIndex(field)]
	}
	return vm.stack[frame.Base+field]
}

func (vm *VM) execCompare(frame *Frame, instr Instr, op OpCode) *VMError {
	fn := frame.Closure.FuncDef
	b := vm.loadRK(frame, fn, instr.B())
	c := vm.loadRK(frame, fn, instr.C())
	var result bool
	var err *VMError

	switch op {
	case OpCmpEq, OpCmpEqI, OpCmpEqF:
		result = b.Equal(c)
	default:
		result, err = compareOrdered(b, c, op)
	}
	if err != nil {
		return err
	}
	if boolToInt(result)^instr.A() != 0 {
		frame.PC++ // skip the branch island following the compare
	}
	return nil
}

func compareOrdered(b, c Value, op OpCode) (bool, *VMError) {
	if !b.IsNumber() || !c.IsNumber() {
		return false, newTypeError("comparison requires numeric operands, got %s and %s", b.Kind, c.Kind)
	}
	x, y := b.AsNumber(), c.AsNumber()
	switch op {
	case OpCmpLt, OpCmpLtI, OpCmpLtF:
		return x < y, nil
	case OpCmpLe, OpCmpLeI, OpCmpLeF:
		return x <= y, nil
	case OpCmpGt, OpCmpGtI, OpCmpGtF:
		return x > y, nil
	case OpCmpGe, OpCmpGeI, OpCmpGeF:
		return x >= y, nil
	default:
		return false, newTypeError("unsupported compare opcode")
	}
}

// execArith implements §4.8's arithmetic rules. Typed variants (ADDI/
// ADDF/...) assume their operand types but fall through to the generic
// semantics on a type-guard mismatch, exactly as speculative hints.
func (vm *VM) execArith(frame *Frame, instr Instr, op OpCode) *VMError {
	fn := frame.Closure.FuncDef
	b := vm.loadRK(frame, fn, instr.B())
	c := vm.loadRK(frame, fn, instr.C())

	var result Value
	var err *VMError

	switch op {
	case OpAdd, OpAddI, OpAddF:
		result, err = vm.add(b, c)
	case OpSub, OpSubI, OpSubF:
		result, err = arithNumeric(b, c, "subtract", func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case OpMul, OpMulI, OpMulF:
		result, err = arithNumeric(b, c, "multiply", func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	case OpDiv, OpDivI, OpDivF:
		result, err = vm.div(b, c, op == OpDivI)
	case OpMod:
		result, err = vm.mod(b, c)
	}
	if err != nil {
		return err
	}
	vm.stack[frame.Base+instr.A()] = result
	return nil
}

func (vm *VM) add(b, c Value) (Value, *VMError) {
	if b.IsNumber() && c.IsNumber() {
		return numericOp(b, c, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }), nil
	}
	if b.Kind == KString || c.Kind == KString {
		left := formatForConcat(b)
		right := formatForConcat(c)
		return vm.ConcatStrings(left, right), nil
	}
	return Null, newTypeError("cannot add %s and %s", b.Kind, c.Kind)
}

func formatForConcat(v Value) string {
	if v.Kind == KString {
		return v.AsString().GoString()
	}
	return v.Format()
}

func arithNumeric(b, c Value, verb string, iop func(int64, int64) int64, fop func(float64, float64) float64) (Value, *VMError) {
	if !b.IsNumber() || !c.IsNumber() {
		return Null, newTypeError("cannot %s %s and %s", verb, b.Kind, c.Kind)
	}
	return numericOp(b, c, iop, fop), nil
}

// numericOp applies the §3.1 coercion: INTEGER op INTEGER stays
// INTEGER (wrapping two's-complement overflow, per the resolved Open
// Question in SPEC_FULL.md §9); any FLOAT operand promotes to FLOAT.
func numericOp(b, c Value, iop func(int64, int64) int64, fop func(float64, float64) float64) Value {
	if b.Kind == KInteger && c.Kind == KInteger {
		return Int(iop(b.AsInt(), c.AsInt()))
	}
	return Float(fop(b.AsNumber(), c.AsNumber()))
}

func (vm *VM) div(b, c Value, typedInt bool) (Value, *VMError) {
	if !b.IsNumber() || !c.IsNumber() {
		return Null, newTypeError("cannot divide %s and %s", b.Kind, c.Kind)
	}
	if typedInt && b.Kind == KInteger && c.Kind == KInteger {
		if c.AsInt() == 0 {
			return Null, newArithmeticError("integer division by zero")
		}
		return Int(b.AsInt() / c.AsInt()), nil
	}
	if c.AsNumber() == 0 {
		return Null, newArithmeticError("division by zero")
	}
	return Float(b.AsNumber() / c.AsNumber()), nil
}

func (vm *VM) mod(b, c Value) (Value, *VMError) {
	if b.Kind != KInteger || c.Kind != KInteger {
		return Null, newTypeError("MOD requires integer operands, got %s and %s", b.Kind, c.Kind)
	}
	if c.AsInt() == 0 {
		return Null, newArithmeticError("modulo by zero")
	}
	return Int(b.AsInt() % c.AsInt()), nil
}

func (vm *VM) execNeg(frame *Frame, instr Instr) *VMError {
	v := vm.stack[frame.Base+instr.B()]
	switch v.Kind {
	case KInteger:
		vm.stack[frame.Base+instr.A()] = Int(-v.AsInt())
	case KFloat:
		vm.stack[frame.Base+instr.A()] = Float(-v.AsFloat())
	default:
		return newTypeError("cannot negate %s", v.Kind)
	}
	return nil
}

func (vm *VM) execIncDec(frame *Frame, instr Instr, op OpCode) *VMError {
	v := vm.stack[frame.Base+instr.A()]
	delta := 1.0
	if op == OpDec {
		delta = -1
	}
	switch v.Kind {
	case KInteger:
		vm.stack[frame.Base+instr.A()] = Int(v.AsInt() + int64(delta))
	case KFloat:
		vm.stack[frame.Base+instr.A()] = Float(v.AsFloat() + delta)
	default:
		return newTypeError("cannot increment/decrement %s", v.Kind)
	}
	return nil
}

// execBitwise implements §4.7's bitwise family: integer-only operands,
// shift distance masked to the low 6 bits (Java-style, matching the
// original's fh_java_shl_i64/fh_java_sar_i64).
func (vm *VM) execBitwise(frame *Frame, instr Instr, op OpCode) *VMError {
	fn := frame.Closure.FuncDef
	if op == OpBNot {
		v := vm.loadRK(frame, fn, instr.B())
		if v.Kind != KInteger {
			return newTypeError("BNOT requires an integer operand, got %s", v.Kind)
		}
		vm.stack[frame.Base+instr.A()] = Int(^v.AsInt())
		return nil
	}

	b := vm.loadRK(frame, fn, instr.B())
	c := vm.loadRK(frame, fn, instr.C())
	if b.Kind != KInteger || c.Kind != KInteger {
		return newTypeError("bitwise operator requires integer operands, got %s and %s", b.Kind, c.Kind)
	}
	x, y := b.AsInt(), c.AsInt()
	var result int64
	switch op {
	case OpBAnd:
		result = x & y
	case OpBOr:
		result = x | y
	case OpBXor:
		result = x ^ y
	case OpLShift:
		result = javaShl(x, y)
	case OpRShift:
		result = javaSar(x, y)
	}
	vm.stack[frame.Base+instr.A()] = Int(result)
	return nil
}

func javaShl(x, shift int64) int64 { return x << (uint64(shift) & 63) }
func javaSar(x, shift int64) int64 { return x >> (uint64(shift) & 63) }

// execGetEl implements GETEL and its type-specialized hints (§4.9).
// GETEL_ARRAY/GETEL_MAP fall through to the generic path on a type
// mismatch; while the hot-loop tracker reports in_hot_loop, GETEL
// itself takes the inlined array-int-in-bounds fast path (§4.10).
func (vm *VM) execGetEl(frame *Frame, instr Instr, op OpCode) *VMError {
	fn := frame.Closure.FuncDef
	container := vm.loadRK(frame, fn, instr.B())
	key := vm.loadRK(frame, fn, instr.C())

	if op == OpGetElArray && container.Kind != KArray {
		op = OpGetEl
	}
	if op == OpGetElMap && container.Kind != KMap {
		op = OpGetEl
	}

	if vm.hot.inHotLoop && container.Kind == KArray && key.Kind == KInteger {
		i := key.AsInt()
		arr := container.AsArray()
		if i >= 0 && int(i) < arr.Len() {
			vm.stack[frame.Base+instr.A()] = arr.Get(int(i))
			return nil
		}
	}

	switch container.Kind {
	case KArray:
		if key.Kind != KInteger {
			return newRangeError("array index must be an integer, got %s", key.Kind)
		}
		i := key.AsInt()
		if i < 0 {
			vm.stack[frame.Base+instr.A()] = Null
			return nil
		}
		vm.stack[frame.Base+instr.A()] = container.AsArray().Get(int(i))
	case KMap:
		v, ok := container.AsMap().Get(key)
		if !ok {
			v = Null
		}
		vm.stack[frame.Base+instr.A()] = v
	case KString:
		if key.Kind != KInteger {
			return newRangeError("string index must be an integer, got %s", key.Kind)
		}
		s := container.AsString()
		i := key.AsInt()
		if i < 0 || int(i) >= s.Len() {
			vm.stack[frame.Base+instr.A()] = Null
			return nil
		}
		vm.stack[frame.Base+instr.A()] = fromObject(KString, vm.charCache.byteString(s.Bytes()[i]))
	default:
		return newStructuralError("cannot index into %s", container.Kind)
	}
	return nil
}

func (vm *VM) execSetEl(frame *Frame, instr Instr) *VMError {
	fn := frame.Closure.FuncDef
	container := vm.stack[frame.Base+instr.A()]
	key := vm.loadRK(frame, fn, instr.B())
	val := vm.loadRK(frame, fn, instr.C())

	switch container.Kind {
	case KArray:
		if key.Kind != KInteger || key.AsInt() < 0 {
			return newRangeError("array store requires a non-negative integer index")
		}
		container.AsArray().Set(int(key.AsInt()), val)
	case KMap:
		if err := container.AsMap().Add(key, val); err != nil {
			return err.(*VMError)
		}
	default:
		return newStructuralError("cannot store into %s", container.Kind)
	}
	return nil
}

func (vm *VM) execNewArray(frame *Frame, instr Instr) {
	n := instr.U()
	arrVal := vm.NewArray(n)
	if n > 0 {
		arr := arrVal.AsArray()
		arr.reserveUninit(n)
		copy(arr.items, vm.stack[frame.Base+instr.A()+1:frame.Base+instr.A()+1+n])
	}
	vm.stack[frame.Base+instr.A()] = arrVal
}

func (vm *VM) execNewMap(frame *Frame, instr Instr) *VMError {
	n := instr.U()
	mapVal := vm.NewMap()
	m := mapVal.AsMap()
	base := frame.Base + instr.A() + 1
	for i := 0; i+1 < n; i += 2 {
		if err := m.Add(vm.stack[base+i], vm.stack[base+i+1]); err != nil {
			return err.(*VMError)
		}
	}
	vm.stack[frame.Base+instr.A()] = mapVal
	return nil
}

func (vm *VM) execAppend(frame *Frame, instr Instr) *VMError {
	target := vm.stack[frame.Base+instr.C()]
	if target.Kind != KArray {
		return newStructuralError("APPEND requires an array, got %s", target.Kind)
	}
	target.AsArray().Append(vm.stack[frame.Base+instr.B()])
	vm.stack[frame.Base+instr.A()] = target
	return nil
}

func (vm *VM) execLen(frame *Frame, instr Instr) *VMError {
	v := vm.stack[frame.Base+instr.B()]
	switch v.Kind {
	case KArray:
		vm.stack[frame.Base+instr.A()] = Int(int64(v.AsArray().Len()))
	case KMap:
		vm.stack[frame.Base+instr.A()] = Int(int64(v.AsMap().Len()))
	case KString:
		vm.stack[frame.Base+instr.A()] = Int(int64(v.AsString().Len()))
	default:
		return newTypeError("LEN requires an array, map or string, got %s", v.Kind)
	}
	return nil
}

// execCall implements CALL (§4.7): R[A] is the callee, B the argument
// count, arguments already laid out at R[A+1..A+B] by the caller.
func (vm *VM) execCall(idx int, instr Instr) *VMError {
	frame := &vm.frames[idx]
	a, b := instr.A(), instr.B()
	callee := vm.stack[frame.Base+a]
	retReg := frame.Base + a

	switch callee.Kind {
	case KClosure:
		vm.prepareCall(callee.AsClosure(), retReg, b)
		return nil
	case KCFunc:
		return vm.callHostFunc(retReg, b, callee.AsCFunc())
	default:
		return newStructuralError("cannot call a non-callable value of type %s", callee.Kind)
	}
}

func (vm *VM) callHostFunc(retReg, nArgs int, cfn *CFunc) *VMError {
	cframe := vm.prepareCCall(retReg, nArgs, cfn.Name)
	args := make([]Value, nArgs)
	copy(args, vm.stack[cframe.Base:cframe.Base+nArgs])

	pinState := vm.GetPinState()
	result, err := cfn.Fn(vm, args)
	vm.RestorePinState(pinState)
	vm.ResetCVals()

	if err != nil {
		// The C-frame stays on the frame stack so the traceback lists it
		// as the newest frame; Run discards all frames after a failure.
		return err
	}
	vm.popCFrame()
	vm.stack[retReg] = result
	return nil
}
