package runtime

// UpvalDefType distinguishes the two ways a closure captures an
// upvalue, per §4.5's CLOSURE opcode semantics.
type UpvalDefType uint8

const (
	UpvalTypeReg UpvalDefType = iota
	UpvalTypeUpval
)

// UpvalDef is a per-FuncDef descriptor: either "capture the enclosing
// frame's register N" (REG) or "share the enclosing closure's upvalue
// N" (UPVAL).
type UpvalDef struct {
	Type UpvalDefType
	Num  int
}

// SrcLoc maps an instruction address range to a source position.
type SrcLoc struct {
	StartPC int
	Line    int
	Col     int
}

// FuncDef is the compiled, immutable function definition of §3.2: code,
// constants, upvalue descriptors and a source-location table. Nothing
// in this module produces a FuncDef from source text (lexer/parser/
// compiler are out of scope); FuncDefs are either hand-assembled (see
// cmd/fhvm) or built programmatically by a host embedding the VM.
type FuncDef struct {
	objHeader
	Name     string
	NParams  int
	NRegs    int
	Code     []Instr
	Consts   []Value
	Upvals   []UpvalDef
	SrcLocs  []SrcLoc
}

func NewFuncDef(name string, nParams, nRegs int, code []Instr, consts []Value, upvals []UpvalDef, locs []SrcLoc) *FuncDef {
	return &FuncDef{
		objHeader: objHeader{kind: KFuncDef},
		Name:      name,
		NParams:   nParams,
		NRegs:     nRegs,
		Code:      code,
		Consts:    consts,
		Upvals:    upvals,
		SrcLocs:   locs,
	}
}

// LineForPC finds the source line covering pc, used by traceback
// assembly (§7). SrcLocs must be sorted ascending by StartPC.
func (f *FuncDef) LineForPC(pc int) int {
	line := 0
	for _, loc := range f.SrcLocs {
		if loc.StartPC > pc {
			break
		}
		line = loc.Line
	}
	return line
}

// Upval is the reference cell described in §4.5. It is open iff Val
// points into the VM's value stack; closed iff Val points at storage.
type Upval struct {
	objHeader
	Val     *Value
	storage Value
	nextOpen *Upval // open-upvalue list link, descending by stack slot address
	stackIdx int    // index into the owning VM's stack, valid only while open
}

func (u *Upval) isOpen() bool { return u.Val != &u.storage }

// close copies the live stack value into the upvalue's own storage and
// retargets Val to point there — the one-way open->closed transition
// of §4.5/§4.11.
func (u *Upval) close() {
	if !u.isOpen() {
		return
	}
	u.storage = *u.Val
	u.Val = &u.storage
}

// Closure pairs a FuncDef with its bound upvalues (§3.2).
type Closure struct {
	objHeader
	FuncDef *FuncDef
	Upvals  []*Upval
	Doc     string
}

func newClosure(fn *FuncDef) *Closure {
	return &Closure{
		objHeader: objHeader{kind: KClosure},
		FuncDef:   fn,
		Upvals:    make([]*Upval, len(fn.Upvals)),
	}
}

// findOrAddUpval implements §4.5's find_or_add_upval: walk the
// descending-address open list until an upvalue at exactly stackIdx is
// found and returned, or until the first entry below it, splicing a
// fresh open upvalue in at that point. This guarantees at most one
// open upvalue per stack slot, shared by every closure that captures it.
func (vm *VM) findOrAddUpval(stackIdx int) *Upval {
	var prev *Upval
	cur := vm.openUpvals
	for cur != nil && cur.stackIdx > stackIdx {
		prev = cur
		cur = cur.nextOpen
	}
	if cur != nil && cur.stackIdx == stackIdx {
		return cur
	}

	u := &Upval{objHeader: objHeader{kind: KUpval}, stackIdx: stackIdx}
	u.Val = &vm.stack[stackIdx]
	u.nextOpen = cur
	if prev == nil {
		vm.openUpvals = u
	} else {
		prev.nextOpen = u
	}
	vm.linkObject(u)
	return u
}

// closeUpvalsFrom closes every open upvalue whose stackIdx is >= base,
// i.e. every upvalue pointing into the frame now exiting. Because the
// list is address-ordered descending, this is exactly the head of the
// list up to the first entry below base (§4.5 "Closing").
func (vm *VM) closeUpvalsFrom(base int) {
	for vm.openUpvals != nil && vm.openUpvals.stackIdx >= base {
		u := vm.openUpvals
		u.close()
		vm.openUpvals = u.nextOpen
		u.nextOpen = nil
	}
}

// buildClosure implements the CLOSURE opcode's per-upvalue-descriptor
// construction (§4.5).
func (vm *VM) buildClosure(fn *FuncDef, enclosing *Closure) *Closure {
	vm.maybeCollect(64)
	cl := newClosure(fn)
	vm.linkObject(cl)
	cl.setPin()
	defer cl.clearPin()
	for i, def := range fn.Upvals {
		switch def.Type {
		case UpvalTypeUpval:
			cl.Upvals[i] = enclosing.Upvals[def.Num]
		case UpvalTypeReg:
			frame := vm.currentFrame()
			cl.Upvals[i] = vm.findOrAddUpval(frame.Base + def.Num)
		}
	}
	return cl
}
