package runtime

import (
	"github.com/google/uuid"

	"github.com/MuresanVladMihail/fh/internal/vmlog"
)

// VM is the execution engine of §5: one value stack, one call-frame
// stack, one open-upvalue list, one pin stack, one object list. A VM
// owns everything it allocates; objects must never cross to another VM.
//
// Program (below) is this same type under the name the external
// interfaces section (§6) uses for the thing that owns the two global
// tables and the error state — in this implementation there is exactly
// one object per running script, so the two names are kept as aliases
// rather than introducing a hollow wrapper struct.
type VM struct {
	ID uuid.UUID

	config *Config
	logger *vmlog.Logger

	stack  []Value
	frames []Frame

	objects     Object
	liveObjects int
	gcFrequency int
	gcPaused    bool

	pinStack []Object
	cVals    []Object

	openUpvals *Upval
	charCache  *charCache
	hot        hotLoopTracker

	globalFuncs map[string]Value
	globalVars  map[string]Value

	prog *VM // self-reference so gc.go's vm.prog.globalFuncs reads uniformly

	lastError *VMError
}

// Program is the public name for a VM instance, matching §6's
// terminology ("the program").
type Program = VM

// NewProgram creates an independent VM/program with its own disjoint
// heap (§9 "two programs are fully independent"), stamped with a fresh
// instance ID (the ID field). The ID is not included in log lines or
// error messages.
func NewProgram(cfg *Config, logger *vmlog.Logger) *Program {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = vmlog.Discard()
	}
	vm := &VM{
		ID:          uuid.New(),
		config:      cfg,
		logger:      logger,
		stack:       make([]Value, cfg.InitialStackSize),
		globalFuncs: make(map[string]Value),
		globalVars:  make(map[string]Value),
	}
	vm.prog = vm
	vm.charCache = newCharCache(vm)
	return vm
}

// RegisterGlobalFunc adds a scripted closure to the global function
// table (§6 "Globals"); overwriting an existing entry replaces it.
func (vm *VM) RegisterGlobalFunc(name string, closure Value) {
	vm.globalFuncs[name] = closure
}

func (vm *VM) GlobalFunc(name string) (Value, bool) {
	v, ok := vm.globalFuncs[name]
	return v, ok
}

func (vm *VM) SetGlobalVar(name string, v Value) { vm.globalVars[name] = v }

func (vm *VM) GlobalVar(name string) (Value, bool) {
	v, ok := vm.globalVars[name]
	return v, ok
}

// LastError returns the error recorded by the most recent failed Run,
// or nil if the last run succeeded.
func (vm *VM) LastError() *VMError { return vm.lastError }

// BuildClosure wraps a FuncDef with no captured upvalues — the usual
// way to obtain a callable Value for a top-level function.
func (vm *VM) BuildClosure(fn *FuncDef) Value {
	cl := newClosure(fn)
	vm.linkObject(cl)
	return fromObject(KClosure, cl)
}
