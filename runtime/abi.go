package runtime

// HostFunc is the Go shape of the host-function ABI (§6). The C ABI is
// (prog, ret_slot, args, n_args) -> i32, with the host writing its
// result into *ret_slot and a negative return signaling a user error.
// In Go the VM's CALL handler owns writing the result register, so a
// host function instead returns (Value, error) directly: the returned
// Value is what the VM stores into ret_slot, and a non-nil error is
// the negative-return-code case, carrying the message the C ABI would
// have set via fh_set_error.
type HostFunc func(vm *VM, args []Value) (Value, *VMError)

// RegisterHostFunc installs a named host function into the program's
// global function table, callable from scripted code as a C_FUNC value.
func (p *Program) RegisterHostFunc(name string, fn HostFunc) {
	p.globalFuncs[name] = fromCFunc(&CFunc{Name: name, Fn: fn})
}

func IsInteger(v Value) bool { return v.Kind == KInteger }
func IsNumber(v Value) bool  { return v.IsNumber() }
func IsString(v Value) bool  { return v.Kind == KString }

// AsI64 coerces a numeric value to int64, truncating floats.
func AsI64(v Value) (int64, bool) {
	switch v.Kind {
	case KInteger:
		return v.AsInt(), true
	case KFloat:
		return int64(v.AsFloat()), true
	default:
		return 0, false
	}
}

// OptNumber returns args[i] as a float64 if present and numeric,
// otherwise def. Mirrors fh_optnumber in the original ABI helpers.
func OptNumber(args []Value, i int, def float64) float64 {
	if i >= len(args) || !args[i].IsNumber() {
		return def
	}
	return args[i].AsNumber()
}

// OptBool mirrors fh_optboolean.
func OptBool(args []Value, i int, def bool) bool {
	if i >= len(args) {
		return def
	}
	v := args[i]
	if v.Kind != KBool {
		return def
	}
	return v.AsBool()
}

// OptString mirrors fh_optstring.
func OptString(args []Value, i int, def string) string {
	if i >= len(args) || args[i].Kind != KString {
		return def
	}
	return args[i].AsString().GoString()
}

// OptCObj mirrors fh_optcobj: returns the CObj's Ptr if args[i] is a
// CObj tagged typeTag, else def.
func OptCObj(args []Value, i int, typeTag string, def any) any {
	if i >= len(args) || !IsCObjOfType(args[i], typeTag) {
		return def
	}
	return args[i].AsCObj().Ptr
}

// RequireNumber validates args[i] is numeric, raising a type error
// named after fn otherwise.
func RequireNumber(fn string, args []Value, i int) (float64, *VMError) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, newTypeError("%s requires a numeric argument at position %d", fn, i)
	}
	return args[i].AsNumber(), nil
}

// RequireString validates args[i] is a string.
func RequireString(fn string, args []Value, i int) (string, *VMError) {
	if i >= len(args) || args[i].Kind != KString {
		return "", newTypeError("%s requires a string argument at position %d", fn, i)
	}
	return args[i].AsString().GoString(), nil
}
