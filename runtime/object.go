package runtime

// CObj is an opaque host pointer, §3.2's CObj shape. FreeCallback, if
// set, is invoked by the sweeper when the object is collected, giving
// host-owned resources (file handles, network sockets, ...) the same
// deterministic-at-sweep lifetime discipline as any other heap object
// (§9 "host-function callbacks that may outlive the host call").
type CObj struct {
	objHeader
	Ptr          any
	TypeTag      string
	FreeCallback func(ptr any)
}

func newCObj(ptr any, typeTag string, free func(any)) *CObj {
	return &CObj{
		objHeader:    objHeader{kind: KCObj},
		Ptr:          ptr,
		TypeTag:      typeTag,
		FreeCallback: free,
	}
}

// NewCObj allocates a host object on the VM heap.
func (vm *VM) NewCObj(ptr any, typeTag string, free func(any)) Value {
	vm.maybeCollect(16)
	obj := newCObj(ptr, typeTag, free)
	vm.linkObject(obj)
	return fromObject(KCObj, obj)
}

// IsCObjOfType reports whether v is a CObj tagged typeTag.
func IsCObjOfType(v Value, typeTag string) bool {
	return v.Kind == KCObj && v.AsCObj().TypeTag == typeTag
}
