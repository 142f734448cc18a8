package runtime

// ArrayObj is a dynamic vector of values, per §3.2/§4.3: contiguous
// storage, capacity doubling, never shrinks.
type ArrayObj struct {
	objHeader
	items []Value
}

func newArrayObj(cap int) *ArrayObj {
	if cap < 0 {
		cap = 0
	}
	return &ArrayObj{
		objHeader: objHeader{kind: KArray},
		items:     make([]Value, 0, cap),
	}
}

func (a *ArrayObj) Len() int { return len(a.items) }

func (a *ArrayObj) Get(i int) Value {
	if i < 0 || i >= len(a.items) {
		return Null
	}
	return a.items[i]
}

// reserveZeroed grows capacity by doubling from 16 and zero-fills any
// newly exposed slots up to n — the "zero-initialized growth" variant
// used by SETEL's auto-grow (§4.3).
func (a *ArrayObj) reserveZeroed(n int) {
	if n <= cap(a.items) {
		if n > len(a.items) {
			grown := a.items[:n]
			for i := len(a.items); i < n; i++ {
				grown[i] = Null
			}
			a.items = grown
		}
		return
	}
	newCap := nextArrayCap(cap(a.items), n, 16)
	grown := make([]Value, n, newCap)
	copy(grown, a.items)
	a.items = grown
}

// reserveUninit grows capacity by doubling from 8 without zeroing the
// new slots beyond the old length — used by NEWARRAY/APPEND, which
// immediately overwrite the newly exposed region.
func (a *ArrayObj) reserveUninit(n int) {
	if n <= cap(a.items) {
		a.items = a.items[:n]
		return
	}
	newCap := nextArrayCap(cap(a.items), n, 8)
	grown := make([]Value, n, newCap)
	copy(grown, a.items)
	a.items = grown
}

func nextArrayCap(cur, need, start int) int {
	if cur < start {
		cur = start
	}
	for cur < need {
		cur *= 2
	}
	return cur
}

// Set stores v at index i, auto-growing (never shrinking) the array if
// i is out of range, per §4.3's indexed-store rule.
func (a *ArrayObj) Set(i int, v Value) {
	if i >= len(a.items) {
		a.reserveZeroed(i + 1)
	}
	a.items[i] = v
}

// Append adds v to the end, growing via the uninitialized-growth path.
func (a *ArrayObj) Append(v Value) {
	n := len(a.items)
	a.reserveUninit(n + 1)
	a.items[n] = v
}

// Reset clears the array to empty without freeing backing storage.
func (a *ArrayObj) Reset() {
	for i := range a.items {
		a.items[i] = Null
	}
	a.items = a.items[:0]
}

// NewArray allocates a new, empty array on the VM heap with capacity
// for capHint items; its length starts at 0.
func (vm *VM) NewArray(capHint int) Value {
	vm.maybeCollect(32)
	obj := newArrayObj(capHint)
	vm.linkObject(obj)
	return fromObject(KArray, obj)
}
