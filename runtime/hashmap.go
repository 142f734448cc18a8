package runtime

import (
	"math"
	"unsafe"
)

// mapEntry mirrors §3.2's MapEntry shape; an entry is occupied iff its
// key's tag is not NULL.
type mapEntry struct {
	key Value
	val Value
}

func (e *mapEntry) occupied() bool { return e.key.Kind != KNull }

// MapObj is the open-addressed, power-of-two hash map of §4.4: linear
// probing, load factor <= 0.75, Robin-Hood-style backward-shift
// deletion, integer/float key aliasing.
//
// NaN keys follow the "NaN != NaN" resolution recorded in SPEC_FULL.md
// §9: a NaN can be inserted (it hashes via its bit pattern), but Equal
// is false for every pair of NaN values, including a NaN and itself, so
// no lookup ever finds a NaN key and each insert of one adds a new entry.
type MapObj struct {
	objHeader
	entries []mapEntry
	count   int
}

func newMapObj() *MapObj {
	return &MapObj{objHeader: objHeader{kind: KMap}}
}

func (m *MapObj) Len() int { return m.count }
func (m *MapObj) Cap() int { return len(m.entries) }

// hashInt32Mix is the multiply-xor-shift finalizer named in §4.4,
// applied to the 32-bit value being hashed.
func hashInt32Mix(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

func hashInt64(i int64) uint32 {
	u := uint64(i)
	return hashInt32Mix(uint32(u) ^ uint32(u>>32))
}

// isInt32Double reports whether x is a finite value that round-trips
// exactly through int32, per §4.4's float/int key-aliasing rule.
func isInt32Double(x float64) (int32, bool) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	if x < math.MinInt32 || x > math.MaxInt32 {
		return 0, false
	}
	i := int32(x)
	return i, float64(i) == x
}

func hashValue(v Value) uint32 {
	switch v.Kind {
	case KString:
		return v.AsString().hash
	case KInteger:
		return hashInt64(v.AsInt())
	case KFloat:
		f := v.AsFloat()
		if i, ok := isInt32Double(f); ok {
			return hashInt64(int64(i))
		}
		bits := math.Float64bits(f)
		return hashInt32Mix(uint32(bits) ^ uint32(bits>>32))
	case KBool:
		if v.AsBool() {
			return hashInt32Mix(1)
		}
		return hashInt32Mix(0)
	case KCFunc:
		return hashInt32Mix(uint32(uintptr(unsafe.Pointer(v.cfn))))
	default:
		p := pointerOf(v.obj)
		return hashInt32Mix(uint32(p) ^ uint32(p>>32))
	}
}

func pointerOf(o Object) uintptr {
	switch t := o.(type) {
	case *StringObj:
		return uintptr(unsafe.Pointer(t))
	case *ArrayObj:
		return uintptr(unsafe.Pointer(t))
	case *MapObj:
		return uintptr(unsafe.Pointer(t))
	case *Closure:
		return uintptr(unsafe.Pointer(t))
	case *FuncDef:
		return uintptr(unsafe.Pointer(t))
	case *Upval:
		return uintptr(unsafe.Pointer(t))
	case *CObj:
		return uintptr(unsafe.Pointer(t))
	default:
		return 0
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// findSlot returns the index of the slot that key occupies, or the
// first empty slot where it would be inserted. cap must be a power of
// two and > 0.
func (m *MapObj) findSlot(key Value, h uint32) int {
	capMask := uint32(len(m.entries) - 1)
	i := h & capMask
	for {
		e := &m.entries[i]
		if !e.occupied() || e.key.Equal(key) {
			return int(i)
		}
		i = (i + 1) & capMask
	}
}

// findSlotInsertOnly is used while rehashing into a larger table: the
// source table already deduplicated keys, so only empty-slot
// termination is needed (§4.4 "Insert policy").
func (m *MapObj) findSlotInsertOnly(h uint32) int {
	capMask := uint32(len(m.entries) - 1)
	i := h & capMask
	for m.entries[i].occupied() {
		i = (i + 1) & capMask
	}
	return int(i)
}

func (m *MapObj) rebuild(newCap int) {
	old := m.entries
	m.entries = make([]mapEntry, newCap)
	for i := range old {
		if !old[i].occupied() {
			continue
		}
		idx := m.findSlotInsertOnly(hashValue(old[i].key))
		m.entries[idx] = old[i]
	}
}

// Get performs a lookup; returns (value, true) if present.
func (m *MapObj) Get(key Value) (Value, bool) {
	if len(m.entries) == 0 {
		return Null, false
	}
	idx := m.findSlot(key, hashValue(key))
	e := &m.entries[idx]
	if !e.occupied() {
		return Null, false
	}
	return e.val, true
}

// errNullMapKey is returned by Add when asked to insert a NULL key,
// which §4.4 forbids.
var errNullMapKey = newStructuralError("map key must not be null")

// Add inserts or updates key -> val, growing the table if the 0.75
// load factor would otherwise be exceeded.
func (m *MapObj) Add(key, val Value) error {
	if key.Kind == KNull {
		return errNullMapKey
	}
	if len(m.entries) == 0 {
		m.entries = make([]mapEntry, 16)
	} else if (m.count+1)*4 > len(m.entries)*3 {
		m.rebuild(len(m.entries) * 2)
	}
	idx := m.findSlot(key, hashValue(key))
	e := &m.entries[idx]
	if e.occupied() {
		e.val = val
		return nil
	}
	e.key = key
	e.val = val
	m.count++
	return nil
}

// Delete removes key via backward-shift (Robin Hood) deletion, per
// §4.4's wrap-aware arc test.
func (m *MapObj) Delete(key Value) bool {
	if len(m.entries) == 0 {
		return false
	}
	capMask := len(m.entries) - 1
	i := m.findSlot(key, hashValue(key))
	if !m.entries[i].occupied() {
		return false
	}
	m.entries[i] = mapEntry{}
	m.count--

	j := i
	for {
		j = (j + 1) & capMask
		if !m.entries[j].occupied() {
			return true
		}
		k := int(hashValue(m.entries[j].key)) & capMask
		reachable := arcContains(i, j, k)
		if !reachable {
			m.entries[i] = m.entries[j]
			m.entries[j] = mapEntry{}
			i = j
		}
	}
}

// arcContains reports whether k lies in the wrap-aware half-open arc
// (i, j] used by backward-shift deletion to decide whether a follower
// entry is still reachable from its natural home without moving it.
func arcContains(i, j, k int) bool {
	if i < j {
		return i < k && k <= j
	}
	return i < k || k <= j
}

// NextKey implements map iteration: given the previous key (or Null),
// find the slot after it and return the next occupied key, or Null.
func (m *MapObj) NextKey(prev Value) Value {
	if len(m.entries) == 0 {
		return Null
	}
	start := 0
	if prev.Kind != KNull {
		idx := m.findSlot(prev, hashValue(prev))
		if !m.entries[idx].occupied() {
			return Null
		}
		start = idx + 1
	}
	for i := start; i < len(m.entries); i++ {
		if m.entries[i].occupied() {
			return m.entries[i].key
		}
	}
	return Null
}

// Extend copies every entry from src whose key is absent from m
// ("child entries win over parent", §4.4).
func (m *MapObj) Extend(src *MapObj) error {
	for i := range src.entries {
		e := &src.entries[i]
		if !e.occupied() {
			continue
		}
		if _, exists := m.Get(e.key); exists {
			continue
		}
		if err := m.Add(e.key, e.val); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all occupied slots to NULL keys, keeping backing storage.
func (m *MapObj) Reset() {
	for i := range m.entries {
		m.entries[i] = mapEntry{}
	}
	m.count = 0
}

// NewMap allocates a new map on the VM heap.
func (vm *VM) NewMap() Value {
	vm.maybeCollect(32)
	obj := newMapObj()
	vm.linkObject(obj)
	return fromObject(KMap, obj)
}
