package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrAddUpvalSharesOneSlotPerStackIndex(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(8)
	u1 := vm.findOrAddUpval(3)
	u2 := vm.findOrAddUpval(3)
	assert.Same(t, u1, u2, "two closures capturing the same register must share one upvalue")

	u3 := vm.findOrAddUpval(5)
	require.NotSame(t, u1, u3)
	assert.True(t, u1.stackIdx < u3.stackIdx)
}

func TestCloseUpvalsFromCopiesLiveValueAndDetaches(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(8)
	vm.stack[4] = Int(42)
	u := vm.findOrAddUpval(4)
	require.True(t, u.isOpen())

	vm.closeUpvalsFrom(4)
	assert.False(t, u.isOpen())
	assert.Equal(t, Int(42), *u.Val)

	vm.stack[4] = Int(999)
	assert.Equal(t, Int(42), *u.Val, "closing must snapshot the value, decoupling it from the stack slot")
	assert.Nil(t, vm.openUpvals, "closeUpvalsFrom must unlink the closed upvalue")
}

func TestCloseUpvalsFromOnlyClosesAtOrAboveBase(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(8)
	low := vm.findOrAddUpval(1)
	high := vm.findOrAddUpval(6)

	vm.closeUpvalsFrom(5)
	assert.False(t, high.isOpen())
	assert.True(t, low.isOpen(), "upvalues below base must remain open")
}

func TestBuildClosureBindsRegAndUpvalDescriptors(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(8)

	inner := NewFuncDef("inner", 0, 1, nil, nil, []UpvalDef{{Type: UpvalTypeReg, Num: 0}}, nil)
	outer := newClosure(NewFuncDef("outer", 0, 1, nil, nil, nil, nil))
	vm.frames = append(vm.frames, Frame{Closure: outer, Base: 0, StackTop: 4})

	cl := vm.buildClosure(inner, outer)
	require.Len(t, cl.Upvals, 1)
	assert.Equal(t, 0, cl.Upvals[0].stackIdx)
}
