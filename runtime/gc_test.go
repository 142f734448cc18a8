package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectSweepsUnreachableAndKeepsReachable(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(4)

	reachable := vm.NewString("kept")
	vm.stack[0] = reachable
	vm.frames = append(vm.frames, Frame{Base: 0, StackTop: 1})

	_ = vm.NewString("garbage")
	before := vm.liveObjects
	vm.Collect()

	assert.Less(t, vm.liveObjects, before, "the unreachable string must be swept")
	assert.Equal(t, "kept", reachable.AsString().GoString(), "the reachable string must survive")
}

func TestPinKeepsObjectAliveAcrossCollect(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(1)
	vm.frames = append(vm.frames, Frame{Base: 0, StackTop: 0})

	pinned := vm.NewString("pinned")
	vm.PinObject(pinned.Object())

	vm.Collect()
	assert.True(t, pinned.Object().header().pinned())

	vm.UnpinObject(pinned.Object())
	assert.Equal(t, PinState(0), vm.GetPinState())
}

func TestRestorePinStateUnpinsEverythingPastTheSnapshot(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(1)
	vm.frames = append(vm.frames, Frame{Base: 0, StackTop: 0})

	snap := vm.GetPinState()
	a := vm.NewString("a")
	b := vm.NewString("b")
	vm.PinObject(a.Object())
	vm.PinObject(b.Object())

	vm.RestorePinState(snap)
	assert.False(t, a.Object().header().pinned())
	assert.False(t, b.Object().header().pinned())
	require.Equal(t, snap, vm.GetPinState())
}

func TestMarkObjectTracesArrayElements(t *testing.T) {
	vm := NewProgram(nil, nil)
	vm.ensureStackSize(1)

	arr := vm.NewArray(0)
	inner := vm.NewString("nested")
	arr.AsArray().Append(inner)

	vm.stack[0] = arr
	vm.frames = append(vm.frames, Frame{Base: 0, StackTop: 1})

	vm.Collect()
	assert.Equal(t, "nested", inner.AsString().GoString(), "array-held strings must be reachable through the array")
}
