package runtime

// gc.go implements the allocation-triggered mark/sweep collector of
// §4.1. The literal C `fh_collect_garbage` body was not present in the
// retrieved original source (only its call sites survived filtering);
// this implementation is built from the spec's prose description of
// allocation, root enumeration order, marking and sweeping, combined
// with the concrete object-header/root-field shapes that are present
// in value.h/value.c/program.h (see DESIGN.md).

// linkObject threads a freshly allocated object into the global object
// list and clears its gc bits — steps (c) and (d) of the allocator
// sequence in §4.1. Pinning (step e) is left to the caller, since only
// some allocation sites pin immediately (e.g. the char cache).
func (vm *VM) linkObject(o Object) {
	h := o.header()
	h.next = vm.objects
	h.bits = 0
	vm.objects = o
	vm.liveObjects++
}

// maybeCollect is step (a) of the allocator sequence: if the
// allocation-bytes counter exceeds the configured threshold and GC is
// not paused, run a collection and reset the counter.
func (vm *VM) maybeCollect(approxBytes int) {
	vm.gcFrequency += approxBytes
	if vm.gcPaused || vm.gcFrequency < vm.config.GCCollectAt {
		return
	}
	vm.Collect()
	vm.gcFrequency = 0
}

// Collect runs one mark/sweep cycle. It is synchronous and can only be
// invoked from an allocation point (§5), so every Value reachable
// through a live register is safe across it.
func (vm *VM) Collect() {
	vm.logger.Debugf("gc: collection start (live=%d)", vm.liveObjects)
	vm.markRoots()
	vm.sweep()
	vm.logger.Debugf("gc: collection done (live=%d)", vm.liveObjects)
}

// markRoots enumerates roots in the order given by §4.1 and marks
// everything reachable from them.
func (vm *VM) markRoots() {
	// 1. Every occupied slot of the value stack up to the top frame's stack_top.
	if len(vm.frames) > 0 {
		top := vm.frames[len(vm.frames)-1].StackTop
		for i := 0; i < top && i < len(vm.stack); i++ {
			vm.markValue(vm.stack[i])
		}
	}
	// 2. Every live Closure referenced by a call frame.
	for i := range vm.frames {
		if vm.frames[i].Closure != nil {
			vm.markObject(vm.frames[i].Closure)
		}
	}
	// 3. The pin stack.
	for _, o := range vm.pinStack {
		vm.markObject(o)
	}
	// 4. The c_vals list.
	for _, o := range vm.cVals {
		vm.markObject(o)
	}
	// 5. Global function table and global variable table.
	for _, v := range vm.prog.globalFuncs {
		vm.markValue(v)
	}
	for _, v := range vm.prog.globalVars {
		vm.markValue(v)
	}
	// 6. Open upvalues linked list.
	for u := vm.openUpvals; u != nil; u = u.nextOpen {
		vm.markObject(u)
	}
}

func (vm *VM) markValue(v Value) {
	if v.Kind == KCFunc || v.obj == nil {
		return
	}
	vm.markObject(v.obj)
}

// markObject performs the depth-first trace described in §4.1's
// "Mark" paragraph. A small worklist avoids unbounded Go-stack
// recursion on deep container graphs.
func (vm *VM) markObject(o Object) {
	h := o.header()
	if h.marked() {
		return
	}
	h.setMark()

	worklist := []Object{o}
	for len(worklist) > 0 {
		n := len(worklist) - 1
		cur := worklist[n]
		worklist = worklist[:n]

		switch t := cur.(type) {
		case *StringObj:
			// no outgoing references
		case *ArrayObj:
			for _, v := range t.items {
				if v.Kind != KCFunc && v.obj != nil && !v.obj.header().marked() {
					v.obj.header().setMark()
					worklist = append(worklist, v.obj)
				}
			}
		case *MapObj:
			for i := range t.entries {
				e := &t.entries[i]
				if !e.occupied() {
					continue
				}
				for _, v := range [2]Value{e.key, e.val} {
					if v.Kind != KCFunc && v.obj != nil && !v.obj.header().marked() {
						v.obj.header().setMark()
						worklist = append(worklist, v.obj)
					}
				}
			}
		case *FuncDef:
			for _, v := range t.Consts {
				if v.Kind != KCFunc && v.obj != nil && !v.obj.header().marked() {
					v.obj.header().setMark()
					worklist = append(worklist, v.obj)
				}
			}
		case *Closure:
			if t.FuncDef != nil && !t.FuncDef.marked() {
				t.FuncDef.setMark()
				worklist = append(worklist, t.FuncDef)
			}
			for _, u := range t.Upvals {
				if u != nil && !u.marked() {
					u.setMark()
					worklist = append(worklist, u)
				}
			}
		case *Upval:
			if t.Val != nil {
				v := *t.Val
				if v.Kind != KCFunc && v.obj != nil && !v.obj.header().marked() {
					v.obj.header().setMark()
					worklist = append(worklist, v.obj)
				}
			}
		case *CObj:
			// opaque to the tracer
		}
	}
}

// sweep walks the global object list freeing everything unmarked and
// unpinned, invoking type-specific finalizers, then clears surviving
// marks (§4.1 "Sweep").
func (vm *VM) sweep() {
	var head Object
	var tail Object
	var live int

	for o := vm.objects; o != nil; {
		h := o.header()
		next := h.next
		if h.marked() || h.pinned() {
			h.clearMark()
			h.next = nil
			if head == nil {
				head = o
				tail = o
			} else {
				tail.header().next = o
				tail = o
			}
			live++
		} else {
			vm.finalize(o)
		}
		o = next
	}
	vm.objects = head
	vm.liveObjects = live
}

// finalize releases any resources an object's type-specific finalizer
// would in the original (free_array/free_map/free_closure/...); in Go,
// slices are reclaimed by the Go GC once unreferenced, so the only
// finalizer with an observable side effect is CObj's FreeCallback.
func (vm *VM) finalize(o Object) {
	if c, ok := o.(*CObj); ok && c.FreeCallback != nil {
		c.FreeCallback(c.Ptr)
	}
}

// PinObject / UnpinObject implement GC_PIN_OBJ / GC_UNPIN_OBJ: explicit
// anchors used during multi-step object construction.
func (vm *VM) PinObject(o Object) {
	o.header().setPin()
	vm.pinStack = append(vm.pinStack, o)
}

func (vm *VM) UnpinObject(o Object) {
	o.header().clearPin()
	for i := len(vm.pinStack) - 1; i >= 0; i-- {
		if vm.pinStack[i] == o {
			vm.pinStack = append(vm.pinStack[:i], vm.pinStack[i+1:]...)
			return
		}
	}
}

// PinState is a snapshot of the pin stack's depth, per §4.1's pin
// protocol: host functions snapshot it on entry and restore it on exit.
type PinState int

func (vm *VM) GetPinState() PinState { return PinState(len(vm.pinStack)) }

func (vm *VM) RestorePinState(s PinState) {
	for i := int(s); i < len(vm.pinStack); i++ {
		vm.pinStack[i].header().clearPin()
	}
	vm.pinStack = vm.pinStack[:s]
}

// PushCVal registers a heap value created by a host "new_string/
// new_array/new_map" wrapper so it survives collections for the
// duration of the current host call (§4.1 root #4).
func (vm *VM) PushCVal(o Object) { vm.cVals = append(vm.cVals, o) }

func (vm *VM) ResetCVals() { vm.cVals = vm.cVals[:0] }
