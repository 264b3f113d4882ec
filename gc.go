package tiny

// Heap owns every VString/VNative/VStruct Value's backing HeapObject and
// runs mark-and-sweep collection over them. Grounded on tiny/src/vm.c's
// State object list plus GC_mark/GC_sweep; string objects additionally
// retain/release through the shared StringPool so interned text is only
// freed once nothing on any heap references it.
type Heap struct {
	head       *HeapObject
	numObjects int
	maxObjects int
	growth     float64

	pool *StringPool
}

func NewHeap(maxObjects int, growth float64, pool *StringPool) *Heap {
	return &Heap{maxObjects: maxObjects, growth: growth, pool: pool}
}

func (h *Heap) alloc(kind ValueKind) *HeapObject {
	obj := &HeapObject{kind: kind, next: h.head}
	h.head = obj
	h.numObjects++
	return obj
}

func (h *Heap) NewString(ref *StringRef) Value {
	obj := h.alloc(VString)
	obj.str = ref
	h.pool.Retain(ref)
	return Value{Kind: VString, obj: obj}
}

func (h *Heap) NewStruct(numFields int) Value {
	obj := h.alloc(VStruct)
	obj.fields = make([]Value, numFields)
	return Value{Kind: VStruct, obj: obj}
}

func (h *Heap) NewNative(data any, prop *NativeProp) Value {
	obj := h.alloc(VNative)
	obj.nat = data
	obj.prop = prop
	return Value{Kind: VNative, obj: obj}
}

// ShouldCollect reports whether the heap has grown past its trigger
// threshold, the way State.numObjects > State.maxObjects gates a
// collection in the original.
func (h *Heap) ShouldCollect() bool { return h.numObjects > h.maxObjects }

// mark walks v and everything reachable from it, flagging each HeapObject
// visited exactly once (a struct cycle through its own fields is safe).
func (h *Heap) mark(v Value) {
	if v.obj == nil || v.obj.marked {
		return
	}
	v.obj.marked = true
	switch v.Kind {
	case VStruct:
		for _, field := range v.obj.fields {
			h.mark(field)
		}
	case VNative:
		if v.obj.prop != nil && v.obj.prop.ProtectFromGC != nil {
			v.obj.prop.ProtectFromGC(v.obj.nat, h.mark)
		}
	}
}

func (h *Heap) free(obj *HeapObject) {
	switch obj.kind {
	case VString:
		h.pool.Release(obj.str)
	case VNative:
		if obj.prop != nil && obj.prop.Finalize != nil {
			obj.prop.Finalize(obj.nat)
		}
	}
}

// sweep unlinks and frees every unmarked object, then clears the mark bit
// on every survivor so the next cycle starts clean.
func (h *Heap) sweep() {
	var prev *HeapObject
	obj := h.head
	for obj != nil {
		next := obj.next
		if !obj.marked {
			if prev == nil {
				h.head = next
			} else {
				prev.next = next
			}
			h.free(obj)
			h.numObjects--
		} else {
			obj.marked = false
			prev = obj
		}
		obj = next
	}
}

// Collect runs one mark-and-sweep cycle. markRoots is called once with the
// mark function so the caller (a Thread) can feed in every GC root it
// holds: operand stack slots, globals, the retval register, and live call
// frames. After a collection maxObjects grows to growth times the
// surviving count, so the next collection only triggers once the heap has
// grown meaningfully again.
func (h *Heap) Collect(markRoots func(mark func(Value))) {
	markRoots(h.mark)
	h.sweep()
	grown := int(float64(h.numObjects) * h.growth)
	if grown > h.maxObjects {
		h.maxObjects = grown
	}
}
