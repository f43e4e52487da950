package codegen

import (
	"sort"

	"github.com/ckitagawa/chocopyc"
)

// slotKind tags how genexpr/genstmt reach a named value: a frame-
// relative load, a static-link walk to an enclosing frame, or the
// fixed global-section offset.
type slotKind int

const (
	slotParam slotKind = iota
	slotLocal
	slotGlobal
	slotFunc // a nested function or top-level function, called directly
)

type frameSlot struct {
	kind      slotKind
	offset    int32 // meaningful for slotParam/slotLocal/slotGlobal
	valueType chocopy.ValueType
	level     int // lexical level the slot lives at; used to size the static-link walk
	funcName  string
}

// Frame tracks one function's parameter/local layout while genstmt
// and genexpr walk its body: names resolve to a frameSlot, and the
// running cursor hands out the next free local slot.
type Frame struct {
	level     int
	slots     map[string]frameSlot
	nextLocal int32 // next free local offset, counting down from -16
	parent    *Frame
	globals   map[string]frameSlot
}

func newFrame(level int, parent *Frame, globals map[string]frameSlot) *Frame {
	return &Frame{level: level, slots: map[string]frameSlot{}, nextLocal: -16, parent: parent, globals: globals}
}

// bindParams lays parameters out at [rbp+16], [rbp+24], ... in
// declaration order, per the frame layout every chunk shares.
func (f *Frame) bindParams(params []chocopy.Param) {
	for i, p := range params {
		f.slots[p.Name] = frameSlot{
			kind:      slotParam,
			offset:    int32(16 + 8*i),
			valueType: valueTypeOf(p.Type),
			level:     f.level,
		}
	}
}

// allocLocal reserves the next local slot for name.
func (f *Frame) allocLocal(name string, vt chocopy.ValueType) frameSlot {
	s := frameSlot{kind: slotLocal, offset: f.nextLocal, valueType: vt, level: f.level}
	f.nextLocal -= 8
	f.slots[name] = s
	return s
}

func (f *Frame) bindFunc(name string, level int) {
	f.slots[name] = frameSlot{kind: slotFunc, level: level, funcName: name}
}

// nonPrimitiveSlots returns the frame offsets of every refcounted
// parameter and local this frame directly owns (globals and borrowed
// `global`/`nonlocal` bindings are excluded — their lifetime belongs
// to the frame that actually declared them), sorted so the generated
// clean-up sequence is deterministic across runs.
func (f *Frame) nonPrimitiveSlots() []int32 {
	var offs []int32
	for _, s := range f.slots {
		if (s.kind == slotParam || s.kind == slotLocal) && !isPrimitive(s.valueType) {
			offs = append(offs, s.offset)
		}
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	return offs
}

func (f *Frame) bindGlobalRef(name string) {
	if s, ok := f.globals[name]; ok {
		f.slots[name] = s
	}
}

// lookup resolves name starting from f and walking outward through
// enclosing frames, returning the slot and how many static-link hops
// away its frame is (0 = this frame).
func (f *Frame) lookup(name string) (frameSlot, int, bool) {
	hops := 0
	for cur := f; cur != nil; cur = cur.parent {
		if s, ok := cur.slots[name]; ok {
			return s, hops, true
		}
		hops++
	}
	if s, ok := f.globals[name]; ok {
		return s, -1, true // -1 signals "use the fixed global base, no link walk"
	}
	return frameSlot{}, 0, false
}

func valueTypeOf(t chocopy.TypeAnnotation) chocopy.ValueType {
	switch a := t.(type) {
	case *chocopy.ClassType:
		return chocopy.ClassType_(a.Name)
	case *chocopy.ListType:
		return chocopy.ListType_(valueTypeOf(a.Elem))
	}
	return chocopy.ClassType_(chocopy.ClassObject)
}

// isPrimitive reports whether vt is carried by value (int/bool) as
// opposed to a reference-counted pointer.
func isPrimitive(vt chocopy.ValueType) bool {
	return !vt.IsList() && (vt.ClassName == chocopy.ClassInt || vt.ClassName == chocopy.ClassBool)
}

// loadStaticLink emits the chain of R10 dereferences needed to reach
// a frame `hops` enclosing-function calls away from the current one,
// leaving that frame's base pointer in dst. hops==0 uses RBP
// directly; the walk otherwise starts from the current frame's own
// saved static link at [rbp-8].
func (a *Asm) loadStaticLink(dst Reg, hops int) {
	if hops == 0 {
		a.MovRegReg(dst, RBP)
		return
	}
	a.MovLoad(dst, RBP, -8)
	for i := 1; i < hops; i++ {
		a.MovLoad(dst, dst, -8)
	}
}
