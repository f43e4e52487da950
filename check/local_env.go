package check

import "github.com/ckitagawa/chocopyc"

// SlotKind tags how an identifier resolves within a function body:
// a plain local, a nested function, the sentinel marking "this name
// is the global of the same name" (see LocalEnv.Get), or "declared
// nonlocal in this frame, resolve in an enclosing one".
type SlotKind int

const (
	SlotLocal SlotKind = iota
	SlotFunc
	SlotGlobal
	SlotNonLocal
)

type Slot struct {
	Kind SlotKind
	Type chocopy.ValueType // meaningful for SlotLocal
	Func chocopy.FuncType  // meaningful for SlotFunc
}

// LocalEnv is a stack of frames, one per lexically enclosing function
// plus frame 0 for the module's globals. Resolution walks outward
// from the innermost frame: reading a name needs no declaration, while
// assigning to one owned by another frame needs a global or nonlocal
// declaration in the current frame.
type LocalEnv struct {
	frames []map[string]Slot
}

func NewLocalEnv(globals map[string]Slot) *LocalEnv {
	return &LocalEnv{frames: []map[string]Slot{globals}}
}

func (o *LocalEnv) Push(frame map[string]Slot) {
	o.frames = append(o.frames, frame)
}

func (o *LocalEnv) Pop() {
	o.frames = o.frames[:len(o.frames)-1]
}

// Get resolves name from the innermost frame outward. The returned
// bool reports whether the name may be assigned to from the current
// frame: true for the frame's own locals, for names it declares global,
// and for names it declares nonlocal that resolve to an enclosing
// local; false for functions and for names reached without a
// declaration.
func (o *LocalEnv) Get(name string) (Slot, bool, bool) {
	top := o.frames[len(o.frames)-1]
	switch slot, ok := top[name]; {
	case ok && slot.Kind == SlotLocal:
		return slot, true, true
	case ok && slot.Kind == SlotFunc:
		return slot, false, true
	case ok && slot.Kind == SlotGlobal:
		g := o.frames[0][name]
		return g, true, true
	default:
		// SlotNonLocal or absent: search outward.
		declaredNonLocal := ok && slot.Kind == SlotNonLocal
		for i := len(o.frames) - 2; i >= 0; i-- {
			frame := o.frames[i]
			fs, present := frame[name]
			if !present || fs.Kind == SlotNonLocal {
				continue
			}
			switch fs.Kind {
			case SlotGlobal:
				g := o.frames[0][name]
				return g, false, true
			case SlotLocal:
				return fs, declaredNonLocal, true
			case SlotFunc:
				return fs, false, true
			}
		}
		return Slot{}, false, false
	}
}
