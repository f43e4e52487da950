// Package runtime hand-assembles the fixed set of procedures and data
// tables every compiled program links against: allocation, the
// print/len/input built-ins, list and string indexing, and the
// special prototypes for bool/int/str/list. It is emitted with the
// same codegen.Asm encoder user code goes through rather than shelling
// out to a separate toolchain, and leans on the host libc (malloc,
// free, printf, memcpy, exit) for the handful of things no part of
// this pipeline wants to reimplement — the allocator and syscalls.
package runtime

import (
	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/ckitagawa/chocopyc/object"
)

// Chunks returns every built-in procedure and data table as a flat
// list of codegen.Chunks, ready to append to a Generate-produced
// CodeSet before handing everything to the object writer.
func Chunks() []*codegen.Chunk {
	var out []*codegen.Chunk
	out = append(out, specialPrototypes()...)
	out = append(out, allocProcs()...)
	out = append(out, collectionProcs()...)
	out = append(out, ioProcs()...)
	out = append(out, trapProcs()...)
	out = append(out, boxProcs()...)
	out = append(out, processEntry()...)
	return out
}

func specialPrototypes() []*codegen.Chunk {
	var chunks []*codegen.Chunk
	for name, layout := range object.SpecialPrototypes {
		body := make([]byte, object.PrototypeHeaderSize)
		putI32(body, object.PrototypeSizeOffset, int32(layout.Size))
		putI32(body, object.PrototypeTagOffset, int32(layout.Tag))
		links := []codegen.Link{
			{Offset: object.PrototypeDtorOffset, Symbol: "$default_dtor", Size: 8, Kind: codegen.LinkAbsolute64},
			{Offset: object.PrototypeInitOffset, Symbol: "$default_dtor", Size: 8, Kind: codegen.LinkAbsolute64},
		}
		chunks = append(chunks, codegen.NewDataChunk(name, body, links))
	}
	return chunks
}

func putI32(b []byte, off int, v int32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// bumpAllocCount adjusts the live-object counter at $alloc_count by
// delta, clobbering RAX/RCX/RDX. Every allocation site (the $alloc_*
// procs, $box_*, $index_str, $concat_str, $concat_list) and $free_obj
// call this so processEntry can check the count is back to zero once
// $chocopy_main returns.
func bumpAllocCount(a *codegen.Asm, delta int32) {
	a.LeaSymbol(codegen.RCX, "$alloc_count")
	a.MovLoad(codegen.RDX, codegen.RCX, 0)
	a.MovRegImm32(codegen.RAX, delta)
	a.AddRegReg(codegen.RDX, codegen.RAX)
	a.MovStore(codegen.RCX, 0, codegen.RDX)
}

// allocProcs builds $alloc_obj, $alloc_array, $alloc_str and $drop_obj
// on top of libc malloc/free, matching the object model's header
// layout documented in package object.
func allocProcs() []*codegen.Chunk {
	var chunks []*codegen.Chunk

	// $alloc_count: the number of live heap objects, bumped by every
	// $alloc_* proc and $free_obj; processEntry checks it against zero
	// once $chocopy_main returns.
	chunks = append(chunks, codegen.NewDataChunk("$alloc_count", make([]byte, 8), nil))

	// $alloc_obj(proto) -> ptr
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16) // proto
		a.MovLoad32(codegen.RAX, codegen.RCX, int32(object.PrototypeSizeOffset))
		a.AddRegImm32(codegen.RAX, int32(object.ObjectHeaderSize))
		a.PushReg(codegen.RCX)
		a.PushReg(codegen.RAX)
		a.CallSymbol("malloc")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RCX)
		a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RCX)
		a.MovRegImm32(codegen.RDX, 1)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RDX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, 1)
		a.PopReg(codegen.RAX)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$alloc_obj"))
	}

	// $alloc_array(proto, n) -> ptr; proto.Size carries the negated
	// element width for both plain-value and ref-holding arrays.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)  // proto
		a.MovLoad32(codegen.RDX, codegen.RBP, 24) // n
		a.MovLoad32(codegen.RAX, codegen.RCX, int32(object.PrototypeSizeOffset))
		a.Neg32(codegen.RAX) // elemSize = -Size
		a.IMulRegReg32(codegen.RAX, codegen.RDX)
		a.AddRegImm32(codegen.RAX, int32(object.ArrayHeaderSize))
		a.PushReg(codegen.RCX)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RAX)
		a.CallSymbol("malloc")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RDX)
		a.PopReg(codegen.RCX)
		a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RCX)
		a.MovRegImm32(codegen.RCX, 1)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RCX)
		a.MovStore32(codegen.RAX, int32(object.ArrayLenOffset), codegen.RDX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, 1)
		a.PopReg(codegen.RAX)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$alloc_array"))
	}

	// $alloc_str(litptr) -> ptr; litptr addresses a [len:u32][bytes...]
	// data chunk such as internString emits.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RCX, codegen.RBP, 16)
		a.MovLoad32(codegen.RDX, codegen.RCX, 0) // length
		a.MovRegReg32(codegen.RAX, codegen.RDX)
		a.AddRegImm32(codegen.RAX, int32(object.ArrayHeaderSize))
		a.PushReg(codegen.RCX)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RAX)
		a.CallSymbol("malloc")
		a.AddRegImm32(codegen.RSP, 8)
		a.PopReg(codegen.RDX)
		a.PopReg(codegen.RCX)
		a.LeaSymbol(codegen.RDI, object.StrPrototype)
		a.MovStore(codegen.RAX, int32(object.ObjectPrototypeOffset), codegen.RDI)
		a.MovRegImm32(codegen.RDI, 1)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RDI)
		a.MovStore32(codegen.RAX, int32(object.ArrayLenOffset), codegen.RDX)
		a.Lea(codegen.RDI, codegen.RAX, int32(object.ArrayHeaderSize))
		a.Lea(codegen.RSI, codegen.RCX, 4)
		// Push order puts RDI (dest) nearest the return address, then
		// RSI (src), then RDX (n) as memcpy's three arguments; RAX (the
		// object pointer memcpy will clobber) rides along underneath as
		// plain stack storage and is popped back once the call returns.
		a.PushReg(codegen.RAX)
		a.PushReg(codegen.RDX)
		a.PushReg(codegen.RSI)
		a.PushReg(codegen.RDI)
		a.CallSymbol("memcpy")
		a.AddRegImm32(codegen.RSP, 24)
		a.PopReg(codegen.RAX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, 1)
		a.PopReg(codegen.RAX)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$alloc_str"))
	}

	// $clone_obj(ptr) -> ptr: hands out a second owning reference to an
	// already-live object by incrementing its refcount; a nil ptr
	// passes through untouched.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RAX, codegen.RBP, 16)
		a.CmpRegImm32(codegen.RAX, 0)
		done := a.NewLabel()
		a.Jcc(codegen.CondE, done)
		a.MovLoad(codegen.RCX, codegen.RAX, int32(object.ObjectRefCountOffset))
		a.MovRegImm32(codegen.RDX, 1)
		a.AddRegReg(codegen.RCX, codegen.RDX)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RCX)
		a.Bind(done)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$clone_obj"))
	}

	// $free_obj(ptr): the destructor half of the drop protocol, called
	// by $drop_obj once a refcount reaches zero. Asserts the refcount
	// is actually zero, runs the object's destructor, then returns its
	// block to the allocator. Attribute-graph teardown below the
	// object's own fields is left to the per-class dtor, not this proc.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RAX, codegen.RBP, 16)
		a.MovLoad(codegen.RCX, codegen.RAX, int32(object.ObjectRefCountOffset))
		a.CmpRegImm32(codegen.RCX, 0)
		ok := a.NewLabel()
		a.Jcc(codegen.CondE, ok)
		a.CallSymbol("$refcount_nonzero")
		a.Bind(ok)
		a.MovLoad(codegen.RDX, codegen.RAX, int32(object.ObjectPrototypeOffset))
		a.MovLoad(codegen.RDX, codegen.RDX, int32(object.PrototypeDtorOffset))
		a.PushReg(codegen.RAX)
		a.PushReg(codegen.RAX)
		a.CallReg(codegen.RDX)
		a.PopReg(codegen.RAX)
		a.PushReg(codegen.RAX)
		bumpAllocCount(a, -1)
		a.PopReg(codegen.RAX)
		a.PushReg(codegen.RAX)
		a.CallSymbol("free")
		a.AddRegImm32(codegen.RSP, 8)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$free_obj"))
	}

	// $drop_obj(ptr): decrement refcount; calls $free_obj once the last
	// reference is released. A nil ptr is a no-op.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.MovLoad(codegen.RAX, codegen.RBP, 16)
		a.CmpRegImm32(codegen.RAX, 0)
		done := a.NewLabel()
		a.Jcc(codegen.CondE, done)
		a.MovLoad(codegen.RCX, codegen.RAX, int32(object.ObjectRefCountOffset))
		a.MovRegImm32(codegen.RDX, 1)
		a.SubRegReg(codegen.RCX, codegen.RDX)
		a.MovStore(codegen.RAX, int32(object.ObjectRefCountOffset), codegen.RCX)
		a.CmpRegImm32(codegen.RCX, 0)
		a.Jcc(codegen.CondNE, done)
		a.PushReg(codegen.RAX)
		a.CallSymbol("$free_obj")
		a.AddRegImm32(codegen.RSP, 8)
		a.Bind(done)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$drop_obj"))
	}

	// $default_dtor(self): no attributes to release beyond what
	// $drop_obj already does at the header level.
	{
		a := codegen.NewAsm()
		a.PushReg(codegen.RBP)
		a.MovRegReg(codegen.RBP, codegen.RSP)
		a.Leave()
		a.Ret()
		chunks = append(chunks, finishProc(a, "$default_dtor"))
	}

	return chunks
}

func finishProc(a *codegen.Asm, name string) *codegen.Chunk {
	code, links := a.Finish()
	return codegen.NewProcChunk(name, code, links)
}
