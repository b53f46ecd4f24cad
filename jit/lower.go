// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"
)

var (
	nativeOnce sync.Once
	nativeErr  error
)

func initNative() error {
	nativeOnce.Do(func() {
		llvm.LinkInMCJIT()
		if err := llvm.InitializeNativeTarget(); err != nil {
			nativeErr = err
			return
		}
		nativeErr = llvm.InitializeNativeAsmPrinter()
	})
	return errors.Wrap(nativeErr, "jit: initialize native target")
}

// native is the machine code of a unit. Each Finalize adds one LLVM
// module to a single MCJIT engine.
type native struct {
	ctx     llvm.Context
	ee      llvm.ExecutionEngine
	engine  bool
	modules int
	rt      [numRT]int64
	strs    map[string]int64 // C strings in unit memory
}

func newNative() (*native, error) {
	if err := initNative(); err != nil {
		return nil, err
	}
	n := &native{ctx: llvm.NewContext(), strs: make(map[string]int64)}
	for i := range n.rt {
		n.rt[i] = runtimeAddr(i)
	}
	return n, nil
}

func (n *native) dispose() {
	if n.engine {
		n.ee.Dispose()
	}
	n.ctx.Dispose()
}

// add compiles mod and makes its functions callable.
func (n *native) add(mod llvm.Module) error {
	if n.engine {
		n.ee.AddModule(mod)
		return nil
	}
	opts := llvm.NewMCJITCompilerOptions()
	opts.SetMCJITOptimizationLevel(2)
	ee, err := llvm.NewMCJITCompiler(mod, opts)
	if err != nil {
		return errors.Wrap(err, "jit: create engine")
	}
	n.ee, n.engine = ee, true
	return nil
}

func (n *native) addr(fn llvm.Value) int64 {
	return int64(uintptr(n.ee.PointerToGlobal(fn)))
}

// lowerer translates one batch of functions into an LLVM module.
type lowerer struct {
	u   *Unit
	n   *native
	mod llvm.Module
	b   llvm.Builder

	i8, i64, ptr, void llvm.Type
	rtTypes            [numRT]llvm.Type

	fns     map[FuncRef]llvm.Value
	entries map[FuncRef]llvm.Value
}

// compile lowers batch into a new module, hands it to the engine and
// records the code and entry addresses of each function.
func (u *Unit) compile(batch []*funcEntry) error {
	if u.native == nil {
		n, err := newNative()
		if err != nil {
			return err
		}
		u.native = n
	}
	n := u.native
	ctx := n.ctx
	name := fmt.Sprintf("tern.%d", n.modules)
	l := &lowerer{
		u:       u,
		n:       n,
		mod:     ctx.NewModule(name),
		b:       ctx.NewBuilder(),
		i8:      ctx.Int8Type(),
		i64:     ctx.Int64Type(),
		void:    ctx.VoidType(),
		fns:     make(map[FuncRef]llvm.Value),
		entries: make(map[FuncRef]llvm.Value),
	}
	defer l.b.Dispose()
	l.mod.SetTarget(llvm.DefaultTargetTriple())
	l.ptr = llvm.PointerType(l.i8, 0)
	l.rtTypes = [numRT]llvm.Type{
		rtTrap:  llvm.FunctionType(l.void, []llvm.Type{l.i64, l.i64}, false),
		rtEnter: llvm.FunctionType(l.void, []llvm.Type{l.i64}, false),
		rtLeave: llvm.FunctionType(l.void, nil, false),
		rtAlloc: llvm.FunctionType(l.i64, []llvm.Type{l.i64, l.i64}, false),
		rtHost:  llvm.FunctionType(l.i64, []llvm.Type{l.i64, l.i64, l.ptr, l.i64}, false),
	}

	for _, e := range batch {
		e.symbol = fmt.Sprintf("%s.%s", e.name, e.ref.id)
		l.fns[e.ref] = llvm.AddFunction(l.mod, e.symbol, l.funcType(e.sig))
	}
	for _, e := range batch {
		if e.impl != nil {
			l.hostStub(e)
		} else if err := l.function(e); err != nil {
			l.mod.Dispose()
			return err
		}
		l.entry(e)
	}
	if err := llvm.VerifyModule(l.mod, llvm.ReturnStatusAction); err != nil {
		ir := l.mod.String()
		l.mod.Dispose()
		return errors.Wrapf(err, "jit: invalid module %s\n%s", name, ir)
	}
	if err := n.add(l.mod); err != nil {
		l.mod.Dispose()
		return err
	}
	n.modules++
	for _, e := range batch {
		e.addr = n.addr(l.fns[e.ref])
		e.entry = n.addr(l.entries[e.ref])
		if e.addr == 0 || e.entry == 0 {
			return errors.Errorf("jit: no code for %s", e.name)
		}
	}
	return nil
}

func (l *lowerer) typ(r Repr) llvm.Type {
	switch r {
	case I8:
		return l.i8
	case I64:
		return l.i64
	}
	return l.void
}

func (l *lowerer) funcType(sig Signature) llvm.Type {
	params := make([]llvm.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = l.typ(p)
	}
	return llvm.FunctionType(l.typ(sig.Result), params, false)
}

func (l *lowerer) i64const(v int64) llvm.Value {
	return llvm.ConstInt(l.i64, uint64(v), true)
}

// cstring returns the address of a NUL-terminated copy of s in unit
// memory. Generated code passes these to the runtime.
func (l *lowerer) cstring(s string) (int64, error) {
	if addr, ok := l.n.strs[s]; ok {
		return addr, nil
	}
	addr, err := l.u.mem.AllocBytes(append([]byte(s), 0))
	if err != nil {
		return 0, err
	}
	l.n.strs[s] = addr
	return addr, nil
}

func (l *lowerer) callRuntime(which int, args ...llvm.Value) llvm.Value {
	fn := l.b.CreateIntToPtr(l.i64const(l.n.rt[which]), l.ptr, "")
	return l.b.CreateCall(l.rtTypes[which], fn, args, "")
}

func (l *lowerer) trap(code int, msg int64) {
	l.callRuntime(rtTrap, l.i64const(int64(code)), l.i64const(msg))
	l.b.CreateUnreachable()
}

// callee returns the function to call for ref: the function itself
// when it is in this module, its code address otherwise.
func (l *lowerer) callee(ref FuncRef) (llvm.Value, error) {
	if fn, ok := l.fns[ref]; ok {
		return fn, nil
	}
	e := l.u.funcs[ref]
	if e == nil || !e.finalized {
		return llvm.Value{}, errors.Errorf("jit: call of undeclared function %s", ref)
	}
	return l.b.CreateIntToPtr(l.i64const(e.addr), l.ptr, ""), nil
}

func (l *lowerer) address(base llvm.Value, off int64) llvm.Value {
	if off != 0 {
		base = l.b.CreateAdd(base, l.i64const(off), "")
	}
	return l.b.CreateIntToPtr(base, l.ptr, "")
}

var predicates = [...]llvm.IntPredicate{
	Eq:  llvm.IntEQ,
	Ne:  llvm.IntNE,
	Slt: llvm.IntSLT,
	Sle: llvm.IntSLE,
	Sgt: llvm.IntSGT,
	Sge: llvm.IntSGE,
}

// function lowers the body of e. Block parameters become phi nodes;
// the parameters of the entry block are the function's arguments.
func (l *lowerer) function(e *funcEntry) error {
	f := e.body
	fn := l.fns[e.ref]
	name, err := l.cstring(e.name)
	if err != nil {
		return err
	}

	order := f.reversePostorder()
	blocks := make(map[Block]llvm.BasicBlock, len(order))
	for _, blk := range order {
		blocks[blk] = l.n.ctx.AddBasicBlock(fn, blk.String())
	}
	vals := make([]llvm.Value, len(f.values))
	for i, p := range f.blocks[0].params {
		vals[p] = fn.Param(i)
	}
	for _, blk := range order[1:] {
		l.b.SetInsertPointAtEnd(blocks[blk])
		for _, p := range f.blocks[blk].params {
			vals[p] = l.b.CreatePHI(l.typ(f.values[p]), "")
		}
	}

	type incoming struct {
		phi  llvm.Value
		arg  Value
		from llvm.BasicBlock
	}
	var pending []incoming
	// edge branches from the current block to t.
	edge := func(t BlockCall) {
		from := l.b.GetInsertBlock()
		for i, p := range f.blocks[t.Block].params {
			pending = append(pending, incoming{vals[p], t.Args[i], from})
		}
	}
	// target returns the block a brif jumps to for t. Arguments pass
	// through a block of their own.
	var edges []BlockCall
	var edgeBlocks []llvm.BasicBlock
	target := func(t BlockCall) llvm.BasicBlock {
		if len(t.Args) == 0 {
			return blocks[t.Block]
		}
		bb := l.n.ctx.AddBasicBlock(fn, "")
		edges = append(edges, t)
		edgeBlocks = append(edgeBlocks, bb)
		return bb
	}

	for i, blk := range order {
		l.b.SetInsertPointAtEnd(blocks[blk])
		if i == 0 {
			l.callRuntime(rtEnter, l.i64const(name))
		}
		for _, inst := range f.blocks[blk].insts {
			arg := func(i int) llvm.Value { return vals[inst.Args[i]] }
			var v llvm.Value
			switch inst.Op {
			case OpIconst:
				v = llvm.ConstInt(l.typ(inst.Repr), uint64(inst.Imm), true)
			case OpIadd:
				v = l.b.CreateAdd(arg(0), arg(1), "")
			case OpIsub:
				v = l.b.CreateSub(arg(0), arg(1), "")
			case OpImul:
				v = l.b.CreateMul(arg(0), arg(1), "")
			case OpSdiv, OpSrem:
				v = l.divide(fn, inst.Op, arg(0), arg(1), name)
			case OpIneg:
				v = l.b.CreateNeg(arg(0), "")
			case OpIcmp:
				c := l.b.CreateICmp(predicates[Cond(inst.Imm)], arg(0), arg(1), "")
				v = l.b.CreateZExt(c, l.i8, "")
			case OpBnot:
				v = l.b.CreateXor(arg(0), llvm.ConstInt(l.i8, 1, false), "")
			case OpAlloc:
				v = l.callRuntime(rtAlloc, l.i64const(l.u.mem.arena.handle()), l.i64const(inst.Imm))
			case OpLoad:
				v = l.b.CreateLoad(l.typ(inst.Repr), l.address(arg(0), inst.Imm), "")
				v.SetAlignment(1)
			case OpStore:
				st := l.b.CreateStore(arg(0), l.address(arg(1), inst.Imm))
				st.SetAlignment(1)
			case OpFuncAddr:
				callee, err := l.callee(inst.Func)
				if err != nil {
					return err
				}
				v = l.b.CreatePtrToInt(callee, l.i64, "")
			case OpCall:
				callee, err := l.callee(inst.Func)
				if err != nil {
					return err
				}
				v = l.b.CreateCall(l.funcType(inst.Sig), callee, lookup(vals, inst.Args), "")
			case OpCallIndirect:
				callee := l.b.CreateIntToPtr(arg(0), l.ptr, "")
				v = l.b.CreateCall(l.funcType(inst.Sig), callee, lookup(vals, inst.Args[1:]), "")
			case OpJump:
				edge(inst.Targets[0])
				l.b.CreateBr(blocks[inst.Targets[0].Block])
			case OpBrif:
				cond := l.b.CreateICmp(llvm.IntNE, arg(0), llvm.ConstInt(l.i8, 0, false), "")
				l.b.CreateCondBr(cond, target(inst.Targets[0]), target(inst.Targets[1]))
			case OpReturn:
				l.callRuntime(rtLeave)
				if len(inst.Args) == 0 {
					l.b.CreateRetVoid()
				} else {
					l.b.CreateRet(arg(0))
				}
			case OpTrap:
				msg, err := l.cstring(fmt.Sprintf("%s: %s", e.name, inst.Msg))
				if err != nil {
					return err
				}
				l.trap(trapExplicit, msg)
			default:
				return errors.Errorf("jit: %s: cannot lower %s", e.name, inst.Op)
			}
			if inst.Dst != NoValue {
				vals[inst.Dst] = v
			}
		}
		for i, t := range edges {
			l.b.SetInsertPointAtEnd(edgeBlocks[i])
			edge(t)
			l.b.CreateBr(blocks[t.Block])
		}
		edges, edgeBlocks = edges[:0], edgeBlocks[:0]
	}
	for _, in := range pending {
		in.phi.AddIncoming([]llvm.Value{vals[in.arg]}, []llvm.BasicBlock{in.from})
	}
	return nil
}

func lookup(vals []llvm.Value, args []Value) []llvm.Value {
	out := make([]llvm.Value, len(args))
	for i, a := range args {
		out[i] = vals[a]
	}
	return out
}

// divide lowers sdiv and srem. A zero divisor traps. A divisor of -1
// yields -x and 0 without the overflow of MinInt64 / -1.
func (l *lowerer) divide(fn llvm.Value, op Op, x, y llvm.Value, name int64) llvm.Value {
	zero := l.i64const(0)
	ok := l.n.ctx.AddBasicBlock(fn, "")
	fail := l.n.ctx.AddBasicBlock(fn, "")
	l.b.CreateCondBr(l.b.CreateICmp(llvm.IntEQ, y, zero, ""), fail, ok)
	l.b.SetInsertPointAtEnd(fail)
	l.trap(trapDivZero, name)
	l.b.SetInsertPointAtEnd(ok)
	neg1 := l.b.CreateICmp(llvm.IntEQ, y, l.i64const(-1), "")
	safe := l.b.CreateSelect(neg1, l.i64const(1), y, "")
	if op == OpSdiv {
		return l.b.CreateSelect(neg1, l.b.CreateNeg(x, ""), l.b.CreateSDiv(x, safe, ""), "")
	}
	return l.b.CreateSelect(neg1, zero, l.b.CreateSRem(x, safe, ""), "")
}

// hostStub lowers extern e to a function that passes its arguments to
// the host through the runtime.
func (l *lowerer) hostStub(e *funcEntry) {
	fn := l.fns[e.ref]
	l.b.SetInsertPointAtEnd(l.n.ctx.AddBasicBlock(fn, "entry"))
	n := len(e.sig.Params)
	args := l.b.CreateArrayAlloca(l.i64, l.i64const(int64(n+1)), "")
	for i, r := range e.sig.Params {
		v := fn.Param(i)
		if r == I8 {
			v = l.b.CreateZExt(v, l.i64, "")
		}
		slot := l.b.CreateGEP(l.i64, args, []llvm.Value{l.i64const(int64(i))}, "")
		l.b.CreateStore(v, slot)
	}
	res := l.callRuntime(rtHost,
		l.i64const(int64(l.u.self)),
		l.i64const(int64(e.hostID)),
		args,
		l.i64const(int64(n)))
	switch e.sig.Result {
	case Void:
		l.b.CreateRetVoid()
	case I8:
		l.b.CreateRet(l.b.CreateTrunc(res, l.i8, ""))
	default:
		l.b.CreateRet(res)
	}
}

// entry adds the trampoline through which the host calls e. It takes
// the arguments as an array of i64 and widens the result to an i64.
func (l *lowerer) entry(e *funcEntry) {
	ft := llvm.FunctionType(l.i64, []llvm.Type{l.ptr}, false)
	tr := llvm.AddFunction(l.mod, e.symbol+".entry", ft)
	l.b.SetInsertPointAtEnd(l.n.ctx.AddBasicBlock(tr, "entry"))
	args := make([]llvm.Value, len(e.sig.Params))
	for i, r := range e.sig.Params {
		slot := l.b.CreateGEP(l.i64, tr.Param(0), []llvm.Value{l.i64const(int64(i))}, "")
		v := l.b.CreateLoad(l.i64, slot, "")
		if r == I8 {
			v = l.b.CreateTrunc(v, l.i8, "")
		}
		args[i] = v
	}
	res := l.b.CreateCall(l.funcType(e.sig), l.fns[e.ref], args, "")
	switch e.sig.Result {
	case Void:
		l.b.CreateRet(l.i64const(0))
	case I8:
		l.b.CreateRet(l.b.CreateZExt(res, l.i64, ""))
	default:
		l.b.CreateRet(res)
	}
	l.entries[e.ref] = tr
}

// reversePostorder lists the blocks reachable from the entry block,
// each before its successors except along back edges.
func (f *Function) reversePostorder() []Block {
	seen := make([]bool, len(f.blocks))
	var post []Block
	var visit func(Block)
	visit = func(b Block) {
		seen[b] = true
		d := f.blocks[b]
		if n := len(d.insts); n > 0 {
			for _, t := range d.insts[n-1].Targets {
				if !seen[t.Block] {
					visit(t.Block)
				}
			}
		}
		post = append(post, b)
	}
	visit(0)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
