// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import "fmt"

// Variable is a mutable local of the function being built. The
// builder turns variables into SSA values and block parameters as
// they are defined and used.
type Variable int32

// Builder appends instructions to a Function.
//
// Variables are converted to SSA form on the fly: UseVar finds the
// reaching definition, adding block parameters where control flow
// merges. A block must be sealed once all of its predecessors are
// known; reads in an unsealed block are completed when it is sealed.
type Builder struct {
	f   *Function
	cur Block

	vars       []Repr
	defs       []map[Block]Value            // per variable
	incomplete map[Block][]incompleteParam // unsealed blocks

	// alias maps removed block parameters to the value replacing them.
	alias map[Value]Value
}

type incompleteParam struct {
	v     Variable
	param Value
}

func NewBuilder(f *Function) *Builder {
	return &Builder{
		f:          f,
		cur:        -1,
		incomplete: make(map[Block][]incompleteParam),
		alias:      make(map[Value]Value),
	}
}

// Func returns the function being built.
func (b *Builder) Func() *Function { return b.f }

func (b *Builder) block(blk Block) *blockData {
	if blk < 0 || int(blk) >= len(b.f.blocks) {
		panic(fmt.Sprintf("jit: invalid block %s", blk))
	}
	return b.f.blocks[blk]
}

// CreateBlock adds a new, empty block.
func (b *Builder) CreateBlock() Block {
	b.f.blocks = append(b.f.blocks, &blockData{})
	return Block(len(b.f.blocks) - 1)
}

// AppendBlockParam adds an explicit parameter to blk. Every branch
// to blk must pass a value for it. Explicit parameters must be added
// before any branch to blk is emitted.
func (b *Builder) AppendBlockParam(blk Block, r Repr) Value {
	d := b.block(blk)
	if len(d.preds) > 0 || d.explicit != len(d.params) {
		panic(fmt.Sprintf("jit: %s: parameter added after use", blk))
	}
	v := b.f.newValue(r)
	d.params = append(d.params, v)
	d.explicit++
	return v
}

// AppendSignatureParams adds a parameter to blk for each parameter of
// the function's signature. It is used on the entry block.
func (b *Builder) AppendSignatureParams(blk Block) []Value {
	var vs []Value
	for _, r := range b.f.Sig.Params {
		vs = append(vs, b.AppendBlockParam(blk, r))
	}
	return vs
}

// BlockParams returns the parameters of blk.
func (b *Builder) BlockParams(blk Block) []Value {
	return b.block(blk).params
}

// SwitchToBlock directs subsequent instructions to blk.
func (b *Builder) SwitchToBlock(blk Block) {
	b.block(blk)
	b.cur = blk
}

// CurrentBlock returns the block instructions are appended to.
func (b *Builder) CurrentBlock() Block { return b.cur }

// Terminated reports whether the current block already ends in a
// terminator.
func (b *Builder) Terminated() bool {
	return b.block(b.cur).terminated()
}

// SealBlock declares that all predecessors of blk are known.
func (b *Builder) SealBlock(blk Block) {
	d := b.block(blk)
	if d.sealed {
		return
	}
	d.sealed = true
	for _, ip := range b.incomplete[blk] {
		b.addParamOperands(blk, ip.v)
	}
	delete(b.incomplete, blk)
	b.removeTrivialParams()
}

// SealAllBlocks seals every block.
func (b *Builder) SealAllBlocks() {
	for i := range b.f.blocks {
		b.SealBlock(Block(i))
	}
	b.removeTrivialParams()
}

// DeclareVar creates a variable of representation r. Variables of
// representation Void have no value.
func (b *Builder) DeclareVar(r Repr) Variable {
	b.vars = append(b.vars, r)
	b.defs = append(b.defs, make(map[Block]Value))
	return Variable(len(b.vars) - 1)
}

// DefVar assigns val to v in the current block.
func (b *Builder) DefVar(v Variable, val Value) {
	if b.vars[v] == Void {
		return
	}
	b.defs[v][b.cur] = val
}

// UseVar returns the value of v reaching the current block.
func (b *Builder) UseVar(v Variable) Value {
	if b.vars[v] == Void {
		return NoValue
	}
	return b.resolve(b.readVar(v, b.cur))
}

func (b *Builder) readVar(v Variable, blk Block) Value {
	if val, ok := b.defs[v][blk]; ok {
		return val
	}
	d := b.block(blk)
	var val Value
	switch {
	case !d.sealed:
		val = b.addParam(blk, v)
		b.incomplete[blk] = append(b.incomplete[blk], incompleteParam{v: v, param: val})
	case len(d.preds) == 0:
		panic(fmt.Sprintf("jit: variable %d used in %s before definition", v, blk))
	case len(d.preds) == 1:
		val = b.readVar(v, d.preds[0].from)
	default:
		// Define before reading predecessors to break cycles.
		val = b.addParam(blk, v)
		b.defs[v][blk] = val
		b.addParamOperands(blk, v)
	}
	b.defs[v][blk] = val
	return val
}

func (b *Builder) addParam(blk Block, v Variable) Value {
	d := b.block(blk)
	val := b.f.newValue(b.vars[v])
	d.params = append(d.params, val)
	return val
}

// addParamOperands passes the value of v reaching each predecessor
// of blk as the argument for blk's newest variable parameter.
func (b *Builder) addParamOperands(blk Block, v Variable) {
	d := b.block(blk)
	for _, p := range d.preds {
		arg := b.readVar(v, p.from)
		term := &b.block(p.from).insts[len(b.block(p.from).insts)-1]
		term.Targets[p.target].Args = append(term.Targets[p.target].Args, arg)
	}
}

// resolve follows the replacements of removed parameters.
func (b *Builder) resolve(v Value) Value {
	for {
		r, ok := b.alias[v]
		if !ok {
			return v
		}
		v = r
	}
}

// removeTrivialParams drops variable parameters of sealed blocks
// that receive a single value, ignoring the parameter itself, from
// every predecessor. Uses of a dropped parameter are replaced by that
// value. Explicit parameters are kept.
func (b *Builder) removeTrivialParams() {
	for changed := true; changed; {
		changed = false
		for i, d := range b.f.blocks {
			if !d.sealed {
				continue
			}
			for k := d.explicit; k < len(d.params); k++ {
				if same, ok := b.trivialParam(d, k); ok {
					b.removeParam(Block(i), k, same)
					changed = true
					k--
				}
			}
		}
	}
}

func (b *Builder) trivialParam(d *blockData, k int) (Value, bool) {
	p := d.params[k]
	same := NoValue
	for _, pr := range d.preds {
		from := b.f.blocks[pr.from]
		args := from.insts[len(from.insts)-1].Targets[pr.target].Args
		if len(args) != len(d.params) {
			return NoValue, false // operands not complete yet
		}
		a := args[k]
		if a == p || a == same {
			continue
		}
		if same != NoValue {
			return NoValue, false
		}
		same = a
	}
	return same, same != NoValue
}

func (b *Builder) removeParam(blk Block, k int, same Value) {
	d := b.f.blocks[blk]
	p := d.params[k]
	d.params = append(d.params[:k:k], d.params[k+1:]...)
	for _, pr := range d.preds {
		t := &b.f.blocks[pr.from].insts[len(b.f.blocks[pr.from].insts)-1].Targets[pr.target]
		t.Args = append(t.Args[:k:k], t.Args[k+1:]...)
	}
	b.alias[p] = same
	for _, bd := range b.f.blocks {
		for i := range bd.insts {
			inst := &bd.insts[i]
			for j, a := range inst.Args {
				if a == p {
					inst.Args[j] = same
				}
			}
			for t := range inst.Targets {
				for j, a := range inst.Targets[t].Args {
					if a == p {
						inst.Targets[t].Args[j] = same
					}
				}
			}
		}
	}
	for _, defs := range b.defs {
		for blk, v := range defs {
			if v == p {
				defs[blk] = same
			}
		}
	}
}

func (b *Builder) ins(inst Inst) Value {
	if b.cur < 0 {
		panic("jit: no current block")
	}
	for i, a := range inst.Args {
		inst.Args[i] = b.resolve(a)
	}
	for t := range inst.Targets {
		for i, a := range inst.Targets[t].Args {
			inst.Targets[t].Args[i] = b.resolve(a)
		}
	}
	d := b.block(b.cur)
	if d.terminated() {
		panic(fmt.Sprintf("jit: %s: instruction %s after terminator", b.cur, inst.Op))
	}
	inst.Dst = NoValue
	if inst.Repr != Void && !inst.Op.IsTerminator() && inst.Op != OpStore {
		inst.Dst = b.f.newValue(inst.Repr)
	}
	d.insts = append(d.insts, inst)
	return inst.Dst
}

func (b *Builder) Iconst(r Repr, imm int64) Value {
	return b.ins(Inst{Op: OpIconst, Repr: r, Imm: imm})
}

func (b *Builder) binary(op Op, x, y Value) Value {
	return b.ins(Inst{Op: op, Repr: I64, Args: []Value{x, y}})
}

func (b *Builder) Iadd(x, y Value) Value { return b.binary(OpIadd, x, y) }
func (b *Builder) Isub(x, y Value) Value { return b.binary(OpIsub, x, y) }
func (b *Builder) Imul(x, y Value) Value { return b.binary(OpImul, x, y) }
func (b *Builder) Sdiv(x, y Value) Value { return b.binary(OpSdiv, x, y) }
func (b *Builder) Srem(x, y Value) Value { return b.binary(OpSrem, x, y) }

func (b *Builder) Ineg(x Value) Value {
	return b.ins(Inst{Op: OpIneg, Repr: I64, Args: []Value{x}})
}

// Icmp compares x and y, producing an I8.
func (b *Builder) Icmp(c Cond, x, y Value) Value {
	return b.ins(Inst{Op: OpIcmp, Repr: I8, Imm: int64(c), Args: []Value{x, y}})
}

// Bnot negates the I8 x.
func (b *Builder) Bnot(x Value) Value {
	return b.ins(Inst{Op: OpBnot, Repr: I8, Args: []Value{x}})
}

// Alloc allocates size bytes of zeroed memory, returning its address.
func (b *Builder) Alloc(size int64) Value {
	return b.ins(Inst{Op: OpAlloc, Repr: I64, Imm: size})
}

func (b *Builder) Load(r Repr, addr Value, offset int64) Value {
	return b.ins(Inst{Op: OpLoad, Repr: r, Imm: offset, Args: []Value{addr}})
}

func (b *Builder) Store(r Repr, val, addr Value, offset int64) {
	b.ins(Inst{Op: OpStore, Repr: r, Imm: offset, Args: []Value{val, addr}})
}

// FuncAddr returns the code address of fn.
func (b *Builder) FuncAddr(fn FuncRef) Value {
	return b.ins(Inst{Op: OpFuncAddr, Repr: I64, Func: fn})
}

// Call calls fn, whose signature must be sig, and returns its result,
// NoValue for a Void result.
func (b *Builder) Call(fn FuncRef, sig Signature, args []Value) Value {
	return b.ins(Inst{Op: OpCall, Repr: sig.Result, Func: fn, Sig: sig, Args: args})
}

// CallIndirect calls the function at code address addr.
func (b *Builder) CallIndirect(sig Signature, addr Value, args []Value) Value {
	all := append([]Value{addr}, args...)
	return b.ins(Inst{Op: OpCallIndirect, Repr: sig.Result, Sig: sig, Args: all})
}

func (b *Builder) addPred(target Block, t int) {
	d := b.block(target)
	if d.sealed {
		panic(fmt.Sprintf("jit: branch to sealed %s", target))
	}
	d.preds = append(d.preds, pred{from: b.cur, target: t})
}

func (b *Builder) checkArgs(target Block, args []Value) {
	if n := b.block(target).explicit; len(args) != n {
		panic(fmt.Sprintf("jit: branch to %s with %d arguments, want %d", target, len(args), n))
	}
}

// Jump branches unconditionally to target.
func (b *Builder) Jump(target Block, args []Value) {
	b.checkArgs(target, args)
	b.ins(Inst{Op: OpJump, Targets: []BlockCall{{Block: target, Args: append([]Value(nil), args...)}}})
	b.addPred(target, 0)
}

// Brif branches to then if the I8 cond is nonzero, else to els.
func (b *Builder) Brif(cond Value, then Block, thenArgs []Value, els Block, elsArgs []Value) {
	b.checkArgs(then, thenArgs)
	b.checkArgs(els, elsArgs)
	b.ins(Inst{Op: OpBrif, Args: []Value{cond}, Targets: []BlockCall{
		{Block: then, Args: append([]Value(nil), thenArgs...)},
		{Block: els, Args: append([]Value(nil), elsArgs...)},
	}})
	b.addPred(then, 0)
	b.addPred(els, 1)
}

// Return returns val, which is NoValue for a Void function.
func (b *Builder) Return(val Value) {
	var args []Value
	if val != NoValue {
		args = []Value{val}
	}
	b.ins(Inst{Op: OpReturn, Args: args})
}

// Trap aborts execution. It terminates blocks that cannot be reached.
func (b *Builder) Trap(msg string) {
	b.ins(Inst{Op: OpTrap, Msg: msg})
}
