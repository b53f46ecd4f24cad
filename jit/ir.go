// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jit is the code unit tern programs are compiled into.
//
// Functions are written in a small SSA intermediate representation.
// Each function is a list of basic blocks; blocks take parameters
// instead of phi nodes and every block ends in exactly one terminator
// (jump, brif, return or trap). Values are 64-bit registers holding
// either an I8 (bools, 0 or 1) or an I64 (integers and addresses).
//
// A Unit holds every function declared for one compilation, together
// with the native memory the program runs in. Finalize lowers the IR
// to LLVM, block parameters becoming phi nodes, and compiles it with
// MCJIT. Each finalized function then has the address of its machine
// code, which can be called directly or stored in memory and called
// indirectly. A trap in generated code unwinds through a small C
// runtime back to Unit.Call.
package jit

import (
	"bytes"
	"fmt"
)

// Repr is the machine representation of a value.
type Repr uint8

const (
	Void Repr = iota // no value; the representation of unit
	I8
	I64
)

func (r Repr) String() string {
	switch r {
	case Void:
		return "void"
	case I8:
		return "i8"
	case I64:
		return "i64"
	}
	return fmt.Sprintf("Repr(%d)", r)
}

// Size is the number of bytes a value of representation r occupies
// in memory.
func (r Repr) Size() int64 {
	switch r {
	case I8:
		return 1
	case I64:
		return 8
	}
	return 0
}

// Signature describes a function's parameters and result.
type Signature struct {
	Params []Repr
	Result Repr
}

func (s Signature) String() string {
	buf := new(bytes.Buffer)
	buf.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.String())
	}
	fmt.Fprintf(buf, ") -> %s", s.Result)
	return buf.String()
}

func (s Signature) equal(t Signature) bool {
	if s.Result != t.Result || len(s.Params) != len(t.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != t.Params[i] {
			return false
		}
	}
	return true
}

// Value names an SSA value within a function.
type Value int32

// NoValue is the result of instructions producing no value.
const NoValue Value = -1

func (v Value) String() string {
	if v == NoValue {
		return "_"
	}
	return fmt.Sprintf("v%d", int32(v))
}

// Block names a basic block within a function.
type Block int32

func (b Block) String() string { return fmt.Sprintf("block%d", int32(b)) }

type Op uint8

const (
	OpInvalid Op = iota
	OpIconst
	OpIadd
	OpIsub
	OpImul
	OpSdiv
	OpSrem
	OpIneg
	OpIcmp
	OpBnot
	OpAlloc
	OpLoad
	OpStore
	OpFuncAddr
	OpCall
	OpCallIndirect

	// Terminators
	OpJump
	OpBrif
	OpReturn
	OpTrap
)

var opNames = [...]string{
	OpInvalid:      "invalid",
	OpIconst:       "iconst",
	OpIadd:         "iadd",
	OpIsub:         "isub",
	OpImul:         "imul",
	OpSdiv:         "sdiv",
	OpSrem:         "srem",
	OpIneg:         "ineg",
	OpIcmp:         "icmp",
	OpBnot:         "bnot",
	OpAlloc:        "alloc",
	OpLoad:         "load",
	OpStore:        "store",
	OpFuncAddr:     "func_addr",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpJump:         "jump",
	OpBrif:         "brif",
	OpReturn:       "return",
	OpTrap:         "trap",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op >= OpJump
}

// Cond is the comparison performed by icmp.
type Cond uint8

const (
	Eq Cond = iota
	Ne
	Slt
	Sle
	Sgt
	Sge
)

var condNames = [...]string{Eq: "eq", Ne: "ne", Slt: "slt", Sle: "sle", Sgt: "sgt", Sge: "sge"}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("Cond(%d)", c)
}

// BlockCall is a branch target with the arguments passed to the
// target block's parameters.
type BlockCall struct {
	Block Block
	Args  []Value
}

// Inst is a single instruction.
type Inst struct {
	Op   Op
	Dst  Value // NoValue if the instruction produces nothing
	Repr Repr  // of Dst, or of the stored value for store
	Args []Value

	// Imm is the constant of iconst, the size of alloc, the byte
	// offset of load and store and the Cond of icmp.
	Imm int64

	Func FuncRef   // call and func_addr
	Sig  Signature // call_indirect
	Msg  string    // trap

	// Targets of jump (one) and brif (then, else).
	Targets []BlockCall
}

type blockData struct {
	params   []Value
	explicit int // leading params passed explicitly at each branch
	insts    []Inst
	preds    []pred
	sealed   bool
}

// pred is a branch into a block: target t of the terminator of
// block from.
type pred struct {
	from   Block
	target int
}

func (b *blockData) terminated() bool {
	return len(b.insts) > 0 && b.insts[len(b.insts)-1].Op.IsTerminator()
}

// Function is the body of a function in the IR. Build one with a
// Builder.
type Function struct {
	Name   string
	Sig    Signature
	blocks []*blockData
	values []Repr
}

// NewFunction returns an empty function.
func NewFunction(name string, sig Signature) *Function {
	return &Function{Name: name, Sig: sig}
}

func (f *Function) newValue(r Repr) Value {
	f.values = append(f.values, r)
	return Value(len(f.values) - 1)
}

// NumBlocks reports the number of blocks in f.
func (f *Function) NumBlocks() int { return len(f.blocks) }

// Insts returns the instructions of block b.
func (f *Function) Insts(b Block) []Inst { return f.blocks[b].insts }

// Params returns the parameters of block b.
func (f *Function) Params(b Block) []Value { return f.blocks[b].params }

// Count reports how many instructions of f have the given op.
func (f *Function) Count(op Op) int {
	n := 0
	for _, b := range f.blocks {
		for _, inst := range b.insts {
			if inst.Op == op {
				n++
			}
		}
	}
	return n
}

func (f *Function) String() string {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "function %s%s {\n", f.Name, f.Sig)
	for i, b := range f.blocks {
		fmt.Fprintf(buf, "%s(", Block(i))
		for j, p := range b.params {
			if j > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(buf, "%s: %s", p, f.values[p])
		}
		buf.WriteString("):\n")
		for _, inst := range b.insts {
			buf.WriteString("    ")
			writeInst(buf, inst)
			buf.WriteByte('\n')
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func writeInst(buf *bytes.Buffer, inst Inst) {
	if inst.Dst != NoValue {
		fmt.Fprintf(buf, "%s = ", inst.Dst)
	}
	buf.WriteString(inst.Op.String())
	switch inst.Op {
	case OpIconst:
		fmt.Fprintf(buf, ".%s %d", inst.Repr, inst.Imm)
		return
	case OpIcmp:
		fmt.Fprintf(buf, " %s", Cond(inst.Imm))
	case OpAlloc:
		fmt.Fprintf(buf, " %d", inst.Imm)
		return
	case OpLoad, OpStore:
		fmt.Fprintf(buf, ".%s", inst.Repr)
	case OpFuncAddr, OpCall:
		fmt.Fprintf(buf, " %s", inst.Func)
	case OpCallIndirect:
		fmt.Fprintf(buf, " %s", inst.Sig)
	case OpTrap:
		fmt.Fprintf(buf, " %q", inst.Msg)
	}
	writeValues(buf, inst.Args)
	if inst.Op == OpLoad || inst.Op == OpStore {
		fmt.Fprintf(buf, "+%d", inst.Imm)
	}
	for _, t := range inst.Targets {
		fmt.Fprintf(buf, " %s(", t.Block)
		for i, a := range t.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a.String())
		}
		buf.WriteByte(')')
	}
}

func writeValues(buf *bytes.Buffer, vs []Value) {
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte(' ')
		buf.WriteString(v.String())
	}
}
