// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import "github.com/pkg/errors"

// verify checks the structure of f. The caller holds u.mu.
func (u *Unit) verify(f *Function) error {
	if len(f.blocks) == 0 {
		return errors.New("no blocks")
	}
	entry := f.blocks[0]
	if len(entry.params) != len(f.Sig.Params) {
		return errors.Errorf("entry block has %d parameters, signature has %d", len(entry.params), len(f.Sig.Params))
	}
	for i, p := range entry.params {
		if f.values[p] != f.Sig.Params[i] {
			return errors.Errorf("entry parameter %d is %s, signature says %s", i, f.values[p], f.Sig.Params[i])
		}
	}

	valid := func(v Value) bool { return v >= 0 && int(v) < len(f.values) }
	for i, b := range f.blocks {
		blk := Block(i)
		if !b.sealed {
			return errors.Errorf("%s is not sealed", blk)
		}
		if !b.terminated() {
			return errors.Errorf("%s has no terminator", blk)
		}
		for j, inst := range b.insts {
			if inst.Op.IsTerminator() && j != len(b.insts)-1 {
				return errors.Errorf("%s: %s before end of block", blk, inst.Op)
			}
			for _, a := range inst.Args {
				if !valid(a) {
					return errors.Errorf("%s: %s uses invalid value %s", blk, inst.Op, a)
				}
			}
			for _, t := range inst.Targets {
				if t.Block < 0 || int(t.Block) >= len(f.blocks) {
					return errors.Errorf("%s: branch to invalid %s", blk, t.Block)
				}
				if t.Block == 0 {
					return errors.Errorf("%s: branch to entry block", blk)
				}
				params := f.blocks[t.Block].params
				if len(t.Args) != len(params) {
					return errors.Errorf("%s: branch to %s with %d arguments, want %d", blk, t.Block, len(t.Args), len(params))
				}
				for k, a := range t.Args {
					if !valid(a) {
						return errors.Errorf("%s: branch to %s passes invalid value %s", blk, t.Block, a)
					}
					if f.values[a] != f.values[params[k]] {
						return errors.Errorf("%s: branch to %s passes %s for %s parameter", blk, t.Block, f.values[a], f.values[params[k]])
					}
				}
			}
			switch inst.Op {
			case OpCall:
				callee := u.funcs[inst.Func]
				if callee == nil {
					return errors.Errorf("%s: call of undeclared %s", blk, inst.Func)
				}
				if err := checkCall(callee.name, callee.sig, inst.Args, f); err != nil {
					return errors.Wrapf(err, "%s", blk)
				}
			case OpCallIndirect:
				if err := checkCall("indirect", inst.Sig, inst.Args[1:], f); err != nil {
					return errors.Wrapf(err, "%s", blk)
				}
			case OpFuncAddr:
				if u.funcs[inst.Func] == nil {
					return errors.Errorf("%s: address of undeclared %s", blk, inst.Func)
				}
			case OpReturn:
				if f.Sig.Result == Void && len(inst.Args) != 0 {
					return errors.Errorf("%s: void function returns a value", blk)
				}
				if f.Sig.Result != Void && (len(inst.Args) != 1 || f.values[inst.Args[0]] != f.Sig.Result) {
					return errors.Errorf("%s: return does not match result %s", blk, f.Sig.Result)
				}
			}
		}
	}
	return nil
}

func checkCall(name string, sig Signature, args []Value, f *Function) error {
	if len(args) != len(sig.Params) {
		return errors.Errorf("call of %s with %d arguments, want %d", name, len(args), len(sig.Params))
	}
	for i, a := range args {
		if f.values[a] != sig.Params[i] {
			return errors.Errorf("call of %s: argument %d is %s, want %s", name, i, f.values[a], sig.Params[i])
		}
	}
	return nil
}
