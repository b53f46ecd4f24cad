// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/pkg/errors"
)

// ternHostCall runs extern id of the unit behind handle. Generated
// code reaches it through the extern's native stub.
//
//export ternHostCall
func ternHostCall(handle C.uintptr_t, id C.int64_t, args *C.int64_t, n C.int64_t, failed *C.int) C.int64_t {
	u := cgo.Handle(handle).Value().(*Unit)
	e := u.extern(int(id))
	vals := make([]int64, int(n))
	if n > 0 {
		for i, a := range unsafe.Slice(args, int(n)) {
			vals[i] = int64(a)
		}
	}
	res, err := e.impl(u, vals)
	if err != nil {
		u.setHostErr(errors.Wrapf(err, "jit: %s", e.name))
		*failed = 1
		return 0
	}
	return C.int64_t(res)
}

func (u *Unit) extern(id int) *funcEntry {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.externs[id]
}

// setHostErr records the error of the failing host call. Concurrent
// failing calls into one unit keep the last error.
func (u *Unit) setHostErr(err error) {
	u.hostMu.Lock()
	u.hostErr = err
	u.hostMu.Unlock()
}

func (u *Unit) takeHostErr() error {
	u.hostMu.Lock()
	defer u.hostMu.Unlock()
	err := u.hostErr
	u.hostErr = nil
	if err == nil {
		err = errors.New("jit: host call failed")
	}
	return err
}
