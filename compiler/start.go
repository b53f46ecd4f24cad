// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import "context"

// Result is the outcome of a background compilation.
type Result struct {
	Program *Program
	Err     error
}

// Start compiles the program at path on a new goroutine. The returned
// channel delivers exactly one Result and is then closed.
//
// Compilation is not interruptible. If ctx is done before compilation
// starts, the Result carries ctx.Err().
func Start(ctx context.Context, opts Options, path string) <-chan Result {
	c := make(chan Result, 1)
	go func() {
		defer close(c)
		if err := ctx.Err(); err != nil {
			c <- Result{Err: err}
			return
		}
		p, err := CompileFile(opts, path)
		c <- Result{Program: p, Err: err}
	}()
	return c
}
