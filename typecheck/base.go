// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typecheck

import "neugram.io/tern/syntax/tipe"

// universe holds the names declared in every root scope.
// The parser already turns these names into basic types; declaring
// them here lets misspelled type names be matched against them.
var universe = []struct {
	name string
	obj  *Obj
}{
	{"int", &Obj{Kind: ObjType, Type: tipe.Integer}},
	{"bool", &Obj{Kind: ObjType, Type: tipe.Boolean}},
	{"str", &Obj{Kind: ObjType, Type: tipe.String}},
	{"unit", &Obj{Kind: ObjType, Type: tipe.Unit}},
}

func declareUniverse(env *Env) {
	for _, u := range universe {
		env.Declare(env.Root(), u.name, u.obj)
	}
}
