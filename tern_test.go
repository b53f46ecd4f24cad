// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main_test

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

var exeSuffix string // set to ".exe" on GOOS=windows
var testtern string  // name of testtern binary

func init() {
	if runtime.GOOS == "windows" {
		exeSuffix = ".exe"
	}
	testtern = "./testtern" + exeSuffix
}

// The TestMain function creates a tern command for testing purposes.
func TestMain(m *testing.M) {
	out, err := exec.Command("go", "build", "-o", testtern).CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building testtern failed: %v\n%s", err, out)
		os.Exit(2)
	}

	r := m.Run()

	os.Remove(testtern)

	os.Exit(r)
}

var exprTests = []struct {
	prog string
	want string
}{
	{"1 + 2 * 3", "7\n"},
	{"let x = 5; x = x + 1; x", "6\n"},
	{"let f = fn(x ~ int) -> int { x * x }; f(7)", "49\n"},
	{"let fact = fn(n ~ int) -> int { 1 if n < 2 else n * fact(n - 1) }; fact(5)", "120\n"},
	{`extern fn puts(s ~ str) -> unit; puts("hi")`, "hi\n"},
	{"2 > 1", "true\n"},
}

func TestExpr(t *testing.T) {
	for _, test := range exprTests {
		out, err := exec.Command(testtern, "-e", test.prog).CombinedOutput()
		if err != nil {
			t.Errorf("%s: testtern failed: %v\n%s", test.prog, err, out)
			continue
		}
		if got := string(out); got != test.want {
			t.Errorf("%s: got %q, want %q", test.prog, got, test.want)
		}
	}
}

func TestFile(t *testing.T) {
	out, err := exec.Command(testtern, "compiler/testdata/sum.tn").CombinedOutput()
	if err != nil {
		t.Fatalf("testtern failed: %v\n%s", err, out)
	}
	if got, want := string(out), "5000050000\n"; got != want {
		t.Errorf("sum.tn printed %q, want %q", got, want)
	}

	out, err = exec.Command(testtern, "-check", "compiler/testdata/point.tn").CombinedOutput()
	if err != nil || len(out) != 0 {
		t.Errorf("-check point.tn: %v\n%s", err, out)
	}
}

func TestTypeError(t *testing.T) {
	out, err := exec.Command(testtern, "-e", "let result = 1; resutl + 1").CombinedOutput()
	if err == nil {
		t.Fatal("testtern succeeded on an undeclared name")
	}
	if _, ok := err.(*exec.ExitError); !ok {
		t.Errorf("testtern should have failed with a non-zero exit code: %#v", err)
	}
	got := string(out)
	for _, want := range []string{"resutl", "`result`", "^"} {
		if !strings.Contains(got, want) {
			t.Errorf("error output does not contain %q:\n%s", want, got)
		}
	}
}
