// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

/*
#include <pthread.h>
#include <setjmp.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

#include "_cgo_export.h"

enum {
	TERN_OK,
	TERN_TRAP,
	TERN_DIV_ZERO,
	TERN_STACK,
	TERN_NOMEM,
	TERN_HOST,
};

enum {
	TERN_RT_TRAP,
	TERN_RT_ENTER,
	TERN_RT_LEAVE,
	TERN_RT_ALLOC,
	TERN_RT_HOST,
};

#define TERN_CHUNK (64 << 10)

typedef struct tern_chunk {
	struct tern_chunk *next;
	int64_t size;
	int64_t used;
	unsigned char data[];
} tern_chunk;

typedef struct tern_arena {
	pthread_mutex_t mu;
	tern_chunk *head;
	int64_t total;
	int64_t limit;
} tern_arena;

static tern_arena *tern_arena_new(int64_t limit) {
	tern_arena *a = calloc(1, sizeof *a);
	if (a == NULL) {
		return NULL;
	}
	pthread_mutex_init(&a->mu, NULL);
	a->limit = limit;
	return a;
}

static void tern_arena_free(tern_arena *a) {
	tern_chunk *c = a->head;
	while (c != NULL) {
		tern_chunk *next = c->next;
		free(c);
		c = next;
	}
	pthread_mutex_destroy(&a->mu);
	free(a);
}

// tern_arena_alloc returns size zeroed, 8-byte aligned bytes, or 0.
static int64_t tern_arena_alloc(tern_arena *a, int64_t size) {
	if (size < 0) {
		return 0;
	}
	int64_t n = (size + 7) & ~(int64_t)7;
	if (n == 0) {
		n = 8;
	}
	pthread_mutex_lock(&a->mu);
	if (a->total + n > a->limit) {
		pthread_mutex_unlock(&a->mu);
		return 0;
	}
	tern_chunk *c = a->head;
	if (c == NULL || c->size - c->used < n) {
		int64_t cap = n > TERN_CHUNK ? n : TERN_CHUNK;
		c = calloc(1, sizeof *c + cap);
		if (c == NULL) {
			pthread_mutex_unlock(&a->mu);
			return 0;
		}
		c->size = cap;
		c->next = a->head;
		a->head = c;
	}
	unsigned char *p = c->data + c->used;
	c->used += n;
	a->total += n;
	pthread_mutex_unlock(&a->mu);
	return (int64_t)(uintptr_t)p;
}

static tern_chunk *tern_arena_find(tern_arena *a, int64_t addr) {
	uintptr_t p = (uintptr_t)addr;
	for (tern_chunk *c = a->head; c != NULL; c = c->next) {
		uintptr_t start = (uintptr_t)c->data;
		if (p >= start && p < start + (uintptr_t)c->used) {
			return c;
		}
	}
	return NULL;
}

static int tern_arena_contains(tern_arena *a, int64_t addr, int64_t size) {
	pthread_mutex_lock(&a->mu);
	tern_chunk *c = tern_arena_find(a, addr);
	int ok = c != NULL && size >= 0 &&
		(uintptr_t)addr + (uintptr_t)size <= (uintptr_t)c->data + (uintptr_t)c->used;
	pthread_mutex_unlock(&a->mu);
	return ok;
}

// tern_arena_strlen is the length of the string at addr, or -1 if it is
// not NUL-terminated within its allocation chunk.
static int64_t tern_arena_strlen(tern_arena *a, int64_t addr) {
	pthread_mutex_lock(&a->mu);
	int64_t n = -1;
	tern_chunk *c = tern_arena_find(a, addr);
	if (c != NULL) {
		unsigned char *p = (unsigned char *)(uintptr_t)addr;
		unsigned char *end = c->data + c->used;
		unsigned char *z = memchr(p, 0, end - p);
		if (z != NULL) {
			n = z - p;
		}
	}
	pthread_mutex_unlock(&a->mu);
	return n;
}

static int64_t tern_arena_size(tern_arena *a) {
	pthread_mutex_lock(&a->mu);
	int64_t n = a->total;
	pthread_mutex_unlock(&a->mu);
	return n;
}

static int64_t tern_peek(int64_t addr, int64_t size) {
	if (size == 1) {
		return *(uint8_t *)(uintptr_t)addr;
	}
	int64_t v;
	memcpy(&v, (void *)(uintptr_t)addr, sizeof v);
	return v;
}

static void tern_poke(int64_t addr, int64_t size, int64_t v) {
	if (size == 1) {
		*(uint8_t *)(uintptr_t)addr = (uint8_t)v;
		return;
	}
	memcpy((void *)(uintptr_t)addr, &v, sizeof v);
}

static void tern_copy(int64_t addr, const void *src, int64_t n) {
	memcpy((void *)(uintptr_t)addr, src, n);
}

static const char *tern_cstr(int64_t addr) {
	return (const char *)(uintptr_t)addr;
}

// The state of the innermost tern_call on this thread.
static __thread jmp_buf *tern_jmp;
static __thread int64_t tern_depth;
static __thread int64_t tern_max_depth;
static __thread int tern_code;
static __thread const char *tern_msg;

static void tern_trap(int64_t code, int64_t msg) {
	tern_code = (int)code;
	tern_msg = (const char *)(uintptr_t)msg;
	longjmp(*tern_jmp, 1);
}

static void tern_enter(int64_t name) {
	if (++tern_depth > tern_max_depth) {
		tern_trap(TERN_STACK, name);
	}
}

static void tern_leave(void) {
	tern_depth--;
}

static int64_t tern_alloc(int64_t arena, int64_t size) {
	int64_t p = tern_arena_alloc((tern_arena *)(uintptr_t)arena, size);
	if (p == 0) {
		tern_trap(TERN_NOMEM, 0);
	}
	return p;
}

static int64_t tern_host(int64_t handle, int64_t id, int64_t *args, int64_t n) {
	int failed = 0;
	int64_t r = ternHostCall((uintptr_t)handle, id, args, n, &failed);
	if (failed) {
		tern_trap(TERN_HOST, 0);
	}
	return r;
}

static int64_t tern_runtime_addr(int which) {
	switch (which) {
	case TERN_RT_TRAP:
		return (int64_t)(uintptr_t)&tern_trap;
	case TERN_RT_ENTER:
		return (int64_t)(uintptr_t)&tern_enter;
	case TERN_RT_LEAVE:
		return (int64_t)(uintptr_t)&tern_leave;
	case TERN_RT_ALLOC:
		return (int64_t)(uintptr_t)&tern_alloc;
	case TERN_RT_HOST:
		return (int64_t)(uintptr_t)&tern_host;
	}
	return 0;
}

// tern_call runs the entry trampoline at entry. Traps unwind to here.
static int tern_call(int64_t entry, int64_t *args, int64_t max_depth, int64_t *res, char **msg) {
	jmp_buf jb;
	jmp_buf *saved_jmp = tern_jmp;
	int64_t saved_depth = tern_depth;
	int64_t saved_max = tern_max_depth;
	volatile int code = TERN_OK;

	tern_jmp = &jb;
	tern_depth = 0;
	tern_max_depth = max_depth;
	if (setjmp(jb) == 0) {
		*res = ((int64_t (*)(int64_t *))(uintptr_t)entry)(args);
	} else {
		code = tern_code;
		*msg = (char *)tern_msg;
	}
	tern_jmp = saved_jmp;
	tern_depth = saved_depth;
	tern_max_depth = saved_max;
	return code;
}
*/
import "C"

import "unsafe"

// Trap codes reported by native calls.
const (
	trapNone     = int(C.TERN_OK)
	trapExplicit = int(C.TERN_TRAP)
	trapDivZero  = int(C.TERN_DIV_ZERO)
	trapStack    = int(C.TERN_STACK)
	trapNoMem    = int(C.TERN_NOMEM)
	trapHost     = int(C.TERN_HOST)
)

// Runtime entry points called by generated code.
const (
	rtTrap  = int(C.TERN_RT_TRAP)
	rtEnter = int(C.TERN_RT_ENTER)
	rtLeave = int(C.TERN_RT_LEAVE)
	rtAlloc = int(C.TERN_RT_ALLOC)
	rtHost  = int(C.TERN_RT_HOST)
	numRT   = rtHost + 1
)

func runtimeAddr(which int) int64 {
	return int64(C.tern_runtime_addr(C.int(which)))
}

// arena is native memory shared by generated code and the host. It
// is never freed before the unit is closed.
type arena struct {
	a *C.tern_arena
}

func newArena(limit int64) arena {
	a := C.tern_arena_new(C.int64_t(limit))
	if a == nil {
		panic("jit: cannot allocate arena")
	}
	return arena{a: a}
}

func (a arena) handle() int64 { return int64(uintptr(unsafe.Pointer(a.a))) }

// alloc returns 0 when the limit is reached.
func (a arena) alloc(size int64) int64 {
	return int64(C.tern_arena_alloc(a.a, C.int64_t(size)))
}

func (a arena) contains(addr, size int64) bool {
	return C.tern_arena_contains(a.a, C.int64_t(addr), C.int64_t(size)) != 0
}

func (a arena) strlen(addr int64) int64 {
	return int64(C.tern_arena_strlen(a.a, C.int64_t(addr)))
}

func (a arena) size() int64 { return int64(C.tern_arena_size(a.a)) }

func (a arena) free() { C.tern_arena_free(a.a) }

func peek(r Repr, addr int64) int64 {
	return int64(C.tern_peek(C.int64_t(addr), C.int64_t(r.Size())))
}

func poke(r Repr, addr, v int64) {
	C.tern_poke(C.int64_t(addr), C.int64_t(r.Size()), C.int64_t(v))
}

func pokeBytes(addr int64, b []byte) {
	if len(b) > 0 {
		C.tern_copy(C.int64_t(addr), unsafe.Pointer(&b[0]), C.int64_t(len(b)))
	}
}

func peekString(addr, n int64) string {
	return C.GoStringN(C.tern_cstr(C.int64_t(addr)), C.int(n))
}

// nativeCall calls the entry trampoline at entry with args. It reports
// the trap code and message of a call that did not return.
func nativeCall(entry int64, args []int64, maxDepth int) (res int64, code int, msg string) {
	argv := make([]C.int64_t, len(args)+1)
	for i, a := range args {
		argv[i] = C.int64_t(a)
	}
	var r C.int64_t
	var m *C.char
	code = int(C.tern_call(C.int64_t(entry), &argv[0], C.int64_t(maxDepth), &r, &m))
	if m != nil {
		msg = C.GoString(m)
	}
	return int64(r), code, msg
}
