// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/peterh/liner"

	"neugram.io/tern/compiler"
	"neugram.io/tern/diag"
	"neugram.io/tern/modcache"
	"neugram.io/tern/module"
	"neugram.io/tern/syntax/tipe"
)

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "tern: "+format+"\n", args...)
	os.Exit(1)
}

const usageLine = "tern [-check | -watch] [programfile | -e program]"

func usage() {
	fmt.Fprintf(os.Stderr, `tern - a small compiled expression language

Usage:
	%s

Options:
`, usageLine)
	flag.PrintDefaults()
}

// report prints err, with source context for type errors.
func report(err error) {
	cerr, ok := err.(*compiler.Error)
	if !ok {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	if diags, ok := cerr.Err.(diag.List); ok {
		fmt.Fprintf(os.Stderr, "tern: %s: %s:\n", cerr.Phase, cerr.Module)
		diag.Print(os.Stderr, diags, cerr.Source)
		return
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
}

var cwd string

func init() {
	var err error
	cwd, err = os.Getwd()
	if err != nil {
		panic(err)
	}
}

func main() {
	flagHelp := flag.Bool("h", false, "display help message and exit")
	flagE := flag.String("e", "", "program passed as a string")
	flagCheck := flag.Bool("check", false, "type check the program without running it")
	flagWatch := flag.Bool("watch", false, "rebuild and run the program when its files change")
	flagInterval := flag.Duration("interval", time.Second, "how often -watch looks for changes")
	flagCache := flag.String("cache", "", "sqlite database recording module graphs for -watch (default in memory)")
	flagV := flag.Bool("v", false, "log compiler activity to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s\n", usageLine)
		os.Exit(1)
	}
	flag.Parse()

	if *flagHelp {
		usage()
		os.Exit(0)
	}

	level := slog.LevelWarn
	if *flagV {
		level = slog.LevelDebug
	}
	opts := compiler.Options{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		Stdout: os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *flagE != "" {
		s := compiler.NewSession(opts, filepath.Join(cwd, "tern-arg.tn"))
		v, err := s.Exec([]byte(*flagE))
		if err != nil {
			report(err)
			os.Exit(1)
		}
		s.Display(os.Stdout, v)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		if *flagCheck || *flagWatch {
			exitf("-check and -watch need a program file")
		}
		loop(opts)
		return
	}
	path := args[0]

	switch {
	case *flagCheck:
		if err := compiler.Check(opts, path); err != nil {
			report(err)
			os.Exit(1)
		}
	case *flagWatch:
		dsn := *flagCache
		if dsn == "" {
			dsn = ":memory:"
		}
		cache, err := modcache.Open(dsn, modcache.Options{Logger: opts.Logger})
		if err != nil {
			exitf("%v", err)
		}
		defer cache.Close()
		opts.Cache = cache
		if err := watch(ctx, opts, path, *flagInterval); err != nil && err != context.Canceled {
			exitf("%v", err)
		}
	default:
		p, err := compile(ctx, opts, path)
		if err != nil {
			report(err)
			os.Exit(1)
		}
		if err := run(p); err != nil {
			exitf("%v", err)
		}
	}
}

// compile compiles path in the background, telling the user when it
// is slow.
func compile(ctx context.Context, opts compiler.Options, path string) (*compiler.Program, error) {
	results := compiler.Start(ctx, opts, path)
	slow := time.NewTimer(500 * time.Millisecond)
	defer slow.Stop()
	for {
		select {
		case res := <-results:
			return res.Program, res.Err
		case <-slow.C:
			fmt.Fprintf(os.Stderr, "tern: compiling %s...\n", path)
		}
	}
}

func run(p *compiler.Program) error {
	defer p.Close()
	v, err := p.Run()
	if err != nil {
		return err
	}
	if v.Type != tipe.Unit {
		fmt.Println(v)
	}
	return nil
}

// watch rebuilds and runs path whenever a module it was built from
// changes.
func watch(ctx context.Context, opts compiler.Options, path string, interval time.Duration) error {
	root, err := module.Canonical(path)
	if err != nil {
		return err
	}
	if err := opts.Cache.Forget(root); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr string
	for {
		stale, err := opts.Cache.Stale(root)
		if err != nil {
			return err
		}
		if len(stale) > 0 {
			opts.Logger.Info("rebuilding", "path", root, "changed", stale)
			p, err := compile(ctx, opts, root)
			switch {
			case err != nil:
				// Failed builds are not recorded, so the program
				// stays stale. Only report a failure once.
				if msg := err.Error(); msg != lastErr {
					lastErr = msg
					report(err)
				}
			default:
				lastErr = ""
				if err := run(p); err != nil {
					fmt.Fprintf(os.Stderr, "tern: %v\n", err)
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func historyPath() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".tern_history")
	}
	return ""
}

func loop(opts compiler.Options) {
	s := compiler.NewSession(opts, filepath.Join(cwd, "tern-interactive.tn"))

	lr := liner.NewLiner()
	defer lr.Close()
	lr.SetTabCompletionStyle(liner.TabPrints)
	lr.SetWordCompleter(s.Completer)
	lr.SetCtrlCAborts(true)

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		lr.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if history == "" {
			return
		}
		if f, err := os.Create(history); err == nil {
			lr.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		data, err := lr.Prompt("tern> ")
		if err == liner.ErrPromptAborted {
			continue
		} else if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "tern: error reading input: %v\n", err)
			}
			fmt.Fprintln(os.Stderr)
			return
		}
		if data == "" {
			continue
		}
		lr.AppendHistory(data)
		v, err := s.Exec([]byte(data))
		if err != nil {
			report(err)
			continue
		}
		s.Display(os.Stdout, v)
	}
}
