// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modcache records the module graph of the last successful
// build of a program in a sqlite database.
//
// The watch driver uses it to decide when a rebuild is needed: a
// program is stale when any module it was built from has changed on
// disk or disappeared.
package modcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"neugram.io/tern/module"
)

const schema = `
create table if not exists modules (
	root text not null,
	path text not null,
	hash text not null,
	built integer not null,
	primary key (root, path)
);
create table if not exists imports (
	root text not null,
	importer text not null,
	imported text not null
);`

type Options struct {
	Logger *slog.Logger

	// ReadFile reads a module when checking staleness. If nil,
	// os.ReadFile is used.
	ReadFile func(path string) ([]byte, error)
}

// Cache is a module graph cache. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	opts Options
	log  *slog.Logger
}

// Entry is a recorded module.
type Entry struct {
	Path    string
	Hash    string
	Built   time.Time
	Imports []string
}

// Open opens the cache database named by dsn, creating its tables
// as needed. Use ":memory:" for a private in-memory cache.
func Open(dsn string, opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "modcache: open %s", dsn)
	}
	// Every connection to :memory: is a different database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "modcache: create tables")
	}
	return &Cache{
		db:   db,
		opts: opts,
		log:  opts.Logger.With("component", "modcache", "dsn", dsn),
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the content hash recorded for source.
func Hash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Record replaces what is recorded for root with the modules ms.
func (c *Cache) Record(root string, ms []*module.Module) (err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, "modcache: record")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.Exec("delete from modules where root = ?;", root); err != nil {
		return errors.Wrap(err, "modcache: record")
	}
	if _, err := tx.Exec("delete from imports where root = ?;", root); err != nil {
		return errors.Wrap(err, "modcache: record")
	}
	now := time.Now().Unix()
	for _, m := range ms {
		_, err := tx.Exec("insert into modules (root, path, hash, built) values (?, ?, ?, ?);",
			root, m.Path, Hash(m.Source), now)
		if err != nil {
			return errors.Wrapf(err, "modcache: record %s", m.Path)
		}
		for _, dep := range m.Deps {
			_, err := tx.Exec("insert into imports (root, importer, imported) values (?, ?, ?);",
				root, m.Path, dep)
			if err != nil {
				return errors.Wrapf(err, "modcache: record %s", m.Path)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "modcache: record")
	}
	c.log.Debug("recorded build", "root", root, "modules", len(ms))
	return nil
}

// Entries returns the modules recorded for root, sorted by path.
func (c *Cache) Entries(root string) ([]Entry, error) {
	rows, err := c.db.Query("select path, hash, built from modules where root = ? order by path;", root)
	if err != nil {
		return nil, errors.Wrap(err, "modcache: entries")
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		var built int64
		if err := rows.Scan(&e.Path, &e.Hash, &built); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "modcache: entries")
		}
		e.Built = time.Unix(built, 0)
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "modcache: entries")
	}

	for i := range entries {
		e := &entries[i]
		rows, err := c.db.Query("select imported from imports where root = ? and importer = ? order by rowid;", root, e.Path)
		if err != nil {
			return nil, errors.Wrap(err, "modcache: entries")
		}
		for rows.Next() {
			var dep string
			if err := rows.Scan(&dep); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "modcache: entries")
			}
			e.Imports = append(e.Imports, dep)
		}
		rows.Close()
	}
	return entries, nil
}

// Stale returns the recorded modules of root whose contents differ
// from what was built. A root with no record is stale itself.
func (c *Cache) Stale(root string) ([]string, error) {
	entries, err := c.Entries(root)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []string{root}, nil
	}
	var stale []string
	for _, e := range entries {
		source, err := c.opts.ReadFile(e.Path)
		switch {
		case os.IsNotExist(errors.Cause(err)):
			c.log.Debug("module removed", "path", e.Path)
			stale = append(stale, e.Path)
		case err != nil:
			return nil, errors.Wrapf(err, "modcache: read %s", e.Path)
		case Hash(source) != e.Hash:
			c.log.Debug("module changed", "path", e.Path)
			stale = append(stale, e.Path)
		}
	}
	return stale, nil
}

// Forget removes everything recorded for root.
func (c *Cache) Forget(root string) error {
	if _, err := c.db.Exec("delete from modules where root = ?;", root); err != nil {
		return errors.Wrap(err, "modcache: forget")
	}
	if _, err := c.db.Exec("delete from imports where root = ?;", root); err != nil {
		return errors.Wrap(err, "modcache: forget")
	}
	return nil
}
