// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache remembers which files a linter already found clean so
// repeat runs can skip them.
//
// A cache entry is keyed by the file's content hash, the linter key,
// the installed tool version and the hash of the effective rules
// file. Any of those changing produces a different key, so stale
// verdicts are never served. Only clean files are recorded; files
// with findings are re-linted every run until they come back clean.
//
// Storage is BadgerDB (github.com/dgraph-io/badger), an embedded
// key-value store. Entries carry a TTL so abandoned hashes age out.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultTTL is how long a clean verdict stays valid. Content hashes
// keep entries correct; the TTL only bounds database growth.
const DefaultTTL = 7 * 24 * time.Hour

// Config holds configuration for the verdict store.
type Config struct {
	// Path is the directory for the database files. Required unless
	// InMemory is true.
	Path string

	// InMemory keeps all entries in RAM. Used by tests and by runs
	// that want caching within a watch session but not across runs.
	InMemory bool

	// TTL is the lifetime of a clean verdict. Zero means DefaultTTL.
	TTL time.Duration

	// Logger receives BadgerDB's internal messages. Nil disables
	// them.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables it. Only meaningful for long-lived processes
	// such as watch mode.
	GCInterval time.Duration
}

// DefaultConfig returns the production configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Path:       dir,
		TTL:        DefaultTTL,
		GCInterval: 5 * time.Minute,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true, TTL: DefaultTTL}
}

// DefaultDir returns the per-user cache directory.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lintfleet-cache")
	}
	return filepath.Join(base, "lintfleet")
}

// Key identifies one (file content, linter, tool version, rules)
// combination.
type Key struct {
	// Linter is the linter key, e.g. DOCKERFILE_HADOLINT.
	Linter string

	// Version is the installed tool version, "" when unknown.
	Version string

	// Rules is the hash of the effective rules file, "" when the
	// linter ran without one.
	Rules string

	// Content is the hex SHA-256 of the file bytes.
	Content string
}

func (k Key) bytes() []byte {
	version := k.Version
	if version == "" {
		version = "unknown"
	}
	rules := k.Rules
	if rules == "" {
		rules = "none"
	}
	return []byte(strings.Join([]string{"clean", k.Linter, version, rules, k.Content}, "/"))
}

// Stats counts cache traffic for the run log.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Stores int64 `json:"stores"`
}

// Store is a BadgerDB-backed set of clean verdicts.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db  *badger.DB
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64

	gcStop chan struct{}
	gcDone chan struct{}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates the verdict store.
//
// Description:
//
//	Opens a BadgerDB at the configured path, creating the directory
//	when missing, or in memory when InMemory is set. Starts the GC
//	loop when GCInterval is positive and the store is persistent.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*Store - The opened store. Caller must Close it.
//	error - Non-nil when the database cannot be opened.
//
// Thread Safety: The returned Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	s := &Store{db: db, ttl: cfg.TTL}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, cfg.Logger)
	}
	return s, nil
}

// OpenInMemory opens a throwaway store for tests.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

func (s *Store) gcLoop(interval time.Duration, logger *slog.Logger) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing to collect.
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("cache value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// IsClean reports whether the key holds a recorded clean verdict.
func (s *Store) IsClean(ctx context.Context, k Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(k.bytes())
		return err
	})
	switch {
	case err == nil:
		s.hits.Add(1)
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		s.misses.Add(1)
		return false, nil
	default:
		return false, fmt.Errorf("cache lookup: %w", err)
	}
}

// MarkClean records a clean verdict for the key.
func (s *Store) MarkClean(ctx context.Context, k Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(k.bytes(), nil).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	s.stores.Add(1)
	return nil
}

// Partition splits files into cached-clean hits and files to lint.
//
// Description:
//
//	Hashes each file under root and checks for a clean verdict.
//	Unreadable files and lookup failures count as misses so the
//	linter still sees them. Order is preserved within each slice.
//
// Inputs:
//
//	ctx - Cancels the scan.
//	root - Workspace root the relative paths resolve against.
//	linter - Linter key the verdicts belong to.
//	version - Installed tool version.
//	rules - Hash of the effective rules file, "" when none.
//	files - Relative paths to partition.
//
// Outputs:
//
//	hits - Files with a recorded clean verdict.
//	misses - Files the linter must check.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Partition(ctx context.Context, root, linter, version, rules string, files []string) (hits, misses []string) {
	for _, f := range files {
		if ctx.Err() != nil {
			misses = append(misses, f)
			continue
		}
		sum, err := HashFile(filepath.Join(root, f))
		if err != nil {
			misses = append(misses, f)
			continue
		}
		clean, err := s.IsClean(ctx, Key{Linter: linter, Version: version, Rules: rules, Content: sum})
		if err != nil || !clean {
			misses = append(misses, f)
			continue
		}
		hits = append(hits, f)
	}
	return hits, misses
}

// Purge drops every verdict.
func (s *Store) Purge() error {
	return s.db.DropAll()
}

// Stats returns the traffic counters accumulated since Open.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Stores: s.stores.Load(),
	}
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA-256 of a byte slice.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
