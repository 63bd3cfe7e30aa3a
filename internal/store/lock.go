// Package store implements the State Store: atomic-rename JSON persistence
// guarded by a per-file advisory lock, per spec §4.1.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// ErrStaleLockOrContention is returned when a lock cannot be acquired after
// the retry budget is exhausted.
var ErrStaleLockOrContention = fmt.Errorf("store: stale lock or contention")

const (
	lockMaxWait     = 10 * time.Second
	lockStaleAfter  = 30 * time.Second
	lockInitialWait = 20 * time.Millisecond
	lockMaxBackoff  = 500 * time.Millisecond
)

// lockMeta is the sibling lock file's content: pid + acquisition timestamp.
// Written purely for forensics and staleness detection; the actual mutual
// exclusion is the OS-level flock beneath it.
type lockMeta struct {
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

// AdvisoryLock guards one document with a sibling `<path>.lock` file holding
// pid+timestamp content, backed by an OS-level flock for the actual mutex.
type AdvisoryLock struct {
	path  string
	flock *flock.Flock
}

// NewAdvisoryLock creates a lock for path (the lock file itself, e.g.
// "tasks.json.lock").
func NewAdvisoryLock(path string) *AdvisoryLock {
	return &AdvisoryLock{path: path, flock: flock.New(path)}
}

// Acquire blocks (with truncated exponential backoff) until the lock is
// held, a stale lock is reclaimed, or lockMaxWait elapses.
func (l *AdvisoryLock) Acquire() error {
	deadline := time.Now().Add(lockMaxWait)
	backoff := lockInitialWait

	for {
		ok, err := l.flock.TryLock()
		if err != nil {
			return fmt.Errorf("advisory lock %s: %w", l.path, err)
		}
		if ok {
			l.writeMeta()
			return nil
		}

		if l.reclaimIfStale() {
			continue // stale lock was cleared; retry immediately
		}

		if time.Now().After(deadline) {
			return ErrStaleLockOrContention
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > lockMaxBackoff {
			backoff = lockMaxBackoff
		}
	}
}

// Release releases the lock and removes the sibling meta file if it still
// belongs to this process.
func (l *AdvisoryLock) Release() error {
	meta, err := readLockMeta(l.path)
	if err == nil && meta.PID == os.Getpid() {
		_ = os.Remove(l.path)
	}
	return l.flock.Unlock()
}

func (l *AdvisoryLock) writeMeta() {
	meta := lockMeta{PID: os.Getpid(), Timestamp: time.Now()}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	_ = os.WriteFile(l.path, data, 0644)
}

// reclaimIfStale removes the lock file if its recorded owner is dead or the
// lock has aged past lockStaleAfter, reporting whether it did so.
func (l *AdvisoryLock) reclaimIfStale() bool {
	meta, err := readLockMeta(l.path)
	if err != nil {
		return false
	}
	if time.Since(meta.Timestamp) > lockStaleAfter || !processAlive(meta.PID) {
		_ = os.Remove(l.path)
		return true
	}
	return false
}

func readLockMeta(path string) (lockMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockMeta{}, err
	}
	var meta lockMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return lockMeta{}, err
	}
	return meta, nil
}

// processAlive reports whether pid refers to a live process. On Unix,
// signalling with 0 only checks existence/permission, it does not kill.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
