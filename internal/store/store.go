/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package store provides the durable on-disk log and metadata a Raft node
needs to recover its persistent state after a restart: currentTerm,
votedFor, and the log entries themselves. Log compaction and snapshotting
are out of scope (the log is assumed to fit in durable storage for the
system's lifetime); a node rebuilds its state machine on startup by
replaying every entry from index 1.

Each node's data directory is exclusively owned by a single process:
Open takes an advisory flock on a lockfile inside the directory and
fails fast if another process already holds it, rather than letting two
processes corrupt the same log.
*/
package store

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/firefly-oss/chatraft/internal/compression"
)

// LogEntry is a single durable Raft log entry. Index 1 is the first
// entry ever written; index 0 is reserved as the sentinel "no entry".
type LogEntry struct {
	Index   uint64 `json:"index"`
	Term    uint64 `json:"term"`
	Command []byte `json:"command"`
}

// Meta is the small piece of persistent Raft state that must survive a
// restart outside of the log: the current term and who this node voted
// for in it.
type Meta struct {
	CurrentTerm uint64 `json:"current_term"`
	VotedFor    string `json:"voted_for"`
}

const (
	metaFile = "meta.json"
	logFile  = "log.bin"
	lockFile = ".lock"
)

// Store is the durable-storage contract a Raft node depends on. A single
// implementation, Disk, backs it with plain files in a data directory.
type Store interface {
	LoadMeta() (Meta, error)
	SaveMeta(m Meta) error

	// Append appends entries to the end of the log. Callers must only
	// ever append starting at LastIndex()+1.
	Append(entries []LogEntry) error

	// TruncateFrom discards every entry with Index >= from, used when a
	// follower's log conflicts with the leader's and must be rewound.
	TruncateFrom(from uint64) error

	// Entries returns entries [from, to] inclusive. to may exceed
	// LastIndex(), in which case the result simply stops at the end.
	Entries(from, to uint64) ([]LogEntry, error)

	// Entry returns a single entry, or ok=false if index is out of range.
	Entry(index uint64) (entry LogEntry, ok bool, err error)

	LastIndex() uint64
	LastTerm() uint64

	Close() error
}

// Disk is a file-backed Store. The log is an append-only file of
// length-prefixed, compressed frames; an in-memory byte-offset index
// is rebuilt by a single sequential scan on Open so that random access
// (Entry, TruncateFrom) doesn't require re-scanning the file.
type Disk struct {
	dir string

	mu       sync.Mutex
	logF     *os.File
	compress *compression.Compressor
	algo     compression.Algorithm

	offsets []int64 // offsets[i] is the file offset of entry index i+1
	entries []LogEntry

	lockFd int
}

// Open opens (creating if necessary) the data directory dir as this
// node's exclusive durable store.
func Open(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	lockFd, err := acquireLock(filepath.Join(dir, lockFile))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	logF, err := os.OpenFile(filepath.Join(dir, logFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		unix.Close(lockFd)
		return nil, fmt.Errorf("store: open log file: %w", err)
	}

	cfg := compression.DefaultConfig()
	cfg.Algorithm = compression.AlgorithmZstd

	d := &Disk{
		dir:      dir,
		logF:     logF,
		compress: compression.NewCompressor(cfg),
		algo:     cfg.Algorithm,
		lockFd:   lockFd,
	}

	if err := d.loadIndex(); err != nil {
		logF.Close()
		unix.Close(lockFd)
		return nil, fmt.Errorf("store: replay log: %w", err)
	}

	return d, nil
}

// acquireLock takes a non-blocking exclusive flock on path, failing
// immediately (rather than blocking) if another process already holds
// it: a data directory has exactly one owning process at a time.
func acquireLock(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return -1, fmt.Errorf("open lockfile: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("data directory already in use by another process: %w", err)
	}
	return fd, nil
}

// frame: [8-byte index][8-byte term][4-byte payload length][compressed payload]
// All header fields are big-endian, giving a fixed 20-byte header.
func (d *Disk) writeFrame(w io.Writer, e LogEntry) (int, error) {
	compressed, err := d.compress.Compress(e.Command)
	if err != nil {
		return 0, err
	}
	header := make([]byte, 20)
	binary.BigEndian.PutUint64(header[0:8], e.Index)
	binary.BigEndian.PutUint64(header[8:16], e.Term)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(compressed)))
	if _, err := w.Write(header); err != nil {
		return 0, err
	}
	if _, err := w.Write(compressed); err != nil {
		return 0, err
	}
	return len(header) + len(compressed), nil
}

func (d *Disk) readFrame(r io.Reader) (LogEntry, int, error) {
	header := make([]byte, 20)
	if _, err := io.ReadFull(r, header); err != nil {
		return LogEntry{}, 0, err
	}
	index := binary.BigEndian.Uint64(header[0:8])
	term := binary.BigEndian.Uint64(header[8:16])
	length := binary.BigEndian.Uint32(header[16:20])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return LogEntry{}, 0, err
		}
	}
	command, err := d.compress.Decompress(payload, d.algo)
	if err != nil {
		return LogEntry{}, 0, err
	}
	return LogEntry{Index: index, Term: term, Command: command}, len(header) + len(payload), nil
}

// loadIndex performs the one sequential scan of the log file on Open,
// populating offsets/entries in memory.
func (d *Disk) loadIndex() error {
	if _, err := d.logF.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(d.logF)

	var offset int64
	for {
		entry, n, err := d.readFrame(r)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
		d.offsets = append(d.offsets, offset)
		d.entries = append(d.entries, entry)
		offset += int64(n)
	}

	if _, err := d.logF.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

func (d *Disk) LoadMeta() (Meta, error) {
	path := filepath.Join(d.dir, metaFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, fmt.Errorf("store: read meta: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Meta{}, fmt.Errorf("store: decode meta: %w", err)
	}
	return m, nil
}

// SaveMeta atomically rewrites meta.json: write to a temp file in the
// same directory, then rename over the original so a crash never leaves
// a half-written meta file behind.
func (d *Disk) SaveMeta(m Meta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: encode meta: %w", err)
	}
	path := filepath.Join(d.dir, metaFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("store: write meta: %w", err)
	}
	return os.Rename(tmp, path)
}

func (d *Disk) Append(entries []LogEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.logF.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	offset, err := d.logF.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	for _, e := range entries {
		n, err := d.writeFrame(d.logF, e)
		if err != nil {
			return fmt.Errorf("store: append entry %d: %w", e.Index, err)
		}
		d.offsets = append(d.offsets, offset)
		d.entries = append(d.entries, e)
		offset += int64(n)
	}
	return d.logF.Sync()
}

// TruncateFrom discards in-memory and on-disk entries with Index >= from.
func (d *Disk) TruncateFrom(from uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cut := len(d.entries)
	for i, e := range d.entries {
		if e.Index >= from {
			cut = i
			break
		}
	}
	if cut == len(d.entries) {
		return nil
	}

	truncateAt := d.offsets[cut]
	if err := d.logF.Truncate(truncateAt); err != nil {
		return fmt.Errorf("store: truncate log: %w", err)
	}
	if _, err := d.logF.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	d.offsets = d.offsets[:cut]
	d.entries = d.entries[:cut]
	return nil
}

func (d *Disk) Entries(from, to uint64) ([]LogEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []LogEntry
	for _, e := range d.entries {
		if e.Index >= from && e.Index <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *Disk) Entry(index uint64) (LogEntry, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range d.entries {
		if e.Index == index {
			return e, true, nil
		}
	}
	return LogEntry{}, false, nil
}

func (d *Disk) LastIndex() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) == 0 {
		return 0
	}
	return d.entries[len(d.entries)-1].Index
}

func (d *Disk) LastTerm() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) == 0 {
		return 0
	}
	return d.entries[len(d.entries)-1].Term
}

func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.logF.Close()
	unix.Close(d.lockFd)
	return err
}
