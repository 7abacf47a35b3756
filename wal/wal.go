// Package wal provides write-ahead logging and the checkpoint mechanism that
// bounds log growth during long scans.
//
// Every mutation is appended to the log before being acknowledged. The
// execution engine signals a checkpoint opportunity after each yielded stream
// element; the WAL decides — based on op and size thresholds plus a rate
// limit — whether an actual checkpoint (snapshot + log truncation) should be
// scheduled. Scheduling is non-blocking so a reader holding the shared lock
// is never stalled by checkpoint bookkeeping.
package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/resource"
)

// WAL provides write-ahead logging for durability.
type WAL struct {
	mu         sync.Mutex
	file       *os.File
	codec      codec.Codec
	compressed bool
	seqNum     uint64
	filePath   string
	dataOffset int64 // start of the entry stream, after the header
	size       atomic.Int64

	durabilityMode      DurabilityMode
	groupCommitInterval time.Duration
	groupCommitTicker   *time.Ticker
	groupCommitStopCh   chan struct{}
	groupCommitWg       sync.WaitGroup
	dirty               atomic.Bool

	// Auto-checkpoint state
	autoCheckpointOps int
	autoCheckpointMB  int
	opportunities     atomic.Int64
	limiter           *rate.Limiter
	checkpointFunc    func() error
	ctl               *resource.Controller

	closed atomic.Bool
}

var _ CheckpointSignaler = (*WAL)(nil)

// New creates or reopens a WAL in the given directory.
func New(c codec.Codec, ctl *resource.Controller, optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if c == nil {
		c = codec.Default
	}

	if err := os.MkdirAll(opts.Path, 0o750); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}

	filePath := filepath.Join(opts.Path, "docgo.wal")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path is configurable
	if err != nil {
		return nil, fmt.Errorf("wal: open file: %w", err)
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("wal: stat file: %w", err)
	}

	cpRate := opts.CheckpointRate
	if cpRate <= 0 {
		cpRate = 0.1 // one checkpoint per 10s
	}

	w := &WAL{
		file:                file,
		codec:               c,
		compressed:          opts.Compress,
		filePath:            filePath,
		durabilityMode:      opts.DurabilityMode,
		groupCommitInterval: opts.GroupCommitInterval,
		autoCheckpointOps:   opts.AutoCheckpointOps,
		autoCheckpointMB:    opts.AutoCheckpointMB,
		limiter:             rate.NewLimiter(rate.Limit(cpRate), 1),
		ctl:                 ctl,
	}

	if st.Size() == 0 {
		if err := writeHeader(file, c, opts.Compress); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("wal: write header: %w", err)
		}
		off, err := file.Seek(0, 1)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		w.dataOffset = off
	} else {
		headerCodec, compressed, off, err := readHeader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		w.codec = headerCodec
		w.compressed = compressed
		w.dataOffset = off
		if _, err := file.Seek(0, 2); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	w.size.Store(st.Size())

	if w.durabilityMode == DurabilityGroupCommit {
		w.startGroupCommit()
	}

	return w, nil
}

// FilePath returns the path to the WAL file.
func (w *WAL) FilePath() string { return w.filePath }

// Size returns the current log size in bytes.
func (w *WAL) Size() int64 { return w.size.Load() }

// SetCheckpointCallback registers the function invoked when an
// auto-checkpoint fires. The callback runs on a background worker.
func (w *WAL) SetCheckpointCallback(fn func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkpointFunc = fn
}

// Log appends an entry and applies the configured durability policy.
func (w *WAL) Log(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return os.ErrClosed
	}

	w.seqNum++
	e.SeqNum = w.seqNum

	buf, err := encodeEntry(w.codec, e, w.compressed)
	if err != nil {
		return err
	}

	if _, err := w.file.Write(buf); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	w.size.Add(int64(len(buf)))

	switch w.durabilityMode {
	case DurabilitySync:
		return w.file.Sync()
	case DurabilityGroupCommit:
		w.dirty.Store(true)
	}
	return nil
}

// Sync forces an fsync of the log.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// OnCheckpointOpportunity implements CheckpointSignaler.
//
// Called by the execution engine once per yielded stream element, inside the
// shared-lock region. It only bumps counters and, when thresholds and the
// rate limit agree, schedules the checkpoint callback on a background
// worker. It never blocks.
func (w *WAL) OnCheckpointOpportunity() {
	if w.checkpointFunc == nil || w.closed.Load() {
		return
	}

	n := w.opportunities.Add(1)

	opsHit := w.autoCheckpointOps > 0 && n >= int64(w.autoCheckpointOps)
	sizeHit := w.autoCheckpointMB > 0 && w.size.Load() >= int64(w.autoCheckpointMB)<<20
	if !opsHit && !sizeHit {
		return
	}

	if !w.limiter.Allow() {
		return
	}

	w.opportunities.Store(0)
	fn := w.checkpointFunc
	if !w.ctl.TryRunBackground(func() { _ = fn() }) {
		// Worker budget exhausted; the next opportunity retries.
		w.opportunities.Store(n)
	}
}

// Checkpoint truncates the log back to its header. The caller must have
// persisted a snapshot covering all logged operations first.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return os.ErrClosed
	}

	if err := w.file.Truncate(w.dataOffset); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.file.Seek(w.dataOffset, 0); err != nil {
		return err
	}
	w.size.Store(w.dataOffset)
	w.opportunities.Store(0)
	return w.file.Sync()
}

// Close stops background workers and closes the log file.
func (w *WAL) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	if w.groupCommitStopCh != nil {
		close(w.groupCommitStopCh)
		w.groupCommitWg.Wait()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *WAL) startGroupCommit() {
	interval := w.groupCommitInterval
	if interval <= 0 {
		interval = DefaultOptions.GroupCommitInterval
	}
	w.groupCommitTicker = time.NewTicker(interval)
	w.groupCommitStopCh = make(chan struct{})

	w.groupCommitWg.Add(1)
	go func() {
		defer w.groupCommitWg.Done()
		defer w.groupCommitTicker.Stop()
		for {
			select {
			case <-w.groupCommitTicker.C:
				if w.dirty.CompareAndSwap(true, false) {
					w.mu.Lock()
					_ = w.file.Sync()
					w.mu.Unlock()
				}
			case <-w.groupCommitStopCh:
				return
			}
		}
	}()
}
