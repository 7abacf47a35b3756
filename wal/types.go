package wal

import (
	"time"
)

// DurabilityMode defines the fsync behavior for WAL writes.
type DurabilityMode int

const (
	// DurabilityAsync performs no fsync. Fastest writes, data loss possible
	// on crash. Use when external replication provides durability.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit batches fsync at regular intervals, amortizing
	// its cost across operations. Recommended for most workloads.
	DurabilityGroupCommit

	// DurabilitySync performs an fsync after every operation. Slowest but
	// strongest guarantee.
	DurabilitySync
)

// OperationType represents the type of operation in the WAL.
type OperationType uint8

const (
	// OpInsert records a document insert.
	OpInsert OperationType = iota
	// OpUpdate records a document update.
	OpUpdate
	// OpDelete records a document delete.
	OpDelete
	// OpCheckpoint marks a checkpoint. Entries before the last checkpoint
	// are covered by a snapshot and skipped during replay.
	OpCheckpoint
	// OpDropCollection records the removal of an entire collection.
	OpDropCollection
)

// Entry represents a single entry in the WAL.
type Entry struct {
	Type       OperationType `json:"t"`
	Collection string        `json:"c,omitempty"`
	DocID      string        `json:"id,omitempty"`
	Payload    []byte        `json:"p,omitempty"` // codec-encoded document
	SeqNum     uint64        `json:"s"`
}

// Options contains configuration for the WAL.
type Options struct {
	// Path is the directory where the WAL file is stored.
	Path string

	// Compress enables zstd compression of entry payloads.
	Compress bool

	// DurabilityMode selects the fsync policy.
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the fsync cadence for DurabilityGroupCommit.
	GroupCommitInterval time.Duration

	// AutoCheckpointOps triggers a checkpoint after this many checkpoint
	// opportunities. 0 disables op-based auto-checkpointing.
	AutoCheckpointOps int

	// AutoCheckpointMB triggers a checkpoint when the log exceeds this size.
	// 0 disables size-based auto-checkpointing.
	AutoCheckpointMB int

	// CheckpointRate caps how often auto-checkpoints may fire, regardless of
	// thresholds. Zero means at most one every 10 seconds.
	CheckpointRate float64
}

// DefaultOptions are the default WAL options.
var DefaultOptions = Options{
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	AutoCheckpointOps:   10_000,
	AutoCheckpointMB:    64,
}

// CheckpointSignaler receives checkpoint opportunities from the execution
// engine. Implementations must be non-blocking from the caller's view.
type CheckpointSignaler interface {
	OnCheckpointOpportunity()
}

// NoopSignaler ignores checkpoint opportunities. Used when the WAL is
// disabled.
type NoopSignaler struct{}

// OnCheckpointOpportunity implements CheckpointSignaler.
func (NoopSignaler) OnCheckpointOpportunity() {}
