// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bufferedwriter implements the client-side non-blocking, bounded,
// self-draining double-buffered queue that decouples measurement injection
// from network I/O (spec.md §4.4). A producer (the injecting goroutine,
// serialized through the owning measurement point's lock) writes rows into
// the current chunk; a single consumer goroutine drains chunks in ring
// order onto an OutStream.
package bufferedwriter

import (
	"sync"
)

// ChunkSize is the default target fill level of one chunk before the
// writer advances to the next link in the ring. Mirrors the teacher's
// memorystore buffer.BufferCap default-capacity constant.
const ChunkSize = 8192

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{data: make([]byte, 0, ChunkSize)}
	},
}

// chunk is a fixed-target-size byte arena with its own mutex and message
// count, forming one link in the BufferedWriter's ring (spec.md §3,
// "BufferChunk"). Grounded on internal/memorystore/buffer.go's buffer
// type, generalized from a float ring to a raw byte arena since OMSP rows
// are pre-encoded bytes rather than fixed-width float samples.
type chunk struct {
	mu       sync.Mutex
	data     []byte
	nMsgs    int
	next     *chunk
	inflight int // bytes belonging to a message still being written
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.data = c.data[:0]
	c.nMsgs = 0
	c.next = nil
	c.inflight = 0
	return c
}

func (c *chunk) release() {
	if cap(c.data) == ChunkSize {
		chunkPool.Put(c)
	}
}

// beginMessage marks the current write offset as the start of a
// possibly-multi-write message (emit_cols may be called many times
// between row_start/row_end).
func (c *chunk) beginMessage() {
	c.inflight = len(c.data)
}

// messageBytes returns the bytes written since beginMessage, used to move
// a partially-written message whole into a new chunk on advance (spec.md
// §4.4 step 4: "messages never straddle chunk boundaries").
func (c *chunk) messageBytes() []byte {
	return c.data[c.inflight:]
}

func (c *chunk) discardMessage() {
	c.data = c.data[:c.inflight]
}

func (c *chunk) full(target int) bool {
	return len(c.data) >= target
}
