package omlclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/oml-collect/oml/internal/omlclient/bufferedwriter"
)

// Writer is the contract shared by the text and binary encoders (spec.md
// §4.3). Writers are chained in a singly-linked list via Close's return
// value so Client.Close can iterate teardown in attachment order.
//
// row_start/emit_cols/row_end map directly onto the BufferedWriter's
// chunk-locking discipline: RowStart acquires the chunk, EmitCols may be
// called any number of times while it is held, RowEnd releases it.
type Writer interface {
	Meta(line []byte)
	HeaderDone()
	RowStart(ms *MeasurementStream, now time.Time) error
	EmitCols(values []Value)
	RowEnd(ms *MeasurementStream) error
	Close() (Writer, error)
}

// baseWriter holds the state common to both encodings: the BufferedWriter
// sink, the singly-linked chain pointer and the in-progress row handle.
//
// rowMu serializes RowStart..RowEnd brackets across goroutines. The
// original C library relies solely on the MP lock for this (one filter
// timer thread per periodic MS, each taking only its own MP's lock) and
// so can in principle race two MPs sharing one writer; rowMu closes that
// gap since Go's race detector (and Go's concurrency model generally)
// makes such a latent race a real liability rather than a theoretical one.
type baseWriter struct {
	bw    *bufferedwriter.BufferedWriter
	next  Writer
	row   *bufferedwriter.Row
	rowMu sync.Mutex
}

func (b *baseWriter) Meta(line []byte) { b.bw.AppendMeta(line) }

// chainClose closes this writer's BufferedWriter and returns the next link,
// satisfying Writer.Close's "close() -> next_writer" contract.
func (b *baseWriter) chainClose() (Writer, error) {
	if err := b.bw.Close(); err != nil {
		return b.next, fmt.Errorf("omlclient: writer close: %w", err)
	}
	return b.next, nil
}
