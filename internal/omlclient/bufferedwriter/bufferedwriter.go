package bufferedwriter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
)

// OutStream is the minimal contract a transport must satisfy to receive
// drained bytes (spec.md §4.5). header is the full accumulated meta buffer
// snapshot; implementations only need to act on it around a reconnect.
type OutStream interface {
	Write(data, header []byte) (int, error)
	Close() error
	Dest() string
}

// Logger is the minimal logging contract BufferedWriter needs; satisfied
// by internal/omllog.Adapter (kept as a thin interface here so this
// package does not depend on omllog directly).
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}

// BufferedWriter is the client-side concurrency core of spec.md §4.4: a
// ring of byte chunks written by one or more producers (serialized
// upstream by the owning measurement point's lock, but still mutually
// exclusive here via per-chunk mutexes) and drained by a single consumer
// goroutine onto an OutStream with reconnect backoff.
//
// Grounded on internal/memorystore/buffer.go (chunk chaining, sync.Pool
// reuse) and internal/memorystore/level.go (split-lock discipline: each
// chunk's mutex guards its own cursors, the BufferedWriter's mutex guards
// the ring topology and the writer/reader cursors).
type BufferedWriter struct {
	mu                 sync.Mutex
	writerChunk        *chunk
	nextReaderChunk    *chunk
	unallocatedBuffers int
	targetSize         int

	metaMu  sync.Mutex
	metaBuf []byte

	readBuf []byte
	readPos int

	out OutStream
	log Logger

	lastFailure time.Time
	backingOff  bool
	curWait     time.Duration
	bo          *backoff.Backoff

	nLost uint64

	sem    chan struct{}
	active int32
	done   chan struct{}

	shutdownDrainedFully bool
}

// New creates a BufferedWriter with one initial chunk plus maxExtraChunks
// worth of on-demand allocation budget, and starts its drain goroutine.
// targetSize is the per-chunk fill threshold before advancing (spec.md
// §4.4, "Chunk advancement on write").
func New(out OutStream, targetSize, maxExtraChunks int, log Logger) *BufferedWriter {
	if log == nil {
		log = nopLogger{}
	}
	first := newChunk()
	first.next = first // single-chunk ring until grown
	bw := &BufferedWriter{
		writerChunk:        first,
		nextReaderChunk:    first,
		unallocatedBuffers: maxExtraChunks,
		targetSize:         targetSize,
		out:                out,
		log:                log,
		sem:                make(chan struct{}, 1),
		active:             1,
		done:               make(chan struct{}),
		bo:                 &backoff.Backoff{Min: time.Second, Max: 255 * time.Second, Factor: 2, Jitter: false},
	}
	go bw.run()
	return bw
}

func (bw *BufferedWriter) signal() {
	select {
	case bw.sem <- struct{}{}:
	default:
	}
}

// AppendMeta appends a schema-0 row (or header line) to the replay buffer
// without signaling the drain semaphore, per spec.md §4.4 "Header replay".
func (bw *BufferedWriter) AppendMeta(line []byte) {
	bw.metaMu.Lock()
	bw.metaBuf = append(bw.metaBuf, line...)
	bw.metaMu.Unlock()
}

func (bw *BufferedWriter) metaSnapshot() []byte {
	bw.metaMu.Lock()
	defer bw.metaMu.Unlock()
	return append([]byte(nil), bw.metaBuf...)
}

// NLostReset returns and zeroes the lost-message counter (spec.md §4.4
// "Message-loss accounting").
func (bw *BufferedWriter) NLostReset() uint64 {
	return atomic.SwapUint64(&bw.nLost, 0)
}

// Row is an opaque handle on the chunk a caller holds exclusively between
// RowStart and RowEnd. Exported so Writer implementations in package
// omlclient can hold a reference across the three calls without this
// package exposing its internal chunk type.
type Row struct {
	c *chunk
}

// RowStart acquires the current chunk exclusively, advancing the ring if
// it is already at or beyond targetSize, and marks the start offset of an
// in-progress message.
func (bw *BufferedWriter) RowStart() *Row {
	if atomic.LoadInt32(&bw.active) == 0 {
		return nil
	}
	c := bw.getWriteBuf()
	c.beginMessage()
	return &Row{c: c}
}

// Append writes p into the row started by RowStart.
func (bw *BufferedWriter) Append(r *Row, p []byte) {
	r.c.data = append(r.c.data, p...)
}

// RowEnd increments the chunk's message count by exactly one, releases it
// and wakes the drain goroutine.
func (bw *BufferedWriter) RowEnd(r *Row) {
	r.c.nMsgs++
	r.c.inflight = len(r.c.data)
	r.c.mu.Unlock()
	bw.signal()
}

func (bw *BufferedWriter) getWriteBuf() *chunk {
	bw.mu.Lock()
	c := bw.writerChunk
	bw.mu.Unlock()

	c.mu.Lock()
	if !c.full(bw.targetSize) {
		return c
	}
	return bw.advance(c)
}

// advance implements spec.md §4.4's five-step chunk-advancement algorithm.
// Called with c locked; returns the new current chunk, locked.
func (bw *BufferedWriter) advance(c *chunk) *chunk {
	c.mu.Unlock()
	bw.mu.Lock()

	if bw.writerChunk != c {
		// Lost the race to another producer that already advanced;
		// just use whatever is current now.
		cur := bw.writerChunk
		bw.mu.Unlock()
		cur.mu.Lock()
		if cur.full(bw.targetSize) {
			return bw.advance(cur)
		}
		return cur
	}

	newc := c.next
	if newc == bw.nextReaderChunk {
		if bw.unallocatedBuffers > 0 {
			bw.unallocatedBuffers--
			inserted := newChunk()
			inserted.next = newc
			c.next = inserted
			newc = inserted
		} else {
			bw.nextReaderChunk = bw.nextReaderChunk.next
		}
	}

	bw.writerChunk = newc
	bw.mu.Unlock()

	newc.mu.Lock()
	if newc.nMsgs > 0 {
		atomic.AddUint64(&bw.nLost, uint64(newc.nMsgs))
	}
	newc.data = newc.data[:0]
	newc.nMsgs = 0
	newc.inflight = 0

	partial := c.messageBytes()
	if len(partial) > 0 {
		newc.data = append(newc.data, partial...)
		c.discardMessage()
	}
	return newc
}

// run is the single consumer goroutine: drains the ring onto the
// OutStream, backing off after transport failures (spec.md §4.4 "Drain
// thread loop").
func (bw *BufferedWriter) run() {
	for {
		select {
		case <-bw.sem:
		}

		bw.drainPass()

		if atomic.LoadInt32(&bw.active) == 0 {
			deadline := time.Now().Add(5 * time.Second)
			full := bw.drainPass()
			for !full && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
				full = bw.drainPass()
			}
			bw.shutdownDrainedFully = full
			close(bw.done)
			return
		}
	}
}

// drainPass walks chunks from nextReaderChunk to writerChunk, draining
// each; stops at the first chunk that reports "backing off". Returns true
// iff it reached and fully drained the writer chunk.
func (bw *BufferedWriter) drainPass() bool {
	for {
		bw.mu.Lock()
		c := bw.nextReaderChunk
		atWriter := c == bw.writerChunk
		bw.mu.Unlock()

		sent := bw.processChunk(c)
		if !sent {
			return false
		}
		if atWriter {
			return true
		}

		bw.mu.Lock()
		if bw.nextReaderChunk == c {
			bw.nextReaderChunk = c.next
		}
		bw.mu.Unlock()
	}
}

// processChunk implements spec.md §4.4's "Drain per chunk" algorithm.
func (bw *BufferedWriter) processChunk(c *chunk) bool {
	if bw.backingOff && time.Since(bw.lastFailure) < bw.curWait {
		return false
	}

	if bw.readPos >= len(bw.readBuf) {
		c.mu.Lock()
		bw.readBuf, c.data = c.data, bw.readBuf[:0]
		c.nMsgs = 0
		c.inflight = 0
		c.mu.Unlock()
		bw.readPos = 0
	}

	header := bw.metaSnapshot()
	for bw.readPos < len(bw.readBuf) {
		n, err := bw.out.Write(bw.readBuf[bw.readPos:], header)
		if err != nil || n == 0 {
			wasBackingOff := bw.backingOff
			bw.lastFailure = time.Now()
			bw.backingOff = true
			if !wasBackingOff {
				bw.bo.Reset()
			}
			bw.curWait = bw.bo.Duration()
			bw.log.Warnf("bufferedwriter: transport write failed to %s, backing off %s", bw.out.Dest(), bw.curWait)
			return false
		}
		bw.readPos += n
	}

	if bw.backingOff {
		bw.log.Infof("bufferedwriter: connected to %s", bw.out.Dest())
		bw.backingOff = false
		bw.curWait = 0
		bw.bo.Reset()
	}
	return true
}

// Close implements spec.md §4.4's cancellation/shutdown ordering: stop the
// producer side, join the drain goroutine (which makes a best effort to
// fully drain first), then close the transport.
func (bw *BufferedWriter) Close() error {
	atomic.StoreInt32(&bw.active, 0)
	bw.signal()
	<-bw.done
	bw.releaseChunks()
	return bw.out.Close()
}

// releaseChunks returns every chunk in the ring to chunkPool. Only safe
// once run() has exited (after <-bw.done): no producer or drain goroutine
// can still be holding a chunk's lock or splicing it into another ring.
func (bw *BufferedWriter) releaseChunks() {
	start := bw.writerChunk
	if start == nil {
		return
	}
	for c := start; ; {
		next := c.next
		c.next = nil
		c.release()
		if next == start {
			return
		}
		c = next
	}
}

// FullyDrained reports whether the final shutdown drain emptied the ring.
func (bw *BufferedWriter) FullyDrained() bool { return bw.shutdownDrainedFully }
