package omlclient

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/oml-collect/oml/internal/omlclient/bufferedwriter"
)

// Binary wire constants (spec.md §4.3). These byte values are duplicated
// in internal/omlserver's decoder rather than shared through an import:
// client and server are logically separate programs that only agree on
// the wire, mirroring the original's separate client/server C sources
// (lib/client/bin_writer.c, server/client_handler.c).
const (
	binSync0 = 0xAA
	binSync1 = 0xAA

	binTagDataP  = 0x1 // short payload, 1-byte length
	binTagLDataP = 0x2 // long payload, 4-byte big-endian length

	binShortLenMax = 0xFF

	binKindInt32  = 0x1
	binKindUint32 = 0x2
	binKindInt64  = 0x3
	binKindUint64 = 0x4
	binKindDouble = 0x5
	binKindBool   = 0x6
	binKindString = 0x7
	binKindBlob   = 0x8
	binKindGuid   = 0x9
)

// binaryWriter implements the packed binary encoding of spec.md §4.3.
// Grounded on internal/memorystore/lineprotocol.go's scratch-buffer reuse
// pattern for the encode-side scratch, generalized from the teacher's
// line-protocol text format to a length-prefixed binary frame.
type binaryWriter struct {
	baseWriter
	start    time.Time
	payload  []byte // packed value stream, built between RowStart/RowEnd
	upgraded bool   // monotone DATA_P -> LDATA_P upgrade, never downgrades
}

// NewBinaryWriter wraps bw with the binary encoder.
func NewBinaryWriter(bw *bufferedwriter.BufferedWriter, start time.Time, next Writer) Writer {
	return &binaryWriter{baseWriter: baseWriter{bw: bw, next: next}, start: start}
}

func (w *binaryWriter) HeaderDone() {}

func (w *binaryWriter) RowStart(ms *MeasurementStream, now time.Time) error {
	w.rowMu.Lock()
	w.row = w.bw.RowStart()
	if w.row == nil {
		w.rowMu.Unlock()
		return fmt.Errorf("omlclient: binary writer closed")
	}
	ts := now.Sub(w.start).Seconds()
	w.payload = w.payload[:0]
	w.payload = appendBinValue(w.payload, Uint32(uint32(ms.Index)))
	w.payload = appendBinValue(w.payload, Uint64(ms.Seq()))
	w.payload = appendBinValue(w.payload, Double(ts))
	return nil
}

func (w *binaryWriter) EmitCols(values []Value) {
	for _, v := range values {
		w.payload = appendBinValue(w.payload, v)
	}
}

func (w *binaryWriter) RowEnd(ms *MeasurementStream) error {
	frame := w.frame(w.payload)
	w.bw.Append(w.row, frame)
	if ms.Index == 0 {
		w.bw.AppendMeta(frame)
	}
	w.bw.RowEnd(w.row)
	w.row = nil
	w.rowMu.Unlock()
	return nil
}

// frame wraps payload with sync bytes, type tag and length. If payload
// exceeds the short-length limit the tag upgrades to LDATA_P for this and
// every subsequent message on this writer (monotone; spec.md §4.3).
func (w *binaryWriter) frame(payload []byte) []byte {
	if len(payload) > binShortLenMax {
		w.upgraded = true
	}

	var out []byte
	if w.upgraded {
		out = make([]byte, 0, 2+1+4+len(payload))
		out = append(out, binSync0, binSync1, binTagLDataP)
		out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	} else {
		out = make([]byte, 0, 2+1+1+len(payload))
		out = append(out, binSync0, binSync1, binTagDataP, byte(len(payload)))
	}
	return append(out, payload...)
}

func (w *binaryWriter) Close() (Writer, error) { return w.chainClose() }

// appendBinValue encodes one tagged value: a one-byte kind marker followed
// by a big-endian payload of the kind's natural width (length-prefixed for
// string/blob).
func appendBinValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindInt32:
		dst = append(dst, binKindInt32)
		return binary.BigEndian.AppendUint32(dst, uint32(v.I32))
	case KindUint32:
		dst = append(dst, binKindUint32)
		return binary.BigEndian.AppendUint32(dst, v.U32)
	case KindInt64:
		dst = append(dst, binKindInt64)
		return binary.BigEndian.AppendUint64(dst, uint64(v.I64))
	case KindUint64:
		dst = append(dst, binKindUint64)
		return binary.BigEndian.AppendUint64(dst, v.U64)
	case KindDouble:
		dst = append(dst, binKindDouble)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.F64))
	case KindBool:
		dst = append(dst, binKindBool)
		if v.B {
			return append(dst, 1)
		}
		return append(dst, 0)
	case KindString:
		dst = append(dst, binKindString)
		s := v.Str
		if len(s) > 0xFF {
			s = s[:0xFF]
		}
		dst = append(dst, byte(len(s)))
		return append(dst, s...)
	case KindBlob:
		dst = append(dst, binKindBlob)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.Blob)))
		return append(dst, v.Blob...)
	case KindGuid:
		dst = append(dst, binKindGuid)
		return binary.BigEndian.AppendUint64(dst, v.Guid)
	default:
		return dst
	}
}
