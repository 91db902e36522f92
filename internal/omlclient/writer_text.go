package omlclient

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oml-collect/oml/internal/omlclient/bufferedwriter"
)

// textWriter implements the tab-separated line encoding of spec.md §4.3:
// `<ts_client>\t<schema_index>\t<seq>\t<field_1>...\n`.
//
// Grounded on internal/memorystore/lineprotocol.go's streaming decode loop
// for the inverse shape (this is the encode side); the escaping rules
// mirror the spec's backslash-over-tab/newline/backslash convention.
type textWriter struct {
	baseWriter
	start   time.Time
	lineBuf []byte
}

// NewTextWriter wraps bw with the text encoder. start is the client's
// session start time, used to compute ts_client as seconds elapsed.
func NewTextWriter(bw *bufferedwriter.BufferedWriter, start time.Time, next Writer) Writer {
	return &textWriter{baseWriter: baseWriter{bw: bw, next: next}, start: start}
}

func (w *textWriter) HeaderDone() {}

func (w *textWriter) RowStart(ms *MeasurementStream, now time.Time) error {
	w.rowMu.Lock()
	w.row = w.bw.RowStart()
	if w.row == nil {
		w.rowMu.Unlock()
		return fmt.Errorf("omlclient: text writer closed")
	}
	ts := now.Sub(w.start).Seconds()
	w.lineBuf = w.lineBuf[:0]
	w.lineBuf = strconv.AppendFloat(w.lineBuf, ts, 'f', 6, 64)
	w.lineBuf = append(w.lineBuf, '\t')
	w.lineBuf = strconv.AppendInt(w.lineBuf, int64(ms.Index), 10)
	w.lineBuf = append(w.lineBuf, '\t')
	w.lineBuf = strconv.AppendUint(w.lineBuf, ms.Seq(), 10)
	return nil
}

func (w *textWriter) EmitCols(values []Value) {
	for _, v := range values {
		w.lineBuf = append(w.lineBuf, '\t')
		w.lineBuf = appendTextValue(w.lineBuf, v)
	}
}

func (w *textWriter) RowEnd(ms *MeasurementStream) error {
	w.lineBuf = append(w.lineBuf, '\n')
	w.bw.Append(w.row, w.lineBuf)
	if ms.Index == 0 {
		w.bw.AppendMeta(w.lineBuf)
	}
	w.bw.RowEnd(w.row)
	w.row = nil
	w.rowMu.Unlock()
	return nil
}

func (w *textWriter) Close() (Writer, error) { return w.chainClose() }

// appendTextValue formats one value per spec.md §4.3's text rules: decimal
// for numerics, 0/1 for bool, backslash-escaped for strings, base64 for
// blobs.
func appendTextValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindInt32:
		return strconv.AppendInt(dst, int64(v.I32), 10)
	case KindUint32:
		return strconv.AppendUint(dst, uint64(v.U32), 10)
	case KindInt64:
		return strconv.AppendInt(dst, v.I64, 10)
	case KindUint64:
		return strconv.AppendUint(dst, v.U64, 10)
	case KindDouble:
		return strconv.AppendFloat(dst, v.F64, 'f', 6, 64)
	case KindBool:
		if v.B {
			return append(dst, '1')
		}
		return append(dst, '0')
	case KindString:
		return append(dst, escapeText(v.Str)...)
	case KindBlob:
		return append(dst, base64.StdEncoding.EncodeToString(v.Blob)...)
	case KindGuid:
		return strconv.AppendUint(dst, v.Guid, 10)
	default:
		return dst
	}
}

// escapeText backslash-escapes tab, newline and backslash itself, per
// spec.md §4.3.
func escapeText(s string) string {
	if !strings.ContainsAny(s, "\t\n\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
