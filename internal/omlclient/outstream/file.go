package outstream

import (
	"bufio"
	"io"
	"os"
)

// File is the `file:`/`flush:` collection URI variant (spec.md §4.5). It
// has no reconnect concept, so unlike TCP the header is only ever written
// once: on the first Write, before any data.
type File struct {
	path          string
	dest          string
	f             *os.File
	w             io.Writer
	buf           *bufio.Writer
	noFlush       bool
	headerWritten bool
}

// OpenFile creates (or truncates) path for writing. If unbuffered is true
// (the `flush:` scheme) every Write is flushed immediately.
func OpenFile(path string, unbuffered bool) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	fs := &File{path: path, dest: "file:" + path, f: f, noFlush: unbuffered}
	if unbuffered {
		fs.w = f
	} else {
		fs.buf = bufio.NewWriter(f)
		fs.w = fs.buf
	}
	return fs, nil
}

func (fs *File) Write(data, header []byte) (int, error) {
	if !fs.headerWritten {
		fs.headerWritten = true
		if len(header) > 0 {
			if _, err := fs.w.Write(header); err != nil {
				return 0, err
			}
		}
	}

	n, err := fs.w.Write(data)
	if err == nil && !fs.noFlush {
		err = fs.buf.Flush()
	}
	return n, err
}

func (fs *File) Close() error {
	if fs.buf != nil {
		fs.buf.Flush()
	}
	return fs.f.Close()
}

func (fs *File) Dest() string { return fs.dest }
