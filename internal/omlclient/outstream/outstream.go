// Package outstream implements the client-side transport variants named
// in spec.md §4.5: a file sink and a reconnecting TCP sink, both exposing
// the bufferedwriter.OutStream contract.
package outstream

// OutStream mirrors bufferedwriter.OutStream; kept as a local type so this
// package has no dependency on bufferedwriter (only the Write/Close/Dest
// shape has to line up structurally).
type OutStream interface {
	Write(data, header []byte) (int, error)
	Close() error
	Dest() string
}

// Logger is the minimal logging contract used for connect/reconnect
// messages.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}
