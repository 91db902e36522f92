package outstream

import (
	"errors"
	"net"
	"sync"
	"syscall"
	"time"
)

// TCP is the reconnecting network collection sink (spec.md §4.5). On first
// send, or after a detected disconnect, it walks a freshly resolved
// address list (DNS multi-AF, mirroring the original's address-iterator)
// and dials each in turn; ECONNREFUSED advances to the next address,
// anything else is reported to the caller as "still disconnected" so the
// BufferedWriter's backoff takes over pacing the retries.
//
// Reconnect/backoff shape is grounded on pkg/nats/client.go's
// DisconnectErrHandler/ReconnectHandler pair, adapted from a pub/sub
// client library to a raw byte stream with header replay.
type TCP struct {
	mu            sync.Mutex
	host          string
	port          string
	dest          string
	conn          net.Conn
	headerWritten bool
	addrs         []string
	addrIdx       int
	log           Logger
	dialTimeout   time.Duration
}

// NewTCP constructs a TCP sink targeting host:port. No connection is made
// until the first Write.
func NewTCP(host, port string, log Logger) *TCP {
	if log == nil {
		log = nopLogger{}
	}
	return &TCP{host: host, port: port, dest: "tcp://" + net.JoinHostPort(host, port), log: log, dialTimeout: 5 * time.Second}
}

func (t *TCP) Dest() string { return t.dest }

// ensureConnected resolves (on first use or after disconnect) and dials
// the next candidate address. Returns the live connection or an error; a
// dial failure against one address is not fatal -- the caller should
// retry (the BufferedWriter's backoff governs pacing).
func (t *TCP) ensureConnected() (net.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}

	if len(t.addrs) == 0 || t.addrIdx >= len(t.addrs) {
		ips, err := net.LookupHost(t.host)
		if err != nil || len(ips) == 0 {
			return nil, errors.New("outstream: dns resolution failed for " + t.host)
		}
		t.addrs = ips
		t.addrIdx = 0
	}

	addr := net.JoinHostPort(t.addrs[t.addrIdx], t.port)
	conn, err := net.DialTimeout("tcp", addr, t.dialTimeout)
	if err != nil {
		if isRefused(err) {
			t.addrIdx++
		}
		return nil, err
	}

	t.conn = conn
	t.headerWritten = false
	t.log.Infof("outstream: connected to %s (%s)", t.dest, addr)
	return conn, nil
}

func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// errConnRefused returns the error a *net.OpError wraps (the underlying
// syscall error of a failed dial), or err itself if it is not one.
func errConnRefused(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err
	}
	return err
}

// Write sends data, first transmitting header (the accumulated meta
// buffer) in full if this is the first payload since (re)connecting.
// Returns 0 with a nil error to signal "try again after backoff" -- the
// caller treats n==0 as a soft failure regardless of err.
func (t *TCP) Write(data, header []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.ensureConnected()
	if err != nil {
		return 0, nil
	}

	if !t.headerWritten && len(header) > 0 {
		if _, werr := writeFull(conn, header); werr != nil {
			t.disconnectLocked()
			return 0, nil
		}
		t.headerWritten = true
	} else if !t.headerWritten {
		t.headerWritten = true
	}

	n, err := conn.Write(data)
	if err != nil {
		t.disconnectLocked()
		return 0, nil
	}
	return n, nil
}

func writeFull(conn net.Conn, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := conn.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (t *TCP) disconnectLocked() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.headerWritten = false
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
