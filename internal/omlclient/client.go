package omlclient

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oml-collect/oml/internal/omlclient/bufferedwriter"
	"github.com/oml-collect/oml/internal/omlclient/outstream"
	"github.com/oml-collect/oml/internal/omllog"
)

// Client is the instrumented application's explicit handle onto the OMSP
// client pipeline (spec.md §4.1, §9: "explicit handle, not a global
// singleton" is this spec's one Open Question resolved in favor of
// testability). One process may hold several independent Clients.
type Client struct {
	appName string
	cfg     Config
	noop    bool

	mu        sync.Mutex
	mps       map[string]*MeasurementPoint
	nextIndex int
	started   bool
	startTime time.Time

	writer  Writer
	bw      *bufferedwriter.BufferedWriter
	schema0 *MeasurementStream // stream index 0, _experiment_metadata

	sigCh chan os.Signal
}

// Init validates appName and the parsed Config (the built-in filters are
// already registered via each filter's init()). It neither declares schema
// 0 nor opens any transport -- both happen in Start, matching
// spec.md §4.1's init/start split.
func Init(appName string, cfg Config) (*Client, error) {
	if !ValidIdentifier(appName) {
		return nil, fmt.Errorf("omlclient: invalid app name %q", appName)
	}
	if cfg.Noop {
		return &Client{appName: appName, cfg: cfg, noop: true, mps: map[string]*MeasurementPoint{}, nextIndex: 1}, nil
	}
	omllog.SetLevel(cfg.LogLevel)
	return &Client{
		appName:   appName,
		cfg:       cfg,
		mps:       map[string]*MeasurementPoint{},
		nextIndex: 1,
	}, nil
}

// AddMP validates and registers a measurement point. May be called before
// or after Start; if the client has already started, this also emits a
// schema-0 metadata record announcing the MP's default stream so a
// reconnecting server (or one observing the replayed meta buffer) learns
// about it (spec.md §4.1).
func (c *Client) AddMP(name string, fields []Field) (*MeasurementPoint, error) {
	if c.noop {
		return &MeasurementPoint{Name: name, Fields: fields, active: true}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.mps[name]; exists {
		return nil, fmt.Errorf("omlclient: duplicate MP name %q", name)
	}
	mp, err := newMeasurementPoint(c, name, fields)
	if err != nil {
		return nil, err
	}
	c.mps[name] = mp

	if c.started {
		ms, err := c.newDefaultStream(mp)
		if err != nil {
			return nil, err
		}
		c.declareSchema(ms)
	}
	return mp, nil
}

// newDefaultStream builds the MS attached by Start (or by a late AddMP)
// for an MP that was not given an explicit filter chain: default filter
// policy per field (spec.md §4.1), threshold or periodic mode from cfg.
func (c *Client) newDefaultStream(mp *MeasurementPoint) (*MeasurementStream, error) {
	threshold := c.cfg.Samples
	if threshold == 0 {
		threshold = 1
	}
	multiSample := threshold > 1 || c.cfg.Interval > 0
	if c.cfg.Interval > 0 {
		threshold = 0
	}

	ms := &MeasurementStream{
		Index:     c.nextIndex,
		Name:      c.appName + "_" + mp.Name,
		TableName: c.appName + "_" + mp.Name,
		mp:        mp,
		Threshold: threshold,
		Period:    c.cfg.Interval,
	}
	c.nextIndex++

	for i, f := range mp.Fields {
		name := defaultFilterName(f.Kind, multiSample)
		if err := ms.attachFilter(name, i); err != nil {
			return nil, err
		}
	}
	ms.setWriter(c.writer)
	mp.streams = append(mp.streams, ms)

	if ms.Period > 0 {
		c.startPeriodicTimer(mp, ms)
	}
	return ms, nil
}

// schemaLine formats the `N NAME field:type ...` body shared by a header
// schema: line and a schema-0 metadata record (spec.md §4.1, §6).
func schemaLine(ms *MeasurementStream) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", ms.Index, ms.Name)
	for _, f := range ms.OutputSchema() {
		fmt.Fprintf(&b, " %s:%s", f.Name, f.Kind.String())
	}
	return b.String()
}

// declareSchema injects a schema-0 record for ms, announcing an MS added
// after Start has already sent its header (spec.md §4.1): the header is
// long gone by then, so the only way to tell a reconnecting server (or
// the replayed meta buffer) about it is a stream-0 metadata row.
func (c *Client) declareSchema(ms *MeasurementStream) {
	c.injectSchemaZero(".", "schema", schemaLine(ms))
}

// injectSchemaZero writes one schema-0 row directly (bypassing the filter
// chain, since stream 0 carries raw metadata, not filtered samples).
func (c *Client) injectSchemaZero(subject, key, value string) {
	if c.writer == nil || c.schema0 == nil {
		return
	}
	c.schema0.seq++
	if err := c.writer.RowStart(c.schema0, time.Now()); err != nil {
		return
	}
	c.writer.EmitCols([]Value{String(subject), String(key), String(value)})
	c.writer.RowEnd(c.schema0)
}

// Start parses any external config (already done by ParseArgs), opens the
// transport, installs the default writer and default filter chain per MP,
// captures start_time, emits protocol headers, emits one schema line per
// declared MS, and installs a termination signal handler that calls
// Close (spec.md §4.1).
func (c *Client) Start() error {
	if c.noop {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("omlclient: already started")
	}

	out, err := c.openCollectURI()
	if err != nil {
		return err
	}

	budget := c.cfg.BufSize
	if budget <= 0 {
		budget = bufferedwriterDefaultBudget
	}
	maxExtra := budget / bufferedwriter.ChunkSize
	if maxExtra < 1 {
		maxExtra = 1
	}
	c.bw = bufferedwriter.New(out, bufferedwriter.ChunkSize, maxExtra, omllog.Adapter{})
	c.schema0 = &MeasurementStream{Index: 0, Name: "_experiment_metadata"}

	c.startTime = time.Now()
	content := c.chooseEncoding()
	if content == "text" {
		c.writer = NewTextWriter(c.bw, c.startTime, nil)
	} else {
		c.writer = NewBinaryWriter(c.bw, c.startTime, nil)
	}

	var streams []*MeasurementStream
	for _, mp := range c.mps {
		ms, err := c.newDefaultStream(mp)
		if err != nil {
			return err
		}
		streams = append(streams, ms)
	}

	c.emitHeader(content, streams)

	c.started = true
	c.installSignalHandler()
	return nil
}

// chooseEncoding applies --oml-text/--oml-binary, defaulting to text
// (matching the original library's historical default).
func (c *Client) chooseEncoding() string {
	if c.cfg.ForceBinary {
		return "binary"
	}
	return "text"
}

// emitHeader writes the OMSP header block (spec.md §6): one `key: value`
// line per recognized key, one `schema:` line per MS declared before
// Start, then an empty line. MSs added later go through declareSchema
// instead, since a header already sent can't be amended.
func (c *Client) emitHeader(content string, streams []*MeasurementStream) {
	var b strings.Builder
	fmt.Fprintf(&b, "protocol: 4\n")
	fmt.Fprintf(&b, "domain: %s\n", c.cfg.Domain)
	fmt.Fprintf(&b, "start-time: %d\n", c.startTime.Unix())
	fmt.Fprintf(&b, "sender-id: %s\n", c.cfg.SenderID)
	fmt.Fprintf(&b, "app-name: %s\n", c.appName)
	fmt.Fprintf(&b, "content: %s\n", content)
	fmt.Fprintf(&b, "schema: 0 _experiment_metadata subject:string key:string value:string\n")
	for _, ms := range streams {
		fmt.Fprintf(&b, "schema: %s\n", schemaLine(ms))
	}
	b.WriteString("\n")
	c.writer.Meta([]byte(b.String()))
}

// openCollectURI parses --oml-collect per spec.md §6's grammar
// (`[scheme:][//]host[:service]`, scheme in {tcp, udp, file, flush},
// default scheme tcp, default port 3003).
func (c *Client) openCollectURI() (bufferedwriter.OutStream, error) {
	raw := c.cfg.Collect
	if raw == "" {
		raw = "tcp://localhost:" + defaultCollectPort
	}

	scheme, rest, hasScheme := strings.Cut(raw, ":")
	if !hasScheme {
		scheme, rest = "tcp", raw
	} else if _, err := strconv.Atoi(rest); err == nil {
		// bare host:port, no scheme given
		scheme, rest = "tcp", raw
	}
	rest = strings.TrimPrefix(rest, "//")

	switch scheme {
	case "file":
		return outstream.OpenFile(rest, false)
	case "flush":
		return outstream.OpenFile(rest, true)
	case "tcp", "udp":
		host, port := rest, defaultCollectPort
		if h, p, err := splitHostPort(rest); err == nil {
			host, port = h, p
		}
		return outstream.NewTCP(host, port, omllog.Adapter{}), nil
	default:
		return nil, fmt.Errorf("omlclient: unknown collect scheme %q", scheme)
	}
}

func splitHostPort(hostport string) (host, port string, err error) {
	u, err := url.Parse("//" + hostport)
	if err != nil || u.Hostname() == "" {
		return "", "", fmt.Errorf("omlclient: invalid host:port %q", hostport)
	}
	p := u.Port()
	if p == "" {
		p = defaultCollectPort
	}
	return u.Hostname(), p, nil
}

func (c *Client) installSignalHandler() {
	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-c.sigCh; ok {
			omllog.Infof("omlclient: caught termination signal, closing")
			c.Close()
		}
	}()
}

// InjectMetadata formats and injects a schema-0 record documenting a
// key/value fact about mp (or, if fname is non-empty, about one of its
// fields). Only string values are accepted (spec.md §4.1).
func (c *Client) InjectMetadata(mp *MeasurementPoint, key, value, fname string) error {
	if c.noop {
		return nil
	}
	if !ValidIdentifier(key) {
		return fmt.Errorf("omlclient: invalid metadata key %q", key)
	}
	subject := "." + c.appName + "_" + mp.Name
	if fname != "" {
		subject += "." + fname
	}
	c.injectSchemaZero(subject, key, value)
	return nil
}

// Close deactivates every MP, tears down writers in attachment order
// (each writer's close blocks until its BufferedWriter has drained, or
// until its drain goroutine gives up after about 5 seconds) and stops the
// signal handler (spec.md §4.1).
func (c *Client) Close() error {
	if c.noop {
		return nil
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	for _, mp := range c.mps {
		mp.active = false
		for _, ms := range mp.streams {
			if ms.stopTimer != nil {
				close(ms.stopTimer)
			}
		}
	}
	w := c.writer
	c.mu.Unlock()

	if c.sigCh != nil {
		signal.Stop(c.sigCh)
		close(c.sigCh)
	}

	var firstErr error
	for w != nil {
		next, err := w.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		w = next
	}
	return firstErr
}
