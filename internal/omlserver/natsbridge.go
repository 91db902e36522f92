// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/oml-collect/oml/internal/omllog"
	"github.com/oml-collect/oml/pkg/nats"
)

// natsBridge republishes every inserted sample as an Influx line protocol
// message, for a metric store or any other NATS subscriber that wants a
// live feed without talking to the domain databases. It is entirely
// optional: a server with no nats-url configured never constructs one.
type natsBridge struct {
	client  *nats.Client
	subject string
	enc     lineprotocol.Encoder
}

func newNatsBridge(address, subject string) (*natsBridge, error) {
	c, err := nats.Connect(address, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("omlserver: nats bridge: %w", err)
	}
	b := &natsBridge{client: c, subject: subject}
	b.enc.SetPrecision(lineprotocol.Nanosecond)
	return b, nil
}

// publish encodes one sample row as `<table>,domain=<domain>,sender=<id>
// <fields> <server-time>` and fans it out. Encode errors are logged, not
// returned: a malformed sample should not take down the insert path that
// triggered it.
func (b *natsBridge) publish(domain, table string, senderID int, fields []Field, values []Value, ts time.Time) {
	b.enc.Reset()
	b.enc.StartLine(table)
	b.enc.AddTag([]byte("domain"), []byte(domain))
	b.enc.AddTag([]byte("sender"), []byte(fmt.Sprintf("%d", senderID)))

	for i, f := range fields {
		if i >= len(values) {
			break
		}
		v, ok := lineprotocolValue(values[i])
		if !ok {
			continue
		}
		b.enc.AddField([]byte(f.Name), v)
	}
	b.enc.EndLine(ts)

	if err := b.enc.Err(); err != nil {
		omllog.Warnf("omlserver: nats bridge: encode %s: %v", table, err)
		return
	}
	if err := b.client.Publish(b.subject, b.enc.Bytes()); err != nil {
		omllog.Warnf("omlserver: nats bridge: %v", err)
	}
}

func lineprotocolValue(v Value) (lineprotocol.Value, bool) {
	switch v.Kind {
	case KindInt32, KindInt64:
		return lineprotocol.IntValue(v.I64), true
	case KindUint32, KindUint64:
		return lineprotocol.UintValue(v.U64), true
	case KindDouble:
		return lineprotocol.FloatValue(v.F64), true
	case KindBool:
		return lineprotocol.BoolValue(v.B), true
	case KindString:
		return lineprotocol.StringValue(v.Str), true
	default:
		return lineprotocol.Value{}, false
	}
}

func (b *natsBridge) close() {
	b.client.Close()
}
