// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	protocolMin = 4
	protocolMax = 4
)

// contentMode is the parser mode selected by the header's `content:` line.
type contentMode int

const (
	contentUnset contentMode = iota
	contentText
	contentBinary
)

// header accumulates the `key: value` lines of §4.6 up to the first empty
// line. Only `content` is allowed to switch the subsequent parser mode;
// every other recognized key just fills a field that validate checks once
// the blank line is seen.
type header struct {
	protocol  int
	domain    string
	startTime float64
	senderID  string
	appName   string
	schemas   []string // every schema: line seen in the header block itself
	content   contentMode

	gotProtocol  bool
	gotDomain    bool
	gotStartTime bool
	gotSenderID  bool
	gotAppName   bool
}

// feed parses one header line. done reports the header block ended (an
// empty line was seen); the caller must then call validate.
func (h *header) feed(line string) (done bool, err error) {
	if line == "" {
		return true, nil
	}

	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return false, fmt.Errorf("omlserver: malformed header line %q", line)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "protocol":
		v, err := strconv.Atoi(value)
		if err != nil {
			return false, fmt.Errorf("omlserver: bad protocol value %q: %w", value, err)
		}
		h.protocol, h.gotProtocol = v, true
	case "domain", "experiment-id":
		h.domain, h.gotDomain = value, true
	case "start-time", "start_time":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false, fmt.Errorf("omlserver: bad start-time value %q: %w", value, err)
		}
		h.startTime, h.gotStartTime = v, true
	case "sender-id":
		h.senderID, h.gotSenderID = value, true
	case "app-name":
		h.appName, h.gotAppName = value, true
	case "schema":
		h.schemas = append(h.schemas, value)
	case "content":
		switch value {
		case "text":
			h.content = contentText
		case "binary":
			h.content = contentBinary
		default:
			return false, fmt.Errorf("omlserver: unknown content mode %q", value)
		}
	default:
		// unknown keys are forward-compatible no-ops.
	}
	return false, nil
}

// validate checks that entering TEXT/BINARY mode is legal, per §4.6.
func (h *header) validate() error {
	if !h.gotProtocol {
		return fmt.Errorf("omlserver: missing protocol meta")
	}
	if h.protocol < protocolMin || h.protocol > protocolMax {
		return fmt.Errorf("omlserver: unsupported protocol %d (want %d-%d)", h.protocol, protocolMin, protocolMax)
	}
	if !h.gotDomain {
		return fmt.Errorf("omlserver: missing domain meta")
	}
	if !h.gotSenderID {
		return fmt.Errorf("omlserver: missing sender-id meta")
	}
	if !h.gotAppName {
		return fmt.Errorf("omlserver: missing app-name meta")
	}
	if !h.gotStartTime {
		return fmt.Errorf("omlserver: missing start-time meta")
	}
	if h.content == contentUnset {
		return fmt.Errorf("omlserver: missing content meta")
	}
	return nil
}
