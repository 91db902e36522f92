// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/oml-collect/oml/internal/omlclient"
)

// mpSpec is one parsed `mp <name> { field : type, ... } <inputfn>;`
// declaration, read from stdin in the same mini-language the original
// test client's input parser understood.
type mpSpec struct {
	name   string
	fields []omlclient.Field
	input  string // "linear", "sine" or "gaussian"; only linear is generated
}

// tokenTerminators mirrors the original parser's is_token_terminator: any
// of these bytes, or whitespace, ends the current word without being
// consumed as part of it.
const tokenTerminators = "{},:;"

func isTokenTerminator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(tokenTerminators, r)
}

// wordScanner reads one word at a time from r, stopping at whitespace or a
// grammar delimiter. It reports the delimiter rune that ended the word (0
// at EOF) so the caller can tell `}` from `,` from a plain name boundary.
type wordScanner struct {
	r *bufio.Reader
}

func newWordScanner(r io.Reader) *wordScanner {
	return &wordScanner{r: bufio.NewReader(r)}
}

func (s *wordScanner) skipSpace() error {
	for {
		r, _, err := s.r.ReadRune()
		if err != nil {
			return err
		}
		if !unicode.IsSpace(r) {
			return s.r.UnreadRune()
		}
	}
}

// word reads the next word, returning it and the delimiter that stopped it
// (which is re-buffered only when it is not itself whitespace, matching
// read_word's ungetc-on-non-space behavior).
func (s *wordScanner) word() (string, rune, error) {
	var b strings.Builder
	for {
		r, _, err := s.r.ReadRune()
		if err != nil {
			if b.Len() > 0 {
				return b.String(), 0, nil
			}
			return "", 0, err
		}
		if isTokenTerminator(r) {
			if !unicode.IsSpace(r) {
				s.r.UnreadRune()
				return b.String(), r, nil
			}
			return b.String(), ' ', nil
		}
		b.WriteRune(r)
	}
}

// expectRune skips whitespace then reads exactly one rune, erroring if it
// is not want.
func (s *wordScanner) expectRune(want rune) error {
	if err := s.skipSpace(); err != nil {
		return err
	}
	r, _, err := s.r.ReadRune()
	if err != nil {
		return err
	}
	if r != want {
		return fmt.Errorf("expected %q, got %q", want, r)
	}
	return nil
}

// readMPDef parses `{ name : type, name : type, ... }`.
func readMPDef(s *wordScanner) ([]omlclient.Field, error) {
	if err := s.expectRune('{'); err != nil {
		return nil, fmt.Errorf("reading MP field list: %w", err)
	}

	var fields []omlclient.Field
	for {
		if err := s.skipSpace(); err != nil {
			return nil, fmt.Errorf("reading field name: %w", err)
		}
		name, delim, err := s.word()
		if err != nil {
			return nil, fmt.Errorf("reading field name: %w", err)
		}
		if name == "" {
			if delim == '}' {
				s.r.ReadRune() // consume the re-buffered '}'
				break
			}
			return nil, fmt.Errorf("unexpected delimiter %q before field name", delim)
		}

		if err := s.expectRune(':'); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if err := s.skipSpace(); err != nil {
			return nil, fmt.Errorf("reading type for field %q: %w", name, err)
		}
		typeTok, _, err := s.word()
		if err != nil {
			return nil, fmt.Errorf("reading type for field %q: %w", name, err)
		}
		kind, legacy, err := omlclient.ParseKind(typeTok)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if legacy {
			fmt.Fprintf(os.Stderr, "oml-demo-app: field %q uses legacy type token %q\n", name, typeTok)
		}
		fields = append(fields, omlclient.Field{Name: name, Kind: kind})

		if err := s.skipSpace(); err != nil {
			return nil, fmt.Errorf("reading field separator: %w", err)
		}
		r, _, err := s.r.ReadRune()
		if err != nil {
			return nil, fmt.Errorf("reading field separator: %w", err)
		}
		switch r {
		case ',':
			continue
		case '}':
			return fields, nil
		default:
			return nil, fmt.Errorf("expected ',' or '}', got %q", r)
		}
	}
	return fields, nil
}

// readMP parses one full `mp <name> <def> <inputfn>;` declaration.
func readMP(r io.Reader) (*mpSpec, error) {
	s := newWordScanner(r)

	if err := s.skipSpace(); err != nil {
		return nil, fmt.Errorf("reading 'mp' keyword: %w", err)
	}
	op, _, err := s.word()
	if err != nil {
		return nil, fmt.Errorf("reading 'mp' keyword: %w", err)
	}
	if op != "mp" {
		return nil, fmt.Errorf("expected 'mp', got %q", op)
	}

	if err := s.skipSpace(); err != nil {
		return nil, fmt.Errorf("reading MP name: %w", err)
	}
	name, _, err := s.word()
	if err != nil {
		return nil, fmt.Errorf("reading MP name: %w", err)
	}

	fields, err := readMPDef(s)
	if err != nil {
		return nil, fmt.Errorf("reading MP %q definition: %w", name, err)
	}

	if err := s.skipSpace(); err != nil {
		return nil, fmt.Errorf("reading input function: %w", err)
	}
	input, _, err := s.word()
	if err != nil {
		return nil, fmt.Errorf("reading input function: %w", err)
	}
	switch input {
	case "linear", "sine", "gaussian":
	default:
		return nil, fmt.Errorf("unknown input function %q", input)
	}

	return &mpSpec{name: name, fields: fields, input: input}, nil
}
