// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command oml-demo-app is a worked example of an OMSP-instrumented
// application: it reads a single MP declaration from stdin in the little
// `mp <name> { field : type, ... } <inputfn>;` grammar the original test
// client understood, registers it, and injects maxSamples linear-counting
// rows through it before shutting down cleanly.
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/oml-collect/oml/internal/omlclient"
	"github.com/oml-collect/oml/internal/omlclient/filter"
)

// maxSamples mirrors the original test client's fixed sample count.
const maxSamples = 10000

func main() {
	cfg, err := omlclient.ParseArgs("oml-demo-app", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "oml-demo-app:", err)
		os.Exit(1)
	}

	if cfg.Help {
		printUsage()
		return
	}
	if cfg.ListFilters {
		printFilters()
		return
	}

	spec, err := readMP(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "oml-demo-app: reading MP declaration:", err)
		os.Exit(1)
	}

	fmt.Printf("MP : %s\n", spec.name)
	fmt.Printf("LEN : %d\n", len(spec.fields))
	for _, f := range spec.fields {
		fmt.Printf("-> %s : %s\n", f.Name, f.Kind)
	}

	client, err := omlclient.Init("oml-demo-app", cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "oml-demo-app: init:", err)
		os.Exit(1)
	}

	mp, err := client.AddMP(spec.name, spec.fields)
	if err != nil {
		fmt.Fprintln(os.Stderr, "oml-demo-app: add MP:", err)
		os.Exit(1)
	}

	if err := client.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "oml-demo-app: start:", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.InjectMetadata(mp, "input-function", spec.input, ""); err != nil {
		fmt.Fprintln(os.Stderr, "oml-demo-app: inject metadata:", err)
	}

	values := make([]omlclient.Value, len(spec.fields))
	for i := 0; i < maxSamples; i++ {
		for j, f := range spec.fields {
			values[j] = linearValue(f.Kind, i)
		}
		client.Inject(mp, values)
	}
}

// linearValue mirrors set_value: every field of every sample is derived
// from the same linear counting sequence i, converted to whatever kind the
// field declares.
func linearValue(k omlclient.Kind, i int) omlclient.Value {
	switch k {
	case omlclient.KindInt32:
		return omlclient.Int32(int32(i))
	case omlclient.KindUint32:
		return omlclient.Uint32(uint32(i))
	case omlclient.KindInt64:
		return omlclient.Int64(int64(i))
	case omlclient.KindUint64:
		return omlclient.Uint64(uint64(i))
	case omlclient.KindDouble:
		return omlclient.Double(float64(i))
	case omlclient.KindBool:
		return omlclient.Bool(i%2 == 0)
	case omlclient.KindBlob:
		return omlclient.Blob([]byte(strconv.Itoa(i)))
	case omlclient.KindGuid:
		return omlclient.Guid(uint64(i))
	case omlclient.KindString:
		fallthrough
	default:
		return omlclient.String(strconv.Itoa(i))
	}
}

func printFilters() {
	names := filter.Registered()
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

func printUsage() {
	fmt.Println(`oml-demo-app: worked example of an OMSP-instrumented client

Reads one MP declaration from stdin:

  mp <name> { <field>:<type>, ... } <linear|sine|gaussian>;

then injects 10000 linear-counting samples through it. Accepts the usual
--oml-* flags (--oml-collect, --oml-domain, --oml-id, ...); run with
--oml-list-filters to print the registered filter names.`)
}
