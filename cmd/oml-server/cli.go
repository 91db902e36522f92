// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import "flag"

var (
	flagConfigFile, flagLogLevel, flagLogFile string
	flagVersion, flagLogDateTime              bool
)

func cliInit() {
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Specify alternative path to `config.json`")
	flag.StringVar(&flagLogLevel, "loglevel", "", "Sets the logging level, overriding config.json: `[debug, info, warn, err, crit]`")
	flag.StringVar(&flagLogFile, "logfile", "", "Write logs to `file` instead of stderr")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Add date and time to log messages")
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.Parse()
}
