// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/oml-collect/oml/internal/omllog"
	"github.com/oml-collect/oml/internal/omlserver"
	serverconfig "github.com/oml-collect/oml/internal/omlserver/config"
	"github.com/oml-collect/oml/pkg/runtimeEnv"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

var version = "dev"

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("oml-server version %s\n", version)
		return
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		omllog.Fatalf("parsing './.env' failed: %s", err.Error())
	}

	cfg, err := serverconfig.Load(flagConfigFile)
	if err != nil {
		omllog.Fatal(err)
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	omllog.SetLevel(level)
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			omllog.Fatalf("opening log file %s: %s", cfg.LogFile, err.Error())
		}
		defer f.Close()
		omllog.SetOutput(f)
	}
	if flagLogDateTime {
		omllog.SetDateTime(true)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		omllog.Fatalf("creating data dir %s: %s", cfg.DataDir, err.Error())
	}

	srv, err := omlserver.NewServer(cfg.DBDriver, cfg.DataDir, cfg.DSN, cfg.NatsURL, cfg.NatsSubject)
	if err != nil {
		omllog.Fatal(err)
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		omllog.Fatal(err)
	}

	if err := runtimeEnv.DropPrivileges(cfg.User, cfg.Group); err != nil {
		omllog.Fatalf("changing user: %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go acceptLoop(ctx, ln, srv)
	go runAdminServer(ctx, cfg.AdminListen, srv.AdminHandler())

	omllog.Infof("oml-server listening on %s", cfg.Listen)
	runtimeEnv.SystemdNotifiy(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	runtimeEnv.SystemdNotifiy(false, "shutting down")
	cancel()
	omllog.Info("oml-server: shutdown complete")
}
