// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the process-wide counters/gauges the admin surface exposes
// at /metrics, grounded on the promauto registration pattern used for
// service-mirror's gateway metrics.
var (
	connectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oml_server_connections_open",
		Help: "Number of currently open client connections.",
	})

	connectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oml_server_connections_total",
		Help: "Total number of client connections accepted.",
	})

	rowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oml_server_rows_inserted_total",
		Help: "Total number of sample rows successfully inserted, by domain and table.",
	}, []string{"domain", "table"})

	rowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oml_server_rows_dropped_total",
		Help: "Total number of sample rows dropped due to a decode or insert error, by domain.",
	}, []string{"domain"})

	domainsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oml_server_domains_open",
		Help: "Number of currently open experiment domains.",
	})
)
