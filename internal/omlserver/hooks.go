// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"context"
	"time"

	"github.com/oml-collect/oml/internal/omllog"
)

type ctxKey string

const ctxKeyBegin ctxKey = "begin"

// queryHooks satisfies sqlhooks.Hooks, logging every statement issued by a
// Database's backend connection -- used so insert-batch timing is visible
// at debug level without threading a stopwatch through every backend
// method.
type queryHooks struct{}

func (queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	omllog.Debugf("omlserver: sql %s %q", query, args)
	return context.WithValue(ctx, ctxKeyBegin, time.Now()), nil
}

func (queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(ctxKeyBegin).(time.Time); ok {
		omllog.Debugf("omlserver: sql took %s", time.Since(begin))
	}
	return ctx, nil
}
