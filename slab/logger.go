// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import "github.com/phuslu/log"

// Logger is the narrow interface Allocator uses to report lifecycle
// events (attach/detach/remap/prepare-for-update, and the Dirty→Invalid
// transition inside Free). It exists, instead of a hard dependency on a
// concrete logging type, for the same reason Backend exists: so tests can
// supply a silent double. PhusluLogger, below, is the production adapter.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type discardLogger struct{}

func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}

func nopLogger(l Logger) Logger {
	if l == nil {
		return discardLogger{}
	}
	return l
}

// PhusluLogger adapts a *log.Logger (github.com/phuslu/log) to the Logger
// interface, mirroring rajatkb-boro-db's practice of threading a
// phuslu/log.Logger into every storage component's constructor.
type PhusluLogger struct {
	L *log.Logger
}

func (p PhusluLogger) Infof(format string, args ...interface{}) {
	if p.L == nil {
		return
	}
	p.L.Info().Msgf(format, args...)
}

func (p PhusluLogger) Errorf(format string, args ...interface{}) {
	if p.L == nil {
		return
	}
	p.L.Error().Msgf(format, args...)
}
