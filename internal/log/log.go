// Copyright 2026 The picturechain Authors
// This file is part of the picturechain library.
//
// The picturechain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The picturechain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the picturechain library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the module-scoped structured logger used across the
// node, mirroring the teacher's log.NewModuleLogger(...) / logger.Info("msg",
// "k", v) convention, backed by go.uber.org/zap instead of a hand-rolled
// log15 fork.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Mutex
	base *zap.SugaredLogger
)

func root() *zap.SugaredLogger {
	once.Lock()
	defer once.Unlock()
	if base == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			// Fall back to a no-op logger rather than abort; logging must
			// never be a fatal dependency of the node.
			l = zap.NewNop()
		}
		base = l.Sugar()
	}
	return base
}

// Logger is a named, structured logger for one component of the node.
type Logger struct {
	module string
	sugar  *zap.SugaredLogger
}

// NewModuleLogger returns the logger for the given component name, e.g.
// "chain", "miner", "peer", "node", "tracker", "content".
func NewModuleLogger(module string) *Logger {
	return &Logger{module: module, sugar: root().With("module", module)}
}

func (l *Logger) Trace(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

// Crit logs at error level and then terminates the process, used only for
// the fatal-error taxonomy of §7: listen port already in use, tracker
// unreachable at start-up.
func (l *Logger) Crit(msg string, kv ...interface{}) {
	l.sugar.Errorw(msg, kv...)
	os.Exit(1)
}

// SetDebug raises or lowers the process-wide log level, wired to a CLI flag.
func SetDebug(debug bool) {
	once.Lock()
	defer once.Unlock()
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	base = l.Sugar()
}
