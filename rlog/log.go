// File: rlog/log.go
// Author: momentics <momentics@gmail.com>
//
// Minimal leveled wrapper around the standard log package. The examples in
// this codebase call log.Printf directly; this wrapper keeps that texture
// while giving call sites a consistent prefix and a level they can filter
// on without pulling in a third-party logging library.

package rlog

import (
	"log"
	"os"
)

// Level controls which messages reach the underlying logger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

var current Level = LevelInfo

// SetLevel adjusts the minimum level that will be emitted.
func SetLevel(l Level) { current = l }

func emit(l Level, prefix string, format string, args ...any) {
	if l < current {
		return
	}
	std.Printf(prefix+" "+format, args...)
}

func Debugf(format string, args ...any) { emit(LevelDebug, "[DEBUG]", format, args...) }
func Infof(format string, args ...any)  { emit(LevelInfo, "[INFO]", format, args...) }
func Warnf(format string, args ...any)  { emit(LevelWarn, "[WARN]", format, args...) }
func Errorf(format string, args ...any) { emit(LevelError, "[ERROR]", format, args...) }
