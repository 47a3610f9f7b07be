// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is a six-level logger writing to stderr with
// syslog/systemd priority prefixes (see sd-daemon(3))), so date/time
// are omitted by default — journald already stamps captured output —
// and can be turned back on with SetLogDateTime for non-systemd
// deployments.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelNote
	levelWarn
	levelErr
	levelCrit
	numLevels
)

// logDateTime is read by every emit call; SetLogDateTime flips it
// process-wide, not per logger, so the switch takes effect immediately
// for log lines already in flight.
var logDateTime bool

// levelLogger pairs a level's discard gate with the two *log.Logger
// variants (bare and with-date) needed depending on logDateTime.
// Discarding is done by comparing writer against io.Discard before
// ever calling into the stdlib logger, not by swapping the logger's
// own output — both loggers keep writing to stderr underneath; the
// gate just decides whether Output is called at all.
type levelLogger struct {
	writer     io.Writer
	logger     *stdlog.Logger
	timeLogger *stdlog.Logger
}

func newLevelLogger(prefix string, flags int) *levelLogger {
	return &levelLogger{
		writer:     os.Stderr,
		logger:     stdlog.New(os.Stderr, prefix, flags),
		timeLogger: stdlog.New(os.Stderr, prefix, flags|stdlog.LstdFlags),
	}
}

var levels = [numLevels]*levelLogger{
	levelDebug: newLevelLogger("<7>[DEBUG]    ", 0),
	levelInfo:  newLevelLogger("<6>[INFO]     ", 0),
	levelNote:  newLevelLogger("<5>[NOTICE]   ", stdlog.Lshortfile),
	levelWarn:  newLevelLogger("<4>[WARNING]  ", stdlog.Lshortfile),
	levelErr:   newLevelLogger("<3>[ERROR]    ", stdlog.Llongfile),
	levelCrit:  newLevelLogger("<2>[CRITICAL] ", stdlog.Llongfile),
}

func (l *levelLogger) emit(calldepth int, s string) {
	if l.writer == io.Discard {
		return
	}
	if logDateTime {
		l.timeLogger.Output(calldepth, s)
		return
	}
	l.logger.Output(calldepth, s)
}

func (l *levelLogger) silence() { l.writer = io.Discard }

// SetLogLevel silences every level below lvl by discarding it (and
// everything already below it), cascading from "crit" (only critical
// messages survive) down to "debug" (nothing is silenced). An
// unrecognized value warns on stdout — there's no configured logger
// yet to complain through — and falls back to "debug".
func SetLogLevel(lvl string) {
	switch lvl {
	case "crit":
		levels[levelErr].silence()
		fallthrough
	case "err", "fatal":
		levels[levelWarn].silence()
		fallthrough
	case "warn":
		levels[levelNote].silence()
		fallthrough
	case "notice":
		levels[levelInfo].silence()
		fallthrough
	case "info":
		levels[levelDebug].silence()
	case "debug":
	default:
		fmt.Printf("pkg/log: flag 'loglevel' has invalid value %#v, using default 'debug'\n", lvl)
		SetLogLevel("debug")
	}
}

// SetLogDateTime turns date/time prefixes on or off for every
// subsequent log line.
func SetLogDateTime(logdate bool) {
	logDateTime = logdate
}

func Debug(v ...interface{})  { levels[levelDebug].emit(2, fmt.Sprint(v...)) }
func Info(v ...interface{})   { levels[levelInfo].emit(2, fmt.Sprint(v...)) }
func Note(v ...interface{})   { levels[levelNote].emit(2, fmt.Sprint(v...)) }
func Warn(v ...interface{})   { levels[levelWarn].emit(2, fmt.Sprint(v...)) }
func Error(v ...interface{})  { levels[levelErr].emit(2, fmt.Sprint(v...)) }
func Crit(v ...interface{})   { levels[levelCrit].emit(2, fmt.Sprint(v...)) }

// Fatal logs at error level then exits with status 1.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Debugf(format string, v ...interface{}) { levels[levelDebug].emit(2, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { levels[levelInfo].emit(2, fmt.Sprintf(format, v...)) }
func Notef(format string, v ...interface{})  { levels[levelNote].emit(2, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { levels[levelWarn].emit(2, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { levels[levelErr].emit(2, fmt.Sprintf(format, v...)) }
func Critf(format string, v ...interface{})  { levels[levelCrit].emit(2, fmt.Sprintf(format, v...)) }

// Fatalf logs at error level then exits with status 1.
func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}
