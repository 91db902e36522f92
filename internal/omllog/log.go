// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omllog

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Provides a simple way of logging with different levels, shared by
// internal/omlclient and internal/omlserver. Time/Date are not logged
// because systemd adds them for us (default, can be changed with
// oml-server's '-logdate' flag).
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	NotePrefix  string = "<5>[NOTICE]   "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
	CritPrefix  string = "<2>[CRITICAL] "
)

var (
	DebugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	NoteLog  *log.Logger = log.New(NoteWriter, NotePrefix, log.Lshortfile)
	WarnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	CritLog  *log.Logger = log.New(CritWriter, CritPrefix, log.Llongfile)

	DebugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	NoteTimeLog  *log.Logger = log.New(NoteWriter, NotePrefix, log.LstdFlags|log.Lshortfile)
	WarnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	CritTimeLog  *log.Logger = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards every writer below lvl, matching --oml-log-level /
// OML_LOG_LEVEL.
func SetLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		NoteWriter = io.Discard
		fallthrough
	case "notice":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing to do
	default:
		fmt.Printf("omllog: invalid log level %q, using 'debug'\n", lvl)
		SetLevel("debug")
	}
}

func SetLogDateTime(logdate bool) { logDateTime = logdate }

// SetDateTime is an alias for SetLogDateTime, named to match the -logdate
// CLI flag of cmd/oml-server.
func SetDateTime(logdate bool) { SetLogDateTime(logdate) }

// SetOutput redirects every level's writer to w, for daemons that want to
// log to a file instead of stderr.
func SetOutput(w io.Writer) {
	DebugWriter, NoteWriter, InfoWriter, WarnWriter, ErrWriter, CritWriter = w, w, w, w, w, w
	DebugLog = log.New(w, DebugPrefix, 0)
	InfoLog = log.New(w, InfoPrefix, 0)
	NoteLog = log.New(w, NotePrefix, log.Lshortfile)
	WarnLog = log.New(w, WarnPrefix, log.Lshortfile)
	ErrLog = log.New(w, ErrPrefix, log.Llongfile)
	CritLog = log.New(w, CritPrefix, log.Llongfile)
	DebugTimeLog = log.New(w, DebugPrefix, log.LstdFlags)
	InfoTimeLog = log.New(w, InfoPrefix, log.LstdFlags)
	NoteTimeLog = log.New(w, NotePrefix, log.LstdFlags|log.Lshortfile)
	WarnTimeLog = log.New(w, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog = log.New(w, ErrPrefix, log.LstdFlags|log.Llongfile)
	CritTimeLog = log.New(w, CritPrefix, log.LstdFlags|log.Llongfile)
}

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Debug(v ...interface{}) {
	if DebugWriter != io.Discard {
		if logDateTime {
			DebugTimeLog.Output(2, printStr(v...))
		} else {
			DebugLog.Output(2, printStr(v...))
		}
	}
}

func Info(v ...interface{}) {
	if InfoWriter != io.Discard {
		if logDateTime {
			InfoTimeLog.Output(2, printStr(v...))
		} else {
			InfoLog.Output(2, printStr(v...))
		}
	}
}

func Note(v ...interface{}) {
	if NoteWriter != io.Discard {
		if logDateTime {
			NoteTimeLog.Output(2, printStr(v...))
		} else {
			NoteLog.Output(2, printStr(v...))
		}
	}
}

func Warn(v ...interface{}) {
	if WarnWriter != io.Discard {
		if logDateTime {
			WarnTimeLog.Output(2, printStr(v...))
		} else {
			WarnLog.Output(2, printStr(v...))
		}
	}
}

func Error(v ...interface{}) {
	if ErrWriter != io.Discard {
		if logDateTime {
			ErrTimeLog.Output(2, printStr(v...))
		} else {
			ErrLog.Output(2, printStr(v...))
		}
	}
}

func Crit(v ...interface{}) {
	if CritWriter != io.Discard {
		if logDateTime {
			CritTimeLog.Output(2, printStr(v...))
		} else {
			CritLog.Output(2, printStr(v...))
		}
	}
}

func printfStr(format string, v ...interface{}) string { return fmt.Sprintf(format, v...) }

func Debugf(format string, v ...interface{}) {
	if DebugWriter != io.Discard {
		if logDateTime {
			DebugTimeLog.Output(2, printfStr(format, v...))
		} else {
			DebugLog.Output(2, printfStr(format, v...))
		}
	}
}

func Infof(format string, v ...interface{}) {
	if InfoWriter != io.Discard {
		if logDateTime {
			InfoTimeLog.Output(2, printfStr(format, v...))
		} else {
			InfoLog.Output(2, printfStr(format, v...))
		}
	}
}

func Notef(format string, v ...interface{}) {
	if NoteWriter != io.Discard {
		if logDateTime {
			NoteTimeLog.Output(2, printfStr(format, v...))
		} else {
			NoteLog.Output(2, printfStr(format, v...))
		}
	}
}

func Warnf(format string, v ...interface{}) {
	if WarnWriter != io.Discard {
		if logDateTime {
			WarnTimeLog.Output(2, printfStr(format, v...))
		} else {
			WarnLog.Output(2, printfStr(format, v...))
		}
	}
}

func Errorf(format string, v ...interface{}) {
	if ErrWriter != io.Discard {
		if logDateTime {
			ErrTimeLog.Output(2, printfStr(format, v...))
		} else {
			ErrLog.Output(2, printfStr(format, v...))
		}
	}
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

// Fatal logs v at error level and exits, for call sites that already hold
// an error value instead of a format string.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Critf(format string, v ...interface{}) {
	if CritWriter != io.Discard {
		if logDateTime {
			CritTimeLog.Output(2, printfStr(format, v...))
		} else {
			CritLog.Output(2, printfStr(format, v...))
		}
	}
}

func Finfof(w io.Writer, format string, v ...interface{}) {
	if w != io.Discard {
		if logDateTime {
			fmt.Fprintf(w, time.Now().String()+InfoPrefix+format+"\n", v...)
		} else {
			fmt.Fprintf(w, InfoPrefix+format+"\n", v...)
		}
	}
}

// Adapter exposes the package-level functions through the small
// Infof/Warnf interface that bufferedwriter and outstream expect, so
// those packages stay decoupled from this one.
type Adapter struct{}

func (Adapter) Infof(format string, args ...any) { Infof(format, args...) }
func (Adapter) Warnf(format string, args ...any) { Warnf(format, args...) }
