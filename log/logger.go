/*
 * Copyright 2020 Guardtime, Inc.
 *
 * This file is part of the Guardtime client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Guardtime" and "KSI" are trademarks or registered trademarks of
 * Guardtime, Inc., and no license to trademarks is granted; Guardtime
 * reserves and retains all trademark rights.
 */

package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
)

// Priority is the logging level.
type Priority byte

const (
	// DEBUG level logging.
	DEBUG Priority = iota
	// INFO level logging.
	INFO
	// NOTICE level logging.
	NOTICE
	// WARNING level logging.
	WARNING
	// ERROR level logging.
	ERROR
	// NONE disables logging.
	NONE
)

var priorityNames = map[string]Priority{
	"debug":   DEBUG,
	"info":    INFO,
	"notice":  NOTICE,
	"warning": WARNING,
	"error":   ERROR,
	"none":    NONE,
}

// ParsePriority returns the priority for its name (case insensitive), e.g. "debug" or "WARNING".
func ParsePriority(name string) (Priority, error) {
	p, ok := priorityNames[strings.ToLower(name)]
	if !ok {
		return NONE, fmt.Errorf("unknown log priority %q", name)
	}
	return p, nil
}

// WriterLogger is a basic Logger implementation that writes lines of formatted output to an io.Writer.
type WriterLogger struct {
	level  Priority
	logger *stdlog.Logger
}

// New returns a new WriterLogger. Messages below the given priority are discarded.
// If w is nil, the output is written to os.Stdout.
func New(level Priority, w io.Writer) (*WriterLogger, error) {
	if level >= NONE {
		return nil, fmt.Errorf("invalid log priority: %d", level)
	}
	if w == nil {
		w = os.Stdout
	}
	return &WriterLogger{
		level:  level,
		logger: stdlog.New(w, "", stdlog.LstdFlags|stdlog.Lmicroseconds),
	}, nil
}

func (l *WriterLogger) write(p Priority, prefix string, v []interface{}) {
	if l == nil || l.logger == nil || p < l.level {
		return
	}
	l.logger.Print(prefix + " " + fmt.Sprint(v...))
}

// Debug implements Logger interface.
func (l *WriterLogger) Debug(v ...interface{}) { l.write(DEBUG, "[D]", v) }

// Info implements Logger interface.
func (l *WriterLogger) Info(v ...interface{}) { l.write(INFO, "[I]", v) }

// Notice implements Logger interface.
func (l *WriterLogger) Notice(v ...interface{}) { l.write(NOTICE, "[N]", v) }

// Warning implements Logger interface.
func (l *WriterLogger) Warning(v ...interface{}) { l.write(WARNING, "[W]", v) }

// Error implements Logger interface.
func (l *WriterLogger) Error(v ...interface{}) { l.write(ERROR, "[E]", v) }
