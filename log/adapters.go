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

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// LogrusLogger forwards log messages to a logrus logger.
// Notice messages are mapped to the logrus info level.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus returns a Logger backed by l. Logs are tagged with the field "component".
func NewLogrus(l *logrus.Logger, component string) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: l.WithField("component", component)}
}

// Debug implements Logger interface.
func (l *LogrusLogger) Debug(v ...interface{}) {
	if l != nil {
		l.entry.Debug(v...)
	}
}

// Info implements Logger interface.
func (l *LogrusLogger) Info(v ...interface{}) {
	if l != nil {
		l.entry.Info(v...)
	}
}

// Notice implements Logger interface.
func (l *LogrusLogger) Notice(v ...interface{}) {
	if l != nil {
		l.entry.WithField("notice", true).Info(v...)
	}
}

// Warning implements Logger interface.
func (l *LogrusLogger) Warning(v ...interface{}) {
	if l != nil {
		l.entry.Warn(v...)
	}
}

// Error implements Logger interface.
func (l *LogrusLogger) Error(v ...interface{}) {
	if l != nil {
		l.entry.Error(v...)
	}
}

// ZerologLogger forwards log messages to a zerolog logger.
// Notice messages are mapped to the zerolog info level.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerolog returns a Logger backed by l.
func NewZerolog(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: l}
}

func (l *ZerologLogger) msg(e *zerolog.Event, v []interface{}) {
	e.Msg(fmt.Sprint(v...))
}

// Debug implements Logger interface.
func (l *ZerologLogger) Debug(v ...interface{}) {
	if l != nil {
		l.msg(l.logger.Debug(), v)
	}
}

// Info implements Logger interface.
func (l *ZerologLogger) Info(v ...interface{}) {
	if l != nil {
		l.msg(l.logger.Info(), v)
	}
}

// Notice implements Logger interface.
func (l *ZerologLogger) Notice(v ...interface{}) {
	if l != nil {
		l.msg(l.logger.Info().Bool("notice", true), v)
	}
}

// Warning implements Logger interface.
func (l *ZerologLogger) Warning(v ...interface{}) {
	if l != nil {
		l.msg(l.logger.Warn(), v)
	}
}

// Error implements Logger interface.
func (l *ZerologLogger) Error(v ...interface{}) {
	if l != nil {
		l.msg(l.logger.Error(), v)
	}
}
