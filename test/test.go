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

// Package test contains the shared test case runner and logger setup.
package test

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/guardtime/goksi-multisig/log"
)

// Case is a test case.
type Case struct {
	Func func(t *testing.T, opts ...interface{})
}

// Suite is a collection of test cases.
type Suite []Case

// Runner runs every test case in the receiver test suite.
func (ts Suite) Runner(t *testing.T, opts ...interface{}) {
	t.Helper()

	for _, tc := range ts {
		tcName := runtime.FuncForPC(reflect.ValueOf(tc.Func).Pointer()).Name()
		if i := strings.LastIndex(tcName, "."); i >= 0 {
			tcName = tcName[i+1:]
		}
		log.Debug("---- :::: Run test case: ", tcName, " :::: ----")
		f := tc.Func
		t.Run(tcName, func(t *testing.T) { f(t, opts...) })
	}
}

// InitLogger registers a WriterLogger that writes into a log file in the test temporary directory. The file is
// closed and logging is disabled when the test finishes.
func InitLogger(t *testing.T, level log.Priority) {
	t.Helper()

	logFile, err := os.Create(filepath.Join(t.TempDir(), strings.Replace(t.Name(), "/", "_", -1)+".log"))
	if err != nil {
		t.Fatal("Failed to create log file: ", err)
	}
	logger, err := log.New(level, logFile)
	if err != nil {
		_ = logFile.Close()
		t.Fatal("Failed to initialize logger: ", err)
	}
	log.SetLogger(logger)
	t.Cleanup(func() {
		log.SetLogger(nil)
		_ = logFile.Close()
	})
}
