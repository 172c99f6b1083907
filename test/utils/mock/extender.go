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

package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/publications"
	"github.com/guardtime/goksi-multisig/test/utils"
)

// CalendarExtender is an extending service backed by an in-memory calendar.
type CalendarExtender struct {
	tb   testing.TB
	cal  *utils.Calendar
	head int64

	mu        sync.Mutex
	pubFile   *publications.File
	err       error
	extendCnt int
}

// NewCalendarExtender returns an extending service serving calendar chains of the calendar up to head.
func NewCalendarExtender(tb testing.TB, cal *utils.Calendar, head int64) *CalendarExtender {
	return &CalendarExtender{tb: tb, cal: cal, head: head}
}

// SetPublicationsFile sets the file returned by PublicationsFile.
func (e *CalendarExtender) SetPublicationsFile(f *publications.File) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pubFile = f
}

// SetErr makes every subsequent call fail with the error.
func (e *CalendarExtender) SetErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// ExtendCount returns the number of Extend calls.
func (e *CalendarExtender) ExtendCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extendCnt
}

// Extend implements verify.(ExtendingService) interface.
func (e *CalendarExtender) Extend(_ context.Context, aggrTime, pubTime time.Time) (*pdu.CalendarChain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.extendCnt++
	if e.err != nil {
		return nil, e.err
	}
	to := e.head
	if !pubTime.IsZero() {
		to = pubTime.Unix()
	}
	switch {
	case to > e.head:
		return nil, errors.New(errors.KsiServiceExtenderRequestTimeTooNew)
	case aggrTime.Unix() > to:
		return nil, errors.New(errors.KsiServiceExtenderInvalidTimeRange)
	}
	return e.cal.Chain(e.tb, to, aggrTime.Unix()), nil
}

// PublicationsFile implements verify.(ExtendingService) interface.
func (e *CalendarExtender) PublicationsFile(context.Context) (*publications.File, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	if e.pubFile == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Publications file not configured.")
	}
	return e.pubFile, nil
}
