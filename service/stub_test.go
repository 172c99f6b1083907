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

package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/test/utils"
)

const (
	stubLoginID = "anon"
	stubKey     = "anon"
)

// extenderStub is an in-process KSI extender answering from an in-memory calendar.
type extenderStub struct {
	t    *testing.T
	cal  *utils.Calendar
	head int64
	key  string

	mu       sync.Mutex
	conf     pdu.ConfigFields
	status   uint64
	errPDU   bool
	httpCode int
	respID   uint64
	delay    time.Duration
	requests int
}

func newExtenderStub(t *testing.T, cal *utils.Calendar, head int64) *extenderStub {
	return &extenderStub{t: t, cal: cal, head: head, key: stubKey}
}

// start serves the stub and returns the endpoint URI.
func (s *extenderStub) start() string {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/", s.handle)

	srv := httptest.NewServer(e)
	s.t.Cleanup(srv.Close)
	return "ksi+" + srv.URL + "/"
}

// update changes the stub behaviour while it is serving.
func (s *extenderStub) update(f func(*extenderStub)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

func (s *extenderStub) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *extenderStub) handle(c echo.Context) error {
	s.mu.Lock()
	s.requests++
	var (
		conf     = s.conf
		status   = s.status
		errPDU   = s.errPDU
		httpCode = s.httpCode
		respID   = s.respID
		delay    = s.delay
	)
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request().Context().Done():
			return nil
		}
	}
	if httpCode != 0 && httpCode != http.StatusBadRequest {
		return c.NoContent(httpCode)
	}

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	req, err := pdu.ExtenderReqFromBytes(raw)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	hdr, err := pdu.NewHeader(stubLoginID, nil)
	if err != nil {
		return err
	}
	key := []byte(s.key)

	if err := req.VerifyHMAC(hash.Default, key); err != nil {
		return s.blob(c, http.StatusBadRequest)(
			pdu.EncodeExtenderErrorResp(hdr, 0x0102, "The request could not be authenticated.", hash.Default, key))
	}
	if errPDU {
		return s.blob(c, http.StatusBadRequest)(
			pdu.EncodeExtenderErrorResp(hdr, status, "Error PDU.", hash.Default, key))
	}
	if req.IsConfigRequest() {
		return s.blob(c, http.StatusOK)(pdu.EncodeExtenderConfigResp(hdr, conf, hash.Default, key))
	}

	fields := pdu.ExtendingRespFields{
		RequestID:    req.RequestID(),
		Status:       status,
		CalendarLast: uint64(s.head),
	}
	if respID != 0 {
		fields.RequestID = respID
	}
	var (
		aggrTime = req.AggregationTime().Unix()
		pubTime  = s.head
	)
	if !req.PublicationTime().IsZero() {
		pubTime = req.PublicationTime().Unix()
	}
	switch {
	case status != 0:
		fields.ErrorMsg = "Stub error."
	case pubTime > s.head:
		fields.Status = 0x0106
		fields.ErrorMsg = "The request asked for hash values newer than the newest round in the server's database."
	default:
		fields.CalendarChain = s.cal.Chain(s.t, pubTime, aggrTime)
	}
	code := http.StatusOK
	if httpCode != 0 {
		code = httpCode
	}
	return s.blob(c, code)(pdu.EncodeExtendingResp(hdr, fields, hash.Default, key))
}

func (s *extenderStub) blob(c echo.Context, code int) func([]byte, error) error {
	return func(raw []byte, err error) error {
		if err != nil {
			return err
		}
		return c.Blob(code, "application/ksi-response", raw)
	}
}

// endpoint returns the service option for the stub with the stub credentials.
func (s *extenderStub) endpoint() Option {
	return OptEndpoint(s.start(), stubLoginID, stubKey)
}
