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
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/publications"
	"github.com/guardtime/goksi-multisig/signature"
	"github.com/guardtime/goksi-multisig/test"
	"github.com/guardtime/goksi-multisig/test/utils"
)

const (
	testAggrTime int64 = 1000
	testPubTime  int64 = 1500
	testHeadTime int64 = 2000
)

func TestUnitExtender(t *testing.T) {
	test.InitLogger(t, log.DEBUG)

	test.Suite{
		{Func: testExtenderNew},
		{Func: testExtenderExtend},
		{Func: testExtenderExtendToHead},
		{Func: testExtenderExtendTooNew},
		{Func: testExtenderExtendInvalidArguments},
		{Func: testExtenderAuthenticationFailure},
		{Func: testExtenderErrorPDU},
		{Func: testExtenderHttpError},
		{Func: testExtenderConfig},
		{Func: testExtenderPublicationsFile},
		{Func: testExtenderExtendSignatureToTime},
		{Func: testExtenderExtendSignatureToHead},
		{Func: testExtenderExtendSignatureToPublication},
		{Func: testExtenderHaExtend},
		{Func: testExtenderHaAllFail},
		{Func: testExtenderHaConfig},
		{Func: testExtenderHaCanceled},
	}.Runner(t)
}

func newStubCalendar() *utils.Calendar {
	return utils.NewCalendar("extender")
}

func newTestExtender(t *testing.T, h *publications.FileHandler, opts ...Option) *Extender {
	ext, err := NewExtender(h, opts...)
	if err != nil {
		t.Fatal("Failed to create extender: ", err)
	}
	return ext
}

func testExtenderNew(t *testing.T, _ ...interface{}) {
	if _, err := NewExtender(nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}

	var ext *Extender
	if _, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Time{}); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if _, err := (&Extender{}).Config(context.Background()); !errors.Is(err, errors.KsiInvalidStateError) {
		t.Fatal("Expecting invalid state error, got: ", err)
	}
}

func testExtenderExtend(t *testing.T, _ ...interface{}) {
	var (
		cal  = newStubCalendar()
		stub = newExtenderStub(t, cal, testHeadTime)
		ext  = newTestExtender(t, nil, stub.endpoint())
	)

	calChain, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Unix(testPubTime, 0))
	if err != nil {
		t.Fatal("Failed to extend: ", err)
	}
	if calChain.AggregationTime().Unix() != testAggrTime || calChain.PublicationTime().Unix() != testPubTime {
		t.Fatal("Calendar chain times mismatch.")
	}
	root, err := calChain.Aggregate()
	if err != nil {
		t.Fatal("Failed to aggregate calendar chain: ", err)
	}
	if !hash.Equal(root, cal.Root(t, testPubTime)) {
		t.Fatal("Calendar root mismatch.")
	}
	if stub.requestCount() != 1 {
		t.Fatal("Request count mismatch: ", stub.requestCount())
	}
}

func testExtenderExtendToHead(t *testing.T, _ ...interface{}) {
	var (
		stub = newExtenderStub(t, newStubCalendar(), testHeadTime)
		ext  = newTestExtender(t, nil, stub.endpoint())
	)

	calChain, err := ext.Extend(nil, time.Unix(testAggrTime, 0), time.Time{})
	if err != nil {
		t.Fatal("Failed to extend: ", err)
	}
	if calChain.PublicationTime().Unix() != testHeadTime {
		t.Fatal("Calendar chain must lead to the calendar head: ", calChain.PublicationTime().Unix())
	}
}

func testExtenderExtendTooNew(t *testing.T, _ ...interface{}) {
	var (
		stub = newExtenderStub(t, newStubCalendar(), testHeadTime)
		ext  = newTestExtender(t, nil, stub.endpoint())
	)

	_, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Unix(testHeadTime+1, 0))
	if !errors.Is(err, errors.KsiServiceExtenderRequestTimeTooNew) {
		t.Fatal("Expecting request time too new error, got: ", err)
	}
}

func testExtenderExtendInvalidArguments(t *testing.T, _ ...interface{}) {
	var (
		stub = newExtenderStub(t, newStubCalendar(), testHeadTime)
		ext  = newTestExtender(t, nil, stub.endpoint())
	)

	if _, err := ext.Extend(context.Background(), time.Time{}, time.Time{}); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	_, err := ext.Extend(context.Background(), time.Unix(testPubTime, 0), time.Unix(testAggrTime, 0))
	if !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if stub.requestCount() != 0 {
		t.Fatal("No request must be sent.")
	}
}

func testExtenderAuthenticationFailure(t *testing.T, _ ...interface{}) {
	var (
		stub = newExtenderStub(t, newStubCalendar(), testHeadTime)
		ext  = newTestExtender(t, nil, OptEndpoint(stub.start(), stubLoginID, "wrong key"))
	)

	_, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Time{})
	if !errors.Is(err, errors.KsiServiceAuthenticationFailure) {
		t.Fatal("Expecting authentication failure, got: ", err)
	}
}

func testExtenderErrorPDU(t *testing.T, _ ...interface{}) {
	stub := newExtenderStub(t, newStubCalendar(), testHeadTime)
	stub.errPDU = true
	stub.status = 0x0200
	ext := newTestExtender(t, nil, stub.endpoint())

	_, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Time{})
	if !errors.Is(err, errors.KsiServiceInternalError) {
		t.Fatal("Expecting service internal error, got: ", err)
	}

	// Error status in the extending response.
	stub.update(func(s *extenderStub) {
		s.errPDU = false
		s.status = 0x0300
	})
	_, err = ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Time{})
	if !errors.Is(err, errors.KsiServiceUpstreamError) {
		t.Fatal("Expecting upstream error, got: ", err)
	}
}

func testExtenderHttpError(t *testing.T, _ ...interface{}) {
	stub := newExtenderStub(t, newStubCalendar(), testHeadTime)
	stub.httpCode = http.StatusServiceUnavailable
	ext := newTestExtender(t, nil, stub.endpoint())

	_, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Time{})
	if !errors.Is(err, errors.KsiHttpError) {
		t.Fatal("Expecting HTTP error, got: ", err)
	}
}

func testExtenderConfig(t *testing.T, _ ...interface{}) {
	stub := newExtenderStub(t, newStubCalendar(), testHeadTime)
	stub.conf = pdu.ConfigFields{
		MaxRequests:   10,
		ParentURI:     []string{"ksi+http://parent.example.com"},
		CalendarFirst: 1136073600,
		CalendarLast:  uint64(testHeadTime),
	}
	ext := newTestExtender(t, nil, stub.endpoint())

	conf, err := ext.Config(context.Background())
	if err != nil {
		t.Fatal("Failed to request configuration: ", err)
	}
	if conf.MaxReq() != 10 || conf.CalendarFirstTime() != 1136073600 || conf.CalendarLastTime() != uint64(testHeadTime) {
		t.Fatal("Configuration mismatch: ", conf)
	}
}

// extenderFixture holds a signature of a round registered in the stub calendar.
type extenderFixture struct {
	cal    *utils.Calendar
	sig    *signature.Signature
	signer *utils.PKI
}

func newExtenderFixture(t *testing.T) *extenderFixture {
	var (
		cal   = newStubCalendar()
		round = utils.NewRound(t, testAggrTime, "extender", []hash.Imprint{
			utils.DocumentHash(t, "alpha"),
			utils.DocumentHash(t, "beta"),
		})
	)
	cal.AddRound(round)

	sig, err := signature.New(signature.BuildFromBytes(
		utils.SignatureBytes(t, round.Chains(0), cal.Chain(t, testAggrTime, testAggrTime))))
	if err != nil {
		t.Fatal("Failed to create signature: ", err)
	}
	return &extenderFixture{
		cal:    cal,
		sig:    sig,
		signer: utils.NewRSAPKI(t, "publications@guardtime.com"),
	}
}

func (f *extenderFixture) fileHandler(t *testing.T, pubTimes ...int64) *publications.FileHandler {
	var recs []*pdu.PublicationRec
	for _, p := range pubTimes {
		recs = append(recs, f.cal.PublicationRec(t, p))
	}
	pf, err := publications.NewFile(publications.FileFromBytes(
		utils.PublicationsFile(t, f.signer, testHeadTime, nil, recs)))
	if err != nil {
		t.Fatal("Failed to parse publications file: ", err)
	}
	h, err := publications.NewFileHandler(
		publications.FileHandlerSetTrustedCertificate(f.signer.Cert),
		publications.FileHandlerSetFileCertConstraint(publications.OidCommonName, "publications@guardtime.com"),
		publications.FileHandlerSetFile(pf),
	)
	if err != nil {
		t.Fatal("Failed to create publications file handler: ", err)
	}
	return h
}

func testExtenderPublicationsFile(t *testing.T, _ ...interface{}) {
	var (
		f    = newExtenderFixture(t)
		stub = newExtenderStub(t, f.cal, testHeadTime)
	)

	ext := newTestExtender(t, nil, stub.endpoint())
	if _, err := ext.PublicationsFile(context.Background()); !errors.Is(err, errors.KsiInvalidStateError) {
		t.Fatal("Expecting invalid state error, got: ", err)
	}

	ext = newTestExtender(t, f.fileHandler(t, testPubTime), stub.endpoint())
	pf, err := ext.PublicationsFile(context.Background())
	if err != nil {
		t.Fatal("Failed to receive publications file: ", err)
	}
	rec, err := pf.NearestPublicationRecord(time.Unix(testAggrTime, 0))
	if err != nil || rec == nil {
		t.Fatal("Publication record is missing: ", err)
	}

	// Untrusted file.
	h, err := publications.NewFileHandler(publications.FileHandlerSetFile(pf))
	if err != nil {
		t.Fatal("Failed to create publications file handler: ", err)
	}
	ext = newTestExtender(t, h, stub.endpoint())
	if _, err := ext.PublicationsFile(context.Background()); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting certificate not trusted error, got: ", err)
	}
}

func testExtenderExtendSignatureToTime(t *testing.T, _ ...interface{}) {
	var (
		f    = newExtenderFixture(t)
		stub = newExtenderStub(t, f.cal, testHeadTime)
		ext  = newTestExtender(t, f.fileHandler(t, testPubTime), stub.endpoint())
	)

	extSig, err := ext.ExtendSignature(context.Background(), f.sig, ExtendOptionToTime(time.Unix(1800, 0)))
	if err != nil {
		t.Fatal("Failed to extend signature: ", err)
	}
	calChain, err := extSig.CalendarChain()
	if err != nil {
		t.Fatal("Failed to get calendar chain: ", err)
	}
	if calChain.PublicationTime().Unix() != 1800 {
		t.Fatal("Publication time mismatch: ", calChain.PublicationTime().Unix())
	}
	if pubRec, _ := extSig.Publication(); pubRec != nil {
		t.Fatal("Signature must not hold a publication record.")
	}

	if _, err := ext.ExtendSignature(context.Background(), f.sig, nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if _, err := ext.ExtendSignature(context.Background(), nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
}

func testExtenderExtendSignatureToHead(t *testing.T, _ ...interface{}) {
	var (
		f    = newExtenderFixture(t)
		stub = newExtenderStub(t, f.cal, testHeadTime)
		ext  = newTestExtender(t, nil, stub.endpoint())
	)

	extSig, err := ext.ExtendSignature(context.Background(), f.sig)
	if err != nil {
		t.Fatal("Failed to extend signature: ", err)
	}
	calChain, err := extSig.CalendarChain()
	if err != nil {
		t.Fatal("Failed to get calendar chain: ", err)
	}
	if calChain.PublicationTime().Unix() != testHeadTime {
		t.Fatal("Signature must be extended to the calendar head: ", calChain.PublicationTime().Unix())
	}
}

func testExtenderExtendSignatureToPublication(t *testing.T, _ ...interface{}) {
	var (
		f    = newExtenderFixture(t)
		stub = newExtenderStub(t, f.cal, testHeadTime)
		ext  = newTestExtender(t, f.fileHandler(t, 500, testPubTime, 1800), stub.endpoint())
	)

	extSig, err := ext.ExtendSignature(context.Background(), f.sig)
	if err != nil {
		t.Fatal("Failed to extend signature: ", err)
	}
	pubRec, err := extSig.Publication()
	if err != nil || pubRec == nil {
		t.Fatal("Publication record is missing: ", err)
	}
	if pubRec.PublicationData().PublicationTime().Unix() != testPubTime {
		t.Fatal("Signature must be extended to the nearest publication: ",
			pubRec.PublicationData().PublicationTime().Unix())
	}

	// The nearest publication is not yet in the calendar of the extender.
	ext = newTestExtender(t, f.fileHandler(t, testHeadTime+500), stub.endpoint())
	if _, err := ext.ExtendSignature(context.Background(), f.sig); !errors.Is(err, errors.KsiServiceExtenderRequestTimeTooNew) {
		t.Fatal("Expecting request time too new error, got: ", err)
	}

	ext = newTestExtender(t, f.fileHandler(t, 500), stub.endpoint())
	if _, err := ext.ExtendSignature(context.Background(), f.sig); !errors.Is(err, errors.KsiExtendNoSuitablePublication) {
		t.Fatal("Expecting no suitable publication error, got: ", err)
	}
}

func testExtenderHaExtend(t *testing.T, _ ...interface{}) {
	var (
		cal    = newStubCalendar()
		broken = newExtenderStub(t, cal, testHeadTime)
		ok     = newExtenderStub(t, cal, testHeadTime)
	)
	broken.httpCode = http.StatusInternalServerError

	ext := newTestExtender(t, nil,
		OptHighAvailability(broken.endpoint()),
		OptHighAvailability(ok.endpoint()),
	)

	calChain, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Unix(testPubTime, 0))
	if err != nil {
		t.Fatal("Failed to extend: ", err)
	}
	if calChain.PublicationTime().Unix() != testPubTime {
		t.Fatal("Publication time mismatch: ", calChain.PublicationTime().Unix())
	}
}

func testExtenderHaAllFail(t *testing.T, _ ...interface{}) {
	var (
		cal = newStubCalendar()
		a   = newExtenderStub(t, cal, testHeadTime)
		b   = newExtenderStub(t, cal, testHeadTime)
	)
	a.httpCode = http.StatusInternalServerError
	b.errPDU = true
	b.status = 0x0101

	ext := newTestExtender(t, nil, OptHighAvailability(a.endpoint()), OptHighAvailability(b.endpoint()))
	_, err := ext.Extend(context.Background(), time.Unix(testAggrTime, 0), time.Time{})
	if err == nil {
		t.Fatal("HA extending must fail.")
	}
	if !errors.Is(err, errors.KsiHttpError) && !errors.Is(err, errors.KsiServiceInvalidRequest) {
		t.Fatal("Expecting the error of a sub-service, got: ", err)
	}
}

func testExtenderHaConfig(t *testing.T, _ ...interface{}) {
	var (
		cal    = newStubCalendar()
		a      = newExtenderStub(t, cal, testHeadTime)
		b      = newExtenderStub(t, cal, testHeadTime)
		broken = newExtenderStub(t, cal, testHeadTime)
	)
	a.conf = pdu.ConfigFields{MaxRequests: 4, ParentURI: []string{"a"}, CalendarFirst: 1300000000, CalendarLast: 1500000000}
	b.conf = pdu.ConfigFields{MaxRequests: 8, ParentURI: []string{"b"}, CalendarFirst: 1200000000, CalendarLast: 1400000000}
	broken.httpCode = http.StatusBadGateway

	ext := newTestExtender(t, nil,
		OptHighAvailability(a.endpoint()),
		OptHighAvailability(b.endpoint()),
		OptHighAvailability(broken.endpoint()),
	)
	conf, err := ext.Config(context.Background())
	if err != nil {
		t.Fatal("Failed to request configuration: ", err)
	}
	if conf.MaxReq() != 8 {
		t.Error("Max requests mismatch: ", conf.MaxReq())
	}
	if len(conf.ParentURI()) != 2 {
		t.Error("Parent URI mismatch: ", conf.ParentURI())
	}
	if conf.CalendarFirstTime() != 1200000000 || conf.CalendarLastTime() != 1500000000 {
		t.Error("Calendar time mismatch: ", conf.CalendarFirstTime(), conf.CalendarLastTime())
	}
}

func testExtenderHaCanceled(t *testing.T, _ ...interface{}) {
	var (
		cal = newStubCalendar()
		a   = newExtenderStub(t, cal, testHeadTime)
		b   = newExtenderStub(t, cal, testHeadTime)
	)
	a.delay = 5 * time.Second
	b.delay = 5 * time.Second

	ext := newTestExtender(t, nil, OptHighAvailability(a.endpoint()), OptHighAvailability(b.endpoint()))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := ext.Extend(ctx, time.Unix(testAggrTime, 0), time.Time{})
	if !errors.Is(err, errors.KsiNetworkError) {
		t.Fatal("Expecting network error, got: ", err)
	}
}
