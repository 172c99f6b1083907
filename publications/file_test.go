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

package publications

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/test"
	"github.com/guardtime/goksi-multisig/test/utils"
	"github.com/guardtime/goksi-multisig/tlv"
)

func TestUnitPublicationsFile(t *testing.T) {
	test.InitLogger(t, log.DEBUG)

	test.Suite{
		{Func: testFileParse},
		{Func: testFileInvalidMagic},
		{Func: testFileOnlyMagic},
		{Func: testFileMissingSignature},
		{Func: testFileSignatureNotLast},
		{Func: testFileSignedBytes},
		{Func: testFileFromFile},
		{Func: testFileFromURL},
		{Func: testFileCertificate},
		{Func: testFileSearch},
		{Func: testFileNearestPublicationRecord},
		{Func: testFileVerifyRecord},
		{Func: testFileVerifyRecordSelector},
		{Func: testFileVerifyRecordWrongSignature},
	}.Runner(t)
}

type fileFixture struct {
	cal    *utils.Calendar
	signer *utils.PKI
	key    *utils.PKI
	certID []byte
	raw    []byte
}

var pubTimes = []int64{100, 200, 300}

func newFileFixture(t *testing.T) *fileFixture {
	f := &fileFixture{
		cal:    utils.NewCalendar("pubfile"),
		signer: utils.NewRSAPKI(t, "publications@guardtime.com"),
		key:    utils.NewECDSAPKI(t, "calendar key"),
		certID: []byte{0xca, 0xfe},
	}
	var recs []*pdu.PublicationRec
	for _, p := range pubTimes {
		recs = append(recs, f.cal.PublicationRec(t, p, "Financial Times"))
	}
	f.raw = utils.PublicationsFile(t, f.signer, 400,
		[]*pdu.CertificateRecord{f.key.CertificateRecord(t, f.certID)}, recs)
	return f
}

func (f *fileFixture) file(t *testing.T) *File {
	pf, err := NewFile(FileFromBytes(f.raw))
	if err != nil {
		t.Fatal("Failed to parse publications file: ", err)
	}
	return pf
}

func testFileParse(t *testing.T, _ ...interface{}) {
	var (
		f  = newFileFixture(t)
		pf = f.file(t)
	)
	if pf.Header().Version() != 2 {
		t.Fatal("Unexpected version: ", pf.Header().Version())
	}
	if pf.Header().CreationTime().Unix() != 400 {
		t.Fatal("Unexpected creation time: ", pf.Header().CreationTime())
	}
	if len(pf.CertificateRecords()) != 1 {
		t.Fatal("Unexpected certificate count: ", len(pf.CertificateRecords()))
	}
	if len(pf.PublicationRecords()) != len(pubTimes) {
		t.Fatal("Unexpected publication count: ", len(pf.PublicationRecords()))
	}
	if len(pf.Signature()) == 0 {
		t.Fatal("Signature must be present.")
	}
	if !bytes.Equal(pf.Bytes(), f.raw) {
		t.Fatal("Raw bytes mismatch.")
	}
	if pf.String() == "" {
		t.Fatal("String must not be empty.")
	}
}

func testFileInvalidMagic(t *testing.T, _ ...interface{}) {
	raw := append([]byte("KSIPUBLX"), newFileFixture(t).raw[8:]...)
	if _, err := NewFile(FileFromBytes(raw)); !errors.Is(err, errors.KsiInvalidFormatError) {
		t.Fatal("Expecting invalid format error, got: ", err)
	}
}

func testFileOnlyMagic(t *testing.T, _ ...interface{}) {
	if _, err := NewFile(FileFromBytes([]byte(FileMagic))); !errors.Is(err, errors.KsiInvalidFormatError) {
		t.Fatal("Expecting invalid format error, got: ", err)
	}
	if _, err := NewFile(FileFromBytes([]byte("KSI"))); !errors.Is(err, errors.KsiInvalidFormatError) {
		t.Fatal("Expecting invalid format error, got: ", err)
	}
	if _, err := NewFile(FileFromBytes(nil)); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
}

func encodeFile(t *testing.T, tags ...*tlv.Tag) []byte {
	body, err := tlv.EncodeAll(tags...)
	if err != nil {
		t.Fatal("Failed to encode: ", err)
	}
	return append([]byte(FileMagic), body...)
}

func testFileMissingSignature(t *testing.T, _ ...interface{}) {
	hdr, err := pdu.NewPublicationsHeader(1, time.Unix(10, 0), "")
	if err != nil {
		t.Fatal("Failed to create header: ", err)
	}
	_, err = NewFile(FileFromBytes(encodeFile(t, hdr.Tag())))
	if v := pdu.ViolationOf(err); v == nil || v.Rule != pdu.RuleMandatory {
		t.Fatal("Expecting mandatory element violation, got: ", err)
	}
}

func testFileSignatureNotLast(t *testing.T, _ ...interface{}) {
	var (
		cal = utils.NewCalendar("order")
		sig = tlv.NewRaw(pdu.TypeFileSignature, []byte{1, 2, 3})
	)
	hdr, err := pdu.NewPublicationsHeader(1, time.Unix(10, 0), "")
	if err != nil {
		t.Fatal("Failed to create header: ", err)
	}
	rec, err := cal.PublicationRec(t, 10).WithType(pdu.TypeFilePublicationRec)
	if err != nil {
		t.Fatal("Failed to convert record: ", err)
	}

	_, err = NewFile(FileFromBytes(encodeFile(t, hdr.Tag(), sig, rec.Tag())))
	if v := pdu.ViolationOf(err); v == nil || v.Rule != pdu.RuleOrder {
		t.Fatal("Expecting order violation, got: ", err)
	}
	_, err = NewFile(FileFromBytes(encodeFile(t, rec.Tag(), hdr.Tag(), sig)))
	if v := pdu.ViolationOf(err); v == nil {
		t.Fatal("Expecting violation for header out of order, got: ", err)
	}
	_, err = NewFile(FileFromBytes(encodeFile(t, hdr.Tag(), sig, sig)))
	if v := pdu.ViolationOf(err); v == nil || v.Rule != pdu.RuleSingle {
		t.Fatal("Expecting single element violation, got: ", err)
	}
}

func testFileSignedBytes(t *testing.T, _ ...interface{}) {
	var (
		f      = newFileFixture(t)
		pf     = f.file(t)
		signed = pf.SignedBytes()
	)
	if !bytes.HasPrefix(signed, []byte(FileMagic)) {
		t.Fatal("Signed bytes must start with the magic.")
	}
	sigTag, err := tlv.NewRaw(pdu.TypeFileSignature, pf.Signature()).Encode()
	if err != nil {
		t.Fatal("Failed to encode signature: ", err)
	}
	if len(signed)+len(sigTag) != len(f.raw) {
		t.Fatalf("Signed bytes length %d, signature %d, total %d.", len(signed), len(sigTag), len(f.raw))
	}
}

func testFileFromFile(t *testing.T, _ ...interface{}) {
	var (
		f    = newFileFixture(t)
		path = filepath.Join(t.TempDir(), "pubfile.bin")
	)
	if err := os.WriteFile(path, f.raw, 0600); err != nil {
		t.Fatal("Failed to write file: ", err)
	}
	pf, err := NewFile(FileFromFile(path))
	if err != nil {
		t.Fatal("Failed to read publications file: ", err)
	}
	if len(pf.PublicationRecords()) != len(pubTimes) {
		t.Fatal("Unexpected publication count.")
	}
	if _, err := NewFile(FileFromFile(path + ".missing")); !errors.Is(err, errors.KsiIoError) {
		t.Fatal("Expecting IO error, got: ", err)
	}
	if _, err := NewFile(nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
}

func testFileFromURL(t *testing.T, _ ...interface{}) {
	f := newFileFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ksi-publications.bin":
			_, _ = w.Write(f.raw)
		case "/partial.bin":
			_, _ = w.Write(f.raw[:len(f.raw)-5])
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pf, err := NewFile(FileFromURL(context.Background(), srv.URL+"/ksi-publications.bin"))
	if err != nil {
		t.Fatal("Failed to download publications file: ", err)
	}
	if !bytes.Equal(pf.Bytes(), f.raw) {
		t.Fatal("Downloaded file mismatch.")
	}
	if _, err := NewFile(FileFromURL(context.Background(), srv.URL+"/missing")); err == nil {
		t.Fatal("Must fail with missing file.")
	}
	if _, err := NewFile(FileFromURL(context.Background(), srv.URL+"/partial.bin")); !errors.Is(err, errors.KsiNetworkError) {
		t.Fatal("Expecting network error for partial file, got: ", err)
	}
}

func testFileCertificate(t *testing.T, _ ...interface{}) {
	var (
		f  = newFileFixture(t)
		pf = f.file(t)
	)
	rec, err := pf.Certificate(f.certID)
	if err != nil || rec == nil {
		t.Fatal("Certificate not found: ", err)
	}
	if !bytes.Equal(rec.Cert(), f.key.Cert.Raw) {
		t.Fatal("Certificate mismatch.")
	}
	if rec, err = pf.Certificate([]byte{0xde, 0xad}); err != nil || rec != nil {
		t.Fatal("Unknown certificate must not be found: ", rec, err)
	}
	if _, err = pf.Certificate(nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
}

func pubTime(t *testing.T, rec *pdu.PublicationRec) int64 {
	if rec == nil {
		t.Fatal("Publication record not found.")
	}
	return rec.PublicationData().PublicationTime().Unix()
}

func testFileSearch(t *testing.T, _ ...interface{}) {
	var (
		f  = newFileFixture(t)
		pf = f.file(t)
	)

	rec, err := pf.PublicationRec(PubRecSearchByTime(time.Unix(200, 0)))
	if err != nil || pubTime(t, rec) != 200 {
		t.Fatal("Search by time failed: ", err)
	}
	if rec, err = pf.PublicationRec(PubRecSearchByTime(time.Unix(201, 0))); err != nil || rec != nil {
		t.Fatal("Search by time must not match: ", rec, err)
	}

	pubData := f.cal.PublicationData(t, 300)
	if rec, err = pf.PublicationRec(PubRecSearchByPubData(pubData)); err != nil || pubTime(t, rec) != 300 {
		t.Fatal("Search by publication data failed: ", err)
	}
	if rec, err = pf.PublicationRec(PubRecSearchByPubString(pubData.Base32())); err != nil || pubTime(t, rec) != 300 {
		t.Fatal("Search by publication string failed: ", err)
	}

	if rec, err = pf.PublicationRec(PubRecSearchLatest(time.Unix(0, 0))); err != nil || pubTime(t, rec) != 300 {
		t.Fatal("Search latest failed: ", err)
	}
	if rec, err = pf.PublicationRec(PubRecSearchLatest(time.Unix(300, 0))); err != nil || rec != nil {
		t.Fatal("Search latest must not match: ", rec, err)
	}

	if _, err = pf.PublicationRec(nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
}

func testFileNearestPublicationRecord(t *testing.T, _ ...interface{}) {
	pf := newFileFixture(t).file(t)
	for _, tc := range []struct{ at, expected int64 }{
		{0, 100},
		{100, 100},
		{101, 200},
		{250, 300},
		{300, 300},
	} {
		rec, err := pf.NearestPublicationRecord(time.Unix(tc.at, 0))
		if err != nil {
			t.Fatal("Failed to find nearest publication: ", err)
		}
		if got := pubTime(t, rec); got != tc.expected {
			t.Fatalf("Nearest publication for %d: expected %d, got %d.", tc.at, tc.expected, got)
		}
	}
	if rec, err := pf.NearestPublicationRecord(time.Unix(301, 0)); err != nil || rec != nil {
		t.Fatal("No publication expected: ", rec, err)
	}
}

func testFileVerifyRecord(t *testing.T, _ ...interface{}) {
	var (
		f   = newFileFixture(t)
		pf  = f.file(t)
		rec = f.key.CalendarAuthRec(t, f.cal.PublicationData(t, 150), f.certID)
	)
	if err := pf.VerifyRecord(rec, nil, nil); err != nil {
		t.Fatal("Failed to verify calendar auth record: ", err)
	}

	unknown := f.key.CalendarAuthRec(t, f.cal.PublicationData(t, 150), []byte{1})
	if err := pf.VerifyRecord(unknown, nil, nil); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting untrusted certificate error, got: ", err)
	}
}

func testFileVerifyRecordSelector(t *testing.T, _ ...interface{}) {
	var (
		f   = newFileFixture(t)
		pf  = f.file(t)
		rec = f.key.CalendarAuthRec(t, f.cal.PublicationData(t, 150), f.certID)
	)
	if err := pf.VerifyRecord(rec, X509Verifier{}, ValidAtSelector(time.Unix(150, 0))); err != nil {
		t.Fatal("Failed to verify with validity selector: ", err)
	}

	cnstr := FileHandlerSetFileCertConstraint(OidCommonName, "someone else")
	var h fileHandler
	if err := cnstr(&h); err != nil {
		t.Fatal("Failed to apply constraint: ", err)
	}
	if err := pf.VerifyRecord(rec, nil, ConstraintSelector(h.obj.fileCnstr...)); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting untrusted certificate error, got: ", err)
	}
}

func testFileVerifyRecordWrongSignature(t *testing.T, _ ...interface{}) {
	var (
		f     = newFileFixture(t)
		pf    = f.file(t)
		other = utils.NewECDSAPKI(t, "impostor")
		rec   = other.CalendarAuthRec(t, f.cal.PublicationData(t, 150), f.certID)
	)
	if err := pf.VerifyRecord(rec, nil, nil); !errors.Is(err, errors.KsiInvalidPkiSignature) {
		t.Fatal("Expecting invalid PKI signature error, got: ", err)
	}
}
