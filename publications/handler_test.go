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
	"sync/atomic"
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/test"
	"github.com/guardtime/goksi-multisig/test/utils"
)

func TestUnitFileHandler(t *testing.T) {
	test.InitLogger(t, log.DEBUG)

	test.Suite{
		{Func: testHandlerDefaults},
		{Func: testHandlerInvalidSettings},
		{Func: testHandlerVerify},
		{Func: testHandlerVerifyWithoutConstraints},
		{Func: testHandlerVerifyConstraintMismatch},
		{Func: testHandlerVerifyUntrustedRoot},
		{Func: testHandlerVerifyTampered},
		{Func: testHandlerTrustedCertificateDir},
		{Func: testHandlerReceiveFileCached},
		{Func: testHandlerReceiveFileSet},
		{Func: testHandlerReceiveFileNotConfigured},
	}.Runner(t)
}

func testHandlerDefaults(t *testing.T, _ ...interface{}) {
	h, err := NewFileHandler()
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	ttl, err := h.FileTTL()
	if err != nil || ttl != defaultPubFileTTL {
		t.Fatal("Unexpected default TTL: ", ttl, err)
	}
}

func testHandlerInvalidSettings(t *testing.T, _ ...interface{}) {
	if _, err := NewFileHandler(nil); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if _, err := NewFileHandler(FileHandlerSetFileTTL(-time.Second)); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if _, err := NewFileHandler(FileHandlerSetTrustedCertificate(nil)); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if _, err := NewFileHandler(FileHandlerSetFileCertConstraints(nil)); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if _, err := NewFileHandler(FileHandlerSetTrustedCertificateFromFilePem(filepath.Join(t.TempDir(), "none.pem"))); !errors.Is(err, errors.KsiIoError) {
		t.Fatal("Expecting IO error, got: ", err)
	}
}

func trustingHandler(t *testing.T, f *fileFixture, settings ...FileHandlerSetting) *FileHandler {
	settings = append([]FileHandlerSetting{
		FileHandlerSetTrustedCertificate(f.signer.Cert),
	}, settings...)
	h, err := NewFileHandler(settings...)
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	return h
}

func testHandlerVerify(t *testing.T, _ ...interface{}) {
	f := newFileFixture(t)
	h := trustingHandler(t, f,
		FileHandlerSetFileCertConstraint(OidCommonName, "publications@guardtime.com"),
		FileHandlerSetFileCertConstraint(OidCountry, "EE"),
	)
	if err := h.Verify(f.file(t)); err != nil {
		t.Fatal("Failed to verify publications file: ", err)
	}
}

func testHandlerVerifyWithoutConstraints(t *testing.T, _ ...interface{}) {
	f := newFileFixture(t)
	if err := trustingHandler(t, f).Verify(f.file(t)); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting untrusted certificate error, got: ", err)
	}
}

func testHandlerVerifyConstraintMismatch(t *testing.T, _ ...interface{}) {
	f := newFileFixture(t)
	h := trustingHandler(t, f, FileHandlerSetFileCertConstraint(OidOrganization, "Someone Else"))
	if err := h.Verify(f.file(t)); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting untrusted certificate error, got: ", err)
	}

	h = trustingHandler(t, f, FileHandlerSetFileCertConstraint(OidEmail, "publications@guardtime.com"))
	if err := h.Verify(f.file(t)); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting untrusted certificate error for missing attribute, got: ", err)
	}
}

func testHandlerVerifyUntrustedRoot(t *testing.T, _ ...interface{}) {
	f := newFileFixture(t)
	h, err := NewFileHandler(
		FileHandlerSetTrustedCertificate(utils.NewRSAPKI(t, "other root").Cert),
		FileHandlerSetFileCertConstraint(OidCommonName, "publications@guardtime.com"),
	)
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	if err := h.Verify(f.file(t)); !errors.Is(err, errors.KsiPkiCertificateNotTrusted) {
		t.Fatal("Expecting untrusted certificate error, got: ", err)
	}
}

func testHandlerVerifyTampered(t *testing.T, _ ...interface{}) {
	f := newFileFixture(t)
	root := f.cal.Root(t, 300)
	i := bytes.Index(f.raw, root)
	if i < 0 {
		t.Fatal("Publication hash not found in file.")
	}
	f.raw[i+len(root)-1] ^= 0x01

	h := trustingHandler(t, f, FileHandlerSetFileCertConstraint(OidCommonName, "publications@guardtime.com"))
	if err := h.Verify(f.file(t)); !errors.Is(err, errors.KsiInvalidPkiSignature) {
		t.Fatal("Expecting invalid PKI signature error, got: ", err)
	}
}

func testHandlerTrustedCertificateDir(t *testing.T, _ ...interface{}) {
	var (
		f   = newFileFixture(t)
		dir = t.TempDir()
	)
	if err := os.WriteFile(filepath.Join(dir, "ksi.crt"), f.signer.PEM(), 0600); err != nil {
		t.Fatal("Failed to write certificate: ", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0600); err != nil {
		t.Fatal("Failed to write file: ", err)
	}

	h, err := NewFileHandler(
		FileHandlerSetTrustedCertificateDir(dir),
		FileHandlerSetFileCertConstraint(OidCommonName, "publications@guardtime.com"),
	)
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	if err := h.Verify(f.file(t)); err != nil {
		t.Fatal("Failed to verify publications file: ", err)
	}
}

func testHandlerReceiveFileCached(t *testing.T, _ ...interface{}) {
	var (
		f     = newFileFixture(t)
		count int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&count, 1)
		_, _ = w.Write(f.raw)
	}))
	defer srv.Close()

	h, err := NewFileHandler(FileHandlerSetPublicationsURL(srv.URL), FileHandlerSetNetClientOpts())
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	for i := 0; i < 3; i++ {
		pf, err := h.ReceiveFile(context.Background())
		if err != nil {
			t.Fatal("Failed to receive file: ", err)
		}
		if len(pf.PublicationRecords()) != len(pubTimes) {
			t.Fatal("Unexpected publication count.")
		}
	}
	if c := atomic.LoadInt32(&count); c != 1 {
		t.Fatal("File must be downloaded once, downloads: ", c)
	}

	h, err = NewFileHandler(FileHandlerSetPublicationsURL(srv.URL), FileHandlerSetFileTTL(0))
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := h.ReceiveFile(context.Background()); err != nil {
			t.Fatal("Failed to receive file: ", err)
		}
	}
	if c := atomic.LoadInt32(&count); c != 3 {
		t.Fatal("File must be downloaded on every call with zero TTL, downloads: ", c)
	}
}

func testHandlerReceiveFileSet(t *testing.T, _ ...interface{}) {
	var (
		f  = newFileFixture(t)
		pf = f.file(t)
	)
	h, err := NewFileHandler(FileHandlerSetFile(pf))
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	got, err := h.ReceiveFile(context.Background())
	if err != nil {
		t.Fatal("Failed to receive file: ", err)
	}
	if got != pf {
		t.Fatal("Handler must return the configured file.")
	}
}

func testHandlerReceiveFileNotConfigured(t *testing.T, _ ...interface{}) {
	h, err := NewFileHandler()
	if err != nil {
		t.Fatal("Failed to create handler: ", err)
	}
	if _, err := h.ReceiveFile(context.Background()); !errors.Is(err, errors.KsiInvalidStateError) {
		t.Fatal("Expecting invalid state error, got: ", err)
	}
}
