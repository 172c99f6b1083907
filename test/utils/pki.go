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

package utils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fullsailor/pkcs7"

	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/tlv"
)

// PKI is a self-signed certificate with its private key.
type PKI struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

var serial int64

func newPKI(tb testing.TB, cn string, key crypto.Signer) *PKI {
	tb.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(atomic.AddInt64(&serial, 1)),
		Subject: pkix.Name{
			CommonName:   cn,
			Country:      []string{"EE"},
			Organization: []string{"Guardtime AS"},
		},
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		tb.Fatal("Failed to create certificate: ", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatal("Failed to parse certificate: ", err)
	}
	return &PKI{Cert: cert, Key: key}
}

// NewRSAPKI returns a self-signed RSA certificate. RSA is required for signing publications files.
func NewRSAPKI(tb testing.TB, cn string) *PKI {
	tb.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatal("Failed to generate RSA key: ", err)
	}
	return newPKI(tb, cn, key)
}

// NewECDSAPKI returns a self-signed ECDSA P-256 certificate.
func NewECDSAPKI(tb testing.TB, cn string) *PKI {
	tb.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatal("Failed to generate ECDSA key: ", err)
	}
	return newPKI(tb, cn, key)
}

// SigType returns the signature type OID of the certificate.
func (p *PKI) SigType() string {
	switch p.Cert.SignatureAlgorithm {
	case x509.SHA256WithRSA:
		return "1.2.840.113549.1.1.11"
	case x509.ECDSAWithSHA256:
		return "1.2.840.10045.4.3.2"
	default:
		return ""
	}
}

// Sign signs the SHA-256 digest of data.
func (p *PKI) Sign(tb testing.TB, data []byte) []byte {
	tb.Helper()
	digest := sha256.Sum256(data)
	sig, err := p.Key.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		tb.Fatal("Failed to sign: ", err)
	}
	return sig
}

// PEM returns the PEM encoded certificate.
func (p *PKI) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: p.Cert.Raw})
}

// CertificateRecord returns the publications file certificate record of the certificate.
func (p *PKI) CertificateRecord(tb testing.TB, certID []byte) *pdu.CertificateRecord {
	tb.Helper()
	rec, err := pdu.NewCertificateRecord(certID, p.Cert.Raw)
	if err != nil {
		tb.Fatal("Failed to create certificate record: ", err)
	}
	return rec
}

// CalendarAuthRec signs the publication data and returns the calendar authentication record.
func (p *PKI) CalendarAuthRec(tb testing.TB, pubData *pdu.PublicationData, certID []byte) *pdu.CalendarAuthRec {
	tb.Helper()
	signed, err := pubData.Tag().Encode()
	if err != nil {
		tb.Fatal("Failed to encode publication data: ", err)
	}
	sigData, err := pdu.NewSignatureData(p.SigType(), p.Sign(tb, signed), certID, "")
	if err != nil {
		tb.Fatal("Failed to create signature data: ", err)
	}
	rec, err := pdu.NewCalendarAuthRec(pubData, sigData)
	if err != nil {
		tb.Fatal("Failed to create calendar auth record: ", err)
	}
	return rec
}

// PublicationsFile returns a publications file signed by the signer with a detached PKCS#7 signature.
func PublicationsFile(tb testing.TB, signer *PKI, created int64, certs []*pdu.CertificateRecord,
	pubs []*pdu.PublicationRec) []byte {

	tb.Helper()
	hdr, err := pdu.NewPublicationsHeader(2, time.Unix(created, 0), "https://publications.example.com")
	if err != nil {
		tb.Fatal("Failed to create publications file header: ", err)
	}
	tags := []*tlv.Tag{hdr.Tag()}
	for _, c := range certs {
		tags = append(tags, c.Tag())
	}
	for _, p := range pubs {
		rec, err := p.WithType(pdu.TypeFilePublicationRec)
		if err != nil {
			tb.Fatal("Failed to convert publication record: ", err)
		}
		tags = append(tags, rec.Tag())
	}
	body, err := tlv.EncodeAll(tags...)
	if err != nil {
		tb.Fatal("Failed to encode publications file: ", err)
	}
	signed := append([]byte("KSIPUBLF"), body...)

	sd, err := pkcs7.NewSignedData(signed)
	if err != nil {
		tb.Fatal("Failed to initialize PKCS#7 signature: ", err)
	}
	if err := sd.AddSigner(signer.Cert, signer.Key, pkcs7.SignerInfoConfig{}); err != nil {
		tb.Fatal("Failed to add PKCS#7 signer: ", err)
	}
	sd.Detach()
	sig, err := sd.Finish()
	if err != nil {
		tb.Fatal("Failed to finish PKCS#7 signature: ", err)
	}

	sigTag, err := tlv.NewRaw(pdu.TypeFileSignature, sig).Encode()
	if err != nil {
		tb.Fatal("Failed to encode file signature: ", err)
	}
	return append(signed, sigTag...)
}
