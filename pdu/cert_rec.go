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

package pdu

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/tlv"
)

// CertificateRecord is a publications file record holding an X.509 certificate and its identifier.
type CertificateRecord struct {
	tag    *tlv.Tag
	certID []byte
	cert   []byte
}

// NewCertificateRecord returns a certificate record for the DER encoded certificate.
func NewCertificateRecord(certID, cert []byte) (*CertificateRecord, error) {
	if len(certID) == 0 || len(cert) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return CertificateRecordFromTag(tlv.NewComposite(TypeCertificateRec,
		tlv.NewRaw(0x01, certID),
		tlv.NewRaw(0x02, cert),
	))
}

// CertificateRecordFromTag returns the certificate record projection of the tag.
func CertificateRecordFromTag(t *tlv.Tag) (*CertificateRecord, error) {
	f := scan(t, TypeCertificateRec, 0x01, 0x02)
	c := &CertificateRecord{tag: t}
	c.certID = f.bytes(f.one(0x01))
	c.cert = f.bytes(f.one(0x02))
	if f.err != nil {
		return nil, f.err
	}
	return c, nil
}

// Tag returns the underlying TLV element.
func (c *CertificateRecord) Tag() *tlv.Tag {
	if c == nil {
		return nil
	}
	return c.tag
}

// CertID returns the certificate ID.
func (c *CertificateRecord) CertID() []byte {
	if c == nil {
		return nil
	}
	return c.certID
}

// Cert returns the DER encoded x509 certificate.
func (c *CertificateRecord) Cert() []byte {
	if c == nil {
		return nil
	}
	return c.cert
}

// Certificate returns the parsed x509 certificate.
func (c *CertificateRecord) Certificate() (*x509.Certificate, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	cert, err := x509.ParseCertificate(c.cert)
	if err != nil {
		return nil, errors.New(errors.KsiCryptoFailure).SetExtError(err).
			AppendMessage("Failed to parse certificate.")
	}
	return cert, nil
}

// IsValid verifies that the certificate is valid at the given time.
func (c *CertificateRecord) IsValid(at time.Time) (bool, error) {
	if c == nil || at.IsZero() {
		return false, errors.New(errors.KsiInvalidArgumentError)
	}
	cert, err := c.Certificate()
	if err != nil {
		return false, err
	}
	return !at.Before(cert.NotBefore) && !at.After(cert.NotAfter), nil
}

// VerifySigType compares the signature type OID string representation to the one included in the x509 certificate.
// See also asn1.(ObjectIdentifier).String().
func (c *CertificateRecord) VerifySigType(sigType string) error {
	if c == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	var cert struct {
		TBSCertificate     asn1.RawValue
		SignatureAlgorithm pkix.AlgorithmIdentifier
		SignatureValue     asn1.BitString
	}
	if _, err := asn1.Unmarshal(c.cert, &cert); err != nil {
		return errors.New(errors.KsiCryptoFailure).SetExtError(err).
			AppendMessage("Failed to parse ASN.1 structure of X.509 certificate.")
	}

	if cert.SignatureAlgorithm.Algorithm.String() != sigType {
		err := errors.New(errors.KsiInvalidPkiSignature).
			AppendMessage("Signature type OID mismatch.").
			AppendMessage(fmt.Sprintf("Certificate OID=%s, expected signature type=%s", cert.SignatureAlgorithm.Algorithm, sigType))
		log.Debug(err)
		return err
	}
	return nil
}
