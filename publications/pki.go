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
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"hash/crc32"
	"strings"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
)

// PKIVerifier verifies a PKI signature over the signed octets with the public key of a DER encoded certificate.
type PKIVerifier interface {
	Verify(signed, signature, cert []byte) error
}

// X509Verifier is the default PKIVerifier. The signature algorithm is taken from the certificate.
type X509Verifier struct{}

// Verify implements PKIVerifier interface.
func (X509Verifier) Verify(signed, signature, cert []byte) error {
	if len(signed) == 0 || len(signature) == 0 || len(cert) == 0 {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	x509cert, err := x509.ParseCertificate(cert)
	if err != nil {
		return errors.New(errors.KsiCryptoFailure).SetExtError(err).AppendMessage("Failed to parse certificate.")
	}
	if err := x509cert.CheckSignature(x509cert.SignatureAlgorithm, signed, signature); err != nil {
		log.Debug("PKI signature verification failed: ", err)
		return errors.New(errors.KsiInvalidPkiSignature).SetExtError(err).
			AppendMessage("Failed to verify signature.")
	}
	return nil
}

// CertSelector decides whether a certificate is acceptable for verification.
type CertSelector interface {
	Match(*x509.Certificate) bool
}

// CertSelectorFunc is an adapter to use ordinary functions as CertSelector.
type CertSelectorFunc func(*x509.Certificate) bool

// Match implements CertSelector interface.
func (f CertSelectorFunc) Match(c *x509.Certificate) bool {
	return f != nil && f(c)
}

// ConstraintSelector returns a selector matching certificates whose subject satisfies all the constraints.
func ConstraintSelector(cnstr ...pkix.AttributeTypeAndValue) CertSelector {
	return CertSelectorFunc(func(c *x509.Certificate) bool {
		if c == nil {
			return false
		}
		if err := checkCertConstraints(cnstr, c.Subject.Names); err != nil {
			log.Debug(err)
			return false
		}
		return true
	})
}

// ValidAtSelector returns a selector matching certificates valid at the given time.
func ValidAtSelector(t time.Time) CertSelector {
	return CertSelectorFunc(func(c *x509.Certificate) bool {
		return c != nil && !t.Before(c.NotBefore) && !t.After(c.NotAfter)
	})
}

func formatHexStringWithDelimiters(input string) string {
	var buf strings.Builder
	for i, char := range input {
		if i != 0 && i%2 == 0 {
			buf.WriteRune(':')
		}
		buf.WriteRune(char)
	}
	return buf.String()
}

func isCertExpired(cert *x509.Certificate) bool {
	return time.Now().After(cert.NotAfter)
}

func isCertValid(cert *x509.Certificate) bool {
	return time.Now().After(cert.NotBefore)
}

// CertificateToString returns a printable representation of the x509 certificate.
func CertificateToString(cert *x509.Certificate) string {
	if cert == nil {
		return "nil"
	}

	var state string
	switch {
	case isCertExpired(cert):
		state = "expired"
	case isCertValid(cert):
		state = "valid"
	default:
		state = "invalid"
	}

	return fmt.Sprintf("PKI Certificate (%s):\n"+
		"  * Issued to: %s\n"+
		"  * Issued by: %s\n"+
		"  * Valid from: %s to %s [%s]\n"+
		"  * Serial Number: %s\n",
		formatHexStringWithDelimiters(fmt.Sprintf("%08x", crc32.ChecksumIEEE(cert.Raw))),
		cert.Subject, cert.Issuer, cert.NotBefore, cert.NotAfter, state,
		formatHexStringWithDelimiters(cert.SerialNumber.Text(16)))
}

// CertChainToString returns a printable representation of the x509 certificate chain.
func CertChainToString(certList []*x509.Certificate) string {
	if len(certList) == 0 {
		return "nil"
	}
	var buf strings.Builder
	buf.WriteString("Certificate chain:\n\n")
	for i, cert := range certList {
		buf.WriteString(fmt.Sprintf("Certificate(%v)\n%s\n\n", i, CertificateToString(cert)))
	}
	return buf.String()
}

func checkCertConstraints(ref, subject []pkix.AttributeTypeAndValue) error {
	if len(ref) == 0 {
		return errors.New(errors.KsiPkiCertificateNotTrusted).
			AppendMessage("Unable to verify certificates constraints as constraints are not specified!")
	}

	for _, r := range ref {
		isOidMatch := false
		for _, s := range subject {
			if !r.Type.Equal(s.Type) {
				continue
			}
			isOidMatch = true

			rString, ok := r.Value.(string)
			if !ok {
				return errors.New(errors.KsiInvalidFormatError).
					AppendMessage(fmt.Sprintf("Constraint value must be a string, got '%v'!", r.Value))
			}
			sString, ok := s.Value.(string)
			if !ok {
				return errors.New(errors.KsiInvalidFormatError).
					AppendMessage(fmt.Sprintf("Certificate subject value must be a string, got '%v'!", s.Value))
			}
			if rString != sString {
				return errors.New(errors.KsiPkiCertificateNotTrusted).
					AppendMessage(fmt.Sprintf("Certificate constraints mismatch for %s.", r.Type.String())).
					AppendMessage(fmt.Sprintf("Expecting '%s', but got '%s'!", rString, sString))
			}
			break
		}

		if !isOidMatch {
			return errors.New(errors.KsiPkiCertificateNotTrusted).
				AppendMessage("Unable to verify certificate constraints").
				AppendMessage(fmt.Sprintf("Constraint '%s' is not specified in certificate!", r.Type.String()))
		}
	}
	return nil
}
