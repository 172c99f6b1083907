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
	"encoding/hex"
	"strings"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/tlv"
)

// CalendarAuthRec is the calendar authentication record: a publication data structure signed with a key whose
// certificate is published in the publications file.
type CalendarAuthRec struct {
	tag     *tlv.Tag
	pubData *PublicationData
	sigData *SignatureData
}

// SignatureData is the signature over the encoded publication data of a calendar authentication record.
type SignatureData struct {
	tag     *tlv.Tag
	sigType string
	sigVal  []byte
	certID  []byte
	repURI  *string
}

// NewSignatureData returns signature data. The certificate repository URI is optional and omitted if empty.
func NewSignatureData(sigType string, sigValue, certID []byte, repURI string) (*SignatureData, error) {
	if sigType == "" || len(sigValue) == 0 || len(certID) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	var uri *tlv.Tag
	if repURI != "" {
		uri = tlv.NewString(0x04, repURI)
	}
	return SignatureDataFromTag(tlv.NewComposite(TypeSignatureData,
		tlv.NewString(0x01, sigType),
		tlv.NewRaw(0x02, sigValue),
		tlv.NewRaw(0x03, certID),
		uri,
	))
}

// SignatureDataFromTag returns the signature data projection of the tag.
func SignatureDataFromTag(t *tlv.Tag) (*SignatureData, error) {
	f := scan(t, TypeSignatureData, 0x01, 0x02, 0x03, 0x04)
	s := &SignatureData{tag: t}
	s.sigType = f.text(f.one(0x01))
	s.sigVal = f.bytes(f.one(0x02))
	s.certID = f.bytes(f.one(0x03))
	if u := f.opt(0x04); u != nil {
		v := f.text(u)
		s.repURI = &v
	}
	if f.err != nil {
		return nil, f.err
	}
	return s, nil
}

// SignatureType returns the signing algorithm and signature format identifier, as assigned by IANA, represented
// as a dotted decimal object identifier (OID).
//
// As an example, the signature type "1.2.840.113549.1.1.11" (for "SHA-256 with RSA encryption") would indicate a
// signature formed by hashing the published data with the SHA2-256 algorithm and then signing the resulting hash
// value with an RSA private key.
func (s *SignatureData) SignatureType() string {
	if s == nil {
		return ""
	}
	return s.sigType
}

// SignatureValue returns the signature itself, computed and formatted according to the specified method.
func (s *SignatureData) SignatureValue() []byte {
	if s == nil {
		return nil
	}
	return s.sigVal
}

// CertID returns the certificate identifier.
func (s *SignatureData) CertID() []byte {
	if s == nil {
		return nil
	}
	return s.certID
}

// CertRepURI returns the optional certificate repository URI, or an empty string if not present.
func (s *SignatureData) CertRepURI() string {
	if s == nil || s.repURI == nil {
		return ""
	}
	return *s.repURI
}

// NewCalendarAuthRec returns a calendar authentication record.
func NewCalendarAuthRec(pubData *PublicationData, sigData *SignatureData) (*CalendarAuthRec, error) {
	if pubData == nil || sigData == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return CalendarAuthRecFromTag(tlv.NewComposite(TypeCalendarAuthRec, pubData.tag.Clone(), sigData.tag.Clone()))
}

// CalendarAuthRecFromTag returns the calendar authentication record projection of the tag.
func CalendarAuthRecFromTag(t *tlv.Tag) (*CalendarAuthRec, error) {
	f := scan(t, TypeCalendarAuthRec, TypePublicationData, TypeSignatureData)
	c := &CalendarAuthRec{tag: t}
	f.sub(f.one(TypePublicationData), func(e *tlv.Tag) (err error) {
		c.pubData, err = PublicationDataFromTag(e)
		return err
	})
	f.sub(f.one(TypeSignatureData), func(e *tlv.Tag) (err error) {
		c.sigData, err = SignatureDataFromTag(e)
		return err
	})
	if f.err != nil {
		return nil, f.err
	}
	return c, nil
}

// Tag returns the underlying TLV element.
func (c *CalendarAuthRec) Tag() *tlv.Tag {
	if c == nil {
		return nil
	}
	return c.tag
}

// PublicationData returns the signed publication data.
func (c *CalendarAuthRec) PublicationData() *PublicationData {
	if c == nil {
		return nil
	}
	return c.pubData
}

// SignatureData returns the signature of the published data.
func (c *CalendarAuthRec) SignatureData() *SignatureData {
	if c == nil {
		return nil
	}
	return c.sigData
}

// SignedBytes returns the octets covered by the signature, i.e. the encoded publication data.
func (c *CalendarAuthRec) SignedBytes() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return c.pubData.tag.Encode()
}

// String implements fmt.(Stringer) interface.
func (c *CalendarAuthRec) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.pubData.String())
	b.WriteString("Signature type  : ")
	b.WriteString(c.sigData.sigType)
	b.WriteString("\nCertificate ID  : ")
	b.WriteString(hex.EncodeToString(c.sigData.certID))
	b.WriteString("\n")
	return b.String()
}
