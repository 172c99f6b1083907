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
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/net"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/tlv"
)

// FileMagic is the publications file header.
const FileMagic = "KSIPUBLF"

var fileLookup = tlv.NewLookup(
	pdu.PublicationsHeaderTemplate,
	pdu.CertificateRecTemplate,
	pdu.FilePublicationRecTemplate,
	pdu.FileSignatureTemplate,
)

// File is a trust anchor for verifying KSI signatures. It contains a list of public-key certificates
// for verifying authentication records and a list of publications for verifying publication records
// attached to calendar hash chains. A publication file has the following components that must appear
// in the following order:
//  - 8-byte magic 4B 53 49 50 55 42 4C 46 (in hexadecimal), which encodes the string 'KSIPUBLF' in ASCII.
//  - Header (Single)
//  - Public Key Certificates (Multiple) that are considered trustworthy at the time of creation of the publication file.
//  - Publications (Multiple) that have been created up to the file creation time.
//  - Signature (Single) of the file.
type File struct {
	header    *pdu.PublicationsHeader
	certRecs  []*pdu.CertificateRecord
	pubRecs   []*pdu.PublicationRec
	signature []byte

	// Raw file, magic included.
	raw []byte
	// Length of the signed prefix of raw.
	signedLen int
}

// NewFile returns publications file constructed from the provided initializer.
//
// Note that the returned publications file is not verified (see (FileHandler).Verify()).
func NewFile(builder FileBuilder) (*File, error) {
	if builder == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var tmp file
	if err := builder(&tmp); err != nil {
		return nil, err
	}
	return &tmp.obj, nil
}

// FileBuilder defines a publications file initializer.
type (
	FileBuilder func(*file) error
	file        struct {
		obj File
	}
)

// FileFromFile returns initializer for the publications file to be built from a binary file.
func FileFromFile(path string) FileBuilder {
	return func(p *file) error {
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage("Unable to open publications file.")
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Error("Failed to close file: ", err)
			}
		}()

		return FileFromReader(f)(p)
	}
}

// FileFromBytes returns initializer for the publications file to be built from binary array.
func FileFromBytes(raw []byte) FileBuilder {
	return func(p *file) error {
		if len(raw) == 0 {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}
		if len(raw) > math.MaxUint32 {
			return errors.New(errors.KsiInvalidFormatError).
				AppendMessage("Publications file exceeds max size.")
		}
		return p.obj.decode(raw)
	}
}

// FileFromReader returns initializer for the publications file to be built from binary stream.
func FileFromReader(r io.Reader) FileBuilder {
	return func(p *file) error {
		if r == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		raw, err := io.ReadAll(io.LimitReader(r, math.MaxUint32+1))
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage("Unable to read publications file stream.")
		}
		return FileFromBytes(raw)(p)
	}
}

// FileFromURL returns initializer for the publications file to be downloaded from the specified location.
func FileFromURL(ctx context.Context, url string, opts ...net.ClientOpt) FileBuilder {
	return func(p *file) error {
		if len(url) == 0 {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		client, err := net.NewClient(url, "", "",
			append([]net.ClientOpt{net.ClientOptDatagramVerifier(isFileComplete)}, opts...)...)
		if err != nil {
			return err
		}
		raw, err := client.Receive(ctx, nil)
		if err != nil {
			return errors.KsiErr(err, errors.KsiNetworkError).AppendMessage("Unable to download publications file.")
		}
		return FileFromBytes(raw)(p)
	}
}

// isFileComplete reports whether the datagram is the file header followed by complete tags.
func isFileComplete(raw []byte) (bool, error) {
	if len(raw) <= len(FileMagic) || string(raw[:len(FileMagic)]) != FileMagic {
		return false, nil
	}
	return tlv.IsSequence(raw[len(FileMagic):]), nil
}

func (p *File) decode(raw []byte) error {
	headerLen := len(FileMagic)
	if len(raw) < headerLen {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Not enough bytes for publications file header.")
	}
	if len(raw) == headerLen {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Only publications file header is provided.")
	}
	if string(raw[:headerLen]) != FileMagic {
		return errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unrecognized header: %x", raw[:headerLen]))
	}

	tags, err := tlv.ParseAll(raw[headerLen:], fileLookup)
	if err != nil {
		return errors.KsiErr(err).AppendMessage("Unable to parse publications file.")
	}

	const (
		stateHeader = iota
		stateCerts
		statePubs
		stateSignature
	)
	var (
		state  = stateHeader
		offset = headerLen
	)
	for _, t := range tags {
		tlvLen, err := encodedLen(t)
		if err != nil {
			return err
		}

		switch t.Type {
		case pdu.TypePublicationsHeader:
			if state != stateHeader {
				return fileViolation(pdu.RuleSingle, "header must be the first and single element", t.Type)
			}
			if p.header, err = pdu.PublicationsHeaderFromTag(t); err != nil {
				return err
			}
			state = stateCerts
		case pdu.TypeCertificateRec:
			if state != stateCerts {
				return fileViolation(pdu.RuleOrder, "certificate record out of order", t.Type)
			}
			rec, err := pdu.CertificateRecordFromTag(t)
			if err != nil {
				return err
			}
			p.certRecs = append(p.certRecs, rec)
		case pdu.TypeFilePublicationRec:
			if state != stateCerts && state != statePubs {
				return fileViolation(pdu.RuleOrder, "publication record out of order", t.Type)
			}
			rec, err := pdu.FilePublicationRecFromTag(t)
			if err != nil {
				return err
			}
			p.pubRecs = append(p.pubRecs, rec)
			state = statePubs
		case pdu.TypeFileSignature:
			if state == stateHeader || state == stateSignature {
				return fileViolation(pdu.RuleSingle, "signature must be the last and single element", t.Type)
			}
			if p.signature, err = t.Bytes(); err != nil {
				return err
			}
			p.signedLen = offset
			state = stateSignature
		default:
			if state == stateSignature {
				return fileViolation(pdu.RuleOrder, "signature must be the last element", t.Type)
			}
		}
		offset += tlvLen
	}

	if state == stateHeader {
		return fileViolation(pdu.RuleMandatory, "header is missing", pdu.TypePublicationsHeader)
	}
	if state != stateSignature {
		return fileViolation(pdu.RuleMandatory, "signature is missing", pdu.TypeFileSignature)
	}
	p.raw = append([]byte(nil), raw...)
	return nil
}

func fileViolation(rule pdu.StructureRule, details string, typ uint16) error {
	return pdu.NewViolation(rule, details, pdu.TypePublicationsFile, typ)
}

func encodedLen(t *tlv.Tag) (int, error) {
	b, err := t.Encode()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Header returns the publications file header.
func (p *File) Header() *pdu.PublicationsHeader {
	if p == nil {
		return nil
	}
	return p.header
}

// CertificateRecords returns the certificate records in the order of appearance.
func (p *File) CertificateRecords() []*pdu.CertificateRecord {
	if p == nil {
		return nil
	}
	return p.certRecs
}

// PublicationRecords returns the publication records in the order of appearance.
func (p *File) PublicationRecords() []*pdu.PublicationRec {
	if p == nil {
		return nil
	}
	return p.pubRecs
}

// Signature returns the PKCS#7 signature of the file.
func (p *File) Signature() []byte {
	if p == nil {
		return nil
	}
	return p.signature
}

// Bytes returns the serialized file, magic included.
func (p *File) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.raw
}

// SignedBytes returns the part of the file covered by the signature: the magic and every element preceding
// the signature element.
func (p *File) SignedBytes() []byte {
	if p == nil || p.signedLen == 0 {
		return nil
	}
	return p.raw[:p.signedLen]
}

// Certificate returns PKI certificate record with the given ID.
//
// Returns the found certificate, or nil otherwise.
func (p *File) Certificate(id []byte) (*pdu.CertificateRecord, error) {
	if p == nil || len(id) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	for _, r := range p.certRecs {
		if bytes.Equal(id, r.CertID()) {
			return r, nil
		}
	}
	return nil, nil
}

// PublicationRec returns publication record based on the provided search strategy.
//
// Returns the found publication record, or nil otherwise.
func (p *File) PublicationRec(by PubRecSearchBy) (*pdu.PublicationRec, error) {
	if p == nil || by == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	id, err := by(p)
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, nil
	}
	return p.pubRecs[id], nil
}

// NearestPublicationRecord returns the earliest publication record published at or after the given time, or nil
// if the file has none.
func (p *File) NearestPublicationRecord(t time.Time) (*pdu.PublicationRec, error) {
	return p.PublicationRec(PubRecSearchNearest(t))
}

// PubRecSearchBy specifies the publication record search criteria.
type PubRecSearchBy func(*File) (int, error)

func (p *File) find(match func(*pdu.PublicationData) bool) int {
	for i, r := range p.pubRecs {
		if match(r.PublicationData()) {
			return i
		}
	}
	return -1
}

// PubRecSearchByPubString searches publication by publication string.
func PubRecSearchByPubString(pubString string) PubRecSearchBy {
	return func(p *File) (int, error) {
		if len(pubString) == 0 {
			return -1, errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		pubData, err := pdu.PublicationDataFromString(pubString)
		if err != nil {
			return -1, err
		}
		return p.find(pubData.Equal), nil
	}
}

// PubRecSearchByPubData searches publication by publication data.
func PubRecSearchByPubData(pubData *pdu.PublicationData) PubRecSearchBy {
	return func(p *File) (int, error) {
		if pubData == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError)
		}
		if p == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}
		return p.find(pubData.Equal), nil
	}
}

// PubRecSearchByTime searches publication by exact time.
func PubRecSearchByTime(pubTime time.Time) PubRecSearchBy {
	return func(p *File) (int, error) {
		if p == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}
		return p.find(func(d *pdu.PublicationData) bool {
			return d.PublicationTime().Equal(pubTime)
		}), nil
	}
}

// PubRecSearchLatest searches for the latest available publication, it must be published after given time.
func PubRecSearchLatest(pubTime time.Time) PubRecSearchBy {
	return func(p *File) (int, error) {
		if p == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		var (
			idx = -1
			tm  = pubTime
		)
		for i, r := range p.pubRecs {
			if recTime := r.PublicationData().PublicationTime(); recTime.After(tm) {
				tm = recTime
				idx = i
			}
		}
		return idx, nil
	}
}

// PubRecSearchNearest searches for the publication that is published at or after given time and is closest to it.
func PubRecSearchNearest(pubTime time.Time) PubRecSearchBy {
	return func(p *File) (int, error) {
		if p == nil {
			return -1, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publications file base object.")
		}

		idx := -1
		var nearest time.Time
		for i, r := range p.pubRecs {
			recTime := r.PublicationData().PublicationTime()
			if recTime.Before(pubTime) {
				continue
			}
			if idx < 0 || recTime.Before(nearest) {
				idx = i
				nearest = recTime
			}
		}
		return idx, nil
	}
}

// VerifyRecord verifies the calendar authentication record against the certificates of the publications file.
//
// The certificate referenced by the record is looked up by its ID, its signature algorithm is matched to the
// record signature type, and the signature is verified by the verifier. If the verifier is nil, X509Verifier is
// used. If the selector is not nil, the certificate must also be matched by it.
func (p *File) VerifyRecord(rec *pdu.CalendarAuthRec, verifier PKIVerifier, selector CertSelector) error {
	if p == nil || rec == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if verifier == nil {
		verifier = X509Verifier{}
	}

	sigData := rec.SignatureData()
	certRec, err := p.Certificate(sigData.CertID())
	if err != nil {
		return err
	}
	if certRec == nil {
		return errors.New(errors.KsiPkiCertificateNotTrusted).
			AppendMessage("Suitable PKI certificate not found in publications file.")
	}
	if err := certRec.VerifySigType(sigData.SignatureType()); err != nil {
		return err
	}
	if selector != nil {
		cert, err := certRec.Certificate()
		if err != nil {
			return err
		}
		if !selector.Match(cert) {
			return errors.New(errors.KsiPkiCertificateNotTrusted).
				AppendMessage("Certificate is not accepted by the selector.")
		}
	}

	signed, err := rec.SignedBytes()
	if err != nil {
		return err
	}
	return verifier.Verify(signed, sigData.SignatureValue(), certRec.Cert())
}

// String implements fmt.(Stringer) interface.
func (p *File) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Publications file:\n")
	b.WriteString(p.header.String())
	for _, c := range p.certRecs {
		cert, err := c.Certificate()
		if err != nil {
			b.WriteString(fmt.Sprintf("Certificate %x: %s\n", c.CertID(), err))
			continue
		}
		b.WriteString(CertificateToString(cert))
	}
	for _, r := range p.pubRecs {
		b.WriteString(r.String())
	}
	return b.String()
}
