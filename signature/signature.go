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

// Package signature implements decoding and encoding of KSI signatures and signature verification handling.
//
// At the highest level of abstraction, a KSI Blockchain signature consists of a hash chain linking the signed document
// to the root hash value of the aggregation tree, followed by another hash chain linking the root hash value of the
// aggregation tree to the published trust anchor.
package signature

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/tlv"
)

// maxSignatureSize limits the amount of data read from a stream or file.
const maxSignatureSize = 1 << 24

var signatureLookup = tlv.NewLookup(pdu.SignatureTemplate)

// Signature is the KSI signature.
type Signature struct {
	// Flag for disabling signature verification during construction.
	noVerify bool
	// Signature verification result.
	verificationResult *VerificationResult

	tag *tlv.Tag

	// KSI elements.
	aggrChainList pdu.AggregationChainList
	calChain      *pdu.CalendarChain
	calAuthRec    *pdu.CalendarAuthRec
	publication   *pdu.PublicationRec
	rfc3161       *pdu.RFC3161
}

// New returns a new signature which was constructed based on the provided builder option.
//
// The structure of the signature is always validated. Unless BuildNoVerify is used, the signature is additionally
// verified with InternalVerificationPolicy.
func New(builder Builder) (*Signature, error) {
	if builder == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var tmp signature
	// Build signature.
	if err := builder(&tmp); err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to create KSI signature.")
	}
	if tmp.obj == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("KSI signature was not constructed.")
	}

	if err := tmp.obj.Verify(InternalVerificationPolicy); err != nil {
		return nil, err
	}
	// Clear the no verify flag.
	tmp.obj.noVerify = false

	return tmp.obj, nil
}

type (
	// Builder is a signature initializer functional option.
	Builder func(*signature) error

	signature struct {
		obj *Signature
	}
)

// BuildNoVerify disables signature verification during initialization process. The structural validation is still
// performed.
// Should be used with care!
func BuildNoVerify(builder Builder) Builder {
	return func(s *signature) error {
		if builder == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		if err := builder(s); err != nil {
			return err
		}
		if s.obj == nil {
			return errors.New(errors.KsiInvalidStateError).AppendMessage("Missing KSI signature.")
		}

		log.Info("Using no-verify initializer.")
		s.obj.noVerify = true

		return nil
	}
}

// BuildFromStream enables to initialize KSI signature from reader (binary stream). Exactly one signature element
// is read from the stream.
func BuildFromStream(r io.Reader) Builder {
	return func(s *signature) error {
		if r == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		t, err := tlv.NewReader(io.LimitReader(r, maxSignatureSize)).Next(signatureLookup)
		if err == io.EOF {
			return errors.New(errors.KsiTlvTruncated).AppendMessage("Empty signature stream.")
		}
		if err != nil {
			return err
		}
		return s.fromTag(t)
	}
}

// BuildFromBytes enables to initialize KSI signature from its binary encoding.
func BuildFromBytes(raw []byte) Builder {
	return func(s *signature) error {
		if len(raw) == 0 {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		t, err := tlv.Parse(raw, pdu.SignatureTemplate)
		if err != nil {
			return err
		}
		return s.fromTag(t)
	}
}

// BuildFromFile enables to initialize a signature from file on the filesystem.
func BuildFromFile(path string) Builder {
	return func(s *signature) error {
		if path == "" {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		log.Debug("Load signature file: ", path)
		f, err := os.Open(path)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage(fmt.Sprintf("Failed to open signature file: %s", path))
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Error("Failed to close file: ", err)
			}
		}()

		return BuildFromStream(f)(s)
	}
}

// BuildFromTag enables to initialize a signature from a decoded signature element. The tag is copied.
func BuildFromTag(t *tlv.Tag) Builder {
	return func(s *signature) error {
		if t == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}
		return s.fromTag(t.Clone())
	}
}

// BuildFromComponents enables to assemble a signature from its elements. The aggregation chains are mandatory, the
// rest is optional. The components are copied.
func BuildFromComponents(chains pdu.AggregationChainList, calChain *pdu.CalendarChain,
	pubRec *pdu.PublicationRec, authRec *pdu.CalendarAuthRec, rfc3161 *pdu.RFC3161) Builder {

	return func(s *signature) error {
		if len(chains) == 0 {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing aggregation hash chains.")
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}
		return s.fromTag(assemble(chains, calChain, pubRec, authRec, rfc3161))
	}
}

// BuildFromExtension enables to initialize a signature from a copy of sig where the calendar hash chain is replaced
// with the extended calendar chain calChain.
// The publication record parameter (pubRec) is optional, meaning it can be set to nil. As a consequence the publication
// record in the resulting signature will be left empty. If Calendar Authentication record exists, it is removed.
// The input parameters are not modified.
func BuildFromExtension(sig *Signature, calChain *pdu.CalendarChain, pubRec *pdu.PublicationRec) Builder {
	return func(s *signature) error {
		if sig == nil || calChain == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		if s == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature base object.")
		}

		// Make sure that the new calendar hash chain is compatible with the old one.
		if sig.calChain != nil {
			if err := calChain.VerifyCompatibility(sig.calChain); err != nil {
				return errors.KsiErr(err).AppendMessage("Incompatible calendar hash chain.")
			}
		} else {
			if err := sig.verifyCalendarInput(calChain); err != nil {
				return err
			}
		}

		if pubRec != nil {
			// Verify that the provided publication record is compatible with the new calendar.
			extRoot, err := calChain.Aggregate()
			if err != nil {
				return err
			}
			pubData := pubRec.PublicationData()
			if !calChain.PublicationTime().Equal(pubData.PublicationTime()) ||
				!hash.Equal(extRoot, pubData.PublishedHash()) {
				return errors.New(errors.KsiInvalidFormatError).
					AppendMessage("Publication record is not compatible with the extended calendar chain.")
			}
		}

		if err := s.fromTag(assemble(sig.aggrChainList, calChain, pubRec, nil, sig.rfc3161)); err != nil {
			return err
		}
		log.Debug("Extended signature: ", s.obj)
		return nil
	}
}

// verifyCalendarInput checks that the calendar chain starts from the aggregation root of the signature.
func (s *Signature) verifyCalendarInput(calChain *pdu.CalendarChain) error {
	rootHsh, err := s.aggrChainList.Aggregate(0)
	if err != nil {
		return err
	}
	if !hash.Equal(rootHsh, calChain.InputHash()) {
		return errors.New(errors.KsiIncompatibleHashChain).
			AppendMessage("Calendar hash chain input hash does not match aggregation root hash.")
	}
	aggrTime, err := calChain.CalculateAggregationTime()
	if err != nil {
		return err
	}
	if !aggrTime.Equal(s.aggrChainList[0].AggregationTime()) {
		return errors.New(errors.KsiIncompatibleHashChain).
			AppendMessage("Calendar hash chain aggregation time does not match signing time.")
	}
	return nil
}

// assemble composes the signature element from its components.
func assemble(chains pdu.AggregationChainList, calChain *pdu.CalendarChain,
	pubRec *pdu.PublicationRec, authRec *pdu.CalendarAuthRec, rfc3161 *pdu.RFC3161) *tlv.Tag {

	children := make([]*tlv.Tag, 0, len(chains)+4)
	for _, c := range chains {
		children = append(children, c.Tag().Clone())
	}
	if calChain != nil {
		children = append(children, calChain.Tag().Clone())
	}
	if pubRec != nil {
		children = append(children, pubRec.Tag().Clone())
	}
	if authRec != nil {
		children = append(children, authRec.Tag().Clone())
	}
	if rfc3161 != nil {
		children = append(children, rfc3161.Tag().Clone())
	}
	return tlv.NewComposite(pdu.TypeSignature, children...)
}

func (s *signature) fromTag(t *tlv.Tag) error {
	log.Debug(t)

	obj, err := projectSignature(t)
	if err != nil {
		return err
	}
	s.obj = obj
	return nil
}

// Serialize returns a binary TLV representation of the KSI signature.
func (s *Signature) Serialize() ([]byte, error) {
	if s == nil || s.tag == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.tag.Encode()
}

// WriteTo implements io.(WriterTo) interface.
func (s *Signature) WriteTo(w io.Writer) (int64, error) {
	if s == nil || s.tag == nil || w == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.tag.WriteTo(w)
}

// Tag returns the signature element. The returned value must not be modified.
func (s *Signature) Tag() *tlv.Tag {
	if s == nil {
		return nil
	}
	return s.tag
}

// Equal reports whether the two signatures are structurally equal.
func (s *Signature) Equal(o *Signature) bool {
	if s == nil || o == nil {
		return s == o
	}
	return tlv.Equal(s.tag, o.tag)
}

// Clone returns a deep copy of the original KSI signature.
func (s *Signature) Clone() (*Signature, error) {
	if s == nil || s.tag == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	raw, err := s.Serialize()
	if err != nil {
		log.Error("Failed to serialize signature: ", err)
		return nil, err
	}

	tmp, err := New(BuildFromStream(bytes.NewReader(raw)))
	if err != nil {
		log.Error("Failed to build signature: ", err)
		return nil, err
	}
	return tmp, nil
}

// Verify verifies the signature based on the provided parameters.
//
// See (Signature).VerificationResult() for reading verification report.
// See InternalVerificationPolicy.
func (s *Signature) Verify(policy Policy, opts ...VerCtxOption) error {
	if s == nil || policy == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	if s.noVerify {
		return nil
	}

	verCtx, err := NewVerificationContext(s, opts...)
	if err != nil {
		return err
	}

	if _, err = policy.Verify(verCtx); err != nil {
		return err
	}
	s.verificationResult = verCtx.result

	return verCtx.result.Error()
}

// VerificationResult returns signature verification report.
func (s *Signature) VerificationResult() (*VerificationResult, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.verificationResult, nil
}

// DocumentHash returns the signed document hash as imprint.
func (s *Signature) DocumentHash() (hash.Imprint, error) {
	if s == nil || len(s.aggrChainList) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	// Check if RFC3161 record is present. Then take the hash from it.
	if s.rfc3161 != nil {
		return s.rfc3161.InputHash(), nil
	}
	// Take the input hash from the first aggregation chain.
	return s.aggrChainList[0].InputHash(), nil
}

// SigningTime return signing time, i.e. the aggregation time of the first aggregation hash chain.
func (s *Signature) SigningTime() (time.Time, error) {
	if s == nil {
		return time.Time{}, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(s.aggrChainList) == 0 {
		return time.Time{}, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Missing aggregation hash chain list.")
	}
	return s.aggrChainList[0].AggregationTime(), nil
}

// AggregationHashChainList returns aggregation hash chains ordered from the document upward.
func (s *Signature) AggregationHashChainList() (pdu.AggregationChainList, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(s.aggrChainList) == 0 {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Missing aggregation hash chain list.")
	}
	return append(pdu.AggregationChainList(nil), s.aggrChainList...), nil
}

// AggregationHashChainIdentity returns a list of the identities present in all aggregation hash chains.
// The identities in the list are ordered - the lower-level Aggregator identity is before upper-level Aggregator identity.
func (s *Signature) AggregationHashChainIdentity() (pdu.HashChainLinkIdentityList, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.aggrChainList.Identity(), nil
}

// AggregationHashChainListAggregate aggregates the aggregation hash chain list and returns the result hash.
func (s *Signature) AggregationHashChainListAggregate(lvl byte) (hash.Imprint, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.aggrChainList.Aggregate(lvl)
}

// CalendarChain returns calendar hash chain if attached, otherwise nil.
func (s *Signature) CalendarChain() (*pdu.CalendarChain, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.calChain, nil
}

// Publication returns publication record if attached, otherwise nil.
func (s *Signature) Publication() (*pdu.PublicationRec, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.publication, nil
}

// Rfc3161 returns RFC 3161 record if attached, otherwise nil.
func (s *Signature) Rfc3161() (*pdu.RFC3161, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.rfc3161, nil
}

// CalendarAuthRec returns calendar hash chain authentication record if attached, otherwise nil.
func (s *Signature) CalendarAuthRec() (*pdu.CalendarAuthRec, error) {
	if s == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return s.calAuthRec, nil
}

// IsExtended reports whether the signature is extended, i.e. it contains a publication record, or its calendar
// chain reaches past the aggregation round.
func (s *Signature) IsExtended() (bool, error) {
	if s == nil {
		return false, errors.New(errors.KsiInvalidArgumentError)
	}

	if s.calChain != nil {
		if s.publication != nil {
			return true, nil
		}
		if s.calChain.AggregationTime().Before(s.calChain.PublicationTime()) {
			return true, nil
		}
	}
	return false, nil
}

// sortChains orders the aggregation chains from the document upward, i.e. by descending chain index length.
func sortChains(l pdu.AggregationChainList) {
	sort.SliceStable(l, func(i, j int) bool {
		return len(l[i].ChainIndex()) > len(l[j].ChainIndex())
	})
}
