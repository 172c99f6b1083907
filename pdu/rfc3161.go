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
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/tlv"
)

// RFC3161 is the legacy time-stamp compatibility record. It binds an input hash to the lowest aggregation chain
// through the hashes of the TSTInfo and SignedAttributes structures of an RFC 3161 time-stamp token.
type RFC3161 struct {
	tag           *tlv.Tag
	aggrTime      uint64
	chainIndex    []uint64
	inputData     []byte
	inputHash     hash.Imprint
	tstInfoPrefix []byte
	tstInfoSuffix []byte
	tstInfoAlgo   hash.Algorithm
	sigAttrPrefix []byte
	sigAttrSuffix []byte
	sigAttrAlgo   hash.Algorithm
}

// RFC3161Fields holds the fields of an RFC3161 record for its construction.
type RFC3161Fields struct {
	AggregationTime uint64
	ChainIndex      []uint64
	InputData       []byte
	InputHash       hash.Imprint
	TstInfoPrefix   []byte
	TstInfoSuffix   []byte
	TstInfoAlgo     hash.Algorithm
	SigAttrPrefix   []byte
	SigAttrSuffix   []byte
	SigAttrAlgo     hash.Algorithm
}

// NewRFC3161 returns an RFC3161 record.
func NewRFC3161(r RFC3161Fields) (*RFC3161, error) {
	if !r.InputHash.IsValid() {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid input hash.")
	}
	children := []*tlv.Tag{tlv.NewInteger(0x02, r.AggregationTime)}
	for _, i := range r.ChainIndex {
		children = append(children, tlv.NewInteger(0x03, i))
	}
	if r.InputData != nil {
		children = append(children, tlv.NewRaw(0x04, r.InputData))
	}
	children = append(children,
		tlv.NewImprint(0x05, r.InputHash),
		tlv.NewRaw(0x10, r.TstInfoPrefix),
		tlv.NewRaw(0x11, r.TstInfoSuffix),
		tlv.NewInteger(0x12, uint64(r.TstInfoAlgo)),
		tlv.NewRaw(0x13, r.SigAttrPrefix),
		tlv.NewRaw(0x14, r.SigAttrSuffix),
		tlv.NewInteger(0x15, uint64(r.SigAttrAlgo)),
	)
	return RFC3161FromTag(tlv.NewComposite(TypeRFC3161, children...))
}

// RFC3161FromTag returns the RFC3161 record projection of the tag.
func RFC3161FromTag(t *tlv.Tag) (*RFC3161, error) {
	f := scan(t, TypeRFC3161, 0x02, 0x03, 0x04, 0x05, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15)
	r := &RFC3161{tag: t}
	r.aggrTime = f.uint(f.one(0x02))
	for _, i := range f.list(0x03, 1) {
		r.chainIndex = append(r.chainIndex, f.uint(i))
	}
	r.inputData = f.bytes(f.opt(0x04))
	r.inputHash = f.imprint(f.one(0x05))
	r.tstInfoPrefix = f.bytes(f.one(0x10))
	r.tstInfoSuffix = f.bytes(f.one(0x11))
	r.tstInfoAlgo = f.algorithm(f.one(0x12))
	r.sigAttrPrefix = f.bytes(f.one(0x13))
	r.sigAttrSuffix = f.bytes(f.one(0x14))
	r.sigAttrAlgo = f.algorithm(f.one(0x15))
	if f.err != nil {
		return nil, f.err
	}
	return r, nil
}

// Tag returns the underlying TLV element.
func (r *RFC3161) Tag() *tlv.Tag {
	if r == nil {
		return nil
	}
	return r.tag
}

// AggregationTime returns the aggregation time.
func (r *RFC3161) AggregationTime() time.Time {
	if r == nil {
		return time.Time{}
	}
	return time.Unix(int64(r.aggrTime), 0)
}

// ChainIndex returns the chain index.
func (r *RFC3161) ChainIndex() []uint64 {
	if r == nil {
		return nil
	}
	return append([]uint64(nil), r.chainIndex...)
}

// InputData returns the input data, or nil if not present.
func (r *RFC3161) InputData() []byte {
	if r == nil {
		return nil
	}
	return r.inputData
}

// InputHash returns the input hash, i.e. the document hash of a legacy signature.
func (r *RFC3161) InputHash() hash.Imprint {
	if r == nil {
		return nil
	}
	return r.inputHash
}

// TstInfoAlgo returns the hash function used to hash the TSTInfo structure.
func (r *RFC3161) TstInfoAlgo() hash.Algorithm {
	if r == nil {
		return hash.SHA_NA
	}
	return r.tstInfoAlgo
}

// SigAttrAlgo returns the hash function used to hash the SignedAttributes structure.
func (r *RFC3161) SigAttrAlgo() hash.Algorithm {
	if r == nil {
		return hash.SHA_NA
	}
	return r.sigAttrAlgo
}

// OutputHash calculates the output hash of the record using the aggregation algorithm of the lowest aggregation
// chain. The result is the expected input hash of that chain.
func (r *RFC3161) OutputHash(algorithm hash.Algorithm) (hash.Imprint, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	tstInfoHsh, err := preSufHasher(r.tstInfoPrefix, r.inputHash, r.tstInfoSuffix, r.tstInfoAlgo)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to calculate TSTInfo digest.")
	}
	sigAttrHsh, err := preSufHasher(r.sigAttrPrefix, tstInfoHsh, r.sigAttrSuffix, r.sigAttrAlgo)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to calculate signed attributes digest.")
	}
	return algorithm.Digest(sigAttrHsh)
}

func preSufHasher(prefix []byte, hsh hash.Imprint, suffix []byte, algorithm hash.Algorithm) (hash.Imprint, error) {
	if !hsh.IsValid() || !algorithm.Defined() {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return algorithm.Digest(prefix, hsh.Digest(), suffix)
}
