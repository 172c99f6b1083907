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
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/tlv"
)

// PublicationData is the published data structure: the publication time and the calendar root hash at that time.
type PublicationData struct {
	tag     *tlv.Tag
	pubTime uint64
	pubHash hash.Imprint
}

// NewPublicationData returns publication data, where h is the output hash of the calendar hash chain at time t.
func NewPublicationData(t time.Time, h hash.Imprint) (*PublicationData, error) {
	if t.IsZero() || t.Unix() < 0 || !h.IsValid() {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return PublicationDataFromTag(tlv.NewComposite(TypePublicationData,
		tlv.NewInteger(0x02, uint64(t.Unix())),
		tlv.NewImprint(0x04, h),
	))
}

// PublicationDataFromString returns publication data parsed from a publication string.
//
// A publication string represents the fields of the published data structure, formatted in a way suitable for
// printed media and manual entry into a verification tool. It is constructed as follows:
//  1. The publication data is assembled as a concatenation of the publication time, represented as a 64-bit
//     big-endian unsigned integer with the leading zeros preserved, and the publication imprint.
//  2. The CRC-32 checksum of the publication data is computed and appended to the data.
//  3. The resulting octet sequence is represented in base32 and optionally broken into groups by dashes.
//
// For example, the publication string for 2009-02-15T00:00:00Z:
//
//  AAAAAA-CJS5NQ-AAPOD6-6I7U75-PD6RDO-PCM7PZ-V4RWCG-Y4LPSE-6AQKXC-YUDHET-M4WE23-XFPW6G
func PublicationDataFromString(s string) (*PublicationData, error) {
	log.Debug("Publication string: ", s)
	if len(s) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	s = strings.Replace(s, "-", "", -1)
	raw, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New(errors.KsiInvalidFormatError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Unable to decode base32 string: '%s'", s))
	}

	if len(raw) < 13 {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Publication data inconsistent length: %s", hex.EncodeToString(raw)))
	}
	if crc32.ChecksumIEEE(raw[:len(raw)-4]) != binary.BigEndian.Uint32(raw[len(raw)-4:]) {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("CRC mismatch.")
	}
	alg := hash.Algorithm(raw[8])
	if !alg.Defined() {
		return nil, errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage(fmt.Sprintf("Publication data contains unknown hash algorithm: %x", raw[8]))
	}
	if len(raw) != 8+1+alg.Size()+4 {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Hash algorithm length mismatch.")
	}

	pubTime := binary.BigEndian.Uint64(raw[:8])
	if pubTime > maxTime {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Publication time out of range.")
	}
	return PublicationDataFromTag(tlv.NewComposite(TypePublicationData,
		tlv.NewInteger(0x02, pubTime),
		tlv.NewImprint(0x04, hash.Imprint(raw[8:8+1+alg.Size()])),
	))
}

// maxTime bounds the times accepted from untrusted sources so that time.Unix does not overflow.
const maxTime = 1<<63 - 1

// PublicationDataFromTag returns the publication data projection of the tag.
func PublicationDataFromTag(t *tlv.Tag) (*PublicationData, error) {
	f := scan(t, TypePublicationData, 0x02, 0x04)
	p := &PublicationData{tag: t}
	p.pubTime = f.uint(f.one(0x02))
	p.pubHash = f.imprint(f.one(0x04))
	if f.err != nil {
		return nil, f.err
	}
	return p, nil
}

// Tag returns the underlying TLV element.
func (p *PublicationData) Tag() *tlv.Tag {
	if p == nil {
		return nil
	}
	return p.tag
}

// PublicationTime returns the publication time.
func (p *PublicationData) PublicationTime() time.Time {
	if p == nil {
		return time.Time{}
	}
	return time.Unix(int64(p.pubTime), 0)
}

// PublishedHash returns the published hash.
func (p *PublicationData) PublishedHash() hash.Imprint {
	if p == nil {
		return nil
	}
	return p.pubHash
}

// Equal reports whether the publication data have the same time and hash.
func (p *PublicationData) Equal(o *PublicationData) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.pubTime == o.pubTime && hash.Equal(p.pubHash, o.pubHash)
}

// Base32 returns the publication string representation of the publication data (see PublicationDataFromString).
func (p *PublicationData) Base32() string {
	if p == nil {
		return ""
	}
	raw := make([]byte, 8, 8+len(p.pubHash)+4)
	binary.BigEndian.PutUint64(raw, p.pubTime)
	raw = append(raw, p.pubHash...)
	raw = append(raw, make([]byte, 4)...)
	binary.BigEndian.PutUint32(raw[len(raw)-4:], crc32.ChecksumIEEE(raw[:len(raw)-4]))
	return groupBase32(base32.StdEncoding.EncodeToString(raw), groupLimit)
}

const groupLimit = 6

func groupBase32(s string, l int) string {
	var b strings.Builder
	for i := 0; i < len(s); i += l {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + l
		if end > len(s) {
			end = len(s)
		}
		b.WriteString(s[i:end])
	}
	return b.String()
}

// String implements fmt.(Stringer) interface.
func (p *PublicationData) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Publication time: (")
	b.WriteString(strconv.FormatUint(p.pubTime, 10))
	b.WriteString(") ")
	b.WriteString(p.PublicationTime().UTC().String())
	b.WriteString("\n")
	b.WriteString("Published hash  : ")
	b.WriteString(p.pubHash.String())
	b.WriteString("\n")
	b.WriteString("Publication str : ")
	b.WriteString(p.Base32())
	b.WriteString("\n")
	return b.String()
}
