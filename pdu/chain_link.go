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
	"fmt"
	"strconv"
	"strings"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/tlv"
)

// ChainLink is a hash chain step. In an aggregation chain the sibling data is exactly one of a sibling hash,
// a legacy ID or a metadata structure, and the link may carry a level correction. In a calendar chain the sibling
// data is always a hash.
type ChainLink struct {
	tag         *tlv.Tag
	isLeft      bool
	isCalendar  bool
	levelCorr   uint64
	siblingHash hash.Imprint
	legacyID    *LegacyID
	metadata    *MetaData
}

// LinkSibling provides the sibling data element of an aggregation chain link.
type LinkSibling func() (*tlv.Tag, error)

// LinkSiblingHash sets the sibling hash.
func LinkSiblingHash(h hash.Imprint) LinkSibling {
	return func() (*tlv.Tag, error) {
		if !h.IsValid() {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid sibling hash.")
		}
		return tlv.NewImprint(0x02, h), nil
	}
}

// LinkSiblingLegacyID sets the legacy client identifier.
func LinkSiblingLegacyID(id *LegacyID) LinkSibling {
	return func() (*tlv.Tag, error) {
		if id == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError)
		}
		return id.Tag().Clone(), nil
	}
}

// LinkSiblingMetaData sets the metadata structure.
func LinkSiblingMetaData(md *MetaData) LinkSibling {
	return func() (*tlv.Tag, error) {
		if md == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError)
		}
		return md.Tag().Clone(), nil
	}
}

func linkType(isLeft bool) uint16 {
	if isLeft {
		return TypeLinkLeft
	}
	return TypeLinkRight
}

// NewChainLink returns an aggregation chain link.
func NewChainLink(isLeft bool, levelCorr byte, sibling LinkSibling) (*ChainLink, error) {
	if sibling == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	data, err := sibling()
	if err != nil {
		return nil, err
	}
	var lc *tlv.Tag
	if levelCorr != 0 {
		lc = tlv.NewInteger(0x01, uint64(levelCorr))
	}
	return ChainLinkFromTag(tlv.NewComposite(linkType(isLeft), lc, data))
}

// NewCalendarLink returns a calendar chain link.
func NewCalendarLink(isLeft bool, h hash.Imprint) (*ChainLink, error) {
	return CalendarLinkFromTag(tlv.NewImprint(linkType(isLeft), h))
}

func checkLinkType(t *tlv.Tag) error {
	if t == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if t.Type != TypeLinkLeft && t.Type != TypeLinkRight {
		return NewViolation(RuleValue, "element is not a chain link", t.Type)
	}
	return nil
}

// ChainLinkFromTag returns the aggregation chain link projection of the tag.
func ChainLinkFromTag(t *tlv.Tag) (*ChainLink, error) {
	if err := checkLinkType(t); err != nil {
		return nil, err
	}
	f := scan(t, t.Type, 0x01, 0x02, 0x03, TypeMetaData)
	l := &ChainLink{tag: t, isLeft: t.Type == TypeLinkLeft}
	l.levelCorr = f.uintMax(f.opt(0x01), 0xff)

	sibling, legacy, md := f.opt(0x02), f.opt(0x03), f.opt(TypeMetaData)
	if f.err == nil {
		var count int
		for _, e := range []*tlv.Tag{sibling, legacy, md} {
			if e != nil {
				count++
			}
		}
		if count != 1 {
			f.fail(RuleExclusive, "exactly one of sibling hash, legacy ID or metadata is required", 0x02)
		}
	}
	l.siblingHash = f.imprint(sibling)
	f.sub(legacy, func(e *tlv.Tag) (err error) {
		l.legacyID, err = LegacyIDFromTag(e)
		return err
	})
	f.sub(md, func(e *tlv.Tag) (err error) {
		l.metadata, err = MetaDataFromTag(e)
		return err
	})
	if f.err != nil {
		return nil, f.err
	}
	return l, nil
}

// CalendarLinkFromTag returns the calendar chain link projection of the tag.
func CalendarLinkFromTag(t *tlv.Tag) (*ChainLink, error) {
	if err := checkLinkType(t); err != nil {
		return nil, err
	}
	imp, err := t.Imprint()
	if err != nil || !imp.IsValid() {
		return nil, NewViolation(RuleValue, "calendar link must be a valid imprint", t.Type)
	}
	return &ChainLink{tag: t, isLeft: t.Type == TypeLinkLeft, isCalendar: true, siblingHash: imp}, nil
}

// Tag returns the underlying TLV element.
func (l *ChainLink) Tag() *tlv.Tag {
	if l == nil {
		return nil
	}
	return l.tag
}

// IsLeft reports whether the link is a left link, i.e. the running hash is the left operand of the step.
func (l *ChainLink) IsLeft() bool {
	return l != nil && l.isLeft
}

// LevelCorrection returns the level correction, 0 if not present.
func (l *ChainLink) LevelCorrection() uint64 {
	if l == nil {
		return 0
	}
	return l.levelCorr
}

// SiblingHash returns the sibling hash, or nil if the sibling data is not a hash.
func (l *ChainLink) SiblingHash() hash.Imprint {
	if l == nil {
		return nil
	}
	return l.siblingHash
}

// LegacyID returns the legacy ID, or nil if not present.
func (l *ChainLink) LegacyID() *LegacyID {
	if l == nil {
		return nil
	}
	return l.legacyID
}

// MetaData returns the metadata, or nil if not present.
func (l *ChainLink) MetaData() *MetaData {
	if l == nil {
		return nil
	}
	return l.metadata
}

// siblingData returns the octets the link contributes to the step hash.
func (l *ChainLink) siblingData() ([]byte, error) {
	switch {
	case l.siblingHash != nil:
		return l.siblingHash, nil
	case l.legacyID != nil:
		return l.legacyID.Bytes(), nil
	case l.metadata != nil:
		return l.metadata.Content()
	default:
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Chain link is missing sibling data.")
	}
}

// Identity returns the link identity, or nil if the link does not carry one.
func (l *ChainLink) Identity() *HashChainLinkIdentity {
	switch {
	case l == nil:
		return nil
	case l.legacyID != nil:
		return &HashChainLinkIdentity{idType: IdentityTypeLegacyID, clientID: l.legacyID.ClientID()}
	case l.metadata != nil:
		return &HashChainLinkIdentity{
			idType:      IdentityTypeMetadata,
			clientID:    l.metadata.ClientID(),
			machineID:   l.metadata.MachineID(),
			sequenceNr:  l.metadata.SequenceNr(),
			requestTime: l.metadata.ReqTime(),
		}
	default:
		return nil
	}
}

// String implements Stringer interface.
func (l *ChainLink) String() string {
	if l == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Link: ")
	if l.isLeft {
		b.WriteString("L, ")
	} else {
		b.WriteString("R, ")
	}
	if l.levelCorr != 0 {
		b.WriteString("LevelCorr: ")
		b.WriteString(strconv.FormatUint(l.levelCorr, 10))
		b.WriteString(", ")
	}
	if l.siblingHash != nil {
		b.WriteString("Sibling: ")
		b.WriteString(l.siblingHash.String())
	} else if id := l.Identity(); id != nil {
		b.WriteString("Identity: ")
		b.WriteString(id.String())
	}
	return b.String()
}

// ChainLinkList is alias for '[]*ChainLink'.
type ChainLinkList []*ChainLink

// String implements Stringer interface.
func (l ChainLinkList) String() string {
	var b strings.Builder
	for _, link := range l {
		b.WriteString(link.String())
		b.WriteString("\n")
	}
	return b.String()
}

func (l ChainLinkList) tags() []*tlv.Tag {
	tmp := make([]*tlv.Tag, len(l))
	for i, link := range l {
		tmp[i] = link.tag
	}
	return tmp
}

// aggregate folds the links over the input hash. For aggregation chains every step hashes
// left||right||level with the chain algorithm, where the level is advanced by the link level correction plus one.
// For calendar chains the level is always 0xff and the algorithm follows the sibling hash of every left link.
func (l ChainLinkList) aggregate(isCalendar bool, algorithm hash.Algorithm,
	inputHash hash.Imprint, startLevel byte) (hash.Imprint, byte, error) {

	if !inputHash.IsValid() {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid chain input hash.")
	}
	if isCalendar {
		algorithm = inputHash.Algorithm()
	}

	var (
		level = uint64(startLevel)
		hsh   = inputHash
	)
	for i, link := range l {
		if isCalendar {
			if link.isLeft {
				algorithm = link.siblingHash.Algorithm()
			}
		} else {
			level += link.levelCorr + 1
			if level > 0xff {
				return nil, 0, errors.New(errors.KsiInvalidFormatError).
					AppendMessage(fmt.Sprintf("Aggregation chain level out of range at link %d.", i))
			}
		}

		sibling, err := link.siblingData()
		if err != nil {
			return nil, 0, err
		}
		if link.isLeft {
			hsh, err = algorithm.Digest(hsh, sibling, []byte{byte(level)})
		} else {
			hsh, err = algorithm.Digest(sibling, hsh, []byte{byte(level)})
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return hsh, byte(level), nil
}
