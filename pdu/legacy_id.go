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

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/tlv"
)

const (
	legacyIDRawLen  = 29
	legacyIDStrMax  = 25
	legacyIDHdrHigh = 0x03
	legacyIDHdrLow  = 0x00
	legacyIDStr     = 3
)

// LegacyID is a client identifier converted from a legacy signature. The raw structure is:
//  +------+------+---------+------------------+------------------+
//  |    Header   |  StrLen |    UTF8 string   |      Padding     |
//  +------+------+---------+------------------+------------------+
//  | 0x03 | 0x00 |    x    |        ...       |0x00{1..25-StrLen}|
//  +------+------+---------+------------------+------------------+
// For example, the name 'Test' is encoded as the sequence:
//  03 00 04 54=T 65=e 73=s 74=t 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00
type LegacyID struct {
	tag *tlv.Tag
	str string
}

// NewLegacyID returns a legacy ID for the client name of at most 25 octets.
func NewLegacyID(name string) (*LegacyID, error) {
	if len(name) > legacyIDStrMax {
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Legacy ID may contain at most %d octets.", legacyIDStrMax))
	}
	value := make([]byte, legacyIDRawLen)
	value[0], value[1], value[2] = legacyIDHdrHigh, legacyIDHdrLow, byte(len(name))
	copy(value[legacyIDStr:], name)
	return LegacyIDFromTag(tlv.NewRaw(0x03, value))
}

// LegacyIDFromTag returns the legacy ID projection of the tag.
func LegacyIDFromTag(t *tlv.Tag) (*LegacyID, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	value, err := t.Bytes()
	if err != nil {
		return nil, NewViolation(RuleValue, "legacy ID must be an octet string", t.Type)
	}
	if len(value) != legacyIDRawLen {
		return nil, NewViolation(RuleValue, "legacy ID data length mismatch", t.Type)
	}
	if value[0] != legacyIDHdrHigh || value[1] != legacyIDHdrLow {
		return nil, NewViolation(RuleValue, "legacy ID header mismatch", t.Type)
	}
	strLen := int(value[2])
	if strLen > legacyIDStrMax {
		return nil, NewViolation(RuleValue, "legacy ID string length mismatch", t.Type)
	}
	for _, b := range value[legacyIDStr+strLen:] {
		if b != 0 {
			return nil, NewViolation(RuleValue, "legacy ID padding mismatch", t.Type)
		}
	}
	return &LegacyID{tag: t, str: string(value[legacyIDStr : legacyIDStr+strLen])}, nil
}

// ClientID returns string representation of the legacy ID octet string.
func (l *LegacyID) ClientID() string {
	if l == nil {
		return ""
	}
	return l.str
}

// Bytes returns the raw structure.
func (l *LegacyID) Bytes() []byte {
	if l == nil {
		return nil
	}
	b, _ := l.tag.Bytes()
	return b
}

// Tag returns the underlying TLV element.
func (l *LegacyID) Tag() *tlv.Tag {
	if l == nil {
		return nil
	}
	return l.tag
}
