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

// MetaData is a sub-structure that provides the ability to incorporate client identity and other information about
// the request into the hash chain. It must contain the 'client identifier' field and may contain any combination
// of the 'machine identifier', 'sequence number', and 'request time' fields.
//
// The optional leading padding element exists solely to make the encoded content distinguishable from a sibling
// hash imprint (see (MetaData).ValidatePadding()).
type MetaData struct {
	tag        *tlv.Tag
	padding    *tlv.Tag
	clientID   string
	machineID  *string
	sequenceNr *uint64
	reqTime    *uint64
}

// MetaDataOptional is functional optional value setter.
type MetaDataOptional func(*metaDataFields)

type metaDataFields struct {
	machineID  *string
	sequenceNr *uint64
	reqTime    *uint64
}

// MetaDataMachineID is setter for the optional machine ID value.
func MetaDataMachineID(id string) MetaDataOptional {
	return func(m *metaDataFields) { m.machineID = &id }
}

// MetaDataSequenceNr is setter for the optional sequence number value.
func MetaDataSequenceNr(n uint64) MetaDataOptional {
	return func(m *metaDataFields) { m.sequenceNr = &n }
}

// MetaDataReqTime is setter for the optional request time value.
func MetaDataReqTime(t uint64) MetaDataOptional {
	return func(m *metaDataFields) { m.reqTime = &t }
}

// NewMetaData returns a new metadata instance with a padding element that keeps the content length even.
func NewMetaData(clientID string, optionals ...MetaDataOptional) (*MetaData, error) {
	var opt metaDataFields
	for _, setter := range optionals {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		setter(&opt)
	}

	children := []*tlv.Tag{tlv.NewString(0x01, clientID)}
	if opt.machineID != nil {
		children = append(children, tlv.NewString(0x02, *opt.machineID))
	}
	if opt.sequenceNr != nil {
		children = append(children, tlv.NewInteger(0x03, *opt.sequenceNr))
	}
	if opt.reqTime != nil {
		children = append(children, tlv.NewInteger(0x04, *opt.reqTime))
	}

	content, err := tlv.EncodeAll(children...)
	if err != nil {
		return nil, err
	}
	pad := []byte{0x01}
	if len(content)%2 == 0 {
		pad = []byte{0x01, 0x01}
	}
	padding := tlv.NewRaw(TypeMetaDataPadding, pad).WithFlags(true, true)

	return MetaDataFromTag(tlv.NewComposite(TypeMetaData, append([]*tlv.Tag{padding}, children...)...))
}

// MetaDataFromTag returns the metadata projection of the tag.
func MetaDataFromTag(t *tlv.Tag) (*MetaData, error) {
	f := scan(t, TypeMetaData, TypeMetaDataPadding, 0x01, 0x02, 0x03, 0x04)
	m := &MetaData{tag: t}
	m.padding = f.opt(TypeMetaDataPadding)
	m.clientID = f.text(f.one(0x01))
	if id := f.opt(0x02); id != nil {
		v := f.text(id)
		m.machineID = &v
	}
	if nr := f.opt(0x03); nr != nil {
		v := f.uint(nr)
		m.sequenceNr = &v
	}
	if rt := f.opt(0x04); rt != nil {
		v := f.uint(rt)
		m.reqTime = &v
	}
	if f.err != nil {
		return nil, f.err
	}
	return m, nil
}

// Tag returns the underlying TLV element.
func (m *MetaData) Tag() *tlv.Tag {
	if m == nil {
		return nil
	}
	return m.tag
}

// Content returns the encoded value part of the metadata element. This is the sibling data of the link.
func (m *MetaData) Content() ([]byte, error) {
	if m == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return tlv.EncodeAll(m.tag.Children()...)
}

// ClientID returns a (human-readable) textual representation of client identity.
func (m *MetaData) ClientID() string {
	if m == nil {
		return ""
	}
	return m.clientID
}

// MachineID returns a (human-readable) identifier of the machine that requested the link structure.
// If not present, an empty string is returned.
func (m *MetaData) MachineID() string {
	if m == nil || m.machineID == nil {
		return ""
	}
	return *m.machineID
}

// SequenceNr returns a local sequence number of a request assigned by the machine that created the link.
// If not present, 0 is returned.
func (m *MetaData) SequenceNr() uint64 {
	if m == nil || m.sequenceNr == nil {
		return 0
	}
	return *m.sequenceNr
}

// ReqTime returns the time when the server received the request from the client.
// If not present, 0 is returned.
func (m *MetaData) ReqTime() uint64 {
	if m == nil || m.reqTime == nil {
		return 0
	}
	return *m.reqTime
}

// HasPadding reports whether the metadata contains the padding element.
func (m *MetaData) HasPadding() bool {
	return m != nil && m.padding != nil
}

// ValidatePadding checks that the metadata content can not be misinterpreted as a hash imprint.
//
// With a padding element present, it must be the first element, have both the non-critical and forward flags set,
// contain 0x01 or 0x0101 and make the content length even. Without the padding element, the content must not be
// parseable as an imprint of a known algorithm.
func (m *MetaData) ValidatePadding() error {
	if m == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	content, err := m.Content()
	if err != nil {
		return err
	}

	if m.padding == nil {
		if len(content) > 0 {
			if size := hash.Algorithm(content[0]).Size(); size > 0 && len(content) == size+1 {
				return errors.New(errors.KsiInvalidFormatError).
					AppendMessage("Metadata without padding could be interpreted as an imprint.")
			}
		}
		return nil
	}

	if m.tag.Children()[0] != m.padding {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata padding is not the first element.")
	}
	if !m.padding.NonCritical || !m.padding.Forward {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata padding flags are not set.")
	}
	pad, err := m.padding.Bytes()
	if err != nil {
		return err
	}
	switch {
	case len(pad) == 1 && pad[0] == 0x01:
	case len(pad) == 2 && pad[0] == 0x01 && pad[1] == 0x01:
	default:
		return errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Metadata padding has invalid value: %x.", pad))
	}
	if len(content)%2 != 0 {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Metadata content length is not even.")
	}
	return nil
}

func (m *MetaData) String() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Client ID: ")
	b.WriteString(m.clientID)
	if m.machineID != nil {
		b.WriteString("; Machine ID: ")
		b.WriteString(*m.machineID)
	}
	if m.sequenceNr != nil {
		b.WriteString("; Sequence nr: ")
		b.WriteString(strconv.FormatUint(*m.sequenceNr, 10))
	}
	if m.reqTime != nil {
		b.WriteString("; Request time: ")
		b.WriteString(strconv.FormatUint(*m.reqTime, 10))
	}
	return b.String()
}
