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

package tlv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"unicode/utf8"

	"github.com/guardtime/goksi-multisig/errors"
)

// Encode returns the binary encoding of the tag.
func (t *Tag) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Canonical returns the encoding of the tag with the shortest header form on every level. Structurally equal tags
// have equal canonical encodings.
func (t *Tag) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.encodeForm(&buf, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the binary encoding of the tag to w.
func (t *Tag) WriteTo(w io.Writer) (int64, error) {
	raw, err := t.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	if err != nil {
		return int64(n), errors.New(errors.KsiIoError).SetExtError(err)
	}
	return int64(n), nil
}

// EncodeAll returns the concatenated encoding of the tags.
func EncodeAll(tags ...*Tag) ([]byte, error) {
	var buf bytes.Buffer
	for _, t := range tags {
		if err := t.encode(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (t *Tag) encode(buf *bytes.Buffer) error {
	return t.encodeForm(buf, false)
}

func (t *Tag) encodeForm(buf *bytes.Buffer, canonical bool) error {
	if t == nil {
		return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Nil TLV.")
	}
	if t.Type > MaxTagValue {
		return errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV type 0x%x exceeds 0x%x.", t.Type, MaxTagValue))
	}

	value, err := t.encodeValue(canonical)
	if err != nil {
		return err
	}
	if len(value) > MaxValueLength {
		return errors.New(errors.KsiBufferOverflow).
			AppendMessage(fmt.Sprintf("TLV[0x%x] value length %d exceeds %d.", t.Type, len(value), MaxValueLength))
	}

	var first byte
	if t.NonCritical {
		first |= byte(HeaderFlagN)
	}
	if t.Forward {
		first |= byte(HeaderFlagF)
	}
	wide := t.Type > maxShortType || (t.wide && !canonical)
	if wide || len(value) > maxShortLength {
		first |= byte(HeaderFlag16) | byte(t.Type>>8)&byte(HeaderTypeMask)
		buf.Write([]byte{first, byte(t.Type), byte(len(value) >> 8), byte(len(value))})
	} else {
		buf.Write([]byte{first | byte(t.Type), byte(len(value))})
	}
	buf.Write(value)
	return nil
}

func (t *Tag) encodeValue(canonical bool) ([]byte, error) {
	switch v := t.Payload().(type) {
	case RawValue:
		return v, nil
	case StringValue:
		if !utf8.ValidString(string(v)) {
			return nil, errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("TLV[0x%x] string is not valid UTF-8.", t.Type))
		}
		return append([]byte(v), 0x00), nil
	case IntegerValue:
		return encodeUint(uint64(v)), nil
	case ImprintValue:
		if err := checkImprint(t.Type, v); err != nil {
			return nil, err
		}
		return v, nil
	case CompositeValue:
		var buf bytes.Buffer
		for _, c := range v {
			if err := c.encodeForm(&buf, canonical); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage(fmt.Sprintf("TLV[0x%x] has unsupported payload %T.", t.Type, v))
	}
}

// encodeUint returns the minimal big-endian representation of v. Zero is encoded as empty.
func encodeUint(v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return tmp[bits.LeadingZeros64(v)/8:]
}
