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
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
)

type header struct {
	typ         uint16
	nonCritical bool
	forward     bool
	wide        bool
	length      int
	size        int
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < 2 {
		return header{}, truncated("Unable to read TLV header.")
	}
	h := header{
		nonCritical: b[0]&byte(HeaderFlagN) != 0,
		forward:     b[0]&byte(HeaderFlagF) != 0,
		typ:         uint16(b[0] & byte(HeaderTypeMask)),
	}
	if b[0]&byte(HeaderFlag16) == 0 {
		h.length = int(b[1])
		h.size = 2
		return h, nil
	}
	if len(b) < 4 {
		return header{}, truncated("Unable to read TLV16 header.")
	}
	h.wide = true
	h.typ = h.typ<<8 | uint16(b[1])
	h.length = int(b[2])<<8 | int(b[3])
	h.size = 4
	return h, nil
}

// IsConsistent reports whether raw holds exactly one complete tag, judged by its header.
func IsConsistent(raw []byte) bool {
	h, err := decodeHeader(raw)
	return err == nil && h.size+h.length == len(raw)
}

// IsSequence reports whether raw holds a concatenation of complete tags, judged by their headers.
func IsSequence(raw []byte) bool {
	for len(raw) > 0 {
		h, err := decodeHeader(raw)
		if err != nil || h.size+h.length > len(raw) {
			return false
		}
		raw = raw[h.size+h.length:]
	}
	return true
}

func truncated(msg string) *errors.KsiError {
	return errors.New(errors.KsiTlvTruncated).AppendMessage(msg)
}

// Parse decodes exactly one tag from raw, using the template to resolve payload variants. If the template is nil,
// the tag is decoded as raw. Trailing bytes after the tag are reported as KsiTlvTruncated.
func Parse(raw []byte, tmpl *Template) (*Tag, error) {
	t, n, err := decode(raw, tmpl)
	if err != nil {
		return nil, err
	}
	if n != len(raw) {
		return nil, truncated(fmt.Sprintf("Trailing %d bytes after TLV[0x%x].", len(raw)-n, t.Type))
	}
	if tmpl != nil && t.Type != tmpl.typ {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected TLV[0x%x], expected TLV[0x%x].", t.Type, tmpl.typ))
	}
	return t, nil
}

// ParseAll decodes a concatenation of tags. Top-level tags are resolved through the lookup; unknown critical tags
// are rejected and unknown non-critical tags are kept as raw.
func ParseAll(raw []byte, lookup Lookup) ([]*Tag, error) {
	var tags []*Tag
	for len(raw) > 0 {
		h, err := decodeHeader(raw)
		if err != nil {
			return nil, err
		}
		tmpl, err := resolve(h, lookup[h.typ], "stream")
		if err != nil {
			return nil, err
		}
		t, n, err := decode(raw, tmpl)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
		raw = raw[n:]
	}
	return tags, nil
}

func resolve(h header, tmpl *Template, parent string) (*Template, error) {
	if tmpl != nil || h.nonCritical {
		return tmpl, nil
	}
	return nil, errors.New(errors.KsiTlvUnknownCritical).
		AppendMessage(fmt.Sprintf("Unknown critical TLV[0x%x] in %s.", h.typ, parent))
}

func decode(b []byte, tmpl *Template) (*Tag, int, error) {
	h, err := decodeHeader(b)
	if err != nil {
		return nil, 0, err
	}
	end := h.size + h.length
	if len(b) < end {
		return nil, 0, truncated(fmt.Sprintf("TLV[0x%x] declares %d value bytes, only %d available.",
			h.typ, h.length, len(b)-h.size))
	}

	t := &Tag{
		Type:        h.typ,
		NonCritical: h.nonCritical,
		Forward:     h.forward,
		wide:        h.wide,
	}
	t.payload, err = decodeValue(h.typ, b[h.size:end], tmpl)
	if err != nil {
		return nil, 0, err
	}
	return t, end, nil
}

func decodeValue(typ uint16, value []byte, tmpl *Template) (Payload, error) {
	switch tmpl.Kind() {
	case KindString:
		return decodeString(typ, value)
	case KindInteger:
		return decodeUint(typ, value)
	case KindImprint:
		if err := checkImprint(typ, value); err != nil {
			return nil, err
		}
		return append(ImprintValue(nil), value...), nil
	case KindComposite:
		return decodeComposite(typ, value, tmpl)
	default:
		return append(RawValue{}, value...), nil
	}
}

func decodeComposite(typ uint16, value []byte, tmpl *Template) (Payload, error) {
	children := CompositeValue{}
	for len(value) > 0 {
		h, err := decodeHeader(value)
		if err != nil {
			return nil, err
		}
		ct, err := resolve(h, tmpl.Child(h.typ), fmt.Sprintf("TLV[0x%x]", typ))
		if err != nil {
			return nil, err
		}
		c, n, err := decode(value, ct)
		if err != nil {
			return nil, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Failed to decode TLV[0x%x].", typ))
		}
		children = append(children, c)
		value = value[n:]
	}
	return children, nil
}

func decodeString(typ uint16, value []byte) (Payload, error) {
	if len(value) == 0 || value[len(value)-1] != 0x00 {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV[0x%x] string is not NUL terminated.", typ))
	}
	s := value[:len(value)-1]
	if !utf8.Valid(s) {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV[0x%x] string is not valid UTF-8.", typ))
	}
	return StringValue(s), nil
}

func decodeUint(typ uint16, value []byte) (Payload, error) {
	if len(value) > 8 {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV[0x%x] integer is longer than 8 bytes.", typ))
	}
	if len(value) > 0 && value[0] == 0x00 {
		return nil, errors.New(errors.KsiTlvNonMinimalInteger).
			AppendMessage(fmt.Sprintf("TLV[0x%x] integer has leading zero bytes.", typ))
	}
	var v uint64
	for _, b := range value {
		v = v<<8 | uint64(b)
	}
	if v > math.MaxInt64 {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("TLV[0x%x] integer exceeds 2^63-1.", typ))
	}
	return IntegerValue(v), nil
}

func checkImprint(typ uint16, value []byte) error {
	if !hash.Imprint(value).IsValid() {
		return errors.New(errors.KsiTlvInvalidImprint).
			AppendMessage(fmt.Sprintf("TLV[0x%x] imprint length does not match its algorithm.", typ))
	}
	return nil
}

// Reader decodes consecutive tags from a byte stream. The Reader does not buffer: only the bytes of the returned
// tags are consumed from the underlying reader, so it can be interleaved with other reads.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next decodes the next tag. Top-level tags are resolved through the lookup. Returns io.EOF if the stream ends
// cleanly between tags, and KsiTlvTruncated if it ends inside a tag.
func (r *Reader) Next(lookup Lookup) (*Tag, error) {
	if r == nil || r.r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var hdr [4]byte
	if n, err := io.ReadFull(r.r, hdr[:1]); err != nil {
		if err == io.EOF && n == 0 {
			return nil, io.EOF
		}
		return nil, r.readErr(err, "Unable to read TLV header.")
	}
	hdrLen := 2
	if hdr[0]&byte(HeaderFlag16) != 0 {
		hdrLen = 4
	}
	if _, err := io.ReadFull(r.r, hdr[1:hdrLen]); err != nil {
		return nil, r.readErr(err, "Unable to read TLV header.")
	}
	h, err := decodeHeader(hdr[:hdrLen])
	if err != nil {
		return nil, err
	}
	tmpl, err := resolve(h, lookup[h.typ], "stream")
	if err != nil {
		return nil, err
	}

	raw := make([]byte, h.size+h.length)
	copy(raw, hdr[:hdrLen])
	if _, err := io.ReadFull(r.r, raw[hdrLen:]); err != nil {
		return nil, r.readErr(err, fmt.Sprintf("Unable to read TLV[0x%x] value.", h.typ))
	}
	t, _, err := decode(raw, tmpl)
	return t, err
}

func (r *Reader) readErr(err error, msg string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return truncated(msg)
	}
	return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage(msg)
}
