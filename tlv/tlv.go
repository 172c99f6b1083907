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

// Package tlv implements the KSI type-length-value codec.
//
// A Tag is the universal node of every KSI structure. Its payload is exactly one of the closed set of variants
// RawValue, StringValue, IntegerValue, ImprintValue or CompositeValue. Which variant a decoded tag receives is
// decided by a Template, a declarative schema of the expected tag tree (see Parse and Reader).
//
// Re-encoding a decoded tag without modification reproduces the original bytes, including the header form.
package tlv

import (
	"fmt"
	"strings"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
)

// HeaderMask holds mask values for different bits in TLV header.
type HeaderMask byte

const (
	// HeaderFlag16 is mask for 16bit flag.
	HeaderFlag16 = HeaderMask(0x80)
	// HeaderFlagN is mask for Non-Critical flag.
	HeaderFlagN = HeaderMask(0x40)
	// HeaderFlagF is mask for Forward Unknown flag.
	HeaderFlagF = HeaderMask(0x20)
	// HeaderTypeMask is mask for type in the first header byte.
	HeaderTypeMask = HeaderMask(0x1f)
)

const (
	// MaxValueLength is the maximum size of the TLV value.
	MaxValueLength = 0xffff
	// MaxTagValue is the maximum TLV type value.
	MaxTagValue = 0x1fff

	maxShortLength = 0xff
	maxShortType   = 0x1f
)

// Kind identifies the payload variant of a Tag.
type Kind byte

const (
	// KindRaw is an opaque byte sequence.
	KindRaw Kind = iota
	// KindString is a NUL terminated UTF-8 string.
	KindString
	// KindInteger is an unsigned integer in minimal big-endian encoding.
	KindInteger
	// KindImprint is a hash imprint.
	KindImprint
	// KindComposite is an ordered sequence of nested tags.
	KindComposite
)

var kindNames = [...]string{"raw", "string", "integer", "imprint", "composite"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Payload is the value of a Tag. The set of implementations is closed.
type Payload interface {
	Kind() Kind
	equal(Payload) bool
	clone() Payload
}

type (
	// RawValue is the payload of a tag without known semantics.
	RawValue []byte
	// StringValue is the payload of a string tag.
	StringValue string
	// IntegerValue is the payload of an integer tag.
	IntegerValue uint64
	// ImprintValue is the payload of an imprint tag.
	ImprintValue hash.Imprint
	// CompositeValue is the payload of a tag with nested tags.
	CompositeValue []*Tag
)

// Kind implements Payload interface.
func (RawValue) Kind() Kind { return KindRaw }

// Kind implements Payload interface.
func (StringValue) Kind() Kind { return KindString }

// Kind implements Payload interface.
func (IntegerValue) Kind() Kind { return KindInteger }

// Kind implements Payload interface.
func (ImprintValue) Kind() Kind { return KindImprint }

// Kind implements Payload interface.
func (CompositeValue) Kind() Kind { return KindComposite }

func (v RawValue) equal(o Payload) bool {
	r, ok := o.(RawValue)
	return ok && string(v) == string(r)
}

func (v StringValue) equal(o Payload) bool {
	r, ok := o.(StringValue)
	return ok && v == r
}

func (v IntegerValue) equal(o Payload) bool {
	r, ok := o.(IntegerValue)
	return ok && v == r
}

func (v ImprintValue) equal(o Payload) bool {
	r, ok := o.(ImprintValue)
	return ok && string(v) == string(r)
}

func (v CompositeValue) equal(o Payload) bool {
	r, ok := o.(CompositeValue)
	if !ok || len(v) != len(r) {
		return false
	}
	for i := range v {
		if !Equal(v[i], r[i]) {
			return false
		}
	}
	return true
}

func (v RawValue) clone() Payload     { return append(RawValue(nil), v...) }
func (v StringValue) clone() Payload  { return v }
func (v IntegerValue) clone() Payload { return v }
func (v ImprintValue) clone() Payload { return append(ImprintValue(nil), v...) }

func (v CompositeValue) clone() Payload {
	tmp := make(CompositeValue, len(v))
	for i, c := range v {
		tmp[i] = c.Clone()
	}
	return tmp
}

// Tag is a single TLV element.
type Tag struct {
	// Type is the TLV type, at most MaxTagValue.
	Type uint16
	// NonCritical marks a tag that may be ignored by a reader that does not know it.
	NonCritical bool
	// Forward marks a non-critical tag that should be forwarded by a reader that does not know it.
	Forward bool

	payload Payload
	wide    bool
}

func newTag(typ uint16, p Payload) *Tag {
	return &Tag{Type: typ, payload: p}
}

// NewRaw returns a tag with an opaque payload.
func NewRaw(typ uint16, b []byte) *Tag {
	return newTag(typ, append(RawValue{}, b...))
}

// NewString returns a string tag.
func NewString(typ uint16, s string) *Tag {
	return newTag(typ, StringValue(s))
}

// NewInteger returns an integer tag.
func NewInteger(typ uint16, v uint64) *Tag {
	return newTag(typ, IntegerValue(v))
}

// NewImprint returns an imprint tag.
func NewImprint(typ uint16, imp hash.Imprint) *Tag {
	return newTag(typ, ImprintValue(imp.Clone()))
}

// NewComposite returns a tag holding the given nested tags. Nil children are skipped.
func NewComposite(typ uint16, children ...*Tag) *Tag {
	tmp := make(CompositeValue, 0, len(children))
	for _, c := range children {
		if c != nil {
			tmp = append(tmp, c)
		}
	}
	return newTag(typ, tmp)
}

// WithFlags sets the non-critical and forward flags. Returns the receiver.
func (t *Tag) WithFlags(nonCritical, forward bool) *Tag {
	if t != nil {
		t.NonCritical = nonCritical
		t.Forward = forward
	}
	return t
}

// Payload returns the payload variant of the tag. Use a type switch to access the value.
func (t *Tag) Payload() Payload {
	if t == nil || t.payload == nil {
		return RawValue(nil)
	}
	return t.payload
}

// Kind returns the payload variant identifier.
func (t *Tag) Kind() Kind {
	return t.Payload().Kind()
}

// Is16 reports whether the tag is encoded with the 16bit header.
func (t *Tag) Is16() bool {
	if t == nil {
		return false
	}
	return t.wide || t.Type > maxShortType
}

func (t *Tag) kindError(expected Kind) *errors.KsiError {
	return errors.New(errors.KsiInvalidFormatError).
		AppendMessage(fmt.Sprintf("TLV[0x%x] is %s, expected %s.", t.Type, t.Kind(), expected))
}

// Bytes returns the raw payload.
func (t *Tag) Bytes() ([]byte, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	v, ok := t.payload.(RawValue)
	if !ok {
		return nil, t.kindError(KindRaw)
	}
	return v, nil
}

// Text returns the string payload.
func (t *Tag) Text() (string, error) {
	if t == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	v, ok := t.payload.(StringValue)
	if !ok {
		return "", t.kindError(KindString)
	}
	return string(v), nil
}

// Uint64 returns the integer payload.
func (t *Tag) Uint64() (uint64, error) {
	if t == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	v, ok := t.payload.(IntegerValue)
	if !ok {
		return 0, t.kindError(KindInteger)
	}
	return uint64(v), nil
}

// Imprint returns the imprint payload.
func (t *Tag) Imprint() (hash.Imprint, error) {
	if t == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	v, ok := t.payload.(ImprintValue)
	if !ok {
		return nil, t.kindError(KindImprint)
	}
	return hash.Imprint(v), nil
}

// Children returns the nested tags, or nil if the tag is not composite.
func (t *Tag) Children() []*Tag {
	if t == nil {
		return nil
	}
	v, _ := t.payload.(CompositeValue)
	return v
}

// Child returns the first nested tag of the given type, or nil.
func (t *Tag) Child(typ uint16) *Tag {
	for _, c := range t.Children() {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// ChildrenOf returns all nested tags of the given type.
func (t *Tag) ChildrenOf(typ uint16) []*Tag {
	var tmp []*Tag
	for _, c := range t.Children() {
		if c.Type == typ {
			tmp = append(tmp, c)
		}
	}
	return tmp
}

// Clone returns a deep copy of the tag.
func (t *Tag) Clone() *Tag {
	if t == nil {
		return nil
	}
	tmp := *t
	if t.payload != nil {
		tmp.payload = t.payload.clone()
	}
	return &tmp
}

// Equal reports whether the two tags have the same type, flags and payload. The header form is ignored.
func Equal(l, r *Tag) bool {
	if l == nil || r == nil {
		return l == r
	}
	return l.Type == r.Type &&
		l.NonCritical == r.NonCritical &&
		l.Forward == r.Forward &&
		l.Payload().equal(r.Payload())
}

// String implements Stringer interface.
func (t *Tag) String() string {
	var b strings.Builder
	t.dump(&b, 0)
	return b.String()
}

func (t *Tag) dump(b *strings.Builder, depth int) {
	if t == nil {
		return
	}
	var flags []string
	if t.NonCritical {
		flags = append(flags, "N")
	}
	if t.Forward {
		flags = append(flags, "F")
	}
	b.WriteString(strings.Repeat("  ", depth))
	if len(flags) > 0 {
		fmt.Fprintf(b, "TLV[0x%x,%s]: ", t.Type, strings.Join(flags, ","))
	} else {
		fmt.Fprintf(b, "TLV[0x%x]: ", t.Type)
	}

	switch v := t.Payload().(type) {
	case CompositeValue:
		b.WriteString("\n")
		for _, c := range v {
			c.dump(b, depth+1)
		}
		return
	case StringValue:
		fmt.Fprintf(b, "%q", string(v))
	case IntegerValue:
		fmt.Fprintf(b, "%d", uint64(v))
	case ImprintValue:
		b.WriteString(hash.Imprint(v).String())
	case RawValue:
		fmt.Fprintf(b, "%x", []byte(v))
	}
	b.WriteString("\n")
}
