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
	"strings"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/tlv"
)

// PublicationRec represents the information related to a published hash value, possibly including the publication
// reference. Publication may also point (via a URI) to a hash database that is in electronic form and may contain
// several published hash values.
//
// The same record structure is used inside a signature (type 0x803) and inside a publications file (type 0x703).
type PublicationRec struct {
	tag     *tlv.Tag
	pubData *PublicationData
	pubRef  []string
	repURI  []string
}

// PublicationRecOptional is an optional functional parameter to be set while publication record construction.
type PublicationRecOptional func(*publicationRecFields)

type publicationRecFields struct {
	pubRef []string
	repURI []string
}

// PubRecOptPublicationRef sets the bibliographic references to media outlets where the publication appeared.
func PubRecOptPublicationRef(pubRef ...string) PublicationRecOptional {
	return func(f *publicationRecFields) { f.pubRef = append(f.pubRef, pubRef...) }
}

// PubRecOptPublicationRepURI sets the URIs of publication repositories.
func PubRecOptPublicationRepURI(repURI ...string) PublicationRecOptional {
	return func(f *publicationRecFields) { f.repURI = append(f.repURI, repURI...) }
}

// NewPublicationRec returns a signature publication record (type 0x803).
func NewPublicationRec(pubData *PublicationData, optionals ...PublicationRecOptional) (*PublicationRec, error) {
	return newPublicationRec(TypePublicationRec, pubData, optionals...)
}

func newPublicationRec(typ uint16, pubData *PublicationData, optionals ...PublicationRecOptional) (*PublicationRec, error) {
	if pubData == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing publication data.")
	}
	var opt publicationRecFields
	for _, setter := range optionals {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		setter(&opt)
	}

	children := []*tlv.Tag{pubData.tag.Clone()}
	for _, r := range opt.pubRef {
		children = append(children, tlv.NewString(0x09, r))
	}
	for _, u := range opt.repURI {
		children = append(children, tlv.NewString(0x0a, u))
	}
	return publicationRecFromTag(typ, tlv.NewComposite(typ, children...))
}

// PublicationRecFromTag returns the signature publication record projection of the tag.
func PublicationRecFromTag(t *tlv.Tag) (*PublicationRec, error) {
	return publicationRecFromTag(TypePublicationRec, t)
}

// FilePublicationRecFromTag returns the publications file publication record projection of the tag.
func FilePublicationRecFromTag(t *tlv.Tag) (*PublicationRec, error) {
	return publicationRecFromTag(TypeFilePublicationRec, t)
}

func publicationRecFromTag(typ uint16, t *tlv.Tag) (*PublicationRec, error) {
	f := scan(t, typ, TypePublicationData, 0x09, 0x0a)
	r := &PublicationRec{tag: t}
	f.sub(f.one(TypePublicationData), func(e *tlv.Tag) (err error) {
		r.pubData, err = PublicationDataFromTag(e)
		return err
	})
	r.pubRef = f.strings(0x09)
	r.repURI = f.strings(0x0a)
	if f.err != nil {
		return nil, f.err
	}
	return r, nil
}

// WithType returns a copy of the record retyped as a signature (0x803) or publications file (0x703) record.
func (p *PublicationRec) WithType(typ uint16) (*PublicationRec, error) {
	if p == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if typ != TypePublicationRec && typ != TypeFilePublicationRec {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Not a publication record type.")
	}
	tmp := p.tag.Clone()
	tmp.Type = typ
	return publicationRecFromTag(typ, tmp)
}

// Tag returns the underlying TLV element.
func (p *PublicationRec) Tag() *tlv.Tag {
	if p == nil {
		return nil
	}
	return p.tag
}

// PublicationData returns the published data.
func (p *PublicationRec) PublicationData() *PublicationData {
	if p == nil {
		return nil
	}
	return p.pubData
}

// PublicationRef returns the bibliographic references to media outlets where the publication appeared.
func (p *PublicationRec) PublicationRef() []string {
	if p == nil {
		return nil
	}
	return p.pubRef
}

// PublicationRepURI returns URIs of the publication repositories (publications file).
func (p *PublicationRec) PublicationRepURI() []string {
	if p == nil {
		return nil
	}
	return p.repURI
}

// NearestPublicationRecord returns the record itself if it was published at or after t, or nil otherwise.
func (p *PublicationRec) NearestPublicationRecord(t time.Time) (*PublicationRec, error) {
	if p == nil || p.pubData == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if p.pubData.PublicationTime().Before(t) {
		return nil, nil
	}
	return p, nil
}

// String implements fmt.(Stringer) interface.
func (p *PublicationRec) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.pubData.String())
	for _, r := range p.pubRef {
		b.WriteString("Reference       : ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	for _, u := range p.repURI {
		b.WriteString("Repository URI  : ")
		b.WriteString(u)
		b.WriteString("\n")
	}
	return b.String()
}
