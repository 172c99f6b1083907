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
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/tlv"
)

// PublicationsHeader is the publications file header.
type PublicationsHeader struct {
	tag     *tlv.Tag
	version uint64
	created uint64
	repURI  string
}

// NewPublicationsHeader returns a publications file header. The repository URI is optional.
func NewPublicationsHeader(version uint64, created time.Time, repURI string) (*PublicationsHeader, error) {
	if created.IsZero() || created.Unix() < 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid creation time.")
	}
	children := []*tlv.Tag{
		tlv.NewInteger(0x01, version),
		tlv.NewInteger(0x02, uint64(created.Unix())),
	}
	if repURI != "" {
		children = append(children, tlv.NewString(0x03, repURI))
	}
	return PublicationsHeaderFromTag(tlv.NewComposite(TypePublicationsHeader, children...))
}

// PublicationsHeaderFromTag returns the publications file header projection of the tag.
func PublicationsHeaderFromTag(t *tlv.Tag) (*PublicationsHeader, error) {
	f := scan(t, TypePublicationsHeader, 0x01, 0x02, 0x03)
	h := &PublicationsHeader{tag: t}
	h.version = f.uint(f.one(0x01))
	h.created = f.uint(f.one(0x02))
	h.repURI = f.text(f.opt(0x03))
	if f.err != nil {
		return nil, f.err
	}
	return h, nil
}

// Tag returns the underlying TLV element.
func (h *PublicationsHeader) Tag() *tlv.Tag {
	if h == nil {
		return nil
	}
	return h.tag
}

// Version returns the file format version.
func (h *PublicationsHeader) Version() uint64 {
	if h == nil {
		return 0
	}
	return h.version
}

// CreationTime returns the file creation time.
func (h *PublicationsHeader) CreationTime() time.Time {
	if h == nil {
		return time.Time{}
	}
	return time.Unix(int64(h.created), 0)
}

// RepositoryURI returns the file repository URI, empty if not present.
func (h *PublicationsHeader) RepositoryURI() string {
	if h == nil {
		return ""
	}
	return h.repURI
}

// String implements fmt.(Stringer) interface.
func (h *PublicationsHeader) String() string {
	if h == nil {
		return ""
	}
	return fmt.Sprintf("Version: %d\nCreated: %s\nRepository URI: %s\n",
		h.version, h.CreationTime().UTC().Format(time.RFC3339), h.repURI)
}
