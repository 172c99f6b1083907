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

// Package pdu defines the KSI data structures and provides their manipulation methods.
//
// Every structure is a typed projection over a tlv.Tag: the projection is validated once at construction by scanning
// the children of the tag, and keeps the tag for re-encoding. Structures are immutable; modifications produce new
// instances.
package pdu

import (
	"github.com/guardtime/goksi-multisig/tlv"
)

// KSI signature element types.
const (
	TypeSignature        uint16 = 0x800
	TypeAggregationChain uint16 = 0x801
	TypeCalendarChain    uint16 = 0x802
	TypePublicationRec   uint16 = 0x803
	TypeCalendarAuthRec  uint16 = 0x805
	TypeRFC3161          uint16 = 0x806

	TypePublicationData uint16 = 0x10
	TypeSignatureData   uint16 = 0x0b

	TypeLinkLeft  uint16 = 0x07
	TypeLinkRight uint16 = 0x08

	TypeMetaData        uint16 = 0x04
	TypeMetaDataPadding uint16 = 0x1e
)

// Publications file element types.
const (
	TypePublicationsFile   uint16 = 0x700
	TypePublicationsHeader uint16 = 0x701
	TypeCertificateRec     uint16 = 0x702
	TypeFilePublicationRec uint16 = 0x703
	TypeFileSignature      uint16 = 0x704
)

// Extender protocol element types.
const (
	TypeExtenderReq  uint16 = 0x320
	TypeExtenderResp uint16 = 0x321
	TypeHeader       uint16 = 0x01
	TypeExtReq       uint16 = 0x02
	TypeExtResp      uint16 = 0x02
	TypeError        uint16 = 0x03
	TypeConfig       uint16 = 0x04
	TypeMac          uint16 = 0x1f
)

func integer(typ uint16) *tlv.Template { return tlv.NewTemplate(typ, tlv.KindInteger) }
func text(typ uint16) *tlv.Template { return tlv.NewTemplate(typ, tlv.KindString) }
func imprint(typ uint16) *tlv.Template { return tlv.NewTemplate(typ, tlv.KindImprint) }
func raw(typ uint16) *tlv.Template { return tlv.NewTemplate(typ, tlv.KindRaw) }

var (
	metaDataTemplate = tlv.Composite(TypeMetaData,
		raw(TypeMetaDataPadding),
		text(0x01),
		text(0x02),
		integer(0x03),
		integer(0x04),
	)

	aggrLinkTemplate = func(typ uint16) *tlv.Template {
		return tlv.Composite(typ,
			integer(0x01),
			imprint(0x02),
			raw(0x03),
			metaDataTemplate,
		)
	}

	// AggregationChainTemplate describes the aggregation hash chain.
	AggregationChainTemplate = tlv.Composite(TypeAggregationChain,
		integer(0x02),
		integer(0x03),
		raw(0x04),
		imprint(0x05),
		integer(0x06),
		aggrLinkTemplate(TypeLinkLeft),
		aggrLinkTemplate(TypeLinkRight),
	)

	// CalendarChainTemplate describes the calendar hash chain.
	CalendarChainTemplate = tlv.Composite(TypeCalendarChain,
		integer(0x01),
		integer(0x02),
		imprint(0x05),
		imprint(TypeLinkLeft),
		imprint(TypeLinkRight),
	)

	publicationDataTemplate = tlv.Composite(TypePublicationData,
		integer(0x02),
		imprint(0x04),
	)

	publicationRecTemplate = func(typ uint16) *tlv.Template {
		return tlv.Composite(typ,
			publicationDataTemplate,
			text(0x09),
			text(0x0a),
		)
	}

	// PublicationRecTemplate describes the signature publication record.
	PublicationRecTemplate = publicationRecTemplate(TypePublicationRec)

	signatureDataTemplate = tlv.Composite(TypeSignatureData,
		text(0x01),
		raw(0x02),
		raw(0x03),
		text(0x04),
	)

	// CalendarAuthRecTemplate describes the calendar authentication record.
	CalendarAuthRecTemplate = tlv.Composite(TypeCalendarAuthRec,
		publicationDataTemplate,
		signatureDataTemplate,
	)

	// RFC3161Template describes the RFC3161 compatibility record.
	RFC3161Template = tlv.Composite(TypeRFC3161,
		integer(0x02),
		integer(0x03),
		raw(0x04),
		imprint(0x05),
		raw(0x10),
		raw(0x11),
		integer(0x12),
		raw(0x13),
		raw(0x14),
		integer(0x15),
	)

	// SignatureTemplate describes the KSI signature.
	SignatureTemplate = tlv.Composite(TypeSignature,
		AggregationChainTemplate,
		CalendarChainTemplate,
		PublicationRecTemplate,
		CalendarAuthRecTemplate,
		RFC3161Template,
	)

	// PublicationsHeaderTemplate describes the publications file header.
	PublicationsHeaderTemplate = tlv.Composite(TypePublicationsHeader,
		integer(0x01),
		integer(0x02),
		text(0x03),
	)

	// CertificateRecTemplate describes the publications file certificate record.
	CertificateRecTemplate = tlv.Composite(TypeCertificateRec,
		raw(0x01),
		raw(0x02),
	)

	// FilePublicationRecTemplate describes the publications file publication record.
	FilePublicationRecTemplate = publicationRecTemplate(TypeFilePublicationRec)

	// FileSignatureTemplate describes the publications file PKCS#7 signature.
	FileSignatureTemplate = raw(TypeFileSignature)

	headerTemplate = tlv.Composite(TypeHeader,
		text(0x01),
		integer(0x02),
		integer(0x03),
	)

	configTemplate = tlv.Composite(TypeConfig,
		integer(0x04),
		text(0x10),
		integer(0x11),
		integer(0x12),
	)

	errorTemplate = tlv.Composite(TypeError,
		integer(0x04),
		text(0x05),
	)

	// ExtenderReqTemplate describes the extender request PDU.
	ExtenderReqTemplate = tlv.Composite(TypeExtenderReq,
		headerTemplate,
		tlv.Composite(TypeExtReq,
			integer(0x01),
			integer(0x02),
			integer(0x03),
		),
		tlv.Composite(TypeConfig),
		imprint(TypeMac),
	)

	// ExtenderRespTemplate describes the extender response PDU.
	ExtenderRespTemplate = tlv.Composite(TypeExtenderResp,
		headerTemplate,
		tlv.Composite(TypeExtResp,
			integer(0x01),
			integer(0x04),
			text(0x05),
			integer(0x12),
			CalendarChainTemplate,
		),
		errorTemplate,
		configTemplate,
		imprint(TypeMac),
	)
)
