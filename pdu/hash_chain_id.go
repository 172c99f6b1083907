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
)

// HashChainLinkIdentityType is hash chain link identity type.
type HashChainLinkIdentityType byte

const (
	// IdentityTypeUnknown is invalid type.
	IdentityTypeUnknown HashChainLinkIdentityType = iota
	// IdentityTypeLegacyID is a client identifier converted from a legacy signature.
	IdentityTypeLegacyID
	// IdentityTypeMetadata is a client identity incorporated into the hash chain by a metadata structure.
	IdentityTypeMetadata
)

// HashChainLinkIdentity is hash chain link identity.
type HashChainLinkIdentity struct {
	idType      HashChainLinkIdentityType
	clientID    string
	machineID   string
	sequenceNr  uint64
	requestTime uint64
}

// String implements fmt.(Stringer) interface.
func (id *HashChainLinkIdentity) String() string {
	switch id.Type() {
	case IdentityTypeLegacyID:
		return fmt.Sprintf("'%s' (legacy)", id.clientID)
	case IdentityTypeMetadata:
		return fmt.Sprintf("Client ID: '%s'; Machine ID: '%s'; Sequence number: %d; Request time: %d",
			id.clientID, id.machineID, id.sequenceNr, id.requestTime)
	default:
		return "Unknown"
	}
}

// Type returns the link identity type.
func (id *HashChainLinkIdentity) Type() HashChainLinkIdentityType {
	if id == nil {
		return IdentityTypeUnknown
	}
	return id.idType
}

// ClientID returns the client identity.
func (id *HashChainLinkIdentity) ClientID() string {
	if id == nil {
		return ""
	}
	return id.clientID
}

// MachineID returns the machine identifier, or an empty string if not present.
func (id *HashChainLinkIdentity) MachineID() string {
	if id == nil {
		return ""
	}
	return id.machineID
}

// SequenceNr returns the local sequence number of the request, or 0 if not present.
func (id *HashChainLinkIdentity) SequenceNr() uint64 {
	if id == nil {
		return 0
	}
	return id.sequenceNr
}

// RequestTime returns the time the server received the request, or 0 if not present.
func (id *HashChainLinkIdentity) RequestTime() uint64 {
	if id == nil {
		return 0
	}
	return id.requestTime
}

// HashChainLinkIdentityList is a list of identities, the higher-link identity first.
type HashChainLinkIdentityList []*HashChainLinkIdentity

// String implements fmt.(Stringer) interface.
func (l HashChainLinkIdentityList) String() string {
	var s string
	for i, id := range l {
		if i > 0 {
			s += " :: "
		}
		s += id.ClientID()
	}
	return s
}
