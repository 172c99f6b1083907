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

// Package utils builds KSI structures for tests: aggregation rounds, a deterministic calendar, PKI material and
// signed publications files. Every structure is computed independently of the verification code.
package utils

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/tlv"
)

// Algorithm is the hash algorithm used by the fixtures.
const Algorithm = hash.SHA2_256

func StringToBin(s string) []byte {
	if s == "" {
		panic("String is empty!")
	}
	h, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Digest returns the SHA-256 imprint of the concatenated data.
func Digest(tb testing.TB, data ...[]byte) hash.Imprint {
	tb.Helper()
	h, err := Algorithm.Digest(data...)
	if err != nil {
		tb.Fatal("Failed to compute digest: ", err)
	}
	return h
}

// DocumentHash returns a document hash derived from the name.
func DocumentHash(tb testing.TB, name string) hash.Imprint {
	tb.Helper()
	return Digest(tb, []byte("document:"), []byte(name))
}

func uint64Bytes(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

// SignatureTag assembles a KSI signature element from its components. The optional elements (publication record,
// calendar authentication record, RFC3161 record) are appended after the calendar chain.
func SignatureTag(tb testing.TB, chains pdu.AggregationChainList, cal *pdu.CalendarChain, optional ...*tlv.Tag) *tlv.Tag {
	tb.Helper()
	var children []*tlv.Tag
	for _, c := range chains {
		children = append(children, c.Tag().Clone())
	}
	if cal != nil {
		children = append(children, cal.Tag().Clone())
	}
	for _, o := range optional {
		if o != nil {
			children = append(children, o.Clone())
		}
	}
	return tlv.NewComposite(pdu.TypeSignature, children...)
}

// SignatureBytes returns the encoded KSI signature assembled from its components.
func SignatureBytes(tb testing.TB, chains pdu.AggregationChainList, cal *pdu.CalendarChain, optional ...*tlv.Tag) []byte {
	tb.Helper()
	raw, err := SignatureTag(tb, chains, cal, optional...).Encode()
	if err != nil {
		tb.Fatal("Failed to encode signature: ", err)
	}
	return raw
}
