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

package hash

import (
	"bytes"
	"crypto"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/guardtime/goksi-multisig/errors"
)

// Imprint is a hash value: a one-octet algorithm identifier followed by the digest.
type Imprint []byte

// String returns "<algorithm>:<hex digest>", or an empty string if the imprint is not valid.
func (i Imprint) String() string {
	if !i.IsValid() {
		return ""
	}
	return Algorithm(i[0]).String() + ":" + hex.EncodeToString(i[1:])
}

// IsValid reports whether the algorithm is defined and the digest length matches it.
func (i Imprint) IsValid() bool {
	if len(i) == 0 {
		return false
	}
	size := Algorithm(i[0]).Size()
	return size > 0 && len(i) == size+1
}

// Algorithm returns the algorithm of the imprint, or SHA_NA if the imprint is not valid.
func (i Imprint) Algorithm() Algorithm {
	if !i.IsValid() {
		return SHA_NA
	}
	return Algorithm(i[0])
}

// Digest returns the digest part, or nil if the imprint is not valid.
func (i Imprint) Digest() []byte {
	if !i.IsValid() {
		return nil
	}
	return i[1:]
}

// Clone returns a copy of the imprint.
func (i Imprint) Clone() Imprint {
	if i == nil {
		return nil
	}
	return append(Imprint(nil), i...)
}

// Equal reports whether the two imprints are equal in constant time.
func Equal(l, r Imprint) bool {
	return subtle.ConstantTimeCompare(l, r) == 1
}

// Compare orders imprints lexicographically.
func Compare(l, r Imprint) int {
	return bytes.Compare(l, r)
}

// ParseImprint parses the "<algorithm>:<hex digest>" representation returned by String.
func ParseImprint(s string) (Imprint, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Imprint must be in form <algorithm>:<hex>: %q.", s))
	}
	algo, err := ByName(parts[0])
	if err != nil {
		return nil, err
	}
	digest, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, errors.New(errors.KsiInvalidFormatError).SetExtError(err)
	}
	imp := append(Imprint{byte(algo)}, digest...)
	if !imp.IsValid() {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Algorithm digest length mismatch.")
	}
	return imp, nil
}

// CryptoHashToImprint wraps a digest computed with a crypto.Hash into an imprint. A nil digest yields
// the zero imprint. The algorithm status is not checked (see (Algorithm).StatusAt()).
func CryptoHashToImprint(id crypto.Hash, digest []byte) (Imprint, error) {
	alg := SHA_NA
	for _, a := range ListDefined() {
		if info, _ := lookup(a); info.crypto != 0 && info.crypto == id {
			alg = a
			break
		}
	}
	if alg == SHA_NA {
		return nil, errors.New(errors.KsiUnknownHashAlgorithm)
	}
	if digest == nil {
		return alg.ZeroImprint(), nil
	}
	if alg.Size() != len(digest) {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Algorithm digest length mismatch.")
	}
	return append(Imprint{byte(alg)}, digest...), nil
}
