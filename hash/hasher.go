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
	"fmt"
	"hash"

	"github.com/guardtime/goksi-multisig/errors"
)

// DataHasher computes KSI imprints over streamed data.
type DataHasher struct {
	algo Algorithm
	hsr  hash.Hash
}

// New returns a hasher for the algorithm.
// Returns an error if the algorithm is unknown or its implementation is not registered.
func (a Algorithm) New() (*DataHasher, error) {
	hsr, err := a.HashFunc()
	if err != nil {
		return nil, err
	}
	if hsr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage(fmt.Sprintf("%s hash function is not registered.", a))
	}
	return &DataHasher{algo: a, hsr: hsr}, nil
}

// Algorithm returns the hash algorithm of the hasher.
func (h *DataHasher) Algorithm() Algorithm {
	if h == nil {
		return SHA_NA
	}
	return h.algo
}

// Write adds more data to the running hash.
// A nil or uninitialized hasher reports -1 bytes written.
func (h *DataHasher) Write(p []byte) (int, error) {
	if h == nil || h.hsr == nil {
		return -1, errors.New(errors.KsiInvalidArgumentError)
	}
	n, err := h.hsr.Write(p)
	if err != nil {
		return n, errors.New(errors.KsiCryptoFailure).SetExtError(err)
	}
	return n, nil
}

// Imprint returns the imprint of the data written so far. The hasher state is not changed.
func (h *DataHasher) Imprint() (Imprint, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return append(Imprint{byte(h.algo)}, h.hsr.Sum(nil)...), nil
}

// Reset resets the hasher to its initial state.
func (h *DataHasher) Reset() {
	if h != nil && h.hsr != nil {
		h.hsr.Reset()
	}
}

// Size returns the digest length in bytes, or -1 if the hasher is not initialized.
func (h *DataHasher) Size() int {
	if h == nil || h.hsr == nil {
		return -1
	}
	return h.algo.Size()
}

// BlockSize returns the underlying block length in bytes, or -1 if the hasher is not initialized.
func (h *DataHasher) BlockSize() int {
	if h == nil || h.hsr == nil {
		return -1
	}
	return h.algo.BlockSize()
}
