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

// Package hmac computes the message authentication codes that seal extender PDUs.
// The result is represented as a hash.Imprint tagged with the underlying hash algorithm.
package hmac

import (
	"crypto/hmac"
	stdhash "hash"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
)

// Hasher is a running HMAC computation.
type Hasher struct {
	alg hash.Algorithm
	mac stdhash.Hash
}

// New returns a Hasher keyed with key. The algorithm must be registered.
func New(alg hash.Algorithm, key []byte) (*Hasher, error) {
	if _, err := alg.HashFunc(); err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to initialize HMAC.")
	}
	return &Hasher{
		alg: alg,
		mac: hmac.New(func() stdhash.Hash {
			h, _ := alg.HashFunc()
			return h
		}, key),
	}, nil
}

// Sum computes the HMAC of the concatenated data in one call.
func Sum(alg hash.Algorithm, key []byte, data ...[]byte) (hash.Imprint, error) {
	h, err := New(alg, key)
	if err != nil {
		return nil, err
	}
	for _, d := range data {
		if _, err := h.Write(d); err != nil {
			return nil, err
		}
	}
	return h.Imprint()
}

// Write adds more data to the running MAC.
func (h *Hasher) Write(p []byte) (int, error) {
	if h == nil || h.mac == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	n, err := h.mac.Write(p)
	if err != nil {
		return n, errors.New(errors.KsiCryptoFailure).SetExtError(err)
	}
	return n, nil
}

// Imprint returns the MAC of the data written so far. The running state is not changed.
func (h *Hasher) Imprint() (hash.Imprint, error) {
	if h == nil || h.mac == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return append(hash.Imprint{byte(h.alg)}, h.mac.Sum(nil)...), nil
}

// Size returns the MAC digest length in bytes.
func (h *Hasher) Size() int {
	if h == nil || h.mac == nil {
		return 0
	}
	return h.mac.Size()
}

// Reset discards the data written so far.
func (h *Hasher) Reset() {
	if h != nil && h.mac != nil {
		h.mac.Reset()
	}
}
