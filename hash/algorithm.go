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

// Package hash implements the KSI hash algorithm registry, imprints and data hashers.
package hash

import (
	"crypto"
	_ "crypto/sha1"   // Register SHA-1.
	_ "crypto/sha256" // Register SHA-256.
	_ "crypto/sha512" // Register SHA-384 and SHA-512.
	"fmt"
	"hash"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	_ "golang.org/x/crypto/ripemd160" // Register RIPEMD-160.
	_ "golang.org/x/crypto/sha3"      // Register SHA3 family.
)

// Algorithm is the KSI hash function identifier, as stored in the first octet of an imprint.
type Algorithm int

const (
	// SHA1 is SHA-1 algorithm. Deprecated as of 01.07.2016.
	SHA1 Algorithm = 0x00
	// SHA2_256 is SHA-256 algorithm.
	SHA2_256 Algorithm = 0x01
	// RIPEMD160 is RIPEMD-160 algorithm.
	RIPEMD160 Algorithm = 0x02
	// SHA2_384 is SHA-384 algorithm.
	SHA2_384 Algorithm = 0x04
	// SHA2_512 is SHA-512 algorithm.
	SHA2_512 Algorithm = 0x05
	// SHA3_224 is SHA3-224 algorithm.
	SHA3_224 Algorithm = 0x07
	// SHA3_256 is SHA3-256 algorithm.
	SHA3_256 Algorithm = 0x08
	// SHA3_384 is SHA3-384 algorithm.
	SHA3_384 Algorithm = 0x09
	// SHA3_512 is SHA3-512 algorithm.
	SHA3_512 Algorithm = 0x0a
	// SM3 algorithm. The implementation must be provided by the user (see RegisterHash()).
	SM3 Algorithm = 0x0b

	// SHA_NA defines an invalid algorithm.
	SHA_NA Algorithm = 0x100
)

// Default is the recommended algorithm for hash computation.
const Default = SHA2_256

type algorithmInfo struct {
	crypto     crypto.Hash
	newHash    func() hash.Hash
	size       int // Digest length in bytes.
	blockSize  int // Underlying block length in bytes.
	deprecated int64
	obsolete   int64
	names      []string
}

var (
	registryMu sync.RWMutex
	registry   = map[Algorithm]*algorithmInfo{
		SHA1:      {crypto: crypto.SHA1, size: 20, blockSize: 64, deprecated: 1467331200, names: []string{"SHA-1", "SHA1"}},
		SHA2_256:  {crypto: crypto.SHA256, size: 32, blockSize: 64, names: []string{"SHA-256", "SHA2-256", "SHA-2", "SHA2", "SHA256", "DEFAULT"}},
		RIPEMD160: {crypto: crypto.RIPEMD160, size: 20, blockSize: 64, names: []string{"RIPEMD-160", "RIPEMD160"}},
		SHA2_384:  {crypto: crypto.SHA384, size: 48, blockSize: 128, names: []string{"SHA-384", "SHA384", "SHA2-384"}},
		SHA2_512:  {crypto: crypto.SHA512, size: 64, blockSize: 128, names: []string{"SHA-512", "SHA512", "SHA2-512"}},
		SHA3_224:  {crypto: crypto.SHA3_224, size: 28, blockSize: 144, names: []string{"SHA3-224"}},
		SHA3_256:  {crypto: crypto.SHA3_256, size: 32, blockSize: 136, names: []string{"SHA3-256"}},
		SHA3_384:  {crypto: crypto.SHA3_384, size: 48, blockSize: 104, names: []string{"SHA3-384"}},
		SHA3_512:  {crypto: crypto.SHA3_512, size: 64, blockSize: 72, names: []string{"SHA3-512"}},
		SM3:       {size: 32, blockSize: 64, names: []string{"SM-3", "SM3"}},
	}
)

func init() {
	for _, info := range registry {
		if info.crypto != 0 && info.crypto.Available() {
			info.newHash = info.crypto.New
		}
	}
}

func lookup(a Algorithm) (algorithmInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	info, ok := registry[a]
	if !ok {
		return algorithmInfo{}, false
	}
	return *info, true
}

// RegisterHash registers a function that returns a new instance of the given hash function.
// Panics if the algorithm is not defined by KSI.
func RegisterHash(a Algorithm, f func() hash.Hash) {
	registryMu.Lock()
	defer registryMu.Unlock()

	info, ok := registry[a]
	if !ok {
		panic(fmt.Sprintf("RegisterHash() unknown hash function: %d.", a))
	}
	info.newHash = f
}

// Defined reports whether the algorithm is defined by KSI.
func (a Algorithm) Defined() bool {
	_, ok := lookup(a)
	return ok
}

// Registered reports whether a hash value can be computed with the algorithm.
func (a Algorithm) Registered() bool {
	info, ok := lookup(a)
	return ok && info.newHash != nil
}

// Trusted reports whether the algorithm is neither deprecated nor obsolete. Only the presence of the dates
// is checked, not whether the dates have passed.
func (a Algorithm) Trusted() bool {
	info, ok := lookup(a)
	return ok && info.deprecated == 0 && info.obsolete == 0
}

// String returns the canonical name of the algorithm, or an empty string if the algorithm is unknown.
func (a Algorithm) String() string {
	if info, ok := lookup(a); ok {
		return info.names[0]
	}
	return ""
}

// ByName returns the algorithm matching the case insensitive name, e.g. "sha-256", "sha3-512" or "default".
// The SHA-2 family names do not require the infix "2", whereas the SHA-3 names do.
func ByName(name string) (Algorithm, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for a, info := range registry {
		for _, n := range info.names {
			if strings.EqualFold(n, name) {
				return a, nil
			}
		}
	}
	return SHA_NA, errors.New(errors.KsiUnknownHashAlgorithm).
		AppendMessage(fmt.Sprintf("Unknown hash algorithm: %s.", name))
}

// DeprecatedFrom returns the Unix time since the algorithm is deprecated, or 0 if it is not.
func (a Algorithm) DeprecatedFrom() (int64, error) {
	info, ok := lookup(a)
	if !ok {
		return 0, unknownAlgorithm(a)
	}
	return info.deprecated, nil
}

// ObsoleteFrom returns the Unix time since the algorithm is obsolete, or 0 if it is not.
func (a Algorithm) ObsoleteFrom() (int64, error) {
	info, ok := lookup(a)
	if !ok {
		return 0, unknownAlgorithm(a)
	}
	return info.obsolete, nil
}

// FunctionStatus describes the hash function state at a certain time.
//
// A function is deprecated once collisions become affordable; signatures whose time can be trusted remain valid
// if created before the deprecation date. A function is obsolete once 2nd pre-image resistance is broken; any use
// after that date invalidates the dependent structure.
type FunctionStatus byte

const (
	// Unknown state.
	Unknown FunctionStatus = iota
	// Normal function can be used for all hashing purposes.
	Normal
	// Deprecated since the given date due to the loss of collision resistance.
	Deprecated
	// Obsolete since the given date due to the loss of 2nd pre-image resistance.
	Obsolete
)

// StatusAt returns the status of the algorithm at the given Unix time.
func (a Algorithm) StatusAt(at int64) FunctionStatus {
	info, ok := lookup(a)
	switch {
	case !ok:
		return Unknown
	case info.obsolete != 0 && info.obsolete <= at:
		return Obsolete
	case info.deprecated != 0 && info.deprecated <= at:
		return Deprecated
	default:
		return Normal
	}
}

// StatusAtTime is a convenience wrapper for StatusAt.
func (a Algorithm) StatusAtTime(t time.Time) FunctionStatus {
	return a.StatusAt(t.Unix())
}

// HashFunc returns a new instance of the underlying hash function.
func (a Algorithm) HashFunc() (hash.Hash, error) {
	info, ok := lookup(a)
	if !ok {
		return nil, unknownAlgorithm(a)
	}
	if info.newHash == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage(fmt.Sprintf("Hash algorithm is not registered: %s.", a))
	}
	return info.newHash(), nil
}

// Size returns the digest length in bytes, or -1 if the algorithm is unknown.
func (a Algorithm) Size() int {
	if info, ok := lookup(a); ok {
		return info.size
	}
	return -1
}

// BlockSize returns the underlying block length in bytes, or -1 if the algorithm is unknown.
func (a Algorithm) BlockSize() int {
	if info, ok := lookup(a); ok {
		return info.blockSize
	}
	return -1
}

// ZeroImprint returns the all-zero imprint of the algorithm, or nil if the algorithm is unknown.
func (a Algorithm) ZeroImprint() Imprint {
	if !a.Defined() {
		return nil
	}
	tmp := make(Imprint, 1+a.Size())
	tmp[0] = byte(a)
	return tmp
}

// Digest computes the imprint of the concatenation of the given byte slices.
func (a Algorithm) Digest(data ...[]byte) (Imprint, error) {
	h, err := a.New()
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

// ListSupported returns the registered algorithms in ascending order.
func ListSupported() []Algorithm {
	return list(func(a Algorithm) bool { return a.Registered() })
}

// ListDefined returns the defined algorithms in ascending order.
func ListDefined() []Algorithm {
	return list(func(Algorithm) bool { return true })
}

func list(filter func(Algorithm) bool) []Algorithm {
	registryMu.RLock()
	all := make([]Algorithm, 0, len(registry))
	for a := range registry {
		all = append(all, a)
	}
	registryMu.RUnlock()

	var tmp []Algorithm
	for _, a := range all {
		if filter(a) {
			tmp = append(tmp, a)
		}
	}
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp
}

func unknownAlgorithm(a Algorithm) *errors.KsiError {
	return errors.New(errors.KsiUnknownHashAlgorithm).
		AppendMessage(fmt.Sprintf("Unknown hash algorithm: %d.", a))
}
