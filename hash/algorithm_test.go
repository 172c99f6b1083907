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
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
)

var testAlgorithmData = []struct {
	id           byte
	isDefined    bool
	isRegistered bool
	isTrusted    bool
	algo         Algorithm
	name         string
	size         int
}{
	{0x00, true, true, false, SHA1, "SHA-1", 20},
	{0x01, true, true, true, SHA2_256, "SHA-256", 32},
	{0x02, true, true, true, RIPEMD160, "RIPEMD-160", 20},
	{0x04, true, true, true, SHA2_384, "SHA-384", 48},
	{0x05, true, true, true, SHA2_512, "SHA-512", 64},
	{0x07, true, true, true, SHA3_224, "SHA3-224", 28},
	{0x08, true, true, true, SHA3_256, "SHA3-256", 32},
	{0x09, true, true, true, SHA3_384, "SHA3-384", 48},
	{0x0a, true, true, true, SHA3_512, "SHA3-512", 64},
	{0x0b, true, false, true, SM3, "SM-3", 32},
}

func TestUnitAlgorithmTable(t *testing.T) {
	for _, td := range testAlgorithmData {
		if byte(td.algo) != td.id {
			t.Errorf("%s: wrong KSI algorithm id: %d.", td.name, td.algo)
		}
		if td.algo.Defined() != td.isDefined {
			t.Errorf("%s: defined mismatch.", td.name)
		}
		if td.algo.Registered() != td.isRegistered {
			t.Errorf("%s: registered mismatch.", td.name)
		}
		if td.algo.Trusted() != td.isTrusted {
			t.Errorf("%s: trusted mismatch.", td.name)
		}
		if td.algo.String() != td.name {
			t.Errorf("Algorithm string mismatch: '%s' vs '%s'.", td.algo, td.name)
		}
		if td.algo.Size() != td.size {
			t.Errorf("%s: size mismatch: %d.", td.name, td.algo.Size())
		}
		if byName, err := ByName(strings.ToLower(td.name)); err != nil || byName != td.algo {
			t.Errorf("%s: lookup by name failed: %v.", td.name, err)
		}
	}
}

func TestUnitUndefinedAlgorithm(t *testing.T) {
	for _, a := range []Algorithm{-1, 0x03, 0x06, SHA_NA} {
		if a.Defined() || a.Registered() || a.Trusted() {
			t.Errorf("Algorithm %d must not be defined.", a)
		}
		if a.String() != "" || a.Size() != -1 || a.BlockSize() != -1 {
			t.Errorf("Unexpected properties for algorithm %d.", a)
		}
		if a.ZeroImprint() != nil {
			t.Errorf("Unexpected zero imprint for algorithm %d.", a)
		}
		if a.StatusAt(time.Now().Unix()) != Unknown {
			t.Errorf("Unexpected status for algorithm %d.", a)
		}
		if _, err := a.DeprecatedFrom(); !errors.Is(err, errors.KsiUnknownHashAlgorithm) {
			t.Errorf("Unexpected deprecated error: %v.", err)
		}
		if _, err := a.ObsoleteFrom(); !errors.Is(err, errors.KsiUnknownHashAlgorithm) {
			t.Errorf("Unexpected obsolete error: %v.", err)
		}
		if _, err := a.New(); err == nil {
			t.Errorf("Hasher must not be created for algorithm %d.", a)
		}
	}
}

func TestUnitDefaultAlgorithm(t *testing.T) {
	algo, err := ByName("default")
	if err != nil {
		t.Fatalf("Failed to get default algo: %s.", err)
	}
	if algo != Default {
		t.Fatalf("Wrong hash function: %s.", algo)
	}

	if algo, err := ByName("SHA-xxx"); err == nil || algo != SHA_NA {
		t.Fatal("Must fail with unknown name.")
	}
}

func TestUnitHasher(t *testing.T) {
	tests := []struct {
		algo   Algorithm
		input  string
		digest string
	}{
		{SHA1, "Once I was blind but now I C!", "17feaf7afb41e469c907170915eab91aa9114c05"},
		{SHA2_256, "Once I was blind but now I C!", "4d151c05f29a9757ff252ff1000fdcd28f88caaa52c020bc7d25e683890e7335"},
		{SHA2_384, "Once I was blind but now I C!", "4495385793894ac9a2cc1b2d8760da3ce50d14a193b19166417d503d853ad3588689e5a6b0e65675367394a207cac264"},
		{SHA2_512, "Once I was blind but now I C!", "2dcee3bebeeec061751c7e2c886fddb069502c3c71e1f70272d77a64c092e51b6a262d208939cc557de7650da347b08f643d515ff8009a7342454e73247761dd"},
		{SHA2_256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{RIPEMD160, "", "9c1185a5c5e9fc54612808977ee8f548b2258d31"},
		{SHA3_224, "", "6b4e03423667dbb73b6e15454f0eb1abd4597f9a1b078e3f5b5a6bc7"},
		{SHA3_256, "", "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
	}

	for _, tc := range tests {
		hsr, err := tc.algo.New()
		if err != nil {
			t.Fatalf("Failed to create %s hasher: %s.", tc.algo, err)
		}
		if _, err := hsr.Write([]byte(tc.input)); err != nil {
			t.Fatalf("Failed to write to hasher: %s.", err)
		}
		imp, err := hsr.Imprint()
		if err != nil {
			t.Fatalf("Failed to extract imprint: %s.", err)
		}
		if imp.Algorithm() != tc.algo || hsr.Algorithm() != tc.algo {
			t.Fatalf("Unexpected imprint algorithm: %s.", imp)
		}
		if hex.EncodeToString(imp.Digest()) != tc.digest {
			t.Errorf("Unexpected %s digest: %x.", tc.algo, imp.Digest())
		}
	}
}

func TestUnitAlgorithmDigest(t *testing.T) {
	imp, err := SHA2_256.Digest([]byte("Once I was "), nil, []byte("blind but now I C!"))
	if err != nil {
		t.Fatalf("Failed to compute digest: %s.", err)
	}
	if hex.EncodeToString(imp.Digest()) != "4d151c05f29a9757ff252ff1000fdcd28f88caaa52c020bc7d25e683890e7335" {
		t.Fatalf("Unexpected digest: %s.", imp)
	}

	if _, err := SM3.Digest([]byte{0x01}); err == nil {
		t.Fatal("Must fail with unregistered algorithm.")
	}
}

func TestUnitHasherReset(t *testing.T) {
	hsr, err := SHA2_256.New()
	if err != nil {
		t.Fatalf("Failed to create hasher: %s.", err)
	}
	empty, _ := hsr.Imprint()

	if _, err := hsr.Write([]byte("data")); err != nil {
		t.Fatalf("Failed to write to hasher: %s.", err)
	}
	// Imprint does not change the state.
	first, _ := hsr.Imprint()
	second, _ := hsr.Imprint()
	if !Equal(first, second) {
		t.Fatal("Imprint must not change the hasher state.")
	}

	hsr.Reset()
	reset, _ := hsr.Imprint()
	if !Equal(empty, reset) {
		t.Fatal("Reset must restore the initial state.")
	}
}

func TestUnitUninitializedHasher(t *testing.T) {
	var nilHasher *DataHasher
	var zeroHasher DataHasher

	for _, h := range []*DataHasher{nilHasher, &zeroHasher} {
		if n, err := h.Write([]byte{0x32}); err == nil || n != -1 {
			t.Fatal("Should not be possible to write to uninitialized data hasher.")
		}
		if _, err := h.Imprint(); err == nil {
			t.Fatal("Should not be possible to get imprint from uninitialized data hasher.")
		}
		if h.Size() >= 0 || h.BlockSize() >= 0 {
			t.Fatal("Unexpected size from uninitialized data hasher.")
		}
		h.Reset()
	}
	if nilHasher.Algorithm() != SHA_NA {
		t.Fatal("Nil hasher must report invalid algorithm.")
	}
}

func TestUnitParallelHasher(t *testing.T) {
	expected, err := SHA2_256.Digest([]byte("parallel"))
	if err != nil {
		t.Fatalf("Failed to compute digest: %s.", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			imp, err := SHA2_256.Digest([]byte("parallel"))
			if err != nil || !Equal(imp, expected) {
				errs <- "digest mismatch"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

type countingHash struct {
	hash.Hash
	count *int
}

func (c countingHash) Write(p []byte) (int, error) {
	*c.count++
	return c.Hash.Write(p)
}

func TestUnitRegisterHash(t *testing.T) {
	var count int
	RegisterHash(SM3, func() hash.Hash { return countingHash{sha256.New(), &count} })
	defer RegisterHash(SM3, nil)

	if !SM3.Registered() {
		t.Fatal("SM3 must be registered.")
	}
	if _, err := SM3.Digest([]byte{0x01}, []byte{0x02}); err != nil {
		t.Fatalf("Failed to compute digest: %s.", err)
	}
	if count != 2 {
		t.Fatalf("Unexpected write count: %d.", count)
	}
}

func TestUnitRegisterUnknownHash(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Must panic.")
		}
	}()
	RegisterHash(SHA_NA, sha256.New)
}

func TestUnitStatus(t *testing.T) {
	deprecated, err := SHA1.DeprecatedFrom()
	if err != nil || deprecated != 1467331200 {
		t.Fatalf("Unexpected SHA-1 deprecation time: %d.", deprecated)
	}
	if obsolete, err := SHA1.ObsoleteFrom(); err != nil || obsolete != 0 {
		t.Fatalf("Unexpected SHA-1 obsolete time: %d.", obsolete)
	}

	if s := SHA1.StatusAt(deprecated - 1); s != Normal {
		t.Errorf("Unexpected status before deprecation: %d.", s)
	}
	if s := SHA1.StatusAt(deprecated); s != Deprecated {
		t.Errorf("Unexpected status at deprecation: %d.", s)
	}
	if s := SHA2_256.StatusAtTime(time.Now()); s != Normal {
		t.Errorf("Unexpected SHA-256 status: %d.", s)
	}
}

func TestUnitListAlgorithms(t *testing.T) {
	defined := ListDefined()
	if len(defined) != len(testAlgorithmData) {
		t.Fatalf("Unexpected defined count: %d.", len(defined))
	}
	for i := 1; i < len(defined); i++ {
		if defined[i-1] >= defined[i] {
			t.Fatal("Defined list must be ordered.")
		}
	}
	for _, a := range ListSupported() {
		if a == SM3 {
			t.Fatal("SM3 must not be supported by default.")
		}
	}
}

func TestUnitCryptoHashToImprint(t *testing.T) {
	digest := sha256.Sum256([]byte("data"))
	imp, err := CryptoHashToImprint(crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("Failed to wrap digest: %s.", err)
	}
	if imp.Algorithm() != SHA2_256 || !Equal(imp.Digest(), digest[:]) {
		t.Fatalf("Unexpected imprint: %s.", imp)
	}

	zero, err := CryptoHashToImprint(crypto.SHA3_512, nil)
	if err != nil || !Equal(zero, SHA3_512.ZeroImprint()) {
		t.Fatalf("Unexpected zero imprint: %s.", zero)
	}

	if _, err := CryptoHashToImprint(crypto.SHA256, digest[1:]); !errors.Is(err, errors.KsiInvalidFormatError) {
		t.Fatalf("Unexpected error: %v.", err)
	}
	if _, err := CryptoHashToImprint(crypto.MD5, nil); !errors.Is(err, errors.KsiUnknownHashAlgorithm) {
		t.Fatalf("Unexpected error: %v.", err)
	}
}
