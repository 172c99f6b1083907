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
	"testing"
)

var testDigest = []byte{
	0xc4, 0xbb, 0xcb, 0x1f, 0xbe, 0xc9, 0x9d, 0x65, 0xbf, 0x59, 0xd8, 0x5c, 0x8c, 0xb6, 0x2e, 0xe2,
	0xdb, 0x96, 0x3f, 0x0f, 0xe1, 0x06, 0xf4, 0x83, 0xd9, 0xaf, 0xa7, 0x3b, 0xd4, 0xe3, 0x9a, 0x8a,
}

func TestUnitImprintValidity(t *testing.T) {
	tests := []struct {
		title   string
		valid   bool
		imprint Imprint
	}{
		{"Valid SHA2-256 imprint.", true, append(Imprint{0x01}, testDigest...)},
		{"Undefined hash algorithm.", false, append(Imprint{0xff}, testDigest...)},
		{"Invalid SHA2-256 digest length (longer).", false, append(append(Imprint{0x01}, testDigest...), 0x00)},
		{"Invalid SHA2-256 digest length (shorter).", false, append(Imprint{0x01}, testDigest[1:]...)},
		{"Empty imprint.", false, Imprint{}},
		{"Nil imprint.", false, nil},
	}

	for _, tc := range tests {
		if tc.imprint.IsValid() != tc.valid {
			t.Errorf("%s Validity mismatch.", tc.title)
		}
		if tc.valid {
			if tc.imprint.Algorithm() != SHA2_256 || !bytes.Equal(tc.imprint.Digest(), testDigest) {
				t.Errorf("%s Unexpected components.", tc.title)
			}
		} else {
			if tc.imprint.Algorithm() != SHA_NA || tc.imprint.Digest() != nil || tc.imprint.String() != "" {
				t.Errorf("%s Invalid imprint must not expose components.", tc.title)
			}
		}
	}
}

func TestUnitImprintString(t *testing.T) {
	imp := append(Imprint{0x01}, testDigest...)
	const expected = "SHA-256:c4bbcb1fbec99d65bf59d85c8cb62ee2db963f0fe106f483d9afa73bd4e39a8a"
	if imp.String() != expected {
		t.Fatalf("Unexpected string: %s.", imp)
	}

	parsed, err := ParseImprint(expected)
	if err != nil {
		t.Fatalf("Failed to parse imprint: %s.", err)
	}
	if !Equal(parsed, imp) {
		t.Fatalf("Parsed imprint mismatch: %s.", parsed)
	}

	for _, s := range []string{"SHA-256", "SHA-256:zz", "SHA-256:c4bb", "XYZ:00"} {
		if _, err := ParseImprint(s); err == nil {
			t.Errorf("Must fail to parse %q.", s)
		}
	}
}

func TestUnitImprintCloneCompare(t *testing.T) {
	imp := append(Imprint{0x01}, testDigest...)
	clone := imp.Clone()
	clone[1] ^= 0xff

	if Equal(imp, clone) {
		t.Fatal("Clone must not share memory.")
	}
	if Compare(imp, clone) <= 0 {
		t.Fatal("Unexpected ordering.")
	}
	if Imprint(nil).Clone() != nil {
		t.Fatal("Clone of nil must be nil.")
	}
}
