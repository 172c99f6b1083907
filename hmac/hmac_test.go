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

package hmac

import (
	"encoding/hex"
	"testing"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
)

const (
	testKey     = "secret"
	testMessage = "correct horse battery staple"
)

func mustImprint(t *testing.T, s string) hash.Imprint {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("Failed to decode hex: %s.", err)
	}
	return b
}

func TestUnitHmac(t *testing.T) {
	expected := mustImprint(t, "01f24bedb4e103c9bf78b312b570af224ceb090e0bcda18c2c106943269259cfed")

	hsr, err := New(hash.SHA2_256, []byte(testKey))
	if err != nil {
		t.Fatalf("Failed to initialize HMAC: %s.", err)
	}
	if _, err := hsr.Write([]byte(testMessage)); err != nil {
		t.Fatalf("Failed to write to hasher: %s.", err)
	}
	mac, err := hsr.Imprint()
	if err != nil {
		t.Fatalf("Failed to extract imprint: %s.", err)
	}
	if !hash.Equal(mac, expected) {
		t.Fatalf("HMAC mismatch: %x.", []byte(mac))
	}
	if hsr.Size() != hash.SHA2_256.Size() {
		t.Fatal("Unexpected digest size.")
	}

	// Imprint must not alter the running state.
	if again, _ := hsr.Imprint(); !hash.Equal(again, expected) {
		t.Fatal("Repeated imprint differs.")
	}
}

func TestUnitSum(t *testing.T) {
	expected := mustImprint(t, "01f24bedb4e103c9bf78b312b570af224ceb090e0bcda18c2c106943269259cfed")

	mac, err := Sum(hash.SHA2_256, []byte(testKey), []byte("correct horse "), []byte("battery staple"))
	if err != nil {
		t.Fatalf("Failed to compute HMAC: %s.", err)
	}
	if !hash.Equal(mac, expected) {
		t.Fatal("Split input must produce the same HMAC.")
	}
}

func TestUnitReset(t *testing.T) {
	empty := mustImprint(t, "01f9e66e179b6747ae54108f82f8ade8b3c25d76fd30afde6c395822c530196169")

	hsr, err := New(hash.SHA2_256, []byte(testKey))
	if err != nil {
		t.Fatalf("Failed to initialize HMAC: %s.", err)
	}
	if _, err := hsr.Write([]byte(testMessage)); err != nil {
		t.Fatalf("Failed to write to hasher: %s.", err)
	}
	hsr.Reset()
	mac, err := hsr.Imprint()
	if err != nil {
		t.Fatalf("Failed to extract imprint: %s.", err)
	}
	if !hash.Equal(mac, empty) {
		t.Fatal("Reset hasher must produce the empty message HMAC.")
	}
}

func TestUnitUnregisteredAlgorithm(t *testing.T) {
	if _, err := New(hash.SM3, []byte(testKey)); err == nil {
		t.Fatal("Unregistered algorithm must fail.")
	}
	if _, err := New(hash.SHA_NA, []byte(testKey)); !errors.Is(err, errors.KsiUnknownHashAlgorithm) {
		t.Fatalf("Expected unknown algorithm error: %s.", err)
	}
}

func TestUnitNilHasher(t *testing.T) {
	var hsr *Hasher
	if _, err := hsr.Write([]byte(testMessage)); !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatalf("Expected invalid argument: %s.", err)
	}
	if _, err := hsr.Imprint(); err == nil {
		t.Fatal("Nil hasher must fail.")
	}
	if hsr.Size() != 0 {
		t.Fatal("Nil hasher size must be 0.")
	}
	hsr.Reset()
}
