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

// Package result defines the outcome shared by verification rules and policies.
package result

import "fmt"

// Code is the outcome of a rule or a policy.
type Code byte

const (
	// OK means the signature is proven correct.
	OK Code = iota
	// NA means the available data neither proves nor disproves the signature.
	NA
	// FAIL means the signature is invalid or does not match the document.
	FAIL
)

var codeNames = [...]string{OK: "OK", NA: "NA", FAIL: "FAIL"}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", byte(c))
}

// Conclusive reports whether c settles the verification, so that no fallback policy is consulted.
func (c Code) Conclusive() bool {
	return c == OK || c == FAIL
}
