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

// Package reserr names the reason attached to a non-OK verification result. Every reason belongs to the
// verification step that reports it and is printed as the step prefix followed by a two digit number,
// e.g. INT-11.
package reserr

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a verification result reason.
type Code byte

// ErrNA is the reason of results that carry none, such as OK.
const ErrNA Code = 0

// General outcomes.
const (
	Gen01 Code = iota + 1
	Gen02
	Gen03
	Gen04
)

// Internal consistency.
const (
	Int01 Code = iota + Gen04 + 1
	Int02
	Int03
	Int04
	Int05
	Int06
	Int07
	Int08
	Int09
	Int10
	Int11
	Int12
	Int13
	Int14
	Int15
	Int16
	Int17
)

// Publication based verification.
const (
	Pub01 Code = iota + Int17 + 1
	Pub02
	Pub03
	Pub04
	Pub05
)

// Key based verification. KEY-01 is not issued.
const (
	Key02 Code = iota + Pub05 + 1
	Key03
)

// Calendar based verification.
const (
	Cal01 Code = iota + Key03 + 1
	Cal02
	Cal03
	Cal04
)

// Category is the verification step a reason belongs to.
type Category byte

const (
	// CategoryNA is the category of ErrNA.
	CategoryNA Category = iota
	General
	Internal
	Publication
	Key
	Calendar
)

type group struct {
	cat         Category
	name        string
	prefix      string
	first, last Code
	// Number printed for first.
	base int
}

var groups = []group{
	{General, "General", "GEN", Gen01, Gen04, 1},
	{Internal, "Internal", "INT", Int01, Int17, 1},
	{Publication, "Publication", "PUB", Pub01, Pub05, 1},
	{Key, "Key", "KEY", Key02, Key03, 2},
	{Calendar, "Calendar", "CAL", Cal01, Cal04, 1},
}

func (c Code) group() (group, bool) {
	for _, g := range groups {
		if c >= g.first && c <= g.last {
			return g, true
		}
	}
	return group{}, false
}

var messages = [...]string{
	ErrNA: "Unknown",

	Gen01: "Wrong document",
	Gen02: "Verification inconclusive",
	Gen03: "Input hash level too large",
	Gen04: "Wrong input hash algorithm",

	Int01: "Inconsistent aggregation hash chains",
	Int02: "Inconsistent aggregation hash chain aggregation times",
	Int03: "Calendar hash chain input hash mismatch",
	Int04: "Calendar hash chain aggregation time mismatch",
	Int05: "Calendar hash chain shape inconsistent with aggregation time",
	Int06: "Calendar hash chain time inconsistent with calendar authentication record time",
	Int07: "Calendar hash chain time inconsistent with publication time",
	Int08: "Calendar hash chain root hash is inconsistent with calendar authentication record input hash",
	Int09: "Calendar hash chain root hash is inconsistent with published hash value",
	Int10: "Aggregation hash chain chain index mismatch",
	Int11: "The metadata record in the aggregation hash chain may not be trusted",
	Int12: "Inconsistent chain indexes",
	Int13: "Document hash algorithm deprecated at the time of signing",
	Int14: "RFC3161 compatibility record composed of hash algorithms deprecated at the time of signing",
	Int15: "Aggregation hash chain uses hash algorithm that was deprecated at the time of signing",
	Int16: "Calendar hash chain hash algorithm was obsolete at publication time",
	Int17: "The RFC3161 compatibility record output hash algorithm was deprecated at the time of signing",

	Pub01: "Extender response calendar root hash mismatch",
	Pub02: "Extender response inconsistent",
	Pub03: "Extender response input hash mismatch",
	Pub04: "Publication record hash and user provided publication hash mismatch",
	Pub05: "Publication record hash and publications file publication hash mismatch",

	Key02: "PKI signature not verified with certificate",
	Key03: "Signing certificate not valid at aggregation time",

	Cal01: "Calendar root hash mismatch between signature and calendar database chain",
	Cal02: "Aggregation hash chain root hash and calendar database hash chain input hash mismatch",
	Cal03: "Aggregation time mismatch",
	Cal04: "Calendar hash chain right links are inconsistent",
}

// String returns the printed form of the reason, e.g. INT-11, or "None" for ErrNA.
func (c Code) String() string {
	g, ok := c.group()
	if !ok {
		return "None"
	}
	return fmt.Sprintf("%s-%02d", g.prefix, g.base+int(c-g.first))
}

// Message returns the human readable description of the reason.
func (c Code) Message() string {
	if int(c) < len(messages) {
		return messages[c]
	}
	return messages[ErrNA]
}

// Category returns the verification step the reason belongs to.
func (c Code) Category() Category {
	g, _ := c.group()
	return g.cat
}

// CodeByName parses the printed form of a reason. ErrNA is returned for anything else.
func CodeByName(name string) Code {
	i := strings.IndexByte(name, '-')
	if i < 0 {
		return ErrNA
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || len(name[i+1:]) != 2 {
		return ErrNA
	}
	for _, g := range groups {
		if g.prefix == name[:i] && n >= g.base && n-g.base <= int(g.last-g.first) {
			return g.first + Code(n-g.base)
		}
	}
	return ErrNA
}

func (c Category) String() string {
	if c == CategoryNA {
		return "None"
	}
	for _, g := range groups {
		if g.cat == c {
			return g.name
		}
	}
	return "None"
}
