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

package pdu

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/tlv"
)

// StructureRule identifies a composition rule of a KSI structure.
type StructureRule byte

const (
	// RuleUnknown is an unspecified rule.
	RuleUnknown StructureRule = iota
	// RuleMandatory is violated by a missing mandatory element.
	RuleMandatory
	// RuleSingle is violated by a repeated element that may occur at most once.
	RuleSingle
	// RuleExclusive is violated by mutually exclusive elements occurring together, or none of them occurring.
	RuleExclusive
	// RuleOrder is violated by an element out of its required position.
	RuleOrder
	// RuleValue is violated by an element value out of its range.
	RuleValue
	// RuleChainIndex is violated by aggregation chains whose indices are not successors of each other.
	RuleChainIndex
	// RuleUnknownCritical is violated by an unknown critical element.
	RuleUnknownCritical
	// RuleObsoleteAlgorithm is violated by a hash algorithm used after it became obsolete.
	RuleObsoleteAlgorithm
)

var ruleNames = map[StructureRule]string{
	RuleUnknown:         "unknown",
	RuleMandatory:       "mandatory element",
	RuleSingle:          "single element",
	RuleExclusive:       "mutually exclusive elements",
	RuleOrder:           "element order",
	RuleValue:           "element value",
	RuleChainIndex:      "chain index successor",
	RuleUnknownCritical: "unknown critical element",

	RuleObsoleteAlgorithm: "obsolete hash algorithm",
}

func (r StructureRule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("rule(%d)", byte(r))
}

// Violation describes a broken composition rule. It is attached as the extended error of a KsiInvalidStructure
// error (see (errors.KsiError).ExtError()).
type Violation struct {
	// Rule is the violated rule.
	Rule StructureRule
	// Path is the type path of the offending element, outermost first.
	Path []uint16
	// Details is a human readable description.
	Details string
}

// Error implements error interface.
func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	path := make([]string, len(v.Path))
	for i, p := range v.Path {
		path[i] = fmt.Sprintf("%x", p)
	}
	return fmt.Sprintf("TLV[%s]: %s (%s)", strings.Join(path, "."), v.Details, v.Rule)
}

// ViolationOf returns the structure violation carried by err, or nil.
func ViolationOf(err error) *Violation {
	var v *Violation
	if stderrors.As(err, &v) {
		return v
	}
	return nil
}

// NewViolation returns a KsiInvalidStructure error carrying a Violation.
func NewViolation(rule StructureRule, details string, path ...uint16) *errors.KsiError {
	v := &Violation{Rule: rule, Path: path, Details: details}
	return errors.New(errors.KsiInvalidStructure).SetExtError(v)
}

// within prefixes the violation path of err with the given type.
func within(err error, typ uint16) error {
	if v := ViolationOf(err); v != nil {
		v.Path = append([]uint16{typ}, v.Path...)
	}
	return err
}

// fields scans the children of a composite tag. The first failure is sticky; subsequent calls are no-ops.
type fields struct {
	tag *tlv.Tag
	err error
}

func scan(t *tlv.Tag, typ uint16, known ...uint16) *fields {
	f := &fields{tag: t}
	switch {
	case t == nil:
		f.err = errors.New(errors.KsiInvalidArgumentError)
	case t.Type != typ:
		f.err = NewViolation(RuleValue, fmt.Sprintf("unexpected type, expected 0x%x", typ), t.Type)
	case t.Kind() != tlv.KindComposite:
		f.err = NewViolation(RuleValue, "element must be composite", t.Type)
	default:
		for _, c := range t.Children() {
			if c.NonCritical || containsType(known, c.Type) {
				continue
			}
			f.err = NewViolation(RuleUnknownCritical, "unknown critical element", t.Type, c.Type)
			break
		}
	}
	return f
}

func containsType(list []uint16, typ uint16) bool {
	for _, v := range list {
		if v == typ {
			return true
		}
	}
	return false
}

func (f *fields) fail(rule StructureRule, details string, typ uint16) {
	if f.err == nil {
		f.err = NewViolation(rule, details, f.tag.Type, typ)
	}
}

// opt returns the element of the type, nil if absent. More than one occurrence is a violation.
func (f *fields) opt(typ uint16) *tlv.Tag {
	if f.err != nil {
		return nil
	}
	list := f.tag.ChildrenOf(typ)
	if len(list) > 1 {
		f.fail(RuleSingle, "element must not be repeated", typ)
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// one returns the mandatory single element of the type.
func (f *fields) one(typ uint16) *tlv.Tag {
	t := f.opt(typ)
	if t == nil {
		f.fail(RuleMandatory, "mandatory element is missing", typ)
	}
	return t
}

// list returns all elements of the type. Fewer than min occurrences is a violation.
func (f *fields) list(typ uint16, min int) []*tlv.Tag {
	if f.err != nil {
		return nil
	}
	l := f.tag.ChildrenOf(typ)
	if len(l) < min {
		f.fail(RuleMandatory, fmt.Sprintf("at least %d elements required", min), typ)
		return nil
	}
	return l
}

func (f *fields) uint(t *tlv.Tag) uint64 {
	if f.err != nil || t == nil {
		return 0
	}
	v, err := t.Uint64()
	if err != nil {
		f.fail(RuleValue, "element must be an integer", t.Type)
	}
	return v
}

// uintMax returns the integer value, failing if it exceeds max.
func (f *fields) uintMax(t *tlv.Tag, max uint64) uint64 {
	v := f.uint(t)
	if t != nil && v > max {
		f.fail(RuleValue, fmt.Sprintf("value %d exceeds %d", v, max), t.Type)
	}
	return v
}

func (f *fields) text(t *tlv.Tag) string {
	if f.err != nil || t == nil {
		return ""
	}
	v, err := t.Text()
	if err != nil {
		f.fail(RuleValue, "element must be a string", t.Type)
	}
	return v
}

func (f *fields) bytes(t *tlv.Tag) []byte {
	if f.err != nil || t == nil {
		return nil
	}
	v, err := t.Bytes()
	if err != nil {
		f.fail(RuleValue, "element must be an octet string", t.Type)
	}
	return v
}

func (f *fields) imprint(t *tlv.Tag) hash.Imprint {
	if f.err != nil || t == nil {
		return nil
	}
	v, err := t.Imprint()
	if err != nil || !v.IsValid() {
		f.fail(RuleValue, "element must be a valid imprint", t.Type)
	}
	return v
}

func (f *fields) algorithm(t *tlv.Tag) hash.Algorithm {
	v := f.uintMax(t, 0xff)
	if f.err != nil || t == nil {
		return hash.SHA_NA
	}
	algo := hash.Algorithm(v)
	if !algo.Defined() {
		f.fail(RuleValue, fmt.Sprintf("unknown hash algorithm 0x%02x", v), t.Type)
	}
	return algo
}

// sub projects a nested element, prefixing violations with the parent type.
func (f *fields) sub(t *tlv.Tag, project func(*tlv.Tag) error) {
	if f.err != nil || t == nil {
		return
	}
	if err := project(t); err != nil {
		f.err = within(err, f.tag.Type)
	}
}

func (f *fields) strings(typ uint16) []string {
	var tmp []string
	for _, t := range f.list(typ, 0) {
		tmp = append(tmp, f.text(t))
	}
	return tmp
}
