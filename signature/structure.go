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

package signature

import (
	"fmt"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/tlv"
)

// StructureError is attached as the extended error of a KsiInvalidStructure error returned by the signature
// builders. It carries the violated rule together with the components which were already decoded.
type StructureError struct {
	*pdu.Violation
	// Partial is the signature projected up to the violation. Its fields may be incomplete.
	Partial *Signature
}

// Unwrap returns the underlying violation.
func (e *StructureError) Unwrap() error {
	if e == nil || e.Violation == nil {
		return nil
	}
	return e.Violation
}

// StructureErrorOf returns the structure error carried by err, or nil.
func StructureErrorOf(err error) *StructureError {
	ksiErr := errors.KsiErr(err)
	if ksiErr == nil {
		return nil
	}
	if se, ok := ksiErr.ExtError().(*StructureError); ok {
		return se
	}
	return nil
}

// projectSignature validates the composition of the signature element and projects it into its components.
func projectSignature(t *tlv.Tag) (*Signature, error) {
	sig := &Signature{tag: t}
	if err := sig.project(); err != nil {
		ksiErr := errors.KsiErr(err)
		if v := pdu.ViolationOf(err); v != nil {
			ksiErr.SetExtError(&StructureError{Violation: v, Partial: sig})
		}
		return nil, ksiErr
	}
	return sig, nil
}

func (s *Signature) project() error {
	t := s.tag
	switch {
	case t == nil:
		return errors.New(errors.KsiInvalidArgumentError)
	case t.Type != pdu.TypeSignature:
		return pdu.NewViolation(pdu.RuleValue, fmt.Sprintf("unexpected signature type 0x%x", t.Type), t.Type)
	case t.Kind() != tlv.KindComposite:
		return pdu.NewViolation(pdu.RuleValue, "signature must be composite", t.Type)
	}

	var (
		calChains, pubRecs, authRecs, rfcRecs []*tlv.Tag
	)
	for _, c := range t.Children() {
		switch c.Type {
		case pdu.TypeAggregationChain:
			chain, err := pdu.AggregationChainFromTag(c)
			if err != nil {
				return within(err)
			}
			s.aggrChainList = append(s.aggrChainList, chain)
		case pdu.TypeCalendarChain:
			calChains = append(calChains, c)
		case pdu.TypePublicationRec:
			pubRecs = append(pubRecs, c)
		case pdu.TypeCalendarAuthRec:
			authRecs = append(authRecs, c)
		case pdu.TypeRFC3161:
			rfcRecs = append(rfcRecs, c)
		default:
			if !c.NonCritical {
				return pdu.NewViolation(pdu.RuleUnknownCritical, "unknown critical element", t.Type, c.Type)
			}
		}
	}

	if len(s.aggrChainList) == 0 {
		return pdu.NewViolation(pdu.RuleMandatory, "aggregation hash chain is missing", t.Type, pdu.TypeAggregationChain)
	}
	for typ, l := range map[uint16][]*tlv.Tag{
		pdu.TypeCalendarChain:   calChains,
		pdu.TypePublicationRec:  pubRecs,
		pdu.TypeCalendarAuthRec: authRecs,
		pdu.TypeRFC3161:         rfcRecs,
	} {
		if len(l) > 1 {
			return pdu.NewViolation(pdu.RuleSingle, "element must not be repeated", t.Type, typ)
		}
	}
	if len(pubRecs) != 0 && len(authRecs) != 0 {
		return pdu.NewViolation(pdu.RuleExclusive,
			"publication record and calendar authentication record are mutually exclusive", t.Type, pdu.TypeCalendarAuthRec)
	}
	if len(calChains) == 0 {
		if len(pubRecs) != 0 {
			return pdu.NewViolation(pdu.RuleMandatory, "publication record requires calendar hash chain",
				t.Type, pdu.TypeCalendarChain)
		}
		if len(authRecs) != 0 {
			return pdu.NewViolation(pdu.RuleMandatory, "calendar authentication record requires calendar hash chain",
				t.Type, pdu.TypeCalendarChain)
		}
	}

	var err error
	if len(calChains) != 0 {
		if s.calChain, err = pdu.CalendarChainFromTag(calChains[0]); err != nil {
			return within(err)
		}
	}
	if len(pubRecs) != 0 {
		if s.publication, err = pdu.PublicationRecFromTag(pubRecs[0]); err != nil {
			return within(err)
		}
	}
	if len(authRecs) != 0 {
		if s.calAuthRec, err = pdu.CalendarAuthRecFromTag(authRecs[0]); err != nil {
			return within(err)
		}
	}
	if len(rfcRecs) != 0 {
		if s.rfc3161, err = pdu.RFC3161FromTag(rfcRecs[0]); err != nil {
			return within(err)
		}
	}

	sortChains(s.aggrChainList)
	if err := s.aggrChainList.VerifyIndexSuccession(); err != nil {
		return within(err)
	}
	return s.verifyAlgorithms()
}

// verifyAlgorithms rejects hash algorithms that were obsolete at the aggregation time of the chain.
func (s *Signature) verifyAlgorithms() error {
	for _, c := range s.aggrChainList {
		at := c.AggregationTime()
		if c.AggregationAlgo().StatusAtTime(at) == hash.Obsolete {
			return pdu.NewViolation(pdu.RuleObsoleteAlgorithm,
				fmt.Sprintf("aggregation algorithm %s is obsolete", c.AggregationAlgo()),
				pdu.TypeSignature, pdu.TypeAggregationChain, 0x06)
		}
		if c.InputHash().Algorithm().StatusAtTime(at) == hash.Obsolete {
			return pdu.NewViolation(pdu.RuleObsoleteAlgorithm,
				fmt.Sprintf("input hash algorithm %s is obsolete", c.InputHash().Algorithm()),
				pdu.TypeSignature, pdu.TypeAggregationChain, 0x05)
		}
	}
	return nil
}

// within prefixes the violation path of err with the signature type.
func within(err error) error {
	if v := pdu.ViolationOf(err); v != nil {
		v.Path = append([]uint16{pdu.TypeSignature}, v.Path...)
	}
	return err
}
