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
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/signature/verify/result"
)

// PolicyRule is a node of a policy graph.
type PolicyRule struct {
	// Rule or a nested *PolicyRule graph.
	Rule interface{}
	// Taken on OK.
	OnSuccess *PolicyRule
	// Taken on NA and FAIL.
	OnFail *PolicyRule
}

// Policy is a named graph of rules. When the graph ends with NA, the fallback policy is run.
type Policy interface {
	fmt.Stringer
	// Rules returns the entry point of the graph.
	Rules() *PolicyRule
	// Fallback returns the policy run after an NA result, or nil.
	Fallback() Policy
	// WithFallback returns a copy of the policy using the given fallback.
	WithFallback(Policy) Policy
	// Copy returns a copy of the policy without its fallback.
	Copy() Policy
	// Verify runs the policy and, if needed, its fallbacks.
	Verify(verCtx *VerificationContext) (result.Code, error)
}

type policyImpl struct {
	name     string
	rules    *PolicyRule
	fallback Policy
}

func (p *policyImpl) String() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (p *policyImpl) Rules() *PolicyRule {
	if p == nil {
		return nil
	}
	return p.rules
}

func (p *policyImpl) Fallback() Policy {
	if p == nil {
		return nil
	}
	return p.fallback
}

func (p *policyImpl) WithFallback(fallback Policy) Policy {
	if p == nil {
		return nil
	}
	return &policyImpl{name: p.name, rules: p.rules, fallback: fallback}
}

func (p *policyImpl) Copy() Policy {
	return p.WithFallback(nil)
}

func (p *policyImpl) Verify(verCtx *VerificationContext) (result.Code, error) {
	if p == nil || verCtx == nil || verCtx.result == nil {
		return result.NA, errors.New(errors.KsiInvalidArgumentError)
	}

	log.Debug("Running policy ", p)
	verCtx.result.policyResult = append(verCtx.result.policyResult, &PolicyResult{policy: p})
	code, err := p.rules.Verify(verCtx)
	if err != nil {
		return code, err
	}
	if !code.Conclusive() && p.fallback != nil {
		// Extender and publications file responses are not shared between policies.
		verCtx.temp = &verificationTemp{}
		if code, err = p.fallback.Verify(verCtx); err != nil {
			return code, err
		}
	}
	verCtx.signature.verificationResult = verCtx.result
	return code, nil
}

// Verify walks the graph starting at pr and returns the code of the last rule run.
func (pr *PolicyRule) Verify(verCtx *VerificationContext) (result.Code, error) {
	if pr == nil || verCtx == nil || verCtx.result == nil {
		return result.NA, errors.New(errors.KsiInvalidArgumentError)
	}

	code := result.NA
	for node := pr; node != nil; {
		var err error
		if code, err = node.apply(verCtx); err != nil {
			return code, err
		}
		switch code {
		case result.OK:
			node = node.OnSuccess
		case result.NA, result.FAIL:
			node = node.OnFail
		default:
			return result.NA, errors.New(errors.KsiInvalidStateError).
				AppendMessage(fmt.Sprintf("Unexpected result code %s.", code))
		}
	}
	return code, nil
}

// apply runs the node without following its transitions.
func (pr *PolicyRule) apply(verCtx *VerificationContext) (result.Code, error) {
	switch rule := pr.Rule.(type) {
	case Rule:
		res, err := rule.Verify(verCtx)
		if res == nil {
			return result.NA, errors.New(errors.KsiInvalidStateError).AppendMessage("Rule returned no result.")
		}
		if err != nil {
			log.Debug("Rule ", rule, " aborted: ", err)
			return res.resCode, err
		}
		verCtx.result.record(res)
		log.Debug(res)
		return res.resCode, nil
	case *PolicyRule:
		return rule.Verify(verCtx)
	default:
		return result.NA, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unsupported policy node %T.", rule))
	}
}

// step is one row of a policy table. On OK control passes to the next row, on NA or FAIL the
// policy ends. Either transition can be redirected to a labelled row.
type step struct {
	// Rule or *PolicyRule.
	rule   interface{}
	label  string
	onOK   string
	onFail string
}

// done as a jump target ends the policy.
const done = "."

// chain links the rows of a policy table into a PolicyRule graph and returns its entry point.
func chain(rows ...step) *PolicyRule {
	nodes := make([]PolicyRule, len(rows))
	labels := make(map[string]*PolicyRule)
	for i, r := range rows {
		nodes[i].Rule = r.rule
		if r.label != "" {
			labels[r.label] = &nodes[i]
		}
	}
	jump := func(label string) *PolicyRule {
		if label == "" || label == done {
			return nil
		}
		n, ok := labels[label]
		if !ok {
			panic("policy table refers to an undefined label: " + label)
		}
		return n
	}
	for i, r := range rows {
		switch {
		case r.onOK != "":
			nodes[i].OnSuccess = jump(r.onOK)
		case i+1 < len(rows):
			nodes[i].OnSuccess = &nodes[i+1]
		}
		nodes[i].OnFail = jump(r.onFail)
	}
	return &nodes[0]
}

// Component checks without external inputs. Gates send a signature that lacks an optional component
// past the checks of that component.
var internalRules = chain(
	step{rule: DocumentHashPresenceRule, onFail: "input"},
	step{rule: DocumentHashAlgorithmVerificationRule},
	step{rule: DocumentHashVerificationRule},
	step{rule: InputHashLevelVerificationRule, label: "input"},
	step{rule: InputHashAlgorithmVerificationRule},
	step{rule: Rfc3161RecordPresenceRule, onFail: "aggregation"},
	step{rule: Rfc3161RecordHashAlgorithmVerificationRule},
	step{rule: Rfc3161RecordOutputHashAlgorithmVerificationRule},
	step{rule: AggregationHashChainIndexContinuationVerificationRule, label: "aggregation"},
	step{rule: AggregationChainMetaDataVerificationRule},
	step{rule: AggregationChainHashAlgorithmVerificationRule},
	step{rule: AggregationHashChainConsistencyVerificationRule},
	step{rule: AggregationHashChainTimeConsistencyVerificationRule},
	step{rule: AggregationHashChainIndexConsistencyVerificationRule},
	step{rule: CalendarHashChainPresenceRule, onFail: "ok"},
	step{rule: CalendarHashChainInputHashVerificationRule},
	step{rule: CalendarHashChainAggregationTimeVerificationRule},
	step{rule: CalendarHashChainRegistrationTimeVerificationRule},
	step{rule: CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule},
	step{rule: PublicationRecordPresenceRule, onFail: "auth"},
	step{rule: PublicationRecordPublicationTimeVerificationRule},
	step{rule: PublicationRecordPublicationHashVerificationRule, onOK: done},
	step{rule: CalendarAuthRecordPresenceRule, label: "auth", onFail: "ok"},
	step{rule: CalendarAuthenticationRecordAggregationTimeVerificationRule},
	step{rule: CalendarAuthenticationRecordAggregationHashVerificationRule, onOK: done},
	step{rule: OkRule, label: "ok"},
)

// A present publication record must match the user publication, otherwise the signature is extended to it.
var userPublicationRules = chain(
	step{rule: UserProvidedPublicationExistenceRule},
	step{rule: PublicationRecordPresenceRule, onFail: "extend"},
	step{rule: UserProvidedPublicationTimeVerificationRule, onFail: "extend"},
	step{rule: UserProvidedPublicationHashVerificationRule},
	step{rule: SignatureCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule, onOK: done},
	step{rule: UserProvidedPublicationCreationTimeVerificationRule, label: "extend"},
	step{rule: ExtendingPermittedRule},
	step{rule: UserProvidedPublicationExtendToPublication},
	step{rule: UserProvidedPublicationExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule},
	step{rule: UserProvidedPublicationHashMatchesExtendedResponseVerificationRule},
	step{rule: UserProvidedPublicationTimeMatchesExtendedResponseVerificationRule},
	step{rule: UserProvidedPublicationExtendedSignatureInputHashVerificationRule},
)

// A publication record found in the file is checked directly, otherwise the signature is extended to the
// first suitable publication of the file.
var publicationsFileRules = chain(
	step{rule: PublicationRecordPresenceRule, onFail: "extend"},
	step{rule: PublicationsFileContainsSignaturePublicationVerificationRule, onFail: "extend"},
	step{rule: PublicationsFileSignaturePublicationHashVerificationRule},
	step{rule: SignatureCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule, onOK: done},
	step{rule: PublicationsFileContainsSuitablePublicationVerificationRule, label: "extend"},
	step{rule: ExtendingPermittedRule},
	step{rule: PublicationsFileExtendToPublication},
	step{rule: PubFileExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule},
	step{rule: PublicationsFilePublicationHashMatchesExtenderResponseVerificationRule},
	step{rule: PublicationsFilePublicationTimeMatchesExtendedResponseVerificationRule},
	step{rule: PublicationsFileExtendedSignatureInputHashVerificationRule},
)

var keyRules = chain(
	step{rule: CalendarHashChainExistenceRule},
	step{rule: CalendarHashChainAlgorithmDeprecatedRule},
	step{rule: CalendarAuthenticationRecordExistenceRule},
	step{rule: CertificateExistenceRule},
	step{rule: CertificateValidityRule},
	step{rule: CalendarAuthenticationRecordSignatureVerificationRule},
)

// A signature without a calendar chain is extended to the calendar head. Otherwise it is extended to its own
// publication time and the fresh chain is compared with the one it carries.
var calendarRules = chain(
	step{rule: CalendarHashChainPresenceRule, onFail: "head"},
	step{rule: ExtendSignatureCalendarChainInputHashToSamePubTime},
	step{rule: PublicationRecordPresenceRule, onFail: "links"},
	step{rule: ExtendedSignatureCalendarChainRootHashVerificationRule, onOK: "compare"},
	step{rule: ExtendedSignatureCalendarHashChainRightLinksMatchesVerificationRule, label: "links", onOK: "compare"},
	step{rule: ExtendSignatureCalendarChainInputHashToHead, label: "head"},
	step{rule: ExtendedSignatureCalendarChainInputHashVerificationRule, label: "compare"},
	step{rule: ExtendedSignatureCalendarChainAggregationTimeVerificationRule},
)

// afterInternal prefixes a policy table with the internal checks.
func afterInternal(rules *PolicyRule) *PolicyRule {
	return chain(step{rule: internalRules}, step{rule: rules})
}

var (
	// FailPolicy contains only one Rule (FailRule) with no further action.
	FailPolicy = &policyImpl{name: "FailPolicy", rules: chain(step{rule: FailRule})}

	// SuccessPolicy contains only one Rule (OkRule) with no further action.
	SuccessPolicy = &policyImpl{name: "SuccessPolicy", rules: chain(step{rule: OkRule})}

	// InternalVerificationPolicy verifies the consistency of the signature components without any data from
	// the user: the aggregation chains, and the calendar chain, calendar authentication record and publication
	// record where present. A document hash, if provided, is verified as well.
	//
	// Verification context options:
	//   VerCtxOptDocumentHash       - Document hash (optional).
	//   VerCtxOptInputHashLevel     - Input hash level (optional).
	InternalVerificationPolicy = &policyImpl{name: "InternalVerificationPolicy", rules: internalRules}

	// CalendarBasedVerificationPolicy runs the internal checks and then extends the signature, either to the
	// calendar head when it has no calendar chain or to its own publication time. The extended chain must agree
	// with the signature. The input signature is not changed.
	//
	// Verification context options:
	//   VerCtxOptExtendingService - Extending service (mandatory).
	//   VerCtxOptDocumentHash     - Document hash (optional).
	//   VerCtxOptInputHashLevel   - Input hash level (optional).
	CalendarBasedVerificationPolicy = &policyImpl{
		name:  "CalendarBasedVerificationPolicy",
		rules: afterInternal(calendarRules),
	}

	// KeyBasedVerificationPolicy runs the internal checks and then verifies the calendar authentication record
	// PKI signature with a certificate from the trusted publications file. The signature must carry a calendar
	// authentication record for a conclusive result.
	//
	// Verification context options:
	//   VerCtxOptPublicationsFile        - Trusted publications file, or a handler providing one (mandatory).
	//   VerCtxOptPublicationsFileHandler
	//   VerCtxOptDocumentHash            - Document hash (optional).
	//   VerCtxOptInputHashLevel          - Input hash level (optional).
	KeyBasedVerificationPolicy = &policyImpl{
		name:  "KeyBasedVerificationPolicy",
		rules: afterInternal(keyRules),
	}

	// PublicationsFileBasedVerificationPolicy runs the internal checks and then looks the signature publication
	// record up in the trusted publications file. Without a matching record the signature is extended to a
	// suitable publication of the file, which requires extending to be permitted. The input signature is not
	// changed.
	//
	// Verification context options:
	//   VerCtxOptPublicationsFile        - Trusted publications file, or a handler providing one (mandatory).
	//   VerCtxOptPublicationsFileHandler
	//   VerCtxOptExtendingPermitted      - Permit extending (optional).
	//   VerCtxOptExtendingService        - Extending service (optional).
	//   VerCtxOptDocumentHash            - Document hash (optional).
	//   VerCtxOptInputHashLevel          - Input hash level (optional).
	PublicationsFileBasedVerificationPolicy = &policyImpl{
		name:  "PublicationsFileBasedVerificationPolicy",
		rules: afterInternal(publicationsFileRules),
	}

	// UserProvidedPublicationBasedVerificationPolicy runs the internal checks and then verifies the signature
	// against a publication given by the user. Without a matching publication record the signature is extended
	// to the user publication, which requires extending to be permitted. The input signature is not changed.
	//
	// Verification context options:
	//   VerCtxOptUserPublication    - User publication (mandatory).
	//   VerCtxOptExtendingPermitted - Permit extending (optional).
	//   VerCtxOptExtendingService   - Extending service (optional).
	//   VerCtxOptDocumentHash       - Document hash (optional).
	//   VerCtxOptInputHashLevel     - Input hash level (optional).
	UserProvidedPublicationBasedVerificationPolicy = &policyImpl{
		name:  "UserProvidedPublicationBasedVerificationPolicy",
		rules: afterInternal(userPublicationRules),
	}

	// DefaultVerificationPolicy runs the internal checks followed by calendar-based verification. An
	// inconclusive result, e.g. with no reachable extender, falls back to key-based verification and then to
	// publications file based verification. The first conclusive result is final.
	//
	// Verification context options:
	//   VerCtxOptExtendingService        - Extending service (optional).
	//   VerCtxOptPublicationsFile        - Trusted publications file, or a handler providing one (optional).
	//   VerCtxOptPublicationsFileHandler
	//   VerCtxOptExtendingPermitted      - Permit extending (optional).
	//   VerCtxOptDocumentHash            - Document hash (optional).
	//   VerCtxOptInputHashLevel          - Input hash level (optional).
	DefaultVerificationPolicy = &policyImpl{
		name:     "DefaultPolicy",
		rules:    chain(step{rule: internalRules}, step{rule: ExtendingServicePresenceRule}, step{rule: calendarRules}),
		fallback: defKeyBasedPolicy,
	}

	defKeyBasedPolicy = &policyImpl{
		name:     "KeyBasedVerificationPolicy",
		rules:    chain(step{rule: PublicationsFilePresenceRule}, step{rule: keyRules}),
		fallback: defPubFileBasedPolicy,
	}

	defPubFileBasedPolicy = &policyImpl{
		name:  "PublicationsFileBasedVerificationPolicy",
		rules: chain(step{rule: PublicationsFilePresenceRule}, step{rule: publicationsFileRules}),
	}
)
