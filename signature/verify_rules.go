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
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/publications"
	"github.com/guardtime/goksi-multisig/signature/verify/reserr"
	"github.com/guardtime/goksi-multisig/signature/verify/result"
)

// Rule is the verification Rule common interface.
type Rule interface {
	fmt.Stringer
	// Verify performs Rule verification.
	Verify(*VerificationContext) (*RuleResult, error)
}

// RuleFunc is the verification function of a rule. A non-nil error aborts the policy run.
type RuleFunc func(*VerificationContext) (*RuleResult, error)

type namedRule struct {
	name string
	fn   RuleFunc
}

// NewRule returns a named verification rule.
func NewRule(name string, fn RuleFunc) Rule {
	return &namedRule{name: name, fn: fn}
}

func (r *namedRule) String() string {
	if r == nil {
		return ""
	}
	return r.name
}

func (r *namedRule) Verify(context *VerificationContext) (*RuleResult, error) {
	if r == nil || r.fn == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if context == nil || context.signature == nil {
		err := errors.New(errors.KsiInvalidArgumentError)
		return newRuleResult(r, result.NA).setErrCode(reserr.Gen02).setStatusErr(err), err
	}

	res, err := r.fn(context)
	if res == nil {
		res = newRuleResult(r, result.NA).setErrCode(reserr.Gen02)
	}
	res.rule = r
	if err != nil && res.statusErr == nil {
		res.statusErr = err
	}
	return res, err
}

func ok() (*RuleResult, error) {
	return newRuleResult(nil, result.OK), nil
}

func na(c reserr.Code) (*RuleResult, error) {
	return newRuleResult(nil, result.NA).setErrCode(c), nil
}

func fail(c reserr.Code) (*RuleResult, error) {
	return newRuleResult(nil, result.FAIL).setErrCode(c), nil
}

// abort ends the policy run with the error.
func abort(err error) (*RuleResult, error) {
	return newRuleResult(nil, result.NA).setErrCode(reserr.Gen02).setStatusErr(err), err
}

// inconclusive marks the result as NA(GEN-02), keeping the cause for the report.
func inconclusive(err error) (*RuleResult, error) {
	return newRuleResult(nil, result.NA).setErrCode(reserr.Gen02).setStatusErr(err), nil
}

func missing(what string) (*RuleResult, error) {
	return abort(errors.New(errors.KsiVerificationPrecondition).AppendMessage(fmt.Sprintf("Missing %s.", what)))
}

// algorithmTrusted reports whether the algorithm was neither deprecated nor obsolete at the given time.
func algorithmTrusted(alg hash.Algorithm, at time.Time) (bool, error) {
	switch alg.StatusAtTime(at) {
	case hash.Normal:
		return true, nil
	case hash.Deprecated, hash.Obsolete:
		return false, nil
	default:
		return false, errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage(fmt.Sprintf("Unknown hash algorithm: %s.", alg))
	}
}

// checkAlgorithms returns FAIL(code) if any of the algorithms was not trusted at the given time.
func checkAlgorithms(code reserr.Code, at time.Time, algs ...hash.Algorithm) (*RuleResult, error) {
	for _, alg := range algs {
		trusted, err := algorithmTrusted(alg, at)
		if err != nil {
			return abort(err)
		}
		if !trusted {
			log.Info("Hash algorithm ", alg, " was not trusted at ", at)
			return fail(code)
		}
	}
	return ok()
}

/*
----------------------------------------
FailPolicy and SuccessPolicy rules
----------------------------------------
*/

var (
	// FailRule always returns verification code 'FAIL(None)'.
	FailRule = NewRule("FailRule", func(*VerificationContext) (*RuleResult, error) {
		return fail(reserr.ErrNA)
	})

	// OkRule always returns verification code 'OK'.
	OkRule = NewRule("OkRule", func(*VerificationContext) (*RuleResult, error) {
		return ok()
	})
)

/*
----------------------------------------
InternalVerificationPolicy rules
----------------------------------------
*/

var (
	// DocumentHashPresenceRule verifies that document hash has been provided.
	// Returns OK or NA(None).
	DocumentHashPresenceRule = NewRule("DocumentHashPresenceRule", func(context *VerificationContext) (*RuleResult, error) {
		if context.documentHash == nil {
			return na(reserr.ErrNA)
		}
		return ok()
	})

	// DocumentHashAlgorithmVerificationRule verifies that provided document hash algorithm does match with
	// the hash algorithm of the input hash of the first aggregation chain or RFC-3161 record if present.
	// Returns OK or FAIL(GEN-04).
	DocumentHashAlgorithmVerificationRule = NewRule("DocumentHashAlgorithmVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.documentHash == nil {
				return missing("document hash")
			}
			sigDocHsh, err := context.signature.DocumentHash()
			if err != nil {
				return abort(err)
			}
			if context.documentHash.Algorithm() != sigDocHsh.Algorithm() {
				return fail(reserr.Gen04)
			}
			return ok()
		})

	// DocumentHashVerificationRule verifies that provided document hash does match with the input hash of
	// the first aggregation hash chain or RFC-3161 record if present.
	// Returns OK or FAIL(GEN-01).
	DocumentHashVerificationRule = NewRule("DocumentHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.documentHash == nil {
				return missing("document hash")
			}
			sigDocHsh, err := context.signature.DocumentHash()
			if err != nil {
				return abort(err)
			}
			if !hash.Equal(context.documentHash, sigDocHsh) {
				return fail(reserr.Gen01)
			}
			return ok()
		})

	// InputHashLevelVerificationRule verifies that document input level (default 0) is not greater than the
	// initial level correction (always 0 for RFC-3161 record) of the first hash chain.
	// Returns OK or FAIL(GEN-03).
	InputHashLevelVerificationRule = NewRule("InputHashLevelVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.rfc3161 != nil {
				if context.inputHashLvl > 0 {
					return fail(reserr.Gen03)
				}
				return ok()
			}

			chainLinks := context.signature.aggrChainList[0].ChainLinks()
			if len(chainLinks) == 0 {
				return missing("aggregation hash chain links")
			}
			if uint64(context.inputHashLvl) > chainLinks[0].LevelCorrection() {
				return fail(reserr.Gen03)
			}
			return ok()
		})

	// InputHashAlgorithmVerificationRule verifies that the input hash algorithm of the signature was trusted at
	// the signing time.
	// Returns OK or FAIL(INT-13).
	InputHashAlgorithmVerificationRule = NewRule("InputHashAlgorithmVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			docHsh, err := context.signature.DocumentHash()
			if err != nil {
				return abort(err)
			}
			at, err := context.signature.SigningTime()
			if err != nil {
				return abort(err)
			}
			return checkAlgorithms(reserr.Int13, at, docHsh.Algorithm())
		})

	// Rfc3161RecordPresenceRule verifies that the signature contains RFC3161 record.
	// Returns OK or NA(None).
	Rfc3161RecordPresenceRule = NewRule("Rfc3161RecordPresenceRule", func(context *VerificationContext) (*RuleResult, error) {
		if context.signature.rfc3161 == nil {
			return na(reserr.ErrNA)
		}
		return ok()
	})

	// Rfc3161RecordHashAlgorithmVerificationRule verifies that the RFC-3161 record uses internally hash functions
	// that were trusted at the aggregation time.
	// Returns OK or FAIL(INT-14).
	Rfc3161RecordHashAlgorithmVerificationRule = NewRule("Rfc3161RecordHashAlgorithmVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			rfc3161 := context.signature.rfc3161
			if rfc3161 == nil {
				return missing("RFC3161 record")
			}
			return checkAlgorithms(reserr.Int14, rfc3161.AggregationTime(), rfc3161.TstInfoAlgo(), rfc3161.SigAttrAlgo())
		})

	// Rfc3161RecordOutputHashAlgorithmVerificationRule verifies that the RFC-3161 record output hash algorithm (taken
	// from the input hash of the first aggregation hash chain) was trusted at the aggregation time.
	// Returns OK or FAIL(INT-17).
	Rfc3161RecordOutputHashAlgorithmVerificationRule = NewRule("Rfc3161RecordOutputHashAlgorithmVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			rfc3161 := context.signature.rfc3161
			if rfc3161 == nil {
				return missing("RFC3161 record")
			}
			inputHash := context.signature.aggrChainList[0].InputHash()
			return checkAlgorithms(reserr.Int17, rfc3161.AggregationTime(), inputHash.Algorithm())
		})

	// AggregationHashChainIndexContinuationVerificationRule verifies that every chain index is the successor of the
	// index of the chain above it, and that the RFC-3161 record chain index equals the index of the first chain.
	// Returns OK or FAIL(INT-12).
	AggregationHashChainIndexContinuationVerificationRule = NewRule("AggregationHashChainIndexContinuationVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			aggrChains := context.signature.aggrChainList

			if rfc3161 := context.signature.rfc3161; rfc3161 != nil {
				if !equalIndex(rfc3161.ChainIndex(), aggrChains[0].ChainIndex()) {
					log.Info("Aggregation hash chain and RFC3161 chain index mismatch.")
					return fail(reserr.Int12)
				}
			}

			if err := aggrChains.VerifyIndexSuccession(); err != nil {
				log.Info("Aggregation hash chain index is not continuation of the upper chain index: ", err)
				return fail(reserr.Int12)
			}
			return ok()
		})

	// AggregationChainMetaDataVerificationRule verifies the meta-data structures in the aggregation hash chain.
	// This includes padding of the meta-data and the fact that the meta-data can not be interpreted as an imprint.
	// Returns OK or FAIL(INT-11).
	AggregationChainMetaDataVerificationRule = NewRule("AggregationChainMetaDataVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			for _, chain := range context.signature.aggrChainList {
				for _, link := range chain.ChainLinks() {
					md := link.MetaData()
					if md == nil {
						continue
					}
					if err := md.ValidatePadding(); err != nil {
						log.Info("Invalid metadata: ", md)
						return newRuleResult(nil, result.FAIL).setErrCode(reserr.Int11).setStatusErr(err), nil
					}
				}
			}
			return ok()
		})

	// AggregationChainHashAlgorithmVerificationRule verifies that the aggregation hash chain uses hash algorithm that
	// was trusted at the aggregation time to aggregate the sibling hashes.
	// Returns OK or FAIL(INT-15).
	AggregationChainHashAlgorithmVerificationRule = NewRule("AggregationChainHashAlgorithmVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			for _, chain := range context.signature.aggrChainList {
				if res, err := checkAlgorithms(reserr.Int15, chain.AggregationTime(), chain.AggregationAlgo()); err != nil ||
					res.resCode != result.OK {
					return res, err
				}
			}
			return ok()
		})

	// AggregationHashChainConsistencyVerificationRule verifies that all aggregation hash chains are consistent (e.g.
	// previous aggregation output hash equals to current aggregation chain input hash).
	// Returns OK or FAIL(INT-01).
	AggregationHashChainConsistencyVerificationRule = NewRule("AggregationHashChainConsistencyVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			var (
				hsh hash.Imprint
				lvl = context.inputHashLvl
				err error
			)
			for i, chain := range context.signature.aggrChainList {
				inputHash := chain.InputHash()

				if i == 0 && context.signature.rfc3161 != nil {
					if hsh, err = context.signature.rfc3161.OutputHash(inputHash.Algorithm()); err != nil {
						return abort(errors.KsiErr(err).AppendMessage("Unable to get RFC3161 record output hash."))
					}
				}
				if len(hsh) != 0 && !hash.Equal(hsh, inputHash) {
					log.Info(fmt.Sprintf("AggrChain[%d] input hash mismatch.", i))
					log.Info("... prev hash : ", hsh)
					log.Info("... input hash: ", inputHash)
					return fail(reserr.Int01)
				}
				if hsh, lvl, err = chain.Aggregate(lvl); err != nil {
					return newRuleResult(nil, result.FAIL).setErrCode(reserr.Int01).setStatusErr(err), nil
				}
			}
			context.temp.aggregationOutputHash = hsh
			return ok()
		})

	// AggregationHashChainTimeConsistencyVerificationRule verifies that the aggregation time of every chain matches
	// the time of the previous chain, or of the RFC-3161 record.
	// Returns OK or FAIL(INT-02).
	AggregationHashChainTimeConsistencyVerificationRule = NewRule("AggregationHashChainTimeConsistencyVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			aggrChains := context.signature.aggrChainList
			aggrTime := aggrChains[0].AggregationTime()

			if rfc3161 := context.signature.rfc3161; rfc3161 != nil && !rfc3161.AggregationTime().Equal(aggrTime) {
				return fail(reserr.Int02)
			}
			for _, chain := range aggrChains[1:] {
				if !chain.AggregationTime().Equal(aggrTime) {
					log.Info("Aggregation hash chains from different aggregation rounds.")
					return fail(reserr.Int02)
				}
			}
			return ok()
		})

	// AggregationHashChainIndexConsistencyVerificationRule verifies that the shape of the aggregation hash chain
	// matches the chain index.
	// Returns OK or FAIL(INT-10).
	AggregationHashChainIndexConsistencyVerificationRule = NewRule("AggregationHashChainIndexConsistencyVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			for _, chain := range context.signature.aggrChainList {
				calcShape, err := chain.CalculateShape()
				if err != nil {
					err = errors.KsiErr(err).AppendMessage("Failed to calculate aggregation hash chain shape.")
					return newRuleResult(nil, result.FAIL).setErrCode(reserr.Int10).setStatusErr(err), nil
				}
				chainIndex := chain.ChainIndex()
				if calcShape != chainIndex[len(chainIndex)-1] {
					log.Info("Aggregation hash chain index does not match with aggregation hash chain shape.")
					return fail(reserr.Int10)
				}
			}
			return ok()
		})

	// CalendarHashChainPresenceRule verifies that the signature contains calendar hash chain.
	// Returns OK or NA(None).
	CalendarHashChainPresenceRule = NewRule("CalendarHashChainPresenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calChain == nil {
				return na(reserr.ErrNA)
			}
			return ok()
		})

	// CalendarHashChainInputHashVerificationRule verifies that calendar hash chain input hash does
	// match with the aggregation hash chain list root hash.
	// Returns OK or FAIL(INT-03).
	CalendarHashChainInputHashVerificationRule = NewRule("CalendarHashChainInputHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calChain := context.signature.calChain
			if calChain == nil {
				return missing("calendar hash chain")
			}
			hsh, err := context.aggregationHashChainOutputHash()
			if err != nil {
				return abort(err)
			}
			if !hash.Equal(calChain.InputHash(), hsh) {
				return fail(reserr.Int03)
			}
			return ok()
		})

	// CalendarHashChainAggregationTimeVerificationRule verifies that calendar hash chain aggregation
	// time (if not present use publication time instead) does match with the last aggregation hash
	// chain aggregation time.
	// Returns OK or FAIL(INT-04).
	CalendarHashChainAggregationTimeVerificationRule = NewRule("CalendarHashChainAggregationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calChain := context.signature.calChain
			if calChain == nil {
				return missing("calendar hash chain")
			}
			aggrChains := context.signature.aggrChainList
			if !calChain.AggregationTime().Equal(aggrChains[len(aggrChains)-1].AggregationTime()) {
				return fail(reserr.Int04)
			}
			return ok()
		})

	// CalendarHashChainRegistrationTimeVerificationRule verifies that calendar hash chain aggregation time and
	// the aggregation time calculated from the shape of the chain do match.
	// Returns OK or FAIL(INT-05).
	CalendarHashChainRegistrationTimeVerificationRule = NewRule("CalendarHashChainRegistrationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calChain := context.signature.calChain
			if calChain == nil {
				return missing("calendar hash chain")
			}
			calcTime, err := calChain.CalculateAggregationTime()
			if err != nil {
				if errors.Is(err, errors.KsiInvalidFormatError) {
					err = errors.KsiErr(err).AppendMessage("Failed to calculate aggregation time.")
					return newRuleResult(nil, result.FAIL).setErrCode(reserr.Int05).setStatusErr(err), nil
				}
				return abort(err)
			}
			if !calChain.AggregationTime().Equal(calcTime) {
				return fail(reserr.Int05)
			}
			return ok()
		})

	// CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule verifies that none of the calendar hash chain
	// left link sibling hash algorithms was obsolete at the publication time.
	// Returns OK or FAIL(INT-16).
	CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule = NewRule("CalendarChainHashAlgorithmObsoleteAtPubTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calChain := context.signature.calChain
			if calChain == nil {
				return missing("calendar hash chain")
			}
			pubTime := calChain.PublicationTime()
			for _, link := range calChain.ChainLinks() {
				if !link.IsLeft() {
					continue
				}
				switch link.SiblingHash().Algorithm().StatusAtTime(pubTime) {
				case hash.Unknown:
					return abort(errors.New(errors.KsiUnknownHashAlgorithm).
						AppendMessage(fmt.Sprint("Calendar sibling hash contains unknown hash algorithm: ", link.SiblingHash())))
				case hash.Obsolete:
					return fail(reserr.Int16)
				}
			}
			return ok()
		})

	// PublicationRecordPresenceRule verifies that the signature contains publication record.
	// Returns OK or NA(None).
	PublicationRecordPresenceRule = NewRule("PublicationRecordPresenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.publication == nil {
				return na(reserr.ErrNA)
			}
			return ok()
		})

	// PublicationRecordPublicationTimeVerificationRule verifies that publication time from publication record and
	// calendar hash chain publication time do match.
	// Returns OK or FAIL(INT-07).
	PublicationRecordPublicationTimeVerificationRule = NewRule("PublicationRecordPublicationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return matchCalendarPublication(context, context.signature.publication.PublicationData(),
				reserr.Int07, reserr.ErrNA)
		})

	// PublicationRecordPublicationHashVerificationRule verifies that publication hash from publication record and
	// calendar hash chain root hash do match.
	// Returns OK or FAIL(INT-09).
	PublicationRecordPublicationHashVerificationRule = NewRule("PublicationRecordPublicationHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return matchCalendarPublication(context, context.signature.publication.PublicationData(),
				reserr.ErrNA, reserr.Int09)
		})

	// CalendarAuthRecordPresenceRule verifies that the signature contains calendar authentication record.
	// Returns OK or NA(None).
	CalendarAuthRecordPresenceRule = NewRule("CalendarAuthRecordPresenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calAuthRec == nil {
				return na(reserr.ErrNA)
			}
			return ok()
		})

	// CalendarAuthenticationRecordAggregationTimeVerificationRule verifies that publication time from calendar
	// authentication record and calendar hash chain publication time do match.
	// Returns OK or FAIL(INT-06).
	CalendarAuthenticationRecordAggregationTimeVerificationRule = NewRule("CalendarAuthenticationRecordAggregationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return matchCalendarPublication(context, context.signature.calAuthRec.PublicationData(),
				reserr.Int06, reserr.ErrNA)
		})

	// CalendarAuthenticationRecordAggregationHashVerificationRule verifies that publication hash from calendar
	// authentication record and calendar hash chain root hash do match.
	// Returns OK or FAIL(INT-08).
	CalendarAuthenticationRecordAggregationHashVerificationRule = NewRule("CalendarAuthenticationRecordAggregationHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return matchCalendarPublication(context, context.signature.calAuthRec.PublicationData(),
				reserr.ErrNA, reserr.Int08)
		})
)

// matchCalendarPublication compares the publication data against the signature calendar hash chain. The time is
// compared if timeCode is set, the root hash if hashCode is set.
func matchCalendarPublication(context *VerificationContext, pubData *pdu.PublicationData,
	timeCode, hashCode reserr.Code) (*RuleResult, error) {

	calChain := context.signature.calChain
	switch {
	case pubData == nil:
		return missing("publication data")
	case calChain == nil:
		return missing("calendar hash chain")
	}

	if timeCode != reserr.ErrNA && !calChain.PublicationTime().Equal(pubData.PublicationTime()) {
		return fail(timeCode)
	}
	if hashCode != reserr.ErrNA {
		calcRoot, err := calChain.Aggregate()
		if err != nil {
			return abort(err)
		}
		if !hash.Equal(calcRoot, pubData.PublishedHash()) {
			return fail(hashCode)
		}
	}
	return ok()
}

func equalIndex(l, r []uint64) bool {
	if len(l) != len(r) {
		return false
	}
	for i := range l {
		if l[i] != r[i] {
			return false
		}
	}
	return true
}

/*
----------------------------------------
Extending helpers
----------------------------------------
*/

// receiveCalendar extends the signature up to the publication time (zero for calendar head). Service failures make
// the result inconclusive, anything else aborts the run.
func receiveCalendar(context *VerificationContext, to time.Time) (*RuleResult, error) {
	if _, err := context.extendTo(to); err != nil {
		err = errors.KsiErr(err).AppendMessage("Failed to receive calendar hash chain.")
		if isServiceErr(err) {
			return inconclusive(err)
		}
		return abort(err)
	}
	return ok()
}

// calendarChainContainsDeprecatedAlgorithm reports whether any of the calendar hash chain left link sibling hash
// algorithms was deprecated or obsolete at the publication time.
func calendarChainContainsDeprecatedAlgorithm(calendar *pdu.CalendarChain) (bool, error) {
	if calendar == nil {
		return true, errors.New(errors.KsiInvalidArgumentError)
	}

	pubTime := calendar.PublicationTime()
	for _, link := range calendar.ChainLinks() {
		if !link.IsLeft() {
			continue
		}
		trusted, err := algorithmTrusted(link.SiblingHash().Algorithm(), pubTime)
		if err != nil {
			return true, err
		}
		if !trusted {
			return true, nil
		}
	}
	return false, nil
}

// deprecatedAlgorithmRule returns NA(GEN-02) if the calendar chain contains a deprecated algorithm.
func deprecatedAlgorithmRule(calendar *pdu.CalendarChain, err error) (*RuleResult, error) {
	if err != nil {
		return abort(err)
	}
	deprecated, err := calendarChainContainsDeprecatedAlgorithm(calendar)
	if err != nil {
		return abort(err)
	}
	if deprecated {
		return na(reserr.Gen02)
	}
	return ok()
}

// extendedHashMatches verifies the extended calendar root hash against the publication hash.
func extendedHashMatches(context *VerificationContext, pubData *pdu.PublicationData) (*RuleResult, error) {
	calendar, err := context.extendedCalendarHashChain()
	if err != nil {
		return abort(err)
	}
	rootHsh, err := calendar.Aggregate()
	if err != nil {
		return abort(err)
	}
	if !hash.Equal(rootHsh, pubData.PublishedHash()) {
		log.Info("Publication hash does not match with extended calendar hash chain root hash.")
		return fail(reserr.Pub01)
	}
	return ok()
}

// extendedTimeMatches verifies the extended calendar publication time against the publication, and its shape
// against the signing time.
func extendedTimeMatches(context *VerificationContext, pubData *pdu.PublicationData) (*RuleResult, error) {
	calendar, err := context.extendedCalendarHashChain()
	if err != nil {
		return abort(err)
	}
	if !calendar.PublicationTime().Equal(pubData.PublicationTime()) {
		log.Info("Publication time does not match extended calendar publication time.")
		return fail(reserr.Pub02)
	}

	aggrTime, err := context.signature.SigningTime()
	if err != nil {
		return abort(err)
	}
	calcTime, err := calendar.CalculateAggregationTime()
	if err != nil {
		return newRuleResult(nil, result.FAIL).setErrCode(reserr.Pub02).setStatusErr(err), nil
	}
	if !aggrTime.Equal(calcTime) {
		log.Info("Signature aggregation time does not match with extended calendar aggregation time.")
		return fail(reserr.Pub02)
	}
	return ok()
}

// extendedInputHashMatches verifies the extended calendar input hash against the aggregation root hash.
func extendedInputHashMatches(context *VerificationContext, code reserr.Code) (*RuleResult, error) {
	calendar, err := context.extendedCalendarHashChain()
	if err != nil {
		return abort(err)
	}
	aggrOutHsh, err := context.aggregationHashChainOutputHash()
	if err != nil {
		return abort(err)
	}
	if !hash.Equal(aggrOutHsh, calendar.InputHash()) {
		log.Info("Signature aggregation hash chain output hash does not match with extended calendar input hash.")
		return fail(code)
	}
	return ok()
}

/*
----------------------------------------
UserProvidedPublicationBasedVerificationPolicy rules
----------------------------------------
*/

var (
	// UserProvidedPublicationExistenceRule verifies that the user has provided a publication.
	// Returns OK or NA(None).
	UserProvidedPublicationExistenceRule = NewRule("UserProvidedPublicationExistenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return na(reserr.ErrNA)
			}
			return ok()
		})

	// UserProvidedPublicationTimeVerificationRule verifies that the publication time of the user publication equals
	// the signature publication time.
	// Returns OK or NA(None).
	UserProvidedPublicationTimeVerificationRule = NewRule("UserProvidedPublicationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return abort(preconditionErr("User publication is not provided."))
			}
			if context.signature.publication == nil {
				return missing("publication record")
			}
			pubTime := context.signature.publication.PublicationData().PublicationTime()
			if !context.userPublication.PublicationTime().Equal(pubTime) {
				return na(reserr.ErrNA)
			}
			return ok()
		})

	// UserProvidedPublicationHashVerificationRule verifies that the publication hash of the user publication equals
	// to the signature publication record root hash.
	// Returns OK or FAIL(PUB-04).
	UserProvidedPublicationHashVerificationRule = NewRule("UserProvidedPublicationHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return abort(preconditionErr("User publication is not provided."))
			}
			if context.signature.publication == nil {
				return missing("publication record")
			}
			pubHash := context.signature.publication.PublicationData().PublishedHash()
			if !hash.Equal(context.userPublication.PublishedHash(), pubHash) {
				return fail(reserr.Pub04)
			}
			return ok()
		})

	// SignatureCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule verifies that none of the signature calendar
	// hash chain left link algorithms was deprecated at the publication time.
	// Returns OK or NA(GEN-02).
	SignatureCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule = NewRule("SignatureCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calChain == nil {
				return missing("calendar hash chain")
			}
			return deprecatedAlgorithmRule(context.signature.calChain, nil)
		})

	// UserProvidedPublicationCreationTimeVerificationRule verifies that signature is not newer than user provided
	// publication.
	// Returns OK or NA(GEN-02).
	UserProvidedPublicationCreationTimeVerificationRule = NewRule("UserProvidedPublicationCreationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return abort(preconditionErr("User publication is not provided."))
			}
			aggrTime, err := context.signature.SigningTime()
			if err != nil {
				return abort(err)
			}
			if aggrTime.After(context.userPublication.PublicationTime()) {
				return na(reserr.Gen02)
			}
			return ok()
		})

	// ExtendingPermittedRule verifies that signature extending is permitted.
	// Returns OK or NA(GEN-02).
	ExtendingPermittedRule = NewRule("ExtendingPermittedRule", func(context *VerificationContext) (*RuleResult, error) {
		if !context.extendingPerm {
			return na(reserr.Gen02)
		}
		return ok()
	})

	// UserProvidedPublicationExtendToPublication retrieves calendar hash chain for the time period
	// from aggregation time to the time of user provided publication.
	// Returns OK or NA(GEN-02).
	UserProvidedPublicationExtendToPublication = NewRule("UserProvidedPublicationExtendToPublication",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return abort(preconditionErr("User publication is not provided."))
			}
			return receiveCalendar(context, context.userPublication.PublicationTime())
		})

	// UserProvidedPublicationExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule verifies that none of
	// the extended calendar hash chain left link algorithms was deprecated at the publication time.
	// Returns OK or NA(GEN-02).
	UserProvidedPublicationExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule = NewRule("UserProvidedPublicationExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return deprecatedAlgorithmRule(context.extendedCalendarHashChain())
		})

	// UserProvidedPublicationHashMatchesExtendedResponseVerificationRule verifies that extended calendar root hash
	// matches with the publication hash.
	// Returns OK or FAIL(PUB-01).
	UserProvidedPublicationHashMatchesExtendedResponseVerificationRule = NewRule("UserProvidedPublicationHashMatchesExtendedResponseVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return abort(preconditionErr("User publication is not provided."))
			}
			return extendedHashMatches(context, context.userPublication)
		})

	// UserProvidedPublicationTimeMatchesExtendedResponseVerificationRule verifies that extended calendar hash chain
	// shape matches with the publication time.
	// Returns OK or FAIL(PUB-02).
	UserProvidedPublicationTimeMatchesExtendedResponseVerificationRule = NewRule("UserProvidedPublicationTimeMatchesExtendedResponseVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.userPublication == nil {
				return abort(preconditionErr("User publication is not provided."))
			}
			return extendedTimeMatches(context, context.userPublication)
		})

	// UserProvidedPublicationExtendedSignatureInputHashVerificationRule verifies that extended calendar input hash
	// equals with the signature aggregation root hash.
	// Returns OK or FAIL(PUB-03).
	UserProvidedPublicationExtendedSignatureInputHashVerificationRule = NewRule("UserProvidedPublicationExtendedSignatureInputHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return extendedInputHashMatches(context, reserr.Pub03)
		})
)

/*
----------------------------------------
PublicationsFileBasedVerificationPolicy rules
----------------------------------------
*/

// publicationsFileErr handles the publications file lookup failure. A missing source aborts the run, any other
// failure gives a fallback policy a chance.
func publicationsFileErr(err error) (*RuleResult, error) {
	if errors.Is(err, errors.KsiVerificationPrecondition) {
		return abort(err)
	}
	return inconclusive(err)
}

// suitablePublication returns the earliest publication of the publications file at or after the signing time.
func suitablePublication(context *VerificationContext) (*pdu.PublicationRec, *RuleResult, error) {
	pubFile, err := context.publicationsFile()
	if err != nil {
		res, err := publicationsFileErr(err)
		return nil, res, err
	}
	sigTime, err := context.signature.SigningTime()
	if err != nil {
		res, err := abort(err)
		return nil, res, err
	}
	pubRec, err := pubFile.NearestPublicationRecord(sigTime)
	if err != nil {
		res, err := abort(err)
		return nil, res, err
	}
	return pubRec, nil, nil
}

var (
	// PublicationsFilePresenceRule verifies that a publications file source is configured.
	// Returns OK or NA(GEN-02).
	PublicationsFilePresenceRule = NewRule("PublicationsFilePresenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if !context.hasPublicationsFile() {
				return na(reserr.Gen02)
			}
			return ok()
		})

	// PublicationsFileContainsSignaturePublicationVerificationRule verifies that there is publication in the
	// publications file with the same publication time as the signature publication record.
	// Returns OK or NA(None).
	PublicationsFileContainsSignaturePublicationVerificationRule = NewRule("PublicationsFileContainsSignaturePublicationVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.publication == nil {
				return missing("publication record")
			}
			pubFile, err := context.publicationsFile()
			if err != nil {
				return publicationsFileErr(err)
			}
			pubTime := context.signature.publication.PublicationData().PublicationTime()
			pubRec, err := pubFile.PublicationRec(publications.PubRecSearchByTime(pubTime))
			if err != nil {
				return abort(err)
			}
			if pubRec == nil {
				return na(reserr.ErrNA)
			}
			return ok()
		})

	// PublicationsFileSignaturePublicationHashVerificationRule verifies that the publications file contains the
	// signature publication record.
	// Returns OK or FAIL(PUB-05).
	PublicationsFileSignaturePublicationHashVerificationRule = NewRule("PublicationsFileSignaturePublicationHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.publication == nil {
				return missing("publication record")
			}
			pubFile, err := context.publicationsFile()
			if err != nil {
				return publicationsFileErr(err)
			}
			pubData := context.signature.publication.PublicationData()
			pubRec, err := pubFile.PublicationRec(publications.PubRecSearchByPubData(pubData))
			if err != nil {
				return abort(err)
			}
			if pubRec == nil {
				log.Debug("Publications mismatch.")
				return fail(reserr.Pub05)
			}
			return ok()
		})

	// PublicationsFileContainsSuitablePublicationVerificationRule verifies that a suitable publication exists in the
	// publications file (in order for the signature to be extended).
	// Returns OK or NA(GEN-02).
	PublicationsFileContainsSuitablePublicationVerificationRule = NewRule("PublicationsFileContainsSuitablePublicationVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			pubRec, res, err := suitablePublication(context)
			if res != nil {
				return res, err
			}
			if pubRec == nil {
				log.Debug("Suitable publication not found.")
				return na(reserr.Gen02)
			}
			return ok()
		})

	// PublicationsFileExtendToPublication retrieves calendar hash chain for the time period from aggregation time to
	// the time of nearest suitable publication from publications file.
	// Returns OK or NA(GEN-02).
	PublicationsFileExtendToPublication = NewRule("PublicationsFileExtendToPublication",
		func(context *VerificationContext) (*RuleResult, error) {
			pubRec, res, err := suitablePublication(context)
			if res != nil {
				return res, err
			}
			if pubRec == nil {
				return missing("suitable publication")
			}
			return receiveCalendar(context, pubRec.PublicationData().PublicationTime())
		})

	// PubFileExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule verifies that none of the extended
	// calendar hash chain left link algorithms was deprecated at the publication time.
	// Returns OK or NA(GEN-02).
	PubFileExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule = NewRule("PubFileExtendedCalendarHashAlgorithmDeprecatedAtPubTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return deprecatedAlgorithmRule(context.extendedCalendarHashChain())
		})

	// PublicationsFilePublicationHashMatchesExtenderResponseVerificationRule verifies that extended calendar root
	// hash matches with the publication hash.
	// Returns OK or FAIL(PUB-01).
	PublicationsFilePublicationHashMatchesExtenderResponseVerificationRule = NewRule("PublicationsFilePublicationHashMatchesExtenderResponseVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			pubRec, res, err := suitablePublication(context)
			if res != nil {
				return res, err
			}
			if pubRec == nil {
				return missing("suitable publication")
			}
			return extendedHashMatches(context, pubRec.PublicationData())
		})

	// PublicationsFilePublicationTimeMatchesExtendedResponseVerificationRule verifies that extended calendar hash
	// chain shape matches with the publication time.
	// Returns OK or FAIL(PUB-02).
	PublicationsFilePublicationTimeMatchesExtendedResponseVerificationRule = NewRule("PublicationsFilePublicationTimeMatchesExtendedResponseVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			pubRec, res, err := suitablePublication(context)
			if res != nil {
				return res, err
			}
			if pubRec == nil {
				return missing("suitable publication")
			}
			return extendedTimeMatches(context, pubRec.PublicationData())
		})

	// PublicationsFileExtendedSignatureInputHashVerificationRule verifies that extended calendar input hash equals
	// with the signature aggregation root hash.
	// Returns OK or FAIL(PUB-03).
	PublicationsFileExtendedSignatureInputHashVerificationRule = NewRule("PublicationsFileExtendedSignatureInputHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return extendedInputHashMatches(context, reserr.Pub03)
		})
)

/*
----------------------------------------
KeyBasedVerificationPolicy rules
----------------------------------------
*/

// authRecCertificate returns the publications file certificate referenced by the calendar authentication record.
func authRecCertificate(context *VerificationContext) (*pdu.CertificateRecord, *RuleResult, error) {
	calAuthRec := context.signature.calAuthRec
	if calAuthRec == nil {
		res, err := missing("calendar authentication record")
		return nil, res, err
	}
	pubFile, err := context.publicationsFile()
	if err != nil {
		res, err := publicationsFileErr(err)
		return nil, res, err
	}
	certRec, err := pubFile.Certificate(calAuthRec.SignatureData().CertID())
	if err != nil {
		res, err := abort(err)
		return nil, res, err
	}
	return certRec, nil, nil
}

var (
	// CalendarHashChainExistenceRule verifies that calendar chain is present.
	// Returns OK or NA(GEN-02).
	CalendarHashChainExistenceRule = NewRule("CalendarHashChainExistenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calChain == nil {
				return na(reserr.Gen02)
			}
			return ok()
		})

	// CalendarHashChainAlgorithmDeprecatedRule verifies that none of the calendar hash chain left link algorithms
	// was deprecated at the publication time.
	// Returns OK or NA(GEN-02).
	CalendarHashChainAlgorithmDeprecatedRule = NewRule("CalendarHashChainAlgorithmDeprecatedRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calChain == nil {
				return missing("calendar hash chain")
			}
			return deprecatedAlgorithmRule(context.signature.calChain, nil)
		})

	// CalendarAuthenticationRecordExistenceRule verifies that calendar authentication record is present.
	// Returns OK or NA(GEN-02).
	CalendarAuthenticationRecordExistenceRule = NewRule("CalendarAuthenticationRecordExistenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calAuthRec == nil {
				return na(reserr.Gen02)
			}
			return ok()
		})

	// CertificateExistenceRule verifies that certificate lookup was successful.
	// Returns OK or NA(GEN-02).
	CertificateExistenceRule = NewRule("CertificateExistenceRule", func(context *VerificationContext) (*RuleResult, error) {
		certRec, res, err := authRecCertificate(context)
		if res != nil {
			return res, err
		}
		if certRec == nil {
			return na(reserr.Gen02)
		}
		return ok()
	})

	// CertificateValidityRule verifies that certificate was valid at aggregation time of the calendar chain.
	// Returns OK or FAIL(KEY-03).
	CertificateValidityRule = NewRule("CertificateValidityRule", func(context *VerificationContext) (*RuleResult, error) {
		certRec, res, err := authRecCertificate(context)
		if res != nil {
			return res, err
		}
		if certRec == nil {
			return missing("PKI certificate")
		}
		if context.signature.calChain == nil {
			return missing("calendar hash chain")
		}

		isValid, err := certRec.IsValid(context.signature.calChain.AggregationTime())
		if err != nil {
			return abort(err)
		}
		if !isValid {
			return fail(reserr.Key03)
		}
		return ok()
	})

	// CalendarAuthenticationRecordSignatureVerificationRule verifies PKI signature.
	// Returns OK or FAIL(KEY-02).
	CalendarAuthenticationRecordSignatureVerificationRule = NewRule("CalendarAuthenticationRecordSignatureVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calAuthRec := context.signature.calAuthRec
			if calAuthRec == nil {
				return missing("calendar authentication record")
			}
			pubFile, err := context.publicationsFile()
			if err != nil {
				return publicationsFileErr(err)
			}

			if err := pubFile.VerifyRecord(calAuthRec, context.pkiVerifier, context.certSelector); err != nil {
				ksiErr := errors.KsiErr(err)
				switch ksiErr.Code() {
				case errors.KsiInvalidPkiSignature, errors.KsiPkiCertificateNotTrusted:
					log.Info(ksiErr.AppendMessage("Calendar authentication record PKI signature verification failed.").Message())
					return newRuleResult(nil, result.FAIL).setErrCode(reserr.Key02).setStatusErr(ksiErr), nil
				default:
					return abort(ksiErr)
				}
			}
			return ok()
		})
)

/*
----------------------------------------
CalendarBasedVerificationPolicy rules
----------------------------------------
*/

var (
	// ExtendingServicePresenceRule verifies that extending service is configured.
	// Returns OK or NA(GEN-02).
	ExtendingServicePresenceRule = NewRule("ExtendingServicePresenceRule",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.extendingService == nil {
				return na(reserr.Gen02)
			}
			return ok()
		})

	// ExtendSignatureCalendarChainInputHashToHead retrieves calendar hash chain for the time period from aggregation
	// time to the head of the calendar.
	// Returns OK or NA(GEN-02).
	ExtendSignatureCalendarChainInputHashToHead = NewRule("ExtendSignatureCalendarChainInputHashToHead",
		func(context *VerificationContext) (*RuleResult, error) {
			return receiveCalendar(context, time.Time{})
		})

	// ExtendSignatureCalendarChainInputHashToSamePubTime retrieves calendar hash chain for the time period from
	// aggregation time to the publication time of the current calendar hash chain.
	// Returns OK or NA(GEN-02).
	ExtendSignatureCalendarChainInputHashToSamePubTime = NewRule("ExtendSignatureCalendarChainInputHashToSamePubTime",
		func(context *VerificationContext) (*RuleResult, error) {
			if context.signature.calChain == nil {
				return missing("calendar hash chain")
			}
			return receiveCalendar(context, context.signature.calChain.PublicationTime())
		})

	// ExtendedSignatureCalendarChainInputHashVerificationRule verifies that the extended calendar input hash and
	// aggregation root hash do match.
	// Returns OK or FAIL(CAL-02).
	ExtendedSignatureCalendarChainInputHashVerificationRule = NewRule("ExtendedSignatureCalendarChainInputHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			return extendedInputHashMatches(context, reserr.Cal02)
		})

	// ExtendedSignatureCalendarChainAggregationTimeVerificationRule verifies that the extended calendar hash chain
	// aggregation time does match with the signature aggregation time.
	// Returns OK or FAIL(CAL-03).
	ExtendedSignatureCalendarChainAggregationTimeVerificationRule = NewRule("ExtendedSignatureCalendarChainAggregationTimeVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			extCalChain, err := context.extendedCalendarHashChain()
			if err != nil {
				return abort(err)
			}
			aggrTime, err := context.signature.SigningTime()
			if err != nil {
				return abort(err)
			}
			calcTime, err := extCalChain.CalculateAggregationTime()
			if err != nil || !calcTime.Equal(aggrTime) || !extCalChain.AggregationTime().Equal(aggrTime) {
				return newRuleResult(nil, result.FAIL).setErrCode(reserr.Cal03).setStatusErr(err), nil
			}
			return ok()
		})

	// ExtendedSignatureCalendarChainRootHashVerificationRule verifies that the extended calendar hash chain root hash
	// does match with the signature calendar hash chain root hash.
	// Returns OK or FAIL(CAL-01).
	ExtendedSignatureCalendarChainRootHashVerificationRule = NewRule("ExtendedSignatureCalendarChainRootHashVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calChain := context.signature.calChain
			if calChain == nil {
				return missing("calendar hash chain")
			}
			calRoot, err := calChain.Aggregate()
			if err != nil {
				return abort(err)
			}
			extCalChain, err := context.extendedCalendarHashChain()
			if err != nil {
				return abort(err)
			}
			extCalRoot, err := extCalChain.Aggregate()
			if err != nil {
				return abort(err)
			}
			if !hash.Equal(calRoot, extCalRoot) {
				return fail(reserr.Cal01)
			}
			return ok()
		})

	// ExtendedSignatureCalendarHashChainRightLinksMatchesVerificationRule verifies that the right link count and right
	// link hashes in the calendar hash chains match with each other.
	// Returns OK or FAIL(CAL-04).
	ExtendedSignatureCalendarHashChainRightLinksMatchesVerificationRule = NewRule("ExtendedSignatureCalendarHashChainRightLinksMatchesVerificationRule",
		func(context *VerificationContext) (*RuleResult, error) {
			calChain := context.signature.calChain
			if calChain == nil {
				return missing("calendar hash chain")
			}
			extCalChain, err := context.extendedCalendarHashChain()
			if err != nil {
				return abort(err)
			}
			if err := calChain.RightLinkMatch(extCalChain); err != nil {
				if ksiErr := errors.KsiErr(err); ksiErr.Code() == errors.KsiIncompatibleHashChain {
					log.Info(ksiErr.AppendMessage("Extended calendar right link mismatch.").Message())
					return newRuleResult(nil, result.FAIL).setErrCode(reserr.Cal04).setStatusErr(ksiErr), nil
				}
				return abort(err)
			}
			return ok()
		})
)
