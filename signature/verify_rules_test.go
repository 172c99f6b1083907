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
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/signature/verify/reserr"
	"github.com/guardtime/goksi-multisig/signature/verify/result"
	"github.com/guardtime/goksi-multisig/test"
	"github.com/guardtime/goksi-multisig/test/utils/mock"
)

func TestUnitRule(t *testing.T) {
	test.InitLogger(t, log.DEBUG)

	test.Suite{
		{Func: testRuleName},
		{Func: testRuleNilContext},
		{Func: testRuleDefaultResult},
		{Func: testRuleAlgorithmTrusted},
		{Func: testRuleServiceErr},
		{Func: testRuleExtendingPermitted},
		{Func: testRuleCalendarChainReceivedOnce},
		{Func: testRuleMissingComponent},
	}.Runner(t)
}

func testRuleName(t *testing.T, _ ...interface{}) {
	rule := NewRule("TestRule", func(*VerificationContext) (*RuleResult, error) { return ok() })
	if rule.String() != "TestRule" {
		t.Fatal("Rule name mismatch: ", rule)
	}

	f := newSigFixture(t)
	verCtx, err := NewVerificationContext(mustSignature(t, f.aggrOnlyBytes(t, 0)))
	if err != nil {
		t.Fatal("Failed to create verification context: ", err)
	}
	res, err := rule.Verify(verCtx)
	if err != nil {
		t.Fatal("Rule verification failed: ", err)
	}
	if res.RuleName() != "TestRule" {
		t.Fatal("Rule result must hold the rule name: ", res.RuleName())
	}
	if code, _ := res.ResultCode(); code != result.OK {
		t.Fatal("Unexpected result: ", code)
	}
}

func testRuleNilContext(t *testing.T, _ ...interface{}) {
	res, err := OkRule.Verify(nil)
	if !errors.Is(err, errors.KsiInvalidArgumentError) {
		t.Fatal("Expecting invalid argument error, got: ", err)
	}
	if code, _ := res.ResultCode(); code != result.NA {
		t.Fatal("Unexpected result: ", code)
	}
	if errCode, _ := res.ErrorCode(); errCode != reserr.Gen02 {
		t.Fatal("Unexpected error code: ", errCode)
	}
}

func testRuleDefaultResult(t *testing.T, _ ...interface{}) {
	var (
		f     = newSigFixture(t)
		cause = errors.New(errors.KsiInvalidStateError)
		rule  = NewRule("Broken", func(*VerificationContext) (*RuleResult, error) { return nil, cause })
	)
	verCtx, err := NewVerificationContext(mustSignature(t, f.aggrOnlyBytes(t, 0)))
	if err != nil {
		t.Fatal("Failed to create verification context: ", err)
	}

	res, err := rule.Verify(verCtx)
	if err != cause {
		t.Fatal("Rule error must be returned: ", err)
	}
	if errCode, _ := res.ErrorCode(); errCode != reserr.Gen02 {
		t.Fatal("Unexpected error code: ", errCode)
	}
	if statusErr, _ := res.StatusErr(); statusErr != cause {
		t.Fatal("Status error must hold the rule error: ", statusErr)
	}
}

func testRuleAlgorithmTrusted(t *testing.T, _ ...interface{}) {
	deprecated, err := hash.SHA1.DeprecatedFrom()
	if err != nil {
		t.Fatal("Failed to get deprecation time: ", err)
	}
	var (
		before = time.Unix(deprecated-1, 0)
		after  = time.Unix(deprecated, 0)
	)

	res, err := checkAlgorithms(reserr.Int13, before, hash.SHA2_256, hash.SHA1)
	if err != nil || res.resCode != result.OK {
		t.Fatal("SHA-1 must be trusted before deprecation: ", res, err)
	}

	res, err = checkAlgorithms(reserr.Int13, after, hash.SHA2_256, hash.SHA1)
	if err != nil || res.resCode != result.FAIL || res.errCode != reserr.Int13 {
		t.Fatal("SHA-1 must not be trusted after deprecation: ", res, err)
	}

	if _, err := algorithmTrusted(hash.SHA_NA, after); !errors.Is(err, errors.KsiUnknownHashAlgorithm) {
		t.Fatal("Expecting unknown algorithm error, got: ", err)
	}
}

func testRuleServiceErr(t *testing.T, _ ...interface{}) {
	for _, tc := range []struct {
		err     error
		service bool
	}{
		{errors.New(errors.KsiNetworkError), true},
		{errors.New(errors.KsiHttpError), true},
		{errors.New(errors.KsiServiceExtenderRequestTimeTooNew), true},
		{errors.New(errors.KsiInvalidFormatError), false},
		{errors.New(errors.KsiVerificationPrecondition), false},
		{nil, false},
	} {
		if isServiceErr(tc.err) != tc.service {
			t.Fatal("Service error classification mismatch: ", tc.err)
		}
	}
}

func testRuleExtendingPermitted(t *testing.T, _ ...interface{}) {
	var (
		f   = newSigFixture(t)
		sig = mustSignature(t, f.aggrOnlyBytes(t, 0))
	)

	verCtx, err := NewVerificationContext(sig)
	if err != nil {
		t.Fatal("Failed to create verification context: ", err)
	}
	if res, _ := ExtendingPermittedRule.Verify(verCtx); res.resCode != result.NA || res.errCode != reserr.Gen02 {
		t.Fatal("Extending must not be permitted by default: ", res)
	}

	verCtx, err = NewVerificationContext(sig, VerCtxOptExtendingPermitted(true))
	if err != nil {
		t.Fatal("Failed to create verification context: ", err)
	}
	if res, _ := ExtendingPermittedRule.Verify(verCtx); res.resCode != result.OK {
		t.Fatal("Extending must be permitted: ", res)
	}
}

func testRuleCalendarChainReceivedOnce(t *testing.T, _ ...interface{}) {
	var (
		f   = newSigFixture(t)
		sig = mustSignature(t, f.authRecBytes(t, 0))
		ext = mock.NewCalendarExtender(t, f.cal, testHeadTime)
	)

	verCtx, err := NewVerificationContext(sig, VerCtxOptExtendingService(ext))
	if err != nil {
		t.Fatal("Failed to create verification context: ", err)
	}
	for i := 0; i < 2; i++ {
		res, err := ExtendSignatureCalendarChainInputHashToSamePubTime.Verify(verCtx)
		if err != nil || res.resCode != result.OK {
			t.Fatal("Failed to receive calendar: ", res, err)
		}
	}
	if ext.ExtendCount() != 1 {
		t.Fatal("Received calendar must be reused: ", ext.ExtendCount())
	}

	res, err := ExtendedSignatureCalendarChainInputHashVerificationRule.Verify(verCtx)
	if err != nil || res.resCode != result.OK {
		t.Fatal("Extended calendar input hash mismatch: ", res, err)
	}
}

func testRuleMissingComponent(t *testing.T, _ ...interface{}) {
	f := newSigFixture(t)
	verCtx, err := NewVerificationContext(mustSignature(t, f.aggrOnlyBytes(t, 0)))
	if err != nil {
		t.Fatal("Failed to create verification context: ", err)
	}

	res, err := CalendarHashChainInputHashVerificationRule.Verify(verCtx)
	if !errors.Is(err, errors.KsiVerificationPrecondition) {
		t.Fatal("Expecting precondition error, got: ", err)
	}
	if code, _ := res.ResultCode(); code != result.NA {
		t.Fatal("Unexpected result: ", code)
	}
}
