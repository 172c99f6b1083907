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
	"bytes"
	"testing"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/test"
	"github.com/guardtime/goksi-multisig/tlv"
)

func TestUnitAggregationChain(t *testing.T) {
	test.InitLogger(t, log.DEBUG)

	test.Suite{
		{Func: testAggrChainAggregate},
		{Func: testAggrChainAggregateMetaDataAndLegacyID},
		{Func: testAggrChainShape},
		{Func: testAggrChainReorderChangesResult},
		{Func: testAggrChainLevelOverflow},
		{Func: testAggrChainMissingLinks},
		{Func: testAggrChainLinkExclusive},
		{Func: testAggrChainNestedViolationPath},
		{Func: testAggrChainListAggregate},
		{Func: testAggrChainIndexSuccession},
		{Func: testAggrChainIdentity},
	}.Runner(t)
}

func digest(t *testing.T, alg hash.Algorithm, data ...[]byte) hash.Imprint {
	t.Helper()
	h, err := alg.Digest(data...)
	if err != nil {
		t.Fatal("Failed to compute digest: ", err)
	}
	return h
}

func siblingLink(t *testing.T, isLeft bool, lc byte, name string) *ChainLink {
	t.Helper()
	l, err := NewChainLink(isLeft, lc, LinkSiblingHash(digest(t, hash.SHA2_256, []byte(name))))
	if err != nil {
		t.Fatal("Failed to create chain link: ", err)
	}
	return l
}

func testAggrChainAggregate(t *testing.T, _ ...interface{}) {
	var (
		input = digest(t, hash.SHA2_256, []byte("document"))
		s1    = digest(t, hash.SHA2_256, []byte("s1"))
		s2    = digest(t, hash.SHA2_256, []byte("s2"))
	)
	r, err := NewChainLink(false, 0, LinkSiblingHash(s1))
	if err != nil {
		t.Fatal("Failed to create right link: ", err)
	}
	l, err := NewChainLink(true, 2, LinkSiblingHash(s2))
	if err != nil {
		t.Fatal("Failed to create left link: ", err)
	}
	chain, err := NewAggregationChain(1500000000, []uint64{1, 6}, input, hash.SHA2_256, []*ChainLink{r, l})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}

	h1 := digest(t, hash.SHA2_256, s1, input, []byte{0x01})
	h2 := digest(t, hash.SHA2_256, h1, s2, []byte{0x04})

	out, lvl, err := chain.Aggregate(0)
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}
	if !hash.Equal(out, h2) {
		t.Fatalf("Root hash mismatch: %s != %s", out, h2)
	}
	if lvl != 4 {
		t.Fatal("Unexpected output level: ", lvl)
	}

	again, _, err := chain.Aggregate(0)
	if err != nil || !hash.Equal(again, out) {
		t.Fatal("Aggregation must be deterministic.")
	}

	raw, err := chain.Tag().Encode()
	if err != nil {
		t.Fatal("Failed to encode chain: ", err)
	}
	parsed, err := tlv.Parse(raw, AggregationChainTemplate)
	if err != nil {
		t.Fatal("Failed to parse chain: ", err)
	}
	reparsed, err := AggregationChainFromTag(parsed)
	if err != nil {
		t.Fatal("Failed to project parsed chain: ", err)
	}
	if !tlv.Equal(parsed, chain.Tag()) || reparsed.AggregationTime().Unix() != 1500000000 {
		t.Fatal("Round trip mismatch.")
	}
	if len(reparsed.ChainIndex()) != 2 || reparsed.AggregationAlgo() != hash.SHA2_256 {
		t.Fatal("Unexpected chain fields: ", reparsed)
	}
}

func testAggrChainAggregateMetaDataAndLegacyID(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("document"))

	md, err := NewMetaData("client", MetaDataMachineID("machine"), MetaDataSequenceNr(3), MetaDataReqTime(1500000000))
	if err != nil {
		t.Fatal("Failed to create metadata: ", err)
	}
	mdLink, err := NewChainLink(false, 0, LinkSiblingMetaData(md))
	if err != nil {
		t.Fatal("Failed to create metadata link: ", err)
	}
	id, err := NewLegacyID("GT")
	if err != nil {
		t.Fatal("Failed to create legacy ID: ", err)
	}
	idLink, err := NewChainLink(true, 0, LinkSiblingLegacyID(id))
	if err != nil {
		t.Fatal("Failed to create legacy ID link: ", err)
	}

	chain, err := NewAggregationChain(1500000000, []uint64{5}, input, hash.SHA2_256, []*ChainLink{mdLink, idLink})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}

	content, err := md.Content()
	if err != nil {
		t.Fatal("Failed to get metadata content: ", err)
	}
	if len(content)%2 != 0 {
		t.Fatal("Metadata content length must be even: ", len(content))
	}
	legacy := id.Bytes()
	if len(legacy) != 29 || !bytes.Equal(legacy[:5], []byte{0x03, 0x00, 0x02, 'G', 'T'}) {
		t.Fatalf("Unexpected legacy ID octets: %x", legacy)
	}

	h1 := digest(t, hash.SHA2_256, content, input, []byte{0x01})
	h2 := digest(t, hash.SHA2_256, h1, legacy, []byte{0x02})
	out, _, err := chain.Aggregate(0)
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}
	if !hash.Equal(out, h2) {
		t.Fatalf("Root hash mismatch: %s != %s", out, h2)
	}
}

func testAggrChainShape(t *testing.T, _ ...interface{}) {
	chain, err := NewAggregationChain(1, []uint64{6}, digest(t, hash.SHA2_256, []byte("x")), hash.SHA2_256,
		[]*ChainLink{siblingLink(t, false, 0, "a"), siblingLink(t, true, 0, "b")})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	shape, err := chain.CalculateShape()
	if err != nil {
		t.Fatal("Failed to calculate shape: ", err)
	}
	if shape != 6 {
		t.Fatal("Unexpected shape: ", shape)
	}
}

func testAggrChainReorderChangesResult(t *testing.T, _ ...interface{}) {
	var (
		input = digest(t, hash.SHA2_256, []byte("x"))
		a     = siblingLink(t, false, 0, "a")
		b     = siblingLink(t, false, 0, "b")
	)
	c1, err := NewAggregationChain(1, []uint64{1}, input, hash.SHA2_256, []*ChainLink{a, b})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	c2, err := NewAggregationChain(1, []uint64{1}, input, hash.SHA2_256, []*ChainLink{b, a})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	o1, _, err := c1.Aggregate(0)
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}
	o2, _, err := c2.Aggregate(0)
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}
	if hash.Equal(o1, o2) {
		t.Fatal("Reordered links must produce a different root hash.")
	}
}

func testAggrChainLevelOverflow(t *testing.T, _ ...interface{}) {
	chain, err := NewAggregationChain(1, []uint64{1}, digest(t, hash.SHA2_256, []byte("x")), hash.SHA2_256,
		[]*ChainLink{siblingLink(t, false, 0xff, "a")})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	if _, _, err := chain.Aggregate(0); err == nil {
		t.Fatal("Level above 0xff must fail.")
	}
	if _, _, err := chain.Aggregate(0xfe); err == nil {
		t.Fatal("Level above 0xff must fail.")
	}
}

func testAggrChainMissingLinks(t *testing.T, _ ...interface{}) {
	tag := tlv.NewComposite(TypeAggregationChain,
		tlv.NewInteger(0x02, 1),
		tlv.NewInteger(0x03, 1),
		tlv.NewImprint(0x05, digest(t, hash.SHA2_256, []byte("x"))),
		tlv.NewInteger(0x06, uint64(hash.SHA2_256)),
	)
	_, err := AggregationChainFromTag(tag)
	if !errors.Is(err, errors.KsiInvalidStructure) {
		t.Fatal("Expected structure error: ", err)
	}
	v := ViolationOf(err)
	if v == nil || v.Rule != RuleMandatory || len(v.Path) != 2 || v.Path[1] != TypeLinkLeft {
		t.Fatal("Unexpected violation: ", v)
	}

	noIndex := tlv.NewComposite(TypeAggregationChain,
		tlv.NewInteger(0x02, 1),
		tlv.NewImprint(0x05, digest(t, hash.SHA2_256, []byte("x"))),
		tlv.NewInteger(0x06, uint64(hash.SHA2_256)),
		siblingLink(t, true, 0, "a").Tag(),
	)
	if v := ViolationOf(func() error { _, err := AggregationChainFromTag(noIndex); return err }()); v == nil ||
		v.Rule != RuleMandatory || v.Path[1] != 0x03 {
		t.Fatal("Unexpected violation: ", v)
	}

	badAlgo := tlv.NewComposite(TypeAggregationChain,
		tlv.NewInteger(0x02, 1),
		tlv.NewInteger(0x03, 1),
		tlv.NewImprint(0x05, digest(t, hash.SHA2_256, []byte("x"))),
		tlv.NewInteger(0x06, 0x03),
		siblingLink(t, true, 0, "a").Tag(),
	)
	if v := ViolationOf(func() error { _, err := AggregationChainFromTag(badAlgo); return err }()); v == nil ||
		v.Rule != RuleValue || v.Path[1] != 0x06 {
		t.Fatal("Unexpected violation: ", v)
	}
}

func testAggrChainLinkExclusive(t *testing.T, _ ...interface{}) {
	id, err := NewLegacyID("a")
	if err != nil {
		t.Fatal("Failed to create legacy ID: ", err)
	}
	both := tlv.NewComposite(TypeLinkLeft,
		tlv.NewImprint(0x02, digest(t, hash.SHA2_256, []byte("a"))),
		id.Tag(),
	)
	_, err = ChainLinkFromTag(both)
	v := ViolationOf(err)
	if v == nil || v.Rule != RuleExclusive {
		t.Fatal("Expected mutual exclusion violation: ", err)
	}
	if len(v.Path) != 2 || v.Path[0] != TypeLinkLeft || v.Path[1] != 0x02 {
		t.Fatal("Unexpected violation path: ", v.Path)
	}

	none := tlv.NewComposite(TypeLinkRight, tlv.NewInteger(0x01, 1))
	if v := ViolationOf(func() error { _, err := ChainLinkFromTag(none); return err }()); v == nil || v.Rule != RuleExclusive {
		t.Fatal("Expected mutual exclusion violation for empty link.")
	}

	unknown := tlv.NewComposite(TypeLinkRight,
		tlv.NewImprint(0x02, digest(t, hash.SHA2_256, []byte("a"))),
		tlv.NewRaw(0x10, []byte{1}),
	)
	if v := ViolationOf(func() error { _, err := ChainLinkFromTag(unknown); return err }()); v == nil || v.Rule != RuleUnknownCritical {
		t.Fatal("Expected unknown critical violation.")
	}

	unknown = tlv.NewComposite(TypeLinkRight,
		tlv.NewImprint(0x02, digest(t, hash.SHA2_256, []byte("a"))),
		tlv.NewRaw(0x10, []byte{1}).WithFlags(true, false),
	)
	if _, err := ChainLinkFromTag(unknown); err != nil {
		t.Fatal("Unknown non-critical element must be accepted: ", err)
	}
}

func testAggrChainNestedViolationPath(t *testing.T, _ ...interface{}) {
	tag := tlv.NewComposite(TypeAggregationChain,
		tlv.NewInteger(0x02, 1),
		tlv.NewInteger(0x03, 1),
		tlv.NewImprint(0x05, digest(t, hash.SHA2_256, []byte("x"))),
		tlv.NewInteger(0x06, uint64(hash.SHA2_256)),
		tlv.NewComposite(TypeLinkLeft,
			tlv.NewInteger(0x01, 0x100),
			tlv.NewImprint(0x02, digest(t, hash.SHA2_256, []byte("a"))),
		),
	)
	_, err := AggregationChainFromTag(tag)
	v := ViolationOf(err)
	if v == nil || v.Rule != RuleValue {
		t.Fatal("Expected value violation: ", err)
	}
	expected := []uint16{TypeAggregationChain, TypeLinkLeft, 0x01}
	if len(v.Path) != len(expected) {
		t.Fatal("Unexpected violation path: ", v.Path)
	}
	for i := range expected {
		if v.Path[i] != expected[i] {
			t.Fatal("Unexpected violation path: ", v.Path)
		}
	}
}

func testAggrChainListAggregate(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("document"))
	lower, err := NewAggregationChain(10, []uint64{3, 5}, input, hash.SHA2_256,
		[]*ChainLink{siblingLink(t, true, 0, "a"), siblingLink(t, false, 1, "b")})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	mid, lvl, err := lower.Aggregate(0)
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}
	upper, err := NewAggregationChain(10, []uint64{3}, mid, hash.SHA2_512,
		[]*ChainLink{siblingLink(t, false, 0, "c")})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	root, _, err := upper.Aggregate(lvl)
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}

	out, err := AggregationChainList{lower, upper}.Aggregate(0)
	if err != nil {
		t.Fatal("Failed to aggregate chain list: ", err)
	}
	if !hash.Equal(out, root) || out.Algorithm() != hash.SHA2_512 {
		t.Fatalf("Unexpected root hash: %s", out)
	}

	if _, err := (AggregationChainList{upper, lower}).Aggregate(0); err == nil {
		t.Fatal("Disconnected chains must fail.")
	}
	if _, err := (AggregationChainList{}).Aggregate(0); err == nil {
		t.Fatal("Empty list must fail.")
	}
}

func testAggrChainIndexSuccession(t *testing.T, _ ...interface{}) {
	mk := func(idx ...uint64) *AggregationChain {
		c, err := NewAggregationChain(1, idx, digest(t, hash.SHA2_256, []byte("x")), hash.SHA2_256,
			[]*ChainLink{siblingLink(t, true, 0, "a")})
		if err != nil {
			t.Fatal("Failed to create aggregation chain: ", err)
		}
		return c
	}

	if err := (AggregationChainList{mk(1, 2, 3), mk(1, 2), mk(1)}).VerifyIndexSuccession(); err != nil {
		t.Fatal("Valid succession rejected: ", err)
	}
	for i, l := range []AggregationChainList{
		{mk(1, 2)},
		{mk(1, 3), mk(2)},
		{mk(1, 2, 3), mk(1)},
		{mk(1), mk(1)},
	} {
		err := l.VerifyIndexSuccession()
		if v := ViolationOf(err); v == nil || v.Rule != RuleChainIndex {
			t.Fatalf("Case %d: expected chain index violation, got: %v", i, err)
		}
	}
}

func testAggrChainIdentity(t *testing.T, _ ...interface{}) {
	md, err := NewMetaData("client", MetaDataMachineID("machine"))
	if err != nil {
		t.Fatal("Failed to create metadata: ", err)
	}
	mdLink, err := NewChainLink(true, 0, LinkSiblingMetaData(md))
	if err != nil {
		t.Fatal("Failed to create link: ", err)
	}
	id, err := NewLegacyID("legacy")
	if err != nil {
		t.Fatal("Failed to create legacy ID: ", err)
	}
	idLink, err := NewChainLink(false, 0, LinkSiblingLegacyID(id))
	if err != nil {
		t.Fatal("Failed to create link: ", err)
	}
	chain, err := NewAggregationChain(1, []uint64{1}, digest(t, hash.SHA2_256, []byte("x")), hash.SHA2_256,
		[]*ChainLink{siblingLink(t, true, 0, "a"), mdLink, idLink})
	if err != nil {
		t.Fatal("Failed to create aggregation chain: ", err)
	}
	ids := AggregationChainList{chain}.Identity()
	if len(ids) != 2 {
		t.Fatal("Unexpected identity count: ", len(ids))
	}
	if ids[0].Type() != IdentityTypeMetadata || ids[0].ClientID() != "client" || ids[0].MachineID() != "machine" {
		t.Fatal("Unexpected metadata identity: ", ids[0])
	}
	if ids[1].Type() != IdentityTypeLegacyID || ids[1].ClientID() != "legacy" {
		t.Fatal("Unexpected legacy identity: ", ids[1])
	}
}
