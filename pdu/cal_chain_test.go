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
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/test"
	"github.com/guardtime/goksi-multisig/tlv"
)

func TestUnitCalendarChain(t *testing.T) {
	test.InitLogger(t, log.DEBUG)

	test.Suite{
		{Func: testCalChainAggregationTime},
		{Func: testCalChainAggregationTimeInconsistent},
		{Func: testCalChainAggregate},
		{Func: testCalChainAggrTimeDefault},
		{Func: testCalChainRightLinkMatch},
		{Func: testCalChainVerifyCompatibility},
		{Func: testCalChainRejectsAggregationLinks},
		{Func: testCalChainRequiresLinks},
	}.Runner(t)
}

// calendarShape returns the link directions (true for left) of the calendar chain from the leaf aggrTime to the
// root of the calendar tree built at pubTime, ordered from the leaf upward.
func calendarShape(pubTime, aggrTime int64) []bool {
	var (
		shape []bool
		t     int64
		r     = pubTime
	)
	for r > 0 {
		hb := highBit(r)
		if aggrTime >= t+hb {
			shape = append(shape, false)
			t += hb
			r -= hb
		} else {
			shape = append(shape, true)
			r = hb - 1
		}
	}
	for i, j := 0, len(shape)-1; i < j; i, j = i+1, j-1 {
		shape[i], shape[j] = shape[j], shape[i]
	}
	return shape
}

func calendarLinks(t *testing.T, pubTime, aggrTime int64, seed string) []*ChainLink {
	t.Helper()
	var links []*ChainLink
	for i, isLeft := range calendarShape(pubTime, aggrTime) {
		l, err := NewCalendarLink(isLeft, digest(t, hash.SHA2_256, []byte(seed), []byte{byte(i)}))
		if err != nil {
			t.Fatal("Failed to create calendar link: ", err)
		}
		links = append(links, l)
	}
	return links
}

func testCalChainAggregationTime(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("root"))
	for _, tc := range []struct{ pub, aggr int64 }{
		{1, 0},
		{1, 1},
		{2, 1},
		{10, 3},
		{10, 10},
		{1500000000, 1400000000},
		{1500000000, 1499999999},
		{1700000000, 1},
	} {
		chain, err := NewCalendarChain(uint64(tc.pub), uint64(tc.aggr), input, calendarLinks(t, tc.pub, tc.aggr, "s"))
		if err != nil {
			t.Fatal("Failed to create calendar chain: ", err)
		}
		at, err := chain.CalculateAggregationTime()
		if err != nil {
			t.Fatalf("(%d, %d): failed to calculate aggregation time: %v", tc.pub, tc.aggr, err)
		}
		if at.Unix() != tc.aggr {
			t.Fatalf("(%d, %d): unexpected aggregation time %d", tc.pub, tc.aggr, at.Unix())
		}
		if !chain.AggregationTime().Equal(time.Unix(tc.aggr, 0)) {
			t.Fatal("Unexpected aggregation time field: ", chain.AggregationTime())
		}
	}
}

func testCalChainAggregationTimeInconsistent(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("root"))
	links := calendarLinks(t, 10, 3, "s")
	chain, err := NewCalendarChain(10, 3, input, links[1:])
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	if _, err := chain.CalculateAggregationTime(); !errors.Is(err, errors.KsiInvalidFormatError) {
		t.Fatal("Truncated calendar chain must fail: ", err)
	}

	extra, err := NewCalendarLink(true, input)
	if err != nil {
		t.Fatal("Failed to create calendar link: ", err)
	}
	chain, err = NewCalendarChain(10, 3, input, append([]*ChainLink{extra}, links...))
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	if _, err := chain.CalculateAggregationTime(); err == nil {
		t.Fatal("Overlong calendar chain must fail.")
	}
}

func testCalChainAggregate(t *testing.T, _ ...interface{}) {
	var (
		input = digest(t, hash.SHA2_256, []byte("root"))
		s1    = digest(t, hash.SHA2_256, []byte("s1"))
		s2    = digest(t, hash.SHA2_512, []byte("s2"))
	)
	r, err := NewCalendarLink(false, s1)
	if err != nil {
		t.Fatal("Failed to create link: ", err)
	}
	l, err := NewCalendarLink(true, s2)
	if err != nil {
		t.Fatal("Failed to create link: ", err)
	}
	chain, err := NewCalendarChain(3, 2, input, []*ChainLink{r, l})
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}

	h1 := digest(t, hash.SHA2_256, s1, input, []byte{0xff})
	h2 := digest(t, hash.SHA2_512, h1, s2, []byte{0xff})
	out, err := chain.Aggregate()
	if err != nil {
		t.Fatal("Failed to aggregate: ", err)
	}
	if !hash.Equal(out, h2) {
		t.Fatalf("Calendar root mismatch: %s != %s", out, h2)
	}
}

func testCalChainAggrTimeDefault(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("root"))
	chain, err := NewCalendarChain(10, 10, input, calendarLinks(t, 10, 10, "s"))
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	if chain.Tag().Child(0x02) != nil {
		t.Fatal("Aggregation time equal to publication time must be omitted.")
	}
	if chain.AggregationTime().Unix() != 10 || chain.PublicationTime().Unix() != 10 {
		t.Fatal("Unexpected chain times.")
	}
}

func testCalChainRightLinkMatch(t *testing.T, _ ...interface{}) {
	link := func(isLeft bool, name string) *ChainLink {
		l, err := NewCalendarLink(isLeft, digest(t, hash.SHA2_256, []byte(name)))
		if err != nil {
			t.Fatal("Failed to create link: ", err)
		}
		return l
	}
	chain := func(links ...*ChainLink) *CalendarChain {
		c, err := NewCalendarChain(100, 50, digest(t, hash.SHA2_256, []byte("in")), links)
		if err != nil {
			t.Fatal("Failed to create calendar chain: ", err)
		}
		return c
	}

	a := chain(link(true, "x1"), link(false, "y1"), link(true, "x2"), link(false, "y2"))
	b := chain(link(false, "y1"), link(true, "z"), link(false, "y2"), link(true, "w"))
	if err := a.RightLinkMatch(b); err != nil {
		t.Fatal("Right links should match: ", err)
	}
	if err := b.RightLinkMatch(a); err != nil {
		t.Fatal("Right links should match: ", err)
	}

	c := chain(link(false, "y1"))
	if err := a.RightLinkMatch(c); !errors.Is(err, errors.KsiIncompatibleHashChain) {
		t.Fatal("Right link count mismatch must fail: ", err)
	}
	d := chain(link(false, "y1"), link(false, "q"))
	if err := a.RightLinkMatch(d); !errors.Is(err, errors.KsiIncompatibleHashChain) {
		t.Fatal("Right link hash mismatch must fail: ", err)
	}
}

func testCalChainVerifyCompatibility(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("in"))
	short, err := NewCalendarChain(1000, 700, input, calendarLinks(t, 1000, 700, "s"))
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	same, err := NewCalendarChain(1000, 700, input, calendarLinks(t, 1000, 700, "s"))
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	if err := short.VerifyCompatibility(same); err != nil {
		t.Fatal("Equal chains must be compatible: ", err)
	}

	otherTime, err := NewCalendarChain(1000, 701, input, calendarLinks(t, 1000, 701, "s"))
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	if err := short.VerifyCompatibility(otherTime); !errors.Is(err, errors.KsiIncompatibleHashChain) {
		t.Fatal("Aggregation time mismatch must fail: ", err)
	}

	otherInput, err := NewCalendarChain(1000, 700, digest(t, hash.SHA2_256, []byte("other")), calendarLinks(t, 1000, 700, "s"))
	if err != nil {
		t.Fatal("Failed to create calendar chain: ", err)
	}
	if err := short.VerifyCompatibility(otherInput); !errors.Is(err, errors.KsiIncompatibleHashChain) {
		t.Fatal("Input hash mismatch must fail: ", err)
	}
}

func testCalChainRejectsAggregationLinks(t *testing.T, _ ...interface{}) {
	if _, err := NewCalendarChain(1, 1, digest(t, hash.SHA2_256, []byte("in")),
		[]*ChainLink{siblingLink(t, true, 0, "a")}); err == nil {
		t.Fatal("Aggregation link must not be accepted in calendar chain.")
	}
	if _, err := NewCalendarChain(1, 1, hash.Imprint{0x01, 0x02}, nil); err == nil {
		t.Fatal("Invalid input hash must fail.")
	}
}

func testCalChainRequiresLinks(t *testing.T, _ ...interface{}) {
	input := digest(t, hash.SHA2_256, []byte("root"))
	_, err := NewCalendarChain(10, 10, input, nil)
	if !errors.Is(err, errors.KsiInvalidStructure) {
		t.Fatal("Calendar chain without links must fail: ", err)
	}
	v := ViolationOf(err)
	if v == nil || v.Rule != RuleMandatory || len(v.Path) != 2 || v.Path[1] != TypeLinkLeft {
		t.Fatal("Unexpected violation: ", v)
	}

	noLinks := tlv.NewComposite(TypeCalendarChain, tlv.NewInteger(0x01, 10), tlv.NewImprint(0x05, input))
	if _, err := CalendarChainFromTag(noLinks); ViolationOf(err) == nil {
		t.Fatal("Calendar chain without links must fail: ", err)
	}
}
