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

package utils

import (
	"testing"
	"time"

	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/pdu"
)

// Calendar is an in-memory calendar with one leaf per second starting at 0. Leaves not set explicitly are derived
// from the seed, so calendar chains of one calendar are consistent across publication times.
type Calendar struct {
	seed   string
	leaves map[int64]hash.Imprint
	nodes  map[[2]int64]hash.Imprint
}

// NewCalendar returns an empty calendar.
func NewCalendar(seed string) *Calendar {
	return &Calendar{
		seed:   seed,
		leaves: make(map[int64]hash.Imprint),
		nodes:  make(map[[2]int64]hash.Imprint),
	}
}

// SetLeaf sets the calendar leaf at the time, normally an aggregation round root.
func (c *Calendar) SetLeaf(t int64, h hash.Imprint) {
	c.leaves[t] = h
	c.nodes = make(map[[2]int64]hash.Imprint)
}

// AddRound sets the round root as the leaf at the round time.
func (c *Calendar) AddRound(r *Round) {
	c.SetLeaf(r.AggregationTime(), r.Root())
}

func (c *Calendar) leaf(tb testing.TB, t int64) hash.Imprint {
	if h, ok := c.leaves[t]; ok {
		return h
	}
	return Digest(tb, []byte(c.seed), uint64Bytes(t))
}

func highBit(r int64) int64 {
	hb := int64(1)
	for hb<<1 <= r {
		hb <<= 1
	}
	return hb
}

// node returns the root of the calendar tree over the leaves [start, start+r].
func (c *Calendar) node(tb testing.TB, start, r int64) hash.Imprint {
	if r == 0 {
		return c.leaf(tb, start)
	}
	key := [2]int64{start, r}
	if h, ok := c.nodes[key]; ok {
		return h
	}
	hb := highBit(r)
	h := Digest(tb, c.node(tb, start, hb-1), c.node(tb, start+hb, r-hb), []byte{0xff})
	c.nodes[key] = h
	return h
}

// Root returns the calendar root at the publication time.
func (c *Calendar) Root(tb testing.TB, pubTime int64) hash.Imprint {
	tb.Helper()
	return c.node(tb, 0, pubTime)
}

// Chain returns the calendar chain from the leaf at aggrTime to the root at pubTime.
func (c *Calendar) Chain(tb testing.TB, pubTime, aggrTime int64) *pdu.CalendarChain {
	tb.Helper()
	if aggrTime > pubTime || aggrTime < 0 {
		tb.Fatalf("Invalid calendar chain times: pub=%d aggr=%d", pubTime, aggrTime)
	}

	var (
		links []*pdu.ChainLink
		start int64
		r     = pubTime
	)
	for r > 0 {
		var (
			hb   = highBit(r)
			link *pdu.ChainLink
			err  error
		)
		if aggrTime >= start+hb {
			link, err = pdu.NewCalendarLink(false, c.node(tb, start, hb-1))
			start += hb
			r -= hb
		} else {
			link, err = pdu.NewCalendarLink(true, c.node(tb, start+hb, r-hb))
			r = hb - 1
		}
		if err != nil {
			tb.Fatal("Failed to create calendar link: ", err)
		}
		links = append([]*pdu.ChainLink{link}, links...)
	}

	chain, err := pdu.NewCalendarChain(uint64(pubTime), uint64(aggrTime), c.leaf(tb, aggrTime), links)
	if err != nil {
		tb.Fatal("Failed to create calendar chain: ", err)
	}
	return chain
}

// PublicationData returns the publication of the calendar root at the publication time.
func (c *Calendar) PublicationData(tb testing.TB, pubTime int64) *pdu.PublicationData {
	tb.Helper()
	pd, err := pdu.NewPublicationData(time.Unix(pubTime, 0), c.Root(tb, pubTime))
	if err != nil {
		tb.Fatal("Failed to create publication data: ", err)
	}
	return pd
}

// PublicationRec returns the signature publication record of the calendar root at the publication time.
func (c *Calendar) PublicationRec(tb testing.TB, pubTime int64, refs ...string) *pdu.PublicationRec {
	tb.Helper()
	var opts []pdu.PublicationRecOptional
	if len(refs) > 0 {
		opts = append(opts, pdu.PubRecOptPublicationRef(refs...))
	}
	rec, err := pdu.NewPublicationRec(c.PublicationData(tb, pubTime), opts...)
	if err != nil {
		tb.Fatal("Failed to create publication record: ", err)
	}
	return rec
}
