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

	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/pdu"
)

// Round is one aggregation round: the documents are aggregated into a binary tree by a lower aggregation chain per
// document, and the tree root is aggregated to the round root by an upper chain shared by all documents.
type Round struct {
	aggrTime int64
	lower    []*pdu.AggregationChain
	upper    *pdu.AggregationChain
	root     hash.Imprint
}

// RoundOption is an optional parameter of NewRound.
type RoundOption func(*roundConfig)

type roundConfig struct {
	meta       *pdu.MetaData
	upperLinks int
}

// RoundMetaData binds every document to the aggregator client identity with a metadata link.
func RoundMetaData(md *pdu.MetaData) RoundOption {
	return func(c *roundConfig) { c.meta = md }
}

// RoundUpperLinks sets the number of links of the shared upper chain (default 2).
func RoundUpperLinks(n int) RoundOption {
	return func(c *roundConfig) { c.upperLinks = n }
}

// NewRound aggregates the documents at the aggregation time. The seed makes the padding and upper chain siblings
// distinct between rounds.
func NewRound(tb testing.TB, aggrTime int64, seed string, docs []hash.Imprint, opts ...RoundOption) *Round {
	tb.Helper()
	if len(docs) == 0 {
		tb.Fatal("Round requires at least one document.")
	}
	cfg := roundConfig{upperLinks: 2}
	for _, o := range opts {
		o(&cfg)
	}

	var (
		base   byte
		leaves = make([]hash.Imprint, 0, len(docs))
	)
	for _, d := range docs {
		if cfg.meta == nil {
			leaves = append(leaves, d)
			continue
		}
		content, err := cfg.meta.Content()
		if err != nil {
			tb.Fatal("Failed to get metadata content: ", err)
		}
		leaves = append(leaves, Digest(tb, d, content, []byte{1}))
	}
	if cfg.meta != nil {
		base = 1
	}

	width := 2
	for width < len(leaves) {
		width <<= 1
	}
	for j := len(leaves); j < width; j++ {
		leaves = append(leaves, Digest(tb, []byte(seed), []byte("pad"), uint64Bytes(int64(j))))
	}

	tree := [][]hash.Imprint{leaves}
	for h := 1; len(tree[h-1]) > 1; h++ {
		prev := tree[h-1]
		level := make([]hash.Imprint, len(prev)/2)
		for k := range level {
			level[k] = Digest(tb, prev[2*k], prev[2*k+1], []byte{base + byte(h)})
		}
		tree = append(tree, level)
	}

	var upperLinks []*pdu.ChainLink
	for j := 0; j < cfg.upperLinks; j++ {
		upperLinks = append(upperLinks,
			HashLink(tb, j%2 == 1, 0, Digest(tb, []byte(seed), []byte("upper"), uint64Bytes(int64(j)))))
	}
	r := &Round{aggrTime: aggrTime}
	r.upper = NewChain(tb, aggrTime, nil, tree[len(tree)-1][0], upperLinks)
	var err error
	if r.root, _, err = r.upper.Aggregate(base + byte(len(tree)-1)); err != nil {
		tb.Fatal("Failed to aggregate upper chain: ", err)
	}

	for i, d := range docs {
		var links []*pdu.ChainLink
		if cfg.meta != nil {
			l, err := pdu.NewChainLink(true, 0, pdu.LinkSiblingMetaData(cfg.meta))
			if err != nil {
				tb.Fatal("Failed to create metadata link: ", err)
			}
			links = append(links, l)
		}
		for h := 1; h < len(tree); h++ {
			idx := i >> uint(h-1)
			if idx%2 == 0 {
				links = append(links, HashLink(tb, true, 0, tree[h-1][idx+1]))
			} else {
				links = append(links, HashLink(tb, false, 0, tree[h-1][idx-1]))
			}
		}
		r.lower = append(r.lower, NewChain(tb, aggrTime, r.upper.ChainIndex(), d, links))
	}
	return r
}

// HashLink returns an aggregation chain link with a sibling hash.
func HashLink(tb testing.TB, isLeft bool, levelCorr byte, sibling hash.Imprint) *pdu.ChainLink {
	tb.Helper()
	l, err := pdu.NewChainLink(isLeft, levelCorr, pdu.LinkSiblingHash(sibling))
	if err != nil {
		tb.Fatal("Failed to create chain link: ", err)
	}
	return l
}

// NewChain returns an aggregation chain whose index is the parent index extended with the chain shape.
func NewChain(tb testing.TB, aggrTime int64, parentIndex []uint64, input hash.Imprint, links []*pdu.ChainLink) *pdu.AggregationChain {
	tb.Helper()
	index := append(append([]uint64(nil), parentIndex...), 1)
	c, err := pdu.NewAggregationChain(uint64(aggrTime), index, input, Algorithm, links)
	if err != nil {
		tb.Fatal("Failed to create aggregation chain: ", err)
	}
	shape, err := c.CalculateShape()
	if err != nil {
		tb.Fatal("Failed to calculate chain shape: ", err)
	}
	index[len(index)-1] = shape
	if c, err = pdu.NewAggregationChain(uint64(aggrTime), index, input, Algorithm, links); err != nil {
		tb.Fatal("Failed to create aggregation chain: ", err)
	}
	return c
}

// Chains returns the aggregation chains of the i-th document, lowest first.
func (r *Round) Chains(i int) pdu.AggregationChainList {
	return pdu.AggregationChainList{r.lower[i], r.upper}
}

// Root returns the round root hash, i.e. the calendar leaf.
func (r *Round) Root() hash.Imprint {
	return r.root
}

// AggregationTime returns the round time.
func (r *Round) AggregationTime() int64 {
	return r.aggrTime
}
