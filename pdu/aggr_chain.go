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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/tlv"
)

// AggregationChain is the aggregation hash chain structure consisting of the following fields:
//  * 'aggregation time': the completion time of the aggregation round from which the hash chain starts;
//  * 'chain index': a location pointer. The last element is the shape of this chain, the preceding elements locate
//    the chain above it;
//  * 'input hash' and an optional 'input data': the input for the computation specified by the hash chain;
//  * 'aggregation algorithm': the one-octet identifier of the hash function used to compute the output hash values of
//    the link structures;
//  * 'chain links': a sequence of left and right 'chain link' structures.
type AggregationChain struct {
	tag        *tlv.Tag
	aggrTime   uint64
	chainIndex []uint64
	inputData  []byte
	inputHash  hash.Imprint
	aggrAlgo   hash.Algorithm
	links      ChainLinkList
}

// AggrChainOptional is functional optional value setter.
type AggrChainOptional func(*aggrChainFields)

type aggrChainFields struct {
	inputData []byte
}

// AggrChainInputData sets the optional input data.
func AggrChainInputData(d []byte) AggrChainOptional {
	return func(f *aggrChainFields) { f.inputData = d }
}

// NewAggregationChain returns an aggregation hash chain. The links are ordered from the input hash upward.
func NewAggregationChain(aggrTime uint64, chainIndex []uint64, inputHash hash.Imprint, algo hash.Algorithm,
	links []*ChainLink, optionals ...AggrChainOptional) (*AggregationChain, error) {

	var opt aggrChainFields
	for _, setter := range optionals {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		setter(&opt)
	}
	if !inputHash.IsValid() {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid input hash.")
	}

	children := []*tlv.Tag{tlv.NewInteger(0x02, aggrTime)}
	for _, i := range chainIndex {
		children = append(children, tlv.NewInteger(0x03, i))
	}
	if opt.inputData != nil {
		children = append(children, tlv.NewRaw(0x04, opt.inputData))
	}
	children = append(children, tlv.NewImprint(0x05, inputHash), tlv.NewInteger(0x06, uint64(algo)))
	for _, l := range links {
		if l == nil || l.isCalendar {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid aggregation chain link.")
		}
		children = append(children, l.tag.Clone())
	}
	return AggregationChainFromTag(tlv.NewComposite(TypeAggregationChain, children...))
}

// AggregationChainFromTag returns the aggregation chain projection of the tag.
func AggregationChainFromTag(t *tlv.Tag) (*AggregationChain, error) {
	f := scan(t, TypeAggregationChain, 0x02, 0x03, 0x04, 0x05, 0x06, TypeLinkLeft, TypeLinkRight)
	c := &AggregationChain{tag: t}
	c.aggrTime = f.uint(f.one(0x02))
	for _, i := range f.list(0x03, 1) {
		c.chainIndex = append(c.chainIndex, f.uint(i))
	}
	c.inputData = f.bytes(f.opt(0x04))
	c.inputHash = f.imprint(f.one(0x05))
	c.aggrAlgo = f.algorithm(f.one(0x06))

	if f.err == nil {
		for _, child := range t.Children() {
			if child.Type != TypeLinkLeft && child.Type != TypeLinkRight {
				continue
			}
			f.sub(child, func(e *tlv.Tag) error {
				link, err := ChainLinkFromTag(e)
				c.links = append(c.links, link)
				return err
			})
		}
		if f.err == nil && len(c.links) == 0 {
			f.fail(RuleMandatory, "at least one chain link required", TypeLinkLeft)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return c, nil
}

// Tag returns the underlying TLV element.
func (c *AggregationChain) Tag() *tlv.Tag {
	if c == nil {
		return nil
	}
	return c.tag
}

// AggregationTime returns aggregation chain aggregation time.
func (c *AggregationChain) AggregationTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	return time.Unix(int64(c.aggrTime), 0)
}

// ChainIndex returns aggregation chain index.
func (c *AggregationChain) ChainIndex() []uint64 {
	if c == nil {
		return nil
	}
	return append([]uint64(nil), c.chainIndex...)
}

// InputData returns aggregation chain input data, or nil if not present.
func (c *AggregationChain) InputData() []byte {
	if c == nil {
		return nil
	}
	return c.inputData
}

// InputHash returns aggregation chain input hash.
func (c *AggregationChain) InputHash() hash.Imprint {
	if c == nil {
		return nil
	}
	return c.inputHash
}

// AggregationAlgo returns aggregation chain aggregation algorithm.
func (c *AggregationChain) AggregationAlgo() hash.Algorithm {
	if c == nil {
		return hash.SHA_NA
	}
	return c.aggrAlgo
}

// ChainLinks returns aggregation chain links.
func (c *AggregationChain) ChainLinks() ChainLinkList {
	if c == nil {
		return nil
	}
	return c.links
}

// CalculateShape represents the shape of the aggregation chain as a bit-field. The bits represent the path
// from the root of the tree to the location of a hash value as a sequence of moves from a parent node in the
// tree to either the left or right child (bit values 0 and 1, respectively). Each bit sequence starts with a
// 1-bit to make sure no left most 0-bits are lost.
func (c *AggregationChain) CalculateShape() (uint64, error) {
	if c == nil || len(c.links) == 0 {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if len(c.links) > 63 {
		return 0, errors.New(errors.KsiInvalidFormatError).AppendMessage("Aggregation chain is too long for shape.")
	}

	var tmp uint64 = 1
	for i := len(c.links) - 1; i >= 0; i-- {
		tmp <<= 1
		if c.links[i].isLeft {
			tmp |= 1
		}
	}
	return tmp, nil
}

// Aggregate aggregates the aggregation hash chain. The 'startLevel' parameter is the level of the input hash.
// Returns the resulting root hash and level.
func (c *AggregationChain) Aggregate(startLevel byte) (hash.Imprint, byte, error) {
	if c == nil {
		return nil, 0, errors.New(errors.KsiInvalidArgumentError)
	}
	hsh, lvl, err := c.links.aggregate(false, c.aggrAlgo, c.inputHash, startLevel)
	if err != nil {
		return nil, 0, errors.KsiErr(err).AppendMessage("Failed to calculate aggregation hash chain root hash.")
	}
	return hsh, lvl, nil
}

// Identity returns the identities of the chain links, ordered from the input hash upward.
func (c *AggregationChain) Identity() HashChainLinkIdentityList {
	if c == nil {
		return nil
	}
	var idList HashChainLinkIdentityList
	for _, link := range c.links {
		if id := link.Identity(); id != nil {
			idList = append(idList, id)
		}
	}
	return idList
}

// String implements the Stringer interface.
func (c *AggregationChain) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Aggregation time: (")
	b.WriteString(strconv.FormatUint(c.aggrTime, 10))
	b.WriteString(") ")
	b.WriteString(c.AggregationTime().UTC().String())
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Chain index     : %v\n", c.chainIndex))
	if c.inputData != nil {
		b.WriteString("Input data      : ")
		b.WriteString(hex.EncodeToString(c.inputData))
		b.WriteString("\n")
	}
	b.WriteString("Input hash      : ")
	b.WriteString(c.inputHash.String())
	b.WriteString("\n")
	b.WriteString("Aggr. algorithm : ")
	b.WriteString(c.aggrAlgo.String())
	b.WriteString("\n")
	b.WriteString(c.links.String())
	return b.String()
}

// AggregationChainList is a sequence of aggregation chains ordered from the document upward.
type AggregationChainList []*AggregationChain

// Aggregate aggregates the chains in order and returns the result root hash, which is the input hash of the
// calendar chain. The input hash of every chain must equal the output hash of the previous one.
func (l AggregationChainList) Aggregate(lvl byte) (hash.Imprint, error) {
	if len(l) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		hsh hash.Imprint
		err error
	)
	for i, chain := range l {
		if hsh != nil && !hash.Equal(hsh, chain.inputHash) {
			return nil, errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Aggregation chain %d input hash does not match previous output.", i))
		}
		if hsh, lvl, err = chain.Aggregate(lvl); err != nil {
			return nil, err
		}
	}
	return hsh, nil
}

// Identity returns the identities present in all the aggregation hash chains.
func (l AggregationChainList) Identity() HashChainLinkIdentityList {
	var idList HashChainLinkIdentityList
	for _, c := range l {
		idList = append(idList, c.Identity()...)
	}
	return idList
}

// VerifyIndexSuccession checks that the chains form a path in a single aggregation tree: the top chain index has
// exactly one element, and every lower chain index extends the index of the chain above it by exactly one element.
func (l AggregationChainList) VerifyIndexSuccession() error {
	for i := len(l) - 1; i >= 0; i-- {
		idx := l[i].chainIndex
		if i == len(l)-1 {
			if len(idx) != 1 {
				return NewViolation(RuleChainIndex,
					fmt.Sprintf("top chain index must have exactly one element, has %d", len(idx)), TypeAggregationChain, 0x03)
			}
			continue
		}
		upper := l[i+1].chainIndex
		if len(idx) != len(upper)+1 {
			return NewViolation(RuleChainIndex,
				fmt.Sprintf("chain %d index length %d is not successor of %d", i, len(idx), len(upper)), TypeAggregationChain, 0x03)
		}
		for j := range upper {
			if idx[j] != upper[j] {
				return NewViolation(RuleChainIndex,
					fmt.Sprintf("chain %d index does not extend the index of chain %d", i, i+1), TypeAggregationChain, 0x03)
			}
		}
	}
	return nil
}
