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
	"strconv"
	"strings"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/tlv"
)

// CalendarChain is the calendar hash chain structure consisting of the following fields:
//  * 'publication time': the UTC time when the calendar tree was created;
//  * 'aggregation time': the UTC time of the aggregation round. If omitted, it equals the publication time;
//  * 'input hash': the input for the computation specified by the hash chain;
//  * 'chain links': a sequence of left and right links, each carrying a sibling imprint.
type CalendarChain struct {
	tag       *tlv.Tag
	pubTime   uint64
	aggrTime  *uint64
	inputHash hash.Imprint
	links     ChainLinkList
}

// NewCalendarChain returns a calendar hash chain. If aggrTime equals pubTime the aggregation time element is
// omitted. The links are ordered from the input hash upward.
func NewCalendarChain(pubTime, aggrTime uint64, inputHash hash.Imprint, links []*ChainLink) (*CalendarChain, error) {
	if !inputHash.IsValid() {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid input hash.")
	}

	children := []*tlv.Tag{tlv.NewInteger(0x01, pubTime)}
	if aggrTime != pubTime {
		children = append(children, tlv.NewInteger(0x02, aggrTime))
	}
	children = append(children, tlv.NewImprint(0x05, inputHash))
	for _, l := range links {
		if l == nil || !l.isCalendar {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid calendar chain link.")
		}
		children = append(children, l.tag.Clone())
	}
	return CalendarChainFromTag(tlv.NewComposite(TypeCalendarChain, children...))
}

// CalendarChainFromTag returns the calendar chain projection of the tag.
func CalendarChainFromTag(t *tlv.Tag) (*CalendarChain, error) {
	f := scan(t, TypeCalendarChain, 0x01, 0x02, 0x05, TypeLinkLeft, TypeLinkRight)
	c := &CalendarChain{tag: t}
	c.pubTime = f.uint(f.one(0x01))
	if at := f.opt(0x02); at != nil {
		v := f.uint(at)
		c.aggrTime = &v
	}
	c.inputHash = f.imprint(f.one(0x05))

	if f.err == nil {
		for _, child := range t.Children() {
			if child.Type != TypeLinkLeft && child.Type != TypeLinkRight {
				continue
			}
			f.sub(child, func(e *tlv.Tag) error {
				link, err := CalendarLinkFromTag(e)
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
func (c *CalendarChain) Tag() *tlv.Tag {
	if c == nil {
		return nil
	}
	return c.tag
}

// PublicationTime returns calendar hash chain publication time.
func (c *CalendarChain) PublicationTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	return time.Unix(int64(c.pubTime), 0)
}

// AggregationTime returns calendar hash chain aggregation time. If not present, the publication time is returned.
func (c *CalendarChain) AggregationTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	if c.aggrTime == nil {
		return c.PublicationTime()
	}
	return time.Unix(int64(*c.aggrTime), 0)
}

// InputHash returns calendar hash chain input hash.
func (c *CalendarChain) InputHash() hash.Imprint {
	if c == nil {
		return nil
	}
	return c.inputHash
}

// ChainLinks returns calendar hash chain links.
func (c *CalendarChain) ChainLinks() ChainLinkList {
	if c == nil {
		return nil
	}
	return c.links
}

// String implements fmt.(Stringer) interface.
func (c *CalendarChain) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Publication time: (")
	b.WriteString(strconv.FormatUint(c.pubTime, 10))
	b.WriteString(") ")
	b.WriteString(c.PublicationTime().UTC().String())
	b.WriteString("\n")
	if c.aggrTime != nil {
		b.WriteString("Aggregation time: (")
		b.WriteString(strconv.FormatUint(*c.aggrTime, 10))
		b.WriteString(") ")
		b.WriteString(c.AggregationTime().UTC().String())
		b.WriteString("\n")
	}
	b.WriteString("Input hash      : ")
	b.WriteString(c.inputHash.String())
	b.WriteString("\n")
	b.WriteString(c.links.String())
	return b.String()
}

// Aggregate aggregates the calendar hash chain.
// Returns the resulting root hash.
func (c *CalendarChain) Aggregate() (hash.Imprint, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	hsh, _, err := c.links.aggregate(true, hash.SHA_NA, c.inputHash, 0xff)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to calculate calendar hash chain root hash.")
	}
	return hsh, nil
}

// CalculateAggregationTime returns aggregation time calculated based on the shape of the calendar hash chain.
//
// The calendar tree is built deterministically: the left sub-tree of a node is always a perfect binary tree, and a
// right sub-tree with M leaves has the shape of an entire calendar tree built on M leaves. Walking the chain from
// the root down and summing the leaf counts of the sub-trees to the left of every right link yields the time of
// the leaf.
func (c *CalendarChain) CalculateAggregationTime() (time.Time, error) {
	if c == nil {
		return time.Unix(0, 0), errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		t int64
		r = int64(c.pubTime)
	)
	for i := len(c.links) - 1; i >= 0; i-- {
		if r <= 0 {
			return time.Unix(0, 0), errors.New(errors.KsiInvalidFormatError).
				AppendMessage("Calendar hash chain shape is inconsistent with publication time.")
		}

		if c.links[i].isLeft {
			r = highBit(r) - 1
		} else {
			t += highBit(r)
			r -= highBit(r)
		}
	}

	if r != 0 {
		return time.Unix(0, 0), errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Calendar hash chain shape is inconsistent with publication time.")
	}
	return time.Unix(t, 0), nil
}

// highBit returns the value of the highest 1-bit in the binary representation of r, i.e. the highest integral
// power of 2 less than or equal to r.
func highBit(r int64) int64 {
	r |= r >> 1
	r |= r >> 2
	r |= r >> 4
	r |= r >> 8
	r |= r >> 16
	r |= r >> 32
	return r - (r >> 1)
}

// VerifyCompatibility checks if the two calendar hash chains are compatible with each other:
//  - the aggregation times match (the publication times may differ);
//  - the input hashes match;
//  - the right links from both calendar hash chains are pairwise equal.
func (c *CalendarChain) VerifyCompatibility(with *CalendarChain) error {
	if c == nil || with == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	if !c.AggregationTime().Equal(with.AggregationTime()) {
		msg := "Incompatible calendar hash chain - aggregation times mismatch."
		log.Info(msg)
		return errors.New(errors.KsiIncompatibleHashChain).AppendMessage(msg)
	}
	if !hash.Equal(c.inputHash, with.inputHash) {
		msg := "Incompatible calendar hash chain - input hashes mismatch."
		log.Info(msg)
		return errors.New(errors.KsiIncompatibleHashChain).AppendMessage(msg)
	}
	return c.RightLinkMatch(with)
}

func (l ChainLinkList) nextRightLink(from int) (*ChainLink, int) {
	var i int
	for i = from; i < len(l); i++ {
		if !l[i].isLeft {
			return l[i], i
		}
	}
	return nil, i
}

// RightLinkMatch verifies that the right links are pairwise equal.
func (c *CalendarChain) RightLinkMatch(with *CalendarChain) error {
	if c == nil || with == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	var (
		li, ri       int
		lLink, rLink *ChainLink
	)
	for {
		lLink, li = with.links.nextRightLink(li)
		rLink, ri = c.links.nextRightLink(ri)

		if lLink == nil && rLink == nil {
			return nil
		}
		if lLink == nil || rLink == nil {
			msg := "Different number of right links in calendar hash chain."
			log.Info(msg)
			return errors.New(errors.KsiIncompatibleHashChain).AppendMessage(msg)
		}
		if !hash.Equal(lLink.siblingHash, rLink.siblingHash) {
			msg := "Different sibling hashes in right links in calendar hash chains."
			log.Info(msg)
			return errors.New(errors.KsiIncompatibleHashChain).AppendMessage(msg)
		}
		li++
		ri++
	}
}
