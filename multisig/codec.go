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

package multisig

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/signature"
	"github.com/guardtime/goksi-multisig/tlv"
)

// Magic is the multi-signature container header.
const Magic = "MULTISIG"

// The entry index follows the tag forest: one entry reference per contained signature, listing the nodes of the
// signature by their node IDs, so that the entries are restored exactly. Entry references are non-critical, a
// reader not aware of them restores the entries from the forest alone.
const (
	typeEntryRef = 0x0c01

	typeRefChain   = 0x01
	typeRefCal     = 0x02
	typeRefRecord  = 0x03
	typeRefRfc3161 = 0x04
)

var entryRefTemplate = tlv.Composite(typeEntryRef,
	tlv.NewTemplate(typeRefChain, tlv.KindImprint),
	tlv.NewTemplate(typeRefCal, tlv.KindImprint),
	tlv.NewTemplate(typeRefRecord, tlv.KindImprint),
	tlv.NewTemplate(typeRefRfc3161, tlv.KindImprint),
)

var forestLookup = tlv.NewLookup(
	pdu.AggregationChainTemplate,
	pdu.CalendarChainTemplate,
	pdu.PublicationRecTemplate,
	pdu.CalendarAuthRecTemplate,
	pdu.RFC3161Template,
	entryRefTemplate,
)

// WriteTo writes the magic header followed by the tag forest.
func (m *MultiSignature) WriteTo(w io.Writer) (int64, error) {
	if m == nil || w == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := io.WriteString(w, Magic)
	total := int64(n)
	if err != nil {
		return total, errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to write multi-signature.")
	}
	for _, t := range m.nodes.live() {
		n, err := t.WriteTo(w)
		total += n
		if err != nil {
			return total, errors.KsiErr(err, errors.KsiIoError).AppendMessage("Unable to write multi-signature.")
		}
	}
	for _, e := range m.entries {
		n, err := e.ref().WriteTo(w)
		total += n
		if err != nil {
			return total, errors.KsiErr(err, errors.KsiIoError).AppendMessage("Unable to write multi-signature index.")
		}
	}
	return total, nil
}

// ref returns the entry reference of the entry index.
func (e *entry) ref() *tlv.Tag {
	node := func(typ uint16, id string) *tlv.Tag {
		if id == "" {
			return nil
		}
		return tlv.NewImprint(typ, hash.Imprint(id))
	}
	var refs []*tlv.Tag
	for _, id := range e.chains {
		refs = append(refs, node(typeRefChain, id))
	}
	refs = append(refs, node(typeRefCal, e.calChain), node(typeRefRecord, e.record), node(typeRefRfc3161, e.rfc3161))
	return tlv.NewComposite(typeEntryRef, refs...).WithFlags(true, true)
}

// Serialize returns the binary representation of the container.
func (m *MultiSignature) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromStream initializes the container from a multi-signature stream.
// Returns an error with code KsiMultiSigInvalidMagic if the stream does not start with the magic header.
func FromStream(r io.Reader) Option {
	return func(m *MultiSignature) error {
		if r == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing reader.")
		}
		return m.readFrom(r)
	}
}

// FromBytes initializes the container from a serialized multi-signature.
func FromBytes(raw []byte) Option {
	return func(m *MultiSignature) error {
		if len(raw) == 0 {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing multi-signature data.")
		}
		return m.readFrom(bytes.NewReader(raw))
	}
}

// FromFile initializes the container from a multi-signature file.
func FromFile(path string) Option {
	return func(m *MultiSignature) error {
		f, err := os.Open(path)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to open multi-signature file.")
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Error("Failed to close file: ", err)
			}
		}()
		return m.readFrom(bufio.NewReader(f))
	}
}

func (m *MultiSignature) readFrom(r io.Reader) error {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != Magic {
		return errors.New(errors.KsiMultiSigInvalidMagic).SetExtError(err)
	}

	var (
		reader = tlv.NewReader(r)
		tags   []*tlv.Tag
		refs   []*tlv.Tag
	)
	for {
		t, err := reader.Next(forestLookup)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.KsiErr(err).AppendMessage("Unable to read multi-signature tag forest.")
		}
		if t.Type == typeEntryRef {
			refs = append(refs, t)
			continue
		}
		tags = append(tags, t)
	}

	f, err := newForest(tags)
	if err != nil {
		return err
	}
	sigs, err := f.indexed(refs)
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		if err := m.add(sig); err != nil {
			return err
		}
	}

	// Signatures not listed in the index are restored from the forest. A candidate is taken only if it claims a
	// tag no restored signature uses.
	cands, err := f.candidates()
	if err != nil {
		return err
	}
	for _, c := range cands {
		if !m.claims(c) {
			continue
		}
		sig, err := c.signature()
		if err != nil {
			return errors.KsiErr(err).AppendMessage(
				fmt.Sprintf("Invalid signature for %s in multi-signature.", c.chains[0].InputHash()))
		}
		if err := m.add(sig); err != nil {
			return err
		}
	}

	if dropped := len(tags) - len(m.nodes.live()); dropped > 0 {
		log.Notice(fmt.Sprintf("Multi-signature: %d tag(s) not used by any signature were dropped.", dropped))
	}
	return nil
}

// claims reports whether the candidate references a tag not present in the container.
func (m *MultiSignature) claims(c *candidate) bool {
	for _, t := range c.tags() {
		id, err := nodeID(t)
		if err != nil || m.nodes.refs(id) == 0 {
			return true
		}
	}
	return false
}

// candidate is a combination of forest tags forming a signature.
type candidate struct {
	chains   pdu.AggregationChainList
	calChain *pdu.CalendarChain
	pubRec   *pdu.PublicationRec
	authRec  *pdu.CalendarAuthRec
	rfc3161  *pdu.RFC3161
}

func (c *candidate) tags() []*tlv.Tag {
	var tags []*tlv.Tag
	for _, ch := range c.chains {
		tags = append(tags, ch.Tag())
	}
	if c.calChain != nil {
		tags = append(tags, c.calChain.Tag())
	}
	if c.pubRec != nil {
		tags = append(tags, c.pubRec.Tag())
	}
	if c.authRec != nil {
		tags = append(tags, c.authRec.Tag())
	}
	if c.rfc3161 != nil {
		tags = append(tags, c.rfc3161.Tag())
	}
	return tags
}

func (c *candidate) signature() (*signature.Signature, error) {
	return signature.New(signature.BuildFromComponents(c.chains, c.calChain, c.pubRec, c.authRec, c.rfc3161))
}

// forest is the parsed tag forest of a multi-signature stream.
type forest struct {
	chains []*pdu.AggregationChain
	cals   []*pdu.CalendarChain
	pubs   []*pdu.PublicationRec
	auths  []*pdu.CalendarAuthRec
	rfcs   []*pdu.RFC3161

	// Tags by node ID.
	byID map[string]*tlv.Tag
}

func newForest(tags []*tlv.Tag) (*forest, error) {
	f := &forest{byID: make(map[string]*tlv.Tag, len(tags))}
	for _, t := range tags {
		id, err := nodeID(t)
		if err != nil {
			return nil, err
		}
		f.byID[id] = t

		switch t.Type {
		case pdu.TypeAggregationChain:
			var c *pdu.AggregationChain
			if c, err = pdu.AggregationChainFromTag(t); err == nil {
				f.chains = append(f.chains, c)
			}
		case pdu.TypeCalendarChain:
			var c *pdu.CalendarChain
			if c, err = pdu.CalendarChainFromTag(t); err == nil {
				f.cals = append(f.cals, c)
			}
		case pdu.TypePublicationRec:
			var p *pdu.PublicationRec
			if p, err = pdu.PublicationRecFromTag(t); err == nil {
				f.pubs = append(f.pubs, p)
			}
		case pdu.TypeCalendarAuthRec:
			var a *pdu.CalendarAuthRec
			if a, err = pdu.CalendarAuthRecFromTag(t); err == nil {
				f.auths = append(f.auths, a)
			}
		case pdu.TypeRFC3161:
			var r *pdu.RFC3161
			if r, err = pdu.RFC3161FromTag(t); err == nil {
				f.rfcs = append(f.rfcs, r)
			}
		default:
			log.Debug(fmt.Sprintf("Multi-signature: skipping non-critical TLV[0x%x].", t.Type))
		}
		if err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Invalid multi-signature tag forest.")
		}
	}
	return f, nil
}

func isParentIndex(parent, child []uint64) bool {
	if len(child) != len(parent)+1 {
		return false
	}
	for i := range parent {
		if parent[i] != child[i] {
			return false
		}
	}
	return true
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

// isLeaf reports whether no other chain of the round continues from c.
func (f *forest) isLeaf(c *pdu.AggregationChain) bool {
	for _, o := range f.chains {
		if o != c && o.AggregationTime().Equal(c.AggregationTime()) && isParentIndex(c.ChainIndex(), o.ChainIndex()) {
			return false
		}
	}
	return true
}

// path assembles the aggregation chains from the leaf to the top of the aggregation tree and returns the chains
// together with the aggregation root hash.
func (f *forest) path(leaf *pdu.AggregationChain) (pdu.AggregationChainList, hash.Imprint, error) {
	list := pdu.AggregationChainList{leaf}
	out, lvl, err := leaf.Aggregate(0)
	if err != nil {
		return nil, nil, err
	}
	for cur := leaf; len(cur.ChainIndex()) > 1; {
		var parent *pdu.AggregationChain
		for _, o := range f.chains {
			if o.AggregationTime().Equal(cur.AggregationTime()) &&
				isParentIndex(o.ChainIndex(), cur.ChainIndex()) &&
				hash.Equal(o.InputHash(), out) {
				parent = o
				break
			}
		}
		if parent == nil {
			return nil, nil, errors.New(errors.KsiInvalidFormatError).
				AppendMessage(fmt.Sprintf("Missing upper aggregation hash chain for index %v at %d.",
					cur.ChainIndex(), cur.AggregationTime().Unix()))
		}
		if out, lvl, err = parent.Aggregate(lvl); err != nil {
			return nil, nil, err
		}
		list = append(list, parent)
		cur = parent
	}
	return list, out, nil
}

// trusts returns the calendar chains of the aggregation round, each with every matching trust record, followed
// by an aggregation only option. Chains with a publication record come first, then the later publication times.
func (f *forest) trusts(chains pdu.AggregationChainList, root hash.Imprint) ([]*candidate, error) {
	var (
		aggrTime = chains[0].AggregationTime()
		opts     []*candidate
	)
	for _, c := range f.cals {
		if !c.AggregationTime().Equal(aggrTime) || !hash.Equal(c.InputHash(), root) {
			continue
		}
		out, err := c.Aggregate()
		if err != nil {
			return nil, err
		}
		n := len(opts)
		for _, p := range f.publications(c.PublicationTime().Unix(), out) {
			opts = append(opts, &candidate{calChain: c, pubRec: p})
		}
		for _, a := range f.auths {
			pubData := a.PublicationData()
			if pubData.PublicationTime().Equal(c.PublicationTime()) && hash.Equal(pubData.PublishedHash(), out) {
				opts = append(opts, &candidate{calChain: c, authRec: a})
			}
		}
		if len(opts) == n {
			opts = append(opts, &candidate{calChain: c})
		}
	}
	sort.SliceStable(opts, func(i, j int) bool {
		l, r := opts[i], opts[j]
		if (l.pubRec != nil) != (r.pubRec != nil) {
			return l.pubRec != nil
		}
		return l.calChain.PublicationTime().After(r.calChain.PublicationTime())
	})
	return append(opts, &candidate{}), nil
}

func (f *forest) publications(pubTime int64, published hash.Imprint) []*pdu.PublicationRec {
	var recs []*pdu.PublicationRec
	for _, p := range f.pubs {
		pubData := p.PublicationData()
		if pubData.PublicationTime().Unix() == pubTime && hash.Equal(pubData.PublishedHash(), published) {
			recs = append(recs, p)
		}
	}
	return recs
}

// legacyRecords returns the RFC3161 records feeding the leaf chain.
func (f *forest) legacyRecords(leaf *pdu.AggregationChain) ([]*pdu.RFC3161, error) {
	var recs []*pdu.RFC3161
	for _, r := range f.rfcs {
		if !r.AggregationTime().Equal(leaf.AggregationTime()) || !equalIndex(r.ChainIndex(), leaf.ChainIndex()) {
			continue
		}
		out, err := r.OutputHash(leaf.InputHash().Algorithm())
		if err != nil {
			return nil, err
		}
		if hash.Equal(out, leaf.InputHash()) {
			recs = append(recs, r)
		}
	}
	return recs, nil
}

// leaves returns the chains no other chain continues from, and the remaining chains, longest index first.
func (f *forest) leaves() (leaves, inner []*pdu.AggregationChain) {
	for _, c := range f.chains {
		if f.isLeaf(c) {
			leaves = append(leaves, c)
		} else {
			inner = append(inner, c)
		}
	}
	sort.SliceStable(inner, func(i, j int) bool {
		return len(inner[i].ChainIndex()) > len(inner[j].ChainIndex())
	})
	return leaves, inner
}

// candidates returns every signature the forest can form, in the order of preference. Every leaf chain must reach
// the top of its aggregation tree.
func (f *forest) candidates() ([]*candidate, error) {
	var (
		leaves, inner = f.leaves()
		cands         []*candidate
	)
	for i, leaf := range append(leaves, inner...) {
		chains, root, err := f.path(leaf)
		if err != nil && i >= len(leaves) {
			log.Debug("Multi-signature: inner chain does not form a signature: ", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		trusts, err := f.trusts(chains, root)
		if err != nil {
			return nil, err
		}
		rfcs, err := f.legacyRecords(leaf)
		if err != nil {
			return nil, err
		}
		for _, rfc := range append(rfcs, nil) {
			for _, tr := range trusts {
				c := *tr
				c.chains, c.rfc3161 = chains, rfc
				cands = append(cands, &c)
			}
		}
	}
	return cands, nil
}

// indexed restores the signatures listed in the entry index. If the index refers to a node missing from the
// forest, the index is stale and is ignored.
func (f *forest) indexed(refs []*tlv.Tag) ([]*signature.Signature, error) {
	var sigs []*signature.Signature
	for _, et := range refs {
		c := &candidate{}
		for _, ref := range et.Children() {
			id, err := ref.Imprint()
			if err != nil {
				return nil, errors.KsiErr(err).AppendMessage("Invalid multi-signature entry index.")
			}
			t, ok := f.byID[string(id)]
			if !ok {
				log.Notice("Multi-signature: entry index refers to a missing node, index is ignored.")
				return nil, nil
			}
			if err := c.set(ref.Type, t); err != nil {
				return nil, errors.KsiErr(err).AppendMessage("Invalid multi-signature entry index.")
			}
		}
		if len(c.chains) == 0 {
			return nil, errors.New(errors.KsiInvalidFormatError).
				AppendMessage("Multi-signature entry index lists an entry without aggregation hash chains.")
		}
		sig, err := c.signature()
		if err != nil {
			return nil, errors.KsiErr(err).AppendMessage(
				fmt.Sprintf("Invalid signature for %s in multi-signature.", c.chains[0].InputHash()))
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// set assigns the tag referenced from the entry index.
func (c *candidate) set(ref uint16, t *tlv.Tag) (err error) {
	switch {
	case ref == typeRefChain:
		var ch *pdu.AggregationChain
		if ch, err = pdu.AggregationChainFromTag(t); err == nil {
			c.chains = append(c.chains, ch)
		}
	case ref == typeRefCal:
		c.calChain, err = pdu.CalendarChainFromTag(t)
	case ref == typeRefRecord && t.Type == pdu.TypePublicationRec:
		c.pubRec, err = pdu.PublicationRecFromTag(t)
	case ref == typeRefRecord:
		c.authRec, err = pdu.CalendarAuthRecFromTag(t)
	case ref == typeRefRfc3161:
		c.rfc3161, err = pdu.RFC3161FromTag(t)
	default:
		err = errors.New(errors.KsiInvalidFormatError).AppendMessage(fmt.Sprintf("Unknown entry reference 0x%x.", ref))
	}
	return err
}
