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

// Package multisig implements a multi-signature container.
//
// The container stores many KSI signatures as a forest of deduplicated tags: aggregation hash chains shared by
// signatures of the same aggregation round, and calendar chains shared by the signatures of the same calendar
// round, are stored once. The signatures are indexed by the hashes of the signed documents.
package multisig

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/signature"
	"github.com/guardtime/goksi-multisig/tlv"
)

// MultiSignature is a deduplicating signature container.
// All methods are safe for concurrent use.
type MultiSignature struct {
	mu sync.Mutex

	nodes *arena
	// Entries ordered by aggregation time, in insertion order on equal times.
	entries []*entry
}

// entry is a single signature in the container.
type entry struct {
	docHash  hash.Imprint
	aggrTime time.Time

	// Aggregation chain input hashes, lowest chain first.
	inputs   []hash.Imprint
	rfcInput hash.Imprint

	// Node IDs.
	chains   []string
	calChain string
	record   string
	rfc3161  string
}

func (e *entry) ids() []string {
	ids := append([]string(nil), e.chains...)
	for _, id := range []string{e.calChain, e.record, e.rfc3161} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// match reports whether the hash is the input hash of the legacy record or of any aggregation hash chain.
func (e *entry) match(h hash.Imprint) bool {
	if e.rfcInput != nil && hash.Equal(e.rfcInput, h) {
		return true
	}
	for _, in := range e.inputs {
		if hash.Equal(in, h) {
			return true
		}
	}
	return false
}

func (e *entry) sameAs(o *entry) bool {
	l, r := e.ids(), o.ids()
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

// Option is a functional option for the container initialization.
type Option func(*MultiSignature) error

// New returns a new container. Without options the container is empty.
func New(opts ...Option) (*MultiSignature, error) {
	tmp := &MultiSignature{nodes: newArena()}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to initialize multi-signature.")
		}
	}
	return tmp, nil
}

// WithSignatures adds the signatures to the container.
func WithSignatures(sigs ...*signature.Signature) Option {
	return func(m *MultiSignature) error {
		for _, sig := range sigs {
			if err := m.add(sig); err != nil {
				return err
			}
		}
		return nil
	}
}

// Add merges the signature into the container. Tags already present in the container are reused. Adding a
// signature that is already present has no effect.
func (m *MultiSignature) Add(sig *signature.Signature) error {
	if m == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.add(sig)
}

func (m *MultiSignature) add(sig *signature.Signature) error {
	if sig == nil {
		return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature.")
	}
	if m.nodes == nil {
		m.nodes = newArena()
	}

	chains, err := sig.AggregationHashChainList()
	if err != nil {
		return err
	}
	if len(chains) == 0 {
		return errors.New(errors.KsiInvalidFormatError).AppendMessage("Signature has no aggregation hash chains.")
	}
	docHash, err := sig.DocumentHash()
	if err != nil {
		return err
	}

	var (
		e = &entry{
			docHash:  docHash,
			aggrTime: chains[0].AggregationTime(),
		}
		acquired []string
	)
	acquire := func(t *tlv.Tag) (string, error) {
		id, err := m.nodes.acquire(t)
		if err != nil {
			return "", err
		}
		acquired = append(acquired, id)
		return id, nil
	}
	rollback := func(err error) error {
		for _, id := range acquired {
			m.nodes.release(id)
		}
		return err
	}

	for _, c := range chains {
		id, err := acquire(c.Tag())
		if err != nil {
			return rollback(err)
		}
		e.chains = append(e.chains, id)
		e.inputs = append(e.inputs, c.InputHash())
	}
	if calChain, _ := sig.CalendarChain(); calChain != nil {
		if e.calChain, err = acquire(calChain.Tag()); err != nil {
			return rollback(err)
		}
	}
	if pubRec, _ := sig.Publication(); pubRec != nil {
		if e.record, err = acquire(pubRec.Tag()); err != nil {
			return rollback(err)
		}
	} else if authRec, _ := sig.CalendarAuthRec(); authRec != nil {
		if e.record, err = acquire(authRec.Tag()); err != nil {
			return rollback(err)
		}
	}
	if rfc, _ := sig.Rfc3161(); rfc != nil {
		if e.rfc3161, err = acquire(rfc.Tag()); err != nil {
			return rollback(err)
		}
		e.rfcInput = rfc.InputHash()
	}

	for _, o := range m.entries {
		if o.sameAs(e) {
			log.Debug("Signature is already present in multi-signature: ", docHash)
			return rollback(nil)
		}
	}
	m.insert(e)
	log.Debug(fmt.Sprintf("Signature added to multi-signature: %s (aggregation time %d).", docHash, e.aggrTime.Unix()))
	return nil
}

// insert places the entry after all entries with an equal or earlier aggregation time.
func (m *MultiSignature) insert(e *entry) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].aggrTime.After(e.aggrTime)
	})
	m.entries = append(m.entries, nil)
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
}

func (m *MultiSignature) remove(e *entry) {
	for i, o := range m.entries {
		if o == e {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	for _, id := range e.ids() {
		m.nodes.release(id)
	}
}

// find returns the earliest entry the document hash enters.
func (m *MultiSignature) find(h hash.Imprint) (*entry, error) {
	if len(h) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing document hash.")
	}
	for _, e := range m.entries {
		if e.match(h) {
			return e, nil
		}
	}
	return nil, errors.New(errors.KsiMultiSigHashNotFound).AppendMessage(fmt.Sprintf("Hash: %s.", h))
}

// Get returns the earliest signature (by aggregation time) for the document hash. The hash may be the input hash of
// any aggregation hash chain or of the legacy record of the signature.
// Returns an error with code KsiMultiSigHashNotFound if the container holds no signature for the hash.
func (m *MultiSignature) Get(h hash.Imprint) (*signature.Signature, error) {
	if m == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.find(h)
	if err != nil {
		return nil, err
	}
	return m.signature(e)
}

// signature assembles the entry signature.
func (m *MultiSignature) signature(e *entry) (*signature.Signature, error) {
	var (
		chains   pdu.AggregationChainList
		calChain *pdu.CalendarChain
		pubRec   *pdu.PublicationRec
		authRec  *pdu.CalendarAuthRec
		rfc      *pdu.RFC3161
		err      error
	)
	for _, id := range e.chains {
		c, err := pdu.AggregationChainFromTag(m.nodes.tag(id))
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}
	if e.calChain != "" {
		if calChain, err = pdu.CalendarChainFromTag(m.nodes.tag(e.calChain)); err != nil {
			return nil, err
		}
	}
	if e.record != "" {
		t := m.nodes.tag(e.record)
		if t.Type == pdu.TypePublicationRec {
			pubRec, err = pdu.PublicationRecFromTag(t)
		} else {
			authRec, err = pdu.CalendarAuthRecFromTag(t)
		}
		if err != nil {
			return nil, err
		}
	}
	if e.rfc3161 != "" {
		if rfc, err = pdu.RFC3161FromTag(m.nodes.tag(e.rfc3161)); err != nil {
			return nil, err
		}
	}

	return signature.New(signature.BuildFromComponents(chains, calChain, pubRec, authRec, rfc))
}

// Remove removes the earliest signature (by aggregation time) for the document hash. Tags shared with the
// remaining signatures are retained. Repeated calls remove the signatures of the hash oldest first.
// Returns an error with code KsiMultiSigHashNotFound if the container holds no signature for the hash.
func (m *MultiSignature) Remove(h hash.Imprint) error {
	if m == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.find(h)
	if err != nil {
		return err
	}
	m.remove(e)
	log.Debug(fmt.Sprintf("Signature removed from multi-signature: %s (aggregation time %d).", e.docHash, e.aggrTime.Unix()))
	return nil
}

// List returns the document hashes of the contained signatures, ordered by aggregation time.
func (m *MultiSignature) List() []hash.Imprint {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []hash.Imprint
next:
	for _, e := range m.entries {
		for _, h := range list {
			if hash.Equal(h, e.docHash) {
				continue next
			}
		}
		list = append(list, e.docHash.Clone())
	}
	return list
}

// Count returns the number of contained signatures.
func (m *MultiSignature) Count() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Tags returns a copy of the deduplicated tag forest.
func (m *MultiSignature) Tags() []*tlv.Tag {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var tags []*tlv.Tag
	for _, t := range m.nodes.live() {
		tags = append(tags, t.Clone())
	}
	return tags
}
