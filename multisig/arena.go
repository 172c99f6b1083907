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
	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/tlv"
)

// node is a deduplicated tag shared by the entries referencing it.
type node struct {
	tag  *tlv.Tag
	refs int
}

// arena stores the tag forest. Nodes are addressed by the SHA-256 imprint of their canonical encoding, and are
// discarded once the last referencing entry is released.
type arena struct {
	nodes map[string]*node
	// Insertion order of the live nodes.
	order []string
}

func newArena() *arena {
	return &arena{nodes: make(map[string]*node)}
}

func nodeID(t *tlv.Tag) (string, error) {
	raw, err := t.Canonical()
	if err != nil {
		return "", err
	}
	imp, err := hash.SHA2_256.Digest(raw)
	if err != nil {
		return "", err
	}
	return string(imp), nil
}

// acquire returns the ID of the node equal to t, adding a copy of t if not present yet.
func (a *arena) acquire(t *tlv.Tag) (string, error) {
	if t == nil {
		return "", errors.New(errors.KsiInvalidArgumentError)
	}
	id, err := nodeID(t)
	if err != nil {
		return "", err
	}
	if n, ok := a.nodes[id]; ok {
		if !tlv.Equal(n.tag, t) {
			return "", errors.New(errors.KsiInvalidStateError).AppendMessage("Node ID collision.")
		}
		n.refs++
		return id, nil
	}
	a.nodes[id] = &node{tag: t.Clone(), refs: 1}
	a.order = append(a.order, id)
	return id, nil
}

// release drops one reference of the node. The node is removed with the last reference.
func (a *arena) release(id string) {
	n, ok := a.nodes[id]
	if !ok {
		return
	}
	if n.refs--; n.refs > 0 {
		return
	}
	delete(a.nodes, id)
	for i, o := range a.order {
		if o == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *arena) tag(id string) *tlv.Tag {
	if n, ok := a.nodes[id]; ok {
		return n.tag
	}
	return nil
}

func (a *arena) refs(id string) int {
	if n, ok := a.nodes[id]; ok {
		return n.refs
	}
	return 0
}

// live returns the live tags in insertion order.
func (a *arena) live() []*tlv.Tag {
	if a == nil {
		return nil
	}
	tags := make([]*tlv.Tag, 0, len(a.order))
	for _, id := range a.order {
		tags = append(tags, a.nodes[id].tag)
	}
	return tags
}
