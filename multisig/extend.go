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
	"context"
	"fmt"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/publications"
	"github.com/guardtime/goksi-multisig/signature"
	"github.com/guardtime/goksi-multisig/signature/verify"
)

// Extend extends the contained signatures to the nearest publication provided by src. If src is nil, the
// signatures are extended to the calendar head.
//
// Signatures already extended to an equal or later publication are left untouched unless overwrite is set. Without
// src, signatures already extended to a publication or to a calendar head are left untouched.
// Signatures for which src holds no suitable publication are skipped. Signatures of the same aggregation round
// share the calendar hash chain, which is requested from the service only once.
//
// The container is updated only if all signatures were extended successfully. Returns the number of extended
// signatures.
func (m *MultiSignature) Extend(ctx context.Context, svc verify.ExtendingService, src signature.PublicationSource,
	overwrite bool) (int, error) {

	if m == nil || svc == nil {
		return 0, errors.New(errors.KsiInvalidArgumentError)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		cache = newCalendarCache(svc)
		tmp   = &MultiSignature{nodes: newArena()}
		count int
	)
	for _, e := range m.entries {
		sig, err := m.signature(e)
		if err != nil {
			return 0, err
		}

		pubRec, skip, err := extendTarget(sig, src, overwrite)
		if err != nil {
			return 0, err
		}
		if !skip {
			if sig, err = signature.Extend(ctx, sig, cache, pubRec); err != nil {
				return 0, errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to extend signature for %s.", e.docHash))
			}
			count++
		}
		if err := tmp.add(sig); err != nil {
			return 0, err
		}
	}

	m.nodes, m.entries = tmp.nodes, tmp.entries
	log.Debug(fmt.Sprintf("Multi-signature: %d signature(s) extended, %d calendar request(s).", count, cache.requests))
	return count, nil
}

// extendTarget returns the publication record the signature is to be extended to. The returned flag is set if the
// signature is to be left untouched.
func extendTarget(sig *signature.Signature, src signature.PublicationSource, overwrite bool) (*pdu.PublicationRec, bool, error) {
	sigTime, err := sig.SigningTime()
	if err != nil {
		return nil, false, err
	}
	current, err := sig.Publication()
	if err != nil {
		return nil, false, err
	}

	if src == nil {
		isExt, err := sig.IsExtended()
		if err != nil {
			return nil, false, err
		}
		return nil, isExt && !overwrite, nil
	}
	target, err := src.NearestPublicationRecord(sigTime)
	if err != nil {
		return nil, false, err
	}
	if target == nil {
		log.Info("No suitable publication for signature at ", sigTime.Unix())
		return nil, true, nil
	}
	if current != nil && !overwrite &&
		!current.PublicationData().PublicationTime().Before(target.PublicationData().PublicationTime()) {
		return nil, true, nil
	}
	return target, false, nil
}

// calendarCache memorizes the calendar hash chains received from the service.
type calendarCache struct {
	svc      verify.ExtendingService
	chains   map[[2]int64]*pdu.CalendarChain
	requests int
}

var _ verify.ExtendingService = (*calendarCache)(nil)

func newCalendarCache(svc verify.ExtendingService) *calendarCache {
	return &calendarCache{
		svc:    svc,
		chains: make(map[[2]int64]*pdu.CalendarChain),
	}
}

func (c *calendarCache) Extend(ctx context.Context, aggrTime, pubTime time.Time) (*pdu.CalendarChain, error) {
	var key [2]int64
	key[0] = aggrTime.Unix()
	if !pubTime.IsZero() {
		key[1] = pubTime.Unix()
	}
	if chain, ok := c.chains[key]; ok {
		return chain, nil
	}
	chain, err := c.svc.Extend(ctx, aggrTime, pubTime)
	if err != nil {
		return nil, err
	}
	c.requests++
	c.chains[key] = chain
	return chain, nil
}

func (c *calendarCache) PublicationsFile(ctx context.Context) (*publications.File, error) {
	return c.svc.PublicationsFile(ctx)
}
