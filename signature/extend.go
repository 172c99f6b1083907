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

package signature

import (
	"context"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/signature/verify"
)

// PublicationSource provides the publication record a signature is extended to.
// It is implemented by *publications.File and *pdu.PublicationRec.
type PublicationSource interface {
	// NearestPublicationRecord returns the earliest publication record published at or after the given time,
	// or nil if there is none.
	NearestPublicationRecord(time.Time) (*pdu.PublicationRec, error)
}

// Extend returns a copy of sig with the calendar hash chain extended to the publication pubRec. If pubRec is nil,
// the signature is extended to the calendar head and the resulting signature holds no publication record.
//
// The new calendar hash chain must be compatible with the existing one, otherwise an error with code
// KsiIncompatibleHashChain is returned. The input signature is not modified.
func Extend(ctx context.Context, sig *Signature, service verify.ExtendingService, pubRec *pdu.PublicationRec) (*Signature, error) {
	if sig == nil || service == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sigTime, err := sig.SigningTime()
	if err != nil {
		return nil, err
	}

	var pubTime time.Time
	if pubRec != nil {
		if pubRec.Tag().Type != pdu.TypePublicationRec {
			if pubRec, err = pubRec.WithType(pdu.TypePublicationRec); err != nil {
				return nil, err
			}
		}
		pubTime = pubRec.PublicationData().PublicationTime()
		if pubTime.Before(sigTime) {
			return nil, errors.New(errors.KsiExtendNoSuitablePublication).
				AppendMessage("Publication is older than the signature.")
		}
	}

	log.Debug("Extending signature from ", sigTime.Unix(), " to ", pubTime.Unix())
	calChain, err := service.Extend(ctx, sigTime, pubTime)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Failed to extend signature.")
	}
	return New(BuildFromExtension(sig, calChain, pubRec))
}

// ExtendTo extends the signature to the nearest publication provided by the source.
// If the source does not hold a suitable publication, an error with code KsiExtendNoSuitablePublication is returned.
func ExtendTo(ctx context.Context, sig *Signature, service verify.ExtendingService, src PublicationSource) (*Signature, error) {
	if sig == nil || service == nil || src == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	sigTime, err := sig.SigningTime()
	if err != nil {
		return nil, err
	}
	pubRec, err := src.NearestPublicationRecord(sigTime)
	if err != nil {
		return nil, err
	}
	if pubRec == nil {
		return nil, errors.New(errors.KsiExtendNoSuitablePublication)
	}
	return Extend(ctx, sig, service, pubRec)
}
