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

package service

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

// Extender is the abstraction of the extender service.
// Extender implements verify.ExtendingService interface.
type Extender struct {
	service

	// Publications file handler.
	pubFileHandler *publications.FileHandler
}

var _ verify.ExtendingService = (*Extender)(nil)

// NewExtender creates a new extender instance.
// Note that the publications file handler parameter h is optional. In case it is not set, the user will not be able to
// extend signatures to publications from the publications file, only to the head of the calendar or to a given time.
func NewExtender(h *publications.FileHandler, opts ...Option) (*Extender, error) {
	if len(opts) == 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing extender options.")
	}

	srv, err := newService(opts...)
	if err != nil {
		return nil, err
	}

	return &Extender{
		service:        srv,
		pubFileHandler: h,
	}, nil
}

func (e *Extender) verifyState() error {
	if e == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if e.service == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("Extender is not initialized.")
	}
	return nil
}

// Extend implements verify.ExtendingService interface.
// Returns the calendar hash chain from the aggregation round aggrTime to the publication at pubTime. If pubTime is
// the zero time instant, the chain leads to the head of the calendar.
func (e *Extender) Extend(ctx context.Context, aggrTime, pubTime time.Time) (*pdu.CalendarChain, error) {
	if err := e.verifyState(); err != nil {
		return nil, err
	}
	if aggrTime.IsZero() {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing aggregation time.")
	}
	if !pubTime.IsZero() && pubTime.Before(aggrTime) {
		return nil, errors.New(errors.KsiInvalidArgumentError).
			AppendMessage("Publication time is before aggregation time.")
	}

	log.Debug("Receiving calendar from: ", aggrTime.Unix(), " to: ", pubTime.Unix())
	resp, err := e.send(ctx, extendingRequest(aggrTime, pubTime))
	if err != nil {
		return nil, err
	}
	calChain, err := resp.ExtendingResp().CalendarChain()
	if err != nil {
		return nil, err
	}

	if !calChain.AggregationTime().Equal(aggrTime) {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Calendar chain aggregation time mismatch: expected %d, received %d.",
				aggrTime.Unix(), calChain.AggregationTime().Unix()))
	}
	if !pubTime.IsZero() && !calChain.PublicationTime().Equal(pubTime) {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Calendar chain publication time mismatch: expected %d, received %d.",
				pubTime.Unix(), calChain.PublicationTime().Unix()))
	}
	return calChain, nil
}

// PublicationsFile implements verify.ExtendingService interface.
// Returns the verified publications file received via the configured publications file handler.
func (e *Extender) PublicationsFile(ctx context.Context) (*publications.File, error) {
	if e == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if e.pubFileHandler == nil {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Publications file handler is not configured.")
	}

	pubFile, err := e.pubFileHandler.ReceiveFile(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.pubFileHandler.Verify(pubFile); err != nil {
		return nil, err
	}
	return pubFile, nil
}

// Config requests configuration from server.
// In case of a high availability service, the consolidated configuration of all sub-services is returned.
func (e *Extender) Config(ctx context.Context) (*pdu.Config, error) {
	if err := e.verifyState(); err != nil {
		return nil, err
	}
	return e.config(ctx)
}

// ExtendSignature extends the signature to a certain time depending on the configuration:
//  - if the to-time is set (see ExtendOptionToTime() option), the signature
//    is extended to the exact time and holds no publication record;
//  - if the to-time is not set but the receiver Extender has a publications
//    file handler configured, the signature is extended to the nearest
//    publication found in the publications file;
//  - otherwise the signature is extended to the head of the calendar.
//
// This function requires access to a working KSI Extender, or it will fail with network error.
func (e *Extender) ExtendSignature(ctx context.Context, sig *signature.Signature, opt ...ExtendOption) (*signature.Signature, error) {
	if err := e.verifyState(); err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing signature.")
	}

	opts := extendOptions{}
	for _, optResolver := range opt {
		if optResolver == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := optResolver(&opts); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Failed to resolve extend option.")
		}
	}

	switch {
	case opts.pubTime != nil:
		sigTime, err := sig.SigningTime()
		if err != nil {
			return nil, err
		}
		calChain, err := e.Extend(ctx, sigTime, *opts.pubTime)
		if err != nil {
			return nil, err
		}
		return signature.New(signature.BuildFromExtension(sig, calChain, nil))
	case e.pubFileHandler != nil:
		pubFile, err := e.PublicationsFile(ctx)
		if err != nil {
			return nil, err
		}
		return signature.ExtendTo(ctx, sig, e, pubFile)
	default:
		return signature.Extend(ctx, sig, e, nil)
	}
}

type (
	// ExtendOption is an option for the signature extending.
	ExtendOption  func(*extendOptions) error
	extendOptions struct {
		pubTime *time.Time
	}
)

// ExtendOptionToTime sets the time to which the signature should be extended to.
// If the time represents the zero time instant (see (Time).IsZero()), the signature is extended to the head of the
// calendar database.
// Note that using this option will leave the resulting signature without a publication record.
func ExtendOptionToTime(to time.Time) ExtendOption {
	return func(o *extendOptions) error {
		if o == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing extend options object.")
		}
		o.pubTime = &to
		return nil
	}
}
