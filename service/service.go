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

// Package service implements the KSI extender client.
package service

import (
	"context"
	"fmt"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/net"
	"github.com/guardtime/goksi-multisig/pdu"
)

// basicService is a single extender endpoint.
type basicService struct {
	// Service endpoint.
	netClient net.Client
	// Hash algorithm to be used for HMAC computation.
	hmacAlgo hash.Algorithm

	// Request header callback.
	reqHeaderFunc pdu.RequestHeaderFunc
	// Server push configuration listener callback.
	confListener ConfigListener
}

func newBasicService() *basicService {
	return &basicService{
		hmacAlgo: hash.Default,
	}
}

// basicService option.
type srvOption func(*basicService) error

func (s *basicService) initialize(opts ...srvOption) error {
	if s == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}

	for _, optSetter := range opts {
		if optSetter == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := optSetter(s); err != nil {
			return errors.KsiErr(err).AppendMessage("Unable to apply service option.")
		}
	}
	return nil
}

// verifyState checks that the mandatory settings are present.
func (s *basicService) verifyState() error {
	if s == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if s.netClient == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("Network client has not been configured.")
	}
	return nil
}

// srvOptNetClient is setter for the network client.
func srvOptNetClient(client net.Client) srvOption {
	return func(s *basicService) error {
		if client == nil {
			return errors.New(errors.KsiInvalidArgumentError)
		}
		s.netClient = client
		return nil
	}
}

// srvOptHmacAlgorithm is setter for the hash algorithm to be used for HMAC calculations.
// Fails if the hash algorithm is not supported (see hash.Registered()).
func srvOptHmacAlgorithm(algorithm hash.Algorithm) srvOption {
	return func(s *basicService) error {
		if !algorithm.Registered() {
			return errors.New(errors.KsiUnknownHashAlgorithm).
				AppendMessage(fmt.Sprintf("Algorithm is not supported: %x.", byte(algorithm)))
		}
		if !algorithm.Trusted() {
			return errors.New(errors.KsiInvalidStateError).
				AppendMessage(fmt.Sprintf("Algorithm is not trusted: %s.", algorithm))
		}
		s.hmacAlgo = algorithm
		return nil
	}
}

// srvOptRequestHeaderFunc is setter for the request header manipulation function.
func srvOptRequestHeaderFunc(f pdu.RequestHeaderFunc) srvOption {
	return func(s *basicService) error {
		s.reqHeaderFunc = f
		return nil
	}
}

// srvOptConfigListener is setter for the server push configuration listener.
// Note that the implementation must be thread safe.
func srvOptConfigListener(l ConfigListener) srvOption {
	return func(s *basicService) error {
		s.confListener = l
		return nil
	}
}

// send sends the request and returns the verified response.
func (s *basicService) send(ctx context.Context, req *request) (*pdu.ExtenderResp, error) {
	if err := s.verifyState(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	hdr, err := pdu.NewHeader(s.netClient.LoginID(), s.reqHeaderFunc)
	if err != nil {
		return nil, err
	}
	reqID := s.netClient.RequestCount()
	extReq, err := req.build(reqID)
	if err != nil {
		return nil, err
	}
	key := []byte(s.netClient.Key())
	reqRaw, err := extReq.Encode(hdr, s.hmacAlgo, key)
	if err != nil {
		return nil, err
	}

	// Client applications should always parse the KSI error code and message from the HTTP response body if there
	// is one, and only fall back to the HTTP status code if the HTTP response has no body or the HTTP response
	// body is not a KSI response PDU.
	respRaw, respErr := s.netClient.Receive(ctx, reqRaw)
	resp, err := decodeResponse(respRaw, respErr)
	if err != nil {
		return nil, err
	}
	if err := resp.Verify(s.hmacAlgo, key); err != nil {
		return nil, err
	}
	if err := verifyRequestID(req, reqID, resp); err != nil {
		return nil, err
	}
	s.handleConfig(req, resp)

	return resp, nil
}

// handleConfig passes a configuration pushed along with an extending response to the listener.
func (s *basicService) handleConfig(req *request, resp *pdu.ExtenderResp) {
	conf := resp.Config()
	if conf == nil || req.conf || s.confListener == nil {
		return
	}
	if err := s.confListener(conf); err != nil {
		log.Warning("Config listener returned error: ", err)
	}
}

// config requests the extender configuration.
func (s *basicService) config(ctx context.Context) (*pdu.Config, error) {
	resp, err := s.send(ctx, configRequest())
	if err != nil {
		return nil, err
	}
	return resp.Config(), nil
}
