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
	"sync"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
)

const (
	// MaxHighAvailabilitySubServices is the maximum number of sub-services that can be configured for using by a high
	// availability service.
	MaxHighAvailabilitySubServices = 3
)

// calFirstLow is the lower bound of the consolidated calendar first time.
const calFirstLow = 1136073600

type highAvailabilityService struct {
	// High availability service sub-services.
	services []*basicService

	// Consolidated configuration.
	mu   sync.Mutex
	conf pdu.ConfigFields
	// Push config message listener.
	confListener ConfigListener
}

func newHighAvailabilityService() *highAvailabilityService {
	return &highAvailabilityService{}
}

func (ha *highAvailabilityService) addSubService(srv *basicService) error {
	if ha == nil || srv == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if len(ha.services) >= MaxHighAvailabilitySubServices {
		return errors.New(errors.KsiBufferOverflow).AppendMessage("Exceed maximum nof HA sub-services.")
	}
	if err := srv.verifyState(); err != nil {
		return err
	}

	// Push configurations are consolidated before they are handed over to the user listener.
	srv.confListener = func(cfg *pdu.Config) error {
		conf := ha.consolidate(cfg)
		if ha.confListener == nil {
			return nil
		}
		return ha.confListener(conf)
	}
	ha.services = append(ha.services, srv)
	return nil
}

// consolidate merges cfg into the HA configuration and returns the result:
//  - maximum requests: the largest value is taken;
//  - parent URI: values are appended, duplicates are dropped;
//  - calendar first: the earliest value is taken, but not before 1136073600 epoch time;
//  - calendar last: the latest value is taken.
func (ha *highAvailabilityService) consolidate(cfg *pdu.Config) *pdu.Config {
	ha.mu.Lock()
	defer ha.mu.Unlock()

	if cfg.MaxReq() > ha.conf.MaxRequests {
		ha.conf.MaxRequests = cfg.MaxReq()
	}
next:
	for _, u := range cfg.ParentURI() {
		for _, known := range ha.conf.ParentURI {
			if known == u {
				continue next
			}
		}
		ha.conf.ParentURI = append(ha.conf.ParentURI, u)
	}
	if first := cfg.CalendarFirstTime(); first >= calFirstLow &&
		(ha.conf.CalendarFirst == 0 || first < ha.conf.CalendarFirst) {
		ha.conf.CalendarFirst = first
	}
	if last := cfg.CalendarLastTime(); last > ha.conf.CalendarLast {
		ha.conf.CalendarLast = last
	}
	return pdu.NewConfig(ha.conf)
}

// asyncResponse is a sub-service result.
type asyncResponse struct {
	// Sub-service ID.
	id int
	// Sub-service response (in case asyncResponse.err == nil).
	response *pdu.ExtenderResp
	// In case something went wrong (e.g. API call return, or communication error).
	err error
}

// dispatch sends the request to all sub-services. The returned channel is buffered for all responses, so late
// responses do not block the sub-service goroutines.
func (ha *highAvailabilityService) dispatch(ctx context.Context, req *request) <-chan asyncResponse {
	respCh := make(chan asyncResponse, len(ha.services))
	for i, srv := range ha.services {
		go func(id int, s *basicService) {
			resp, err := s.send(ctx, req)
			if err != nil {
				err = errors.KsiErr(err).AppendMessage(fmt.Sprintf("HA subservice[%d]: Failed to receive response.", id))
			} else {
				log.Debug(fmt.Sprintf("HA subservice[%d]: response received.", id))
			}
			respCh <- asyncResponse{id: id, response: resp, err: err}
		}(i, srv)
	}
	return respCh
}

func (ha *highAvailabilityService) verifyState() error {
	if ha == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if len(ha.services) == 0 {
		return errors.New(errors.KsiInvalidStateError).
			AppendMessage("High availability service is not properly initialized.")
	}
	return nil
}

// send implements service interface. Returns the first successful sub-service response.
func (ha *highAvailabilityService) send(ctx context.Context, req *request) (*pdu.ExtenderResp, error) {
	if err := ha.verifyState(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	haCtx, haCancel := context.WithCancel(ctx)
	defer haCancel()

	respCh := ha.dispatch(haCtx, req)
	respErrors := make([]error, 0, len(ha.services))
	for range ha.services {
		var resp asyncResponse
		select {
		case <-ctx.Done():
			return nil, errors.New(errors.KsiNetworkError).SetExtError(ctx.Err()).AppendMessage("Request was canceled.")
		case resp = <-respCh:
		}

		if resp.err == nil {
			return resp.response, nil
		}
		log.Info("HA sub-service[", resp.id, "] response error: \n", resp.err)
		respErrors = append(respErrors, resp.err)
	}
	return nil, haErr(respErrors)
}

// config implements service interface. Waits for all sub-services and returns the consolidated configuration.
func (ha *highAvailabilityService) config(ctx context.Context) (*pdu.Config, error) {
	if err := ha.verifyState(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	haCtx, haCancel := context.WithCancel(ctx)
	defer haCancel()

	var (
		respCh     = ha.dispatch(haCtx, configRequest())
		respErrors = make([]error, 0, len(ha.services))
		conf       *pdu.Config
	)
	for range ha.services {
		var resp asyncResponse
		select {
		case <-ctx.Done():
			return nil, errors.New(errors.KsiNetworkError).SetExtError(ctx.Err()).AppendMessage("Request was canceled.")
		case resp = <-respCh:
		}

		if resp.err != nil {
			log.Info("HA sub-service[", resp.id, "] response error: \n", resp.err)
			respErrors = append(respErrors, resp.err)
			continue
		}
		conf = ha.consolidate(resp.response.Config())
	}
	if conf == nil {
		return nil, haErr(respErrors)
	}
	return conf, nil
}

func haErr(respErrors []error) error {
	msg := "No valid response received from HA sub services."
	if len(respErrors) != 0 {
		return errors.KsiErr(respErrors[len(respErrors)-1]).
			AppendMessage(msg).AppendMessage("This is latest registered error.")
	}
	return errors.New(errors.KsiInvalidStateError).AppendMessage(msg)
}
