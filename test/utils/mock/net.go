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

// Package mock provides in-memory implementations of the network client and of the extending service.
package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/guardtime/goksi-multisig/log"
)

// RequestCounterClient implements net.(Client) interface.
// The request counter is increased atomically; Receive returns the response set with SetResp.
type RequestCounterClient struct {
	count uint64

	mu   sync.Mutex
	resp []byte
	err  error
	reqs [][]byte
}

func (c *RequestCounterClient) RequestCount() uint64 { return atomic.AddUint64(&c.count, 1) }
func (c *RequestCounterClient) URI() string          { return "ksi+http://mock" }
func (c *RequestCounterClient) LoginID() string      { return "MockUser" }
func (c *RequestCounterClient) Key() string          { return "MockPass" }
func (c *RequestCounterClient) Receive(_ context.Context, req []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Debug("Mock request: ", len(req), " bytes")
	c.reqs = append(c.reqs, append([]byte(nil), req...))
	return c.resp, c.err
}

// SetResp sets the response to be returned via Receive() method.
func (c *RequestCounterClient) SetResp(r []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resp = r
}

// SetErr sets the error to be returned via Receive() method.
func (c *RequestCounterClient) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Requests returns the received requests.
func (c *RequestCounterClient) Requests() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqs
}
