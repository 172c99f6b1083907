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

package net

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/log"
)

// HTTPClient is the HTTP implementation of Client.
//
// A proxy can be configured through the environment, e.g. `http_proxy=user:pass@server:port`.
type HTTPClient struct {
	url          string
	loginID      string
	key          string
	timeout      time.Duration
	ksi          bool
	requestCount uint64
	readLimit    uint32
	isComplete   ResponseVerifierFunc
}

var transport = &http.Transport{Proxy: http.ProxyFromEnvironment}

// Receive implements Client interface.
func (c *HTTPClient) Receive(ctx context.Context, request []byte) ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	method, body := http.MethodGet, io.Reader(nil)
	if request != nil {
		log.Debug(fmt.Sprintf("HTTP send (%s): %x", c.url, request))
		method, body = http.MethodPost, bytes.NewReader(request)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url, body)
	if err != nil {
		return nil, errors.New(errors.KsiNetworkError).SetExtError(err)
	}
	if c.ksi && request != nil {
		req.Header.Set("User-Agent", "KSI HTTP Client")
		req.Header.Set("Content-Type", "application/ksi-request")
	}
	req.Close = true

	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		return nil, errors.New(errors.KsiNetworkError).SetExtError(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error("Closing HTTP response body returned error: ", err)
		}
	}()

	reader := io.Reader(resp.Body)
	if c.readLimit > 0 {
		reader = io.LimitReader(resp.Body, int64(c.readLimit))
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.New(errors.KsiNetworkError).SetExtError(err).
			AppendMessage("Failed to read response body.")
	}
	log.Debug(fmt.Sprintf("HTTP received (%s): %d bytes", c.url, len(raw)))

	// KSI services answer client errors with 400 and server errors with 500, both carrying a response PDU.
	// Prefer the PDU when it is complete, otherwise report the transport status.
	if resp.StatusCode >= 400 {
		httpErr := errors.New(errors.KsiHttpError).SetExtErrorCode(resp.StatusCode).AppendMessage(resp.Status)
		if c.isComplete != nil {
			if ok, _ := c.isComplete(raw); ok {
				return raw, httpErr
			}
		}
		return nil, httpErr
	}
	if c.isComplete != nil {
		if ok, err := c.isComplete(raw); !ok {
			return nil, errors.New(errors.KsiNetworkError).SetExtError(err).
				AppendMessage("Incomplete datagram received from HTTP connection.")
		}
	}
	return raw, nil
}

// RequestCount implements Client interface.
func (c *HTTPClient) RequestCount() uint64 {
	if c == nil {
		return 0
	}
	return atomic.AddUint64(&c.requestCount, 1)
}

// URI implements Endpoint interface.
func (c *HTTPClient) URI() string {
	if c == nil {
		return ""
	}
	return c.url
}

// LoginID implements Endpoint interface.
func (c *HTTPClient) LoginID() string {
	if c == nil {
		return ""
	}
	return c.loginID
}

// Key implements Endpoint interface.
func (c *HTTPClient) Key() string {
	if c == nil {
		return ""
	}
	return c.key
}
