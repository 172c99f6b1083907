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

// Package net provides the HTTP transport used to reach the extender and to download publications files.
package net

import (
	"context"
	"net/url"
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/tlv"
)

// Client is a network client.
type Client interface {
	Endpoint

	// RequestCount returns next available request ID value.
	RequestCount() uint64
	// Receive sends the request (GET if nil) and returns the response body.
	// If the context has no deadline, the client default timeout applies.
	Receive(ctx context.Context, request []byte) ([]byte, error)
}

// Endpoint is a service endpoint with its credentials.
type Endpoint interface {
	URI() string
	// LoginID is identifier of the client host for MAC key lookup.
	LoginID() string
	// Key is HMAC shared secret.
	Key() string
}

// ResponseVerifierFunc reports whether the received bytes form a complete datagram. The optional error is attached
// as the extended error of the returned KsiNetworkError.
type ResponseVerifierFunc func([]byte) (bool, error)

// ClientOpt is a network client configuration option.
type ClientOpt func(*HTTPClient) error

const defaultRequestTimeout = 10 * time.Second

// schemes maps the accepted URI schemes to the transport scheme, and whether the endpoint speaks KSI.
var schemes = map[string]struct {
	transport string
	ksi       bool
}{
	"http":      {"http", false},
	"https":     {"https", false},
	"ksi":       {"http", true},
	"ksi+http":  {"http", true},
	"ksi+https": {"https", true},
}

// NewClient returns a new HTTP network client. Credentials default to the URI user info when loginID or key is empty.
func NewClient(uri, loginID, key string, options ...ClientOpt) (*HTTPClient, error) {
	if len(uri) == 0 {
		return nil, errors.New(errors.KsiInvalidFormatError).AppendMessage("Missing endpoint URI.")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.New(errors.KsiNetworkError).SetExtError(err).AppendMessage("Unable to parse URI.")
	}
	scheme, ok := schemes[u.Scheme]
	if !ok || u.Host == "" {
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Unsupported URI: " + uri)
	}
	u.Scheme = scheme.transport

	if loginID == "" {
		loginID = u.User.Username()
	}
	if key == "" {
		key, _ = u.User.Password()
	}

	c := &HTTPClient{
		url:        u.String(),
		loginID:    loginID,
		key:        key,
		timeout:    defaultRequestTimeout,
		ksi:        scheme.ksi,
		isComplete: isTlvComplete,
	}
	for _, setter := range options {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(c); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to apply network option.")
		}
	}
	return c, nil
}

// ClientOptReadLimit limits the amount of data read from a response. 0 disables the limit.
func ClientOptReadLimit(limit uint32) ClientOpt {
	return func(c *HTTPClient) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing network client base object.")
		}
		c.readLimit = limit
		return nil
	}
}

// ClientOptRequestTimeout sets the default request timeout. 0 disables the timeout.
func ClientOptRequestTimeout(d time.Duration) ClientOpt {
	return func(c *HTTPClient) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing network client base object.")
		}
		if d < 0 {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Timeout can not be negative.")
		}
		c.timeout = d
		return nil
	}
}

// ClientOptDatagramVerifier replaces the response completeness check. The default check requires the body to be
// exactly one TLV (see tlv.IsConsistent). A nil verifier disables the check.
func ClientOptDatagramVerifier(verifier ResponseVerifierFunc) ClientOpt {
	return func(c *HTTPClient) error {
		if c == nil {
			return errors.New(errors.KsiInvalidArgumentError).AppendMessage("Missing network client base object.")
		}
		c.isComplete = verifier
		return nil
	}
}

func isTlvComplete(datagram []byte) (bool, error) {
	return tlv.IsConsistent(datagram), nil
}
