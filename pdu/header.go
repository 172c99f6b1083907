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

package pdu

import (
	"fmt"
	"strings"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/tlv"
)

// Header is the PDU header.
type Header struct {
	tag     *tlv.Tag
	loginID string
	instID  *uint64
	msgID   *uint64
}

// RequestHeaderFunc is request header manipulation callback which is executed on every request prior to serializing
// and submitting the request. The callback should be used when additional data (i.e. instance ID and message ID)
// should be added.
type RequestHeaderFunc func(*Header) error

// NewHeader returns PDU Header instance.
// Use parameter 'f' for applying optional Header values.
func NewHeader(loginID string, f RequestHeaderFunc) (*Header, error) {
	tmp := &Header{loginID: loginID}
	if f != nil {
		if err := f(tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Request header callback returned error.")
		}
	}
	tmp.tag = tmp.build()
	return tmp, nil
}

func (h *Header) build() *tlv.Tag {
	var inst, msg *tlv.Tag
	if h.instID != nil {
		inst = tlv.NewInteger(0x02, *h.instID)
	}
	if h.msgID != nil {
		msg = tlv.NewInteger(0x03, *h.msgID)
	}
	return tlv.NewComposite(TypeHeader, tlv.NewString(0x01, h.loginID), inst, msg)
}

// HeaderFromTag returns the header projection of the tag.
func HeaderFromTag(t *tlv.Tag) (*Header, error) {
	f := scan(t, TypeHeader, 0x01, 0x02, 0x03)
	h := &Header{tag: t}
	h.loginID = f.text(f.one(0x01))
	if e := f.opt(0x02); e != nil {
		v := f.uint(e)
		h.instID = &v
	}
	if e := f.opt(0x03); e != nil {
		v := f.uint(e)
		h.msgID = &v
	}
	if f.err != nil {
		return nil, f.err
	}
	return h, nil
}

// SetInstID is setter for the header instance ID.
func (h *Header) SetInstID(id uint64) error {
	if h == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	h.instID = &id
	h.tag = h.build()
	return nil
}

// SetMsgID is setter for the header message ID.
func (h *Header) SetMsgID(id uint64) error {
	if h == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	h.msgID = &id
	h.tag = h.build()
	return nil
}

// LoginID returns the identifier of the client host for MAC key lookup.
func (h *Header) LoginID() string {
	if h == nil {
		return ""
	}
	return h.loginID
}

// InstanceID returns a number identifying invocation of the sender, 0 if not present.
func (h *Header) InstanceID() uint64 {
	if h == nil || h.instID == nil {
		return 0
	}
	return *h.instID
}

// MessageID returns message number for duplicate filtering, 0 if not present.
func (h *Header) MessageID() uint64 {
	if h == nil || h.msgID == nil {
		return 0
	}
	return *h.msgID
}

// Config is the extender configuration.
type Config struct {
	maxReq    *uint64
	parentURI []string
	calFirst  *uint64
	calLast   *uint64
}

// ConfigFields holds the values of a configuration response.
type ConfigFields struct {
	MaxRequests   uint64
	ParentURI     []string
	CalendarFirst uint64
	CalendarLast  uint64
}

func newConfigTag(c ConfigFields) *tlv.Tag {
	var children []*tlv.Tag
	if c.MaxRequests != 0 {
		children = append(children, tlv.NewInteger(0x04, c.MaxRequests))
	}
	for _, u := range c.ParentURI {
		children = append(children, tlv.NewString(0x10, u))
	}
	if c.CalendarFirst != 0 {
		children = append(children, tlv.NewInteger(0x11, c.CalendarFirst))
	}
	if c.CalendarLast != 0 {
		children = append(children, tlv.NewInteger(0x12, c.CalendarLast))
	}
	return tlv.NewComposite(TypeConfig, children...)
}

// NewConfig returns a configuration holding the given values. Zero values are treated as absent.
func NewConfig(c ConfigFields) *Config {
	tmp := &Config{parentURI: append([]string(nil), c.ParentURI...)}
	opt := func(v uint64) *uint64 {
		if v == 0 {
			return nil
		}
		return &v
	}
	tmp.maxReq = opt(c.MaxRequests)
	tmp.calFirst = opt(c.CalendarFirst)
	tmp.calLast = opt(c.CalendarLast)
	return tmp
}

func configFromTag(t *tlv.Tag) (*Config, error) {
	f := scan(t, TypeConfig, 0x04, 0x10, 0x11, 0x12)
	c := &Config{}
	opt := func(typ uint16) *uint64 {
		if e := f.opt(typ); e != nil {
			v := f.uint(e)
			return &v
		}
		return nil
	}
	c.maxReq = opt(0x04)
	c.parentURI = f.strings(0x10)
	c.calFirst = opt(0x11)
	c.calLast = opt(0x12)
	if f.err != nil {
		return nil, f.err
	}
	return c, nil
}

func optUint(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

// MaxReq returns maximum number of requests the client is allowed to send within one second, 0 if not present.
func (c *Config) MaxReq() uint64 {
	if c == nil {
		return 0
	}
	return optUint(c.maxReq)
}

// ParentURI returns the parent server URIs.
func (c *Config) ParentURI() []string {
	if c == nil {
		return nil
	}
	return c.parentURI
}

// CalendarFirstTime returns the aggregation time of the oldest calendar record the extender has, 0 if not present.
func (c *Config) CalendarFirstTime() uint64 {
	if c == nil {
		return 0
	}
	return optUint(c.calFirst)
}

// CalendarLastTime returns the aggregation time of the newest calendar record the extender has, 0 if not present.
func (c *Config) CalendarLastTime() uint64 {
	if c == nil {
		return 0
	}
	return optUint(c.calLast)
}

// String implements fmt.(Stringer) interface.
func (c *Config) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Max requests   : %d\n", c.MaxReq()))
	for _, u := range c.parentURI {
		b.WriteString("Parent URI     : ")
		b.WriteString(u)
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Calendar first : %d\n", c.CalendarFirstTime()))
	b.WriteString(fmt.Sprintf("Calendar last  : %d\n", c.CalendarLastTime()))
	return b.String()
}
