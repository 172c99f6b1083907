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
	"time"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/hmac"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/tlv"
)

// seal encodes the PDU with a trailing MAC element. The MAC is computed over all PDU message bytes up to (but
// excluding) the hash value within the imprint in the MAC field:
//  1. the TLV header of the PDU element itself;
//  2. the complete header element (both the TLV header and the value of the element);
//  3. the complete payload elements in the order in which they appear in the PDU;
//  4. the TLV header of the MAC element;
//  5. the hash algorithm identifier part of the imprint representing the MAC value.
func seal(typ uint16, children []*tlv.Tag, alg hash.Algorithm, key []byte) ([]byte, error) {
	if !alg.Registered() {
		return nil, errors.New(errors.KsiUnknownHashAlgorithm).
			AppendMessage("Can not calculate HMAC using an unknown hash algorithm.")
	}
	if !alg.Trusted() {
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Hash algorithm is not trusted.")
	}

	tmp := make([]*tlv.Tag, 0, len(children)+1)
	tmp = append(tmp, children...)
	tmp = append(tmp, tlv.NewImprint(TypeMac, alg.ZeroImprint()))
	raw, err := tlv.NewComposite(typ, tmp...).Encode()
	if err != nil {
		return nil, err
	}

	mac, err := calculateHmac(raw, alg, key)
	if err != nil {
		return nil, err
	}
	copy(raw[len(raw)-alg.Size():], mac.Digest())
	return raw, nil
}

func calculateHmac(raw []byte, alg hash.Algorithm, key []byte) (hash.Imprint, error) {
	return hmac.Sum(alg, key, raw[:len(raw)-alg.Size()])
}

// envelope holds the parts shared by the request and response PDUs.
type envelope struct {
	raw    []byte
	header *Header
	mac    hash.Imprint
}

func (e *envelope) project(f *fields) {
	f.sub(f.opt(TypeHeader), func(t *tlv.Tag) (err error) {
		e.header, err = HeaderFromTag(t)
		return err
	})
	if m := f.opt(TypeMac); m != nil {
		children := f.tag.Children()
		if children[len(children)-1] != m {
			f.fail(RuleOrder, "MAC must be the last element", TypeMac)
			return
		}
		e.mac = f.imprint(m)
	}
}

// verifyHmac checks the PDU MAC using the provided hash function ('alg') and the secret cryptographic key ('key').
func (e *envelope) verifyHmac(alg hash.Algorithm, key []byte) error {
	if e.header == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("PDU must have a header.")
	}
	if e.mac == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("PDU must have an HMAC.")
	}
	if e.mac.Algorithm() != alg {
		return errors.New(errors.KsiHmacAlgorithmMismatch).AppendMessage("PDU HMAC algorithm mismatch.")
	}
	mac, err := calculateHmac(e.raw, alg, key)
	if err != nil {
		return err
	}
	if !hash.Equal(e.mac, mac) {
		return errors.New(errors.KsiHmacMismatch).AppendMessage("PDU HMAC mismatch.")
	}
	return nil
}

// ExtenderReq is the extender request PDU: either an extending request or a configuration request.
type ExtenderReq struct {
	envelope
	id       uint64
	aggrTime uint64
	pubTime  *uint64
	confReq  bool
}

// ExtendingReqSetting is functional option setter for extending request.
type ExtendingReqSetting func(*ExtenderReq) error

// NewExtendingReq constructs a new extending request.
// Start parameter is the time of the aggregation round from which the calendar hash chain should start.
func NewExtendingReq(start time.Time, settings ...ExtendingReqSetting) (*ExtenderReq, error) {
	if start.Unix() < 0 {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Invalid aggregation time.")
	}
	tmp := &ExtenderReq{aggrTime: uint64(start.Unix())}
	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.KsiErr(err).AppendMessage("Unable to setup extender request.")
		}
	}

	if tmp.pubTime != nil && *tmp.pubTime < tmp.aggrTime {
		return nil, errors.New(errors.KsiServiceExtenderInvalidTimeRange).
			AppendMessage("The request asked for a hash chain going backwards in time.").
			AppendMessage(fmt.Sprintf("Aggregation time %v is more recent than publication time %v.", tmp.aggrTime, *tmp.pubTime))
	}
	return tmp, nil
}

// ExtReqSetPubTime sets the time of the calendar root hash value to which the aggregation hash value should
// be connected by the calendar hash chain. Its absence means a request for a calendar hash chain from
// aggregation time to the most recent calendar record the server has.
func ExtReqSetPubTime(end time.Time) ExtendingReqSetting {
	return func(r *ExtenderReq) error {
		if !end.IsZero() {
			v := uint64(end.Unix())
			r.pubTime = &v
		}
		return nil
	}
}

// ExtReqSetRequestID sets the request ID, a number used to establish a relation between the request and the
// corresponding responses.
func ExtReqSetRequestID(id uint64) ExtendingReqSetting {
	return func(r *ExtenderReq) error {
		r.id = id
		return nil
	}
}

// NewExtenderConfigReq constructs a new extender configuration request.
func NewExtenderConfigReq() *ExtenderReq {
	return &ExtenderReq{confReq: true}
}

// Encode serializes the request with the given header, signing it with the HMAC key.
func (r *ExtenderReq) Encode(hdr *Header, alg hash.Algorithm, key []byte) ([]byte, error) {
	if r == nil || hdr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}

	var payload *tlv.Tag
	if r.confReq {
		payload = tlv.NewComposite(TypeConfig)
	} else {
		var pub *tlv.Tag
		if r.pubTime != nil {
			pub = tlv.NewInteger(0x03, *r.pubTime)
		}
		payload = tlv.NewComposite(TypeExtReq,
			tlv.NewInteger(0x01, r.id),
			tlv.NewInteger(0x02, r.aggrTime),
			pub,
		)
	}
	raw, err := seal(TypeExtenderReq, []*tlv.Tag{hdr.tag.Clone(), payload}, alg, key)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Unable to encode extender request.")
	}
	log.Debug("Extender request: ", len(raw), " bytes")
	return raw, nil
}

// ExtenderReqFromBytes parses an extender request PDU.
func ExtenderReqFromBytes(raw []byte) (*ExtenderReq, error) {
	t, err := tlv.Parse(raw, ExtenderReqTemplate)
	if err != nil {
		return nil, err
	}
	f := scan(t, TypeExtenderReq, TypeHeader, TypeExtReq, TypeConfig, TypeMac)
	r := &ExtenderReq{envelope: envelope{raw: raw}}
	r.project(f)
	if f.opt(TypeConfig) != nil {
		r.confReq = true
	}
	f.sub(f.opt(TypeExtReq), func(e *tlv.Tag) error {
		g := scan(e, TypeExtReq, 0x01, 0x02, 0x03)
		r.id = g.uint(g.opt(0x01))
		r.aggrTime = g.uint(g.one(0x02))
		if p := g.opt(0x03); p != nil {
			v := g.uint(p)
			r.pubTime = &v
		}
		return g.err
	})
	if f.err == nil && !r.confReq && f.tag.Child(TypeExtReq) == nil {
		f.fail(RuleMandatory, "extending or configuration request is required", TypeExtReq)
	}
	if f.err != nil {
		return nil, f.err
	}
	return r, nil
}

// Header returns the request header.
func (r *ExtenderReq) Header() *Header {
	if r == nil {
		return nil
	}
	return r.header
}

// IsConfigRequest reports whether the request is a configuration request.
func (r *ExtenderReq) IsConfigRequest() bool {
	return r != nil && r.confReq
}

// RequestID returns the request ID.
func (r *ExtenderReq) RequestID() uint64 {
	if r == nil {
		return 0
	}
	return r.id
}

// AggregationTime returns the requested aggregation time.
func (r *ExtenderReq) AggregationTime() time.Time {
	if r == nil {
		return time.Time{}
	}
	return time.Unix(int64(r.aggrTime), 0)
}

// PublicationTime returns the requested publication time, or zero time if the calendar head was requested.
func (r *ExtenderReq) PublicationTime() time.Time {
	if r == nil || r.pubTime == nil {
		return time.Time{}
	}
	return time.Unix(int64(*r.pubTime), 0)
}

// VerifyHMAC verifies the request MAC.
func (r *ExtenderReq) VerifyHMAC(alg hash.Algorithm, key []byte) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	return r.verifyHmac(alg, key)
}

// ExtenderResp is the extender response PDU.
type ExtenderResp struct {
	envelope
	extResp *ExtResp
	errPDU  *ExtResp
	conf    *Config
}

// ExtResp is the extending response payload. It is also used to represent the reduced error PDU.
type ExtResp struct {
	id       uint64
	status   uint64
	errorMsg string
	calLast  *uint64
	calChain *CalendarChain
}

// ExtendingRespFields holds the values of an extending response.
type ExtendingRespFields struct {
	RequestID     uint64
	Status        uint64
	ErrorMsg      string
	CalendarLast  uint64
	CalendarChain *CalendarChain
}

// EncodeExtendingResp returns a serialized extending response.
func EncodeExtendingResp(hdr *Header, r ExtendingRespFields, alg hash.Algorithm, key []byte) ([]byte, error) {
	if hdr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	children := []*tlv.Tag{tlv.NewInteger(0x01, r.RequestID), tlv.NewInteger(0x04, r.Status)}
	if r.ErrorMsg != "" {
		children = append(children, tlv.NewString(0x05, r.ErrorMsg))
	}
	if r.CalendarLast != 0 {
		children = append(children, tlv.NewInteger(0x12, r.CalendarLast))
	}
	if r.CalendarChain != nil {
		children = append(children, r.CalendarChain.tag.Clone())
	}
	return seal(TypeExtenderResp, []*tlv.Tag{hdr.tag.Clone(), tlv.NewComposite(TypeExtResp, children...)}, alg, key)
}

// EncodeExtenderConfigResp returns a serialized configuration response.
func EncodeExtenderConfigResp(hdr *Header, c ConfigFields, alg hash.Algorithm, key []byte) ([]byte, error) {
	if hdr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	return seal(TypeExtenderResp, []*tlv.Tag{hdr.tag.Clone(), newConfigTag(c)}, alg, key)
}

// EncodeExtenderErrorResp returns a serialized reduced error response.
func EncodeExtenderErrorResp(hdr *Header, status uint64, msg string, alg hash.Algorithm, key []byte) ([]byte, error) {
	if hdr == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	var m *tlv.Tag
	if msg != "" {
		m = tlv.NewString(0x05, msg)
	}
	return seal(TypeExtenderResp, []*tlv.Tag{
		hdr.tag.Clone(),
		tlv.NewComposite(TypeError, tlv.NewInteger(0x04, status), m),
	}, alg, key)
}

// ExtenderRespFromBytes parses an extender response PDU.
func ExtenderRespFromBytes(raw []byte) (*ExtenderResp, error) {
	t, err := tlv.Parse(raw, ExtenderRespTemplate)
	if err != nil {
		return nil, err
	}
	f := scan(t, TypeExtenderResp, TypeHeader, TypeExtResp, TypeError, TypeConfig, TypeMac)
	r := &ExtenderResp{envelope: envelope{raw: raw}}
	r.project(f)
	f.sub(f.opt(TypeExtResp), func(e *tlv.Tag) error {
		g := scan(e, TypeExtResp, 0x01, 0x04, 0x05, 0x12, TypeCalendarChain)
		r.extResp = &ExtResp{}
		r.extResp.id = g.uint(g.opt(0x01))
		r.extResp.status = g.uint(g.one(0x04))
		r.extResp.errorMsg = g.text(g.opt(0x05))
		if c := g.opt(0x12); c != nil {
			v := g.uint(c)
			r.extResp.calLast = &v
		}
		g.sub(g.opt(TypeCalendarChain), func(c *tlv.Tag) (err error) {
			r.extResp.calChain, err = CalendarChainFromTag(c)
			return err
		})
		return g.err
	})
	f.sub(f.opt(TypeError), func(e *tlv.Tag) error {
		g := scan(e, TypeError, 0x04, 0x05)
		r.errPDU = &ExtResp{}
		r.errPDU.status = g.uint(g.one(0x04))
		r.errPDU.errorMsg = g.text(g.opt(0x05))
		return g.err
	})
	f.sub(f.opt(TypeConfig), func(e *tlv.Tag) (err error) {
		r.conf, err = configFromTag(e)
		return err
	})
	if f.err != nil {
		return nil, f.err
	}
	return r, nil
}

// Header returns the response header.
func (r *ExtenderResp) Header() *Header {
	if r == nil {
		return nil
	}
	return r.header
}

// ExtendingResp returns extending response, or nil if not present.
func (r *ExtenderResp) ExtendingResp() *ExtResp {
	if r == nil {
		return nil
	}
	return r.extResp
}

// Config returns the configuration response, or nil if not present.
func (r *ExtenderResp) Config() *Config {
	if r == nil {
		return nil
	}
	return r.conf
}

// Err returns the response error if present, otherwise nil is returned.
func (r *ExtenderResp) Err() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	for _, e := range []*ExtResp{r.errPDU, r.extResp} {
		if e == nil {
			continue
		}
		if err := e.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Verify verifies the extender response consistency. Returns an error in following cases:
//   - contains a service response error;
//   - the response is missing mandatory element;
//   - HMAC calculation result does not match with the response.
func (r *ExtenderResp) Verify(alg hash.Algorithm, key []byte) error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return err
	}
	return r.verifyHmac(alg, key)
}

// RequestID returns extending response request identifier.
func (r *ExtResp) RequestID() uint64 {
	if r == nil {
		return 0
	}
	return r.id
}

// Status returns extending response status code.
func (r *ExtResp) Status() uint64 {
	if r == nil {
		return 0
	}
	return r.status
}

// ErrorMsg returns extending response error message.
func (r *ExtResp) ErrorMsg() string {
	if r == nil {
		return ""
	}
	return r.errorMsg
}

// Err returns extending response error if present, otherwise nil is returned.
func (r *ExtResp) Err() error {
	if r == nil {
		return errors.New(errors.KsiInvalidArgumentError)
	}
	if err := extenderStatusToError(r.status); err != nil {
		if r.errorMsg != "" {
			err = err.AppendMessage(r.errorMsg)
		}
		return err
	}
	return nil
}

// CalendarLast returns aggregation time of the newest calendar record the extender has, 0 if not present.
func (r *ExtResp) CalendarLast() uint64 {
	if r == nil {
		return 0
	}
	return optUint(r.calLast)
}

// CalendarChain returns a calendar hash chain that connects the global root hash value of the aggregation tree of
// the round specified in the request to the published hash value specified in the request.
func (r *ExtResp) CalendarChain() (*CalendarChain, error) {
	if r == nil {
		return nil, errors.New(errors.KsiInvalidArgumentError)
	}
	if err := r.Err(); err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Extending response is invalid.")
	}
	if r.calChain == nil {
		return nil, errors.New(errors.KsiInvalidStateError).
			AppendMessage("Inconsistent extending response.").
			AppendMessage("Missing calendar chain.")
	}
	return r.calChain, nil
}

// extenderStatusToError converts extender status code to errors.(KsiError).
func extenderStatusToError(status uint64) *errors.KsiError {
	var code errors.ErrorCode
	switch status {
	case 0x00:
		return nil
	case 0x0101:
		code = errors.KsiServiceInvalidRequest
	case 0x0102:
		code = errors.KsiServiceAuthenticationFailure
	case 0x0103:
		code = errors.KsiServiceInvalidPayload
	case 0x0104:
		code = errors.KsiServiceExtenderInvalidTimeRange
	case 0x0105:
		code = errors.KsiServiceExtenderRequestTimeTooOld
	case 0x0106:
		code = errors.KsiServiceExtenderRequestTimeTooNew
	case 0x0107:
		code = errors.KsiServiceExtenderRequestTimeInFuture
	case 0x0200:
		code = errors.KsiServiceInternalError
	case 0x0201:
		code = errors.KsiServiceExtenderDatabaseMissing
	case 0x0202:
		code = errors.KsiServiceExtenderDatabaseCorrupt
	case 0x0300:
		code = errors.KsiServiceUpstreamError
	case 0x0301:
		code = errors.KsiServiceUpstreamTimeout
	default:
		code = errors.KsiServiceUnknownError
	}
	return errors.New(code).SetExtErrorCode(int(status))
}
