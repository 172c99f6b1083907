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
	"time"

	"github.com/guardtime/goksi-multisig/pdu"
)

// request describes an extender request independently of the endpoint it is sent to. The PDU is built per
// endpoint, as the request ID is taken from the endpoint network client.
type request struct {
	conf     bool
	aggrTime time.Time
	pubTime  time.Time
}

// extendingRequest returns an extending request. A zero pubTime requests the calendar head.
func extendingRequest(aggrTime, pubTime time.Time) *request {
	return &request{aggrTime: aggrTime, pubTime: pubTime}
}

func configRequest() *request {
	return &request{conf: true}
}

// build returns the request PDU with the given request ID.
func (r *request) build(id uint64) (*pdu.ExtenderReq, error) {
	if r.conf {
		return pdu.NewExtenderConfigReq(), nil
	}
	return pdu.NewExtendingReq(r.aggrTime, pdu.ExtReqSetPubTime(r.pubTime), pdu.ExtReqSetRequestID(id))
}
