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
	"fmt"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/pdu"
)

// decodeResponse parses the response PDU. The network error is reported only if the body is not a response PDU.
func decodeResponse(raw []byte, netErr error) (*pdu.ExtenderResp, error) {
	if len(raw) == 0 && netErr != nil {
		return nil, errors.KsiErr(netErr, errors.KsiNetworkError).AppendMessage("Network client returned error.")
	}
	resp, err := pdu.ExtenderRespFromBytes(raw)
	if err != nil {
		if netErr != nil {
			return nil, errors.KsiErr(netErr, errors.KsiNetworkError).AppendMessage("Network client returned error.")
		}
		return nil, errors.KsiErr(err).AppendMessage("Unable to parse extender response.")
	}
	return resp, nil
}

// verifyRequestID checks that an extending response answers the request with the given ID.
func verifyRequestID(req *request, id uint64, resp *pdu.ExtenderResp) error {
	if req.conf {
		if resp.Config() == nil {
			return errors.New(errors.KsiInvalidStateError).AppendMessage("Missing configuration response.")
		}
		return nil
	}
	extResp := resp.ExtendingResp()
	if extResp == nil {
		return errors.New(errors.KsiInvalidStateError).AppendMessage("Missing extending response.")
	}
	if extResp.RequestID() != id {
		return errors.New(errors.KsiRequestIdMismatch).
			AppendMessage(fmt.Sprintf("Expected %d, received %d.", id, extResp.RequestID()))
	}
	return nil
}
