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

// Package verify contains the collaborators consumed by the signature verification rules.
package verify

import (
	"context"
	"time"

	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/publications"
)

// ExtendingService is used to deliver calendar hash chains and publications from the server to the client.
type ExtendingService interface {
	// Extend returns a calendar hash chain starting from the aggregation round at aggrTime and ending at the
	// calendar root at pubTime. A zero pubTime requests a chain to the current calendar head.
	Extend(ctx context.Context, aggrTime, pubTime time.Time) (*pdu.CalendarChain, error)
	// PublicationsFile returns a verified publications file.
	PublicationsFile(ctx context.Context) (*publications.File, error)
}
