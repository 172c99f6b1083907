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

// Command ksimultisig manages KSI multi-signature containers.
//
// Usage:
//	ksimultisig --container store.ms [--config ksi.yaml] <command>
//
// The container file is created by the first add command. See the command help for details.
package main

import (
	"os"

	"github.com/guardtime/goksi-multisig/errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode returns the error class of a KSI error (the high octet of the error code), or 1 for other errors.
func exitCode(err error) int {
	ksiErr, ok := err.(*errors.KsiError)
	if !ok || ksiErr.Code() == errors.KsiNoError {
		return 1
	}
	return int(ksiErr.Code() >> 8)
}
