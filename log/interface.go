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

package log

// Logger is the logger interface.
type Logger interface {
	// Debug logs events that aid in debugging the verification and parsing flow.
	Debug(v ...interface{})
	// Info logs events that have no effect on the outcome, e.g. a rule result.
	Info(v ...interface{})
	// Notice logs changes in state that do not necessarily cause a failure.
	Notice(v ...interface{})
	// Warning logs changes in state that degrade the outcome.
	Warning(v ...interface{})
	// Error logs unrecoverable errors.
	Error(v ...interface{})
}
