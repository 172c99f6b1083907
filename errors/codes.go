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

package errors

import "fmt"

// ErrorCode classifies a KsiError. The high byte selects the group: 0x1xx for malformed input and
// data structures, 0x2xx for I/O, cryptography and verification, 0x4xx for statuses reported by a
// remote service.
type ErrorCode uint16

// Success.
const (
	// KsiNoError is the zero code.
	KsiNoError = ErrorCode(0)
)

// Malformed input and data structures.
const (
	// KsiInvalidArgumentError marks an unusable function argument, most often a nil receiver or pointer.
	KsiInvalidArgumentError = ErrorCode(0x100)
	// KsiInvalidFormatError marks a value outside of its permitted range or syntax.
	KsiInvalidFormatError = ErrorCode(0x101)
	// KsiBufferOverflow marks a value that does not fit into its encoding.
	KsiBufferOverflow = ErrorCode(0x104)
	// KsiInvalidPkiSignature marks a PKI signature that does not verify.
	KsiInvalidPkiSignature = ErrorCode(0x108)
	// KsiPkiCertificateNotTrusted marks a certificate that does not chain to a trusted root or fails the
	// configured constraints.
	KsiPkiCertificateNotTrusted = ErrorCode(0x109)
	// KsiInvalidStateError marks an object that lacks a member required by the operation.
	KsiInvalidStateError = ErrorCode(0x10a)
	// KsiUnknownHashAlgorithm marks a hash algorithm identifier that is not registered.
	KsiUnknownHashAlgorithm = ErrorCode(0x10b)

	// KsiTlvTruncated marks a tag stream that ends inside a tag, or a tag followed by trailing bytes.
	KsiTlvTruncated = ErrorCode(0x110)
	// KsiTlvUnknownCritical marks an unrecognised tag without the non-critical flag.
	KsiTlvUnknownCritical = ErrorCode(0x111)
	// KsiTlvNonMinimalInteger marks an integer with leading zero octets.
	KsiTlvNonMinimalInteger = ErrorCode(0x112)
	// KsiTlvInvalidImprint marks an imprint whose length disagrees with its algorithm.
	KsiTlvInvalidImprint = ErrorCode(0x113)
	// KsiInvalidStructure marks a decoded structure that breaks a cardinality, exclusion or chain index rule.
	KsiInvalidStructure = ErrorCode(0x114)

	// KsiMultiSigInvalidMagic marks a container that does not start with the expected magic bytes.
	KsiMultiSigInvalidMagic = ErrorCode(0x120)
	// KsiMultiSigHashNotFound marks a lookup for a document hash the container has no signature for.
	KsiMultiSigHashNotFound = ErrorCode(0x121)
)

// I/O, cryptography and verification.
const (
	KsiNetworkError = ErrorCode(0x200)
	KsiHttpError    = ErrorCode(0x201)
	KsiIoError      = ErrorCode(0x202)
	// KsiExtendNoSuitablePublication marks an extend request that no existing publication can serve yet.
	KsiExtendNoSuitablePublication = ErrorCode(0x208)
	KsiVerificationFailure         = ErrorCode(0x20a)
	// KsiPublicationsFileNotSignedWithPki marks a publications file without the trailing PKI signature.
	KsiPublicationsFileNotSignedWithPki = ErrorCode(0x20c)
	// KsiCryptoFailure marks a cryptographic operation that could not run, e.g. because of an unsupported
	// algorithm or a broken key.
	KsiCryptoFailure = ErrorCode(0x20d)
	KsiHmacMismatch  = ErrorCode(0x20e)
	// KsiVerificationPrecondition marks a verification rule that could not run for lack of an input, such as a
	// signature component, a publications file, an extending service or a user publication.
	KsiVerificationPrecondition = ErrorCode(0x20f)
	KsiRequestIdMismatch        = ErrorCode(0x210)
	KsiHmacAlgorithmMismatch    = ErrorCode(0x211)
	// KsiIncompatibleHashChain marks calendar hash chains that cannot be joined or compared.
	KsiIncompatibleHashChain = ErrorCode(0x213)
	// KsiExternalError wraps an error returned by a third party package.
	KsiExternalError = ErrorCode(0x214)
)

// Statuses returned by a remote service. The low byte carries the status the service reported, offset by
// 0x40 for extender specific ones.
const (
	KsiServiceInvalidRequest        = ErrorCode(0x400)
	KsiServiceAuthenticationFailure = ErrorCode(0x401)
	KsiServiceInvalidPayload        = ErrorCode(0x402)
	KsiServiceInternalError         = ErrorCode(0x403)
	KsiServiceUpstreamError         = ErrorCode(0x404)
	KsiServiceUpstreamTimeout       = ErrorCode(0x405)
	KsiServiceUnknownError          = ErrorCode(0x406)

	KsiServiceExtenderInvalidTimeRange    = ErrorCode(0x441)
	KsiServiceExtenderDatabaseMissing     = ErrorCode(0x442)
	KsiServiceExtenderDatabaseCorrupt     = ErrorCode(0x443)
	KsiServiceExtenderRequestTimeTooOld   = ErrorCode(0x444)
	KsiServiceExtenderRequestTimeTooNew   = ErrorCode(0x445)
	KsiServiceExtenderRequestTimeInFuture = ErrorCode(0x446)
)

// KsiNotImplemented marks a code path that is not available.
const KsiNotImplemented = ErrorCode(0xffff)

var codeText = map[ErrorCode]string{
	KsiNoError: "No error",

	KsiInvalidArgumentError:     "Invalid argument",
	KsiInvalidFormatError:       "Invalid format",
	KsiBufferOverflow:           "Value overflow",
	KsiInvalidPkiSignature:      "PKI signature does not verify",
	KsiPkiCertificateNotTrusted: "PKI certificate not trusted",
	KsiInvalidStateError:        "Invalid state",
	KsiUnknownHashAlgorithm:     "Unknown hash algorithm",
	KsiTlvTruncated:             "Truncated TLV",
	KsiTlvUnknownCritical:       "Unknown critical TLV",
	KsiTlvNonMinimalInteger:     "Non-minimal integer encoding",
	KsiTlvInvalidImprint:        "Invalid imprint",
	KsiInvalidStructure:         "Invalid structure",
	KsiMultiSigInvalidMagic:     "Not a multi-signature container",
	KsiMultiSigHashNotFound:     "Document hash not in container",

	KsiNetworkError:                     "Network error",
	KsiHttpError:                        "HTTP error",
	KsiIoError:                          "I/O error",
	KsiExtendNoSuitablePublication:      "No suitable publication yet",
	KsiVerificationFailure:              "Verification failed",
	KsiPublicationsFileNotSignedWithPki: "Publications file not signed",
	KsiCryptoFailure:                    "Cryptographic failure",
	KsiHmacMismatch:                     "HMAC mismatch",
	KsiVerificationPrecondition:         "Verification precondition not met",
	KsiRequestIdMismatch:                "Request ID mismatch",
	KsiHmacAlgorithmMismatch:            "HMAC algorithm mismatch",
	KsiIncompatibleHashChain:            "Incompatible calendar hash chain",
	KsiExternalError:                    "External error",

	KsiServiceInvalidRequest:        "Service could not parse the request",
	KsiServiceAuthenticationFailure: "Service could not authenticate the request",
	KsiServiceInvalidPayload:        "Service rejected the request payload",
	KsiServiceInternalError:         "Service internal error",
	KsiServiceUpstreamError:         "Service upstream error",
	KsiServiceUpstreamTimeout:       "Service upstream timeout",
	KsiServiceUnknownError:          "Unknown service error",

	KsiServiceExtenderInvalidTimeRange:    "Extend request goes backwards in time",
	KsiServiceExtenderDatabaseMissing:     "Extender database missing",
	KsiServiceExtenderDatabaseCorrupt:     "Extender database corrupt",
	KsiServiceExtenderRequestTimeTooOld:   "Extend request older than the calendar",
	KsiServiceExtenderRequestTimeTooNew:   "Extend request newer than the calendar",
	KsiServiceExtenderRequestTimeInFuture: "Extend request in the future",

	KsiNotImplemented: "Not implemented",
}

func (c ErrorCode) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("Error 0x%04x", uint16(c))
}
