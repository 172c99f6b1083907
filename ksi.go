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

/*

Package ksi is a client library for keyless (hash chain based) KSI signatures: parsing, verification, extending
and merging of signatures into multi-signature containers.

Note that the following tutorial is incremental, meaning the parameter names used in example code blocks are defined
in previous example blocks.


Logging

The subpackage log defines logging interface type log.Logger, a basic logger implementation for writing lines
to a file, and adapters for logrus and zerolog.

By default logging is disabled. In order to enable logging of the API internals, a logger has to be registered in
the log package:

	logger, err := log.New(log.DEBUG, os.Stderr)
	if err != nil {
		return err
	}
	log.SetLogger(logger)

	// Or forward the log to an existing logrus logger.
	log.SetLogger(log.NewLogrus(logrus.StandardLogger(), "ksi"))

In order to disable logging, set logger to nil.


Errors

Almost every method of the API returns an error. All returned errors are of type errors.KsiError, providing:
	error code     - for error verification and recovery logic;
	error message  - a stack of human readable descriptive messages;
	stack trace    - the stack trace of the error registration;
	extended error - an error code, or error from e.g. std library.

	if errors.Is(err, errors.KsiMultiSigHashNotFound) {
		...
	}


Reading a KSI signature

A signature instance is created by providing a signature.Builder to signature.New():
	sig, err := signature.New(signature.BuildFromFile("document.ksig"))
Every signature is verified for internal consistency during construction, unless signature.BuildNoVerify is used.


Verifying a KSI signature

	err := sig.Verify(signature.DefaultVerificationPolicy,
		signature.VerCtxOptDocumentHash(docHash),
		signature.VerCtxOptPublicationsFileHandler(pubFileHandler),
		signature.VerCtxOptExtendingService(extender),
		signature.VerCtxOptExtendingPermitted(true),
	)
The verification report is available via sig.VerificationResult().


Publications file

	pubFileHandler, err := publications.NewFileHandler(
		publications.FileHandlerSetPublicationsURL("http://verify.guardtime.com/ksi-publications.bin"),
		publications.FileHandlerSetFileCertConstraint(publications.OidEmail, "publications@guardtime.com"),
	)


Extending a KSI signature

	extender, err := service.NewExtender(pubFileHandler,
		service.OptEndpoint("ksi+http://extender.somehost:1234", "user", "key"),
	)
	extSig, err := extender.ExtendSignature(ctx, sig)
Extending of multiple signatures can be performed in parallel using goroutines.


Multi-signature container

A multi-signature container stores many signatures as a forest of deduplicated hash chains:
	ms, err := multisig.New(multisig.FromFile("store.ms"))
	err = ms.Add(sig)
	// The earliest signature of the document.
	sig, err = ms.Get(docHash)
	// Extend all signatures to the nearest publication.
	pubFile, err := extender.PublicationsFile(ctx)
	n, err := ms.Extend(ctx, extender, pubFile, false)
	bin, err := ms.Serialize()

*/
package ksi
