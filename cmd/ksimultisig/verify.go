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

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/pdu"
	"github.com/guardtime/goksi-multisig/signature"
	"github.com/guardtime/goksi-multisig/signature/verify/result"
)

var policies = map[string]signature.Policy{
	"default":  signature.DefaultVerificationPolicy,
	"internal": signature.InternalVerificationPolicy,
	"key":      signature.KeyBasedVerificationPolicy,
	"calendar": signature.CalendarBasedVerificationPolicy,
	"pubfile":  signature.PublicationsFileBasedVerificationPolicy,
	"userpub":  signature.UserProvidedPublicationBasedVerificationPolicy,
}

func policyNames() string {
	names := make([]string, 0, len(policies))
	for n := range policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func verifyCmd(a *app) *cobra.Command {
	var (
		policyName string
		pubString  string
		extend     bool
	)
	cmd := &cobra.Command{
		Use:   "verify <hash>",
		Short: "Verifies the earliest signature of the document hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, ok := policies[policyName]
			if !ok {
				return errors.New(errors.KsiInvalidArgumentError).
					AppendMessage(fmt.Sprintf("Unknown policy %q, expecting one of: %s.", policyName, policyNames()))
			}
			h, err := parseHash(args[0])
			if err != nil {
				return err
			}
			ms, err := a.load(false)
			if err != nil {
				return err
			}
			sig, err := ms.Get(h)
			if err != nil {
				return err
			}

			opts := []signature.VerCtxOption{
				signature.VerCtxOptContext(cmdContext(cmd)),
				signature.VerCtxOptExtendingPermitted(extend),
			}
			if docHash, _ := sig.DocumentHash(); hash.Equal(docHash, h) {
				opts = append(opts, signature.VerCtxOptDocumentHash(h))
			} else {
				log.Notice("Hash is not the document hash of the signature, verifying the signature only.")
			}
			if pubString != "" {
				pubData, err := pdu.PublicationDataFromString(pubString)
				if err != nil {
					return err
				}
				opts = append(opts, signature.VerCtxOptUserPublication(pubData))
			}
			pfh, err := a.pubFileHandler()
			if err != nil {
				return err
			}
			if pfh != nil {
				opts = append(opts, signature.VerCtxOptPublicationsFileHandler(pfh))
			}
			if a.cfg.Extender.URL != "" || len(a.cfg.Extender.HA) != 0 {
				ext, err := a.extender()
				if err != nil {
					return err
				}
				opts = append(opts, signature.VerCtxOptExtendingService(ext))
			}

			verCtx, err := signature.NewVerificationContext(sig, opts...)
			if err != nil {
				return err
			}
			res, err := policy.Verify(verCtx)
			if err != nil {
				return errors.KsiErr(err).AppendMessage("Failed to complete signature verification.")
			}
			verRes, err := verCtx.Result()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, pr := range verRes.PolicyResults() {
				fmt.Fprintln(out, "Policy:", pr.PolicyName())
				for _, rr := range pr.RuleResults() {
					fmt.Fprintln(out, "  Rule result:", rr)
				}
			}
			fmt.Fprintln(out, "Final result:", verRes.FinalResult())
			if res != result.OK {
				return verRes.Error()
			}
			fmt.Fprintln(out, "Verification successful.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&policyName, "policy", "p", "default", "Verification policy ("+policyNames()+")")
	cmd.Flags().StringVar(&pubString, "pub-str", "", "User provided publication string")
	cmd.Flags().BoolVarP(&extend, "extend", "x", false, "Permit extending during verification")
	return cmd
}
