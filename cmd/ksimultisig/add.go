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

	"github.com/spf13/cobra"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/signature"
)

func addCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <signature-file>...",
		Short: "Adds KSI signatures to the container",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := a.load(true)
			if err != nil {
				return err
			}
			for _, path := range args {
				sig, err := signature.New(signature.BuildFromFile(path))
				if err != nil {
					return errors.KsiErr(err).AppendMessage(fmt.Sprintf("Unable to read signature file %s.", path))
				}
				if err := ms.Add(sig); err != nil {
					return err
				}
				docHash, _ := sig.DocumentHash()
				fmt.Fprintln(cmd.OutOrStdout(), "Added", docHash)
			}
			return a.save(ms)
		},
	}
}
